package bundle

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPack(t *testing.T) {
	dir, err := ioutil.TempDir("", "pack")
	require.NoError(t, err)

	defer os.RemoveAll(dir)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0755))

	err = ioutil.WriteFile(filepath.Join(dir, "bin", "git"), []byte("#!/bin/sh\n"), 0755)
	require.NoError(t, err)

	err = ioutil.WriteFile(filepath.Join(dir, "version"), []byte("2.43.0\n"), 0644)
	require.NoError(t, err)

	t.Run("archives every regular file", func(t *testing.T) {
		var (
			p   Pack
			buf bytes.Buffer
		)

		require.NoError(t, p.Pack(dir, &buf))

		gz, err := gzip.NewReader(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)

		tr := tar.NewReader(gz)

		var names []string

		for {
			hdr, err := tr.Next()
			if err == io.EOF {
				break
			}

			require.NoError(t, err)

			names = append(names, hdr.Name)
		}

		assert.Equal(t, []string{"bin/git", "version"}, names)
		assert.NotEmpty(t, p.Sum)
	})

	t.Run("packing the same tree twice is deterministic", func(t *testing.T) {
		var (
			p1, p2     Pack
			buf1, buf2 bytes.Buffer
		)

		require.NoError(t, p1.Pack(dir, &buf1))
		require.NoError(t, p2.Pack(dir, &buf2))

		assert.Equal(t, p1.Sum, p2.Sum)
		assert.Equal(t, buf1.Bytes(), buf2.Bytes())
	})
}
