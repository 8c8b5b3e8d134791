package audit

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudit(t *testing.T) {
	t.Run("ignores scripts and data files", func(t *testing.T) {
		dir, err := ioutil.TempDir("", "audit")
		require.NoError(t, err)

		defer os.RemoveAll(dir)

		require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0755))

		err = ioutil.WriteFile(filepath.Join(dir, "bin", "git-helper"), []byte("#!/bin/sh\nexit 0\n"), 0755)
		require.NoError(t, err)

		err = ioutil.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a binary"), 0644)
		require.NoError(t, err)

		a := &Auditor{Destination: dir}

		report := a.Audit()

		assert.True(t, report.Clean())
		assert.Equal(t, 0, report.Scanned)
	})

	t.Run("scans a real ELF binary without findings", func(t *testing.T) {
		if runtime.GOOS != "linux" {
			t.Skip("ELF inspection requires a linux host")
		}

		dir, err := ioutil.TempDir("", "audit")
		require.NoError(t, err)

		defer os.RemoveAll(dir)

		self, err := os.Executable()
		require.NoError(t, err)

		src, err := os.Open(self)
		require.NoError(t, err)

		defer src.Close()

		dst, err := os.OpenFile(filepath.Join(dir, "bin-under-test"), os.O_CREATE|os.O_WRONLY, 0755)
		require.NoError(t, err)

		_, err = io.Copy(dst, src)
		require.NoError(t, err)
		require.NoError(t, dst.Close())

		a := &Auditor{Destination: dir}

		report := a.Audit()

		assert.Equal(t, 1, report.Scanned)
		assert.True(t, report.Clean(), "the test binary never links libcurl or libssl")
	})
}
