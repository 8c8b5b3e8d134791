package assemble

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lab47.dev/gitsmith/pkg/fetch"
	"lab47.dev/gitsmith/pkg/manifest"
	"lab47.dev/gitsmith/pkg/sum"
)

func lfsArchive(t *testing.T, entries map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for name, content := range entries {
		hdr := &tar.Header{
			Name: "git-lfs-3.4.0/" + name,
			Mode: 0755,
			Size: int64(len(content)),
		}

		require.NoError(t, tw.WriteHeader(hdr))

		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	return buf.Bytes()
}

func lfsManifest(t *testing.T, url, checksum string) *manifest.Manifest {
	t.Helper()

	doc := fmt.Sprintf(`{
	  "git-lfs": {
	    "version": "3.4.0",
	    "files": [
	      {
	        "name": "git-lfs-linux-amd64-v3.4.0.tar.gz",
	        "url": %q,
	        "checksum": %q,
	        "arch": "amd64",
	        "platform": "linux"
	      }
	    ]
	  }
	}`, url, checksum)

	man, err := manifest.Parse([]byte(doc))
	require.NoError(t, err)

	return man
}

func newMerge(t *testing.T, man *manifest.Manifest, version string) (*LFSMerge, string) {
	t.Helper()

	dir, err := ioutil.TempDir("", "lfs")
	require.NoError(t, err)

	t.Cleanup(func() { os.RemoveAll(dir) })

	dest := filepath.Join(dir, "dest")
	require.NoError(t, os.MkdirAll(dest, 0755))

	return &LFSMerge{
		Fetcher:     &fetch.Fetcher{},
		Manifest:    man,
		Version:     version,
		DepArch:     "amd64",
		Platform:    "linux",
		WorkDir:     filepath.Join(dir, "work"),
		Destination: dest,
	}, dest
}

func TestLFSMerge(t *testing.T) {
	archive := lfsArchive(t, map[string]string{
		"git-lfs":      "binary payload",
		"install.sh":   "#!/bin/sh\n",
		"README.md":    "docs",
		"CHANGELOG.md": "changes",
	})

	digest := sha256.Sum256(archive)
	checksum := hex.EncodeToString(digest[:])

	t.Run("fetches, verifies and extracts the release", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(archive)
		}))
		defer srv.Close()

		man := lfsManifest(t, srv.URL+"/git-lfs.tar.gz", checksum)

		m, dest := newMerge(t, man, "3.4.0")

		err := m.Merge(context.Background())
		require.NoError(t, err)

		data, err := ioutil.ReadFile(filepath.Join(dest, "libexec", "git-core", "git-lfs"))
		require.NoError(t, err)
		assert.Equal(t, "binary payload", string(data))

		for _, excluded := range []string{"install.sh", "README.md", "CHANGELOG.md"} {
			_, err = os.Stat(filepath.Join(dest, "libexec", "git-core", excluded))
			assert.True(t, os.IsNotExist(err), "%s should be excluded", excluded)
		}
	})

	t.Run("an empty version is a no-op", func(t *testing.T) {
		var hits int

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits++
		}))
		defer srv.Close()

		man := lfsManifest(t, srv.URL+"/git-lfs.tar.gz", checksum)

		m, dest := newMerge(t, man, "")

		err := m.Merge(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 0, hits)

		_, err = os.Stat(filepath.Join(dest, "libexec"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("a checksum mismatch aborts before extraction", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(archive)
		}))
		defer srv.Close()

		man := lfsManifest(t, srv.URL+"/git-lfs.tar.gz", "0000000000000000000000000000000000000000000000000000000000000000")

		m, dest := newMerge(t, man, "3.4.0")

		err := m.Merge(context.Background())
		require.Error(t, err)

		assert.True(t, errors.Is(err, sum.ErrMismatch))

		_, err = os.Stat(filepath.Join(dest, "libexec"))
		assert.True(t, os.IsNotExist(err), "staging directory must stay unpopulated")
	})

	t.Run("an entry escaping the staging tree is rejected", func(t *testing.T) {
		hostile := lfsArchive(t, map[string]string{
			"git-lfs":          "binary payload",
			"../../../escaped": "outside",
		})

		hostileDigest := sha256.Sum256(hostile)

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(hostile)
		}))
		defer srv.Close()

		man := lfsManifest(t, srv.URL+"/git-lfs.tar.gz", hex.EncodeToString(hostileDigest[:]))

		m, dest := newMerge(t, man, "3.4.0")

		err := m.Merge(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "escapes")

		_, err = os.Stat(filepath.Join(filepath.Dir(dest), "escaped"))
		assert.True(t, os.IsNotExist(err), "nothing may land outside the staging tree")
	})

	t.Run("a changed archive layout fails", func(t *testing.T) {
		broken := lfsArchive(t, map[string]string{
			"lfs/git-lfs-wrapper": "binary payload",
		})

		brokenDigest := sha256.Sum256(broken)

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(broken)
		}))
		defer srv.Close()

		man := lfsManifest(t, srv.URL+"/git-lfs.tar.gz", hex.EncodeToString(brokenDigest[:]))

		m, _ := newMerge(t, man, "3.4.0")

		err := m.Merge(context.Background())
		require.Error(t, err)

		assert.True(t, errors.Is(err, ErrLayout))
	})
}
