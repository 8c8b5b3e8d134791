package fetch

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownload(t *testing.T) {
	dir, err := ioutil.TempDir("", "fetch")
	require.NoError(t, err)

	defer os.RemoveAll(dir)

	t.Run("writes the body to the destination", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("artifact bytes"))
		}))
		defer srv.Close()

		var f Fetcher

		dest := filepath.Join(dir, "nested", "artifact")

		err := f.Download(context.Background(), srv.URL+"/artifact", dest)
		require.NoError(t, err)

		data, err := ioutil.ReadFile(dest)
		require.NoError(t, err)

		assert.Equal(t, "artifact bytes", string(data))
	})

	t.Run("a non-200 status is a download error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer srv.Close()

		var f Fetcher

		err := f.Download(context.Background(), srv.URL+"/missing", filepath.Join(dir, "missing"))
		require.Error(t, err)

		assert.True(t, errors.Is(err, ErrDownload))
	})

	t.Run("an unreachable host is a download error", func(t *testing.T) {
		var f Fetcher

		err := f.Download(context.Background(), "http://127.0.0.1:1/unreachable", filepath.Join(dir, "unreachable"))
		require.Error(t, err)

		assert.True(t, errors.Is(err, ErrDownload))
	})
}
