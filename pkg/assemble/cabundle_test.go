package assemble

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lab47.dev/gitsmith/pkg/fetch"
)

func TestCABundle(t *testing.T) {
	t.Run("downloads the bundle into ssl", func(t *testing.T) {
		dir, err := ioutil.TempDir("", "cabundle")
		require.NoError(t, err)

		defer os.RemoveAll(dir)

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("-----BEGIN CERTIFICATE-----\n"))
		}))
		defer srv.Close()

		cb := &CABundle{
			Fetcher:     &fetch.Fetcher{},
			URL:         srv.URL + "/cacert.pem",
			Destination: dir,
		}

		require.NoError(t, cb.Add(context.Background()))

		data, err := ioutil.ReadFile(filepath.Join(dir, "ssl", "cacert.pem"))
		require.NoError(t, err)

		assert.Contains(t, string(data), "BEGIN CERTIFICATE")
	})

	t.Run("reports unreachable hosts as an error for the pipeline to downgrade", func(t *testing.T) {
		dir, err := ioutil.TempDir("", "cabundle")
		require.NoError(t, err)

		defer os.RemoveAll(dir)

		cb := &CABundle{
			Fetcher:     &fetch.Fetcher{},
			URL:         "http://127.0.0.1:1/cacert.pem",
			Destination: dir,
		}

		err = cb.Add(context.Background())
		require.Error(t, err)

		_, err = os.Stat(filepath.Join(dir, "ssl", "cacert.pem"))
		assert.True(t, os.IsNotExist(err))
	})
}
