package build

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lab47.dev/gitsmith/pkg/config"
	"lab47.dev/gitsmith/pkg/manifest"
	"lab47.dev/gitsmith/pkg/toolchain"
)

func testConfig() *config.Config {
	return &config.Config{
		Source:            "/src/git",
		Destination:       "/out/git",
		ZlibInstallDir:    "/deps/zlib",
		OpenSSLInstallDir: "/deps/openssl",
		CurlInstallDir:    "/deps/curl",
		TargetArch:        "x64",
	}
}

func TestSourceURL(t *testing.T) {
	man, err := manifest.Parse([]byte(`{"zlib": {"version": "1.2.13", "files": []}}`))
	require.NoError(t, err)

	t.Run("manifest version wins", func(t *testing.T) {
		url := sourceURL(man, "zlib", zlibURLFormat, defaultZlibVersion)
		assert.Equal(t, "https://zlib.net/fossils/zlib-1.2.13.tar.gz", url)
	})

	t.Run("falls back to the pinned default", func(t *testing.T) {
		url := sourceURL(man, "curl", curlURLFormat, defaultCurlVersion)
		assert.Equal(t, "https://curl.se/download/curl-8.9.1.tar.gz", url)
	})
}

func TestStages(t *testing.T) {
	man, err := manifest.Parse([]byte(`{}`))
	require.NoError(t, err)

	target, err := toolchain.Resolve("x64")
	require.NoError(t, err)

	log := hclog.NewNullLogger()

	t.Run("orders the stage list", func(t *testing.T) {
		sl := stages(testConfig(), man, target, log, t.TempDir(), Options{})

		var names []string

		for _, s := range sl {
			names = append(names, s.Name)
		}

		assert.Equal(t, []string{
			"build zlib",
			"build openssl",
			"build curl",
			"build git",
			"bundle git-lfs",
			"add CA bundle",
			"remove server tools",
			"validate layout",
			"static link audit",
			"write bundle fingerprint",
			"smoke test",
		}, names)
	})

	t.Run("only the CA bundle and audit are non-fatal", func(t *testing.T) {
		sl := stages(testConfig(), man, target, log, t.TempDir(), Options{})

		nonFatal := map[string]bool{
			"add CA bundle":     true,
			"static link audit": true,
		}

		for _, s := range sl {
			assert.Equal(t, !nonFatal[s.Name], s.Fatal, "stage %s", s.Name)
		}
	})

	t.Run("the smoke test can be skipped", func(t *testing.T) {
		sl := stages(testConfig(), man, target, log, t.TempDir(), Options{SkipSmoke: true})

		for _, s := range sl {
			assert.NotEqual(t, "smoke test", s.Name)
		}
	})
}
