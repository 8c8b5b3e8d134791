package config

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/host"
)

// Config is the immutable run configuration, constructed once at
// startup from the environment (optionally seeded from a JSON file)
// and validated exhaustively before any stage runs.
type Config struct {
	// Source is the primary project source tree (Git's checkout).
	Source string `json:"source"`

	// Destination is the staging directory the bundle is assembled in.
	Destination string `json:"destination"`

	ZlibInstallDir    string `json:"zlib-install-dir"`
	OpenSSLInstallDir string `json:"openssl-install-dir"`
	CurlInstallDir    string `json:"curl-install-dir"`

	// TargetArch is one of the fixed architecture tokens.
	TargetArch string `json:"target-arch"`

	// LFSVersion, when non-empty, triggers bundling of the prebuilt
	// Git LFS release of that version.
	LFSVersion string `json:"git-lfs-version"`

	// ManifestPath locates the dependency manifest document.
	ManifestPath string `json:"dependencies"`
}

const DefaultConfigPath = "~/.config/gitsmith/config.json"

// ConfigurationError reports every missing required input at once
// rather than one at a time.
type ConfigurationError struct {
	Missing []string
}

func (c *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(c.Missing, ", "))
}

// LoadConfig builds the run configuration. File values (if a config
// file exists) act as defaults; environment variables win.
func LoadConfig() (*Config, error) {
	var cfg Config

	path := os.Getenv("GITSMITH_CONFIG")
	if path == "" {
		expanded, err := homedir.Expand(DefaultConfigPath)
		if err == nil {
			path = expanded
		}
	}

	if path != "" {
		f, err := os.Open(path)
		if err == nil {
			err = json.NewDecoder(f).Decode(&cfg)
			f.Close()
			if err != nil {
				return nil, errors.Wrapf(err, "decoding config file %s", path)
			}
		}
	}

	cfg.applyEnv()

	if cfg.ManifestPath == "" {
		cfg.ManifestPath = "dependencies.json"
	}

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	set := func(dst *string, name string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	set(&c.Source, "SOURCE")
	set(&c.Destination, "DESTINATION")
	set(&c.ZlibInstallDir, "ZLIB_INSTALL_DIR")
	set(&c.OpenSSLInstallDir, "OPENSSL_INSTALL_DIR")
	set(&c.CurlInstallDir, "CURL_INSTALL_DIR")
	set(&c.TargetArch, "TARGET_ARCH")
	set(&c.LFSVersion, "GIT_LFS_VERSION")
	set(&c.ManifestPath, "DEPENDENCIES")
}

// Validate checks every required field and reports all missing ones
// together. LFSVersion is the only optional input.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"SOURCE", c.Source},
		{"DESTINATION", c.Destination},
		{"ZLIB_INSTALL_DIR", c.ZlibInstallDir},
		{"OPENSSL_INSTALL_DIR", c.OpenSSLInstallDir},
		{"CURL_INSTALL_DIR", c.CurlInstallDir},
		{"TARGET_ARCH", c.TargetArch},
	}

	var missing []string

	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.name)
		}
	}

	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}

	return nil
}

// HostArch reports the build host's execution architecture using the
// same tag vocabulary as the dependency manifest.
func HostArch() string {
	info, err := host.Info()
	if err == nil {
		switch info.KernelArch {
		case "x86_64":
			return "amd64"
		case "i386", "i686":
			return "386"
		case "aarch64":
			return "arm64"
		case "armv7l", "armv6l":
			return "arm"
		}
	}

	return runtime.GOARCH
}
