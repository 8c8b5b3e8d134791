package manifest

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

var (
	ErrUnknownPackage = errors.New("package not present in dependency manifest")
	ErrNoMatchingFile = errors.New("no manifest file entry for arch/platform")
)

// File describes one downloadable artifact released for a specific
// architecture and platform.
type File struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Checksum string `json:"checksum"`
	Arch     string `json:"arch"`
	Platform string `json:"platform"`
}

// Package groups the released files of one upstream package under its
// version string.
type Package struct {
	Version string `json:"version"`
	Files   []File `json:"files"`
}

// Manifest is the dependency manifest document: package name to
// release metadata. It is read once at pipeline start and never
// mutated.
type Manifest struct {
	packages map[string]Package
}

func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening dependency manifest")
	}

	defer f.Close()

	var m Manifest

	err = json.NewDecoder(f).Decode(&m.packages)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding dependency manifest %s", path)
	}

	return &m, nil
}

func Parse(data []byte) (*Manifest, error) {
	var m Manifest

	err := json.Unmarshal(data, &m.packages)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding dependency manifest")
	}

	return &m, nil
}

// Version returns the recorded version of a package, or "" when the
// package is absent.
func (m *Manifest) Version(name string) string {
	return m.packages[name].Version
}

// Lookup resolves the file entry of a package for one (arch,
// platform) pair. Packages release exactly one file per pair; the
// first match wins.
func (m *Manifest) Lookup(name, arch, platform string) (*File, error) {
	pkg, ok := m.packages[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownPackage, "package: %s", name)
	}

	for _, f := range pkg.Files {
		if f.Arch == arch && f.Platform == platform {
			out := f
			return &out, nil
		}
	}

	return nil, errors.Wrapf(ErrNoMatchingFile, "package: %s, arch: %s, platform: %s", name, arch, platform)
}
