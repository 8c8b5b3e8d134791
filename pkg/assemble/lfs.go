package assemble

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"lab47.dev/gitsmith/pkg/fetch"
	"lab47.dev/gitsmith/pkg/manifest"
	"lab47.dev/gitsmith/pkg/sum"
)

var (
	ErrLayout          = errors.New("expected file missing after extraction")
	ErrMissingArtifact = errors.New("expected artifact missing from staging directory")
)

// Entries of the LFS release archive that never ship in the bundle:
// install scripts and release documentation.
var lfsExcluded = []string{"*.sh", "README.md", "CHANGELOG.md"}

// LFSMerge bundles the prebuilt Git LFS release into the staging
// directory. The archive passes a checksum gate before extraction;
// a mismatch aborts the whole run, it is never downgraded to a
// warning.
type LFSMerge struct {
	L hclog.Logger

	Fetcher  *fetch.Fetcher
	Manifest *manifest.Manifest

	Version     string
	DepArch     string
	Platform    string
	WorkDir     string
	Destination string
}

func (m *LFSMerge) logger() hclog.Logger {
	if m.L == nil {
		m.L = hclog.L()
	}

	return m.L
}

// Merge is a no-op when no LFS version is configured; bundling the
// secondary artifact is optional, skipping it is not an error.
func (m *LFSMerge) Merge(ctx context.Context) error {
	log := m.logger()

	if m.Version == "" {
		log.Info("no git-lfs version configured, skipping bundling")
		return nil
	}

	desc, err := m.Manifest.Lookup("git-lfs", m.DepArch, m.Platform)
	if err != nil {
		return err
	}

	archive := filepath.Join(m.WorkDir, desc.Name)

	err = m.Fetcher.Download(ctx, desc.URL, archive)
	if err != nil {
		return err
	}

	err = sum.ValidateFile(archive, desc.Checksum)
	if err != nil {
		return err
	}

	coreDir := filepath.Join(m.Destination, "libexec", "git-core")

	err = extractInto(archive, coreDir)
	if err != nil {
		return err
	}

	// A changed upstream archive layout must not silently ship a
	// broken bundle.
	expected := filepath.Join(coreDir, "git-lfs")

	if _, err := os.Stat(expected); err != nil {
		return errors.Wrapf(ErrLayout, "looking for %s", expected)
	}

	log.Info("bundled git-lfs", "version", m.Version, "path", expected)

	return nil
}

func excludedEntry(name string) bool {
	base := filepath.Base(name)

	for _, pat := range lfsExcluded {
		if ok, _ := filepath.Match(pat, base); ok {
			return true
		}
	}

	return false
}

// extractInto unpacks a gzipped tarball into dir, dropping the
// archive's top-level directory and the excluded entries.
func extractInto(path, dir string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening archive %s", path)
	}

	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "reading archive %s", path)
	}

	tr := tar.NewReader(gz)

	for {
		hdr, err := tr.Next()
		if err != nil {
			if err == io.EOF {
				break
			}

			return errors.Wrapf(err, "reading archive %s", path)
		}

		name := hdr.Name

		if idx := strings.IndexByte(name, '/'); idx != -1 {
			name = name[idx+1:]
		}

		if name == "" || excludedEntry(name) {
			continue
		}

		tgt := filepath.Join(dir, name)

		if !strings.HasPrefix(tgt, filepath.Clean(dir)+string(os.PathSeparator)) {
			return errors.Errorf("archive entry escapes %s: %s", dir, hdr.Name)
		}

		fi := hdr.FileInfo()

		if fi.IsDir() {
			err = os.MkdirAll(tgt, 0755)
			if err != nil {
				return err
			}

			continue
		}

		if fi.Mode()&os.ModeType != 0 {
			continue
		}

		err = os.MkdirAll(filepath.Dir(tgt), 0755)
		if err != nil {
			return err
		}

		out, err := os.OpenFile(tgt, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fi.Mode().Perm())
		if err != nil {
			return err
		}

		_, err = io.Copy(out, tr)
		out.Close()
		if err != nil {
			return errors.Wrapf(err, "extracting %s", name)
		}
	}

	return nil
}
