package build

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"lab47.dev/gitsmith/pkg/assemble"
	"lab47.dev/gitsmith/pkg/audit"
	"lab47.dev/gitsmith/pkg/config"
	"lab47.dev/gitsmith/pkg/depbuild"
	"lab47.dev/gitsmith/pkg/fetch"
	"lab47.dev/gitsmith/pkg/gitbuild"
	"lab47.dev/gitsmith/pkg/lockfile"
	"lab47.dev/gitsmith/pkg/manifest"
	"lab47.dev/gitsmith/pkg/pipeline"
	"lab47.dev/gitsmith/pkg/smoke"
	"lab47.dev/gitsmith/pkg/sumfile"
	"lab47.dev/gitsmith/pkg/toolchain"
)

// Upstream release defaults, used when the dependency manifest does
// not pin a version.
const (
	defaultZlibVersion    = "1.3.1"
	defaultOpenSSLVersion = "1.1.1w"
	defaultCurlVersion    = "8.9.1"

	zlibURLFormat    = "https://zlib.net/fossils/zlib-%s.tar.gz"
	opensslURLFormat = "https://www.openssl.org/source/openssl-%s.tar.gz"
	curlURLFormat    = "https://curl.se/download/curl-%s.tar.gz"
)

// Options tune one pipeline run without touching the run
// configuration itself.
type Options struct {
	// Banner receives stage progress lines; nil silences them.
	Banner io.Writer

	// SkipSmoke disables the end-to-end clone even on a native
	// target.
	SkipSmoke bool
}

// Run executes the whole pipeline for the given configuration:
// resolve the toolchain, build the three dependencies, build git,
// assemble the bundle, validate the layout, audit linkage and smoke
// test. It holds an exclusive lock on the staging directory for the
// duration, enforcing the single-writer invariant across concurrent
// invocations.
func Run(ctx context.Context, cfg *config.Config, log hclog.Logger, opts Options) (*pipeline.Result, error) {
	target, err := toolchain.Resolve(cfg.TargetArch)
	if err != nil {
		return nil, err
	}

	man, err := manifest.Load(cfg.ManifestPath)
	if err != nil {
		return nil, err
	}

	err = os.MkdirAll(filepath.Dir(filepath.Clean(cfg.Destination)), 0755)
	if err != nil {
		return nil, errors.Wrapf(err, "creating parent of destination")
	}

	lockPath := cfg.Destination + ".lock"

	release, err := lockfile.Take(ctx, lockPath, func() {
		log.Info("waiting for staging directory lock, remove it if no other run is active", "lock", lockPath)
	})
	if err != nil {
		return nil, err
	}

	defer release()

	workDir, err := ioutil.TempDir("", "gitsmith")
	if err != nil {
		return nil, errors.Wrapf(err, "creating work dir")
	}

	defer os.RemoveAll(workDir)

	runner := &pipeline.Runner{
		L:      log,
		Stages: stages(cfg, man, target, log, workDir, opts),
	}

	if opts.Banner != nil {
		runner.Banner = opts.Banner
	}

	return runner.Run(ctx)
}

func sourceURL(man *manifest.Manifest, name, format, fallback string) string {
	version := man.Version(name)
	if version == "" {
		version = fallback
	}

	return fmt.Sprintf(format, version)
}

func stages(cfg *config.Config, man *manifest.Manifest, target *toolchain.BuildTarget, log hclog.Logger, workDir string, opts Options) []pipeline.Stage {
	fetcher := &fetch.Fetcher{L: log}

	builder := depbuild.Builder{
		L:        log,
		Fetcher:  fetcher,
		BuildDir: workDir,
	}

	zlib := &depbuild.Zlib{
		Builder:   builder,
		SourceURL: sourceURL(man, "zlib", zlibURLFormat, defaultZlibVersion),
		Prefix:    cfg.ZlibInstallDir,
	}

	openssl := &depbuild.OpenSSL{
		Builder:   builder,
		SourceURL: sourceURL(man, "openssl", opensslURLFormat, defaultOpenSSLVersion),
		Prefix:    cfg.OpenSSLInstallDir,
	}

	curl := &depbuild.Curl{
		Builder:       builder,
		SourceURL:     sourceURL(man, "curl", curlURLFormat, defaultCurlVersion),
		Prefix:        cfg.CurlInstallDir,
		ZlibPrefix:    cfg.ZlibInstallDir,
		OpenSSLPrefix: cfg.OpenSSLInstallDir,
	}

	gb := &gitbuild.Git{
		L:           log,
		Source:      cfg.Source,
		Destination: cfg.Destination,
		Prefixes: gitbuild.Prefixes{
			Zlib:    cfg.ZlibInstallDir,
			OpenSSL: cfg.OpenSSLInstallDir,
			Curl:    cfg.CurlInstallDir,
		},
	}

	lfs := &assemble.LFSMerge{
		L:           log,
		Fetcher:     fetcher,
		Manifest:    man,
		Version:     cfg.LFSVersion,
		DepArch:     target.DepArch,
		Platform:    "linux",
		WorkDir:     workDir,
		Destination: cfg.Destination,
	}

	sl := []pipeline.Stage{
		{
			Name:  "build zlib",
			Fatal: true,
			Run: func(ctx context.Context) error {
				return zlib.Build(ctx, target)
			},
		},
		{
			Name:  "build openssl",
			Fatal: true,
			Run: func(ctx context.Context) error {
				return openssl.Build(ctx, target)
			},
		},
		{
			Name:  "build curl",
			Fatal: true,
			Run: func(ctx context.Context) error {
				return curl.Build(ctx, target)
			},
		},
		{
			Name:  "build git",
			Fatal: true,
			Run: func(ctx context.Context) error {
				return gb.Build(ctx, target)
			},
		},
		{
			Name:  "bundle git-lfs",
			Fatal: true,
			Run: func(ctx context.Context) error {
				return lfs.Merge(ctx)
			},
		},
		{
			Name:  "add CA bundle",
			Fatal: false,
			Run: func(ctx context.Context) error {
				cb := &assemble.CABundle{
					L:           log,
					Fetcher:     fetcher,
					Destination: cfg.Destination,
				}

				return cb.Add(ctx)
			},
		},
		{
			Name:  "remove server tools",
			Fatal: true,
			Run: func(ctx context.Context) error {
				p := &assemble.Prune{L: log, Destination: cfg.Destination}
				return p.Run()
			},
		},
		{
			Name:  "validate layout",
			Fatal: true,
			Run: func(ctx context.Context) error {
				l := &assemble.Layout{L: log, Destination: cfg.Destination}
				return l.Validate()
			},
		},
		{
			Name:  "static link audit",
			Fatal: false,
			Run: func(ctx context.Context) error {
				a := &audit.Auditor{L: log, Destination: cfg.Destination}
				a.Audit()
				return nil
			},
		},
		{
			Name:  "write bundle fingerprint",
			Fatal: true,
			Run: func(ctx context.Context) error {
				return writeFingerprint(cfg.Destination)
			},
		},
	}

	if !opts.SkipSmoke {
		sl = append(sl, pipeline.Stage{
			Name:  "smoke test",
			Fatal: true,
			Run: func(ctx context.Context) error {
				runner := &smoke.Runner{L: log, Destination: cfg.Destination}

				if !runner.Runnable(target, config.HostArch()) {
					log.Info("skipping smoke test on cross-compiled target", "arch", target.Arch)
					return nil
				}

				return runner.Run(ctx)
			},
		})
	}

	return sl
}

// writeFingerprint records a digest of the assembled tree next to it,
// so a release can be checked against what the pipeline produced.
func writeFingerprint(destination string) error {
	digest, err := sumfile.DigestTree(destination)
	if err != nil {
		return errors.Wrapf(err, "digesting staging directory")
	}

	var sf sumfile.Sumfile

	_, err = sf.Add(filepath.Base(destination), "b2", digest)
	if err != nil {
		return err
	}

	f, err := os.Create(destination + ".sum")
	if err != nil {
		return errors.Wrapf(err, "creating fingerprint file")
	}

	defer f.Close()

	return sf.Save(f)
}
