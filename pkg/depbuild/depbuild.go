package depbuild

import (
	"context"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"lab47.dev/gitsmith/pkg/fetch"
	"lab47.dev/gitsmith/pkg/toolchain"
)

var (
	ErrConfigure = errors.New("configure failed")
	ErrCompile   = errors.New("compile failed")
	ErrInstall   = errors.New("install failed")
)

// Builder drives the build of one upstream C library against a
// resolved toolchain, installing into an isolated prefix. Each build
// step is a hard gate: a failure aborts before any partial install is
// made visible to later stages.
type Builder struct {
	L hclog.Logger

	Fetcher  *fetch.Fetcher
	BuildDir string
}

func (b *Builder) logger() hclog.Logger {
	if b.L == nil {
		b.L = hclog.L()
	}

	return b.L
}

// stage fetches and unpacks a source archive, returning the directory
// the build should run in. Archives conventionally contain a single
// top-level directory; when exactly one non-hidden entry exists the
// run directory descends into it.
func (b *Builder) stage(ctx context.Context, name, url string) (string, error) {
	dir := filepath.Join(b.BuildDir, "src-"+name)

	err := os.RemoveAll(dir)
	if err != nil {
		return "", errors.Wrapf(err, "clearing source dir for %s", name)
	}

	err = b.Fetcher.Source(ctx, url, dir)
	if err != nil {
		return "", err
	}

	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return "", errors.Wrapf(err, "reading source dir for %s", name)
	}

	var (
		sole os.FileInfo
		cnt  int
	)

	for _, e := range entries {
		if e.Name()[0] != '.' {
			cnt++
			sole = e
		}
	}

	if cnt == 1 && sole.IsDir() {
		return filepath.Join(dir, sole.Name()), nil
	}

	return dir, nil
}

// resetPrefix makes an install prefix freshly re-buildable. An
// already-populated prefix is cleared rather than overlaid, so a
// re-run never mixes artifacts from two builds.
func resetPrefix(prefix string) error {
	err := os.RemoveAll(prefix)
	if err != nil {
		return errors.Wrapf(err, "clearing install prefix %s", prefix)
	}

	return errors.Wrapf(os.MkdirAll(prefix, 0755), "creating install prefix %s", prefix)
}

// run executes one build step in dir, classifying failure under
// stageErr. Subprocess exit status is surfaced, not re-interpreted.
func (b *Builder) run(ctx context.Context, stageErr error, dir string, env []string, name string, args ...string) error {
	log := b.logger()

	log.Debug("running build step", "dir", dir, "cmd", name, "args", args)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = log.StandardWriter(&hclog.StandardLoggerOptions{ForceLevel: hclog.Debug})
	cmd.Stderr = log.StandardWriter(&hclog.StandardLoggerOptions{ForceLevel: hclog.Debug})

	err := cmd.Run()
	if err != nil {
		return errors.Wrapf(stageErr, "%s %s: %s", name, strings.Join(args, " "), err)
	}

	return nil
}

func (b *Builder) make(ctx context.Context, dir string, env []string) error {
	return b.run(ctx, ErrCompile, dir, env, "make")
}

func (b *Builder) makeInstall(ctx context.Context, dir string, env []string) error {
	return b.run(ctx, ErrInstall, dir, env, "make", "install")
}

func ccEnv(target *toolchain.BuildTarget) []string {
	return []string{"CC=" + target.CC}
}
