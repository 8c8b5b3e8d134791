package gitbuild

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"lab47.dev/gitsmith/pkg/depbuild"
	"lab47.dev/gitsmith/pkg/toolchain"
)

// Prefixes carries the install prefixes of the already-built
// dependencies. They are read-only linkage inputs here.
type Prefixes struct {
	Zlib    string
	OpenSSL string
	Curl    string
}

// Git builds the primary project against the dependency prefixes and
// installs it into the staging destination. The driver is the sole
// writer of Destination during its phase.
type Git struct {
	L hclog.Logger

	Source      string
	Destination string
	Prefixes    Prefixes
}

func (g *Git) logger() hclog.Logger {
	if g.L == nil {
		g.L = hclog.L()
	}

	return g.L
}

func (g *Git) run(ctx context.Context, stageErr error, env []string, name string, args ...string) error {
	log := g.logger()

	log.Debug("running build step", "dir", g.Source, "cmd", name, "args", args)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = g.Source
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = log.StandardWriter(&hclog.StandardLoggerOptions{ForceLevel: hclog.Debug})
	cmd.Stderr = log.StandardWriter(&hclog.StandardLoggerOptions{ForceLevel: hclog.Debug})

	err := cmd.Run()
	if err != nil {
		return errors.Wrapf(stageErr, "%s %s: %s", name, strings.Join(args, " "), err)
	}

	return nil
}

// Build performs a clean rebuild so the output reflects exactly the
// given toolchain and dependency set. Object files left over from a
// previous architecture must never leak into the new binary.
func (g *Git) Build(ctx context.Context, target *toolchain.BuildTarget) error {
	log := g.logger()

	log.Info("building git", "source", g.Source, "destination", g.Destination, "arch", target.Arch)

	// A failing distclean only means there is nothing to clean.
	g.run(ctx, depbuild.ErrCompile, nil, "make", "distclean")

	err := os.RemoveAll(g.Destination)
	if err != nil {
		return errors.Wrapf(err, "clearing destination %s", g.Destination)
	}

	err = os.MkdirAll(g.Destination, 0755)
	if err != nil {
		return errors.Wrapf(err, "creating destination %s", g.Destination)
	}

	env := []string{"CC=" + target.CC}

	err = g.run(ctx, depbuild.ErrConfigure, env, "make", "configure")
	if err != nil {
		return err
	}

	err = g.run(ctx, depbuild.ErrConfigure, env,
		"./configure",
		"--host="+target.HostTriple,
		"--prefix=/",
		"--with-curl="+g.Prefixes.Curl,
		"--with-openssl="+g.Prefixes.OpenSSL,
		"--with-zlib="+g.Prefixes.Zlib,
	)
	if err != nil {
		return err
	}

	flags := g.makeFlags(target)

	err = g.run(ctx, depbuild.ErrCompile, env, "make", flags...)
	if err != nil {
		return err
	}

	install := append(flags, "DESTDIR="+g.Destination, "strip", "install")

	return g.run(ctx, depbuild.ErrInstall, env, "make", install...)
}

// makeFlags disables the subsystems a headless distribution does not
// carry and pins the strip step to the cross toolchain's strip.
// Without the STRIP override make quietly runs the host's native
// strip over foreign-architecture binaries and corrupts them.
func (g *Git) makeFlags(target *toolchain.BuildTarget) []string {
	return []string{
		"NO_TCLTK=1",
		"NO_GETTEXT=1",
		"NO_INSTALL_HARDLINKS=1",
		"NO_PERL=1",
		"CURL_CONFIG=" + g.Prefixes.Curl + "/bin/curl-config",
		"STRIP=" + target.Strip(),
	}
}
