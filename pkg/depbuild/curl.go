package depbuild

import (
	"context"

	"lab47.dev/gitsmith/pkg/toolchain"
)

// Curl builds the transfer library against the already-built
// compression and TLS prefixes. Those prefixes are linkage inputs
// only: Curl reads them, never writes them.
type Curl struct {
	Builder

	SourceURL string
	Prefix    string

	ZlibPrefix    string
	OpenSSLPrefix string
}

func (c *Curl) Build(ctx context.Context, target *toolchain.BuildTarget) error {
	c.logger().Info("building curl", "prefix", c.Prefix, "host", target.HostTriple)

	dir, err := c.stage(ctx, "curl", c.SourceURL)
	if err != nil {
		return err
	}

	err = resetPrefix(c.Prefix)
	if err != nil {
		return err
	}

	env := ccEnv(target)

	err = c.run(ctx, ErrConfigure, dir, env,
		"./configure",
		"--host="+target.HostTriple,
		"--prefix="+c.Prefix,
		"--with-ssl="+c.OpenSSLPrefix,
		"--with-zlib="+c.ZlibPrefix,
		"--disable-shared",
		"--enable-static",
		"--disable-ldap",
		"--disable-ldaps",
		"--without-librtmp",
		"--without-libidn2",
		"--without-libpsl",
	)
	if err != nil {
		return err
	}

	err = c.make(ctx, dir, env)
	if err != nil {
		return err
	}

	return c.makeInstall(ctx, dir, env)
}
