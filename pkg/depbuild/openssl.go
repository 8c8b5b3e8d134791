package depbuild

import (
	"context"

	"lab47.dev/gitsmith/pkg/toolchain"
)

// OpenSSL builds the TLS library. Unlike the autoconf-style
// dependencies it takes a named platform target and a cross-compile
// prefix instead of a CC override.
type OpenSSL struct {
	Builder

	SourceURL string
	Prefix    string
}

func (o *OpenSSL) Build(ctx context.Context, target *toolchain.BuildTarget) error {
	o.logger().Info("building openssl", "prefix", o.Prefix, "platform", target.OpenSSLPlatform)

	dir, err := o.stage(ctx, "openssl", o.SourceURL)
	if err != nil {
		return err
	}

	err = resetPrefix(o.Prefix)
	if err != nil {
		return err
	}

	err = o.run(ctx, ErrConfigure, dir, nil,
		"./Configure",
		target.OpenSSLPlatform,
		"no-shared",
		"no-tests",
		"--cross-compile-prefix="+target.Prefix(),
		"--prefix="+o.Prefix,
		"--openssldir="+o.Prefix,
	)
	if err != nil {
		return err
	}

	err = o.make(ctx, dir, nil)
	if err != nil {
		return err
	}

	// install_sw skips the man pages, which take longer to install
	// than the library takes to build.
	return o.run(ctx, ErrInstall, dir, nil, "make", "install_sw")
}
