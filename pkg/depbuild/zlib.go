package depbuild

import (
	"context"

	"lab47.dev/gitsmith/pkg/toolchain"
)

// Zlib builds the compression library: static only, no
// position-independent executables, cross compiler from the target.
type Zlib struct {
	Builder

	SourceURL string
	Prefix    string
}

func (z *Zlib) Build(ctx context.Context, target *toolchain.BuildTarget) error {
	z.logger().Info("building zlib", "prefix", z.Prefix, "arch", target.Arch)

	dir, err := z.stage(ctx, "zlib", z.SourceURL)
	if err != nil {
		return err
	}

	err = resetPrefix(z.Prefix)
	if err != nil {
		return err
	}

	env := ccEnv(target)

	err = z.run(ctx, ErrConfigure, dir, env,
		"./configure",
		"--static",
		"--prefix="+z.Prefix,
	)
	if err != nil {
		return err
	}

	err = z.make(ctx, dir, env)
	if err != nil {
		return err
	}

	return z.makeInstall(ctx, dir, env)
}
