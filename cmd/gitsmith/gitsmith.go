package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"lab47.dev/gitsmith/pkg/audit"
	"lab47.dev/gitsmith/pkg/build"
	"lab47.dev/gitsmith/pkg/bundle"
	"lab47.dev/gitsmith/pkg/cmd"
	"lab47.dev/gitsmith/pkg/config"
	"lab47.dev/gitsmith/pkg/sumfile"
	"lab47.dev/gitsmith/pkg/toolchain"
)

func main() {
	c := cli.NewCLI("gitsmith", "0.1.0")
	c.Args = os.Args[1:]
	c.Commands = map[string]cli.CommandFactory{
		"build": func() (cli.Command, error) {
			return cmd.New(
				"build",
				"cross-compile git and assemble the distributable bundle",
				buildF,
			), nil
		},
		"resolve": func() (cli.Command, error) {
			return cmd.New(
				"resolve",
				"print the toolchain profile for a target architecture",
				resolveF,
			), nil
		},
		"audit": func() (cli.Command, error) {
			return cmd.New(
				"audit",
				"report unexpected dynamic linkage in an assembled bundle",
				auditF,
			), nil
		},
		"pack": func() (cli.Command, error) {
			return cmd.New(
				"pack",
				"archive an assembled bundle into a distributable tarball",
				packF,
			), nil
		},
		"env": func() (cli.Command, error) {
			return cmd.New(
				"env",
				"print the resolved run configuration",
				envF,
			), nil
		},
	}

	exitStatus, err := c.Run()
	if err != nil {
		log.Println(err)
	}

	os.Exit(exitStatus)
}

func newLogger(debug bool) hclog.Logger {
	level := hclog.Info

	if debug {
		level = hclog.Debug
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:  "gitsmith",
		Level: level,
	})
}

func buildF(ctx context.Context, opts struct {
	Debug     bool `short:"D" long:"debug" description:"log in debug mode"`
	SkipSmoke bool `long:"skip-smoke" description:"skip the end-to-end clone test"`
	Quiet     bool `short:"q" long:"quiet" description:"suppress stage progress output"`
}) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	bopts := build.Options{
		SkipSmoke: opts.SkipSmoke,
	}

	if !opts.Quiet {
		bopts.Banner = os.Stdout
	}

	res, err := build.Run(ctx, cfg, newLogger(opts.Debug), bopts)
	if err != nil {
		return err
	}

	fmt.Printf("Bundle assembled in %s (%d stages, %d warnings, %s)\n",
		cfg.Destination, len(res.Completed), len(res.Warnings), res.Elapsed.Round(time.Millisecond))

	return nil
}

func resolveF(ctx context.Context, opts struct {
	Pos struct {
		Arch string `positional-arg-name:"arch"`
	} `positional-args:"yes" required:"yes"`
}) error {
	target, err := toolchain.Resolve(opts.Pos.Arch)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 2, 1, ' ', 0)

	fmt.Fprintf(tw, "arch:\t%s\n", target.Arch)
	fmt.Fprintf(tw, "dependency arch:\t%s\n", target.DepArch)
	fmt.Fprintf(tw, "cc:\t%s\n", target.CC)
	fmt.Fprintf(tw, "host triple:\t%s\n", target.HostTriple)
	fmt.Fprintf(tw, "openssl platform:\t%s\n", target.OpenSSLPlatform)
	fmt.Fprintf(tw, "strip:\t%s\n", target.Strip())

	return tw.Flush()
}

func auditF(ctx context.Context, opts struct {
	Debug bool `short:"D" long:"debug" description:"log in debug mode"`

	Pos struct {
		Dir string `positional-arg-name:"dir"`
	} `positional-args:"yes" required:"yes"`
}) error {
	a := &audit.Auditor{
		L:           newLogger(opts.Debug),
		Destination: opts.Pos.Dir,
	}

	report := a.Audit()

	if report.Clean() {
		fmt.Printf("No unexpected dynamic linkage (%d binaries scanned)\n", report.Scanned)
		return nil
	}

	for _, f := range report.Findings {
		fmt.Printf("%s:\n", f.Binary)

		for _, lib := range f.Libraries {
			fmt.Printf("  %s\n", lib)
		}
	}

	return nil
}

func packF(ctx context.Context, opts struct {
	Pos struct {
		Dir string `positional-arg-name:"dir"`
		Out string `positional-arg-name:"output"`
	} `positional-args:"yes" required:"yes"`
}) error {
	f, err := os.Create(opts.Pos.Out)
	if err != nil {
		return err
	}

	defer f.Close()

	var p bundle.Pack

	err = p.Pack(opts.Pos.Dir, f)
	if err != nil {
		return err
	}

	var sf sumfile.Sumfile

	entry, err := sf.Add(opts.Pos.Out, "b2", p.Sum)
	if err != nil {
		return err
	}

	sumPath := opts.Pos.Out + ".sum"

	sfF, err := os.Create(sumPath)
	if err != nil {
		return err
	}

	defer sfF.Close()

	err = sf.Save(sfF)
	if err != nil {
		return err
	}

	fmt.Printf("Packed %s (%s)\n", opts.Pos.Out, entry)

	return nil
}

func envF(ctx context.Context, opts struct {
	Raw bool `long:"raw" description:"dump the raw configuration struct"`
}) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	if opts.Raw {
		spew.Dump(cfg)
		return nil
	}

	fmt.Printf("Source: %s\n", cfg.Source)
	fmt.Printf("Destination: %s\n", cfg.Destination)
	fmt.Printf("Target Arch: %s\n", cfg.TargetArch)
	fmt.Printf("Zlib Prefix: %s\n", cfg.ZlibInstallDir)
	fmt.Printf("OpenSSL Prefix: %s\n", cfg.OpenSSLInstallDir)
	fmt.Printf("Curl Prefix: %s\n", cfg.CurlInstallDir)
	fmt.Printf("Dependency Manifest: %s\n", cfg.ManifestPath)

	if cfg.LFSVersion != "" {
		fmt.Printf("Git LFS Version: %s\n", cfg.LFSVersion)
	}

	return nil
}
