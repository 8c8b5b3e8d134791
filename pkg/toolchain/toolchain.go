package toolchain

import "github.com/pkg/errors"

var ErrUnsupportedArch = errors.New("unsupported target architecture")

// BuildTarget is the resolved cross-compilation profile for one target
// architecture. It is immutable once resolved; exactly one is active
// per pipeline run.
type BuildTarget struct {
	// Arch is the input token the target was resolved from.
	Arch string

	// DepArch is the tag used to select prebuilt dependency files
	// from the dependency manifest.
	DepArch string

	// CC is the cross compiler invoked for all C builds.
	CC string

	// HostTriple is passed to autoconf-style configure as --host.
	HostTriple string

	// OpenSSLPlatform names the OpenSSL Configure target.
	OpenSSLPlatform string
}

// Prefix returns the toolchain prefix shared by the binutils of the
// target, e.g. "x86_64-linux-gnu-".
func (t *BuildTarget) Prefix() string {
	return t.CC[:len(t.CC)-len("gcc")]
}

// Strip returns the strip binary belonging to the cross toolchain.
// Using the host's native strip on foreign binaries corrupts them.
func (t *BuildTarget) Strip() string {
	return t.Prefix() + "strip"
}

var targets = map[string]BuildTarget{
	"x64": {
		Arch:            "x64",
		DepArch:         "amd64",
		CC:              "x86_64-linux-gnu-gcc",
		HostTriple:      "x86_64-pc-linux-gnu",
		OpenSSLPlatform: "linux-x86_64",
	},
	"x86": {
		Arch:            "x86",
		DepArch:         "386",
		CC:              "i686-linux-gnu-gcc",
		HostTriple:      "i686-pc-linux-gnu",
		OpenSSLPlatform: "linux-elf",
	},
	"arm64": {
		Arch:            "arm64",
		DepArch:         "arm64",
		CC:              "aarch64-linux-gnu-gcc",
		HostTriple:      "aarch64-pc-linux-gnu",
		OpenSSLPlatform: "linux-aarch64",
	},
	"arm": {
		Arch:            "arm",
		DepArch:         "arm",
		CC:              "arm-linux-gnueabihf-gcc",
		HostTriple:      "arm-pc-linux-gnueabihf",
		OpenSSLPlatform: "linux-armv4",
	},
}

// Resolve maps an architecture token to its BuildTarget. The table is
// fixed and exhaustive; an unknown token fails before any build work
// begins rather than falling back to a partially configured toolchain.
func Resolve(arch string) (*BuildTarget, error) {
	t, ok := targets[arch]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedArch, "arch: %s", arch)
	}

	return &t, nil
}

// Supported lists the architecture tokens Resolve accepts.
func Supported() []string {
	return []string{"x64", "x86", "arm64", "arm"}
}

// Native reports whether the target can execute on a host with the
// given GOARCH value. Cross-compiled output generally cannot run on
// the build host, so end-to-end checks are gated on this.
func (t *BuildTarget) Native(goarch string) bool {
	return t.DepArch == goarch
}
