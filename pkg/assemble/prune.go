package assemble

import (
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// ServerTools are the server-side executables a client distribution
// does not carry.
var ServerTools = []string{
	"bin/git-cvsserver",
	"bin/git-receive-pack",
	"bin/git-shell",
	"bin/git-upload-archive",
	"bin/git-upload-pack",
}

// UnsupportedTools are the feature binaries this distribution does
// not support.
var UnsupportedTools = []string{
	"libexec/git-core/git-svn",
	"libexec/git-core/git-p4",
	"libexec/git-core/git-imap-send",
}

// Prune removes the disallowed binaries from the staging directory.
// The lists are a contract with the primary build's output set: a
// listed file that is already absent signals an upstream layout
// change and is surfaced as an error rather than tolerated.
type Prune struct {
	L hclog.Logger

	Destination string
}

func (p *Prune) Run() error {
	if p.L == nil {
		p.L = hclog.L()
	}

	for _, rel := range append(append([]string{}, ServerTools...), UnsupportedTools...) {
		path := filepath.Join(p.Destination, rel)

		err := os.Remove(path)
		if err != nil {
			if os.IsNotExist(err) {
				return errors.Wrapf(ErrMissingArtifact, "removal target: %s", rel)
			}

			return errors.Wrapf(err, "removing %s", rel)
		}

		p.L.Debug("removed", "path", rel)
	}

	return nil
}
