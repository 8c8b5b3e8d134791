package assemble

import (
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// Layout validates the assembled staging directory against a
// declarative manifest: paths that must exist and paths that must
// not. One pass after assembly replaces scattered inline existence
// checks.
type Layout struct {
	L hclog.Logger

	Destination string

	// Present and Absent override the defaults, mainly for tests.
	Present []string
	Absent  []string
}

var defaultPresent = []string{
	"bin/git",
	"libexec/git-core",
	"share/git-core/templates",
}

func (l *Layout) Validate() error {
	if l.L == nil {
		l.L = hclog.L()
	}

	present := l.Present
	if present == nil {
		present = defaultPresent
	}

	absent := l.Absent
	if absent == nil {
		absent = append(append([]string{}, ServerTools...), UnsupportedTools...)
	}

	for _, rel := range present {
		path := filepath.Join(l.Destination, rel)

		if _, err := os.Stat(path); err != nil {
			return errors.Wrapf(ErrMissingArtifact, "expected present: %s", rel)
		}
	}

	for _, rel := range absent {
		path := filepath.Join(l.Destination, rel)

		if _, err := os.Stat(path); err == nil {
			return errors.Errorf("expected absent but present: %s", rel)
		}
	}

	l.L.Debug("staging layout validated", "destination", l.Destination)

	return nil
}
