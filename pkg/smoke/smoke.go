package smoke

import (
	"context"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"lab47.dev/gitsmith/pkg/toolchain"
)

var ErrRuntime = errors.New("smoke test failed")

// DefaultCloneURL is a small, stable public repository; the clone is
// the only end-to-end correctness signal the pipeline has.
const DefaultCloneURL = "https://github.com/octocat/Hello-World.git"

// Runner executes the assembled git binary against a real clone. It
// only runs when the build target matches the host's execution
// architecture; a cross-compiled binary cannot run on the build host.
type Runner struct {
	L hclog.Logger

	Destination string
	CloneURL    string
}

func (r *Runner) logger() hclog.Logger {
	if r.L == nil {
		r.L = hclog.L()
	}

	return r.L
}

// Runnable reports whether the smoke test applies to this target on
// this host.
func (r *Runner) Runnable(target *toolchain.BuildTarget, hostArch string) bool {
	return target.Native(hostArch)
}

func (r *Runner) env() []string {
	env := append(os.Environ(),
		"GIT_EXEC_PATH="+filepath.Join(r.Destination, "libexec", "git-core"),
		"GIT_TEMPLATE_DIR="+filepath.Join(r.Destination, "share", "git-core", "templates"),
	)

	cacert := filepath.Join(r.Destination, "ssl", "cacert.pem")
	if _, err := os.Stat(cacert); err == nil {
		env = append(env, "GIT_SSL_CAINFO="+cacert)
	}

	return env
}

func (r *Runner) git(ctx context.Context, dir string, args ...string) error {
	log := r.logger()

	bin := filepath.Join(r.Destination, "bin", "git")

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	cmd.Env = r.env()
	cmd.Stdout = log.StandardWriter(&hclog.StandardLoggerOptions{ForceLevel: hclog.Info})
	cmd.Stderr = log.StandardWriter(&hclog.StandardLoggerOptions{ForceLevel: hclog.Info})

	err := cmd.Run()
	if err != nil {
		return errors.Wrapf(ErrRuntime, "git %s: %s", args[0], err)
	}

	return nil
}

// Run prints the version of the built binary, then clones a real
// repository with the environment pointed at the staged tree. Any
// non-zero exit is fatal to the pipeline.
func (r *Runner) Run(ctx context.Context) error {
	log := r.logger()

	err := r.git(ctx, "", "--version")
	if err != nil {
		return err
	}

	workDir, err := ioutil.TempDir("", "gitsmith-smoke")
	if err != nil {
		return errors.Wrapf(err, "creating smoke test dir")
	}

	defer os.RemoveAll(workDir)

	url := r.CloneURL
	if url == "" {
		url = DefaultCloneURL
	}

	cloneDir := filepath.Join(workDir, "clone")

	err = r.git(ctx, workDir, "clone", url, cloneDir)
	if err != nil {
		return err
	}

	// Open what the binary produced and make sure HEAD resolves; a
	// clone that exits zero but writes a broken repository still
	// fails here.
	repo, err := git.PlainOpen(cloneDir)
	if err != nil {
		return errors.Wrapf(ErrRuntime, "opening cloned repository: %s", err)
	}

	head, err := repo.Head()
	if err != nil {
		return errors.Wrapf(ErrRuntime, "resolving HEAD of clone: %s", err)
	}

	log.Info("smoke test clone succeeded", "url", url, "head", head.Hash().String())

	return nil
}
