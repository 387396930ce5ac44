package git

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"orca-agent-backend/logging"
	"orca-agent-backend/shell"
)

// Runner executes one command to completion
type Runner interface {
	Run(ctx context.Context, cmd shell.Command) shell.Result
}

// Driver runs git commands under Root, where every repository is cloned
// into a directory named after it.
type Driver struct {
	Runner      Runner
	Root        string
	AuthorName  string
	AuthorEmail string
	Timeout     time.Duration

	log *logrus.Entry
}

// NewDriver returns a Driver with the given clone root
func NewDriver(runner Runner, root string) *Driver {
	return &Driver{
		Runner:      runner,
		Root:        root,
		AuthorName:  "Orca Agent",
		AuthorEmail: "agent@orca.local",
		Timeout:     5 * time.Minute,
		log:         logging.NewLogger("git"),
	}
}

// CloneDir is the local directory used for remote
func (d *Driver) CloneDir(remote string) string {
	return filepath.Join(d.Root, RepoName(remote))
}

func (d *Driver) git(ctx context.Context, dir string, args ...string) shell.Result {
	res := d.Runner.Run(ctx, shell.Command{
		Name:    "git",
		Args:    args,
		Dir:     dir,
		Env:     []string{"GIT_TERMINAL_PROMPT=0"},
		Timeout: d.Timeout,
	})
	if !res.OK() && d.log != nil {
		d.log.WithFields(logrus.Fields{
			"dir":       dir,
			"command":   args[0],
			"exit_code": res.ExitCode,
		}).Debug(RedactURL(res.Combined()))
	}
	return res
}

func failure(res shell.Result) string {
	if msg := RedactURL(res.Combined()); msg != "" {
		return msg
	}
	return "exit code " + strconv.Itoa(res.ExitCode)
}

// EnsureClone makes remote available locally. An existing clone is
// refreshed on its default branch, where every failure is a warning.
// Cloning from scratch is the only fatal step of the workflow.
func (d *Driver) EnsureClone(ctx context.Context, remote string) (string, StepResult) {
	dir := d.CloneDir(remote)
	if err := os.MkdirAll(d.Root, 0755); err != nil {
		return "", fatal("clone", "failed to create workspace %s: %v", d.Root, err)
	}

	if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
		return dir, d.refresh(ctx, dir, remote)
	}

	res := d.git(ctx, d.Root, "clone", remote, dir)
	if !res.OK() {
		return "", fatal("clone", "failed to clone repository: %s", failure(res))
	}
	return dir, ok("clone", "cloned %s", RedactURL(remote))
}

func (d *Driver) refresh(ctx context.Context, dir, remote string) StepResult {
	var problems []string

	// The token may have changed since the clone was made
	if res := d.git(ctx, dir, "remote", "set-url", "origin", remote); !res.OK() {
		problems = append(problems, "set-url: "+failure(res))
	}
	if res := d.git(ctx, dir, "fetch", "origin"); !res.OK() {
		problems = append(problems, "fetch: "+failure(res))
	}
	branch := d.defaultBranch(ctx, dir)
	if res := d.git(ctx, dir, "checkout", branch); !res.OK() {
		problems = append(problems, "checkout "+branch+": "+failure(res))
	}
	if res := d.git(ctx, dir, "pull", "origin", branch); !res.OK() {
		problems = append(problems, "pull: "+failure(res))
	}

	if len(problems) > 0 {
		return warning("update", "existing clone could not be fully updated: %s", strings.Join(problems, "; "))
	}
	return ok("update", "updated existing clone on %s", branch)
}

func (d *Driver) defaultBranch(ctx context.Context, dir string) string {
	res := d.git(ctx, dir, "symbolic-ref", "--short", "refs/remotes/origin/HEAD")
	if res.OK() {
		if ref := strings.TrimSpace(res.Stdout); ref != "" {
			return strings.TrimPrefix(ref, "origin/")
		}
	}
	return "main"
}

// ConfigureIdentity sets the local commit author of the clone
func (d *Driver) ConfigureIdentity(ctx context.Context, dir string) StepResult {
	if res := d.git(ctx, dir, "config", "user.name", d.AuthorName); !res.OK() {
		return warning("identity", "failed to configure git user name: %s", failure(res))
	}
	if res := d.git(ctx, dir, "config", "user.email", d.AuthorEmail); !res.OK() {
		return warning("identity", "failed to configure git user email: %s", failure(res))
	}
	return ok("identity", "configured git identity %s <%s>", d.AuthorName, d.AuthorEmail)
}

// CheckoutBranch creates or resets name at the current HEAD and switches to it
func (d *Driver) CheckoutBranch(ctx context.Context, dir, name string) StepResult {
	if res := d.git(ctx, dir, "checkout", "-B", name); !res.OK() {
		return warning("branch", "failed to create branch %s: %s", name, failure(res))
	}
	return ok("branch", "created and switched to branch: %s", name)
}

// CurrentBranch returns the checked-out branch name
func (d *Driver) CurrentBranch(ctx context.Context, dir string) (string, StepResult) {
	res := d.git(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if !res.OK() {
		return "", warning("branch", "failed to determine current branch: %s", failure(res))
	}
	return strings.TrimSpace(res.Stdout), ok("branch", "on branch %s", strings.TrimSpace(res.Stdout))
}

// HasChanges reports whether the working tree differs from HEAD
func (d *Driver) HasChanges(ctx context.Context, dir string) (bool, StepResult) {
	res := d.git(ctx, dir, "status", "--porcelain")
	if !res.OK() {
		return false, warning("status", "failed to check repository status: %s", failure(res))
	}
	if strings.TrimSpace(res.Stdout) == "" {
		return false, ok("status", "no changes to commit")
	}
	return true, ok("status", "working tree has changes")
}

// Commit stages everything and commits it. "nothing to commit" is a warning.
func (d *Driver) Commit(ctx context.Context, dir, message string) StepResult {
	if res := d.git(ctx, dir, "add", "-A"); !res.OK() {
		return warning("commit", "failed to stage changes: %s", failure(res))
	}

	res := d.git(ctx, dir, "commit", "-m", message)
	if !res.OK() {
		if strings.Contains(res.Stdout+res.Stderr, "nothing to commit") {
			return warning("commit", "nothing to commit")
		}
		return warning("commit", "failed to commit changes: %s", failure(res))
	}

	if rev := d.git(ctx, dir, "rev-parse", "HEAD"); rev.OK() {
		return ok("commit", "committed %s", shortSHA(rev.Stdout))
	}
	return ok("commit", "committed changes")
}

// Push publishes branch to origin and sets its upstream
func (d *Driver) Push(ctx context.Context, dir, branch string, force bool) StepResult {
	args := []string{"push", "-u", "origin", branch}
	if force {
		args = append(args, "--force")
	}
	if res := d.git(ctx, dir, args...); !res.OK() {
		return warning("push", "failed to push branch %s: %s", branch, failure(res))
	}
	return ok("push", "pushed branch %s", branch)
}

func shortSHA(out string) string {
	sha := strings.TrimSpace(out)
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
