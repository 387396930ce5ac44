package test_utils

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	. "github.com/onsi/gomega"
)

// GitAvailable reports whether the git binary is on PATH
func GitAvailable() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// RunGit runs git in dir with a fixed identity and returns trimmed output
func RunGit(dir string, args ...string) string {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Fixture", "GIT_AUTHOR_EMAIL=fixture@example.com",
		"GIT_COMMITTER_NAME=Fixture", "GIT_COMMITTER_EMAIL=fixture@example.com",
	)
	out, err := cmd.CombinedOutput()
	Expect(err).NotTo(HaveOccurred(), "git %v failed: %s", args, string(out))
	return strings.TrimSpace(string(out))
}

// CreateBareRepository creates base/<name>.git with a README committed on
// main and returns its path.
func CreateBareRepository(base, name string) string {
	bare := filepath.Join(base, name+".git")
	seed := filepath.Join(base, name+"-seed")

	RunGit(base, "init", "--bare", "--initial-branch=main", bare)
	RunGit(base, "init", "--initial-branch=main", seed)
	Expect(os.WriteFile(filepath.Join(seed, "README.md"), []byte("# "+name+"\n"), 0644)).To(Succeed())
	RunGit(seed, "add", "-A")
	RunGit(seed, "commit", "-m", "initial commit")
	RunGit(seed, "remote", "add", "origin", bare)
	RunGit(seed, "push", "origin", "main")
	return bare
}

// RemoteBranchExists checks a branch in a bare repository
func RemoteBranchExists(bare, branch string) bool {
	cmd := exec.Command("git", "rev-parse", "--verify", "--quiet", "refs/heads/"+branch)
	cmd.Dir = bare
	return cmd.Run() == nil
}
