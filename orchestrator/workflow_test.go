//go:build test

package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"orca-agent-backend/agent"
	"orca-agent-backend/git"
	"orca-agent-backend/sessions"
	"orca-agent-backend/shell"
	"orca-agent-backend/tests/config"
	test_constants "orca-agent-backend/tests/constants"
	"orca-agent-backend/tests/logger"
	"orca-agent-backend/tests/test_utils"
	"orca-agent-backend/types"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func hiddenBinaries(string) (string, error) {
	return "", errors.New("not found")
}

// newTestOrchestrator builds an orchestrator whose agent CLIs resolve
// through lookPath and whose git driver uses the real git binary.
func newTestOrchestrator(root string, opts Options, lookPath func(string) (string, error)) *Orchestrator {
	invoker := agent.NewInvoker(&shell.Runner{LookPathFunc: lookPath})
	invoker.SimulationDelay = *config.SimulationDelay

	driver := git.NewDriver(shell.NewRunner(), root)
	opts.WorkspaceRoot = root
	opts.GatewayURL = func(string) string { return "https://gateway.invalid/user/v5/llm" }
	return New(sessions.NewStore(), driver, invoker, opts)
}

func waitForTerminal(sess *sessions.Session) types.SessionSnapshot {
	Eventually(func() bool {
		return sess.Status().IsTerminal()
	}, *config.SessionTimeout, 20*time.Millisecond).Should(BeTrue(), "session should reach a terminal status")
	return sess.Snapshot()
}

var _ = Describe("Orchestrator", Label(test_constants.LabelUnit, test_constants.LabelOrchestrator), func() {
	var (
		root string
		orch *Orchestrator
	)

	BeforeEach(func() {
		root = GinkgoT().TempDir()
		orch = newTestOrchestrator(root, Options{MaxConcurrent: 2, QueueDepth: 4, ForcePush: true}, hiddenBinaries)
	})

	// replace swaps in next after draining the current orchestrator
	replace := func(next *Orchestrator) {
		Expect(orch.Shutdown(context.Background())).To(Succeed())
		orch = next
	}

	AfterEach(func() {
		for _, s := range orch.Store().List() {
			_, _ = orch.Stop(s.ID)
		}
		Expect(orch.Shutdown(context.Background())).To(Succeed())
	})

	Context("When validating execute requests", func() {
		It("Should require a token", func() {
			_, err := orch.StartExecute(ExecuteRequest{Task: "do things"})
			Expect(errors.Is(err, ErrInvalidRequest)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("Token is required"))
			Expect(orch.Store().Count()).To(Equal(0))
		})

		It("Should require a task", func() {
			_, err := orch.StartExecute(ExecuteRequest{Token: "t"})
			Expect(err).To(MatchError(ContainSubstring("Task is required")))
		})

		It("Should reject unknown agents", func() {
			_, err := orch.StartExecute(ExecuteRequest{Token: "t", Task: "x", Agent: "gemini"})
			Expect(errors.Is(err, ErrInvalidRequest)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("unknown agent"))
			Expect(orch.Store().Count()).To(Equal(0))
		})
	})

	Context("When running an execute session without a repository", func() {
		It("Should complete in simulation mode with one placeholder file", func() {
			task := "Summarize the architecture " + test_utils.GenerateTestID("exec")
			sess, err := orch.StartExecute(ExecuteRequest{Token: "t", Task: task})
			Expect(err).NotTo(HaveOccurred())
			Expect(sess.Status()).To(BeElementOf(types.StatusPending, types.StatusRunning))

			snap := waitForTerminal(sess)
			logger.Log("Session %s finished with %s", snap.ID, snap.Status)

			Expect(snap.Status).To(Equal(types.StatusCompleted))
			Expect(snap.Simulated).To(BeTrue())
			Expect(snap.Config.Environment).To(Equal(DefaultEnvironment))
			Expect(snap.Config.Model).To(Equal(DefaultModel))
			Expect(snap.Files).To(HaveLen(1))
			Expect(snap.Files[0].Path).To(Equal("agent_output.md"))
			Expect(*snap.Files[0].Content).To(ContainSubstring(task))
			Expect(snap.CompletedAt).NotTo(BeNil())
			Expect(snap.CompletedAt.Before(snap.CreatedAt)).To(BeFalse())

			placeholder := filepath.Join(root, "sessions", snap.ID, "agent_output.md")
			Expect(placeholder).To(BeARegularFile())
		})

		It("Should keep progress timestamps in order", func() {
			sess, err := orch.StartExecute(ExecuteRequest{Token: "t", Task: "order"})
			Expect(err).NotTo(HaveOccurred())
			snap := waitForTerminal(sess)

			Expect(len(snap.Progress)).To(BeNumerically(">", 3))
			for i := 1; i < len(snap.Progress); i++ {
				Expect(snap.Progress[i].Time.Before(snap.Progress[i-1].Time)).To(BeFalse())
			}
		})
	})

	Context("When running an execute session with a repository", Label(test_constants.LabelGit), func() {
		BeforeEach(func() {
			if !test_utils.GitAvailable() || config.ShouldSkipGitTests() {
				Skip("git is not available")
			}
		})

		It("Should commit the agent's work and push it to the current branch", func() {
			bare := test_utils.CreateBareRepository(GinkgoT().TempDir(), "service")
			task := "Document the service endpoints " + test_utils.GetRandomString(8)

			sess, err := orch.StartExecute(ExecuteRequest{
				Token:       "t",
				Task:        task,
				GitHubRepo:  bare,
				GitHubToken: "unused-for-local-remotes",
			})
			Expect(err).NotTo(HaveOccurred())

			snap := waitForTerminal(sess)
			logger.Log("Progress: %v", snap.Progress)

			Expect(snap.Status).To(Equal(types.StatusCompleted))
			Expect(snap.Warnings).To(BeEmpty())
			Expect(snap.Files).To(HaveLen(1))
			Expect(snap.Files[0].Path).To(Equal("agent_output.md"))
			Expect(snap.Files[0].Type).To(Equal(types.ChangeCreated))

			Expect(test_utils.RunGit(bare, "rev-list", "--count", "main")).To(Equal("2"))
			subject := test_utils.RunGit(bare, "log", "-1", "--format=%s", "main")
			Expect(subject).To(HavePrefix(string([]rune(task)[:30])))
			Expect(filepath.Join(root, "service", "agent_output.md")).To(BeARegularFile())
		})

		It("Should fail the session when the clone fails", func() {
			sess, err := orch.StartExecute(ExecuteRequest{
				Token:       "t",
				Task:        "never runs",
				GitHubRepo:  filepath.Join(GinkgoT().TempDir(), "missing.git"),
				GitHubToken: "g",
			})
			Expect(err).NotTo(HaveOccurred())

			snap := waitForTerminal(sess)
			Expect(snap.Status).To(Equal(types.StatusError))
			Expect(*snap.Error).To(ContainSubstring("failed to clone repository"))
			Expect(snap.Files).To(BeEmpty())
			Expect(snap.Simulated).To(BeFalse())
		})
	})

	Context("When the agent binary is installed", func() {
		var binDir string

		BeforeEach(func() {
			binDir = GinkgoT().TempDir()
			lookPath := func(name string) (string, error) {
				p := filepath.Join(binDir, name)
				if _, err := os.Stat(p); err != nil {
					return "", err
				}
				return p, nil
			}
			replace(newTestOrchestrator(root, Options{MaxConcurrent: 1, QueueDepth: 1}, lookPath))
		})

		It("Should mark the session as error on a non-zero exit", func() {
			script := "#!/bin/sh\necho \"working on $2\"\nexit 3\n"
			Expect(os.WriteFile(filepath.Join(binDir, "claude"), []byte(script), 0755)).To(Succeed())

			sess, err := orch.StartExecute(ExecuteRequest{Token: "t", Task: "fail please"})
			Expect(err).NotTo(HaveOccurred())
			snap := waitForTerminal(sess)

			Expect(snap.Status).To(Equal(types.StatusError))
			Expect(snap.Error).NotTo(BeNil())
			Expect(*snap.Error).To(Equal("Agent exited with code 3"))
			Expect(snap.Output).To(ContainSubstring("working on fail please"))
			Expect(snap.Simulated).To(BeFalse())
		})

		It("Should stop a running agent process", func() {
			script := "#!/bin/sh\necho started\nsleep 30\n"
			Expect(os.WriteFile(filepath.Join(binDir, "codex"), []byte(script), 0755)).To(Succeed())

			sess, err := orch.StartExecute(ExecuteRequest{Token: "t", Task: "long", Agent: "codex"})
			Expect(err).NotTo(HaveOccurred())
			Eventually(func() []string {
				var msgs []string
				for _, p := range sess.Snapshot().Progress {
					msgs = append(msgs, p.Message)
				}
				return msgs
			}, 10*time.Second, 20*time.Millisecond).Should(ContainElement("started"))

			_, err = orch.Stop(sess.ID)
			Expect(err).NotTo(HaveOccurred())

			Consistently(func() types.SessionStatus {
				return sess.Status()
			}, 300*time.Millisecond, 50*time.Millisecond).Should(Equal(types.StatusStopped))
			Expect(sess.Snapshot().CompletedAt).NotTo(BeNil())
		})
	})

	Context("When the task queue is full", func() {
		It("Should reject the session and leave nothing behind", func() {
			replace(newTestOrchestrator(root, Options{MaxConcurrent: 1, QueueDepth: 1}, hiddenBinaries))
			orch.invoker.SimulationDelay = time.Minute

			first, err := orch.StartExecute(ExecuteRequest{Token: "t", Task: "first"})
			Expect(err).NotTo(HaveOccurred())
			Eventually(first.Status, 5*time.Second, 10*time.Millisecond).Should(Equal(types.StatusRunning))

			_, err = orch.StartExecute(ExecuteRequest{Token: "t", Task: "queued"})
			Expect(err).NotTo(HaveOccurred())

			_, err = orch.StartExecute(ExecuteRequest{Token: "t", Task: "rejected"})
			Expect(err).To(MatchError(ErrQueueFull))
			Expect(orch.Store().Count()).To(Equal(2))
		})
	})

	Context("When validating git-task requests", func() {
		It("Should require a git token and create no session", func() {
			_, err := orch.StartGitTask(GitTaskRequest{
				Token:      "t",
				Task:       "x",
				GitRepoURL: "https://github.com/acme/widgets.git",
			})
			Expect(errors.Is(err, ErrInvalidRequest)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("Git token is required"))
			Expect(orch.Store().Count()).To(Equal(0))
		})

		It("Should require a repository URL", func() {
			_, err := orch.StartGitTask(GitTaskRequest{Token: "t", Task: "x", GitToken: "g"})
			Expect(err).To(MatchError(ContainSubstring("Git repository URL is required")))
		})

		It("Should generate a branch name and hide the token", func() {
			fake := &scriptedGit{results: map[string]shell.Result{
				"clone": {ExitCode: 128, Stderr: "fatal: unable to access remote"},
			}}
			next := newTestOrchestrator(root, Options{MaxConcurrent: 1, QueueDepth: 1}, hiddenBinaries)
			next.driver = git.NewDriver(fake, root)
			replace(next)

			sess, err := orch.StartGitTask(GitTaskRequest{
				Token:      "t",
				Task:       "x",
				GitRepoURL: "git@github.com:acme/widgets.git",
				GitToken:   "ghp_secret",
			})
			Expect(err).NotTo(HaveOccurred())
			snap := sess.Snapshot()
			Expect(snap.Branch).To(HavePrefix("agent-task-"))
			Expect(snap.RepoURL).To(Equal("https://github.com/acme/widgets.git"))
			Expect(snap.Config.GitToken).To(Equal("ghp_secret"))

			snap = waitForTerminal(sess)
			Expect(snap.Status).To(Equal(types.StatusError))
			Expect(fake.ran()).To(Equal([]string{"clone"}))
		})
	})

	Context("When running a git task against a local bare repository", Label(test_constants.LabelGit, test_constants.LabelGitTask), func() {
		BeforeEach(func() {
			if !test_utils.GitAvailable() || config.ShouldSkipGitTests() {
				Skip("git is not available")
			}
		})

		It("Should clone, commit the placeholder and push the branch", func() {
			bare := test_utils.CreateBareRepository(GinkgoT().TempDir(), "widgets")
			task := "Implement the widget exporter with CSV and JSON output " + test_utils.GetRandomString(8)

			sess, err := orch.StartGitTask(GitTaskRequest{
				Token:      "t",
				Task:       task,
				GitRepoURL: bare,
				GitToken:   "unused-for-local-remotes",
				BranchName: "feature/export",
			})
			Expect(err).NotTo(HaveOccurred())

			snap := waitForTerminal(sess)
			logger.Log("Progress: %v", snap.Progress)

			Expect(snap.Status).To(Equal(types.StatusCompleted))
			Expect(snap.Warnings).To(BeEmpty())
			Expect(snap.Branch).To(Equal("feature/export"))
			Expect(snap.Files).To(HaveLen(1))
			Expect(snap.Files[0].Path).To(Equal("agent_output.md"))
			Expect(snap.Files[0].Type).To(Equal(types.ChangeCreated))
			Expect(*snap.Files[0].Content).To(ContainSubstring(task))

			Expect(test_utils.RemoteBranchExists(bare, "feature/export")).To(BeTrue())
			subject := test_utils.RunGit(bare, "log", "-1", "--format=%s", "feature/export")
			Expect(subject).To(HavePrefix(string([]rune(task)[:50])))
			count := test_utils.RunGit(bare, "rev-list", "--count", "main..feature/export")
			Expect(count).To(Equal("1"))
		})

		It("Should fail the session when the clone fails", func() {
			sess, err := orch.StartGitTask(GitTaskRequest{
				Token:      "t",
				Task:       "never runs",
				GitRepoURL: filepath.Join(GinkgoT().TempDir(), "missing.git"),
				GitToken:   "g",
			})
			Expect(err).NotTo(HaveOccurred())

			snap := waitForTerminal(sess)
			Expect(snap.Status).To(Equal(types.StatusError))
			Expect(*snap.Error).To(ContainSubstring("failed to clone repository"))
			Expect(snap.Files).To(BeEmpty())
		})

		It("Should record a warning when the push is rejected", func() {
			bare := test_utils.CreateBareRepository(GinkgoT().TempDir(), "locked")
			hook := filepath.Join(bare, "hooks", "pre-receive")
			Expect(os.WriteFile(hook, []byte("#!/bin/sh\necho rejected by policy\nexit 1\n"), 0755)).To(Succeed())

			sess, err := orch.StartGitTask(GitTaskRequest{Token: "t", Task: "blocked push", GitRepoURL: bare, GitToken: "g"})
			Expect(err).NotTo(HaveOccurred())

			snap := waitForTerminal(sess)
			Expect(snap.Status).To(Equal(types.StatusCompleted))
			Expect(snap.Warnings).To(HaveLen(1))
			Expect(snap.Warnings[0]).To(ContainSubstring("failed to push branch"))
			Expect(strings.Join(progressMessages(snap), "\n")).To(ContainSubstring("Warning: failed to push branch"))
		})

		It("Should serialize two tasks on the same repository", func() {
			bare := test_utils.CreateBareRepository(GinkgoT().TempDir(), "shared")

			a, err := orch.StartGitTask(GitTaskRequest{Token: "t", Task: "first task", GitRepoURL: bare, GitToken: "g", BranchName: "a"})
			Expect(err).NotTo(HaveOccurred())
			b, err := orch.StartGitTask(GitTaskRequest{Token: "t", Task: "second task", GitRepoURL: bare, GitToken: "g", BranchName: "b"})
			Expect(err).NotTo(HaveOccurred())

			Expect(waitForTerminal(a).Status).To(Equal(types.StatusCompleted))
			Expect(waitForTerminal(b).Status).To(Equal(types.StatusCompleted))
			Expect(test_utils.RemoteBranchExists(bare, "a")).To(BeTrue())
			Expect(test_utils.RemoteBranchExists(bare, "b")).To(BeTrue())
		})
	})
})

func progressMessages(snap types.SessionSnapshot) []string {
	out := make([]string, 0, len(snap.Progress))
	for _, p := range snap.Progress {
		out = append(out, p.Message)
	}
	return out
}
