//go:build test

package handlers

import (
	"net/http"
	"time"

	"orca-agent-backend/orchestrator"
	"orca-agent-backend/tests/config"
	test_constants "orca-agent-backend/tests/constants"
	"orca-agent-backend/tests/logger"
	"orca-agent-backend/tests/test_utils"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func registerAgentRoutes(r *gin.Engine) {
	api := r.Group("/api/agent")
	api.POST("/execute", ExecuteAgent)
	api.POST("/git-task", GitTask)
	api.GET("/status/:id", GetAgentStatus)
	api.POST("/stop/:id", StopAgent)
	api.GET("/files/:id", GetAgentFiles)
	api.GET("/sessions", ListAgentSessions)
}

var _ = Describe("Agent Handlers", Label(test_constants.LabelUnit, test_constants.LabelHandlers, test_constants.LabelAgent), func() {
	var (
		httpUtils *test_utils.HTTPTestUtils
	)

	decode := func() map[string]interface{} {
		var body map[string]interface{}
		httpUtils.GetResponseJSON(&body)
		return body
	}

	statusOf := func(id string) string {
		httpUtils.ServeRequest("GET", "/api/agent/status/"+id, nil)
		return decode()["status"].(string)
	}

	BeforeEach(func() {
		logger.Log("Setting up Agent Handler test")
		httpUtils = test_utils.NewHTTPTestUtils()
		registerAgentRoutes(httpUtils.Engine())
		SetupAgents(GinkgoT().TempDir(), orchestrator.Options{MaxConcurrent: 2, QueueDepth: 4})
	})

	AfterEach(func() {
		TeardownAgents()
	})

	Context("When starting an execute session", func() {
		It("Should reject a missing token", func() {
			httpUtils.ServeRequest("POST", "/api/agent/execute", map[string]string{"task": "write docs"})

			httpUtils.AssertHTTPStatus(http.StatusBadRequest)
			httpUtils.AssertErrorMessage("Token is required")
			Expect(Agents.Store().Count()).To(Equal(0))
		})

		It("Should reject a missing task", func() {
			httpUtils.ServeRequest("POST", "/api/agent/execute", map[string]string{"token": "tok"})

			httpUtils.AssertHTTPStatus(http.StatusBadRequest)
			httpUtils.AssertErrorMessage("Task is required")
		})

		It("Should reject an unknown agent", func() {
			httpUtils.ServeRequest("POST", "/api/agent/execute", map[string]string{"token": "tok", "task": "x", "agent": "copilot"})

			httpUtils.AssertHTTPStatus(http.StatusBadRequest)
			httpUtils.AssertErrorMessage("unknown agent")
		})

		It("Should reject a malformed body", func() {
			httpUtils.ServeRequest("POST", "/api/agent/execute", nil)

			httpUtils.AssertHTTPStatus(http.StatusBadRequest)
			httpUtils.AssertErrorMessage("Invalid request body")
		})

		It("Should start a session and complete it in simulation mode", func() {
			httpUtils.ServeRequest("POST", "/api/agent/execute", map[string]string{"token": "tok", "task": "write docs"})

			httpUtils.AssertHTTPStatus(http.StatusOK)
			body := decode()
			Expect(body).To(HaveKeyWithValue("status", "started"))
			Expect(body).To(HaveKeyWithValue("agent", "claude-code"))
			id := body["session_id"].(string)
			Expect(id).NotTo(BeEmpty())

			Eventually(func() string { return statusOf(id) }, *config.SessionTimeout, 20*time.Millisecond).Should(Equal("completed"))

			httpUtils.ServeRequest("GET", "/api/agent/files/"+id, nil)
			httpUtils.AssertHTTPStatus(http.StatusOK)
			files := decode()["files"].([]interface{})
			Expect(files).To(HaveLen(1))
			Expect(files[0]).To(HaveKeyWithValue("type", "created"))
			Expect(files[0].(map[string]interface{})["content"]).To(ContainSubstring("write docs"))

			httpUtils.ServeRequest("GET", "/api/agent/status/"+id, nil)
			status := decode()
			Expect(status).To(HaveKeyWithValue("simulated", true))
			Expect(status).NotTo(HaveKey("token"))
			Expect(status["completed_at"]).NotTo(BeNil())

			logger.Log("Session %s completed in simulation mode", id)
		})
	})

	Context("When starting a git task", func() {
		It("Should reject a missing git token without creating a session", func() {
			httpUtils.ServeRequest("POST", "/api/agent/git-task", map[string]string{
				"token":        "tok",
				"task":         "fix bug",
				"git_repo_url": "https://github.com/acme/widgets.git",
			})

			httpUtils.AssertHTTPStatus(http.StatusBadRequest)
			httpUtils.AssertErrorMessage("Git token is required")
			Expect(Agents.Store().Count()).To(Equal(0))
		})

		It("Should reject a missing repository URL", func() {
			httpUtils.ServeRequest("POST", "/api/agent/git-task", map[string]string{
				"token":     "tok",
				"task":      "fix bug",
				"git_token": "ghp",
			})

			httpUtils.AssertHTTPStatus(http.StatusBadRequest)
			httpUtils.AssertErrorMessage("Git repository URL is required")
		})

		It("Should return the requested branch", func() {
			if !test_utils.GitAvailable() {
				Skip("git is not installed")
			}
			bare := test_utils.CreateBareRepository(GinkgoT().TempDir(), "widgets")

			httpUtils.ServeRequest("POST", "/api/agent/git-task", map[string]string{
				"token":        "tok",
				"task":         "fix bug",
				"git_repo_url": bare,
				"git_token":    "ghp",
				"branch_name":  "feature/fix",
			})

			httpUtils.AssertHTTPStatus(http.StatusOK)
			body := decode()
			Expect(body).To(HaveKeyWithValue("branch", "feature/fix"))
			Expect(body).To(HaveKeyWithValue("status", "started"))

			id := body["session_id"].(string)
			Eventually(func() string { return statusOf(id) }, *config.SessionTimeout, 20*time.Millisecond).Should(Equal("completed"))
			Expect(test_utils.RemoteBranchExists(bare, "feature/fix")).To(BeTrue())
		})
	})

	Context("When reading sessions", func() {
		It("Should return 404 for unknown ids", func() {
			httpUtils.ServeRequest("GET", "/api/agent/status/does-not-exist", nil)
			httpUtils.AssertHTTPStatus(http.StatusNotFound)
			httpUtils.AssertErrorMessage("Session not found")

			httpUtils.ServeRequest("GET", "/api/agent/files/does-not-exist", nil)
			httpUtils.AssertHTTPStatus(http.StatusNotFound)

			httpUtils.ServeRequest("POST", "/api/agent/stop/does-not-exist", nil)
			httpUtils.AssertHTTPStatus(http.StatusNotFound)
		})

		It("Should list sessions in creation order", func() {
			first, err := Agents.StartExecute(orchestrator.ExecuteRequest{Token: "t", Task: "first"})
			Expect(err).NotTo(HaveOccurred())
			second, err := Agents.StartExecute(orchestrator.ExecuteRequest{Token: "t", Task: "second", Agent: "codex"})
			Expect(err).NotTo(HaveOccurred())

			httpUtils.ServeRequest("GET", "/api/agent/sessions", nil)

			httpUtils.AssertHTTPStatus(http.StatusOK)
			list := decode()["sessions"].([]interface{})
			Expect(list).To(HaveLen(2))
			Expect(list[0]).To(HaveKeyWithValue("session_id", first.ID))
			Expect(list[1]).To(HaveKeyWithValue("session_id", second.ID))
			Expect(list[1]).To(HaveKeyWithValue("agent", "codex"))
		})
	})

	Context("When stopping sessions", func() {
		It("Should stop a running session", func() {
			TeardownAgents()
			orch := SetupAgentsWithDelay(GinkgoT().TempDir(), orchestrator.Options{MaxConcurrent: 1, QueueDepth: 1}, time.Minute)
			sess, err := orch.StartExecute(orchestrator.ExecuteRequest{Token: "t", Task: "long"})
			Expect(err).NotTo(HaveOccurred())

			httpUtils.ServeRequest("POST", "/api/agent/stop/"+sess.ID, nil)

			httpUtils.AssertHTTPStatus(http.StatusOK)
			httpUtils.AssertJSONContains(map[string]interface{}{
				"session_id": sess.ID,
				"status":     "stopped",
				"message":    "Session stopped",
			})
			Expect(statusOf(sess.ID)).To(Equal("stopped"))
		})

		It("Should leave a finished session unchanged", func() {
			sess, err := Agents.StartExecute(orchestrator.ExecuteRequest{Token: "t", Task: "quick"})
			Expect(err).NotTo(HaveOccurred())
			Eventually(func() string { return statusOf(sess.ID) }, *config.SessionTimeout, 20*time.Millisecond).Should(Equal("completed"))

			httpUtils.ServeRequest("POST", "/api/agent/stop/"+sess.ID, nil)

			httpUtils.AssertHTTPStatus(http.StatusOK)
			httpUtils.AssertJSONContains(map[string]interface{}{
				"status":  "completed",
				"message": "Session already finished",
			})
		})
	})

	Context("When the queue is full", func() {
		It("Should answer 503 and keep no session", func() {
			TeardownAgents()
			SetupAgentsWithDelay(GinkgoT().TempDir(), orchestrator.Options{MaxConcurrent: 1, QueueDepth: 1}, time.Minute)

			body := map[string]string{"token": "t", "task": "busy"}
			codes := []int{}
			for i := 0; i < 4; i++ {
				codes = append(codes, httpUtils.ServeRequest("POST", "/api/agent/execute", body).Code)
			}

			Expect(codes).To(ContainElement(http.StatusServiceUnavailable))
			rejected := 0
			for _, code := range codes {
				if code == http.StatusServiceUnavailable {
					rejected++
				}
			}
			Expect(Agents.Store().Count()).To(Equal(len(codes) - rejected))
		})
	})
})
