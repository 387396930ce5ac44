//go:build test

package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"

	test_constants "orca-agent-backend/tests/constants"
	"orca-agent-backend/tests/logger"
	"orca-agent-backend/tests/test_utils"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Middleware Handlers", Label(test_constants.LabelUnit, test_constants.LabelHandlers, test_constants.LabelMiddleware), func() {
	var (
		httpUtils *test_utils.HTTPTestUtils
	)

	BeforeEach(func() {
		logger.Log("Setting up Middleware Handler test")
		httpUtils = test_utils.NewHTTPTestUtils()
		engine := httpUtils.Engine()
		engine.Use(RequestLogger(), Recovery())
		engine.GET("/panic", func(c *gin.Context) {
			panic("secret detail")
		})
		engine.GET("/ok", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": true})
		})
	})

	Context("When a handler panics", func() {
		It("Should answer 500 without leaking the panic value", func() {
			rec := httpUtils.ServeRequest("GET", "/panic", nil)

			httpUtils.AssertHTTPStatus(http.StatusInternalServerError)
			httpUtils.AssertJSONContains(map[string]interface{}{"error": "Internal server error"})
			Expect(rec.Body.String()).NotTo(ContainSubstring("secret detail"))

			logger.Log("Panic recovered with a generic body")
		})

		It("Should keep serving after a panic", func() {
			httpUtils.ServeRequest("GET", "/panic", nil)
			httpUtils.ServeRequest("GET", "/ok", nil)

			httpUtils.AssertHTTPStatus(http.StatusOK)
		})
	})

	Context("When forwarding to long-lived endpoints", func() {
		AfterEach(func() {
			RPCServer = nil
			GrazieProxy = nil
		})

		It("Should answer 503 when nothing is configured", func() {
			context := httpUtils.CreateTestGinContext("GET", "/websocket", nil)
			AgentWebSocket(context)
			httpUtils.AssertHTTPStatus(http.StatusServiceUnavailable)

			context = httpUtils.CreateTestGinContext("POST", "/v1/messages", nil)
			ProxyRequest(context)
			httpUtils.AssertHTTPStatus(http.StatusServiceUnavailable)
		})

		It("Should hand the request to the configured proxy", func() {
			GrazieProxy = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusAccepted)
				_, _ = w.Write([]byte(strings.ToUpper(r.URL.Path)))
			})
			httpUtils.Engine().NoRoute(ProxyRequest)

			req := httptest.NewRequest("POST", "/v1/messages", nil)
			rec := httptest.NewRecorder()
			httpUtils.Engine().ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusAccepted))
			Expect(rec.Body.String()).To(Equal("/V1/MESSAGES"))
		})
	})
})
