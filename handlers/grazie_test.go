//go:build test

package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"orca-agent-backend/grazie"
	test_constants "orca-agent-backend/tests/constants"
	"orca-agent-backend/tests/logger"
	"orca-agent-backend/tests/test_utils"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakeGrazie stands in for the gateway client
type fakeGrazie struct {
	environment string
	validateErr error
	models      grazie.ModelList
	modelsErr   error
	reply       string
	chatErr     error

	chatModel   string
	chatMessage string
}

func (f *fakeGrazie) Environment() string { return f.environment }

func (f *fakeGrazie) ValidateToken(context.Context) error { return f.validateErr }

func (f *fakeGrazie) ListModels(context.Context) (grazie.ModelList, error) {
	return f.models, f.modelsErr
}

func (f *fakeGrazie) Chat(_ context.Context, model, message string) (string, error) {
	f.chatModel, f.chatMessage = model, message
	return f.reply, f.chatErr
}

var _ = Describe("Grazie Handlers", Label(test_constants.LabelUnit, test_constants.LabelHandlers, test_constants.LabelGrazie), func() {
	var (
		httpUtils   *test_utils.HTTPTestUtils
		fake        *fakeGrazie
		previousNew func(token, environment string) (GrazieClient, error)
		gotToken    string
		gotEnv      string
	)

	BeforeEach(func() {
		logger.Log("Setting up Grazie Handler test")
		httpUtils = test_utils.NewHTTPTestUtils()
		fake = &fakeGrazie{environment: "PREPROD"}
		previousNew = NewGrazieClient
		NewGrazieClient = func(token, environment string) (GrazieClient, error) {
			gotToken, gotEnv = token, environment
			return fake, nil
		}
	})

	AfterEach(func() {
		NewGrazieClient = previousNew
	})

	Describe("Request bodies", func() {
		It("Should reject malformed JSON on every endpoint", func() {
			gotToken = ""
			for _, tc := range []struct {
				path    string
				handler gin.HandlerFunc
			}{
				{"/api/validate_token", ValidateToken},
				{"/api/models", ListModels},
				{"/api/chat", Chat},
			} {
				context := httpUtils.CreateTestGinContext("POST", tc.path, `{"token": "jwt",`)
				tc.handler(context)
				httpUtils.AssertHTTPStatus(http.StatusBadRequest)
				httpUtils.AssertErrorMessage("Invalid request body")
			}
			Expect(gotToken).To(BeEmpty(), "no gateway client should be built")
		})
	})

	Describe("ValidateToken", func() {
		It("Should require a token", func() {
			context := httpUtils.CreateTestGinContext("POST", "/api/validate_token", map[string]string{})

			ValidateToken(context)

			httpUtils.AssertHTTPStatus(http.StatusBadRequest)
			httpUtils.AssertJSONContains(map[string]interface{}{"valid": false, "error": "No token provided"})
		})

		It("Should accept a valid token", func() {
			context := httpUtils.CreateTestGinContext("POST", "/api/validate_token", map[string]string{
				"token":       "jwt",
				"environment": "STAGING",
			})

			ValidateToken(context)

			httpUtils.AssertHTTPStatus(http.StatusOK)
			httpUtils.AssertJSONContains(map[string]interface{}{"valid": true, "environment": "PREPROD"})
			httpUtils.AssertJSONStructure([]string{"timestamp"})
			Expect(gotToken).To(Equal("jwt"))
			Expect(gotEnv).To(Equal("STAGING"))
		})

		It("Should reject a token the gateway refuses", func() {
			fake.validateErr = &grazie.UpstreamError{StatusCode: http.StatusForbidden, Body: "denied"}
			context := httpUtils.CreateTestGinContext("POST", "/api/validate_token", map[string]string{"token": "jwt"})

			ValidateToken(context)

			httpUtils.AssertHTTPStatus(http.StatusUnauthorized)
			httpUtils.AssertJSONContains(map[string]interface{}{
				"valid":   false,
				"error":   "Token validation failed: 403",
				"details": "denied",
			})
		})

		It("Should reject an expired token", func() {
			fake.validateErr = grazie.ErrTokenExpired
			context := httpUtils.CreateTestGinContext("POST", "/api/validate_token", map[string]string{"token": "jwt"})

			ValidateToken(context)

			httpUtils.AssertHTTPStatus(http.StatusUnauthorized)
			httpUtils.AssertErrorMessage("expired")
		})
	})

	Describe("ListModels", func() {
		It("Should require a token", func() {
			context := httpUtils.CreateTestGinContext("POST", "/api/models", map[string]string{})

			ListModels(context)

			httpUtils.AssertHTTPStatus(http.StatusBadRequest)
			httpUtils.AssertErrorMessage("Token is required")
		})

		It("Should return gateway models", func() {
			fake.models = grazie.ModelList{Models: []grazie.Model{grazie.FormatModel("gpt-4o")}}
			context := httpUtils.CreateTestGinContext("POST", "/api/models", map[string]string{"token": "jwt"})

			ListModels(context)

			httpUtils.AssertHTTPStatus(http.StatusOK)
			var body map[string]interface{}
			httpUtils.GetResponseJSON(&body)
			Expect(body).NotTo(HaveKey("note"))
			Expect(body["models"]).To(HaveLen(1))
		})

		It("Should fall back to defaults with a note", func() {
			fake.models = grazie.ModelList{Models: grazie.DefaultModels(), Note: grazie.DefaultModelsNote}
			fake.modelsErr = errors.New("connection refused")
			context := httpUtils.CreateTestGinContext("POST", "/api/models", map[string]string{"token": "jwt"})

			ListModels(context)

			httpUtils.AssertHTTPStatus(http.StatusOK)
			httpUtils.AssertJSONContains(map[string]interface{}{"note": grazie.DefaultModelsNote})
		})
	})

	Describe("Chat", func() {
		It("Should require a token and a message", func() {
			context := httpUtils.CreateTestGinContext("POST", "/api/chat", map[string]string{"message": "hi"})
			Chat(context)
			httpUtils.AssertHTTPStatus(http.StatusBadRequest)
			httpUtils.AssertErrorMessage("Token is required")

			context = httpUtils.CreateTestGinContext("POST", "/api/chat", map[string]string{"token": "jwt"})
			Chat(context)
			httpUtils.AssertHTTPStatus(http.StatusBadRequest)
			httpUtils.AssertErrorMessage("Message is required")
		})

		It("Should answer with the model response", func() {
			fake.reply = "hello there"
			context := httpUtils.CreateTestGinContext("POST", "/api/chat", map[string]string{"token": "jwt", "message": "hi"})

			Chat(context)

			httpUtils.AssertHTTPStatus(http.StatusOK)
			httpUtils.AssertJSONContains(map[string]interface{}{
				"response":    "hello there",
				"model":       grazie.DefaultChatModel,
				"environment": "PREPROD",
			})
			Expect(fake.chatModel).To(Equal(grazie.DefaultChatModel))
			Expect(fake.chatMessage).To(Equal("hi"))
		})

		It("Should pass upstream status codes through", func() {
			fake.chatErr = &grazie.UpstreamError{StatusCode: http.StatusTooManyRequests, Body: "slow down"}
			context := httpUtils.CreateTestGinContext("POST", "/api/chat", map[string]string{
				"token":   "jwt",
				"message": "hi",
				"model":   "openai/gpt-4o",
			})

			Chat(context)

			httpUtils.AssertHTTPStatus(http.StatusTooManyRequests)
			httpUtils.AssertJSONContains(map[string]interface{}{
				"error":   "AI Platform request failed: 429",
				"details": "slow down",
			})
		})

		It("Should map timeouts to 504", func() {
			fake.chatErr = fmt.Errorf("%w: deadline", grazie.ErrTimeout)
			context := httpUtils.CreateTestGinContext("POST", "/api/chat", map[string]string{"token": "jwt", "message": "hi"})

			Chat(context)

			httpUtils.AssertHTTPStatus(http.StatusGatewayTimeout)
			httpUtils.AssertErrorMessage("Request timeout")
		})
	})
})
