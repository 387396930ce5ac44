// Package test_utils provides common utilities for testing HTTP handlers and API endpoints
package test_utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"orca-agent-backend/tests/config"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
)

// HTTPTestUtils provides utilities for testing HTTP endpoints
type HTTPTestUtils struct {
	recorder *httptest.ResponseRecorder
	context  *gin.Context
	engine   *gin.Engine
}

// NewHTTPTestUtils creates a new HTTP test utilities instance
func NewHTTPTestUtils() *HTTPTestUtils {
	gin.SetMode(gin.TestMode)
	return &HTTPTestUtils{
		recorder: httptest.NewRecorder(),
		engine:   gin.New(),
	}
}

// CreateTestGinContext creates a test Gin context with the given HTTP method, path, and body
func (h *HTTPTestUtils) CreateTestGinContext(method, path string, body interface{}) *gin.Context {
	var reqBody io.Reader
	if body != nil {
		if bodyStr, ok := body.(string); ok {
			reqBody = strings.NewReader(bodyStr)
		} else {
			jsonBody, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred(), "Failed to marshal request body to JSON")
			reqBody = bytes.NewBuffer(jsonBody)
		}
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	h.recorder = httptest.NewRecorder()
	h.context, _ = gin.CreateTestContext(h.recorder)
	h.context.Request = req

	return h.context
}

// SetParam adds a gin route parameter such as :id
func (h *HTTPTestUtils) SetParam(key, value string) {
	if h.context != nil {
		h.context.Params = append(h.context.Params, gin.Param{Key: key, Value: value})
	}
}

// SetHeader sets a request header on the current test context
func (h *HTTPTestUtils) SetHeader(key, value string) {
	if h.context != nil && h.context.Request != nil {
		h.context.Request.Header.Set(key, value)
	}
}

// Engine returns the gin engine so router-level tests can register routes
func (h *HTTPTestUtils) Engine() *gin.Engine {
	return h.engine
}

// ServeRequest sends a request through the engine's routes and records the response
func (h *HTTPTestUtils) ServeRequest(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred(), "Failed to marshal request body to JSON")
		reqBody = bytes.NewBuffer(jsonBody)
	}
	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	h.recorder = httptest.NewRecorder()
	h.engine.ServeHTTP(h.recorder, req)
	return h.recorder
}

// GetResponseRecorder returns the HTTP response recorder
func (h *HTTPTestUtils) GetResponseRecorder() *httptest.ResponseRecorder {
	return h.recorder
}

// GetResponseBody returns the response body as string
func (h *HTTPTestUtils) GetResponseBody() string {
	return h.recorder.Body.String()
}

// GetResponseJSON unmarshals the response body into the provided interface
// If target is a map[string]interface{}, it also adds the status code
func (h *HTTPTestUtils) GetResponseJSON(target interface{}) {
	err := json.Unmarshal(h.recorder.Body.Bytes(), target)
	Expect(err).NotTo(HaveOccurred(), "Failed to unmarshal response JSON")

	// Safely add status code if target is a map type
	if targetMap, ok := target.(*map[string]interface{}); ok && targetMap != nil {
		(*targetMap)["statusCode"] = h.recorder.Code
	}
}

// AssertHTTPStatus asserts the HTTP status code
func (h *HTTPTestUtils) AssertHTTPStatus(expectedStatus int) {
	Expect(h.recorder.Code).To(Equal(expectedStatus),
		fmt.Sprintf("Expected HTTP status %d, got %d. Response body: %s",
			expectedStatus, h.recorder.Code, h.GetResponseBody()))
}

// AssertHTTPSuccess asserts that the HTTP response is successful (2xx)
func (h *HTTPTestUtils) AssertHTTPSuccess() {
	Expect(h.recorder.Code).To(BeNumerically(">=", 200), "Expected successful HTTP status")
	Expect(h.recorder.Code).To(BeNumerically("<", 300), "Expected successful HTTP status")
}

// AssertHTTPError asserts that the HTTP response is an error (4xx or 5xx)
func (h *HTTPTestUtils) AssertHTTPError() {
	Expect(h.recorder.Code).To(BeNumerically(">=", 400), "Expected error HTTP status")
}

// AssertJSONContains asserts that the response JSON contains the expected key-value pairs
func (h *HTTPTestUtils) AssertJSONContains(expectedFields map[string]interface{}) {
	var responseData map[string]interface{}
	h.GetResponseJSON(&responseData)

	for key, expectedValue := range expectedFields {
		Expect(responseData).To(HaveKey(key), fmt.Sprintf("Response should contain key '%s'", key))
		Expect(responseData[key]).To(Equal(expectedValue),
			fmt.Sprintf("Expected '%s' to be '%v', got '%v'", key, expectedValue, responseData[key]))
	}
}

// AssertJSONStructure asserts that the response JSON has the expected structure
func (h *HTTPTestUtils) AssertJSONStructure(expectedKeys []string) {
	var responseData map[string]interface{}
	h.GetResponseJSON(&responseData)

	for _, key := range expectedKeys {
		Expect(responseData).To(HaveKey(key), fmt.Sprintf("Response should contain key '%s'", key))
	}
}

// AssertErrorMessage asserts that the response contains an error message
func (h *HTTPTestUtils) AssertErrorMessage(expectedMessage string) {
	var responseData map[string]interface{}
	h.GetResponseJSON(&responseData)

	Expect(responseData).To(HaveKey("error"), "Response should contain error field")
	errorMessage := responseData["error"].(string)
	Expect(errorMessage).To(ContainSubstring(expectedMessage),
		fmt.Sprintf("Expected error message to contain '%s', got '%s'", expectedMessage, errorMessage))
}

// HTTPClient represents a test HTTP client with retry capabilities
type HTTPClient struct {
	client         *http.Client
	baseURL        string
	defaultHeaders map[string]string
}

// NewHTTPClient creates a new test HTTP client
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: *config.APITimeout,
		},
		baseURL:        baseURL,
		defaultHeaders: make(map[string]string),
	}
}

// SetDefaultHeader sets a default header for all requests
func (c *HTTPClient) SetDefaultHeader(key, value string) {
	c.defaultHeaders[key] = value
}

// DoRequest performs an HTTP request, retrying transport errors and 5xx responses
func (c *HTTPClient) DoRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var payload []byte
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = jsonBody
	}

	var resp *http.Response
	var err error
	for attempt := 1; attempt <= *config.RetryAttempts; attempt++ {
		var req *http.Request
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		for key, value := range c.defaultHeaders {
			req.Header.Set(key, value)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err = c.client.Do(req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}

		if attempt < *config.RetryAttempts {
			if resp != nil {
				resp.Body.Close()
			}
			delay := time.Duration(attempt) * (*config.RetryDelay)
			if delay > *config.MaxRetryDelay {
				delay = *config.MaxRetryDelay
			}
			time.Sleep(delay)
		}
	}

	return resp, err
}

// GetJSON performs a GET request and unmarshals the response to target
func (c *HTTPClient) GetJSON(ctx context.Context, path string, target interface{}) error {
	resp, err := c.DoRequest(ctx, "GET", path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(target)
}

// PostJSON performs a POST request with JSON body
func (c *HTTPClient) PostJSON(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	return c.DoRequest(ctx, "POST", path, body)
}
