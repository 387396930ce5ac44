package grazie

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
	"github.com/sirupsen/logrus"

	"orca-agent-backend/logging"
)

const (
	ValidateTimeout = 10 * time.Second
	ChatTimeout     = 60 * time.Second

	// placeholderKey satisfies the SDKs; the gateway authenticates by AuthHeader
	placeholderKey = "use-grazie-token"
)

// ErrTimeout is returned when the gateway did not answer in time
var ErrTimeout = errors.New("request timeout")

// UpstreamError is a non-2xx answer from the gateway
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("gateway returned %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Body)
}

// Options configures a Client
type Options struct {
	Token       string
	Environment string
	// BaseURL overrides the URL derived from Environment
	BaseURL    string
	HTTPClient *http.Client
}

// Client is a per-token gateway client. It is cheap to build and is
// normally created per request.
type Client struct {
	token       string
	environment string
	baseURL     string

	anthropic anthropic.Client
	openai    openai.Client
	log       *logrus.Entry
}

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, ErrMissingToken
	}
	env := NormalizeEnvironment(opts.Environment)
	baseURL := Resolver(opts.BaseURL)(env)
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	anthropicOpts := []anthropicoption.RequestOption{
		anthropicoption.WithHTTPClient(httpClient),
		anthropicoption.WithBaseURL(baseURL + "/anthropic/"),
		anthropicoption.WithAPIKey(placeholderKey),
		anthropicoption.WithHeader(AuthHeader, opts.Token),
		anthropicoption.WithMaxRetries(0),
	}
	openaiOpts := []openaioption.RequestOption{
		openaioption.WithHTTPClient(httpClient),
		openaioption.WithBaseURL(baseURL + "/openai/v1/"),
		openaioption.WithAPIKey(placeholderKey),
		openaioption.WithHeader(AuthHeader, opts.Token),
		openaioption.WithMaxRetries(0),
	}

	return &Client{
		token:       opts.Token,
		environment: env,
		baseURL:     baseURL,
		anthropic:   anthropic.NewClient(anthropicOpts...),
		openai:      openai.NewClient(openaiOpts...),
		log:         logging.NewLogger("grazie"),
	}, nil
}

// Environment is the normalized environment name the client targets
func (c *Client) Environment() string {
	return c.environment
}

// BaseURL is the gateway base URL the client targets
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ValidateToken asks the gateway whether the token is accepted. Expired
// JWTs are rejected without a round trip.
func (c *Client) ValidateToken(ctx context.Context) error {
	if _, err := InspectToken(c.token); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, ValidateTimeout)
	defer cancel()

	if _, err := c.openai.Models.List(ctx); err != nil {
		return translateError(err)
	}
	return nil
}

// translateError maps SDK and transport errors onto UpstreamError and ErrTimeout
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return &UpstreamError{StatusCode: anthropicErr.StatusCode, Body: anthropicErr.RawJSON()}
	}
	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		return &UpstreamError{StatusCode: openaiErr.StatusCode, Body: openaiErr.RawJSON()}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
