package grazie

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"orca-agent-backend/logging"
)

// ProxyResponseTimeout bounds how long the proxy waits for upstream headers.
// Bodies may stream for longer.
const ProxyResponseTimeout = 300 * time.Second

// ProxyOptions configures NewProxy
type ProxyOptions struct {
	Environment string
	// BaseURL overrides the URL derived from Environment
	BaseURL string
	// Token is used for every request; when empty the caller's x-api-key is forwarded
	Token     string
	Transport http.RoundTripper
}

// Proxy forwards Anthropic-compatible requests to the gateway, swapping the
// caller's API key for the Grazie JWT header.
type Proxy struct {
	target *url.URL
	token  string
	proxy  *httputil.ReverseProxy
	log    *logrus.Entry
}

func NewProxy(opts ProxyOptions) (*Proxy, error) {
	base := Resolver(opts.BaseURL)(opts.Environment)
	target, err := url.Parse(base + "/anthropic/v1")
	if err != nil {
		return nil, fmt.Errorf("invalid gateway url %q: %w", base, err)
	}

	transport := opts.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.ResponseHeaderTimeout = ProxyResponseTimeout
		transport = t
	}

	p := &Proxy{
		target: target,
		token:  opts.Token,
		log:    logging.NewLogger("grazie-proxy"),
	}
	p.proxy = &httputil.ReverseProxy{
		Rewrite:       p.rewrite,
		Transport:     transport,
		FlushInterval: -1,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			p.log.WithError(err).WithField("path", r.URL.Path).Error("Proxy error")
			writeJSONError(w, http.StatusBadGateway, err.Error())
		},
	}
	return p, nil
}

// Target is the upstream URL every request path is appended to
func (p *Proxy) Target() string {
	return p.target.String()
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if p.tokenFor(r) == "" {
		writeJSONError(w, http.StatusUnauthorized, "No GRAZIE_API_TOKEN or x-api-key provided")
		return
	}
	p.log.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}).Info("Proxying request")
	p.proxy.ServeHTTP(w, r)
}

func (p *Proxy) tokenFor(r *http.Request) string {
	if p.token != "" {
		return p.token
	}
	return r.Header.Get("x-api-key")
}

func (p *Proxy) rewrite(pr *httputil.ProxyRequest) {
	token := p.tokenFor(pr.In)
	pr.SetURL(p.target)

	pr.Out.Header.Del("x-api-key")
	pr.Out.Header.Del("Authorization")
	pr.Out.Header.Del("Content-Length")
	pr.Out.Header.Set(AuthHeader, token)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
