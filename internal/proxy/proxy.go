// Package proxy implements the authenticating forwarder for Microsoft
// Graph and GitHub. Callers present an opaque X-Proxy-ID instead of a
// credential; the proxy resolves it in the KV store and injects the bearer
// token upstream.
package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mosteligible/mcp-codemode/internal/config"
	"github.com/mosteligible/mcp-codemode/internal/kv"
	"github.com/mosteligible/mcp-codemode/internal/logging"
	"github.com/mosteligible/mcp-codemode/internal/metrics"
)

// unknownRequestBody is the 401 response for absent or unresolvable
// opaque IDs. Deliberately uniform so callers cannot probe which IDs exist.
const unknownRequestBody = "unknown request, cannot continue!"

// TokenStore resolves opaque IDs to bearer tokens. Satisfied by *kv.Store.
type TokenStore interface {
	GetToken(ctx context.Context, opaqueID string) (string, error)
}

// Forwarder relays GET/POST requests to the Graph and GitHub upstreams.
type Forwarder struct {
	store       TokenStore
	client      *http.Client
	graphBase   string
	githubBase  string
	githubToken string
}

// New creates a forwarder with a pooled transport and the configured
// per-request upstream timeout.
func New(store TokenStore, cfg *config.Config) *Forwarder {
	return &Forwarder{
		store: store,
		client: &http.Client{
			Timeout: cfg.ProxyTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		graphBase:   cfg.GraphBaseURL,
		githubBase:  cfg.GitHubBaseURL,
		githubToken: cfg.GitHubToken,
	}
}

// GraphHandler proxies to Microsoft Graph. The caller must present an
// X-Proxy-ID that resolves to a bearer token in the KV store.
func (f *Forwarder) GraphHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		opaqueID := c.GetHeader("X-Proxy-ID")
		if opaqueID == "" {
			c.String(http.StatusUnauthorized, unknownRequestBody)
			return
		}

		token, err := f.store.GetToken(c.Request.Context(), opaqueID)
		if errors.Is(err, kv.ErrNotFound) {
			c.String(http.StatusUnauthorized, unknownRequestBody)
			return
		}
		if err != nil {
			// Store outage: respond with a generic body; never echo
			// anything from the original request.
			logging.L().Error("credential lookup failed", zap.Error(err))
			c.String(http.StatusBadGateway, "credential store unavailable")
			return
		}

		f.forward(c, "graph", f.graphBase, "Bearer "+token, nil)
	}
}

// GitHubHandler proxies to the GitHub API. No opaque-ID lookup; a fixed
// accept header and, when configured, a service token are attached.
func (f *Forwarder) GitHubHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := ""
		if f.githubToken != "" {
			auth = "Bearer " + f.githubToken
		}
		f.forward(c, "github", f.githubBase, auth, map[string]string{
			"Accept": "application/vnd.github+json",
		})
	}
}

// forward relays method, path, query string, and body to the upstream and
// streams status, content-type, and body bytes back.
func (f *Forwarder) forward(c *gin.Context, upstream, base, auth string, extraHeaders map[string]string) {
	start := time.Now()
	m := metrics.Get()

	target := base + "/" + strings.TrimPrefix(c.Param("path"), "/")
	if raw := c.Request.URL.RawQuery; raw != "" {
		target += "?" + raw
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, target, c.Request.Body)
	if err != nil {
		c.String(http.StatusBadGateway, "invalid upstream request")
		return
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if ct := c.GetHeader("Content-Type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	// Method and path only; query strings and headers can carry secrets.
	logging.L().Info("proxy forward",
		zap.String("upstream", upstream),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Param("path")),
	)

	resp, err := f.client.Do(req)
	if err != nil {
		status := http.StatusBadGateway
		if isTimeout(err) {
			status = http.StatusGatewayTimeout
		}
		m.ObserveProxyForward(upstream, status, time.Since(start))
		c.String(status, "upstream request failed")
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		m.ObserveProxyForward(upstream, http.StatusBadGateway, time.Since(start))
		c.String(http.StatusBadGateway, "upstream response read failed")
		return
	}

	m.ObserveProxyForward(upstream, resp.StatusCode, time.Since(start))
	c.Data(resp.StatusCode, resp.Header.Get("Content-Type"), body)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}
