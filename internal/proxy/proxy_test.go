package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosteligible/mcp-codemode/internal/config"
	"github.com/mosteligible/mcp-codemode/internal/kv"
)

type fakeStore struct {
	tokens map[string]string
	err    error
}

func (s *fakeStore) GetToken(_ context.Context, opaqueID string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	token, ok := s.tokens[opaqueID]
	if !ok {
		return "", kv.ErrNotFound
	}
	return token, nil
}

func testRouter(t *testing.T, store TokenStore, mutate func(cfg *config.Config)) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		ProxyTimeout:  5 * time.Second,
		GraphBaseURL:  "http://graph.invalid",
		GitHubBaseURL: "http://github.invalid",
	}
	if mutate != nil {
		mutate(cfg)
	}

	f := New(store, cfg)
	router := gin.New()
	router.GET("/graph/*path", f.GraphHandler())
	router.POST("/graph/*path", f.GraphHandler())
	router.GET("/github/*path", f.GitHubHandler())
	router.POST("/github/*path", f.GitHubHandler())
	return router
}

func TestGraphMissingProxyID(t *testing.T) {
	router := testRouter(t, &fakeStore{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/graph/me", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unknown request, cannot continue!", w.Body.String())
}

func TestGraphUnknownProxyID(t *testing.T) {
	router := testRouter(t, &fakeStore{tokens: map[string]string{}}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/graph/me", nil)
	req.Header.Set("X-Proxy-ID", "nope")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unknown request, cannot continue!", w.Body.String())
}

func TestGraphStoreOutage(t *testing.T) {
	router := testRouter(t, &fakeStore{err: errors.New("redis: connection refused")}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/graph/me?$top=5", nil)
	req.Header.Set("X-Proxy-ID", "abc")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotContains(t, w.Body.String(), "abc", "response must not echo request data")
	assert.NotContains(t, w.Body.String(), "$top")
}

func TestGraphForwardInjectsBearerToken(t *testing.T) {
	var gotAuth, gotPath, gotQuery string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotAuth = req.Header.Get("Authorization")
		gotPath = req.URL.Path
		gotQuery = req.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"displayName":"Ada"}`))
	}))
	defer upstream.Close()

	store := &fakeStore{tokens: map[string]string{"abc": "graph-tok"}}
	router := testRouter(t, store, func(cfg *config.Config) {
		cfg.GraphBaseURL = upstream.URL
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/graph/me/messages?%24top=5", nil)
	req.Header.Set("X-Proxy-ID", "abc")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Bearer graph-tok", gotAuth)
	assert.Equal(t, "/me/messages", gotPath)
	assert.Equal(t, "%24top=5", gotQuery)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"displayName":"Ada"}`, w.Body.String())
}

func TestGraphForwardRelaysBodyAndContentType(t *testing.T) {
	var gotBody, gotContentType string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		gotBody = string(b)
		gotContentType = req.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
	}))
	defer upstream.Close()

	store := &fakeStore{tokens: map[string]string{"abc": "graph-tok"}}
	router := testRouter(t, store, func(cfg *config.Config) {
		cfg.GraphBaseURL = upstream.URL
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/graph/me/sendMail", strings.NewReader(`{"message":{}}`))
	req.Header.Set("X-Proxy-ID", "abc")
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, `{"message":{}}`, gotBody)
	assert.Equal(t, "application/json", gotContentType)
}

func TestGraphForwardDoesNotLeakCallerHeaders(t *testing.T) {
	var gotProxyID, gotCookie string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotProxyID = req.Header.Get("X-Proxy-ID")
		gotCookie = req.Header.Get("Cookie")
	}))
	defer upstream.Close()

	store := &fakeStore{tokens: map[string]string{"abc": "graph-tok"}}
	router := testRouter(t, store, func(cfg *config.Config) {
		cfg.GraphBaseURL = upstream.URL
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/graph/me", nil)
	req.Header.Set("X-Proxy-ID", "abc")
	req.Header.Set("Cookie", "session=secret")
	router.ServeHTTP(w, req)

	assert.Empty(t, gotProxyID)
	assert.Empty(t, gotCookie)
}

func TestGraphUpstreamStatusPreserved(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, `{"error":{"code":"InvalidAuthenticationToken"}}`, http.StatusUnauthorized)
	}))
	defer upstream.Close()

	store := &fakeStore{tokens: map[string]string{"abc": "expired"}}
	router := testRouter(t, store, func(cfg *config.Config) {
		cfg.GraphBaseURL = upstream.URL
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/graph/me", nil)
	req.Header.Set("X-Proxy-ID", "abc")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "InvalidAuthenticationToken")
}

func TestGraphUpstreamTimeout(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer upstream.Close()

	store := &fakeStore{tokens: map[string]string{"abc": "tok"}}
	router := testRouter(t, store, func(cfg *config.Config) {
		cfg.GraphBaseURL = upstream.URL
		cfg.ProxyTimeout = 20 * time.Millisecond
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/graph/me", nil)
	req.Header.Set("X-Proxy-ID", "abc")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestGraphUpstreamUnreachable(t *testing.T) {
	store := &fakeStore{tokens: map[string]string{"abc": "tok"}}
	router := testRouter(t, store, func(cfg *config.Config) {
		cfg.GraphBaseURL = "http://127.0.0.1:1"
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/graph/me", nil)
	req.Header.Set("X-Proxy-ID", "abc")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestGitHubForwardNoIDRequired(t *testing.T) {
	var gotAccept, gotAuth, gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotAccept = req.Header.Get("Accept")
		gotAuth = req.Header.Get("Authorization")
		gotPath = req.URL.Path
		_, _ = w.Write([]byte(`[]`))
	}))
	defer upstream.Close()

	router := testRouter(t, &fakeStore{}, func(cfg *config.Config) {
		cfg.GitHubBaseURL = upstream.URL
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/github/users/octocat/repos", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.github+json", gotAccept)
	assert.Empty(t, gotAuth, "no service token configured")
	assert.Equal(t, "/users/octocat/repos", gotPath)
}

func TestGitHubForwardAttachesServiceToken(t *testing.T) {
	var gotAuth string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotAuth = req.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer upstream.Close()

	router := testRouter(t, &fakeStore{}, func(cfg *config.Config) {
		cfg.GitHubBaseURL = upstream.URL
		cfg.GitHubToken = "gh-tok"
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/github/user", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, "Bearer gh-tok", gotAuth)
}
