// Package server wires the gin router: two stateless MCP mounts, the
// credential proxy routes, and the operational endpoints.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mosteligible/mcp-codemode/internal/config"
	"github.com/mosteligible/mcp-codemode/internal/logging"
	"github.com/mosteligible/mcp-codemode/internal/metrics"
	"github.com/mosteligible/mcp-codemode/internal/middleware"
	"github.com/mosteligible/mcp-codemode/internal/proxy"
	"github.com/mosteligible/mcp-codemode/internal/tools"
)

// Version is the reported MCP server version.
const Version = "1.0.0"

const serverInstructions = "This MCP server provides sandboxed code execution. " +
	"Use the execute_code tool to run Python, Bash, or Node.js code " +
	"in an isolated Docker container with no network access. " +
	"Use the sandbox file tools (sandbox_read_file, sandbox_write_file, " +
	"sandbox_list_files) to interact with the /workspace directory inside " +
	"the sandbox."

// Server is the HTTP front for the MCP tool surfaces and the credential
// proxy.
type Server struct {
	cfg    *config.Config
	router *gin.Engine
	httpd  *http.Server
}

// New builds the router. Two MCP surfaces are mounted: /mcp with the full
// tool set and /mcp-no-code-execute with the API wrappers only.
func New(cfg *config.Config, registry *tools.Registry, forwarder *proxy.Forwarder) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Recovery())
	router.Use(metrics.Middleware())

	fullMount := newMCPHandler(registry.Full())
	restrictedMount := newMCPHandler(registry.Restricted())

	// Both the bare and trailing-slash forms are accepted; MCP clients
	// disagree on which one they send.
	router.POST("/mcp", gin.WrapH(fullMount))
	router.POST("/mcp/", gin.WrapH(fullMount))
	router.POST("/mcp-no-code-execute", gin.WrapH(restrictedMount))
	router.POST("/mcp-no-code-execute/", gin.WrapH(restrictedMount))

	router.GET("/graph/*path", forwarder.GraphHandler())
	router.POST("/graph/*path", forwarder.GraphHandler())
	router.GET("/github/*path", forwarder.GitHubHandler())
	router.POST("/github/*path", forwarder.GitHubHandler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"mcp_url": cfg.MCPURL(),
		})
	})
	router.GET("/tools", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tools": registry.Describe()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{
		cfg:    cfg,
		router: router,
		httpd: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// newMCPHandler mounts a tool set behind a stateless streamable-HTTP
// transport. Request headers are folded into the tool context so handlers
// can pick up per-request credentials.
func newMCPHandler(toolSet []mcpserver.ServerTool) http.Handler {
	s := mcpserver.NewMCPServer(
		"mcp-codemode",
		Version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithInstructions(serverInstructions),
		mcpserver.WithRecovery(),
	)
	s.AddTools(toolSet...)

	return mcpserver.NewStreamableHTTPServer(s,
		mcpserver.WithStateLess(true),
		mcpserver.WithHTTPContextFunc(middleware.ContextFromRequest),
	)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	logging.L().Info("http server listening",
		zap.String("addr", s.cfg.Addr()),
		zap.String("mcp_url", s.cfg.MCPURL()),
	)
	if err := s.httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpd.Shutdown(ctx)
}
