// Package tools declares the MCP tool surface: sandboxed code execution,
// workspace file I/O, and the Microsoft Graph / GitHub API wrappers.
package tools

import (
	"context"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mosteligible/mcp-codemode/internal/config"
	"github.com/mosteligible/mcp-codemode/internal/sandbox"
)

// Sandbox is the pool surface tool handlers depend on. Satisfied by
// *sandbox.Pool; tests substitute a fake.
type Sandbox interface {
	Acquire(ctx context.Context) (string, error)
	Release(id string)
	ExecCode(ctx context.Context, id, code, language string) (sandbox.ExecResult, error)
	FileRead(ctx context.Context, id, path string) ([]byte, error)
	FileWrite(ctx context.Context, id, path string, content []byte) (int, error)
	FileList(ctx context.Context, id, path string) (string, error)
}

// ToolInfo describes one registered tool for the /tools listing.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Registry builds the two tool surfaces over a shared sandbox pool and HTTP
// client.
type Registry struct {
	box  Sandbox
	cfg  *config.Config
	http *http.Client
}

// NewRegistry creates a tool registry backed by the given sandbox pool.
func NewRegistry(box Sandbox, cfg *config.Config) *Registry {
	return &Registry{
		box:  box,
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// Full returns the complete tool set: code execution, workspace file I/O,
// and the third-party API wrappers.
func (r *Registry) Full() []server.ServerTool {
	tools := r.sandboxTools()
	return append(tools, r.apiTools()...)
}

// Restricted returns the surface without code execution or file I/O:
// third-party API wrappers only.
func (r *Registry) Restricted() []server.ServerTool {
	return r.apiTools()
}

// Describe lists the full surface's tools for the /tools endpoint.
func (r *Registry) Describe() []ToolInfo {
	infos := make([]ToolInfo, 0)
	for _, t := range r.Full() {
		infos = append(infos, ToolInfo{
			Name:        t.Tool.Name,
			Description: t.Tool.Description,
		})
	}
	return infos
}

func (r *Registry) sandboxTools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: executeCodeTool(), Handler: r.executeCode},
		{Tool: readFileTool(), Handler: r.readFile},
		{Tool: writeFileTool(), Handler: r.writeFile},
		{Tool: listFilesTool(), Handler: r.listFiles},
	}
}

func (r *Registry) apiTools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: graphUserInfoTool(), Handler: r.graphGetUserInformation},
		{Tool: graphMailFoldersTool(), Handler: r.graphListMailFolders},
		{Tool: graphMailboxMessagesTool(), Handler: r.graphListMailboxMessages},
		{Tool: graphUserMeetingsTool(), Handler: r.graphListUserMeetings},
		{Tool: githubRepositoriesTool(), Handler: r.githubListUserRepositories},
		{Tool: githubPullRequestsTool(), Handler: r.githubListPullRequests},
		{Tool: githubIssuesTool(), Handler: r.githubListIssues},
	}
}

// errorResult wraps a failure message into an MCP error result. The text
// keeps the Error prefix so text-only consumers can still recognize failed
// calls, and the envelope carries a first-class isError flag.
func errorResult(msg string) *mcp.CallToolResult {
	return mcp.NewToolResultError(msg)
}
