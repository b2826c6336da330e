package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mosteligible/mcp-codemode/internal/config"
	"github.com/mosteligible/mcp-codemode/internal/docker"
	"github.com/mosteligible/mcp-codemode/internal/sandbox"
)

// fakeSandbox implements Sandbox in memory for handler tests.
type fakeSandbox struct {
	mu       sync.Mutex
	acquired int
	released int
	files    map[string][]byte

	execResult sandbox.ExecResult
	execErr    error
	lastCode   string
	lastLang   string

	listing    string
	listingErr error
}

func newFakeSandbox() *fakeSandbox {
	return &fakeSandbox{files: make(map[string][]byte)}
}

func (f *fakeSandbox) Acquire(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquired++
	return "sandbox-1", nil
}

func (f *fakeSandbox) Release(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
}

func (f *fakeSandbox) ExecCode(ctx context.Context, id, code, language string) (sandbox.ExecResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCode = code
	f.lastLang = language
	return f.execResult, f.execErr
}

func (f *fakeSandbox) FileRead(ctx context.Context, id, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", docker.ErrNotFound, path)
	}
	return data, nil
}

func (f *fakeSandbox) FileWrite(ctx context.Context, id, path string, content []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = append([]byte(nil), content...)
	return len(content), nil
}

func (f *fakeSandbox) FileList(ctx context.Context, id, path string) (string, error) {
	return f.listing, f.listingErr
}

func (f *fakeSandbox) balanced() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquired == f.released
}

func testRegistry(box Sandbox) *Registry {
	cfg := &config.Config{
		GraphBaseURL:  "https://graph.microsoft.com/v1.0",
		GitHubBaseURL: "https://api.github.com",
	}
	return NewRegistry(box, cfg)
}

func callReq(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(res *mcp.CallToolResult) string {
	if len(res.Content) == 0 {
		return ""
	}
	if tc, ok := res.Content[0].(mcp.TextContent); ok {
		return tc.Text
	}
	return ""
}
