package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mosteligible/mcp-codemode/internal/metrics"
	"github.com/mosteligible/mcp-codemode/internal/sandbox"
)

func executeCodeTool() mcp.Tool {
	return mcp.NewTool("execute_code",
		mcp.WithDescription("Execute code in an isolated Docker sandbox. "+
			"The sandbox has a /workspace directory for file operations. "+
			"Supported languages: python, bash, sh, node, javascript."),
		mcp.WithString("code",
			mcp.Description("The source code to execute."),
			mcp.Required()),
		mcp.WithString("language",
			mcp.Description("Programming language to use (default: python).")),
	)
}

func (r *Registry) executeCode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := req.RequireString("code")
	if err != nil {
		return errorResult(fmt.Sprintf("Error executing code: %v", err)), nil
	}
	language := req.GetString("language", "python")

	m := metrics.Get()
	m.ExecutionsInFlight.Inc()
	defer m.ExecutionsInFlight.Dec()

	id, err := r.box.Acquire(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("Error executing code: %v", err)), nil
	}
	defer r.box.Release(id)

	start := time.Now()
	result, err := r.box.ExecCode(ctx, id, code, language)
	if err != nil {
		m.ObserveExecution(language, "error", time.Since(start))
		return errorResult(fmt.Sprintf("Error executing code: %v", err)), nil
	}
	m.ObserveExecution(language, execStatus(result), time.Since(start))

	return mcp.NewToolResultText(formatExecResult(result)), nil
}

// formatExecResult renders the multi-section result text: stdout and stderr
// sections when non-empty, the exit code, and a truncation note.
func formatExecResult(res sandbox.ExecResult) string {
	parts := make([]string, 0, 4)
	if res.Stdout != "" {
		parts = append(parts, "[stdout]\n"+res.Stdout)
	}
	if res.Stderr != "" {
		parts = append(parts, "[stderr]\n"+res.Stderr)
	}
	parts = append(parts, fmt.Sprintf("[exit_code] %d", res.ExitCode))
	if res.Truncated {
		parts = append(parts, "[note] Output was truncated due to size limits.")
	}
	return strings.Join(parts, "\n")
}

func execStatus(res sandbox.ExecResult) string {
	switch {
	case res.ExitCode == 0:
		return "ok"
	case res.ExitCode == -1:
		return "timeout"
	default:
		return "failed"
	}
}
