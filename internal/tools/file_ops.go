package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mosteligible/mcp-codemode/internal/sandbox"
)

func readFileTool() mcp.Tool {
	return mcp.NewTool("sandbox_read_file",
		mcp.WithDescription("Read a file from the sandbox's /workspace directory."),
		mcp.WithString("path",
			mcp.Description("File path (relative to /workspace, or absolute within /workspace)."),
			mcp.Required()),
	)
}

func writeFileTool() mcp.Tool {
	return mcp.NewTool("sandbox_write_file",
		mcp.WithDescription("Write content to a file in the sandbox's /workspace directory. "+
			"Creates parent directories as needed."),
		mcp.WithString("path",
			mcp.Description("File path (relative to /workspace, or absolute within /workspace)."),
			mcp.Required()),
		mcp.WithString("content",
			mcp.Description("Text content to write."),
			mcp.Required()),
	)
}

func listFilesTool() mcp.Tool {
	return mcp.NewTool("sandbox_list_files",
		mcp.WithDescription("List directory contents inside the sandbox (ls -la output)."),
		mcp.WithString("path",
			mcp.Description("Directory path (default: /workspace). Must be within /workspace.")),
	)
}

func (r *Registry) readFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return errorResult(fmt.Sprintf("Error reading file: %v", err)), nil
	}
	resolved, err := sandbox.SafePath(path)
	if err != nil {
		return errorResult(fmt.Sprintf("Error reading file: %v", err)), nil
	}

	id, err := r.box.Acquire(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("Error reading file: %v", err)), nil
	}
	defer r.box.Release(id)

	data, err := r.box.FileRead(ctx, id, resolved)
	if err != nil {
		return errorResult(fmt.Sprintf("Error reading file: %v", err)), nil
	}
	return mcp.NewToolResultText(strings.ToValidUTF8(string(data), "�")), nil
}

func (r *Registry) writeFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return errorResult(fmt.Sprintf("Error writing file: %v", err)), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return errorResult(fmt.Sprintf("Error writing file: %v", err)), nil
	}
	resolved, err := sandbox.SafePath(path)
	if err != nil {
		return errorResult(fmt.Sprintf("Error writing file: %v", err)), nil
	}

	id, err := r.box.Acquire(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("Error writing file: %v", err)), nil
	}
	defer r.box.Release(id)

	n, err := r.box.FileWrite(ctx, id, resolved, []byte(content))
	if err != nil {
		return errorResult(fmt.Sprintf("Error writing file: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Wrote %d bytes to %s", n, resolved)), nil
}

func (r *Registry) listFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", sandbox.WorkspaceRoot)
	resolved, err := sandbox.SafePath(path)
	if err != nil {
		return errorResult(fmt.Sprintf("Error listing files: %v", err)), nil
	}

	id, err := r.box.Acquire(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("Error listing files: %v", err)), nil
	}
	defer r.box.Release(id)

	listing, err := r.box.FileList(ctx, id, resolved)
	if err != nil {
		return errorResult(fmt.Sprintf("Error listing files: %v", err)), nil
	}
	return mcp.NewToolResultText(listing), nil
}
