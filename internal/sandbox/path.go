package sandbox

import (
	"fmt"
	"path"
	"strings"
)

// WorkspaceRoot is the only writable surface exposed to tool handlers.
const WorkspaceRoot = "/workspace"

// SafePath resolves p against the workspace root and rejects anything that
// escapes it. Relative paths are taken relative to /workspace; absolute
// paths must already live under it. The returned path is normalized POSIX.
func SafePath(p string) (string, error) {
	var resolved string
	if strings.HasPrefix(p, "/") {
		resolved = path.Clean(p)
	} else {
		resolved = path.Join(WorkspaceRoot, p)
	}

	if resolved != WorkspaceRoot && !strings.HasPrefix(resolved, WorkspaceRoot+"/") {
		return "", fmt.Errorf("path %q resolves outside the sandbox workspace; all paths must be within %s", p, WorkspaceRoot)
	}
	return resolved, nil
}
