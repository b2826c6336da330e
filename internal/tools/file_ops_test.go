package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenReadRoundTrip(t *testing.T) {
	box := newFakeSandbox()
	r := testRegistry(box)

	res, err := r.writeFile(context.Background(), callReq(map[string]any{
		"path":    "notes/a.txt",
		"content": "hi",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, "Wrote 2 bytes to /workspace/notes/a.txt", resultText(res))

	res, err = r.readFile(context.Background(), callReq(map[string]any{
		"path": "notes/a.txt",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, "hi", resultText(res))
	assert.True(t, box.balanced())
}

func TestReadFileTraversalRejected(t *testing.T) {
	box := newFakeSandbox()
	r := testRegistry(box)

	res, err := r.readFile(context.Background(), callReq(map[string]any{
		"path": "../etc/passwd",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "resolves outside the sandbox workspace")
	assert.Zero(t, box.acquired, "traversal must be rejected before touching the pool")
}

func TestReadFileMissing(t *testing.T) {
	box := newFakeSandbox()
	r := testRegistry(box)

	res, err := r.readFile(context.Background(), callReq(map[string]any{
		"path": "nope.txt",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "Error reading file")
	assert.True(t, box.balanced())
}

func TestWriteFileMissingContent(t *testing.T) {
	box := newFakeSandbox()
	r := testRegistry(box)

	res, err := r.writeFile(context.Background(), callReq(map[string]any{
		"path": "a.txt",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Zero(t, box.acquired)
}

func TestListFilesDefaultsToWorkspace(t *testing.T) {
	box := newFakeSandbox()
	box.listing = "total 0\n"
	r := testRegistry(box)

	res, err := r.listFiles(context.Background(), callReq(map[string]any{}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, "total 0\n", resultText(res))
}

func TestListFilesOutsideWorkspace(t *testing.T) {
	box := newFakeSandbox()
	r := testRegistry(box)

	res, err := r.listFiles(context.Background(), callReq(map[string]any{
		"path": "/etc",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "resolves outside the sandbox workspace")
}

func TestListFilesFailureSurfacesAsErrorResult(t *testing.T) {
	box := newFakeSandbox()
	box.listingErr = errors.New("cannot list path /workspace/nope")
	r := testRegistry(box)

	res, err := r.listFiles(context.Background(), callReq(map[string]any{
		"path": "nope",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "Error listing files")
	assert.True(t, box.balanced())
}
