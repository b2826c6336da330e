package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "python:3.12-slim", cfg.SandboxImage)
	assert.Equal(t, 2, cfg.PoolSize)
	assert.Equal(t, 30*time.Second, cfg.ExecTimeout)
	assert.Equal(t, 50000, cfg.MaxOutputSize)
	assert.Equal(t, "0.0.0.0", cfg.MCPHost)
	assert.Equal(t, 8000, cfg.MCPPort)
	assert.Equal(t, int64(256*1024*1024), cfg.ContainerMemoryLimit)
	assert.Equal(t, 1.0, cfg.ContainerCPULimit)
	assert.Equal(t, 30*time.Second, cfg.ProxyTimeout)
	assert.Equal(t, 15*time.Minute, cfg.CredentialTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SANDBOX_IMAGE", "node:22-alpine")
	t.Setenv("POOL_SIZE", "4")
	t.Setenv("EXEC_TIMEOUT", "2")
	t.Setenv("MAX_OUTPUT_SIZE", "1024")
	t.Setenv("CONTAINER_MEMORY_LIMIT", "1g")
	t.Setenv("CONTAINER_CPU_LIMIT", "0.5")
	t.Setenv("MCP_PORT", "9000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "node:22-alpine", cfg.SandboxImage)
	assert.Equal(t, 4, cfg.PoolSize)
	assert.Equal(t, 2*time.Second, cfg.ExecTimeout)
	assert.Equal(t, 1024, cfg.MaxOutputSize)
	assert.Equal(t, int64(1024*1024*1024), cfg.ContainerMemoryLimit)
	assert.Equal(t, 0.5, cfg.ContainerCPULimit)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr())
	assert.Equal(t, "http://0.0.0.0:9000/mcp", cfg.MCPURL())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("POOL_SIZE", "zero")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadMemoryLimit(t *testing.T) {
	t.Setenv("CONTAINER_MEMORY_LIMIT", "lots")
	_, err := Load()
	assert.Error(t, err)
}
