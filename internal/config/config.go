// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/docker/go-units"
)

// Config holds all runtime settings for the service.
type Config struct {
	// Sandbox pool
	SandboxImage         string
	PoolSize             int
	ExecTimeout          time.Duration
	MaxOutputSize        int
	ContainerMemoryLimit int64 // bytes
	ContainerCPULimit    float64

	// HTTP server
	MCPHost string
	MCPPort int

	// Credential proxy
	ProxyTimeout       time.Duration
	CredentialTTL      time.Duration
	GitHubToken        string
	GraphBaseURL       string
	GitHubBaseURL      string
}

const (
	defaultGraphBaseURL  = "https://graph.microsoft.com/v1.0"
	defaultGitHubBaseURL = "https://api.github.com"
)

// Load reads configuration from the environment, applying defaults for
// anything unset. It fails only on values that cannot be parsed.
func Load() (*Config, error) {
	cfg := &Config{
		SandboxImage:  getEnv("SANDBOX_IMAGE", "python:3.12-slim"),
		MCPHost:       getEnv("MCP_HOST", "0.0.0.0"),
		GitHubToken:   os.Getenv("GITHUB_TOKEN"),
		GraphBaseURL:  getEnv("GRAPH_BASE_URL", defaultGraphBaseURL),
		GitHubBaseURL: getEnv("GITHUB_BASE_URL", defaultGitHubBaseURL),
	}

	var err error
	if cfg.PoolSize, err = getEnvInt("POOL_SIZE", 2); err != nil {
		return nil, err
	}
	if cfg.PoolSize < 1 {
		return nil, fmt.Errorf("POOL_SIZE must be at least 1, got %d", cfg.PoolSize)
	}

	execTimeout, err := getEnvInt("EXEC_TIMEOUT", 30)
	if err != nil {
		return nil, err
	}
	cfg.ExecTimeout = time.Duration(execTimeout) * time.Second

	if cfg.MaxOutputSize, err = getEnvInt("MAX_OUTPUT_SIZE", 50000); err != nil {
		return nil, err
	}
	if cfg.MCPPort, err = getEnvInt("MCP_PORT", 8000); err != nil {
		return nil, err
	}

	memLimit := getEnv("CONTAINER_MEMORY_LIMIT", "256m")
	cfg.ContainerMemoryLimit, err = units.RAMInBytes(memLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid CONTAINER_MEMORY_LIMIT %q: %w", memLimit, err)
	}

	cpuLimit := getEnv("CONTAINER_CPU_LIMIT", "1.0")
	cfg.ContainerCPULimit, err = strconv.ParseFloat(cpuLimit, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid CONTAINER_CPU_LIMIT %q: %w", cpuLimit, err)
	}

	proxyTimeout, err := getEnvInt("PROXY_TIMEOUT", 30)
	if err != nil {
		return nil, err
	}
	cfg.ProxyTimeout = time.Duration(proxyTimeout) * time.Second

	// Stolen opaque IDs should expire quickly; 15 minutes unless overridden.
	credTTL, err := getEnvInt("PROXY_CREDENTIAL_TTL", 900)
	if err != nil {
		return nil, err
	}
	cfg.CredentialTTL = time.Duration(credTTL) * time.Second

	return cfg, nil
}

// Addr returns the host:port the HTTP server binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.MCPHost, c.MCPPort)
}

// MCPURL returns the externally visible URL of the full MCP mount.
func (c *Config) MCPURL() string {
	return fmt.Sprintf("http://%s:%d/mcp", c.MCPHost, c.MCPPort)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
