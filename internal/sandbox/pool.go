// Package sandbox manages the pool of pre-warmed containers used for code
// execution and the path containment rules for the in-container workspace.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mosteligible/mcp-codemode/internal/config"
	"github.com/mosteligible/mcp-codemode/internal/docker"
	"github.com/mosteligible/mcp-codemode/internal/logging"
)

// ErrPoolClosed is returned by Acquire after Shutdown has begun.
var ErrPoolClosed = errors.New("sandbox pool is shut down")

// languageCommands maps a language tag to its one-shot interpreter argv
// prefix; the code string is appended as the final argument.
var languageCommands = map[string][]string{
	"python":     {"python", "-c"},
	"bash":       {"bash", "-c"},
	"sh":         {"sh", "-c"},
	"node":       {"node", "-e"},
	"javascript": {"node", "-e"},
}

// supportedLanguages preserves the canonical ordering for error messages.
var supportedLanguages = []string{"python", "bash", "sh", "node", "javascript"}

// ExecResult is the decoded, size-capped outcome of a code execution.
// ExitCode -1 is reserved for timeouts.
type ExecResult struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Truncated bool
}

// Runtime is the container driver surface the pool depends on. Satisfied by
// *docker.Driver; tests substitute a fake.
type Runtime interface {
	EnsureImage(ctx context.Context, ref string) error
	CreateContainer(ctx context.Context, spec docker.ContainerSpec) (string, error)
	Exec(ctx context.Context, containerID string, argv []string, workdir string, timeout time.Duration) (docker.ExecResult, error)
	ReadFile(ctx context.Context, containerID, path string) ([]byte, error)
	WriteFile(ctx context.Context, containerID, path string, content []byte) error
	RemoveContainer(ctx context.Context, containerID string, force bool) error
	Close() error
}

// Pool owns a fixed set of pre-warmed containers and hands them to one
// caller at a time through an acquire/release envelope.
type Pool struct {
	runtime Runtime
	cfg     *config.Config

	idle chan string

	mu     sync.Mutex
	owned  []string
	closed bool
}

// NewPool creates an unstarted pool over the given runtime.
func NewPool(runtime Runtime, cfg *config.Config) *Pool {
	return &Pool{
		runtime: runtime,
		cfg:     cfg,
		idle:    make(chan string, cfg.PoolSize),
	}
}

// Start ensures the sandbox image is present and creates the configured
// number of containers, each with /workspace ensured. If creation fails
// partway, the containers created so far are rolled back and Start fails.
func (p *Pool) Start(ctx context.Context) error {
	if err := p.runtime.EnsureImage(ctx, p.cfg.SandboxImage); err != nil {
		return err
	}

	spec := docker.ContainerSpec{
		Image:       p.cfg.SandboxImage,
		MemoryBytes: p.cfg.ContainerMemoryLimit,
		CPULimit:    p.cfg.ContainerCPULimit,
		Labels:      map[string]string{"mcp-codemode": "sandbox"},
	}

	created := make([]string, 0, p.cfg.PoolSize)
	for i := 0; i < p.cfg.PoolSize; i++ {
		logging.L().Info("creating sandbox container",
			zap.Int("n", i+1), zap.Int("pool_size", p.cfg.PoolSize))

		id, err := p.runtime.CreateContainer(ctx, spec)
		if err == nil {
			_, err = p.runtime.Exec(ctx, id, []string{"mkdir", "-p", WorkspaceRoot}, "", 0)
			if err != nil {
				_ = p.runtime.RemoveContainer(context.Background(), id, true)
			}
		}
		if err != nil {
			for _, prev := range created {
				_ = p.runtime.RemoveContainer(context.Background(), prev, true)
			}
			return fmt.Errorf("sandbox pool start failed at container %d/%d: %w", i+1, p.cfg.PoolSize, err)
		}
		created = append(created, id)
	}

	p.mu.Lock()
	p.owned = created
	p.mu.Unlock()
	for _, id := range created {
		p.idle <- id
	}

	logging.L().Info("sandbox pool ready", zap.Int("containers", len(created)))
	return nil
}

// Shutdown force-removes every owned container, drains the idle queue, and
// closes the runtime client. Individual removal failures are logged, not
// propagated.
func (p *Pool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	owned := p.owned
	p.owned = nil
	p.mu.Unlock()

	for _, id := range owned {
		logging.L().Info("removing sandbox container", zap.String("container", shortID(id)))
		if err := p.runtime.RemoveContainer(ctx, id, true); err != nil {
			logging.L().Error("failed to remove sandbox container",
				zap.String("container", shortID(id)), zap.Error(err))
		}
	}

	for {
		select {
		case <-p.idle:
		default:
			if err := p.runtime.Close(); err != nil {
				logging.L().Error("failed to close container runtime", zap.Error(err))
			}
			logging.L().Info("sandbox pool shut down")
			return
		}
	}
}

// Acquire returns a container not held by any other caller, blocking until
// one is idle or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (string, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return "", ErrPoolClosed
	}

	select {
	case id := <-p.idle:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Release returns a container to the idle set. The workspace is intentionally
// not cleaned between releases so multi-step write-then-execute workflows
// keep working; use ResetWorkspace for explicit cleanup.
func (p *Pool) Release(id string) {
	select {
	case p.idle <- id:
	default:
		// Queue full or shut down; drop the handle rather than block.
	}
}

// ResetWorkspace best-effort deletes everything under /workspace, dotfiles
// included. Failures are logged, never raised.
func (p *Pool) ResetWorkspace(ctx context.Context, id string) {
	_, err := p.runtime.Exec(ctx, id,
		[]string{"sh", "-c", "rm -rf /workspace/* /workspace/.* 2>/dev/null || true"}, "", p.cfg.ExecTimeout)
	if err != nil {
		logging.L().Error("failed to clean workspace",
			zap.String("container", shortID(id)), zap.Error(err))
	}
}

// ExecCode runs code in the container using the language's canonical
// invocation. Unsupported languages yield exit 1 with a stderr naming the
// supported set; the runtime timeout yields exit -1. Output streams are
// clipped to the configured cap and flagged as truncated.
func (p *Pool) ExecCode(ctx context.Context, id, code, language string) (ExecResult, error) {
	prefix, ok := languageCommands[strings.ToLower(language)]
	if !ok {
		return ExecResult{
			ExitCode: 1,
			Stderr: fmt.Sprintf("Unsupported language: %s. Supported: %s",
				language, strings.Join(supportedLanguages, ", ")),
		}, nil
	}

	argv := append(append([]string{}, prefix...), code)
	raw, err := p.runtime.Exec(ctx, id, argv, WorkspaceRoot, p.cfg.ExecTimeout)
	if err != nil {
		return ExecResult{}, err
	}

	stdout, outTruncated := p.clip(decodeUTF8(raw.Stdout))
	stderr, errTruncated := p.clip(decodeUTF8(raw.Stderr))

	return ExecResult{
		Stdout:    stdout,
		Stderr:    stderr,
		ExitCode:  raw.ExitCode,
		Truncated: outTruncated || errTruncated,
	}, nil
}

// FileRead returns the raw bytes of a file inside the container.
func (p *Pool) FileRead(ctx context.Context, id, path string) ([]byte, error) {
	return p.runtime.ReadFile(ctx, id, path)
}

// FileWrite writes content to a file inside the container, creating parent
// directories as needed. Returns the byte count written.
func (p *Pool) FileWrite(ctx context.Context, id, path string, content []byte) (int, error) {
	if err := p.runtime.WriteFile(ctx, id, path, content); err != nil {
		return 0, err
	}
	return len(content), nil
}

// FileList returns the long-form directory listing (hidden entries included)
// for a path inside the container.
func (p *Pool) FileList(ctx context.Context, id, path string) (string, error) {
	res, err := p.runtime.Exec(ctx, id, []string{"ls", "-la", path}, "", p.cfg.ExecTimeout)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("%w: cannot list path %s: %s",
			docker.ErrNotFound, path, strings.TrimSpace(decodeUTF8(res.Stderr)))
	}
	return decodeUTF8(res.Stdout), nil
}

// clip cuts s at the configured output cap and appends the truncation marker.
func (p *Pool) clip(s string) (string, bool) {
	if len(s) <= p.cfg.MaxOutputSize {
		return s, false
	}
	return s[:p.cfg.MaxOutputSize] + "\n... [output truncated]", true
}

func decodeUTF8(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
