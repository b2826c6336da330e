// Package docker wraps the Docker SDK behind the small driver surface the
// sandbox pool needs: container lifecycle, demuxed exec, and file transfer
// over archive streams.
package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"go.uber.org/zap"

	"github.com/mosteligible/mcp-codemode/internal/logging"
)

// WorkspaceDir is the writable directory inside every sandbox container.
const WorkspaceDir = "/workspace"

const killTimeout = 5 * time.Second

// ContainerSpec describes a sandbox container to create.
type ContainerSpec struct {
	Image       string
	MemoryBytes int64
	CPULimit    float64 // fraction of one core
	Labels      map[string]string
}

// ExecResult carries the demuxed output of an in-container exec.
type ExecResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Driver is the Docker SDK-backed container driver.
type Driver struct {
	client *client.Client
}

// NewDriver connects to the Docker daemon using the standard environment
// configuration (DOCKER_HOST etc.).
func NewDriver() (*Driver, error) {
	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("docker sdk client init failed: %w", err)
	}
	return &Driver{client: cli}, nil
}

// EnsureImage checks for a local image and pulls only when absent, so
// subsequent startups do not re-pull.
func (d *Driver) EnsureImage(ctx context.Context, ref string) error {
	_, _, err := d.client.ImageInspectWithRaw(ctx, ref)
	if err == nil {
		logging.L().Info("using local sandbox image", zap.String("image", ref))
		return nil
	}

	logging.L().Info("pulling sandbox image", zap.String("image", ref))
	rc, pullErr := d.client.ImagePull(ctx, ref, image.PullOptions{})
	if pullErr != nil {
		return fmt.Errorf("pull image %s: %w (inspect err: %v)", ref, pullErr, err)
	}
	defer rc.Close()
	_, _ = io.Copy(io.Discard, rc)
	return nil
}

// CreateContainer creates and starts a long-lived sandbox container parked
// on `sleep infinity`. The caller owns removal.
func (d *Driver) CreateContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	hostCfg := &container.HostConfig{
		NetworkMode: "bridge",
		ExtraHosts:  []string{"host.docker.internal:host-gateway"},
		Resources: container.Resources{
			Memory:   spec.MemoryBytes,
			NanoCPUs: int64(spec.CPULimit * 1e9),
		},
	}

	created, err := d.client.ContainerCreate(ctx, &container.Config{
		Image:      spec.Image,
		Cmd:        []string{"sleep", "infinity"},
		WorkingDir: WorkspaceDir,
		OpenStdin:  true,
		Tty:        false,
		Labels:     spec.Labels,
	}, hostCfg, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("docker container create failed: %w", err)
	}

	if err := d.client.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		_ = d.RemoveContainer(context.Background(), created.ID, true)
		return "", fmt.Errorf("docker container start failed: %w", err)
	}
	return created.ID, nil
}

// Exec runs argv inside the container with stdout and stderr demuxed. A
// positive timeout bounds the run; on breach Exec issues a best-effort kill
// of processes matching the argv head and returns a synthetic result with
// exit code -1 and no error.
func (d *Driver) Exec(ctx context.Context, containerID string, argv []string, workdir string, timeout time.Duration) (ExecResult, error) {
	execCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	created, err := d.client.ContainerExecCreate(execCtx, containerID, container.ExecOptions{
		Cmd:          argv,
		WorkingDir:   workdir,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return ExecResult{}, fmt.Errorf("docker exec create failed: %w", err)
	}

	resp, err := d.client.ContainerExecAttach(execCtx, created.ID, container.ExecStartOptions{})
	if err != nil {
		return ExecResult{}, fmt.Errorf("docker exec attach failed: %w", err)
	}
	defer resp.Close()

	var stdout, stderr bytes.Buffer
	done := make(chan error, 1)
	go func() {
		_, copyErr := stdcopy.StdCopy(&stdout, &stderr, resp.Reader)
		done <- copyErr
	}()

	select {
	case <-execCtx.Done():
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) && timeout > 0 {
			d.killMatching(containerID, argv[0])
			secs := int(timeout / time.Second)
			return ExecResult{
				ExitCode: -1,
				Stderr:   []byte(fmt.Sprintf("Execution timed out after %d seconds", secs)),
			}, nil
		}
		return ExecResult{}, execCtx.Err()
	case copyErr := <-done:
		if copyErr != nil {
			return ExecResult{}, fmt.Errorf("docker exec stream failed: %w", copyErr)
		}
	}

	inspect, err := d.client.ContainerExecInspect(context.Background(), created.ID)
	if err != nil {
		return ExecResult{}, fmt.Errorf("docker exec inspect failed: %w", err)
	}

	return ExecResult{
		ExitCode: inspect.ExitCode,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
	}, nil
}

// killMatching terminates lingering processes matched by the command head.
// Best-effort only; a sandbox with nothing left to kill is fine.
func (d *Driver) killMatching(containerID, head string) {
	ctx, cancel := context.WithTimeout(context.Background(), killTimeout)
	defer cancel()

	created, err := d.client.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		Cmd: []string{"pkill", "-f", head},
	})
	if err != nil {
		logging.L().Warn("sandbox process kill failed",
			zap.String("container", shortID(containerID)), zap.Error(err))
		return
	}
	if err := d.client.ContainerExecStart(ctx, created.ID, container.ExecStartOptions{}); err != nil {
		logging.L().Warn("sandbox process kill failed",
			zap.String("container", shortID(containerID)), zap.Error(err))
	}
}

// ReadFile copies a file out of the container and unwraps it from its
// archive stream.
func (d *Driver) ReadFile(ctx context.Context, containerID, filePath string) ([]byte, error) {
	rc, _, err := d.client.CopyFromContainer(ctx, containerID, filePath)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filePath)
		}
		return nil, fmt.Errorf("docker copy from container failed: %w", err)
	}
	defer rc.Close()
	return extractSingleFile(rc, filePath)
}

// WriteFile ensures the parent directory exists, then copies the file into
// the container as a single-entry archive stream.
func (d *Driver) WriteFile(ctx context.Context, containerID, filePath string, content []byte) error {
	parent := path.Dir(filePath)
	if parent != "/" {
		if _, err := d.Exec(ctx, containerID, []string{"mkdir", "-p", parent}, "", 0); err != nil {
			return fmt.Errorf("create parent directory %s: %w", parent, err)
		}
	}

	archive, err := singleFileArchive(path.Base(filePath), content)
	if err != nil {
		return err
	}
	if err := d.client.CopyToContainer(ctx, containerID, parent, archive, types.CopyToContainerOptions{}); err != nil {
		return fmt.Errorf("docker copy to container failed: %w", err)
	}
	return nil
}

// RemoveContainer removes a container, optionally force-killing it.
func (d *Driver) RemoveContainer(ctx context.Context, containerID string, force bool) error {
	return d.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: force})
}

// Close releases the underlying SDK client.
func (d *Driver) Close() error {
	return d.client.Close()
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
