// Package docker provides a thin wrapper around the Docker Engine SDK
// client. devserve only reads from the daemon: it asks which container
// publishes a host port when that port is held by a Docker port proxy.
package docker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/docker/docker/client"
)

// defaultPingTimeout bounds the Ping call made before the first query.
const defaultPingTimeout = 2 * time.Second

// Client wraps the Docker Engine SDK client with socket auto-detection.
type Client struct {
	inner *client.Client
}

// NewClient creates a Docker client.
//
// DOCKER_HOST is honoured when set. Otherwise the platform's default
// socket locations are tried in order:
//   - Linux: /var/run/docker.sock, $XDG_RUNTIME_DIR/docker.sock (rootless)
//   - macOS: /var/run/docker.sock, ~/.docker/run/docker.sock
//   - Windows: the docker_engine named pipe
func NewClient() (*Client, error) {
	host := os.Getenv("DOCKER_HOST")
	if host == "" {
		detected, err := detectDockerHost()
		if err != nil {
			return nil, err
		}
		host = detected
	}

	c, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client for host %q: %w", host, err)
	}
	return &Client{inner: c}, nil
}

// detectDockerHost returns the Docker host URI for the first socket that
// exists on this platform.
func detectDockerHost() (string, error) {
	var candidates []string
	switch runtime.GOOS {
	case "windows":
		return "npipe:////./pipe/docker_engine", nil
	case "darwin":
		candidates = append(candidates, "/var/run/docker.sock")
		if home, err := os.UserHomeDir(); err == nil {
			candidates = append(candidates, filepath.Join(home, ".docker", "run", "docker.sock"))
		}
	default:
		candidates = append(candidates, "/var/run/docker.sock")
		if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
			candidates = append(candidates, filepath.Join(runtimeDir, "docker.sock"))
		}
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return "unix://" + path, nil
		}
	}
	return "", fmt.Errorf("Docker socket not found at any of: %v", candidates)
}

// Ping verifies that the Docker daemon is reachable.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if _, err := c.inner.Ping(pingCtx); err != nil {
		return fmt.Errorf("Docker daemon is not responding: %w", err)
	}
	return nil
}

// Close releases the resources held by the client. Safe to call on a
// client whose construction failed.
func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}
