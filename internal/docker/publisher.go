package docker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
)

// containerLister is the subset of the Docker SDK client used here.
type containerLister interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
}

// Resolver answers which running container publishes a host port.
//
// It connects to the daemon lazily on first use, so constructing one is
// free on machines without Docker; the connection error surfaces from
// ContainerForPort instead.
type Resolver struct {
	once    sync.Once
	client  *Client
	lister  containerLister
	initErr error
}

// NewResolver creates a Resolver that connects on first use.
func NewResolver() *Resolver {
	return &Resolver{}
}

// connect creates and pings the client once.
func (r *Resolver) connect(ctx context.Context) error {
	r.once.Do(func() {
		if r.lister != nil {
			return
		}
		c, err := NewClient()
		if err != nil {
			r.initErr = err
			return
		}
		if err := c.Ping(ctx); err != nil {
			_ = c.Close()
			r.initErr = err
			return
		}
		r.client = c
		r.lister = c.inner
	})
	return r.initErr
}

// ContainerForPort returns the name of a running container that publishes
// host port port. Returns an error if Docker is unreachable or no container
// publishes the port.
func (r *Resolver) ContainerForPort(ctx context.Context, port int) (string, error) {
	if err := r.connect(ctx); err != nil {
		return "", err
	}

	// The daemon filters by published port server-side; the result is
	// still checked because "publish" also matches container-side ranges.
	summaries, err := r.lister.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(filters.Arg("publish", strconv.Itoa(port))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to list Docker containers: %w", err)
	}

	if name := publisherName(summaries, port); name != "" {
		return name, nil
	}
	return "", fmt.Errorf("no running container publishes port %d", port)
}

// Close releases the Docker client, if one was created.
func (r *Resolver) Close() error {
	return r.client.Close()
}

// publisherName returns the name of the first container whose published
// (host) port equals port. Docker reports names with a leading "/", which
// is stripped.
func publisherName(summaries []container.Summary, port int) string {
	for _, s := range summaries {
		for _, p := range s.Ports {
			if int(p.PublicPort) != port {
				continue
			}
			if len(s.Names) > 0 {
				return strings.TrimPrefix(s.Names[0], "/")
			}
			return shortID(s.ID)
		}
	}
	return ""
}

// shortID truncates a container ID to the 12 characters docker ps shows.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
