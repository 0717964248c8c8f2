package port

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	psnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"

	"github.com/mmr-tortoise/devserve/internal/model"
)

// containerLookupTimeout bounds the optional Docker query made when the
// port is held by a Docker port proxy.
const containerLookupTimeout = 2 * time.Second

// dockerProxies are process names that hold host ports on behalf of
// containers. When one of them owns the probed port, the container is the
// more useful answer.
var dockerProxies = map[string]bool{
	"docker-proxy":       true,
	"com.docker.backend": true,
	"vpnkit":             true,
	"rootlessport":       true,
}

// Connection is one entry of the OS connection table, reduced to what the
// prober needs.
type Connection struct {
	LocalIP   string
	LocalPort int
	PID       int32
	Status    string
}

// ConnectionTable reads OS-level socket and process information.
type ConnectionTable interface {
	// Connections returns a snapshot of all inet connections.
	Connections(ctx context.Context) ([]Connection, error)

	// ProcessName resolves a PID to its executable name.
	ProcessName(ctx context.Context, pid int32) (string, error)
}

// ContainerResolver finds the container that publishes a host port.
type ContainerResolver interface {
	ContainerForPort(ctx context.Context, port int) (string, error)
}

// SystemTable is the ConnectionTable backed by gopsutil.
type SystemTable struct{}

// Connections returns all IPv4 and IPv6 connections known to the OS.
func (SystemTable) Connections(ctx context.Context) ([]Connection, error) {
	stats, err := psnet.ConnectionsWithContext(ctx, "inet")
	if err != nil {
		return nil, err
	}

	conns := make([]Connection, 0, len(stats))
	for _, s := range stats {
		conns = append(conns, Connection{
			LocalIP:   s.Laddr.IP,
			LocalPort: int(s.Laddr.Port),
			PID:       s.Pid,
			Status:    s.Status,
		})
	}
	return conns, nil
}

// ProcessName returns the executable name of pid.
func (SystemTable) ProcessName(ctx context.Context, pid int32) (string, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return "", err
	}
	return p.NameWithContext(ctx)
}

// Prober answers "is anything bound to this port, and who?" from a single
// snapshot of the connection table. It never retries: a server that is
// still starting is reported as not bound.
type Prober struct {
	table      ConnectionTable
	containers ContainerResolver
	logger     *zap.Logger
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithConnectionTable replaces the gopsutil-backed table.
func WithConnectionTable(t ConnectionTable) ProberOption {
	return func(p *Prober) { p.table = t }
}

// WithContainerResolver enables naming the container that publishes the
// port when a Docker port proxy owns it.
func WithContainerResolver(r ContainerResolver) ProberOption {
	return func(p *Prober) { p.containers = r }
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *zap.Logger) ProberOption {
	return func(p *Prober) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProber creates a Prober that reads the system connection table.
func NewProber(opts ...ProberOption) *Prober {
	p := &Prober{
		table:  SystemTable{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe takes one snapshot of the connection table and looks for a
// connection whose local port is port.
//
// When several connections match (a listener plus accepted connections),
// the listening socket is preferred. Process name and container lookups are
// best effort: failures are logged and leave the fields empty. Only a
// failure to read the connection table is returned as an error.
func (p *Prober) Probe(ctx context.Context, port int) (*model.ProbeResult, error) {
	conns, err := p.table.Connections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read connection table: %w", err)
	}
	p.logger.Debug("Connection snapshot taken", zap.Int("connections", len(conns)), zap.Int("port", port))

	match, ok := selectConnection(conns, port)
	if !ok {
		return &model.ProbeResult{Port: port}, nil
	}

	owner := &model.PortOwner{
		PID:          match.PID,
		LocalAddress: net.JoinHostPort(match.LocalIP, strconv.Itoa(match.LocalPort)),
		State:        match.Status,
	}

	if match.PID > 0 {
		name, err := p.table.ProcessName(ctx, match.PID)
		if err != nil {
			p.logger.Debug("Could not resolve process name", zap.Int32("pid", match.PID), zap.Error(err))
		} else {
			owner.ProcessName = name
		}
	}

	if p.containers != nil && (match.PID == 0 || dockerProxies[owner.ProcessName]) {
		owner.ContainerName = p.lookupContainer(ctx, port)
	}

	return &model.ProbeResult{Port: port, Bound: true, Owner: owner}, nil
}

// lookupContainer asks the resolver which container publishes port.
// Returns "" on any failure.
func (p *Prober) lookupContainer(ctx context.Context, port int) string {
	lookupCtx, cancel := context.WithTimeout(ctx, containerLookupTimeout)
	defer cancel()

	name, err := p.containers.ContainerForPort(lookupCtx, port)
	if err != nil {
		p.logger.Debug("Container lookup failed", zap.Int("port", port), zap.Error(err))
		return ""
	}
	return name
}

// selectConnection returns the connection bound to port, preferring a
// listening socket over other states.
func selectConnection(conns []Connection, port int) (Connection, bool) {
	var (
		first Connection
		found bool
	)
	for _, c := range conns {
		if c.LocalPort != port {
			continue
		}
		if c.Status == "LISTEN" {
			return c, true
		}
		if !found {
			first, found = c, true
		}
	}
	return first, found
}
