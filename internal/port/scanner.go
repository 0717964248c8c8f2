package port

import (
	"fmt"
	"net"
)

// Scanner checks whether specific ports can be bound on the host machine.
//
// It asks the operating system's network stack directly (net.Listen) rather
// than reading the connection table, so it works without permission to see
// other users' sockets. The launcher uses it before starting the dev server
// to warn when the configured port is already taken.
type Scanner struct{}

// NewScanner creates a new Scanner instance.
func NewScanner() *Scanner {
	return &Scanner{}
}

// IsPortAvailable checks whether a single port is free on the host machine.
//
// For TCP, it attempts net.Listen("tcp", ":port"). For UDP, it attempts
// net.ListenPacket("udp", ":port"). If the bind succeeds, the port is
// available and the listener is closed again immediately.
//
// Binding to all interfaces (":port") matches what dev servers do when
// started with --host, and also collides with loopback-only listeners on
// the same port.
//
// Returns true if the port is free, false if it is already in use or invalid.
func (s *Scanner) IsPortAvailable(port int, protocol string) bool {
	addr := fmt.Sprintf(":%d", port)

	switch protocol {
	case "tcp":
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return false
		}
		defer func() { _ = listener.Close() }()
		return true

	case "udp":
		conn, err := net.ListenPacket("udp", addr)
		if err != nil {
			return false
		}
		defer func() { _ = conn.Close() }()
		return true

	default:
		// Unknown protocol: report unavailable.
		return false
	}
}

// FindAvailablePort scans a port range [startPort, endPort] (inclusive) and
// returns the first port that is available for the given protocol.
//
// The search is sequential from startPort upward, the same order Vite and
// similar dev servers use when their configured port is busy, so the result
// is a good guess of where the server will end up.
func (s *Scanner) FindAvailablePort(startPort, endPort int, protocol string) (int, error) {
	for port := startPort; port <= endPort; port++ {
		if s.IsPortAvailable(port, protocol) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available %s port found in range %d-%d", protocol, startPort, endPort)
}
