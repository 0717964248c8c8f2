// Package port observes the dev server port.
//
// Two complementary views are provided:
//
//   - Scanner binds the port itself (net.Listen) to tell whether it is
//     free. Used before launch to warn about a port that is already taken.
//   - Prober reads the OS connection table once (gopsutil) to tell whether
//     something is bound and which process owns it. Used after launch.
//
// Both are single-shot. There is no polling or readiness handshake.
package port
