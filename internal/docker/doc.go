// Package docker resolves which Docker container publishes a host port.
//
// When the dev server port is held by docker-proxy (Linux) or the Docker
// Desktop backend (macOS, Windows), the owning process name says little;
// the container name is what the user needs. The package uses
// github.com/docker/docker/client with API version negotiation and only
// performs read-only calls (Ping, ContainerList).
package docker
