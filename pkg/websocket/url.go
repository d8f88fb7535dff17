package websocket

import (
	"fmt"
	"net/url"
)

// SocketPath is the socket route on every FinX host.
const SocketPath = "/ws/api/"

// SocketURL derives the socket address from the REST endpoint: same host,
// wss (or ws when ssl is false), fixed socket path.
func SocketURL(endpoint string, ssl bool) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("endpoint %q has no host", endpoint)
	}

	scheme := "wss"
	if !ssl {
		scheme = "ws"
	}

	return scheme + "://" + u.Host + SocketPath, nil
}
