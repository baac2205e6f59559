package util

import (
	"fmt"
	"net/url"
	"strings"
)

// Takes a gateway "host" string and returns a websocket URL for the given path. Defaults to
// wss://, except for localhost. Converts http/https to ws/wss, and rejects any other scheme.
func WebsocketURL(host, path string) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", fmt.Errorf("empty websocket host")
	}
	switch {
	case strings.HasPrefix(host, "wss://"), strings.HasPrefix(host, "ws://"):
	case strings.HasPrefix(host, "https://"):
		host = "wss://" + strings.TrimPrefix(host, "https://")
	case strings.HasPrefix(host, "http://"):
		host = "ws://" + strings.TrimPrefix(host, "http://")
	case strings.Contains(host, "://"):
		return "", fmt.Errorf("unsupported websocket scheme: %s", host)
	case strings.HasPrefix(host, "127.0.0."), strings.HasPrefix(host, "[::1]"):
		host = "ws://" + host
	case strings.SplitN(host, ":", 2)[0] == "localhost":
		host = "ws://" + host
	default:
		host = "wss://" + host
	}
	u, err := url.Parse(host)
	if err != nil {
		return "", fmt.Errorf("invalid websocket host: %w", err)
	}
	u.Path = path
	return u.String(), nil
}
