package connection

import (
	"fmt"
	"net/url"
	"strings"
)

// PushPath is the server's push-channel path.
const PushPath = "/ws"

// EndpointURL derives the push-channel URL from the server origin.
// A secure origin (https) yields a secure channel (wss).
func EndpointURL(origin string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("parse origin: %w", err)
	}

	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported origin scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("origin %q has no host", origin)
	}

	u.Path = strings.TrimRight(u.Path, "/") + PushPath
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""

	return u.String(), nil
}
