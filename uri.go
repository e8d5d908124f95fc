package resourcefactory

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// backendURI is the parsed form of the factory's origin URI:
// <scheme>://[host[:port]]/<base-path> (spec §6). net/url does the actual
// parsing; this type just pulls out the parts the loader cares about.
type backendURI struct {
	scheme   string
	hostname string
	port     int
	basePath string
}

// parseBackendURI parses a factory construction URI. Supported schemes are
// "file", "http", and "nats" (the NATS object-store backend is a
// SPEC_FULL addition, see loader.go).
func parseBackendURI(raw string) (backendURI, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return backendURI{}, fmt.Errorf("parse uri %q: %w", raw, err)
	}

	switch u.Scheme {
	case "http", "file", "nats":
	default:
		return backendURI{}, fmt.Errorf("unsupported uri scheme %q", u.Scheme)
	}

	out := backendURI{
		scheme:   u.Scheme,
		hostname: u.Hostname(),
		basePath: strings.TrimSuffix(u.Path, "/"),
	}
	if u.Scheme == "file" && out.basePath == "" {
		// file:///base/path puts the whole path in u.Path already; a bare
		// file:base-path (no authority) lands the base in u.Opaque instead.
		out.basePath = strings.TrimSuffix(u.Opaque, "/")
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return backendURI{}, fmt.Errorf("invalid port %q: %w", p, err)
		}
		out.port = port
	}
	return out, nil
}
