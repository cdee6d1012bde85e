package util

import (
	"net"
	"net/url"
	"strings"
)

// IsLoopbackHost reports whether hostname is "localhost" or a loopback IP,
// covering all of 127.0.0.0/8 and ::1. hostname carries no port, as
// returned by url.URL.Hostname().
func IsLoopbackHost(hostname string) bool {
	if strings.EqualFold(hostname, "localhost") {
		return true
	}

	clean := strings.TrimSuffix(strings.TrimPrefix(hostname, "["), "]")
	if ip := net.ParseIP(clean); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// IsLoopbackURL reports whether rawURL parses and points at a loopback host
func IsLoopbackURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return IsLoopbackHost(u.Hostname())
}
