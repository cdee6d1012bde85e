package security

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// pageCSP allows the inline stylesheet and script of the consent and client
// pages. The verb takes the form-action source list.
const pageCSP = "default-src 'none'; style-src 'unsafe-inline'; script-src 'self' 'unsafe-inline'; connect-src 'self'; form-action %s; frame-ancestors 'none'"

// SetSecurityHeaders sets security headers on JSON API responses
// (token, userinfo, error and metadata responses).
func SetSecurityHeaders(w http.ResponseWriter, serverURL string) {
	setCommonHeaders(w, serverURL)
	w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
}

// SetPageSecurityHeaders sets security headers on HTML pages served to the
// resource owner. The consent page must not be framed (clickjacking on the
// approve button) and must not be cached.
//
// Browsers apply form-action to the redirects that follow a form submission,
// so a page whose form ends in a redirect to another origin (the approval
// 302 to the client's redirect_uri) passes that target as formTargets.
func SetPageSecurityHeaders(w http.ResponseWriter, serverURL string, formTargets ...string) {
	setCommonHeaders(w, serverURL)
	w.Header().Set("Content-Security-Policy", fmt.Sprintf(pageCSP, formActionSources(formTargets)))
}

// formActionSources returns 'self' followed by the origin of every parseable
// absolute target URL
func formActionSources(targets []string) string {
	sources := []string{"'self'"}
	for _, target := range targets {
		if origin := Origin(target); origin != "" {
			sources = append(sources, origin)
		}
	}
	return strings.Join(sources, " ")
}

// Origin returns scheme://host[:port] of rawURL, or "" when rawURL is not an
// absolute http(s) URL
func Origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func setCommonHeaders(w http.ResponseWriter, serverURL string) {
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Referrer-Policy", "no-referrer")

	if parsed, err := url.Parse(serverURL); err == nil && parsed.Scheme == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}

	// RFC 6749 Section 5.1: token responses MUST NOT be cached
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
