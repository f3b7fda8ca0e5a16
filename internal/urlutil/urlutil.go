// Package urlutil provides URL helpers for playlist and platform URLs.
package urlutil

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// URL scheme constants.
const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
)

const redacted = "REDACTED"

// sensitiveParams are query parameters that carry credentials in playlist
// and usher URLs.
var sensitiveParams = []string{"token", "sig", "auth", "oauth_token", "integrity"}

// NormalizeBaseURL trims whitespace and trailing slashes and adds http://
// when no scheme is given.
//
// Examples:
//
//	"usher.example.net"          -> "http://usher.example.net"
//	"https://usher.example.net/" -> "https://usher.example.net"
func NormalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return ""
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	return strings.TrimRight(baseURL, "/")
}

// JoinPath joins a base URL with a path, ensuring a single slash between them.
func JoinPath(baseURL, path string) string {
	if baseURL == "" {
		return path
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if path == "" {
		return baseURL
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return baseURL + path
}

// Resolve makes ref absolute against base. Empty refs stay empty and refs
// that do not parse are returned unchanged.
func Resolve(base *url.URL, ref string) string {
	if ref == "" || base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

// ValidateHTTPURL checks that u is an absolute http or https URL.
func ValidateHTTPURL(u string) error {
	if u == "" {
		return errors.New("URL is empty")
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case SchemeHTTP, SchemeHTTPS:
	default:
		return fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("URL has no host")
	}
	return nil
}

// Redact replaces credential query values in rawURL. Strings that do not
// parse are returned unchanged.
func Redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return rawURL
	}
	q := u.Query()
	changed := false
	for _, name := range sensitiveParams {
		if q.Has(name) {
			q.Set(name, redacted)
			changed = true
		}
	}
	if !changed {
		return rawURL
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// RedactError returns err with the URL of any wrapped *url.Error redacted
// from its message. The original chain stays reachable through Unwrap.
func RedactError(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	safe := Redact(ue.URL)
	if safe == ue.URL {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), ue.URL, safe), err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }
