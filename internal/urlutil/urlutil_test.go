package urlutil

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"no scheme", "example.com", "http://example.com"},
		{"http", "http://example.com", "http://example.com"},
		{"https", "https://example.com", "https://example.com"},
		{"trailing slash", "https://example.com//", "https://example.com"},
		{"with port", "localhost:8080", "http://localhost:8080"},
		{"whitespace", "  http://example.com  ", "http://example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeBaseURL(tt.input))
		})
	}
}

func TestJoinPath(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		path     string
		expected string
	}{
		{"empty base", "", "/path", "/path"},
		{"with leading slash", "http://example.com", "/api/v1", "http://example.com/api/v1"},
		{"without leading slash", "http://example.com", "api/v1", "http://example.com/api/v1"},
		{"base with trailing slash", "http://example.com/", "/api", "http://example.com/api"},
		{"empty path", "http://example.com/", "", "http://example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, JoinPath(tt.baseURL, tt.path))
		})
	}
}

func TestResolve(t *testing.T) {
	base, err := url.Parse("https://edge.example.net/v1/playlist/abc.m3u8?token=x")
	require.NoError(t, err)

	assert.Equal(t, "https://edge.example.net/v1/playlist/seg1.ts", Resolve(base, "seg1.ts"))
	assert.Equal(t, "https://edge.example.net/root.ts", Resolve(base, "/root.ts"))
	assert.Equal(t, "https://cdn.example.net/a.ts", Resolve(base, "https://cdn.example.net/a.ts"))
	assert.Equal(t, "", Resolve(base, ""))
	assert.Equal(t, "seg.ts", Resolve(nil, "seg.ts"))
}

func TestValidateHTTPURL(t *testing.T) {
	assert.NoError(t, ValidateHTTPURL("https://gql.example.net/gql"))
	assert.NoError(t, ValidateHTTPURL("HTTP://localhost:8080"))
	assert.Error(t, ValidateHTTPURL(""))
	assert.Error(t, ValidateHTTPURL("ftp://example.com"))
	assert.Error(t, ValidateHTTPURL("/relative/path"))
	assert.Error(t, ValidateHTTPURL("https://"))
	assert.Error(t, ValidateHTTPURL("http://[::1"))
}

func TestRedact(t *testing.T) {
	in := "https://usher.example.net/api/channel/hls/foo.m3u8?allow_source=true&sig=deadbeef&token=%7B%22a%22%3A1%7D"
	out := Redact(in)
	assert.NotContains(t, out, "deadbeef")
	assert.NotContains(t, out, "%7B")
	assert.Contains(t, out, "sig=REDACTED")
	assert.Contains(t, out, "token=REDACTED")
	assert.Contains(t, out, "allow_source=true")

	plain := "https://edge.example.net/seg.ts?start=1"
	assert.Equal(t, plain, Redact(plain))
	assert.Equal(t, "://bad", Redact("://bad"))
}

func TestRedactError(t *testing.T) {
	err := &url.Error{Op: "Get", URL: "https://usher.example.net/x.m3u8?sig=secret", Err: context.DeadlineExceeded}
	wrapped := errors.Join(errors.New("fetching"), err)

	got := RedactError(wrapped)
	assert.NotContains(t, got.Error(), "secret")
	assert.Contains(t, got.Error(), "fetching")
	assert.Contains(t, got.Error(), "sig=REDACTED")
	assert.ErrorIs(t, got, context.DeadlineExceeded)

	clean := &url.Error{Op: "Get", URL: "https://edge.example.net/a.ts", Err: context.Canceled}
	assert.Same(t, error(clean), RedactError(clean))

	other := errors.New("plain")
	assert.Same(t, other, RedactError(other))
	assert.Nil(t, RedactError(nil))
}
