package playback

import (
	"context"

	"github.com/jmylchreest/playarr/internal/platform"
	"github.com/jmylchreest/playarr/pkg/hls"
)

// TokenSource issues playback access tokens.
type TokenSource interface {
	AccessToken(ctx context.Context, id platform.Identity, headers platform.ClientHeaders) (platform.AccessToken, error)
}

// MultivariantFetcher downloads the multivariant playlist for a token.
type MultivariantFetcher interface {
	FetchMultivariant(ctx context.Context, token platform.AccessToken, id platform.Identity, headers platform.ClientHeaders) ([]byte, error)
}

// PlaylistFetcher downloads a media playlist.
type PlaylistFetcher interface {
	FetchMediaPlaylist(ctx context.Context, url string) ([]byte, error)
}

// MetadataSource provides live stream metadata.
type MetadataSource interface {
	StreamMetadata(ctx context.Context, id platform.Identity, headers platform.ClientHeaders) (platform.StreamMetadata, error)
}

// Player receives the variant chosen for playback.
type Player interface {
	Play(ctx context.Context, variant hls.Variant) error
}

// PlayerFunc adapts a function to Player.
type PlayerFunc func(ctx context.Context, variant hls.Variant) error

// Play calls f.
func (f PlayerFunc) Play(ctx context.Context, variant hls.Variant) error {
	return f(ctx, variant)
}

// Listener observes a session. Calls are made synchronously from the
// session's goroutines and must not block.
type Listener interface {
	StateChanged(sessionID string, from, to State)
	AdStateChanged(sessionID string, playing bool)
	MetadataUpdated(sessionID string, md platform.StreamMetadata)
}

// NopListener ignores every event.
type NopListener struct{}

func (NopListener) StateChanged(string, State, State)               {}
func (NopListener) AdStateChanged(string, bool)                     {}
func (NopListener) MetadataUpdated(string, platform.StreamMetadata) {}

var (
	_ TokenSource         = (*platform.Client)(nil)
	_ MultivariantFetcher = (*platform.Client)(nil)
	_ MetadataSource      = (*platform.Client)(nil)
)
