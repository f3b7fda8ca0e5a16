package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/bluenviron/gohlslib/v2/pkg/playlist"

	"github.com/jmylchreest/playarr/internal/config"
	"github.com/jmylchreest/playarr/internal/observability"
	"github.com/jmylchreest/playarr/internal/platform"
	"github.com/jmylchreest/playarr/internal/urlutil"
	"github.com/jmylchreest/playarr/pkg/hls"
	"github.com/jmylchreest/playarr/pkg/httpclient"
)

// ErrInvalidRewrite is returned when a rewritten playlist does not decode as
// an HLS media playlist. Callers fall back to the upstream URL.
var ErrInvalidRewrite = errors.New("rewritten playlist failed verification")

// RewriterConfig configures a Rewriter.
type RewriterConfig struct {
	HTTP      httpclient.Config
	Markers   hls.AdMarkers
	RemoveAds bool
	Logger    *slog.Logger
}

// Rewriter re-fetches playlists, optionally through a proxy, and rewrites
// them for the player. It keeps no state between calls.
type Rewriter struct {
	httpConfig httpclient.Config
	direct     *httpclient.Client
	parser     *hls.Parser
	classifier *hls.Classifier
	removeAds  bool
	logger     *slog.Logger
}

// NewRewriter creates a rewriter.
func NewRewriter(cfg RewriterConfig) *Rewriter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg.HTTP.Logger = logger
	return &Rewriter{
		httpConfig: cfg.HTTP,
		direct:     httpclient.New(cfg.HTTP),
		parser:     hls.NewParser(cfg.Markers),
		classifier: hls.NewClassifier(cfg.Markers),
		removeAds:  cfg.RemoveAds,
		logger:     observability.WithComponent(logger, "rewriter"),
	}
}

// FetchMediaPlaylist downloads a playlist without a proxy.
func (r *Rewriter) FetchMediaPlaylist(ctx context.Context, rawURL string) ([]byte, error) {
	return fetchPlaylist(ctx, r.direct, rawURL)
}

// FetchThroughProxy downloads a playlist through p. A disabled proxy fetches
// directly.
func (r *Rewriter) FetchThroughProxy(ctx context.Context, rawURL string, p config.ProxyConfig) ([]byte, error) {
	if !p.Enabled {
		return r.FetchMediaPlaylist(ctx, rawURL)
	}

	transport, err := NewProxyTransport(p)
	if err != nil {
		return nil, err
	}
	defer transport.CloseIdleConnections()

	cfg := r.httpConfig
	cfg.BaseClient = &http.Client{Transport: transport, Timeout: cfg.Timeout}
	return fetchPlaylist(ctx, httpclient.New(cfg), rawURL)
}

// ProxiedFetcher returns a PlaylistFetcher that fetches through p, so
// background ad checks take the same route as the player's playlists.
func (r *Rewriter) ProxiedFetcher(p config.ProxyConfig) PlaylistFetcher {
	if !p.Enabled {
		return r
	}
	return &proxiedFetcher{rewriter: r, proxy: p}
}

type proxiedFetcher struct {
	rewriter *Rewriter
	proxy    config.ProxyConfig
}

func (f *proxiedFetcher) FetchMediaPlaylist(ctx context.Context, rawURL string) ([]byte, error) {
	return f.rewriter.FetchThroughProxy(ctx, rawURL, f.proxy)
}

// HTTPClient returns the client used for direct fetches.
func (r *Rewriter) HTTPClient() *httpclient.Client { return r.direct }

// InjectCodecs adds codecs to the variant stanzas of a multivariant playlist
// that do not declare any.
func (r *Rewriter) InjectCodecs(multivariant []byte, codecs string) []byte {
	return hls.InjectCodecs(multivariant, codecs)
}

// WithCodecs wraps next so every multivariant playlist it returns has codecs
// injected. An empty codecs returns next unchanged.
func (r *Rewriter) WithCodecs(next MultivariantFetcher, codecs string) MultivariantFetcher {
	if codecs == "" {
		return next
	}
	return &codecInjector{next: next, rewriter: r, codecs: codecs}
}

type codecInjector struct {
	next     MultivariantFetcher
	rewriter *Rewriter
	codecs   string
}

func (c *codecInjector) FetchMultivariant(ctx context.Context, token platform.AccessToken, id platform.Identity, headers platform.ClientHeaders) ([]byte, error) {
	data, err := c.next.FetchMultivariant(ctx, token, id, headers)
	if err != nil {
		return nil, err
	}
	return c.rewriter.InjectCodecs(data, c.codecs), nil
}

// RewriteMedia fetches a media playlist (through p when enabled) and returns
// it rewritten by Rewrite.
func (r *Rewriter) RewriteMedia(ctx context.Context, rawURL string, p config.ProxyConfig) ([]byte, error) {
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing playlist url: %w", err)
	}

	data, err := r.FetchThroughProxy(ctx, rawURL, p)
	if err != nil {
		return nil, err
	}
	return r.Rewrite(ctx, data, base)
}

// Rewrite parses a media playlist, drops ad segments when enabled, makes
// segment and init URIs absolute against base and serializes the result. The
// output is decoded again before it is returned. If every segment is an ad
// nothing is dropped, so the player never receives an empty playlist.
//
// A live source (no #EXT-X-ENDLIST) is written as a live window that keeps
// the upstream media sequence; a complete one is written as a terminated
// EVENT playlist.
func (r *Rewriter) Rewrite(ctx context.Context, data []byte, base *url.URL) ([]byte, error) {
	pl, err := r.parser.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parsing media playlist: %w", err)
	}

	removed := 0
	before := pl.TotalDuration()
	if r.removeAds {
		marks := r.classifier.AdBreakSegments(pl)
		kept := make([]hls.Segment, 0, len(pl.Segments))
		first := -1
		for i, seg := range pl.Segments {
			if marks[i] {
				continue
			}
			if first < 0 {
				first = i
			}
			kept = append(kept, seg)
		}
		if len(kept) > 0 {
			removed = len(pl.Segments) - len(kept)
			pl.Segments = kept
			// The window now starts at the first kept segment.
			pl.MediaSequence += int64(first)
		}
	}

	if base != nil {
		pl.InitSegmentURI = urlutil.Resolve(base, pl.InitSegmentURI)
		for i := range pl.Segments {
			pl.Segments[i].URI = urlutil.Resolve(base, pl.Segments[i].URI)
		}
	}

	var out []byte
	if pl.IsComplete {
		out = hls.Marshal(pl)
	} else {
		out = hls.MarshalLive(pl)
	}
	if err := verifyMediaPlaylist(out); err != nil {
		observability.WithError(r.logger, err).WarnContext(ctx, "rewritten playlist rejected")
		return nil, err
	}

	if removed > 0 {
		r.logger.DebugContext(ctx, "removed ad segments",
			slog.Int("removed", removed),
			slog.Int("kept", len(pl.Segments)),
			slog.Float64("removed_seconds", before-pl.TotalDuration()),
		)
	}
	return out, nil
}

func verifyMediaPlaylist(data []byte) error {
	decoded, err := playlist.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRewrite, err)
	}
	if _, ok := decoded.(*playlist.Media); !ok {
		return fmt.Errorf("%w: not a media playlist", ErrInvalidRewrite)
	}
	return nil
}

func fetchPlaylist(ctx context.Context, client *httpclient.Client, rawURL string) ([]byte, error) {
	const op = "fetch playlist"

	resp, err := client.Get(ctx, rawURL)
	if err != nil {
		return nil, &TransportError{Op: op, Err: urlutil.RedactError(err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("playlist returned %d: %w", resp.StatusCode, ErrStreamUnavailable)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: errors.New("unexpected status")}
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	return buf.Bytes(), nil
}
