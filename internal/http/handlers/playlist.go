package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/jmylchreest/playarr/internal/config"
	"github.com/jmylchreest/playarr/internal/observability"
	"github.com/jmylchreest/playarr/internal/playback"
	"github.com/jmylchreest/playarr/internal/urlutil"
)

const mpegURLContentType = "application/vnd.apple.mpegurl"

// PlaylistHandler serves rewritten media playlists to local players. Each
// request re-fetches the upstream playlist, feeds it to the session's ad
// detection and returns it with ads removed and URIs made absolute.
type PlaylistHandler struct {
	sessions SessionService
	rewriter *playback.Rewriter
	proxy    config.ProxyConfig
	logger   *slog.Logger
}

// NewPlaylistHandler creates a playlist handler. Upstream playlists are
// fetched through proxy when it is enabled.
func NewPlaylistHandler(sessions SessionService, rewriter *playback.Rewriter, proxy config.ProxyConfig) *PlaylistHandler {
	return &PlaylistHandler{
		sessions: sessions,
		rewriter: rewriter,
		proxy:    proxy,
		logger:   slog.Default(),
	}
}

// WithLogger sets the logger.
func (h *PlaylistHandler) WithLogger(logger *slog.Logger) *PlaylistHandler {
	h.logger = logger
	return h
}

// RegisterChiRoutes registers the raw playlist route. Playlists are not JSON
// so they bypass huma.
func (h *PlaylistHandler) RegisterChiRoutes(router chi.Router) {
	router.Get("/hls/{channel}.m3u8", h.handlePlaylist)
}

func (h *PlaylistHandler) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.LoggerFromContext(ctx)

	id, err := ParseIdentity(chi.URLParam(r, "channel"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	session, err := h.sessions.Acquire(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := sessionError(session); err != nil {
		writeError(w, err)
		return
	}

	variant, ok := session.Variant(r.URL.Query().Get("quality"))
	if !ok {
		writeError(w, playback.ErrStreamUnavailable)
		return
	}

	raw, err := h.rewriter.FetchThroughProxy(ctx, variant.URL, h.proxy)
	if err != nil {
		// A gone playlist ends the session; the next request starts a new one.
		if ctx.Err() == nil {
			session.HandlePlaylistError(err)
		}
		writeError(w, err)
		return
	}
	session.ObservePlaylist(raw)

	base, err := url.Parse(variant.URL)
	if err != nil {
		writeError(w, err)
		return
	}

	out, err := h.rewriter.Rewrite(ctx, raw, base)
	switch {
	case errors.Is(err, playback.ErrInvalidRewrite):
		logger.WarnContext(ctx, "serving upstream playlist unmodified",
			slog.String("channel", id.String()),
			slog.String("upstream", urlutil.Redact(variant.URL)),
			slog.String("error", err.Error()),
		)
		http.Redirect(w, r, variant.URL, http.StatusFound)
		return
	case err != nil:
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", mpegURLContentType)
	// Live windows change on every upstream reload.
	w.Header().Set("Cache-Control", "no-cache, no-store")
	_, _ = w.Write(out)
}
