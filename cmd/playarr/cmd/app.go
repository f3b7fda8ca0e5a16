package cmd

import (
	"log/slog"

	"github.com/jmylchreest/playarr/internal/config"
	"github.com/jmylchreest/playarr/internal/http/handlers"
	"github.com/jmylchreest/playarr/internal/platform"
	"github.com/jmylchreest/playarr/internal/playback"
	"github.com/jmylchreest/playarr/internal/version"
	"github.com/jmylchreest/playarr/pkg/httpclient"
)

// app holds the collaborators shared by play and serve.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	headers  platform.ClientHeaders
	platform *platform.Client
	rewriter *playback.Rewriter
	variants playback.MultivariantFetcher
	// platformHTTP carries the token, metadata and multivariant requests.
	platformHTTP *httpclient.Client
}

func newApp(cfg *config.Config, logger *slog.Logger) *app {
	httpCfg := httpClientConfig(cfg.HTTP, logger)

	rewriter := playback.NewRewriter(playback.RewriterConfig{
		HTTP:      httpCfg,
		Markers:   cfg.Ads,
		RemoveAds: cfg.Playback.RemoveAds,
		Logger:    logger,
	})
	platformHTTP := httpclient.New(httpCfg)
	client := platform.NewClient(cfg.Platform, platformHTTP, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		headers:  platform.HeadersFromConfig(cfg.Platform),
		platform: client,
		rewriter: rewriter,
		variants: rewriter.WithCodecs(client, cfg.Playback.InjectCodecs),

		platformHTTP: platformHTTP,
	}
}

// circuitBreakers names the breakers of the upstream clients.
func (a *app) circuitBreakers() map[string]handlers.CircuitBreaker {
	return map[string]handlers.CircuitBreaker{
		"platform":  a.platformHTTP,
		"playlists": a.rewriter.HTTPClient(),
	}
}

func httpClientConfig(c config.HTTPConfig, logger *slog.Logger) httpclient.Config {
	hc := httpclient.DefaultConfig()
	hc.Timeout = c.Timeout
	hc.RetryAttempts = c.RetryAttempts
	hc.RetryDelay = c.RetryDelay
	hc.CircuitThreshold = c.CircuitBreakerThreshold
	hc.CircuitTimeout = c.CircuitBreakerTimeout
	hc.MaxResponseSize = c.MaxResponseSize
	hc.UserAgent = version.UserAgent()
	hc.EnableDecompression = true
	hc.Logger = logger
	return hc
}

func (a *app) options() playback.Options {
	return playback.Options{
		Quality:         a.cfg.Playback.Quality,
		RefreshInterval: a.cfg.Playback.RefreshInterval,
		RefreshBackoff:  a.cfg.Playback.RefreshBackoff,
		AdCheckInterval: a.cfg.Playback.AdCheckInterval,
	}
}

func (a *app) newSession(id platform.Identity, opts playback.Options, player playback.Player, listener playback.Listener) (*playback.Session, error) {
	return playback.NewSession(id, a.headers, opts, playback.Dependencies{
		Tokens:    a.platform,
		Variants:  a.variants,
		Playlists: a.rewriter.ProxiedFetcher(a.cfg.Playback.Proxy),
		Metadata:  a.platform,
		Player:    player,
		Listener:  listener,
		Markers:   a.cfg.Ads,
		Logger:    a.logger,
	})
}
