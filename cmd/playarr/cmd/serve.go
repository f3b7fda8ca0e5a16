package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	internalhttp "github.com/jmylchreest/playarr/internal/http"
	"github.com/jmylchreest/playarr/internal/http/handlers"
	"github.com/jmylchreest/playarr/internal/platform"
	"github.com/jmylchreest/playarr/internal/playback"
	"github.com/jmylchreest/playarr/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local playback gateway",
	Long: `Start the playarr HTTP gateway.

The gateway provides:
- Rewritten, ad-filtered playlists at /hls/{channel}.m3u8 (video:<id> for recordings)
- A session API under /api/v1/sessions
- Health checks at /health and /livez
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().Int("port", 8383, "Port to listen on")
}

func runServe(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	overrideString(flags, "host", &cfg.Server.Host)
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}

	log := logger()
	a := newApp(cfg, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info("received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	// Gateway requests observe every playlist they serve, so sessions skip
	// the background ad poll.
	opts := a.options()
	opts.AdCheckInterval = 0
	listener := playback.NewLogListener(log)

	manager := playback.NewManager(ctx, func(id platform.Identity) (*playback.Session, error) {
		return a.newSession(id, opts, nil, listener)
	}, log)
	defer manager.StopAll()

	server := internalhttp.NewServer(cfg.Server, log, version.Version)
	handlers.NewHealthHandler(version.Short(), manager).Register(server.API())
	handlers.NewSessionHandler(manager).Register(server.API())
	handlers.NewCircuitBreakerHandler(a.circuitBreakers()).Register(server.API())
	handlers.NewPlaylistHandler(manager, a.rewriter, cfg.Playback.Proxy).
		WithLogger(log).
		RegisterChiRoutes(server.Router())

	log.Info("starting playarr gateway",
		slog.String("address", cfg.Server.Address()),
		slog.String("version", version.Version),
		slog.Bool("remove_ads", cfg.Playback.RemoveAds),
		slog.Bool("proxy", cfg.Playback.Proxy.Enabled),
	)

	return server.ListenAndServe(ctx)
}
