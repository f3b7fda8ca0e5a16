package playback

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/playarr/internal/observability"
	"github.com/jmylchreest/playarr/internal/platform"
	"github.com/jmylchreest/playarr/pkg/hls"
)

// Resolver turns an access token into the ordered list of playable variants.
type Resolver struct {
	fetcher MultivariantFetcher
	logger  *slog.Logger
}

// NewResolver creates a resolver backed by fetcher.
func NewResolver(fetcher MultivariantFetcher, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{fetcher: fetcher, logger: observability.WithComponent(logger, "resolver")}
}

// Resolve fetches and parses the multivariant playlist. Variants keep the
// source order, highest quality first. A playlist without variants means the
// stream is offline and yields ErrStreamUnavailable.
func (r *Resolver) Resolve(ctx context.Context, token platform.AccessToken, id platform.Identity, headers platform.ClientHeaders) ([]hls.Variant, error) {
	data, err := r.fetcher.FetchMultivariant(ctx, token, id, headers)
	if err != nil {
		return nil, fmt.Errorf("resolving variants for %s: %w", id, err)
	}

	// Variant URLs are signed, so only the size is logged.
	r.logger.Log(ctx, observability.LevelTrace, "multivariant playlist",
		slog.String("channel", id.String()),
		slog.Int("bytes", len(data)),
	)

	variants, err := hls.ParseVariants(data)
	if err != nil {
		return nil, fmt.Errorf("parsing variants for %s: %w", id, err)
	}
	if len(variants) == 0 {
		return nil, fmt.Errorf("no variants for %s: %w", id, ErrStreamUnavailable)
	}

	r.logger.DebugContext(ctx, "resolved variants",
		slog.String("channel", id.String()),
		slog.Int("count", len(variants)),
	)
	return variants, nil
}
