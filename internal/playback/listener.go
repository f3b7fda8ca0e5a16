package playback

import (
	"context"
	"log/slog"

	"github.com/jmylchreest/playarr/internal/observability"
	"github.com/jmylchreest/playarr/internal/platform"
)

// LogListener reports session events to a logger.
type LogListener struct {
	logger *slog.Logger
}

// NewLogListener creates a listener that logs through logger.
func NewLogListener(logger *slog.Logger) *LogListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogListener{logger: observability.WithComponent(logger, "session")}
}

func (l *LogListener) StateChanged(sessionID string, from, to State) {
	level := slog.LevelInfo
	if to == StateIntegrityRequired {
		level = slog.LevelError
	}
	l.logger.Log(context.Background(), level, "session state changed",
		slog.String("session_id", sessionID),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
	)
}

func (l *LogListener) AdStateChanged(sessionID string, playing bool) {
	msg := "ad break ended"
	if playing {
		msg = "ad break started"
	}
	l.logger.Info(msg, slog.String("session_id", sessionID))
}

func (l *LogListener) MetadataUpdated(sessionID string, md platform.StreamMetadata) {
	l.logger.Info("stream metadata updated",
		slog.String("session_id", sessionID),
		slog.String("title", md.Title),
		slog.String("game", md.GameName),
		slog.Int("viewers", md.ViewerCount),
	)
}
