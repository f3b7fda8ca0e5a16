// Package handlers provides the HTTP handlers of the playback gateway.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/playarr/internal/platform"
	"github.com/jmylchreest/playarr/internal/playback"
)

// SessionService is the part of playback.Manager the handlers use.
type SessionService interface {
	Acquire(ctx context.Context, id platform.Identity) (*playback.Session, error)
	Get(id platform.Identity) (*playback.Session, bool)
	Stop(id platform.Identity) bool
	List() []playback.Status
}

var _ SessionService = (*playback.Manager)(nil)

const videoPrefix = "video:"

// ParseIdentity reads a channel path parameter: a login, or "video:<id>"
// for a recorded video.
func ParseIdentity(channel string) (platform.Identity, error) {
	var id platform.Identity
	if videoID, ok := strings.CutPrefix(channel, videoPrefix); ok {
		id = platform.Video(videoID)
	} else {
		id = platform.Live(channel)
	}
	if err := id.Validate(); err != nil {
		return platform.Identity{}, err
	}
	return id, nil
}

// statusForError maps playback errors onto gateway responses.
func statusForError(err error) int {
	switch {
	case platform.IsIntegrityChallenge(err):
		return http.StatusPreconditionRequired
	case errors.Is(err, playback.ErrStreamUnavailable):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case platform.IsTransport(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func messageForStatus(status int) string {
	switch status {
	case http.StatusPreconditionRequired:
		return "integrity challenge required"
	case http.StatusNotFound:
		return "stream unavailable"
	case http.StatusGatewayTimeout:
		return "upstream timed out"
	case http.StatusBadGateway:
		return "upstream request failed"
	default:
		return "internal error"
	}
}

func apiError(err error) error {
	status := statusForError(err)
	return huma.NewError(status, messageForStatus(status), err)
}

func writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	http.Error(w, messageForStatus(status)+": "+err.Error(), status)
}

// sessionError reports a session that can no longer serve playlists.
func sessionError(s *playback.Session) error {
	switch s.State() {
	case playback.StateIntegrityRequired:
		return playback.ErrIntegrityChallenge
	case playback.StateUnavailable:
		return playback.ErrStreamUnavailable
	}
	return nil
}
