package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/playarr/internal/playback"
)

// SessionHandler exposes the running playback sessions.
type SessionHandler struct {
	sessions SessionService
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(sessions SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// SessionPathInput addresses one session.
type SessionPathInput struct {
	Channel string `path:"channel" doc:"Channel login, or video:<id> for a recorded video" example:"somechannel"`
}

// SessionOutput is a single session.
type SessionOutput struct {
	Body playback.Status
}

// ListSessionsInput is the input for listing sessions.
type ListSessionsInput struct{}

// ListSessionsOutput lists sessions ordered by channel.
type ListSessionsOutput struct {
	Body struct {
		Sessions []playback.Status `json:"sessions"`
	}
}

// Register registers the session routes with the API.
func (h *SessionHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listSessions",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions",
		Summary:     "List sessions",
		Tags:        []string{"Sessions"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getSession",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{channel}",
		Summary:     "Get a session",
		Tags:        []string{"Sessions"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "startSession",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{channel}",
		Summary:     "Start a session",
		Description: "Acquires a token, resolves the variants and starts playback. An existing session is returned as is.",
		Tags:        []string{"Sessions"},
	}, h.Start)

	huma.Register(api, huma.Operation{
		OperationID:   "stopSession",
		Method:        http.MethodDelete,
		Path:          "/api/v1/sessions/{channel}",
		Summary:       "Stop a session",
		DefaultStatus: http.StatusNoContent,
		Tags:          []string{"Sessions"},
	}, h.Stop)
}

// List returns every session.
func (h *SessionHandler) List(_ context.Context, _ *ListSessionsInput) (*ListSessionsOutput, error) {
	out := &ListSessionsOutput{}
	out.Body.Sessions = h.sessions.List()
	return out, nil
}

// Get returns one session.
func (h *SessionHandler) Get(_ context.Context, input *SessionPathInput) (*SessionOutput, error) {
	id, err := ParseIdentity(input.Channel)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid channel", err)
	}
	s, ok := h.sessions.Get(id)
	if !ok {
		return nil, huma.Error404NotFound("session not found")
	}
	return &SessionOutput{Body: s.Status()}, nil
}

// Start acquires the session for a channel.
func (h *SessionHandler) Start(ctx context.Context, input *SessionPathInput) (*SessionOutput, error) {
	id, err := ParseIdentity(input.Channel)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid channel", err)
	}
	s, err := h.sessions.Acquire(ctx, id)
	if err != nil {
		return nil, apiError(err)
	}
	if err := sessionError(s); err != nil {
		return nil, apiError(err)
	}
	return &SessionOutput{Body: s.Status()}, nil
}

// Stop stops a session.
func (h *SessionHandler) Stop(_ context.Context, input *SessionPathInput) (*struct{}, error) {
	id, err := ParseIdentity(input.Channel)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid channel", err)
	}
	if !h.sessions.Stop(id) {
		return nil, huma.Error404NotFound("session not found")
	}
	return nil, nil
}
