// Package platform talks to the streaming platform: the GraphQL API for
// playback tokens and stream metadata, and the usher service for
// multivariant playlists.
package platform

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Identity names what is being played. Exactly one of Login or VideoID is set.
type Identity struct {
	Login   string
	VideoID string
}

// Live returns an identity for a live channel.
func Live(login string) Identity {
	return Identity{Login: strings.ToLower(strings.TrimSpace(login))}
}

// Video returns an identity for a recorded video.
func Video(id string) Identity {
	return Identity{VideoID: strings.TrimSpace(id)}
}

// IsLive reports whether the identity refers to a live channel.
func (i Identity) IsLive() bool {
	return i.Login != ""
}

// Validate checks that exactly one of Login or VideoID is set.
func (i Identity) Validate() error {
	switch {
	case i.Login != "" && i.VideoID != "":
		return fmt.Errorf("identity has both login %q and video id %q", i.Login, i.VideoID)
	case i.Login == "" && i.VideoID == "":
		return fmt.Errorf("identity needs a login or a video id")
	}
	return nil
}

func (i Identity) String() string {
	if i.IsLive() {
		return i.Login
	}
	return "video:" + i.VideoID
}

// AccessToken authorizes playlist retrieval for one session. It is never
// persisted.
type AccessToken struct {
	Value     string
	Signature string
}

// IsZero reports whether the token is missing either part.
func (t AccessToken) IsZero() bool {
	return t.Value == "" || t.Signature == ""
}

// ClientHeaders is the client identity sent with every platform request.
type ClientHeaders struct {
	ClientID       string
	OAuthToken     string
	DeviceID       string
	IntegrityToken string
	UserAgent      string
}

// NewDeviceID returns a random device id in the platform's 32 hex character form.
func NewDeviceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Apply sets the non-empty headers on req.
func (h ClientHeaders) Apply(req *http.Request) {
	if h.ClientID != "" {
		req.Header.Set("Client-ID", h.ClientID)
	}
	if h.OAuthToken != "" {
		req.Header.Set("Authorization", "OAuth "+h.OAuthToken)
	}
	if h.DeviceID != "" {
		req.Header.Set("X-Device-Id", h.DeviceID)
	}
	if h.IntegrityToken != "" {
		req.Header.Set("Client-Integrity", h.IntegrityToken)
	}
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}
}

// StreamMetadata is the live information refreshed while a channel plays.
type StreamMetadata struct {
	Title       string `json:"title"`
	ViewerCount int    `json:"viewer_count"`
	GameID      string `json:"game_id,omitempty"`
	GameName    string `json:"game_name,omitempty"`
	StartedAt   string `json:"started_at,omitempty"`
}
