package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jmylchreest/playarr/internal/config"
	"github.com/jmylchreest/playarr/internal/observability"
	"github.com/jmylchreest/playarr/internal/urlutil"
	"github.com/jmylchreest/playarr/pkg/httpclient"
)

const playbackAccessTokenQuery = `query PlaybackAccessToken($login: String!, $isLive: Boolean!, $vodID: ID!, $isVod: Boolean!, $playerType: String!) {
  streamPlaybackAccessToken(channelName: $login, params: {platform: "web", playerBackend: "mediaplayer", playerType: $playerType}) @include(if: $isLive) {
    value
    signature
  }
  videoPlaybackAccessToken(id: $vodID, params: {platform: "web", playerBackend: "mediaplayer", playerType: $playerType}) @include(if: $isVod) {
    value
    signature
  }
}`

const streamMetadataQuery = `query StreamMetadata($login: String!) {
  user(login: $login) {
    broadcastSettings {
      title
    }
    stream {
      viewersCount
      createdAt
      game {
        id
        displayName
      }
    }
  }
}`

// Client is the platform API client. It holds no per-session state: identity
// and headers are passed on every call.
type Client struct {
	http            *httpclient.Client
	gqlURL          string
	usherURL        string
	playerType      string
	supportedCodecs string
	logger          *slog.Logger
}

// NewClient creates a platform client that sends every request through hc,
// or through a default client when hc is nil.
func NewClient(cfg config.PlatformConfig, hc *httpclient.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if hc == nil {
		hc = httpclient.NewWithDefaults()
	}
	return &Client{
		http:            hc,
		gqlURL:          cfg.GQLURL,
		usherURL:        urlutil.NormalizeBaseURL(cfg.UsherURL),
		playerType:      cfg.PlayerType,
		supportedCodecs: cfg.SupportedCodecs,
		logger:          observability.WithComponent(logger, "platform"),
	}
}

// HeadersFromConfig builds the client headers from configuration. A random
// device id is generated when none is configured.
func HeadersFromConfig(cfg config.PlatformConfig) ClientHeaders {
	deviceID := cfg.DeviceID
	if deviceID == "" {
		deviceID = NewDeviceID()
	}
	return ClientHeaders{
		ClientID:       cfg.ClientID,
		OAuthToken:     cfg.OAuthToken,
		DeviceID:       deviceID,
		IntegrityToken: cfg.IntegrityToken,
		UserAgent:      cfg.UserAgent,
	}
}

type gqlRequest struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse[T any] struct {
	Data   T          `json:"data"`
	Errors []gqlError `json:"errors"`
}

type tokenPayload struct {
	Value     string `json:"value"`
	Signature string `json:"signature"`
}

type accessTokenData struct {
	Stream *tokenPayload `json:"streamPlaybackAccessToken"`
	Video  *tokenPayload `json:"videoPlaybackAccessToken"`
}

type metadataData struct {
	User *struct {
		BroadcastSettings *struct {
			Title string `json:"title"`
		} `json:"broadcastSettings"`
		Stream *struct {
			ViewersCount int    `json:"viewersCount"`
			CreatedAt    string `json:"createdAt"`
			Game         *struct {
				ID          string `json:"id"`
				DisplayName string `json:"displayName"`
			} `json:"game"`
		} `json:"stream"`
	} `json:"user"`
}

// AccessToken obtains a playback access token for the identity.
func (c *Client) AccessToken(ctx context.Context, id Identity, headers ClientHeaders) (token AccessToken, err error) {
	if err := id.Validate(); err != nil {
		return AccessToken{}, err
	}

	done := observability.TimedOperationWithError(ctx, c.logger, "access_token", &err)
	defer done()

	req := gqlRequest{
		OperationName: "PlaybackAccessToken",
		Query:         playbackAccessTokenQuery,
		Variables: map[string]any{
			"isLive":     id.IsLive(),
			"login":      id.Login,
			"isVod":      !id.IsLive(),
			"vodID":      id.VideoID,
			"playerType": c.playerType,
		},
	}

	var resp gqlResponse[accessTokenData]
	if err := postGQL(ctx, c, "access token", req, headers, &resp); err != nil {
		return AccessToken{}, err
	}

	payload := resp.Data.Stream
	if !id.IsLive() {
		payload = resp.Data.Video
	}
	if payload == nil || payload.Value == "" || payload.Signature == "" {
		return AccessToken{}, fmt.Errorf("no playback token for %s: %w", id, ErrStreamUnavailable)
	}

	return AccessToken{Value: payload.Value, Signature: payload.Signature}, nil
}

// StreamMetadata fetches the live metadata of a channel. An offline channel
// yields ErrStreamUnavailable.
func (c *Client) StreamMetadata(ctx context.Context, id Identity, headers ClientHeaders) (StreamMetadata, error) {
	if !id.IsLive() {
		return StreamMetadata{}, fmt.Errorf("metadata for %s: %w", id, ErrStreamUnavailable)
	}

	req := gqlRequest{
		OperationName: "StreamMetadata",
		Query:         streamMetadataQuery,
		Variables:     map[string]any{"login": id.Login},
	}

	var resp gqlResponse[metadataData]
	if err := postGQL(ctx, c, "stream metadata", req, headers, &resp); err != nil {
		return StreamMetadata{}, err
	}

	user := resp.Data.User
	if user == nil || user.Stream == nil {
		return StreamMetadata{}, fmt.Errorf("channel %s is offline: %w", id, ErrStreamUnavailable)
	}

	md := StreamMetadata{
		ViewerCount: user.Stream.ViewersCount,
		StartedAt:   user.Stream.CreatedAt,
	}
	if user.BroadcastSettings != nil {
		md.Title = user.BroadcastSettings.Title
	}
	if user.Stream.Game != nil {
		md.GameID = user.Stream.Game.ID
		md.GameName = user.Stream.Game.DisplayName
	}
	return md, nil
}

// postGQL posts one GraphQL operation and decodes the response into out.
// GraphQL errors are classified: the integrity challenge message becomes
// ErrIntegrityChallenge, anything else a TransportError.
func postGQL[T any](ctx context.Context, c *Client, op string, body gqlRequest, headers ClientHeaders, out *gqlResponse[T]) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gqlURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating %s request: %w", op, err)
	}
	headers.Apply(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: urlutil.RedactError(err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Integrity rejections can arrive with a non-2xx status.
		if strings.Contains(string(data), integrityFailureMessage) {
			return fmt.Errorf("%s: %w", op, ErrIntegrityChallenge)
		}
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: errors.New("unexpected status")}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}

	for _, e := range out.Errors {
		if e.Message == integrityFailureMessage {
			return fmt.Errorf("%s: %w", op, ErrIntegrityChallenge)
		}
	}
	if len(out.Errors) > 0 {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("graphql error: %s", out.Errors[0].Message)}
	}

	c.logger.Log(ctx, observability.LevelTrace, "graphql response",
		slog.String("operation", body.OperationName),
		slog.Int("bytes", len(data)),
	)
	return nil
}
