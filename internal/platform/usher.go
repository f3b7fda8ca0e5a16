package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jmylchreest/playarr/internal/urlutil"
)

// UsherURL builds the multivariant playlist URL for the identity.
func (c *Client) UsherURL(token AccessToken, id Identity) string {
	var path string
	if id.IsLive() {
		path = "/api/channel/hls/" + url.PathEscape(id.Login) + ".m3u8"
	} else {
		path = "/vod/" + url.PathEscape(id.VideoID) + ".m3u8"
	}

	q := url.Values{}
	q.Set("token", token.Value)
	q.Set("sig", token.Signature)
	q.Set("allow_source", "true")
	q.Set("allow_audio_only", "true")
	if id.IsLive() {
		q.Set("fast_bread", "true")
	}
	q.Set("p", strconv.Itoa(rand.IntN(9_999_999)))
	q.Set("player_backend", "mediaplayer")
	q.Set("playlist_include_framerate", "true")
	if c.supportedCodecs != "" {
		q.Set("supported_codecs", c.supportedCodecs)
	}

	return urlutil.JoinPath(c.usherURL, path) + "?" + q.Encode()
}

// FetchMultivariant downloads the multivariant playlist. 403 and 404 from
// usher mean the stream is offline or the video is gone.
func (c *Client) FetchMultivariant(ctx context.Context, token AccessToken, id Identity, headers ClientHeaders) ([]byte, error) {
	const op = "fetch multivariant"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.UsherURL(token, id), nil)
	if err != nil {
		return nil, fmt.Errorf("creating usher request: %w", err)
	}
	headers.Apply(req)
	req.Header.Set("Accept", "application/x-mpegURL, application/vnd.apple.mpegurl")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: urlutil.RedactError(err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("usher returned %d for %s: %w", resp.StatusCode, id, ErrStreamUnavailable)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: errors.New("unexpected status")}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	return data, nil
}
