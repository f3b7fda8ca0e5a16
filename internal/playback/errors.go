package playback

import "github.com/jmylchreest/playarr/internal/platform"

// Error kinds surfaced by the pipeline. They are the platform kinds so that
// errors.Is works across both packages.
var (
	ErrIntegrityChallenge = platform.ErrIntegrityChallenge
	ErrStreamUnavailable  = platform.ErrStreamUnavailable
)

// TransportError is a retryable network failure.
type TransportError = platform.TransportError
