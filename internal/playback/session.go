package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/playarr/internal/observability"
	"github.com/jmylchreest/playarr/internal/platform"
	"github.com/jmylchreest/playarr/pkg/hls"
)

// State is the lifecycle state of a playback session.
type State int

const (
	StateIdle State = iota
	StateTokenAcquired
	StateVariantsResolved
	StatePlaying
	StateRefreshing
	StateIntegrityRequired
	StateUnavailable
	StateStopped
)

var stateNames = map[State]string{
	StateIdle:              "idle",
	StateTokenAcquired:     "token_acquired",
	StateVariantsResolved:  "variants_resolved",
	StatePlaying:           "playing",
	StateRefreshing:        "refreshing",
	StateIntegrityRequired: "integrity_required",
	StateUnavailable:       "unavailable",
	StateStopped:           "stopped",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// IsTerminal reports whether no further playback can happen in this state.
func (s State) IsTerminal() bool {
	return s == StateUnavailable || s == StateStopped
}

// Default timings of the live refresh loop.
const (
	DefaultRefreshInterval = 300 * time.Second
	DefaultRefreshBackoff  = 60 * time.Second
)

var errSessionStopped = errors.New("session stopped")

// Options tune a session.
type Options struct {
	// Quality is the preferred variant, see SelectVariant.
	Quality string
	// RefreshInterval is the delay between successful metadata refreshes.
	RefreshInterval time.Duration
	// RefreshBackoff is the delay after a failed refresh.
	RefreshBackoff time.Duration
	// AdCheckInterval polls the playing media playlist for ads. Zero disables polling.
	AdCheckInterval time.Duration
}

// Dependencies are the collaborators of a session. Tokens and Variants are
// required; the rest are optional.
type Dependencies struct {
	Tokens    TokenSource
	Variants  MultivariantFetcher
	Playlists PlaylistFetcher
	Metadata  MetadataSource
	Player    Player
	Listener  Listener
	Markers   hls.AdMarkers
	Logger    *slog.Logger
}

// Status is a point-in-time view of a session.
type Status struct {
	ID        string                   `json:"id"`
	Channel   string                   `json:"channel"`
	State     State                    `json:"state"`
	Quality   string                   `json:"quality,omitempty"`
	URL       string                   `json:"url,omitempty"`
	Qualities []string                 `json:"qualities,omitempty"`
	AdPlaying bool                     `json:"ad_playing"`
	Metadata  *platform.StreamMetadata `json:"metadata,omitempty"`
	StartedAt time.Time                `json:"started_at"`
	LastError string                   `json:"last_error,omitempty"`
}

// Session plays one channel or video. It owns its token, variants and
// playlist state; nothing is shared with other sessions.
type Session struct {
	id       string
	identity platform.Identity
	headers  platform.ClientHeaders
	opts     Options
	deps     Dependencies

	resolver   *Resolver
	parser     *hls.Parser
	classifier *hls.Classifier
	logger     *slog.Logger

	// integrityRaised is set by the first integrity failure; later ones are no-ops.
	integrityRaised atomic.Bool

	mu        sync.Mutex
	state     State
	token     platform.AccessToken
	variants  []hls.Variant
	selected  hls.Variant
	adPlaying bool
	metadata  *platform.StreamMetadata
	startedAt time.Time
	lastErr   error
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewSession creates an idle session for id.
func NewSession(id platform.Identity, headers platform.ClientHeaders, opts Options, deps Dependencies) (*Session, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if deps.Tokens == nil || deps.Variants == nil {
		return nil, errors.New("session needs a token source and a multivariant fetcher")
	}
	if deps.Player == nil {
		deps.Player = PlayerFunc(func(context.Context, hls.Variant) error { return nil })
	}
	if deps.Listener == nil {
		deps.Listener = NopListener{}
	}
	if deps.Markers.IsZero() {
		deps.Markers = hls.DefaultAdMarkers()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	if opts.RefreshBackoff <= 0 {
		opts.RefreshBackoff = DefaultRefreshBackoff
	}

	sessionID := ulid.Make().String()
	logger := observability.WithSession(observability.WithComponent(deps.Logger, "session"), sessionID, id.String())

	return &Session{
		id:         sessionID,
		identity:   id,
		headers:    headers,
		opts:       opts,
		deps:       deps,
		resolver:   NewResolver(deps.Variants, deps.Logger),
		parser:     hls.NewParser(deps.Markers),
		classifier: hls.NewClassifier(deps.Markers),
		logger:     logger,
		state:      StateIdle,
	}, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Identity returns what the session plays.
func (s *Session) Identity() platform.Identity { return s.identity }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Selected returns the variant handed to the player.
func (s *Session) Selected() hls.Variant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Variant returns the resolved variant matching pref, or the selected one
// when pref is empty. It reports false before variants are resolved.
func (s *Session) Variant(pref string) (hls.Variant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pref == "" && s.selected.URL != "" {
		return s.selected, true
	}
	return SelectVariant(s.variants, pref)
}

// AdPlaying reports the last published ad signal.
func (s *Session) AdPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adPlaying
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		ID:        s.id,
		Channel:   s.identity.String(),
		State:     s.state,
		Quality:   s.selected.Quality,
		URL:       s.selected.URL,
		Qualities: QualityNames(s.variants),
		AdPlaying: s.adPlaying,
		StartedAt: s.startedAt,
	}
	if s.metadata != nil {
		md := *s.metadata
		st.Metadata = &md
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Start acquires a token, resolves the variants, selects a quality and hands
// the variant to the player. Live sessions then refresh metadata in the
// background until ctx is cancelled or Stop is called.
func (s *Session) Start(ctx context.Context) (err error) {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("session %s cannot start from state %s", s.id, state)
	}
	s.startedAt = time.Now()
	s.mu.Unlock()

	done := observability.TimedOperationWithError(ctx, s.logger, "start_session", &err)
	defer done()

	token, err := s.deps.Tokens.AccessToken(ctx, s.identity, s.headers)
	if err != nil {
		return s.startFailed(fmt.Errorf("acquiring token: %w", err))
	}
	if !s.advance(StateIdle, StateTokenAcquired, func() { s.token = token }) {
		return errSessionStopped
	}

	variants, err := s.resolver.Resolve(ctx, token, s.identity, s.headers)
	if err != nil {
		return s.startFailed(err)
	}
	if !s.advance(StateTokenAcquired, StateVariantsResolved, func() { s.variants = variants }) {
		return errSessionStopped
	}

	selected, _ := SelectVariant(variants, s.opts.Quality)
	if err := s.deps.Player.Play(ctx, selected); err != nil {
		return s.startFailed(fmt.Errorf("starting player: %w", err))
	}

	loopCtx, cancel := context.WithCancel(ctx)
	runRefresh := s.identity.IsLive() && s.deps.Metadata != nil
	runAdCheck := s.opts.AdCheckInterval > 0 && s.deps.Playlists != nil
	started := s.advance(StateVariantsResolved, StatePlaying, func() {
		s.selected = selected
		s.cancel = cancel
		// Added under the lock so Stop cannot Wait before the loops are counted.
		if runRefresh {
			s.wg.Add(1)
		}
		if runAdCheck {
			s.wg.Add(1)
		}
	})
	if !started {
		cancel()
		return errSessionStopped
	}

	s.logger.InfoContext(ctx, "playback started",
		slog.String("quality", selected.Quality),
		slog.Int("variants", len(variants)),
	)

	if runRefresh {
		go s.refreshLoop(loopCtx)
	}
	if runAdCheck {
		go s.adCheckLoop(loopCtx)
	}
	return nil
}

// Stop ends the session and waits for its background loops. It must not be
// called from a Listener callback.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	from := s.state
	s.state = StateStopped
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	s.logger.Info("session stopped")
	s.deps.Listener.StateChanged(s.id, from, StateStopped)
}

// HandleError applies the session's recovery policy to an error raised by a
// background step: integrity challenges move the session to
// IntegrityRequired once, everything else is recorded and otherwise ignored.
// It returns true only for the call that raised the integrity state.
func (s *Session) HandleError(err error) bool {
	if err == nil {
		return false
	}
	s.recordError(err)
	if platform.IsIntegrityChallenge(err) {
		return s.raiseIntegrity()
	}
	return false
}

// HandlePlaylistError applies HandleError to a failed media playlist fetch.
// A playlist that is gone or forbidden ends playback: the session becomes
// Unavailable and its background loops are cancelled, so the manager
// replaces it on the next Acquire. It reports whether the session ended.
func (s *Session) HandlePlaylistError(err error) bool {
	if err == nil {
		return false
	}
	if platform.IsIntegrityChallenge(err) || !errors.Is(err, ErrStreamUnavailable) {
		s.HandleError(err)
		return false
	}
	s.recordError(err)
	if !s.markUnavailable() {
		return false
	}
	observability.WithError(s.logger, err).Warn("media playlist unavailable")
	return true
}

// RefreshMetadata fetches live metadata once and publishes it.
func (s *Session) RefreshMetadata(ctx context.Context) error {
	if s.deps.Metadata == nil {
		return nil
	}

	entered := s.advance(StatePlaying, StateRefreshing, nil)
	md, err := s.deps.Metadata.StreamMetadata(ctx, s.identity, s.headers)
	if entered {
		s.advance(StateRefreshing, StatePlaying, nil)
	}

	if err != nil {
		if ctx.Err() == nil {
			s.HandleError(err)
			observability.WithError(s.logger, err).DebugContext(ctx, "metadata refresh failed")
		}
		return err
	}

	s.mu.Lock()
	s.metadata = &md
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "metadata refreshed", slog.Int("viewers", md.ViewerCount))
	s.deps.Listener.MetadataUpdated(s.id, md)
	return nil
}

// CheckAds fetches the playing media playlist and updates the ad signal.
// Failures are swallowed; the previous signal is returned.
func (s *Session) CheckAds(ctx context.Context) bool {
	s.mu.Lock()
	playlistURL := s.selected.URL
	prev := s.adPlaying
	s.mu.Unlock()

	if playlistURL == "" || s.deps.Playlists == nil {
		return prev
	}

	data, err := s.deps.Playlists.FetchMediaPlaylist(ctx, playlistURL)
	if err != nil {
		if ctx.Err() == nil {
			s.HandlePlaylistError(err)
			observability.WithError(s.logger, err).DebugContext(ctx, "ad check failed")
		}
		return prev
	}
	return s.ObservePlaylist(data)
}

// ObservePlaylist classifies an already fetched media playlist of this
// session and publishes the ad signal when it changes.
func (s *Session) ObservePlaylist(data []byte) bool {
	pl, err := s.parser.ParseBytes(data)
	if err != nil {
		return s.AdPlaying()
	}
	isAd := s.classifier.IsAd(pl)

	s.mu.Lock()
	changed := s.adPlaying != isAd
	s.adPlaying = isAd
	s.mu.Unlock()

	if changed {
		s.logger.Info("ad state changed", slog.Bool("ad_playing", isAd))
		s.deps.Listener.AdStateChanged(s.id, isAd)
	}
	return isAd
}

func (s *Session) refreshLoop(ctx context.Context) {
	defer s.wg.Done()

	// Metadata is not retried while an integrity remediation is pending.
	for !s.integrityRaised.Load() {
		wait := s.opts.RefreshInterval
		if err := s.RefreshMetadata(ctx); err != nil {
			if s.integrityRaised.Load() {
				return
			}
			wait = s.opts.RefreshBackoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Session) adCheckLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.AdCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CheckAds(ctx)
		}
	}
}

// advance moves the session from one state to another and runs apply under
// the lock. It returns false, without applying, when the session is not in
// from.
func (s *Session) advance(from, to State, apply func()) bool {
	s.mu.Lock()
	if s.state != from {
		s.mu.Unlock()
		return false
	}
	s.state = to
	if apply != nil {
		apply()
	}
	s.mu.Unlock()

	s.deps.Listener.StateChanged(s.id, from, to)
	return true
}

func (s *Session) raiseIntegrity() bool {
	if !s.integrityRaised.CompareAndSwap(false, true) {
		return false
	}

	s.mu.Lock()
	from := s.state
	if from == StateStopped {
		s.mu.Unlock()
		return true
	}
	s.state = StateIntegrityRequired
	s.mu.Unlock()

	s.logger.Warn("integrity challenge required")
	s.deps.Listener.StateChanged(s.id, from, StateIntegrityRequired)
	return true
}

func (s *Session) startFailed(err error) error {
	s.recordError(err)

	switch {
	case platform.IsIntegrityChallenge(err):
		s.raiseIntegrity()
	case errors.Is(err, ErrStreamUnavailable):
		s.markUnavailable()
	}
	return err
}

// markUnavailable ends the session without waiting for its loops, since it
// may run on one of them. Stopped, Unavailable and IntegrityRequired are kept.
func (s *Session) markUnavailable() bool {
	s.mu.Lock()
	from := s.state
	switch from {
	case StateStopped, StateUnavailable, StateIntegrityRequired:
		s.mu.Unlock()
		return false
	}
	s.state = StateUnavailable
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.deps.Listener.StateChanged(s.id, from, StateUnavailable)
	return true
}

func (s *Session) recordError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}
