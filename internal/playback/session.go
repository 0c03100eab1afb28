// Package playback implements the state machine behind a single watch
// session: episode resolution, progress tracking, control-overlay
// visibility, auto-advance and history reporting. It has no UI
// dependencies; views drive it through events and render from Snapshot.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/aozaki/anistream/internal/api"
	"github.com/aozaki/anistream/internal/timer"
)

// State identifies where a watch session is in its lifecycle.
type State string

const (
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StatePlaying  State = "playing"
	StatePaused   State = "paused"
	StateEnded    State = "ended"
	StateNotFound State = "not_found"
	StateError    State = "error"
)

// DefaultControlsTimeout is how long the control overlay stays visible
// without activity while playing.
const DefaultControlsTimeout = 3 * time.Second

// Catalog is the read side of the backend needed to resolve an episode.
type Catalog interface {
	GetAnime(ctx context.Context, id string) (*api.Anime, error)
}

// Controller receives the commands a session issues to the underlying
// player. *mpv.MPVPlayer satisfies it.
type Controller interface {
	SeekPercent(ctx context.Context, percent float64) error
	SetPause(ctx context.Context, paused bool) error
	SetVolume(ctx context.Context, volume int) error
	SetMute(ctx context.Context, muted bool) error
	SetFullscreen(ctx context.Context, fullscreen bool) error
}

// Reporter receives progress reports for history tracking. Reports are
// best-effort; implementations must not block the caller.
type Reporter interface {
	Report(userID, animeID string, episodeNumber int, progress float64)
}

// Config assembles a session's collaborators.
type Config struct {
	Catalog  Catalog
	Player   Controller
	Reporter Reporter

	// Identity returns the signed-in user ID, or "" when signed out.
	// Progress is only reported while an identity exists.
	Identity func() string

	// ControlsTimeout overrides DefaultControlsTimeout when positive.
	ControlsTimeout time.Duration

	// Volume is the initial volume in [0,1]. Non-positive values mean 1.
	Volume float64

	// OnControlsHidden is invoked after the countdown hides the controls,
	// outside the session lock.
	OnControlsHidden func()

	Logger *slog.Logger
}

// Resolution is the outcome of resolving an episode under a given
// session generation. Apply discards stale resolutions.
type Resolution struct {
	Anime   *api.Anime
	Episode *api.Episode
	Err     error

	generation int
}

// Snapshot is a point-in-time copy of the session state for rendering.
type Snapshot struct {
	State      State
	Generation int

	AnimeID       string
	EpisodeNumber int
	Anime         *api.Anime
	Episode       *api.Episode

	ProgressPercent float64
	// DurationSeconds is 0 until the player resolves the duration.
	DurationSeconds float64
	Volume          float64
	Muted           bool
	Fullscreen      bool

	ControlsVisible    bool
	EpisodeListVisible bool

	HasNext     bool
	HasPrev     bool
	AutoAdvance bool

	Err error
}

// Session drives one episode's playback from cold start to an episode
// switch, navigation away, or natural end of playback.
type Session struct {
	mu sync.Mutex

	catalog  Catalog
	player   Controller
	reporter Reporter
	identity func() string
	logger   *slog.Logger

	generation int
	state      State
	err        error

	animeID       string
	episodeNumber int
	anime         *api.Anime
	episode       *api.Episode

	progressPercent float64
	durationSeconds float64
	volume          float64
	muted           bool
	fullscreen      bool

	controlsVisible    bool
	episodeListVisible bool
	countdown          *timer.Countdown
	onControlsHidden   func()

	lastReported int
}

// NewSession creates a session in StateLoading. Call Begin to bind it to
// an episode.
func NewSession(cfg Config) *Session {
	timeout := cfg.ControlsTimeout
	if timeout <= 0 {
		timeout = DefaultControlsTimeout
	}
	volume := cfg.Volume
	if volume <= 0 {
		volume = 1
	}
	if volume > 1 {
		volume = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		catalog:          cfg.Catalog,
		player:           cfg.Player,
		reporter:         cfg.Reporter,
		identity:         cfg.Identity,
		logger:           logger,
		state:            StateLoading,
		volume:           volume,
		controlsVisible:  true,
		onControlsHidden: cfg.OnControlsHidden,
		lastReported:     -1,
	}
	s.countdown = timer.NewCountdown(timeout, s.hideControls)
	return s
}

// Begin resets the session for the given episode and returns the new
// generation. Volume, mute and fullscreen survive the reset; everything
// tied to the episode starts over.
func (s *Session) Begin(animeID string, episodeNumber int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.state = StateLoading
	s.err = nil
	s.animeID = animeID
	s.episodeNumber = episodeNumber
	s.anime = nil
	s.episode = nil
	s.progressPercent = 0
	s.durationSeconds = 0
	s.controlsVisible = true
	s.episodeListVisible = false
	s.lastReported = -1
	s.countdown.Stop()
	return s.generation
}

// ResolveEpisode fetches the anime and locates the episode whose number
// matches. It mutates nothing, so it can run off the event loop; hand
// the result to Apply. Absent anime or episode yields an error wrapping
// api.ErrNotFound.
func (s *Session) ResolveEpisode(ctx context.Context, animeID string, episodeNumber, generation int) Resolution {
	res := Resolution{generation: generation}

	anime, err := s.catalog.GetAnime(ctx, animeID)
	if err != nil {
		res.Err = fmt.Errorf("resolve anime %s: %w", animeID, err)
		return res
	}
	res.Anime = anime

	for i := range anime.Episodes {
		if anime.Episodes[i].Number == episodeNumber {
			res.Episode = &anime.Episodes[i]
			return res
		}
	}
	res.Err = fmt.Errorf("episode %d of anime %s: %w", episodeNumber, animeID, api.ErrNotFound)
	return res
}

// Apply installs a resolution. It returns false when the resolution
// belongs to an earlier generation and was discarded.
func (s *Session) Apply(res Resolution) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if res.generation != s.generation {
		s.logger.Debug("discarding stale episode resolution",
			"resolved", res.generation, "current", s.generation)
		return false
	}

	if res.Err != nil {
		s.err = res.Err
		if errors.Is(res.Err, api.ErrNotFound) {
			s.state = StateNotFound
		} else {
			s.state = StateError
		}
		return true
	}

	s.anime = res.Anime
	s.episode = res.Episode
	s.state = StateReady
	return true
}

// MarkPlaying records that the player started for this generation and
// arms the control-hide countdown.
func (s *Session) MarkPlaying(generation int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation {
		return false
	}
	if s.state != StateReady && s.state != StatePaused {
		return false
	}
	s.state = StatePlaying
	s.startCountdownLocked()
	return true
}

// MarkError records a player failure for this generation.
func (s *Session) MarkError(generation int, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation {
		return false
	}
	s.state = StateError
	s.err = err
	s.countdown.Stop()
	return true
}

// OnProgressTick ingests a progress report from the player as the played
// fraction of the episode. Repeated identical ticks are no-ops; progress
// is reported to the Reporter only when the integer percent changes and
// an identity exists.
func (s *Session) OnProgressTick(playedFraction float64) {
	if playedFraction < 0 {
		playedFraction = 0
	}
	if playedFraction > 1 {
		playedFraction = 1
	}

	s.mu.Lock()
	if s.state != StateReady && s.state != StatePlaying && s.state != StatePaused {
		s.mu.Unlock()
		return
	}
	s.progressPercent = playedFraction * 100

	var report func()
	if s.reporter != nil {
		percent := int(s.progressPercent)
		if percent != s.lastReported {
			if userID := s.userIDLocked(); userID != "" {
				s.lastReported = percent
				reporter := s.reporter
				animeID := s.animeID
				episodeNumber := s.episodeNumber
				progress := s.progressPercent
				report = func() { reporter.Report(userID, animeID, episodeNumber, progress) }
			}
		}
	}
	s.mu.Unlock()

	if report != nil {
		report()
	}
}

// OnDurationResolved records the episode duration in seconds. The value
// may arrive before or after the first progress tick; zero means the
// duration is still unknown.
func (s *Session) OnDurationResolved(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seconds < 0 {
		seconds = 0
	}
	s.durationSeconds = seconds
}

// Seek forwards a seek to the player as a fraction of the duration,
// clamped to [0,1]. It does not touch the tracked progress; the next
// tick does.
func (s *Session) Seek(ctx context.Context, fraction float64) error {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	s.mu.Lock()
	player := s.player
	s.mu.Unlock()

	if player == nil {
		return nil
	}
	return player.SeekPercent(ctx, fraction*100)
}

// TogglePlay flips between playing and paused. The control-hide
// countdown never runs while paused.
func (s *Session) TogglePlay(ctx context.Context) error {
	s.mu.Lock()
	var pause bool
	switch s.state {
	case StatePlaying:
		pause = true
		s.state = StatePaused
		s.controlsVisible = true
		s.countdown.Stop()
	case StatePaused, StateReady:
		pause = false
		s.state = StatePlaying
		s.startCountdownLocked()
	default:
		s.mu.Unlock()
		return nil
	}
	player := s.player
	s.mu.Unlock()

	if player == nil {
		return nil
	}
	return player.SetPause(ctx, pause)
}

// SetVolume stores and forwards the volume, clamped to [0,1]. The muted
// flag is independent: muting never changes the stored volume, so
// un-muting restores it exactly.
func (s *Session) SetVolume(ctx context.Context, v float64) error {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}

	s.mu.Lock()
	s.volume = v
	player := s.player
	s.mu.Unlock()

	if player == nil {
		return nil
	}
	return player.SetVolume(ctx, int(math.Round(v*100)))
}

// ToggleMute flips the muted flag and forwards it to the player.
func (s *Session) ToggleMute(ctx context.Context) error {
	s.mu.Lock()
	s.muted = !s.muted
	muted := s.muted
	player := s.player
	s.mu.Unlock()

	if player == nil {
		return nil
	}
	return player.SetMute(ctx, muted)
}

// ToggleFullscreen flips the fullscreen flag and forwards it.
func (s *Session) ToggleFullscreen(ctx context.Context) error {
	s.mu.Lock()
	s.fullscreen = !s.fullscreen
	fullscreen := s.fullscreen
	player := s.player
	s.mu.Unlock()

	if player == nil {
		return nil
	}
	return player.SetFullscreen(ctx, fullscreen)
}

// GoToEpisode switches the session to a sibling episode. This is a full
// reset under a fresh generation, not a seek within a continuous
// session.
func (s *Session) GoToEpisode(number int) int {
	s.mu.Lock()
	animeID := s.animeID
	s.mu.Unlock()
	return s.Begin(animeID, number)
}

// Activity shows the controls and, while playing, restarts the hide
// countdown from its full window.
func (s *Session) Activity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controlsVisible = true
	s.startCountdownLocked()
}

// ToggleEpisodeList flips the episode drawer.
func (s *Session) ToggleEpisodeList() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.episodeListVisible = !s.episodeListVisible
}

// OnPlaybackEnded records natural end of playback. It returns the next
// episode number when one exists so the caller can auto-advance.
func (s *Session) OnPlaybackEnded() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePlaying && s.state != StatePaused {
		return 0, false
	}
	s.state = StateEnded
	s.progressPercent = 100
	s.controlsVisible = true
	s.countdown.Stop()

	if s.episodeExistsLocked(s.episodeNumber + 1) {
		return s.episodeNumber + 1, true
	}
	return 0, false
}

// HasNext reports whether an episode numbered current+1 exists.
func (s *Session) HasNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.episodeExistsLocked(s.episodeNumber + 1)
}

// HasPrev reports whether an episode numbered current-1 exists.
func (s *Session) HasPrev() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.episodeExistsLocked(s.episodeNumber - 1)
}

// AutoAdvanceVisible reports whether the next-episode prompt should
// show: past 90 percent with an episode numbered current+1 present.
func (s *Session) AutoAdvanceVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressPercent > 90 && s.episodeExistsLocked(s.episodeNumber+1)
}

// Generation returns the current session generation.
func (s *Session) Generation() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a copy of the session state for rendering.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		State:              s.state,
		Generation:         s.generation,
		AnimeID:            s.animeID,
		EpisodeNumber:      s.episodeNumber,
		Anime:              s.anime,
		Episode:            s.episode,
		ProgressPercent:    s.progressPercent,
		DurationSeconds:    s.durationSeconds,
		Volume:             s.volume,
		Muted:              s.muted,
		Fullscreen:         s.fullscreen,
		ControlsVisible:    s.controlsVisible,
		EpisodeListVisible: s.episodeListVisible,
		HasNext:            s.episodeExistsLocked(s.episodeNumber + 1),
		HasPrev:            s.episodeExistsLocked(s.episodeNumber - 1),
		AutoAdvance:        s.progressPercent > 90 && s.episodeExistsLocked(s.episodeNumber+1),
		Err:                s.err,
	}
}

// Close stops the session's timers. The session must not be used after
// Close.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countdown.Stop()
}

// episodeExistsLocked checks the loaded episode list for an exact
// number. Numbering may have gaps, so existence is never inferred from
// the episode count.
func (s *Session) episodeExistsLocked(number int) bool {
	if s.anime == nil {
		return false
	}
	for i := range s.anime.Episodes {
		if s.anime.Episodes[i].Number == number {
			return true
		}
	}
	return false
}

func (s *Session) userIDLocked() string {
	if s.identity == nil {
		return ""
	}
	return s.identity()
}

// startCountdownLocked arms the control-hide countdown. It only runs
// while playing with visible controls.
func (s *Session) startCountdownLocked() {
	if s.state == StatePlaying && s.controlsVisible {
		s.countdown.Start()
	}
}

// hideControls is the countdown callback. The playing check guards
// against a pause landing between expiry and this call.
func (s *Session) hideControls() {
	s.mu.Lock()
	if s.state != StatePlaying {
		s.mu.Unlock()
		return
	}
	s.controlsVisible = false
	notify := s.onControlsHidden
	s.mu.Unlock()

	if notify != nil {
		notify()
	}
}
