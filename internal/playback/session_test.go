package playback

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aozaki/anistream/internal/api"
)

type fakeCatalog struct {
	anime map[string]*api.Anime
	err   error
}

func (f *fakeCatalog) GetAnime(ctx context.Context, id string) (*api.Anime, error) {
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.anime[id]
	if !ok {
		return nil, fmt.Errorf("anime %s: %w", id, api.ErrNotFound)
	}
	return a, nil
}

type fakeController struct {
	mu          sync.Mutex
	seeks       []float64
	pauses      []bool
	volumes     []int
	mutes       []bool
	fullscreens []bool
}

func (f *fakeController) SeekPercent(ctx context.Context, percent float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, percent)
	return nil
}

func (f *fakeController) SetPause(ctx context.Context, paused bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses = append(f.pauses, paused)
	return nil
}

func (f *fakeController) SetVolume(ctx context.Context, volume int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumes = append(f.volumes, volume)
	return nil
}

func (f *fakeController) SetMute(ctx context.Context, muted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutes = append(f.mutes, muted)
	return nil
}

func (f *fakeController) SetFullscreen(ctx context.Context, fullscreen bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fullscreens = append(f.fullscreens, fullscreen)
	return nil
}

type reportedProgress struct {
	userID        string
	animeID       string
	episodeNumber int
	progress      float64
}

type fakeReporter struct {
	mu      sync.Mutex
	reports []reportedProgress
}

func (f *fakeReporter) Report(userID, animeID string, episodeNumber int, progress float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, reportedProgress{userID, animeID, episodeNumber, progress})
}

func (f *fakeReporter) all() []reportedProgress {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]reportedProgress, len(f.reports))
	copy(out, f.reports)
	return out
}

func testAnime() *api.Anime {
	return &api.Anime{
		ID:    "a1",
		Title: "Cowboy Bebop",
		Episodes: []api.Episode{
			{Number: 1, Title: "Asteroid Blues", VideoURL: "https://cdn.example.com/bebop/1.mp4"},
			{Number: 2, Title: "Stray Dog Strut", VideoURL: "https://cdn.example.com/bebop/2.mp4"},
			{Number: 3, Title: "Honky Tonk Women", VideoURL: "https://cdn.example.com/bebop/3.mp4"},
		},
	}
}

func newTestSession(cfg Config) *Session {
	if cfg.Catalog == nil {
		cfg.Catalog = &fakeCatalog{anime: map[string]*api.Anime{"a1": testAnime()}}
	}
	return NewSession(cfg)
}

// startPlaying walks a session through resolve and player start.
func startPlaying(t *testing.T, s *Session, animeID string, episodeNumber int) int {
	t.Helper()
	gen := s.Begin(animeID, episodeNumber)
	res := s.ResolveEpisode(context.Background(), animeID, episodeNumber, gen)
	require.NoError(t, res.Err)
	require.True(t, s.Apply(res))
	require.True(t, s.MarkPlaying(gen))
	return gen
}

func TestResolveEpisode(t *testing.T) {
	s := newTestSession(Config{})
	ctx := context.Background()

	t.Run("present episode resolves", func(t *testing.T) {
		gen := s.Begin("a1", 2)
		res := s.ResolveEpisode(ctx, "a1", 2, gen)
		require.NoError(t, res.Err)
		require.NotNil(t, res.Episode)
		assert.Equal(t, 2, res.Episode.Number)
		assert.Equal(t, "Stray Dog Strut", res.Episode.Title)

		require.True(t, s.Apply(res))
		assert.Equal(t, StateReady, s.State())
	})

	t.Run("absent anime is not found", func(t *testing.T) {
		gen := s.Begin("missing", 1)
		res := s.ResolveEpisode(ctx, "missing", 1, gen)
		require.Error(t, res.Err)
		assert.ErrorIs(t, res.Err, api.ErrNotFound)

		require.True(t, s.Apply(res))
		assert.Equal(t, StateNotFound, s.State())
	})

	t.Run("absent episode number is not found", func(t *testing.T) {
		gen := s.Begin("a1", 42)
		res := s.ResolveEpisode(ctx, "a1", 42, gen)
		require.Error(t, res.Err)
		assert.ErrorIs(t, res.Err, api.ErrNotFound)

		require.True(t, s.Apply(res))
		assert.Equal(t, StateNotFound, s.State())
	})
}

func TestApplyDiscardsStaleResolution(t *testing.T) {
	s := newTestSession(Config{})
	ctx := context.Background()

	oldGen := s.Begin("a1", 1)
	res := s.ResolveEpisode(ctx, "a1", 1, oldGen)
	require.NoError(t, res.Err)

	// Route changed while the fetch was in flight
	s.Begin("a1", 2)

	assert.False(t, s.Apply(res))
	assert.Equal(t, StateLoading, s.State())
	assert.Equal(t, 2, s.Snapshot().EpisodeNumber)
}

func TestSeekClampsBeforeForwarding(t *testing.T) {
	tests := []struct {
		name     string
		fraction float64
		want     float64
	}{
		{"within range", 0.5, 50},
		{"above range", 1.5, 100},
		{"below range", -0.5, 0},
		{"exactly one", 1.0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{}
			s := newTestSession(Config{Player: ctrl})
			startPlaying(t, s, "a1", 1)

			require.NoError(t, s.Seek(context.Background(), tt.fraction))

			require.Len(t, ctrl.seeks, 1)
			assert.Equal(t, tt.want, ctrl.seeks[0])
		})
	}
}

func TestSeekDoesNotTouchProgress(t *testing.T) {
	ctrl := &fakeController{}
	s := newTestSession(Config{Player: ctrl})
	startPlaying(t, s, "a1", 1)

	s.OnProgressTick(0.40)
	require.NoError(t, s.Seek(context.Background(), 0.80))

	// Progress moves with the next tick, not with the seek itself
	assert.Equal(t, 40.0, s.Snapshot().ProgressPercent)

	s.OnProgressTick(0.80)
	assert.Equal(t, 80.0, s.Snapshot().ProgressPercent)
}

func TestMuteRestoresExactVolume(t *testing.T) {
	ctrl := &fakeController{}
	s := newTestSession(Config{Player: ctrl})
	startPlaying(t, s, "a1", 1)
	ctx := context.Background()

	require.NoError(t, s.SetVolume(ctx, 0.6))

	require.NoError(t, s.ToggleMute(ctx))
	snap := s.Snapshot()
	assert.True(t, snap.Muted)
	assert.Equal(t, 0.6, snap.Volume)

	require.NoError(t, s.ToggleMute(ctx))
	snap = s.Snapshot()
	assert.False(t, snap.Muted)
	assert.Equal(t, 0.6, snap.Volume)

	// The player saw mute flips but no volume change beyond the initial set
	assert.Equal(t, []bool{true, false}, ctrl.mutes)
	assert.Equal(t, []int{60}, ctrl.volumes)
}

func TestSetVolumeClamps(t *testing.T) {
	ctrl := &fakeController{}
	s := newTestSession(Config{Player: ctrl})
	startPlaying(t, s, "a1", 1)
	ctx := context.Background()

	require.NoError(t, s.SetVolume(ctx, 1.7))
	assert.Equal(t, 1.0, s.Snapshot().Volume)

	require.NoError(t, s.SetVolume(ctx, -0.3))
	assert.Equal(t, 0.0, s.Snapshot().Volume)

	assert.Equal(t, []int{100, 0}, ctrl.volumes)
}

func TestControlsHideWhilePlaying(t *testing.T) {
	s := newTestSession(Config{ControlsTimeout: 30 * time.Millisecond})
	startPlaying(t, s, "a1", 1)

	s.Activity()
	assert.True(t, s.Snapshot().ControlsVisible)

	time.Sleep(80 * time.Millisecond)
	assert.False(t, s.Snapshot().ControlsVisible)
}

func TestCountdownNeverFiresWhilePaused(t *testing.T) {
	s := newTestSession(Config{ControlsTimeout: 30 * time.Millisecond})
	startPlaying(t, s, "a1", 1)
	ctx := context.Background()

	s.Activity()
	require.NoError(t, s.TogglePlay(ctx))
	require.Equal(t, StatePaused, s.State())

	// Well past the hide window
	time.Sleep(120 * time.Millisecond)
	assert.True(t, s.Snapshot().ControlsVisible)
}

func TestActivityWhilePausedDoesNotArmCountdown(t *testing.T) {
	s := newTestSession(Config{ControlsTimeout: 30 * time.Millisecond})
	startPlaying(t, s, "a1", 1)
	require.NoError(t, s.TogglePlay(context.Background()))

	s.Activity()
	time.Sleep(120 * time.Millisecond)
	assert.True(t, s.Snapshot().ControlsVisible)
}

func TestResumeRestartsCountdown(t *testing.T) {
	s := newTestSession(Config{ControlsTimeout: 30 * time.Millisecond})
	startPlaying(t, s, "a1", 1)
	ctx := context.Background()

	require.NoError(t, s.TogglePlay(ctx)) // pause
	require.NoError(t, s.TogglePlay(ctx)) // resume

	time.Sleep(80 * time.Millisecond)
	assert.False(t, s.Snapshot().ControlsVisible)
}

func TestActivityRestartsFullWindow(t *testing.T) {
	s := newTestSession(Config{ControlsTimeout: 50 * time.Millisecond})
	startPlaying(t, s, "a1", 1)

	// Keep poking before the window elapses; controls must stay up
	for i := 0; i < 4; i++ {
		s.Activity()
		time.Sleep(25 * time.Millisecond)
		assert.True(t, s.Snapshot().ControlsVisible)
	}

	time.Sleep(100 * time.Millisecond)
	assert.False(t, s.Snapshot().ControlsVisible)
}

func TestAutoAdvanceAffordance(t *testing.T) {
	t.Run("mid-series past threshold", func(t *testing.T) {
		s := newTestSession(Config{})
		startPlaying(t, s, "a1", 1)

		s.OnProgressTick(0.95)
		assert.True(t, s.AutoAdvanceVisible())
	})

	t.Run("mid-series below threshold", func(t *testing.T) {
		s := newTestSession(Config{})
		startPlaying(t, s, "a1", 1)

		s.OnProgressTick(0.50)
		assert.False(t, s.AutoAdvanceVisible())
	})

	t.Run("final episode past threshold", func(t *testing.T) {
		s := newTestSession(Config{})
		startPlaying(t, s, "a1", 3)

		s.OnProgressTick(0.95)
		assert.False(t, s.AutoAdvanceVisible())
	})

	t.Run("exactly ninety percent", func(t *testing.T) {
		s := newTestSession(Config{})
		startPlaying(t, s, "a1", 1)

		s.OnProgressTick(0.90)
		assert.False(t, s.AutoAdvanceVisible(), "threshold is strictly greater than 90")
	})
}

func TestEpisodeExistenceWithGaps(t *testing.T) {
	gapped := &api.Anime{
		ID:    "g1",
		Title: "Gapped",
		Episodes: []api.Episode{
			{Number: 1, VideoURL: "https://cdn.example.com/g/1.mp4"},
			{Number: 2, VideoURL: "https://cdn.example.com/g/2.mp4"},
			{Number: 5, VideoURL: "https://cdn.example.com/g/5.mp4"},
		},
	}
	s := NewSession(Config{Catalog: &fakeCatalog{anime: map[string]*api.Anime{"g1": gapped}}})

	startPlaying(t, s, "g1", 2)
	assert.True(t, s.HasPrev())
	assert.False(t, s.HasNext(), "episode 3 does not exist even though episode 5 does")

	s.OnProgressTick(0.95)
	assert.False(t, s.AutoAdvanceVisible())

	startPlaying(t, s, "g1", 5)
	assert.False(t, s.HasPrev(), "episode 4 does not exist")
	assert.False(t, s.HasNext())
}

func TestGoToEpisodeResetsSession(t *testing.T) {
	s := newTestSession(Config{})
	gen := startPlaying(t, s, "a1", 1)

	s.OnProgressTick(0.43)
	s.OnDurationResolved(1452)
	require.Equal(t, 43.0, s.Snapshot().ProgressPercent)

	newGen := s.GoToEpisode(2)
	assert.Greater(t, newGen, gen)

	snap := s.Snapshot()
	assert.Equal(t, StateLoading, snap.State)
	assert.Equal(t, "a1", snap.AnimeID)
	assert.Equal(t, 2, snap.EpisodeNumber)
	assert.Equal(t, 0.0, snap.ProgressPercent, "progress must not carry over")
	assert.Equal(t, 0.0, snap.DurationSeconds)
	assert.Nil(t, snap.Episode)
}

func TestVolumeSurvivesEpisodeSwitch(t *testing.T) {
	s := newTestSession(Config{})
	startPlaying(t, s, "a1", 1)
	ctx := context.Background()

	require.NoError(t, s.SetVolume(ctx, 0.3))
	require.NoError(t, s.ToggleMute(ctx))

	s.GoToEpisode(2)

	snap := s.Snapshot()
	assert.Equal(t, 0.3, snap.Volume)
	assert.True(t, snap.Muted)
}

func TestProgressTickIgnoredWhileLoading(t *testing.T) {
	s := newTestSession(Config{})
	s.Begin("a1", 1)

	s.OnProgressTick(0.5)
	assert.Equal(t, 0.0, s.Snapshot().ProgressPercent)
}

func TestProgressReporting(t *testing.T) {
	reporter := &fakeReporter{}
	s := newTestSession(Config{
		Reporter: reporter,
		Identity: func() string { return "200111" },
	})
	startPlaying(t, s, "a1", 2)

	s.OnProgressTick(0.101)
	s.OnProgressTick(0.102) // same integer percent, no new report
	s.OnProgressTick(0.102) // identical tick, idempotent
	s.OnProgressTick(0.113)

	reports := reporter.all()
	require.Len(t, reports, 2)

	assert.Equal(t, "200111", reports[0].userID)
	assert.Equal(t, "a1", reports[0].animeID)
	assert.Equal(t, 2, reports[0].episodeNumber)
	assert.InDelta(t, 10.1, reports[0].progress, 0.001)
	assert.InDelta(t, 11.3, reports[1].progress, 0.001)
}

func TestNoReportingWithoutIdentity(t *testing.T) {
	reporter := &fakeReporter{}
	s := newTestSession(Config{
		Reporter: reporter,
		Identity: func() string { return "" },
	})
	startPlaying(t, s, "a1", 1)

	s.OnProgressTick(0.25)
	s.OnProgressTick(0.50)

	assert.Empty(t, reporter.all())
}

func TestDurationUnknownUntilResolved(t *testing.T) {
	s := newTestSession(Config{})
	startPlaying(t, s, "a1", 1)

	// Tick before duration metadata arrives
	s.OnProgressTick(0.10)
	snap := s.Snapshot()
	assert.Equal(t, 0.0, snap.DurationSeconds)
	assert.Equal(t, 10.0, snap.ProgressPercent)

	s.OnDurationResolved(1452)
	assert.Equal(t, 1452.0, s.Snapshot().DurationSeconds)

	s.OnDurationResolved(-5)
	assert.Equal(t, 0.0, s.Snapshot().DurationSeconds)
}

func TestPlaybackEnded(t *testing.T) {
	t.Run("with next episode", func(t *testing.T) {
		s := newTestSession(Config{})
		startPlaying(t, s, "a1", 1)

		next, ok := s.OnPlaybackEnded()
		require.True(t, ok)
		assert.Equal(t, 2, next)

		snap := s.Snapshot()
		assert.Equal(t, StateEnded, snap.State)
		assert.Equal(t, 100.0, snap.ProgressPercent)
	})

	t.Run("at end of series", func(t *testing.T) {
		s := newTestSession(Config{})
		startPlaying(t, s, "a1", 3)

		_, ok := s.OnPlaybackEnded()
		assert.False(t, ok)
		assert.Equal(t, StateEnded, s.State())
	})

	t.Run("ignored when not playing", func(t *testing.T) {
		s := newTestSession(Config{})
		s.Begin("a1", 1)

		_, ok := s.OnPlaybackEnded()
		assert.False(t, ok)
		assert.Equal(t, StateLoading, s.State())
	})
}

func TestTogglePlayStates(t *testing.T) {
	ctrl := &fakeController{}
	s := newTestSession(Config{Player: ctrl})
	startPlaying(t, s, "a1", 1)
	ctx := context.Background()

	require.NoError(t, s.TogglePlay(ctx))
	assert.Equal(t, StatePaused, s.State())

	require.NoError(t, s.TogglePlay(ctx))
	assert.Equal(t, StatePlaying, s.State())

	assert.Equal(t, []bool{true, false}, ctrl.pauses)
}

func TestMarkPlayingStaleGeneration(t *testing.T) {
	s := newTestSession(Config{})
	gen := s.Begin("a1", 1)
	res := s.ResolveEpisode(context.Background(), "a1", 1, gen)
	require.NoError(t, res.Err)
	require.True(t, s.Apply(res))

	s.Begin("a1", 2)

	assert.False(t, s.MarkPlaying(gen))
	assert.Equal(t, StateLoading, s.State())
}

func TestMarkError(t *testing.T) {
	s := newTestSession(Config{})
	gen := startPlaying(t, s, "a1", 1)

	require.True(t, s.MarkError(gen, assert.AnError))
	snap := s.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, assert.AnError, snap.Err)

	// Stale errors are dropped
	newGen := s.Begin("a1", 2)
	assert.False(t, s.MarkError(gen, assert.AnError))
	assert.Equal(t, newGen, s.Generation())
}

func TestOnControlsHiddenCallback(t *testing.T) {
	hidden := make(chan struct{}, 1)
	s := newTestSession(Config{
		ControlsTimeout: 30 * time.Millisecond,
		OnControlsHidden: func() {
			select {
			case hidden <- struct{}{}:
			default:
			}
		},
	})
	startPlaying(t, s, "a1", 1)

	select {
	case <-hidden:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("controls-hidden callback never fired")
	}
	assert.False(t, s.Snapshot().ControlsVisible)
}

func TestEpisodeListToggle(t *testing.T) {
	s := newTestSession(Config{})
	startPlaying(t, s, "a1", 1)

	assert.False(t, s.Snapshot().EpisodeListVisible)
	s.ToggleEpisodeList()
	assert.True(t, s.Snapshot().EpisodeListVisible)
	s.ToggleEpisodeList()
	assert.False(t, s.Snapshot().EpisodeListVisible)

	// A fresh episode closes the drawer
	s.ToggleEpisodeList()
	s.GoToEpisode(2)
	assert.False(t, s.Snapshot().EpisodeListVisible)
}

func TestCloseStopsCountdown(t *testing.T) {
	s := newTestSession(Config{ControlsTimeout: 30 * time.Millisecond})
	startPlaying(t, s, "a1", 1)

	s.Activity()
	s.Close()

	time.Sleep(100 * time.Millisecond)
	assert.True(t, s.Snapshot().ControlsVisible, "countdown must not fire after Close")
}
