package watch

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aozaki/anistream/internal/api"
	"github.com/aozaki/anistream/internal/playback"
	"github.com/aozaki/anistream/internal/tui/common"
)

type fakeCatalog struct {
	anime *api.Anime
}

func (f fakeCatalog) GetAnime(ctx context.Context, id string) (*api.Anime, error) {
	return f.anime, nil
}

// recordingController captures every command forwarded to the player
type recordingController struct {
	mu          sync.Mutex
	seeks       []float64
	pauses      []bool
	volumes     []int
	mutes       []bool
	fullscreens []bool
}

func (r *recordingController) SeekPercent(ctx context.Context, percent float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seeks = append(r.seeks, percent)
	return nil
}

func (r *recordingController) SetPause(ctx context.Context, paused bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pauses = append(r.pauses, paused)
	return nil
}

func (r *recordingController) SetVolume(ctx context.Context, volume int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.volumes = append(r.volumes, volume)
	return nil
}

func (r *recordingController) SetMute(ctx context.Context, muted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutes = append(r.mutes, muted)
	return nil
}

func (r *recordingController) SetFullscreen(ctx context.Context, fullscreen bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fullscreens = append(r.fullscreens, fullscreen)
	return nil
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func testAnime() *api.Anime {
	return &api.Anime{
		ID:    "aot",
		Title: "Attack on Titan",
		Episodes: []api.Episode{
			{Number: 1, Title: "To You, in 2000 Years", VideoURL: "https://cdn/e1.mp4"},
			{Number: 2, Title: "That Day", VideoURL: "https://cdn/e2.mp4"},
			{Number: 3, Title: "A Dim Light Amid Despair", VideoURL: "https://cdn/e3.mp4"},
		},
	}
}

// playingModel builds a model over a session playing episode 2 of a
// three-episode show.
func playingModel(t *testing.T, controller playback.Controller) Model {
	t.Helper()

	sess := playback.NewSession(playback.Config{
		Catalog: fakeCatalog{anime: testAnime()},
		Player:  controller,
	})
	t.Cleanup(sess.Close)

	generation := sess.Begin("aot", 2)
	res := sess.ResolveEpisode(context.Background(), "aot", 2, generation)
	require.True(t, sess.Apply(res))
	require.True(t, sess.MarkPlaying(generation))

	m := New(sess)
	m.Refresh()
	return m
}

func TestSpaceTogglesPause(t *testing.T) {
	controller := &recordingController{}
	m := playingModel(t, controller)

	m, _ = m.Update(keyMsg(" "))
	assert.Equal(t, playback.StatePaused, m.snap.State)

	m, _ = m.Update(keyMsg(" "))
	assert.Equal(t, playback.StatePlaying, m.snap.State)

	assert.Equal(t, []bool{true, false}, controller.pauses)
}

func TestSeekForwardUsesDuration(t *testing.T) {
	controller := &recordingController{}
	m := playingModel(t, controller)

	m.session.OnDurationResolved(100)
	m.session.OnProgressTick(0.5)
	m.Refresh()

	m, _ = m.Update(keyMsg("l"))

	require.Len(t, controller.seeks, 1)
	assert.InDelta(t, 60.0, controller.seeks[0], 0.01, "ten seconds of a hundred is ten percent")
}

func TestSeekFallbackWithoutDuration(t *testing.T) {
	controller := &recordingController{}
	m := playingModel(t, controller)

	m.session.OnProgressTick(0.5)
	m.Refresh()

	m, _ = m.Update(keyMsg("h"))

	require.Len(t, controller.seeks, 1)
	assert.InDelta(t, 45.0, controller.seeks[0], 0.01, "unknown duration falls back to five percent steps")
}

func TestVolumeKeysClampAtFull(t *testing.T) {
	controller := &recordingController{}
	m := playingModel(t, controller)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})

	require.Len(t, controller.volumes, 2)
	assert.Equal(t, 100, controller.volumes[0], "volume starts full and cannot exceed it")
	assert.Equal(t, 95, controller.volumes[1])
	assert.InDelta(t, 0.95, m.snap.Volume, 0.001)
}

func TestMuteAndFullscreenForward(t *testing.T) {
	controller := &recordingController{}
	m := playingModel(t, controller)

	m, _ = m.Update(keyMsg("m"))
	m, _ = m.Update(keyMsg("f"))

	assert.Equal(t, []bool{true}, controller.mutes)
	assert.Equal(t, []bool{true}, controller.fullscreens)
	assert.True(t, m.snap.Muted)
	assert.True(t, m.snap.Fullscreen)
}

func TestNextEmitsWatchRoute(t *testing.T) {
	m := playingModel(t, nil)

	_, cmd := m.Update(keyMsg("n"))
	require.NotNil(t, cmd)

	nav, ok := cmd().(common.NavigateMsg)
	require.True(t, ok)
	assert.Equal(t, common.WatchRoute("aot", 3), nav.Route)
}

func TestPrevEmitsWatchRoute(t *testing.T) {
	m := playingModel(t, nil)

	_, cmd := m.Update(keyMsg("p"))
	require.NotNil(t, cmd)

	nav, ok := cmd().(common.NavigateMsg)
	require.True(t, ok)
	assert.Equal(t, common.WatchRoute("aot", 1), nav.Route)
}

func TestDrawerSelectEmitsRoute(t *testing.T) {
	m := playingModel(t, nil)

	m, _ = m.Update(keyMsg("e"))
	assert.True(t, m.snap.EpisodeListVisible)
	assert.Equal(t, 1, m.cursor, "the drawer opens on the playing episode")

	m, _ = m.Update(keyMsg("j"))
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, cmd)
	nav, ok := cmd().(common.NavigateMsg)
	require.True(t, ok)
	assert.Equal(t, common.WatchRoute("aot", 3), nav.Route)
	assert.False(t, m.snap.EpisodeListVisible, "selecting closes the drawer")
}

func TestDrawerSelectingCurrentJustCloses(t *testing.T) {
	m := playingModel(t, nil)

	m, _ = m.Update(keyMsg("e"))
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.False(t, m.snap.EpisodeListVisible)
}

func TestEndedEnterAdvances(t *testing.T) {
	m := playingModel(t, nil)

	next, ok := m.session.OnPlaybackEnded()
	require.True(t, ok)
	assert.Equal(t, 3, next)
	m.Refresh()
	require.Equal(t, playback.StateEnded, m.snap.State)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	nav, okNav := cmd().(common.NavigateMsg)
	require.True(t, okNav)
	assert.Equal(t, common.WatchRoute("aot", 3), nav.Route)
}

func TestKeypressRevivesHiddenControls(t *testing.T) {
	sess := playback.NewSession(playback.Config{
		Catalog:         fakeCatalog{anime: testAnime()},
		ControlsTimeout: 20 * time.Millisecond,
	})
	t.Cleanup(sess.Close)

	generation := sess.Begin("aot", 2)
	require.True(t, sess.Apply(sess.ResolveEpisode(context.Background(), "aot", 2, generation)))
	require.True(t, sess.MarkPlaying(generation))

	require.Eventually(t, func() bool {
		return !sess.Snapshot().ControlsVisible
	}, time.Second, 5*time.Millisecond, "the countdown hides the controls")

	m := New(sess)
	m.Refresh()
	m, _ = m.Update(keyMsg("x"))

	assert.True(t, m.snap.ControlsVisible)
}

func TestEscNavigatesBack(t *testing.T) {
	m := playingModel(t, nil)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)

	_, ok := cmd().(common.NavigateBackMsg)
	assert.True(t, ok)
}

func TestViewShowsEpisode(t *testing.T) {
	m := playingModel(t, nil)
	m.width = 100

	view := m.View()
	assert.Contains(t, view, "Attack on Titan")
	assert.Contains(t, view, "E02")
	assert.Contains(t, view, "That Day")
}
