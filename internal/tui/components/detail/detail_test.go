package detail

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aozaki/anistream/internal/api"
	"github.com/aozaki/anistream/internal/database"
	"github.com/aozaki/anistream/internal/session"
	"github.com/aozaki/anistream/internal/tui/common"
)

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loadedModel() Model {
	m := New(nil, nil, session.NewManager(nil))
	m.animeID = "aot"
	m.anime = &api.Anime{
		ID:     "aot",
		Title:  "Attack on Titan",
		Status: api.StatusCompleted,
	}
	m.episodes = []api.Episode{
		{Number: 1, Title: "To You, in 2000 Years"},
		{Number: 2, Title: "That Day"},
		{Number: 3, Title: "A Dim Light Amid Despair"},
		{Number: 5, Title: "First Battle"},
	}
	return m
}

func TestStaleLoadDropped(t *testing.T) {
	m := loadedModel()
	m.generation = 2
	m.loading = true

	stale := loadedMsg{
		Generation: 1,
		Anime:      &api.Anime{ID: "other", Title: "Other"},
	}
	m, cmd := m.Update(stale)

	assert.Nil(t, cmd)
	assert.True(t, m.loading)
	assert.Equal(t, "Attack on Titan", m.anime.Title)
}

func TestLoadedPointsCursorAtResumeEpisode(t *testing.T) {
	m := loadedModel()
	m.generation = 1
	m.loading = true

	m, _ = m.Update(loadedMsg{
		Generation: 1,
		Anime:      m.anime,
		Episodes:   m.episodes,
		Resume:     &database.History{AnimeID: "aot", EpisodeNumber: 3, ProgressPercent: 42},
	})

	assert.False(t, m.loading)
	assert.Equal(t, 2, m.cursor, "the cursor starts on the resume episode")
}

func TestCompletedResumeDoesNotMoveCursor(t *testing.T) {
	m := loadedModel()
	m.generation = 1

	m, _ = m.Update(loadedMsg{
		Generation: 1,
		Anime:      m.anime,
		Episodes:   m.episodes,
		Resume:     &database.History{AnimeID: "aot", EpisodeNumber: 3, Completed: true},
	})

	assert.Equal(t, 0, m.cursor)
}

func TestEnterOpensWatch(t *testing.T) {
	m := loadedModel()
	m.cursor = 3

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	nav, ok := cmd().(common.NavigateMsg)
	require.True(t, ok)
	assert.Equal(t, common.ViewWatch, nav.Route.View)
	assert.Equal(t, "aot", nav.Route.AnimeID)
	assert.Equal(t, 5, nav.Route.Episode, "episode numbers are not list positions")
}

func TestContinueKeyUsesResumePoint(t *testing.T) {
	m := loadedModel()
	m.resume = &database.History{AnimeID: "aot", EpisodeNumber: 3, ProgressPercent: 42}

	_, cmd := m.Update(keyMsg("c"))
	require.NotNil(t, cmd)

	nav, ok := cmd().(common.NavigateMsg)
	require.True(t, ok)
	assert.Equal(t, common.ViewWatch, nav.Route.View)
	assert.Equal(t, 3, nav.Route.Episode)
}

func TestContinueWithoutResumeIsNoop(t *testing.T) {
	m := loadedModel()

	_, cmd := m.Update(keyMsg("c"))
	assert.Nil(t, cmd)
}

func TestWatchlistToggleSignedOutRedirectsToLogin(t *testing.T) {
	m := loadedModel()

	_, cmd := m.Update(keyMsg("w"))
	require.NotNil(t, cmd)

	redirect, ok := cmd().(common.LoginRedirectMsg)
	require.True(t, ok)
	assert.Equal(t, common.ViewDetail, redirect.ReturnTo.View)
	assert.Equal(t, "aot", redirect.ReturnTo.AnimeID)
}

func TestFavoritesToggleSignedOutRedirectsToLogin(t *testing.T) {
	m := loadedModel()

	_, cmd := m.Update(keyMsg("f"))
	require.NotNil(t, cmd)

	_, ok := cmd().(common.LoginRedirectMsg)
	assert.True(t, ok)
}

func TestWatchlistResultUpdatesState(t *testing.T) {
	m := loadedModel()
	m.generation = 1

	m, cmd := m.Update(watchlistMsg{Generation: 1, In: true})

	assert.True(t, m.inWatchlist)
	require.NotNil(t, cmd)
	status, ok := cmd().(common.StatusMsg)
	require.True(t, ok)
	assert.Contains(t, status.Message, "Added")
}

func TestFavoritesResultUpdatesState(t *testing.T) {
	m := loadedModel()
	m.generation = 1
	m.inFavorites = true

	m, cmd := m.Update(favoritesMsg{Generation: 1, In: false})

	assert.False(t, m.inFavorites)
	require.NotNil(t, cmd)
	status, ok := cmd().(common.StatusMsg)
	require.True(t, ok)
	assert.Contains(t, status.Message, "Removed")
}

func TestFilterNarrowsEpisodes(t *testing.T) {
	m := loadedModel()

	m, _ = m.Update(keyMsg("/"))
	require.True(t, m.Filtering())

	m, _ = m.Update(keyMsg("5"))

	visible := m.visibleEpisodes()
	require.Len(t, visible, 1)
	assert.Equal(t, 5, m.episodes[visible[0]].Number)
}

func TestFilterEscLocksThenClears(t *testing.T) {
	m := loadedModel()

	m, _ = m.Update(keyMsg("/"))
	m, _ = m.Update(keyMsg("5"))
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})

	assert.False(t, m.Filtering())
	assert.True(t, m.filter.IsLocked())
	assert.Len(t, m.visibleEpisodes(), 1, "a locked filter stays applied")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, cmd, "clearing the filter does not navigate back")
	assert.False(t, m.filter.IsActive())
	assert.Len(t, m.visibleEpisodes(), 4)
}
