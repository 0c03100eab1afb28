// Package watch renders an active playback session: transport state,
// progress and volume, the control overlay with its hide countdown, the
// episode drawer, and the next-episode prompt. All playback state lives
// in the session; this view renders snapshots and forwards input.
package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aozaki/anistream/internal/playback"
	"github.com/aozaki/anistream/internal/tui/common"
	"github.com/aozaki/anistream/internal/tui/styles"
	"github.com/aozaki/anistream/internal/tui/utils"
)

const (
	seekStepSeconds = 10.0
	volumeStep      = 0.05
	playerTimeout   = 2 * time.Second
)

type Model struct {
	session *playback.Session

	width  int
	height int

	snap   playback.Snapshot
	cursor int // episode drawer cursor
}

func New(session *playback.Session) Model {
	return Model{session: session}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Refresh pulls a fresh snapshot from the session. The shell calls it
// after every playback event; key handling calls it after every
// session mutation.
func (m *Model) Refresh() {
	m.snap = m.session.Snapshot()
}

// Route returns the playback location being rendered
func (m Model) Route() common.Route {
	return common.WatchRoute(m.snap.AnimeID, m.snap.EpisodeNumber)
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		// Any keypress counts as activity and revives the control overlay
		m.session.Activity()
		var cmd tea.Cmd
		m, cmd = m.handleKey(msg)
		m.Refresh()
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.snap.EpisodeListVisible {
		return m.handleDrawerKey(msg)
	}

	switch m.snap.State {
	case playback.StateNotFound, playback.StateError:
		return m.handleFailureKey(msg)
	case playback.StateEnded:
		return m.handleEndedKey(msg)
	}

	switch msg.String() {
	case " ":
		ctx, cancel := playerContext()
		defer cancel()
		m.session.TogglePlay(ctx)
		return m, nil

	case "right", "l":
		return m, m.seekBy(seekStepSeconds)

	case "left", "h":
		return m, m.seekBy(-seekStepSeconds)

	case "up", "+", "=":
		ctx, cancel := playerContext()
		defer cancel()
		m.session.SetVolume(ctx, m.snap.Volume+volumeStep)
		return m, nil

	case "down", "-":
		ctx, cancel := playerContext()
		defer cancel()
		m.session.SetVolume(ctx, m.snap.Volume-volumeStep)
		return m, nil

	case "m":
		ctx, cancel := playerContext()
		defer cancel()
		m.session.ToggleMute(ctx)
		return m, nil

	case "f":
		ctx, cancel := playerContext()
		defer cancel()
		m.session.ToggleFullscreen(ctx)
		return m, nil

	case "e":
		m.session.ToggleEpisodeList()
		m.cursor = m.currentEpisodeIndex()
		return m, nil

	case "n":
		return m, m.goToNeighbor(1)

	case "p":
		return m, m.goToNeighbor(-1)

	case "a":
		if m.snap.AutoAdvance {
			return m, m.goToNeighbor(1)
		}
		return m, nil

	case "esc":
		return m, backCmd()
	}

	return m, nil
}

func (m Model) handleDrawerKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	episodes := m.episodeList()

	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "down", "j":
		if m.cursor < len(episodes)-1 {
			m.cursor++
		}
		return m, nil

	case "enter":
		if m.cursor < len(episodes) {
			number := episodes[m.cursor].Number
			m.session.ToggleEpisodeList()
			if number == m.snap.EpisodeNumber {
				return m, nil
			}
			return m, navigateCmd(common.WatchRoute(m.snap.AnimeID, number))
		}
		return m, nil

	case "e", "esc":
		m.session.ToggleEpisodeList()
		return m, nil
	}

	return m, nil
}

func (m Model) handleFailureKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "r", "enter":
		return m, navigateCmd(common.WatchRoute(m.snap.AnimeID, m.snap.EpisodeNumber))
	case "esc":
		return m, backCmd()
	}
	return m, nil
}

func (m Model) handleEndedKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "n", "enter":
		if m.snap.HasNext {
			return m, m.goToNeighbor(1)
		}
		return m, backCmd()
	case "p":
		return m, m.goToNeighbor(-1)
	case "e":
		m.session.ToggleEpisodeList()
		m.cursor = m.currentEpisodeIndex()
		return m, nil
	case "esc":
		return m, backCmd()
	}
	return m, nil
}

// seekBy converts a step in seconds to a fraction of the episode. With
// the duration still unknown it falls back to five percent jumps.
func (m Model) seekBy(seconds float64) tea.Cmd {
	fraction := m.snap.ProgressPercent / 100
	if m.snap.DurationSeconds > 0 {
		fraction += seconds / m.snap.DurationSeconds
	} else if seconds > 0 {
		fraction += 0.05
	} else {
		fraction -= 0.05
	}

	ctx, cancel := playerContext()
	defer cancel()
	m.session.Seek(ctx, fraction)
	return nil
}

func (m Model) goToNeighbor(delta int) tea.Cmd {
	target := m.snap.EpisodeNumber + delta
	if delta > 0 && !m.snap.HasNext {
		return nil
	}
	if delta < 0 && !m.snap.HasPrev {
		return nil
	}
	return navigateCmd(common.WatchRoute(m.snap.AnimeID, target))
}

func (m Model) episodeList() []episodeRef {
	if m.snap.Anime == nil {
		return nil
	}
	refs := make([]episodeRef, len(m.snap.Anime.Episodes))
	for i, ep := range m.snap.Anime.Episodes {
		refs[i] = episodeRef{Number: ep.Number, Title: ep.Title}
	}
	return refs
}

type episodeRef struct {
	Number int
	Title  string
}

func (m Model) currentEpisodeIndex() int {
	for i, ep := range m.episodeList() {
		if ep.Number == m.snap.EpisodeNumber {
			return i
		}
	}
	return 0
}

func (m Model) View() string {
	switch m.snap.State {
	case playback.StateLoading:
		return "\n" + styles.SubtitleStyle.Render("  Resolving episode...")

	case playback.StateNotFound:
		return m.renderFailure("This episode does not exist.")

	case playback.StateError:
		message := "Playback failed."
		if m.snap.Err != nil {
			message = utils.Truncate("Playback failed: "+m.snap.Err.Error(), m.contentWidth())
		}
		return m.renderFailure(message)
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(m.renderTitle())
	b.WriteString("\n")
	b.WriteString(m.renderProgress())
	b.WriteString("\n")

	if m.snap.EpisodeListVisible {
		b.WriteString("\n" + m.renderDrawer())
		b.WriteString("\n" + styles.ListHelpStyle.Render("  ↑/↓ nav • enter play • esc close"))
		return b.String()
	}

	// While playing with the overlay hidden only title and progress stay
	if m.snap.State == playback.StatePlaying && !m.snap.ControlsVisible {
		return b.String()
	}

	b.WriteString("\n" + m.renderControls())
	if prompt := m.renderNextPrompt(); prompt != "" {
		b.WriteString("\n\n" + prompt)
	}
	b.WriteString("\n\n" + styles.ListHelpStyle.Render(m.helpText()))
	return b.String()
}

func (m Model) renderFailure(message string) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(styles.SubtitleStyle.Render("  " + message))
	if m.snap.Err != nil && m.snap.State == playback.StateNotFound {
		b.WriteString("\n" + styles.MetadataStyle.Render(
			fmt.Sprintf("  %s episode %d", m.snap.AnimeID, m.snap.EpisodeNumber)))
	}
	b.WriteString("\n\n" + styles.ListHelpStyle.Render("  r retry • esc back"))
	return b.String()
}

func (m Model) renderTitle() string {
	title := m.snap.AnimeID
	if m.snap.Anime != nil {
		title = m.snap.Anime.Title
	}
	line := styles.TitleStyle.Render("  " + title + "  ")

	episode := fmt.Sprintf("E%02d", m.snap.EpisodeNumber)
	if m.snap.Episode != nil && m.snap.Episode.Title != "" {
		episode += " · " + m.snap.Episode.Title
	}
	return line + "\n" + styles.SubtitleStyle.Render("  "+episode)
}

func (m Model) renderProgress() string {
	width := m.contentWidth() - 18
	if width < 20 {
		width = 20
	}
	if width > 64 {
		width = 64
	}

	fraction := m.snap.ProgressPercent / 100
	filled := int(fraction * float64(width))
	if filled > width {
		filled = width
	}

	bar := styles.ProgressStyle.Render(strings.Repeat("━", filled)) +
		styles.MetadataStyle.Render(strings.Repeat("─", width-filled))

	elapsed := "--:--"
	total := "--:--"
	if m.snap.DurationSeconds > 0 {
		elapsed = utils.Clock(fraction * m.snap.DurationSeconds)
		total = utils.Clock(m.snap.DurationSeconds)
	}

	return fmt.Sprintf("  %s %s %s",
		styles.MetadataStyle.Render(elapsed), bar, styles.MetadataStyle.Render(total))
}

func (m Model) renderControls() string {
	var parts []string

	switch m.snap.State {
	case playback.StatePlaying:
		parts = append(parts, styles.SelectedItemStyle.Render("▶ playing"))
	case playback.StatePaused:
		parts = append(parts, styles.SubtitleStyle.Render("⏸ paused"))
	case playback.StateEnded:
		parts = append(parts, styles.SubtitleStyle.Render("■ ended"))
	case playback.StateReady:
		parts = append(parts, styles.SubtitleStyle.Render("starting player..."))
	}

	parts = append(parts, m.renderVolume())

	if m.snap.Muted {
		parts = append(parts, styles.MetadataStyle.Render("muted"))
	}
	if m.snap.Fullscreen {
		parts = append(parts, styles.MetadataStyle.Render("fullscreen"))
	}

	return "  " + lipgloss.JoinHorizontal(lipgloss.Center, joinSpaced(parts)...)
}

func (m Model) renderVolume() string {
	cells := 10
	filled := int(m.snap.Volume*float64(cells) + 0.5)
	if filled > cells {
		filled = cells
	}
	bar := strings.Repeat("▰", filled) + strings.Repeat("▱", cells-filled)
	return styles.MetadataStyle.Render("vol " + bar)
}

func (m Model) renderNextPrompt() string {
	if m.snap.State == playback.StateEnded {
		if m.snap.HasNext {
			return styles.ProgressStyle.Render(
				fmt.Sprintf("  Up next: E%02d • enter plays it", m.snap.EpisodeNumber+1))
		}
		return styles.MetadataStyle.Render("  No more episodes • esc back")
	}
	if m.snap.AutoAdvance {
		return styles.ProgressStyle.Render(
			fmt.Sprintf("  Up next: E%02d • a plays it now", m.snap.EpisodeNumber+1))
	}
	return ""
}

func (m Model) renderDrawer() string {
	episodes := m.episodeList()
	if len(episodes) == 0 {
		return styles.SubtitleStyle.Render("  No episodes.")
	}

	var b strings.Builder
	b.WriteString(styles.CategoryHeaderStyle.Render("  EPISODES") + "\n")

	maxVisible := 8
	start := 0
	if m.cursor > maxVisible/2 {
		start = m.cursor - maxVisible/2
	}
	end := start + maxVisible
	if end > len(episodes) {
		end = len(episodes)
		start = end - maxVisible
		if start < 0 {
			start = 0
		}
	}

	for i := start; i < end; i++ {
		ep := episodes[i]
		line := fmt.Sprintf("E%02d  %s", ep.Number, ep.Title)
		if ep.Number == m.snap.EpisodeNumber {
			line += styles.ProgressStyle.Render("  ● now playing")
		}
		if i == m.cursor {
			b.WriteString(styles.SelectedItemStyle.Render("  ▸ " + line))
		} else {
			b.WriteString(styles.NormalItemStyle.Render("    " + line))
		}
		b.WriteString("\n")
	}

	if end < len(episodes) {
		b.WriteString(styles.MetadataStyle.Render(fmt.Sprintf("    ... %d more", len(episodes)-end)))
	}

	return b.String()
}

func (m Model) helpText() string {
	if m.snap.State == playback.StateEnded {
		return "  enter next • p previous • e episodes • esc back"
	}

	parts := []string{"space play/pause", "←/→ seek", "↑/↓ vol", "m mute", "f fullscreen", "e episodes"}
	if m.snap.HasNext {
		parts = append(parts, "n next")
	}
	if m.snap.HasPrev {
		parts = append(parts, "p prev")
	}
	parts = append(parts, "esc back")
	return "  " + strings.Join(parts, " • ")
}

func (m Model) contentWidth() int {
	if m.width <= 0 {
		return 80
	}
	return m.width
}

// joinSpaced puts breathing room between inline status fragments
func joinSpaced(parts []string) []string {
	spaced := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			spaced = append(spaced, "   ")
		}
		spaced = append(spaced, p)
	}
	return spaced
}

func playerContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), playerTimeout)
}

func navigateCmd(route common.Route) tea.Cmd {
	return func() tea.Msg { return common.NavigateMsg{Route: route} }
}

func backCmd() tea.Cmd {
	return func() tea.Msg { return common.NavigateBackMsg{} }
}
