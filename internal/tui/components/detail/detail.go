// Package detail renders a single catalog entry: metadata, synopsis,
// watchlist and favorites membership, the local resume point, and a
// filterable episode list.
package detail

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aozaki/anistream/internal/api"
	"github.com/aozaki/anistream/internal/database"
	"github.com/aozaki/anistream/internal/history"
	"github.com/aozaki/anistream/internal/session"
	"github.com/aozaki/anistream/internal/tui/common"
	"github.com/aozaki/anistream/internal/tui/styles"
	"github.com/aozaki/anistream/internal/tui/utils"
)

// loadedMsg carries everything the page shows. Generation pairs the
// reply with the entry that requested it; stale replies are dropped.
type loadedMsg struct {
	Generation  int
	Anime       *api.Anime
	Episodes    []api.Episode
	Resume      *database.History
	InWatchlist bool
	InFavorites bool
	Err         error
}

// watchlistMsg is the outcome of a watchlist toggle
type watchlistMsg struct {
	Generation int
	In         bool
	Err        error
}

// favoritesMsg is the outcome of a favorites toggle
type favoritesMsg struct {
	Generation int
	In         bool
	Err        error
}

type Model struct {
	client *api.Client
	hist   *history.Service
	sess   *session.Manager

	width  int
	height int

	animeID    string
	generation int

	anime    *api.Anime
	episodes []api.Episode
	resume   *database.History

	inWatchlist bool
	inFavorites bool

	loading bool
	loadErr error

	filter *common.FuzzyFilter
	cursor int
}

func New(client *api.Client, hist *history.Service, sess *session.Manager) Model {
	return Model{
		client: client,
		hist:   hist,
		sess:   sess,
		filter: common.NewFuzzyFilter(),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// SetRoute targets the page at an entry and reloads
func (m *Model) SetRoute(route common.Route) tea.Cmd {
	m.animeID = route.AnimeID
	m.anime = nil
	m.episodes = nil
	m.resume = nil
	m.inWatchlist = false
	m.inFavorites = false
	m.cursor = 0
	m.filter.Deactivate()
	return m.load()
}

// Route returns the page's shareable location
func (m Model) Route() common.Route {
	return common.DetailRoute(m.animeID)
}

// Filtering reports whether keystrokes are being captured by the
// episode filter.
func (m Model) Filtering() bool {
	return m.filter.IsActive() && !m.filter.IsLocked()
}

func (m *Model) load() tea.Cmd {
	m.generation++
	m.loading = true
	m.loadErr = nil

	generation := m.generation
	client := m.client
	hist := m.hist
	animeID := m.animeID

	var userID string
	if ident := m.sess.Current(); ident != nil {
		userID = ident.UserID
	}

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		anime, err := client.GetAnime(ctx, animeID)
		if err != nil {
			return loadedMsg{Generation: generation, Err: err}
		}

		episodes := anime.Episodes
		if len(episodes) == 0 {
			// Some list responses strip episodes to stay small
			if eps, err := client.ListEpisodes(ctx, animeID); err == nil {
				episodes = eps
			}
		}

		msg := loadedMsg{
			Generation: generation,
			Anime:      anime,
			Episodes:   episodes,
		}

		if hist != nil {
			if resume, err := hist.Resume(animeID); err == nil {
				msg.Resume = resume
			}
		}

		if userID != "" {
			// Membership checks are best effort, the page still works
			// signed out.
			if in, err := client.InWatchlist(ctx, userID, animeID); err == nil {
				msg.InWatchlist = in
			}
			if in, err := client.InFavorites(ctx, userID, animeID); err == nil {
				msg.InFavorites = in
			}
		}

		return msg
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filter.SetWidth(msg.Width)
		return m, nil

	case loadedMsg:
		if msg.Generation != m.generation {
			return m, nil
		}
		m.loading = false
		if msg.Err != nil {
			m.loadErr = msg.Err
			return m, func() tea.Msg { return common.ErrMsg{Err: msg.Err} }
		}
		m.anime = msg.Anime
		m.episodes = msg.Episodes
		m.resume = msg.Resume
		m.inWatchlist = msg.InWatchlist
		m.inFavorites = msg.InFavorites
		m.cursor = m.initialCursor()
		return m, nil

	case watchlistMsg:
		if msg.Generation != m.generation {
			return m, nil
		}
		if msg.Err != nil {
			return m, func() tea.Msg { return common.ErrMsg{Err: msg.Err} }
		}
		m.inWatchlist = msg.In
		return m, statusCmd(m.membershipStatus("watchlist", msg.In))

	case favoritesMsg:
		if msg.Generation != m.generation {
			return m, nil
		}
		if msg.Err != nil {
			return m, func() tea.Msg { return common.ErrMsg{Err: msg.Err} }
		}
		m.inFavorites = msg.In
		return m, statusCmd(m.membershipStatus("favorites", msg.In))

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// initialCursor points at the resume episode when one exists
func (m Model) initialCursor() int {
	if m.resume == nil || m.resume.Completed {
		return 0
	}
	for i, ep := range m.episodes {
		if ep.Number == m.resume.EpisodeNumber {
			return i
		}
	}
	return 0
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.Filtering() {
		switch msg.String() {
		case "enter":
			m.filter.Lock()
			return m, nil
		case "esc":
			if m.filter.Query() == "" {
				m.filter.Deactivate()
			} else {
				m.filter.Lock()
			}
			return m, nil
		}
		cmd := m.filter.Update(msg)
		m.cursor = 0
		return m, cmd
	}

	switch msg.String() {
	case "/":
		if m.filter.IsLocked() {
			return m, m.filter.Unlock()
		}
		return m, m.filter.Activate()

	case "esc":
		if m.filter.IsActive() {
			m.filter.Deactivate()
			m.cursor = 0
			return m, nil
		}
		return m, func() tea.Msg { return common.NavigateBackMsg{} }

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "down", "j":
		visible := m.visibleEpisodes()
		if m.cursor < len(visible)-1 {
			m.cursor++
		}
		return m, nil

	case "enter":
		visible := m.visibleEpisodes()
		if m.cursor < len(visible) {
			episode := m.episodes[visible[m.cursor]]
			return m, navigateCmd(common.WatchRoute(m.animeID, episode.Number))
		}
		return m, nil

	case "c":
		if m.resume != nil && !m.resume.Completed {
			return m, navigateCmd(common.WatchRoute(m.animeID, m.resume.EpisodeNumber))
		}
		return m, nil

	case "w":
		return m.toggleWatchlist()

	case "f":
		return m.toggleFavorites()

	case "r":
		return m, m.load()
	}

	return m, nil
}

func (m Model) toggleWatchlist() (Model, tea.Cmd) {
	if !m.sess.SignedIn() {
		return m, loginRedirectCmd(m.Route())
	}

	generation := m.generation
	client := m.client
	userID := m.sess.Current().UserID
	animeID := m.animeID
	in := m.inWatchlist

	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		var err error
		if in {
			err = client.RemoveFromWatchlist(ctx, userID, animeID)
		} else {
			err = client.AddToWatchlist(ctx, userID, animeID)
		}
		return watchlistMsg{Generation: generation, In: !in, Err: err}
	}
}

func (m Model) toggleFavorites() (Model, tea.Cmd) {
	if !m.sess.SignedIn() {
		return m, loginRedirectCmd(m.Route())
	}

	generation := m.generation
	client := m.client
	userID := m.sess.Current().UserID
	animeID := m.animeID
	in := m.inFavorites

	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		var err error
		if in {
			err = client.RemoveFromFavorites(ctx, userID, animeID)
		} else {
			err = client.AddToFavorites(ctx, userID, animeID)
		}
		return favoritesMsg{Generation: generation, In: !in, Err: err}
	}
}

func (m Model) membershipStatus(list string, in bool) string {
	title := m.animeID
	if m.anime != nil {
		title = m.anime.Title
	}
	if in {
		return fmt.Sprintf("Added %s to %s", title, list)
	}
	return fmt.Sprintf("Removed %s from %s", title, list)
}

// visibleEpisodes returns indices into episodes after filtering
func (m Model) visibleEpisodes() []int {
	entries := make([]string, len(m.episodes))
	for i, ep := range m.episodes {
		entries[i] = fmt.Sprintf("E%02d %s", ep.Number, ep.Title)
	}
	return m.filter.Filter(entries)
}

func (m Model) View() string {
	if m.loading {
		return "\n" + styles.SubtitleStyle.Render("  Loading...")
	}
	if m.loadErr != nil {
		return "\n" + styles.SubtitleStyle.Render("  Could not load this title.")
	}
	if m.anime == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(m.renderHeader())
	b.WriteString(m.renderSynopsis())
	b.WriteString(m.renderMembership())
	b.WriteString(m.renderEpisodes())
	b.WriteString("\n" + styles.ListHelpStyle.Render(m.helpText()))
	return b.String()
}

func (m Model) renderHeader() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("  " + m.anime.Title + "  "))
	b.WriteString("\n")
	if m.anime.TitleJapanese != "" {
		b.WriteString(styles.SubtitleStyle.Render("  " + m.anime.TitleJapanese))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	var meta []string
	if m.anime.Year > 0 {
		meta = append(meta, fmt.Sprintf("%d", m.anime.Year))
	}
	if m.anime.Rating > 0 {
		meta = append(meta, styles.RatingStyle.Render(fmt.Sprintf("★ %.1f", m.anime.Rating)))
	}
	if m.anime.Status != "" {
		meta = append(meta, styles.FormatStatusBadge(string(m.anime.Status)))
	}
	if n := len(m.episodes); n > 0 {
		meta = append(meta, fmt.Sprintf("%d episodes", n))
	} else if m.anime.TotalEpisodes > 0 {
		meta = append(meta, fmt.Sprintf("%d episodes", m.anime.TotalEpisodes))
	}
	if len(meta) > 0 {
		b.WriteString("  " + strings.Join(meta, styles.MetadataStyle.Render(" • ")))
		b.WriteString("\n")
	}

	if len(m.anime.Genres) > 0 {
		var badges []string
		for _, g := range m.anime.Genres {
			badges = append(badges, styles.GenreBadgeStyle.Render(g))
		}
		b.WriteString("  " + lipgloss.JoinHorizontal(lipgloss.Center, badges...))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) renderSynopsis() string {
	if m.anime.Synopsis == "" {
		return "\n"
	}

	width := m.width - 8
	if width < 40 {
		width = 40
	}
	if width > 100 {
		width = 100
	}

	text := utils.ClampLines(m.anime.Synopsis, 5, width)
	indented := "  " + strings.ReplaceAll(text, "\n", "\n  ")
	return "\n" + styles.SynopsisStyle.Render(indented) + "\n\n"
}

func (m Model) renderMembership() string {
	var parts []string

	if m.inWatchlist {
		parts = append(parts, styles.GenreBadgeSelectedStyle.Render("▣ watchlist"))
	}
	if m.inFavorites {
		parts = append(parts, styles.GenreBadgeSelectedStyle.Render("♥ favorite"))
	}
	if m.resume != nil && !m.resume.Completed {
		parts = append(parts, styles.ProgressStyle.Render(
			fmt.Sprintf("▶ Continue E%02d · %.0f%%", m.resume.EpisodeNumber, m.resume.ProgressPercent)))
	}

	if len(parts) == 0 {
		return ""
	}
	return "  " + lipgloss.JoinHorizontal(lipgloss.Center, parts...) + "\n\n"
}

func (m Model) renderEpisodes() string {
	var b strings.Builder

	b.WriteString(styles.CategoryHeaderStyle.Render("  EPISODES"))
	b.WriteString("\n")

	if filterView := m.filter.View(); filterView != "" {
		b.WriteString("  " + filterView + "\n")
	}

	visible := m.visibleEpisodes()
	if len(visible) == 0 {
		if len(m.episodes) == 0 {
			b.WriteString(styles.SubtitleStyle.Render("  No episodes yet.") + "\n")
		} else {
			b.WriteString(styles.SubtitleStyle.Render("  No episodes match the filter.") + "\n")
		}
		return b.String()
	}

	start, end := m.episodeWindow(len(visible))
	for i := start; i < end; i++ {
		episode := m.episodes[visible[i]]
		line := fmt.Sprintf("E%02d  %s", episode.Number, episode.Title)
		if episode.Duration != "" {
			line += styles.MetadataStyle.Render("  " + episode.Duration)
		}
		if m.resume != nil && episode.Number == m.resume.EpisodeNumber && !m.resume.Completed {
			line += styles.ProgressStyle.Render(fmt.Sprintf("  %.0f%%", m.resume.ProgressPercent))
		}

		if i == m.cursor {
			b.WriteString(styles.SelectedItemStyle.Render("  ▸ " + line))
		} else {
			b.WriteString(styles.NormalItemStyle.Render("    " + line))
		}
		b.WriteString("\n")
	}

	if end < len(visible) {
		b.WriteString(styles.MetadataStyle.Render(fmt.Sprintf("    ... %d more", len(visible)-end)) + "\n")
	}

	return b.String()
}

// episodeWindow keeps the cursor centered in the visible slice
func (m Model) episodeWindow(total int) (int, int) {
	maxVisible := 10
	if m.height > 0 {
		space := m.height - 16
		if space > 0 && space < maxVisible {
			maxVisible = space
		}
		if maxVisible < 3 {
			maxVisible = 3
		}
	}

	if total <= maxVisible {
		return 0, total
	}

	start := 0
	if m.cursor > maxVisible/2 {
		start = m.cursor - maxVisible/2
	}
	end := start + maxVisible
	if end > total {
		end = total
		start = end - maxVisible
	}
	return start, end
}

func (m Model) helpText() string {
	if m.Filtering() {
		return "  Type to filter • enter lock • esc clear"
	}
	parts := []string{"↑/↓ nav", "enter play", "/ filter"}
	if m.resume != nil && !m.resume.Completed {
		parts = append(parts, "c continue")
	}
	if m.inWatchlist {
		parts = append(parts, "w unlist")
	} else {
		parts = append(parts, "w watchlist")
	}
	if m.inFavorites {
		parts = append(parts, "f unfavorite")
	} else {
		parts = append(parts, "f favorite")
	}
	parts = append(parts, "esc back")
	return "  " + strings.Join(parts, " • ")
}

func navigateCmd(route common.Route) tea.Cmd {
	return func() tea.Msg { return common.NavigateMsg{Route: route} }
}

func loginRedirectCmd(returnTo common.Route) tea.Cmd {
	return func() tea.Msg { return common.LoginRedirectMsg{ReturnTo: returnTo} }
}

func statusCmd(message string) tea.Cmd {
	return func() tea.Msg { return common.StatusMsg{Message: message} }
}
