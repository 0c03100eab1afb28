// Package profile renders the signed-in user's lists: watchlist,
// favorites and synced watch history, each behind its own tab. Signed
// out it offers the login screen instead.
package profile

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/aozaki/anistream/internal/api"
	"github.com/aozaki/anistream/internal/session"
	"github.com/aozaki/anistream/internal/tui/common"
	"github.com/aozaki/anistream/internal/tui/styles"
	"github.com/aozaki/anistream/internal/tui/utils"
)

type tab int

const (
	tabWatchlist tab = iota
	tabFavorites
	tabHistory
)

var tabNames = []string{"Watchlist", "Favorites", "History"}

// loadedMsg carries all three lists for one load generation
type loadedMsg struct {
	Generation int
	Watchlist  []api.Anime
	Favorites  []api.Anime
	History    []api.HistoryEntry
	Err        error
}

// removedMsg is the outcome of removing an entry from a list
type removedMsg struct {
	Generation int
	Title      string
	Err        error
}

type logoutMsg struct {
	Err error
}

type Model struct {
	client *api.Client
	sess   *session.Manager

	width  int
	height int

	tab    tab
	cursor int
	filter *common.FuzzyFilter

	watchlist []api.Anime
	favorites []api.Anime
	history   []api.HistoryEntry

	generation int
	loading    bool
	loadErr    error
}

func New(client *api.Client, sess *session.Manager) Model {
	return Model{
		client: client,
		sess:   sess,
		filter: common.NewFuzzyFilter(),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Route returns the page's shareable location
func (m Model) Route() common.Route {
	return common.Route{View: common.ViewProfile}
}

// Filtering reports whether keystrokes are being captured by the list
// filter.
func (m Model) Filtering() bool {
	return m.filter.IsActive() && !m.filter.IsLocked()
}

// Reload fetches all three lists for the signed-in user. Signed out it
// clears them instead.
func (m *Model) Reload() tea.Cmd {
	ident := m.sess.Current()
	if ident == nil {
		m.watchlist = nil
		m.favorites = nil
		m.history = nil
		m.loading = false
		return nil
	}

	m.generation++
	m.loading = true
	m.loadErr = nil

	generation := m.generation
	client := m.client
	userID := ident.UserID

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		msg := loadedMsg{Generation: generation}

		watchlist, err := client.Watchlist(ctx, userID)
		if err != nil {
			msg.Err = err
			return msg
		}
		msg.Watchlist = watchlist

		favorites, err := client.Favorites(ctx, userID)
		if err != nil {
			msg.Err = err
			return msg
		}
		msg.Favorites = favorites

		history, err := client.History(ctx, userID)
		if err != nil {
			msg.Err = err
			return msg
		}
		msg.History = history

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
		m.watchlist = msg.Watchlist
		m.favorites = msg.Favorites
		m.history = msg.History
		if m.cursor >= m.tabLength() {
			m.cursor = 0
		}
		return m, nil

	case removedMsg:
		if msg.Generation != m.generation {
			return m, nil
		}
		if msg.Err != nil {
			return m, func() tea.Msg { return common.ErrMsg{Err: msg.Err} }
		}
		reload := m.Reload()
		status := func() tea.Msg {
			return common.StatusMsg{Message: "Removed " + msg.Title}
		}
		return m, tea.Batch(status, reload)

	case logoutMsg:
		if msg.Err != nil {
			return m, func() tea.Msg { return common.ErrMsg{Err: msg.Err} }
		}
		m.watchlist = nil
		m.favorites = nil
		m.history = nil
		return m, func() tea.Msg { return common.SignedOutMsg{} }

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if !m.sess.SignedIn() {
		switch msg.String() {
		case "enter", "l":
			return m, func() tea.Msg {
				return common.LoginRedirectMsg{ReturnTo: m.Route()}
			}
		case "esc":
			return m, func() tea.Msg { return common.NavigateBackMsg{} }
		}
		return m, nil
	}

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
	case "tab", "right", "l":
		m.switchTab(1)
		return m, nil

	case "shift+tab", "left", "h":
		m.switchTab(-1)
		return m, nil

	case "1":
		m.setTab(tabWatchlist)
		return m, nil

	case "2":
		m.setTab(tabFavorites)
		return m, nil

	case "3":
		m.setTab(tabHistory)
		return m, nil

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "down", "j":
		if m.cursor < len(m.visibleIndices())-1 {
			m.cursor++
		}
		return m, nil

	case "enter":
		return m.openSelected()

	case "d":
		return m.removeSelected()

	case "/":
		if m.filter.IsLocked() {
			return m, m.filter.Unlock()
		}
		return m, m.filter.Activate()

	case "x":
		return m, m.logout()

	case "r":
		cmd := m.Reload()
		return m, cmd

	case "esc":
		if m.filter.IsActive() {
			m.filter.Deactivate()
			m.cursor = 0
			return m, nil
		}
		return m, func() tea.Msg { return common.NavigateBackMsg{} }
	}

	return m, nil
}

func (m *Model) switchTab(delta int) {
	next := (int(m.tab) + delta + len(tabNames)) % len(tabNames)
	m.setTab(tab(next))
}

func (m *Model) setTab(t tab) {
	if m.tab != t {
		m.tab = t
		m.cursor = 0
		m.filter.Deactivate()
	}
}

func (m Model) tabLength() int {
	switch m.tab {
	case tabWatchlist:
		return len(m.watchlist)
	case tabFavorites:
		return len(m.favorites)
	default:
		return len(m.history)
	}
}

// tabEntries returns the filterable labels of the active tab
func (m Model) tabEntries() []string {
	switch m.tab {
	case tabWatchlist:
		return animeTitles(m.watchlist)
	case tabFavorites:
		return animeTitles(m.favorites)
	default:
		entries := make([]string, len(m.history))
		for i, h := range m.history {
			title := h.AnimeID
			if h.Anime != nil {
				title = h.Anime.Title
			}
			entries[i] = fmt.Sprintf("%s E%02d", title, h.EpisodeNumber)
		}
		return entries
	}
}

func animeTitles(list []api.Anime) []string {
	titles := make([]string, len(list))
	for i, a := range list {
		titles[i] = a.Title
	}
	return titles
}

// visibleIndices returns indices into the active tab after filtering
func (m Model) visibleIndices() []int {
	return m.filter.Filter(m.tabEntries())
}

func (m Model) openSelected() (Model, tea.Cmd) {
	visible := m.visibleIndices()
	if m.cursor >= len(visible) {
		return m, nil
	}
	index := visible[m.cursor]

	switch m.tab {
	case tabWatchlist:
		return m, navigateCmd(common.DetailRoute(m.watchlist[index].ID))
	case tabFavorites:
		return m, navigateCmd(common.DetailRoute(m.favorites[index].ID))
	default:
		entry := m.history[index]
		return m, navigateCmd(common.WatchRoute(entry.AnimeID, entry.EpisodeNumber))
	}
}

func (m Model) removeSelected() (Model, tea.Cmd) {
	if m.tab == tabHistory {
		return m, nil
	}

	visible := m.visibleIndices()
	if m.cursor >= len(visible) {
		return m, nil
	}
	index := visible[m.cursor]

	ident := m.sess.Current()
	if ident == nil {
		return m, nil
	}

	var anime api.Anime
	fromWatchlist := m.tab == tabWatchlist
	if fromWatchlist {
		anime = m.watchlist[index]
	} else {
		anime = m.favorites[index]
	}

	generation := m.generation
	client := m.client
	userID := ident.UserID

	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		var err error
		if fromWatchlist {
			err = client.RemoveFromWatchlist(ctx, userID, anime.ID)
		} else {
			err = client.RemoveFromFavorites(ctx, userID, anime.ID)
		}
		return removedMsg{Generation: generation, Title: anime.Title, Err: err}
	}
}

func (m Model) logout() tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		return logoutMsg{Err: sess.Logout()}
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(styles.TitleStyle.Render("  PROFILE  "))
	b.WriteString("\n\n")

	ident := m.sess.Current()
	if ident == nil {
		b.WriteString(styles.NormalItemStyle.Render("  You are not signed in."))
		b.WriteString("\n")
		b.WriteString(styles.SubtitleStyle.Render("  Watchlist, favorites and synced history need a Discord sign-in."))
		b.WriteString("\n\n")
		b.WriteString(styles.ListHelpStyle.Render("  enter sign in • esc back"))
		return b.String()
	}

	b.WriteString(styles.ListTitleStyle.Render("  " + ident.Username))
	if ident.Email != "" {
		b.WriteString(styles.MetadataStyle.Render("  " + ident.Email))
	}
	b.WriteString("\n\n")

	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	if filterView := m.filter.View(); filterView != "" {
		b.WriteString("  " + filterView + "\n")
	}

	switch {
	case m.loading:
		b.WriteString(styles.SubtitleStyle.Render("  Loading..."))
	case m.loadErr != nil:
		b.WriteString(styles.SubtitleStyle.Render("  Could not load your lists."))
	default:
		b.WriteString(m.renderList())
	}

	b.WriteString("\n\n")
	b.WriteString(styles.ListHelpStyle.Render(m.helpText()))
	return b.String()
}

func (m Model) renderTabs() string {
	rendered := make([]string, len(tabNames))
	for i, name := range tabNames {
		label := fmt.Sprintf(" %s (%d) ", name, m.lengthOf(tab(i)))
		if tab(i) == m.tab {
			rendered[i] = styles.TabActiveStyle.Render(label)
		} else {
			rendered[i] = styles.TabStyle.Render(label)
		}
	}
	return "  " + lipgloss.JoinHorizontal(lipgloss.Center, rendered...)
}

func (m Model) lengthOf(t tab) int {
	switch t {
	case tabWatchlist:
		return len(m.watchlist)
	case tabFavorites:
		return len(m.favorites)
	default:
		return len(m.history)
	}
}

func (m Model) renderList() string {
	visible := m.visibleIndices()
	if len(visible) == 0 {
		return styles.SubtitleStyle.Render("  " + m.emptyText())
	}

	var b strings.Builder
	start, end := m.window(len(visible))
	for i := start; i < end; i++ {
		line := m.renderEntry(visible[i])
		if i == m.cursor {
			b.WriteString(styles.SelectedItemStyle.Render("  ▸ " + line))
		} else {
			b.WriteString(styles.NormalItemStyle.Render("    " + line))
		}
		if i < end-1 {
			b.WriteString("\n")
		}
	}

	if end < len(visible) {
		b.WriteString("\n" + styles.MetadataStyle.Render(fmt.Sprintf("    ... %d more", len(visible)-end)))
	}
	return b.String()
}

func (m Model) renderEntry(index int) string {
	switch m.tab {
	case tabWatchlist, tabFavorites:
		var anime api.Anime
		if m.tab == tabWatchlist {
			anime = m.watchlist[index]
		} else {
			anime = m.favorites[index]
		}

		line := anime.Title
		var meta []string
		if anime.Year > 0 {
			meta = append(meta, fmt.Sprintf("%d", anime.Year))
		}
		if anime.Status != "" {
			meta = append(meta, string(anime.Status))
		}
		if len(meta) > 0 {
			line += styles.MetadataStyle.Render("  " + strings.Join(meta, " • "))
		}
		return utils.Truncate(line, m.lineWidth())

	default:
		entry := m.history[index]
		title := entry.AnimeID
		if entry.Anime != nil {
			title = entry.Anime.Title
		}
		line := fmt.Sprintf("%s · E%02d · %.0f%%", title, entry.EpisodeNumber, entry.Progress)
		if when := humanizeTimestamp(entry.UpdatedAt); when != "" {
			line += styles.MetadataStyle.Render("  " + when)
		}
		return utils.Truncate(line, m.lineWidth())
	}
}

// humanizeTimestamp renders a backend timestamp as a relative time.
// Unparseable values are shown as sent.
func humanizeTimestamp(raw string) string {
	if raw == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return humanize.Time(t)
		}
	}
	return raw
}

func (m Model) emptyText() string {
	switch m.tab {
	case tabWatchlist:
		if m.filter.IsActive() {
			return "Nothing in your watchlist matches the filter."
		}
		return "Your watchlist is empty."
	case tabFavorites:
		if m.filter.IsActive() {
			return "No favorite matches the filter."
		}
		return "No favorites yet."
	default:
		if m.filter.IsActive() {
			return "No history entry matches the filter."
		}
		return "No watch history yet."
	}
}

func (m Model) window(total int) (int, int) {
	maxVisible := 12
	if m.height > 0 {
		space := m.height - 12
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
		if start < 0 {
			start = 0
		}
	}
	return start, end
}

func (m Model) lineWidth() int {
	if m.width <= 0 {
		return 76
	}
	width := m.width - 8
	if width < 30 {
		width = 30
	}
	return width
}

func (m Model) helpText() string {
	if m.Filtering() {
		return "  Type to filter • enter lock • esc clear"
	}
	parts := []string{"tab switch", "↑/↓ nav", "enter open", "/ filter"}
	if m.tab != tabHistory {
		parts = append(parts, "d remove")
	}
	parts = append(parts, "x sign out", "esc back")
	return "  " + strings.Join(parts, " • ")
}

func navigateCmd(route common.Route) tea.Cmd {
	return func() tea.Msg { return common.NavigateMsg{Route: route} }
}
