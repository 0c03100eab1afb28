// Package browse renders the searchable catalog: a query input, genre
// and airing status filters, and a paginated result list. Filters map
// one-to-one onto the /browse route so every state is shareable.
package browse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aozaki/anistream/internal/api"
	"github.com/aozaki/anistream/internal/tui/common"
	"github.com/aozaki/anistream/internal/tui/styles"
	"github.com/aozaki/anistream/internal/tui/utils"
)

// airing status filter cycle, empty meaning all
var statusCycle = []string{"", "ongoing", "completed", "upcoming"}

// resultsMsg carries one page of results. Generation pairs the reply
// with the query that produced it; stale replies are dropped.
type resultsMsg struct {
	Generation int
	List       *api.AnimeList
	Err        error
}

// genresMsg carries the distinct genre list for the genre cycle
type genresMsg struct {
	Genres []string
	Err    error
}

type Model struct {
	client   *api.Client
	pageSize int

	width  int
	height int

	input     textinput.Model
	searching bool

	search string
	genre  string
	status string
	page   int

	genres     []string
	genreIndex int // -1 when no genre filter

	results []api.Anime
	total   int
	pages   int

	generation int
	loading    bool
	loadErr    error

	cursor int
}

func New(client *api.Client, pageSize int) Model {
	if pageSize <= 0 {
		pageSize = 20
	}

	ti := textinput.New()
	ti.Placeholder = "Search titles..."
	ti.Prompt = "? "
	ti.CharLimit = 120
	ti.PromptStyle = styles.SelectedItemStyle
	ti.TextStyle = styles.ListTitleStyle
	ti.PlaceholderStyle = styles.MetadataStyle

	return Model{
		client:     client,
		pageSize:   pageSize,
		input:      ti,
		page:       1,
		genreIndex: -1,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadGenres(), m.query())
}

// SetRoute applies the filters of a /browse route and reloads
func (m *Model) SetRoute(route common.Route) tea.Cmd {
	m.search = route.Search
	m.genre = route.Genre
	m.status = route.Status
	m.page = route.Page
	if m.page < 1 {
		m.page = 1
	}
	m.input.SetValue(route.Search)
	m.cursor = 0
	m.syncGenreIndex()
	return m.query()
}

// Route returns the current filters as a shareable route
func (m Model) Route() common.Route {
	return common.Route{
		View:   common.ViewBrowse,
		Search: m.search,
		Genre:  m.genre,
		Status: m.status,
		Page:   m.page,
	}
}

// Searching reports whether keystrokes are being captured by the
// search input.
func (m Model) Searching() bool {
	return m.searching
}

func (m *Model) syncGenreIndex() {
	m.genreIndex = -1
	for i, g := range m.genres {
		if g == m.genre {
			m.genreIndex = i
			return
		}
	}
}

// query issues the current filters under a fresh generation
func (m *Model) query() tea.Cmd {
	m.generation++
	m.loading = true
	m.loadErr = nil

	generation := m.generation
	client := m.client
	params := api.ListAnimeParams{
		Page:   m.page,
		Limit:  m.pageSize,
		Search: m.search,
		Genre:  m.genre,
		Status: m.status,
	}

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		list, err := client.ListAnime(ctx, params)
		return resultsMsg{Generation: generation, List: list, Err: err}
	}
}

func (m Model) loadGenres() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		genres, err := client.Genres(ctx)
		return genresMsg{Genres: genres, Err: err}
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 16
		return m, nil

	case resultsMsg:
		if msg.Generation != m.generation {
			return m, nil
		}
		m.loading = false
		if msg.Err != nil {
			m.loadErr = msg.Err
			return m, func() tea.Msg { return common.ErrMsg{Err: msg.Err} }
		}
		m.results = msg.List.Data
		m.total = msg.List.Total
		m.pages = msg.List.Pages
		if m.cursor >= len(m.results) {
			m.cursor = 0
		}
		return m, nil

	case genresMsg:
		if msg.Err == nil {
			m.genres = msg.Genres
			m.syncGenreIndex()
		}
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.handleSearchKey(msg)
		}
		return m.handleListKey(msg)
	}

	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searching = false
		m.input.Blur()
		m.search = strings.TrimSpace(m.input.Value())
		m.page = 1
		m.cursor = 0
		return m, m.query()

	case "esc":
		m.searching = false
		m.input.Blur()
		m.input.SetValue(m.search)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleListKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "/", "s":
		m.searching = true
		m.input.Focus()
		return m, textinput.Blink

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "down", "j":
		if m.cursor < len(m.results)-1 {
			m.cursor++
		}
		return m, nil

	case "enter":
		if m.cursor < len(m.results) {
			id := m.results[m.cursor].ID
			return m, func() tea.Msg {
				return common.NavigateMsg{Route: common.DetailRoute(id)}
			}
		}
		return m, nil

	case "g":
		return m.cycleGenre(1)

	case "G":
		return m.cycleGenre(-1)

	case "t":
		return m.cycleStatus()

	case "right", "l", "]", "n":
		if m.page < m.pages {
			m.page++
			m.cursor = 0
			return m, m.query()
		}
		return m, nil

	case "left", "h", "[", "p":
		if m.page > 1 {
			m.page--
			m.cursor = 0
			return m, m.query()
		}
		return m, nil

	case "x":
		// Drop all filters
		m.search = ""
		m.genre = ""
		m.status = ""
		m.page = 1
		m.cursor = 0
		m.genreIndex = -1
		m.input.SetValue("")
		return m, m.query()

	case "r":
		return m, m.query()
	}

	return m, nil
}

// cycleGenre walks the genre list; one step past either end clears
// the filter.
func (m Model) cycleGenre(delta int) (Model, tea.Cmd) {
	if len(m.genres) == 0 {
		return m, nil
	}

	m.genreIndex += delta
	if m.genreIndex >= len(m.genres) || m.genreIndex < -1 {
		m.genreIndex = -1
	}

	if m.genreIndex == -1 {
		m.genre = ""
	} else {
		m.genre = m.genres[m.genreIndex]
	}
	m.page = 1
	m.cursor = 0
	return m, m.query()
}

func (m Model) cycleStatus() (Model, tea.Cmd) {
	for i, s := range statusCycle {
		if s == m.status {
			m.status = statusCycle[(i+1)%len(statusCycle)]
			m.page = 1
			m.cursor = 0
			return m, m.query()
		}
	}
	m.status = statusCycle[1]
	m.page = 1
	m.cursor = 0
	return m, m.query()
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styles.TitleStyle.Render("  BROWSE  "))
	b.WriteString("\n\n")

	searchLine := m.input.View()
	if m.searching {
		searchLine = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(styles.OxocarbonPurple).
			Padding(0, 1).
			Render(searchLine)
	}
	b.WriteString(searchLine + "\n")

	b.WriteString(m.renderFilters() + "\n")

	switch {
	case m.loading:
		b.WriteString(styles.SubtitleStyle.Render("\n  Searching...") + "\n")
	case m.loadErr != nil:
		b.WriteString(styles.SubtitleStyle.Render("\n  Search failed.") + "\n")
	case len(m.results) == 0:
		b.WriteString(styles.SubtitleStyle.Render("\n  No titles match these filters.") + "\n")
	default:
		b.WriteString(m.renderResults())
	}

	b.WriteString("\n" + styles.ListHelpStyle.Render(m.helpText()))
	return b.String()
}

func (m Model) renderFilters() string {
	var badges []string

	if m.genre != "" {
		badges = append(badges, styles.GenreBadgeSelectedStyle.Render("genre: "+m.genre))
	} else {
		badges = append(badges, styles.GenreBadgeStyle.Render("genre: all"))
	}

	if m.status != "" {
		badges = append(badges, styles.GenreBadgeSelectedStyle.Render("status: "+m.status))
	} else {
		badges = append(badges, styles.GenreBadgeStyle.Render("status: all"))
	}

	if m.total > 0 {
		badges = append(badges, styles.MetadataStyle.Render(fmt.Sprintf("  %d titles", m.total)))
	}

	return lipgloss.JoinHorizontal(lipgloss.Center, badges...)
}

func (m Model) renderResults() string {
	var b strings.Builder

	start, end := m.visibleRange()
	for i := start; i < end; i++ {
		b.WriteString(m.renderItem(m.results[i], i == m.cursor) + "\n\n")
	}

	if m.pages > 1 {
		b.WriteString(styles.MetadataStyle.Render(fmt.Sprintf("  Page %d/%d", m.page, m.pages)) + "\n")
	}

	return b.String()
}

func (m Model) renderItem(anime api.Anime, selected bool) string {
	boxStyle := styles.ListItemStyle
	titleStyle := styles.ListTitleStyle
	metaStyle := styles.MetadataStyle

	if selected {
		boxStyle = styles.ListItemSelectedStyle
		titleStyle = titleStyle.Foreground(styles.OxocarbonPurple)
		metaStyle = metaStyle.Foreground(styles.OxocarbonMauve)
	}

	var lines []string
	lines = append(lines, titleStyle.Render(anime.Title))

	var meta []string
	if anime.Year > 0 {
		meta = append(meta, fmt.Sprintf("%d", anime.Year))
	}
	if anime.Rating > 0 {
		meta = append(meta, fmt.Sprintf("★ %.1f", anime.Rating))
	}
	if anime.Status != "" {
		meta = append(meta, string(anime.Status))
	}
	if anime.TotalEpisodes > 0 {
		meta = append(meta, fmt.Sprintf("%d episodes", anime.TotalEpisodes))
	}
	if len(meta) > 0 {
		lines = append(lines, metaStyle.Render(strings.Join(meta, " • ")))
	}

	width := m.width - 12
	if width < 40 {
		width = 40
	}
	if width > 100 {
		width = 100
	}
	if anime.Synopsis != "" {
		lines = append(lines, styles.SynopsisStyle.Render(utils.ClampLines(anime.Synopsis, 2, width)))
	}

	if len(anime.Genres) > 0 {
		var badges []string
		for i, g := range anime.Genres {
			if i >= 4 {
				break
			}
			style := styles.GenreBadgeStyle
			if selected {
				style = styles.GenreBadgeSelectedStyle
			}
			badges = append(badges, style.Render(g))
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Center, badges...))
	}

	return boxStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) visibleRange() (int, int) {
	maxVisible := 3
	if m.height > 0 {
		// Header, search, filters and help take about ten lines; each
		// card takes about six.
		space := m.height - 10
		if space > 0 {
			maxVisible = space / 6
		}
		if maxVisible < 1 {
			maxVisible = 1
		}
		if maxVisible > 20 {
			maxVisible = 20
		}
	}

	total := len(m.results)
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

func (m Model) helpText() string {
	if m.searching {
		return "  Type to search • enter submit • esc cancel"
	}
	return "  ↑/↓ nav • enter open • / search • g genre • t status • ←/→ page • x clear • esc back"
}
