// Package home renders the landing screen: a rotating featured
// banner, trending and recently added rows, and a continue watching
// row fed from local history.
package home

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
	"github.com/aozaki/anistream/internal/tui/common"
	"github.com/aozaki/anistream/internal/tui/styles"
	"github.com/aozaki/anistream/internal/tui/utils"
)

// section indexes the vertically stacked parts of the screen
type section int

const (
	sectionFeatured section = iota
	sectionTrending
	sectionRecent
	sectionContinue
)

const rowItems = 4 // titles shown per horizontal row

// loadedMsg carries the catalog rows
type loadedMsg struct {
	Featured []api.Anime
	Trending []api.Anime
	Recent   []api.Anime
	Continue []database.History
	Err      error
}

// carouselTickMsg rotates the featured banner. Ticks from an older
// generation are dropped, so manual navigation restarts the interval.
type carouselTickMsg struct {
	Generation int
}

type Model struct {
	client  *api.Client
	history *history.Service

	width  int
	height int

	featured []api.Anime
	trending []api.Anime
	recent   []api.Anime
	cont     []database.History

	loaded  bool
	loadErr error

	section       section
	featuredIndex int
	trendingIndex int
	recentIndex   int
	contIndex     int

	rotateEvery time.Duration
	tickGen     int
}

func New(client *api.Client, hist *history.Service, rotateEvery time.Duration) Model {
	if rotateEvery <= 0 {
		rotateEvery = 6 * time.Second
	}
	return Model{
		client:      client,
		history:     hist,
		rotateEvery: rotateEvery,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), m.scheduleTick())
}

// Reload refreshes all rows, used when returning to the home screen
func (m *Model) Reload() tea.Cmd {
	return m.load()
}

func (m Model) load() tea.Cmd {
	client := m.client
	hist := m.history
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		featured, err := client.FeaturedAnime(ctx)
		if err != nil {
			return loadedMsg{Err: err}
		}
		trending, err := client.TrendingAnime(ctx)
		if err != nil {
			return loadedMsg{Err: err}
		}
		recent, err := client.RecentAnime(ctx)
		if err != nil {
			return loadedMsg{Err: err}
		}

		var cont []database.History
		if hist != nil {
			// Local rows; a read failure should not blank the screen
			cont, _ = hist.Recent(rowItems)
		}

		return loadedMsg{
			Featured: featured,
			Trending: trending,
			Recent:   recent,
			Continue: cont,
		}
	}
}

func (m Model) scheduleTick() tea.Cmd {
	generation := m.tickGen
	return tea.Tick(m.rotateEvery, func(time.Time) tea.Msg {
		return carouselTickMsg{Generation: generation}
	})
}

// restartRotation bumps the tick generation so in-flight ticks are
// dropped and the full interval starts over.
func (m *Model) restartRotation() tea.Cmd {
	m.tickGen++
	return m.scheduleTick()
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		m.loaded = true
		m.loadErr = msg.Err
		if msg.Err != nil {
			return m, func() tea.Msg { return common.ErrMsg{Err: msg.Err} }
		}
		m.featured = msg.Featured
		m.trending = msg.Trending
		m.recent = msg.Recent
		m.cont = msg.Continue
		if m.featuredIndex >= len(m.featured) {
			m.featuredIndex = 0
		}
		return m, nil

	case carouselTickMsg:
		if msg.Generation != m.tickGen {
			return m, nil
		}
		if len(m.featured) > 1 {
			m.featuredIndex = (m.featuredIndex + 1) % len(m.featured)
		}
		return m, m.scheduleTick()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.section = m.prevSection()
		return m, nil

	case "down", "j":
		m.section = m.nextSection()
		return m, nil

	case "left", "h":
		return m.moveInSection(-1)

	case "right", "l":
		return m.moveInSection(1)

	case "enter":
		return m, m.open()

	case "r":
		return m, m.load()
	}

	return m, nil
}

func (m Model) prevSection() section {
	s := m.section
	for s > sectionFeatured {
		s--
		if m.sectionPopulated(s) {
			return s
		}
	}
	return sectionFeatured
}

func (m Model) nextSection() section {
	for s := m.section + 1; s <= sectionContinue; s++ {
		if m.sectionPopulated(s) {
			return s
		}
	}
	return m.section
}

func (m Model) sectionPopulated(s section) bool {
	switch s {
	case sectionFeatured:
		return true
	case sectionTrending:
		return len(m.trending) > 0
	case sectionRecent:
		return len(m.recent) > 0
	case sectionContinue:
		return len(m.cont) > 0
	default:
		return false
	}
}

func (m Model) moveInSection(delta int) (Model, tea.Cmd) {
	switch m.section {
	case sectionFeatured:
		if len(m.featured) > 1 {
			m.featuredIndex = wrap(m.featuredIndex+delta, len(m.featured))
			return m, m.restartRotation()
		}
	case sectionTrending:
		m.trendingIndex = clamp(m.trendingIndex+delta, len(m.trending))
	case sectionRecent:
		m.recentIndex = clamp(m.recentIndex+delta, len(m.recent))
	case sectionContinue:
		m.contIndex = clamp(m.contIndex+delta, len(m.cont))
	}
	return m, nil
}

// open navigates to the entry under the cursor. Continue watching
// jumps straight back into playback.
func (m Model) open() tea.Cmd {
	var route common.Route

	switch m.section {
	case sectionFeatured:
		if m.featuredIndex >= len(m.featured) {
			return nil
		}
		route = common.DetailRoute(m.featured[m.featuredIndex].ID)
	case sectionTrending:
		if m.trendingIndex >= len(m.trending) {
			return nil
		}
		route = common.DetailRoute(m.trending[m.trendingIndex].ID)
	case sectionRecent:
		if m.recentIndex >= len(m.recent) {
			return nil
		}
		route = common.DetailRoute(m.recent[m.recentIndex].ID)
	case sectionContinue:
		if m.contIndex >= len(m.cont) {
			return nil
		}
		rec := m.cont[m.contIndex]
		route = common.WatchRoute(rec.AnimeID, rec.EpisodeNumber)
	default:
		return nil
	}

	return func() tea.Msg { return common.NavigateMsg{Route: route} }
}

func (m Model) View() string {
	if !m.loaded {
		return styles.SubtitleStyle.Render("\n  Loading catalog...")
	}
	if m.loadErr != nil {
		return styles.SubtitleStyle.Render("\n  Could not reach the catalog.") +
			styles.ListHelpStyle.Render("\n  r retry • q quit")
	}

	var b strings.Builder

	b.WriteString(m.renderFeatured())
	b.WriteString("\n")

	if len(m.trending) > 0 {
		b.WriteString(m.renderRow("TRENDING", animeTitles(m.trending), m.trendingIndex, m.section == sectionTrending))
	}
	if len(m.recent) > 0 {
		b.WriteString(m.renderRow("RECENTLY ADDED", animeTitles(m.recent), m.recentIndex, m.section == sectionRecent))
	}
	if len(m.cont) > 0 {
		b.WriteString(m.renderRow("CONTINUE WATCHING", continueTitles(m.cont), m.contIndex, m.section == sectionContinue))
	}

	help := "  ↑/↓ sections • ←/→ move • enter open • b browse • P profile • r refresh • ? help"
	b.WriteString("\n" + styles.ListHelpStyle.Render(help))

	return b.String()
}

func (m Model) renderFeatured() string {
	if len(m.featured) == 0 {
		return styles.SubtitleStyle.Render("\n  Nothing featured right now.")
	}

	anime := m.featured[m.featuredIndex]

	bannerWidth := m.width - 8
	if bannerWidth < 48 {
		bannerWidth = 48
	}
	if bannerWidth > 110 {
		bannerWidth = 110
	}

	title := styles.TitleStyle.Render("  FEATURED  ")

	var lines []string
	lines = append(lines, styles.ListTitleStyle.Render(utils.Truncate(anime.Title, bannerWidth-6)))
	if anime.TitleJapanese != "" && anime.TitleJapanese != anime.Title {
		lines = append(lines, styles.MetadataStyle.Render(utils.Truncate(anime.TitleJapanese, bannerWidth-6)))
	}

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
		lines = append(lines, styles.MetadataStyle.Render(strings.Join(meta, " • ")))
	}

	if anime.Synopsis != "" {
		lines = append(lines, styles.SynopsisStyle.Render(utils.ClampLines(anime.Synopsis, 3, bannerWidth-6)))
	}

	if len(anime.Genres) > 0 {
		var badges []string
		for i, g := range anime.Genres {
			if i >= 5 {
				break
			}
			badges = append(badges, styles.GenreBadgeStyle.Render(g))
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Center, badges...))
	}

	if dots := m.positionDots(); dots != "" {
		lines = append(lines, styles.ListHelpStyle.Render(dots))
	}

	border := styles.OxocarbonBase01
	if m.section == sectionFeatured {
		border = styles.OxocarbonPurple
	}

	banner := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(1, 2).
		Width(bannerWidth).
		Render(strings.Join(lines, "\n"))

	return title + "\n" + banner
}

// positionDots marks the visible banner among its siblings
func (m Model) positionDots() string {
	if len(m.featured) <= 1 {
		return ""
	}
	dots := make([]string, len(m.featured))
	for i := range m.featured {
		if i == m.featuredIndex {
			dots[i] = "●"
		} else {
			dots[i] = "○"
		}
	}
	return strings.Join(dots, " ")
}

func (m Model) renderRow(header string, titles []string, index int, active bool) string {
	var b strings.Builder
	b.WriteString(styles.CategoryHeaderStyle.Render(" "+header+" ") + "\n")

	cellWidth := 24
	if m.width > 0 {
		w := (m.width - 12) / rowItems
		if w > 16 {
			cellWidth = w
		}
	}
	if cellWidth > 34 {
		cellWidth = 34
	}

	// Window the row around the cursor
	start := 0
	if index >= rowItems {
		start = index - rowItems + 1
	}
	end := start + rowItems
	if end > len(titles) {
		end = len(titles)
	}

	var cells []string
	for i := start; i < end; i++ {
		text := utils.Truncate(titles[i], cellWidth-4)
		style := styles.NormalItemStyle
		if active && i == index {
			style = styles.SelectedItemStyle
		}
		cells = append(cells, style.Width(cellWidth).Render(text))
	}
	if end < len(titles) {
		cells = append(cells, styles.ListHelpStyle.Render("→"))
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	b.WriteString("\n")
	return b.String()
}

func animeTitles(list []api.Anime) []string {
	titles := make([]string, len(list))
	for i, a := range list {
		titles[i] = a.Title
	}
	return titles
}

func continueTitles(list []database.History) []string {
	titles := make([]string, len(list))
	for i, rec := range list {
		titles[i] = fmt.Sprintf("%s · E%02d · %.0f%%", rec.AnimeTitle, rec.EpisodeNumber, rec.ProgressPercent)
	}
	return titles
}

func wrap(i, n int) int {
	if n == 0 {
		return 0
	}
	return ((i % n) + n) % n
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
