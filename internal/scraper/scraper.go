// Package scraper discovers import candidates by scraping the
// MyAnimeList top-anime chart. The backend's Jikan passthrough handles
// the actual import; this only finds MAL IDs worth importing.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultBaseURL = "https://myanimelist.net"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/105.0.0.0 Safari/537.36"
)

// Chart filters accepted by the top-anime page.
const (
	FilterAll      = ""
	FilterAiring   = "airing"
	FilterUpcoming = "upcoming"
	FilterTV       = "tv"
	FilterMovie    = "movie"
)

var animeIDPattern = regexp.MustCompile(`/anime/(\d+)`)

// TopAnime is one row of the chart
type TopAnime struct {
	Rank  int
	MALID int
	Title string
	Score float64
	URL   string
	Cover string
}

// Scraper fetches and parses MyAnimeList chart pages
type Scraper struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

// New creates a scraper
func New(logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: defaultBaseURL,
		logger:  logger,
	}
}

// TopAnime fetches one page of the chart. offset is the rank of the first
// row (the page holds 50); filter narrows the chart to a category.
func (s *Scraper) TopAnime(ctx context.Context, filter string, offset int) ([]TopAnime, error) {
	chartURL := fmt.Sprintf("%s/topanime.php?limit=%d", s.baseURL, offset)
	if filter != "" {
		chartURL += "&type=" + filter
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, chartURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chart request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart request failed with status code: %d", res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, err
	}

	entries := s.parseChart(doc)
	if len(entries) == 0 {
		return nil, fmt.Errorf("no chart entries found, the page layout may have changed")
	}

	s.logger.Debug("scraped chart page", "entries", len(entries), "offset", offset)
	return entries, nil
}

func (s *Scraper) parseChart(doc *goquery.Document) []TopAnime {
	var entries []TopAnime

	doc.Find("tr.ranking-list").Each(func(i int, row *goquery.Selection) {
		link := row.Find("h3 a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}

		id := extractAnimeID(href)
		if id == 0 {
			return
		}

		entry := TopAnime{
			MALID: id,
			Title: strings.TrimSpace(link.Text()),
			URL:   href,
		}

		if rank, err := strconv.Atoi(strings.TrimSpace(row.Find("td.rank span").First().Text())); err == nil {
			entry.Rank = rank
		}

		// "N/A" for unaired entries parses to 0, which is fine
		scoreText := strings.TrimSpace(row.Find("td.score span").First().Text())
		if score, err := strconv.ParseFloat(scoreText, 64); err == nil {
			entry.Score = score
		}

		img := row.Find("img").First()
		if cover, ok := img.Attr("data-src"); ok {
			entry.Cover = cover
		} else if cover, ok := img.Attr("src"); ok {
			entry.Cover = cover
		}

		entries = append(entries, entry)
	})

	return entries
}

// extractAnimeID pulls the numeric ID out of a MAL anime URL
func extractAnimeID(href string) int {
	m := animeIDPattern.FindStringSubmatch(href)
	if len(m) != 2 {
		return 0
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return id
}
