package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/aozaki/anistream/internal/config"
)

// Client handles communication with the AniStream backend. It is a thin
// typed wrapper: no retries, no caching, no request de-duplication.
type Client struct {
	baseURL   string
	transport *Transport
	timeout   time.Duration
	debug     bool
	logger    *slog.Logger
}

// NewClient creates a new API client
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	if cfg == nil {
		cfg = &config.Config{
			API: config.APIConfig{
				BaseURL: "http://localhost:8000",
				Timeout: 30 * time.Second,
			},
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	transport := NewTransport(TransportConfig{
		Timeout:   cfg.API.Timeout,
		UserAgent: cfg.API.UserAgent,
		Debug:     cfg.Advanced.Debug,
		Logger:    logger,
	})

	return &Client{
		baseURL:   cfg.API.BaseURL,
		transport: transport,
		timeout:   cfg.API.Timeout,
		debug:     cfg.Advanced.Debug,
		logger:    logger,
	}
}

// BaseURL returns the backend base URL the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// --- Auth ---

// DiscordAuthURL asks the backend for the Discord authorize redirect
func (c *Client) DiscordAuthURL(ctx context.Context) (*AuthURL, error) {
	var response AuthURL
	if err := c.get(ctx, "/api/auth/discord", nil, &response); err != nil {
		return nil, fmt.Errorf("get auth url failed: %w", err)
	}
	return &response, nil
}

// ExchangeDiscordCode exchanges an authorization code for the user identity
func (c *Client) ExchangeDiscordCode(ctx context.Context, code, state string) (*User, error) {
	params := map[string]string{
		"code":  code,
		"state": state,
	}

	var response User
	if err := c.get(ctx, "/api/auth/discord/callback", params, &response); err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}
	return &response, nil
}

// GetUser fetches a user profile by ID
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	// This endpoint names the identifier "id" rather than "user_id"
	var raw struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Avatar   string `json:"avatar"`
		Email    string `json:"email"`
	}
	endpoint := fmt.Sprintf("/api/auth/user/%s", url.PathEscape(userID))
	if err := c.get(ctx, endpoint, nil, &raw); err != nil {
		return nil, fmt.Errorf("get user failed: %w", err)
	}

	return &User{
		UserID:   raw.ID,
		Username: raw.Username,
		Avatar:   raw.Avatar,
		Email:    raw.Email,
	}, nil
}

// --- Catalog ---

// ListAnime retrieves a page of the catalog with optional filters
func (c *Client) ListAnime(ctx context.Context, p ListAnimeParams) (*AnimeList, error) {
	params := make(map[string]string)
	if p.Page > 0 {
		params["page"] = strconv.Itoa(p.Page)
	}
	if p.Limit > 0 {
		params["limit"] = strconv.Itoa(p.Limit)
	}
	if p.Search != "" {
		params["search"] = p.Search
	}
	if p.Genre != "" {
		params["genre"] = p.Genre
	}
	if p.Status != "" {
		params["status"] = p.Status
	}
	if p.Featured {
		params["featured"] = "true"
	}

	var response AnimeList
	if err := c.get(ctx, "/api/anime", params, &response); err != nil {
		return nil, fmt.Errorf("list anime failed: %w", err)
	}
	return &response, nil
}

// FeaturedAnime retrieves the entries flagged for the home carousel
func (c *Client) FeaturedAnime(ctx context.Context) ([]Anime, error) {
	var response []Anime
	if err := c.get(ctx, "/api/anime/featured", nil, &response); err != nil {
		return nil, fmt.Errorf("get featured failed: %w", err)
	}
	return response, nil
}

// TrendingAnime retrieves the highest rated entries
func (c *Client) TrendingAnime(ctx context.Context) ([]Anime, error) {
	var response []Anime
	if err := c.get(ctx, "/api/anime/trending", nil, &response); err != nil {
		return nil, fmt.Errorf("get trending failed: %w", err)
	}
	return response, nil
}

// RecentAnime retrieves the most recently added entries
func (c *Client) RecentAnime(ctx context.Context) ([]Anime, error) {
	var response []Anime
	if err := c.get(ctx, "/api/anime/recent", nil, &response); err != nil {
		return nil, fmt.Errorf("get recent failed: %w", err)
	}
	return response, nil
}

// Genres retrieves the distinct genre names present in the catalog
func (c *Client) Genres(ctx context.Context) ([]string, error) {
	var response []string
	if err := c.get(ctx, "/api/anime/genres", nil, &response); err != nil {
		return nil, fmt.Errorf("get genres failed: %w", err)
	}
	return response, nil
}

// GetAnime retrieves a single catalog entry with its episode list
func (c *Client) GetAnime(ctx context.Context, animeID string) (*Anime, error) {
	endpoint := fmt.Sprintf("/api/anime/%s", url.PathEscape(animeID))

	var response Anime
	if err := c.get(ctx, endpoint, nil, &response); err != nil {
		return nil, fmt.Errorf("get anime failed: %w", err)
	}
	return &response, nil
}

// CreateAnime adds a new entry to the catalog
func (c *Client) CreateAnime(ctx context.Context, payload AnimeCreate) (*Anime, error) {
	var response Anime
	if err := c.post(ctx, "/api/anime", nil, payload, &response); err != nil {
		return nil, fmt.Errorf("create anime failed: %w", err)
	}
	return &response, nil
}

// UpdateAnime applies a partial update to a catalog entry
func (c *Client) UpdateAnime(ctx context.Context, animeID string, payload AnimeCreate) (*Anime, error) {
	endpoint := fmt.Sprintf("/api/anime/%s", url.PathEscape(animeID))

	var response Anime
	if err := c.put(ctx, endpoint, payload, &response); err != nil {
		return nil, fmt.Errorf("update anime failed: %w", err)
	}
	return &response, nil
}

// DeleteAnime removes a catalog entry
func (c *Client) DeleteAnime(ctx context.Context, animeID string) error {
	endpoint := fmt.Sprintf("/api/anime/%s", url.PathEscape(animeID))
	if err := c.delete(ctx, endpoint, nil); err != nil {
		return fmt.Errorf("delete anime failed: %w", err)
	}
	return nil
}

// ListEpisodes retrieves the episode list of an anime
func (c *Client) ListEpisodes(ctx context.Context, animeID string) ([]Episode, error) {
	endpoint := fmt.Sprintf("/api/anime/%s/episodes", url.PathEscape(animeID))

	var response []Episode
	if err := c.get(ctx, endpoint, nil, &response); err != nil {
		return nil, fmt.Errorf("list episodes failed: %w", err)
	}
	return response, nil
}

// AddEpisode appends an episode to an anime
func (c *Client) AddEpisode(ctx context.Context, animeID string, episode Episode) (*Episode, error) {
	endpoint := fmt.Sprintf("/api/anime/%s/episodes", url.PathEscape(animeID))

	var response Episode
	if err := c.post(ctx, endpoint, nil, episode, &response); err != nil {
		return nil, fmt.Errorf("add episode failed: %w", err)
	}
	return &response, nil
}

// DeleteEpisode removes a numbered episode from an anime
func (c *Client) DeleteEpisode(ctx context.Context, animeID string, number int) error {
	endpoint := fmt.Sprintf("/api/anime/%s/episodes/%d", url.PathEscape(animeID), number)
	if err := c.delete(ctx, endpoint, nil); err != nil {
		return fmt.Errorf("delete episode failed: %w", err)
	}
	return nil
}

// --- User library ---

// Watchlist retrieves the user's watchlist entries
func (c *Client) Watchlist(ctx context.Context, userID string) ([]Anime, error) {
	endpoint := fmt.Sprintf("/api/user/%s/watchlist", url.PathEscape(userID))

	var response []Anime
	if err := c.get(ctx, endpoint, nil, &response); err != nil {
		return nil, fmt.Errorf("get watchlist failed: %w", err)
	}
	return response, nil
}

// AddToWatchlist adds an anime to the user's watchlist
func (c *Client) AddToWatchlist(ctx context.Context, userID, animeID string) error {
	endpoint := fmt.Sprintf("/api/user/%s/watchlist/%s", url.PathEscape(userID), url.PathEscape(animeID))
	if err := c.post(ctx, endpoint, nil, nil, nil); err != nil {
		return fmt.Errorf("add to watchlist failed: %w", err)
	}
	return nil
}

// RemoveFromWatchlist removes an anime from the user's watchlist
func (c *Client) RemoveFromWatchlist(ctx context.Context, userID, animeID string) error {
	endpoint := fmt.Sprintf("/api/user/%s/watchlist/%s", url.PathEscape(userID), url.PathEscape(animeID))
	if err := c.delete(ctx, endpoint, nil); err != nil {
		return fmt.Errorf("remove from watchlist failed: %w", err)
	}
	return nil
}

// InWatchlist reports whether an anime is on the user's watchlist
func (c *Client) InWatchlist(ctx context.Context, userID, animeID string) (bool, error) {
	endpoint := fmt.Sprintf("/api/user/%s/watchlist/%s/check", url.PathEscape(userID), url.PathEscape(animeID))

	var response WatchlistCheck
	if err := c.get(ctx, endpoint, nil, &response); err != nil {
		return false, fmt.Errorf("watchlist check failed: %w", err)
	}
	return response.InWatchlist, nil
}

// Favorites retrieves the user's favorites
func (c *Client) Favorites(ctx context.Context, userID string) ([]Anime, error) {
	endpoint := fmt.Sprintf("/api/user/%s/favorites", url.PathEscape(userID))

	var response []Anime
	if err := c.get(ctx, endpoint, nil, &response); err != nil {
		return nil, fmt.Errorf("get favorites failed: %w", err)
	}
	return response, nil
}

// AddToFavorites adds an anime to the user's favorites
func (c *Client) AddToFavorites(ctx context.Context, userID, animeID string) error {
	endpoint := fmt.Sprintf("/api/user/%s/favorites/%s", url.PathEscape(userID), url.PathEscape(animeID))
	if err := c.post(ctx, endpoint, nil, nil, nil); err != nil {
		return fmt.Errorf("add to favorites failed: %w", err)
	}
	return nil
}

// RemoveFromFavorites removes an anime from the user's favorites
func (c *Client) RemoveFromFavorites(ctx context.Context, userID, animeID string) error {
	endpoint := fmt.Sprintf("/api/user/%s/favorites/%s", url.PathEscape(userID), url.PathEscape(animeID))
	if err := c.delete(ctx, endpoint, nil); err != nil {
		return fmt.Errorf("remove from favorites failed: %w", err)
	}
	return nil
}

// InFavorites reports whether an anime is in the user's favorites
func (c *Client) InFavorites(ctx context.Context, userID, animeID string) (bool, error) {
	endpoint := fmt.Sprintf("/api/user/%s/favorites/%s/check", url.PathEscape(userID), url.PathEscape(animeID))

	var response FavoritesCheck
	if err := c.get(ctx, endpoint, nil, &response); err != nil {
		return false, fmt.Errorf("favorites check failed: %w", err)
	}
	return response.InFavorites, nil
}

// History retrieves the user's watch history, newest first
func (c *Client) History(ctx context.Context, userID string) ([]HistoryEntry, error) {
	endpoint := fmt.Sprintf("/api/user/%s/history", url.PathEscape(userID))

	var response []HistoryEntry
	if err := c.get(ctx, endpoint, nil, &response); err != nil {
		return nil, fmt.Errorf("get history failed: %w", err)
	}
	return response, nil
}

// SaveHistory reports watch progress for an episode. The backend upserts on
// (user, anime, episode).
func (c *Client) SaveHistory(ctx context.Context, userID, animeID string, episodeNumber int, progress float64) error {
	endpoint := fmt.Sprintf("/api/user/%s/history", url.PathEscape(userID))
	params := map[string]string{
		"anime_id":       animeID,
		"episode_number": strconv.Itoa(episodeNumber),
		"progress":       strconv.FormatFloat(progress, 'f', -1, 64),
	}

	if err := c.post(ctx, endpoint, params, nil, nil); err != nil {
		return fmt.Errorf("save history failed: %w", err)
	}
	return nil
}

// --- Search / import ---

// JikanSearch searches MyAnimeList through the backend's Jikan passthrough
func (c *Client) JikanSearch(ctx context.Context, query string, page int) (*JikanSearchResponse, error) {
	params := map[string]string{
		"q": query,
	}
	if page > 0 {
		params["page"] = strconv.Itoa(page)
	}

	var response JikanSearchResponse
	if err := c.get(ctx, "/api/jikan/search", params, &response); err != nil {
		return nil, fmt.Errorf("jikan search failed: %w", err)
	}
	return &response, nil
}

// JikanImport imports a MyAnimeList entry into the catalog by MAL ID.
// Importing an already-imported entry is a backend 400.
func (c *Client) JikanImport(ctx context.Context, malID int) (*Anime, error) {
	endpoint := fmt.Sprintf("/api/jikan/import/%d", malID)

	var response Anime
	if err := c.post(ctx, endpoint, nil, nil, &response); err != nil {
		return nil, fmt.Errorf("jikan import failed: %w", err)
	}
	return &response, nil
}

// Seed asks the backend to populate its sample catalog
func (c *Client) Seed(ctx context.Context) (*Message, error) {
	var response Message
	if err := c.post(ctx, "/api/seed", nil, nil, &response); err != nil {
		return nil, fmt.Errorf("seed failed: %w", err)
	}
	return &response, nil
}

// --- request helpers ---

// get performs a GET request against the backend
func (c *Client) get(ctx context.Context, endpoint string, params map[string]string, result interface{}) error {
	fullURL, err := c.buildURL(endpoint, params)
	if err != nil {
		return err
	}

	resp, err := c.transport.Get(ctx, fullURL, nil)
	if err != nil {
		return fmt.Errorf("request failed (is the backend running at %s?): %w", c.baseURL, err)
	}

	return c.decode(resp.StatusCode(), resp.Body(), result)
}

// post performs a POST request against the backend
func (c *Client) post(ctx context.Context, endpoint string, params map[string]string, body, result interface{}) error {
	fullURL, err := c.buildURL(endpoint, params)
	if err != nil {
		return err
	}

	resp, err := c.transport.Post(ctx, fullURL, body, nil)
	if err != nil {
		return fmt.Errorf("request failed (is the backend running at %s?): %w", c.baseURL, err)
	}

	return c.decode(resp.StatusCode(), resp.Body(), result)
}

// put performs a PUT request against the backend
func (c *Client) put(ctx context.Context, endpoint string, body, result interface{}) error {
	fullURL, err := c.buildURL(endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.transport.Put(ctx, fullURL, body, nil)
	if err != nil {
		return fmt.Errorf("request failed (is the backend running at %s?): %w", c.baseURL, err)
	}

	return c.decode(resp.StatusCode(), resp.Body(), result)
}

// delete performs a DELETE request against the backend
func (c *Client) delete(ctx context.Context, endpoint string, params map[string]string) error {
	fullURL, err := c.buildURL(endpoint, params)
	if err != nil {
		return err
	}

	resp, err := c.transport.Delete(ctx, fullURL, nil)
	if err != nil {
		return fmt.Errorf("request failed (is the backend running at %s?): %w", c.baseURL, err)
	}

	return c.decode(resp.StatusCode(), resp.Body(), nil)
}

// buildURL joins the base URL, endpoint and query parameters
func (c *Client) buildURL(endpoint string, params map[string]string) (string, error) {
	fullURL := c.baseURL + endpoint

	if len(params) > 0 {
		u, err := url.Parse(fullURL)
		if err != nil {
			return "", fmt.Errorf("invalid URL: %w", err)
		}

		q := u.Query()
		for key, value := range params {
			q.Set(key, value)
		}
		u.RawQuery = q.Encode()
		fullURL = u.String()
	}

	return fullURL, nil
}

// decode maps the status code onto the error taxonomy and unmarshals the
// body into result when one is expected
func (c *Client) decode(statusCode int, body []byte, result interface{}) error {
	if statusCode >= 400 {
		var errorResp ErrorResponse
		_ = json.Unmarshal(body, &errorResp)
		return statusToError(statusCode, errorResp.Detail)
	}

	if result == nil {
		return nil
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}
