package api

// AnimeStatus is the airing status reported by the catalog
type AnimeStatus string

const (
	StatusOngoing   AnimeStatus = "ongoing"
	StatusCompleted AnimeStatus = "completed"
)

// Anime represents a catalog entry
type Anime struct {
	ID            string      `json:"id"`
	MALID         *int        `json:"mal_id,omitempty"`
	Title         string      `json:"title"`
	TitleJapanese string      `json:"title_japanese,omitempty"`
	Synopsis      string      `json:"synopsis,omitempty"`
	CoverImage    string      `json:"cover_image,omitempty"`
	BannerImage   string      `json:"banner_image,omitempty"`
	Genres        []string    `json:"genres"`
	Status        AnimeStatus `json:"status"`
	Rating        float64     `json:"rating,omitempty"`
	Year          int         `json:"year,omitempty"`
	Episodes      []Episode   `json:"episodes"`
	TotalEpisodes int         `json:"total_episodes,omitempty"`
	IsFeatured    bool        `json:"is_featured"`
	Source        string      `json:"source,omitempty"`
	CreatedAt     string      `json:"created_at,omitempty"`
}

// Episode represents a single numbered episode of an anime.
// Numbers are unique per anime but not necessarily contiguous.
type Episode struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	VideoURL  string `json:"video_url"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Duration  string `json:"duration,omitempty"` // display string, e.g. "24:00"
}

// AnimeList is the paginated catalog listing response
type AnimeList struct {
	Data  []Anime `json:"data"`
	Total int     `json:"total"`
	Page  int     `json:"page"`
	Pages int     `json:"pages"`
}

// ListAnimeParams are the query parameters accepted by the catalog listing
type ListAnimeParams struct {
	Page     int
	Limit    int
	Search   string
	Genre    string
	Status   string
	Featured bool
}

// User is the identity returned by the auth endpoints
type User struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	Avatar      string `json:"avatar,omitempty"`
	Email       string `json:"email,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
}

// AuthURL is the provider redirect issued by the backend
type AuthURL struct {
	URL   string `json:"auth_url"`
	State string `json:"state"`
}

// HistoryEntry is one watch-history record, with the anime embedded
type HistoryEntry struct {
	AnimeID       string  `json:"anime_id"`
	EpisodeNumber int     `json:"episode_number"`
	Progress      float64 `json:"progress"`
	UpdatedAt     string  `json:"updated_at,omitempty"`
	Anime         *Anime  `json:"anime,omitempty"`
}

// WatchlistCheck reports membership of an anime in the user's watchlist
type WatchlistCheck struct {
	InWatchlist bool `json:"in_watchlist"`
}

// FavoritesCheck reports membership of an anime in the user's favorites
type FavoritesCheck struct {
	InFavorites bool `json:"in_favorites"`
}

// Message is the generic acknowledgement returned by mutating endpoints
type Message struct {
	Message string `json:"message"`
}

// AnimeCreate is the payload for creating or updating a catalog entry
type AnimeCreate struct {
	Title         string    `json:"title"`
	TitleJapanese string    `json:"title_japanese,omitempty"`
	Synopsis      string    `json:"synopsis,omitempty"`
	CoverImage    string    `json:"cover_image,omitempty"`
	BannerImage   string    `json:"banner_image,omitempty"`
	Genres        []string  `json:"genres,omitempty"`
	Status        string    `json:"status,omitempty"`
	Rating        float64   `json:"rating,omitempty"`
	Year          int       `json:"year,omitempty"`
	Episodes      []Episode `json:"episodes,omitempty"`
	TotalEpisodes int       `json:"total_episodes,omitempty"`
	IsFeatured    bool      `json:"is_featured,omitempty"`
}

// JikanResult is a single MyAnimeList entry from the Jikan passthrough
type JikanResult struct {
	MALID    int     `json:"mal_id"`
	Title    string  `json:"title"`
	Synopsis string  `json:"synopsis,omitempty"`
	Score    float64 `json:"score,omitempty"`
	Year     int     `json:"year,omitempty"`
	Episodes int     `json:"episodes,omitempty"`
	Status   string  `json:"status,omitempty"`
	Images   struct {
		JPG struct {
			ImageURL      string `json:"image_url"`
			LargeImageURL string `json:"large_image_url,omitempty"`
		} `json:"jpg"`
	} `json:"images"`
	Genres []struct {
		Name string `json:"name"`
	} `json:"genres,omitempty"`
}

// JikanSearchResponse is the raw Jikan search passthrough
type JikanSearchResponse struct {
	Data       []JikanResult `json:"data"`
	Pagination struct {
		LastVisiblePage int  `json:"last_visible_page"`
		HasNextPage     bool `json:"has_next_page"`
	} `json:"pagination"`
}

// ErrorResponse is the backend's error body
type ErrorResponse struct {
	Detail string `json:"detail"`
}
