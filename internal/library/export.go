// Package library exports the signed-in user's watchlist, favorites and
// watch history as a portable snapshot for backup.
package library

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aozaki/anistream/internal/api"
)

// Export formats
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Entry is one anime in the watchlist or favorites
type Entry struct {
	AnimeID string   `yaml:"anime_id" json:"anime_id"`
	Title   string   `yaml:"title" json:"title"`
	Status  string   `yaml:"status,omitempty" json:"status,omitempty"`
	Genres  []string `yaml:"genres,omitempty" json:"genres,omitempty"`
	Year    int      `yaml:"year,omitempty" json:"year,omitempty"`
}

// HistoryItem is one watch-history record
type HistoryItem struct {
	AnimeID   string  `yaml:"anime_id" json:"anime_id"`
	Title     string  `yaml:"title,omitempty" json:"title,omitempty"`
	Episode   int     `yaml:"episode" json:"episode"`
	Progress  float64 `yaml:"progress" json:"progress"`
	UpdatedAt string  `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Snapshot is the exported document
type Snapshot struct {
	ExportedAt string        `yaml:"exported_at" json:"exported_at"`
	User       string        `yaml:"user" json:"user"`
	Watchlist  []Entry       `yaml:"watchlist" json:"watchlist"`
	Favorites  []Entry       `yaml:"favorites" json:"favorites"`
	History    []HistoryItem `yaml:"history" json:"history"`
}

// Exporter builds snapshots from the backend
type Exporter struct {
	client *api.Client
	logger *slog.Logger
}

// NewExporter creates an exporter
func NewExporter(client *api.Client, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{client: client, logger: logger}
}

// Snapshot fetches the user's library from the backend
func (e *Exporter) Snapshot(ctx context.Context, userID, username string) (*Snapshot, error) {
	watchlist, err := e.client.Watchlist(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch watchlist: %w", err)
	}

	favorites, err := e.client.Favorites(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch favorites: %w", err)
	}

	history, err := e.client.History(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}

	snap := &Snapshot{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		User:       username,
		Watchlist:  entries(watchlist),
		Favorites:  entries(favorites),
		History:    historyItems(history),
	}

	e.logger.Debug("built library snapshot",
		"watchlist", len(snap.Watchlist),
		"favorites", len(snap.Favorites),
		"history", len(snap.History))
	return snap, nil
}

// Write renders a snapshot in the given format
func (e *Exporter) Write(w io.Writer, snap *Snapshot, format string) error {
	switch format {
	case FormatYAML:
		data, err := yaml.Marshal(snap)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot: %w", err)
		}
		_, err = w.Write(data)
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	default:
		return fmt.Errorf("unknown export format %q (yaml or json)", format)
	}
}

func entries(list []api.Anime) []Entry {
	out := make([]Entry, 0, len(list))
	for _, a := range list {
		out = append(out, Entry{
			AnimeID: a.ID,
			Title:   a.Title,
			Status:  string(a.Status),
			Genres:  a.Genres,
			Year:    a.Year,
		})
	}
	return out
}

func historyItems(list []api.HistoryEntry) []HistoryItem {
	out := make([]HistoryItem, 0, len(list))
	for _, h := range list {
		item := HistoryItem{
			AnimeID:   h.AnimeID,
			Episode:   h.EpisodeNumber,
			Progress:  h.Progress,
			UpdatedAt: h.UpdatedAt,
		}
		if h.Anime != nil {
			item.Title = h.Anime.Title
		}
		out = append(out, item)
	}
	return out
}
