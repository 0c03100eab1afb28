package history

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/aozaki/anistream/internal/database"
)

// CompletedThreshold is the progress percent at which an episode counts
// as watched.
const CompletedThreshold = 90.0

// Service manages the local watch-history mirror
type Service struct {
	db *gorm.DB
}

// SortOrder defines the sorting order for history items
type SortOrder string

const (
	SortRecentFirst  SortOrder = "recent_first"
	SortOldestFirst  SortOrder = "oldest_first"
	SortTitleAsc     SortOrder = "title_asc"
	SortTitleDesc    SortOrder = "title_desc"
	SortProgressAsc  SortOrder = "progress_asc"
	SortProgressDesc SortOrder = "progress_desc"
)

// FilterOptions defines filtering options for history queries
type FilterOptions struct {
	SearchQuery string    // Search in title
	StartDate   time.Time // Filter by date range
	EndDate     time.Time
	Completed   *bool     // Filter by completion status
	Limit       int       // Limit results (0 = no limit)
	Offset      int       // Offset for pagination
	SortBy      SortOrder // Sorting order
}

// Stats represents watch history statistics
type Stats struct {
	TotalEpisodes  int64
	AnimeCount     int64
	CompletedCount int64
	TotalWatchTime time.Duration
}

// NewService creates a new history service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// RecordProgress upserts the row for (anime, episode) and keeps the
// per-anime statistics in step. Synced is reset so the remote reporter
// knows the backend has not seen this progress yet.
func (s *Service) RecordProgress(rec database.History) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	rec.Completed = rec.ProgressPercent >= CompletedThreshold
	if rec.WatchedAt.IsZero() {
		rec.WatchedAt = time.Now()
	}

	var existing database.History
	err := s.db.Where("anime_id = ? AND episode_number = ?", rec.AnimeID, rec.EpisodeNumber).
		First(&existing).Error
	switch {
	case err == nil:
		delta := watchDelta(existing.ProgressPercent, rec.ProgressPercent, rec.DurationSeconds)

		existing.ProgressPercent = rec.ProgressPercent
		existing.Completed = rec.Completed
		existing.WatchedAt = rec.WatchedAt
		existing.Synced = false
		if rec.DurationSeconds > 0 {
			existing.DurationSeconds = rec.DurationSeconds
		}
		if rec.AnimeTitle != "" {
			existing.AnimeTitle = rec.AnimeTitle
		}
		if rec.CoverImage != "" {
			existing.CoverImage = rec.CoverImage
		}
		if err := s.db.Save(&existing).Error; err != nil {
			return fmt.Errorf("failed to update history: %w", err)
		}
		return s.touchStatistic(rec.AnimeID, rec.WatchedAt, delta, false)

	case errors.Is(err, gorm.ErrRecordNotFound):
		rec.Synced = false
		if err := s.db.Create(&rec).Error; err != nil {
			return fmt.Errorf("failed to create history: %w", err)
		}
		delta := watchDelta(0, rec.ProgressPercent, rec.DurationSeconds)
		return s.touchStatistic(rec.AnimeID, rec.WatchedAt, delta, true)

	default:
		return fmt.Errorf("failed to query history: %w", err)
	}
}

// MarkSynced flags the (anime, episode) row as seen by the backend.
func (s *Service) MarkSynced(animeID string, episodeNumber int) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.Model(&database.History{}).
		Where("anime_id = ? AND episode_number = ?", animeID, episodeNumber).
		Update("synced", true).Error
}

// Recent returns the most recent entry per anime, newest first, for the
// continue-watching feed.
func (s *Service) Recent(limit int) ([]database.History, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var records []database.History
	if err := s.db.Order("watched_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}

	seen := make(map[string]bool)
	out := make([]database.History, 0, limit)
	for _, rec := range records {
		if seen[rec.AnimeID] {
			continue
		}
		seen[rec.AnimeID] = true
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ForAnime returns every recorded episode of an anime, newest first.
func (s *Service) ForAnime(animeID string) ([]database.History, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var records []database.History
	err := s.db.Where("anime_id = ?", animeID).
		Order("watched_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	return records, nil
}

// Resume returns the most recent unfinished episode of an anime, or nil
// when there is nothing to resume.
func (s *Service) Resume(animeID string) (*database.History, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var rec database.History
	err := s.db.Where("anime_id = ? AND completed = ?", animeID, false).
		Order("watched_at DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch resume point: %w", err)
	}
	return &rec, nil
}

// List retrieves history items with filtering and sorting
func (s *Service) List(filter FilterOptions) ([]database.History, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	query := s.db.Model(&database.History{})

	if filter.SearchQuery != "" {
		query = query.Where("anime_title LIKE ?", "%"+filter.SearchQuery+"%")
	}
	if !filter.StartDate.IsZero() {
		query = query.Where("watched_at >= ?", filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		query = query.Where("watched_at <= ?", filter.EndDate)
	}
	if filter.Completed != nil {
		query = query.Where("completed = ?", *filter.Completed)
	}

	switch filter.SortBy {
	case SortOldestFirst:
		query = query.Order("watched_at ASC")
	case SortTitleAsc:
		query = query.Order("anime_title ASC")
	case SortTitleDesc:
		query = query.Order("anime_title DESC")
	case SortProgressAsc:
		query = query.Order("progress_percent ASC")
	case SortProgressDesc:
		query = query.Order("progress_percent DESC")
	default: // SortRecentFirst
		query = query.Order("watched_at DESC")
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var records []database.History
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	return records, nil
}

// DeleteByID removes a history item by ID
func (s *Service) DeleteByID(id uint) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.Delete(&database.History{}, id).Error
}

// DeleteForAnime removes all history and statistics for an anime
func (s *Service) DeleteForAnime(animeID string) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	if err := s.db.Where("anime_id = ?", animeID).Delete(&database.History{}).Error; err != nil {
		return err
	}
	return s.db.Where("anime_id = ?", animeID).Delete(&database.Statistic{}).Error
}

// GetStats retrieves watch history statistics
func (s *Service) GetStats() (*Stats, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var stats Stats

	if err := s.db.Model(&database.History{}).Count(&stats.TotalEpisodes).Error; err != nil {
		return nil, err
	}

	if err := s.db.Model(&database.History{}).
		Distinct("anime_id").
		Count(&stats.AnimeCount).Error; err != nil {
		return nil, err
	}

	if err := s.db.Model(&database.History{}).
		Where("completed = ?", true).
		Count(&stats.CompletedCount).Error; err != nil {
		return nil, err
	}

	var totalSeconds int64
	if err := s.db.Model(&database.Statistic{}).
		Select("COALESCE(SUM(total_watch_time), 0)").
		Scan(&totalSeconds).Error; err != nil {
		return nil, err
	}
	stats.TotalWatchTime = time.Duration(totalSeconds) * time.Second

	return &stats, nil
}

// CleanupOlderThan removes unfinished records last touched more than the
// given number of days ago. Completed records are kept.
func (s *Service) CleanupOlderThan(days int) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}
	if days <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	result := s.db.Where("completed = ? AND watched_at < ?", false, cutoff).
		Delete(&database.History{})
	return result.RowsAffected, result.Error
}

// touchStatistic maintains the per-anime aggregate row.
func (s *Service) touchStatistic(animeID string, watchedAt time.Time, deltaSeconds int, newEpisode bool) error {
	var stat database.Statistic
	err := s.db.Where("anime_id = ?", animeID).First(&stat).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		stat = database.Statistic{
			AnimeID:        animeID,
			TotalWatchTime: deltaSeconds,
			WatchCount:     1,
			FirstWatched:   watchedAt,
			LastWatched:    watchedAt,
		}
		return s.db.Create(&stat).Error
	case err != nil:
		return err
	}

	stat.TotalWatchTime += deltaSeconds
	stat.LastWatched = watchedAt
	if newEpisode {
		stat.WatchCount++
	}
	return s.db.Save(&stat).Error
}

// watchDelta estimates seconds watched between two progress reports.
// Backward seeks contribute nothing.
func watchDelta(fromPercent, toPercent, durationSeconds float64) int {
	if durationSeconds <= 0 || toPercent <= fromPercent {
		return 0
	}
	return int((toPercent - fromPercent) / 100 * durationSeconds)
}
