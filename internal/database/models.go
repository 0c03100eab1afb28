package database

import (
	"time"

	"gorm.io/gorm"
)

// History is the local mirror of watch progress, one row per
// (anime, episode). It backs the continue-watching feed and keeps
// resume points available offline.
type History struct {
	ID              uint      `gorm:"primaryKey"`
	AnimeID         string    `gorm:"not null;index"`
	AnimeTitle      string    `gorm:"not null"`
	CoverImage      string    `gorm:"default:''"`
	EpisodeNumber   int       `gorm:"not null"`
	ProgressPercent float64   `gorm:"not null"`
	DurationSeconds float64   `gorm:"default:0"`
	Completed       bool      `gorm:"default:false"`
	WatchedAt       time.Time `gorm:"index;default:CURRENT_TIMESTAMP"`
	Synced          bool      `gorm:"default:false"` // whether the backend has seen this progress
}

// TableName overrides the table name
func (History) TableName() string {
	return "history"
}

// Statistic represents aggregate viewing statistics for an anime
type Statistic struct {
	ID             uint      `gorm:"primaryKey"`
	AnimeID        string    `gorm:"not null;uniqueIndex"`
	TotalWatchTime int       `gorm:"not null;default:0"` // seconds
	WatchCount     int       `gorm:"not null;default:1"`
	FirstWatched   time.Time `gorm:"default:CURRENT_TIMESTAMP"`
	LastWatched    time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (Statistic) TableName() string {
	return "statistics"
}

// Setting represents a key-value store for application settings.
// The persisted session identity and OAuth token live here as JSON values.
type Setting struct {
	Key       string    `gorm:"primaryKey"`
	Value     string    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (Setting) TableName() string {
	return "settings"
}

// Download represents an episode download task
type Download struct {
	ID              string     `gorm:"primaryKey"`
	AnimeID         string     `gorm:"not null;index"`
	AnimeTitle      string     `gorm:"not null"`
	EpisodeNumber   int        `gorm:"not null"`
	VideoURL        string     `gorm:"not null"`
	Status          string     `gorm:"not null;index"` // queued, downloading, completed, failed
	Progress        float64    `gorm:"default:0.0"`
	BytesDownloaded int64      `gorm:"default:0"`
	TotalBytes      int64      `gorm:"default:0"`
	Speed           int64      `gorm:"default:0"` // bytes/sec
	Error           string     `gorm:""`
	FilePath        string     `gorm:""`
	CreatedAt       time.Time  `gorm:"default:CURRENT_TIMESTAMP"`
	StartedAt       *time.Time `gorm:""`
	CompletedAt     *time.Time `gorm:""`
}

// TableName overrides the table name
func (Download) TableName() string {
	return "downloads"
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&History{},
		&Statistic{},
		&Setting{},
		&Download{},
	)
}
