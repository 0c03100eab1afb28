// Package downloader saves episodes for offline viewing. Direct mp4
// URLs stream through a native HTTP download; HLS playlists remux
// through ffmpeg when it is installed and otherwise fall back to the
// built-in segment downloader. Progress lands in the downloads table
// so the queue survives restarts.
package downloader

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Status is the lifecycle state of a download
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

// String returns the status as a plain string
func (s Status) String() string {
	return string(s)
}

// IsActive reports whether the download is currently running
func (s Status) IsActive() bool {
	return s == StatusDownloading
}

// IsComplete reports whether the download reached a terminal state
func (s Status) IsComplete() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Task is one episode download
type Task struct {
	ID              string
	AnimeID         string
	AnimeTitle      string
	EpisodeNumber   int
	VideoURL        string
	OutputPath      string
	Status          Status
	Progress        float64 // 0-100
	BytesDownloaded int64
	TotalBytes      int64
	Speed           int64 // bytes per second
	Error           string
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
}

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// Filename builds the output name for an episode, e.g.
// "Cowboy Bebop - E03.mp4".
func Filename(animeTitle string, episodeNumber int) string {
	title := unsafeFilenameChars.ReplaceAllString(animeTitle, "")
	title = strings.TrimSpace(title)
	if title == "" {
		title = "episode"
	}
	return fmt.Sprintf("%s - E%02d.mp4", title, episodeNumber)
}

// isHLS reports whether the URL points at an HLS playlist
func isHLS(url string) bool {
	return strings.Contains(url, ".m3u8")
}
