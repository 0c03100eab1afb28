package player

import (
	"context"
	"time"
)

// Player defines the interface for video players
type Player interface {
	// Playback control
	Play(ctx context.Context, url string, options PlayOptions) error
	Stop(ctx context.Context) error

	// Progress monitoring
	GetProgress(ctx context.Context) (*PlaybackProgress, error)
	Seek(ctx context.Context, position time.Duration) error
	SeekPercent(ctx context.Context, percent float64) error

	// Direct state control
	SetPause(ctx context.Context, paused bool) error
	SetVolume(ctx context.Context, volume int) error
	SetMute(ctx context.Context, muted bool) error
	SetFullscreen(ctx context.Context, fullscreen bool) error

	// Callbacks
	OnProgressUpdate(callback func(progress PlaybackProgress))
	OnPlaybackEnd(callback func())
	OnError(callback func(err error))

	// Status
	IsPlaying() bool
	IsPaused() bool
}

// PlayOptions contains options for starting playback
type PlayOptions struct {
	// Playback options
	StartTime  time.Duration `json:"start_time,omitempty"`
	Volume     int           `json:"volume,omitempty"` // 0-100
	Muted      bool          `json:"muted,omitempty"`
	Speed      float64       `json:"speed,omitempty"` // Playback speed (1.0 = normal)
	Fullscreen bool          `json:"fullscreen"`

	// mpv-specific options
	MPVArgs []string `json:"mpv_args,omitempty"`

	// HTTP options
	UserAgent string `json:"user_agent,omitempty"`

	// Metadata for display
	Title   string `json:"title,omitempty"`
	Episode int    `json:"episode,omitempty"`
}

// PlaybackProgress represents the current playback state
type PlaybackProgress struct {
	CurrentTime time.Duration `json:"current_time"`
	Duration    time.Duration `json:"duration"`
	Percentage  float64       `json:"percentage"` // 0.0 - 100.0
	Paused      bool          `json:"paused"`
	Volume      int           `json:"volume"`
	Muted       bool          `json:"muted"`
	Speed       float64       `json:"speed"`
	EOF         bool          `json:"eof"` // End of file reached
}

// PlaybackState represents the state of the player
type PlaybackState string

const (
	StatePlaying PlaybackState = "playing"
	StatePaused  PlaybackState = "paused"
	StateStopped PlaybackState = "stopped"
	StateLoading PlaybackState = "loading"
	StateError   PlaybackState = "error"
)

// String returns the string representation of PlaybackState
func (s PlaybackState) String() string {
	return string(s)
}
