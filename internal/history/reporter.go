package history

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aozaki/anistream/internal/api"
	"github.com/aozaki/anistream/internal/database"
)

// episodeKey identifies one episode across primed metadata.
type episodeKey struct {
	animeID string
	number  int
}

type animeMeta struct {
	title string
	cover string
}

type reportJob struct {
	userID        string
	animeID       string
	episodeNumber int
	progress      float64
}

// ReporterConfig configures the progress reporter
type ReporterConfig struct {
	// SyncEnabled controls whether progress is pushed to the backend.
	// The local mirror is always written.
	SyncEnabled bool
	// Timeout bounds each remote call. Defaults to 10 seconds.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Reporter persists watch progress to the local mirror and pushes it to
// the backend best-effort. Reports are processed one at a time on a
// background worker; a failed push is logged and forgotten, never
// retried, and playback is never blocked on it.
type Reporter struct {
	client  *api.Client
	service *Service

	syncEnabled bool
	timeout     time.Duration
	logger      *slog.Logger

	mu        sync.RWMutex
	closed    bool
	meta      map[string]animeMeta
	durations map[episodeKey]float64

	jobs chan reportJob
	done chan struct{}
}

// NewReporter creates a reporter and starts its worker. Call Close to
// drain pending reports on shutdown.
func NewReporter(client *api.Client, service *Service, cfg ReporterConfig) *Reporter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := &Reporter{
		client:      client,
		service:     service,
		syncEnabled: cfg.SyncEnabled,
		timeout:     cfg.Timeout,
		logger:      cfg.Logger,
		meta:        make(map[string]animeMeta),
		durations:   make(map[episodeKey]float64),
		jobs:        make(chan reportJob, 64),
		done:        make(chan struct{}),
	}

	go r.run()
	return r
}

// Prime records anime metadata so mirror rows carry a title and cover
// even before the backend has ever seen them.
func (r *Reporter) Prime(anime *api.Anime) {
	if anime == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meta[anime.ID] = animeMeta{title: anime.Title, cover: anime.CoverImage}
}

// PrimeDuration records the resolved duration of an episode, in seconds.
func (r *Reporter) PrimeDuration(animeID string, episodeNumber int, seconds float64) {
	if seconds <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations[episodeKey{animeID, episodeNumber}] = seconds
}

// Report enqueues a progress report without blocking. When the queue is
// full the report is dropped; the next one carries fresher progress
// anyway.
func (r *Reporter) Report(userID, animeID string, episodeNumber int, progress float64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	job := reportJob{
		userID:        userID,
		animeID:       animeID,
		episodeNumber: episodeNumber,
		progress:      progress,
	}
	select {
	case r.jobs <- job:
	default:
		r.logger.Debug("dropping progress report, queue full",
			"anime_id", animeID,
			"episode", episodeNumber)
	}
}

// Close stops accepting reports and waits for queued ones to finish.
func (r *Reporter) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	close(r.jobs)
	<-r.done
}

func (r *Reporter) run() {
	defer close(r.done)
	for job := range r.jobs {
		r.process(job)
	}
}

func (r *Reporter) process(job reportJob) {
	if r.service != nil {
		rec := database.History{
			AnimeID:         job.animeID,
			EpisodeNumber:   job.episodeNumber,
			ProgressPercent: job.progress,
		}
		r.mu.RLock()
		if meta, ok := r.meta[job.animeID]; ok {
			rec.AnimeTitle = meta.title
			rec.CoverImage = meta.cover
		}
		rec.DurationSeconds = r.durations[episodeKey{job.animeID, job.episodeNumber}]
		r.mu.RUnlock()

		if err := r.service.RecordProgress(rec); err != nil {
			r.logger.Warn("failed to record watch progress",
				"anime_id", job.animeID,
				"episode", job.episodeNumber,
				"error", err)
		}
	}

	if !r.syncEnabled || r.client == nil || job.userID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	err := r.client.SaveHistory(ctx, job.userID, job.animeID, job.episodeNumber, job.progress)
	if err != nil {
		// Best-effort by contract. The next report supersedes this one.
		r.logger.Debug("history sync failed",
			"anime_id", job.animeID,
			"episode", job.episodeNumber,
			"error", err)
		return
	}

	if r.service != nil {
		if err := r.service.MarkSynced(job.animeID, job.episodeNumber); err != nil {
			r.logger.Warn("failed to flag history as synced",
				"anime_id", job.animeID,
				"error", err)
		}
	}
}
