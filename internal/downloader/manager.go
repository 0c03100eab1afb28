package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aozaki/anistream/internal/api"
	"github.com/aozaki/anistream/internal/config"
	"github.com/aozaki/anistream/internal/database"
)

// Manager owns the download queue and worker pool
type Manager struct {
	mu sync.RWMutex

	queue  chan *Task
	active map[string]*activeDownload
	wg     sync.WaitGroup

	running bool
	ctx     context.Context
	cancel  context.CancelFunc

	onProgress func(Task)
	onComplete func(Task)
	onError    func(Task, error)

	config *config.DownloadsConfig
	logger *slog.Logger
	db     *gorm.DB
}

type activeDownload struct {
	task   *Task
	cancel context.CancelFunc
}

// NewManager creates a download manager and reloads unfinished tasks
// from the database.
func NewManager(db *gorm.DB, cfg *config.DownloadsConfig, logger *slog.Logger) (*Manager, error) {
	if db == nil {
		return nil, fmt.Errorf("database cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		queue:  make(chan *Task, 100),
		active: make(map[string]*activeDownload),
		config: cfg,
		logger: logger,
		db:     db,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := m.reloadQueue(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to reload download queue: %w", err)
	}
	return m, nil
}

// Start launches the worker pool
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("download manager already running")
	}
	m.running = true

	workers := m.config.Concurrency
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		w := &worker{id: i, manager: m, logger: m.logger.With("worker", i)}
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			w.run(m.ctx, m.queue)
		}()
	}

	m.logger.Debug("download manager started", "workers", workers)
	return nil
}

// Stop cancels active downloads and waits for the workers to exit
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	for _, ad := range m.active {
		ad.cancel()
	}
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}

// Enqueue queues one episode for download
func (m *Manager) Enqueue(anime *api.Anime, episode *api.Episode) (*Task, error) {
	if anime == nil || episode == nil {
		return nil, fmt.Errorf("anime and episode are required")
	}
	if episode.VideoURL == "" {
		return nil, fmt.Errorf("episode %d of %s has no video URL", episode.Number, anime.Title)
	}

	if err := m.checkDiskSpace(); err != nil {
		return nil, err
	}

	var existing int64
	m.db.Model(&database.Download{}).
		Where("anime_id = ? AND episode_number = ? AND status IN (?, ?)",
			anime.ID, episode.Number, StatusQueued.String(), StatusDownloading.String()).
		Count(&existing)
	if existing > 0 {
		return nil, fmt.Errorf("episode %d of %s is already queued", episode.Number, anime.Title)
	}

	task := &Task{
		ID:            uuid.New().String(),
		AnimeID:       anime.ID,
		AnimeTitle:    anime.Title,
		EpisodeNumber: episode.Number,
		VideoURL:      episode.VideoURL,
		OutputPath:    filepath.Join(m.config.Dir, Filename(anime.Title, episode.Number)),
		Status:        StatusQueued,
		CreatedAt:     time.Now(),
	}

	if err := m.db.Create(rowFromTask(*task)).Error; err != nil {
		return nil, fmt.Errorf("failed to persist download task: %w", err)
	}

	select {
	case m.queue <- task:
	default:
		return nil, fmt.Errorf("download queue is full")
	}

	m.logger.Info("queued download",
		"anime", anime.Title,
		"episode", episode.Number,
		"output", task.OutputPath)
	return task, nil
}

// Queue returns every known task, newest first
func (m *Manager) Queue() ([]Task, error) {
	var rows []database.Download
	if err := m.db.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list downloads: %w", err)
	}

	tasks := make([]Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, taskFromRow(row))
	}
	return tasks, nil
}

// Cancel stops an active download or withdraws a queued one
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	if ad, ok := m.active[id]; ok {
		ad.cancel()
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	return m.db.Model(&database.Download{}).
		Where("id = ? AND status = ?", id, StatusQueued.String()).
		Update("status", StatusCancelled.String()).Error
}

// OnProgress registers the progress callback
func (m *Manager) OnProgress(fn func(Task)) { m.onProgress = fn }

// OnComplete registers the completion callback
func (m *Manager) OnComplete(fn func(Task)) { m.onComplete = fn }

// OnError registers the failure callback
func (m *Manager) OnError(fn func(Task, error)) { m.onError = fn }

// reloadQueue puts unfinished rows back on the in-memory queue
func (m *Manager) reloadQueue() error {
	var rows []database.Download
	err := m.db.Where("status IN (?, ?)", StatusQueued.String(), StatusDownloading.String()).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return err
	}

	for _, row := range rows {
		task := taskFromRow(row)
		// A download interrupted mid-flight restarts from scratch
		task.Status = StatusQueued
		task.Progress = 0
		task.BytesDownloaded = 0

		if err := m.persist(&task); err != nil {
			return err
		}
		t := task
		select {
		case m.queue <- &t:
		default:
			m.logger.Warn("download queue full during reload, leaving task for next start", "id", t.ID)
		}
	}

	if len(rows) > 0 {
		m.logger.Info("restored download queue", "tasks", len(rows))
	}
	return nil
}

// persist writes the task's current state to its row
func (m *Manager) persist(task *Task) error {
	return m.db.Save(rowFromTask(*task)).Error
}

func (m *Manager) registerActive(task *Task, cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[task.ID] = &activeDownload{task: task, cancel: cancel}
}

func (m *Manager) unregisterActive(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, id)
}

func (m *Manager) notifyProgress(task Task) {
	if m.onProgress != nil {
		m.onProgress(task)
	}
}

func (m *Manager) notifyComplete(task Task) {
	if m.onComplete != nil {
		m.onComplete(task)
	}
}

func (m *Manager) notifyError(task Task, err error) {
	if m.onError != nil {
		m.onError(task, err)
	}
}

func rowFromTask(t Task) *database.Download {
	return &database.Download{
		ID:              t.ID,
		AnimeID:         t.AnimeID,
		AnimeTitle:      t.AnimeTitle,
		EpisodeNumber:   t.EpisodeNumber,
		VideoURL:        t.VideoURL,
		Status:          t.Status.String(),
		Progress:        t.Progress,
		BytesDownloaded: t.BytesDownloaded,
		TotalBytes:      t.TotalBytes,
		Speed:           t.Speed,
		Error:           t.Error,
		FilePath:        t.OutputPath,
		CreatedAt:       t.CreatedAt,
		StartedAt:       t.StartedAt,
		CompletedAt:     t.CompletedAt,
	}
}

func taskFromRow(row database.Download) Task {
	return Task{
		ID:              row.ID,
		AnimeID:         row.AnimeID,
		AnimeTitle:      row.AnimeTitle,
		EpisodeNumber:   row.EpisodeNumber,
		VideoURL:        row.VideoURL,
		Status:          Status(row.Status),
		Progress:        row.Progress,
		BytesDownloaded: row.BytesDownloaded,
		TotalBytes:      row.TotalBytes,
		Speed:           row.Speed,
		Error:           row.Error,
		OutputPath:      row.FilePath,
		CreatedAt:       row.CreatedAt,
		StartedAt:       row.StartedAt,
		CompletedAt:     row.CompletedAt,
	}
}
