package downloader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/aozaki/anistream/internal/downloader/hls"
	"github.com/aozaki/anistream/internal/downloader/tools"
)

const (
	maxAttempts   = 3
	retryWait     = 2 * time.Second
	progressEvery = 500 * time.Millisecond

	// Some CDNs refuse requests carrying the Go default agent
	downloadUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// worker drains the task queue until its context ends
type worker struct {
	id      int
	manager *Manager
	logger  *slog.Logger
}

func (w *worker) run(ctx context.Context, queue <-chan *Task) {
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-queue:
			if !ok {
				return
			}
			w.process(ctx, task)
		}
	}
}

// process runs one task to a terminal state and persists every step
func (w *worker) process(ctx context.Context, task *Task) {
	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.manager.registerActive(task, cancel)
	defer w.manager.unregisterActive(task.ID)

	started := time.Now()
	task.Status = StatusDownloading
	task.StartedAt = &started
	_ = w.manager.persist(task)
	w.manager.notifyProgress(*task)

	err := w.download(taskCtx, task)

	switch {
	case err == nil:
		completed := time.Now()
		task.Status = StatusCompleted
		task.Progress = 100
		task.Speed = 0
		task.Error = ""
		task.CompletedAt = &completed
		_ = w.manager.persist(task)
		w.manager.notifyComplete(*task)
		w.logger.Info("download complete",
			"anime", task.AnimeTitle,
			"episode", task.EpisodeNumber,
			"size", humanize.Bytes(uint64(task.BytesDownloaded)),
			"elapsed", completed.Sub(started).Round(time.Second))

	case taskCtx.Err() != nil:
		task.Status = StatusCancelled
		task.Speed = 0
		task.Error = ""
		_ = os.Remove(task.OutputPath + ".part")
		_ = w.manager.persist(task)
		w.logger.Info("download cancelled",
			"anime", task.AnimeTitle,
			"episode", task.EpisodeNumber)

	default:
		task.Status = StatusFailed
		task.Speed = 0
		task.Error = err.Error()
		_ = os.Remove(task.OutputPath + ".part")
		_ = w.manager.persist(task)
		w.manager.notifyError(*task, err)
		w.logger.Error("download failed",
			"anime", task.AnimeTitle,
			"episode", task.EpisodeNumber,
			"error", err)
	}
}

// download resolves the transfer method from the URL and retries
// transient failures a few times before giving up.
func (w *worker) download(ctx context.Context, task *Task) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			w.logger.Info("retrying download",
				"attempt", attempt,
				"anime", task.AnimeTitle,
				"episode", task.EpisodeNumber)
			select {
			case <-time.After(retryWait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if isHLS(task.VideoURL) {
			lastErr = w.downloadPlaylist(ctx, task)
		} else {
			lastErr = w.downloadDirect(ctx, task)
		}
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}

// downloadDirect streams an mp4 URL to disk through a .part file
func (w *worker) downloadDirect(ctx context.Context, task *Task) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.VideoURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", downloadUserAgent)

	// No client timeout, a full episode takes as long as it takes
	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to start download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	task.TotalBytes = resp.ContentLength

	partPath := task.OutputPath + ".part"
	out, err := os.Create(partPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	buffer := make([]byte, 32*1024)
	var downloaded int64
	lastUpdate := time.Now()
	lastBytes := int64(0)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := resp.Body.Read(buffer)
		if n > 0 {
			if _, writeErr := out.Write(buffer[:n]); writeErr != nil {
				return fmt.Errorf("failed to write download: %w", writeErr)
			}
			downloaded += int64(n)
			task.BytesDownloaded = downloaded
			if task.TotalBytes > 0 {
				task.Progress = float64(downloaded) / float64(task.TotalBytes) * 100
			}

			if elapsed := time.Since(lastUpdate); elapsed >= progressEvery {
				task.Speed = int64(float64(downloaded-lastBytes) / elapsed.Seconds())
				lastUpdate = time.Now()
				lastBytes = downloaded
				_ = w.manager.persist(task)
				w.manager.notifyProgress(*task)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("download interrupted: %w", readErr)
		}
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to finish output file: %w", err)
	}
	if err := os.Rename(partPath, task.OutputPath); err != nil {
		return fmt.Errorf("failed to move download into place: %w", err)
	}
	return nil
}

// downloadPlaylist saves an HLS stream. ffmpeg remuxes straight to mp4
// when installed; otherwise segments are assembled natively, which
// yields a transport-stream file under the mp4 name.
func (w *worker) downloadPlaylist(ctx context.Context, task *Task) error {
	if ffmpeg := tools.FindFFmpeg(); ffmpeg.Available {
		return w.remuxPlaylist(ctx, ffmpeg.Binary, task)
	}

	w.logger.Debug("ffmpeg not found, assembling segments natively")
	partPath := task.OutputPath + ".part"

	lastUpdate := time.Now()
	d := hls.NewDownloader(downloadUserAgent)
	err := d.Download(ctx, task.VideoURL, partPath, func(done, total int) {
		task.Progress = float64(done) / float64(total) * 100
		if time.Since(lastUpdate) >= progressEvery {
			lastUpdate = time.Now()
			_ = w.manager.persist(task)
			w.manager.notifyProgress(*task)
		}
	})
	if err != nil {
		return err
	}

	if info, err := os.Stat(partPath); err == nil {
		task.TotalBytes = info.Size()
		task.BytesDownloaded = info.Size()
	}
	if err := os.Rename(partPath, task.OutputPath); err != nil {
		return fmt.Errorf("failed to move download into place: %w", err)
	}
	return nil
}

// remuxPlaylist copies the HLS stream into an mp4 container via ffmpeg
func (w *worker) remuxPlaylist(ctx context.Context, binary string, task *Task) error {
	partPath := task.OutputPath + ".part"

	args := []string{
		"-loglevel", "error",
		"-user_agent", downloadUserAgent,
		"-i", task.VideoURL,
		"-c", "copy",
		"-bsf:a", "aac_adtstoasc",
		"-movflags", "+faststart",
		"-f", "mp4",
		"-y", partPath,
	}
	w.logger.Debug("invoking ffmpeg", "url", task.VideoURL, "output", partPath)

	cmd := exec.CommandContext(ctx, binary, args...)

	// ffmpeg gives no byte totals for HLS, so progress is the growing
	// output file.
	watchCtx, stopWatching := context.WithCancel(ctx)
	defer stopWatching()
	go w.watchFileSize(watchCtx, partPath, task)

	out, err := cmd.CombinedOutput()
	stopWatching()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("ffmpeg failed: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}

	if info, err := os.Stat(partPath); err == nil {
		task.TotalBytes = info.Size()
		task.BytesDownloaded = info.Size()
	}
	if err := os.Rename(partPath, task.OutputPath); err != nil {
		return fmt.Errorf("failed to move download into place: %w", err)
	}
	return nil
}

// watchFileSize mirrors the byte count of a growing file into the task
func (w *worker) watchFileSize(ctx context.Context, path string, task *Task) {
	ticker := time.NewTicker(progressEvery)
	defer ticker.Stop()

	lastBytes := int64(0)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			size := info.Size()
			task.BytesDownloaded = size
			task.Speed = (size - lastBytes) * int64(time.Second/progressEvery)
			lastBytes = size
			_ = w.manager.persist(task)
			w.manager.notifyProgress(*task)
		}
	}
}
