// Package hls downloads HTTP Live Streaming playlists without external
// tools. It follows master playlists to the highest-bandwidth variant,
// fetches segments concurrently and writes them out in order.
package hls

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	segmentWorkers = 8
	segmentRetries = 2
)

// ProgressFunc receives the number of fetched segments and the total
type ProgressFunc func(done, total int)

type segment struct {
	url   string
	index int
}

// Downloader fetches one playlist at a time
type Downloader struct {
	client    *http.Client
	userAgent string
}

// NewDownloader returns a Downloader sending the given User-Agent on
// every request. Some CDNs refuse the Go default.
func NewDownloader(userAgent string) *Downloader {
	return &Downloader{
		client:    &http.Client{Timeout: 30 * time.Second},
		userAgent: userAgent,
	}
}

// Download fetches the playlist at playlistURL and assembles its
// segments into output. progress may be nil.
func (d *Downloader) Download(ctx context.Context, playlistURL, output string, progress ProgressFunc) error {
	segments, err := d.resolveSegments(ctx, playlistURL)
	if err != nil {
		return fmt.Errorf("failed to resolve playlist: %w", err)
	}
	if len(segments) == 0 {
		return fmt.Errorf("playlist has no segments")
	}

	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	out, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	return d.assemble(ctx, segments, out, progress)
}

// resolveSegments fetches the playlist, descending into the best
// variant when it turns out to be a master playlist.
func (d *Downloader) resolveSegments(ctx context.Context, playlistURL string) ([]segment, error) {
	lines, err := d.fetchLines(ctx, playlistURL)
	if err != nil {
		return nil, err
	}

	if isMaster(lines) {
		variant, err := bestVariant(lines, playlistURL)
		if err != nil {
			return nil, err
		}
		lines, err = d.fetchLines(ctx, variant)
		if err != nil {
			return nil, err
		}
		playlistURL = variant
	}

	return parseSegments(lines, playlistURL), nil
}

func (d *Downloader) fetchLines(ctx context.Context, rawURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, line := range strings.Split(string(body), "\n") {
		lines = append(lines, strings.TrimSpace(line))
	}
	return lines, nil
}

func isMaster(lines []string) bool {
	for _, line := range lines {
		if strings.HasPrefix(line, "#EXT-X-STREAM-INF:") {
			return true
		}
	}
	return false
}

var bandwidthPattern = regexp.MustCompile(`BANDWIDTH=(\d+)`)

// bestVariant picks the highest-bandwidth entry of a master playlist
func bestVariant(lines []string, baseURL string) (string, error) {
	best := ""
	bestBandwidth := -1

	for i, line := range lines {
		if !strings.HasPrefix(line, "#EXT-X-STREAM-INF:") || i+1 >= len(lines) {
			continue
		}

		bandwidth := 0
		if m := bandwidthPattern.FindStringSubmatch(line); len(m) > 1 {
			bandwidth, _ = strconv.Atoi(m[1])
		}
		target := strings.TrimSpace(lines[i+1])
		if target == "" || strings.HasPrefix(target, "#") {
			continue
		}
		if bandwidth > bestBandwidth {
			bestBandwidth = bandwidth
			best = resolveURL(baseURL, target)
		}
	}

	if best == "" {
		return "", fmt.Errorf("master playlist has no usable variants")
	}
	return best, nil
}

// parseSegments collects the media URIs following each EXTINF tag
func parseSegments(lines []string, baseURL string) []segment {
	var segments []segment
	for i, line := range lines {
		if !strings.HasPrefix(line, "#EXTINF:") || i+1 >= len(lines) {
			continue
		}
		target := strings.TrimSpace(lines[i+1])
		if target == "" || strings.HasPrefix(target, "#") {
			continue
		}
		segments = append(segments, segment{
			url:   resolveURL(baseURL, target),
			index: len(segments),
		})
	}
	return segments
}

// resolveURL makes target absolute relative to the playlist location
func resolveURL(base, target string) string {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return target
	}
	targetURL, err := url.Parse(target)
	if err != nil {
		return target
	}
	return baseURL.ResolveReference(targetURL).String()
}

// assemble downloads every segment and writes them to out in playlist
// order. Segments arrive from a small worker pool, so out-of-order
// results are buffered until their turn comes.
func (d *Downloader) assemble(ctx context.Context, segments []segment, out io.Writer, progress ProgressFunc) error {
	total := len(segments)
	if progress != nil {
		progress(0, total)
	}

	jobs := make(chan segment, total)
	type result struct {
		index int
		data  []byte
		err   error
	}
	results := make(chan result, total)

	var wg sync.WaitGroup
	for i := 0; i < segmentWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for seg := range jobs {
				if ctx.Err() != nil {
					return
				}
				data, err := d.fetchSegment(ctx, seg.url)
				results <- result{index: seg.index, data: data, err: err}
			}
		}()
	}

	for _, seg := range segments {
		jobs <- seg
	}
	close(jobs)

	pending := make(map[int][]byte)
	next := 0
	done := 0

	for i := 0; i < total; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-results:
			if res.err != nil {
				return fmt.Errorf("segment %d: %w", res.index, res.err)
			}
			pending[res.index] = res.data
			done++

			for {
				data, ok := pending[next]
				if !ok {
					break
				}
				if _, err := out.Write(data); err != nil {
					return fmt.Errorf("failed to write segment %d: %w", next, err)
				}
				delete(pending, next)
				next++
			}

			if progress != nil {
				progress(done, total)
			}
		}
	}

	wg.Wait()
	return nil
}

// fetchSegment downloads one media segment with a short retry
func (d *Downloader) fetchSegment(ctx context.Context, segmentURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= segmentRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, segmentURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", d.userAgent)

		resp, err := d.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
			continue
		}
		return data, nil
	}
	return nil, lastErr
}
