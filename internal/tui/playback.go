package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aozaki/anistream/internal/playback"
	"github.com/aozaki/anistream/internal/player"
	"github.com/aozaki/anistream/internal/tui/common"
)

var errMPVUnavailable = errors.New("mpv is not available; install mpv and make sure it is on PATH")

const (
	// resolveTimeout bounds the episode lookup before launch
	resolveTimeout = 20 * time.Second
	// launchTimeout bounds spawning mpv and its first IPC handshake
	launchTimeout = 30 * time.Second
	// progressInterval is the playback poll cadence
	progressInterval = time.Second
)

// episodeResolvedMsg carries the episode lookup result into the loop
type episodeResolvedMsg struct {
	Resolution playback.Resolution
}

// playerFailedMsg reports an asynchronous player failure mid-playback
type playerFailedMsg struct {
	Err error
}

func playerContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 3*time.Second)
}

// startWatch binds the session to the routed episode and resolves it
func (a *App) startWatch(route common.Route) tea.Cmd {
	generation := a.playback.Begin(route.AnimeID, route.Episode)
	a.watch.Refresh()

	sess := a.playback
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		defer cancel()

		res := sess.ResolveEpisode(ctx, route.AnimeID, route.Episode, generation)
		return episodeResolvedMsg{Resolution: res}
	}
}

func (a *App) handleEpisodeResolvedMsg(msg episodeResolvedMsg) (tea.Model, tea.Cmd) {
	if !a.playback.Apply(msg.Resolution) {
		return a, nil
	}
	a.watch.Refresh()

	snap := a.playback.Snapshot()
	if snap.State != playback.StateReady {
		// Not found or resolve error; the watch view renders it
		return a, nil
	}

	a.reporter.Prime(snap.Anime)
	return a, a.launchPlayer(snap)
}

// launchPlayer spawns mpv for a ready session. The resume point comes
// from the local history mirror; nearly-finished episodes restart.
func (a *App) launchPlayer(snap playback.Snapshot) tea.Cmd {
	if a.player == nil {
		a.playback.MarkError(snap.Generation, errMPVUnavailable)
		a.watch.Refresh()
		return nil
	}

	opts := player.PlayOptions{
		Volume:     int(snap.Volume * 100),
		Muted:      snap.Muted,
		Fullscreen: snap.Fullscreen || a.cfg.Player.Fullscreen,
		MPVArgs:    a.cfg.Player.ExtraArgs,
		UserAgent:  a.cfg.API.UserAgent,
		Title:      snap.Anime.Title + " - " + fmtEpisode(snap.EpisodeNumber),
		Episode:    snap.EpisodeNumber,
	}

	if resume, err := a.history.Resume(snap.AnimeID); err == nil &&
		resume != nil &&
		resume.EpisodeNumber == snap.EpisodeNumber &&
		!resume.Completed &&
		resume.DurationSeconds > 0 &&
		resume.ProgressPercent > 2 && resume.ProgressPercent < 90 {
		seconds := resume.ProgressPercent / 100 * resume.DurationSeconds
		opts.StartTime = time.Duration(seconds * float64(time.Second))
	}

	generation := snap.Generation
	url := snap.Episode.VideoURL
	p := a.player

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), launchTimeout)
		defer cancel()

		err := p.Play(ctx, url, opts)
		return common.PlayerLaunchedMsg{Generation: generation, Err: err}
	}
}

func (a *App) handlePlayerLaunchedMsg(msg common.PlayerLaunchedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		a.playback.MarkError(msg.Generation, msg.Err)
		a.watch.Refresh()
		return a, nil
	}

	if !a.playback.MarkPlaying(msg.Generation) {
		// The user moved on while mpv was starting; reap the orphan
		return a, a.stopPlayerCmd()
	}

	a.watch.Refresh()
	return a, playbackTick()
}

func playbackTick() tea.Cmd {
	return tea.Tick(progressInterval, func(time.Time) tea.Msg {
		return common.PlaybackTickMsg{}
	})
}

// handlePlaybackTickMsg drives the poll loop. It stops by itself when
// the user leaves the watch view or the session settles.
func (a *App) handlePlaybackTickMsg() (tea.Model, tea.Cmd) {
	if a.route.View != common.ViewWatch || a.player == nil {
		return a, nil
	}

	switch a.playback.State() {
	case playback.StatePlaying, playback.StatePaused:
	default:
		return a, nil
	}

	generation := a.playback.Generation()
	p := a.player
	poll := func() tea.Msg {
		ctx, cancel := playerContext()
		defer cancel()

		progress, err := p.GetProgress(ctx)
		return common.PlaybackProgressMsg{Generation: generation, Progress: progress, Err: err}
	}

	return a, tea.Batch(poll, playbackTick())
}

func (a *App) handlePlaybackProgressMsg(msg common.PlaybackProgressMsg) (tea.Model, tea.Cmd) {
	if msg.Generation != a.playback.Generation() {
		return a, nil
	}
	if msg.Err != nil {
		// Transient IPC misses happen around seeks and shutdown; end of
		// playback arrives through the player callback instead.
		a.logger.Debug("progress poll failed", "error", msg.Err)
		return a, nil
	}
	if msg.Progress == nil {
		return a, nil
	}

	snap := a.playback.Snapshot()
	if msg.Progress.Duration > 0 {
		seconds := msg.Progress.Duration.Seconds()
		a.playback.OnDurationResolved(seconds)
		a.reporter.PrimeDuration(snap.AnimeID, snap.EpisodeNumber, seconds)
	}
	a.playback.OnProgressTick(msg.Progress.Percentage / 100)

	a.watch.Refresh()
	return a, nil
}

func (a *App) handlePlaybackEndedMsg() (tea.Model, tea.Cmd) {
	next, ok := a.playback.OnPlaybackEnded()
	a.watch.Refresh()

	// Re-arm the out-of-loop listener; this message came through it
	listen := a.listenForMessages()

	if !ok || a.route.View != common.ViewWatch {
		return a, listen
	}

	snap := a.playback.Snapshot()
	open := a.openRoute(common.WatchRoute(snap.AnimeID, next))
	status := a.setStatus("Up next: " + fmtEpisode(next))
	return a, tea.Batch(listen, open, status)
}

func (a *App) handlePlayerFailedMsg(msg playerFailedMsg) (tea.Model, tea.Cmd) {
	a.logger.Warn("player failure", "error", msg.Err)
	a.playback.MarkError(a.playback.Generation(), msg.Err)
	a.watch.Refresh()
	return a, a.listenForMessages()
}

// stopPlayerCmd stops the external player off the event loop
func (a *App) stopPlayerCmd() tea.Cmd {
	if a.player == nil {
		return nil
	}
	p := a.player
	return func() tea.Msg {
		ctx, cancel := playerContext()
		defer cancel()

		if err := p.Stop(ctx); err != nil {
			// Already gone is the usual case
			return nil
		}
		return nil
	}
}
