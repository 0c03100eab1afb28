package tui

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"gorm.io/gorm"

	"github.com/aozaki/anistream/internal/api"
	"github.com/aozaki/anistream/internal/clipboard"
	"github.com/aozaki/anistream/internal/config"
	"github.com/aozaki/anistream/internal/history"
	"github.com/aozaki/anistream/internal/playback"
	"github.com/aozaki/anistream/internal/player"
	"github.com/aozaki/anistream/internal/player/mpv"
	"github.com/aozaki/anistream/internal/session"
	"github.com/aozaki/anistream/internal/tui/common"
	"github.com/aozaki/anistream/internal/tui/components/browse"
	"github.com/aozaki/anistream/internal/tui/components/detail"
	"github.com/aozaki/anistream/internal/tui/components/home"
	"github.com/aozaki/anistream/internal/tui/components/login"
	"github.com/aozaki/anistream/internal/tui/components/profile"
	"github.com/aozaki/anistream/internal/tui/components/watch"
	"github.com/aozaki/anistream/internal/tui/styles"
)

// statusVisible is how long a footer status line stays up
const statusVisible = 3 * time.Second

// App is the shell: it owns the route, the back stack, the view
// components and the process-wide playback collaborators, and routes
// messages between them.
type App struct {
	width  int
	height int

	route    common.Route
	stack    []common.Route
	returnTo *common.Route // pending destination after a forced login

	home    home.Model
	browse  browse.Model
	detail  detail.Model
	watch   watch.Model
	login   login.Model
	profile profile.Model

	client  *api.Client
	sess    *session.Manager
	cfg     *config.Config
	logger  *slog.Logger
	initial common.Route

	playback   *playback.Session
	player     player.Player
	reporter   *history.Reporter
	history    *history.Service
	clipboard  clipboard.Service

	// msgChan carries messages produced outside the event loop: player
	// callbacks and the controls countdown.
	msgChan chan tea.Msg

	statusMsg     string
	statusMsgTime time.Time
}

// NewApp wires the shell. A missing mpv installation is not fatal;
// the watch view reports the launch failure instead.
func NewApp(client *api.Client, sess *session.Manager, db *gorm.DB, cfg *config.Config, logger *slog.Logger, initial common.Route) *App {
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		client:  client,
		sess:    sess,
		cfg:     cfg,
		logger:  logger,
		initial: initial,
		route:   common.HomeRoute(),
		msgChan: make(chan tea.Msg, 100),
	}

	mpvPlayer, err := mpv.NewMPVPlayerWithConfig(cfg, cfg.Advanced.Debug)
	if err != nil {
		logger.Warn("mpv unavailable, playback will fail until it is installed", "error", err)
	} else {
		a.player = mpvPlayer
		mpvPlayer.OnPlaybackEnd(func() {
			a.deliver(common.PlaybackEndedMsg{})
		})
		mpvPlayer.OnError(func(err error) {
			a.deliver(playerFailedMsg{Err: err})
		})
	}

	a.history = history.NewService(db)
	a.reporter = history.NewReporter(client, a.history, history.ReporterConfig{
		SyncEnabled: cfg.History.SyncEnabled,
		Timeout:     cfg.API.Timeout,
		Logger:      logger,
	})

	a.playback = playback.NewSession(playback.Config{
		Catalog:  client,
		Player:   a.controller(),
		Reporter: a.reporter,
		Identity: func() string {
			if ident := sess.Current(); ident != nil {
				return ident.UserID
			}
			return ""
		},
		ControlsTimeout: cfg.UI.ControlsHideTimeout,
		Volume:          cfg.Player.Volume,
		OnControlsHidden: func() {
			a.deliver(common.ControlsHiddenMsg{})
		},
		Logger: logger,
	})

	a.clipboard = clipboard.NewService(cfg.Advanced.Clipboard.Command, logger)

	a.home = home.New(client, a.history, cfg.UI.CarouselInterval)
	a.browse = browse.New(client, cfg.UI.PageSize)
	a.detail = detail.New(client, a.history, sess)
	a.watch = watch.New(a.playback)
	a.login = login.New(client, sess, cfg.Auth.CallbackPort, logger)
	a.profile = profile.New(client, sess)

	return a
}

// controller adapts the optional player to the session. A nil player
// must stay a nil interface so the session's nil checks work.
func (a *App) controller() playback.Controller {
	if a.player == nil {
		return nil
	}
	return a.player
}

// deliver pushes a message from outside the event loop. Messages are
// dropped when the buffer is full rather than blocking a callback.
func (a *App) deliver(msg tea.Msg) {
	select {
	case a.msgChan <- msg:
	default:
		a.logger.Warn("dropping UI message, channel full")
	}
}

// listenForMessages surfaces the next out-of-loop message
func (a *App) listenForMessages() tea.Cmd {
	return func() tea.Msg {
		return <-a.msgChan
	}
}

func (a *App) Init() tea.Cmd {
	var open tea.Cmd
	if a.initial.View == common.ViewHome {
		open = a.home.Init()
	} else {
		// Deep links land with home underneath so esc has somewhere to go
		a.stack = append(a.stack, common.HomeRoute())
		open = tea.Batch(a.home.Init(), a.openRoute(a.initial))
	}
	return tea.Batch(open, a.listenForMessages())
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return a.handleWindowSize(msg)

	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case common.NavigateMsg:
		return a.handleNavigateMsg(msg)

	case common.NavigateBackMsg:
		return a.handleBackMsg()

	case common.LoginRedirectMsg:
		return a.handleLoginRedirectMsg(msg)

	case common.SignedInMsg:
		return a.handleSignedInMsg(msg)

	case common.SignedOutMsg:
		return a.handleSignedOutMsg()

	case common.StatusMsg:
		return a, a.setStatus(msg.Message)

	case common.ErrMsg:
		return a.handleErrMsg(msg)

	case common.ClearStatusMsg:
		if time.Since(a.statusMsgTime) >= statusVisible-500*time.Millisecond {
			a.statusMsg = ""
		}
		return a, nil

	case clipboard.CopiedMsg:
		if msg.Err != nil {
			return a, a.setStatus("Copy failed: " + msg.Err.Error())
		}
		return a, a.setStatus("Copied " + msg.Text)

	case episodeResolvedMsg:
		return a.handleEpisodeResolvedMsg(msg)

	case common.PlayerLaunchedMsg:
		return a.handlePlayerLaunchedMsg(msg)

	case common.PlaybackTickMsg:
		return a.handlePlaybackTickMsg()

	case common.PlaybackProgressMsg:
		return a.handlePlaybackProgressMsg(msg)

	case common.PlaybackEndedMsg:
		return a.handlePlaybackEndedMsg()

	case common.ControlsHiddenMsg:
		a.watch.Refresh()
		return a, a.listenForMessages()

	case playerFailedMsg:
		return a.handlePlayerFailedMsg(msg)
	}

	// Everything else is a component-local message; only the component
	// that issued it knows what to do with it.
	return a.updateActive(msg)
}

func (a *App) handleWindowSize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	a.width = msg.Width
	a.height = msg.Height

	var cmds []tea.Cmd
	var cmd tea.Cmd
	a.home, cmd = a.home.Update(msg)
	cmds = append(cmds, cmd)
	a.browse, cmd = a.browse.Update(msg)
	cmds = append(cmds, cmd)
	a.detail, cmd = a.detail.Update(msg)
	cmds = append(cmds, cmd)
	a.watch, cmd = a.watch.Update(msg)
	cmds = append(cmds, cmd)
	a.login, cmd = a.login.Update(msg)
	cmds = append(cmds, cmd)
	a.profile, cmd = a.profile.Update(msg)
	cmds = append(cmds, cmd)
	return a, tea.Batch(cmds...)
}

// updateActive forwards a message to the component owning the screen
func (a *App) updateActive(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.route.View {
	case common.ViewHome:
		a.home, cmd = a.home.Update(msg)
	case common.ViewBrowse:
		a.browse, cmd = a.browse.Update(msg)
		// Filter changes must keep the shareable location current
		a.route = a.browse.Route()
	case common.ViewDetail:
		a.detail, cmd = a.detail.Update(msg)
	case common.ViewWatch:
		a.watch, cmd = a.watch.Update(msg)
	case common.ViewLogin:
		a.login, cmd = a.login.Update(msg)
	case common.ViewProfile:
		a.profile, cmd = a.profile.Update(msg)
	}
	return a, cmd
}

func (a *App) handleErrMsg(msg common.ErrMsg) (tea.Model, tea.Cmd) {
	if msg.Err == nil {
		return a, nil
	}
	a.logger.Warn("request failed", "view", a.route.View.String(), "error", msg.Err)
	if errors.Is(msg.Err, api.ErrUnauthenticated) {
		return a.handleLoginRedirectMsg(common.LoginRedirectMsg{ReturnTo: a.route})
	}
	return a, a.setStatus("✗ " + msg.Err.Error())
}

// setStatus shows a transient footer line and schedules its removal
func (a *App) setStatus(message string) tea.Cmd {
	a.statusMsg = message
	a.statusMsgTime = time.Now()
	return tea.Tick(statusVisible, func(time.Time) tea.Msg {
		return common.ClearStatusMsg{}
	})
}

func (a *App) View() string {
	var body string
	switch a.route.View {
	case common.ViewHome:
		body = a.home.View()
	case common.ViewBrowse:
		body = a.browse.View()
	case common.ViewDetail:
		body = a.detail.View()
	case common.ViewWatch:
		body = a.watch.View()
	case common.ViewLogin:
		body = a.login.View()
	case common.ViewProfile:
		body = a.profile.View()
	}

	if a.statusMsg == "" {
		return body
	}

	width := a.width
	if width <= 0 {
		width = 80
	}
	footer := styles.FooterStyle.Width(width).Render(a.statusMsg)

	body = strings.TrimRight(body, "\n")
	if a.height > 0 {
		lines := strings.Split(body, "\n")
		if len(lines) >= a.height && a.height > 1 {
			lines = lines[:a.height-1]
			body = strings.Join(lines, "\n")
		}
	}
	return body + "\n" + footer
}

// typing reports whether the active view is capturing raw text input,
// which suspends the global key bindings.
func (a *App) typing() bool {
	switch a.route.View {
	case common.ViewBrowse:
		return a.browse.Searching()
	case common.ViewDetail:
		return a.detail.Filtering()
	case common.ViewLogin:
		return a.login.Typing()
	case common.ViewProfile:
		return a.profile.Filtering()
	}
	return false
}

// shareableRoute is the location the copy binding puts on the clipboard
func (a *App) shareableRoute() string {
	switch a.route.View {
	case common.ViewBrowse:
		return a.browse.Route().String()
	case common.ViewDetail:
		return a.detail.Route().String()
	case common.ViewWatch:
		return a.watch.Route().String()
	default:
		return a.route.String()
	}
}

// shutdown releases everything the shell owns. Called after the
// program loop exits.
func (a *App) shutdown() {
	if a.player != nil {
		ctx, cancel := playerContext()
		defer cancel()
		if err := a.player.Stop(ctx); err != nil {
			a.logger.Debug("player stop on shutdown", "error", err)
		}
	}
	a.playback.Close()
	a.reporter.Close()
}

func fmtEpisode(number int) string {
	return fmt.Sprintf("E%02d", number)
}
