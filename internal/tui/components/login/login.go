// Package login drives the Discord sign-in screen. The normal path
// opens the browser and waits for the local callback; the manual path
// takes a pasted redirect for machines where the callback port or the
// browser is unavailable.
package login

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aozaki/anistream/internal/api"
	"github.com/aozaki/anistream/internal/auth"
	"github.com/aozaki/anistream/internal/session"
	"github.com/aozaki/anistream/internal/tui/common"
	"github.com/aozaki/anistream/internal/tui/styles"
	"github.com/aozaki/anistream/internal/tui/utils"
)

type phase int

const (
	phaseStarting phase = iota
	phaseWaiting
	phaseManual
	phaseExchanging
	phaseFailed
	phaseDone
)

// beganMsg reports the authorize URL for one attempt generation
type beganMsg struct {
	Generation int
	URL        string
	Err        error
}

// doneMsg is the terminal outcome of one attempt generation
type doneMsg struct {
	Generation int
	Identity   *session.Identity
	Err        error
}

type Model struct {
	client *api.Client
	sess   *session.Manager
	port   int
	logger *slog.Logger

	width  int
	height int

	phase      phase
	generation int
	flow       *auth.Flow
	cancel     context.CancelFunc

	authURL  string
	input    textinput.Model
	err      error
	username string
}

func New(client *api.Client, sess *session.Manager, callbackPort int, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}

	ti := textinput.New()
	ti.Placeholder = "Paste the redirect URL or code here..."
	ti.Prompt = "> "
	ti.CharLimit = 2048
	ti.PromptStyle = styles.SelectedItemStyle
	ti.TextStyle = styles.ListTitleStyle
	ti.PlaceholderStyle = styles.MetadataStyle

	return Model{
		client: client,
		sess:   sess,
		port:   callbackPort,
		logger: logger,
		input:  ti,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Start begins a fresh sign-in attempt, cancelling any running one
func (m *Model) Start() tea.Cmd {
	m.stop()
	m.generation++
	m.phase = phaseStarting
	m.err = nil
	m.authURL = ""
	m.username = ""
	m.input.Blur()
	m.input.SetValue("")

	m.flow = auth.NewFlow(m.client, m.sess, auth.Options{
		CallbackPort: m.port,
		Logger:       m.logger,
	})

	generation := m.generation
	flow := m.flow
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		url, err := flow.Begin(ctx)
		return beganMsg{Generation: generation, URL: url, Err: err}
	}
}

// Cancel aborts any attempt in flight. The shell calls it when the
// user navigates away.
func (m *Model) Cancel() {
	m.stop()
	m.generation++
	m.phase = phaseStarting
}

// Typing reports whether keystrokes are being captured by the manual
// entry input.
func (m Model) Typing() bool {
	return m.phase == phaseManual
}

// stop cancels the callback wait without touching the phase
func (m *Model) stop() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 10
		return m, nil

	case beganMsg:
		if msg.Generation != m.generation {
			return m, nil
		}
		if msg.Err != nil {
			m.phase = phaseFailed
			m.err = msg.Err
			return m, nil
		}
		m.authURL = msg.URL
		m.phase = phaseWaiting
		cmd := m.await(msg.URL)
		return m, cmd

	case doneMsg:
		if msg.Generation != m.generation {
			return m, nil
		}
		m.stop()
		if msg.Err != nil {
			m.phase = phaseFailed
			m.err = msg.Err
			return m, nil
		}
		m.phase = phaseDone
		m.username = msg.Identity.Username
		identity := *msg.Identity
		return m, func() tea.Msg { return common.SignedInMsg{Identity: identity} }

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// await blocks on the callback server under a cancellable context
func (m *Model) await(url string) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	generation := m.generation
	flow := m.flow
	return func() tea.Msg {
		identity, err := flow.Await(ctx, url)
		return doneMsg{Generation: generation, Identity: identity, Err: err}
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.phase == phaseManual {
		switch msg.String() {
		case "enter":
			return m.submitManual()
		case "esc":
			m.phase = phaseFailed
			if m.err == nil {
				m.err = context.Canceled
			}
			m.input.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "m":
		if m.phase == phaseWaiting || m.phase == phaseFailed {
			// The callback wait and manual entry race for the same code;
			// drop the wait before taking input.
			m.stop()
			m.generation++
			m.phase = phaseManual
			m.input.Focus()
			return m, textinput.Blink
		}
		return m, nil

	case "r":
		if m.phase == phaseFailed {
			cmd := m.Start()
			return m, cmd
		}
		return m, nil

	case "esc":
		m.Cancel()
		return m, func() tea.Msg { return common.NavigateBackMsg{} }
	}

	return m, nil
}

func (m Model) submitManual() (Model, tea.Cmd) {
	raw := strings.TrimSpace(m.input.Value())
	if raw == "" {
		return m, nil
	}
	if m.flow == nil {
		m.phase = phaseFailed
		m.err = context.Canceled
		return m, nil
	}

	m.phase = phaseExchanging
	m.input.Blur()

	generation := m.generation
	flow := m.flow
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		code, state := auth.ParseRedirectInput(raw)
		identity, err := flow.Complete(ctx, code, state)
		return doneMsg{Generation: generation, Identity: identity, Err: err}
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styles.TitleStyle.Render("  SIGN IN  "))
	b.WriteString("\n\n")

	switch m.phase {
	case phaseStarting:
		b.WriteString(styles.SubtitleStyle.Render("  Contacting Discord..."))

	case phaseWaiting:
		b.WriteString(styles.NormalItemStyle.Render("  A browser window should have opened for Discord authorization."))
		b.WriteString("\n")
		b.WriteString(styles.NormalItemStyle.Render("  If it did not, open this URL yourself:"))
		b.WriteString("\n\n")
		b.WriteString("  " + styles.URLStyle.Render(utils.Truncate(m.authURL, m.urlWidth())))
		b.WriteString("\n\n")
		b.WriteString(styles.SubtitleStyle.Render("  Waiting for the redirect..."))

	case phaseManual:
		b.WriteString(styles.NormalItemStyle.Render("  Authorize in the browser, then paste the redirect URL below."))
		b.WriteString("\n")
		if m.authURL != "" {
			b.WriteString("\n  " + styles.URLStyle.Render(utils.Truncate(m.authURL, m.urlWidth())) + "\n")
		}
		b.WriteString("\n  " + m.input.View())

	case phaseExchanging:
		b.WriteString(styles.SubtitleStyle.Render("  Completing sign-in..."))

	case phaseFailed:
		message := "Sign-in failed."
		switch {
		case errors.Is(m.err, context.Canceled):
			message = "Sign-in cancelled."
		case m.err != nil:
			message = utils.Truncate("Sign-in failed: "+m.err.Error(), m.urlWidth())
		}
		b.WriteString(styles.SubtitleStyle.Render("  " + message))

	case phaseDone:
		b.WriteString(styles.ProgressStyle.Render("  Signed in as " + m.username))
	}

	b.WriteString("\n\n")
	b.WriteString(styles.ListHelpStyle.Render(m.helpText()))
	return b.String()
}

func (m Model) urlWidth() int {
	if m.width <= 0 {
		return 76
	}
	return m.width - 4
}

func (m Model) helpText() string {
	switch m.phase {
	case phaseWaiting:
		return "  m paste code manually • esc cancel"
	case phaseManual:
		return "  enter submit • esc abort"
	case phaseFailed:
		return "  r retry • m paste code manually • esc back"
	default:
		return "  esc back"
	}
}
