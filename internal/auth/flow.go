// Package auth implements the Discord OAuth login flow. The backend owns
// the Discord application and performs the code exchange; this package
// fetches the authorize URL, catches the redirect on a local callback
// server, verifies the state parameter and installs the resulting
// identity into the session.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/browser"
	"golang.org/x/oauth2"

	"github.com/aozaki/anistream/internal/api"
	"github.com/aozaki/anistream/internal/session"
)

const callbackPath = "/callback"

// ErrStateMismatch means the redirect carried a state value the flow did
// not issue. The code is discarded.
var ErrStateMismatch = errors.New("oauth state mismatch")

type callbackResult struct {
	code  string
	state string
	err   error
}

// Options configures a login flow
type Options struct {
	// CallbackPort must match the redirect URI the backend registered
	// with Discord.
	CallbackPort int
	// Timeout bounds the whole browser round trip. Defaults to 5 minutes.
	Timeout time.Duration
	Logger  *slog.Logger
	// OpenBrowser overrides how the authorize URL is opened. Defaults to
	// the system browser.
	OpenBrowser func(url string) error
}

// Flow drives one login attempt
type Flow struct {
	client  *api.Client
	session *session.Manager

	port        int
	timeout     time.Duration
	logger      *slog.Logger
	openBrowser func(url string) error

	expectedState string
	results       chan callbackResult
	srv           *http.Server
}

// NewFlow creates a login flow
func NewFlow(client *api.Client, sess *session.Manager, opts Options) *Flow {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = browser.OpenURL
	}
	return &Flow{
		client:      client,
		session:     sess,
		port:        opts.CallbackPort,
		timeout:     opts.Timeout,
		logger:      opts.Logger,
		openBrowser: opts.OpenBrowser,
		results:     make(chan callbackResult, 1),
	}
}

// Begin asks the backend for the Discord authorize URL and remembers the
// state it issued. Callers that cannot run the callback server show the
// URL and collect the redirect by hand.
func (f *Flow) Begin(ctx context.Context) (string, error) {
	authURL, err := f.client.DiscordAuthURL(ctx)
	if err != nil {
		return "", err
	}
	f.expectedState = authURL.State
	return authURL.URL, nil
}

// Run performs the whole browser flow: authorize URL, local callback,
// state check, code exchange, session install.
func (f *Flow) Run(ctx context.Context) (*session.Identity, error) {
	loginURL, err := f.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return f.Await(ctx, loginURL)
}

// Await runs the callback half of a flow whose URL Begin already
// issued: it starts the local server, opens the browser and blocks
// until the redirect lands, the timeout expires or ctx is cancelled.
// Callers that show the URL themselves use Begin plus Await; Run wraps
// both.
func (f *Flow) Await(ctx context.Context, loginURL string) (*session.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := f.startCallbackServer(); err != nil {
		return nil, fmt.Errorf("callback server on port %d: %w (complete the login manually with the pasted redirect)", f.port, err)
	}
	defer f.stopCallbackServer()

	f.logger.Info("opening browser for Discord login", "url", loginURL)
	if err := f.openBrowser(loginURL); err != nil {
		f.logger.Warn("could not open browser, visit the URL manually", "error", err)
	}

	select {
	case res := <-f.results:
		if res.err != nil {
			return nil, res.err
		}
		return f.Complete(ctx, res.code, res.state)
	case <-ctx.Done():
		return nil, fmt.Errorf("login timed out: %w", ctx.Err())
	}
}

// Complete verifies the state, exchanges the code through the backend and
// installs the identity.
func (f *Flow) Complete(ctx context.Context, code, state string) (*session.Identity, error) {
	if code == "" {
		return nil, errors.New("no authorization code received")
	}
	if f.expectedState != "" && state != f.expectedState {
		return nil, ErrStateMismatch
	}

	user, err := f.client.ExchangeDiscordCode(ctx, code, state)
	if err != nil {
		return nil, err
	}

	identity := session.Identity{
		UserID:    user.UserID,
		Username:  user.Username,
		AvatarURL: user.Avatar,
		Email:     user.Email,
	}

	var token *oauth2.Token
	if user.AccessToken != "" {
		token = &oauth2.Token{
			AccessToken: user.AccessToken,
			TokenType:   "Bearer",
		}
	}

	if f.session != nil {
		if err := f.session.Login(identity, token); err != nil {
			return nil, fmt.Errorf("failed to persist session: %w", err)
		}
	}

	f.logger.Info("signed in", "username", identity.Username)
	return &identity, nil
}

func (f *Flow) startCallbackServer() error {
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, f.handleCallback)

	// Listen first so a taken port fails loudly instead of racing the
	// browser redirect.
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", f.port))
	if err != nil {
		return err
	}

	f.srv = &http.Server{Handler: mux}
	go func() {
		if err := f.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			f.logger.Error("callback server failed", "error", err)
		}
	}()
	return nil
}

func (f *Flow) stopCallbackServer() {
	if f.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.srv.Shutdown(ctx); err != nil {
		f.logger.Warn("callback server shutdown failed", "error", err)
	}
}

func (f *Flow) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	w.Header().Set("Content-Type", "text/html")

	if errParam := query.Get("error"); errParam != "" {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, resultPage("Login failed: "+errParam, false))
		f.deliver(callbackResult{err: fmt.Errorf("discord authorization denied: %s", errParam)})
		return
	}

	code := query.Get("code")
	if code == "" {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, resultPage("No authorization code received", false))
		f.deliver(callbackResult{err: errors.New("no authorization code received")})
		return
	}

	fmt.Fprint(w, resultPage("Signed in! You can close this window and return to the terminal.", true))
	f.deliver(callbackResult{code: code, state: query.Get("state")})
}

// deliver hands the first result to the waiting flow; stray repeats from
// browser refreshes are dropped.
func (f *Flow) deliver(res callbackResult) {
	select {
	case f.results <- res:
	default:
	}
}

func resultPage(message string, ok bool) string {
	color := "#f44336"
	if ok {
		color = "#4CAF50"
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <title>AniStream Login</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 50px; text-align: center; background: #1a1a1a; color: white; }
        .status { color: %s; font-size: 18px; margin-bottom: 20px; }
    </style>
</head>
<body>
    <div class="status">%s</div>
</body>
</html>`, color, message)
}

// ParseRedirectInput extracts code and state from a pasted redirect. It
// accepts the full redirect URL, a bare query string or just the code.
func ParseRedirectInput(input string) (code, state string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ""
	}

	if strings.Contains(input, "code=") {
		raw := input
		if idx := strings.Index(raw, "?"); idx != -1 {
			raw = raw[idx+1:]
		}
		if values, err := url.ParseQuery(raw); err == nil && values.Get("code") != "" {
			return values.Get("code"), values.Get("state")
		}
	}

	// Treat the whole input as a bare code
	return input, ""
}
