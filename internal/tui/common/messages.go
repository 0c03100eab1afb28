package common

import (
	"github.com/aozaki/anistream/internal/player"
	"github.com/aozaki/anistream/internal/session"
)

// Messages exchanged between the app shell and its view components.
// Component-local messages (load results and the like) stay in the
// component packages; only cross-cutting ones live here.

// NavigateMsg asks the app to switch to a route. The current route is
// pushed on the back stack.
type NavigateMsg struct {
	Route Route
}

// NavigateBackMsg pops the back stack and returns to the previous
// route, or home when the stack is empty.
type NavigateBackMsg struct{}

// LoginRedirectMsg sends the user to the login view and remembers
// where to return after a successful sign-in.
type LoginRedirectMsg struct {
	ReturnTo Route
}

// ErrMsg surfaces an error in the footer
type ErrMsg struct {
	Err error
}

// StatusMsg shows a transient footer status line
type StatusMsg struct {
	Message string
}

// ClearStatusMsg removes the footer status line
type ClearStatusMsg struct{}

// SignedInMsg is broadcast after a completed sign-in so views can
// refresh identity-gated state.
type SignedInMsg struct {
	Identity session.Identity
}

// SignedOutMsg is broadcast after logout
type SignedOutMsg struct{}

// Playback wiring between the app shell and the watch view.

// PlayerLaunchedMsg reports the outcome of spawning the external
// player for a given session generation.
type PlayerLaunchedMsg struct {
	Generation int
	Err        error
}

// PlaybackTickMsg drives the once-a-second playback poll loop
type PlaybackTickMsg struct{}

// PlaybackProgressMsg carries a progress sample from the player.
// Generation pairs the sample with the session that polled it.
type PlaybackProgressMsg struct {
	Generation int
	Progress   *player.PlaybackProgress
	Err        error
}

// PlaybackEndedMsg is sent when the player reaches end of file or the
// IPC connection is lost after playback finished.
type PlaybackEndedMsg struct{}

// ControlsHiddenMsg is sent when the control overlay countdown fires
type ControlsHiddenMsg struct {
	Generation int
}
