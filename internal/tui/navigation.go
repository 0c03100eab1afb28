package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aozaki/anistream/internal/tui/common"
)

// maxStackDepth caps the back stack; the oldest entries fall off
const maxStackDepth = 32

// openRoute activates the view for a route and kicks off its load.
// Leaving the watch view stops the external player first.
func (a *App) openRoute(route common.Route) tea.Cmd {
	var stop tea.Cmd
	if a.route.View == common.ViewWatch && route.View != common.ViewWatch {
		stop = a.stopPlayerCmd()
	}
	if a.route.View == common.ViewLogin && route.View != common.ViewLogin {
		a.login.Cancel()
	}

	a.statusMsg = ""
	a.route = route

	var open tea.Cmd
	switch route.View {
	case common.ViewHome:
		open = a.home.Reload()
	case common.ViewBrowse:
		open = a.browse.SetRoute(route)
	case common.ViewDetail:
		open = a.detail.SetRoute(route)
	case common.ViewWatch:
		open = a.startWatch(route)
	case common.ViewLogin:
		open = a.login.Start()
	case common.ViewProfile:
		open = a.profile.Reload()
	}

	return tea.Batch(stop, open)
}

func (a *App) handleNavigateMsg(msg common.NavigateMsg) (tea.Model, tea.Cmd) {
	// Episode switches replace the watch entry instead of piling every
	// episode onto the stack.
	if !(a.route.View == common.ViewWatch && msg.Route.View == common.ViewWatch) {
		a.push(a.route)
	}
	return a, a.openRoute(msg.Route)
}

func (a *App) handleBackMsg() (tea.Model, tea.Cmd) {
	a.returnTo = nil
	return a, a.openRoute(a.pop())
}

func (a *App) handleLoginRedirectMsg(msg common.LoginRedirectMsg) (tea.Model, tea.Cmd) {
	if a.route.View == common.ViewLogin {
		return a, nil
	}
	returnTo := msg.ReturnTo
	a.returnTo = &returnTo
	a.push(a.route)
	return a, a.openRoute(common.Route{View: common.ViewLogin})
}

func (a *App) handleSignedInMsg(msg common.SignedInMsg) (tea.Model, tea.Cmd) {
	target := common.HomeRoute()
	if a.returnTo != nil {
		target = *a.returnTo
		a.returnTo = nil
		// The redirecting view pushed itself before the login screen
		// opened; drop it so esc does not land on a copy of the page.
		if n := len(a.stack); n > 0 && a.stack[n-1] == target {
			a.stack = a.stack[:n-1]
		}
	} else if len(a.stack) > 0 {
		target = a.pop()
	}

	status := a.setStatus("Signed in as " + msg.Identity.Username)
	return a, tea.Batch(status, a.openRoute(target))
}

func (a *App) handleSignedOutMsg() (tea.Model, tea.Cmd) {
	a.stack = nil
	a.returnTo = nil
	status := a.setStatus("Signed out")
	return a, tea.Batch(status, a.openRoute(common.HomeRoute()))
}

func (a *App) push(route common.Route) {
	// The stack never holds the login screen; returning to it after
	// the flow it hosted makes no sense.
	if route.View == common.ViewLogin {
		return
	}
	a.stack = append(a.stack, route)
	if len(a.stack) > maxStackDepth {
		a.stack = a.stack[1:]
	}
}

func (a *App) pop() common.Route {
	if len(a.stack) == 0 {
		return common.HomeRoute()
	}
	route := a.stack[len(a.stack)-1]
	a.stack = a.stack[:len(a.stack)-1]
	return route
}
