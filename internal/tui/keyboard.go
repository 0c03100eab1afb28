package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aozaki/anistream/internal/tui/common"
)

// handleKeyMsg routes the keys the shell owns before the active view
// sees them. Everything else belongs to the views.
func (a *App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a, tea.Quit
	}

	if a.typing() {
		return a.updateActive(msg)
	}

	switch msg.String() {
	case "q":
		// The external player is reaped in shutdown after the loop exits
		return a, tea.Quit

	case "y":
		return a, a.clipboard.Write(a.shareableRoute())

	case "esc":
		// Home is the root; browse keeps esc free outside search mode.
		// The other views layer modals over esc and handle it themselves.
		switch a.route.View {
		case common.ViewHome:
			return a, nil
		case common.ViewBrowse:
			return a.handleBackMsg()
		}

	case "b":
		if a.route.View == common.ViewHome {
			a.push(a.route)
			return a, a.openRoute(common.Route{View: common.ViewBrowse})
		}

	case "p":
		if a.route.View == common.ViewHome {
			a.push(a.route)
			return a, a.openRoute(common.Route{View: common.ViewProfile})
		}
	}

	return a.updateActive(msg)
}
