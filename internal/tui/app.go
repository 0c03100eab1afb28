package tui

import (
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"gorm.io/gorm"

	"github.com/aozaki/anistream/internal/api"
	"github.com/aozaki/anistream/internal/config"
	"github.com/aozaki/anistream/internal/session"
	"github.com/aozaki/anistream/internal/tui/common"
)

// Start runs the full-screen interface until the user quits. The
// initial route decides which view opens first, so command-line
// deep links land directly on browse, detail, or playback.
func Start(client *api.Client, sess *session.Manager, db *gorm.DB, cfg *config.Config, logger *slog.Logger, initial common.Route) error {
	app := NewApp(client, sess, db, cfg, logger, initial)
	defer app.shutdown()

	program := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("interface error: %w", err)
	}
	return nil
}
