// Package clipboard copies shareable links to the system clipboard and
// reads pasted text back (the manual login flow pastes the OAuth
// redirect). A configured command overrides the built-in platform
// handling.
package clipboard

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
)

// CopiedMsg reports the outcome of a clipboard write
type CopiedMsg struct {
	Text string
	Err  error
}

// Service provides clipboard operations across platforms
type Service interface {
	// Read returns the current clipboard content
	Read(ctx context.Context) (string, error)

	// Write copies text asynchronously and emits a CopiedMsg
	Write(text string) tea.Cmd
}

type clipboardService struct {
	// command, when set, is piped the text on stdin (write) or executed
	// for its output (read)
	command string
	logger  *slog.Logger
}

// NewService creates a clipboard service. command is the optional
// user-configured override.
func NewService(command string, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &clipboardService{command: command, logger: logger}
}

// Read returns the current clipboard content
func (s *clipboardService) Read(ctx context.Context) (string, error) {
	if s.command != "" {
		parts := parseCommand(s.command)
		if len(parts) == 0 {
			return "", fmt.Errorf("invalid clipboard command: %s", s.command)
		}
		out, err := exec.CommandContext(ctx, parts[0], parts[1:]...).Output()
		if err != nil {
			return "", fmt.Errorf("clipboard command failed: %w", err)
		}
		return strings.TrimSpace(string(out)), nil
	}

	cmd, err := readCommand()
	if err != nil {
		return "", err
	}
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("clipboard read failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Write copies text asynchronously and emits a CopiedMsg
func (s *clipboardService) Write(text string) tea.Cmd {
	return func() tea.Msg {
		if err := clipboard.WriteAll(text); err == nil {
			s.logger.Debug("copied to clipboard", "length", len(text))
			return CopiedMsg{Text: text}
		} else {
			s.logger.Warn("clipboard library failed, trying command fallback", "error", err)
		}

		if err := s.writeWithCommand(text); err != nil {
			s.logger.Error("clipboard write failed", "error", err, "os", runtime.GOOS)
			return CopiedMsg{Text: text, Err: err}
		}
		return CopiedMsg{Text: text}
	}
}

func (s *clipboardService) writeWithCommand(text string) error {
	var cmd *exec.Cmd

	switch {
	case s.command != "":
		parts := parseCommand(s.command)
		if len(parts) == 0 {
			return fmt.Errorf("invalid clipboard command: %s", s.command)
		}
		cmd = exec.Command(parts[0], parts[1:]...)
	case isWSL():
		cmd = exec.Command("clip.exe")
	default:
		var err error
		cmd, err = writeCommand()
		if err != nil {
			return err
		}
	}

	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w", cmd.Path, err)
	}
	return nil
}

// readCommand picks the platform paste tool
func readCommand() (*exec.Cmd, error) {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("pbpaste"), nil
	case "windows":
		return exec.Command("powershell.exe", "-command", "Get-Clipboard"), nil
	case "linux":
		if commandExists("wl-paste") {
			return exec.Command("wl-paste"), nil
		}
		if commandExists("xclip") {
			return exec.Command("xclip", "-selection", "clipboard", "-o"), nil
		}
		if commandExists("xsel") {
			return exec.Command("xsel", "--clipboard", "--output"), nil
		}
		return nil, fmt.Errorf("no clipboard tool found (install xclip, xsel or wl-clipboard)")
	default:
		return nil, fmt.Errorf("clipboard not supported on %s", runtime.GOOS)
	}
}

// writeCommand picks the platform copy tool
func writeCommand() (*exec.Cmd, error) {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("pbcopy"), nil
	case "windows":
		return exec.Command("clip.exe"), nil
	case "linux":
		if commandExists("wl-copy") {
			return exec.Command("wl-copy"), nil
		}
		if commandExists("xclip") {
			return exec.Command("xclip", "-selection", "clipboard"), nil
		}
		if commandExists("xsel") {
			return exec.Command("xsel", "--clipboard", "--input"), nil
		}
		return nil, fmt.Errorf("no clipboard tool found (install xclip, xsel or wl-clipboard)")
	default:
		return nil, fmt.Errorf("clipboard not supported on %s", runtime.GOOS)
	}
}

// parseCommand splits a command string into parts, respecting quotes
func parseCommand(command string) []string {
	var parts []string
	var current string
	var inQuotes bool
	var quoteChar rune

	for _, char := range command {
		switch {
		case char == '\'' || char == '"':
			if !inQuotes {
				inQuotes = true
				quoteChar = char
			} else if char == quoteChar {
				inQuotes = false
			} else {
				current += string(char)
			}
		case char == ' ' && !inQuotes:
			if current != "" {
				parts = append(parts, current)
				current = ""
			}
		default:
			current += string(char)
		}
	}

	if current != "" {
		parts = append(parts, current)
	}
	return parts
}

// isWSL reports whether we are under Windows Subsystem for Linux, where
// clip.exe bridges to the Windows clipboard
func isWSL() bool {
	if runtime.GOOS != "linux" {
		return false
	}
	version, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	v := strings.ToLower(string(version))
	return strings.Contains(v, "microsoft") || strings.Contains(v, "wsl")
}

func commandExists(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}
