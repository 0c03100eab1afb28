package common

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/aozaki/anistream/internal/tui/styles"
)

// FuzzyFilter is an inline filter for list views. It has two states:
// editing (keystrokes go to the input) and locked (the query stays
// applied but action keys work again).
type FuzzyFilter struct {
	input  textinput.Model
	active bool
	locked bool
	query  string
}

// NewFuzzyFilter creates an inactive filter
func NewFuzzyFilter() *FuzzyFilter {
	ti := textinput.New()
	ti.Placeholder = "Type to filter..."
	ti.Prompt = ""
	ti.CharLimit = 200
	ti.PromptStyle = styles.ListTitleStyle
	ti.TextStyle = styles.MetadataStyle
	ti.PlaceholderStyle = styles.MetadataStyle

	return &FuzzyFilter{input: ti}
}

// Activate enters editing mode with an empty query
func (f *FuzzyFilter) Activate() tea.Cmd {
	f.active = true
	f.locked = false
	f.input.Focus()
	f.input.SetValue("")
	f.query = ""
	return textinput.Blink
}

// Deactivate clears the filter entirely
func (f *FuzzyFilter) Deactivate() {
	f.active = false
	f.locked = false
	f.input.Blur()
	f.input.SetValue("")
	f.query = ""
}

// Lock keeps the query applied but stops capturing keystrokes
func (f *FuzzyFilter) Lock() {
	if f.active {
		f.locked = true
		f.input.Blur()
	}
}

// Unlock resumes editing
func (f *FuzzyFilter) Unlock() tea.Cmd {
	if f.active {
		f.locked = false
		f.input.Focus()
		return textinput.Blink
	}
	return nil
}

// IsActive reports whether a filter is applied or being edited
func (f *FuzzyFilter) IsActive() bool {
	return f.active
}

// IsLocked reports whether the filter is applied but not editable
func (f *FuzzyFilter) IsLocked() bool {
	return f.locked
}

// Query returns the current query text
func (f *FuzzyFilter) Query() string {
	return f.query
}

// Update feeds keystrokes to the input while editing
func (f *FuzzyFilter) Update(msg tea.Msg) tea.Cmd {
	if !f.active || f.locked {
		return nil
	}

	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	f.query = f.input.Value()
	return cmd
}

// View renders the filter line, or nothing when inactive
func (f *FuzzyFilter) View() string {
	if !f.active {
		return ""
	}

	prompt := styles.ListTitleStyle.Render("┃")
	label := styles.MetadataStyle.Render("Filter: ")

	if f.locked {
		queryText := styles.ListTitleStyle.Render(f.query)
		hint := styles.ListHelpStyle.Render(" (locked • / to edit • esc to clear)")
		return label + prompt + " " + queryText + hint
	}

	hint := styles.ListHelpStyle.Render(" (esc to lock)")
	return label + prompt + " " + f.input.View() + hint
}

// SetWidth sizes the inline input
func (f *FuzzyFilter) SetWidth(width int) {
	f.input.Width = width - 20
}

// Filter returns the indices of entries matching the query, best match
// first. With no query every index is returned in order.
func (f *FuzzyFilter) Filter(entries []string) []int {
	if !f.active || f.query == "" {
		indices := make([]int, len(entries))
		for i := range indices {
			indices[i] = i
		}
		return indices
	}

	matches := fuzzy.Find(f.query, entries)
	indices := make([]int, len(matches))
	for i, match := range matches {
		indices[i] = match.Index
	}
	return indices
}
