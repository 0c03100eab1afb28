package login

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aozaki/anistream/internal/session"
	"github.com/aozaki/anistream/internal/tui/common"
)

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// startedModel is a model mid-attempt, before the authorize URL arrives
func startedModel() Model {
	m := New(nil, session.NewManager(nil), 48331, nil)
	m.Start()
	return m
}

func TestBeganMovesToWaiting(t *testing.T) {
	m := startedModel()

	m, cmd := m.Update(beganMsg{
		Generation: m.generation,
		URL:        "https://discord.com/oauth2/authorize?client_id=1",
	})

	assert.Equal(t, phaseWaiting, m.phase)
	assert.Equal(t, "https://discord.com/oauth2/authorize?client_id=1", m.authURL)
	assert.NotNil(t, cmd, "waiting starts the callback listener")
	assert.NotNil(t, m.cancel, "the callback wait must be cancellable")
}

func TestStaleBeganDropped(t *testing.T) {
	m := startedModel()
	m.generation = 4

	m, cmd := m.Update(beganMsg{Generation: 3, URL: "https://stale"})

	assert.Nil(t, cmd)
	assert.Equal(t, phaseStarting, m.phase)
	assert.Empty(t, m.authURL)
}

func TestBeganErrorFails(t *testing.T) {
	m := startedModel()

	m, cmd := m.Update(beganMsg{Generation: m.generation, Err: errors.New("backend down")})

	assert.Nil(t, cmd)
	assert.Equal(t, phaseFailed, m.phase)
	assert.ErrorContains(t, m.err, "backend down")
}

func TestDoneEmitsSignedIn(t *testing.T) {
	m := startedModel()
	m.phase = phaseWaiting

	m, cmd := m.Update(doneMsg{
		Generation: m.generation,
		Identity:   &session.Identity{UserID: "42", Username: "misato"},
	})

	assert.Equal(t, phaseDone, m.phase)
	require.NotNil(t, cmd)

	signed, ok := cmd().(common.SignedInMsg)
	require.True(t, ok)
	assert.Equal(t, "misato", signed.Identity.Username)
}

func TestDoneErrorShowsFailure(t *testing.T) {
	m := startedModel()
	m.phase = phaseWaiting

	m, cmd := m.Update(doneMsg{Generation: m.generation, Err: errors.New("state mismatch")})

	assert.Nil(t, cmd)
	assert.Equal(t, phaseFailed, m.phase)
}

func TestManualEntryBumpsGeneration(t *testing.T) {
	m := startedModel()
	m.phase = phaseWaiting
	before := m.generation

	m, _ = m.Update(keyMsg("m"))

	assert.Equal(t, phaseManual, m.phase)
	assert.True(t, m.Typing())
	assert.Equal(t, before+1, m.generation, "switching to manual orphans the callback wait")
}

func TestStaleDoneAfterManualSwitchDropped(t *testing.T) {
	m := startedModel()
	m.phase = phaseWaiting
	waitGeneration := m.generation

	m, _ = m.Update(keyMsg("m"))
	m, cmd := m.Update(doneMsg{Generation: waitGeneration, Err: errors.New("context canceled")})

	assert.Nil(t, cmd)
	assert.Equal(t, phaseManual, m.phase, "the cancelled wait must not disturb manual entry")
}

func TestManualSubmitEmptyIsNoop(t *testing.T) {
	m := startedModel()
	m.phase = phaseManual
	m.input.Focus()

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.Equal(t, phaseManual, m.phase)
}

func TestManualSubmitExchanges(t *testing.T) {
	m := startedModel()
	m.phase = phaseManual
	m.input.Focus()
	m.input.SetValue("http://127.0.0.1:48331/callback?code=abc&state=xyz")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, phaseExchanging, m.phase)
	assert.NotNil(t, cmd)
}

func TestEscNavigatesBack(t *testing.T) {
	m := startedModel()
	m.phase = phaseWaiting

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)

	_, ok := cmd().(common.NavigateBackMsg)
	assert.True(t, ok)
}

func TestRetryRestartsAttempt(t *testing.T) {
	m := startedModel()
	m.phase = phaseFailed
	m.err = errors.New("timed out")
	before := m.generation

	m, cmd := m.Update(keyMsg("r"))

	assert.Equal(t, phaseStarting, m.phase)
	assert.NoError(t, m.err)
	assert.Equal(t, before+1, m.generation)
	assert.NotNil(t, cmd)
}
