package session

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/aozaki/anistream/internal/database"
)

func newTestManager(t *testing.T) *Manager {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return NewManager(db)
}

func TestManager_LoginLogout(t *testing.T) {
	m := newTestManager(t)

	assert.False(t, m.SignedIn())
	assert.Nil(t, m.Current())

	identity := Identity{
		UserID:   "u1",
		Username: "spike",
		Email:    "spike@bebop.io",
	}
	token := &oauth2.Token{
		AccessToken: "tok123",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}

	require.NoError(t, m.Login(identity, token))

	assert.True(t, m.SignedIn())
	current := m.Current()
	require.NotNil(t, current)
	assert.Equal(t, "u1", current.UserID)
	assert.Equal(t, "spike", current.Username)
	require.NotNil(t, m.Token())
	assert.Equal(t, "tok123", m.Token().AccessToken)

	require.NoError(t, m.Logout())
	assert.False(t, m.SignedIn())
	assert.Nil(t, m.Current())
	assert.Nil(t, m.Token())
}

func TestManager_PersistsAcrossInstances(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	first := NewManager(db)
	require.NoError(t, first.Login(Identity{UserID: "u1", Username: "spike"}, &oauth2.Token{AccessToken: "tok"}))

	// A fresh manager over the same store restores the session
	second := NewManager(db)
	require.NoError(t, second.Load())

	require.True(t, second.SignedIn())
	assert.Equal(t, "spike", second.Current().Username)
	require.NotNil(t, second.Token())
	assert.Equal(t, "tok", second.Token().AccessToken)
}

func TestManager_LoadWithoutSession(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.Load())
	assert.False(t, m.SignedIn())
}

func TestManager_CurrentReturnsCopy(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Login(Identity{UserID: "u1", Username: "spike"}, nil))

	got := m.Current()
	got.Username = "vicious"

	assert.Equal(t, "spike", m.Current().Username)
}

func TestManager_LogoutClearsPersistedRows(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	m := NewManager(db)
	require.NoError(t, m.Login(Identity{UserID: "u1", Username: "spike"}, &oauth2.Token{AccessToken: "tok"}))
	require.NoError(t, m.Logout())

	fresh := NewManager(db)
	require.NoError(t, fresh.Load())
	assert.False(t, fresh.SignedIn())
}
