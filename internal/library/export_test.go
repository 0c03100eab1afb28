package library

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/aozaki/anistream/internal/api"
	"github.com/aozaki/anistream/internal/config"
)

func testExporter(t *testing.T) *Exporter {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/user/200111/watchlist", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"a1","title":"Cowboy Bebop","genres":["Action","Sci-Fi"],"status":"completed","year":1998,"episodes":[]}]`))
	})
	mux.HandleFunc("/api/user/200111/favorites", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/api/user/200111/history", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"anime_id":"a1","episode_number":3,"progress":92.5,"updated_at":"2026-08-20T10:00:00Z","anime":{"id":"a1","title":"Cowboy Bebop","genres":[],"status":"completed","episodes":[]}}]`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := api.NewClient(&config.Config{
		API: config.APIConfig{BaseURL: server.URL, Timeout: 5 * time.Second},
	}, nil)
	return NewExporter(client, nil)
}

func TestSnapshot(t *testing.T) {
	exporter := testExporter(t)

	snap, err := exporter.Snapshot(context.Background(), "200111", "spike")
	require.NoError(t, err)

	assert.Equal(t, "spike", snap.User)
	assert.NotEmpty(t, snap.ExportedAt)

	require.Len(t, snap.Watchlist, 1)
	assert.Equal(t, "a1", snap.Watchlist[0].AnimeID)
	assert.Equal(t, "Cowboy Bebop", snap.Watchlist[0].Title)
	assert.Equal(t, []string{"Action", "Sci-Fi"}, snap.Watchlist[0].Genres)
	assert.Equal(t, 1998, snap.Watchlist[0].Year)

	assert.Empty(t, snap.Favorites)

	require.Len(t, snap.History, 1)
	assert.Equal(t, 3, snap.History[0].Episode)
	assert.Equal(t, 92.5, snap.History[0].Progress)
	assert.Equal(t, "Cowboy Bebop", snap.History[0].Title, "title lifted from the embedded anime")
}

func TestWriteYAML(t *testing.T) {
	exporter := testExporter(t)
	snap, err := exporter.Snapshot(context.Background(), "200111", "spike")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, exporter.Write(&buf, snap, FormatYAML))

	var decoded Snapshot
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, snap.User, decoded.User)
	require.Len(t, decoded.Watchlist, 1)
	assert.Equal(t, "Cowboy Bebop", decoded.Watchlist[0].Title)
}

func TestWriteJSON(t *testing.T) {
	exporter := testExporter(t)
	snap, err := exporter.Snapshot(context.Background(), "200111", "spike")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, exporter.Write(&buf, snap, FormatJSON))

	var decoded Snapshot
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded.History, 1)
	assert.Equal(t, 92.5, decoded.History[0].Progress)
}

func TestWriteUnknownFormat(t *testing.T) {
	exporter := NewExporter(nil, nil)

	err := exporter.Write(&bytes.Buffer{}, &Snapshot{}, "toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown export format")
}
