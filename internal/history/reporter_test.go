package history

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aozaki/anistream/internal/api"
	"github.com/aozaki/anistream/internal/config"
)

func testAPIClient(baseURL string) *api.Client {
	cfg := &config.Config{
		API: config.APIConfig{
			BaseURL: baseURL,
			Timeout: 5 * time.Second,
		},
	}
	return api.NewClient(cfg, nil)
}

func primedAnime() *api.Anime {
	return &api.Anime{
		ID:         "a1",
		Title:      "Cowboy Bebop",
		CoverImage: "https://cdn.example.com/bebop.jpg",
	}
}

func TestReporterWritesLocalMirror(t *testing.T) {
	svc := testService(t)
	rep := NewReporter(nil, svc, ReporterConfig{})

	rep.Prime(primedAnime())
	rep.PrimeDuration("a1", 1, 1452)
	rep.Report("", "a1", 1, 42.5)
	rep.Close()

	rows, err := svc.ForAnime("a1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Cowboy Bebop", rows[0].AnimeTitle)
	assert.Equal(t, "https://cdn.example.com/bebop.jpg", rows[0].CoverImage)
	assert.Equal(t, 1452.0, rows[0].DurationSeconds)
	assert.Equal(t, 42.5, rows[0].ProgressPercent)
	assert.False(t, rows[0].Synced)
}

func TestReporterSyncsToBackend(t *testing.T) {
	type captured struct {
		path    string
		animeID string
		episode string
		percent string
	}
	got := make(chan captured, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- captured{
			path:    r.URL.Path,
			animeID: r.URL.Query().Get("anime_id"),
			episode: r.URL.Query().Get("episode_number"),
			percent: r.URL.Query().Get("progress"),
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	svc := testService(t)
	rep := NewReporter(testAPIClient(server.URL), svc, ReporterConfig{SyncEnabled: true})

	rep.Prime(primedAnime())
	rep.Report("200111", "a1", 2, 55)
	rep.Close()

	select {
	case req := <-got:
		assert.Equal(t, "/api/user/200111/history", req.path)
		assert.Equal(t, "a1", req.animeID)
		assert.Equal(t, "2", req.episode)
		assert.Equal(t, "55", req.percent)
	default:
		t.Fatal("backend never saw the report")
	}

	rows, err := svc.ForAnime("a1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Synced)
}

func TestReporterSwallowsBackendFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"boom"}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := testService(t)
	rep := NewReporter(testAPIClient(server.URL), svc, ReporterConfig{SyncEnabled: true})

	rep.Report("200111", "a1", 1, 33)
	rep.Close()

	// The mirror row still lands, just unsynced
	rows, err := svc.ForAnime("a1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 33.0, rows[0].ProgressPercent)
	assert.False(t, rows[0].Synced)
}

func TestReporterSkipsRemoteWithoutIdentity(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	svc := testService(t)
	rep := NewReporter(testAPIClient(server.URL), svc, ReporterConfig{SyncEnabled: true})

	rep.Report("", "a1", 1, 25)
	rep.Close()

	assert.Zero(t, hits.Load())

	rows, err := svc.ForAnime("a1")
	require.NoError(t, err)
	assert.Len(t, rows, 1, "local mirror is written even when signed out")
}

func TestReporterSyncDisabled(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	svc := testService(t)
	rep := NewReporter(testAPIClient(server.URL), svc, ReporterConfig{SyncEnabled: false})

	rep.Report("200111", "a1", 1, 25)
	rep.Close()

	assert.Zero(t, hits.Load())
}

func TestReporterCloseIsSafe(t *testing.T) {
	svc := testService(t)
	rep := NewReporter(nil, svc, ReporterConfig{})

	rep.Close()
	rep.Close()

	// Reports after Close are dropped, not panics
	rep.Report("200111", "a1", 1, 10)

	rows, err := svc.ForAnime("a1")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReporterOrdersReports(t *testing.T) {
	svc := testService(t)
	rep := NewReporter(nil, svc, ReporterConfig{})

	for _, p := range []float64{10, 11, 12, 13} {
		rep.Report("", "a1", 1, p)
	}
	rep.Close()

	rows, err := svc.ForAnime("a1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 13.0, rows[0].ProgressPercent, "reports apply in order, last wins")
}
