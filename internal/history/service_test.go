package history

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aozaki/anistream/internal/database"
)

func testService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return NewService(db)
}

func record(animeID string, episode int, progress float64, watchedAt time.Time) database.History {
	return database.History{
		AnimeID:         animeID,
		AnimeTitle:      "Title " + animeID,
		EpisodeNumber:   episode,
		ProgressPercent: progress,
		DurationSeconds: 1440,
		WatchedAt:       watchedAt,
	}
}

func TestRecordProgressCreate(t *testing.T) {
	svc := testService(t)

	rec := record("a1", 1, 45, time.Now())
	rec.CoverImage = "https://cdn.example.com/a1.jpg"
	require.NoError(t, svc.RecordProgress(rec))

	rows, err := svc.ForAnime("a1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 45.0, rows[0].ProgressPercent)
	assert.Equal(t, "Title a1", rows[0].AnimeTitle)
	assert.Equal(t, "https://cdn.example.com/a1.jpg", rows[0].CoverImage)
	assert.False(t, rows[0].Completed)
	assert.False(t, rows[0].Synced)
}

func TestRecordProgressCompletionThreshold(t *testing.T) {
	svc := testService(t)

	require.NoError(t, svc.RecordProgress(record("a1", 1, 89.9, time.Now())))
	require.NoError(t, svc.RecordProgress(record("a1", 2, 90, time.Now())))

	rows, err := svc.ForAnime("a1")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byEpisode := map[int]database.History{}
	for _, r := range rows {
		byEpisode[r.EpisodeNumber] = r
	}
	assert.False(t, byEpisode[1].Completed)
	assert.True(t, byEpisode[2].Completed)
}

func TestRecordProgressUpsert(t *testing.T) {
	svc := testService(t)

	first := record("a1", 1, 30, time.Now().Add(-time.Hour))
	first.CoverImage = "https://cdn.example.com/a1.jpg"
	require.NoError(t, svc.RecordProgress(first))
	require.NoError(t, svc.MarkSynced("a1", 1))

	// Later report with no metadata attached
	update := database.History{
		AnimeID:         "a1",
		EpisodeNumber:   1,
		ProgressPercent: 95,
		WatchedAt:       time.Now(),
	}
	require.NoError(t, svc.RecordProgress(update))

	rows, err := svc.ForAnime("a1")
	require.NoError(t, err)
	require.Len(t, rows, 1, "same episode must not create a second row")

	got := rows[0]
	assert.Equal(t, 95.0, got.ProgressPercent)
	assert.True(t, got.Completed)
	assert.False(t, got.Synced, "new progress invalidates the synced flag")
	assert.Equal(t, "Title a1", got.AnimeTitle, "empty update must not erase the title")
	assert.Equal(t, "https://cdn.example.com/a1.jpg", got.CoverImage)
	assert.Equal(t, 1440.0, got.DurationSeconds, "zero duration must not erase the known one")
}

func TestMarkSynced(t *testing.T) {
	svc := testService(t)
	require.NoError(t, svc.RecordProgress(record("a1", 1, 50, time.Now())))

	require.NoError(t, svc.MarkSynced("a1", 1))

	rows, err := svc.ForAnime("a1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Synced)
}

func TestRecentDeduplicatesPerAnime(t *testing.T) {
	svc := testService(t)
	base := time.Now().Add(-time.Hour)

	require.NoError(t, svc.RecordProgress(record("a1", 1, 100, base)))
	require.NoError(t, svc.RecordProgress(record("a1", 2, 40, base.Add(30*time.Minute))))
	require.NoError(t, svc.RecordProgress(record("a2", 5, 60, base.Add(10*time.Minute))))
	require.NoError(t, svc.RecordProgress(record("a3", 1, 20, base.Add(20*time.Minute))))

	recent, err := svc.Recent(0)
	require.NoError(t, err)
	require.Len(t, recent, 3)

	// Newest entry per anime, ordered newest first
	assert.Equal(t, "a1", recent[0].AnimeID)
	assert.Equal(t, 2, recent[0].EpisodeNumber)
	assert.Equal(t, "a3", recent[1].AnimeID)
	assert.Equal(t, "a2", recent[2].AnimeID)
}

func TestRecentLimit(t *testing.T) {
	svc := testService(t)
	base := time.Now().Add(-time.Hour)

	for i, id := range []string{"a1", "a2", "a3", "a4"} {
		require.NoError(t, svc.RecordProgress(record(id, 1, 50, base.Add(time.Duration(i)*time.Minute))))
	}

	recent, err := svc.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "a4", recent[0].AnimeID)
	assert.Equal(t, "a3", recent[1].AnimeID)
}

func TestResume(t *testing.T) {
	svc := testService(t)
	base := time.Now().Add(-time.Hour)

	t.Run("nothing recorded", func(t *testing.T) {
		rec, err := svc.Resume("a1")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("picks newest unfinished episode", func(t *testing.T) {
		require.NoError(t, svc.RecordProgress(record("a1", 1, 100, base)))
		require.NoError(t, svc.RecordProgress(record("a1", 2, 35, base.Add(10*time.Minute))))
		require.NoError(t, svc.RecordProgress(record("a1", 3, 15, base.Add(5*time.Minute))))

		rec, err := svc.Resume("a1")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, 2, rec.EpisodeNumber)
		assert.Equal(t, 35.0, rec.ProgressPercent)
	})

	t.Run("everything watched", func(t *testing.T) {
		require.NoError(t, svc.RecordProgress(record("a2", 1, 97, base)))

		rec, err := svc.Resume("a2")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})
}

func TestListFilters(t *testing.T) {
	svc := testService(t)
	base := time.Now().Add(-24 * time.Hour)

	bebop := record("a1", 1, 100, base)
	bebop.AnimeTitle = "Cowboy Bebop"
	require.NoError(t, svc.RecordProgress(bebop))

	champloo := record("a2", 1, 42, base.Add(time.Hour))
	champloo.AnimeTitle = "Samurai Champloo"
	require.NoError(t, svc.RecordProgress(champloo))

	lain := record("a3", 1, 13, base.Add(2*time.Hour))
	lain.AnimeTitle = "Serial Experiments Lain"
	require.NoError(t, svc.RecordProgress(lain))

	t.Run("title search", func(t *testing.T) {
		rows, err := svc.List(FilterOptions{SearchQuery: "Samurai"})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "a2", rows[0].AnimeID)
	})

	t.Run("completed only", func(t *testing.T) {
		completed := true
		rows, err := svc.List(FilterOptions{Completed: &completed})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "a1", rows[0].AnimeID)
	})

	t.Run("title sort", func(t *testing.T) {
		rows, err := svc.List(FilterOptions{SortBy: SortTitleAsc})
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "Cowboy Bebop", rows[0].AnimeTitle)
		assert.Equal(t, "Serial Experiments Lain", rows[2].AnimeTitle)
	})

	t.Run("limit and offset", func(t *testing.T) {
		rows, err := svc.List(FilterOptions{SortBy: SortRecentFirst, Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "a2", rows[0].AnimeID)
	})

	t.Run("date range", func(t *testing.T) {
		rows, err := svc.List(FilterOptions{StartDate: base.Add(90 * time.Minute)})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "a3", rows[0].AnimeID)
	})
}

func TestDeleteForAnime(t *testing.T) {
	svc := testService(t)

	require.NoError(t, svc.RecordProgress(record("a1", 1, 50, time.Now())))
	require.NoError(t, svc.RecordProgress(record("a1", 2, 30, time.Now())))
	require.NoError(t, svc.RecordProgress(record("a2", 1, 70, time.Now())))

	require.NoError(t, svc.DeleteForAnime("a1"))

	rows, err := svc.ForAnime("a1")
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = svc.ForAnime("a2")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	stats, err := svc.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.AnimeCount)
}

func TestGetStats(t *testing.T) {
	svc := testService(t)
	base := time.Now().Add(-time.Hour)

	require.NoError(t, svc.RecordProgress(record("a1", 1, 100, base)))
	require.NoError(t, svc.RecordProgress(record("a1", 2, 50, base.Add(time.Minute))))
	require.NoError(t, svc.RecordProgress(record("a2", 1, 95, base.Add(2*time.Minute))))

	stats, err := svc.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalEpisodes)
	assert.Equal(t, int64(2), stats.AnimeCount)
	assert.Equal(t, int64(2), stats.CompletedCount)
	assert.Greater(t, stats.TotalWatchTime, time.Duration(0))
}

func TestStatisticsAccumulateWatchTime(t *testing.T) {
	svc := testService(t)
	base := time.Now().Add(-time.Hour)

	// 1440s episode watched to 25 percent, then to 75
	first := record("a1", 1, 25, base)
	require.NoError(t, svc.RecordProgress(first))

	second := record("a1", 1, 75, base.Add(20*time.Minute))
	require.NoError(t, svc.RecordProgress(second))

	// A backward seek must not subtract time
	third := record("a1", 1, 50, base.Add(25*time.Minute))
	require.NoError(t, svc.RecordProgress(third))

	stats, err := svc.GetStats()
	require.NoError(t, err)
	// 25% + 50% of 1440s
	assert.Equal(t, 18*time.Minute, stats.TotalWatchTime)
}

func TestCleanupOlderThan(t *testing.T) {
	svc := testService(t)

	old := time.Now().AddDate(0, 0, -40)
	require.NoError(t, svc.RecordProgress(record("a1", 1, 30, old)))
	require.NoError(t, svc.RecordProgress(record("a2", 1, 100, old)))
	require.NoError(t, svc.RecordProgress(record("a3", 1, 30, time.Now())))

	t.Run("zero days is a no-op", func(t *testing.T) {
		n, err := svc.CleanupOlderThan(0)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("removes stale unfinished rows only", func(t *testing.T) {
		n, err := svc.CleanupOlderThan(30)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		rows, err := svc.List(FilterOptions{})
		require.NoError(t, err)
		require.Len(t, rows, 2)

		ids := []string{rows[0].AnimeID, rows[1].AnimeID}
		assert.Contains(t, ids, "a2", "completed rows survive cleanup")
		assert.Contains(t, ids, "a3", "fresh rows survive cleanup")
	})
}

func TestWatchDelta(t *testing.T) {
	tests := []struct {
		name     string
		from     float64
		to       float64
		duration float64
		want     int
	}{
		{"forward", 10, 35, 1000, 250},
		{"from zero", 0, 50, 1440, 720},
		{"backward seek", 60, 20, 1000, 0},
		{"unknown duration", 10, 90, 0, 0},
		{"no movement", 40, 40, 1000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, watchDelta(tt.from, tt.to, tt.duration))
		})
	}
}
