package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoute(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Route
	}{
		{"root", "/", Route{View: ViewHome}},
		{"empty string is home", "", Route{View: ViewHome}},
		{"browse bare", "/browse", Route{View: ViewBrowse, Page: 1}},
		{
			"browse with filters",
			"/browse?search=cowboy&genre=Action&status=completed",
			Route{View: ViewBrowse, Search: "cowboy", Genre: "Action", Status: "completed", Page: 1},
		},
		{
			"browse with page",
			"/browse?page=3",
			Route{View: ViewBrowse, Page: 3},
		},
		{
			"browse page one folds into default",
			"/browse?page=1",
			Route{View: ViewBrowse, Page: 1},
		},
		{
			"browse with encoded search",
			"/browse?search=neon%20genesis",
			Route{View: ViewBrowse, Search: "neon genesis", Page: 1},
		},
		{"detail", "/anime/abc-123", Route{View: ViewDetail, AnimeID: "abc-123"}},
		{"watch", "/watch/abc-123/4", Route{View: ViewWatch, AnimeID: "abc-123", Episode: 4}},
		{"login", "/login", Route{View: ViewLogin}},
		{"profile", "/profile", Route{View: ViewProfile}},
		{"missing leading slash", "browse?genre=Drama", Route{View: ViewBrowse, Genre: "Drama", Page: 1}},
		{"trailing slash", "/profile/", Route{View: ViewProfile}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRoute(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRouteErrors(t *testing.T) {
	bad := []string{
		"/nowhere",
		"/anime",
		"/watch/abc-123",
		"/watch/abc-123/zero",
		"/watch/abc-123/0",
		"/watch/abc-123/-2",
		"/browse?page=first",
		"/browse/extra",
	}

	for _, raw := range bad {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseRoute(raw)
			assert.Error(t, err)
		})
	}
}

func TestRouteRoundTrip(t *testing.T) {
	routes := []Route{
		{View: ViewHome},
		{View: ViewBrowse, Page: 1},
		{View: ViewBrowse, Search: "fullmetal", Page: 1},
		{View: ViewBrowse, Search: "neon genesis", Genre: "Sci-Fi", Status: "ongoing", Page: 5},
		{View: ViewDetail, AnimeID: "e4b9f2c1"},
		{View: ViewWatch, AnimeID: "e4b9f2c1", Episode: 12},
		{View: ViewLogin},
		{View: ViewProfile},
	}

	for _, r := range routes {
		t.Run(r.String(), func(t *testing.T) {
			parsed, err := ParseRoute(r.String())
			require.NoError(t, err)
			assert.Equal(t, r, parsed)
			// A second print after the round trip is stable too
			assert.Equal(t, r.String(), parsed.String())
		})
	}
}

func TestRouteStringOmitsDefaults(t *testing.T) {
	assert.Equal(t, "/", Route{View: ViewHome}.String())
	assert.Equal(t, "/browse", Route{View: ViewBrowse, Page: 1}.String())
	assert.Equal(t, "/browse?genre=Action", Route{View: ViewBrowse, Genre: "Action", Page: 1}.String())
	assert.Equal(t, "/browse?page=2", Route{View: ViewBrowse, Page: 2}.String())
}

func TestViewString(t *testing.T) {
	assert.Equal(t, "home", ViewHome.String())
	assert.Equal(t, "watch", ViewWatch.String())
	assert.Equal(t, "unknown", View(99).String())
}
