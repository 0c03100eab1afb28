package common

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// View identifies a top-level screen of the client.
type View int

const (
	ViewHome View = iota
	ViewBrowse
	ViewDetail
	ViewWatch
	ViewLogin
	ViewProfile
)

// String returns the view name for logging
func (v View) String() string {
	switch v {
	case ViewHome:
		return "home"
	case ViewBrowse:
		return "browse"
	case ViewDetail:
		return "detail"
	case ViewWatch:
		return "watch"
	case ViewLogin:
		return "login"
	case ViewProfile:
		return "profile"
	default:
		return "unknown"
	}
}

// Route is a parsed client location. Routes print back to the same
// path and query they were parsed from, so they can be shared, stored
// and passed on the command line.
//
//	/
//	/browse?search=...&genre=...&status=...&page=N
//	/anime/{animeID}
//	/watch/{animeID}/{episodeNumber}
//	/login
//	/profile
type Route struct {
	View View

	// Detail and watch targets
	AnimeID string
	Episode int

	// Browse filters. Page is 1-based and omitted from the printed
	// form when it is the first page.
	Search string
	Genre  string
	Status string
	Page   int
}

// HomeRoute returns the root location
func HomeRoute() Route {
	return Route{View: ViewHome}
}

// DetailRoute returns the location of one catalog entry
func DetailRoute(animeID string) Route {
	return Route{View: ViewDetail, AnimeID: animeID}
}

// WatchRoute returns the playback location for an episode
func WatchRoute(animeID string, episode int) Route {
	return Route{View: ViewWatch, AnimeID: animeID, Episode: episode}
}

// ParseRoute parses a location string. A missing leading slash is
// tolerated so "browse?genre=Action" works from the command line.
func ParseRoute(raw string) (Route, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return HomeRoute(), nil
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Route{}, fmt.Errorf("invalid route %q: %w", raw, err)
	}

	segments := splitPath(u.Path)
	query := u.Query()

	switch {
	case len(segments) == 0:
		return HomeRoute(), nil

	case segments[0] == "browse" && len(segments) == 1:
		r := Route{
			View:   ViewBrowse,
			Search: query.Get("search"),
			Genre:  query.Get("genre"),
			Status: query.Get("status"),
			Page:   1,
		}
		if p := query.Get("page"); p != "" {
			n, err := strconv.Atoi(p)
			if err != nil {
				return Route{}, fmt.Errorf("invalid page %q in route %q", p, raw)
			}
			if n > 1 {
				r.Page = n
			}
		}
		return r, nil

	case segments[0] == "anime" && len(segments) == 2:
		if segments[1] == "" {
			return Route{}, fmt.Errorf("missing anime id in route %q", raw)
		}
		return DetailRoute(segments[1]), nil

	case segments[0] == "watch" && len(segments) == 3:
		if segments[1] == "" {
			return Route{}, fmt.Errorf("missing anime id in route %q", raw)
		}
		ep, err := strconv.Atoi(segments[2])
		if err != nil || ep < 1 {
			return Route{}, fmt.Errorf("invalid episode number %q in route %q", segments[2], raw)
		}
		return WatchRoute(segments[1], ep), nil

	case segments[0] == "login" && len(segments) == 1:
		return Route{View: ViewLogin}, nil

	case segments[0] == "profile" && len(segments) == 1:
		return Route{View: ViewProfile}, nil
	}

	return Route{}, fmt.Errorf("unknown route %q", raw)
}

// String prints the route back as a location string. Parsing the
// result yields an equal route.
func (r Route) String() string {
	switch r.View {
	case ViewBrowse:
		q := url.Values{}
		if r.Search != "" {
			q.Set("search", r.Search)
		}
		if r.Genre != "" {
			q.Set("genre", r.Genre)
		}
		if r.Status != "" {
			q.Set("status", r.Status)
		}
		if r.Page > 1 {
			q.Set("page", strconv.Itoa(r.Page))
		}
		if len(q) == 0 {
			return "/browse"
		}
		return "/browse?" + q.Encode()

	case ViewDetail:
		return "/anime/" + url.PathEscape(r.AnimeID)

	case ViewWatch:
		return "/watch/" + url.PathEscape(r.AnimeID) + "/" + strconv.Itoa(r.Episode)

	case ViewLogin:
		return "/login"

	case ViewProfile:
		return "/profile"

	default:
		return "/"
	}
}

// splitPath splits an already-decoded URL path into its segments
func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
