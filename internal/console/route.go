// Package console holds the single console state and the guarded navigation
// between its views.
package console

import "strings"

// View identifies a console screen.
type View int

const (
	ViewDashboard View = iota
	ViewCollection
	ViewRecord
	ViewSettings
	ViewLogs
	ViewJobs
	ViewCrons
	ViewLogin
)

var viewNames = map[View]string{
	ViewDashboard:  "dashboard",
	ViewCollection: "collection",
	ViewRecord:     "record",
	ViewSettings:   "settings",
	ViewLogs:       "logs",
	ViewJobs:       "jobs",
	ViewCrons:      "crons",
	ViewLogin:      "login",
}

func (v View) String() string { return viewNames[v] }

// Route is a parsed navigation token.
type Route struct {
	View       View
	Collection string
	RecordID   string
}

var simpleViews = map[string]View{
	"settings": ViewSettings,
	"logs":     ViewLogs,
	"jobs":     ViewJobs,
	"crons":    ViewCrons,
	"login":    ViewLogin,
}

// ParseRoute parses a route token. A leading '#' and empty segments are
// ignored; anything unrecognised is the dashboard.
func ParseRoute(token string) Route {
	token = strings.TrimPrefix(strings.TrimSpace(token), "#")
	var segs []string
	for _, s := range strings.Split(token, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	if len(segs) == 0 {
		return Route{}
	}
	switch segs[0] {
	case "collections":
		if len(segs) >= 2 {
			return Route{View: ViewCollection, Collection: segs[1]}
		}
	case "records":
		if len(segs) >= 3 {
			return Route{View: ViewRecord, Collection: segs[1], RecordID: segs[2]}
		}
	default:
		if v, ok := simpleViews[segs[0]]; ok {
			return Route{View: v}
		}
	}
	return Route{}
}

// String renders the canonical token.
func (r Route) String() string {
	switch r.View {
	case ViewCollection:
		return "/collections/" + r.Collection
	case ViewRecord:
		return "/records/" + r.Collection + "/" + r.RecordID
	case ViewDashboard:
		return "/"
	default:
		return "/" + r.View.String()
	}
}
