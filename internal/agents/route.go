package agents

import "strings"

// RouteKind is the closed set of branches the classifier can select.
type RouteKind int

const (
	RouteResearch RouteKind = iota + 1
	RouteWrite
	RouteAssist
	RouteClarify
)

// RouteKinds lists every kind; tests use it to check the branch switch is
// exhaustive.
var RouteKinds = []RouteKind{RouteResearch, RouteWrite, RouteAssist, RouteClarify}

func (k RouteKind) String() string {
	switch k {
	case RouteResearch:
		return "research"
	case RouteWrite:
		return "write"
	case RouteAssist:
		return "assistant"
	case RouteClarify:
		return "clarify"
	default:
		return "unknown"
	}
}

// Route is the classifier decision for one workflow run. Question is only
// set for RouteClarify and holds the clarifying question verbatim.
type Route struct {
	Kind     RouteKind
	Question string
}

// Label is the string form sent to clients in the classify step result.
func (r Route) Label() string {
	if r.Kind == RouteClarify {
		return r.Question
	}
	return r.Kind.String()
}

var routeLabels = map[string]RouteKind{
	"research":  RouteResearch,
	"write":     RouteWrite,
	"writer":    RouteWrite,
	"assistant": RouteAssist,
}

// ParseRoute normalises raw classifier output. It never fails: anything that
// is not a known label after trimming whitespace and one pair of wrapping
// quotes is a clarifying question.
func ParseRoute(raw string) Route {
	cleaned := stripQuotes(strings.TrimSpace(raw))
	if kind, ok := routeLabels[cleaned]; ok {
		return Route{Kind: kind}
	}
	return Route{Kind: RouteClarify, Question: cleaned}
}

// stripQuotes drops one leading and one trailing quote character.
func stripQuotes(s string) string {
	if s != "" && isQuote(s[0]) {
		s = s[1:]
	}
	if s != "" && isQuote(s[len(s)-1]) {
		s = s[:len(s)-1]
	}
	return s
}

func isQuote(b byte) bool {
	return b == '"' || b == '\''
}
