package classify

import "strings"

// CRUD is the structural guess of which operations a path supports.
type CRUD struct {
	Create bool `json:"create" yaml:"create"`
	Read   bool `json:"read" yaml:"read"`
	Update bool `json:"update" yaml:"update"`
	Delete bool `json:"delete" yaml:"delete"`
}

type crudRule struct {
	name   string
	match  func(path string, segments []string) bool
	result CRUD
}

func containsAny(path string, words ...string) bool {
	lower := strings.ToLower(path)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

var crudTable = []crudRule{
	{
		name:   "auth",
		match:  func(p string, _ []string) bool { return containsAny(p, "auth", "login") },
		result: CRUD{Create: true},
	},
	{
		name:   "search",
		match:  func(p string, _ []string) bool { return containsAny(p, "search", "find") },
		result: CRUD{Read: true},
	},
	{
		name: "item",
		match: func(_ string, segs []string) bool {
			return IsIdentifier(segs[len(segs)-1])
		},
		result: CRUD{Read: true, Update: true, Delete: true},
	},
	{
		name:   "collection",
		match:  func(string, []string) bool { return true },
		result: CRUD{Create: true, Read: true},
	},
}

// ClassifyCRUD maps a path to its CRUD guess. Methods observed on the path
// are not consulted. The root path yields all false.
func ClassifyCRUD(path string) CRUD {
	segments := splitPath(path)
	if len(segments) == 0 {
		return CRUD{}
	}
	for _, rule := range crudTable {
		if rule.match(path, segments) {
			return rule.result
		}
	}
	return CRUD{}
}

// FirstSegment returns the first non-empty path segment, or "".
func FirstSegment(path string) string {
	segments := splitPath(path)
	if len(segments) == 0 {
		return ""
	}
	return segments[0]
}

func splitPath(path string) []string {
	var out []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
