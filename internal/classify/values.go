package classify

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Parameter types inferred from accepted values.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeDate    = "date"
)

var (
	digitsPattern  = regexp.MustCompile(`^\d+$`)
	datePattern    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	datePrefix     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	hexHashPattern = regexp.MustCompile(`^[0-9a-fA-F]{16,}$`)
)

type typeRule struct {
	name  string
	match func(string) bool
}

// paramTypeTable is checked against every accepted value; the first rule
// all values satisfy names the type.
var paramTypeTable = []typeRule{
	{TypeInteger, digitsPattern.MatchString},
	{TypeBoolean, func(v string) bool {
		v = strings.ToLower(v)
		return v == "true" || v == "false"
	}},
	{TypeDate, datePattern.MatchString},
}

// ParamType infers a parameter type from its accepted values. The result
// does not depend on value order.
func ParamType(values []string) string {
	if len(values) == 0 {
		return TypeString
	}
	for _, rule := range paramTypeTable {
		all := true
		for _, v := range values {
			if !rule.match(v) {
				all = false
				break
			}
		}
		if all {
			return rule.name
		}
	}
	return TypeString
}

// String kinds sniffed from response values.
const (
	KindString = "string"
	KindDate   = "date"
	KindUUID   = "uuid"
	KindEmail  = "email"
	KindURL    = "url"
)

var stringKindTable = []typeRule{
	{KindDate, datePrefix.MatchString},
	{KindUUID, IsUUID},
	{KindEmail, func(s string) bool { return strings.Contains(s, "@") && strings.Contains(s, ".") }},
	{KindURL, func(s string) bool { return strings.HasPrefix(s, "http") }},
}

// StringKind sniffs the semantic kind of a string value.
func StringKind(s string) string {
	for _, rule := range stringKindTable {
		if rule.match(s) {
			return rule.name
		}
	}
	return KindString
}

// IsUUID reports whether s is a canonical 36-character UUID.
func IsUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// IsIdentifier reports whether a path segment looks like a resource id or
// a route placeholder.
func IsIdentifier(segment string) bool {
	switch {
	case segment == "":
		return false
	case digitsPattern.MatchString(segment):
		return true
	case IsUUID(segment):
		return true
	case hexHashPattern.MatchString(segment):
		return true
	case strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}"):
		return true
	case strings.HasPrefix(segment, ":") && len(segment) > 1:
		return true
	}
	return false
}
