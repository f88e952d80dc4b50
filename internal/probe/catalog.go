package probe

import "fmt"

// ParameterDefinition describes how one query parameter is exercised.
type ParameterDefinition struct {
	Name       string   `json:"name" yaml:"name"`
	Default    string   `json:"default" yaml:"default"`
	TestValues []string `json:"test_values" yaml:"test_values"`
	ErrorValue string   `json:"error_value" yaml:"error_value"`
}

// Values returns every value probed for the parameter, in probe order.
func (p ParameterDefinition) Values() []string {
	out := make([]string, 0, len(p.TestValues)+2)
	out = append(out, p.Default)
	out = append(out, p.TestValues...)
	return append(out, p.ErrorValue)
}

// Catalog is an ordered list of parameter definitions.
type Catalog []ParameterDefinition

// Catalog names accepted by CatalogByName.
const (
	CatalogMinimal   = "minimal"
	CatalogExtensive = "extensive"
)

// MinimalCatalog probes no parameters.
func MinimalCatalog() Catalog {
	return Catalog{}
}

// ExtensiveCatalog covers the query parameters common across REST APIs.
func ExtensiveCatalog() Catalog {
	pagination := func(name, def string, tests ...string) ParameterDefinition {
		return ParameterDefinition{Name: name, Default: def, TestValues: tests, ErrorValue: "abc"}
	}
	invalid := func(name, def string, tests ...string) ParameterDefinition {
		return ParameterDefinition{Name: name, Default: def, TestValues: tests, ErrorValue: "invalid"}
	}
	search := func(name string) ParameterDefinition {
		return ParameterDefinition{Name: name, Default: "test", TestValues: []string{"test", "example", "demo"}, ErrorValue: ""}
	}

	return Catalog{
		pagination("page", "1", "1", "2", "10"),
		pagination("limit", "10", "10", "20", "50"),
		pagination("per_page", "10", "10", "20", "50"),
		pagination("size", "10", "10", "20", "50"),
		pagination("offset", "0", "0", "10", "20"),
		pagination("skip", "0", "0", "10", "20"),

		invalid("sort", "id", "id", "name", "created_at"),
		invalid("order", "asc", "asc", "desc"),
		invalid("sort_by", "id", "id", "name", "created_at"),
		invalid("sort_order", "asc", "asc", "desc"),

		invalid("filter", "active", "active", "inactive", "all"),
		invalid("status", "active", "active", "inactive", "pending"),
		invalid("type", "user", "user", "admin", "moderator"),
		invalid("category", "general", "general", "tech", "news"),

		search("search"),
		search("q"),
		search("query"),
		search("keyword"),

		invalid("fields", "id,name", "id,name", "id,email", "all"),
		invalid("include", "details", "details", "profile", "settings"),
		invalid("expand", "true", "true", "false"),
		invalid("select", "id,name", "id,name", "id,email", "all"),

		invalid("date", "2024-01-01", "2024-01-01", "2024-12-31"),
		invalid("from", "2024-01-01", "2024-01-01", "2024-06-01"),
		invalid("to", "2024-12-31", "2024-06-30", "2024-12-31"),
		invalid("since", "2024-01-01", "2024-01-01", "2024-06-01"),

		invalid("id", "1", "1", "2", "123"),
		invalid("user_id", "1", "1", "2", "123"),
		invalid("post_id", "1", "1", "2", "123"),
		invalid("category_id", "1", "1", "2", "123"),

		invalid("api_key", "test_key", "test_key", "demo_key"),
		invalid("token", "test_token", "test_token", "demo_token"),
		invalid("access_token", "test_token", "test_token", "demo_token"),
	}
}

// CatalogByName returns a built-in catalog.
func CatalogByName(name string) (Catalog, error) {
	switch name {
	case "", CatalogMinimal:
		return MinimalCatalog(), nil
	case CatalogExtensive:
		return ExtensiveCatalog(), nil
	default:
		return nil, fmt.Errorf("unknown parameter catalog %q (want minimal or extensive)", name)
	}
}

// Validate checks that names are present and unique.
func (c Catalog) Validate() error {
	seen := make(map[string]struct{}, len(c))
	for i, def := range c {
		if def.Name == "" {
			return fmt.Errorf("parameter %d has no name", i)
		}
		if _, dup := seen[def.Name]; dup {
			return fmt.Errorf("parameter %q declared twice", def.Name)
		}
		seen[def.Name] = struct{}{}
	}
	return nil
}
