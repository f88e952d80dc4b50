package classify

import (
	"strings"
	"testing"
)

// =============================================================================
// Status Tests
// =============================================================================

func TestExists(t *testing.T) {
	for _, code := range []int{200, 201, 202, 204, 401, 403, 405, 422, 429} {
		if !Exists(code) {
			t.Errorf("Exists(%d) = false, want true", code)
		}
	}
	for _, code := range []int{0, 301, 400, 404, 500, 503} {
		if Exists(code) {
			t.Errorf("Exists(%d) = true, want false", code)
		}
	}
}

func TestBucketFor(t *testing.T) {
	tests := []struct {
		status int
		want   Bucket
	}{
		{200, Accepted},
		{401, Accepted},
		{403, Accepted},
		{400, Rejected},
		{0, Ignored},
		{201, Ignored},
		{404, Ignored},
		{422, Ignored},
		{500, Ignored},
	}

	for _, tt := range tests {
		if got := BucketFor(tt.status); got != tt.want {
			t.Errorf("BucketFor(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestReason(t *testing.T) {
	if got := Reason(200); got != "Endpoint exists and is accessible" {
		t.Errorf("Reason(200) = %q", got)
	}
	if got := Reason(418); got != "Endpoint may exist but returned status: 418" {
		t.Errorf("Reason(418) = %q", got)
	}
	if got := Reason(0); !strings.Contains(got, "failed") {
		t.Errorf("Reason(0) = %q, want failure reason", got)
	}
}

func TestRequired(t *testing.T) {
	tests := []struct {
		accepted, rejected int
		want               bool
	}{
		{0, 0, false},
		{0, 1, true},
		{1, 1, false},
		{3, 0, false},
	}

	for _, tt := range tests {
		if got := Required(tt.accepted, tt.rejected); got != tt.want {
			t.Errorf("Required(%d, %d) = %v, want %v", tt.accepted, tt.rejected, got, tt.want)
		}
	}
}

// =============================================================================
// Value Tests
// =============================================================================

func TestParamType(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{"empty", nil, TypeString},
		{"digits", []string{"1", "10", "100"}, TypeInteger},
		{"booleans", []string{"true", "FALSE", "True"}, TypeBoolean},
		{"dates", []string{"2024-01-01", "2023-12-31"}, TypeDate},
		{"mixed digits and words", []string{"1", "abc"}, TypeString},
		{"negative is not digits", []string{"-1"}, TypeString},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParamType(tt.values); got != tt.want {
				t.Errorf("ParamType(%v) = %q, want %q", tt.values, got, tt.want)
			}
		})
	}
}

func TestParamType_OrderIndependent(t *testing.T) {
	a := ParamType([]string{"true", "1", "false"})
	b := ParamType([]string{"1", "false", "true"})
	if a != b {
		t.Errorf("ParamType depends on order: %q vs %q", a, b)
	}
}

func TestStringKind(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-01-15T10:00:00Z", KindDate},
		{"2024-01-15", KindDate},
		{"550e8400-e29b-41d4-a716-446655440000", KindUUID},
		{"a@b.com", KindEmail},
		{"https://x.y", KindURL},
		{"http", KindURL},
		{"hello", KindString},
		{"", KindString},
	}

	for _, tt := range tests {
		if got := StringKind(tt.in); got != tt.want {
			t.Errorf("StringKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsUUID_RejectsBraced(t *testing.T) {
	if IsUUID("{550e8400-e29b-41d4-a716-446655440000}") {
		t.Error("braced UUID is not canonical")
	}
	if IsUUID("550e8400e29b41d4a716446655440000") {
		t.Error("unhyphenated UUID is not canonical")
	}
}

func TestIsIdentifier(t *testing.T) {
	ids := []string{"42", "550e8400-e29b-41d4-a716-446655440000", "deadbeefdeadbeef", "{id}", ":id"}
	for _, s := range ids {
		if !IsIdentifier(s) {
			t.Errorf("IsIdentifier(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"", "users", "v1", ":", "beef"} {
		if IsIdentifier(s) {
			t.Errorf("IsIdentifier(%q) = true, want false", s)
		}
	}
}

// =============================================================================
// CRUD Tests
// =============================================================================

func TestClassifyCRUD(t *testing.T) {
	tests := []struct {
		path string
		want CRUD
	}{
		{"/auth/login", CRUD{Create: true}},
		{"/Login", CRUD{Create: true}},
		{"/search", CRUD{Read: true}},
		{"/api/find/users", CRUD{Read: true}},
		{"/users/123", CRUD{Read: true, Update: true, Delete: true}},
		{"/users/{id}", CRUD{Read: true, Update: true, Delete: true}},
		{"/users", CRUD{Create: true, Read: true}},
		{"/api/v1/posts", CRUD{Create: true, Read: true}},
		{"/", CRUD{}},
		{"", CRUD{}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := ClassifyCRUD(tt.path); got != tt.want {
				t.Errorf("ClassifyCRUD(%q) = %+v, want %+v", tt.path, got, tt.want)
			}
		})
	}
}

func TestFirstSegment(t *testing.T) {
	if got := FirstSegment("/users/1"); got != "users" {
		t.Errorf("FirstSegment = %q, want users", got)
	}
	if got := FirstSegment("/"); got != "" {
		t.Errorf("FirstSegment(/) = %q, want empty", got)
	}
}
