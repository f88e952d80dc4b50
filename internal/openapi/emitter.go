// Package openapi turns an analysis document into an OpenAPI 3 document.
package openapi

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/PentesterFlow/APIProbe/internal/analysis"
	"github.com/PentesterFlow/APIProbe/internal/classify"
	"github.com/PentesterFlow/APIProbe/internal/probe"
	"github.com/PentesterFlow/APIProbe/internal/schema"
)

const (
	// Version is the OpenAPI version emitted.
	Version = "3.0.3"

	defaultTag       = "default"
	defaultServerURL = "https://api.example.com"
	maxListedValues  = 3
)

// pathItemMethods are the verbs a PathItem has a slot for.
var pathItemMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	http.MethodTrace:   true,
	http.MethodConnect: true,
}

// Options override display metadata.
type Options struct {
	Title       string
	Description string
}

// Emitter builds OpenAPI documents. It holds no state between calls.
type Emitter struct {
	opts Options
}

// NewEmitter creates an Emitter.
func NewEmitter(opts Options) *Emitter {
	return &Emitter{opts: opts}
}

// Emit converts doc. Endpoints whose analysis failed are skipped.
func (e *Emitter) Emit(doc *analysis.Document) *openapi3.T {
	meta := doc.Metadata
	generator := meta.Generator
	if generator == "" {
		generator = "API"
	}
	version := meta.Version
	if version == "" {
		version = analysis.GeneratorVersion
	}
	serverURL := meta.BaseURL
	if serverURL == "" {
		serverURL = defaultServerURL
	}

	info := &openapi3.Info{
		Title:       generator + " Documentation",
		Description: "API documentation generated by " + generator,
		Version:     version,
	}
	if e.opts.Title != "" {
		info.Title = e.opts.Title
	}
	if e.opts.Description != "" {
		info.Description = e.opts.Description
	}

	spec := &openapi3.T{
		OpenAPI: Version,
		Info:    info,
		Servers: openapi3.Servers{{URL: serverURL, Description: "Production server"}},
		Paths:   openapi3.NewPaths(),
	}

	paths := make([]string, 0, len(doc.Endpoints))
	for p := range doc.Endpoints {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	seenTags := make(map[string]bool)
	for _, path := range paths {
		ep := doc.Endpoints[path]
		if ep == nil || ep.Status != analysis.StatusSuccess {
			continue
		}

		item := &openapi3.PathItem{}
		for _, method := range ep.Methods {
			method = strings.ToUpper(method)
			if !pathItemMethods[method] {
				continue
			}
			item.SetOperation(method, operation(path, method, ep))
		}
		spec.Paths.Set(path, item)

		tag := TagFor(path)
		if !seenTags[tag] {
			seenTags[tag] = true
			spec.Tags = append(spec.Tags, &openapi3.Tag{
				Name:        tag,
				Description: "Operations for " + tag,
			})
		}
	}
	return spec
}

// OperationID is lower(method) + "_" + the path with "/" and "-" replaced
// by "_", trimmed of underscores.
func OperationID(method, path string) string {
	sanitized := strings.NewReplacer("/", "_", "-", "_").Replace(path)
	return strings.ToLower(method) + "_" + strings.Trim(sanitized, "_")
}

// TagFor returns the first path segment, or "default".
func TagFor(path string) string {
	if seg := classify.FirstSegment(path); seg != "" {
		return seg
	}
	return defaultTag
}

func operation(path, method string, ep *analysis.EndpointAnalysis) *openapi3.Operation {
	op := &openapi3.Operation{
		OperationID: OperationID(method, path),
		Summary:     method + " " + path,
		Description: "Endpoint for " + path,
		Tags:        []string{TagFor(path)},
		Parameters:  append(pathParameters(path), queryParameters(ep, method)...),
		Responses: openapi3.NewResponses(
			openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{
				Value: openapi3.NewResponse().
					WithDescription("Successful response").
					WithJSONSchema(ResponseSchema(ep.ResponseSchema[method])),
			}),
			openapi3.WithStatus(http.StatusBadRequest, errorResponse("Bad request")),
			openapi3.WithStatus(http.StatusNotFound, errorResponse("Not found")),
		),
	}

	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		data := openapi3.NewObjectSchema()
		data.Description = "Request data"
		body := openapi3.NewObjectSchema().WithProperty("data", data)
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().
				WithDescription(fmt.Sprintf("Data for %s %s", method, path)).
				WithRequired(true).
				WithJSONSchema(body),
		}
	}
	return op
}

func errorResponse(description string) *openapi3.ResponseRef {
	envelope := openapi3.NewObjectSchema().
		WithProperty("error", openapi3.NewStringSchema()).
		WithProperty("message", openapi3.NewStringSchema())
	return &openapi3.ResponseRef{
		Value: openapi3.NewResponse().WithDescription(description).WithJSONSchema(envelope),
	}
}

// pathParameters declares {name} template segments.
func pathParameters(path string) openapi3.Parameters {
	var params openapi3.Parameters
	for _, seg := range strings.Split(path, "/") {
		if len(seg) > 2 && strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			p := openapi3.NewPathParameter(seg[1 : len(seg)-1]).WithSchema(openapi3.NewStringSchema())
			params = append(params, &openapi3.ParameterRef{Value: p})
		}
	}
	return params
}

// queryParameters lists the parameters the method accepted, by name.
func queryParameters(ep *analysis.EndpointAnalysis, method string) openapi3.Parameters {
	profiles := ep.Parameters[method]
	validation := ep.ParameterValidation[method]

	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	var params openapi3.Parameters
	for _, name := range names {
		profile := profiles[name]
		info := validation[name]
		if !profile.Accepted && len(info.AcceptedValues) == 0 {
			continue
		}
		p := openapi3.NewQueryParameter(name).WithSchema(parameterSchema(name, profile, info))
		p.Required = profile.Required
		params = append(params, &openapi3.ParameterRef{Value: p})
	}
	return params
}

func parameterSchema(name string, profile probe.ParameterProfile, info probe.ValidationInfo) *openapi3.Schema {
	var s *openapi3.Schema
	switch profile.Type {
	case classify.TypeInteger:
		s = openapi3.NewIntegerSchema()
	case classify.TypeBoolean:
		s = openapi3.NewBoolSchema()
	case classify.TypeDate:
		s = openapi3.NewStringSchema().WithFormat("date")
	default:
		s = openapi3.NewStringSchema()
	}

	if def, ok := typedDefault(profile.Type, profile.Default); ok {
		s.Default = def
	}

	s.Description = name + " parameter"
	if n := len(info.AcceptedValues); n > 0 {
		shown := info.AcceptedValues
		if n > maxListedValues {
			shown = shown[:maxListedValues]
		}
		s.Description = fmt.Sprintf("%s parameter. Accepted values: %s", name, strings.Join(shown, ", "))
		if n > maxListedValues {
			s.Description += "..."
		}
	}
	return s
}

// typedDefault converts a catalog default to the parameter's type. Values
// that do not convert are dropped so the default always fits its schema.
func typedDefault(typ, raw string) (any, bool) {
	switch typ {
	case classify.TypeInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		return n, err == nil
	case classify.TypeBoolean:
		b, err := strconv.ParseBool(strings.ToLower(raw))
		return b, err == nil
	case classify.TypeDate:
		return raw, classify.StringKind(raw) == classify.KindDate
	default:
		return raw, true
	}
}

// ResponseSchema converts an inferred schema. A nil schema becomes an
// empty object.
func ResponseSchema(s *schema.Schema) *openapi3.Schema {
	if s == nil {
		return openapi3.NewObjectSchema()
	}

	switch s.Type {
	case schema.KindObject:
		out := openapi3.NewObjectSchema()
		for _, p := range s.Properties {
			prop := ResponseSchema(p.Schema)
			prop.Description = p.Name + " field"
			out.WithProperty(p.Name, prop)
		}
		return out
	case schema.KindArray:
		items := openapi3.NewSchema()
		if s.Items != nil {
			items = ResponseSchema(s.Items)
		}
		return openapi3.NewArraySchema().WithItems(items)
	case schema.KindString:
		return openapi3.NewStringSchema()
	case schema.KindDate:
		return openapi3.NewStringSchema().WithFormat("date")
	case schema.KindEmail:
		return openapi3.NewStringSchema().WithFormat("email")
	case schema.KindURL:
		return openapi3.NewStringSchema().WithFormat("uri")
	case schema.KindUUID:
		return openapi3.NewStringSchema().WithFormat("uuid")
	case schema.KindInteger:
		return openapi3.NewIntegerSchema()
	case schema.KindNumber:
		return &openapi3.Schema{Type: &openapi3.Types{openapi3.TypeNumber}}
	case schema.KindBoolean:
		return openapi3.NewBoolSchema()
	case schema.KindNull:
		return openapi3.NewSchema().WithNullable()
	default:
		return openapi3.NewObjectSchema()
	}
}
