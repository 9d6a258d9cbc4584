// Package openapi provides reflective OpenAPI 3.0 document generation for
// the storefront API.
package openapi

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/shopspring/decimal"
)

var (
	timeType    = reflect.TypeOf(time.Time{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
)

// =============================================================================
// Generator
// =============================================================================

// Generator produces OpenAPI 3.0 documents by reflecting on registered
// JSON:API resources and plain JSON endpoints.
type Generator struct {
	title       string
	version     string
	description string
	servers     []string
	resources   []ResourceInfo
	endpoints   []Endpoint
	mu          sync.RWMutex
	cachedSpec  *openapi3.T
}

// ResourceInfo describes a JSON:API resource served under /api/v1/{Name}.
type ResourceInfo struct {
	Name           string      // Resource type name (e.g., "products")
	Model          interface{} // The model struct for schema extraction
	SupportsFind   bool        // GET /{type} and GET /{type}/{id}
	SupportsCreate bool        // POST /{type}
	SupportsUpdate bool        // PATCH /{type}/{id}
	SupportsDelete bool        // DELETE /{type}/{id}
}

// Endpoint describes a plain JSON endpoint. Request and Response are
// example values of the body types; nil means no body.
type Endpoint struct {
	Method   string
	Path     string
	Summary  string
	Tag      string
	Status   int
	Request  interface{}
	Response interface{}
}

// Option configures the generator.
type Option func(*Generator)

// WithTitle sets the API title.
func WithTitle(title string) Option {
	return func(g *Generator) {
		g.title = title
	}
}

// WithVersion sets the API version.
func WithVersion(version string) Option {
	return func(g *Generator) {
		g.version = version
	}
}

// WithDescription sets the API description.
func WithDescription(description string) Option {
	return func(g *Generator) {
		g.description = description
	}
}

// WithServer adds a server URL.
func WithServer(url string) Option {
	return func(g *Generator) {
		g.servers = append(g.servers, url)
	}
}

// NewGenerator creates a new OpenAPI generator.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		title:       "Storefront API",
		version:     "1.0.0",
		description: "Storefront catalog, cart and seller API",
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// RegisterResource adds a JSON:API resource to the document.
func (g *Generator) RegisterResource(info ResourceInfo) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resources = append(g.resources, info)
	g.cachedSpec = nil
}

// RegisterEndpoint adds a plain JSON endpoint to the document.
func (g *Generator) RegisterEndpoint(ep Endpoint) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ep.Status == 0 {
		ep.Status = http.StatusOK
	}
	g.endpoints = append(g.endpoints, ep)
	g.cachedSpec = nil
}

// Generate produces the complete OpenAPI 3.0 document.
func (g *Generator) Generate() *openapi3.T {
	g.mu.RLock()
	if g.cachedSpec != nil {
		spec := g.cachedSpec
		g.mu.RUnlock()
		return spec
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	// Double-check after acquiring write lock
	if g.cachedSpec != nil {
		return g.cachedSpec
	}

	spec := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       g.title,
			Version:     g.version,
			Description: g.description,
		},
		Servers: make(openapi3.Servers, 0, len(g.servers)),
		Paths:   &openapi3.Paths{},
		Components: &openapi3.Components{
			Schemas: make(openapi3.Schemas),
		},
	}

	for _, url := range g.servers {
		spec.Servers = append(spec.Servers, &openapi3.Server{URL: url})
	}

	g.addCommonSchemas(spec)

	for _, res := range g.resources {
		g.addResourceToSpec(spec, res)
	}
	for _, ep := range g.endpoints {
		g.addEndpointToSpec(spec, ep)
	}

	g.cachedSpec = spec
	return spec
}

// Handler returns an HTTP handler that serves the OpenAPI document.
func (g *Generator) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		spec := g.Generate()

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		if err := json.NewEncoder(w).Encode(spec); err != nil {
			http.Error(w, "Failed to encode OpenAPI spec", http.StatusInternalServerError)
		}
	}
}

// =============================================================================
// Schema Builders
// =============================================================================

const jsonAPIMediaType = "application/vnd.api+json"

func stringProp(format string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: format}}
}

func intProp() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}}
}

func ref(name string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Ref: "#/components/schemas/" + name}
}

func arrayOf(items *openapi3.SchemaRef) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"array"}, Items: items}}
}

func objectOf(props openapi3.Schemas, required ...string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: props,
		Required:   required,
	}}
}

// addCommonSchemas adds the error bodies and list metadata shared by every
// operation.
func (g *Generator) addCommonSchemas(spec *openapi3.T) {
	schemas := spec.Components.Schemas

	schemas["ListMeta"] = objectOf(openapi3.Schemas{
		"total":  intProp(),
		"limit":  intProp(),
		"offset": intProp(),
	})
	schemas["Error"] = objectOf(openapi3.Schemas{
		"errors": arrayOf(objectOf(openapi3.Schemas{
			"status": stringProp(""),
			"title":  stringProp(""),
			"detail": stringProp(""),
		})),
	}, "errors")
	schemas["PlainError"] = objectOf(openapi3.Schemas{
		"error": stringProp(""),
		"code":  stringProp(""),
	}, "error", "code")
}

// addResourceToSpec documents a JSON:API resource: its attribute schema,
// the document wrappers and the supported collection and item operations.
func (g *Generator) addResourceToSpec(spec *openapi3.T, res ResourceInfo) {
	name := capitalize(singularize(res.Name))
	schemas := spec.Components.Schemas

	schemas[name+"Attributes"] = g.extractSchema(res.Model)
	schemas[name] = objectOf(openapi3.Schemas{
		"type": &openapi3.SchemaRef{Value: &openapi3.Schema{
			Type: &openapi3.Types{"string"},
			Enum: []interface{}{res.Name},
		}},
		"id":         stringProp(""),
		"attributes": ref(name + "Attributes"),
	}, "type", "id")
	schemas[name+"Document"] = objectOf(openapi3.Schemas{"data": ref(name)}, "data")
	schemas[name+"ListDocument"] = objectOf(openapi3.Schemas{
		"data": arrayOf(ref(name)),
		"meta": ref("ListMeta"),
	}, "data")

	collection := "/api/v1/" + res.Name
	item := collection + "/{id}"

	ops := []struct {
		enabled bool
		method  string
		path    string
		summary string
		status  int
		body    bool
		result  string
	}{
		{res.SupportsFind, http.MethodGet, collection, "List " + res.Name, http.StatusOK, false, name + "ListDocument"},
		{res.SupportsCreate, http.MethodPost, collection, "Create a " + singularize(res.Name), http.StatusCreated, true, name + "Document"},
		{res.SupportsFind, http.MethodGet, item, "Get a " + singularize(res.Name), http.StatusOK, false, name + "Document"},
		{res.SupportsUpdate, http.MethodPatch, item, "Update a " + singularize(res.Name), http.StatusOK, true, name + "Document"},
		{res.SupportsDelete, http.MethodDelete, item, "Delete a " + singularize(res.Name), http.StatusNoContent, false, ""},
	}

	for _, o := range ops {
		if !o.enabled {
			continue
		}
		op := &openapi3.Operation{
			OperationID: operationID(o.method, o.path),
			Summary:     o.summary,
			Tags:        []string{capitalize(res.Name)},
			Parameters:  pathParameters(o.path),
			Responses:   jsonAPIResponses(o.status, o.result),
		}
		if o.body {
			op.RequestBody = &openapi3.RequestBodyRef{Value: &openapi3.RequestBody{
				Required: true,
				Content:  openapi3.Content{jsonAPIMediaType: &openapi3.MediaType{Schema: ref(name + "Document")}},
			}}
		}
		if o.path == collection && o.method == http.MethodGet {
			op.Parameters = append(op.Parameters, listParameters()...)
		}
		pathItem(spec, o.path).SetOperation(o.method, op)
	}
}

func jsonAPIResponses(status int, result string) *openapi3.Responses {
	success := openapi3.NewResponse().WithDescription(http.StatusText(status))
	if result != "" {
		success.Content = openapi3.Content{jsonAPIMediaType: &openapi3.MediaType{Schema: ref(result)}}
	}
	responses := &openapi3.Responses{}
	responses.Set(strconv.Itoa(status), &openapi3.ResponseRef{Value: success})
	responses.Set("default", &openapi3.ResponseRef{Value: &openapi3.Response{
		Description: ptr("Error"),
		Content:     openapi3.Content{jsonAPIMediaType: &openapi3.MediaType{Schema: ref("Error")}},
	}})
	return responses
}

// listParameters are the query parameters the JSON:API collection honors.
func listParameters() openapi3.Parameters {
	query := func(name string, schema *openapi3.SchemaRef) *openapi3.ParameterRef {
		return &openapi3.ParameterRef{Value: &openapi3.Parameter{Name: name, In: "query", Schema: schema}}
	}
	return openapi3.Parameters{
		query("page[size]", intProp()),
		query("page[number]", intProp()),
		query("page[offset]", intProp()),
		query("filter[category]", stringProp("")),
	}
}

// pathParameters declares every {name} segment of path as a required string.
func pathParameters(path string) openapi3.Parameters {
	var params openapi3.Parameters
	for _, name := range pathParams(path) {
		params = append(params, &openapi3.ParameterRef{Value: &openapi3.Parameter{
			Name:     name,
			In:       "path",
			Required: true,
			Schema:   stringProp(""),
		}})
	}
	return params
}

// pathItem returns the item registered for path, creating it if needed.
func pathItem(spec *openapi3.T, path string) *openapi3.PathItem {
	item := spec.Paths.Value(path)
	if item == nil {
		item = &openapi3.PathItem{}
		spec.Paths.Set(path, item)
	}
	return item
}

// addEndpointToSpec documents a plain JSON endpoint. Failures share the
// PlainError body.
func (g *Generator) addEndpointToSpec(spec *openapi3.T, ep Endpoint) {
	op := &openapi3.Operation{
		OperationID: operationID(ep.Method, ep.Path),
		Summary:     ep.Summary,
		Parameters:  pathParameters(ep.Path),
		Responses:   &openapi3.Responses{},
	}
	if ep.Tag != "" {
		op.Tags = []string{ep.Tag}
	}

	if ep.Request != nil {
		op.RequestBody = &openapi3.RequestBodyRef{Value: &openapi3.RequestBody{
			Required: true,
			Content:  openapi3.NewContentWithJSONSchemaRef(g.extractSchema(ep.Request)),
		}}
	}

	success := openapi3.NewResponse().WithDescription(http.StatusText(ep.Status))
	if ep.Response != nil {
		success = success.WithJSONSchemaRef(g.extractSchema(ep.Response))
	}
	op.Responses.Set(strconv.Itoa(ep.Status), &openapi3.ResponseRef{Value: success})
	op.Responses.Set("default", &openapi3.ResponseRef{
		Value: openapi3.NewResponse().WithDescription("Error").WithJSONSchemaRef(ref("PlainError")),
	})

	pathItem(spec, ep.Path).SetOperation(strings.ToUpper(ep.Method), op)
}

// extractSchema reflects the JSON shape of model. Fields tagged "-" and
// unexported fields are skipped.
func (g *Generator) extractSchema(model interface{}) *openapi3.SchemaRef {
	t := reflect.TypeOf(model)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || t == timeType || t == decimalType {
		return g.goTypeToSchema(t)
	}

	props := make(openapi3.Schemas, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		switch name {
		case "-":
			continue
		case "":
			name = field.Name
		}
		props[name] = g.goTypeToSchema(field.Type)
	}
	return objectOf(props)
}

// goTypeToSchema maps a Go type to its JSON schema. Money is a decimal
// string, times are RFC 3339 strings and pointers are nullable.
func (g *Generator) goTypeToSchema(t reflect.Type) *openapi3.SchemaRef {
	switch t {
	case timeType:
		return stringProp("date-time")
	case decimalType:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{
			Type:    &openapi3.Types{"string"},
			Format:  "decimal",
			Pattern: `^-?[0-9]+(\.[0-9]+)?$`,
		}}
	}

	scalar := func(typ, format string) *openapi3.SchemaRef {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{typ}, Format: format}}
	}

	switch t.Kind() {
	case reflect.String:
		return stringProp("")
	case reflect.Bool:
		return scalar("boolean", "")
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		return scalar("integer", "int32")
	case reflect.Int64:
		return scalar("integer", "int64")
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return intProp()
	case reflect.Float32:
		return scalar("number", "float")
	case reflect.Float64:
		return scalar("number", "double")
	case reflect.Slice, reflect.Array:
		return arrayOf(g.goTypeToSchema(t.Elem()))
	case reflect.Map:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{
			Type:                 &openapi3.Types{"object"},
			AdditionalProperties: openapi3.AdditionalProperties{Schema: g.goTypeToSchema(t.Elem())},
		}}
	case reflect.Ptr:
		schema := g.goTypeToSchema(t.Elem())
		if schema.Value != nil {
			schema.Value.Nullable = true
		}
		return schema
	case reflect.Struct:
		return g.extractSchema(reflect.New(t).Interface())
	default:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}
	}
}

// =============================================================================
// Helpers
// =============================================================================

// capitalize returns the string with the first letter capitalized.
func capitalize(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// singularize performs basic singularization.
func singularize(s string) string {
	if strings.HasSuffix(s, "ies") {
		return s[:len(s)-3] + "y"
	}
	if strings.HasSuffix(s, "sses") {
		return s[:len(s)-2]
	}
	if strings.HasSuffix(s, "s") {
		return s[:len(s)-1]
	}
	return s
}

// pathParams returns the {name} segments of path in order.
func pathParams(path string) []string {
	var names []string
	for _, seg := range strings.Split(path, "/") {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			names = append(names, seg[1:len(seg)-1])
		}
	}
	return names
}

// operationID derives a camelCase id such as "postApiV1CartItems".
func operationID(method, path string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	for _, seg := range strings.Split(path, "/") {
		seg = strings.Trim(seg, "{}")
		for _, part := range strings.Split(seg, "_") {
			b.WriteString(capitalize(part))
		}
	}
	return b.String()
}

func ptr[T any](v T) *T {
	return &v
}
