// Package openapi generates the API's Swagger 2.0 document from the route table.
// Request and response bodies are described by reflecting over the DTO prototypes attached to
// each api.Route: JSON tags give property names and `validate` tags give the constraints.
package openapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-openapi/spec"

	"github.com/user/layered-api-go/api"
	"github.com/user/layered-api-go/apperror"
)

// Info is the document's metadata.
type Info struct {
	Title       string
	Version     string
	Description string
}

// Group is a set of routes mounted under a common path prefix.
type Group struct {
	Prefix string
	Routes []api.Route
}

var pathParamPattern = regexp.MustCompile(`\{([^}:]+)(?::[^}]*)?\}`)

var timeType = reflect.TypeOf(time.Time{})

// elemTyper is implemented by wrapper types such as api.Nullable that should be documented
// as the type they wrap.
type elemTyper interface {
	ElemType() reflect.Type
}

var elemTyperType = reflect.TypeOf((*elemTyper)(nil)).Elem()

// unwrap strips pointers and value wrappers. nullable reports whether a wrapper was removed.
func unwrap(t reflect.Type) (inner reflect.Type, nullable bool) {
	for {
		switch {
		case t.Kind() == reflect.Pointer:
			t = t.Elem()
		case t.Implements(elemTyperType):
			t = reflect.Zero(t).Interface().(elemTyper).ElemType()
			nullable = true
		default:
			return t, nullable
		}
	}
}

// Build assembles the document for all groups.
func Build(info Info, groups ...Group) *spec.Swagger {
	doc := &spec.Swagger{
		SwaggerProps: spec.SwaggerProps{
			Swagger:  "2.0",
			BasePath: "/",
			Consumes: []string{"application/json"},
			Produces: []string{"application/json"},
			Info: &spec.Info{
				InfoProps: spec.InfoProps{
					Title:       info.Title,
					Version:     info.Version,
					Description: info.Description,
				},
			},
			Paths:       &spec.Paths{Paths: map[string]spec.PathItem{}},
			Definitions: spec.Definitions{},
		},
	}
	b := &builder{defs: doc.Definitions}
	errorSchema := b.schemaFor(reflect.TypeOf(apperror.ErrorResponse{}))

	for _, g := range groups {
		for _, rt := range g.Routes {
			path := FullPath(g.Prefix, rt.Pattern)
			item := doc.Paths.Paths[path]
			setOperation(&item, rt.Method, b.operation(path, rt, errorSchema))
			doc.Paths.Paths[path] = item
		}
	}
	return doc
}

// FullPath joins a mount prefix and a route pattern and strips chi regexp constraints
// from path parameters ("{id:[0-9]+}" becomes "{id}").
func FullPath(prefix, pattern string) string {
	path := strings.TrimSuffix(prefix, "/") + pattern
	if path == "" {
		path = "/"
	}
	return pathParamPattern.ReplaceAllString(path, "{$1}")
}

// Write marshals the document as indented JSON to path.
func Write(doc *spec.Swagger, path string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return apperror.NewInternalError("failed to encode OpenAPI document", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperror.NewInternalError(fmt.Sprintf("failed to create directory for %s", path), err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return apperror.NewInternalError(fmt.Sprintf("failed to write OpenAPI document %s", path), err)
	}
	return nil
}

func setOperation(item *spec.PathItem, method string, op *spec.Operation) {
	switch method {
	case http.MethodGet:
		item.Get = op
	case http.MethodPost:
		item.Post = op
	case http.MethodPut:
		item.Put = op
	case http.MethodPatch:
		item.Patch = op
	case http.MethodDelete:
		item.Delete = op
	case http.MethodHead:
		item.Head = op
	case http.MethodOptions:
		item.Options = op
	}
}

type builder struct {
	defs spec.Definitions
}

func (b *builder) operation(path string, rt api.Route, errorSchema *spec.Schema) *spec.Operation {
	op := spec.NewOperation(operationID(rt.Method, path)).
		WithSummary(rt.Summary).
		WithDescription(rt.Description).
		WithTags(rt.Tags...).
		WithProduces("application/json")

	for _, match := range pathParamPattern.FindAllStringSubmatch(path, -1) {
		op.AddParam(spec.PathParam(match[1]).Typed("integer", "int64"))
	}
	if rt.Query != nil {
		for _, p := range queryParams(reflect.TypeOf(rt.Query)) {
			op.AddParam(p)
		}
	}
	if rt.Request != nil {
		op.WithConsumes("application/json")
		op.AddParam(spec.BodyParam("body", b.schemaFor(reflect.TypeOf(rt.Request))).AsRequired())
	}

	status := rt.Status
	if status == 0 {
		status = http.StatusOK
	}
	resp := spec.NewResponse().WithDescription(http.StatusText(status))
	if rt.Response != nil {
		resp.WithSchema(b.schemaFor(reflect.TypeOf(rt.Response)))
	}
	op.RespondsWith(status, resp)

	for _, code := range rt.Errors {
		op.RespondsWith(code, spec.NewResponse().WithDescription(http.StatusText(code)).WithSchema(errorSchema))
	}
	return op
}

// operationID turns "GET /api/v1/users/{id}" into "getApiV1UsersId".
func operationID(method, path string) string {
	var sb strings.Builder
	sb.WriteString(strings.ToLower(method))
	for _, part := range strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '{' || r == '}' || r == '-' || r == '_'
	}) {
		sb.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}
	return sb.String()
}

func queryParams(t reflect.Type) []*spec.Parameter {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	var params []*spec.Parameter
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.SplitN(f.Tag.Get("query"), ",", 2)[0]
		if name == "" || name == "-" {
			continue
		}
		p := spec.QueryParam(name).WithDescription(f.Tag.Get("doc"))
		switch f.Type.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			p.Typed("integer", "")
		case reflect.Bool:
			p.Typed("boolean", "")
		default:
			p.Typed("string", "")
		}
		if def := f.Tag.Get("default"); def != "" {
			if n, err := strconv.Atoi(def); err == nil {
				p.WithDefault(n)
			} else {
				p.WithDefault(def)
			}
		}
		applyParamRules(p, f.Tag.Get("validate"))
		params = append(params, p)
	}
	return params
}

func applyParamRules(p *spec.Parameter, rules string) {
	for _, rule := range strings.Split(rules, ",") {
		key, value, _ := strings.Cut(rule, "=")
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			continue
		}
		switch key {
		case "gte", "min":
			p.WithMinimum(n, false)
		case "lte", "max":
			p.WithMaximum(n, false)
		}
	}
}

// schemaFor returns the schema of t, registering struct types as named definitions.
func (b *builder) schemaFor(t reflect.Type) *spec.Schema {
	t, nullable := unwrap(t)
	if nullable {
		s := b.schemaFor(t)
		s.AddExtension("x-nullable", true)
		return s
	}
	if t == timeType {
		return spec.DateTimeProperty()
	}

	switch t.Kind() {
	case reflect.String:
		return spec.StringProperty()
	case reflect.Bool:
		return spec.BoolProperty()
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint64:
		return spec.Int64Property()
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return spec.Int32Property()
	case reflect.Float32, reflect.Float64:
		return spec.Float64Property()
	case reflect.Slice, reflect.Array:
		return spec.ArrayProperty(b.schemaFor(t.Elem()))
	case reflect.Map:
		return spec.MapProperty(b.schemaFor(t.Elem()))
	case reflect.Struct:
		name := definitionName(t)
		if _, ok := b.defs[name]; !ok {
			// Register a placeholder first so self-referencing types terminate.
			b.defs[name] = spec.Schema{}
			b.defs[name] = *b.structSchema(t)
		}
		return spec.RefSchema("#/definitions/" + name)
	default:
		return &spec.Schema{}
	}
}

func (b *builder) structSchema(t reflect.Type) *spec.Schema {
	s := &spec.Schema{}
	s.Typed("object", "")
	s.Properties = map[string]spec.Schema{}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}

		prop := *b.schemaFor(f.Type)
		rules := f.Tag.Get("validate")
		applySchemaRules(&prop, f.Type, rules)
		if ex := f.Tag.Get("example"); ex != "" {
			prop.Example = ex
		}
		s.Properties[name] = prop

		optional := strings.Contains(opts, "omitempty") || f.Type.Kind() == reflect.Pointer
		if hasRule(rules, "required") || !optional {
			s.Required = append(s.Required, name)
		}
	}
	sort.Strings(s.Required)
	return s
}

func applySchemaRules(s *spec.Schema, t reflect.Type, rules string) {
	t, _ = unwrap(t)
	for _, rule := range strings.Split(rules, ",") {
		key, value, _ := strings.Cut(rule, "=")
		switch key {
		case "email":
			s.Format = "email"
		case "min", "max", "gte", "lte":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				continue
			}
			lower := key == "min" || key == "gte"
			if t.Kind() == reflect.String {
				if lower {
					s.WithMinLength(n)
				} else {
					s.WithMaxLength(n)
				}
			} else if lower {
				s.WithMinimum(float64(n), false)
			} else {
				s.WithMaximum(float64(n), false)
			}
		}
	}
}

func hasRule(rules, name string) bool {
	for _, rule := range strings.Split(rules, ",") {
		if rule == name {
			return true
		}
	}
	return false
}

// definitionName qualifies a type with its package name, e.g. "users.UserResponse".
func definitionName(t reflect.Type) string {
	pkg := t.PkgPath()
	if i := strings.LastIndex(pkg, "/"); i >= 0 {
		pkg = pkg[i+1:]
	}
	if pkg == "" {
		return t.Name()
	}
	return pkg + "." + t.Name()
}
