package jsonschema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Schema is a JSON Schema fragment. It covers the subset providers accept in
// tool definitions and response_format blocks: object/array/primitive types,
// nested properties, enums, and $defs/$ref for recursive shapes.
type Schema struct {
	Type                 string             `json:"type,omitempty"`
	Description          string             `json:"description,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	AdditionalProperties any                `json:"additionalProperties,omitempty"`
	Default              any                `json:"default,omitempty"`
	Enum                 []any              `json:"enum,omitempty"`
	Ref                  string             `json:"$ref,omitempty"`
	Defs                 map[string]*Schema `json:"$defs,omitempty"`
}

// Generate builds a Schema from T via reflection. Property names come from
// `json` tags; non-pointer fields without omitempty are required. A
// `jsonschema:"description=...,enum=...,required"` tag refines the field
// schema. Recursive struct types become $defs entries referenced by $ref.
func Generate[T any]() *Schema {
	g := &generator{
		visited: make(map[reflect.Type]string),
		defs:    make(map[string]*Schema),
	}
	schema := g.typeSchema(derefType(reflect.TypeFor[T]()), true)
	if len(g.defs) > 0 {
		schema.Defs = g.defs
	}
	return schema
}

type generator struct {
	visited map[reflect.Type]string
	defs    map[string]*Schema
}

func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func (g *generator) typeSchema(t reflect.Type, isRoot bool) *Schema {
	switch t.Kind() {
	case reflect.String:
		return &Schema{Type: "string"}
	case reflect.Bool:
		return &Schema{Type: "boolean"}
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}
	case reflect.Slice, reflect.Array:
		return &Schema{Type: "array", Items: g.typeSchema(derefType(t.Elem()), false)}
	case reflect.Map:
		return &Schema{Type: "object", AdditionalProperties: g.typeSchema(derefType(t.Elem()), false)}
	case reflect.Ptr:
		return g.typeSchema(t.Elem(), isRoot)
	case reflect.Struct:
		return g.structSchema(t, isRoot)
	default:
		// Interfaces and other kinds accept any object.
		return &Schema{Type: "object"}
	}
}

func (g *generator) structSchema(t reflect.Type, isRoot bool) *Schema {
	if defName, seen := g.visited[t]; seen {
		return &Schema{Ref: "#/$defs/" + defName}
	}

	recursive := referencesSelf(t, t, make(map[reflect.Type]bool))
	defName := ""
	if recursive {
		defName = defNameFor(t)
		g.visited[t] = defName
	}

	schema := &Schema{Type: "object", Properties: map[string]*Schema{}}
	var required []string

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, omitEmpty, skip := jsonFieldName(field)
		if skip {
			continue
		}

		fieldSchema := g.typeSchema(derefType(field.Type), false)
		requiredByTag := false
		if fieldSchema.Ref == "" {
			requiredByTag = applySchemaTag(field, fieldSchema)
		}
		schema.Properties[name] = fieldSchema

		if requiredByTag || (field.Type.Kind() != reflect.Ptr && !omitEmpty) {
			required = append(required, name)
		}
	}
	schema.Required = required

	if recursive {
		g.defs[defName] = schema
		if !isRoot {
			return &Schema{Ref: "#/$defs/" + defName}
		}
	}
	return schema
}

// referencesSelf reports whether target appears among current's field types,
// following pointers, slices, arrays and nested structs.
func referencesSelf(target, current reflect.Type, visited map[reflect.Type]bool) bool {
	if visited[current] {
		return false
	}
	visited[current] = true

	if current.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < current.NumField(); i++ {
		field := current.Field(i)
		if !field.IsExported() {
			continue
		}
		ft := field.Type
		for ft.Kind() == reflect.Ptr || ft.Kind() == reflect.Slice || ft.Kind() == reflect.Array || ft.Kind() == reflect.Map {
			ft = ft.Elem()
		}
		if ft == target {
			return true
		}
		if ft.Kind() == reflect.Struct && referencesSelf(target, ft, visited) {
			return true
		}
	}
	return false
}

func defNameFor(t reflect.Type) string {
	if t.Name() != "" {
		return strings.ToLower(t.Name())
	}
	return "anonymous"
}

func jsonFieldName(field reflect.StructField) (name string, omitEmpty, skip bool) {
	name = field.Name
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	if tag == "" {
		return name, false, false
	}
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		name = parts[0]
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}

// applySchemaTag applies the `jsonschema` struct tag to schema and reports
// whether the field is explicitly marked required. Enum values are converted
// to the field's underlying kind; unconvertible values are skipped.
func applySchemaTag(field reflect.StructField, schema *Schema) (requiredByTag bool) {
	tag := field.Tag.Get("jsonschema")
	if tag == "" {
		return false
	}
	for _, item := range strings.Split(tag, ",") {
		key, value, hasValue := strings.Cut(item, "=")
		switch {
		case key == "required" && !hasValue:
			requiredByTag = true
		case key == "description" && hasValue:
			schema.Description = value
		case key == "enum" && hasValue:
			if v, ok := convertEnumValue(derefType(field.Type), value); ok {
				schema.Enum = append(schema.Enum, v)
			}
		}
	}
	return requiredByTag
}

func convertEnumValue(t reflect.Type, value string) (any, bool) {
	switch t.Kind() {
	case reflect.String:
		return value, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseInt(value, 10, 64)
		return v, err == nil
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(value, 64)
		return v, err == nil
	case reflect.Bool:
		v, err := strconv.ParseBool(value)
		return v, err == nil
	default:
		return nil, false
	}
}

// JSONString returns the schema's JSON encoding, indented when indent is true.
func (s *Schema) JSONString(indent ...bool) (string, error) {
	var encoded []byte
	var err error
	if len(indent) > 0 && indent[0] {
		encoded, err = json.MarshalIndent(s, "", "  ")
	} else {
		encoded, err = json.Marshal(s)
	}
	if err != nil {
		return "", fmt.Errorf("failed to marshal schema to JSON: %w", err)
	}
	return string(encoded), nil
}

func (s *Schema) String() string {
	out, err := s.JSONString()
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return out
}
