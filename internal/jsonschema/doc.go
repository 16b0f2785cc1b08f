// Package jsonschema defines the Schema type used to describe tool
// parameters and structured-output shapes, generates schemas from Go types
// via reflection, and validates JSON documents against them.
//
// Generation honors `json` tags for property names and a `jsonschema` tag
// for description, enum and required annotations. Recursive types are
// expressed through $defs and $ref. Validation delegates to
// santhosh-tekuri/jsonschema/v6.
package jsonschema
