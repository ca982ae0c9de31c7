package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/swarmpulse/errors"
)

// Validator validates parsed JSON documents against a compiled schema.
// It is safe for concurrent use.
type Validator struct {
	schema *gojsonschema.Schema
}

// Violation is the first error reported by a failed validation.
type Violation struct {
	// DataPath is a JSON pointer into the document ("" for the root).
	DataPath string
	// SchemaPath is the schema keyword that rejected the value (e.g. "required", "enum").
	SchemaPath string
	Message    string
}

// Compile compiles a raw JSON schema document.
func Compile(raw []byte) (*Validator, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, errors.WrapInvalid(err, "schema", "Compile", "compile schema")
	}
	return &Validator{schema: s}, nil
}

// Validate checks an already parsed document (the result of json.Unmarshal
// into an any). It returns nil when the document is valid.
func (v *Validator) Validate(doc any) (*Violation, error) {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, errors.WrapInvalid(err, "Validator", "Validate", "validate document")
	}
	if result.Valid() {
		return nil, nil
	}

	errs := result.Errors()
	if len(errs) == 0 {
		return &Violation{Message: "document does not match schema"}, nil
	}
	first := errs[0]
	return &Violation{
		DataPath:   dataPath(first),
		SchemaPath: first.Type(),
		Message:    first.Description(),
	}, nil
}

// dataPath renders the error context as a JSON pointer.
func dataPath(e gojsonschema.ResultError) string {
	ctx := e.Context()
	if ctx == nil {
		return ""
	}
	path := strings.TrimPrefix(ctx.String("/"), gojsonschema.STRING_CONTEXT_ROOT)
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// String implements fmt.Stringer for log output.
func (v *Violation) String() string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%s at %q (%s)", v.Message, v.DataPath, v.SchemaPath)
}
