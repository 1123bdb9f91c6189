package yaml

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/goccy/go-yaml"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator checks decoded documents against a compiled JSON schema.
// Uses [github.com/santhosh-tekuri/jsonschema/v6].
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles schemaData, registered under url.
func NewValidator(url string, schemaData []byte) (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaData))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	c := jsonschema.NewCompiler()

	err = c.AddResource(url, doc)
	if err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	schema, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// MustNewValidator is like [NewValidator] but panics on error. It is meant
// for embedded schemas.
func MustNewValidator(url string, schemaData []byte) *Validator {
	v, err := NewValidator(url, schemaData)
	if err != nil {
		panic(err)
	}

	return v
}

// Validate checks data, usually the output of a [Decoder], against the
// schema. Failures are returned as an [*Error] pointing at the deepest
// offending location, ready for [yaml.Path.AnnotateSource].
func (v *Validator) Validate(data any) error {
	err := v.schema.Validate(data)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return fmt.Errorf("schema validation: %w", err)
	}

	return NewError(verr, WithPath(instancePath(deepest(verr))))
}

// ValidateJSON decodes and validates a JSON document. Numbers are kept
// exact, so integer bounds hold for the full uint32 range.
func (v *Validator) ValidateJSON(data []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode json: %w", err)
	}

	return v.Validate(doc)
}

// deepest returns the instance location of the most nested cause.
func deepest(err *jsonschema.ValidationError) []string {
	loc := err.InstanceLocation
	for _, cause := range err.Causes {
		if l := deepest(cause); len(l) > len(loc) {
			loc = l
		}
	}

	return loc
}

// instancePath converts a JSON pointer split into tokens to a [yaml.Path].
// Numeric tokens are treated as sequence indexes.
func instancePath(tokens []string) *yaml.Path {
	p := NewPathBuilder().Root()
	for _, tok := range tokens {
		i, err := strconv.ParseUint(tok, 10, 0)
		if err != nil {
			p = p.Child(tok)
			continue
		}

		p = p.Index(uint(i))
	}

	return p.Build()
}
