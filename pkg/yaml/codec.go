// Package yaml wraps [github.com/goccy/go-yaml] with JSON Schema validation
// and errors that point at the offending YAML path or token.
//
// Struct fields without a yaml tag use their json tag, so API types only
// need json tags.
package yaml

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-yaml"
)

// Decoder reads YAML documents. Syntax errors are returned as [*Error].
type Decoder struct {
	d *yaml.Decoder
}

func NewDecoder(r io.Reader, opts ...yaml.DecodeOption) *Decoder {
	return &Decoder{d: yaml.NewDecoder(r, append([]yaml.DecodeOption{yaml.AllowDuplicateMapKey()}, opts...)...)}
}

// Decode decodes the next document into v. It returns [io.EOF] when there
// are no more documents.
func (d *Decoder) Decode(v any) error {
	err := d.d.Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return err //nolint:wrapcheck // Callers compare against io.EOF.
	}

	var yamlErr yaml.Error
	if errors.As(err, &yamlErr) {
		return &Error{
			Err:   errors.New(yamlErr.GetMessage()),
			Token: yamlErr.GetToken(),
		}
	}

	return err //nolint:wrapcheck // Not a syntax error.
}

// Unmarshal decodes the first document in data into v. Empty input leaves v
// untouched. Errors carry data so they can be annotated.
func Unmarshal(data []byte, v any) error {
	err := NewDecoder(bytes.NewReader(data)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}

	return NewErrorWrapper(WithSource(data)).Wrap(err)
}

// Encoder writes YAML with two-space indentation and indented sequences.
type Encoder struct {
	e *yaml.Encoder
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{e: yaml.NewEncoder(w, yaml.Indent(2), yaml.IndentSequence(true))}
}

func (e *Encoder) Encode(v any) error {
	return e.e.Encode(v) //nolint:wrapcheck // Return the original error.
}

func (e *Encoder) Close() error {
	return e.e.Close() //nolint:wrapcheck // Return the original error.
}

// Marshal encodes v as a single YAML document.
func Marshal(v any) ([]byte, error) {
	b := &bytes.Buffer{}

	enc := NewEncoder(b)

	err := enc.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}

	err = enc.Close()
	if err != nil {
		return nil, fmt.Errorf("close yaml encoder: %w", err)
	}

	return b.Bytes(), nil
}
