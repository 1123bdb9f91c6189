package yaml

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaGenerator reflects a JSON schema from a Go value.
// Uses [github.com/invopop/jsonschema].
type SchemaGenerator struct {
	v  any
	id string
}

// NewSchemaGenerator creates a [SchemaGenerator] for v. The id is written as
// the schema's $id.
func NewSchemaGenerator(v any, id string) *SchemaGenerator {
	return &SchemaGenerator{v: v, id: id}
}

// Generate returns the indented JSON schema.
func (g *SchemaGenerator) Generate() ([]byte, error) {
	r := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}

	jss := r.Reflect(g.v)
	jss.ID = jsonschema.ID(g.id)

	b, err := json.MarshalIndent(jss, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	return append(b, '\n'), nil
}
