package yaml_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/rulelimits/pkg/yaml"
)

const limitsSchema = `{
	"type": "object",
	"properties": {
		"name": {"type": "string"},
		"limits": {
			"type": "object",
			"properties": {
				"maxDynamicRules": {"type": "integer", "minimum": 0}
			},
			"required": ["maxDynamicRules"]
		},
		"catalog": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"filterId": {"type": "integer", "minimum": 0},
					"groupId": {"type": "integer", "minimum": 0}
				},
				"required": ["filterId", "groupId"]
			}
		}
	},
	"required": ["name"]
}`

func TestNewValidator(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		errMsg     string
		schemaData []byte
		wantErr    bool
	}{
		"valid schema": {
			schemaData: []byte(limitsSchema),
		},
		"invalid json": {
			schemaData: []byte(`{"invalid": json}`),
			wantErr:    true,
			errMsg:     "unmarshal schema",
		},
		"invalid schema": {
			schemaData: []byte(`{"type": "invalid_type"}`),
			wantErr:    true,
			errMsg:     "compile schema",
		},
		"empty schema": {
			schemaData: []byte(`{}`),
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			validator, err := yaml.NewValidator("test", tc.schemaData)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errMsg)
				assert.Nil(t, validator)

				return
			}

			require.NoError(t, err)
			assert.NotNil(t, validator)
		})
	}
}

func TestMustNewValidator(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		yaml.MustNewValidator("test", []byte(`nope`))
	})
	assert.NotPanics(t, func() {
		yaml.MustNewValidator("test", []byte(limitsSchema))
	})
}

func TestValidator_Validate(t *testing.T) {
	t.Parallel()

	validator := yaml.MustNewValidator("test", []byte(limitsSchema))

	tcs := map[string]struct {
		data         any
		expectedPath string
		wantErr      bool
	}{
		"valid data": {
			data: map[string]any{
				"name":   "default",
				"limits": map[string]any{"maxDynamicRules": 5000},
			},
		},
		"missing required field": {
			data:         map[string]any{},
			wantErr:      true,
			expectedPath: "$",
		},
		"wrong type": {
			data:         map[string]any{"name": 123},
			wantErr:      true,
			expectedPath: "$.name",
		},
		"nested required": {
			data: map[string]any{
				"name":   "default",
				"limits": map[string]any{},
			},
			wantErr:      true,
			expectedPath: "$.limits",
		},
		"negative value in array item": {
			data: map[string]any{
				"name": "default",
				"catalog": []any{
					map[string]any{"filterId": 1, "groupId": 1},
					map[string]any{"filterId": -2, "groupId": 1},
				},
			},
			wantErr:      true,
			expectedPath: "$.catalog[1].filterId",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := validator.Validate(tc.data)
			if !tc.wantErr {
				require.NoError(t, err)

				return
			}

			var validationErr *yaml.Error
			require.ErrorAs(t, err, &validationErr)
			require.NotNil(t, validationErr.Path)
			assert.Equal(t, tc.expectedPath, validationErr.Path.String())
		})
	}
}

func TestValidator_ValidateJSON(t *testing.T) {
	t.Parallel()

	validator := yaml.MustNewValidator("ids", []byte(`{
		"type": "array",
		"items": {"type": "integer", "minimum": 0, "maximum": 4294967295}
	}`))

	require.NoError(t, validator.ValidateJSON([]byte(`[3, 7, 42]`)))
	require.NoError(t, validator.ValidateJSON([]byte(`[]`)))

	err := validator.ValidateJSON([]byte(`[1, 2.5]`))
	var validationErr *yaml.Error
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "$[1]", validationErr.Path.String())

	require.Error(t, validator.ValidateJSON([]byte(`[4294967296]`)))
	require.Error(t, validator.ValidateJSON([]byte(`{"a": 1}`)))

	err = validator.ValidateJSON([]byte(`[1,`))
	require.ErrorContains(t, err, "decode json")
}
