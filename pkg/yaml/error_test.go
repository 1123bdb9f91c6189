package yaml_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/rulelimits/pkg/yaml"
)

func TestError_Error(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		err  *yaml.Error
		want string
	}{
		"with path": {
			err: yaml.NewError(errors.New("value is required"),
				yaml.WithPath(yaml.NewPathBuilder().Root().Child("field").Child("subfield").Build()),
			),
			want: "error at $.field.subfield: value is required",
		},
		"without path": {
			err:  yaml.NewError(errors.New("validation error: value is required")),
			want: "validation error: value is required",
		},
		"nil error": {
			err:  &yaml.Error{},
			want: "",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, tc.err.Error())
		})
	}
}

func TestError_AnnotatesSource(t *testing.T) {
	t.Parallel()

	src := []byte("limits:\n  maxDynamicRules: -1\n")

	err := yaml.NewError(errors.New("must be >= 0"),
		yaml.WithPath(yaml.NewPathBuilder().Root().Child("limits").Child("maxDynamicRules").Build()),
		yaml.WithSource(src),
	)

	msg := err.Error()
	assert.True(t, strings.HasPrefix(msg, "error at $.limits.maxDynamicRules: must be >= 0"), msg)
	assert.Contains(t, msg, "maxDynamicRules")
}

func TestDecoder_SyntaxError(t *testing.T) {
	t.Parallel()

	var v map[string]any

	err := yaml.NewDecoder(strings.NewReader("a: [1, 2\n")).Decode(&v)

	var yamlErr *yaml.Error
	require.ErrorAs(t, err, &yamlErr)
	assert.NotNil(t, yamlErr.Token)
}

func TestErrorWrapper(t *testing.T) {
	t.Parallel()

	src := []byte("a: 1\n")
	ew := yaml.NewErrorWrapper(yaml.WithSource(src))

	require.NoError(t, ew.Wrap(nil))

	plain := errors.New("plain")
	assert.Equal(t, plain, ew.Wrap(plain))

	wrapped := ew.Wrap(yaml.NewError(errors.New("bad")))

	var yamlErr *yaml.Error
	require.ErrorAs(t, wrapped, &yamlErr)
	assert.Equal(t, src, yamlErr.Source)
}

func TestMarshal(t *testing.T) {
	t.Parallel()

	b, err := yaml.Marshal(map[string]any{"enabledRulesets": []string{"ruleset_1"}})
	require.NoError(t, err)
	assert.Equal(t, "enabledRulesets:\n  - ruleset_1\n", string(b))
}
