package expr_test

import (
	"math"
	"testing"

	"github.com/google/cel-go/cel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/rulelimits/pkg/expr"
)

func newEnv(t *testing.T) *expr.Environment {
	t.Helper()

	return expr.MustNewEnvironment(
		cel.Variable("rules", expr.LimitType),
		cel.Variable("expected", cel.ListType(cel.IntType)),
		cel.Variable("actual", cel.ListType(cel.IntType)),
	)
}

func TestFunctions(t *testing.T) {
	t.Parallel()

	env := newEnv(t)

	tcs := map[string]struct {
		rules      map[string]int64
		want       any
		expression string
	}{
		"usage": {
			expression: `usage(rules)`,
			rules:      expr.Limit(50, 200),
			want:       0.25,
		},
		"usage over": {
			expression: `usage(rules) > 1.0`,
			rules:      expr.Limit(300, 200),
			want:       true,
		},
		"usage zero maximum": {
			expression: `usage(rules)`,
			rules:      expr.Limit(0, 0),
			want:       0.0,
		},
		"usage zero maximum enabled": {
			expression: `usage(rules)`,
			rules:      expr.Limit(1, 0),
			want:       math.Inf(1),
		},
		"remaining": {
			expression: `remaining(rules)`,
			rules:      expr.Limit(150, 200),
			want:       int64(50),
		},
		"remaining floor": {
			expression: `remaining(rules)`,
			rules:      expr.Limit(250, 200),
			want:       int64(0),
		},
		"missing": {
			expression: `missing(expected, actual) == [3, 5]`,
			rules:      expr.Limit(0, 0),
			want:       true,
		},
		"strings extension": {
			expression: `"%d of %d".format([rules.enabled, rules.maximum])`,
			rules:      expr.Limit(1, 2),
			want:       "1 of 2",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			prg, err := env.Compile(tc.expression, nil)
			require.NoError(t, err)

			out, _, err := prg.Eval(map[string]any{
				"rules":    tc.rules,
				"expected": expr.IDs([]uint32{1, 2, 3, 4, 5}),
				"actual":   expr.IDs([]uint32{1, 2, 4}),
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, out.Value())
		})
	}
}

func TestCompile(t *testing.T) {
	t.Parallel()

	env := newEnv(t)

	_, err := env.Compile(`usage(rules) > 0.5`, cel.BoolType)
	require.NoError(t, err)

	_, err = env.Compile(`usage(rules)`, cel.BoolType)
	require.ErrorContains(t, err, "result type")

	_, err = env.Compile(`rules.unknownFunction()`, nil)
	require.ErrorContains(t, err, "compile expression")

	_, err = env.Compile(`undeclared > 1`, nil)
	require.Error(t, err)
}

func TestIDs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []int64{}, expr.IDs(nil))
	assert.Equal(t, []int64{4294967295}, expr.IDs([]uint32{math.MaxUint32}))
}

func TestPredicate(t *testing.T) {
	t.Parallel()

	env := expr.MustNewEnvironment(expr.LimitVariables("staticRules", "dynamic")...)

	p, err := env.CompilePredicate(`usage(staticRules) > 0.5 || remaining(dynamic) == 0`)
	require.NoError(t, err)
	assert.Equal(t, `usage(staticRules) > 0.5 || remaining(dynamic) == 0`, p.String())

	got, err := p.Eval(map[string]any{
		"staticRules": expr.Limit(10, 100),
		"dynamic":     expr.Limit(5000, 5000),
	})
	require.NoError(t, err)
	assert.True(t, got)

	got, err = p.Eval(map[string]any{
		"staticRules": expr.Limit(10, 100),
		"dynamic":     expr.Limit(1, 5000),
	})
	require.NoError(t, err)
	assert.False(t, got)

	_, err = p.Eval(map[string]any{"staticRules": expr.Limit(10, 100)})
	require.Error(t, err)

	_, err = env.CompilePredicate(`usage(staticRules)`)
	require.ErrorContains(t, err, "result type")
}
