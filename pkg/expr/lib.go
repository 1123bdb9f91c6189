package expr

import (
	"errors"
	"math"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
	"github.com/google/cel-go/ext"
)

var errInvalidLimit = errors.New("limit must have integer enabled and maximum keys")

// LimitType is the CEL type of a quota category.
var LimitType = cel.MapType(cel.StringType, cel.IntType)

type lib struct{}

func (lib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		ext.Math(),
		ext.Strings(),
		ext.Lists(),
		ext.Sets(),

		// `usage` returns the enabled share of a category.
		// Example: usage(staticRules) > 0.9.
		cel.Function("usage",
			cel.Overload("usage_limit", []*cel.Type{LimitType}, cel.DoubleType,
				cel.UnaryBinding(func(limit ref.Val) ref.Val {
					enabled, maximum, err := limitValues(limit)
					if err != nil {
						return types.NewErr("usage: %v", err)
					}
					if maximum == 0 {
						if enabled == 0 {
							return types.Double(0)
						}

						return types.Double(math.Inf(1))
					}

					return types.Double(float64(enabled) / float64(maximum))
				}),
			),
		),

		// `remaining` returns how many more items fit in a category.
		// Example: remaining(staticRulesets) < 5.
		cel.Function("remaining",
			cel.Overload("remaining_limit", []*cel.Type{LimitType}, cel.IntType,
				cel.UnaryBinding(func(limit ref.Val) ref.Val {
					enabled, maximum, err := limitValues(limit)
					if err != nil {
						return types.NewErr("remaining: %v", err)
					}

					return types.Int(max(maximum-enabled, 0))
				}),
			),
		),

		// `missing` returns the elements of the first list that are not in the
		// second, in order.
		// Example: size(missing(expected, actual)) > 0.
		cel.Function("missing",
			cel.Overload("missing_list_list",
				[]*cel.Type{cel.ListType(cel.IntType), cel.ListType(cel.IntType)},
				cel.ListType(cel.IntType),
				cel.BinaryBinding(func(a, b ref.Val) ref.Val {
					left, ok := a.(traits.Lister)
					if !ok {
						return types.NewErr("missing: invalid list")
					}

					right, ok := b.(traits.Lister)
					if !ok {
						return types.NewErr("missing: invalid list")
					}

					var out []ref.Val

					it := left.Iterator()
					for it.HasNext() == types.True {
						v := it.Next()
						if right.Contains(v) != types.True {
							out = append(out, v)
						}
					}

					return types.NewRefValList(types.DefaultTypeAdapter, out)
				}),
			),
		),
	}
}

func (lib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

func limitValues(limit ref.Val) (int64, int64, error) {
	m, ok := limit.(traits.Mapper)
	if !ok {
		return 0, 0, errInvalidLimit
	}

	enabled, err := intField(m, "enabled")
	if err != nil {
		return 0, 0, err
	}

	maximum, err := intField(m, "maximum")
	if err != nil {
		return 0, 0, err
	}

	return enabled, maximum, nil
}

func intField(m traits.Mapper, key string) (int64, error) {
	v, found := m.Find(types.String(key))
	if !found {
		return 0, errInvalidLimit
	}

	i, ok := v.(types.Int)
	if !ok {
		return 0, errInvalidLimit
	}

	return int64(i), nil
}

// Limit converts enabled and maximum counts into a value of [LimitType].
func Limit(enabled, maximum uint) map[string]int64 {
	return map[string]int64{
		"enabled": clampInt64(enabled),
		"maximum": clampInt64(maximum),
	}
}

// IDs converts filter identifiers into a CEL-compatible list.
func IDs(ids []uint32) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		out = append(out, int64(id))
	}

	return out
}

func clampInt64(n uint) int64 {
	if uint64(n) > math.MaxInt64 {
		return math.MaxInt64
	}

	return int64(n)
}
