package ruleset

import (
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"
)

// LimitationKind identifies which dynamic quota the rule engine enforced.
type LimitationKind int

const (
	// TooManyRules means the dynamic ruleset was truncated to the maximum
	// number of dynamic rules.
	TooManyRules LimitationKind = iota + 1
	// TooManyRegexpRules means regular expression rules were excluded to stay
	// under the maximum number of regexp rules.
	TooManyRegexpRules
)

var ErrUnknownLimitationKind = errors.New("unknown limitation kind")

var limitationKindNames = map[LimitationKind]string{
	TooManyRules:       "too-many-rules",
	TooManyRegexpRules: "too-many-regexp-rules",
}

func (k LimitationKind) String() string {
	if s, ok := limitationKindNames[k]; ok {
		return s
	}

	return fmt.Sprintf("LimitationKind(%d)", int(k))
}

func (k LimitationKind) MarshalText() ([]byte, error) {
	s, ok := limitationKindNames[k]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLimitationKind, int(k))
	}

	return []byte(s), nil
}

func (k *LimitationKind) UnmarshalText(text []byte) error {
	for kind, name := range limitationKindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}

	return fmt.Errorf("%w: %q", ErrUnknownLimitationKind, string(text))
}

func (LimitationKind) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:  "string",
		Title: "Kind",
		Enum:  []any{TooManyRules.String(), TooManyRegexpRules.String()},
	}
}

// LimitationError is reported by the rule engine when it truncated the dynamic
// ruleset down to Maximum, excluding the listed rules.
type LimitationError struct {
	// ExcludedRuleIDs lists the identifiers of the rules that were dropped.
	ExcludedRuleIDs []int `json:"excludedRuleIds,omitempty" jsonschema:"title=Excluded Rule IDs"`
	// Kind is the quota that was exceeded.
	Kind LimitationKind `json:"kind"`
	// Maximum is the enforced ceiling.
	Maximum int `json:"maximum" jsonschema:"title=Maximum,minimum=0"`
}

func (e LimitationError) Error() string {
	switch e.Kind {
	case TooManyRules:
		return fmt.Sprintf("too many dynamic rules: maximum is %d, excluded %d",
			e.Maximum, len(e.ExcludedRuleIDs))
	case TooManyRegexpRules:
		return fmt.Sprintf("too many dynamic regexp rules: maximum is %d, excluded %d",
			e.Maximum, len(e.ExcludedRuleIDs))
	}

	return fmt.Sprintf("%s: maximum is %d", e.Kind, e.Maximum)
}
