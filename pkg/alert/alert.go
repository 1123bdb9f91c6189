// Package alert evaluates CEL rules against a [quota.Snapshot].
package alert

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/macropower/rulelimits/pkg/expr"
	"github.com/macropower/rulelimits/pkg/quota"
)

// Severity levels.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

var (
	// ErrMissingExpression is returned when a rule has no expression.
	ErrMissingExpression = errors.New("rule missing an expression")

	environment = sync.OnceValues(func() (*expr.Environment, error) {
		opts := expr.LimitVariables(
			quota.CategoryDynamic,
			quota.CategoryDynamicRegexp,
			quota.CategoryStaticRulesets,
			quota.CategoryStaticRules,
			quota.CategoryStaticRegexp,
		)

		return expr.NewEnvironment(append(opts,
			cel.Variable("expected", cel.ListType(cel.IntType)),
			cel.Variable("actual", cel.ListType(cel.IntType)),
			cel.Variable("broken", cel.BoolType),
		)...)
	})
)

// Rule raises an alert when its CEL expression evaluates to true.
//
// CEL expressions have access to variables:
//   - `dynamic`, `dynamicRegexp`, `staticRulesets`, `staticRules`,
//     `staticRegexp` (map<string, int>): `enabled` and `maximum` counts
//   - `expected` (list<int>): filters recorded when divergence was detected
//   - `actual` (list<int>): filters the rule engine has enabled
//   - `broken` (bool): a divergence is on record
//
// Examples:
//   - usage(staticRules) > 0.9
//   - dynamic.enabled > dynamic.maximum
//   - broken && size(missing(expected, actual)) > 2
//   - remaining(staticRulesets) < 5
type Rule struct {
	predicate *expr.Predicate

	// Name identifies the alert.
	Name string `json:"name" jsonschema:"title=Name"`
	// Expr is a CEL expression returning a boolean.
	Expr string `json:"expr" jsonschema:"title=Expression"`
	// Severity is one of info, warning or critical.
	Severity string `json:"severity,omitempty" jsonschema:"title=Severity,enum=info,enum=warning,enum=critical"`
	// Message is a human-readable description of the alert.
	Message string `json:"message,omitempty" jsonschema:"title=Message"`
}

// New creates and compiles a [Rule].
func New(name, expression, severity, message string) (*Rule, error) {
	r := &Rule{
		Name:     name,
		Expr:     expression,
		Severity: severity,
		Message:  message,
	}

	err := r.Compile()
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", name, err)
	}

	return r, nil
}

// MustNew creates a [Rule] and panics on error.
func MustNew(name, expression, severity, message string) *Rule {
	r, err := New(name, expression, severity, message)
	if err != nil {
		panic(err)
	}

	return r
}

// Compile compiles the rule expression. It is a no-op once compiled.
func (r *Rule) Compile() error {
	if r.predicate != nil {
		return nil
	}
	if r.Expr == "" {
		return ErrMissingExpression
	}

	env, err := environment()
	if err != nil {
		return err
	}

	predicate, err := env.CompilePredicate(r.Expr)
	if err != nil {
		return err //nolint:wrapcheck // Wrapped by callers.
	}

	r.predicate = predicate

	return nil
}

// Match evaluates the rule against vars. Evaluation errors are treated as a
// non-match.
func (r *Rule) Match(vars map[string]any) bool {
	if r.predicate == nil {
		panic(ErrMissingExpression)
	}

	ok, err := r.predicate.Eval(vars)
	if err != nil {
		slog.Debug("alert rule evaluation failed",
			slog.String("rule", r.Name),
			slog.Any("err", err),
		)

		return false
	}

	return ok
}

// Alert is a rule that matched.
type Alert struct {
	Name     string `json:"name"`
	Severity string `json:"severity"`
	Message  string `json:"message,omitempty"`
}

// Evaluate returns the alerts raised by rules for snap.
func Evaluate(rules []*Rule, snap quota.Snapshot) []Alert {
	vars := Vars(snap)

	var alerts []Alert
	for _, r := range rules {
		if !r.Match(vars) {
			continue
		}

		severity := r.Severity
		if severity == "" {
			severity = SeverityWarning
		}

		alerts = append(alerts, Alert{
			Name:     r.Name,
			Severity: severity,
			Message:  r.Message,
		})
	}

	return alerts
}

// Vars returns the CEL variables for snap.
func Vars(snap quota.Snapshot) map[string]any {
	vars := map[string]any{
		"expected": expr.IDs(snap.ExpectedEnabledFilters()),
		"actual":   expr.IDs(snap.ActuallyEnabledFilters()),
		"broken":   snap.Broken(),
	}
	for _, c := range snap.Categories() {
		vars[c.Name] = expr.Limit(c.Limit.Enabled, c.Limit.Maximum)
	}

	return vars
}

// DefaultRules returns the built-in rules: one per exceeded category, and
// one for a recorded divergence.
func DefaultRules() []*Rule {
	return []*Rule{
		MustNew("filters-diverged", `broken`, SeverityWarning,
			"The rule engine did not enable every requested filter"),
		MustNew("static-rulesets-exceeded", `staticRulesets.enabled > staticRulesets.maximum`, SeverityCritical,
			"Too many static filters are enabled"),
		MustNew("static-rules-exceeded", `staticRules.enabled > staticRules.maximum`, SeverityCritical,
			"Too many static rules are enabled"),
		MustNew("static-regexp-exceeded", `staticRegexp.enabled > staticRegexp.maximum`, SeverityCritical,
			"Too many static regular expression rules are enabled"),
		MustNew("dynamic-rules-exceeded", `dynamic.enabled > dynamic.maximum`, SeverityCritical,
			"Too many user rules are enabled"),
		MustNew("dynamic-regexp-exceeded", `dynamicRegexp.enabled > dynamicRegexp.maximum`, SeverityCritical,
			"Too many user regular expression rules are enabled"),
	}
}
