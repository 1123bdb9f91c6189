package expr

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// ErrNotBool is returned by [Predicate.Eval] when a program does not yield a
// boolean.
var ErrNotBool = errors.New("expression did not evaluate to a bool")

// Environment compiles expressions over quota usage. Compilation is
// serialized; compiled programs are safe for concurrent use.
type Environment struct {
	env *cel.Env
	mu  sync.Mutex
}

// NewEnvironment creates an [Environment] with the quota functions and the
// given options, typically variable declarations.
func NewEnvironment(opts ...cel.EnvOption) (*Environment, error) {
	env, err := cel.NewEnv(append(opts, cel.Lib(&lib{}))...)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	return &Environment{env: env}, nil
}

// MustNewEnvironment is like [NewEnvironment] but panics on error.
func MustNewEnvironment(opts ...cel.EnvOption) *Environment {
	env, err := NewEnvironment(opts...)
	if err != nil {
		panic(err)
	}

	return env
}

// LimitVariables declares each name as a [LimitType] variable.
func LimitVariables(names ...string) []cel.EnvOption {
	opts := make([]cel.EnvOption, 0, len(names))
	for _, name := range names {
		opts = append(opts, cel.Variable(name, LimitType))
	}

	return opts
}

// Compile compiles expression into a program. When outputType is set the
// expression must evaluate to exactly that type.
//
//nolint:ireturn // Following CEL's function signature.
func (e *Environment) Compile(expression string, outputType *cel.Type) (cel.Program, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile expression: %w", issues.Err())
	}

	if outputType != nil && !ast.OutputType().IsExactType(outputType) {
		return nil, fmt.Errorf("compile expression: result type is %s, want %s",
			ast.OutputType(), outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("create program: %w", err)
	}

	return program, nil
}

// Predicate is a compiled boolean expression.
type Predicate struct {
	program    cel.Program
	expression string
}

// CompilePredicate compiles a boolean expression.
func (e *Environment) CompilePredicate(expression string) (*Predicate, error) {
	program, err := e.Compile(expression, cel.BoolType)
	if err != nil {
		return nil, err
	}

	return &Predicate{program: program, expression: expression}, nil
}

// String returns the source expression.
func (p *Predicate) String() string {
	return p.expression
}

// Eval evaluates the predicate with vars.
func (p *Predicate) Eval(vars map[string]any) (bool, error) {
	out, _, err := p.program.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", p.expression, err)
	}

	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("evaluate %q: %w", p.expression, ErrNotBool)
	}

	return b, nil
}
