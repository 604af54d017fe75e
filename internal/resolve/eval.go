// Package resolve evaluates whitelisted numeric expressions and builds the
// per-round constant pool that cost and belief cells are evaluated against.
//
// A round is resolved in three ordered stages: literal constants, random
// variables, then the stochastic column player's random, update and result
// variables. Later variables may reference anything resolved before them in
// the same round; nothing else is visible.
package resolve

import (
	"errors"
	"fmt"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

var (
	// ErrUnsupportedFunction is returned when an expression calls a function
	// outside the whitelist, or a variable names an unknown type.
	ErrUnsupportedFunction = errors.New("unsupported function")
	// ErrUnresolvedReference is returned when an expression references a name
	// that is not defined yet.
	ErrUnresolvedReference = errors.New("unresolved reference")
	// ErrInvalidVariable is returned for malformed declarations and for
	// parameters outside a distribution's domain.
	ErrInvalidVariable = errors.New("invalid variable")
	// ErrInvalidExpression is returned for syntax errors and non-numeric results.
	ErrInvalidExpression = errors.New("invalid expression")
)

// references walks an expression tree and records every function called and
// every free identifier referenced.
type references struct {
	calls   []string
	idents  []*ast.IdentifierNode
	callees map[*ast.IdentifierNode]bool
	bound   map[string]bool
}

// Visit is called in post-order, so identifiers are collected before their
// enclosing call marks them as callees.
func (r *references) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		r.idents = append(r.idents, n)
	case *ast.BuiltinNode:
		r.calls = append(r.calls, n.Name)
	case *ast.CallNode:
		if id, ok := n.Callee.(*ast.IdentifierNode); ok {
			r.callees[id] = true
			r.calls = append(r.calls, id.Value)
		} else {
			r.calls = append(r.calls, "<method>")
		}
	case *ast.VariableDeclaratorNode:
		r.bound[n.Name] = true
	}
}

func (r *references) variables() []string {
	seen := make(map[string]bool)
	var out []string
	for _, id := range r.idents {
		if r.callees[id] || r.bound[id.Value] || seen[id.Value] {
			continue
		}
		seen[id.Value] = true
		out = append(out, id.Value)
	}
	return out
}

// Check parses expression and verifies that it only calls whitelisted
// functions and only references names present in env.
func Check(expression string, env map[string]any) error {
	tree, err := parser.Parse(expression)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidExpression, expression, err)
	}
	refs := &references{
		callees: make(map[*ast.IdentifierNode]bool),
		bound:   make(map[string]bool),
	}
	ast.Walk(&tree.Node, refs)

	for _, name := range refs.calls {
		if _, ok := functions[name]; !ok {
			return fmt.Errorf("%w: %q in %q (allowed: %v)", ErrUnsupportedFunction, name, expression, FunctionNames())
		}
	}
	for _, name := range refs.variables() {
		if _, ok := env[name]; !ok {
			return fmt.Errorf("%w: %q in %q", ErrUnresolvedReference, name, expression)
		}
	}
	return nil
}

// Evaluate computes expression against env. The result is a float64 or a
// []float64; any other result type is rejected.
func Evaluate(expression string, env map[string]any) (any, error) {
	if env == nil {
		env = map[string]any{}
	}
	if err := Check(expression, env); err != nil {
		return nil, err
	}

	opts := []expr.Option{expr.Env(env), expr.DisableAllBuiltins()}
	for _, name := range FunctionNames() {
		opts = append(opts, expr.Function(name, functions[name]))
	}
	program, err := expr.Compile(expression, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidExpression, expression, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", expression, err)
	}
	v, err := normalize(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidExpression, expression, err)
	}
	return v, nil
}

// EvaluateFloat is Evaluate for expressions that must produce a scalar.
func EvaluateFloat(expression string, env map[string]any) (float64, error) {
	v, err := Evaluate(expression, env)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("%w: %q produced %d values, want a scalar", ErrInvalidExpression, expression, len(v.([]float64)))
	}
	return f, nil
}

// FunctionNames lists the whitelisted functions in sorted order.
func FunctionNames() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// normalize converts expression results to float64 or []float64.
func normalize(v any) (any, error) {
	switch x := v.(type) {
	case []float64:
		return append([]float64(nil), x...), nil
	case []any:
		out := make([]float64, len(x))
		for i, e := range x {
			f, err := toFloat(e)
			if err != nil {
				return nil, err
			}
			out[i] = f
		}
		return out, nil
	default:
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
}
