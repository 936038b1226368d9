// Package expr compiles and evaluates formatter expressions.
//
// A formatter source is a pipeline: a head expression followed by zero or
// more filters, separated by `|`:
//
//	$cellValue | split(",") | join(" / ")
//
// The head and filter arguments are Starlark expressions that can read only
// the scope names api, colDef, node, cellValue and dates. Filters come from
// a fixed library (see Filters).
package expr

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	starctx "github.com/leapstack-labs/gridweaver/internal/starlark"
	"github.com/leapstack-labs/gridweaver/pkg/core"
	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// MaxSteps bounds the Starlark work of a single expression evaluation.
const MaxSteps = starctx.DefaultMaxSteps

// scopeParams are the names an expression may read, in call order.
var scopeParams = []string{"api", "colDef", "node", "cellValue", "dates"}

var threads = starctx.NewThreadPoolWithLimit(runtime.GOMAXPROCS(0)*2, MaxSteps)

var fileOptions = &syntax.FileOptions{}

// Program is a compiled formatter expression. It is immutable and safe for
// concurrent use.
type Program struct {
	source string
	head   *starlark.Function
	stages []stage
}

type stage struct {
	name   string
	filter filterDef
	args   *starlark.Function // nil when the filter is used without a call
	gather *starlark.Builtin
}

// Source returns the expression as written.
func (p *Program) Source() string {
	return p.source
}

// String returns the expression as written.
func (p *Program) String() string {
	return p.source
}

// Compile parses and resolves a formatter expression. Syntax errors, unknown
// names, unknown filters and bad filter calls are reported as
// *core.CompileError.
func Compile(source string) (*Program, error) {
	fail := func(reason string, cause error) (*Program, error) {
		return nil, &core.CompileError{Source: source, Reason: reason, Cause: cause}
	}

	if strings.TrimSpace(source) == "" {
		return fail("empty expression", nil)
	}
	segs, err := splitPipeline(source)
	if err != nil {
		return fail(err.Error(), err)
	}

	p := &Program{source: source}
	for i, seg := range segs {
		if seg.text == "" {
			if i == 0 {
				return fail("missing expression before '|'", nil)
			}
			return fail(fmt.Sprintf("empty filter at offset %d", seg.offset), nil)
		}
		if i == 0 {
			head, err := compileFragment(seg.text, scopeParams)
			if err != nil {
				return fail(describe(err), err)
			}
			p.head = head
			continue
		}
		st, err := compileStage(seg.text)
		if err != nil {
			return fail(describe(err), err)
		}
		p.stages = append(p.stages, st)
	}
	return p, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(source string) *Program {
	p, err := Compile(source)
	if err != nil {
		panic(err)
	}
	return p
}

// compileFragment turns an expression into a function of the given
// parameters. Free names that are neither parameters nor universal
// built-ins fail resolution here.
func compileFragment(src string, params []string) (*starlark.Function, error) {
	if _, err := fileOptions.ParseExpr("formatter", src, 0); err != nil {
		return nil, err
	}
	lambda := "lambda " + strings.Join(params, ", ") + ": (" + src + "\n)"
	thread := &starlark.Thread{Name: "compile"}
	v, err := starlark.EvalOptions(fileOptions, thread, "formatter", lambda, nil)
	if err != nil {
		return nil, err
	}
	fn, ok := v.(*starlark.Function)
	if !ok {
		return nil, fmt.Errorf("expression compiled to %s", v.Type())
	}
	fn.Freeze()
	return fn, nil
}

func compileStage(src string) (stage, error) {
	e, err := fileOptions.ParseExpr("formatter", src, 0)
	if err != nil {
		return stage{}, err
	}

	var (
		name  string
		nargs int
		call  bool
	)
	switch x := e.(type) {
	case *syntax.Ident:
		name = x.Name
	case *syntax.CallExpr:
		id, ok := x.Fn.(*syntax.Ident)
		if !ok {
			return stage{}, errors.New("filter must be a name or a call of a name")
		}
		for _, arg := range x.Args {
			if bin, ok := arg.(*syntax.BinaryExpr); ok && bin.Op == syntax.EQ {
				return stage{}, fmt.Errorf("filter %q: keyword arguments are not supported", id.Name)
			}
			if un, ok := arg.(*syntax.UnaryExpr); ok && (un.Op == syntax.STAR || un.Op == syntax.STARSTAR) {
				return stage{}, fmt.Errorf("filter %q: variadic arguments are not supported", id.Name)
			}
		}
		name, nargs, call = id.Name, len(x.Args), true
	default:
		return stage{}, errors.New("filter must be a name or a call of a name")
	}

	def, ok := filters[name]
	if !ok {
		return stage{}, fmt.Errorf("unknown filter %q", name)
	}
	if nargs < def.minArgs || nargs > def.maxArgs {
		return stage{}, fmt.Errorf("filter %q takes %s, got %d", name, arity(def), nargs)
	}

	st := stage{name: name, filter: def}
	if call && nargs > 0 {
		// The filter name is bound to a builtin that returns its arguments,
		// so the call evaluates to the argument tuple.
		params := append(append([]string(nil), scopeParams...), name)
		fn, err := compileFragment(src, params)
		if err != nil {
			return stage{}, err
		}
		st.args = fn
		st.gather = starlark.NewBuiltin(name, gatherArgs)
	}
	return st, nil
}

func gatherArgs(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, errors.New("keyword arguments are not supported")
	}
	return args, nil
}

func arity(def filterDef) string {
	switch {
	case def.minArgs == def.maxArgs && def.maxArgs == 1:
		return "1 argument"
	case def.minArgs == def.maxArgs:
		return fmt.Sprintf("%d arguments", def.maxArgs)
	default:
		return fmt.Sprintf("%d to %d arguments", def.minArgs, def.maxArgs)
	}
}

// describe strips Starlark positions from parser and resolver messages:
// "formatter:1:3: undefined: foo" becomes "undefined: foo".
func describe(err error) string {
	var serr syntax.Error
	if errors.As(err, &serr) {
		return serr.Msg
	}
	var rerrs resolve.ErrorList
	if errors.As(err, &rerrs) && len(rerrs) > 0 {
		return rerrs[0].Msg
	}
	msg := err.Error()
	if strings.HasPrefix(msg, "formatter:") {
		if parts := strings.SplitN(msg, ": ", 2); len(parts) == 2 {
			return parts[1]
		}
	}
	return msg
}

// Evaluate runs p against scope.
func Evaluate(p *Program, scope core.Scope) (any, error) {
	return p.Eval(scope)
}

// Eval runs the expression against scope. Failures are reported as
// *core.EvaluationError.
func (p *Program) Eval(scope core.Scope) (any, error) {
	b, err := bind(scope)
	if err != nil {
		return nil, &core.EvaluationError{Source: p.source, Cause: err}
	}
	return p.eval(b)
}

func (p *Program) eval(b *binding) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, &core.EvaluationError{Source: p.source, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	fail := func(cause error) (any, error) {
		return nil, &core.EvaluationError{Source: p.source, Cause: cause}
	}

	v, err := threads.Call(p.source, p.head, b.args)
	if err != nil {
		return fail(err)
	}
	cur, err := b.toGo(v)
	if err != nil {
		return fail(err)
	}

	for _, st := range p.stages {
		var args []any
		if st.args != nil {
			callArgs := append(b.args[:len(b.args):len(b.args)], st.gather)
			av, err := threads.Call(p.source, st.args, callArgs)
			if err != nil {
				return fail(fmt.Errorf("filter %s: %w", st.name, err))
			}
			tuple, ok := av.(starlark.Tuple)
			if !ok {
				return fail(fmt.Errorf("filter %s: arguments evaluated to %s", st.name, av.Type()))
			}
			args = make([]any, len(tuple))
			for i, a := range tuple {
				if args[i], err = b.toGo(a); err != nil {
					return fail(fmt.Errorf("filter %s: argument %d: %w", st.name, i+1, err))
				}
			}
		}
		if cur, err = st.filter.apply(cur, args); err != nil {
			return fail(fmt.Errorf("filter %s: %w", st.name, err))
		}
	}
	return cur, nil
}

// Chain is the compiled formatter list of one column. Every entry is
// evaluated against the same scope and only the last result is emitted;
// results are not piped from one entry into the next.
type Chain []*Program

// CompileChain compiles every source. All compile errors are returned,
// joined.
func CompileChain(sources []string) (Chain, error) {
	chain := make(Chain, 0, len(sources))
	var errs []error
	for _, src := range sources {
		p, err := Compile(src)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		chain = append(chain, p)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return chain, nil
}

// Eval evaluates each entry against scope and returns the last entry's
// value. Each failing entry is reported to onError with its index; i is -1
// when the scope itself cannot be bound. ok is false when the last entry
// failed, in which case callers display the raw value.
func (c Chain) Eval(scope core.Scope, onError func(i int, err error)) (value any, ok bool) {
	if len(c) == 0 {
		return scope.CellValue, true
	}
	report := func(i int, err error) {
		if onError != nil {
			onError(i, err)
		}
	}

	b, err := bind(scope)
	if err != nil {
		report(-1, &core.EvaluationError{Source: c[len(c)-1].source, Cause: err})
		return nil, false
	}

	for i, p := range c {
		v, err := p.eval(b)
		if err != nil {
			report(i, err)
			ok = false
			continue
		}
		value, ok = v, true
	}
	if !ok {
		return nil, false
	}
	return value, true
}

// Sources returns the expression sources of the chain.
func (c Chain) Sources() []string {
	out := make([]string, len(c))
	for i, p := range c {
		out[i] = p.source
	}
	return out
}
