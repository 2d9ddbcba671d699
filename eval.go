package numgrade

import (
	"strconv"
)

// Context is a binding environment for evaluating expressions: variables and
// constants by name, functions by name, and the evaluation capabilities.
// Contexts are read-only during evaluation; grading creates one per trial.
type Context struct {
	vars     map[string]Value
	funcs    map[string]Func
	allowInf bool
	arrays   bool
	inverses bool
}

// ContextOption is an option used when creating a context.
type ContextOption interface {
	ctxOption(*Context)
}

type (
	cvaropt struct {
		name string
		val  Value
	}
	cvarsopt map[string]Value
	cfnopt   struct {
		name string
		fn   Func
	}
	cfnsopt map[string]Func
	cinfopt bool
	carropt bool
	cinvopt bool
)

func (o cvaropt) ctxOption(ctx *Context) { ctx.vars[o.name] = o.val }

func (o cvarsopt) ctxOption(ctx *Context) {
	for k, v := range o {
		ctx.vars[k] = v
	}
}
func (o cfnopt) ctxOption(ctx *Context) { ctx.funcs[o.name] = o.fn }
func (o cfnsopt) ctxOption(ctx *Context) {
	for k, v := range o {
		if v == nil {
			delete(ctx.funcs, k)
			continue
		}
		ctx.funcs[k] = v
	}
}
func (o cinfopt) ctxOption(ctx *Context) { ctx.allowInf = bool(o) }
func (o carropt) ctxOption(ctx *Context) { ctx.arrays = bool(o) }
func (o cinvopt) ctxOption(ctx *Context) { ctx.inverses = bool(o) }

// SetVar sets the value of a variable in the context.
func SetVar(name string, val Value) ContextOption {
	return cvaropt{name, val}
}

// SetVars sets the values of any number of variables in the context.
func SetVars(vars map[string]Value) ContextOption {
	return cvarsopt(vars)
}

// SetFunc sets a function in the context.
func SetFunc(name string, fn Func) ContextOption {
	return cfnopt{name, fn}
}

// SetFuncs sets a group of functions in the context. A nil function removes
// the name.
func SetFuncs(fns map[string]Func) ContextOption {
	return cfnsopt(fns)
}

// AllowInfinities permits infinite results instead of reporting overflow.
func AllowInfinities(on bool) ContextOption {
	return cinfopt(on)
}

// AllowArrays permits vector and matrix values during evaluation. It is on
// by default.
func AllowArrays(on bool) ContextOption {
	return carropt(on)
}

// AllowInverses permits negative matrix powers. It is on by default.
func AllowInverses(on bool) ContextOption {
	return cinvopt(on)
}

// NewContext creates a new evaluation context holding the default functions
// and constants.
func NewContext(opts ...ContextOption) *Context {
	ctx := Context{
		vars:     make(map[string]Value, len(defaultConstants)),
		funcs:    make(map[string]Func, len(defaultFuncs)),
		arrays:   true,
		inverses: true,
	}
	for k, v := range defaultConstants {
		ctx.vars[k] = v
	}
	for k, v := range defaultFuncs {
		ctx.funcs[k] = v
	}
	for _, opt := range opts {
		opt.ctxOption(&ctx)
	}
	return &ctx
}

// Clone creates a copy of a context and applies options to it.
func (ctx *Context) Clone(opts ...ContextOption) *Context {
	n := Context{
		vars:     make(map[string]Value, len(ctx.vars)),
		funcs:    make(map[string]Func, len(ctx.funcs)),
		allowInf: ctx.allowInf,
		arrays:   ctx.arrays,
		inverses: ctx.inverses,
	}
	for k, v := range ctx.vars {
		n.vars[k] = v
	}
	for k, v := range ctx.funcs {
		n.funcs[k] = v
	}
	for _, opt := range opts {
		opt.ctxOption(&n)
	}
	return &n
}

// Bind sets a variable binding in place.
func (ctx *Context) Bind(name string, val Value) {
	ctx.vars[name] = val
}

// Unbind removes a variable binding.
func (ctx *Context) Unbind(name string) {
	delete(ctx.vars, name)
}

// Lookup returns the value of a variable and whether it is defined.
func (ctx *Context) Lookup(name string) (Value, bool) {
	v, ok := ctx.vars[name]
	return v, ok
}

// Func returns the function bound to a name, or nil.
func (ctx *Context) Func(name string) Func {
	return ctx.funcs[name]
}

// Eval evaluates the expression against the context's bindings.
func (e *Expr) Eval(ctx *Context) (Value, error) {
	return e.n.eval(ctx)
}

// EvalString is a shortcut to parse and evaluate a string expression against
// the default bindings.
func EvalString(src string, opts ...ContextOption) (Value, error) {
	a, err := Parse(src)
	if err != nil {
		return Value{}, err
	}
	return a.Eval(NewContext(opts...))
}

func (n *node) eval(ctx *Context) (Value, error) {
	switch n.kind {
	case nodeNum:
		return ctx.check(Real(n.val))
	case nodeName:
		v, ok := ctx.vars[n.name]
		if !ok {
			return Value{}, &UndefinedError{Name: n.name, OtherKind: ctx.funcs[n.name] != nil}
		}
		return ctx.check(v)
	case nodeCall:
		fn := ctx.funcs[n.name]
		if fn == nil {
			_, other := ctx.vars[n.name]
			return Value{}, &UndefinedError{Name: n.name, AsFunc: true, OtherKind: other}
		}
		var args []Value
		for l := n.right; l != nil; l = l.right {
			v, err := l.left.eval(ctx)
			if err != nil {
				return Value{}, err
			}
			args = append(args, v)
		}
		if !fn.CanCall(len(args)) {
			return Value{}, &DomainError{Func: n.name, Msg: "cannot be called with " + strconv.Itoa(len(args)) + " arguments"}
		}
		v, err := fn.Call(args)
		if err != nil {
			return Value{}, err
		}
		return ctx.check(v)
	case nodeArr:
		if !ctx.arrays {
			return Value{}, &DomainError{Msg: "vector and matrix values are not permitted in this entry"}
		}
		var elems []Value
		for l := n.right; l != nil; l = l.right {
			v, err := l.left.eval(ctx)
			if err != nil {
				return Value{}, err
			}
			elems = append(elems, v)
		}
		return stack(elems)
	case nodeNeg:
		v, err := n.left.eval(ctx)
		if err != nil {
			return Value{}, err
		}
		return v.Neg(), nil
	case nodeNop:
		return n.left.eval(ctx)
	case nodeAdd, nodeSub, nodeMul, nodeDiv, nodePow:
		l, err := n.left.eval(ctx)
		if err != nil {
			return Value{}, err
		}
		r, err := n.right.eval(ctx)
		if err != nil {
			return Value{}, err
		}
		var v Value
		switch n.kind {
		case nodeAdd:
			v, err = l.Add(r)
		case nodeSub:
			v, err = l.Sub(r)
		case nodeMul:
			v, err = l.Mul(r)
		case nodeDiv:
			v, err = l.Div(r)
		case nodePow:
			v, err = l.Pow(r, ctx.inverses)
		}
		if err != nil {
			return Value{}, err
		}
		return ctx.check(v)
	default:
		panic("numgrade: invalid AST node " + n.kind.String())
	}
}

// stack assembles an array literal's elements: scalars into a vector, and
// same-shaped arrays into an array of one higher rank.
func stack(elems []Value) (Value, error) {
	if len(elems) == 0 {
		panic("numgrade: empty array literal")
	}
	inner := elems[0].Shape()
	for _, e := range elems[1:] {
		if !e.Shape().Equal(inner) {
			return Value{}, &ShapeError{Op: "[", A: inner, B: e.Shape()}
		}
	}
	buf := make([]complex128, 0, len(elems)*inner.Size())
	for _, e := range elems {
		buf = append(buf, e.Items()...)
	}
	shape := append(Shape{len(elems)}, inner...)
	return Value{buf: buf, shape: shape}, nil
}

// check applies the context's overflow policy to a computed value.
func (ctx *Context) check(v Value) (Value, error) {
	if v.hasNaN() {
		return Value{}, &DomainError{Msg: "indeterminate result"}
	}
	if !ctx.allowInf && v.hasInf() {
		return Value{}, &OverflowError{}
	}
	return v, nil
}

// EvalError is implemented by every error that can arise while evaluating a
// well-formed expression against bindings.
type EvalError interface {
	error
	evalError()
}

// UndefinedError is an error from a lookup for a name that is missing from
// the evaluation context.
type UndefinedError struct {
	// Name is the name that was missing.
	Name string
	// AsFunc indicates the name was applied as a function rather than read
	// as a variable.
	AsFunc bool
	// OtherKind indicates the same name is defined as the other kind, which
	// usually means an operator is missing nearby.
	OtherKind bool
}

func (err *UndefinedError) Error() string {
	if err.AsFunc {
		r := strconv.Quote(err.Name) + " is not a defined function"
		if err.OtherKind {
			r += "; a variable of that name exists, is an operator missing before the parenthesis?"
		}
		return r
	}
	r := strconv.Quote(err.Name) + " is not a defined variable"
	if err.OtherKind {
		r += "; a function of that name exists, is a multiplication sign missing?"
	}
	return r
}

func (err *UndefinedError) evalError() {}

// OverflowError is an error indicating a result too large to represent. It
// is reported unless the context allows infinities.
type OverflowError struct{}

func (err *OverflowError) Error() string {
	return "numerical overflow; check your input for very large values"
}

func (err *OverflowError) evalError() {}

var (
	_ EvalError = (*UndefinedError)(nil)
	_ EvalError = (*OverflowError)(nil)
	_ EvalError = (*ShapeError)(nil)
	_ EvalError = (*ZeroDivisionError)(nil)
)
