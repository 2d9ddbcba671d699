package numgrade

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Func is a function callable from an expression. Functions receive fully
// evaluated argument values and return a single value.
type Func interface {
	// Call evaluates the function. args has a length for which CanCall
	// returned true. Call must not modify the elements of args.
	Call(args []Value) (Value, error)

	// CanCall reports whether the function accepts n arguments. The parser
	// does not consult arities; a mismatch surfaces during evaluation.
	CanCall(n int) bool
}

// DomainError is an evaluation error indicating that a function received an
// input outside its domain, or that an operation has no result for its
// operands.
type DomainError struct {
	// Func is the name of the function or operation that failed.
	Func string
	// Arg is the 1-based index of the offending argument, or 0 when the
	// error concerns the call as a whole.
	Arg int
	// Msg describes the problem.
	Msg string
}

func (err *DomainError) Error() string {
	if err.Arg > 0 {
		return fmt.Sprintf("%s: argument %d: %s", err.Func, err.Arg, err.Msg)
	}
	if err.Func != "" {
		return err.Func + ": " + err.Msg
	}
	return err.Msg
}

func (err *DomainError) evalError() {}

// Monadic is a Func taking exactly one scalar argument.
type Monadic func(z complex128) complex128

// Call implements Func.
func (f Monadic) Call(args []Value) (Value, error) {
	if !args[0].IsScalar() {
		return Value{}, &DomainError{Arg: 1, Msg: "expected a scalar, received " + args[0].shape.String()}
	}
	return Scalar(f(args[0].c)), nil
}

// CanCall implements Func.
func (f Monadic) CanCall(n int) bool { return n == 1 }

// realMonadic is a Func taking one real scalar argument. Arguments with a
// nonzero imaginary part are rejected.
type realMonadic struct {
	name string
	f    func(x float64) float64
}

func (f realMonadic) Call(args []Value) (Value, error) {
	if !args[0].IsScalar() {
		return Value{}, &DomainError{Func: f.name, Arg: 1, Msg: "expected a scalar, received " + args[0].shape.String()}
	}
	z := args[0].c
	if imag(z) != 0 {
		return Value{}, &DomainError{Func: f.name, Arg: 1, Msg: "expected a real number"}
	}
	return Real(f.f(real(z))), nil
}

func (f realMonadic) CanCall(n int) bool { return n == 1 }

// realDyadic is a Func taking two real scalar arguments.
type realDyadic struct {
	name string
	f    func(x, y float64) float64
}

func (f realDyadic) Call(args []Value) (Value, error) {
	var xs [2]float64
	for i, a := range args {
		if !a.IsScalar() {
			return Value{}, &DomainError{Func: f.name, Arg: i + 1, Msg: "expected a scalar, received " + a.shape.String()}
		}
		if imag(a.c) != 0 {
			return Value{}, &DomainError{Func: f.name, Arg: i + 1, Msg: "expected a real number"}
		}
		xs[i] = real(a.c)
	}
	return Real(f.f(xs[0], xs[1])), nil
}

func (f realDyadic) CanCall(n int) bool { return n == 2 }

// Variadic is a Func accepting one or more scalar arguments.
type Variadic func(zs []complex128) (complex128, error)

// Call implements Func.
func (f Variadic) Call(args []Value) (Value, error) {
	zs := make([]complex128, len(args))
	for i, a := range args {
		if !a.IsScalar() {
			return Value{}, &DomainError{Arg: i + 1, Msg: "expected a scalar, received " + a.shape.String()}
		}
		zs[i] = a.c
	}
	z, err := f(zs)
	if err != nil {
		return Value{}, err
	}
	return Scalar(z), nil
}

// CanCall implements Func.
func (f Variadic) CanCall(n int) bool { return n >= 1 }

// funcOf adapts an arbitrary value function with a fixed arity.
type funcOf struct {
	arity int
	f     func(args []Value) (Value, error)
}

func (f funcOf) Call(args []Value) (Value, error) { return f.f(args) }
func (f funcOf) CanCall(n int) bool               { return n == f.arity }

// NewFunc wraps f as a Func callable with exactly arity arguments.
func NewFunc(arity int, f func(args []Value) (Value, error)) Func {
	return funcOf{arity: arity, f: f}
}

// ArgSpec describes the value a wrapped function expects in one argument
// position. The zero ArgSpec accepts any scalar.
type ArgSpec struct {
	// Shape is the required shape. Nil requires a scalar.
	Shape Shape
	// Real requires the argument to have no imaginary part.
	Real bool
	// Integer requires the argument to be a real integer.
	Integer bool
}

func (s ArgSpec) check(v Value) string {
	if !s.Shape.Equal(v.shape) {
		return "expected " + s.Shape.String() + ", received " + v.shape.String()
	}
	if s.Integer {
		if !v.IsScalar() || imag(v.c) != 0 || real(v.c) != math.Trunc(real(v.c)) {
			return "expected an integer"
		}
	} else if s.Real {
		if !v.IsScalar() {
			for _, z := range v.buf {
				if imag(z) != 0 {
					return "expected real entries"
				}
			}
		} else if imag(v.c) != 0 {
			return "expected a real number"
		}
	}
	return ""
}

// domainFunc wraps a Func with per-argument input validation.
type domainFunc struct {
	name string
	spec []ArgSpec
	fn   Func
}

// WithDomain returns a Func that validates each argument against spec before
// delegating to fn. A failed check produces a DomainError describing every
// argument position, so the caller can see which inputs were accepted and
// which were not.
func WithDomain(name string, fn Func, spec ...ArgSpec) Func {
	return domainFunc{name: name, spec: spec, fn: fn}
}

func (f domainFunc) CanCall(n int) bool { return n == len(f.spec) }

func (f domainFunc) Call(args []Value) (Value, error) {
	bad := false
	for i, s := range f.spec {
		if s.check(args[i]) != "" {
			bad = true
			break
		}
	}
	if bad {
		msg := ""
		for i, s := range f.spec {
			if i > 0 {
				msg += "; "
			}
			if p := s.check(args[i]); p != "" {
				msg += fmt.Sprintf("%s input has an error: %s", ordinal(i+1), p)
			} else {
				msg += fmt.Sprintf("%s input is ok: %s", ordinal(i+1), args[i].shape.String())
			}
		}
		return Value{}, &DomainError{Func: f.name, Msg: msg}
	}
	return f.fn.Call(args)
}

func ordinal(n int) string {
	switch n {
	case 1:
		return "1st"
	case 2:
		return "2nd"
	case 3:
		return "3rd"
	}
	return fmt.Sprintf("%dth", n)
}

func fact(x float64) float64 {
	return math.Gamma(x + 1)
}

func minmax(wantMax bool) Variadic {
	return func(zs []complex128) (complex128, error) {
		name := "min"
		if wantMax {
			name = "max"
		}
		r := 0.0
		for i, z := range zs {
			if imag(z) != 0 {
				return 0, &DomainError{Func: name, Arg: i + 1, Msg: "expected a real number"}
			}
			x := real(z)
			if i == 0 || (wantMax && x > r) || (!wantMax && x < r) {
				r = x
			}
		}
		return complex(r, 0), nil
	}
}

var defaultFuncs = map[string]Func{
	"sin": Monadic(cmplx.Sin),
	"cos": Monadic(cmplx.Cos),
	"tan": Monadic(cmplx.Tan),
	"sec": Monadic(func(z complex128) complex128 { return 1 / cmplx.Cos(z) }),
	"csc": Monadic(func(z complex128) complex128 { return 1 / cmplx.Sin(z) }),
	"cot": Monadic(cmplx.Cot),

	"arcsin":  Monadic(cmplx.Asin),
	"arccos":  Monadic(cmplx.Acos),
	"arctan":  Monadic(cmplx.Atan),
	"asin":    Monadic(cmplx.Asin),
	"acos":    Monadic(cmplx.Acos),
	"atan":    Monadic(cmplx.Atan),
	"arctan2": realDyadic{"arctan2", math.Atan2},
	"atan2":   realDyadic{"atan2", math.Atan2},

	"sinh": Monadic(cmplx.Sinh),
	"cosh": Monadic(cmplx.Cosh),
	"tanh": Monadic(cmplx.Tanh),

	"arcsinh": Monadic(cmplx.Asinh),
	"arccosh": Monadic(cmplx.Acosh),
	"arctanh": Monadic(cmplx.Atanh),

	"exp":   Monadic(cmplx.Exp),
	"ln":    Monadic(cmplx.Log),
	"log":   Monadic(cmplx.Log),
	"log10": Monadic(cmplx.Log10),
	"log2":  Monadic(func(z complex128) complex128 { return cmplx.Log(z) / complex(math.Ln2, 0) }),
	"sqrt":  Monadic(cmplx.Sqrt),

	"abs":  Monadic(func(z complex128) complex128 { return complex(cmplx.Abs(z), 0) }),
	"arg":  Monadic(func(z complex128) complex128 { return complex(cmplx.Phase(z), 0) }),
	"conj": Monadic(cmplx.Conj),
	"re":   Monadic(func(z complex128) complex128 { return complex(real(z), 0) }),
	"im":   Monadic(func(z complex128) complex128 { return complex(imag(z), 0) }),
	"sgn": Monadic(func(z complex128) complex128 {
		if z == 0 {
			return 0
		}
		return z / complex(cmplx.Abs(z), 0)
	}),

	"fact":      realMonadic{"fact", fact},
	"factorial": realMonadic{"factorial", fact},
	"floor":     realMonadic{"floor", math.Floor},
	"ceil":      realMonadic{"ceil", math.Ceil},
	"round":     realMonadic{"round", math.Round},

	"min": minmax(false),
	"max": minmax(true),
}

var defaultFuncNames = sortedKeys(defaultFuncs)

var defaultConstants = map[string]Value{
	"e":   Real(math.E),
	"pi":  Real(math.Pi),
	"i":   Scalar(complex(0, 1)),
	"j":   Scalar(complex(0, 1)),
	"tau": Real(2 * math.Pi),
	// inf is usable only in entries that allow infinite values; elsewhere
	// reading it reports overflow like any other infinite result.
	"inf": Real(math.Inf(1)),
}

// matrixFunc is an operation on a single array argument.
type matrixFunc func(v Value) (Value, error)

func (f matrixFunc) Call(args []Value) (Value, error) { return f(args[0]) }
func (f matrixFunc) CanCall(n int) bool               { return n == 1 }

// MatrixFuncs returns the array-valued function set: transposition,
// conjugate transposition, determinant, trace, norm and cross product.
// These are installed by the matrix grading preset.
func MatrixFuncs() map[string]Func {
	return map[string]Func{
		"trans":  matrixFunc(transpose),
		"ctrans": matrixFunc(ctranspose),
		"det":    matrixFunc(determinant),
		"trace":  matrixFunc(trace),
		"norm":   matrixFunc(vnorm),
		"cross":  NewFunc(2, cross),
	}
}

func transpose(v Value) (Value, error) {
	if v.shape.Rank() != 2 {
		return Value{}, &DomainError{Func: "trans", Arg: 1, Msg: "expected a matrix, received " + v.shape.String()}
	}
	r, c := v.shape[0], v.shape[1]
	buf := make([]complex128, len(v.buf))
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			buf[j*r+i] = v.buf[i*c+j]
		}
	}
	return Value{buf: buf, shape: Shape{c, r}}, nil
}

func ctranspose(v Value) (Value, error) {
	t, err := transpose(v)
	if err != nil {
		return Value{}, &DomainError{Func: "ctrans", Arg: 1, Msg: "expected a matrix, received " + v.shape.String()}
	}
	for i, z := range t.buf {
		t.buf[i] = cmplx.Conj(z)
	}
	return t, nil
}

func determinant(v Value) (Value, error) {
	if v.shape.Rank() != 2 || v.shape[0] != v.shape[1] {
		return Value{}, &DomainError{Func: "det", Arg: 1, Msg: "expected a square matrix, received " + v.shape.String()}
	}
	n := v.shape[0]
	a := make([]complex128, len(v.buf))
	copy(a, v.buf)
	det := complex(1, 0)
	for col := 0; col < n; col++ {
		pivot := -1
		best := 0.0
		for r := col; r < n; r++ {
			if m := cmplx.Abs(a[r*n+col]); m > best {
				best, pivot = m, r
			}
		}
		if pivot < 0 || best == 0 {
			return Scalar(0), nil
		}
		if pivot != col {
			for j := 0; j < n; j++ {
				a[col*n+j], a[pivot*n+j] = a[pivot*n+j], a[col*n+j]
			}
			det = -det
		}
		p := a[col*n+col]
		det *= p
		for r := col + 1; r < n; r++ {
			f := a[r*n+col] / p
			for j := col; j < n; j++ {
				a[r*n+j] -= f * a[col*n+j]
			}
		}
	}
	return Scalar(det), nil
}

func trace(v Value) (Value, error) {
	if v.shape.Rank() != 2 || v.shape[0] != v.shape[1] {
		return Value{}, &DomainError{Func: "trace", Arg: 1, Msg: "expected a square matrix, received " + v.shape.String()}
	}
	n := v.shape[0]
	var t complex128
	for i := 0; i < n; i++ {
		t += v.buf[i*n+i]
	}
	return Scalar(t), nil
}

func vnorm(v Value) (Value, error) {
	if v.IsScalar() {
		return Real(cmplx.Abs(v.c)), nil
	}
	s := 0.0
	for _, z := range v.buf {
		s += real(z)*real(z) + imag(z)*imag(z)
	}
	return Real(math.Sqrt(s)), nil
}

func cross(args []Value) (Value, error) {
	want := Shape{3}
	for i, a := range args {
		if !a.shape.Equal(want) {
			return Value{}, &DomainError{Func: "cross", Arg: i + 1, Msg: "expected a vector of length 3, received " + a.shape.String()}
		}
	}
	u, v := args[0].buf, args[1].buf
	return NewArray(Shape{3}, []complex128{
		u[1]*v[2] - u[2]*v[1],
		u[2]*v[0] - u[0]*v[2],
		u[0]*v[1] - u[1]*v[0],
	}), nil
}

var (
	_ Func = Monadic(nil)
	_ Func = realMonadic{}
	_ Func = Variadic(nil)
	_ Func = funcOf{}
	_ Func = domainFunc{}
	_ Func = matrixFunc(nil)

	_ EvalError = (*DomainError)(nil)
)
