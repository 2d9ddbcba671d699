package numgrade_test

import (
	"errors"
	"math"
	"math/cmplx"
	"regexp"
	"testing"

	"github.com/quillathe/numgrade"
)

// close reports whether two complex scalars agree to a relative few ulps,
// loose enough for transcendental identities.
func close(a, b complex128) bool {
	if a == b {
		return true
	}
	return cmplx.Abs(a-b) <= 1e-12*(1+cmplx.Abs(b))
}

// valuesClose reports whether two values have equal shapes and elementwise
// close entries.
func valuesClose(a, b numgrade.Value) bool {
	if !a.Shape().Equal(b.Shape()) {
		return false
	}
	x, y := a.Items(), b.Items()
	for i := range x {
		if !close(x[i], y[i]) {
			return false
		}
	}
	return true
}

func TestEval(t *testing.T) {
	type vv struct {
		n string
		v complex128
	}
	cases := []struct {
		name string
		src  string
		vars []vv
		r    complex128
	}{
		{"num", "1", nil, 1},
		{"ident", "x", []vv{{"x", 4}}, 4},
		{"plus", "+x", []vv{{"x", 5}}, 5},
		{"neg", "-x", []vv{{"x", 6}}, -6},
		{"add", "4+5+6", nil, 15},
		{"sub", "4-5-6", nil, -7},
		{"mul", "4*5*6", nil, 120},
		{"div", "4/5/6", nil, 4.0 / 5.0 / 6.0},
		{"pow", "4^3^2", nil, 262144},
		{"negpow", "-2^2", nil, -4},
		{"paren", "(4+5)*6", nil, 54},
		{"pi", "pi", nil, complex(math.Pi, 0)},
		{"e", "e", nil, complex(math.E, 0)},
		{"tau", "tau", nil, complex(2*math.Pi, 0)},
		{"i", "i^2", nil, -1},
		{"j", "j*j", nil, -1},
		{"sin", "sin(pi/2)", nil, 1},
		{"cos", "cos(0)", nil, 1},
		{"exp", "exp(1)", nil, complex(math.E, 0)},
		{"ln", "ln(e^3)", nil, 3},
		{"log10", "log10(1000)", nil, 3},
		{"log2", "log2(8)", nil, 3},
		{"sqrt", "sqrt(-1)", nil, complex(0, 1)},
		{"abs", "abs(3+4*i)", nil, 5},
		{"conj", "conj(1+2*i)", nil, complex(1, -2)},
		{"re", "re(3+4*i)", nil, 3},
		{"im", "im(3+4*i)", nil, 4},
		{"sgn", "sgn(-7)", nil, -1},
		{"arctan2", "arctan2(1, 1)", nil, complex(math.Pi/4, 0)},
		{"atan2", "atan2(-1, 0)", nil, complex(-math.Pi/2, 0)},
		{"fact", "fact(4)", nil, 24},
		{"floor", "floor(2.7)", nil, 2},
		{"ceil", "ceil(2.2)", nil, 3},
		{"round", "round(2.5)", nil, 3},
		{"min", "min(3, 1, 2)", nil, 1},
		{"max", "max(3, 1, 2)", nil, 3},
		{"suffix", "50%", nil, 0.5},
		{"subscript", "a_1 + a_{2}", []vv{{"a_1", 2}, {"a_{2}", 3}}, 5},
		{"nested", "sin(x)^2 + cos(x)^2", []vv{{"x", 0.7}}, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var opts []numgrade.ContextOption
			for _, v := range c.vars {
				opts = append(opts, numgrade.SetVar(v.n, numgrade.Scalar(v.v)))
			}
			r, err := numgrade.EvalString(c.src, opts...)
			if err != nil {
				t.Fatalf("error evaluating %q: %v", c.src, err)
			}
			if !r.IsScalar() {
				t.Fatalf("%q evaluated to %v, expected a scalar", c.src, r)
			}
			if !close(r.Complex(), c.r) {
				t.Errorf("%q evaluated to %v, expected %v", c.src, r.Complex(), c.r)
			}
		})
	}
}

func TestEvalArrays(t *testing.T) {
	cases := []struct {
		name string
		src  string
		r    numgrade.Value
	}{
		{"vector", "[1, 2, 3]", numgrade.Vector(1, 2, 3)},
		{"matrix", "[[1, 2], [3, 4]]", numgrade.Matrix(2, 2, 1, 2, 3, 4)},
		{"scale", "2 * [1, 2, 3]", numgrade.Vector(2, 4, 6)},
		{"dot", "[1, 2, 3] * [4, 5, 6]", numgrade.Real(32)},
		{"matvec", "[[1, 2], [3, 4]] * [1, 1]", numgrade.Vector(3, 7)},
		{"vecmat", "[1, 1] * [[1, 2], [3, 4]]", numgrade.Vector(4, 6)},
		{"matmul", "[[1, 2], [3, 4]] * [[0, 1], [1, 0]]", numgrade.Matrix(2, 2, 2, 1, 4, 3)},
		{"divscalar", "[2, 4] / 2", numgrade.Vector(1, 2)},
		{"zeroadd", "0 + [1, 2]", numgrade.Vector(1, 2)},
		{"addzero", "[1, 2] - 0", numgrade.Vector(1, 2)},
		{"negate", "-[1, 2]", numgrade.Vector(-1, -2)},
		{"square", "[[1, 1], [0, 1]]^2", numgrade.Matrix(2, 2, 1, 2, 0, 1)},
		{"power0", "[[3, 1], [2, 5]]^0", numgrade.Matrix(2, 2, 1, 0, 0, 1)},
		{"inverse", "[[2, 0], [0, 4]]^-1", numgrade.Matrix(2, 2, 0.5, 0, 0, 0.25)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r, err := numgrade.EvalString(c.src)
			if err != nil {
				t.Fatalf("error evaluating %q: %v", c.src, err)
			}
			if !valuesClose(r, c.r) {
				t.Errorf("%q evaluated to %v, expected %v", c.src, r, c.r)
			}
		})
	}
}

func TestEvalShapeErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		msg  string
	}{
		{"addmismatch", "[1, 2] + [1, 2, 3]", "cannot add or subtract a vector of length 2 and a vector of length 3"},
		{"addscalar", "1 + [1, 2]", "cannot add or subtract a scalar and a vector of length 2"},
		{"subscalar", "[1, 2] - 1", "cannot add or subtract a vector of length 2 and a scalar"},
		{"dotmismatch", "[1, 2] * [1, 2, 3]", "cannot multiply a vector of length 2 by a vector of length 3"},
		{"matmismatch", "[[1, 2], [3, 4]] * [1, 2, 3]", "cannot multiply a matrix of shape (rows: 2, cols: 2) by a vector of length 3"},
		{"divbyvec", "1 / [1, 2]", "cannot divide a scalar by a vector of length 2"},
		{"powvec", "[1, 2]^2", "cannot raise a vector of length 2 to the power of a scalar"},
		{"ragged", "[[1, 2], [1, 2, 3]]", ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := numgrade.EvalString(c.src)
			var serr *numgrade.ShapeError
			if !errors.As(err, &serr) {
				t.Fatalf("evaluating %q gave %v, expected a shape error", c.src, err)
			}
			if c.msg != "" && serr.Error() != c.msg {
				t.Errorf("wrong message for %q:\ngot  %q\nwant %q", c.src, serr.Error(), c.msg)
			}
		})
	}
}

func TestEvalUndefined(t *testing.T) {
	ctx := numgrade.NewContext(
		numgrade.SetVar("v", numgrade.Real(2)),
		numgrade.SetFunc("f", numgrade.Monadic(func(z complex128) complex128 { return z })),
	)
	cases := []struct {
		name   string
		src    string
		asFunc bool
		msg    string
	}{
		{"var", "y + 1", false, `"y" is not a defined variable`},
		{"varisfunc", "f + 1", false, `"f" is not a defined variable; a function of that name exists, is a multiplication sign missing?`},
		{"func", "mystery(2)", true, `"mystery" is not a defined function`},
		{"funcisvar", "v(2)", true, `"v" is not a defined function; a variable of that name exists, is an operator missing before the parenthesis?`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a, err := numgrade.Parse(c.src)
			if err != nil {
				t.Fatalf("error parsing %q: %v", c.src, err)
			}
			_, err = a.Eval(ctx)
			var uerr *numgrade.UndefinedError
			if !errors.As(err, &uerr) {
				t.Fatalf("evaluating %q gave %v, expected an undefined name error", c.src, err)
			}
			if uerr.AsFunc != c.asFunc {
				t.Errorf("wrong kind for %q: AsFunc=%v, expected %v", c.src, uerr.AsFunc, c.asFunc)
			}
			if uerr.Error() != c.msg {
				t.Errorf("wrong message for %q:\ngot  %q\nwant %q", c.src, uerr.Error(), c.msg)
			}
		})
	}
}

func TestEvalDomainErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		re   string
	}{
		{"arity", "sin(1, 2)", `cannot be called with 2 arguments`},
		{"realonly", "floor(i)", `expected a real number`},
		{"scalaronly", "sin([1, 2])", `expected a scalar, received a vector of length 2`},
		{"fracmatpow", "[[1, 0], [0, 1]]^0.5", `integer power`},
		{"singular", "[[1, 1], [1, 1]]^-1", `not invertible`},
		{"indeterminate", "sgn(0)/sgn(0)", ``},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := numgrade.EvalString(c.src)
			if c.name == "indeterminate" {
				// 0/0 is reported as division by zero, not a domain error.
				var zerr *numgrade.ZeroDivisionError
				if !errors.As(err, &zerr) {
					t.Fatalf("evaluating %q gave %v, expected division by zero", c.src, err)
				}
				return
			}
			var derr *numgrade.DomainError
			if !errors.As(err, &derr) {
				t.Fatalf("evaluating %q gave %v, expected a domain error", c.src, err)
			}
			if ok, _ := regexp.MatchString(c.re, derr.Error()); !ok {
				t.Errorf("wrong message for %q: %q does not match %q", c.src, derr.Error(), c.re)
			}
		})
	}
}

func TestEvalCapabilities(t *testing.T) {
	t.Run("arrays", func(t *testing.T) {
		_, err := numgrade.EvalString("[1, 2]", numgrade.AllowArrays(false))
		var derr *numgrade.DomainError
		if !errors.As(err, &derr) {
			t.Fatalf("got %v, expected a domain error", err)
		}
		want := "vector and matrix values are not permitted in this entry"
		if derr.Error() != want {
			t.Errorf("wrong message:\ngot  %q\nwant %q", derr.Error(), want)
		}
	})
	t.Run("inverses", func(t *testing.T) {
		_, err := numgrade.EvalString("[[2, 0], [0, 4]]^-1", numgrade.AllowInverses(false))
		var derr *numgrade.DomainError
		if !errors.As(err, &derr) {
			t.Fatalf("got %v, expected a domain error", err)
		}
		want := "^: negative matrix powers have been disabled for this problem"
		if derr.Error() != want {
			t.Errorf("wrong message:\ngot  %q\nwant %q", derr.Error(), want)
		}
	})
	t.Run("overflow", func(t *testing.T) {
		_, err := numgrade.EvalString("10^400")
		var oerr *numgrade.OverflowError
		if !errors.As(err, &oerr) {
			t.Fatalf("got %v, expected overflow", err)
		}
		want := "numerical overflow; check your input for very large values"
		if oerr.Error() != want {
			t.Errorf("wrong message:\ngot  %q\nwant %q", oerr.Error(), want)
		}
	})
	t.Run("infinities", func(t *testing.T) {
		r, err := numgrade.EvalString("10^400", numgrade.AllowInfinities(true))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !cmplx.IsInf(r.Complex()) {
			t.Errorf("got %v, expected an infinite result", r)
		}
	})
	t.Run("infconstant", func(t *testing.T) {
		r, err := numgrade.EvalString("-inf", numgrade.AllowInfinities(true))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !cmplx.IsInf(r.Complex()) {
			t.Errorf("got %v, expected an infinite result", r)
		}
		_, err = numgrade.EvalString("inf")
		var oerr *numgrade.OverflowError
		if !errors.As(err, &oerr) {
			t.Fatalf("got %v, expected overflow", err)
		}
	})
	t.Run("hugeliteral", func(t *testing.T) {
		_, err := numgrade.EvalString("1e999")
		var oerr *numgrade.OverflowError
		if !errors.As(err, &oerr) {
			t.Fatalf("got %v, expected overflow", err)
		}
	})
	t.Run("nan", func(t *testing.T) {
		_, err := numgrade.EvalString("10^400 - 10^400", numgrade.AllowInfinities(true))
		var derr *numgrade.DomainError
		if !errors.As(err, &derr) {
			t.Fatalf("got %v, expected a domain error", err)
		}
	})
}

func TestEvalZeroDivision(t *testing.T) {
	_, err := numgrade.EvalString("1/(2-2)")
	var zerr *numgrade.ZeroDivisionError
	if !errors.As(err, &zerr) {
		t.Fatalf("got %v, expected division by zero", err)
	}
	if zerr.Error() != "division by zero" {
		t.Errorf("wrong message: %q", zerr.Error())
	}
}

func TestContextClone(t *testing.T) {
	ctx := numgrade.NewContext(numgrade.SetVar("x", numgrade.Real(1)))
	clone := ctx.Clone(numgrade.SetVar("x", numgrade.Real(2)))
	if v, _ := ctx.Lookup("x"); v.Complex() != 1 {
		t.Errorf("clone option leaked into original: x = %v", v)
	}
	if v, _ := clone.Lookup("x"); v.Complex() != 2 {
		t.Errorf("clone did not apply option: x = %v", v)
	}
	clone.Unbind("x")
	if _, ok := clone.Lookup("x"); ok {
		t.Error("x still bound after Unbind")
	}
	if _, ok := ctx.Lookup("x"); !ok {
		t.Error("Unbind on clone removed x from original")
	}
	clone.Bind("y", numgrade.Real(3))
	if _, ok := ctx.Lookup("y"); ok {
		t.Error("Bind on clone leaked into original")
	}
	if ctx.Func("sin") == nil {
		t.Error("default context is missing sin")
	}
	if clone.Func("sin") == nil {
		t.Error("clone is missing sin")
	}
}

func BenchmarkEval(b *testing.B) {
	a, err := numgrade.Parse("sin(x)^2 + cos(x)^2 + exp(-x^2/2)")
	if err != nil {
		b.Fatal(err)
	}
	ctx := numgrade.NewContext(numgrade.SetVar("x", numgrade.Real(0.5)))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := a.Eval(ctx); err != nil {
			b.Fatal(err)
		}
	}
}
