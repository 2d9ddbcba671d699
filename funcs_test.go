package numgrade_test

import (
	"errors"
	"math"
	"testing"

	"github.com/quillathe/numgrade"
)

func TestNewFunc(t *testing.T) {
	hypot := numgrade.NewFunc(2, func(args []numgrade.Value) (numgrade.Value, error) {
		a, b := args[0].Complex(), args[1].Complex()
		return numgrade.Real(math.Hypot(real(a), real(b))), nil
	})
	if hypot.CanCall(1) || !hypot.CanCall(2) || hypot.CanCall(3) {
		t.Error("wrong arity for a two-argument function")
	}
	r, err := numgrade.EvalString("hypot(3, 4)", numgrade.SetFunc("hypot", hypot))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Complex() != 5 {
		t.Errorf("hypot(3, 4) = %v, expected 5", r.Complex())
	}
}

func TestVariadic(t *testing.T) {
	sum := numgrade.Variadic(func(zs []complex128) (complex128, error) {
		var s complex128
		for _, z := range zs {
			s += z
		}
		return s, nil
	})
	if sum.CanCall(0) {
		t.Error("variadic function callable with no arguments")
	}
	for _, n := range []int{1, 2, 5} {
		if !sum.CanCall(n) {
			t.Errorf("variadic function not callable with %d arguments", n)
		}
	}
	r, err := numgrade.EvalString("total(1, 2, 3, 4)", numgrade.SetFunc("total", sum))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Complex() != 10 {
		t.Errorf("total(1, 2, 3, 4) = %v, expected 10", r.Complex())
	}
	_, err = numgrade.EvalString("total(1, [2, 3])", numgrade.SetFunc("total", sum))
	var derr *numgrade.DomainError
	if !errors.As(err, &derr) {
		t.Fatalf("array argument gave %v, expected a domain error", err)
	}
	if derr.Arg != 2 {
		t.Errorf("error names argument %d, expected 2", derr.Arg)
	}
}

func TestWithDomain(t *testing.T) {
	// A binomial coefficient wants two integer inputs.
	binom := numgrade.WithDomain("binom",
		numgrade.NewFunc(2, func(args []numgrade.Value) (numgrade.Value, error) {
			n, k := real(args[0].Complex()), real(args[1].Complex())
			r := math.Gamma(n+1) / (math.Gamma(k+1) * math.Gamma(n-k+1))
			return numgrade.Real(math.Round(r)), nil
		}),
		numgrade.ArgSpec{Integer: true},
		numgrade.ArgSpec{Integer: true},
	)
	opt := numgrade.SetFunc("binom", binom)

	r, err := numgrade.EvalString("binom(5, 2)", opt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Complex() != 10 {
		t.Errorf("binom(5, 2) = %v, expected 10", r.Complex())
	}

	cases := []struct {
		name string
		src  string
		msg  string
	}{
		{"second", "binom(5, 2.5)", "binom: 1st input is ok: a scalar; 2nd input has an error: expected an integer"},
		{"first", "binom(i, 2)", "binom: 1st input has an error: expected an integer; 2nd input is ok: a scalar"},
		{"both", "binom([1, 2], 2.5)", "binom: 1st input has an error: expected a scalar, received a vector of length 2; 2nd input has an error: expected an integer"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := numgrade.EvalString(c.src, opt)
			var derr *numgrade.DomainError
			if !errors.As(err, &derr) {
				t.Fatalf("evaluating %q gave %v, expected a domain error", c.src, err)
			}
			if derr.Error() != c.msg {
				t.Errorf("wrong message for %q:\ngot  %q\nwant %q", c.src, derr.Error(), c.msg)
			}
		})
	}
}

func TestArgSpecShapes(t *testing.T) {
	angle := numgrade.WithDomain("angle",
		numgrade.NewFunc(2, func(args []numgrade.Value) (numgrade.Value, error) {
			u, v := args[0].Items(), args[1].Items()
			var dot, uu, vv float64
			for i := range u {
				dot += real(u[i]) * real(v[i])
				uu += real(u[i]) * real(u[i])
				vv += real(v[i]) * real(v[i])
			}
			return numgrade.Real(math.Acos(dot / math.Sqrt(uu*vv))), nil
		}),
		numgrade.ArgSpec{Shape: numgrade.Shape{3}, Real: true},
		numgrade.ArgSpec{Shape: numgrade.Shape{3}, Real: true},
	)
	opt := numgrade.SetFunc("angle", angle)

	r, err := numgrade.EvalString("angle([1, 0, 0], [0, 1, 0])", opt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !close(r.Complex(), complex(math.Pi/2, 0)) {
		t.Errorf("angle of orthogonal vectors = %v, expected pi/2", r.Complex())
	}

	_, err = numgrade.EvalString("angle([1, 0], [0, 1, 0])", opt)
	var derr *numgrade.DomainError
	if !errors.As(err, &derr) {
		t.Fatalf("short vector gave %v, expected a domain error", err)
	}
	want := "angle: 1st input has an error: expected a vector of length 3, received a vector of length 2; 2nd input is ok: a vector of length 3"
	if derr.Error() != want {
		t.Errorf("wrong message:\ngot  %q\nwant %q", derr.Error(), want)
	}

	_, err = numgrade.EvalString("angle([i, 0, 0], [0, 1, 0])", opt)
	if !errors.As(err, &derr) {
		t.Fatalf("complex entries gave %v, expected a domain error", err)
	}
	want = "angle: 1st input has an error: expected real entries; 2nd input is ok: a vector of length 3"
	if derr.Error() != want {
		t.Errorf("wrong message:\ngot  %q\nwant %q", derr.Error(), want)
	}
}

func TestMatrixFuncs(t *testing.T) {
	opt := numgrade.SetFuncs(numgrade.MatrixFuncs())
	cases := []struct {
		name string
		src  string
		r    numgrade.Value
	}{
		{"trans", "trans([[1, 2], [3, 4]])", numgrade.Matrix(2, 2, 1, 3, 2, 4)},
		{"transwide", "trans([[1, 2, 3], [4, 5, 6]])", numgrade.Matrix(3, 2, 1, 4, 2, 5, 3, 6)},
		{"ctrans", "ctrans([[i, 2], [3, 4*i]])", numgrade.Matrix(2, 2, complex(0, -1), 3, 2, complex(0, -4))},
		{"det", "det([[1, 2], [3, 4]])", numgrade.Real(-2)},
		{"detsingular", "det([[1, 2], [2, 4]])", numgrade.Real(0)},
		{"det3", "det([[2, 0, 0], [0, 3, 0], [0, 0, 4]])", numgrade.Real(24)},
		{"trace", "trace([[1, 2], [3, 4]])", numgrade.Real(5)},
		{"normvec", "norm([3, 4])", numgrade.Real(5)},
		{"normscalar", "norm(-3)", numgrade.Real(3)},
		{"normcomplex", "norm([3*i, 4])", numgrade.Real(5)},
		{"cross", "cross([1, 0, 0], [0, 1, 0])", numgrade.Vector(0, 0, 1)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r, err := numgrade.EvalString(c.src, opt)
			if err != nil {
				t.Fatalf("error evaluating %q: %v", c.src, err)
			}
			if !valuesClose(r, c.r) {
				t.Errorf("%q evaluated to %v, expected %v", c.src, r, c.r)
			}
		})
	}

	errcases := []struct {
		name string
		src  string
		msg  string
	}{
		{"transscalar", "trans(3)", "trans: argument 1: expected a matrix, received a scalar"},
		{"detvec", "det([1, 2])", "det: argument 1: expected a square matrix, received a vector of length 2"},
		{"detwide", "det([[1, 2, 3], [4, 5, 6]])", "det: argument 1: expected a square matrix, received a matrix of shape (rows: 2, cols: 3)"},
		{"tracewide", "trace([[1, 2, 3], [4, 5, 6]])", "trace: argument 1: expected a square matrix, received a matrix of shape (rows: 2, cols: 3)"},
		{"crossshort", "cross([1, 0], [0, 1, 0])", "cross: argument 1: expected a vector of length 3, received a vector of length 2"},
	}
	for _, c := range errcases {
		t.Run(c.name, func(t *testing.T) {
			_, err := numgrade.EvalString(c.src, opt)
			var derr *numgrade.DomainError
			if !errors.As(err, &derr) {
				t.Fatalf("evaluating %q gave %v, expected a domain error", c.src, err)
			}
			if derr.Error() != c.msg {
				t.Errorf("wrong message for %q:\ngot  %q\nwant %q", c.src, derr.Error(), c.msg)
			}
		})
	}
}

func TestSetFuncsRemoval(t *testing.T) {
	_, err := numgrade.EvalString("sin(1)", numgrade.SetFuncs(map[string]numgrade.Func{"sin": nil}))
	var uerr *numgrade.UndefinedError
	if !errors.As(err, &uerr) {
		t.Fatalf("removed function gave %v, expected an undefined name error", err)
	}
	if !uerr.AsFunc {
		t.Error("error does not identify a function application")
	}
}
