package numgrade_test

import (
	"math"
	"strings"
	"testing"

	"github.com/quillathe/numgrade"
)

func TestParseTolerance(t *testing.T) {
	cases := []struct {
		name string
		src  string
		tol  numgrade.Tolerance
		bad  bool
	}{
		{"absolute", "1e-6", numgrade.Tolerance{Amount: 1e-6}, false},
		{"percent", "0.5%", numgrade.Tolerance{Amount: 0.5, Percent: true}, false},
		{"spaces", " 2% ", numgrade.Tolerance{Amount: 2, Percent: true}, false},
		{"zero", "0", numgrade.Tolerance{}, false},
		{"negative", "-1", numgrade.Tolerance{}, true},
		{"junk", "lots", numgrade.Tolerance{}, true},
		{"empty", "", numgrade.Tolerance{}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tol, err := numgrade.ParseTolerance(c.src)
			if c.bad {
				if err == nil {
					t.Fatalf("parsing %q did not error", c.src)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tol != c.tol {
				t.Errorf("parsed %q as %v, expected %v", c.src, tol, c.tol)
			}
		})
	}
}

func TestToleranceWithin(t *testing.T) {
	cases := []struct {
		name string
		tol  numgrade.Tolerance
		got  numgrade.Value
		want numgrade.Value
		r    bool
	}{
		{"equal", numgrade.Tolerance{Amount: 0}, numgrade.Real(2), numgrade.Real(2), true},
		{"inside", numgrade.Tolerance{Amount: 0.1}, numgrade.Real(2.05), numgrade.Real(2), true},
		{"boundary", numgrade.Tolerance{Amount: 0.5}, numgrade.Real(2.5), numgrade.Real(2), true},
		{"outside", numgrade.Tolerance{Amount: 0.1}, numgrade.Real(2.2), numgrade.Real(2), false},
		{"pctinside", numgrade.Tolerance{Amount: 1, Percent: true}, numgrade.Real(101), numgrade.Real(100), true},
		{"pctboundary", numgrade.Tolerance{Amount: 1, Percent: true}, numgrade.Real(99), numgrade.Real(100), true},
		{"pctoutside", numgrade.Tolerance{Amount: 1, Percent: true}, numgrade.Real(102), numgrade.Real(100), false},
		{"pctzerowant", numgrade.Tolerance{Amount: 1, Percent: true}, numgrade.Real(1e-300), numgrade.Real(0), false},
		{"pctzeroboth", numgrade.Tolerance{Amount: 1, Percent: true}, numgrade.Real(0), numgrade.Real(0), true},
		{"abszero", numgrade.Tolerance{Amount: 1e-6}, numgrade.Real(1e-9), numgrade.Real(0), true},
		{"complex", numgrade.Tolerance{Amount: 0.2}, numgrade.Scalar(complex(1, 1.1)), numgrade.Scalar(complex(1, 1)), true},
		{"arrays", numgrade.Tolerance{Amount: 0.1}, numgrade.Vector(1, 2.05), numgrade.Vector(1, 2), true},
		{"arrayentry", numgrade.Tolerance{Amount: 0.1}, numgrade.Vector(1, 2.5), numgrade.Vector(1, 2), false},
		{"shapes", numgrade.Tolerance{Amount: 10}, numgrade.Vector(1, 2), numgrade.Vector(1, 2, 3), false},
		{"scalarvsvec", numgrade.Tolerance{Amount: 10}, numgrade.Real(1), numgrade.Vector(1), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.tol.Within(c.got, c.want); got != c.r {
				t.Errorf("Within(%v, %v) with %v = %v", c.got, c.want, c.tol, got)
			}
		})
	}
}

func TestEqualityComparer(t *testing.T) {
	opts := &numgrade.CompareOpts{Tolerance: numgrade.DefaultTolerance}
	c := numgrade.EqualityComparer{}

	r, err := c.Compare(numgrade.Real(2.00001), numgrade.Real(2), opts)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Matched || r.Credit != 1 {
		t.Errorf("near value did not match: %+v", r)
	}

	r, err = c.Compare(numgrade.Real(2.1), numgrade.Real(2), opts)
	if err != nil {
		t.Fatal(err)
	}
	if r.Matched {
		t.Errorf("distant value matched: %+v", r)
	}

	r, err = c.Compare(numgrade.Vector(1, 2), numgrade.Matrix(2, 1, 1, 2), opts)
	if err != nil {
		t.Fatal(err)
	}
	if r.Matched {
		t.Fatal("mismatched shapes matched")
	}
	want := "expected a matrix of shape (rows: 2, cols: 1), received a vector of length 2"
	if r.Note != want {
		t.Errorf("wrong note:\ngot  %q\nwant %q", r.Note, want)
	}
}

func TestCongruenceComparer(t *testing.T) {
	c := numgrade.CongruenceComparer{}
	tau := numgrade.Real(2 * math.Pi)
	opts := &numgrade.CompareOpts{Tolerance: numgrade.DefaultTolerance, Params: []numgrade.Value{tau}}
	cases := []struct {
		name    string
		student float64
		exp     float64
		r       bool
	}{
		{"equal", 1.2, 1.2, true},
		{"plustau", 1.2 + 2*math.Pi, 1.2, true},
		{"minustau", 1.2 - 2*math.Pi, 1.2, true},
		{"manyturns", 0.5 + 10*math.Pi, 0.5, true},
		{"justbelow", 1.2 - 1e-9, 1.2, true},
		{"justabove", 1.2 + 1e-9, 1.2, true},
		{"halfturn", 1.2 + math.Pi, 1.2, false},
		{"off", 2, 1.2, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := c.Compare(numgrade.Real(tc.student), numgrade.Real(tc.exp), opts)
			if err != nil {
				t.Fatal(err)
			}
			if r.Matched != tc.r {
				t.Errorf("%v vs %v mod 2pi: matched %v, expected %v", tc.student, tc.exp, r.Matched, tc.r)
			}
		})
	}

	t.Run("noparam", func(t *testing.T) {
		_, err := c.Compare(numgrade.Real(1), numgrade.Real(1), &numgrade.CompareOpts{Tolerance: numgrade.DefaultTolerance})
		if err == nil {
			t.Error("missing modulus did not error")
		}
	})
	t.Run("badmodulus", func(t *testing.T) {
		bad := &numgrade.CompareOpts{Tolerance: numgrade.DefaultTolerance, Params: []numgrade.Value{numgrade.Real(-1)}}
		_, err := c.Compare(numgrade.Real(1), numgrade.Real(1), bad)
		if err == nil {
			t.Error("negative modulus did not error")
		}
	})
	t.Run("complexstudent", func(t *testing.T) {
		r, err := c.Compare(numgrade.Scalar(complex(1, 1)), numgrade.Real(1), opts)
		if err != nil {
			t.Fatal(err)
		}
		if r.Matched {
			t.Error("complex student value matched a real congruence")
		}
	})
}

func TestLinearComparer(t *testing.T) {
	c := numgrade.LinearComparer{}
	opts := &numgrade.CompareOpts{Tolerance: numgrade.DefaultTolerance}
	expected := []numgrade.Value{numgrade.Real(1), numgrade.Real(2), numgrade.Real(3), numgrade.Real(5), numgrade.Real(8)}
	apply := func(a, b float64) []numgrade.Value {
		out := make([]numgrade.Value, len(expected))
		for i, v := range expected {
			out[i] = numgrade.Real(a*real(v.Complex()) + b)
		}
		return out
	}
	cases := []struct {
		name    string
		a, b    float64
		matched bool
		credit  float64
		note    string
	}{
		{"exact", 1, 0, true, 1, ""},
		{"scaled", 3, 0, true, 0.5, "constant factor"},
		{"offset", 1, 2, true, 0.5, "constant offset"},
		{"linear", 2, -1, true, 0.25, "linear function"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := c.CompareAll(apply(tc.a, tc.b), expected, opts)
			if err != nil {
				t.Fatal(err)
			}
			if r.Matched != tc.matched || r.Credit != tc.credit {
				t.Errorf("student = %v*expected + %v: got %+v", tc.a, tc.b, r)
			}
			if !strings.Contains(r.Note, tc.note) {
				t.Errorf("note %q does not mention %q", r.Note, tc.note)
			}
		})
	}

	t.Run("unrelated", func(t *testing.T) {
		student := []numgrade.Value{numgrade.Real(1), numgrade.Real(4), numgrade.Real(9), numgrade.Real(25), numgrade.Real(64)}
		r, err := c.CompareAll(student, expected, opts)
		if err != nil {
			t.Fatal(err)
		}
		if r.Matched {
			t.Errorf("quadratic relation matched: %+v", r)
		}
	})
	t.Run("credits", func(t *testing.T) {
		cc := numgrade.LinearComparer{ScaleCredit: 0.9, OffsetCredit: 0.8, LinearCredit: 0.1}
		r, err := cc.CompareAll(apply(3, 0), expected, opts)
		if err != nil {
			t.Fatal(err)
		}
		if r.Credit != 0.9 {
			t.Errorf("scale credit = %v, expected 0.9", r.Credit)
		}
	})
	t.Run("singletrial", func(t *testing.T) {
		r, err := c.Compare(numgrade.Real(2), numgrade.Real(2), opts)
		if err != nil {
			t.Fatal(err)
		}
		if !r.Matched || r.Credit != 1 {
			t.Errorf("exact single trial: %+v", r)
		}
		r, err = c.Compare(numgrade.Real(4), numgrade.Real(2), opts)
		if err != nil {
			t.Fatal(err)
		}
		if r.Matched {
			t.Errorf("single trial cannot establish a linear relation: %+v", r)
		}
	})
	t.Run("lengths", func(t *testing.T) {
		if _, err := c.CompareAll(apply(1, 0)[:2], expected, opts); err == nil {
			t.Error("mismatched trial counts did not error")
		}
	})
	t.Run("nonscalar", func(t *testing.T) {
		vs := []numgrade.Value{numgrade.Vector(1, 2), numgrade.Vector(1, 2)}
		if _, err := c.CompareAll(vs, vs, opts); err == nil {
			t.Error("vector values did not error")
		}
	})
	t.Run("constantexpected", func(t *testing.T) {
		// Every expected value identical makes the fit degenerate; an exact
		// match still earns full credit, but no linear tier is identifiable.
		con := []numgrade.Value{numgrade.Real(2), numgrade.Real(2), numgrade.Real(2)}
		r, err := c.CompareAll(con, con, opts)
		if err != nil {
			t.Fatal(err)
		}
		if !r.Matched || r.Credit != 1 {
			t.Errorf("identical constant answer rejected: %+v", r)
		}
		scaled := []numgrade.Value{numgrade.Real(4), numgrade.Real(4), numgrade.Real(4)}
		r, err = c.CompareAll(scaled, con, opts)
		if err != nil {
			t.Fatal(err)
		}
		if r.Matched {
			t.Errorf("scaled constant answer matched without an identifiable relation: %+v", r)
		}
	})
}

func TestVectorSpanComparer(t *testing.T) {
	c := numgrade.VectorSpanComparer{}
	opts := &numgrade.CompareOpts{Tolerance: numgrade.DefaultTolerance}
	e := numgrade.Vector(1, 2, 3)
	cases := []struct {
		name    string
		student numgrade.Value
		r       bool
	}{
		{"same", numgrade.Vector(1, 2, 3), true},
		{"scaled", numgrade.Vector(-2, -4, -6), true},
		{"complexscale", numgrade.Vector(complex(0, 1), complex(0, 2), complex(0, 3)), true},
		{"zero", numgrade.Vector(0, 0, 0), false},
		{"offspan", numgrade.Vector(1, 2, 4), false},
		{"shape", numgrade.Vector(1, 2), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := c.Compare(tc.student, e, opts)
			if err != nil {
				t.Fatal(err)
			}
			if r.Matched != tc.r {
				t.Errorf("%v in span of %v: matched %v, expected %v", tc.student, e, r.Matched, tc.r)
			}
		})
	}

	if _, err := c.Compare(numgrade.Real(1), numgrade.Real(1), opts); err == nil {
		t.Error("scalar expected value did not error")
	}
}

func TestEigenvectorComparer(t *testing.T) {
	c := numgrade.EigenvectorComparer{}
	opts := &numgrade.CompareOpts{Tolerance: numgrade.DefaultTolerance}
	// Diagonal matrix with eigenvalues 2 and 5.
	m := numgrade.Matrix(2, 2, 2, 0, 0, 5)
	cases := []struct {
		name    string
		student numgrade.Value
		r       bool
		note    string
	}{
		{"first", numgrade.Vector(1, 0), true, "eigenvalue 2"},
		{"second", numgrade.Vector(0, -3), true, "eigenvalue 5"},
		{"scaled", numgrade.Vector(7, 0), true, "eigenvalue 2"},
		{"not", numgrade.Vector(1, 1), false, ""},
		{"zero", numgrade.Vector(0, 0), false, "zero vector"},
		{"shape", numgrade.Vector(1, 0, 0), false, "expected a vector of length 2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := c.Compare(tc.student, m, opts)
			if err != nil {
				t.Fatal(err)
			}
			if r.Matched != tc.r {
				t.Errorf("%v as eigenvector of %v: matched %v, expected %v", tc.student, m, r.Matched, tc.r)
			}
			if !strings.Contains(r.Note, tc.note) {
				t.Errorf("note %q does not mention %q", r.Note, tc.note)
			}
		})
	}

	t.Run("rotation", func(t *testing.T) {
		// A rotation has no real eigenvectors, but i-weighted ones exist.
		rot := numgrade.Matrix(2, 2, 0, -1, 1, 0)
		r, err := c.Compare(numgrade.Vector(1, complex(0, -1)), rot, opts)
		if err != nil {
			t.Fatal(err)
		}
		if !r.Matched {
			t.Errorf("complex eigenvector rejected: %+v", r)
		}
		if r.Note != "" {
			t.Errorf("complex eigenvalue carries a real-eigenvalue note: %q", r.Note)
		}
	})
	t.Run("notsquare", func(t *testing.T) {
		if _, err := c.Compare(numgrade.Vector(1, 0), numgrade.Matrix(2, 3, 1, 2, 3, 4, 5, 6), opts); err == nil {
			t.Error("rectangular expected value did not error")
		}
	})
}
