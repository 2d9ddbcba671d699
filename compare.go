package numgrade

import (
	"fmt"
	"math"
	"math/cmplx"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

// Tolerance is the allowed distance between a student value and the expected
// value. A percentage tolerance is relative to the magnitude of the expected
// value; against an expected value of exactly zero it degrades to exact
// equality.
type Tolerance struct {
	// Amount is the absolute distance, or the percentage when Percent is set.
	Amount float64
	// Percent marks Amount as a percentage of the expected magnitude.
	Percent bool
}

// DefaultTolerance is the tolerance used when a problem specifies none.
var DefaultTolerance = Tolerance{Amount: 0.01, Percent: true}

// ParseTolerance parses a tolerance like "1e-6" or "0.5%".
func ParseTolerance(s string) (Tolerance, error) {
	s = strings.TrimSpace(s)
	pct := strings.HasSuffix(s, "%")
	x, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil || x < 0 {
		return Tolerance{}, fmt.Errorf("invalid tolerance %q", s)
	}
	return Tolerance{Amount: x, Percent: pct}, nil
}

func (t Tolerance) String() string {
	s := strconv.FormatFloat(t.Amount, 'g', -1, 64)
	if t.Percent {
		s += "%"
	}
	return s
}

// within reports whether got is within tolerance of want. The boundary is
// inclusive.
func (t Tolerance) within(got, want complex128) bool {
	if t.Percent {
		if want == 0 {
			return got == 0
		}
		return cmplx.Abs(got-want) <= t.Amount/100*cmplx.Abs(want)
	}
	return cmplx.Abs(got-want) <= t.Amount
}

// Within reports whether got is within tolerance of want, entrywise for
// arrays. Values of different shapes are never within tolerance.
func (t Tolerance) Within(got, want Value) bool {
	if !got.shape.Equal(want.shape) {
		return false
	}
	if got.IsScalar() {
		return t.within(got.c, want.c)
	}
	for i := range want.buf {
		if !t.within(got.buf[i], want.buf[i]) {
			return false
		}
	}
	return true
}

// Comparison is the verdict of a comparer for one answer entry.
type Comparison struct {
	// Matched reports whether the student value is accepted at all.
	Matched bool
	// Credit is the awarded fraction in [0, 1]. A matched comparison may
	// still award partial credit.
	Credit float64
	// Note is an optional student-facing remark about how the value matched
	// or failed to.
	Note string
}

// CompareOpts carries the problem settings a comparer may consult.
type CompareOpts struct {
	// Tolerance is the matching tolerance.
	Tolerance Tolerance
	// Params are comparer-specific parameters from the problem configuration.
	Params []Value
}

// A Comparer decides whether a student value matches the expected value in
// one trial. Grading requires every trial to match and awards the minimum
// credit across trials.
type Comparer interface {
	Compare(student, expected Value, opts *CompareOpts) (Comparison, error)
}

// A CorrelatedComparer considers all trials at once. Grading buffers the
// per-trial values and calls CompareAll after the last trial, so relations
// across trials (such as a linear dependence) can be detected.
type CorrelatedComparer interface {
	CompareAll(student, expected []Value, opts *CompareOpts) (Comparison, error)
}

// EqualityComparer matches values equal to the expected value within
// tolerance. It is the default comparer.
type EqualityComparer struct{}

func (EqualityComparer) Compare(student, expected Value, opts *CompareOpts) (Comparison, error) {
	if !student.shape.Equal(expected.shape) {
		return Comparison{Note: "expected " + expected.shape.String() + ", received " + student.shape.String()}, nil
	}
	if !opts.Tolerance.Within(student, expected) {
		return Comparison{}, nil
	}
	return Comparison{Matched: true, Credit: 1}, nil
}

// CongruenceComparer matches real values congruent to the expected value
// modulo a parameter. The modulus is the first comparer parameter.
type CongruenceComparer struct{}

func (CongruenceComparer) Compare(student, expected Value, opts *CompareOpts) (Comparison, error) {
	if len(opts.Params) < 1 {
		return Comparison{}, fmt.Errorf("congruence comparison requires a modulus parameter")
	}
	m := opts.Params[0]
	if !m.IsScalar() || imag(m.c) != 0 || real(m.c) <= 0 {
		return Comparison{}, fmt.Errorf("congruence modulus must be a positive real number")
	}
	if !student.IsScalar() || !expected.IsScalar() {
		return Comparison{}, fmt.Errorf("congruence comparison requires scalar values")
	}
	if imag(student.c) != 0 || imag(expected.c) != 0 {
		return Comparison{}, nil
	}
	mod := real(m.c)
	d := math.Mod(real(student.c)-real(expected.c), mod)
	if d < 0 {
		d += mod
	}
	// The residue is near 0 or near the modulus when the values agree. A
	// percentage tolerance is taken relative to the modulus so that residues
	// on either side of zero are treated alike.
	tol := opts.Tolerance.Amount
	if opts.Tolerance.Percent {
		tol = tol / 100 * mod
	}
	if d <= tol || mod-d <= tol {
		return Comparison{Matched: true, Credit: 1}, nil
	}
	return Comparison{}, nil
}

// LinearComparer matches scalar answers related to the expected answer by a
// linear map across all trials. An exact match earns full credit; answers
// off by a constant factor, a constant offset, or a general linear relation
// earn the configured partial credit.
type LinearComparer struct {
	// ScaleCredit is awarded when student = a*expected for a constant a.
	// Zero means 0.5.
	ScaleCredit float64
	// OffsetCredit is awarded when student = expected + b for a constant b.
	// Zero means 0.5.
	OffsetCredit float64
	// LinearCredit is awarded for a general relation student = a*expected + b.
	// Zero means 0.25.
	LinearCredit float64
}

// Compare handles a lone trial. One point cannot distinguish the linear
// tiers, so a single trial only ever matches exactly.
func (c LinearComparer) Compare(student, expected Value, opts *CompareOpts) (Comparison, error) {
	return EqualityComparer{}.Compare(student, expected, opts)
}

func (c LinearComparer) CompareAll(student, expected []Value, opts *CompareOpts) (Comparison, error) {
	n := len(student)
	if n == 0 || n != len(expected) {
		return Comparison{}, fmt.Errorf("linear comparison requires matching trial counts")
	}
	ss := make([]complex128, n)
	es := make([]complex128, n)
	for i := range student {
		if !student[i].IsScalar() || !expected[i].IsScalar() {
			return Comparison{}, fmt.Errorf("linear comparison requires scalar values")
		}
		ss[i], es[i] = student[i].c, expected[i].c
	}
	a, b, ok := fitLinear(ss, es)
	if !ok {
		// Identical expected values in every trial leave no linear relation
		// to identify, so only an exact match can be granted.
		for i := range ss {
			if !opts.Tolerance.within(ss[i], es[i]) {
				return Comparison{}, nil
			}
		}
		return Comparison{Matched: true, Credit: 1}, nil
	}
	for i := range ss {
		if !opts.Tolerance.within(ss[i], a*es[i]+b) {
			return Comparison{}, nil
		}
	}
	one := opts.Tolerance.within(a, 1)
	// b is tested against zero shifted to 1 so a percentage tolerance stays
	// meaningful rather than degrading to exact equality.
	zero := opts.Tolerance.within(b+1, 1)
	switch {
	case one && zero:
		return Comparison{Matched: true, Credit: 1}, nil
	case zero:
		return Comparison{
			Matched: true,
			Credit:  defaultCredit(c.ScaleCredit, 0.5),
			Note:    "your answer differs from the expected answer by a constant factor",
		}, nil
	case one:
		return Comparison{
			Matched: true,
			Credit:  defaultCredit(c.OffsetCredit, 0.5),
			Note:    "your answer differs from the expected answer by a constant offset",
		}, nil
	default:
		return Comparison{
			Matched: true,
			Credit:  defaultCredit(c.LinearCredit, 0.25),
			Note:    "your answer is a linear function of the expected answer",
		}, nil
	}
}

func defaultCredit(x, def float64) float64 {
	if x == 0 {
		return def
	}
	return x
}

// fitLinear solves the least squares fit s = a*e + b over the trials. ok is
// false when the system is degenerate, which happens when every expected
// value is identical.
func fitLinear(s, e []complex128) (a, b complex128, ok bool) {
	n := complex(float64(len(e)), 0)
	var see, se, ses, ss complex128
	for i := range e {
		see += cmplx.Conj(e[i]) * e[i]
		se += e[i]
		ses += cmplx.Conj(e[i]) * s[i]
		ss += s[i]
	}
	det := see*n - cmplx.Conj(se)*se
	if cmplx.Abs(det) < 1e-12 {
		return 0, 0, false
	}
	a = (ses*n - cmplx.Conj(se)*ss) / det
	b = (see*ss - se*ses) / det
	return a, b, true
}

// VectorSpanComparer matches vectors lying in the span of the expected
// vector. Both the zero vector and vectors pointing elsewhere fail.
type VectorSpanComparer struct{}

func (VectorSpanComparer) Compare(student, expected Value, opts *CompareOpts) (Comparison, error) {
	if expected.shape.Rank() != 1 {
		return Comparison{}, fmt.Errorf("span comparison requires a vector expected value, got %s", expected.shape)
	}
	if !student.shape.Equal(expected.shape) {
		return Comparison{Note: "expected " + expected.shape.String() + ", received " + student.shape.String()}, nil
	}
	a, ok := projectScale(student.buf, expected.buf)
	if !ok || a == 0 {
		return Comparison{}, nil
	}
	for i := range expected.buf {
		if !opts.Tolerance.within(student.buf[i], a*expected.buf[i]) {
			return Comparison{}, nil
		}
	}
	return Comparison{Matched: true, Credit: 1}, nil
}

// projectScale returns the least squares scale a minimizing |s - a*e|.
func projectScale(s, e []complex128) (complex128, bool) {
	var num, den complex128
	for i := range e {
		num += cmplx.Conj(e[i]) * s[i]
		den += cmplx.Conj(e[i]) * e[i]
	}
	if den == 0 {
		return 0, false
	}
	return num / den, true
}

// EigenvectorComparer matches vectors that are eigenvectors of the expected
// matrix. The expected value is the matrix; the student answer is a nonzero
// vector v with Mv parallel to v within tolerance.
type EigenvectorComparer struct{}

func (EigenvectorComparer) Compare(student, expected Value, opts *CompareOpts) (Comparison, error) {
	if expected.shape.Rank() != 2 || expected.shape[0] != expected.shape[1] {
		return Comparison{}, fmt.Errorf("eigenvector comparison requires a square matrix expected value, got %s", expected.shape)
	}
	n := expected.shape[0]
	if !student.shape.Equal(Shape{n}) {
		return Comparison{Note: "expected a vector of length " + strconv.Itoa(n) + ", received " + student.shape.String()}, nil
	}
	var norm float64
	for _, z := range student.buf {
		norm += real(z)*real(z) + imag(z)*imag(z)
	}
	if norm == 0 {
		return Comparison{Note: "the zero vector is not an eigenvector"}, nil
	}
	mv, err := expected.Mul(student)
	if err != nil {
		return Comparison{}, err
	}
	lambda, ok := projectScale(mv.buf, student.buf)
	if !ok {
		return Comparison{}, nil
	}
	// The Rayleigh quotient gives the candidate eigenvalue; the match holds
	// when Mv stays within tolerance of lambda*v, scaled to the vector's
	// magnitude so tiny eigenvectors are not trivially accepted.
	scale := math.Sqrt(norm)
	for i := range student.buf {
		got := mv.buf[i] / complex(scale, 0)
		want := lambda * student.buf[i] / complex(scale, 0)
		if !absWithin(opts.Tolerance, got, want, cmplx.Abs(lambda)) {
			return Comparison{}, nil
		}
	}
	note := ""
	if ev, ok := realEigenvalues(expected); ok {
		best, dist := 0.0, math.Inf(1)
		for _, x := range ev {
			if d := math.Abs(x - real(lambda)); d < dist {
				best, dist = x, d
			}
		}
		if scalar.EqualWithinAbs(best, real(lambda), 1e-6*(1+math.Abs(best))) {
			note = fmt.Sprintf("eigenvector for eigenvalue %.6g", best)
		}
	}
	return Comparison{Matched: true, Credit: 1, Note: note}, nil
}

// absWithin compares entrywise with a percentage tolerance applied to the
// eigenvalue magnitude instead of the entry, since entries of an eigenvector
// may legitimately be zero.
func absWithin(t Tolerance, got, want complex128, mag float64) bool {
	if t.Percent {
		return cmplx.Abs(got-want) <= t.Amount/100*math.Max(mag, 1)
	}
	return cmplx.Abs(got-want) <= t.Amount
}

// realEigenvalues returns the real eigenvalues of m when its entries are
// real and all eigenvalues are real. Complex matrices return ok false.
func realEigenvalues(m Value) ([]float64, bool) {
	n := m.shape[0]
	data := make([]float64, len(m.buf))
	for i, z := range m.buf {
		if imag(z) != 0 {
			return nil, false
		}
		data[i] = real(z)
	}
	var eig mat.Eigen
	if !eig.Factorize(mat.NewDense(n, n, data), mat.EigenNone) {
		return nil, false
	}
	vals := eig.Values(nil)
	out := make([]float64, 0, len(vals))
	for _, z := range vals {
		if imag(z) != 0 {
			return nil, false
		}
		out = append(out, real(z))
	}
	return out, true
}

var (
	_ Comparer           = EqualityComparer{}
	_ Comparer           = CongruenceComparer{}
	_ Comparer           = LinearComparer{}
	_ CorrelatedComparer = LinearComparer{}
	_ Comparer           = VectorSpanComparer{}
	_ Comparer           = EigenvectorComparer{}
)
