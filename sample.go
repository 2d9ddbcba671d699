package numgrade

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// A Sampler draws random values for a variable. Implementations must be
// deterministic given the rng state so that grading is reproducible under a
// fixed seed.
type Sampler interface {
	Sample(rng *rand.Rand) Value
}

// A FuncSampler draws random functions rather than values.
type FuncSampler interface {
	SampleFunc(rng *rand.Rand) Func
}

// checker is implemented by samplers with parameters that can be invalid.
// Configuration validation consults it before any trial runs.
type checker interface {
	check() error
}

// RealInterval samples reals uniformly from [Lo, Hi]. The zero value is not
// useful; DefaultSampler returns the standard range.
type RealInterval struct {
	Lo, Hi float64
}

// DefaultSampler returns the sampler used for variables with no explicit
// sampling rule: reals uniform on [1, 5].
func DefaultSampler() Sampler {
	return RealInterval{Lo: 1, Hi: 5}
}

func (s RealInterval) Sample(rng *rand.Rand) Value {
	u := distuv.Uniform{Min: s.Lo, Max: s.Hi, Src: rng}
	return Real(u.Rand())
}

func (s RealInterval) check() error {
	if !(s.Lo <= s.Hi) {
		return fmt.Errorf("real interval [%v, %v] is empty", s.Lo, s.Hi)
	}
	return nil
}

// IntegerRange samples integers uniformly from {Lo, ..., Hi}, inclusive on
// both ends.
type IntegerRange struct {
	Lo, Hi int64
}

func (s IntegerRange) Sample(rng *rand.Rand) Value {
	n := s.Lo + rng.Int64N(s.Hi-s.Lo+1)
	return Real(float64(n))
}

func (s IntegerRange) check() error {
	if s.Lo > s.Hi {
		return fmt.Errorf("integer range [%d, %d] is empty", s.Lo, s.Hi)
	}
	return nil
}

// ComplexRectangle samples complex numbers uniformly from an axis-aligned
// rectangle in the complex plane.
type ComplexRectangle struct {
	ReLo, ReHi float64
	ImLo, ImHi float64
}

func (s ComplexRectangle) Sample(rng *rand.Rand) Value {
	re := distuv.Uniform{Min: s.ReLo, Max: s.ReHi, Src: rng}
	im := distuv.Uniform{Min: s.ImLo, Max: s.ImHi, Src: rng}
	return Scalar(complex(re.Rand(), im.Rand()))
}

func (s ComplexRectangle) check() error {
	if !(s.ReLo <= s.ReHi) || !(s.ImLo <= s.ImHi) {
		return fmt.Errorf("complex rectangle [%v, %v] x [%v, %v] is empty", s.ReLo, s.ReHi, s.ImLo, s.ImHi)
	}
	return nil
}

// ComplexSector samples complex numbers uniformly in modulus and argument
// from an annular sector. Arguments are in radians.
type ComplexSector struct {
	RLo, RHi     float64
	ArgLo, ArgHi float64
}

func (s ComplexSector) Sample(rng *rand.Rand) Value {
	r := distuv.Uniform{Min: s.RLo, Max: s.RHi, Src: rng}.Rand()
	a := distuv.Uniform{Min: s.ArgLo, Max: s.ArgHi, Src: rng}.Rand()
	return Scalar(cmplx.Rect(r, a))
}

func (s ComplexSector) check() error {
	if s.RLo < 0 {
		return fmt.Errorf("complex sector has negative modulus bound %v", s.RLo)
	}
	if !(s.RLo <= s.RHi) || !(s.ArgLo <= s.ArgHi) {
		return fmt.Errorf("complex sector [%v, %v] x [%v, %v] is empty", s.RLo, s.RHi, s.ArgLo, s.ArgHi)
	}
	return nil
}

// DiscreteSet samples uniformly from a fixed list of values.
type DiscreteSet struct {
	Values []Value
}

func (s DiscreteSet) Sample(rng *rand.Rand) Value {
	return s.Values[rng.IntN(len(s.Values))]
}

func (s DiscreteSet) check() error {
	if len(s.Values) == 0 {
		return fmt.Errorf("discrete sample set is empty")
	}
	return nil
}

// RealVectors samples vectors of length Len with entries drawn from Entry.
// A nil Entry uses the default real interval.
type RealVectors struct {
	Len   int
	Entry Sampler
}

func (s RealVectors) Sample(rng *rand.Rand) Value {
	entry := s.Entry
	if entry == nil {
		entry = DefaultSampler()
	}
	buf := make([]complex128, s.Len)
	for i := range buf {
		buf[i] = entry.Sample(rng).c
	}
	return Value{buf: buf, shape: Shape{s.Len}}
}

func (s RealVectors) check() error {
	if s.Len <= 0 {
		return fmt.Errorf("vector length %d is not positive", s.Len)
	}
	return checkEntry(s.Entry)
}

// RealMatrices samples Rows x Cols matrices with entries drawn from Entry.
// A nil Entry uses the default real interval.
type RealMatrices struct {
	Rows, Cols int
	Entry      Sampler
}

func (s RealMatrices) Sample(rng *rand.Rand) Value {
	entry := s.Entry
	if entry == nil {
		entry = DefaultSampler()
	}
	buf := make([]complex128, s.Rows*s.Cols)
	for i := range buf {
		buf[i] = entry.Sample(rng).c
	}
	return Value{buf: buf, shape: Shape{s.Rows, s.Cols}}
}

func (s RealMatrices) check() error {
	if s.Rows <= 0 || s.Cols <= 0 {
		return fmt.Errorf("matrix shape %dx%d is not positive", s.Rows, s.Cols)
	}
	return checkEntry(s.Entry)
}

func checkEntry(entry Sampler) error {
	if c, ok := entry.(checker); ok {
		if err := c.check(); err != nil {
			return fmt.Errorf("entry sampler: %w", err)
		}
	}
	return nil
}

// IdentityMatrixMultiples samples scalar multiples of the N x N identity
// matrix, with the scale drawn from Scale. A nil Scale uses the default real
// interval.
type IdentityMatrixMultiples struct {
	N     int
	Scale Sampler
}

func (s IdentityMatrixMultiples) Sample(rng *rand.Rand) Value {
	scale := s.Scale
	if scale == nil {
		scale = DefaultSampler()
	}
	c := scale.Sample(rng).c
	buf := make([]complex128, s.N*s.N)
	for i := 0; i < s.N; i++ {
		buf[i*s.N+i] = c
	}
	return Value{buf: buf, shape: Shape{s.N, s.N}}
}

func (s IdentityMatrixMultiples) check() error {
	if s.N <= 0 {
		return fmt.Errorf("identity multiple size %d is not positive", s.N)
	}
	return checkEntry(s.Scale)
}

// OrthogonalMatrices samples N x N real orthogonal matrices, uniformly with
// respect to Haar measure.
type OrthogonalMatrices struct {
	N int
}

func (s OrthogonalMatrices) Sample(rng *rand.Rand) Value {
	n := s.N
	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a.Set(i, j, norm.Rand())
		}
	}
	var qr mat.QR
	qr.Factorize(a)
	var q, r mat.Dense
	qr.QTo(&q)
	qr.RTo(&r)
	// Fixing the signs of Q's columns by the signs of R's diagonal makes the
	// distribution Haar uniform rather than QR-implementation dependent.
	buf := make([]complex128, n*n)
	for j := 0; j < n; j++ {
		sign := 1.0
		if r.At(j, j) < 0 {
			sign = -1
		}
		for i := 0; i < n; i++ {
			buf[i*n+j] = complex(sign*q.At(i, j), 0)
		}
	}
	return Value{buf: buf, shape: Shape{n, n}}
}

func (s OrthogonalMatrices) check() error {
	if s.N <= 0 {
		return fmt.Errorf("orthogonal matrix size %d is not positive", s.N)
	}
	return nil
}

// UnitaryMatrices samples N x N complex unitary matrices, uniformly with
// respect to Haar measure.
type UnitaryMatrices struct {
	N int
}

func (s UnitaryMatrices) Sample(rng *rand.Rand) Value {
	n := s.N
	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}
	cols := make([][]complex128, n)
	for j := range cols {
		col := make([]complex128, n)
		for i := range col {
			col[i] = complex(norm.Rand(), norm.Rand())
		}
		// Gram-Schmidt against the previous columns. gonum's QR is real-only,
		// so the complex case is orthonormalized by hand.
		for _, prev := range cols[:j] {
			var dot complex128
			for i := range col {
				dot += cmplx.Conj(prev[i]) * col[i]
			}
			for i := range col {
				col[i] -= dot * prev[i]
			}
		}
		nrm := 0.0
		for _, z := range col {
			nrm += real(z)*real(z) + imag(z)*imag(z)
		}
		nrm = math.Sqrt(nrm)
		for i := range col {
			col[i] /= complex(nrm, 0)
		}
		cols[j] = col
	}
	buf := make([]complex128, n*n)
	for j, col := range cols {
		for i, z := range col {
			buf[i*n+j] = z
		}
	}
	return Value{buf: buf, shape: Shape{n, n}}
}

func (s UnitaryMatrices) check() error {
	if s.N <= 0 {
		return fmt.Errorf("unitary matrix size %d is not positive", s.N)
	}
	return nil
}

// DependentSampler computes a variable from other sampled variables by
// evaluating a formula. The dependencies are the formula's free variables;
// configuration validation orders dependent samplers topologically and
// rejects cycles.
type DependentSampler struct {
	src  string
	expr *Expr
}

// Depend parses formula and returns a sampler that evaluates it against the
// other bindings of the trial.
func Depend(formula string, opts ...ParseOption) (*DependentSampler, error) {
	ex, err := Parse(formula, opts...)
	if err != nil {
		return nil, err
	}
	return &DependentSampler{src: formula, expr: ex}, nil
}

// Sample implements Sampler. Dependent samplers never draw from the rng;
// grading resolves them through Resolve with the trial's bindings instead.
func (s *DependentSampler) Sample(rng *rand.Rand) Value {
	panic("numgrade: dependent sampler evaluated without bindings")
}

// Deps returns the names the formula depends on, sorted.
func (s *DependentSampler) Deps() []string {
	return s.expr.Vars()
}

// Resolve evaluates the formula in ctx, which must bind every dependency.
func (s *DependentSampler) Resolve(ctx *Context) (Value, error) {
	return s.expr.Eval(ctx)
}

// Source returns the formula text.
func (s *DependentSampler) Source() string {
	return s.src
}

// RandomFunction samples smooth random functions built as sums of sinusoids,
// rescaled so the amplitude over [0, 2pi] lands in [AmpLo, AmpHi]. Terms
// controls the number of sinusoids; zero means 3.
type RandomFunction struct {
	AmpLo, AmpHi float64
	Terms        int
}

func (s RandomFunction) SampleFunc(rng *rand.Rand) Func {
	terms := s.Terms
	if terms == 0 {
		terms = 3
	}
	amps := make([]float64, terms)
	phases := make([]float64, terms)
	u := distuv.Uniform{Min: -1, Max: 1, Src: rng}
	ph := distuv.Uniform{Min: 0, Max: 2 * math.Pi, Src: rng}
	for i := range amps {
		amps[i] = u.Rand()
		phases[i] = ph.Rand()
	}
	raw := func(x float64) float64 {
		y := 0.0
		for k := range amps {
			y += amps[k] * math.Sin(float64(k+1)*x+phases[k])
		}
		return y
	}
	// Amplitude estimated on a grid over one period, then rescaled into the
	// requested band.
	peak := 0.0
	for i := 0; i < 256; i++ {
		if a := math.Abs(raw(2 * math.Pi * float64(i) / 256)); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		peak = 1
	}
	target := distuv.Uniform{Min: s.AmpLo, Max: s.AmpHi, Src: rng}.Rand()
	scale := complex(target/peak, 0)
	return Monadic(func(z complex128) complex128 {
		var y complex128
		for k := range amps {
			y += complex(amps[k], 0) * cmplx.Sin(complex(float64(k+1), 0)*z+complex(phases[k], 0))
		}
		return scale * y
	})
}

func (s RandomFunction) check() error {
	if !(0 < s.AmpLo && s.AmpLo <= s.AmpHi) {
		return fmt.Errorf("random function amplitude band [%v, %v] is empty or not positive", s.AmpLo, s.AmpHi)
	}
	if s.Terms < 0 {
		return fmt.Errorf("random function term count %d is negative", s.Terms)
	}
	return nil
}

// SpecificFunctions samples uniformly from a list of named functions. Names
// not in the default function set must be supplied in Extra.
type SpecificFunctions struct {
	Names []string
	Extra map[string]Func
}

func (s SpecificFunctions) SampleFunc(rng *rand.Rand) Func {
	name := s.Names[rng.IntN(len(s.Names))]
	if fn, ok := s.Extra[name]; ok {
		return fn
	}
	return defaultFuncs[name]
}

func (s SpecificFunctions) check() error {
	if len(s.Names) == 0 {
		return fmt.Errorf("function sample set is empty")
	}
	for _, name := range s.Names {
		if _, ok := s.Extra[name]; ok {
			continue
		}
		if _, ok := defaultFuncs[name]; !ok {
			return fmt.Errorf("function sample set names unknown function %q", name)
		}
	}
	return nil
}

var (
	_ Sampler = RealInterval{}
	_ Sampler = IntegerRange{}
	_ Sampler = ComplexRectangle{}
	_ Sampler = ComplexSector{}
	_ Sampler = DiscreteSet{}
	_ Sampler = RealVectors{}
	_ Sampler = RealMatrices{}
	_ Sampler = IdentityMatrixMultiples{}
	_ Sampler = OrthogonalMatrices{}
	_ Sampler = UnitaryMatrices{}
	_ Sampler = (*DependentSampler)(nil)

	_ FuncSampler = RandomFunction{}
	_ FuncSampler = SpecificFunctions{}
)
