package numgrade

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
)

// NewFormulaGrader returns a grader for scalar formula answers in the given
// variables. Vector and matrix values are rejected.
func NewFormulaGrader(answer string, vars ...string) (*Grader, error) {
	return New(Config{
		Answer:        answer,
		Variables:     vars,
		DisableArrays: true,
	})
}

// NewNumericalGrader returns a grader for a single numeric answer with no
// free variables. One trial suffices, and the default tolerance is looser to
// absorb rounding in hand computation.
func NewNumericalGrader(answer string) (*Grader, error) {
	return New(Config{
		Answer:        answer,
		Samples:       1,
		Tolerance:     Tolerance{Amount: 0.1, Percent: true},
		DisableArrays: true,
	})
}

// NewMatrixGrader returns a grader for vector and matrix answers, with the
// matrix function set (trans, ctrans, det, trace, norm, cross) available.
func NewMatrixGrader(answer string, vars ...string) (*Grader, error) {
	return New(Config{
		Answer:        answer,
		Variables:     vars,
		UserFunctions: MatrixFuncs(),
	})
}

// SumGrader grades a summand formula. Both the student's and the
// instructor's terms are summed numerically over the index range and the
// sums compared, so algebraically different but equal summands are accepted.
type SumGrader struct {
	g     *Grader
	index string
	lo    float64
	hi    float64
	terms int
}

// NewSumGrader returns a grader summing the terms of cfg.Answer over the
// index variable from lo to hi inclusive in integer steps. An infinite hi is
// truncated to maxTerms terms; maxTerms zero means 1000.
func NewSumGrader(cfg Config, index string, lo, hi float64, maxTerms int) (*SumGrader, error) {
	if index == "" {
		return nil, confErrf("sum", "no index variable given")
	}
	if lo != math.Trunc(lo) {
		return nil, confErrf("sum", "lower bound %v is not an integer", lo)
	}
	if hi < lo {
		return nil, confErrf("sum", "summation range [%v, %v] is empty", lo, hi)
	}
	if maxTerms < 0 {
		return nil, confErrf("sum", "term limit %d is negative", maxTerms)
	}
	if maxTerms == 0 {
		maxTerms = 1000
	}
	if math.IsInf(hi, 1) {
		hi = lo + float64(maxTerms-1)
	}
	g, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return &SumGrader{g: g, index: index, lo: lo, hi: hi, terms: maxTerms}, nil
}

// Grade grades a submitted summand. Seeding follows Grader.Grade.
func (s *SumGrader) Grade(answer string) (GradeResult, error) {
	return s.GradeSeeded(answer, deriveSeed(s.g.p.cfg.Answer, answer))
}

// GradeSeeded grades a submitted summand with an explicit random seed.
func (s *SumGrader) GradeSeeded(answer string, seed uint64) (GradeResult, error) {
	eval := func(ex *Expr, ctx *Context) (Value, error) {
		var sum complex128
		for k := s.lo; k <= s.hi; k++ {
			ctx.Bind(s.index, Real(k))
			v, err := ex.Eval(ctx)
			if err != nil {
				return Value{}, err
			}
			if !v.IsScalar() {
				return Value{}, &ShapeError{Op: "+", A: Shape(nil), B: v.Shape()}
			}
			sum += v.Complex()
		}
		ctx.Unbind(s.index)
		return Scalar(sum), nil
	}
	return s.g.gradeQuadrature(answer, seed, eval)
}

// IntegralGrader grades an integrand formula. Both integrands are integrated
// numerically by Simpson's rule over the bounds and the results compared.
type IntegralGrader struct {
	g        *Grader
	variable string
	lo       float64
	hi       float64
	steps    int
}

// NewIntegralGrader returns a grader integrating cfg.Answer over the named
// variable from lo to hi. Infinite bounds are truncated to the window
// [-window, window]; window zero means 10. steps is the even Simpson step
// count, zero means 256.
func NewIntegralGrader(cfg Config, variable string, lo, hi, window float64, steps int) (*IntegralGrader, error) {
	if variable == "" {
		return nil, confErrf("integral", "no integration variable given")
	}
	if steps < 0 || steps%2 != 0 {
		return nil, confErrf("integral", "step count %d is not a positive even number", steps)
	}
	if steps == 0 {
		steps = 256
	}
	if window == 0 {
		window = 10
	}
	if window < 0 {
		return nil, confErrf("integral", "truncation window %v is negative", window)
	}
	if math.IsInf(lo, -1) {
		lo = -window
	}
	if math.IsInf(hi, 1) {
		hi = window
	}
	if hi <= lo {
		return nil, confErrf("integral", "integration range [%v, %v] is empty", lo, hi)
	}
	g, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return &IntegralGrader{g: g, variable: variable, lo: lo, hi: hi, steps: steps}, nil
}

// Grade grades a submitted integrand. Seeding follows Grader.Grade.
func (ig *IntegralGrader) Grade(answer string) (GradeResult, error) {
	return ig.GradeSeeded(answer, deriveSeed(ig.g.p.cfg.Answer, answer))
}

// GradeSeeded grades a submitted integrand with an explicit random seed.
func (ig *IntegralGrader) GradeSeeded(answer string, seed uint64) (GradeResult, error) {
	eval := func(ex *Expr, ctx *Context) (Value, error) {
		at := func(x float64) (complex128, error) {
			ctx.Bind(ig.variable, Real(x))
			v, err := ex.Eval(ctx)
			if err != nil {
				return 0, err
			}
			if !v.IsScalar() {
				return 0, &ShapeError{Op: "+", A: Shape(nil), B: v.Shape()}
			}
			return v.Complex(), nil
		}
		h := (ig.hi - ig.lo) / float64(ig.steps)
		var sum complex128
		for i := 0; i <= ig.steps; i++ {
			y, err := at(ig.lo + float64(i)*h)
			if err != nil {
				return Value{}, err
			}
			switch {
			case i == 0 || i == ig.steps:
				sum += y
			case i%2 == 1:
				sum += 4 * y
			default:
				sum += 2 * y
			}
		}
		ctx.Unbind(ig.variable)
		return Scalar(sum * complex(h/3, 0)), nil
	}
	return ig.g.gradeQuadrature(answer, seed, eval)
}

// gradeQuadrature runs the standard trial loop, but evaluates both
// expressions through eval, which may bind extra variables and evaluate
// repeatedly.
func (g *Grader) gradeQuadrature(answer string, seed uint64, eval func(*Expr, *Context) (Value, error)) (GradeResult, error) {
	ex, err := g.cache.parse(answer)
	if err != nil {
		return GradeResult{Kind: ResultInvalid, Message: err.Error()}, nil
	}
	if name, ok := g.usesInstructorVar(ex); ok {
		return GradeResult{
			Kind:    ResultIncorrect,
			Message: fmt.Sprintf("the name %s is not available in answers", name),
		}, nil
	}
	p := g.p
	instructorOnly := make(map[string]bool, len(p.cfg.InstructorVars))
	for _, n := range p.cfg.InstructorVars {
		instructorOnly[n] = true
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	trials := make([]trial, p.samples)
	for t := range trials {
		instructorCtx, bindings, err := g.sampleTrial(ex, rng)
		if err != nil {
			return GradeResult{}, err
		}
		expected, err := eval(p.answer, instructorCtx)
		if err != nil {
			return GradeResult{}, &ConfigError{
				Field: "answer",
				Err:   fmt.Errorf("evaluating %s: %w", p.answer.Source(), err),
			}
		}
		studentCtx := instructorCtx.Clone()
		for n := range instructorOnly {
			studentCtx.Unbind(n)
			delete(bindings, n)
		}
		student, serr := eval(ex, studentCtx)
		trials[t] = trial{
			student:  student,
			expected: expected,
			err:      serr,
			bindings: bindings,
		}
	}
	return g.judge(ex, trials)
}

func deriveSeed(expected, answer string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(expected))
	h.Write([]byte{0})
	h.Write([]byte(answer))
	return h.Sum64()
}
