package numgrade

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

// ResultKind classifies a grading verdict.
type ResultKind string

const (
	// ResultCorrect means the answer matched in every trial with full
	// credit.
	ResultCorrect ResultKind = "correct"
	// ResultPartial means the answer matched with partial credit.
	ResultPartial ResultKind = "partial"
	// ResultIncorrect means the answer evaluated but did not match.
	ResultIncorrect ResultKind = "incorrect"
	// ResultInvalid means the answer could not be parsed.
	ResultInvalid ResultKind = "invalid"
	// ResultEvalFailed means the answer could not be evaluated.
	ResultEvalFailed ResultKind = "eval_error"
	// ResultForbidden means the answer matched numerically but uses a
	// function the problem forbids.
	ResultForbidden ResultKind = "forbidden"
)

// GradeResult is the verdict for one submitted answer.
type GradeResult struct {
	// Matched reports whether the answer is accepted.
	Matched bool
	// Credit is the awarded fraction in [0, 1].
	Credit float64
	// Kind classifies the verdict.
	Kind ResultKind
	// Message is student-facing feedback. It is empty for plainly correct
	// answers.
	Message string
}

// A Grader grades free-form answers against one configured answer entry.
// A Grader is safe to reuse across submissions; parsed expressions are
// cached.
type Grader struct {
	p     *problem
	cache *astCache
}

// New validates cfg and returns a grader for it. Configuration problems
// return a *ConfigError.
func New(cfg Config) (*Grader, error) {
	p, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	size := cfg.CacheSize
	if size == 0 {
		size = 128
	}
	cache, err := newASTCache(size, p.parseOpts...)
	if err != nil {
		return nil, &ConfigError{Field: "cache_size", Err: err}
	}
	return &Grader{p: p, cache: cache}, nil
}

// Issues returns non-fatal findings from configuration validation.
func (g *Grader) Issues() []Issue {
	return append([]Issue(nil), g.p.issues...)
}

// Grade grades a submitted answer. The trials are seeded from the answer
// text, so regrading the same submission always yields the same verdict.
// The returned error is non-nil only for problem configuration faults
// discovered during grading, such as an instructor answer that fails to
// evaluate.
func (g *Grader) Grade(answer string) (GradeResult, error) {
	return g.grade(answer, deriveSeed(g.p.cfg.Answer, answer), g.p.samples)
}

// GradeSeeded grades a submitted answer with an explicit random seed.
func (g *Grader) GradeSeeded(answer string, seed uint64) (GradeResult, error) {
	return g.grade(answer, seed, g.p.samples)
}

// GradeTrials grades a submitted answer over an explicit number of trials in
// place of the problem's configured sample count. Counts below one fall back
// to the configured count.
func (g *Grader) GradeTrials(answer string, trials int) (GradeResult, error) {
	if trials < 1 {
		trials = g.p.samples
	}
	return g.grade(answer, deriveSeed(g.p.cfg.Answer, answer), trials)
}

func (g *Grader) grade(answer string, seed uint64, samples int) (GradeResult, error) {
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

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	trials, cfgErr := g.runTrials(ex, rng, samples)
	if cfgErr != nil {
		return GradeResult{}, cfgErr
	}
	return g.judge(ex, trials)
}

// trial is the outcome of evaluating one sampled binding set.
type trial struct {
	student  Value
	expected Value
	params   []Value
	err      error
	bindings map[string]Value
}

func (g *Grader) usesInstructorVar(ex *Expr) (string, bool) {
	for _, n := range g.p.cfg.InstructorVars {
		if containsName(ex.Vars(), n) {
			return n, true
		}
	}
	return "", false
}

// sampleTrial draws one trial's bindings and returns the instructor context
// holding them. Dependent sampler failures are configuration errors.
func (g *Grader) sampleTrial(ex *Expr, rng *rand.Rand) (*Context, map[string]Value, error) {
	p := g.p
	bindings := make(map[string]Value, len(p.order))
	funcs := make(map[string]Func, len(p.cfg.UserFunctions)+len(p.cfg.RandomFunctions))
	for n, fn := range p.cfg.UserFunctions {
		funcs[n] = fn
	}
	for n, fs := range p.cfg.RandomFunctions {
		funcs[n] = fs.SampleFunc(rng)
	}

	ctx := NewContext(
		SetVars(p.cfg.UserConstants),
		SetFuncs(funcs),
		AllowInfinities(p.cfg.AllowInfinities),
		AllowArrays(!p.cfg.DisableArrays),
		AllowInverses(!p.cfg.DisableInverses),
	)
	for _, n := range p.order {
		s := p.samplers[n]
		var v Value
		if dep, ok := s.(*DependentSampler); ok {
			dv, err := dep.Resolve(ctx)
			if err != nil {
				return nil, nil, &ConfigError{
					Field: "sample_from",
					Err:   fmt.Errorf("variable %q: formula %s: %w", n, dep.Source(), err),
				}
			}
			v = dv
		} else {
			v = s.Sample(rng)
		}
		bindings[n] = v
		ctx.Bind(n, v)
	}
	if err := g.bindNumbered(ex, bindings, ctx, rng); err != nil {
		return nil, nil, err
	}
	return ctx, bindings, nil
}

// runTrials samples and evaluates every trial. Student evaluation errors are
// recorded per trial; instructor evaluation errors abort with a
// *ConfigError.
func (g *Grader) runTrials(ex *Expr, rng *rand.Rand, samples int) ([]trial, error) {
	p := g.p
	instructorOnly := make(map[string]bool, len(p.cfg.InstructorVars))
	for _, n := range p.cfg.InstructorVars {
		instructorOnly[n] = true
	}

	trials := make([]trial, samples)
	for t := range trials {
		instructorCtx, bindings, err := g.sampleTrial(ex, rng)
		if err != nil {
			return nil, err
		}

		expected, err := p.answer.Eval(instructorCtx)
		if err != nil {
			return nil, &ConfigError{
				Field: "answer",
				Err:   fmt.Errorf("evaluating %s: %w", p.answer.Source(), err),
			}
		}
		params := make([]Value, len(p.params))
		for i, pe := range p.params {
			pv, err := pe.Eval(instructorCtx)
			if err != nil {
				return nil, &ConfigError{
					Field: "comparer_params[" + strconv.Itoa(i) + "]",
					Err:   fmt.Errorf("evaluating %s: %w", pe.Source(), err),
				}
			}
			params[i] = pv
		}

		studentCtx := instructorCtx.Clone()
		for n := range instructorOnly {
			studentCtx.Unbind(n)
			delete(bindings, n)
		}
		student, serr := ex.Eval(studentCtx)
		trials[t] = trial{
			student:  student,
			expected: expected,
			params:   params,
			err:      serr,
			bindings: bindings,
		}
	}
	return trials, nil
}

// bindNumbered samples every numbered variable instance the submitted or
// expected expressions mention. Distinct spellings of the same index, such
// as a_1 and a_{1}, share a value.
func (g *Grader) bindNumbered(ex *Expr, bindings map[string]Value, ctx *Context, rng *rand.Rand) error {
	p := g.p
	if len(p.cfg.NumberedVars) == 0 {
		return nil
	}
	names := map[string]bool{}
	for _, n := range ex.Vars() {
		names[n] = true
	}
	for _, n := range p.answer.Vars() {
		names[n] = true
	}
	for _, pe := range p.params {
		for _, n := range pe.Vars() {
			names[n] = true
		}
	}
	byIndex := map[string][]string{}
	for _, n := range sortedKeys(names) {
		base, idx, ok := numberedName(n)
		if !ok || !containsName(p.cfg.NumberedVars, base) {
			continue
		}
		key := base + "\x00" + idx
		byIndex[key] = append(byIndex[key], n)
	}
	for _, key := range sortedKeys(byIndex) {
		base, _, _ := strings.Cut(key, "\x00")
		s := p.cfg.SampleFrom[base]
		if s == nil {
			s = DefaultSampler()
		}
		v := s.Sample(rng)
		for _, n := range byIndex[key] {
			bindings[n] = v
			ctx.Bind(n, v)
		}
	}
	return nil
}

// numberedName splits a name like a_3 or a_{-2} into its base and index.
func numberedName(name string) (base, idx string, ok bool) {
	base, idx, found := strings.Cut(name, "_")
	if !found || base == "" || idx == "" {
		return "", "", false
	}
	if strings.HasPrefix(idx, "{") && strings.HasSuffix(idx, "}") {
		idx = idx[1 : len(idx)-1]
	}
	if _, err := strconv.Atoi(idx); err != nil {
		return "", "", false
	}
	return base, idx, true
}

// judge turns the trial outcomes into a verdict.
func (g *Grader) judge(ex *Expr, trials []trial) (GradeResult, error) {
	p := g.p
	var failed []trial
	var ok []trial
	for _, t := range trials {
		if t.err != nil {
			failed = append(failed, t)
		} else {
			ok = append(ok, t)
		}
	}
	switch {
	case len(ok) == 0:
		// The answer fails in every trial, so the fault is in the answer
		// itself rather than an unlucky sample. Report it without spending
		// the failure budget.
		return GradeResult{
			Kind:    ResultEvalFailed,
			Message: g.evalMessage(failed[0]),
		}, nil
	case len(failed) > p.failable:
		return GradeResult{
			Kind: ResultEvalFailed,
			Message: "your answer could not be evaluated for some inputs: " +
				g.evalMessage(failed[0]),
		}, nil
	}

	cmp, err := g.compare(ok)
	if err != nil {
		return GradeResult{}, &ConfigError{Field: "comparer", Err: err}
	}
	if !cmp.Matched {
		res := GradeResult{Kind: ResultIncorrect, Message: cmp.Note}
		if res.Message == "" {
			res.Message = "your answer does not match the expected answer"
		}
		return res, nil
	}
	if name, ok := g.forbiddenCall(ex); ok {
		return GradeResult{
			Kind:    ResultForbidden,
			Message: fmt.Sprintf("your answer is numerically correct, but the function %s is not allowed for this problem", name),
		}, nil
	}
	res := GradeResult{Matched: true, Credit: cmp.Credit, Kind: ResultCorrect, Message: cmp.Note}
	if cmp.Credit < 1 {
		res.Kind = ResultPartial
	}
	return res, nil
}

// compare applies the comparer across the successful trials. Correlated
// comparers see every trial at once; plain comparers must match each trial,
// and the awarded credit is the minimum.
func (g *Grader) compare(trials []trial) (Comparison, error) {
	p := g.p
	if cc, isCorr := p.comparer.(CorrelatedComparer); isCorr {
		student := make([]Value, len(trials))
		expected := make([]Value, len(trials))
		for i, t := range trials {
			student[i] = t.student
			expected[i] = t.expected
		}
		opts := &CompareOpts{Tolerance: p.tol, Params: trials[0].params}
		return cc.CompareAll(student, expected, opts)
	}
	out := Comparison{Matched: true, Credit: 1}
	for _, t := range trials {
		opts := &CompareOpts{Tolerance: p.tol, Params: t.params}
		c, err := p.comparer.Compare(t.student, t.expected, opts)
		if err != nil {
			return Comparison{}, err
		}
		if !c.Matched {
			return c, nil
		}
		if c.Credit < out.Credit {
			out.Credit = c.Credit
		}
		if out.Note == "" {
			out.Note = c.Note
		}
	}
	return out, nil
}

// forbiddenCall reports a function call the problem's blacklist or
// whitelist rejects.
func (g *Grader) forbiddenCall(ex *Expr) (string, bool) {
	p := g.p
	for _, name := range ex.Funcs() {
		if containsName(p.cfg.Blacklist, name) {
			return name, true
		}
		if len(p.cfg.Whitelist) > 0 && !containsName(p.cfg.Whitelist, name) {
			return name, true
		}
	}
	return "", false
}

// evalMessage renders a student evaluation failure. Debug problems append
// the sampled bindings of the failing trial.
func (g *Grader) evalMessage(t trial) string {
	msg := t.err.Error()
	if !g.p.cfg.Debug || len(t.bindings) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	b.WriteString(" [with ")
	for i, n := range sortedKeys(t.bindings) {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(n)
		b.WriteString(" = ")
		b.WriteString(t.bindings[n].String())
	}
	b.WriteString("]")
	return b.String()
}
