package numgrade

import (
	"fmt"
	"strconv"
	"strings"
)

// Config describes one answer entry of a problem: the instructor's expected
// answer, the variables the student may use and how they are sampled, and
// the matching rules.
//
// The zero value of every field has a sensible meaning, so a minimal problem
// is just an Answer.
type Config struct {
	// Answer is the instructor's expected answer expression.
	Answer string
	// Comparer decides whether a student value matches the expected value.
	// Nil means EqualityComparer. Comparers that also implement
	// CorrelatedComparer receive all trials at once.
	Comparer Comparer
	// ComparerParams are expressions evaluated with the trial's instructor
	// bindings and passed to the comparer.
	ComparerParams []string

	// Variables are the free variable names permitted in answers. Variables
	// without an entry in SampleFrom use the default sampler.
	Variables []string
	// SampleFrom overrides the sampler per variable. Names listed here need
	// not repeat in Variables.
	SampleFrom map[string]Sampler
	// NumberedVars are base names for numbered families such as a_{1},
	// a_{2}. Each distinct index used in an expression is sampled
	// independently, with the base name's sampler.
	NumberedVars []string
	// UserConstants are fixed bindings added to every trial.
	UserConstants map[string]Value
	// UserFunctions are functions callable in answers beyond the default
	// set.
	UserFunctions map[string]Func
	// RandomFunctions binds names to freshly sampled functions each trial.
	RandomFunctions map[string]FuncSampler
	// InstructorVars are names usable only in the instructor's expressions.
	// A student answer referencing one is rejected.
	InstructorVars []string

	// Samples is the number of trials. Zero means 5.
	Samples int
	// FailableEvals is how many trials may fail evaluation of the student
	// answer before grading gives up. Errors that occur in every trial are
	// reported to the student without consuming the budget.
	FailableEvals int
	// Tolerance is the matching tolerance. The zero value means the default
	// of 0.01%. Exact matching is expressed as "0%".
	Tolerance Tolerance

	// Blacklist rejects answers calling any of the named functions, after
	// numeric comparison has already succeeded.
	Blacklist []string
	// Whitelist, when non-empty, rejects answers calling functions outside
	// it. Blacklist and Whitelist are mutually exclusive.
	Whitelist []string

	// MetricSuffixes permits suffixed numbers such as 2.5k in answers.
	MetricSuffixes bool
	// AllowInfinities accepts infinite intermediate results instead of
	// reporting overflow.
	AllowInfinities bool
	// DisableArrays rejects vector and matrix values in answers.
	DisableArrays bool
	// DisableInverses rejects negative matrix powers.
	DisableInverses bool

	// Debug includes instructor-facing detail in student messages.
	Debug bool
	// CacheSize is the parsed expression cache capacity. Zero means 128.
	CacheSize int
}

// ConfigError is a fatal problem configuration error. Unlike student input
// errors, it is the instructor's to fix and is never shown as a grading
// verdict.
type ConfigError struct {
	// Field names the part of the configuration at fault.
	Field string
	// Err is the underlying error.
	Err error
}

func (err *ConfigError) Error() string {
	return "problem configuration: " + err.Field + ": " + err.Err.Error()
}

func (err *ConfigError) Unwrap() error {
	return err.Err
}

func confErrf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
}

// IssueLevel is the severity of a configuration issue.
type IssueLevel string

const (
	// IssueError indicates a fatal configuration error.
	IssueError IssueLevel = "error"
	// IssueWarning indicates a suspicious but usable configuration.
	IssueWarning IssueLevel = "warning"
)

// Issue is a non-fatal finding from configuration validation, such as a user
// name shadowing a default constant.
type Issue struct {
	Level   IssueLevel `json:"level" yaml:"level"`
	Message string     `json:"message" yaml:"message"`
	Name    string     `json:"name,omitempty" yaml:"name,omitempty"`
}

// problem is a validated, normalized configuration ready for grading.
type problem struct {
	cfg      Config
	answer   *Expr
	params   []*Expr
	comparer Comparer
	tol      Tolerance
	samples  int
	failable int

	// order lists every sampled name, dependencies before dependents.
	order    []string
	samplers map[string]Sampler

	parseOpts []ParseOption
	issues    []Issue
}

// funcNames returns every callable name of the problem: the default set plus
// user and random functions, minus defaults shadowed by a value binding.
func (c *Config) funcNames() []string {
	names := make(map[string]bool, len(defaultFuncNames)+len(c.UserFunctions)+len(c.RandomFunctions))
	for _, n := range defaultFuncNames {
		names[n] = true
	}
	for _, n := range c.Variables {
		delete(names, n)
	}
	for _, n := range c.InstructorVars {
		delete(names, n)
	}
	for n := range c.SampleFrom {
		delete(names, n)
	}
	for n := range c.UserConstants {
		delete(names, n)
	}
	for n := range c.UserFunctions {
		names[n] = true
	}
	for n := range c.RandomFunctions {
		names[n] = true
	}
	return sortedKeys(names)
}

func (c *Config) parseOptions() []ParseOption {
	opts := []ParseOption{
		DisableDefaultFuncs(),
		ParseFuncs(c.funcNames()...),
	}
	if c.MetricSuffixes {
		opts = append(opts, MetricSuffixes(true))
	}
	return opts
}

// normalize validates the configuration and applies defaults. Fatal problems
// return a *ConfigError; recoverable oddities are recorded as issues on the
// returned problem.
func (c *Config) normalize() (*problem, error) {
	p := &problem{cfg: *c}

	if c.Samples < 0 {
		return nil, confErrf("samples", "trial count %d is negative", c.Samples)
	}
	p.samples = c.Samples
	if p.samples == 0 {
		p.samples = 5
	}
	if c.FailableEvals < 0 {
		return nil, confErrf("failable_evals", "budget %d is negative", c.FailableEvals)
	}
	if c.FailableEvals >= p.samples {
		return nil, confErrf("failable_evals", "budget %d leaves no trial to grade out of %d", c.FailableEvals, p.samples)
	}
	p.failable = c.FailableEvals
	p.tol = c.Tolerance
	if p.tol == (Tolerance{}) {
		p.tol = DefaultTolerance
	}
	if c.CacheSize < 0 {
		return nil, confErrf("cache_size", "capacity %d is negative", c.CacheSize)
	}
	p.comparer = c.Comparer
	if p.comparer == nil {
		p.comparer = EqualityComparer{}
	}
	if len(c.Blacklist) > 0 && len(c.Whitelist) > 0 {
		return nil, confErrf("blacklist", "blacklist and whitelist are mutually exclusive")
	}

	if err := c.checkNames(p); err != nil {
		return nil, err
	}
	if err := c.checkSamplers(p); err != nil {
		return nil, err
	}

	p.parseOpts = c.parseOptions()
	if strings.TrimSpace(c.Answer) == "" {
		return nil, confErrf("answer", "no expected answer given")
	}
	ans, err := Parse(c.Answer, p.parseOpts...)
	if err != nil {
		return nil, &ConfigError{Field: "answer", Err: err}
	}
	p.answer = ans
	for i, src := range c.ComparerParams {
		ex, err := Parse(src, p.parseOpts...)
		if err != nil {
			return nil, &ConfigError{Field: "comparer_params[" + strconv.Itoa(i) + "]", Err: err}
		}
		p.params = append(p.params, ex)
	}

	for _, name := range append(append([]string(nil), c.Blacklist...), c.Whitelist...) {
		if !containsName(p.answerFuncNames(), name) && !containsName(c.funcNames(), name) {
			p.issues = append(p.issues, Issue{
				Level:   IssueWarning,
				Message: "list names a function the problem does not define",
				Name:    name,
			})
		}
	}
	return p, nil
}

func (p *problem) answerFuncNames() []string {
	return p.answer.Funcs()
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// checkNames verifies that variable, constant and function names do not
// clash, and records shadowing of defaults as warnings.
func (c *Config) checkNames(p *problem) error {
	vars := make(map[string]string)
	claim := func(name, role string) error {
		if prev, ok := vars[name]; ok && prev != role {
			return confErrf("variables", "name %q is declared as both %s and %s", name, prev, role)
		}
		vars[name] = role
		return nil
	}
	for _, n := range c.Variables {
		if err := claim(n, "a variable"); err != nil {
			return err
		}
	}
	for _, n := range c.NumberedVars {
		if err := claim(n, "a numbered variable family"); err != nil {
			return err
		}
	}
	// SampleFrom names may introduce variables or configure a numbered
	// family's base, so they never clash on their own.
	for n := range c.SampleFrom {
		if _, ok := vars[n]; !ok {
			vars[n] = "a variable"
		}
	}
	for n := range c.UserConstants {
		if err := claim(n, "a constant"); err != nil {
			return err
		}
	}
	for _, n := range c.InstructorVars {
		if err := claim(n, "an instructor variable"); err != nil {
			return err
		}
	}
	for n := range c.UserFunctions {
		if _, ok := vars[n]; ok {
			return confErrf("user_functions", "name %q is declared as both a function and %s", n, vars[n])
		}
	}
	for n := range c.RandomFunctions {
		if _, ok := vars[n]; ok {
			return confErrf("random_functions", "name %q is declared as both a function and %s", n, vars[n])
		}
		if _, ok := c.UserFunctions[n]; ok {
			return confErrf("random_functions", "name %q is declared as both a fixed and a random function", n)
		}
	}
	for n := range vars {
		if _, ok := defaultConstants[n]; ok {
			p.issues = append(p.issues, Issue{
				Level:   IssueWarning,
				Message: "name shadows a default constant",
				Name:    n,
			})
		}
		if _, ok := defaultFuncs[n]; ok {
			p.issues = append(p.issues, Issue{
				Level:   IssueWarning,
				Message: "name shadows a default function",
				Name:    n,
			})
		}
	}
	return nil
}

// checkSamplers validates sampler parameters and topologically orders the
// sampled names so dependent samplers see their dependencies bound.
func (c *Config) checkSamplers(p *problem) error {
	p.samplers = make(map[string]Sampler)
	for _, n := range c.Variables {
		p.samplers[n] = DefaultSampler()
	}
	for _, n := range c.InstructorVars {
		p.samplers[n] = DefaultSampler()
	}
	numbered := make(map[string]bool, len(c.NumberedVars))
	for _, n := range c.NumberedVars {
		numbered[n] = true
	}
	for n, s := range c.SampleFrom {
		if s == nil {
			return confErrf("sample_from", "variable %q has a nil sampler", n)
		}
		if numbered[n] {
			// Numbered families sample per index at grading time.
			if ck, ok := s.(checker); ok {
				if err := ck.check(); err != nil {
					return &ConfigError{Field: "sample_from", Err: fmt.Errorf("variable %q: %w", n, err)}
				}
			}
			continue
		}
		p.samplers[n] = s
	}
	for n, s := range p.samplers {
		if ck, ok := s.(checker); ok {
			if err := ck.check(); err != nil {
				return &ConfigError{Field: "sample_from", Err: fmt.Errorf("variable %q: %w", n, err)}
			}
		}
	}
	for n, s := range c.RandomFunctions {
		if s == nil {
			return confErrf("random_functions", "function %q has a nil sampler", n)
		}
		if ck, ok := s.(checker); ok {
			if err := ck.check(); err != nil {
				return &ConfigError{Field: "random_functions", Err: fmt.Errorf("function %q: %w", n, err)}
			}
		}
	}

	// Kahn's algorithm over the dependency edges of dependent samplers.
	indeg := make(map[string]int, len(p.samplers))
	rdeps := make(map[string][]string)
	for n := range p.samplers {
		indeg[n] = 0
	}
	for n, s := range p.samplers {
		dep, ok := s.(*DependentSampler)
		if !ok {
			continue
		}
		for _, d := range dep.Deps() {
			if _, sampled := p.samplers[d]; !sampled {
				if _, ok := c.UserConstants[d]; ok {
					continue
				}
				if _, ok := defaultConstants[d]; ok {
					continue
				}
				return confErrf("sample_from", "variable %q depends on undeclared name %q", n, d)
			}
			indeg[n]++
			rdeps[d] = append(rdeps[d], n)
		}
	}
	var queue []string
	for n, d := range indeg {
		if d == 0 {
			queue = append(queue, n)
		}
	}
	sortstrs(queue)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		p.order = append(p.order, n)
		next := rdeps[n]
		sortstrs(next)
		for _, m := range next {
			if indeg[m]--; indeg[m] == 0 {
				queue = append(queue, m)
			}
		}
	}
	if len(p.order) != len(p.samplers) {
		var cyc []string
		for n, d := range indeg {
			if d > 0 {
				cyc = append(cyc, n)
			}
		}
		sortstrs(cyc)
		return confErrf("sample_from", "dependent variables form a cycle: %s", strings.Join(cyc, ", "))
	}
	return nil
}
