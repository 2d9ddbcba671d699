package main

import (
	"fmt"
	"math"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"

	"github.com/quillathe/numgrade"
)

// problemSpec is the YAML problem description schema.
type problemSpec struct {
	Answer         string                 `koanf:"answer"`
	Comparer       string                 `koanf:"comparer"`
	ComparerParams []string               `koanf:"comparer_params"`
	Variables      []string               `koanf:"variables"`
	SampleFrom     map[string]samplerSpec `koanf:"sample_from"`
	NumberedVars   []string               `koanf:"numbered_vars"`
	Constants      map[string]float64     `koanf:"constants"`
	InstructorVars []string               `koanf:"instructor_vars"`

	Samples       int    `koanf:"samples"`
	FailableEvals int    `koanf:"failable_evals"`
	Tolerance     string `koanf:"tolerance"`

	Blacklist []string `koanf:"blacklist"`
	Whitelist []string `koanf:"whitelist"`

	MetricSuffixes  bool `koanf:"metric_suffixes"`
	AllowInfinities bool `koanf:"allow_infinities"`
	DisableArrays   bool `koanf:"disable_arrays"`
	DisableInverses bool `koanf:"disable_inverses"`
	Debug           bool `koanf:"debug"`
	CacheSize       int  `koanf:"cache_size"`
}

type samplerSpec struct {
	Kind string `koanf:"kind"`

	Lo float64 `koanf:"lo"`
	Hi float64 `koanf:"hi"`

	ReLo  float64 `koanf:"re_lo"`
	ReHi  float64 `koanf:"re_hi"`
	ImLo  float64 `koanf:"im_lo"`
	ImHi  float64 `koanf:"im_hi"`
	RLo   float64 `koanf:"r_lo"`
	RHi   float64 `koanf:"r_hi"`
	ArgLo float64 `koanf:"arg_lo"`
	ArgHi float64 `koanf:"arg_hi"`

	Values []float64 `koanf:"values"`

	Len  int `koanf:"len"`
	Rows int `koanf:"rows"`
	Cols int `koanf:"cols"`
	N    int `koanf:"n"`

	Formula string `koanf:"formula"`
}

// loadGrader reads a YAML problem description and builds a grader from it.
func loadGrader(path string) (*numgrade.Grader, error) {
	if path == "" {
		return nil, fmt.Errorf("no problem file given; use --problem")
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	var spec problemSpec
	if err := k.Unmarshal("", &spec); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	cfg, err := spec.config()
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	if flags.debug {
		cfg.Debug = true
	}
	return numgrade.New(cfg)
}

func (s *problemSpec) config() (numgrade.Config, error) {
	cfg := numgrade.Config{
		Answer:          s.Answer,
		ComparerParams:  s.ComparerParams,
		Variables:       s.Variables,
		NumberedVars:    s.NumberedVars,
		InstructorVars:  s.InstructorVars,
		Samples:         s.Samples,
		FailableEvals:   s.FailableEvals,
		Blacklist:       s.Blacklist,
		Whitelist:       s.Whitelist,
		MetricSuffixes:  s.MetricSuffixes,
		AllowInfinities: s.AllowInfinities,
		DisableArrays:   s.DisableArrays,
		DisableInverses: s.DisableInverses,
		Debug:           s.Debug,
		CacheSize:       s.CacheSize,
	}
	switch s.Comparer {
	case "", "equality":
		cfg.Comparer = numgrade.EqualityComparer{}
	case "congruence":
		cfg.Comparer = numgrade.CongruenceComparer{}
	case "linear":
		cfg.Comparer = numgrade.LinearComparer{}
	case "span":
		cfg.Comparer = numgrade.VectorSpanComparer{}
	case "eigenvector":
		cfg.Comparer = numgrade.EigenvectorComparer{}
	default:
		return cfg, fmt.Errorf("unknown comparer %q", s.Comparer)
	}
	if s.Tolerance != "" {
		tol, err := numgrade.ParseTolerance(s.Tolerance)
		if err != nil {
			return cfg, err
		}
		cfg.Tolerance = tol
	}
	if len(s.Constants) > 0 {
		cfg.UserConstants = make(map[string]numgrade.Value, len(s.Constants))
		for n, x := range s.Constants {
			cfg.UserConstants[n] = numgrade.Real(x)
		}
	}
	if len(s.SampleFrom) > 0 {
		cfg.SampleFrom = make(map[string]numgrade.Sampler, len(s.SampleFrom))
		for n, ss := range s.SampleFrom {
			smp, err := ss.sampler()
			if err != nil {
				return cfg, fmt.Errorf("variable %q: %w", n, err)
			}
			cfg.SampleFrom[n] = smp
		}
	}
	return cfg, nil
}

func (s *samplerSpec) sampler() (numgrade.Sampler, error) {
	switch s.Kind {
	case "", "real":
		if s.Lo == 0 && s.Hi == 0 {
			return numgrade.DefaultSampler(), nil
		}
		return numgrade.RealInterval{Lo: s.Lo, Hi: s.Hi}, nil
	case "integer":
		return numgrade.IntegerRange{Lo: int64(s.Lo), Hi: int64(s.Hi)}, nil
	case "rectangle":
		return numgrade.ComplexRectangle{ReLo: s.ReLo, ReHi: s.ReHi, ImLo: s.ImLo, ImHi: s.ImHi}, nil
	case "sector":
		hi := s.ArgHi
		if s.ArgLo == 0 && hi == 0 {
			hi = 2 * math.Pi
		}
		return numgrade.ComplexSector{RLo: s.RLo, RHi: s.RHi, ArgLo: s.ArgLo, ArgHi: hi}, nil
	case "set":
		vals := make([]numgrade.Value, len(s.Values))
		for i, x := range s.Values {
			vals[i] = numgrade.Real(x)
		}
		return numgrade.DiscreteSet{Values: vals}, nil
	case "vector":
		return numgrade.RealVectors{Len: s.Len, Entry: entrySampler(s.Lo, s.Hi)}, nil
	case "matrix":
		return numgrade.RealMatrices{Rows: s.Rows, Cols: s.Cols, Entry: entrySampler(s.Lo, s.Hi)}, nil
	case "identity":
		return numgrade.IdentityMatrixMultiples{N: s.N, Scale: entrySampler(s.Lo, s.Hi)}, nil
	case "orthogonal":
		return numgrade.OrthogonalMatrices{N: s.N}, nil
	case "unitary":
		return numgrade.UnitaryMatrices{N: s.N}, nil
	case "formula":
		return numgrade.Depend(s.Formula)
	default:
		return nil, fmt.Errorf("unknown sampler kind %q", s.Kind)
	}
}

func entrySampler(lo, hi float64) numgrade.Sampler {
	if lo == 0 && hi == 0 {
		return nil
	}
	return numgrade.RealInterval{Lo: lo, Hi: hi}
}
