package numgrade

import (
	"strconv"
	"strings"
)

// ParseOption is an option for parsing.
type ParseOption interface {
	parseOption(parsectx) parsectx
}

type (
	funcopt struct {
		name     string
		callable bool
	}
	funcsopt  []string
	suffixopt bool
	nodefsopt struct{}
)

// parsectx holds general data for parsing. It is also a ParseOption.
type parsectx struct {
	// names is the set of variable names that have been seen this parse.
	names map[string]bool
	// calls is the set of function names that have been seen this parse.
	calls map[string]bool
	// funcs is the set of names declared callable. A declared function name
	// not followed by an open parenthesis is a parse error.
	funcs map[string]bool
	// suffixes indicates whether metric suffix letters are lexed as part of
	// numbers.
	suffixes bool
	// nodefaults indicates that the default function names are not added.
	nodefaults bool
}

// ParseFunc declares whether a single name is callable. Declaring a default
// function name with callable false makes it parse as a variable instead.
func ParseFunc(name string, callable bool) ParseOption {
	return &funcopt{name, callable}
}

func (o *funcopt) parseOption(p parsectx) parsectx {
	if p.funcs == nil {
		p.funcs = map[string]bool{}
	}
	p.funcs[o.name] = o.callable
	return p
}

// ParseFuncs declares a group of names as callable, in addition to the
// default function names.
func ParseFuncs(names ...string) ParseOption {
	return funcsopt(names)
}

func (o funcsopt) parseOption(p parsectx) parsectx {
	if p.funcs == nil {
		p.funcs = make(map[string]bool, len(o))
	}
	for _, k := range o {
		p.funcs[k] = true
	}
	return p
}

// DisableDefaultFuncs disables all default function names during parsing.
// They will be parsed as variables instead.
func DisableDefaultFuncs() ParseOption {
	return nodefsopt{}
}

func (nodefsopt) parseOption(p parsectx) parsectx {
	p.nodefaults = true
	return p
}

// MetricSuffixes controls whether numbers may carry a trailing metric suffix
// letter (k, M, G, T, m, u, n, p, f). The percent suffix is always accepted.
func MetricSuffixes(on bool) ParseOption {
	return suffixopt(on)
}

func (o suffixopt) parseOption(p parsectx) parsectx {
	p.suffixes = bool(o)
	return p
}

// ParsingPreset creates a parsing preset that may be more efficient when
// using the same non-default parsing options for many calls to Parse. A
// preset panics when it would change any option from the default, but it is
// safe to apply other options after a preset.
func ParsingPreset(opts ...ParseOption) ParseOption {
	var p parsectx
	for _, opt := range opts {
		p = opt.parseOption(p)
	}
	if p.funcs != nil && !p.nodefaults {
		// If we've set any functions, add unset default ones now.
		for _, k := range defaultFuncNames {
			if _, ok := p.funcs[k]; !ok {
				p.funcs[k] = true
			}
		}
		p.nodefaults = true
	}
	return &p
}

func (o *parsectx) parseOption(p parsectx) parsectx {
	if p.funcs != nil || p.suffixes || p.nodefaults {
		panic("numgrade: preset applied to non-default parse config")
	}
	p.funcs = o.funcs
	p.suffixes = o.suffixes
	p.nodefaults = o.nodefaults
	return p
}

// key produces a stable string identifying the parsing-relevant
// configuration. Together with the source text it forms the AST cache key.
func (o *parsectx) key() string {
	names := make([]string, 0, len(o.funcs))
	for k, v := range o.funcs {
		if v {
			names = append(names, k)
		}
	}
	sortstrs(names)
	var b strings.Builder
	b.WriteString("sfx=" + strconv.FormatBool(o.suffixes))
	b.WriteString(";nodef=" + strconv.FormatBool(o.nodefaults))
	b.WriteString(";fns=" + strings.Join(names, ","))
	return b.String()
}
