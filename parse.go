package numgrade

import (
	"errors"
	"strings"
)

// Expr = num | name | Call | Array | Neg | Plus | Add | Sub | Mul | Div | Pow | '(' Expr ')' | '{' Expr '}'
// Call = funcname '(' Expr { ',' Expr } ')'
// Array = '[' Expr { ',' Expr } ']'
// Neg = '-' Expr
// Plus = '+' Expr
// Add = Expr '+' Expr
// Sub = Expr '-' Expr
// Mul = Expr '*' Expr
// Div = Expr '/' Expr
// Pow = Expr '^' Expr
//
// Multiplication is never implicit: two adjacent operands are a parse error.

// Expr is a parsed expression that can be evaluated with a context. Parsing
// is deterministic given identical input and options, which is what makes
// parsed expressions safe to cache.
type Expr struct {
	// n is the root node of the expression.
	n *node
	// src is the original source text.
	src string
	// names is the list of variable names used in the expression.
	names []string
	// calls is the list of function names used in the expression.
	calls []string
}

// Parse parses an expression. The given options are applied in order.
func Parse(src string, opts ...ParseOption) (*Expr, error) {
	p := parsectx{
		names: make(map[string]bool),
		calls: make(map[string]bool),
	}
	for _, opt := range opts {
		p = opt.parseOption(p)
	}
	if p.funcs == nil {
		p.funcs = make(map[string]bool, len(defaultFuncNames))
	}
	if !p.nodefaults {
		for _, k := range defaultFuncNames {
			if _, ok := p.funcs[k]; !ok {
				p.funcs[k] = true
			}
		}
	}
	scan := lex(src, p.suffixes)
	n, err := parseterm(scan, &p, exprprec)
	if err != nil {
		return nil, err
	}
	tok := scan.must()
	switch {
	case n == nil:
		// parselhs pushed the token that has no expression before it.
		return nil, startError(tok)
	case tok.kind == tokenEOF:
		// Done.
	case tok.kind == tokenClose:
		return nil, &BracketError{Col: tok.pos, Left: "", Right: tok.text}
	case tok.kind == tokenSep:
		return nil, &SeparatorError{Col: tok.pos, Sep: tok.text}
	default:
		panic("numgrade: parse ended on " + tok.String())
	}
	ex := Expr{
		n:     n,
		src:   src,
		names: sortedKeys(p.names),
		calls: sortedKeys(p.calls),
	}
	return &ex, nil
}

func sortedKeys[V any](m map[string]V) []string {
	if len(m) == 0 {
		return nil
	}
	v := make([]string, 0, len(m))
	for k := range m {
		v = append(v, k)
	}
	sortstrs(v)
	return v
}

// sortstrs sorts a string slice without using package sort because that has
// reflection and allocation problems.
func sortstrs(names []string) {
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j] < names[j-1]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
}

// parseterm parses a single term. If there is no error, then parseterm pushes
// the last token it scans, including EOF. If the input is an empty
// subexpression, the result is nil with no error; callers must create an
// error in contexts where empty subexpressions are illegal.
func parseterm(scan *lexer, p *parsectx, until operator) (*node, error) {
	n, err := parselhs(scan, p, until)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, nil
	}
	for {
		tok, err := scan.next()
		if err != nil {
			return nil, err
		}
		switch tok.kind {
		case tokenOp:
			prec := binop(tok.text)
			if prec.op == nodeNone {
				return nil, &OperatorError{Col: tok.pos, Operator: tok.text}
			}
			if !prec.moreBinding(until) {
				scan.push(tok)
				return n, nil
			}
			rhs, err := parseterm(scan, p, prec)
			if err != nil {
				return nil, err
			}
			if rhs == nil {
				end := scan.must()
				return nil, &EmptyExpressionError{Col: end.pos, End: end.text}
			}
			n = &node{kind: prec.op, pos: tok.pos, left: n, right: rhs}
		case tokenNum, tokenIdent, tokenOpen:
			// No implicit multiplication.
			return nil, &AdjacentValuesError{Col: tok.pos, Text: tok.text}
		case tokenClose, tokenSep, tokenEOF:
			// End of expression.
			scan.push(tok)
			return n, nil
		default:
			panic("numgrade: unknown token: " + tok.String())
		}
	}
}

// parselhs parses the first component of a term, so any encountered operator
// is unary and any other token must be valid as the start of a subexpression.
// A close bracket or separator is pushed back with a nil result.
func parselhs(scan *lexer, p *parsectx, until operator) (*node, error) {
	tok, err := scan.next()
	if err != nil {
		return nil, err
	}
	var n *node
	switch tok.kind {
	case tokenNum:
		n = &node{kind: nodeNum, name: tok.text, val: numValue(tok.text), pos: tok.pos}
	case tokenIdent:
		nxt, err := scan.next()
		if err != nil {
			return nil, err
		}
		if nxt.kind == tokenOpen && nxt.text == "(" {
			args, err := parsearglist(scan, p, nxt)
			if err != nil {
				return nil, err
			}
			p.calls[tok.text] = true
			n = &node{kind: nodeCall, name: tok.text, pos: tok.pos, right: args}
			break
		}
		scan.push(nxt)
		if p.funcs[tok.text] {
			return nil, &FunctionCallError{Col: tok.pos, Func: tok.text}
		}
		p.names[tok.text] = true
		n = &node{kind: nodeName, name: tok.text, pos: tok.pos}
	case tokenOp:
		// Unary operator. A binary operator in this position means two
		// consecutive operators with no operand between them.
		prec := unop(tok.text)
		if prec.op == nodeNone {
			return nil, &OperatorError{Col: tok.pos, Operator: tok.text, Unary: true}
		}
		if !prec.moreBinding(until) {
			// x^-y -> x^(-y)
			// Just use the new operator's precedence to simplify.
			prec.prec, prec.right = until.prec, until.right
		}
		rhs, err := parseterm(scan, p, prec)
		if err != nil {
			return nil, err
		}
		if rhs == nil {
			end := scan.must()
			return nil, &EmptyExpressionError{Col: end.pos, End: end.text}
		}
		n = &node{kind: prec.op, pos: tok.pos, left: rhs}
	case tokenOpen:
		if tok.text == "[" {
			args, err := parsearglist(scan, p, tok)
			if err != nil {
				return nil, err
			}
			n = &node{kind: nodeArr, pos: tok.pos, right: args}
			break
		}
		rhs, err := parseterm(scan, p, exprprec)
		if err != nil {
			return nil, err
		}
		end := scan.must()
		closing := CloseBrackets[strings.IndexByte(OpenBrackets, tok.text[0])]
		switch {
		case end.kind == tokenEOF:
			// The open bracket is the one at fault.
			return nil, &BracketError{Col: tok.pos, Left: tok.text, Right: ""}
		case end.kind == tokenSep:
			return nil, &SeparatorError{Col: end.pos, Sep: end.text}
		case end.text != string(closing):
			return nil, &BracketError{Col: end.pos, Left: tok.text, Right: end.text}
		}
		if rhs == nil {
			return nil, &EmptyExpressionError{Col: end.pos, End: end.text}
		}
		n = rhs
	case tokenClose, tokenSep:
		// Let the caller decide what to do.
		scan.push(tok)
		return nil, nil
	case tokenEOF:
		return nil, &EmptyExpressionError{Col: tok.pos, End: ""}
	default:
		panic("numgrade: unknown token: " + tok.String())
	}
	return n, nil
}

// parsearglist parses a bracketed, comma-separated list of one or more
// expressions: a function argument list when open is ( or an array literal
// when open is [. The result is the head of the nodeArg chain.
func parsearglist(scan *lexer, p *parsectx, open lexToken) (*node, error) {
	var head node
	l := &head
	closing := CloseBrackets[strings.IndexByte(OpenBrackets, open.text[0])]
	for {
		rhs, err := parseterm(scan, p, exprprec)
		if err != nil {
			// Reporting an unclosed bracket is more helpful than an empty
			// expression, if that's what we'd do here.
			var ee *EmptyExpressionError
			if errors.As(err, &ee) && ee.End == "" {
				err = &BracketError{Col: open.pos, Left: open.text, Right: ""}
			}
			return nil, err
		}
		end := scan.must()
		switch end.kind {
		case tokenClose:
			if end.text != string(closing) {
				return nil, &BracketError{Col: end.pos, Left: open.text, Right: end.text}
			}
			if rhs == nil {
				// f() and [] are empty, as is a trailing comma.
				return nil, &EmptyExpressionError{Col: end.pos, End: end.text}
			}
			l.right = &node{kind: nodeArg, left: rhs}
			return head.right, nil
		case tokenSep:
			if rhs == nil {
				return nil, &EmptyExpressionError{Col: end.pos, End: end.text}
			}
			l.right = &node{kind: nodeArg, left: rhs}
			l = l.right
		case tokenEOF:
			return nil, &BracketError{Col: open.pos, Left: open.text, Right: ""}
		default:
			panic("numgrade: parsearglist ended on non-end token " + end.String())
		}
	}
}

// startError creates the error for a token which cannot begin an expression.
func startError(tok lexToken) error {
	switch tok.kind {
	case tokenClose:
		return &BracketError{Col: tok.pos, Left: "", Right: tok.text}
	case tokenSep:
		return &SeparatorError{Col: tok.pos, Sep: tok.text}
	default:
		panic("numgrade: it really should not have started this way: " + tok.String())
	}
}

// Vars returns the variable names used when evaluating the expression.
func (e *Expr) Vars() []string {
	return append(([]string)(nil), e.names...)
}

// Funcs returns the function names called by the expression.
func (e *Expr) Funcs() []string {
	return append(([]string)(nil), e.calls...)
}

// Source returns the text the expression was parsed from.
func (e *Expr) Source() string {
	return e.src
}

// String creates a string representation of the parsed expression with every
// term bracketed.
func (e *Expr) String() string {
	var b strings.Builder
	e.n.fmt(&b)
	return b.String()
}

type operator struct {
	// prec is the precedence value. Higher is more binding.
	prec int8
	// right indicates right-associativity.
	right bool
	// op is the node kind to use when this operator is selected.
	op nodeKind
}

func (p operator) moreBinding(than operator) bool {
	if p.prec != than.prec {
		return p.prec > than.prec
	}
	return p.right
}

// binop gets a binary operator for a token string. If there is no such binary
// operator, then the result has an op of nodeNone.
func binop(text string) operator {
	switch text {
	case "+":
		return operator{1, false, nodeAdd}
	case "-":
		return operator{1, false, nodeSub}
	case "*":
		return operator{5, false, nodeMul}
	case "/":
		return operator{5, false, nodeDiv}
	case "^":
		return operator{15, true, nodePow}
	default:
		return operator{}
	}
}

// unop gets a unary operator for a token string. If there is no such unary
// operator, then the result has an op of nodeNone.
func unop(text string) operator {
	switch text {
	case "+":
		return operator{10, true, nodeNop}
	case "-":
		return operator{10, true, nodeNeg}
	default:
		return operator{}
	}
}

// exprprec is the precedence required to parse an entire subexpression.
var exprprec = operator{-128, true, nodeNone}
