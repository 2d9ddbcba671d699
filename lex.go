package numgrade

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

type lexToken struct {
	text string
	kind tokenKind
	pos  int
}

func (t lexToken) String() string {
	return t.kind.String() + ":" + t.text + "@" + strconv.Itoa(t.pos)
}

type tokenKind int

const (
	tokenNone tokenKind = iota
	// tokenEOF indicates the end of the input.
	tokenEOF
	// tokenNum is a number, possibly carrying a percent or metric suffix.
	tokenNum
	// tokenIdent is a variable or function name, including any subscript,
	// superscript, and prime decorations.
	tokenIdent
	// tokenOp is an operator.
	tokenOp
	// tokenOpen is an open bracket, ( [ or {.
	tokenOpen
	// tokenClose is a close bracket, ) ] or }.
	tokenClose
	// tokenSep is a function argument or array element separator.
	tokenSep
)

func (k tokenKind) String() string {
	switch k {
	case tokenNone:
		return "None"
	case tokenEOF:
		return "EOF"
	case tokenNum:
		return "Num"
	case tokenIdent:
		return "Ident"
	case tokenOp:
		return "Op"
	case tokenOpen:
		return "Open"
	case tokenClose:
		return "Close"
	case tokenSep:
		return "Sep"
	}
	return "tokenKind(" + strconv.Itoa(int(k)) + ")"
}

// Operators contains the runes which are considered to be operators.
const Operators = "+-*/^"

// OpenBrackets and CloseBrackets contain the runes which group expressions.
// The parser checks that a bracket in byte position k in OpenBrackets is
// matched with the bracket in byte position k in CloseBrackets. Round and
// curly brackets group subexpressions, round brackets also delimit function
// arguments, and square brackets form array literals. Curly brackets inside
// an identifier's subscript or superscript belong to the identifier token.
const (
	OpenBrackets  = "([{"
	CloseBrackets = ")]}"
)

// metricSuffixes maps metric suffix letters to their scale factors. The
// percent suffix is always recognized; metric letters only when the lexer is
// configured for them.
var metricSuffixes = map[rune]float64{
	'k': 1e3, 'M': 1e6, 'G': 1e9, 'T': 1e12,
	'm': 1e-3, 'u': 1e-6, 'n': 1e-9, 'p': 1e-12, 'f': 1e-15,
}

// lexer scans tokens from an expression. Whitespace separates tokens and is
// otherwise insignificant; token and error positions are rune offsets into
// the original input, counting from zero.
type lexer struct {
	src      []rune
	i        int
	p        lexToken
	suffixes bool
}

func lex(src string, suffixes bool) *lexer {
	return &lexer{src: []rune(src), suffixes: suffixes}
}

// skipSpace advances past any whitespace before the next token.
func (l *lexer) skipSpace() {
	for l.i < len(l.src) && unicode.IsSpace(l.src[l.i]) {
		l.i++
	}
}

// push unreads a token so that it is the next token returned from next.
// Panics if there is already a pushed token.
func (l *lexer) push(tok lexToken) {
	if l.p.kind != tokenNone {
		panic("numgrade: double push")
	}
	l.p = tok
}

// must scans the pushed token. Panics if there is no pushed token.
func (l *lexer) must() lexToken {
	tok := l.p
	if tok.kind == tokenNone {
		panic("numgrade: no pushed token")
	}
	l.p = lexToken{}
	return tok
}

func (l *lexer) peekRune() (rune, bool) {
	if l.i >= len(l.src) {
		return 0, false
	}
	return l.src[l.i], true
}

// next scans the next token from the input.
func (l *lexer) next() (lexToken, error) {
	if l.p.kind != tokenNone {
		tok := l.p
		l.p = lexToken{}
		return tok, nil
	}
	l.skipSpace()
	tok := lexToken{pos: l.i}
	r, ok := l.peekRune()
	if !ok {
		tok.kind = tokenEOF
		return tok, nil
	}
	switch {
	case '0' <= r && r <= '9', r == '.':
		text, err := l.scanNum()
		if err != nil {
			return tok, err
		}
		tok.text = text
		tok.kind = tokenNum
		return tok, nil
	case unicode.IsLetter(r):
		text, err := l.scanIdent()
		if err != nil {
			return tok, err
		}
		tok.text = text
		tok.kind = tokenIdent
		return tok, nil
	case r == ',':
		l.i++
		tok.text = ","
		tok.kind = tokenSep
		return tok, nil
	default:
		if strings.ContainsRune(Operators, r) {
			l.i++
			tok.text = string(r)
			tok.kind = tokenOp
			return tok, nil
		}
		if strings.ContainsRune(OpenBrackets, r) {
			l.i++
			tok.text = string(r)
			tok.kind = tokenOpen
			return tok, nil
		}
		if strings.ContainsRune(CloseBrackets, r) {
			l.i++
			tok.text = string(r)
			tok.kind = tokenClose
			return tok, nil
		}
		return tok, l.error("", string(r))
	}
}

// scanNum scans a number: decimal digits with an optional fraction, an
// optional exponent, and an optional percent or metric suffix.
func (l *lexer) scanNum() (string, error) {
	start := l.i
	var dig, dot, e, le, ed bool
	for {
		r, ok := l.peekRune()
		if !ok {
			break
		}
		if r == '+' || r == '-' {
			// A sign anywhere other than immediately following an exponent
			// marker starts a new token, as it is an operator.
			if !le {
				break
			}
			le = false
			l.i++
			continue
		}
		if r == '.' {
			if dot || e {
				l.i++
				return "", l.errorAt(start, "number", string(l.src[start:l.i]))
			}
			dot = true
			le = false
			l.i++
			continue
		}
		if '0' <= r && r <= '9' {
			if e {
				ed = true
			} else {
				dig = true
			}
			le = false
			l.i++
			continue
		}
		if (r == 'e' || r == 'E') && dig && !e {
			e = true
			le = true
			l.i++
			continue
		}
		break
	}
	if (!dig && !ed) || (e && !ed) {
		l.i++
		if l.i > len(l.src) {
			l.i = len(l.src)
		}
		return "", l.errorAt(start, "number", string(l.src[start:l.i]))
	}
	// Suffixes bind to the number itself.
	if r, ok := l.peekRune(); ok {
		switch {
		case r == '%':
			l.i++
		case l.suffixes && metricSuffixes[r] != 0:
			l.i++
		}
	}
	return string(l.src[start:l.i]), nil
}

// scanIdent scans a variable or function name: a leading letter, a run of
// letters and digits, an optional subscript (_name or _{name}), an optional
// superscript (^{name}, only after any subscript), and trailing primes.
func (l *lexer) scanIdent() (string, error) {
	start := l.i
	for {
		r, ok := l.peekRune()
		if !ok || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			break
		}
		l.i++
	}
	if r, ok := l.peekRune(); ok && r == '_' {
		l.i++
		if err := l.scanscript(start); err != nil {
			return "", err
		}
	}
	// A superscript requires ^{; a bare ^ is the power operator.
	if r, ok := l.peekRune(); ok && r == '^' && l.i+1 < len(l.src) && l.src[l.i+1] == '{' {
		l.i++
		if err := l.scanscript(start); err != nil {
			return "", err
		}
	}
	for {
		r, ok := l.peekRune()
		if !ok || r != '\'' {
			break
		}
		l.i++
	}
	return string(l.src[start:l.i]), nil
}

// scanscript scans the name part of a subscript or superscript, either a
// braced {name} or a bare run of letters and digits. Braced names may be
// signed integers.
func (l *lexer) scanscript(start int) error {
	r, ok := l.peekRune()
	if !ok {
		return l.errorAt(start, "identifier", string(l.src[start:l.i]))
	}
	if r == '{' {
		l.i++
		n := 0
		for {
			r, ok := l.peekRune()
			if !ok {
				return l.errorAt(start, "identifier", string(l.src[start:l.i]))
			}
			if r == '}' {
				l.i++
				if n == 0 {
					return l.errorAt(start, "identifier", string(l.src[start:l.i]))
				}
				return nil
			}
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
				n++
				l.i++
				continue
			}
			l.i++
			return l.errorAt(start, "identifier", string(l.src[start:l.i]))
		}
	}
	n := 0
	for {
		r, ok := l.peekRune()
		if !ok || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			break
		}
		n++
		l.i++
	}
	if n == 0 {
		l.i++
		if l.i > len(l.src) {
			l.i = len(l.src)
		}
		return l.errorAt(start, "identifier", string(l.src[start:l.i]))
	}
	return nil
}

func (l *lexer) error(kind, text string) error {
	return &LexError{Text: text, Kind: kind, Col: l.i}
}

func (l *lexer) errorAt(pos int, kind, text string) error {
	return &LexError{Text: text, Kind: kind, Col: pos}
}

// numValue converts a number token's text into its value, applying any
// percent or metric suffix. The text must have been produced by scanNum.
func numValue(text string) float64 {
	scale := 1.0
	last := rune(text[len(text)-1])
	switch {
	case last == '%':
		scale = 1e-2
		text = text[:len(text)-1]
	case metricSuffixes[last] != 0:
		if _, err := strconv.ParseFloat(text, 64); err != nil {
			// Not part of the numeric literal, so it is a suffix.
			scale = metricSuffixes[last]
			text = text[:len(text)-1]
		}
	}
	// ParseFloat still yields the clamped value on range errors, which the
	// evaluator reports as overflow.
	v, err := strconv.ParseFloat(text, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		panic("numgrade: invalid number: " + text + " (" + err.Error() + ")")
	}
	return v * scale
}

// LexError indicates an invalid token. It implements InputError.
type LexError struct {
	// Text is the token the lexer was scanning when the invalid rune was
	// encountered, plus the invalid rune.
	Text string
	// Kind is the type of token the lexer was scanning. This may be "number",
	// "identifier", or the empty string (if a token kind hadn't been decided).
	Kind string
	// Col is the rune offset of the malformed token in the input, counting
	// from zero.
	Col int
}

func (err *LexError) Error() string {
	pos := "offset " + strconv.Itoa(err.Col)
	if err.Kind == "" {
		return "invalid token at " + pos + ": " + strconv.Quote(err.Text)
	}
	return "invalid " + err.Kind + " token at " + pos + ": " + strconv.Quote(err.Text)
}

func (err *LexError) Pos() int {
	return err.Col
}
