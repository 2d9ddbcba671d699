package numgrade

import "strconv"

// OperatorError is an error indicating an operator token where the parser
// expected an operand, such as the second of two consecutive binary
// operators. It implements InputError.
type OperatorError struct {
	// Col is the position of the operator.
	Col int
	// Operator is the token that was not understood.
	Operator string
	// Unary is whether the parser expected a unary operator at the time.
	Unary bool
}

func (err *OperatorError) Error() string {
	if err.Unary {
		return errpos(err.Col, "operator "+strconv.Quote(err.Operator)+" where a value was expected")
	}
	return errpos(err.Col, "unknown operator "+strconv.Quote(err.Operator))
}

func (err *OperatorError) Pos() int {
	return err.Col
}

// BracketError is an error indicating mismatched brackets in the input. Col
// points at the offending bracket itself: the close bracket when an extra or
// mismatched close bracket appears, or the open bracket when the input ends
// before it is closed. It implements InputError.
type BracketError struct {
	// Col is the position of the offending bracket.
	Col int
	// Left is the opening bracket.
	Left string
	// Right is the mismatched closing bracket.
	Right string
}

func (err *BracketError) Error() string {
	if err.Left == "" {
		return errpos(err.Col, "close bracket "+err.Right+" with no open bracket")
	}
	if err.Right == "" {
		return errpos(err.Col, "open bracket "+err.Left+" with no close bracket")
	}
	return errpos(err.Col, "mismatched bracket: "+err.Left+"expr"+err.Right)
}

func (err *BracketError) Pos() int {
	return err.Col
}

// SeparatorError is an error indicating a comma outside a function argument
// list or array literal. It implements InputError.
type SeparatorError struct {
	// Col is the position of the separator.
	Col int
	// Sep is the separator.
	Sep string
}

func (err *SeparatorError) Error() string {
	return errpos(err.Col, "invalid occurrence of separator "+strconv.Quote(err.Sep))
}

func (err *SeparatorError) Pos() int {
	return err.Col
}

// AdjacentValuesError is an error indicating two adjacent operands with no
// operator between them. Multiplication is never implied. It implements
// InputError.
type AdjacentValuesError struct {
	// Col is the position of the second operand.
	Col int
	// Text is the token that began the second operand.
	Text string
}

func (err *AdjacentValuesError) Error() string {
	return errpos(err.Col, "missing operator (a multiplication sign, perhaps?) before "+strconv.Quote(err.Text))
}

func (err *AdjacentValuesError) Pos() int {
	return err.Col
}

// FunctionCallError is an error indicating a known function name that is not
// followed by an open parenthesis. It implements InputError.
type FunctionCallError struct {
	// Col is the position of the function name.
	Col int
	// Func is the function name.
	Func string
}

func (err *FunctionCallError) Error() string {
	return errpos(err.Col, err.Func+" is a function; it must be followed by an argument list in parentheses")
}

func (err *FunctionCallError) Pos() int {
	return err.Col
}

// EmptyExpressionError is an error indicating an empty expression or
// subexpression. It implements InputError.
type EmptyExpressionError struct {
	// Col is the position of the token that ended the subexpression.
	Col int
	// End is the token that ended the subexpression.
	End string
}

func (err *EmptyExpressionError) Error() string {
	if err.End == "" {
		if err.Col == 0 {
			return errpos(err.Col, "no expression")
		}
		return errpos(err.Col, "no expression at end")
	}
	return errpos(err.Col, "no expression up to "+strconv.Quote(err.End))
}

func (err *EmptyExpressionError) Pos() int {
	return err.Col
}

// errpos is a shortcut to create an error message with a position.
func errpos(pos int, msg string) string {
	return strconv.Itoa(pos) + ": " + msg
}

// InputError is an error with position information. Every error resulting
// from malformed input implements InputError; the position is the rune
// offset, from zero, into the submission.
type InputError interface {
	error
	// Pos returns the offset of the token that caused the error.
	Pos() int
}

var (
	_ InputError = (*OperatorError)(nil)
	_ InputError = (*BracketError)(nil)
	_ InputError = (*SeparatorError)(nil)
	_ InputError = (*AdjacentValuesError)(nil)
	_ InputError = (*FunctionCallError)(nil)
	_ InputError = (*EmptyExpressionError)(nil)
	_ InputError = (*LexError)(nil)
)
