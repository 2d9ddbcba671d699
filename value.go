package numgrade

import (
	"math"
	"math/cmplx"
	"strconv"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/cblas128"
)

// Shape is the dimension sizes of an array value, outermost first. A nil
// Shape denotes a scalar. Rank 1 is a vector, rank 2 a matrix, and higher
// ranks are tensors; ranks never coerce into one another.
type Shape []int

// Rank returns the number of dimensions.
func (s Shape) Rank() int {
	return len(s)
}

// Size returns the total number of elements, the product of the dimensions.
func (s Shape) Size() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Equal reports whether two shapes have the same rank and dimensions.
func (s Shape) Equal(t Shape) bool {
	if len(s) != len(t) {
		return false
	}
	for i, d := range s {
		if t[i] != d {
			return false
		}
	}
	return true
}

// String describes the shape in human terms, e.g. "a scalar", "a vector of
// length 3", or "a matrix of shape (rows: 2, cols: 2)".
func (s Shape) String() string {
	switch len(s) {
	case 0:
		return "a scalar"
	case 1:
		return "a vector of length " + strconv.Itoa(s[0])
	case 2:
		return "a matrix of shape (rows: " + strconv.Itoa(s[0]) + ", cols: " + strconv.Itoa(s[1]) + ")"
	default:
		r := "a tensor of shape ("
		for i, d := range s {
			if i > 0 {
				r += ", "
			}
			r += strconv.Itoa(d)
		}
		return r + ")"
	}
}

// Value is a numeric value: a complex scalar, or an array of complex scalars
// with a shape. The zero Value is the scalar 0.
type Value struct {
	c     complex128
	buf   []complex128
	shape Shape
}

// Scalar returns a scalar Value.
func Scalar(c complex128) Value {
	return Value{c: c}
}

// Real returns a real scalar Value.
func Real(x float64) Value {
	return Value{c: complex(x, 0)}
}

// Vector returns a rank-1 Value over a copy of elems.
func Vector(elems ...complex128) Value {
	buf := append([]complex128(nil), elems...)
	return Value{buf: buf, shape: Shape{len(buf)}}
}

// Matrix returns a rank-2 Value over a copy of the row-major data. It panics
// if len(data) != rows*cols.
func Matrix(rows, cols int, data ...complex128) Value {
	if len(data) != rows*cols {
		panic("numgrade: matrix data length " + strconv.Itoa(len(data)) + " does not match shape")
	}
	buf := append([]complex128(nil), data...)
	return Value{buf: buf, shape: Shape{rows, cols}}
}

// NewArray returns a Value of the given shape over a copy of the row-major
// data. It panics if len(data) != shape.Size().
func NewArray(shape Shape, data []complex128) Value {
	if shape.Rank() == 0 {
		if len(data) != 1 {
			panic("numgrade: scalar data length " + strconv.Itoa(len(data)))
		}
		return Value{c: data[0]}
	}
	if len(data) != shape.Size() {
		panic("numgrade: array data length " + strconv.Itoa(len(data)) + " does not match shape")
	}
	return Value{
		buf:   append([]complex128(nil), data...),
		shape: append(Shape(nil), shape...),
	}
}

// IsScalar reports whether the value is a scalar.
func (v Value) IsScalar() bool {
	return v.shape.Rank() == 0
}

// Shape returns the value's shape. It is nil for scalars.
func (v Value) Shape() Shape {
	return v.shape
}

// Complex returns the scalar payload. It is 0 for arrays.
func (v Value) Complex() complex128 {
	return v.c
}

// Items returns the flat row-major element buffer for arrays, or a one-item
// slice for scalars. The caller must not modify it.
func (v Value) Items() []complex128 {
	if v.IsScalar() {
		return []complex128{v.c}
	}
	return v.buf
}

// Describe returns a human description of the value's shape.
func (v Value) Describe() string {
	return v.shape.String()
}

func (v Value) String() string {
	if v.IsScalar() {
		return strconv.FormatComplex(v.c, 'g', -1, 128)
	}
	r := "["
	for i, c := range v.buf {
		if i > 0 {
			r += ", "
		}
		r += strconv.FormatComplex(c, 'g', -1, 128)
	}
	return r + "]" + " " + v.shape.String()
}

// isZero reports whether a scalar value is exactly zero.
func (v Value) isZero() bool {
	return v.IsScalar() && v.c == 0
}

// hasInf reports whether any element is infinite.
func (v Value) hasInf() bool {
	if v.IsScalar() {
		return cmplx.IsInf(v.c)
	}
	for _, c := range v.buf {
		if cmplx.IsInf(c) {
			return true
		}
	}
	return false
}

// hasNaN reports whether any element is NaN.
func (v Value) hasNaN() bool {
	if v.IsScalar() {
		return cmplx.IsNaN(v.c)
	}
	for _, c := range v.buf {
		if cmplx.IsNaN(c) {
			return true
		}
	}
	return false
}

func (v Value) each(f func(complex128) complex128) Value {
	if v.IsScalar() {
		return Value{c: f(v.c)}
	}
	buf := make([]complex128, len(v.buf))
	for i, c := range v.buf {
		buf[i] = f(c)
	}
	return Value{buf: buf, shape: v.shape}
}

// Neg returns the additive inverse.
func (v Value) Neg() Value {
	return v.each(func(c complex128) complex128 { return -c })
}

// Add returns a+b. Adding a scalar to an array is a shape error unless the
// scalar is exactly zero.
func (a Value) Add(b Value) (Value, error) {
	return addsub(a, b, "+", func(x, y complex128) complex128 { return x + y })
}

// Sub returns a-b under the same shape rules as Add.
func (a Value) Sub(b Value) (Value, error) {
	return addsub(a, b, "-", func(x, y complex128) complex128 { return x - y })
}

func addsub(a, b Value, op string, f func(x, y complex128) complex128) (Value, error) {
	switch {
	case a.IsScalar() && b.IsScalar():
		return Value{c: f(a.c, b.c)}, nil
	case a.IsScalar():
		// Zero is the lone scalar which may meet an array here.
		if a.isZero() {
			return b.each(func(c complex128) complex128 { return f(0, c) }), nil
		}
		return Value{}, &ShapeError{Op: op, A: a.shape, B: b.shape}
	case b.IsScalar():
		if b.isZero() {
			return a, nil
		}
		return Value{}, &ShapeError{Op: op, A: a.shape, B: b.shape}
	case !a.shape.Equal(b.shape):
		return Value{}, &ShapeError{Op: op, A: a.shape, B: b.shape}
	}
	buf := make([]complex128, len(a.buf))
	for i := range a.buf {
		buf[i] = f(a.buf[i], b.buf[i])
	}
	return Value{buf: buf, shape: a.shape}, nil
}

// Mul returns a*b: numeric product for scalars, elementwise scaling for a
// scalar and an array, the dot product for two vectors of equal length, and
// the linear-algebra product for matrix operands with matching inner
// dimensions.
func (a Value) Mul(b Value) (Value, error) {
	switch {
	case a.IsScalar() && b.IsScalar():
		return Value{c: a.c * b.c}, nil
	case a.IsScalar():
		return b.each(func(c complex128) complex128 { return a.c * c }), nil
	case b.IsScalar():
		return a.each(func(c complex128) complex128 { return c * b.c }), nil
	}
	ra, rb := a.shape.Rank(), b.shape.Rank()
	switch {
	case ra == 1 && rb == 1:
		if a.shape[0] != b.shape[0] {
			return Value{}, &ShapeError{Op: "*", A: a.shape, B: b.shape}
		}
		var dot complex128
		for i := range a.buf {
			dot += a.buf[i] * b.buf[i]
		}
		return Value{c: dot}, nil
	case ra == 2 && rb == 1:
		m, n := a.shape[0], a.shape[1]
		if n != b.shape[0] {
			return Value{}, &ShapeError{Op: "*", A: a.shape, B: b.shape}
		}
		buf := make([]complex128, m)
		for i := 0; i < m; i++ {
			var s complex128
			for k := 0; k < n; k++ {
				s += a.buf[i*n+k] * b.buf[k]
			}
			buf[i] = s
		}
		return Value{buf: buf, shape: Shape{m}}, nil
	case ra == 1 && rb == 2:
		n, c := b.shape[0], b.shape[1]
		if a.shape[0] != n {
			return Value{}, &ShapeError{Op: "*", A: a.shape, B: b.shape}
		}
		buf := make([]complex128, c)
		for j := 0; j < c; j++ {
			var s complex128
			for k := 0; k < n; k++ {
				s += a.buf[k] * b.buf[k*c+j]
			}
			buf[j] = s
		}
		return Value{buf: buf, shape: Shape{c}}, nil
	case ra == 2 && rb == 2:
		if a.shape[1] != b.shape[0] {
			return Value{}, &ShapeError{Op: "*", A: a.shape, B: b.shape}
		}
		return matmul(a, b), nil
	default:
		return Value{}, &ShapeError{Op: "*", A: a.shape, B: b.shape}
	}
}

// matmul multiplies two rank-2 values with matching inner dimensions.
// gonum's mat package has no complex dense multiply, so this goes through
// cblas128.Gemm directly.
func matmul(a, b Value) Value {
	m, k, n := a.shape[0], a.shape[1], b.shape[1]
	am := cblas128.General{Rows: m, Cols: k, Stride: k, Data: a.buf}
	bm := cblas128.General{Rows: k, Cols: n, Stride: n, Data: b.buf}
	out := cblas128.General{Rows: m, Cols: n, Stride: n, Data: make([]complex128, m*n)}
	cblas128.Gemm(blas.NoTrans, blas.NoTrans, 1, am, bm, 0, out)
	return Value{buf: out.Data, shape: Shape{m, n}}
}

// Div returns a/b. Dividing an array by a scalar scales elementwise;
// dividing by an array is always a shape error. Dividing by scalar zero is a
// ZeroDivisionError.
func (a Value) Div(b Value) (Value, error) {
	if !b.IsScalar() {
		return Value{}, &ShapeError{Op: "/", A: a.shape, B: b.shape}
	}
	if b.c == 0 {
		return Value{}, &ZeroDivisionError{}
	}
	return a.each(func(c complex128) complex128 { return c / b.c }), nil
}

// Pow returns a^b. Scalars use the complex principal power; a matrix may
// only be raised to an integer scalar power, with negative exponents
// inverting first unless inverses are disabled.
func (a Value) Pow(b Value, allowInverse bool) (Value, error) {
	if a.IsScalar() && b.IsScalar() {
		if b.c == 0 {
			return Value{c: 1}, nil
		}
		return Value{c: cmplx.Pow(a.c, b.c)}, nil
	}
	if !b.IsScalar() {
		return Value{}, &ShapeError{Op: "^", A: a.shape, B: b.shape}
	}
	if a.shape.Rank() != 2 || a.shape[0] != a.shape[1] {
		return Value{}, &ShapeError{Op: "^", A: a.shape, B: b.shape}
	}
	k, ok := intExponent(b.c)
	if !ok {
		return Value{}, &DomainError{Func: "^", Msg: "a matrix can only be raised to an integer power"}
	}
	n := a.shape[0]
	base := a.buf
	if k < 0 {
		if !allowInverse {
			return Value{}, &DomainError{Func: "^", Msg: "negative matrix powers have been disabled for this problem"}
		}
		inv, err := matInverse(base, n)
		if err != nil {
			return Value{}, err
		}
		base = inv
		k = -k
	}
	out := identity(n)
	acc := Value{buf: base, shape: Shape{n, n}}
	for i := 0; i < k; i++ {
		out = matmul(out, acc)
	}
	return out, nil
}

// intExponent extracts an exact integer from a scalar exponent.
func intExponent(c complex128) (int, bool) {
	if imag(c) != 0 {
		return 0, false
	}
	x := real(c)
	if x != math.Trunc(x) || math.Abs(x) > 1e6 {
		return 0, false
	}
	return int(x), true
}

// identity returns the n-by-n identity matrix.
func identity(n int) Value {
	buf := make([]complex128, n*n)
	for i := 0; i < n; i++ {
		buf[i*n+i] = 1
	}
	return Value{buf: buf, shape: Shape{n, n}}
}

// matInverse inverts an n-by-n complex matrix by Gauss-Jordan elimination
// with partial pivoting. gonum's Inverse is real-only, so this stays by
// hand.
func matInverse(a []complex128, n int) ([]complex128, error) {
	m := append([]complex128(nil), a...)
	inv := identity(n).buf
	for col := 0; col < n; col++ {
		// Pivot on the largest remaining magnitude in this column.
		piv := col
		for r := col + 1; r < n; r++ {
			if cmplx.Abs(m[r*n+col]) > cmplx.Abs(m[piv*n+col]) {
				piv = r
			}
		}
		if cmplx.Abs(m[piv*n+col]) < 1e-30 {
			return nil, &DomainError{Func: "^", Msg: "matrix is not invertible"}
		}
		if piv != col {
			for j := 0; j < n; j++ {
				m[col*n+j], m[piv*n+j] = m[piv*n+j], m[col*n+j]
				inv[col*n+j], inv[piv*n+j] = inv[piv*n+j], inv[col*n+j]
			}
		}
		p := m[col*n+col]
		for j := 0; j < n; j++ {
			m[col*n+j] /= p
			inv[col*n+j] /= p
		}
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			f := m[r*n+col]
			if f == 0 {
				continue
			}
			for j := 0; j < n; j++ {
				m[r*n+j] -= f * m[col*n+j]
				inv[r*n+j] -= f * inv[col*n+j]
			}
		}
	}
	return inv, nil
}

// ShapeError is an error indicating operands whose shapes do not fit the
// operator's rules. The message names both shapes in human terms.
type ShapeError struct {
	// Op is the operator.
	Op string
	// A and B are the operand shapes.
	A, B Shape
}

func (err *ShapeError) Error() string {
	switch err.Op {
	case "+", "-":
		return "cannot add or subtract " + err.A.String() + " and " + err.B.String()
	case "*":
		return "cannot multiply " + err.A.String() + " by " + err.B.String()
	case "/":
		return "cannot divide " + err.A.String() + " by " + err.B.String()
	case "^":
		return "cannot raise " + err.A.String() + " to the power of " + err.B.String()
	}
	return "cannot apply " + err.Op + " to " + err.A.String() + " and " + err.B.String()
}

func (err *ShapeError) evalError() {}

// ZeroDivisionError is an error indicating division by exactly zero. It is
// distinct from overflow.
type ZeroDivisionError struct{}

func (err *ZeroDivisionError) Error() string {
	return "division by zero"
}

func (err *ZeroDivisionError) evalError() {}
