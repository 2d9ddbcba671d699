package numgrade

import (
	"strconv"
	"strings"
)

// node is a node in the abstract syntax tree of an expression. Nodes are
// immutable once the parser returns.
type node struct {
	kind nodeKind

	// name is the literal text for nodeNum, the identifier for nodeName, and
	// the function name for nodeCall. For nodeArg it is the separator text
	// that preceded the argument, if any.
	name string
	// val is the parsed numeric value for nodeNum.
	val float64
	// pos is the rune offset of the token that started this node.
	pos int

	left  *node
	right *node
}

type nodeKind int8

const (
	nodeNone nodeKind = iota

	nodeNum  // number literal
	nodeName // variable reference

	nodeCall // name is the function name, right links the nodeArg chain
	nodeArg  // left is the argument, right links the next nodeArg
	nodeArr  // array literal, right links the nodeArg chain of elements

	nodeNeg // evaluate left, then negate
	nodeNop // evaluate left (unary plus)
	nodeAdd // evaluate left, add right
	nodeSub // evaluate left, sub right
	nodeMul // evaluate left, mul right
	nodeDiv // evaluate left, div by right
	nodePow // evaluate left, exp by right
)

func (k nodeKind) String() string {
	switch k {
	case nodeNone:
		return "None"
	case nodeNum:
		return "Num"
	case nodeName:
		return "Name"
	case nodeCall:
		return "Call"
	case nodeArg:
		return "Arg"
	case nodeArr:
		return "Arr"
	case nodeNeg:
		return "Neg"
	case nodeNop:
		return "Nop"
	case nodeAdd:
		return "Add"
	case nodeSub:
		return "Sub"
	case nodeMul:
		return "Mul"
	case nodeDiv:
		return "Div"
	case nodePow:
		return "Pow"
	}
	return "nodeKind(" + strconv.Itoa(int(k)) + ")"
}

func (n *node) String() string {
	var b strings.Builder
	n.fmt(&b)
	return b.String()
}

func (n *node) fmt(b *strings.Builder) {
	b.WriteByte('(')
	defer b.WriteByte(')')
	switch n.kind {
	case nodeNone:
		// Invalid nodes use invalid characters.
		b.WriteByte('$')
		if n.left != nil {
			n.left.fmt(b)
		}
		b.WriteByte('#')
		if n.right != nil {
			n.right.fmt(b)
		}
		b.WriteByte('$')
	case nodeNum, nodeName:
		b.WriteString(n.name)
	case nodeCall:
		b.WriteString(n.name)
		n.fmtargs(b, '(', ')')
	case nodeArr:
		n.fmtargs(b, '[', ']')
	case nodeArg:
		// Args usually only appear inside calls and arrays, which are
		// handled by fmtargs.
		b.WriteByte(':')
		n.left.fmt(b)
		if n.right != nil {
			n.right.fmt(b)
		}
	case nodeNeg:
		b.WriteByte('-')
		n.left.fmt(b)
	case nodeNop:
		b.WriteByte('+')
		n.left.fmt(b)
	case nodeAdd:
		n.left.fmt(b)
		b.WriteString(" + ")
		n.right.fmt(b)
	case nodeSub:
		n.left.fmt(b)
		b.WriteString(" - ")
		n.right.fmt(b)
	case nodeMul:
		n.left.fmt(b)
		b.WriteString(" * ")
		n.right.fmt(b)
	case nodeDiv:
		n.left.fmt(b)
		b.WriteString(" / ")
		n.right.fmt(b)
	case nodePow:
		n.left.fmt(b)
		b.WriteString(" ^ ")
		n.right.fmt(b)
	default:
		panic("numgrade: invalid node kind " + n.kind.String() + " after writing " + b.String())
	}
}

func (n *node) fmtargs(b *strings.Builder, l, r byte) {
	b.WriteByte(l)
	defer b.WriteByte(r)
	if n.right == nil {
		return
	}
	n = n.right
	n.left.fmt(b)
	for n.right != nil {
		n = n.right
		b.WriteString(", ")
		n.left.fmt(b)
	}
}
