package filter

import (
	"fmt"
	"strings"
)

// Op is the kind of a filter node.
type Op uint8

const (
	OpAnd Op = iota + 1
	OpOr
	OpNot
	OpEqual
	OpPresent
	OpGreaterOrEqual
	OpLessOrEqual
	OpSubstring
)

var opNames = map[Op]string{
	OpAnd:            "AND",
	OpOr:             "OR",
	OpNot:            "NOT",
	OpEqual:          "EQUAL",
	OpPresent:        "PRESENT",
	OpGreaterOrEqual: "GREATER_OR_EQUAL",
	OpLessOrEqual:    "LESS_OR_EQUAL",
	OpSubstring:      "SUBSTRING",
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Op(%d)", uint8(op))
}

// Filter is a node of a search filter tree. Assertion values are kept as
// given; the indexes normalize them with the attribute's matching rule.
type Filter struct {
	Op        Op
	Attribute string
	Value     []byte

	// Initial, Any and Final are the components of a substring
	// assertion. Empty components are absent.
	Initial []byte
	Any     [][]byte
	Final   []byte

	// Children holds the members of AND and OR, or the single operand
	// of NOT.
	Children []*Filter
}

func And(children ...*Filter) *Filter { return &Filter{Op: OpAnd, Children: children} }

func Or(children ...*Filter) *Filter { return &Filter{Op: OpOr, Children: children} }

func Not(child *Filter) *Filter { return &Filter{Op: OpNot, Children: []*Filter{child}} }

func Equal(attr string, value []byte) *Filter {
	return &Filter{Op: OpEqual, Attribute: attr, Value: value}
}

func Present(attr string) *Filter { return &Filter{Op: OpPresent, Attribute: attr} }

func GreaterOrEqual(attr string, value []byte) *Filter {
	return &Filter{Op: OpGreaterOrEqual, Attribute: attr, Value: value}
}

func LessOrEqual(attr string, value []byte) *Filter {
	return &Filter{Op: OpLessOrEqual, Attribute: attr, Value: value}
}

// Substring builds (attr=initial*any0*any1*...*final).
func Substring(attr string, initial []byte, any [][]byte, final []byte) *Filter {
	return &Filter{Op: OpSubstring, Attribute: attr, Initial: initial, Any: any, Final: final}
}

// Operand returns the operand of a NOT filter.
func (f *Filter) Operand() *Filter {
	if f.Op != OpNot || len(f.Children) != 1 {
		return nil
	}
	return f.Children[0]
}

// String renders the filter in RFC 4515 form.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	var b strings.Builder
	f.render(&b)
	return b.String()
}

func (f *Filter) render(b *strings.Builder) {
	b.WriteByte('(')
	defer b.WriteByte(')')

	switch f.Op {
	case OpAnd, OpOr, OpNot:
		b.WriteByte("&|!"[f.Op-OpAnd])
		for _, c := range f.Children {
			c.render(b)
		}
		return
	}

	b.WriteString(f.Attribute)
	switch f.Op {
	case OpEqual:
		b.WriteByte('=')
		writeEscaped(b, f.Value)
	case OpGreaterOrEqual:
		b.WriteString(">=")
		writeEscaped(b, f.Value)
	case OpLessOrEqual:
		b.WriteString("<=")
		writeEscaped(b, f.Value)
	case OpPresent:
		b.WriteString("=*")
	case OpSubstring:
		b.WriteByte('=')
		writeEscaped(b, f.Initial)
		b.WriteByte('*')
		for _, a := range f.Any {
			writeEscaped(b, a)
			b.WriteByte('*')
		}
		writeEscaped(b, f.Final)
	}
}

// writeEscaped writes v with the bytes RFC 4515 reserves as \XX escapes.
func writeEscaped(b *strings.Builder, v []byte) {
	const hexDigits = "0123456789abcdef"
	for _, c := range v {
		switch c {
		case '*', '(', ')', '\\', 0:
			b.WriteByte('\\')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
		default:
			b.WriteByte(c)
		}
	}
}
