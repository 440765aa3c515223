package filter

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Parser errors. Parse wraps them in a *SyntaxError.
var (
	ErrEmptyFilter      = errors.New("empty filter")
	ErrInvalidFilter    = errors.New("invalid filter syntax")
	ErrUnbalancedParens = errors.New("unbalanced parentheses")
	ErrMissingValue     = errors.New("missing filter value")
	ErrInvalidEscape    = errors.New("invalid escape sequence")
	ErrUnsupportedMatch = errors.New("unsupported filter match type")
)

// SyntaxError reports the byte offset at which a filter failed to parse.
type SyntaxError struct {
	Offset int
	Err    error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("filter offset %d: %v", e.Offset, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// Parse parses an RFC 4515 filter string. A single item may omit its
// parentheses, as in "uid=alice". Approximate and extensible matches are
// rejected with ErrUnsupportedMatch.
func Parse(s string) (*Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyFilter
	}
	if s[0] != '(' {
		if strings.ContainsAny(s, "()") {
			return nil, &SyntaxError{Err: ErrInvalidFilter}
		}
		s = "(" + s + ")"
	}

	p := &parser{s: s}
	f, err := p.filter()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.s) {
		return nil, p.fail(ErrInvalidFilter)
	}
	return f, nil
}

type parser struct {
	s   string
	pos int
}

func (p *parser) fail(err error) error {
	return &SyntaxError{Offset: p.pos, Err: err}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.s) && p.s[p.pos] == ' ' {
		p.pos++
	}
}

// peek returns the next byte, or 0 at the end of input.
func (p *parser) peek() byte {
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

// filter parses "(" filtercomp ")".
func (p *parser) filter() (*Filter, error) {
	p.skipSpace()
	switch p.peek() {
	case '(':
		p.pos++
	case 0:
		return nil, p.fail(ErrUnbalancedParens)
	default:
		return nil, p.fail(ErrInvalidFilter)
	}

	var (
		f   *Filter
		err error
	)
	switch p.peek() {
	case 0:
		return nil, p.fail(ErrUnbalancedParens)
	case ')':
		return nil, p.fail(ErrEmptyFilter)
	case '&':
		p.pos++
		f, err = p.set(OpAnd)
	case '|':
		p.pos++
		f, err = p.set(OpOr)
	case '!':
		p.pos++
		var operand *Filter
		if operand, err = p.filter(); err == nil {
			f = Not(operand)
		}
	default:
		f, err = p.item()
	}
	if err != nil {
		return nil, err
	}

	p.skipSpace()
	switch p.peek() {
	case ')':
		p.pos++
		return f, nil
	case 0:
		return nil, p.fail(ErrUnbalancedParens)
	default:
		return nil, p.fail(ErrInvalidFilter)
	}
}

// set parses the members of an AND or OR.
func (p *parser) set(op Op) (*Filter, error) {
	f := &Filter{Op: op}
	for {
		p.skipSpace()
		c := p.peek()
		if c == 0 {
			return nil, p.fail(ErrUnbalancedParens)
		}
		if c != '(' {
			break
		}
		child, err := p.filter()
		if err != nil {
			return nil, err
		}
		f.Children = append(f.Children, child)
	}
	if len(f.Children) == 0 {
		return nil, p.fail(ErrInvalidFilter)
	}
	return f, nil
}

// item parses attr op value up to, not including, the closing paren.
func (p *parser) item() (*Filter, error) {
	start := p.pos
	n := strings.IndexAny(p.s[start:], "=<>~:()")
	if n < 0 {
		return nil, p.fail(ErrUnbalancedParens)
	}
	p.pos = start + n
	attr := strings.TrimSpace(p.s[start:p.pos])
	rest := p.s[p.pos:]

	var op Op
	switch {
	case strings.HasPrefix(rest, "~="), rest[0] == ':':
		return nil, p.fail(ErrUnsupportedMatch)
	case strings.HasPrefix(rest, ">="):
		op = OpGreaterOrEqual
		p.pos += 2
	case strings.HasPrefix(rest, "<="):
		op = OpLessOrEqual
		p.pos += 2
	case rest[0] == '=':
		op = OpEqual
		p.pos++
	default:
		return nil, p.fail(ErrInvalidFilter)
	}
	if attr == "" {
		return nil, &SyntaxError{Offset: start, Err: ErrInvalidFilter}
	}

	valueStart := p.pos
	n = strings.IndexAny(p.s[valueStart:], "()")
	if n < 0 {
		return nil, p.fail(ErrUnbalancedParens)
	}
	p.pos = valueStart + n
	if p.s[p.pos] == '(' {
		return nil, p.fail(ErrInvalidFilter)
	}
	raw := p.s[valueStart:p.pos]

	switch {
	case op != OpEqual:
		if raw == "" {
			return nil, &SyntaxError{Offset: valueStart, Err: ErrMissingValue}
		}
		value, err := unescape(raw, valueStart)
		if err != nil {
			return nil, err
		}
		return &Filter{Op: op, Attribute: attr, Value: value}, nil
	case raw == "*":
		return Present(attr), nil
	case strings.IndexByte(raw, '*') >= 0:
		return substring(attr, raw, valueStart)
	default:
		value, err := unescape(raw, valueStart)
		if err != nil {
			return nil, err
		}
		return Equal(attr, value), nil
	}
}

// substring splits raw on its unescaped stars.
func substring(attr, raw string, offset int) (*Filter, error) {
	parts := strings.Split(raw, "*")
	f := &Filter{Op: OpSubstring, Attribute: attr}

	for i, part := range parts {
		if part != "" {
			v, err := unescape(part, offset)
			if err != nil {
				return nil, err
			}
			switch i {
			case 0:
				f.Initial = v
			case len(parts) - 1:
				f.Final = v
			default:
				f.Any = append(f.Any, v)
			}
		}
		offset += len(part) + 1
	}
	return f, nil
}

// unescape decodes the \XX escapes of an assertion value found at offset.
func unescape(s string, offset int) ([]byte, error) {
	if strings.IndexByte(s, '\\') < 0 {
		return []byte(s), nil
	}

	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			out = append(out, s[i])
			continue
		}
		if i+2 >= len(s) {
			return nil, &SyntaxError{Offset: offset + i, Err: ErrInvalidEscape}
		}
		b, err := hex.DecodeString(s[i+1 : i+3])
		if err != nil {
			return nil, &SyntaxError{Offset: offset + i, Err: ErrInvalidEscape}
		}
		out = append(out, b[0])
		i += 2
	}
	return out, nil
}
