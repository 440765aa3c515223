package matching

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Rule errors.
var (
	ErrUnknownRule  = errors.New("unknown matching rule")
	ErrInvalidValue = errors.New("value does not conform to matching rule")
)

// Matching rule names.
const (
	CaseIgnoreMatch    = "caseIgnoreMatch"
	CaseExactMatch     = "caseExactMatch"
	OctetStringMatch   = "octetStringMatch"
	IntegerMatch       = "integerMatch"
	NumericStringMatch = "numericStringMatch"
)

// DefaultRule is used for attributes configured without a matching rule.
const DefaultRule = CaseIgnoreMatch

// Rule turns a raw attribute value into its canonical index key. Keys
// produced by one rule compare correctly with bytes.Compare.
type Rule interface {
	Name() string
	Normalize(value []byte) ([]byte, error)
}

type ruleFunc struct {
	name string
	fn   func([]byte) ([]byte, error)
}

func (r ruleFunc) Name() string {
	return r.name
}

func (r ruleFunc) Normalize(value []byte) ([]byte, error) {
	out, err := r.fn(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.name, err)
	}
	return out, nil
}

var rules = map[string]Rule{
	strings.ToLower(CaseIgnoreMatch):    ruleFunc{CaseIgnoreMatch, caseIgnore},
	strings.ToLower(CaseExactMatch):     ruleFunc{CaseExactMatch, caseExact},
	strings.ToLower(OctetStringMatch):   ruleFunc{OctetStringMatch, octetString},
	strings.ToLower(IntegerMatch):       ruleFunc{IntegerMatch, integer},
	strings.ToLower(NumericStringMatch): ruleFunc{NumericStringMatch, numericString},
}

// Lookup returns the rule registered under name, ignoring case. An empty
// name selects DefaultRule.
func Lookup(name string) (Rule, error) {
	if name == "" {
		name = DefaultRule
	}
	r, ok := rules[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRule, name)
	}
	return r, nil
}

// RuleNames returns the names of all registered rules.
func RuleNames() []string {
	return []string{CaseIgnoreMatch, CaseExactMatch, OctetStringMatch, IntegerMatch, NumericStringMatch}
}

// caseIgnore folds case and compatibility forms, then collapses spaces.
func caseIgnore(value []byte) ([]byte, error) {
	if !utf8.Valid(value) {
		return nil, ErrInvalidValue
	}
	folded := cases.Fold().Bytes(norm.NFKC.Bytes(value))
	return collapseSpaces(folded), nil
}

func caseExact(value []byte) ([]byte, error) {
	if !utf8.Valid(value) {
		return nil, ErrInvalidValue
	}
	return collapseSpaces(norm.NFC.Bytes(value)), nil
}

func octetString(value []byte) ([]byte, error) {
	return append([]byte(nil), value...), nil
}

// integer encodes a decimal integer so that byte order matches numeric
// order.
func integer(value []byte) ([]byte, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(string(value)), 10, 64)
	if err != nil {
		return nil, ErrInvalidValue
	}
	return Int64Codec{}.Append(nil, n), nil
}

// numericString drops spaces and accepts digits only.
func numericString(value []byte) ([]byte, error) {
	out := make([]byte, 0, len(value))
	for _, b := range value {
		switch {
		case b == ' ':
		case b >= '0' && b <= '9':
			out = append(out, b)
		default:
			return nil, ErrInvalidValue
		}
	}
	return out, nil
}

// collapseSpaces trims leading and trailing white space and replaces
// inner runs with a single space.
func collapseSpaces(value []byte) []byte {
	out := make([]byte, 0, len(value))
	space := false
	for _, r := range string(value) {
		if unicode.IsSpace(r) {
			space = len(out) > 0
			continue
		}
		if space {
			out = append(out, ' ')
			space = false
		}
		out = utf8.AppendRune(out, r)
	}
	return out
}
