package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Items(t *testing.T) {
	tests := []struct {
		input string
		want  *Filter
	}{
		{"(uid=alice)", Equal("uid", []byte("alice"))},
		{"uid=alice", Equal("uid", []byte("alice"))},
		{"( uid = alice)", Equal("uid", []byte(" alice"))},
		{"(mail=*)", Present("mail")},
		{"(uidNumber>=1000)", GreaterOrEqual("uidNumber", []byte("1000"))},
		{"(uidNumber<=2000)", LessOrEqual("uidNumber", []byte("2000"))},
		{"(cn=a\\2ab)", Equal("cn", []byte("a*b"))},
		{"(cn=\\28x\\29)", Equal("cn", []byte("(x)"))},
		{"(userCertificate;binary=\\00)", Equal("userCertificate;binary", []byte{0})},
		{"(cn=ali*)", Substring("cn", []byte("ali"), nil, nil)},
		{"(cn=*smith)", Substring("cn", nil, nil, []byte("smith"))},
		{"(cn=*mit*)", Substring("cn", nil, [][]byte{[]byte("mit")}, nil)},
		{"(cn=a*b**c*d)", Substring("cn", []byte("a"), [][]byte{[]byte("b"), []byte("c")}, []byte("d"))},
		{"(cn=\\2a*x)", Substring("cn", []byte("*"), nil, []byte("x"))},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Composite(t *testing.T) {
	got, err := Parse("(&(objectClass=person) (|(uid=alice)(uid=bob))(!(mail=*)))")
	require.NoError(t, err)

	want := And(
		Equal("objectClass", []byte("person")),
		Or(Equal("uid", []byte("alice")), Equal("uid", []byte("bob"))),
		Not(Present("mail")),
	)
	assert.Equal(t, want, got)
	assert.Equal(t, OpPresent, got.Children[2].Operand().Op)
	assert.Nil(t, got.Operand())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		input  string
		want   error
		offset int
	}{
		{"", ErrEmptyFilter, -1},
		{"()", ErrEmptyFilter, 1},
		{"(&(uid=a)", ErrUnbalancedParens, 9},
		{"(&(uid=a)(cn=b)", ErrUnbalancedParens, 15},
		{"(uid=a", ErrUnbalancedParens, 5},
		{"uid=(a)", ErrInvalidFilter, 0},
		{"(&)", ErrInvalidFilter, 2},
		{"(uid)", ErrInvalidFilter, 4},
		{"(=alice)", ErrInvalidFilter, 1},
		{"(uid=a)(cn=b)", ErrInvalidFilter, 7},
		{"(uid=a(b))", ErrInvalidFilter, 6},
		{"(uid>=)", ErrMissingValue, 6},
		{"(cn~=alice)", ErrUnsupportedMatch, 3},
		{"(cn:dn:=alice)", ErrUnsupportedMatch, 3},
		{"(cn=a\\2)", ErrInvalidEscape, 5},
		{"(cn=x*a\\zz)", ErrInvalidEscape, 7},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.ErrorIs(t, err, tt.want)

			var se *SyntaxError
			if tt.offset < 0 {
				assert.NotErrorAs(t, err, &se)
				return
			}
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.offset, se.Offset)
		})
	}
}

func TestFilter_StringRoundTrip(t *testing.T) {
	inputs := []string{
		"(uid=alice)",
		"(mail=*)",
		"(uidNumber>=1000)",
		"(uidNumber<=2000)",
		"(cn=ali*)",
		"(cn=*mit*h)",
		"(cn=a\\2ab)",
		"(cn=\\28\\29\\5c\\00)",
		"(&(objectClass=person)(|(uid=alice)(uid=bob))(!(mail=*)))",
	}

	for _, in := range inputs {
		f, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, in, f.String())
	}
	assert.Empty(t, (*Filter)(nil).String())
}

func TestOp_String(t *testing.T) {
	assert.Equal(t, "AND", OpAnd.String())
	assert.Equal(t, "GREATER_OR_EQUAL", OpGreaterOrEqual.String())
	assert.Equal(t, "SUBSTRING", OpSubstring.String())
	assert.Equal(t, "Op(0)", Op(0).String())
}

func TestSubstringParts_Match(t *testing.T) {
	parts := func(initial string, final string, any ...string) substringParts {
		p := substringParts{initial: []byte(initial), final: []byte(final)}
		for _, a := range any {
			p.any = append(p.any, []byte(a))
		}
		return p
	}

	tests := []struct {
		name  string
		parts substringParts
		key   string
		want  bool
	}{
		{"initial", parts("alice", ""), "alice smith", true},
		{"initial mismatch", parts("smith", ""), "alice smith", false},
		{"final", parts("", "smith"), "alice smith", true},
		{"any", parts("", "", "e s"), "alice smith", true},
		{"any in order", parts("", "", "smith", "alice"), "alice smith", false},
		{"all components", parts("a", "h", "l", "sm"), "alice smith", true},
		{"final overlapping initial", parts("ab", "bc"), "abc", false},
		{"repeated any", parts("", "", "-", "-", "-"), "a-b-c", false},
		{"empty parts", parts("", ""), "anything", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.parts.match([]byte(tt.key)))
		})
	}
}
