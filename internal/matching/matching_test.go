package matching

import (
	"bytes"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	r, err := Lookup("")
	require.NoError(t, err)
	assert.Equal(t, CaseIgnoreMatch, r.Name())

	r, err = Lookup("CASEEXACTMATCH")
	require.NoError(t, err)
	assert.Equal(t, CaseExactMatch, r.Name())

	_, err = Lookup("bogusMatch")
	assert.ErrorIs(t, err, ErrUnknownRule)

	for _, name := range RuleNames() {
		_, err := Lookup(name)
		assert.NoError(t, err, name)
	}
}

func TestRules_Normalize(t *testing.T) {
	tests := []struct {
		rule  string
		input string
		want  []byte
	}{
		{CaseIgnoreMatch, "  Alice   SMITH ", []byte("alice smith")},
		{CaseIgnoreMatch, "Straße", []byte("strasse")},
		{CaseIgnoreMatch, "ＡＢＣ", []byte("abc")},
		{CaseExactMatch, " Alice\tSmith", []byte("Alice Smith")},
		{OctetStringMatch, " Raw ", []byte(" Raw ")},
		{NumericStringMatch, "12 34 5", []byte("12345")},
		{IntegerMatch, "0", Int64Codec{}.Append(nil, 0)},
		{IntegerMatch, " -17 ", Int64Codec{}.Append(nil, -17)},
	}

	for _, tt := range tests {
		t.Run(tt.rule+"/"+tt.input, func(t *testing.T) {
			r, err := Lookup(tt.rule)
			require.NoError(t, err)
			got, err := r.Normalize([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRules_InvalidValues(t *testing.T) {
	tests := []struct {
		rule  string
		input []byte
	}{
		{IntegerMatch, []byte("twelve")},
		{NumericStringMatch, []byte("12a")},
		{CaseIgnoreMatch, []byte{0xff, 0xfe}},
		{CaseExactMatch, []byte{0xc3}},
	}

	for _, tt := range tests {
		r, err := Lookup(tt.rule)
		require.NoError(t, err)
		_, err = r.Normalize(tt.input)
		assert.ErrorIs(t, err, ErrInvalidValue, tt.rule)
	}
}

func TestIntegerRule_PreservesOrder(t *testing.T) {
	r, err := Lookup(IntegerMatch)
	require.NoError(t, err)

	inputs := []string{"100", "-5", "0", "7", "-1000", "42"}
	keys := make([][]byte, len(inputs))
	for i, in := range inputs {
		keys[i], err = r.Normalize([]byte(in))
		require.NoError(t, err)
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })

	var got []int64
	for _, k := range keys {
		v, err := Int64Codec{}.Decode(k)
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, []int64{-1000, -5, 0, 7, 42, 100}, got)
}

func TestCodecs_OrderPreserving(t *testing.T) {
	ints := []int64{math.MinInt64, -2, -1, 0, 1, 2, math.MaxInt64}
	for i := 1; i < len(ints); i++ {
		a := Encode[int64](Int64Codec{}, ints[i-1])
		b := Encode[int64](Int64Codec{}, ints[i])
		assert.Negative(t, bytes.Compare(a, b), "%d < %d", ints[i-1], ints[i])
	}

	uints := []uint64{0, 1, 255, 256, math.MaxUint64}
	for i := 1; i < len(uints); i++ {
		a := Encode[uint64](Uint64Codec{}, uints[i-1])
		b := Encode[uint64](Uint64Codec{}, uints[i])
		assert.Negative(t, bytes.Compare(a, b))
	}

	v, err := Uint64Codec{}.Decode(Encode[uint64](Uint64Codec{}, 99))
	require.NoError(t, err)
	assert.Equal(t, uint64(99), v)

	_, err = Uint64Codec{}.Decode([]byte{1, 2})
	assert.ErrorIs(t, err, ErrShortBuffer)

	s, err := StringCodec{}.Decode(StringCodec{}.Append([]byte("x"), "yz")[1:])
	require.NoError(t, err)
	assert.Equal(t, "yz", s)
}
