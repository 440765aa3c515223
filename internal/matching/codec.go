// Package matching provides comparators, order-preserving codecs and the
// matching rules that turn raw attribute values into index keys.
package matching

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"errors"
	"strings"
)

// Codec errors.
var (
	ErrShortBuffer = errors.New("encoded value too short")
)

// Codec encodes values so that bytes.Compare on the encodings agrees with
// Compare on the values.
type Codec[T any] interface {
	// Append appends the encoding of v to dst.
	Append(dst []byte, v T) []byte
	// Decode decodes a value produced by Append.
	Decode(data []byte) (T, error)
	// Compare orders two values.
	Compare(a, b T) int
}

// Encode returns the encoding of v in a new slice.
func Encode[T any](c Codec[T], v T) []byte {
	return c.Append(nil, v)
}

// CompareBytes orders byte slices lexicographically.
func CompareBytes(a, b []byte) int {
	return bytes.Compare(a, b)
}

// CompareUint64 orders unsigned identifiers.
func CompareUint64(a, b uint64) int {
	return cmp.Compare(a, b)
}

// BytesCodec stores byte slices as they are.
type BytesCodec struct{}

func (BytesCodec) Append(dst []byte, v []byte) []byte {
	return append(dst, v...)
}

func (BytesCodec) Decode(data []byte) ([]byte, error) {
	return bytes.Clone(data), nil
}

func (BytesCodec) Compare(a, b []byte) int {
	return bytes.Compare(a, b)
}

// StringCodec stores strings as their UTF-8 bytes.
type StringCodec struct{}

func (StringCodec) Append(dst []byte, v string) []byte {
	return append(dst, v...)
}

func (StringCodec) Decode(data []byte) (string, error) {
	return string(data), nil
}

func (StringCodec) Compare(a, b string) int {
	return strings.Compare(a, b)
}

// Uint64Codec stores unsigned integers big-endian.
type Uint64Codec struct{}

func (Uint64Codec) Append(dst []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(dst, v)
}

func (Uint64Codec) Decode(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, ErrShortBuffer
	}
	return binary.BigEndian.Uint64(data), nil
}

func (Uint64Codec) Compare(a, b uint64) int {
	return cmp.Compare(a, b)
}

// Int64Codec stores signed integers big-endian with the sign bit flipped,
// so negative values sort before positive ones.
type Int64Codec struct{}

func (Int64Codec) Append(dst []byte, v int64) []byte {
	return binary.BigEndian.AppendUint64(dst, uint64(v)^(1<<63))
}

func (Int64Codec) Decode(data []byte) (int64, error) {
	if len(data) != 8 {
		return 0, ErrShortBuffer
	}
	return int64(binary.BigEndian.Uint64(data) ^ (1 << 63)), nil
}

func (Int64Codec) Compare(a, b int64) int {
	return cmp.Compare(a, b)
}
