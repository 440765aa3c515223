package storage

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestPageTypeString(t *testing.T) {
	tests := []struct {
		pageType PageType
		expected string
	}{
		{PageTypeFree, "Free"},
		{PageTypeForward, "Forward"},
		{PageTypeReverse, "Reverse"},
		{PageTypeFreeList, "FreeList"},
		{PageType(99), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.pageType.String(); got != tt.expected {
			t.Errorf("PageType(%d).String() = %q, want %q", tt.pageType, got, tt.expected)
		}
	}
}

func TestPageEncodeDecode(t *testing.T) {
	page := NewPage(7, PageTypeForward)
	page.Header.SetLeaf()
	page.Header.ItemCount = 3
	copy(page.Data, "hello")

	buf, err := page.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}
	if len(buf) != PageSize {
		t.Fatalf("len(buf) = %d, want %d", len(buf), PageSize)
	}
	if page.Header.Checksum == 0 {
		t.Error("MarshalBinary did not record the checksum")
	}

	var got Page
	if err := got.UnmarshalBinary(buf); err != nil {
		t.Fatalf("UnmarshalBinary() error = %v", err)
	}
	if got.Header != page.Header {
		t.Errorf("header = %+v, want %+v", got.Header, page.Header)
	}
	if !got.Header.IsLeaf() {
		t.Error("IsLeaf() = false, want true")
	}
	if string(got.Data[:5]) != "hello" || len(got.Data) != PageDataSize {
		t.Errorf("Data = %q (len %d)", got.Data[:5], len(got.Data))
	}

	// The decoded payload must not alias buf.
	buf[PageHeaderSize] = 'j'
	if got.Data[0] != 'h' {
		t.Error("UnmarshalBinary aliased the input buffer")
	}
}

func TestPageDetectsCorruption(t *testing.T) {
	tests := []struct {
		name   string
		offset int
	}{
		{"payload", PageHeaderSize + 2},
		{"page id", 0},
		{"page type", 8},
		{"item count", 10},
		{"checksum", 13},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := NewPage(3, PageTypeReverse)
			copy(page.Data, "payload")
			buf, err := page.MarshalBinary()
			if err != nil {
				t.Fatalf("MarshalBinary() error = %v", err)
			}
			buf[tt.offset] ^= 0x01

			var got Page
			if err := got.UnmarshalBinary(buf); !errors.Is(err, ErrInvalidChecksum) {
				t.Errorf("UnmarshalBinary() error = %v, want ErrInvalidChecksum", err)
			}
		})
	}
}

func TestPageZeroFilledIsInvalid(t *testing.T) {
	// Pages added by growing the file are zero until first written.
	var got Page
	if err := got.UnmarshalBinary(make([]byte, PageSize)); !errors.Is(err, ErrInvalidChecksum) {
		t.Errorf("UnmarshalBinary(zeros) error = %v, want ErrInvalidChecksum", err)
	}
}

func TestPageEncodeToClearsStaleBytes(t *testing.T) {
	buf := make([]byte, PageSize)
	for i := range buf {
		buf[i] = 0xAA
	}

	page := NewPage(2, PageTypeFreeList)
	page.Data = page.Data[:8]
	binary.LittleEndian.PutUint64(page.Data, 42)
	if err := page.EncodeTo(buf); err != nil {
		t.Fatalf("EncodeTo() error = %v", err)
	}

	var got Page
	if err := got.UnmarshalBinary(buf); err != nil {
		t.Fatalf("UnmarshalBinary() error = %v", err)
	}
	if binary.LittleEndian.Uint64(got.Data) != 42 || got.Data[8] != 0 {
		t.Errorf("payload = %x", got.Data[:16])
	}
}

func TestPageSizeErrors(t *testing.T) {
	page := NewPage(1, PageTypeFree)
	if err := page.EncodeTo(make([]byte, 10)); !errors.Is(err, ErrInvalidPageSize) {
		t.Errorf("EncodeTo() error = %v, want ErrInvalidPageSize", err)
	}

	page.Data = make([]byte, PageDataSize+1)
	if _, err := page.MarshalBinary(); !errors.Is(err, ErrInvalidPageSize) {
		t.Errorf("MarshalBinary() error = %v, want ErrInvalidPageSize", err)
	}

	var got Page
	if err := got.UnmarshalBinary(make([]byte, 10)); !errors.Is(err, ErrInvalidPageSize) {
		t.Errorf("UnmarshalBinary() error = %v, want ErrInvalidPageSize", err)
	}
}
