package storage

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

// File header constants.
const (
	// FileHeaderSize is the size of the file header (first page).
	FileHeaderSize = PageSize

	// CurrentVersion is the current file format version.
	CurrentVersion uint32 = 1

	// MaxAttributeLength bounds the attribute name kept in the header.
	MaxAttributeLength = 256

	headerChecksumOffset = FileHeaderSize - 4
)

// Magic is the magic number for index files.
var Magic = [4]byte{'X', 'D', 'B', 'M'}

// Roots holds the root pages of the two trees of an index file.
type Roots struct {
	Forward PageID
	Reverse PageID
}

// Counts holds the number of tuples stored in each tree.
type Counts struct {
	Forward uint64
	Reverse uint64
}

// FileHeader represents the header of an index file (first page).
// Layout:
//   - Bytes 0-3:       Magic number ("XDBM")
//   - Bytes 4-7:       Version (uint32)
//   - Bytes 8-11:      PageSize (uint32)
//   - Bytes 12-19:     TotalPages (uint64)
//   - Bytes 20-27:     FreeListHead (PageID)
//   - Bytes 28-35:     Roots.Forward (PageID)
//   - Bytes 36-43:     Roots.Reverse (PageID)
//   - Bytes 44-51:     Counts.Forward (uint64)
//   - Bytes 52-59:     Counts.Reverse (uint64)
//   - Bytes 60-61:     Attribute length (uint16)
//   - Bytes 62-317:    Attribute name
//   - Bytes 4092-4095: CRC32 of bytes 0-4091
type FileHeader struct {
	Magic        [4]byte
	Version      uint32
	PageSize     uint32
	TotalPages   uint64
	FreeListHead PageID
	Roots        Roots
	Counts       Counts
	Attribute    string
}

// Errors for file header operations.
var (
	ErrInvalidMagic       = errors.New("invalid magic number: not an index file")
	ErrUnsupportedVersion = errors.New("unsupported file format version")
	ErrHeaderChecksum     = errors.New("file header checksum mismatch")
	ErrInvalidHeaderSize  = errors.New("invalid header size")
	ErrAttributeTooLong   = errors.New("attribute name too long")
)

// NewFileHeader creates a new FileHeader with default values.
func NewFileHeader() *FileHeader {
	return &FileHeader{
		Magic:      Magic,
		Version:    CurrentVersion,
		PageSize:   PageSize,
		TotalPages: 1,
	}
}

// Serialize returns the header as a new FileHeaderSize byte slice.
func (h *FileHeader) Serialize() ([]byte, error) {
	buf := make([]byte, FileHeaderSize)
	return buf, h.SerializeTo(buf)
}

// SerializeTo writes the FileHeader and its checksum to buf.
func (h *FileHeader) SerializeTo(buf []byte) error {
	if len(buf) < FileHeaderSize {
		return ErrInvalidHeaderSize
	}
	if len(h.Attribute) > MaxAttributeLength {
		return ErrAttributeTooLong
	}

	clear(buf[:FileHeaderSize])

	copy(buf[0:4], h.Magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.PageSize)
	binary.LittleEndian.PutUint64(buf[12:20], h.TotalPages)
	binary.LittleEndian.PutUint64(buf[20:28], uint64(h.FreeListHead))
	binary.LittleEndian.PutUint64(buf[28:36], uint64(h.Roots.Forward))
	binary.LittleEndian.PutUint64(buf[36:44], uint64(h.Roots.Reverse))
	binary.LittleEndian.PutUint64(buf[44:52], h.Counts.Forward)
	binary.LittleEndian.PutUint64(buf[52:60], h.Counts.Reverse)
	binary.LittleEndian.PutUint16(buf[60:62], uint16(len(h.Attribute)))
	copy(buf[62:], h.Attribute)

	binary.LittleEndian.PutUint32(buf[headerChecksumOffset:], crc32.ChecksumIEEE(buf[:headerChecksumOffset]))

	return nil
}

// Deserialize reads the FileHeader from buf and validates it.
func (h *FileHeader) Deserialize(buf []byte) error {
	if len(buf) < FileHeaderSize {
		return ErrInvalidHeaderSize
	}

	copy(h.Magic[:], buf[0:4])
	if h.Magic != Magic {
		return ErrInvalidMagic
	}

	stored := binary.LittleEndian.Uint32(buf[headerChecksumOffset:FileHeaderSize])
	if stored != crc32.ChecksumIEEE(buf[:headerChecksumOffset]) {
		return ErrHeaderChecksum
	}

	h.Version = binary.LittleEndian.Uint32(buf[4:8])
	if h.Version == 0 || h.Version > CurrentVersion {
		return ErrUnsupportedVersion
	}

	h.PageSize = binary.LittleEndian.Uint32(buf[8:12])
	h.TotalPages = binary.LittleEndian.Uint64(buf[12:20])
	h.FreeListHead = PageID(binary.LittleEndian.Uint64(buf[20:28]))
	h.Roots.Forward = PageID(binary.LittleEndian.Uint64(buf[28:36]))
	h.Roots.Reverse = PageID(binary.LittleEndian.Uint64(buf[36:44]))
	h.Counts.Forward = binary.LittleEndian.Uint64(buf[44:52])
	h.Counts.Reverse = binary.LittleEndian.Uint64(buf[52:60])

	n := int(binary.LittleEndian.Uint16(buf[60:62]))
	if n > MaxAttributeLength {
		return ErrAttributeTooLong
	}
	h.Attribute = string(buf[62 : 62+n])

	return nil
}

// IsIndexFile reports whether buf starts with the index file magic number.
func IsIndexFile(buf []byte) bool {
	return len(buf) >= 4 && [4]byte(buf[0:4]) == Magic
}
