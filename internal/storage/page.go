package storage

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

const (
	// PageSize is the size of every page of an index file.
	PageSize = 4096
	// PageHeaderSize is the size of the header at the start of each page.
	PageHeaderSize = 16
	// PageDataSize is the payload of a page.
	PageDataSize = PageSize - PageHeaderSize
)

// PageType tells what a page holds.
type PageType uint8

const (
	PageTypeFree PageType = iota
	// PageTypeForward pages are nodes of the value to id tree.
	PageTypeForward
	// PageTypeReverse pages are nodes of the id to value tree.
	PageTypeReverse
	// PageTypeFreeList pages hold the persisted free list.
	PageTypeFreeList
)

var pageTypeNames = [...]string{
	PageTypeFree:     "Free",
	PageTypeForward:  "Forward",
	PageTypeReverse:  "Reverse",
	PageTypeFreeList: "FreeList",
}

func (pt PageType) String() string {
	if int(pt) < len(pageTypeNames) {
		return pageTypeNames[pt]
	}
	return "Unknown"
}

// PageFlag is a bit set in the page header.
type PageFlag uint8

// PageFlagLeaf marks B+ tree leaf nodes.
const PageFlagLeaf PageFlag = 1 << 0

// PageID is the position of a page in its file. Page 0 is the file header.
type PageID uint64

// PageHeader is the fixed prefix of every page:
//
//	0-7    PageID
//	8      PageType
//	9      Flags
//	10-11  ItemCount
//	12-15  CRC-32C of bytes 0-11 and the payload
//
// The id and type are covered by the checksum so a page written to the
// wrong offset is detected on read.
type PageHeader struct {
	PageID    PageID
	PageType  PageType
	Flags     PageFlag
	ItemCount uint16
	Checksum  uint32
}

// Page errors.
var (
	ErrInvalidPageSize = errors.New("invalid page size")
	ErrInvalidChecksum = errors.New("page checksum mismatch")
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func (h *PageHeader) IsLeaf() bool { return h.Flags&PageFlagLeaf != 0 }

func (h *PageHeader) SetLeaf() { h.Flags |= PageFlagLeaf }

// Page is a decoded page.
type Page struct {
	Header PageHeader
	Data   []byte
}

// NewPage returns an empty page.
func NewPage(id PageID, pageType PageType) *Page {
	return &Page{
		Header: PageHeader{PageID: id, PageType: pageType},
		Data:   make([]byte, PageDataSize),
	}
}

// EncodeTo writes the page into buf, which must hold PageSize bytes, and
// stores the computed checksum in the header.
func (p *Page) EncodeTo(buf []byte) error {
	if len(buf) < PageSize || len(p.Data) > PageDataSize {
		return ErrInvalidPageSize
	}
	buf = buf[:PageSize]

	binary.LittleEndian.PutUint64(buf[0:8], uint64(p.Header.PageID))
	buf[8] = byte(p.Header.PageType)
	buf[9] = byte(p.Header.Flags)
	binary.LittleEndian.PutUint16(buf[10:12], p.Header.ItemCount)
	clear(buf[PageHeaderSize:])
	copy(buf[PageHeaderSize:], p.Data)

	p.Header.Checksum = pageChecksum(buf)
	binary.LittleEndian.PutUint32(buf[12:16], p.Header.Checksum)
	return nil
}

// MarshalBinary returns the page as a new PageSize byte slice.
func (p *Page) MarshalBinary() ([]byte, error) {
	buf := make([]byte, PageSize)
	if err := p.EncodeTo(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// UnmarshalBinary decodes buf into p after checking the checksum. The
// payload is copied.
func (p *Page) UnmarshalBinary(buf []byte) error {
	if len(buf) < PageSize {
		return ErrInvalidPageSize
	}
	buf = buf[:PageSize]

	stored := binary.LittleEndian.Uint32(buf[12:16])
	if stored != pageChecksum(buf) {
		return ErrInvalidChecksum
	}

	p.Header = PageHeader{
		PageID:    PageID(binary.LittleEndian.Uint64(buf[0:8])),
		PageType:  PageType(buf[8]),
		Flags:     PageFlag(buf[9]),
		ItemCount: binary.LittleEndian.Uint16(buf[10:12]),
		Checksum:  stored,
	}
	if cap(p.Data) < PageDataSize {
		p.Data = make([]byte, PageDataSize)
	}
	p.Data = p.Data[:PageDataSize]
	copy(p.Data, buf[PageHeaderSize:])
	return nil
}

// pageChecksum covers an encoded page except its checksum field.
func pageChecksum(buf []byte) uint32 {
	crc := crc32.Update(0, castagnoli, buf[:12])
	return crc32.Update(crc, castagnoli, buf[PageHeaderSize:PageSize])
}
