package btree

import (
	"encoding/binary"
	"errors"

	"github.com/oba-ldap/xdbm/internal/storage"
)

// Serialization constants.
const (
	// BPlusNodeHeaderSize is the size of the B+ tree node header in bytes.
	// Layout:
	//   - Byte 0:      IsLeaf (uint8, 0 or 1)
	//   - Bytes 1-2:   EntryCount (uint16)
	//   - Bytes 3-10:  NextLeaf (PageID/uint64)
	//   - Bytes 11-18: PrevLeaf (PageID/uint64)
	//   - Bytes 19-20: Reserved
	BPlusNodeHeaderSize = 21

	// LengthSize is the size of a key or value length prefix.
	LengthSize = 2

	// PageIDSize is the size of a PageID in bytes.
	PageIDSize = 8
)

// Serialization errors.
var (
	ErrEntryTooLarge     = errors.New("entry exceeds maximum size")
	ErrBufferTooSmall    = errors.New("buffer too small for serialization")
	ErrInvalidNodeData   = errors.New("invalid node data")
	ErrNodeTooLarge      = errors.New("node data exceeds page size")
	ErrCorruptedNode     = errors.New("corrupted node data")
	ErrInvalidChildCount = errors.New("invalid child count for internal node")
)

// entrySize returns the serialized size of one entry.
func entrySize(e Entry) int {
	return 2*LengthSize + len(e.Key) + len(e.Value)
}

// SerializedSize calculates the serialized size of a B+ tree node.
func (n *BPlusNode) SerializedSize() int {
	size := BPlusNodeHeaderSize
	for _, e := range n.Entries {
		size += entrySize(e)
	}
	if !n.IsLeaf {
		size += len(n.Children) * PageIDSize
	}
	return size
}

// FitsInPage returns true if the node can be serialized within a page.
func (n *BPlusNode) FitsInPage() bool {
	return n.SerializedSize() <= nodeCapacity
}

// Serialize writes the B+ tree node to buf and returns the bytes written.
func (n *BPlusNode) Serialize(buf []byte) (int, error) {
	if len(buf) < n.SerializedSize() {
		return 0, ErrBufferTooSmall
	}
	if !n.IsLeaf && len(n.Children) != len(n.Entries)+1 {
		return 0, ErrInvalidChildCount
	}

	if n.IsLeaf {
		buf[0] = 1
	} else {
		buf[0] = 0
	}
	binary.LittleEndian.PutUint16(buf[1:3], uint16(len(n.Entries)))
	binary.LittleEndian.PutUint64(buf[3:11], uint64(n.Next))
	binary.LittleEndian.PutUint64(buf[11:19], uint64(n.Prev))
	buf[19], buf[20] = 0, 0
	offset := BPlusNodeHeaderSize

	for _, e := range n.Entries {
		if len(e.Key)+len(e.Value) > MaxEntrySize {
			return 0, ErrEntryTooLarge
		}
		offset = putBytes(buf, offset, e.Key)
		offset = putBytes(buf, offset, e.Value)
	}

	if !n.IsLeaf {
		for _, child := range n.Children {
			binary.LittleEndian.PutUint64(buf[offset:offset+PageIDSize], uint64(child))
			offset += PageIDSize
		}
	}

	return offset, nil
}

func putBytes(buf []byte, offset int, b []byte) int {
	binary.LittleEndian.PutUint16(buf[offset:offset+LengthSize], uint16(len(b)))
	offset += LengthSize
	return offset + copy(buf[offset:], b)
}

func getBytes(buf []byte, offset int) ([]byte, int, error) {
	if offset+LengthSize > len(buf) {
		return nil, 0, ErrCorruptedNode
	}
	l := int(binary.LittleEndian.Uint16(buf[offset : offset+LengthSize]))
	offset += LengthSize
	if l > MaxEntrySize || offset+l > len(buf) {
		return nil, 0, ErrCorruptedNode
	}
	b := make([]byte, l)
	copy(b, buf[offset:offset+l])
	return b, offset + l, nil
}

// Deserialize reads a B+ tree node from buf.
func (n *BPlusNode) Deserialize(buf []byte, pageID storage.PageID) error {
	if len(buf) < BPlusNodeHeaderSize {
		return ErrBufferTooSmall
	}

	n.IsLeaf = buf[0] == 1
	count := int(binary.LittleEndian.Uint16(buf[1:3]))
	n.Next = storage.PageID(binary.LittleEndian.Uint64(buf[3:11]))
	n.Prev = storage.PageID(binary.LittleEndian.Uint64(buf[11:19]))
	n.PageID = pageID
	offset := BPlusNodeHeaderSize

	n.Entries = make([]Entry, count)
	for i := 0; i < count; i++ {
		var err error
		if n.Entries[i].Key, offset, err = getBytes(buf, offset); err != nil {
			return err
		}
		if n.Entries[i].Value, offset, err = getBytes(buf, offset); err != nil {
			return err
		}
	}

	n.Children = nil
	if !n.IsLeaf {
		n.Children = make([]storage.PageID, count+1)
		for i := range n.Children {
			if offset+PageIDSize > len(buf) {
				return ErrCorruptedNode
			}
			n.Children[i] = storage.PageID(binary.LittleEndian.Uint64(buf[offset : offset+PageIDSize]))
			offset += PageIDSize
		}
	}

	return nil
}

// SerializeToPage serializes the node into page, tagging it with pageType.
func (n *BPlusNode) SerializeToPage(page *storage.Page, pageType storage.PageType) error {
	if !n.FitsInPage() {
		return ErrNodeTooLarge
	}

	clear(page.Data)

	if _, err := n.Serialize(page.Data); err != nil {
		return err
	}

	page.Header.PageType = pageType
	page.Header.ItemCount = uint16(len(n.Entries))
	page.Header.Flags = 0
	if n.IsLeaf {
		page.Header.SetLeaf()
	}

	return nil
}

// NewNodeFromPage decodes the node stored in page, which must carry
// pageType.
func NewNodeFromPage(page *storage.Page, pageType storage.PageType) (*BPlusNode, error) {
	if page.Header.PageType != pageType {
		return nil, ErrInvalidNodeData
	}

	node := &BPlusNode{}
	if err := node.Deserialize(page.Data, page.Header.PageID); err != nil {
		return nil, err
	}
	return node, nil
}
