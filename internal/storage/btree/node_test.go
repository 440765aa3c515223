package btree

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/oba-ldap/xdbm/internal/storage"
)

func entry(key, value string) Entry {
	return Entry{Key: []byte(key), Value: []byte(value)}
}

func TestNewLeafNode(t *testing.T) {
	node := NewLeafNode(42)

	if !node.IsLeaf {
		t.Error("leaf node should have IsLeaf = true")
	}
	if node.PageID != 42 {
		t.Errorf("expected PageID 42, got %d", node.PageID)
	}
	if node.EntryCount() != 0 {
		t.Errorf("expected 0 entries, got %d", node.EntryCount())
	}
	if node.Next != InvalidPageID || node.Prev != InvalidPageID {
		t.Error("new leaf should not be linked")
	}
}

func TestCompareEntries(t *testing.T) {
	tests := []struct {
		a, b Entry
		want int
	}{
		{entry("a", "1"), entry("b", "0"), -1},
		{entry("b", "0"), entry("a", "1"), 1},
		{entry("a", "1"), entry("a", "2"), -1},
		{entry("a", "2"), entry("a", "1"), 1},
		{entry("a", "1"), entry("a", "1"), 0},
		{entry("a", ""), entry("a", "1"), -1},
	}

	for _, tt := range tests {
		if got := CompareEntries(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareEntries(%s/%s, %s/%s) = %d, want %d",
				tt.a.Key, tt.a.Value, tt.b.Key, tt.b.Value, got, tt.want)
		}
	}
}

func TestInsertEntryAtCopiesEntry(t *testing.T) {
	node := NewLeafNode(1)
	key := []byte("key")
	node.InsertEntryAt(0, Entry{Key: key, Value: []byte("v")}, InvalidPageID)

	key[0] = 'X'
	if string(node.Entries[0].Key) != "key" {
		t.Errorf("stored key changed with caller slice: %q", node.Entries[0].Key)
	}
}

func TestInternalInsertRemove(t *testing.T) {
	node := NewInternalNode(1)
	node.Children = []storage.PageID{10}

	node.InsertEntryAt(0, entry("m", ""), 20)
	node.InsertEntryAt(0, entry("f", ""), 15)
	node.InsertEntryAt(2, entry("t", ""), 30)

	wantChildren := []storage.PageID{10, 15, 20, 30}
	for i, c := range wantChildren {
		if node.Children[i] != c {
			t.Fatalf("Children = %v, want %v", node.Children, wantChildren)
		}
	}

	e, child := node.RemoveEntryAt(1)
	if string(e.Key) != "m" || child != 20 {
		t.Errorf("RemoveEntryAt(1) = %s, %d, want m, 20", e.Key, child)
	}
	if len(node.Entries) != 2 || len(node.Children) != 3 {
		t.Errorf("after remove: %d entries, %d children", len(node.Entries), len(node.Children))
	}

	if e, child := node.RemoveEntryAt(5); e.Key != nil || child != InvalidPageID {
		t.Error("RemoveEntryAt out of range should return zero values")
	}
}

func TestNodeSearch(t *testing.T) {
	node := NewLeafNode(1)
	for _, e := range []Entry{entry("a", "1"), entry("b", "1"), entry("b", "2"), entry("b", "3"), entry("c", "1")} {
		node.InsertEntryAt(len(node.Entries), e, InvalidPageID)
	}

	tests := []struct {
		name   string
		target seekTarget
		want   int
	}{
		{"key lower", seekTarget{Entry: entry("b", ""), KeyOnly: true}, 1},
		{"key upper", seekTarget{Entry: entry("b", ""), KeyOnly: true, Upper: true}, 4},
		{"entry lower", seekTarget{Entry: entry("b", "2")}, 2},
		{"entry upper", seekTarget{Entry: entry("b", "2"), Upper: true}, 3},
		{"missing value", seekTarget{Entry: entry("b", "25")}, 3},
		{"before all", seekTarget{Entry: entry("0", ""), KeyOnly: true}, 0},
		{"after all", seekTarget{Entry: entry("z", ""), KeyOnly: true}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := node.search(tt.target); got != tt.want {
				t.Errorf("search() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLeafNodeSerializeDeserialize(t *testing.T) {
	node := NewLeafNode(7)
	node.Next = 8
	node.Prev = 6
	for _, e := range []Entry{entry("alice", "\x00\x01"), entry("bob", ""), entry("bob", "\x00\x02")} {
		node.InsertEntryAt(len(node.Entries), e, InvalidPageID)
	}

	buf := make([]byte, node.SerializedSize())
	n, err := node.Serialize(buf)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	if n != node.SerializedSize() {
		t.Errorf("Serialize wrote %d bytes, want %d", n, node.SerializedSize())
	}

	var got BPlusNode
	if err := got.Deserialize(buf, 7); err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}

	if !got.IsLeaf || got.Next != 8 || got.Prev != 6 || got.PageID != 7 {
		t.Errorf("header mismatch: %+v", got)
	}
	if len(got.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got.Entries))
	}
	for i := range node.Entries {
		if CompareEntries(got.Entries[i], node.Entries[i]) != 0 {
			t.Errorf("entry %d = %q/%q, want %q/%q", i,
				got.Entries[i].Key, got.Entries[i].Value, node.Entries[i].Key, node.Entries[i].Value)
		}
	}
}

func TestInternalNodeSerializeDeserialize(t *testing.T) {
	node := NewInternalNode(3)
	node.Entries = []Entry{entry("g", "1"), entry("p", "2")}
	node.Children = []storage.PageID{10, 11, 12}

	page := storage.NewPage(3, storage.PageTypeForward)
	if err := node.SerializeToPage(page, storage.PageTypeForward); err != nil {
		t.Fatalf("SerializeToPage failed: %v", err)
	}
	if page.Header.IsLeaf() {
		t.Error("internal node page should not carry the leaf flag")
	}
	if page.Header.ItemCount != 2 {
		t.Errorf("ItemCount = %d, want 2", page.Header.ItemCount)
	}

	got, err := NewNodeFromPage(page, storage.PageTypeForward)
	if err != nil {
		t.Fatalf("NewNodeFromPage failed: %v", err)
	}
	if got.IsLeaf {
		t.Error("decoded node should be internal")
	}
	for i, c := range []storage.PageID{10, 11, 12} {
		if got.Children[i] != c {
			t.Errorf("child %d = %d, want %d", i, got.Children[i], c)
		}
	}
}

func TestSerializeErrors(t *testing.T) {
	node := NewLeafNode(1)
	node.Entries = []Entry{entry("k", "v")}

	if _, err := node.Serialize(make([]byte, 4)); err != ErrBufferTooSmall {
		t.Errorf("expected ErrBufferTooSmall, got %v", err)
	}

	internal := NewInternalNode(2)
	internal.Entries = []Entry{entry("k", "")}
	if _, err := internal.Serialize(make([]byte, storage.PageSize)); err != ErrInvalidChildCount {
		t.Errorf("expected ErrInvalidChildCount, got %v", err)
	}

	big := NewLeafNode(3)
	big.Entries = []Entry{{Key: bytes.Repeat([]byte("k"), MaxEntrySize), Value: []byte("v")}}
	if _, err := big.Serialize(make([]byte, storage.PageSize)); err != ErrEntryTooLarge {
		t.Errorf("expected ErrEntryTooLarge, got %v", err)
	}
}

func TestDeserializeErrors(t *testing.T) {
	var node BPlusNode
	if err := node.Deserialize(make([]byte, 5), 1); err != ErrBufferTooSmall {
		t.Errorf("expected ErrBufferTooSmall, got %v", err)
	}

	// Claims one entry but holds no data for it.
	buf := make([]byte, BPlusNodeHeaderSize)
	buf[0] = 1
	buf[1] = 1
	if err := node.Deserialize(buf, 1); err != ErrCorruptedNode {
		t.Errorf("expected ErrCorruptedNode, got %v", err)
	}
}

func TestNewNodeFromPageWrongType(t *testing.T) {
	node := NewLeafNode(4)
	page := storage.NewPage(4, storage.PageTypeForward)
	if err := node.SerializeToPage(page, storage.PageTypeForward); err != nil {
		t.Fatalf("SerializeToPage failed: %v", err)
	}

	if _, err := NewNodeFromPage(page, storage.PageTypeReverse); !errors.Is(err, ErrInvalidNodeData) {
		t.Errorf("expected ErrInvalidNodeData, got %v", err)
	}
}

func TestFitsInPage(t *testing.T) {
	node := NewLeafNode(1)
	value := strings.Repeat("v", 500)
	for i := 0; node.FitsInPage(); i++ {
		node.Entries = append(node.Entries, entry(string(rune('a'+i%26)), value))
	}

	page := storage.NewPage(1, storage.PageTypeForward)
	if err := node.SerializeToPage(page, storage.PageTypeForward); err != ErrNodeTooLarge {
		t.Errorf("expected ErrNodeTooLarge, got %v", err)
	}

	node.Entries = node.Entries[:len(node.Entries)-1]
	if err := node.SerializeToPage(page, storage.PageTypeForward); err != nil {
		t.Errorf("SerializeToPage of a fitting node failed: %v", err)
	}
}

func TestSplitPoint(t *testing.T) {
	entries := []Entry{entry("a", "1"), entry("b", "1"), entry("c", "1"), entry("d", "1")}
	if got := splitPoint(entries, 1, 1); got != 2 {
		t.Errorf("splitPoint() = %d, want 2", got)
	}

	skewed := []Entry{{Key: bytes.Repeat([]byte("a"), 900)}, entry("b", ""), entry("c", "")}
	if got := splitPoint(skewed, 1, 1); got != 1 {
		t.Errorf("splitPoint(skewed) = %d, want 1", got)
	}
	if got := splitPoint(skewed, 1, 2); got != 1 {
		t.Errorf("splitPoint(skewed, internal) = %d, want 1", got)
	}
}
