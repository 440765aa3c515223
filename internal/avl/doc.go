// Package avl implements the in-memory ordered container behind the
// memory index backend.
//
// # Overview
//
// A Tree maps keys to duplicate chains. Each node of the AVL tree holds
// one key and the ordered list of values stored under it:
//
//   - Keys are ordered by the key comparator
//   - Values of a chain are ordered by the value comparator
//   - Values comparing equal keep their insertion order
//
// Nodes live in an arena and refer to their children by index. Every node
// also records the number of values in its subtree, so rank counts such
// as CountLess run in O(log n).
//
// # Snapshots
//
// A Cursor reads an immutable snapshot of the arena. Writers clone the
// arena before mutating it while any cursor still holds the snapshot, so
// open cursors are never invalidated by Insert or Remove.
//
// # Usage
//
//	tree := avl.New[string, uint64](strings.Compare, cmp.Compare[uint64])
//	tree.Insert("alice", 7)
//
//	c := tree.Cursor()
//	defer c.Close()
//
//	c.BeforeKey("a")
//	for {
//	    ok, err := c.Next()
//	    if err != nil || !ok {
//	        break
//	    }
//	    t, _ := c.Get()
//	    fmt.Println(t.Key, t.Value)
//	}
package avl
