package avl_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oba-ldap/xdbm/internal/avl"
	"github.com/oba-ldap/xdbm/internal/cursor"
)

type kv struct {
	k int
	v string
}

func collectForward(t *testing.T, c *avl.Cursor[int, string]) []kv {
	t.Helper()
	var out []kv
	for {
		ok, err := c.Next()
		require.NoError(t, err)
		if !ok {
			return out
		}
		tuple, err := c.Get()
		require.NoError(t, err)
		out = append(out, kv{tuple.Key, tuple.Value})
	}
}

func collectBackward(t *testing.T, c *avl.Cursor[int, string]) []kv {
	t.Helper()
	var out []kv
	for {
		ok, err := c.Previous()
		require.NoError(t, err)
		if !ok {
			return out
		}
		tuple, err := c.Get()
		require.NoError(t, err)
		out = append(out, kv{tuple.Key, tuple.Value})
	}
}

func sampleTree() *avl.Tree[int, string] {
	tree := newIntTree()
	tree.Insert(3, "c")
	tree.Insert(1, "a")
	tree.Insert(2, "b2")
	tree.Insert(2, "b1")
	return tree
}

func TestCursor_OrderedTraversal(t *testing.T) {
	c := sampleTree().Cursor()
	defer c.Close()

	want := []kv{{1, "a"}, {2, "b1"}, {2, "b2"}, {3, "c"}}
	assert.Equal(t, want, collectForward(t, c))

	// Exhausted forward: cursor sits after the last tuple.
	assert.False(t, c.Available())
	assert.Equal(t, []kv{{3, "c"}, {2, "b2"}, {2, "b1"}, {1, "a"}}, collectBackward(t, c))
}

func TestCursor_PreviousAfterBeforeFirst(t *testing.T) {
	c := sampleTree().Cursor()
	defer c.Close()

	require.NoError(t, c.BeforeFirst())
	ok, err := c.Previous()
	require.NoError(t, err)
	assert.False(t, ok)

	// Still before the first tuple.
	ok, err = c.Next()
	require.NoError(t, err)
	require.True(t, ok)
	tuple, err := c.Get()
	require.NoError(t, err)
	assert.Equal(t, 1, tuple.Key)
}

func TestCursor_GetWithoutPosition(t *testing.T) {
	c := sampleTree().Cursor()
	defer c.Close()

	_, err := c.Get()
	assert.ErrorIs(t, err, cursor.ErrInvalidPosition)

	require.NoError(t, c.BeforeKey(2))
	_, err = c.Get()
	assert.ErrorIs(t, err, cursor.ErrInvalidPosition)
}

func TestCursor_FirstLast(t *testing.T) {
	c := sampleTree().Cursor()
	defer c.Close()

	ok, err := c.First()
	require.NoError(t, err)
	require.True(t, ok)
	tuple, _ := c.Get()
	assert.Equal(t, 1, tuple.Key)

	ok, err = c.Last()
	require.NoError(t, err)
	require.True(t, ok)
	tuple, _ = c.Get()
	assert.Equal(t, "c", tuple.Value)
}

func TestCursor_EmptyTree(t *testing.T) {
	c := newIntTree().Cursor()
	defer c.Close()

	ok, err := c.First()
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = c.Last()
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, c.BeforeKey(1))
	ok, err = c.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCursor_KeyPositioning(t *testing.T) {
	tree := sampleTree()

	tests := []struct {
		name     string
		position func(c *avl.Cursor[int, string]) error
		next     []kv
		previous []kv
	}{
		{
			name:     "before existing key",
			position: func(c *avl.Cursor[int, string]) error { return c.BeforeKey(2) },
			next:     []kv{{2, "b1"}, {2, "b2"}, {3, "c"}},
			previous: []kv{{1, "a"}},
		},
		{
			name:     "after existing key",
			position: func(c *avl.Cursor[int, string]) error { return c.AfterKey(2) },
			next:     []kv{{3, "c"}},
			previous: []kv{{2, "b2"}, {2, "b1"}, {1, "a"}},
		},
		{
			name:     "before missing key",
			position: func(c *avl.Cursor[int, string]) error { return c.BeforeKey(0) },
			next:     []kv{{1, "a"}, {2, "b1"}, {2, "b2"}, {3, "c"}},
			previous: nil,
		},
		{
			name:     "before key past the end",
			position: func(c *avl.Cursor[int, string]) error { return c.BeforeKey(9) },
			next:     nil,
			previous: []kv{{3, "c"}, {2, "b2"}, {2, "b1"}, {1, "a"}},
		},
		{
			name:     "after key before the start",
			position: func(c *avl.Cursor[int, string]) error { return c.AfterKey(0) },
			next:     []kv{{1, "a"}, {2, "b1"}, {2, "b2"}, {3, "c"}},
			previous: nil,
		},
		{
			name:     "before value inside chain",
			position: func(c *avl.Cursor[int, string]) error { return c.BeforeValue(2, "b2") },
			next:     []kv{{2, "b2"}, {3, "c"}},
			previous: []kv{{2, "b1"}, {1, "a"}},
		},
		{
			name:     "before value past chain",
			position: func(c *avl.Cursor[int, string]) error { return c.BeforeValue(2, "zz") },
			next:     []kv{{3, "c"}},
			previous: []kv{{2, "b2"}, {2, "b1"}, {1, "a"}},
		},
		{
			name:     "after value inside chain",
			position: func(c *avl.Cursor[int, string]) error { return c.AfterValue(2, "b1") },
			next:     []kv{{2, "b2"}, {3, "c"}},
			previous: []kv{{2, "b1"}, {1, "a"}},
		},
		{
			name:     "after value before chain",
			position: func(c *avl.Cursor[int, string]) error { return c.AfterValue(2, "a") },
			next:     []kv{{2, "b1"}, {2, "b2"}, {3, "c"}},
			previous: []kv{{1, "a"}},
		},
		{
			name: "before tuple",
			position: func(c *avl.Cursor[int, string]) error {
				return c.Before(cursor.NewTuple(3, "c"))
			},
			next:     []kv{{3, "c"}},
			previous: []kv{{2, "b2"}, {2, "b1"}, {1, "a"}},
		},
		{
			name: "after tuple",
			position: func(c *avl.Cursor[int, string]) error {
				return c.After(cursor.NewTuple(1, "a"))
			},
			next:     []kv{{2, "b1"}, {2, "b2"}, {3, "c"}},
			previous: []kv{{1, "a"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tree.Cursor()
			defer c.Close()

			require.NoError(t, tt.position(c))
			assert.Equal(t, tt.next, collectForward(t, c))

			require.NoError(t, tt.position(c))
			assert.Equal(t, tt.previous, collectBackward(t, c))
		})
	}
}

func TestCursor_SnapshotIsolation(t *testing.T) {
	tree := sampleTree()
	c := tree.Cursor()
	defer c.Close()

	ok, err := c.First()
	require.NoError(t, err)
	require.True(t, ok)

	tree.Insert(0, "new")
	require.NoError(t, tree.Remove(3, "c"))
	require.NoError(t, tree.Remove(2, "b1"))

	assert.Equal(t, []kv{{2, "b1"}, {2, "b2"}, {3, "c"}}, collectForward(t, c))

	fresh := tree.Cursor()
	defer fresh.Close()
	assert.Equal(t, []kv{{0, "new"}, {1, "a"}, {2, "b2"}}, collectForward(t, fresh))
	require.NoError(t, tree.Verify())
}

func TestCursor_Close(t *testing.T) {
	c := sampleTree().Cursor()

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, c.IsClosed())

	_, err := c.Next()
	assert.ErrorIs(t, err, cursor.ErrClosed)
	_, err = c.Previous()
	assert.ErrorIs(t, err, cursor.ErrClosed)
	_, err = c.Get()
	assert.ErrorIs(t, err, cursor.ErrClosed)
	assert.ErrorIs(t, c.BeforeFirst(), cursor.ErrClosed)
	assert.ErrorIs(t, c.AfterKey(1), cursor.ErrClosed)
}
