package avl

import "sync/atomic"

// nilNode marks an absent child or an empty tree.
const nilNode int32 = -1

// node is one arena slot. The values slice is never modified in place
// once it is reachable from a snapshot; writers replace it.
type node[K, V any] struct {
	key    K
	values []V
	left   int32
	right  int32
	height int8
	weight int
}

// snapshot is an arena generation. It is frozen once a reader holds it.
type snapshot[K, V any] struct {
	nodes   []node[K, V]
	free    []int32
	root    int32
	keys    int
	readers atomic.Int32
}

func newSnapshot[K, V any]() *snapshot[K, V] {
	return &snapshot[K, V]{root: nilNode}
}

// clone copies the arena. Chains are shared since they are immutable.
func (s *snapshot[K, V]) clone() *snapshot[K, V] {
	c := &snapshot[K, V]{
		nodes: make([]node[K, V], len(s.nodes)),
		free:  make([]int32, len(s.free)),
		root:  s.root,
		keys:  s.keys,
	}
	copy(c.nodes, s.nodes)
	copy(c.free, s.free)
	return c
}

func (s *snapshot[K, V]) size() int {
	return s.weight(s.root)
}

func (s *snapshot[K, V]) alloc(key K, values []V) int32 {
	n := node[K, V]{key: key, values: values, left: nilNode, right: nilNode, height: 1, weight: len(values)}
	if l := len(s.free); l > 0 {
		idx := s.free[l-1]
		s.free = s.free[:l-1]
		s.nodes[idx] = n
		return idx
	}
	s.nodes = append(s.nodes, n)
	return int32(len(s.nodes) - 1)
}

func (s *snapshot[K, V]) release(n int32) {
	s.nodes[n] = node[K, V]{left: nilNode, right: nilNode}
	s.free = append(s.free, n)
}

func (s *snapshot[K, V]) height(n int32) int8 {
	if n == nilNode {
		return 0
	}
	return s.nodes[n].height
}

func (s *snapshot[K, V]) weight(n int32) int {
	if n == nilNode {
		return 0
	}
	return s.nodes[n].weight
}

func (s *snapshot[K, V]) update(n int32) {
	nd := &s.nodes[n]
	nd.height = 1 + max(s.height(nd.left), s.height(nd.right))
	nd.weight = len(nd.values) + s.weight(nd.left) + s.weight(nd.right)
}

func (s *snapshot[K, V]) balance(n int32) int {
	return int(s.height(s.nodes[n].left)) - int(s.height(s.nodes[n].right))
}

func (s *snapshot[K, V]) rotateRight(n int32) int32 {
	l := s.nodes[n].left
	s.nodes[n].left = s.nodes[l].right
	s.nodes[l].right = n
	s.update(n)
	s.update(l)
	return l
}

func (s *snapshot[K, V]) rotateLeft(n int32) int32 {
	r := s.nodes[n].right
	s.nodes[n].right = s.nodes[r].left
	s.nodes[r].left = n
	s.update(n)
	s.update(r)
	return r
}

// rebalance restores the AVL property at n and returns the subtree root.
func (s *snapshot[K, V]) rebalance(n int32) int32 {
	s.update(n)

	switch b := s.balance(n); {
	case b > 1:
		if s.balance(s.nodes[n].left) < 0 {
			s.nodes[n].left = s.rotateLeft(s.nodes[n].left)
		}
		return s.rotateRight(n)
	case b < -1:
		if s.balance(s.nodes[n].right) > 0 {
			s.nodes[n].right = s.rotateRight(s.nodes[n].right)
		}
		return s.rotateLeft(n)
	}
	return n
}

// find returns the node holding key or nilNode.
func (s *snapshot[K, V]) find(key K, cmp func(K, K) int) int32 {
	n := s.root
	for n != nilNode {
		c := cmp(key, s.nodes[n].key)
		switch {
		case c < 0:
			n = s.nodes[n].left
		case c > 0:
			n = s.nodes[n].right
		default:
			return n
		}
	}
	return nilNode
}

func (s *snapshot[K, V]) leftmost(n int32) int32 {
	for n != nilNode && s.nodes[n].left != nilNode {
		n = s.nodes[n].left
	}
	return n
}

func (s *snapshot[K, V]) rightmost(n int32) int32 {
	for n != nilNode && s.nodes[n].right != nilNode {
		n = s.nodes[n].right
	}
	return n
}

// upperBound returns the index of the first value in chain greater than v.
func upperBound[V any](chain []V, v V, cmp func(V, V) int) int {
	lo, hi := 0, len(chain)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if cmp(v, chain[mid]) < 0 {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// lowerBound returns the index of the first value in chain not less than v.
func lowerBound[V any](chain []V, v V, cmp func(V, V) int) int {
	lo, hi := 0, len(chain)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if cmp(chain[mid], v) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// withValue returns a new chain with v inserted after its equals.
func withValue[V any](chain []V, v V, cmp func(V, V) int) []V {
	i := upperBound(chain, v, cmp)
	out := make([]V, len(chain)+1)
	copy(out, chain[:i])
	out[i] = v
	copy(out[i+1:], chain[i:])
	return out
}

// withoutIndex returns a new chain without the element at i.
func withoutIndex[V any](chain []V, i int) []V {
	out := make([]V, 0, len(chain)-1)
	out = append(out, chain[:i]...)
	return append(out, chain[i+1:]...)
}
