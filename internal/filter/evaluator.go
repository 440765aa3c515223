package filter

import (
	"bytes"
	"context"
	"slices"

	"github.com/oba-ldap/xdbm/internal/index"
	"github.com/oba-ldap/xdbm/internal/logging"
)

type indexCursor = index.IndexCursor[[]byte, uint64]

// Evaluator computes the candidate entries of a filter from the indexes of
// a directory.
type Evaluator struct {
	src     Source
	planner *Planner
	logger  logging.Logger
}

// NewEvaluator creates an Evaluator over the indexes of src. A nil logger
// discards output.
func NewEvaluator(src Source, logger logging.Logger) *Evaluator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Evaluator{
		src:     src,
		planner: NewPlanner(src),
		logger:  logger,
	}
}

// Candidates returns the sorted ids of the entries that may match f.
// Every entry matching f is included. Conjunction members that cannot be
// checked against an index are not applied, so callers must still match
// the returned entries against f.
// Returns ErrNotIndexable when f cannot be answered from indexes.
func (e *Evaluator) Candidates(ctx context.Context, f *Filter) ([]uint64, error) {
	ids, err := e.candidates(ctx, f)
	if err != nil {
		return nil, err
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	if e.logger.Enabled(logging.LevelDebug) {
		e.logger.Debug("filter evaluated",
			"filter", f.String(),
			"candidates", len(ids),
		)
	}
	return ids, nil
}

func (e *Evaluator) candidates(ctx context.Context, f *Filter) ([]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f == nil {
		return nil, ErrNotIndexable
	}

	switch f.Op {
	case OpEqual:
		return e.equality(ctx, f)
	case OpPresent:
		return e.present(ctx, f)
	case OpGreaterOrEqual:
		return e.greaterOrEqual(ctx, f)
	case OpLessOrEqual:
		return e.lessOrEqual(ctx, f)
	case OpSubstring:
		return e.substring(ctx, f)
	case OpAnd:
		return e.and(ctx, f)
	case OpOr:
		return e.or(ctx, f)
	default:
		return nil, ErrNotIndexable
	}
}

// lookup returns the index of attr and the normalized value.
func (e *Evaluator) lookup(attr string, value []byte) (index.Index[[]byte, uint64], []byte, error) {
	idx, ok := e.src.GetIndex(attr)
	if !ok {
		return nil, nil, ErrNotIndexable
	}
	if value == nil {
		return idx, nil, nil
	}
	key, err := e.src.Normalize(attr, value)
	if err != nil {
		return nil, nil, err
	}
	return idx, key, nil
}

// scan steps c forward, calling keep with every key until it returns
// false for stop, and collects the ids it accepts.
func scan(ctx context.Context, c indexCursor, keep func(key []byte) (accept, stop bool)) ([]uint64, error) {
	defer c.Close()

	var ids []uint64
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := c.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return ids, nil
		}
		entry, err := c.Get()
		if err != nil {
			return nil, err
		}
		accept, stop := keep(entry.Key())
		if stop {
			return ids, nil
		}
		if accept {
			ids = append(ids, entry.ID())
		}
	}
}

func all(key []byte) (bool, bool) { return true, false }

func (e *Evaluator) equality(ctx context.Context, f *Filter) ([]uint64, error) {
	idx, key, err := e.lookup(f.Attribute, f.Value)
	if err != nil {
		return nil, err
	}
	c, err := idx.ForwardKeyCursor(key)
	if err != nil {
		return nil, err
	}
	return scan(ctx, c, all)
}

func (e *Evaluator) present(ctx context.Context, f *Filter) ([]uint64, error) {
	if _, ok := e.src.GetIndex(f.Attribute); !ok {
		return nil, ErrNotIndexable
	}
	c, err := e.src.PresenceIndex().ForwardKeyCursor(index.PresenceKey(f.Attribute))
	if err != nil {
		return nil, err
	}
	return scan(ctx, c, all)
}

func (e *Evaluator) greaterOrEqual(ctx context.Context, f *Filter) ([]uint64, error) {
	idx, key, err := e.lookup(f.Attribute, f.Value)
	if err != nil {
		return nil, err
	}
	c, err := idx.ForwardCursor()
	if err != nil {
		return nil, err
	}
	if err := c.BeforeKey(key); err != nil {
		c.Close()
		return nil, err
	}
	return scan(ctx, c, all)
}

func (e *Evaluator) lessOrEqual(ctx context.Context, f *Filter) ([]uint64, error) {
	idx, key, err := e.lookup(f.Attribute, f.Value)
	if err != nil {
		return nil, err
	}
	c, err := idx.ForwardCursor()
	if err != nil {
		return nil, err
	}
	return scan(ctx, c, func(k []byte) (bool, bool) {
		if bytes.Compare(k, key) > 0 {
			return false, true
		}
		return true, false
	})
}

// substringParts holds the normalized components of a substring filter.
type substringParts struct {
	initial []byte
	any     [][]byte
	final   []byte
}

// match reports whether a normalized key holds the components in order
// without overlap.
func (p substringParts) match(key []byte) bool {
	if !bytes.HasPrefix(key, p.initial) {
		return false
	}
	rest := key[len(p.initial):]
	for _, a := range p.any {
		i := bytes.Index(rest, a)
		if i < 0 {
			return false
		}
		rest = rest[i+len(a):]
	}
	return bytes.HasSuffix(rest, p.final)
}

func (e *Evaluator) normalizeSubstring(f *Filter) (index.Index[[]byte, uint64], substringParts, error) {
	var parts substringParts
	idx, ok := e.src.GetIndex(f.Attribute)
	if !ok {
		return nil, parts, ErrNotIndexable
	}

	norm := func(v []byte) ([]byte, error) {
		if len(v) == 0 {
			return nil, nil
		}
		return e.src.Normalize(f.Attribute, v)
	}

	var err error
	if parts.initial, err = norm(f.Initial); err != nil {
		return nil, parts, err
	}
	for _, a := range f.Any {
		n, err := norm(a)
		if err != nil {
			return nil, parts, err
		}
		parts.any = append(parts.any, n)
	}
	if parts.final, err = norm(f.Final); err != nil {
		return nil, parts, err
	}
	return idx, parts, nil
}

func (e *Evaluator) substring(ctx context.Context, f *Filter) ([]uint64, error) {
	idx, parts, err := e.normalizeSubstring(f)
	if err != nil {
		return nil, err
	}
	c, err := idx.ForwardCursor()
	if err != nil {
		return nil, err
	}

	if len(parts.initial) == 0 {
		return scan(ctx, c, func(k []byte) (bool, bool) {
			return parts.match(k), false
		})
	}

	if err := c.BeforeKey(parts.initial); err != nil {
		c.Close()
		return nil, err
	}
	return scan(ctx, c, func(k []byte) (bool, bool) {
		if !bytes.HasPrefix(k, parts.initial) {
			return false, true
		}
		return parts.match(k), false
	})
}

// and drives the conjunction with its cheapest indexed member and checks
// the others per candidate.
func (e *Evaluator) and(ctx context.Context, f *Filter) ([]uint64, error) {
	driver := -1
	var best Estimate
	for i, child := range f.Children {
		est, err := e.planner.Estimate(child)
		if err != nil {
			return nil, err
		}
		if est.Indexed && (driver < 0 || est.Count < best.Count) {
			driver, best = i, est
		}
	}
	if driver < 0 {
		return nil, ErrNotIndexable
	}

	ids, err := e.candidates(ctx, f.Children[driver])
	if err != nil {
		return nil, err
	}

	for i, child := range f.Children {
		if i == driver || !e.verifiable(child) {
			continue
		}
		kept := ids[:0]
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			ok, err := e.verify(child, id)
			if err != nil {
				return nil, err
			}
			if ok {
				kept = append(kept, id)
			}
		}
		ids = kept
	}
	return ids, nil
}

func (e *Evaluator) or(ctx context.Context, f *Filter) ([]uint64, error) {
	if len(f.Children) == 0 {
		return nil, ErrNotIndexable
	}

	var ids []uint64
	for _, child := range f.Children {
		sub, err := e.candidates(ctx, child)
		if err != nil {
			return nil, err
		}
		ids = append(ids, sub...)
	}
	return ids, nil
}

// verifiable reports whether every attribute f refers to is indexed.
func (e *Evaluator) verifiable(f *Filter) bool {
	if f == nil {
		return false
	}
	switch f.Op {
	case OpAnd, OpOr:
		for _, c := range f.Children {
			if !e.verifiable(c) {
				return false
			}
		}
		return len(f.Children) > 0
	case OpNot:
		return e.verifiable(f.Operand())
	default:
		_, ok := e.src.GetIndex(f.Attribute)
		return ok
	}
}

// verify checks f against the indexed values of id with reverse lookups.
// f must be verifiable.
func (e *Evaluator) verify(f *Filter, id uint64) (bool, error) {
	switch f.Op {
	case OpAnd:
		for _, c := range f.Children {
			ok, err := e.verify(c, id)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case OpOr:
		for _, c := range f.Children {
			ok, err := e.verify(c, id)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	case OpNot:
		ok, err := e.verify(f.Operand(), id)
		if err != nil {
			return false, err
		}
		return !ok, nil
	case OpPresent:
		return e.src.PresenceIndex().HasReverse(id, index.PresenceKey(f.Attribute))
	case OpSubstring:
		return e.verifySubstring(f, id)
	}

	idx, key, err := e.lookup(f.Attribute, f.Value)
	if err != nil {
		return false, err
	}
	switch f.Op {
	case OpEqual:
		return idx.HasReverse(id, key)
	case OpGreaterOrEqual:
		return idx.ReverseGreaterOrEqKey(id, key)
	case OpLessOrEqual:
		return idx.ReverseLessOrEqKey(id, key)
	default:
		return false, ErrNotIndexable
	}
}

func (e *Evaluator) verifySubstring(f *Filter, id uint64) (bool, error) {
	idx, parts, err := e.normalizeSubstring(f)
	if err != nil {
		return false, err
	}
	c, err := idx.ReverseIDCursor(id)
	if err != nil {
		return false, err
	}

	found := false
	_, err = scan(context.Background(), c, func(k []byte) (bool, bool) {
		found = parts.match(k)
		return false, found
	})
	return found, err
}
