package filter

import (
	"errors"
	"fmt"
	"math"

	"github.com/oba-ldap/xdbm/internal/index"
)

// ErrNotIndexable is returned for filters the indexes cannot answer.
var ErrNotIndexable = errors.New("filter cannot be evaluated from indexes")

// Source gives the planner and the evaluator access to the indexes of a
// directory. index.Manager implements it.
type Source interface {
	GetIndex(attr string) (index.Index[[]byte, uint64], bool)
	PresenceIndex() index.Index[[]byte, uint64]
	Normalize(attr string, value []byte) ([]byte, error)
}

var _ Source = (*index.Manager)(nil)

// Estimate is the planner's guess of the number of candidates a filter
// produces.
type Estimate struct {
	// Indexed is false when the filter cannot be answered from indexes.
	Indexed bool

	// Count is the number of candidates. When Exact is false it is an
	// upper bound.
	Count int

	// Exact reports whether Count is exact.
	Exact bool
}

// String returns a human-readable description of the estimate.
func (e Estimate) String() string {
	switch {
	case !e.Indexed:
		return "FULL_SCAN"
	case e.Exact:
		return fmt.Sprintf("INDEX(%d)", e.Count)
	default:
		return fmt.Sprintf("INDEX(<=%d)", e.Count)
	}
}

var notIndexed = Estimate{Count: math.MaxInt}

// Planner estimates filter costs from index counts.
type Planner struct {
	src Source
}

// NewPlanner creates a Planner over the indexes of src.
func NewPlanner(src Source) *Planner {
	return &Planner{src: src}
}

// Estimate returns the estimated candidate count of f.
func (p *Planner) Estimate(f *Filter) (Estimate, error) {
	if f == nil {
		return notIndexed, nil
	}

	switch f.Op {
	case OpAnd:
		return p.estimateAnd(f)
	case OpOr:
		return p.estimateOr(f)
	case OpNot:
		return notIndexed, nil
	case OpPresent:
		presence := p.src.PresenceIndex()
		if _, ok := p.src.GetIndex(f.Attribute); !ok || presence == nil {
			return notIndexed, nil
		}
		n, err := presence.CountKey(index.PresenceKey(f.Attribute))
		if err != nil {
			return Estimate{}, err
		}
		return Estimate{Indexed: true, Count: n, Exact: true}, nil
	case OpEqual, OpGreaterOrEqual, OpLessOrEqual:
		return p.estimateValue(f)
	case OpSubstring:
		return p.estimateSubstring(f)
	default:
		return notIndexed, nil
	}
}

func (p *Planner) estimateValue(f *Filter) (Estimate, error) {
	idx, ok := p.src.GetIndex(f.Attribute)
	if !ok {
		return notIndexed, nil
	}
	key, err := p.src.Normalize(f.Attribute, f.Value)
	if err != nil {
		return Estimate{}, err
	}

	var n int
	switch f.Op {
	case OpEqual:
		n, err = idx.CountKey(key)
	case OpGreaterOrEqual:
		n, err = idx.GreaterThanCount(key)
	default:
		n, err = idx.LessThanCount(key)
	}
	if err != nil {
		return Estimate{}, err
	}
	return Estimate{Indexed: true, Count: n, Exact: f.Op == OpEqual || idx.IsCountExact()}, nil
}

func (p *Planner) estimateSubstring(f *Filter) (Estimate, error) {
	idx, ok := p.src.GetIndex(f.Attribute)
	if !ok {
		return notIndexed, nil
	}

	if len(f.Initial) > 0 {
		prefix, err := p.src.Normalize(f.Attribute, f.Initial)
		if err != nil {
			return Estimate{}, err
		}
		n, err := idx.GreaterThanCount(prefix)
		if err != nil {
			return Estimate{}, err
		}
		return Estimate{Indexed: true, Count: n}, nil
	}

	n, err := idx.Count()
	if err != nil {
		return Estimate{}, err
	}
	return Estimate{Indexed: true, Count: n}, nil
}

// estimateAnd bounds a conjunction by its cheapest indexed child.
func (p *Planner) estimateAnd(f *Filter) (Estimate, error) {
	best := notIndexed
	for _, child := range f.Children {
		e, err := p.Estimate(child)
		if err != nil {
			return Estimate{}, err
		}
		if e.Indexed && (!best.Indexed || e.Count < best.Count) {
			best = e
		}
	}
	if best.Indexed && len(f.Children) > 1 {
		best.Exact = false
	}
	return best, nil
}

// estimateOr bounds a disjunction by the sum of its children.
func (p *Planner) estimateOr(f *Filter) (Estimate, error) {
	if len(f.Children) == 0 {
		return notIndexed, nil
	}

	sum := Estimate{Indexed: true, Exact: len(f.Children) == 1}
	for _, child := range f.Children {
		e, err := p.Estimate(child)
		if err != nil {
			return Estimate{}, err
		}
		if !e.Indexed {
			return notIndexed, nil
		}
		sum.Count += e.Count
		sum.Exact = sum.Exact && e.Exact
	}
	return sum, nil
}
