// Package filter turns search filters into candidate entry ids using the
// attribute indexes.
//
// # Overview
//
// The package supports the filter types an index can answer:
//
//   - AND (&): Logical conjunction of filters
//   - OR (|): Logical disjunction of filters
//   - NOT (!): Only inside a conjunction
//   - Equality (=): Exact attribute value match
//   - Substring (*): Pattern matching with wildcards
//   - Greater-or-Equal (>=): Comparison filter
//   - Less-or-Equal (<=): Comparison filter
//   - Present (=*): Attribute existence check
//
// # Filter Construction
//
// Filters can be constructed programmatically or parsed from RFC 4515
// strings:
//
//	// (&(objectClass=person)(uid=alice))
//	f := filter.And(
//	    filter.Equal("objectClass", []byte("person")),
//	    filter.Equal("uid", []byte("alice")),
//	)
//
//	f, err := filter.Parse("(&(objectClass=person)(cn=ali*))")
//
// Parse errors are *SyntaxError values carrying the byte offset of the
// failure; errors.Is matches them against the parser sentinels.
//
// # Planning
//
// The Planner estimates the number of candidates of a filter from index
// counts. Counts of disk indexes may be upper bounds, which the estimate
// records.
//
// # Evaluation
//
// The Evaluator walks index cursors:
//
//	ev := filter.NewEvaluator(manager, logger)
//	ids, err := ev.Candidates(ctx, f)
//
// A conjunction is driven by its cheapest member; the other members are
// checked per candidate against the reverse orderings. Filters that no
// index can answer, such as a top-level NOT, fail with ErrNotIndexable.
package filter
