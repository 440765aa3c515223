// Package cursor defines the positioning and stepping protocol shared by
// every ordered container in xdbm.
//
// # Overview
//
// A Cursor is a stateful, single-owner iterator. It separates absolute
// positioning from relative stepping:
//
//	c.BeforeFirst()        // sentinel before the first element
//	c.AfterLast()          // sentinel after the last element
//	c.Before(e), c.After(e)
//	c.Next(), c.Previous() // one step, false at either end
//	c.Get()                // current element
//
// Range scans are built by positioning first and stepping afterwards:
//
//	// (attr>=value)
//	if err := c.BeforeKey(value); err != nil {
//	    return err
//	}
//	for {
//	    ok, err := c.Next()
//	    if err != nil || !ok {
//	        break
//	    }
//	    t, _ := c.Get()
//	    // use t.Key, t.Value
//	}
//
// # Element Reuse
//
// Implementations reuse the element returned by Get. A caller must copy
// what it needs before the next call to Next or Previous.
//
// # Keyed Cursors
//
// KeyedCursor restricts a TupleCursor to the tuples of a single key. It
// rejects positioning requests for any other key with ErrUnsupported.
package cursor
