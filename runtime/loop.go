// Package runtime tracks section-iteration bookkeeping: which child of a
// section's dictionary list is currently expanding, and whether it is the
// last one (the signal the separator sub-section needs).
package runtime

// Iteration describes one pass over a section's child-dictionary list.
type Iteration struct {
	Index int // 0-based position of the current child
	Count int // total number of children in the list
}

// NewIteration describes an iteration over a list of count children.
func NewIteration(count int) *Iteration {
	return &Iteration{Index: -1, Count: count}
}

// Advance returns a new Iteration positioned at the next child; it is left
// unchanged.
func (it *Iteration) Advance() *Iteration {
	return &Iteration{Index: it.Index + 1, Count: it.Count}
}

// First reports whether this is the first child in the list.
func (it *Iteration) First() bool { return it.Index == 0 }

// Last reports whether this is the final child in the list — the signal
// that suppresses a trailing separator sub-section (spec §4.5).
func (it *Iteration) Last() bool { return it.Index == it.Count-1 }
