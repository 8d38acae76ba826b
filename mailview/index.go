package mailview

import "github.com/bassamadnan/xmail/mailapi"

// Index is the ID-keyed lookup table of mail summaries. Iteration follows
// the order in which each ID was first seen; a later record with the same
// ID replaces the value but keeps the position.
type Index struct {
	order []mailapi.MailID
	byID  map[mailapi.MailID]mailapi.Summary
}

// NewIndex builds a fresh index from a sequence of summaries.
func NewIndex(summaries []mailapi.Summary) Index {
	idx := Index{
		order: make([]mailapi.MailID, 0, len(summaries)),
		byID:  make(map[mailapi.MailID]mailapi.Summary, len(summaries)),
	}
	for _, s := range summaries {
		if _, seen := idx.byID[s.ID]; !seen {
			idx.order = append(idx.order, s.ID)
		}
		idx.byID[s.ID] = s
	}
	return idx
}

// Len returns the number of distinct IDs.
func (idx Index) Len() int { return len(idx.order) }

// Get looks up a summary by ID.
func (idx Index) Get(id mailapi.MailID) (mailapi.Summary, bool) {
	s, ok := idx.byID[id]
	return s, ok
}

// At returns the i-th summary in iteration order.
func (idx Index) At(i int) mailapi.Summary {
	return idx.byID[idx.order[i]]
}

// Summaries returns the summaries in iteration order.
func (idx Index) Summaries() []mailapi.Summary {
	out := make([]mailapi.Summary, len(idx.order))
	for i, id := range idx.order {
		out[i] = idx.byID[id]
	}
	return out
}
