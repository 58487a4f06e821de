package types

import "sort"

// SortFunc is the canonical pool ordering: strict, content-derived, the
// same on every node that holds the same set of transactions. It is a
// consensus-visible surface — changing the key or the tie-break order
// is a hard fork.
//
// Order: (Type, Timestamp ascending, Amount descending, ID ascending).
// Earlier timestamps sort first; among ties, larger amounts sort first;
// remaining ties break on ID for a total order.
func SortFunc(a, b *Transaction) bool {
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	if a.Amount != b.Amount {
		return a.Amount > b.Amount
	}
	return a.ID < b.ID
}

// SortTransactions sorts trs in place using SortFunc, ascending.
func SortTransactions(trs []*Transaction) {
	sort.SliceStable(trs, func(i, j int) bool {
		return SortFunc(trs[i], trs[j])
	})
}

// Last returns the element of trs that sorts last under SortFunc, or nil
// if trs is empty. Used by the conflict detector's sort-order rule.
func Last(trs []*Transaction) *Transaction {
	if len(trs) == 0 {
		return nil
	}
	cp := make([]*Transaction, len(trs))
	copy(cp, trs)
	SortTransactions(cp)
	return cp[len(cp)-1]
}
