// Package types provides core data types for the SureChEMBL mini client.
package types

// Record is a single chemical-structure row from the SureChEMBL feed.
// ID is the natural key and is unique within the destination table.
type Record struct {
	// ID is the numeric SureChEMBL identifier (the digits of SCHEMBLxxxxx).
	ID int64

	// SMILES is the structure in SMILES notation.
	SMILES string

	// StdInChI is the standard InChI string.
	StdInChI string

	// StdInChIKey is the 27-character standard InChI key.
	StdInChIKey string
}

// RowSet is an insertion-ordered set of Records deduplicated by natural key.
// The first record added for a given ID wins; later duplicates are dropped.
type RowSet struct {
	order []int64
	byID  map[int64]Record
}

// NewRowSet creates an empty RowSet.
func NewRowSet() *RowSet {
	return &RowSet{byID: make(map[int64]Record)}
}

// Add inserts a record unless its ID is already present.
// Returns true if the record was inserted.
func (s *RowSet) Add(r Record) bool {
	if _, ok := s.byID[r.ID]; ok {
		return false
	}
	s.byID[r.ID] = r
	s.order = append(s.order, r.ID)
	return true
}

// Merge adds every record from other in other's insertion order.
// Records whose IDs are already present are dropped (first-seen wins).
func (s *RowSet) Merge(other *RowSet) {
	if other == nil {
		return
	}
	for _, id := range other.order {
		s.Add(other.byID[id])
	}
}

// Len returns the number of distinct records in the set.
func (s *RowSet) Len() int {
	return len(s.order)
}

// Contains reports whether a record with the given ID is present.
func (s *RowSet) Contains(id int64) bool {
	_, ok := s.byID[id]
	return ok
}

// Records returns the records in insertion order.
func (s *RowSet) Records() []Record {
	out := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}
