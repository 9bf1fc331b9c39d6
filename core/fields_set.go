package core

// FieldsSet is a compact bitset over the field indices of a model instance.
// It distinguishes "explicitly provided" from "defaulted", which is what the
// exclude_unset dump option keys off.
type FieldsSet struct {
	length int
	bits   []uint64
}

// EmptyFieldsSet returns an all-unset set for length fields.
func EmptyFieldsSet(length int) FieldsSet {
	return FieldsSet{length: length, bits: make([]uint64, (length+63)/64)}
}

// AllFieldsSet returns an all-set set for length fields.
func AllFieldsSet(length int) FieldsSet {
	s := EmptyFieldsSet(length)
	for i := 0; i < length; i++ {
		s.Set(i)
	}
	return s
}

// Len returns the number of fields represented.
func (s FieldsSet) Len() int { return s.length }

// Set marks field idx as explicitly provided. Out-of-range indices are
// ignored.
func (s *FieldsSet) Set(idx int) {
	if idx < 0 || idx >= s.length {
		return
	}
	s.bits[idx/64] |= 1 << (idx % 64)
}

// Clear unmarks field idx.
func (s *FieldsSet) Clear(idx int) {
	if idx < 0 || idx >= s.length {
		return
	}
	s.bits[idx/64] &^= 1 << (idx % 64)
}

// IsSet reports whether field idx was explicitly provided.
func (s FieldsSet) IsSet(idx int) bool {
	if idx < 0 || idx >= s.length {
		return false
	}
	return s.bits[idx/64]&(1<<(idx%64)) != 0
}

// Count returns the number of set fields.
func (s FieldsSet) Count() int {
	n := 0
	for i := 0; i < s.length; i++ {
		if s.IsSet(i) {
			n++
		}
	}
	return n
}

// Clone returns an independent copy.
func (s FieldsSet) Clone() FieldsSet {
	return FieldsSet{length: s.length, bits: append([]uint64(nil), s.bits...)}
}
