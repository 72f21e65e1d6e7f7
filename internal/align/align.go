// Package align contains utilities for aligning section and image addresses
package align

// Address aligns the given address up to a multiple of alignment. A zero
// alignment leaves the address unchanged.
func Address[N uint32 | uint64 | int](addr N, alignment N) N {
	if alignment == 0 {
		return addr
	}

	return ((addr + alignment - 1) / alignment) * alignment
}

// IsAligned reports whether addr is a multiple of alignment.
func IsAligned[N uint32 | uint64 | int](addr N, alignment N) bool {
	return alignment == 0 || addr%alignment == 0
}
