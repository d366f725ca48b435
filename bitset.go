package meshdb

import "math/bits"

// bitset is a packed array of bits, word-addressed exactly like the
// teacher's fixed-size bitmask256 (bitmask.go) but grown to arbitrary
// length: a sequence's free-slot tracking (spec.md §4.3) needs one bit per
// allocated slot, and sequences grow without bound, so the fixed [4]uint64
// shape the teacher used for its 256-component mask doesn't fit. The
// per-word set/unset/test operations are the same shift-and-mask idiom.
type bitset []uint64

func newBitset(nbits int) bitset {
	return make(bitset, wordsFor(nbits))
}

func wordsFor(nbits int) int {
	return (nbits + 63) / 64
}

// ensure grows b so that bit index nbits-1 is addressable, returning the
// (possibly reallocated) bitset.
func (b bitset) ensure(nbits int) bitset {
	need := wordsFor(nbits)
	if len(b) >= need {
		return b
	}
	nb := make(bitset, need)
	copy(nb, b)
	return nb
}

func (b bitset) set(i int) {
	b[i>>6] |= uint64(1) << uint(i&63)
}

func (b bitset) unset(i int) {
	b[i>>6] &^= uint64(1) << uint(i&63)
}

func (b bitset) test(i int) bool {
	word := i >> 6
	if word >= len(b) {
		return false
	}
	return b[word]&(uint64(1)<<uint(i&63)) != 0
}

// nextSet returns the smallest set bit strictly greater than after, or -1
// if none exists. This backs sequence.GetNextFreeIndex (spec.md §4.3),
// which the teacher has no analog for — bitmask256 only ever tests
// containment (contains/containsBit in bitmask.go), never scans for the
// next set bit, because ECS archetype masks are tested, not walked. The
// scan below reuses the same word/offset indexing, extended with
// bits.TrailingZeros64 to find the first live bit in a word.
func (b bitset) nextSet(after int) int {
	start := after + 1
	if start < 0 {
		start = 0
	}
	word := start >> 6
	if word >= len(b) {
		return -1
	}
	// mask off bits before `start` (at or before `after`) within the first word.
	offset := uint(start & 63)
	w := b[word] &^ (uint64(1)<<offset - 1)
	for {
		if w != 0 {
			return word*64 + bits.TrailingZeros64(w)
		}
		word++
		if word >= len(b) {
			return -1
		}
		w = b[word]
	}
}

// nextClear returns the smallest clear bit strictly greater than after and
// strictly less than limit, or limit if every bit in that span is set.
// This is nextSet's complement, used to find where a run of deleted
// (free) slots ends and live ones resume again.
func (b bitset) nextClear(after, limit int) int {
	start := after + 1
	if start < 0 {
		start = 0
	}
	if start >= limit {
		return limit
	}
	word := start >> 6
	for word*64 < limit {
		var w uint64
		if word < len(b) {
			w = ^b[word]
		} else {
			w = ^uint64(0)
		}
		if word*64 < start {
			offset := uint(start - word*64)
			w &^= uint64(1)<<offset - 1
		}
		if w != 0 {
			pos := word*64 + bits.TrailingZeros64(w)
			if pos >= limit {
				return limit
			}
			return pos
		}
		word++
	}
	return limit
}

// popcount returns the number of set bits up to nbits.
func (b bitset) popcount(nbits int) int {
	n := 0
	full := nbits / 64
	for i := 0; i < full && i < len(b); i++ {
		n += bits.OnesCount64(b[i])
	}
	rem := nbits % 64
	if rem > 0 && full < len(b) {
		mask := uint64(1)<<uint(rem) - 1
		n += bits.OnesCount64(b[full] & mask)
	}
	return n
}
