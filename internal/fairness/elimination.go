package fairness

import (
	"strconv"
)

// eliminationOffset is the hex offset of the 8 character window read from the row digest.
const eliminationOffset = 8

// DeriveEliminationIndex returns the hidden losing tile for a row.
//
// The trailing "+1 mod tileCount" step predates this service and is kept for
// compatibility with revealed sessions. It is not a uniformity guarantee.
func DeriveEliminationIndex(seed string, rowIndex, tileCount int) int {
	if tileCount <= 0 {
		return 0
	}

	digest := sha256Hex(seed + "-row" + strconv.Itoa(rowIndex))
	n, err := strconv.ParseUint(digest[eliminationOffset:eliminationOffset+8], 16, 64)
	if err != nil {
		// unreachable: sha256Hex always yields lowercase hex
		return 0
	}

	t := uint64(tileCount)
	return int(((n % t) + 1) % t)
}

// PrecomputeAll derives the elimination index of every row of layout, in row order.
func PrecomputeAll(seed string, layout []int) map[int]int {
	out := make(map[int]int, len(layout))
	for row, tiles := range layout {
		out[row] = DeriveEliminationIndex(seed, row, tiles)
	}
	return out
}

// Recompute re-derives the layout and elimination map from a revealed seed alone.
// The supplied layout is only used for row-by-row elimination indices so that a
// tampered layout still yields a comparable map.
func Recompute(seed string, layout []int) (derivedLayout []int, eliminations map[int]int) {
	derivedLayout = DeriveBoard(seed)
	eliminations = PrecomputeAll(seed, layout)
	return derivedLayout, eliminations
}
