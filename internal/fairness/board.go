package fairness

import "strconv"

const (
	MinRows  = 12
	MaxRows  = 15
	MinTiles = 2
	MaxTiles = 7

	// HouseEdge is taken off every cumulative row multiplier.
	HouseEdge = 0.05
)

// DeriveRowCount maps the first digest byte of seed+":rowCount" into [12,15].
func DeriveRowCount(seed string) int {
	sum := sha256Sum(seed + ":rowCount")
	return MinRows + int(sum[0])%(MaxRows-MinRows+1)
}

// DeriveBoardLayout returns the tile count of every row, each in [2,7], in row order.
func DeriveBoardLayout(seed string, rowCount int) []int {
	if rowCount <= 0 {
		return []int{}
	}

	layout := make([]int, rowCount)
	for i := range layout {
		sum := sha256Sum(seed + ":row" + strconv.Itoa(i) + ":tiles")
		layout[i] = MinTiles + int(sum[0])%(MaxTiles-MinTiles+1)
	}
	return layout
}

// DeriveBoard is DeriveBoardLayout(seed, DeriveRowCount(seed)).
func DeriveBoard(seed string) []int {
	return DeriveBoardLayout(seed, DeriveRowCount(seed))
}

// RowMultipliers returns the cumulative payout multiplier reached after clearing each row.
func RowMultipliers(layout []int) []float64 {
	multipliers := make([]float64, len(layout))
	current := 1.0
	for i, tiles := range layout {
		if tiles > 1 {
			current *= 1 / (1 - 1/float64(tiles))
		}
		multipliers[i] = current * (1 - HouseEdge)
	}
	return multipliers
}
