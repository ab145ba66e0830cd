package fairness

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var goldenSeed = strings.Repeat("00", 31) + "01"

func TestGoldenFixture(t *testing.T) {
	assert.Equal(t, "c386d8e8d07342f2e39e189c8e6c57bb205bb373fe4e3a6f69404a8bb767b417", Commit(goldenSeed))

	rows := DeriveRowCount(goldenSeed)
	require.Equal(t, 14, rows)

	layout := DeriveBoardLayout(goldenSeed, rows)
	assert.Equal(t, []int{2, 4, 5, 3, 2, 2, 4, 5, 6, 5, 6, 3, 2, 7}, layout)

	expected := []int{1, 3, 3, 2, 0, 0, 3, 0, 5, 3, 2, 2, 1, 4}
	eliminations := PrecomputeAll(goldenSeed, layout)
	require.Len(t, eliminations, len(expected))
	for row, idx := range expected {
		assert.Equal(t, idx, eliminations[row], "row %d", row)
	}
}

func TestSecondFixture(t *testing.T) {
	seed := strings.Repeat("ab", 32)

	layout := DeriveBoard(seed)
	assert.Equal(t, []int{6, 3, 7, 5, 2, 4, 4, 3, 2, 3, 7, 5}, layout)

	expected := []int{0, 0, 2, 1, 0, 3, 2, 0, 1, 0, 3, 1}
	eliminations := PrecomputeAll(seed, layout)
	for row, idx := range expected {
		assert.Equal(t, idx, eliminations[row], "row %d", row)
	}
}

func TestGenerateSecretSeed(t *testing.T) {
	a, err := GenerateSecretSeed()
	require.NoError(t, err)
	b, err := GenerateSecretSeed()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)

	client, err := GenerateClientSeed()
	require.NoError(t, err)
	assert.Len(t, client, 32)
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("entropy pool closed") }

func TestGenerateSeedFromBrokenReader(t *testing.T) {
	_, err := GenerateSeedFrom(brokenReader{}, SecretSeedBytes)
	assert.ErrorIs(t, err, ErrRandomSource)
}

func TestVerifyCommitment(t *testing.T) {
	for i := 0; i < 50; i++ {
		seed, err := GenerateSecretSeed()
		require.NoError(t, err)

		commitment := Commit(seed)
		assert.True(t, VerifyCommitment(seed, commitment))
		assert.False(t, VerifyCommitment(seed+"0", commitment))
		assert.False(t, VerifyCommitment(goldenSeed, commitment))
		assert.False(t, VerifyCommitment(seed, strings.ToUpper(commitment)))
	}
}

func TestDeriveRowCountRangeAndStability(t *testing.T) {
	seen := map[int]bool{}
	for i := 0; i < 500; i++ {
		seed := fmt.Sprintf("%064x", i)
		n := DeriveRowCount(seed)
		assert.GreaterOrEqual(t, n, MinRows)
		assert.LessOrEqual(t, n, MaxRows)
		assert.Equal(t, n, DeriveRowCount(seed))
		seen[n] = true
	}
	assert.Len(t, seen, 4)
}

func TestDeriveBoardLayoutRangeAndStability(t *testing.T) {
	for i := 0; i < 200; i++ {
		seed := fmt.Sprintf("%064x", i*7919)
		rows := DeriveRowCount(seed)
		layout := DeriveBoardLayout(seed, rows)

		require.Len(t, layout, rows)
		assert.Equal(t, layout, DeriveBoardLayout(seed, rows))
		for _, tiles := range layout {
			assert.GreaterOrEqual(t, tiles, MinTiles)
			assert.LessOrEqual(t, tiles, MaxTiles)
		}
	}

	assert.Empty(t, DeriveBoardLayout(goldenSeed, 0))
}

func TestDeriveEliminationIndexRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		seed := fmt.Sprintf("%064x", i)
		for row := 0; row < MaxRows; row++ {
			for tiles := 1; tiles <= 9; tiles++ {
				idx := DeriveEliminationIndex(seed, row, tiles)
				assert.GreaterOrEqual(t, idx, 0)
				assert.Less(t, idx, tiles)
			}
		}
	}
}

func TestDeriveEliminationIndexNonPositiveTiles(t *testing.T) {
	assert.Equal(t, 0, DeriveEliminationIndex(goldenSeed, 0, 0))
	assert.Equal(t, 0, DeriveEliminationIndex(goldenSeed, 3, -4))
}

func TestDeriveEliminationIndexUsesOffsetWindow(t *testing.T) {
	// sha256(seed+"-row0")[8:16] = b309c744 = 3003762500; 3003762500 % 5 = 0; (0+1) % 5 = 1
	assert.Equal(t, 1, DeriveEliminationIndex(goldenSeed, 0, 5))
}

func TestPrecomputeAllIdempotent(t *testing.T) {
	seed, err := GenerateSecretSeed()
	require.NoError(t, err)

	layout := DeriveBoard(seed)
	assert.Equal(t, PrecomputeAll(seed, layout), PrecomputeAll(seed, layout))
}

func TestRecompute(t *testing.T) {
	layout := DeriveBoard(goldenSeed)
	derived, eliminations := Recompute(goldenSeed, layout)

	assert.Equal(t, layout, derived)
	assert.Equal(t, PrecomputeAll(goldenSeed, layout), eliminations)
}

func TestRowMultipliers(t *testing.T) {
	multipliers := RowMultipliers([]int{2, 4})
	require.Len(t, multipliers, 2)
	assert.InDelta(t, 1.9, multipliers[0], 1e-9)
	assert.InDelta(t, 2.0*4.0/3.0*0.95, multipliers[1], 1e-9)

	golden := RowMultipliers(DeriveBoard(goldenSeed))
	assert.InDelta(t, 199.5, golden[len(golden)-1], 1e-6)
	for i := 1; i < len(golden); i++ {
		assert.Greater(t, golden[i], golden[i-1])
	}
}
