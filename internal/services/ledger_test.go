package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLedgerDepositAndDeath(t *testing.T) {
	rs, _ := setupTestRedis(t)
	ledger := NewRedisLedger(rs)
	ctx := context.Background()

	account, err := ledger.Deposit(ctx, "0xabc", 25)
	require.NoError(t, err)
	assert.Equal(t, 25.0, account.AtRiskBalance)
	assert.Equal(t, "0xabc", account.OwnerID)

	require.NoError(t, ledger.RecordDeath(ctx, "0xabc"))

	account, err = ledger.Account(ctx, "0xabc")
	require.NoError(t, err)
	assert.Zero(t, account.AtRiskBalance)
	assert.Equal(t, int64(1), account.RoundsPlayed)

	_, err = ledger.Deposit(ctx, "0xabc", 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRedisLedgerPayoutAndLeaderboard(t *testing.T) {
	rs, _ := setupTestRedis(t)
	ledger := NewRedisLedger(rs)
	ctx := context.Background()

	require.NoError(t, ledger.RecordPayout(ctx, "0xabc", 19))
	require.NoError(t, ledger.RecordPayout(ctx, "0xabc", 1.5))
	require.NoError(t, ledger.RecordPayout(ctx, "0xdef", 40))
	require.NoError(t, ledger.RecordDeath(ctx, "0x123"))

	account, err := ledger.Account(ctx, "0xabc")
	require.NoError(t, err)
	assert.InDelta(t, 20.5, account.TotalEarned, 1e-9)
	assert.InDelta(t, 1.5, account.LastPayout, 1e-9)
	assert.Equal(t, int64(2), account.RoundsPlayed)

	board, err := ledger.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 2)

	assert.Equal(t, "0xdef", board[0].OwnerID)
	assert.Equal(t, 1, board[0].Rank)
	assert.InDelta(t, 40, board[0].TotalEarned, 1e-9)
	assert.Equal(t, int64(1), board[0].RoundsPlayed)

	assert.Equal(t, "0xabc", board[1].OwnerID)
	assert.Equal(t, 2, board[1].Rank)

	assert.Error(t, ledger.RecordPayout(ctx, "0xabc", -1))
}

func TestRedisLedgerReferralShare(t *testing.T) {
	rs, _ := setupTestRedis(t)
	ledger := NewRedisLedger(rs)
	ctx := context.Background()

	account, set, err := ledger.RegisterReferrer(ctx, "0xabc", "0xref")
	require.NoError(t, err)
	assert.True(t, set)
	assert.Equal(t, "0xref", account.Referrer)

	// first referrer wins
	account, set, err = ledger.RegisterReferrer(ctx, "0xabc", "0xother")
	require.NoError(t, err)
	assert.False(t, set)
	assert.Equal(t, "0xref", account.Referrer)

	require.NoError(t, ledger.RecordPayout(ctx, "0xabc", 20))

	player, err := ledger.Account(ctx, "0xabc")
	require.NoError(t, err)
	assert.InDelta(t, 19, player.TotalEarned, 1e-9)
	assert.InDelta(t, 19, player.LastPayout, 1e-9)
	assert.Equal(t, int64(1), player.RoundsPlayed)

	referrer, err := ledger.Account(ctx, "0xref")
	require.NoError(t, err)
	assert.InDelta(t, 1, referrer.TotalEarned, 1e-9)
	assert.InDelta(t, 1, referrer.ReferralEarned, 1e-9)
	assert.InDelta(t, 1, referrer.AtRiskBalance, 1e-9)
	assert.Zero(t, referrer.RoundsPlayed)

	board, err := ledger.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "0xabc", board[0].OwnerID)
	assert.Equal(t, "0xref", board[1].OwnerID)
	assert.InDelta(t, 1, board[1].TotalEarned, 1e-9)

	// no share on a death
	require.NoError(t, ledger.RecordDeath(ctx, "0xabc"))
	referrer, err = ledger.Account(ctx, "0xref")
	require.NoError(t, err)
	assert.InDelta(t, 1, referrer.TotalEarned, 1e-9)
}

func TestRedisLedgerReferrerRejected(t *testing.T) {
	rs, _ := setupTestRedis(t)
	ledger := NewRedisLedger(rs)
	ctx := context.Background()

	_, _, err := ledger.RegisterReferrer(ctx, "0xabc", "0xabc")
	assert.ErrorIs(t, err, ErrValidation)

	_, _, err = ledger.RegisterReferrer(ctx, "0xabc", "0xref")
	require.NoError(t, err)
	_, _, err = ledger.RegisterReferrer(ctx, "0xref", "0xabc")
	assert.ErrorIs(t, err, ErrValidation)

	referrer, err := ledger.Referrer(ctx, "0xref")
	require.NoError(t, err)
	assert.Empty(t, referrer)
}

func TestRedisLedgerEmptyAccount(t *testing.T) {
	rs, _ := setupTestRedis(t)
	ledger := NewRedisLedger(rs)

	account, err := ledger.Account(context.Background(), "0xnobody")
	require.NoError(t, err)
	assert.Zero(t, account.TotalEarned)
	assert.Zero(t, account.RoundsPlayed)

	board, err := ledger.Leaderboard(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, board)
}

func TestEngineFeedsRedisLedger(t *testing.T) {
	te := newTestEngine(t, nil)
	ledger := NewRedisLedger(te.redis)
	te.GameEngine.ledger = ledger
	ctx := context.Background()

	created, err := te.CreateSession(ctx, "0xabc", 10)
	require.NoError(t, err)
	_, err = te.RecordClick(ctx, created.SessionID, 0, safeTile(0))
	require.NoError(t, err)
	cashout, err := te.EndVoluntarily(ctx, created.SessionID)
	require.NoError(t, err)

	account, err := ledger.Account(ctx, "0xabc")
	require.NoError(t, err)
	assert.InDelta(t, cashout.Payout, account.TotalEarned, 1e-9)
	assert.Equal(t, int64(1), account.RoundsPlayed)
}
