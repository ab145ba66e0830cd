package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deathfun-backend/internal/fairness"
	"deathfun-backend/internal/models"
)

func newSession() *models.GameSession {
	return &models.GameSession{
		ID:             models.NewSessionID(),
		OwnerID:        "0xabc",
		Stake:          2,
		SecretSeed:     "deadbeef",
		Commitment:     "commit",
		ClientSeed:     "client",
		BoardLayout:    []int{2, 4, 5},
		EliminationMap: map[int]int{0: 1, 1: 3, 2: 3},
		ClickedTiles:   map[int]int{},
		Playing:        true,
		CreatedAt:      time.Now(),
	}
}

func TestPublicStateHidesSecretsWhilePlaying(t *testing.T) {
	session := newSession()

	public := session.PublicState()
	assert.Empty(t, public.SecretSeed)
	assert.Nil(t, public.EliminationMap)
	assert.Equal(t, "commit", public.Commitment)
	assert.Equal(t, []int{2, 4, 5}, public.BoardLayout)
	assert.Equal(t, "playing", public.Status)
	assert.Len(t, public.Multipliers, 3)
}

func TestPublicStateRevealsAfterEnd(t *testing.T) {
	session := newSession()
	session.Playing = false
	session.Ended = true
	session.Died = true

	public := session.PublicState()
	assert.Equal(t, "deadbeef", public.SecretSeed)
	assert.Equal(t, map[int]int{0: 1, 1: 3, 2: 3}, public.EliminationMap)
	assert.Equal(t, "died", public.Status)

	public.EliminationMap[0] = 99
	assert.Equal(t, 1, session.EliminationMap[0], "public copy must not alias the record")
}

func TestStatus(t *testing.T) {
	session := newSession()
	session.Ended = true
	session.EndReason = models.EndReasonCleared
	assert.Equal(t, "cleared", session.Status())

	session.EndReason = models.EndReasonCashout
	assert.Equal(t, "cashed_out", session.Status())
}

func TestCurrentMultiplier(t *testing.T) {
	session := newSession()
	assert.Zero(t, session.CurrentMultiplier())

	session.CursorRow = 1
	assert.InDelta(t, 1.9, session.CurrentMultiplier(), 1e-9)

	session.Died = true
	assert.Zero(t, session.CurrentMultiplier())
}

func TestCreateSessionRequestValidate(t *testing.T) {
	req := &models.CreateSessionRequest{OwnerID: "  7eoY2tr9VAzeEjX1q64q3oVnD5ERG9ZJK8cfUjXDfh8p  ", Stake: 1.5}
	require.NoError(t, req.Validate())
	assert.Equal(t, "7eoY2tr9VAzeEjX1q64q3oVnD5ERG9ZJK8cfUjXDfh8p", req.OwnerID, "case must survive")

	assert.Error(t, (&models.CreateSessionRequest{OwnerID: ""}).Validate())
	assert.Error(t, (&models.CreateSessionRequest{OwnerID: "a:b"}).Validate())
	assert.Error(t, (&models.CreateSessionRequest{OwnerID: "0xabc", Stake: -1}).Validate())
}

func TestReferrerRequestValidate(t *testing.T) {
	req := &models.ReferrerRequest{Referrer: " 0xRef "}
	require.NoError(t, req.Validate("0xabc"))
	assert.Equal(t, "0xRef", req.Referrer)

	assert.Error(t, (&models.ReferrerRequest{Referrer: "0xabc"}).Validate("0xabc"))
	assert.Error(t, (&models.ReferrerRequest{Referrer: "a b"}).Validate("0xabc"))
}

func TestClickRequestValidate(t *testing.T) {
	zero := 0
	neg := -1

	assert.NoError(t, (&models.ClickRequest{RowIndex: &zero, TileIndex: &zero}).Validate())
	assert.Error(t, (&models.ClickRequest{TileIndex: &zero}).Validate())
	assert.Error(t, (&models.ClickRequest{RowIndex: &zero}).Validate())
	assert.Error(t, (&models.ClickRequest{RowIndex: &neg, TileIndex: &zero}).Validate())
}

func TestVerifyRequestValidate(t *testing.T) {
	req := &models.VerifyRequest{SecretSeed: " seed ", Commitment: " ABCD ", BoardLayout: []int{2}}
	require.NoError(t, req.Validate())
	assert.Equal(t, "seed", req.SecretSeed)
	assert.Equal(t, "abcd", req.Commitment)

	assert.Error(t, (&models.VerifyRequest{SecretSeed: "s", Commitment: "c"}).Validate())
}

func TestVerifyRequestValidateBounds(t *testing.T) {
	tooLong := make([]int, fairness.MaxRows+1)
	for i := range tooLong {
		tooLong[i] = 2
	}

	tests := []struct {
		name         string
		layout       []int
		eliminations map[int]int
		wantErr      bool
	}{
		{name: "max rows", layout: tooLong[:fairness.MaxRows]},
		{name: "too many rows", layout: tooLong, wantErr: true},
		{name: "huge layout", layout: make([]int, 2_000_000), wantErr: true},
		{name: "one tile row", layout: []int{2, 1, 3}, wantErr: true},
		{name: "eight tile row", layout: []int{2, 8}, wantErr: true},
		{name: "oversized elimination map", layout: []int{2, 3}, eliminations: map[int]int{0: 0, 1: 0, 2: 0, 3: 0, 4: 0, 5: 0, 6: 0, 7: 0, 8: 0, 9: 0, 10: 0, 11: 0, 12: 0, 13: 0, 14: 0, 15: 0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &models.VerifyRequest{SecretSeed: "s", Commitment: "c", BoardLayout: tt.layout, EliminationMap: tt.eliminations}
			err := req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidSessionID(t *testing.T) {
	assert.True(t, models.ValidSessionID(models.NewSessionID()))
	assert.False(t, models.ValidSessionID(""))
	assert.False(t, models.ValidSessionID("not-a-uuid"))
}
