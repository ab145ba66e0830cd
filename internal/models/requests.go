package models

import (
	"fmt"
	"strings"

	"deathfun-backend/internal/fairness"
)

const (
	MaxOwnerIDLength = 128
	MaxStake         = 1_000_000
)

type CreateSessionRequest struct {
	OwnerID string  `json:"owner_id" binding:"required"`
	Stake   float64 `json:"stake"`
}

func (r *CreateSessionRequest) Validate() error {
	r.OwnerID = NormalizeOwnerID(r.OwnerID)
	if err := ValidateOwnerID(r.OwnerID); err != nil {
		return err
	}
	if r.Stake < 0 {
		return fmt.Errorf("stake must not be negative")
	}
	if r.Stake > MaxStake {
		return fmt.Errorf("maximum stake is %d", MaxStake)
	}
	return nil
}

// ClickRequest uses pointers so a zero row or tile is distinguishable from a missing one.
type ClickRequest struct {
	RowIndex  *int `json:"row_index" binding:"required"`
	TileIndex *int `json:"tile_index" binding:"required"`
}

func (r *ClickRequest) Validate() error {
	if r.RowIndex == nil {
		return fmt.Errorf("row_index is required")
	}
	if r.TileIndex == nil {
		return fmt.Errorf("tile_index is required")
	}
	if *r.RowIndex < 0 {
		return fmt.Errorf("row_index must not be negative")
	}
	if *r.TileIndex < 0 {
		return fmt.Errorf("tile_index must not be negative")
	}
	return nil
}

type DepositRequest struct {
	Amount float64 `json:"amount" binding:"required"`
}

func (r *DepositRequest) Validate() error {
	if r.Amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	if r.Amount > MaxStake {
		return fmt.Errorf("maximum deposit is %d", MaxStake)
	}
	return nil
}

type ReferrerRequest struct {
	Referrer string `json:"referrer" binding:"required"`
}

func (r *ReferrerRequest) Validate(ownerID string) error {
	r.Referrer = NormalizeOwnerID(r.Referrer)
	if err := ValidateOwnerID(r.Referrer); err != nil {
		return fmt.Errorf("referrer: %w", err)
	}
	if r.Referrer == ownerID {
		return fmt.Errorf("an owner cannot refer itself")
	}
	return nil
}

// VerifyRequest carries revealed data copied out of a finished round.
type VerifyRequest struct {
	SecretSeed     string      `json:"secret_seed" binding:"required"`
	Commitment     string      `json:"commitment" binding:"required"`
	BoardLayout    []int       `json:"board_layout" binding:"required"`
	EliminationMap map[int]int `json:"elimination_map"`
}

func (r *VerifyRequest) Validate() error {
	r.SecretSeed = strings.TrimSpace(r.SecretSeed)
	r.Commitment = strings.ToLower(strings.TrimSpace(r.Commitment))
	if r.SecretSeed == "" {
		return fmt.Errorf("secret_seed is required")
	}
	if r.Commitment == "" {
		return fmt.Errorf("commitment is required")
	}
	if len(r.BoardLayout) == 0 {
		return fmt.Errorf("board_layout is required")
	}
	if len(r.BoardLayout) > fairness.MaxRows {
		return fmt.Errorf("board_layout has %d rows, maximum is %d", len(r.BoardLayout), fairness.MaxRows)
	}
	for row, tiles := range r.BoardLayout {
		if tiles < fairness.MinTiles || tiles > fairness.MaxTiles {
			return fmt.Errorf("board_layout row %d has %d tiles, expected %d to %d", row, tiles, fairness.MinTiles, fairness.MaxTiles)
		}
	}
	if len(r.EliminationMap) > fairness.MaxRows {
		return fmt.Errorf("elimination_map has %d rows, maximum is %d", len(r.EliminationMap), fairness.MaxRows)
	}
	return nil
}

// NormalizeOwnerID trims surrounding whitespace. Owner ids are otherwise opaque and
// compared exactly: base58 wallet addresses are case sensitive.
func NormalizeOwnerID(ownerID string) string {
	return strings.TrimSpace(ownerID)
}

func ValidateOwnerID(ownerID string) error {
	if ownerID == "" {
		return fmt.Errorf("owner_id is required")
	}
	if len(ownerID) > MaxOwnerIDLength {
		return fmt.Errorf("owner_id exceeds %d characters", MaxOwnerIDLength)
	}
	if strings.ContainsAny(ownerID, " :*?[]") {
		return fmt.Errorf("owner_id contains invalid characters")
	}
	return nil
}
