package models

import (
	"time"

	"deathfun-backend/internal/fairness"
)

type EndReason string

const (
	EndReasonNone    EndReason = ""
	EndReasonDeath   EndReason = "death"
	EndReasonCashout EndReason = "cashout"
	EndReasonCleared EndReason = "cleared"
)

// GameSession is the full stored record of one round. It is persisted as a single value
// so every transition is one compare-and-swap.
type GameSession struct {
	ID      string  `json:"id"`
	OwnerID string  `json:"owner_id"`
	Stake   float64 `json:"stake"`

	SecretSeed     string      `json:"secret_seed"`
	Commitment     string      `json:"commitment"`
	ClientSeed     string      `json:"client_seed"`
	BoardLayout    []int       `json:"board_layout"`
	EliminationMap map[int]int `json:"elimination_map"`

	CursorRow    int         `json:"cursor_row"`
	ClickedTiles map[int]int `json:"clicked_tiles"`

	Playing   bool      `json:"playing"`
	Ended     bool      `json:"ended"`
	Died      bool      `json:"died"`
	EndReason EndReason `json:"end_reason,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

func (s *GameSession) RowCount() int {
	return len(s.BoardLayout)
}

func (s *GameSession) Status() string {
	switch {
	case !s.Ended:
		return "playing"
	case s.Died:
		return "died"
	case s.EndReason == EndReasonCleared:
		return "cleared"
	default:
		return "cashed_out"
	}
}

// RowsCleared is the number of rows passed with a safe tile.
func (s *GameSession) RowsCleared() int {
	return s.CursorRow
}

// CurrentMultiplier is the multiplier earned by the rows cleared so far, 0 when none.
func (s *GameSession) CurrentMultiplier() float64 {
	if s.Died || s.CursorRow == 0 {
		return 0
	}
	multipliers := fairness.RowMultipliers(s.BoardLayout)
	return multipliers[s.CursorRow-1]
}

// PublicState projects the record for callers. The secret seed and the elimination
// map are only copied once the round has ended.
func (s *GameSession) PublicState() *PublicSession {
	clicked := make(map[int]int, len(s.ClickedTiles))
	for row, tile := range s.ClickedTiles {
		clicked[row] = tile
	}

	public := &PublicSession{
		SessionID:    s.ID,
		OwnerID:      s.OwnerID,
		Commitment:   s.Commitment,
		ClientSeed:   s.ClientSeed,
		BoardLayout:  append([]int(nil), s.BoardLayout...),
		RowCount:     s.RowCount(),
		Multipliers:  fairness.RowMultipliers(s.BoardLayout),
		CursorRow:    s.CursorRow,
		ClickedTiles: clicked,
		Playing:      s.Playing,
		Ended:        s.Ended,
		Died:         s.Died,
		Status:       s.Status(),
		Stake:        s.Stake,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		ExpiresAt:    s.ExpiresAt,
		EndedAt:      s.EndedAt,
	}

	if s.Ended {
		public.SecretSeed = s.SecretSeed
		public.EliminationMap = make(map[int]int, len(s.EliminationMap))
		for row, idx := range s.EliminationMap {
			public.EliminationMap[row] = idx
		}
	}

	return public
}

type PublicSession struct {
	SessionID    string      `json:"session_id"`
	OwnerID      string      `json:"owner_id"`
	Commitment   string      `json:"commitment"`
	ClientSeed   string      `json:"client_seed"`
	BoardLayout  []int       `json:"board_layout"`
	RowCount     int         `json:"row_count"`
	Multipliers  []float64   `json:"multipliers"`
	CursorRow    int         `json:"cursor_row"`
	ClickedTiles map[int]int `json:"clicked_tiles"`
	Playing      bool        `json:"playing"`
	Ended        bool        `json:"ended"`
	Died         bool        `json:"died"`
	Status       string      `json:"status"`
	Stake        float64     `json:"stake"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	ExpiresAt    time.Time   `json:"expires_at"`
	EndedAt      *time.Time  `json:"ended_at,omitempty"`

	// Only set after the round ended.
	SecretSeed     string      `json:"secret_seed,omitempty"`
	EliminationMap map[int]int `json:"elimination_map,omitempty"`
}

// SessionCreated is what create hands back: public fields only.
type SessionCreated struct {
	SessionID   string    `json:"session_id"`
	Commitment  string    `json:"commitment"`
	ClientSeed  string    `json:"client_seed"`
	BoardLayout []int     `json:"board_layout"`
	RowCount    int       `json:"row_count"`
	Multipliers []float64 `json:"multipliers"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type ClickResult struct {
	SessionID      string  `json:"session_id"`
	RowIndex       int     `json:"row_index"`
	TileIndex      int     `json:"tile_index"`
	IsDeath        bool    `json:"is_death"`
	CursorAdvanced bool    `json:"cursor_advanced"`
	CursorRow      int     `json:"cursor_row"`
	Ended          bool    `json:"ended"`
	Multiplier     float64 `json:"multiplier"`
	Payout         float64 `json:"payout,omitempty"`
}

type CashoutResult struct {
	SessionID   string  `json:"session_id"`
	RowsCleared int     `json:"rows_cleared"`
	Multiplier  float64 `json:"multiplier"`
	Payout      float64 `json:"payout"`
}

type RevealResult struct {
	SessionID  string `json:"session_id"`
	Revealed   bool   `json:"revealed"`
	Status     string `json:"status"`
	Commitment string `json:"commitment"`
	SecretSeed string `json:"secret_seed,omitempty"`
}

type SessionValidity struct {
	SessionID string `json:"session_id"`
	Valid     bool   `json:"valid"`
	Playing   bool   `json:"playing"`
	Ended     bool   `json:"ended"`
}
