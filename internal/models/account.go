package models

// PlayerAccount is the ledger view of an owner.
type PlayerAccount struct {
	OwnerID       string  `json:"owner_id" redis:"-"`
	AtRiskBalance float64 `json:"at_risk_balance" redis:"at_risk"`
	TotalEarned   float64 `json:"total_earned" redis:"total_earned"`
	LastPayout    float64 `json:"last_payout" redis:"last_payout"`
	RoundsPlayed  int64   `json:"rounds_played" redis:"rounds_played"`

	// Referrer is set once and never overwritten.
	Referrer       string  `json:"referrer,omitempty" redis:"referrer"`
	ReferralEarned float64 `json:"referral_earned" redis:"referral_earned"`
}

type LeaderboardEntry struct {
	Rank         int     `json:"rank"`
	OwnerID      string  `json:"owner_id"`
	TotalEarned  float64 `json:"total_earned"`
	RoundsPlayed int64   `json:"rounds_played"`
}
