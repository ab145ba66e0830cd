package models

type VerificationReport struct {
	SessionID          string `json:"session_id,omitempty"`
	Commitment         string `json:"commitment"`
	CommitmentValid    bool   `json:"commitment_valid"`
	LayoutValid        bool   `json:"layout_valid"`
	EliminationMatches []bool `json:"elimination_matches"`
	MismatchedRows     []int  `json:"mismatched_rows"`
	OverallValid       bool   `json:"overall_valid"`

	ExpectedLayout       []int       `json:"expected_layout"`
	ExpectedEliminations map[int]int `json:"expected_eliminations"`
}
