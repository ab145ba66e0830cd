package services

import (
	"context"
	"slices"

	"deathfun-backend/internal/fairness"
	"deathfun-backend/internal/metrics"
	"deathfun-backend/internal/models"

	"github.com/rs/zerolog"
)

// Verifier recomputes a finished round from its revealed seed. It never writes.
type Verifier struct {
	store   SessionStore
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func NewVerifier(store SessionStore, m *metrics.Metrics, logger zerolog.Logger) *Verifier {
	if m == nil {
		m = metrics.NewMetrics()
	}
	return &Verifier{store: store, metrics: m, log: logger}
}

// Verify checks a stored session. Only ended sessions can be verified because the
// seed is not revealed before that.
func (v *Verifier) Verify(ctx context.Context, sessionID string) (*models.VerificationReport, error) {
	session, _, err := loadSession(ctx, v.store, sessionID)
	if err != nil {
		return nil, err
	}

	if !session.Ended {
		return nil, &TransitionError{SessionID: session.ID, Reason: ReasonNotEnded, ExpectedRow: session.CursorRow}
	}

	eliminations := session.EliminationMap
	if eliminations == nil {
		eliminations = map[int]int{}
	}

	report := VerifyRevealed(session.SecretSeed, session.Commitment, session.BoardLayout, eliminations)
	report.SessionID = session.ID

	v.record(report)
	if !report.OverallValid {
		v.log.Warn().
			Str("session_id", session.ID).
			Bool("commitment_valid", report.CommitmentValid).
			Bool("layout_valid", report.LayoutValid).
			Ints("mismatched_rows", report.MismatchedRows).
			Msg("session failed fairness verification")
	}

	return report, nil
}

// VerifyRequest checks revealed data supplied by a caller instead of the store.
func (v *Verifier) VerifyRequest(req *models.VerifyRequest) *models.VerificationReport {
	report := VerifyRevealed(req.SecretSeed, req.Commitment, req.BoardLayout, req.EliminationMap)
	v.record(report)
	return report
}

func (v *Verifier) record(report *models.VerificationReport) {
	result := "valid"
	if !report.OverallValid {
		result = "invalid"
	}
	v.metrics.VerificationsTotal.WithLabelValues(result).Inc()
}

// VerifyRevealed compares revealed round data with a fresh derivation from seed.
// A nil eliminations map skips the per-row comparison; the expected indices are
// still reported.
// Layouts longer than fairness.MaxRows cannot come from any seed and are reported
// invalid without deriving their rows.
func VerifyRevealed(seed, commitment string, layout []int, eliminations map[int]int) *models.VerificationReport {
	if len(layout) > fairness.MaxRows {
		return &models.VerificationReport{
			Commitment:      commitment,
			CommitmentValid: fairness.VerifyCommitment(seed, commitment),
			MismatchedRows:  []int{},
			ExpectedLayout:  fairness.DeriveBoard(seed),
		}
	}

	derivedLayout, expected := fairness.Recompute(seed, layout)

	report := &models.VerificationReport{
		Commitment:           commitment,
		CommitmentValid:      fairness.VerifyCommitment(seed, commitment),
		LayoutValid:          slices.Equal(derivedLayout, layout),
		MismatchedRows:       []int{},
		ExpectedLayout:       derivedLayout,
		ExpectedEliminations: expected,
	}

	if eliminations == nil {
		report.OverallValid = report.CommitmentValid && report.LayoutValid
		return report
	}

	report.EliminationMatches = make([]bool, len(layout))
	for row := range layout {
		got, ok := eliminations[row]
		match := ok && got == expected[row]
		report.EliminationMatches[row] = match
		if !match {
			report.MismatchedRows = append(report.MismatchedRows, row)
		}
	}

	extra := false
	for row := range eliminations {
		if row < 0 || row >= len(layout) {
			extra = true
			break
		}
	}

	report.OverallValid = report.CommitmentValid &&
		report.LayoutValid &&
		len(report.MismatchedRows) == 0 &&
		!extra

	return report
}
