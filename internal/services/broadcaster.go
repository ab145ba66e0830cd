package services

import (
	"context"

	"deathfun-backend/internal/models"
)

// Broadcaster pushes committed session state to live subscribers. The state passed in
// has already been projected, so it only carries secrets for ended rounds.
type Broadcaster interface {
	BroadcastSessionUpdate(state *models.PublicSession)
}

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastSessionUpdate(*models.PublicSession) {}

type noopLedger struct{}

func (noopLedger) RecordDeath(context.Context, string) error { return nil }
func (noopLedger) RecordPayout(context.Context, string, float64) error { return nil }
