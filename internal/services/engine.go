package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"deathfun-backend/internal/fairness"
	"deathfun-backend/internal/metrics"
	"deathfun-backend/internal/models"

	"github.com/rs/zerolog"
)

const DefaultCASRetries = 5

// SeedSource supplies fresh seeds for new sessions.
type SeedSource interface {
	SecretSeed() (string, error)
	ClientSeed() (string, error)
}

type cryptoSeeds struct{}

func (cryptoSeeds) SecretSeed() (string, error) { return fairness.GenerateSecretSeed() }
func (cryptoSeeds) ClientSeed() (string, error) { return fairness.GenerateClientSeed() }

type EngineOptions struct {
	TTL         time.Duration
	MaxRetries  int
	Ledger      Ledger
	Broadcaster Broadcaster
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
	Seeds       SeedSource
	Clock       func() time.Time
}

// GameEngine owns the session lifecycle: created, playing, ended. Every transition is
// a read, a validation against the decoded record and a compare-and-swap of the whole
// record, retried when a concurrent writer got there first.
type GameEngine struct {
	store       SessionStore
	owners      OwnerIndex
	ledger      Ledger
	broadcaster Broadcaster
	metrics     *metrics.Metrics
	log         zerolog.Logger
	seeds       SeedSource
	now         func() time.Time
	ttl         time.Duration
	maxRetries  int
}

func NewGameEngine(store SessionStore, owners OwnerIndex, opts EngineOptions) *GameEngine {
	ge := &GameEngine{
		store:       store,
		owners:      owners,
		ledger:      opts.Ledger,
		broadcaster: opts.Broadcaster,
		metrics:     opts.Metrics,
		log:         opts.Logger,
		seeds:       opts.Seeds,
		now:         opts.Clock,
		ttl:         opts.TTL,
		maxRetries:  opts.MaxRetries,
	}

	if ge.ledger == nil {
		ge.ledger = noopLedger{}
	}
	if ge.broadcaster == nil {
		ge.broadcaster = noopBroadcaster{}
	}
	if ge.metrics == nil {
		ge.metrics = metrics.NewMetrics()
	}
	if ge.seeds == nil {
		ge.seeds = cryptoSeeds{}
	}
	if ge.now == nil {
		ge.now = time.Now
	}
	if ge.ttl <= 0 {
		ge.ttl = TTLGameSession
	}
	if ge.maxRetries <= 0 {
		ge.maxRetries = DefaultCASRetries
	}

	return ge
}

// SetBroadcaster swaps the live update sink, used when the websocket hub is built later.
func (ge *GameEngine) SetBroadcaster(b Broadcaster) {
	if b == nil {
		b = noopBroadcaster{}
	}
	ge.broadcaster = b
}

func (ge *GameEngine) CreateSession(ctx context.Context, ownerID string, stake float64) (*models.SessionCreated, error) {
	req := models.CreateSessionRequest{OwnerID: ownerID, Stake: stake}
	if err := req.Validate(); err != nil {
		ge.reject("create", ErrValidation)
		return nil, validationError("%v", err)
	}

	secretSeed, err := ge.seeds.SecretSeed()
	if err != nil {
		ge.log.Error().Err(err).Str("owner_id", req.OwnerID).Msg("secure random source failed, session not created")
		return nil, fmt.Errorf("%w: secret seed: %v", ErrRandomSource, err)
	}
	clientSeed, err := ge.seeds.ClientSeed()
	if err != nil {
		ge.log.Error().Err(err).Str("owner_id", req.OwnerID).Msg("secure random source failed, session not created")
		return nil, fmt.Errorf("%w: client seed: %v", ErrRandomSource, err)
	}

	layout := fairness.DeriveBoard(secretSeed)
	now := ge.now().UTC()

	session := &models.GameSession{
		ID:             models.NewSessionID(),
		OwnerID:        req.OwnerID,
		Stake:          req.Stake,
		SecretSeed:     secretSeed,
		Commitment:     fairness.Commit(secretSeed),
		ClientSeed:     clientSeed,
		BoardLayout:    layout,
		EliminationMap: fairness.PrecomputeAll(secretSeed, layout),
		CursorRow:      0,
		ClickedTiles:   map[int]int{},
		Playing:        true,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(ge.ttl),
	}

	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	start := time.Now()
	err = ge.store.Set(ctx, SessionKey(session.ID), data, ge.ttl)
	ge.observe("set", start, err)
	if err != nil {
		return nil, err
	}

	if err := ge.owners.LinkOwnerSession(ctx, session.OwnerID, session.ID, ge.ttl); err != nil {
		ge.log.Warn().Err(err).Str("session_id", session.ID).Msg("failed to link owner to session")
	}

	ge.metrics.SessionsCreatedTotal.Inc()
	ge.log.Info().
		Str("session_id", session.ID).
		Str("owner_id", session.OwnerID).
		Int("rows", session.RowCount()).
		Str("commitment", session.Commitment).
		Msg("session created")

	return &models.SessionCreated{
		SessionID:   session.ID,
		Commitment:  session.Commitment,
		ClientSeed:  session.ClientSeed,
		BoardLayout: append([]int(nil), layout...),
		RowCount:    len(layout),
		Multipliers: fairness.RowMultipliers(layout),
		CreatedAt:   session.CreatedAt,
		ExpiresAt:   session.ExpiresAt,
	}, nil
}

func (ge *GameEngine) RecordClick(ctx context.Context, sessionID string, rowIndex, tileIndex int) (*models.ClickResult, error) {
	if rowIndex < 0 || tileIndex < 0 {
		ge.reject("click", ErrValidation)
		return nil, validationError("row and tile indices must not be negative")
	}

	var result *models.ClickResult

	session, err := ge.update(ctx, sessionID, "click", func(s *models.GameSession) error {
		if s.Ended {
			return &TransitionError{SessionID: s.ID, Reason: ReasonSessionEnded, ExpectedRow: s.CursorRow, GotRow: rowIndex, Ended: true}
		}
		if rowIndex != s.CursorRow {
			return &TransitionError{SessionID: s.ID, Reason: ReasonWrongRow, ExpectedRow: s.CursorRow, GotRow: rowIndex}
		}
		// The cursor advances with every click, so this only trips on a damaged record.
		if _, clicked := s.ClickedTiles[rowIndex]; clicked {
			return &TransitionError{SessionID: s.ID, Reason: ReasonAlreadyClicked, ExpectedRow: s.CursorRow, GotRow: rowIndex}
		}
		if tiles := s.BoardLayout[rowIndex]; tileIndex >= tiles {
			return validationError("tile %d out of range for row %d with %d tiles", tileIndex, rowIndex, tiles)
		}

		if s.ClickedTiles == nil {
			s.ClickedTiles = map[int]int{}
		}
		s.ClickedTiles[rowIndex] = tileIndex

		result = &models.ClickResult{SessionID: s.ID, RowIndex: rowIndex, TileIndex: tileIndex}

		if tileIndex == s.EliminationMap[rowIndex] {
			ge.end(s, models.EndReasonDeath)
			result.IsDeath = true
			result.Ended = true
			result.CursorRow = s.CursorRow
			return nil
		}

		s.CursorRow++
		result.CursorAdvanced = true
		result.CursorRow = s.CursorRow
		result.Multiplier = s.CurrentMultiplier()

		if s.CursorRow >= s.RowCount() {
			ge.end(s, models.EndReasonCleared)
			result.Ended = true
			result.Payout = models.CalculatePayout(s.Stake, result.Multiplier)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	outcome := "safe"
	if result.IsDeath {
		outcome = "death"
	}
	ge.metrics.ClicksTotal.WithLabelValues(outcome).Inc()

	ge.log.Debug().
		Str("session_id", session.ID).
		Int("row", rowIndex).
		Bool("death", result.IsDeath).
		Int("cursor_row", session.CursorRow).
		Msg("click recorded")

	switch {
	case result.IsDeath:
		ge.afterEnd(ctx, session, 0)
	case result.Ended:
		ge.afterEnd(ctx, session, result.Payout)
	default:
		ge.broadcaster.BroadcastSessionUpdate(session.PublicState())
	}

	return result, nil
}

// EndVoluntarily cashes out a round that has at least one cleared row.
func (ge *GameEngine) EndVoluntarily(ctx context.Context, sessionID string) (*models.CashoutResult, error) {
	session, err := ge.update(ctx, sessionID, "cashout", func(s *models.GameSession) error {
		if s.Ended || !s.Playing {
			return &TransitionError{SessionID: s.ID, Reason: ReasonSessionEnded, ExpectedRow: s.CursorRow, Ended: true}
		}

		last := s.CursorRow - 1
		if last < 0 {
			return &TransitionError{SessionID: s.ID, Reason: ReasonNothingToCash, ExpectedRow: s.CursorRow}
		}
		if tile, ok := s.ClickedTiles[last]; !ok || tile == s.EliminationMap[last] {
			return &TransitionError{SessionID: s.ID, Reason: ReasonNothingToCash, ExpectedRow: s.CursorRow}
		}

		ge.end(s, models.EndReasonCashout)
		return nil
	})
	if err != nil {
		return nil, err
	}

	multiplier := session.CurrentMultiplier()
	result := &models.CashoutResult{
		SessionID:   session.ID,
		RowsCleared: session.RowsCleared(),
		Multiplier:  multiplier,
		Payout:      models.CalculatePayout(session.Stake, multiplier),
	}

	ge.afterEnd(ctx, session, result.Payout)

	return result, nil
}

func (ge *GameEngine) GetPublicState(ctx context.Context, sessionID string) (*models.PublicSession, error) {
	session, _, err := ge.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session.PublicState(), nil
}

// Reveal returns the secret seed of an ended round, or only the commitment otherwise.
func (ge *GameEngine) Reveal(ctx context.Context, sessionID string) (*models.RevealResult, error) {
	session, _, err := ge.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result := &models.RevealResult{
		SessionID:  session.ID,
		Revealed:   session.Ended,
		Status:     "not_yet",
		Commitment: session.Commitment,
	}
	if session.Ended {
		result.Status = "revealed"
		result.SecretSeed = session.SecretSeed
	}

	return result, nil
}

// Validity reports whether a session exists. A missing session is a valid answer, not an error.
func (ge *GameEngine) Validity(ctx context.Context, sessionID string) (*models.SessionValidity, error) {
	session, _, err := ge.load(ctx, sessionID)
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
		return &models.SessionValidity{SessionID: sessionID, Valid: false}, nil
	}
	if err != nil {
		return nil, err
	}

	return &models.SessionValidity{
		SessionID: session.ID,
		Valid:     true,
		Playing:   session.Playing,
		Ended:     session.Ended,
	}, nil
}

// Teardown removes a session record ahead of its TTL.
func (ge *GameEngine) Teardown(ctx context.Context, sessionID string) error {
	session, _, err := ge.load(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := ge.store.Delete(ctx, SessionKey(sessionID)); err != nil {
		return err
	}
	if err := ge.owners.UnlinkOwnerSession(ctx, session.OwnerID, sessionID); err != nil {
		ge.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to unlink owner")
	}

	ge.log.Info().Str("session_id", sessionID).Msg("session torn down")
	return nil
}

func (ge *GameEngine) LastSession(ctx context.Context, ownerID string) (*models.PublicSession, error) {
	ownerID = models.NormalizeOwnerID(ownerID)
	if err := models.ValidateOwnerID(ownerID); err != nil {
		return nil, validationError("%v", err)
	}

	id, err := ge.owners.LastSessionID(ctx, ownerID)
	if errors.Is(err, ErrStoreMiss) {
		return nil, fmt.Errorf("%w: no session for owner %s", ErrNotFound, ownerID)
	}
	if err != nil {
		return nil, err
	}

	return ge.GetPublicState(ctx, id)
}

// History lists the owner's finished sessions, newest first. Expired records are skipped.
func (ge *GameEngine) History(ctx context.Context, ownerID string, limit int64) ([]*models.PublicSession, error) {
	ownerID = models.NormalizeOwnerID(ownerID)
	if err := models.ValidateOwnerID(ownerID); err != nil {
		return nil, validationError("%v", err)
	}

	ids, err := ge.owners.SessionHistory(ctx, ownerID, limit)
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = SessionKey(id)
	}

	values, err := ge.store.GetMany(ctx, keys)
	if err != nil {
		return nil, err
	}

	sessions := make([]*models.PublicSession, 0, len(values))
	for i, raw := range values {
		if raw == nil {
			continue
		}
		session, err := decodeSession(raw)
		if err != nil {
			ge.log.Warn().Err(err).Str("session_id", ids[i]).Msg("skipping undecodable session")
			continue
		}
		sessions = append(sessions, session.PublicState())
	}

	return sessions, nil
}

func (ge *GameEngine) load(ctx context.Context, sessionID string) (*models.GameSession, []byte, error) {
	return loadSession(ctx, ge.store, sessionID)
}

// update applies fn to the freshest record and swaps it in atomically. fn is re-run on
// every retry; if it returns an error nothing is written.
func (ge *GameEngine) update(ctx context.Context, sessionID, op string, fn func(*models.GameSession) error) (*models.GameSession, error) {
	key := SessionKey(sessionID)

	for attempt := 0; attempt < ge.maxRetries; attempt++ {
		session, raw, err := ge.load(ctx, sessionID)
		if err != nil {
			ge.reject(op, err)
			return nil, err
		}

		if err := fn(session); err != nil {
			ge.reject(op, err)
			return nil, err
		}
		session.UpdatedAt = ge.now().UTC()

		next, err := json.Marshal(session)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal session: %w", err)
		}

		start := time.Now()
		swapped, err := ge.store.CompareAndSwap(ctx, key, raw, next)
		ge.observe("compare_and_swap", start, err)
		if errors.Is(err, ErrStoreMiss) {
			ge.reject(op, ErrNotFound)
			return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
		}
		if err != nil {
			return nil, err
		}
		if swapped {
			return session, nil
		}

		ge.metrics.CASConflictsTotal.Inc()
		ge.log.Debug().Str("session_id", sessionID).Int("attempt", attempt+1).Msg("session changed concurrently, retrying")
	}

	ge.reject(op, ErrConflict)
	return nil, fmt.Errorf("%w: session %s after %d attempts", ErrConflict, sessionID, ge.maxRetries)
}

func (ge *GameEngine) end(s *models.GameSession, reason models.EndReason) {
	endedAt := ge.now().UTC()
	s.Playing = false
	s.Ended = true
	s.Died = reason == models.EndReasonDeath
	s.EndReason = reason
	s.EndedAt = &endedAt
}

// afterEnd emits the ledger signal and bookkeeping for a committed end. Failures are
// logged; the session record is already final.
func (ge *GameEngine) afterEnd(ctx context.Context, session *models.GameSession, payout float64) {
	ge.metrics.SessionsEndedTotal.WithLabelValues(string(session.EndReason)).Inc()

	var err error
	if session.Died {
		err = ge.ledger.RecordDeath(ctx, session.OwnerID)
	} else {
		err = ge.ledger.RecordPayout(ctx, session.OwnerID, payout)
	}
	if err != nil {
		ge.log.Error().Err(err).Str("session_id", session.ID).Str("owner_id", session.OwnerID).Msg("ledger signal failed")
	}

	if err := ge.owners.UnlinkOwnerSession(ctx, session.OwnerID, session.ID); err != nil {
		ge.log.Warn().Err(err).Str("session_id", session.ID).Msg("failed to unlink owner")
	}
	if err := ge.owners.RecordFinished(ctx, session.OwnerID, session.ID, ge.now()); err != nil {
		ge.log.Warn().Err(err).Str("session_id", session.ID).Msg("failed to record session history")
	}

	ge.log.Info().
		Str("session_id", session.ID).
		Str("owner_id", session.OwnerID).
		Str("reason", string(session.EndReason)).
		Int("rows_cleared", session.RowsCleared()).
		Float64("payout", payout).
		Msg("session ended")

	ge.broadcaster.BroadcastSessionUpdate(session.PublicState())
}

func (ge *GameEngine) reject(op string, err error) {
	kind := "internal"
	switch {
	case errors.Is(err, ErrValidation):
		kind = "validation"
	case errors.Is(err, ErrNotFound):
		kind = "not_found"
	case errors.Is(err, ErrInvalidStateTransition):
		kind = "invalid_transition"
	case errors.Is(err, ErrStoreUnavailable):
		kind = "store_unavailable"
	case errors.Is(err, ErrConflict):
		kind = "conflict"
	}
	ge.metrics.RejectionsTotal.WithLabelValues(op, kind).Inc()
}

func (ge *GameEngine) observe(op string, start time.Time, err error) {
	ge.metrics.StoreOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil && errors.Is(err, ErrStoreUnavailable) {
		ge.metrics.StoreErrorsTotal.WithLabelValues(op).Inc()
	}
}

func loadSession(ctx context.Context, store SessionStore, sessionID string) (*models.GameSession, []byte, error) {
	if !models.ValidSessionID(sessionID) {
		return nil, nil, validationError("malformed session id %q", sessionID)
	}

	raw, err := store.Get(ctx, SessionKey(sessionID))
	if errors.Is(err, ErrStoreMiss) {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, nil, err
	}

	session, err := decodeSession(raw)
	if err != nil {
		return nil, nil, err
	}
	return session, raw, nil
}

func decodeSession(raw []byte) (*models.GameSession, error) {
	var session models.GameSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if session.ClickedTiles == nil {
		session.ClickedTiles = map[int]int{}
	}
	return &session, nil
}
