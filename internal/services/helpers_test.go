package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"deathfun-backend/internal/metrics"
	"deathfun-backend/internal/models"
)

var goldenSeed = strings.Repeat("00", 31) + "01"

// golden board for goldenSeed
var (
	goldenLayout       = []int{2, 4, 5, 3, 2, 2, 4, 5, 6, 5, 6, 3, 2, 7}
	goldenEliminations = []int{1, 3, 3, 2, 0, 0, 3, 0, 5, 3, 2, 2, 1, 4}
)

func setupTestRedis(t *testing.T) (*RedisService, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisServiceFromClient(client), mr
}

type fixedSeeds struct {
	secret string
	client string
	err    error
}

func (f fixedSeeds) SecretSeed() (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.secret, nil
}

func (f fixedSeeds) ClientSeed() (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.client, nil
}

type ledgerCall struct {
	OwnerID string
	Death   bool
	Payout  float64
}

type recordingLedger struct {
	mu    sync.Mutex
	calls []ledgerCall
	err   error
}

func (l *recordingLedger) RecordDeath(_ context.Context, ownerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, ledgerCall{OwnerID: ownerID, Death: true})
	return l.err
}

func (l *recordingLedger) RecordPayout(_ context.Context, ownerID string, payout float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, ledgerCall{OwnerID: ownerID, Payout: payout})
	return l.err
}

func (l *recordingLedger) Calls() []ledgerCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ledgerCall(nil), l.calls...)
}

type recordingBroadcaster struct {
	mu      sync.Mutex
	updates []*models.PublicSession
}

func (b *recordingBroadcaster) BroadcastSessionUpdate(state *models.PublicSession) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updates = append(b.updates, state)
}

func (b *recordingBroadcaster) Updates() []*models.PublicSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*models.PublicSession(nil), b.updates...)
}

type testEngine struct {
	*GameEngine
	redis       *RedisService
	mr          *miniredis.Miniredis
	ledger      *recordingLedger
	broadcaster *recordingBroadcaster
	metrics     *metrics.Metrics
}

func newTestEngine(t *testing.T, seeds SeedSource) *testEngine {
	t.Helper()

	rs, mr := setupTestRedis(t)
	ledger := &recordingLedger{}
	broadcaster := &recordingBroadcaster{}
	m := metrics.NewMetrics()

	if seeds == nil {
		seeds = fixedSeeds{secret: goldenSeed, client: "0123456789abcdef0123456789abcdef"}
	}

	engine := NewGameEngine(rs, rs, EngineOptions{
		TTL:         24 * time.Hour,
		MaxRetries:  5,
		Ledger:      ledger,
		Broadcaster: broadcaster,
		Metrics:     m,
		Logger:      zerolog.Nop(),
		Seeds:       seeds,
	})

	return &testEngine{
		GameEngine:  engine,
		redis:       rs,
		mr:          mr,
		ledger:      ledger,
		broadcaster: broadcaster,
		metrics:     m,
	}
}

// safeTile picks a tile that is not the elimination tile of row.
func safeTile(row int) int {
	if goldenEliminations[row] == 0 {
		return 1
	}
	return 0
}

var errEntropy = errors.New("entropy pool closed")
