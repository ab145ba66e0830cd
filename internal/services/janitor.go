package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// HistoryJanitor periodically drops owner-history entries whose session record has
// expired. Session records themselves expire through the store TTL.
type HistoryJanitor struct {
	redis   *RedisService
	cron    *cron.Cron
	log     zerolog.Logger
	timeout time.Duration
}

func NewHistoryJanitor(redisService *RedisService, schedule string, logger zerolog.Logger) (*HistoryJanitor, error) {
	j := &HistoryJanitor{
		redis:   redisService,
		cron:    cron.New(),
		log:     logger,
		timeout: time.Minute,
	}

	if _, err := j.cron.AddFunc(schedule, j.run); err != nil {
		return nil, fmt.Errorf("invalid janitor schedule %q: %w", schedule, err)
	}

	return j, nil
}

func (j *HistoryJanitor) Start() {
	j.cron.Start()
	j.log.Info().Msg("history janitor started")
}

// Stop waits for a running prune to finish.
func (j *HistoryJanitor) Stop() {
	<-j.cron.Stop().Done()
	j.log.Info().Msg("history janitor stopped")
}

func (j *HistoryJanitor) RunOnce(ctx context.Context) (int, error) {
	return j.redis.PruneExpiredHistory(ctx)
}

func (j *HistoryJanitor) run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	removed, err := j.RunOnce(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("failed to prune session history")
		return
	}
	if removed > 0 {
		j.log.Info().Int("removed", removed).Msg("pruned expired session history")
	}
}
