package services

import (
	"context"
	"errors"
	"fmt"

	"deathfun-backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// Ledger receives the balance signals emitted when a round ends. Settlement of the
// amounts on any chain happens elsewhere.
type Ledger interface {
	// RecordDeath zeroes the owner's at-risk balance and counts the round.
	RecordDeath(ctx context.Context, ownerID string) error
	// RecordPayout commits a stake * multiplier payout to the owner's earned total.
	RecordPayout(ctx context.Context, ownerID string, payout float64) error
}

type RedisLedger struct {
	client *redis.Client
}

func NewRedisLedger(redisService *RedisService) *RedisLedger {
	return &RedisLedger{client: redisService.Client()}
}

var recordDeathScript = redis.NewScript(`
	local key = KEYS[1]

	redis.call("HSET", key, "at_risk", "0")
	redis.call("HINCRBY", key, "rounds_played", "1")

	return "OK"
`)

func (l *RedisLedger) RecordDeath(ctx context.Context, ownerID string) error {
	if err := recordDeathScript.Run(ctx, l.client, []string{playerAccountKey(ownerID)}).Err(); err != nil {
		return fmt.Errorf("failed to record death for %s: %w", ownerID, err)
	}
	return nil
}

// ReferralRate is the share of a payout credited to the player's referrer.
const ReferralRate = 0.05

// KEYS[3] is the referrer's account when one was seen; the credit only lands if the
// player's hash still names ARGV[3].
var recordPayoutScript = redis.NewScript(`
	local key = KEYS[1]
	local board = KEYS[2]
	local owner = ARGV[1]
	local payout = ARGV[2]
	local referrer = ARGV[3]
	local reward = ARGV[4]

	local net = payout
	if KEYS[3] and referrer ~= "" and tonumber(reward) > 0
		and redis.call("HGET", key, "referrer") == referrer then
		net = tostring(tonumber(payout) - tonumber(reward))

		local earned = redis.call("HINCRBYFLOAT", KEYS[3], "total_earned", reward)
		redis.call("HINCRBYFLOAT", KEYS[3], "referral_earned", reward)
		redis.call("HINCRBYFLOAT", KEYS[3], "at_risk", reward)
		if tonumber(earned) > 0 then
			redis.call("ZADD", board, earned, referrer)
		end
	end

	local total = redis.call("HINCRBYFLOAT", key, "total_earned", net)
	redis.call("HSET", key, "last_payout", net)
	redis.call("HINCRBY", key, "rounds_played", "1")

	if tonumber(total) > 0 then
		redis.call("ZADD", board, total, owner)
	end

	return total
`)

// RecordPayout credits the payout, less the referrer's share when the owner has one.
func (l *RedisLedger) RecordPayout(ctx context.Context, ownerID string, payout float64) error {
	if payout < 0 {
		return fmt.Errorf("payout must not be negative: %f", payout)
	}

	referrer, err := l.Referrer(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to record payout for %s: %w", ownerID, err)
	}

	keys := []string{playerAccountKey(ownerID), KeyLeaderboard}
	reward := 0.0
	if referrer != "" {
		keys = append(keys, playerAccountKey(referrer))
		reward = payout * ReferralRate
	}

	if err := recordPayoutScript.Run(ctx, l.client, keys, ownerID, payout, referrer, reward).Err(); err != nil {
		return fmt.Errorf("failed to record payout for %s: %w", ownerID, err)
	}
	return nil
}

// RegisterReferrer records who referred ownerID. The first referrer wins; the returned
// flag reports whether this call set it.
func (l *RedisLedger) RegisterReferrer(ctx context.Context, ownerID, referrer string) (*models.PlayerAccount, bool, error) {
	if referrer == "" || referrer == ownerID {
		return nil, false, validationError("referrer must be another owner")
	}

	upstream, err := l.Referrer(ctx, referrer)
	if err != nil {
		return nil, false, err
	}
	if upstream == ownerID {
		return nil, false, validationError("%s was referred by %s", referrer, ownerID)
	}

	set, err := l.client.HSetNX(ctx, playerAccountKey(ownerID), "referrer", referrer).Result()
	if err != nil {
		return nil, false, storeError("register referrer", err)
	}

	account, err := l.Account(ctx, ownerID)
	if err != nil {
		return nil, false, err
	}
	return account, set, nil
}

// Referrer returns the owner's referrer, or "" when there is none.
func (l *RedisLedger) Referrer(ctx context.Context, ownerID string) (string, error) {
	referrer, err := l.client.HGet(ctx, playerAccountKey(ownerID), "referrer").Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", storeError("referrer", err)
	}
	return referrer, nil
}

func (l *RedisLedger) Deposit(ctx context.Context, ownerID string, amount float64) (*models.PlayerAccount, error) {
	if amount <= 0 {
		return nil, validationError("deposit amount must be positive")
	}

	if err := l.client.HIncrByFloat(ctx, playerAccountKey(ownerID), "at_risk", amount).Err(); err != nil {
		return nil, storeError("deposit", err)
	}

	return l.Account(ctx, ownerID)
}

func (l *RedisLedger) Account(ctx context.Context, ownerID string) (*models.PlayerAccount, error) {
	account := &models.PlayerAccount{OwnerID: ownerID}

	if err := l.client.HGetAll(ctx, playerAccountKey(ownerID)).Scan(account); err != nil {
		return nil, storeError("account", err)
	}

	return account, nil
}

func (l *RedisLedger) Leaderboard(ctx context.Context, limit int64) ([]models.LeaderboardEntry, error) {
	if limit <= 0 || limit > LeaderboardSize {
		limit = LeaderboardSize
	}

	top, err := l.client.ZRevRangeWithScores(ctx, KeyLeaderboard, 0, limit-1).Result()
	if err != nil {
		return nil, storeError("leaderboard", err)
	}

	pipe := l.client.Pipeline()
	rounds := make([]*redis.StringCmd, len(top))
	for i, z := range top {
		rounds[i] = pipe.HGet(ctx, playerAccountKey(z.Member.(string)), "rounds_played")
	}
	if len(top) > 0 {
		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
			return nil, storeError("leaderboard", err)
		}
	}

	entries := make([]models.LeaderboardEntry, 0, len(top))
	for i, z := range top {
		if z.Score <= 0 {
			continue
		}

		played, _ := rounds[i].Int64()
		entries = append(entries, models.LeaderboardEntry{
			Rank:         len(entries) + 1,
			OwnerID:      z.Member.(string),
			TotalEarned:  z.Score,
			RoundsPlayed: played,
		})
	}

	return entries, nil
}
