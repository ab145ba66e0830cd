package services

import (
	"fmt"
	"time"
)

const (
	KeyGameSession    = "game:session:%s"
	KeyOwnerSession   = "game:%s:sessionId"
	KeyOwnerHistory   = "player:%s:sessions"
	KeyPlayerAccount  = "player:%s:account"
	KeyLeaderboard    = "leaderboard:earned"
	KeyRateLimit      = "ratelimit:%s:%s"
	KeyHistoryPattern = "player:*:sessions"

	TTLGameSession = 24 * time.Hour

	MaxHistoryEntries = 100
	LeaderboardSize   = 100
)

func SessionKey(sessionID string) string {
	return fmt.Sprintf(KeyGameSession, sessionID)
}

func ownerSessionKey(ownerID string) string {
	return fmt.Sprintf(KeyOwnerSession, ownerID)
}

func ownerHistoryKey(ownerID string) string {
	return fmt.Sprintf(KeyOwnerHistory, ownerID)
}

func playerAccountKey(ownerID string) string {
	return fmt.Sprintf(KeyPlayerAccount, ownerID)
}
