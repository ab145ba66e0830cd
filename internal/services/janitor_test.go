package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryJanitorRunOnce(t *testing.T) {
	rs, _ := setupTestRedis(t)
	ctx := context.Background()

	janitor, err := NewHistoryJanitor(rs, "@every 1h", zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, rs.Set(ctx, SessionKey("kept"), []byte("{}"), time.Hour))
	require.NoError(t, rs.RecordFinished(ctx, "0xabc", "kept", time.Now()))
	require.NoError(t, rs.RecordFinished(ctx, "0xabc", "gone", time.Now()))

	removed, err := janitor.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	janitor.Start()
	janitor.Stop()
}

func TestHistoryJanitorInvalidSchedule(t *testing.T) {
	rs, _ := setupTestRedis(t)

	_, err := NewHistoryJanitor(rs, "not a schedule", zerolog.Nop())
	assert.Error(t, err)
}
