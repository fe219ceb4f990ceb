package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/incentive-engine/model"
)

func TestScheduler_RunsImmediatelyOnStart(t *testing.T) {
	// GIVEN: A scheduler with a long interval
	fx := newFixture(t)
	s := NewScheduler(fx.runner, func() (model.Month, error) { return nov2025, nil }, nil)
	s.Interval = time.Hour

	// WHEN: Started and stopped
	s.Start()
	s.Stop()

	// THEN: Exactly one run of the configured range happened
	runs := runsByMonth(t, fx.store)
	require.Len(t, runs, 2)
	assert.Equal(t, TriggerScheduled, runs["2025-11"].Trigger)
	last, err := s.LastRun()
	assert.NoError(t, err)
	assert.False(t, last.IsZero())
	assert.Equal(t, last.Add(time.Hour), s.NextRunTime())
}

func TestScheduler_DisabledDoesNothing(t *testing.T) {
	fx := newFixture(t)
	s := NewScheduler(fx.runner, nil, nil)
	s.Enabled = false

	s.Start()
	s.Stop()

	runs, _ := fx.store.ListRuns(context.Background(), 0)
	assert.Empty(t, runs)
}

func TestScheduler_AnchorErrorIsRecorded(t *testing.T) {
	fx := newFixture(t)
	s := NewScheduler(fx.runner, func() (model.Month, error) {
		return model.Month{}, model.ErrInvalidMonth
	}, nil)

	_, err := s.RunNow(context.Background())

	assert.True(t, errors.Is(err, model.ErrInvalidMonth))
	_, last := s.LastRun()
	assert.ErrorIs(t, last, model.ErrInvalidMonth)
}
