package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/incentive-engine/model"
)

func TestUpsertPublicRows_RetriesThenSucceeds(t *testing.T) {
	// GIVEN: A store whose first attempt for Asha fails
	s := New()
	m := model.MustParseMonth("2025-11")
	s.FailWrite = func(table string, k model.RowKey, attempt int) error {
		if k.RMName == "Asha" && attempt == 1 {
			return errors.New("transient")
		}
		return nil
	}

	// WHEN: Writing two rows
	res, err := s.UpsertPublicRows(context.Background(), []model.PublicLeaderboardRow{
		{RMName: "Asha", PeriodMonth: m},
		{RMName: "Ravi", PeriodMonth: m},
	})

	// THEN: Both are written after the retry
	require.NoError(t, err)
	assert.Equal(t, 2, res.Written)
	assert.Empty(t, res.Failures)
}

func TestUpsertIncentiveRows_PersistentFailureIsIsolated(t *testing.T) {
	// GIVEN: Ravi's row always fails
	s := New()
	m := model.MustParseMonth("2025-11")
	s.FailWrite = func(table string, k model.RowKey, attempt int) error {
		if table == "rupee_incentives" && k.RMName == "Ravi" {
			return errors.New("disk full")
		}
		return nil
	}

	// WHEN: Writing three rows
	res, err := s.UpsertIncentiveRows(context.Background(), []model.RupeeIncentiveRow{
		{RMName: "Asha", PeriodMonth: m},
		{RMName: "Ravi", PeriodMonth: m},
		{RMName: "Zoya", PeriodMonth: m},
	})
	require.NoError(t, err)

	// THEN: The others are written and Ravi is reported after every attempt
	assert.Equal(t, 2, res.Written)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "Ravi", res.Failures[0].RMName)
	assert.Equal(t, 3, res.Failures[0].Attempts)

	rows, err := s.ListIncentiveRows(context.Background(), m)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Asha", rows[0].RMName)
	assert.Equal(t, "Zoya", rows[1].RMName)

	assert.ErrorIs(t, res.Err("rupee_incentives"), model.ErrPartialWrite)
}

func TestUpsert_CancelledContextStopsBatch(t *testing.T) {
	s := New()
	m := model.MustParseMonth("2025-11")
	ctx, cancel := context.WithCancel(context.Background())
	s.FailWrite = func(string, model.RowKey, int) error {
		cancel()
		return errors.New("interrupted")
	}

	res, err := s.UpsertPublicRows(ctx, []model.PublicLeaderboardRow{
		{RMName: "Asha", PeriodMonth: m},
		{RMName: "Ravi", PeriodMonth: m},
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, res.Written)
}

func TestReset_ClearsDataKeepsConfig(t *testing.T) {
	s := New()
	ctx := context.Background()
	m := model.MustParseMonth("2025-11")
	require.NoError(t, s.SaveEmployee(ctx, model.Employee{ID: "E1"}))
	require.NoError(t, s.PutConfigDoc(ctx, "Leaderboard_SIP", []byte(`{}`)))
	_, err := s.UpsertPublicRows(ctx, []model.PublicLeaderboardRow{{RMName: "Asha", PeriodMonth: m}})
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx))

	emps, _ := s.ListEmployees(ctx)
	assert.Empty(t, emps)
	raw, _ := s.GetConfigDoc(ctx, "Leaderboard_SIP")
	assert.NotNil(t, raw, "configuration survives a reset")
	row, _ := s.GetPublicRow(ctx, "Asha", m)
	assert.Nil(t, row)
}
