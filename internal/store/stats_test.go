// ABOUTME: Tests for the statistics snapshot
// ABOUTME: Covers counts, measured sizes, capacity math, and feature flags

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats_EmptyStore(t *testing.T) {
	m := setupTestMemory(t)

	stats, err := m.Stats(context.Background())
	require.NoError(t, err)

	assert.Zero(t, stats.FrameCount)
	assert.Zero(t, stats.ActiveFrameCount)
	assert.Zero(t, stats.PayloadBytes)
	assert.Zero(t, stats.LexIndexBytes)
	assert.True(t, stats.HasLexIndex)
	assert.True(t, stats.HasTimeIndex)
	assert.False(t, stats.HasVecIndex)
	assert.False(t, stats.HasClipIndex)
	assert.Zero(t, stats.VectorCount)
	assert.Zero(t, stats.OverheadPercent, "no payload means no overhead ratio")
}

func TestStats_CountsAndSizes(t *testing.T) {
	m := setupTestMemory(t)
	ctx := context.Background()

	_, err := m.Put(ctx, []byte("0123456789"))
	require.NoError(t, err)
	doomed, err := m.Put(ctx, []byte("to be deleted"))
	require.NoError(t, err)
	_, err = m.DeleteFrame(ctx, doomed)
	require.NoError(t, err)
	require.NoError(t, m.Commit(ctx))

	stats, err := m.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), stats.FrameCount)
	assert.Equal(t, uint64(1), stats.ActiveFrameCount)
	assert.Equal(t, uint64(10), stats.PayloadBytes, "tombstoned payloads do not count")
	assert.Equal(t, uint64(32), stats.TimeIndexBytes, "16 bytes per frame, tombstones included")
	assert.Greater(t, stats.LexIndexBytes, uint64(0))
	assert.Greater(t, stats.SizeBytes, uint64(0), "after a commit the main file holds the data")
	assert.Greater(t, stats.LogicalBytes, uint64(0))
	assert.Greater(t, stats.OverheadPercent, float64(0))
}

func TestStats_Capacity(t *testing.T) {
	m := setupTestMemory(t, WithCapacity(1<<30))
	ctx := context.Background()

	_, err := m.Put(ctx, []byte("small payload"))
	require.NoError(t, err)
	require.NoError(t, m.Commit(ctx))

	stats, err := m.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, uint64(1<<30), stats.CapacityBytes)
	assert.Greater(t, stats.StorageUtilisationPercent, float64(0))
	assert.Less(t, stats.StorageUtilisationPercent, float64(100))
	assert.Equal(t, stats.CapacityBytes-stats.SizeBytes, stats.RemainingCapacityBytes)
}

func TestStats_NoCapacityConfigured(t *testing.T) {
	m := setupTestMemory(t)

	stats, err := m.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.CapacityBytes)
	assert.Zero(t, stats.StorageUtilisationPercent)
	assert.Zero(t, stats.RemainingCapacityBytes)
}
