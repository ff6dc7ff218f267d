package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/aurora-forecast-etl/internal/consumer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "https://abc.supabase.co/storage/v1/object/public/geojsons/aurora_forecast.geojson"

func TestStateStore_LoadMissing(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, found, err := s.Load(context.Background(), testKey)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStateStore_SaveAndLoad(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	first := consumer.State{LastFetchedAt: time.Date(2024, time.May, 10, 17, 10, 0, 0, time.UTC), Body: []byte(`{"a":1}`)}
	require.NoError(t, s.Save(ctx, testKey, first))

	second := consumer.State{LastFetchedAt: first.LastFetchedAt.Add(5 * time.Minute), Body: []byte(`{"a":2}`)}
	require.NoError(t, s.Save(ctx, testKey, second))

	got, found, err := s.Load(ctx, testKey)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, second, got)
}

func TestStateStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()
	st := consumer.State{LastFetchedAt: time.Date(2024, time.May, 10, 17, 10, 0, 0, time.UTC), Body: []byte("x")}

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, testKey, st))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, found, err := s.Load(ctx, testKey)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, st, got)
}
