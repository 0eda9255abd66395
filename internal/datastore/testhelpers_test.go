package datastore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nutrisnap/nutrisnap/internal/conf"
)

// newTestStore opens a migrated SQLite store in a temporary directory
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store := &SQLiteStore{Settings: conf.DatabaseSettings{
		Type:   "sqlite",
		SQLite: conf.SQLiteSettings{Path: filepath.Join(t.TempDir(), "test.db")},
	}}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// newSeededStore opens a store loaded with the bundled seed data
func newSeededStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store := newTestStore(t)
	data, err := DefaultSeedData()
	require.NoError(t, err)
	_, err = store.Seed(t.Context(), data)
	require.NoError(t, err)
	return store
}

func sampleInput(food string) ResolutionInput {
	return ResolutionInput{
		FoodKey:      food,
		Confidence:   0.912345,
		Calories:     399,
		Protein:      11.0,
		Carbs:        33.0,
		Fat:          10.0,
		ServingGrams: 150,
		Source:       "model",
	}
}
