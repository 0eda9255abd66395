package datastore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedIsIdempotent(t *testing.T) {
	t.Parallel()
	store := newSeededStore(t)

	before, err := store.LabelMappings(t.Context())
	require.NoError(t, err)

	data, err := DefaultSeedData()
	require.NoError(t, err)
	stats, err := store.Seed(t.Context(), data)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Profiles)
	assert.Equal(t, len(data.Labels), stats.Labels)

	after, err := store.LabelMappings(t.Context())
	require.NoError(t, err)
	assert.Equal(t, before, after, "reseeding must keep ids and order")

	profiles, err := store.NutritionProfiles(t.Context())
	require.NoError(t, err)
	assert.Len(t, profiles, 4)
}

func TestSeedUpdatesExistingRows(t *testing.T) {
	t.Parallel()
	store := newSeededStore(t)

	data, err := ParseSeedData([]byte(`
profiles:
  - food: Pizza
    calories_per_100g: 270
    protein: 12
    carbs: 30
    fat: 11
    serving_g: 160
labels:
  - raw: Hot Dog
    food: hot_dog
`))
	require.NoError(t, err)
	_, err = store.Seed(t.Context(), data)
	require.NoError(t, err)

	p, err := store.NutritionProfile(t.Context(), "pizza")
	require.NoError(t, err)
	assert.Equal(t, 270, p.CaloriesPer100g)
	assert.Equal(t, 160, p.DefaultServingG)

	mappings, err := store.LabelMappings(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "hot_dog", mappings[len(mappings)-1].RawLabel)
}

func TestLabelMappingsInsertionOrder(t *testing.T) {
	t.Parallel()
	store := newSeededStore(t)

	mappings, err := store.LabelMappings(t.Context())
	require.NoError(t, err)
	require.NotEmpty(t, mappings)
	assert.Equal(t, "pizza", mappings[0].RawLabel)
	assert.Equal(t, "hotdog", mappings[1].RawLabel)
	assert.Equal(t, "hot_dog", mappings[1].FoodKey)
	for i := 1; i < len(mappings); i++ {
		assert.Less(t, mappings[i-1].ID, mappings[i].ID)
	}
}

func TestNutritionProfileNotFound(t *testing.T) {
	t.Parallel()
	store := newSeededStore(t)

	p, err := store.NutritionProfile(t.Context(), "banana")
	require.NoError(t, err)
	assert.Equal(t, 89, p.CaloriesPer100g)
	assert.InDelta(t, 1.1, p.ProteinPer100g, 1e-9)

	_, err = store.NutritionProfile(t.Context(), "durian")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestParseSeedDataRejectsIncompleteEntries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{"profile without key", "profiles:\n  - calories_per_100g: 10\n    serving_g: 10\n"},
		{"profile without serving", "profiles:\n  - food: x\n    calories_per_100g: 10\n"},
		{"label without food", "labels:\n  - raw: pizza\n"},
		{"not yaml", "profiles: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseSeedData([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadSeedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("labels:\n  - raw: apple\n    food: apple\n"), 0o600))

	data, err := LoadSeedFile(path)
	require.NoError(t, err)
	require.Len(t, data.Labels, 1)
	assert.Equal(t, "apple", data.Labels[0].Food)

	_, err = LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
