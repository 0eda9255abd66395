package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryNewestFirst(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	for _, food := range []string{"pizza", "banana", "salad"} {
		_, _, err := store.RecordResolution(t.Context(), UploadMeta{FileName: food + ".jpg"}, sampleInput(food))
		require.NoError(t, err)
	}

	entries, err := store.History(t.Context(), HistoryQuery{Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "salad", entries[0].Resolution.FoodKey)
	assert.Equal(t, "pizza", entries[2].Resolution.FoodKey)
	for _, e := range entries {
		assert.NotZero(t, e.Upload.ID, "resolution must join a non-null upload")
		assert.Equal(t, e.Resolution.UploadID, e.Upload.ID)
		assert.Equal(t, e.Resolution.FoodKey+".jpg", e.Upload.FileName)
		assert.Len(t, e.Upload.PublicID, 36)
	}
}

func TestHistoryLimitAndUserFilter(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	_, _, err := store.RecordResolution(t.Context(), UploadMeta{FileName: "a.jpg", UserID: "alice"}, sampleInput("pizza"))
	require.NoError(t, err)
	_, _, err = store.RecordResolution(t.Context(), UploadMeta{FileName: "b.jpg", UserID: "bob"}, sampleInput("banana"))
	require.NoError(t, err)
	_, _, err = store.RecordResolution(t.Context(), UploadMeta{FileName: "c.jpg"}, sampleInput("salad"))
	require.NoError(t, err)

	entries, err := store.History(t.Context(), HistoryQuery{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = store.History(t.Context(), HistoryQuery{Limit: 10, UserID: "alice"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.jpg", entries[0].Upload.FileName)
	require.NotNil(t, entries[0].Upload.UserID)
	assert.Equal(t, "alice", *entries[0].Upload.UserID)

	entries, err = store.History(t.Context(), HistoryQuery{Limit: 0})
	require.NoError(t, err)
	assert.Empty(t, entries)
}
