package analyze

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutrisnap/nutrisnap/internal/api"
	"github.com/nutrisnap/nutrisnap/internal/conf"
	"github.com/nutrisnap/nutrisnap/internal/imageguard"
)

var jpegHeader = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()

	s := &conf.Settings{}
	s.Image.MaxBytes = 1 << 20
	s.Image.AllowedTypes = []string{"image/jpeg", "image/png", "image/webp"}
	s.Resolver.DefaultFood = conf.DefaultFoodKey
	s.Resolver.HeuristicConfidence = 0.85
	s.Resolver.DefaultConfidence = 0.80
	s.Database.Type = "sqlite"
	s.Database.SQLite.Path = filepath.Join(t.TempDir(), "cli.db")
	s.Database.SeedOnStart = true
	s.Storage.Type = "none"
	return s
}

func writeImage(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestRunPrintsAnalysis(t *testing.T) {
	path := writeImage(t, "my_banana.jpg", jpegHeader)

	var out bytes.Buffer
	require.NoError(t, Run(t.Context(), testSettings(t), nil, path, "u1", &out))

	var resp api.AnalyzeResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "banana", resp.Food)
	assert.Equal(t, 105, resp.Calories)
	assert.NotZero(t, resp.RecordID)
}

func TestRunSniffsContentTypeWithoutExtension(t *testing.T) {
	path := writeImage(t, "snapshot", jpegHeader)

	var out bytes.Buffer
	require.NoError(t, Run(t.Context(), testSettings(t), nil, path, "", &out))

	var resp api.AnalyzeResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, conf.DefaultFoodKey, resp.Food)
}

func TestRunRejectsUnsupportedImage(t *testing.T) {
	path := writeImage(t, "dinner.gif", []byte("GIF89a"))

	err := Run(t.Context(), testSettings(t), nil, path, "", &bytes.Buffer{})
	require.Error(t, err)
	assert.ErrorIs(t, err, imageguard.ErrUnsupportedMediaType)
}

func TestRunMissingFile(t *testing.T) {
	err := Run(t.Context(), testSettings(t), nil, filepath.Join(t.TempDir(), "nope.jpg"), "", &bytes.Buffer{})
	require.Error(t, err)
}
