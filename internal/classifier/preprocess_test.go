package classifier

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutrisnap/nutrisnap/internal/conf"
)

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPreprocessUnit(t *testing.T) {
	t.Parallel()

	p := NewPreprocessor(8, conf.NormalizationUnit, 0)
	tensor, err := p.Preprocess(solidPNG(t, 40, 20, color.RGBA{R: 255, G: 0, B: 51, A: 255}))
	require.NoError(t, err)
	require.Len(t, tensor, 8*8*3)

	assert.InDelta(t, 1.0, tensor[0], 0.01)
	assert.InDelta(t, 0.0, tensor[1], 0.01)
	assert.InDelta(t, 0.2, tensor[2], 0.01)
}

func TestPreprocessSigned(t *testing.T) {
	t.Parallel()

	p := NewPreprocessor(4, conf.NormalizationSigned, 0)
	tensor, err := p.Preprocess(solidPNG(t, 4, 4, color.RGBA{R: 255, G: 0, B: 0, A: 255}))
	require.NoError(t, err)

	assert.InDelta(t, 1.0, tensor[0], 0.01)
	assert.InDelta(t, -1.0, tensor[1], 0.01)
	for _, v := range tensor {
		assert.GreaterOrEqual(t, v, float32(-1))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestPreprocessRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := NewPreprocessor(0, "", 0).Preprocess([]byte("definitely not an image"))
	assert.Error(t, err)
}

func TestNewPreprocessorDefaults(t *testing.T) {
	t.Parallel()

	p := NewPreprocessor(0, "bogus", 0)
	assert.Equal(t, DefaultInputSize, p.Size())
	assert.Equal(t, conf.NormalizationUnit, p.normalization)
	assert.Equal(t, DefaultMaxPixels, p.maxPixels)
}

// hugeHeaderPNG encodes a grayscale PNG whose header claims w×h pixels. The
// rows are all zero so the file stays small.
func hugeHeaderPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestPreprocessRejectsOversizedDimensions(t *testing.T) {
	t.Parallel()

	data := hugeHeaderPNG(t, 3000, 3000)
	require.Less(t, len(data), 5<<20, "file must pass the upload size ceiling")

	_, err := NewPreprocessor(8, conf.NormalizationUnit, 4_000_000).Preprocess(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestPreprocessAcceptsImageAtPixelLimit(t *testing.T) {
	t.Parallel()

	tensor, err := NewPreprocessor(4, conf.NormalizationUnit, 64*64).Preprocess(solidPNG(t, 64, 64, color.White))
	require.NoError(t, err)
	assert.Len(t, tensor, 4*4*3)
}
