package classifier

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/nutrisnap/nutrisnap/internal/conf"
	"github.com/nutrisnap/nutrisnap/internal/errors"
)

// ErrImageTooLarge is returned when the image header declares more pixels
// than the preprocessor accepts
var ErrImageTooLarge = errors.Sentinel(errors.CategoryImageDecode, "image dimensions exceed limit")

const (
	// DefaultInputSize is the square edge most ImageNet classifiers expect
	DefaultInputSize = 224
	// DefaultMaxPixels bounds the decoded image area
	DefaultMaxPixels = 40_000_000
)

// Preprocessor decodes an image and produces an NHWC float32 RGB tensor
type Preprocessor struct {
	size          int
	normalization string
	maxPixels     int
}

// NewPreprocessor returns a preprocessor for a size×size input. Normalization
// is conf.NormalizationUnit for [0,1] or conf.NormalizationSigned for [-1,1].
// Images whose header declares more than maxPixels pixels are rejected before
// decoding; zero selects DefaultMaxPixels.
func NewPreprocessor(size int, normalization string, maxPixels int) *Preprocessor {
	if size <= 0 {
		size = DefaultInputSize
	}
	if normalization != conf.NormalizationSigned {
		normalization = conf.NormalizationUnit
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Preprocessor{size: size, normalization: normalization, maxPixels: maxPixels}
}

// Size returns the square input edge
func (p *Preprocessor) Size() int { return p.size }

// Preprocess decodes JPEG, PNG or WEBP bytes, resizes to the input grid and
// normalizes each channel.
func (p *Preprocessor) Preprocess(data []byte) ([]float32, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("decode image: empty %s image", format)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > int64(p.maxPixels) {
		return nil, fmt.Errorf("%w: %s image is %dx%d, limit is %d pixels",
			ErrImageTooLarge, format, cfg.Width, cfg.Height, p.maxPixels)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if src.Bounds().Empty() {
		return nil, fmt.Errorf("decode image: empty %s image", format)
	}

	dst := image.NewRGBA(image.Rect(0, 0, p.size, p.size))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	divisor, offset := float32(255), float32(0)
	if p.normalization == conf.NormalizationSigned {
		divisor, offset = 127.5, -1
	}

	tensor := make([]float32, 0, p.size*p.size*3)
	for i := 0; i < len(dst.Pix); i += 4 {
		tensor = append(tensor,
			float32(dst.Pix[i])/divisor+offset,
			float32(dst.Pix[i+1])/divisor+offset,
			float32(dst.Pix[i+2])/divisor+offset,
		)
	}
	return tensor, nil
}
