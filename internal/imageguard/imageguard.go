// Package imageguard validates inbound images before any other stage sees them.
package imageguard

import (
	"bytes"
	"io"
	"mime"
	"slices"
	"strings"

	"github.com/nutrisnap/nutrisnap/internal/errors"
)

// DefaultMaxBytes is the size ceiling used when none is configured (5 MiB)
const DefaultMaxBytes int64 = 5 << 20

// DefaultAllowedTypes is the content type allow-list used when none is configured
var DefaultAllowedTypes = []string{"image/jpeg", "image/png", "image/webp"}

var (
	// ErrUnsupportedMediaType is returned for content types outside the allow-list.
	ErrUnsupportedMediaType = errors.Sentinel(errors.CategoryMediaType, "unsupported media type")
	// ErrPayloadTooLarge is returned when the stream exceeds the size ceiling.
	ErrPayloadTooLarge = errors.Sentinel(errors.CategoryPayloadTooLarge, "payload too large")
)

// Guard checks content type and size of an image stream
type Guard struct {
	maxBytes int64
	allowed  []string
}

// New returns a Guard. Zero or empty arguments select the defaults.
func New(maxBytes int64, allowed []string) *Guard {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if len(allowed) == 0 {
		allowed = DefaultAllowedTypes
	}
	normalized := make([]string, 0, len(allowed))
	for _, t := range allowed {
		normalized = append(normalized, strings.ToLower(strings.TrimSpace(t)))
	}
	return &Guard{maxBytes: maxBytes, allowed: normalized}
}

// MaxBytes returns the configured ceiling
func (g *Guard) MaxBytes() int64 { return g.maxBytes }

// Validate checks contentType against the allow-list and reads at most
// MaxBytes+1 bytes from r. The buffered content is returned so later stages
// can read it again.
func (g *Guard) Validate(contentType string, r io.Reader) ([]byte, error) {
	mediaType := baseMediaType(contentType)
	if !slices.Contains(g.allowed, mediaType) {
		return nil, errors.New(ErrUnsupportedMediaType).
			Component("imageguard").
			ImageContext(contentType, 0).
			Build()
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, g.maxBytes+1))
	if err != nil {
		return nil, errors.New(err).
			Component("imageguard").
			Category(errors.CategoryFileIO).
			Context("operation", "read_image").
			Build()
	}
	if n > g.maxBytes {
		return nil, errors.New(ErrPayloadTooLarge).
			Component("imageguard").
			ImageContext(mediaType, n).
			Context("max_bytes", g.maxBytes).
			Build()
	}

	return buf.Bytes(), nil
}

// baseMediaType strips parameters such as charset and lower-cases the type
func baseMediaType(contentType string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
