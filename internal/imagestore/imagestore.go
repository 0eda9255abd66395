// Package imagestore keeps accepted images on disk or in an S3 bucket.
package imagestore

import (
	"context"
	"fmt"
	"strings"

	"github.com/nutrisnap/nutrisnap/internal/conf"
)

// Store persists image bytes under a name and returns their location
type Store interface {
	Save(ctx context.Context, name, contentType string, data []byte) (string, error)
	Kind() string
}

// New returns the store selected by settings
func New(ctx context.Context, settings conf.StorageSettings) (Store, error) {
	switch strings.ToLower(settings.Type) {
	case "", "none":
		return Noop{}, nil
	case "local":
		return NewLocalStore(settings.Local.Path)
	case "s3":
		return NewS3Store(ctx, settings.S3)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", settings.Type)
	}
}

// ObjectName builds the stored name of an upload from its public id
func ObjectName(publicID, contentType string) string {
	return publicID + extension(contentType)
}

func extension(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}

// Noop discards images
type Noop struct{}

func (Noop) Save(context.Context, string, string, []byte) (string, error) { return "", nil }
func (Noop) Kind() string                                                 { return "none" }
