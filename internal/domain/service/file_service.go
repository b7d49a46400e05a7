package service

import (
	"context"
	"io"
)

// ObjectStorage stores attachment bytes and returns their public URL.
type ObjectStorage interface {
	Put(ctx context.Context, objectName, contentType string, data io.Reader) (string, error)
	Close() error
}
