package objectclient

import (
	"context"
	"errors"
)

// ErrNotFound is returned by GetFile when the key does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectClient stores blobs in a single bucket chosen at construction.
type ObjectClient interface {
	UploadFile(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
	GetFile(ctx context.Context, key string) ([]byte, error)
}
