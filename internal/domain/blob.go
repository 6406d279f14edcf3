package domain

import (
	"context"
	"io"
)

// BlobWriter stores objects such as the hourly JSONL alert archive.
// PutMultipart is for bodies too large to buffer in one request.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}
