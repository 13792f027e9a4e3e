package domain

import (
	"context"
	"io"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// Archiver moves trade records trimmed from memory to cold storage and
// returns the object path written.
type Archiver interface {
	ArchiveTrades(ctx context.Context, trades []TradeRecord) (string, error)
}
