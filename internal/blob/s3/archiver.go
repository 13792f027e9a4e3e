package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/venuebot/internal/domain"
	"github.com/google/uuid"
)

const (
	jsonlContentType = "application/x-ndjson"
	// multipartThreshold switches large batches to the upload manager.
	multipartThreshold = 8 * 1024 * 1024
)

// Archiver implements domain.Archiver. Each call writes one JSONL object
// under archive/trades/YYYY/MM/DD/, dated by the oldest record.
type Archiver struct {
	writer domain.BlobWriter
	audit  domain.AuditStore
	prefix string
}

// NewArchiver creates an Archiver. audit may be nil. prefix defaults to
// "archive".
func NewArchiver(writer domain.BlobWriter, audit domain.AuditStore, prefix string) *Archiver {
	if prefix == "" {
		prefix = "archive"
	}
	return &Archiver{writer: writer, audit: audit, prefix: prefix}
}

// ArchiveTrades uploads trades and returns the object path. An empty batch
// writes nothing and returns "".
func (a *Archiver) ArchiveTrades(ctx context.Context, trades []domain.TradeRecord) (string, error) {
	if len(trades) == 0 {
		return "", nil
	}

	buf, err := marshalJSONL(trades)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}

	path := archivePath(a.prefix, "trades", trades[0].Timestamp, uuid.NewString())
	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: archive trades upload: %w", err)
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.trades", map[string]any{
			"path":  path,
			"count": len(trades),
			"from":  trades[0].Timestamp.Format(time.RFC3339),
			"to":    trades[len(trades)-1].Timestamp.Format(time.RFC3339),
		}); err != nil {
			return path, fmt.Errorf("s3blob: archive trades audit log: %w", err)
		}
	}
	return path, nil
}

// archivePath builds a key such as
//
//	archive/trades/2025/01/31/<id>.jsonl
func archivePath(prefix, kind string, at time.Time, id string) string {
	return fmt.Sprintf("%s/%s/%s/%s.jsonl", prefix, kind, at.UTC().Format("2006/01/02"), id)
}

// marshalJSONL encodes one compact JSON document per line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*Archiver)(nil)
