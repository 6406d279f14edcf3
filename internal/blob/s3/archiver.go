package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/insiderwatch/internal/domain"
)

// multipartThreshold is the batch size above which uploads go multipart.
const multipartThreshold = 8 * 1024 * 1024

const jsonlContentType = "application/x-ndjson"

// AlertArchiver buffers finalized alerts and writes them to object storage as
// one JSONL object per flush.
type AlertArchiver struct {
	writer domain.BlobWriter
	audit  domain.AuditStore
	prefix string
	now    func() time.Time

	mu     sync.Mutex
	buffer []domain.Alert
}

// NewAlertArchiver creates an AlertArchiver. audit may be nil. A nil now uses
// time.Now.
func NewAlertArchiver(writer domain.BlobWriter, audit domain.AuditStore, prefix string, now func() time.Time) *AlertArchiver {
	if now == nil {
		now = time.Now
	}
	if prefix == "" {
		prefix = "alerts"
	}
	return &AlertArchiver{writer: writer, audit: audit, prefix: prefix, now: now}
}

// Add buffers a for the next flush.
func (a *AlertArchiver) Add(alert domain.Alert) {
	a.mu.Lock()
	a.buffer = append(a.buffer, alert)
	a.mu.Unlock()
}

// Pending returns the number of buffered alerts.
func (a *AlertArchiver) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffer)
}

// Flush uploads every buffered alert and returns the object key, or "" when
// there was nothing to write. On failure the alerts stay buffered.
func (a *AlertArchiver) Flush(ctx context.Context) (string, error) {
	a.mu.Lock()
	batch := a.buffer
	a.buffer = nil
	a.mu.Unlock()
	if len(batch) == 0 {
		return "", nil
	}

	key, err := a.upload(ctx, batch)
	if err != nil {
		a.mu.Lock()
		a.buffer = append(batch, a.buffer...)
		a.mu.Unlock()
		return "", err
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.alerts", map[string]any{
			"path":  key,
			"count": len(batch),
		}); err != nil {
			return key, fmt.Errorf("s3blob: archive alerts audit log: %w", err)
		}
	}
	return key, nil
}

func (a *AlertArchiver) upload(ctx context.Context, batch []domain.Alert) (string, error) {
	buf, err := marshalJSONL(batch)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive alerts marshal: %w", err)
	}

	key := archivePath(a.prefix, a.now(), uuid.NewString())
	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, key, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, key, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: archive alerts upload: %w", err)
	}
	return key, nil
}

// archivePath partitions objects by UTC hour:
//
//	alerts/2026/03/02/12/<id>.jsonl
func archivePath(prefix string, at time.Time, id string) string {
	return fmt.Sprintf("%s/%s/%s.jsonl", prefix, at.UTC().Format("2006/01/02/15"), id)
}

// marshalJSONL encodes records as newline-delimited JSON.
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
