package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/insiderwatch/internal/domain"
)

type memWriter struct {
	objects map[string][]byte
	types   map[string]string
	fail    error
}

func newMemWriter() *memWriter {
	return &memWriter{objects: map[string][]byte{}, types: map[string]string{}}
}

func (w *memWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	if w.fail != nil {
		return w.fail
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.objects[path] = b
	w.types[path] = contentType
	return nil
}

func (w *memWriter) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return w.Put(ctx, path, data, "multipart")
}

type memAudit struct {
	events []string
}

func (m *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	m.events = append(m.events, event)
	return nil
}

func (m *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

var clock = time.Date(2026, 3, 2, 12, 34, 0, 0, time.UTC)

func TestFlushWritesHourlyJSONL(t *testing.T) {
	w := newMemWriter()
	audit := &memAudit{}
	a := NewAlertArchiver(w, audit, "alerts", func() time.Time { return clock })

	key, err := a.Flush(context.Background())
	require.NoError(t, err)
	assert.Empty(t, key, "empty buffer writes nothing")

	a.Add(domain.Alert{ID: "a1", MarketID: "m1", Severity: domain.SeverityHigh})
	a.Add(domain.Alert{ID: "a2", MarketID: "m2", Severity: domain.SeverityLow})
	key, err = a.Flush(context.Background())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "alerts/2026/03/02/12/"), key)
	assert.True(t, strings.HasSuffix(key, ".jsonl"))
	assert.Equal(t, jsonlContentType, w.types[key])
	assert.Equal(t, []string{"archive.alerts"}, audit.events)
	assert.Zero(t, a.Pending())

	var ids []string
	sc := bufio.NewScanner(bytes.NewReader(w.objects[key]))
	for sc.Scan() {
		var got domain.Alert
		require.NoError(t, json.Unmarshal(sc.Bytes(), &got))
		ids = append(ids, got.ID)
	}
	assert.Equal(t, []string{"a1", "a2"}, ids)
}

func TestFlushFailureKeepsAlerts(t *testing.T) {
	w := newMemWriter()
	w.fail = errors.New("unavailable")
	a := NewAlertArchiver(w, nil, "", func() time.Time { return clock })

	a.Add(domain.Alert{ID: "a1"})
	_, err := a.Flush(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, a.Pending())

	w.fail = nil
	a.Add(domain.Alert{ID: "a2"})
	key, err := a.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(w.objects[key]), "\n"))
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "http://localhost:9000", normaliseEndpoint("localhost:9000", false))
	assert.Equal(t, "https://s3.example.com", normaliseEndpoint("s3.example.com", true))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("http://minio:9000", true))
}
