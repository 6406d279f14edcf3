package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// AlertFilter narrows alert list queries.
type AlertFilter struct {
	MarketID    string
	MinSeverity *Severity
	ListOpts
}

// AlertStore persists finalized alerts. The pipeline only writes; reads serve
// the HTTP API.
type AlertStore interface {
	Save(ctx context.Context, alert Alert) error
	List(ctx context.Context, filter AlertFilter) ([]Alert, error)
}

// WalletStore persists wallet ledger snapshots.
type WalletStore interface {
	UpsertBatch(ctx context.Context, wallets []WalletStats) error
	Get(ctx context.Context, address string) (WalletStats, error)
}

// DispatchStore records per-channel dispatch outcomes, including delivery
// failures.
type DispatchStore interface {
	Record(ctx context.Context, outcome DispatchOutcome) error
	ListByAlert(ctx context.Context, alertID string) ([]DispatchOutcome, error)
}

// AuditStore provides an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}
