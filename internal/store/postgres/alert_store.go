package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/insiderwatch/internal/domain"
)

// AlertStore implements domain.AlertStore. Saves are idempotent on the alert
// ID, so a replayed pass never stores the same alert twice.
type AlertStore struct {
	db DB
}

// NewAlertStore creates an AlertStore on db.
func NewAlertStore(db DB) *AlertStore {
	return &AlertStore{db: db}
}

const alertSelectCols = `id, market_id, alert_type, severity, confidence_score,
	signals, recommendation, recommended_action, created_at`

// Save inserts a, ignoring an alert already stored under the same ID.
func (s *AlertStore) Save(ctx context.Context, a domain.Alert) error {
	signals, err := json.Marshal(a.Signals)
	if err != nil {
		return fmt.Errorf("postgres: marshal signals for alert %s: %w", a.ID, err)
	}
	rec, err := json.Marshal(a.Recommendation)
	if err != nil {
		return fmt.Errorf("postgres: marshal recommendation for alert %s: %w", a.ID, err)
	}

	const query = `
		INSERT INTO alerts (` + alertSelectCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`
	if _, err := s.db.Exec(ctx, query,
		a.ID, a.MarketID, string(a.Type), int16(a.Severity), a.Confidence,
		signals, rec, a.RecommendedAction, a.CreatedAt,
	); err != nil {
		return fmt.Errorf("postgres: save alert %s: %w", a.ID, err)
	}
	return nil
}

// List returns alerts newest first, filtered by market, minimum severity and
// time range.
func (s *AlertStore) List(ctx context.Context, f domain.AlertFilter) ([]domain.Alert, error) {
	q := newQuery(`SELECT ` + alertSelectCols + ` FROM alerts WHERE 1=1`)
	if f.MarketID != "" {
		q.where("market_id = %s", f.MarketID)
	}
	if f.MinSeverity != nil {
		q.where("severity >= %s", int16(*f.MinSeverity))
	}
	q.timeRange("created_at", f.ListOpts)
	q.order("created_at DESC, id")
	q.page(f.ListOpts)

	rows, err := s.db.Query(ctx, q.sql, q.args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list alerts: %w", err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		var (
			a        domain.Alert
			typ      string
			severity int16
			signals  []byte
			rec      []byte
		)
		if err := rows.Scan(&a.ID, &a.MarketID, &typ, &severity, &a.Confidence,
			&signals, &rec, &a.RecommendedAction, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan alert: %w", err)
		}
		a.Type = domain.AlertType(typ)
		a.Severity = domain.Severity(severity)
		if err := json.Unmarshal(signals, &a.Signals); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal signals for alert %s: %w", a.ID, err)
		}
		if err := json.Unmarshal(rec, &a.Recommendation); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal recommendation for alert %s: %w", a.ID, err)
		}
		a.CreatedAt = a.CreatedAt.UTC()
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list alerts rows: %w", err)
	}
	return out, nil
}

var _ domain.AlertStore = (*AlertStore)(nil)
