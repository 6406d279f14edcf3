package postgres

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/insiderwatch/internal/domain"
)

// DispatchStore implements domain.DispatchStore. Every channel outcome is
// kept, including failures and suppressions.
type DispatchStore struct {
	db DB
}

// NewDispatchStore creates a DispatchStore on db.
func NewDispatchStore(db DB) *DispatchStore {
	return &DispatchStore{db: db}
}

// Record appends one outcome.
func (s *DispatchStore) Record(ctx context.Context, o domain.DispatchOutcome) error {
	const query = `
		INSERT INTO dispatch_outcomes (alert_id, market_id, channel, status, error, at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.db.Exec(ctx, query, o.AlertID, o.MarketID, o.Channel, string(o.Status), o.Error, o.At); err != nil {
		return fmt.Errorf("postgres: record dispatch outcome %s/%s: %w", o.AlertID, o.Channel, err)
	}
	return nil
}

// ListByAlert returns the outcomes for alertID in the order they happened.
func (s *DispatchStore) ListByAlert(ctx context.Context, alertID string) ([]domain.DispatchOutcome, error) {
	rows, err := s.db.Query(ctx, `
		SELECT alert_id, market_id, channel, status, error, at
		FROM dispatch_outcomes WHERE alert_id = $1 ORDER BY at, id`, alertID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list dispatch outcomes %s: %w", alertID, err)
	}
	defer rows.Close()

	var out []domain.DispatchOutcome
	for rows.Next() {
		var (
			o      domain.DispatchOutcome
			status string
		)
		if err := rows.Scan(&o.AlertID, &o.MarketID, &o.Channel, &status, &o.Error, &o.At); err != nil {
			return nil, fmt.Errorf("postgres: scan dispatch outcome: %w", err)
		}
		o.Status = domain.DispatchStatus(status)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list dispatch outcomes rows: %w", err)
	}
	return out, nil
}

var _ domain.DispatchStore = (*DispatchStore)(nil)
