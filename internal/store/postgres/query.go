package postgres

import (
	"fmt"

	"github.com/alanyoungcy/insiderwatch/internal/domain"
)

// query accumulates a SELECT with numbered placeholders.
type query struct {
	sql  string
	args []any
}

func newQuery(base string) *query {
	return &query{sql: base}
}

// where appends "AND cond" with %s replaced by the next placeholder.
func (q *query) where(cond string, arg any) {
	q.args = append(q.args, arg)
	q.sql += " AND " + fmt.Sprintf(cond, fmt.Sprintf("$%d", len(q.args)))
}

func (q *query) timeRange(col string, opts domain.ListOpts) {
	if opts.Since != nil {
		q.where(col+" >= %s", *opts.Since)
	}
	if opts.Until != nil {
		q.where(col+" <= %s", *opts.Until)
	}
}

func (q *query) order(by string) {
	q.sql += " ORDER BY " + by
}

func (q *query) page(opts domain.ListOpts) {
	if opts.Limit > 0 {
		q.args = append(q.args, opts.Limit)
		q.sql += fmt.Sprintf(" LIMIT $%d", len(q.args))
	}
	if opts.Offset > 0 {
		q.args = append(q.args, opts.Offset)
		q.sql += fmt.Sprintf(" OFFSET $%d", len(q.args))
	}
}
