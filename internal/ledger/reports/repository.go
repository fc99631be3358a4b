package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/balanca-pos/balanca/internal/ledger/accounts"
)

// Repository runs the read-only aggregation queries behind the reports.
// Only POSTED batches contribute; VOID batches stay out of every sum.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// outletClause appends the outlet filter when outlets were requested. An
// empty filter means company-wide: all outlets plus NULL-outlet batches.
func outletClause(outletIDs []int64, argIdx int) (string, []any) {
	if len(outletIDs) == 0 {
		return "", nil
	}
	return fmt.Sprintf(" AND jb.outlet_id = ANY($%d)", argIdx), []any{outletIDs}
}

// ListActivity aggregates opening and period debit/credit per leaf account.
// toExcl is the exclusive upper bound of the period.
func (r *Repository) ListActivity(ctx context.Context, companyID int64, outletIDs []int64, from, toExcl time.Time) ([]AccountActivity, error) {
	clause, extra := outletClause(outletIDs, 4)
	query := `SELECT a.id, a.code, a.name, a.account_type, a.normal_balance, a.report_group,
  COALESCE(SUM(jl.debit)  FILTER (WHERE jb.posted_at <  $2), 0),
  COALESCE(SUM(jl.credit) FILTER (WHERE jb.posted_at <  $2), 0),
  COALESCE(SUM(jl.debit)  FILTER (WHERE jb.posted_at >= $2 AND jb.posted_at < $3), 0),
  COALESCE(SUM(jl.credit) FILTER (WHERE jb.posted_at >= $2 AND jb.posted_at < $3), 0)
FROM accounts a
LEFT JOIN journal_lines jl ON jl.account_id = a.id
LEFT JOIN journal_batches jb ON jb.id = jl.batch_id AND jb.status = 'POSTED' AND jb.posted_at < $3` + clause + `
WHERE a.company_id = $1 AND NOT a.is_group
GROUP BY a.id, a.code, a.name, a.account_type, a.normal_balance, a.report_group
ORDER BY a.code`
	args := append([]any{companyID, from, toExcl}, extra...)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountActivity
	for rows.Next() {
		var act AccountActivity
		if err := rows.Scan(&act.AccountID, &act.Code, &act.Name, &act.Type, &act.NormalBalance, &act.ReportGroup,
			&act.OpeningDebit, &act.OpeningCredit, &act.PeriodDebit, &act.PeriodCredit); err != nil {
			return nil, err
		}
		out = append(out, act)
	}
	return out, rows.Err()
}

// AccountActivity aggregates opening and period totals for one account.
func (r *Repository) AccountActivity(ctx context.Context, companyID, accountID int64, outletIDs []int64, from, toExcl time.Time) (AccountActivity, error) {
	clause, extra := outletClause(outletIDs, 5)
	query := `SELECT a.id, a.code, a.name, a.account_type, a.normal_balance, a.report_group,
  COALESCE(SUM(jl.debit)  FILTER (WHERE jb.posted_at <  $3), 0),
  COALESCE(SUM(jl.credit) FILTER (WHERE jb.posted_at <  $3), 0),
  COALESCE(SUM(jl.debit)  FILTER (WHERE jb.posted_at >= $3 AND jb.posted_at < $4), 0),
  COALESCE(SUM(jl.credit) FILTER (WHERE jb.posted_at >= $3 AND jb.posted_at < $4), 0)
FROM accounts a
LEFT JOIN journal_lines jl ON jl.account_id = a.id
LEFT JOIN journal_batches jb ON jb.id = jl.batch_id AND jb.status = 'POSTED' AND jb.posted_at < $4` + clause + `
WHERE a.company_id = $1 AND a.id = $2
GROUP BY a.id, a.code, a.name, a.account_type, a.normal_balance, a.report_group`
	args := append([]any{companyID, accountID, from, toExcl}, extra...)
	var act AccountActivity
	err := r.pool.QueryRow(ctx, query, args...).
		Scan(&act.AccountID, &act.Code, &act.Name, &act.Type, &act.NormalBalance, &act.ReportGroup,
			&act.OpeningDebit, &act.OpeningCredit, &act.PeriodDebit, &act.PeriodCredit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountActivity{}, accounts.ErrAccountNotFound
		}
		return AccountActivity{}, err
	}
	return act, nil
}

// glLineOrder keeps running balances reproducible: lines within the same
// posted_at instant sort by batch id, then line number.
const glLineOrder = ` ORDER BY jb.posted_at ASC, jb.id ASC, jl.line_no ASC`

// AccountLines returns one page of period lines in chronological order.
func (r *Repository) AccountLines(ctx context.Context, q GLQuery, toExcl time.Time) ([]GLLine, error) {
	clause, extra := outletClause(q.OutletIDs, 7)
	query := `SELECT jb.id, jl.line_no, jb.posted_at, jb.doc_type, jb.doc_id, jb.memo, jl.description, jl.debit, jl.credit
FROM journal_lines jl
JOIN journal_batches jb ON jb.id = jl.batch_id
WHERE jb.company_id = $1 AND jl.account_id = $2 AND jb.status = 'POSTED'
  AND jb.posted_at >= $3 AND jb.posted_at < $4` + clause + glLineOrder + `
LIMIT $5 OFFSET $6`
	args := append([]any{q.CompanyID, q.AccountID, q.DateFrom, toExcl, q.LineLimit, q.LineOffset}, extra...)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []GLLine
	for rows.Next() {
		var line GLLine
		if err := rows.Scan(&line.BatchID, &line.LineNo, &line.PostedAt, &line.DocType, &line.DocID, &line.Memo, &line.Description, &line.Debit, &line.Credit); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

// NetBeforeOffset sums the period lines preceding the requested page, so the
// running balance on page N continues from page N-1.
func (r *Repository) NetBeforeOffset(ctx context.Context, q GLQuery, toExcl time.Time) (debit, credit float64, err error) {
	if q.LineOffset <= 0 {
		return 0, 0, nil
	}
	clause, extra := outletClause(q.OutletIDs, 6)
	query := `SELECT COALESCE(SUM(debit),0), COALESCE(SUM(credit),0) FROM (
  SELECT jl.debit, jl.credit
  FROM journal_lines jl
  JOIN journal_batches jb ON jb.id = jl.batch_id
  WHERE jb.company_id = $1 AND jl.account_id = $2 AND jb.status = 'POSTED'
    AND jb.posted_at >= $3 AND jb.posted_at < $4` + clause + glLineOrder + `
  LIMIT $5
) page`
	args := append([]any{q.CompanyID, q.AccountID, q.DateFrom, toExcl, q.LineOffset}, extra...)
	err = r.pool.QueryRow(ctx, query, args...).Scan(&debit, &credit)
	return debit, credit, err
}
