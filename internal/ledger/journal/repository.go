package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/balanca-pos/balanca/internal/ledger/accounts"
	"github.com/balanca-pos/balanca/internal/shared"
)

// Repository encapsulates DB operations for journal batches.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes methods available within a posting transaction.
type TxRepository interface {
	// GetAccountForPosting re-reads the account under lock so concurrent
	// deactivation cannot race a post.
	GetAccountForPosting(ctx context.Context, companyID, accountID int64) (accounts.Account, error)
	InsertBatch(ctx context.Context, in PostingInput) (Batch, error)
	InsertLines(ctx context.Context, batchID int64, lines []PostingLineInput) error
	GetBatchWithLines(ctx context.Context, companyID, batchID int64) (Batch, error)
	UpdateBatchStatus(ctx context.Context, companyID, batchID int64, status BatchStatus) error
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("journal repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("journal: begin tx: %w", err)
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// GetBatch fetches a batch with its lines outside a transaction.
func (r *Repository) GetBatch(ctx context.Context, companyID, batchID int64) (Batch, error) {
	return fetchBatchWithLines(ctx, r.pool, companyID, batchID)
}

// FindByDoc returns the POSTED batch for a source document, if any. Callers
// use it to recover when a post succeeded but the follow-up status write was
// lost.
func (r *Repository) FindByDoc(ctx context.Context, companyID int64, docType string, docID uuid.UUID) (Batch, error) {
	var batchID int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM journal_batches WHERE company_id=$1 AND doc_type=$2 AND doc_id=$3 AND status='POSTED'`,
		companyID, docType, docID).Scan(&batchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Batch{}, ErrBatchNotFound
		}
		return Batch{}, err
	}
	return fetchBatchWithLines(ctx, r.pool, companyID, batchID)
}

// List returns batches for the company, newest first.
func (r *Repository) List(ctx context.Context, companyID int64, page shared.Pagination) ([]Batch, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, outlet_id, doc_type, doc_id, memo, posted_by, posted_at, status, created_at, updated_at
FROM journal_batches WHERE company_id=$1 ORDER BY posted_at DESC, id DESC LIMIT $2 OFFSET $3`, companyID, page.PerPage, page.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.CompanyID, &b.OutletID, &b.DocType, &b.DocID, &b.Memo, &b.PostedBy, &b.PostedAt, &b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Count returns the total number of batches for the company.
func (r *Repository) Count(ctx context.Context, companyID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM journal_batches WHERE company_id=$1`, companyID).Scan(&n)
	return n, err
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetAccountForPosting(ctx context.Context, companyID, accountID int64) (accounts.Account, error) {
	var a accounts.Account
	err := r.tx.QueryRow(ctx, `SELECT id, company_id, code, name, parent_account_id, is_group, account_type, normal_balance, report_group, is_payable, is_active, created_at, updated_at
FROM accounts WHERE company_id=$1 AND id=$2 FOR SHARE`, companyID, accountID).
		Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.ParentID, &a.IsGroup, &a.Type, &a.NormalBalance, &a.ReportGroup, &a.IsPayable, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return accounts.Account{}, accounts.ErrAccountNotFound
		}
		return accounts.Account{}, err
	}
	return a, nil
}

func (r *txRepository) InsertBatch(ctx context.Context, in PostingInput) (Batch, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_batches (company_id, outlet_id, doc_type, doc_id, memo, posted_by, status)
VALUES ($1,$2,$3,$4,$5,$6,'POSTED') RETURNING id, posted_at, created_at, updated_at`,
		in.CompanyID, nullIntPtr(in.OutletID), in.DocType, in.DocID, in.Memo, nullInt(in.PostedBy))
	var batch Batch
	batch.CompanyID = in.CompanyID
	batch.OutletID = in.OutletID
	batch.DocType = in.DocType
	batch.DocID = in.DocID
	batch.Memo = in.Memo
	batch.PostedBy = in.PostedBy
	batch.Status = BatchStatusPosted
	if err := row.Scan(&batch.ID, &batch.PostedAt, &batch.CreatedAt, &batch.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Batch{}, ErrAlreadyPosted
		}
		return Batch{}, err
	}
	return batch, nil
}

func (r *txRepository) InsertLines(ctx context.Context, batchID int64, lines []PostingLineInput) error {
	for no, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (batch_id, line_no, account_id, debit, credit, description)
VALUES ($1,$2,$3,$4,$5,$6)`, batchID, no+1, line.AccountID, toNumeric(line.Debit), toNumeric(line.Credit), line.Description); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetBatchWithLines(ctx context.Context, companyID, batchID int64) (Batch, error) {
	return fetchBatchWithLines(ctx, r.tx, companyID, batchID)
}

func fetchBatchWithLines(ctx context.Context, q querier, companyID, batchID int64) (Batch, error) {
	var b Batch
	err := q.QueryRow(ctx, `SELECT id, company_id, outlet_id, doc_type, doc_id, memo, posted_by, posted_at, status, created_at, updated_at
FROM journal_batches WHERE company_id=$1 AND id=$2`, companyID, batchID).
		Scan(&b.ID, &b.CompanyID, &b.OutletID, &b.DocType, &b.DocID, &b.Memo, &b.PostedBy, &b.PostedAt, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Batch{}, ErrBatchNotFound
		}
		return Batch{}, err
	}
	rows, err := q.Query(ctx, `SELECT id, batch_id, line_no, account_id, debit, credit, description
FROM journal_lines WHERE batch_id=$1 ORDER BY line_no ASC`, batchID)
	if err != nil {
		return Batch{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.BatchID, &line.LineNo, &line.AccountID, &line.Debit, &line.Credit, &line.Description); err != nil {
			return Batch{}, err
		}
		b.Lines = append(b.Lines, line)
	}
	return b, rows.Err()
}

func (r *txRepository) UpdateBatchStatus(ctx context.Context, companyID, batchID int64, status BatchStatus) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_batches SET status=$3, updated_at=NOW() WHERE company_id=$1 AND id=$2`, companyID, batchID, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrBatchNotFound
	}
	return nil
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}

func nullIntPtr(val *int64) any {
	if val == nil {
		return nil
	}
	if *val == 0 {
		return nil
	}
	return *val
}

func toNumeric(v float64) any {
	return fmt.Sprintf("%.2f", v)
}
