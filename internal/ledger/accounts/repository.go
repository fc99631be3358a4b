package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `id, company_id, code, name, parent_account_id, is_group, account_type, normal_balance, report_group, is_payable, is_active, created_at, updated_at`

// Repository persists chart of accounts entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.ParentID, &a.IsGroup, &a.Type, &a.NormalBalance, &a.ReportGroup, &a.IsPayable, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

// Get fetches an account scoped to a company.
func (r *Repository) Get(ctx context.Context, companyID, accountID int64) (Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 AND id=$2`, companyID, accountID)
	return scanAccount(row)
}

// List returns the company's account tree in code order.
func (r *Repository) List(ctx context.Context, companyID int64) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 ORDER BY code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.ParentID, &a.IsGroup, &a.Type, &a.NormalBalance, &a.ReportGroup, &a.IsPayable, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Create inserts a new account. The (company_id, code) unique index rejects
// duplicate codes.
func (r *Repository) Create(ctx context.Context, in CreateAccountInput) (Account, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO accounts (company_id, code, name, parent_account_id, is_group, account_type, normal_balance, report_group, is_payable, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,TRUE)
RETURNING `+accountColumns, in.CompanyID, in.Code, in.Name, in.ParentID, in.IsGroup, in.Type, in.NormalBalance, in.ReportGroup, in.IsPayable)
	a, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, ErrCodeTaken
		}
		return Account{}, err
	}
	return a, nil
}

// Update modifies mutable fields. Code is immutable after creation.
func (r *Repository) Update(ctx context.Context, in UpdateAccountInput) (Account, error) {
	row := r.pool.QueryRow(ctx, `UPDATE accounts SET name=$3, account_type=$4, normal_balance=$5, report_group=$6, is_payable=$7, updated_at=NOW()
WHERE company_id=$1 AND id=$2
RETURNING `+accountColumns, in.CompanyID, in.AccountID, in.Name, in.Type, in.NormalBalance, in.ReportGroup, in.IsPayable)
	return scanAccount(row)
}

// Deactivate soft-deletes an account. The in-use checks run in the same
// transaction as the mutation, so a concurrent posting cannot observe a
// stale active flag.
func (r *Repository) Deactivate(ctx context.Context, companyID, accountID int64) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT TRUE FROM accounts WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, accountID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAccountNotFound
		}
		return err
	}

	var inUse bool
	err = tx.QueryRow(ctx, `SELECT EXISTS (
  SELECT 1 FROM journal_lines jl
  JOIN journal_batches jb ON jb.id = jl.batch_id
  WHERE jl.account_id = $1 AND jb.status <> 'VOID'
) OR EXISTS (
  SELECT 1 FROM accounts WHERE parent_account_id = $1 AND is_active
)`, accountID).Scan(&inUse)
	if err != nil {
		return err
	}
	if inUse {
		return ErrAccountInUse
	}

	if _, err := tx.Exec(ctx, `UPDATE accounts SET is_active=FALSE, updated_at=NOW() WHERE company_id=$1 AND id=$2`, companyID, accountID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
