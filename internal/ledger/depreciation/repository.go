package depreciation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const planColumns = `id, company_id, asset_id, method, start_date, useful_life_months, salvage_value, purchase_cost, expense_account_id, accum_depr_account_id, status, created_at, updated_at`
const runColumns = `id, plan_id, period_year, period_month, amount, COALESCE(journal_batch_id, 0), status, created_at`

// Repository persists depreciation plans and runs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanPlan(row pgx.Row) (Plan, error) {
	var p Plan
	err := row.Scan(&p.ID, &p.CompanyID, &p.AssetID, &p.Method, &p.StartDate, &p.UsefulLifeMonths, &p.SalvageValue, &p.PurchaseCost, &p.ExpenseAccountID, &p.AccumDeprAccountID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Plan{}, ErrPlanNotFound
		}
		return Plan{}, err
	}
	return p, nil
}

func scanRun(row pgx.Row) (Run, error) {
	var r Run
	err := row.Scan(&r.ID, &r.PlanID, &r.PeriodYear, &r.PeriodMonth, &r.Amount, &r.JournalBatchID, &r.Status, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Run{}, ErrRunNotFound
		}
		return Run{}, err
	}
	return r, nil
}

// GetPlan fetches a plan scoped to a company.
func (r *Repository) GetPlan(ctx context.Context, companyID, planID int64) (Plan, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM depreciation_plans WHERE company_id=$1 AND id=$2`, companyID, planID)
	return scanPlan(row)
}

// ListPlans returns the company's plans, newest first.
func (r *Repository) ListPlans(ctx context.Context, companyID int64) ([]Plan, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+planColumns+` FROM depreciation_plans WHERE company_id=$1 ORDER BY id DESC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Plan
	for rows.Next() {
		var p Plan
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.AssetID, &p.Method, &p.StartDate, &p.UsefulLifeMonths, &p.SalvageValue, &p.PurchaseCost, &p.ExpenseAccountID, &p.AccumDeprAccountID, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListActivePlans returns every ACTIVE plan of every company, for the
// scheduled monthly run.
func (r *Repository) ListActivePlans(ctx context.Context) ([]Plan, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+planColumns+` FROM depreciation_plans WHERE status='ACTIVE' ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Plan
	for rows.Next() {
		var p Plan
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.AssetID, &p.Method, &p.StartDate, &p.UsefulLifeMonths, &p.SalvageValue, &p.PurchaseCost, &p.ExpenseAccountID, &p.AccumDeprAccountID, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreatePlan inserts a DRAFT plan.
func (r *Repository) CreatePlan(ctx context.Context, in CreatePlanInput) (Plan, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO depreciation_plans (company_id, asset_id, method, start_date, useful_life_months, salvage_value, purchase_cost, expense_account_id, accum_depr_account_id, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,'DRAFT')
RETURNING `+planColumns,
		in.CompanyID, in.AssetID, in.Method, in.StartDate, in.UsefulLifeMonths,
		fmt.Sprintf("%.2f", in.SalvageValue), fmt.Sprintf("%.2f", in.PurchaseCost),
		in.ExpenseAccountID, in.AccumDeprAccountID)
	return scanPlan(row)
}

// UpdatePlanStatus transitions the plan, guarded by the expected current
// status. The partial unique index on (asset_id) WHERE status='ACTIVE'
// rejects a second concurrent activation for the same asset.
func (r *Repository) UpdatePlanStatus(ctx context.Context, companyID, planID int64, from, to PlanStatus) (Plan, error) {
	row := r.pool.QueryRow(ctx, `UPDATE depreciation_plans SET status=$4, updated_at=NOW()
WHERE company_id=$1 AND id=$2 AND status=$3
RETURNING `+planColumns, companyID, planID, from, to)
	plan, err := scanPlan(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Plan{}, ErrPlanConflict
		}
		if errors.Is(err, ErrPlanNotFound) {
			// Either the plan is missing or its status moved on.
			if _, getErr := r.GetPlan(ctx, companyID, planID); getErr == nil {
				return Plan{}, ErrInvalidTransition
			}
			return Plan{}, ErrPlanNotFound
		}
		return Plan{}, err
	}
	return plan, nil
}

// FindRun returns the non-VOID run for the period, if any.
func (r *Repository) FindRun(ctx context.Context, planID int64, year, month int) (Run, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM depreciation_runs
WHERE plan_id=$1 AND period_year=$2 AND period_month=$3 AND status <> 'VOID'`, planID, year, month)
	return scanRun(row)
}

// GetRun fetches a run by id.
func (r *Repository) GetRun(ctx context.Context, runID int64) (Run, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM depreciation_runs WHERE id=$1`, runID)
	return scanRun(row)
}

// ListRuns returns the plan's runs in period order.
func (r *Repository) ListRuns(ctx context.Context, planID int64) ([]Run, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+runColumns+` FROM depreciation_runs WHERE plan_id=$1 ORDER BY period_year, period_month`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.PlanID, &run.PeriodYear, &run.PeriodMonth, &run.Amount, &run.JournalBatchID, &run.Status, &run.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// SumPriorRuns totals non-VOID run amounts for the plan.
func (r *Repository) SumPriorRuns(ctx context.Context, planID int64) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount),0) FROM depreciation_runs WHERE plan_id=$1 AND status <> 'VOID'`, planID).Scan(&total)
	return total, err
}

// ErrRunClaimed signals a concurrent claim of the same period; callers treat
// it as the duplicate case after re-reading the winning run.
var ErrRunClaimed = errors.New("depreciation: period already claimed")

// ClaimRun inserts the run row before its journal batch exists. The partial
// unique index on (plan_id, period_year, period_month) WHERE status <> 'VOID'
// makes the claim race-free without a prior read.
func (r *Repository) ClaimRun(ctx context.Context, planID int64, year, month int, amount float64) (Run, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO depreciation_runs (plan_id, period_year, period_month, amount, status)
VALUES ($1,$2,$3,$4,'POSTED') RETURNING `+runColumns,
		planID, year, month, fmt.Sprintf("%.2f", amount))
	run, err := scanRun(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Run{}, ErrRunClaimed
		}
		return Run{}, err
	}
	return run, nil
}

// AttachRunBatch links the posted journal batch to the claimed run.
func (r *Repository) AttachRunBatch(ctx context.Context, runID, batchID int64) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE depreciation_runs SET journal_batch_id=$2 WHERE id=$1`, runID, batchID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

// DeleteRun removes a claimed run whose posting failed.
func (r *Repository) DeleteRun(ctx context.Context, runID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM depreciation_runs WHERE id=$1`, runID)
	return err
}

// VoidRun marks a run VOID.
func (r *Repository) VoidRun(ctx context.Context, runID int64) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE depreciation_runs SET status='VOID' WHERE id=$1 AND status='POSTED'`, runID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

// CreatePlanInput groups fields for a new plan.
type CreatePlanInput struct {
	CompanyID          int64
	AssetID            int64
	Method             Method
	StartDate          time.Time
	UsefulLifeMonths   int
	SalvageValue       float64
	PurchaseCost       float64
	ExpenseAccountID   int64
	AccumDeprAccountID int64
}
