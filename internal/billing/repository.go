package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/balanca-pos/balanca/internal/platform/db"
	"github.com/balanca-pos/balanca/internal/shared"
)

const invoiceColumns = `id, company_id, outlet_id, doc_id, number, customer_id, issue_date, due_date, subtotal, tax_amount, grand_total, status, payment_status, COALESCE(journal_batch_id, 0), COALESCE(memo, ''), created_at, updated_at`
const paymentColumns = `id, company_id, invoice_id, doc_id, amount, method, paid_at, status, COALESCE(journal_batch_id, 0), COALESCE(note, ''), created_at, updated_at`

// Repository persists invoices, lines, and payments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.CompanyID, &inv.OutletID, &inv.DocID, &inv.Number, &inv.CustomerID,
		&inv.IssueDate, &inv.DueDate, &inv.Subtotal, &inv.TaxAmount, &inv.GrandTotal,
		&inv.Status, &inv.PaymentStatus, &inv.JournalBatchID, &inv.Memo, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.CompanyID, &p.InvoiceID, &p.DocID, &p.Amount, &p.Method,
		&p.PaidAt, &p.Status, &p.JournalBatchID, &p.Note, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, ErrPaymentNotFound
		}
		return Payment{}, err
	}
	return p, nil
}

// GetInvoice fetches one invoice with its lines.
func (r *Repository) GetInvoice(ctx context.Context, companyID, invoiceID int64) (Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE company_id=$1 AND id=$2`, companyID, invoiceID))
	if err != nil {
		return Invoice{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, invoice_id, description, qty, unit_price, discount_pct, amount
FROM invoice_lines WHERE invoice_id=$1 ORDER BY id`, invoiceID)
	if err != nil {
		return Invoice{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.Description, &l.Qty, &l.UnitPrice, &l.DiscountPct, &l.Amount); err != nil {
			return Invoice{}, err
		}
		inv.Lines = append(inv.Lines, l)
	}
	return inv, rows.Err()
}

// ListInvoices returns invoice headers, newest first.
func (r *Repository) ListInvoices(ctx context.Context, companyID int64, page shared.Pagination) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE company_id=$1
ORDER BY id DESC LIMIT $2 OFFSET $3`, companyID, page.PerPage, page.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.CompanyID, &inv.OutletID, &inv.DocID, &inv.Number, &inv.CustomerID,
			&inv.IssueDate, &inv.DueDate, &inv.Subtotal, &inv.TaxAmount, &inv.GrandTotal,
			&inv.Status, &inv.PaymentStatus, &inv.JournalBatchID, &inv.Memo, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// CountInvoices returns the company's invoice count for pagination.
func (r *Repository) CountInvoices(ctx context.Context, companyID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE company_id=$1`, companyID).Scan(&n)
	return n, err
}

// CreateInvoice inserts the header and its lines atomically.
func (r *Repository) CreateInvoice(ctx context.Context, in CreateInvoiceInput, docID uuid.UUID, subtotal, grand float64) (Invoice, error) {
	var inv Invoice
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `INSERT INTO invoices (company_id, outlet_id, doc_id, number, customer_id, issue_date, due_date, subtotal, tax_amount, grand_total, status, payment_status, memo)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,'DRAFT','UNPAID',$11)
RETURNING `+invoiceColumns,
			in.CompanyID, in.OutletID, docID, in.Number, in.CustomerID, in.IssueDate, in.DueDate,
			fmt.Sprintf("%.2f", subtotal), fmt.Sprintf("%.2f", in.TaxAmount), fmt.Sprintf("%.2f", grand), in.Memo)
		var scanErr error
		inv, scanErr = scanInvoice(row)
		if scanErr != nil {
			return scanErr
		}
		return insertLines(ctx, tx, inv.ID, in.Lines)
	})
	if err != nil {
		return Invoice{}, err
	}
	return r.GetInvoice(ctx, in.CompanyID, inv.ID)
}

// ReplaceInvoice rewrites header fields and lines of a DRAFT invoice. The
// status guard in the UPDATE keeps posted documents immutable even under a
// concurrent post.
func (r *Repository) ReplaceInvoice(ctx context.Context, in UpdateInvoiceInput, subtotal, grand float64) (Invoice, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `UPDATE invoices SET customer_id=$3, issue_date=$4, due_date=$5, subtotal=$6, tax_amount=$7, grand_total=$8, memo=$9, updated_at=NOW()
WHERE company_id=$1 AND id=$2 AND status='DRAFT'`,
			in.CompanyID, in.InvoiceID, in.CustomerID, in.IssueDate, in.DueDate,
			fmt.Sprintf("%.2f", subtotal), fmt.Sprintf("%.2f", in.TaxAmount), fmt.Sprintf("%.2f", grand), in.Memo)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return errStatusGuard
		}
		if _, err := tx.Exec(ctx, `DELETE FROM invoice_lines WHERE invoice_id=$1`, in.InvoiceID); err != nil {
			return err
		}
		return insertLines(ctx, tx, in.InvoiceID, in.Lines)
	})
	if err != nil {
		return Invoice{}, err
	}
	return r.GetInvoice(ctx, in.CompanyID, in.InvoiceID)
}

// errStatusGuard signals a zero-row guarded update; callers re-read the
// document to report the precise conflict.
var errStatusGuard = errors.New("billing: status guard rejected update")

// IsStatusGuard reports whether err is the guarded-update rejection.
func IsStatusGuard(err error) bool {
	return errors.Is(err, errStatusGuard)
}

func insertLines(ctx context.Context, tx pgx.Tx, invoiceID int64, lines []InvoiceLineInput) error {
	for _, l := range lines {
		if _, err := tx.Exec(ctx, `INSERT INTO invoice_lines (invoice_id, description, qty, unit_price, discount_pct, amount)
VALUES ($1,$2,$3,$4,$5,$6)`,
			invoiceID, l.Description, l.Qty, fmt.Sprintf("%.2f", l.UnitPrice),
			l.DiscountPct, fmt.Sprintf("%.2f", l.LineAmount())); err != nil {
			return err
		}
	}
	return nil
}

// SetInvoicePosted transitions DRAFT to POSTED and links the journal batch.
func (r *Repository) SetInvoicePosted(ctx context.Context, companyID, invoiceID, batchID int64) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE invoices SET status='POSTED', journal_batch_id=$3, updated_at=NOW()
WHERE company_id=$1 AND id=$2 AND status='DRAFT'`, companyID, invoiceID, batchID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return errStatusGuard
	}
	return nil
}

// SetInvoiceVoid transitions POSTED to VOID.
func (r *Repository) SetInvoiceVoid(ctx context.Context, companyID, invoiceID int64) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE invoices SET status='VOID', updated_at=NOW()
WHERE company_id=$1 AND id=$2 AND status='POSTED'`, companyID, invoiceID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return errStatusGuard
	}
	return nil
}

// SetInvoicePaymentStatus stores the derived payment status.
func (r *Repository) SetInvoicePaymentStatus(ctx context.Context, companyID, invoiceID int64, status PaymentStatus) error {
	_, err := r.pool.Exec(ctx, `UPDATE invoices SET payment_status=$3, updated_at=NOW()
WHERE company_id=$1 AND id=$2`, companyID, invoiceID, status)
	return err
}

// SumPostedPayments totals POSTED payment amounts against the invoice.
func (r *Repository) SumPostedPayments(ctx context.Context, invoiceID int64) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount),0) FROM payments WHERE invoice_id=$1 AND status='POSTED'`, invoiceID).Scan(&total)
	return total, err
}

// GetPayment fetches one payment scoped to a company.
func (r *Repository) GetPayment(ctx context.Context, companyID, paymentID int64) (Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE company_id=$1 AND id=$2`, companyID, paymentID))
}

// ListPayments returns the invoice's payments in creation order.
func (r *Repository) ListPayments(ctx context.Context, companyID, invoiceID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE company_id=$1 AND invoice_id=$2 ORDER BY id`, companyID, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.InvoiceID, &p.DocID, &p.Amount, &p.Method,
			&p.PaidAt, &p.Status, &p.JournalBatchID, &p.Note, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreatePayment inserts a DRAFT payment.
func (r *Repository) CreatePayment(ctx context.Context, in RegisterPaymentInput, docID uuid.UUID) (Payment, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO payments (company_id, invoice_id, doc_id, amount, method, paid_at, status, note)
VALUES ($1,$2,$3,$4,$5,$6,'DRAFT',$7)
RETURNING `+paymentColumns,
		in.CompanyID, in.InvoiceID, docID, fmt.Sprintf("%.2f", in.Amount), in.Method, in.PaidAt, in.Note)
	return scanPayment(row)
}

// SetPaymentPosted transitions DRAFT to POSTED and links the journal batch.
func (r *Repository) SetPaymentPosted(ctx context.Context, companyID, paymentID, batchID int64) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE payments SET status='POSTED', journal_batch_id=$3, updated_at=NOW()
WHERE company_id=$1 AND id=$2 AND status='DRAFT'`, companyID, paymentID, batchID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return errStatusGuard
	}
	return nil
}

// SetPaymentVoid transitions POSTED to VOID.
func (r *Repository) SetPaymentVoid(ctx context.Context, companyID, paymentID int64) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE payments SET status='VOID', updated_at=NOW()
WHERE company_id=$1 AND id=$2 AND status='POSTED'`, companyID, paymentID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return errStatusGuard
	}
	return nil
}
