package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/balanca-pos/balanca/internal/ledger/journal"
	"github.com/balanca-pos/balanca/internal/shared"
)

// RepositoryPort abstracts invoice and payment persistence.
type RepositoryPort interface {
	GetInvoice(ctx context.Context, companyID, invoiceID int64) (Invoice, error)
	ListInvoices(ctx context.Context, companyID int64, page shared.Pagination) ([]Invoice, error)
	CountInvoices(ctx context.Context, companyID int64) (int, error)
	CreateInvoice(ctx context.Context, in CreateInvoiceInput, docID uuid.UUID, subtotal, grand float64) (Invoice, error)
	ReplaceInvoice(ctx context.Context, in UpdateInvoiceInput, subtotal, grand float64) (Invoice, error)
	SetInvoicePosted(ctx context.Context, companyID, invoiceID, batchID int64) error
	SetInvoiceVoid(ctx context.Context, companyID, invoiceID int64) error
	SetInvoicePaymentStatus(ctx context.Context, companyID, invoiceID int64, status PaymentStatus) error
	SumPostedPayments(ctx context.Context, invoiceID int64) (float64, error)
	GetPayment(ctx context.Context, companyID, paymentID int64) (Payment, error)
	ListPayments(ctx context.Context, companyID, invoiceID int64) ([]Payment, error)
	CreatePayment(ctx context.Context, in RegisterPaymentInput, docID uuid.UUID) (Payment, error)
	SetPaymentPosted(ctx context.Context, companyID, paymentID, batchID int64) error
	SetPaymentVoid(ctx context.Context, companyID, paymentID int64) error
}

// JournalPort is the slice of the posting engine the controller delegates to.
type JournalPort interface {
	Post(ctx context.Context, input journal.PostingInput) (journal.Batch, error)
	Reverse(ctx context.Context, input journal.ReverseInput) (journal.Batch, error)
	FindByDoc(ctx context.Context, companyID int64, docType string, docID uuid.UUID) (journal.Batch, error)
}

// AuditPort records document lifecycle events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service drives DRAFT to POSTED to VOID transitions for invoices and
// payments, delegating the financial side effects to the posting engine.
type Service struct {
	repo     RepositoryPort
	journal  JournalPort
	mappings MappingRepository
	audit    AuditPort
}

// NewService constructs the billing controller.
func NewService(repo RepositoryPort, journalSvc JournalPort, mappings MappingRepository, audit AuditPort) *Service {
	return &Service{repo: repo, journal: journalSvc, mappings: mappings, audit: audit}
}

// CreateInvoice validates lines and stores a DRAFT invoice.
func (s *Service) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (Invoice, error) {
	if in.CustomerID == 0 {
		return Invoice{}, shared.E(shared.ErrValidation, "billing: customer required")
	}
	if in.TaxAmount < 0 {
		return Invoice{}, shared.E(shared.ErrValidation, "billing: tax must not be negative")
	}
	if err := validateLines(in.Lines); err != nil {
		return Invoice{}, err
	}
	subtotal, grand := computeTotals(in.Lines, in.TaxAmount)
	return s.repo.CreateInvoice(ctx, in, uuid.New(), subtotal, grand)
}

// UpdateInvoice replaces a DRAFT invoice's fields and lines. Posted and void
// documents reject edits.
func (s *Service) UpdateInvoice(ctx context.Context, in UpdateInvoiceInput) (Invoice, error) {
	if in.TaxAmount < 0 {
		return Invoice{}, shared.E(shared.ErrValidation, "billing: tax must not be negative")
	}
	if err := validateLines(in.Lines); err != nil {
		return Invoice{}, err
	}
	subtotal, grand := computeTotals(in.Lines, in.TaxAmount)
	inv, err := s.repo.ReplaceInvoice(ctx, in, subtotal, grand)
	if err != nil {
		if IsStatusGuard(err) {
			return Invoice{}, s.invoiceConflict(ctx, in.CompanyID, in.InvoiceID)
		}
		return Invoice{}, err
	}
	return inv, nil
}

// GetInvoice fetches one invoice with lines.
func (s *Service) GetInvoice(ctx context.Context, companyID, invoiceID int64) (Invoice, error) {
	return s.repo.GetInvoice(ctx, companyID, invoiceID)
}

// ListInvoices returns a page of invoice headers.
func (s *Service) ListInvoices(ctx context.Context, companyID int64, page, perPage int) ([]Invoice, shared.Pagination, error) {
	total, err := s.repo.CountInvoices(ctx, companyID)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	pagination := shared.NewPagination(page, perPage, total)
	rows, err := s.repo.ListInvoices(ctx, companyID, pagination)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return rows, pagination, nil
}

// PostInvoice re-validates the draft and posts it as a journal batch: debit
// receivable for the grand total, credit revenue for the subtotal, credit tax
// for the tax amount. The invoice DocID is the idempotency key, so a raced
// double post surfaces as a conflict rather than a second batch.
func (s *Service) PostInvoice(ctx context.Context, companyID, invoiceID, actorID int64) (Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, companyID, invoiceID)
	if err != nil {
		return Invoice{}, err
	}
	switch inv.Status {
	case DocStatusPosted:
		return Invoice{}, ErrAlreadyPosted
	case DocStatusVoid:
		return Invoice{}, ErrDocVoid
	}
	lines := make([]InvoiceLineInput, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		lines = append(lines, InvoiceLineInput{Description: l.Description, Qty: l.Qty, UnitPrice: l.UnitPrice, DiscountPct: l.DiscountPct})
	}
	if err := validateLines(lines); err != nil {
		return Invoice{}, err
	}
	subtotal, grand := computeTotals(lines, inv.TaxAmount)

	batchLines, err := s.invoiceBatchLines(ctx, inv, subtotal, grand)
	if err != nil {
		return Invoice{}, err
	}
	batch, err := s.journal.Post(ctx, journal.PostingInput{
		CompanyID: companyID,
		OutletID:  inv.OutletID,
		DocType:   DocTypeInvoice,
		DocID:     inv.DocID,
		Memo:      fmt.Sprintf("Invoice %s", inv.Number),
		PostedBy:  actorID,
		Lines:     batchLines,
	})
	if errors.Is(err, journal.ErrAlreadyPosted) {
		// The batch exists but the invoice is still DRAFT: an earlier
		// attempt died between the two writes. Finish the status flip
		// against the existing batch instead of wedging the invoice.
		batch, err = s.journal.FindByDoc(ctx, companyID, DocTypeInvoice, inv.DocID)
	}
	if err != nil {
		return Invoice{}, err
	}
	if err := s.repo.SetInvoicePosted(ctx, companyID, invoiceID, batch.ID); err != nil {
		if IsStatusGuard(err) {
			if current, gerr := s.repo.GetInvoice(ctx, companyID, invoiceID); gerr == nil && current.Status == DocStatusVoid {
				return Invoice{}, ErrDocVoid
			}
			return Invoice{}, ErrAlreadyPosted
		}
		return Invoice{}, err
	}
	s.recordAudit(ctx, companyID, actorID, "invoice.post", "invoice", invoiceID, map[string]any{"batch_id": batch.ID, "grand_total": grand})
	return s.repo.GetInvoice(ctx, companyID, invoiceID)
}

func (s *Service) invoiceBatchLines(ctx context.Context, inv Invoice, subtotal, grand float64) ([]journal.PostingLineInput, error) {
	receivable, err := s.mappings.Get(ctx, inv.CompanyID, MappingModuleSales, MappingKeyReceivable)
	if err != nil {
		return nil, err
	}
	revenue, err := s.mappings.Get(ctx, inv.CompanyID, MappingModuleSales, MappingKeyRevenue)
	if err != nil {
		return nil, err
	}
	lines := []journal.PostingLineInput{
		{AccountID: receivable.AccountID, Debit: grand, Description: fmt.Sprintf("AR invoice %s", inv.Number)},
		{AccountID: revenue.AccountID, Credit: subtotal, Description: "Sales revenue"},
	}
	if inv.TaxAmount > 0 {
		tax, err := s.mappings.Get(ctx, inv.CompanyID, MappingModuleSales, MappingKeyTax)
		if err != nil {
			return nil, err
		}
		lines = append(lines, journal.PostingLineInput{AccountID: tax.AccountID, Credit: inv.TaxAmount, Description: "Sales tax payable"})
	}
	return lines, nil
}

// VoidInvoice reverses the posted batch and marks the invoice VOID. Invoices
// with posted payments must have those payments voided first.
func (s *Service) VoidInvoice(ctx context.Context, companyID, invoiceID, actorID int64) (Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, companyID, invoiceID)
	if err != nil {
		return Invoice{}, err
	}
	switch inv.Status {
	case DocStatusDraft:
		return Invoice{}, ErrNotPosted
	case DocStatusVoid:
		return Invoice{}, ErrDocVoid
	}
	paid, err := s.repo.SumPostedPayments(ctx, invoiceID)
	if err != nil {
		return Invoice{}, err
	}
	if paid > 0 {
		return Invoice{}, ErrInvoiceSettled
	}
	if _, err := s.journal.Reverse(ctx, journal.ReverseInput{
		CompanyID: companyID,
		BatchID:   inv.JournalBatchID,
		ActorID:   actorID,
		Memo:      fmt.Sprintf("Void invoice %s", inv.Number),
	}); err != nil {
		return Invoice{}, err
	}
	if err := s.repo.SetInvoiceVoid(ctx, companyID, invoiceID); err != nil {
		if IsStatusGuard(err) {
			return Invoice{}, s.invoiceConflict(ctx, companyID, invoiceID)
		}
		return Invoice{}, err
	}
	s.recordAudit(ctx, companyID, actorID, "invoice.void", "invoice", invoiceID, nil)
	return s.repo.GetInvoice(ctx, companyID, invoiceID)
}

// RegisterPayment records a DRAFT payment against a posted invoice. The
// amount must not exceed the outstanding balance.
func (s *Service) RegisterPayment(ctx context.Context, in RegisterPaymentInput) (Payment, error) {
	if in.Amount <= 0 {
		return Payment{}, shared.E(shared.ErrValidation, "billing: payment amount must be positive")
	}
	if in.Method == "" {
		return Payment{}, shared.E(shared.ErrValidation, "billing: payment method required")
	}
	inv, err := s.repo.GetInvoice(ctx, in.CompanyID, in.InvoiceID)
	if err != nil {
		return Payment{}, err
	}
	if inv.Status != DocStatusPosted {
		return Payment{}, ErrNotPosted
	}
	paid, err := s.repo.SumPostedPayments(ctx, in.InvoiceID)
	if err != nil {
		return Payment{}, err
	}
	if in.Amount > inv.Outstanding(paid)+shared.BalanceTolerance {
		return Payment{}, ErrOverpayment
	}
	if in.PaidAt.IsZero() {
		in.PaidAt = time.Now()
	}
	return s.repo.CreatePayment(ctx, in, uuid.New())
}

// PostPayment posts the payment batch: debit the cash or bank account mapped
// to the payment method, credit receivable. The invoice payment status is
// re-derived afterwards.
func (s *Service) PostPayment(ctx context.Context, companyID, paymentID, actorID int64) (Payment, error) {
	payment, err := s.repo.GetPayment(ctx, companyID, paymentID)
	if err != nil {
		return Payment{}, err
	}
	switch payment.Status {
	case DocStatusPosted:
		return Payment{}, ErrAlreadyPosted
	case DocStatusVoid:
		return Payment{}, ErrDocVoid
	}
	inv, err := s.repo.GetInvoice(ctx, companyID, payment.InvoiceID)
	if err != nil {
		return Payment{}, err
	}
	if inv.Status != DocStatusPosted {
		return Payment{}, ErrNotPosted
	}
	cash, err := s.mappings.Get(ctx, companyID, MappingModulePayments, payment.Method)
	if err != nil {
		return Payment{}, err
	}
	receivable, err := s.mappings.Get(ctx, companyID, MappingModuleSales, MappingKeyReceivable)
	if err != nil {
		return Payment{}, err
	}
	batch, err := s.journal.Post(ctx, journal.PostingInput{
		CompanyID: companyID,
		OutletID:  inv.OutletID,
		DocType:   DocTypePayment,
		DocID:     payment.DocID,
		Memo:      fmt.Sprintf("Payment for invoice %s", inv.Number),
		PostedBy:  actorID,
		Lines: []journal.PostingLineInput{
			{AccountID: cash.AccountID, Debit: payment.Amount, Description: "Payment received"},
			{AccountID: receivable.AccountID, Credit: payment.Amount, Description: fmt.Sprintf("Settle invoice %s", inv.Number)},
		},
	})
	if errors.Is(err, journal.ErrAlreadyPosted) {
		// Recover a payment whose batch committed but whose status flip
		// was lost; same window as the invoice path.
		batch, err = s.journal.FindByDoc(ctx, companyID, DocTypePayment, payment.DocID)
	}
	if err != nil {
		return Payment{}, err
	}
	if err := s.repo.SetPaymentPosted(ctx, companyID, paymentID, batch.ID); err != nil {
		if IsStatusGuard(err) {
			return Payment{}, ErrAlreadyPosted
		}
		return Payment{}, err
	}
	if err := s.refreshPaymentStatus(ctx, inv); err != nil {
		return Payment{}, err
	}
	s.recordAudit(ctx, companyID, actorID, "payment.post", "payment", paymentID, map[string]any{"batch_id": batch.ID, "amount": payment.Amount})
	return s.repo.GetPayment(ctx, companyID, paymentID)
}

// VoidPayment reverses the payment batch and re-derives the invoice status.
func (s *Service) VoidPayment(ctx context.Context, companyID, paymentID, actorID int64) (Payment, error) {
	payment, err := s.repo.GetPayment(ctx, companyID, paymentID)
	if err != nil {
		return Payment{}, err
	}
	if payment.Status != DocStatusPosted {
		return Payment{}, ErrNotPosted
	}
	if _, err := s.journal.Reverse(ctx, journal.ReverseInput{
		CompanyID: companyID,
		BatchID:   payment.JournalBatchID,
		ActorID:   actorID,
		Memo:      fmt.Sprintf("Void payment %d", paymentID),
	}); err != nil {
		return Payment{}, err
	}
	if err := s.repo.SetPaymentVoid(ctx, companyID, paymentID); err != nil {
		if IsStatusGuard(err) {
			return Payment{}, ErrDocVoid
		}
		return Payment{}, err
	}
	inv, err := s.repo.GetInvoice(ctx, companyID, payment.InvoiceID)
	if err != nil {
		return Payment{}, err
	}
	if err := s.refreshPaymentStatus(ctx, inv); err != nil {
		return Payment{}, err
	}
	s.recordAudit(ctx, companyID, actorID, "payment.void", "payment", paymentID, nil)
	return s.repo.GetPayment(ctx, companyID, paymentID)
}

// ListPayments returns the invoice's payments.
func (s *Service) ListPayments(ctx context.Context, companyID, invoiceID int64) ([]Payment, error) {
	if _, err := s.repo.GetInvoice(ctx, companyID, invoiceID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, companyID, invoiceID)
}

func (s *Service) refreshPaymentStatus(ctx context.Context, inv Invoice) error {
	paid, err := s.repo.SumPostedPayments(ctx, inv.ID)
	if err != nil {
		return err
	}
	return s.repo.SetInvoicePaymentStatus(ctx, inv.CompanyID, inv.ID, DerivePaymentStatus(inv.GrandTotal, paid))
}

// DerivePaymentStatus maps the paid total against the grand total.
func DerivePaymentStatus(grandTotal, paid float64) PaymentStatus {
	switch {
	case paid <= 0:
		return PaymentStatusUnpaid
	case paid+shared.BalanceTolerance >= grandTotal:
		return PaymentStatusPaid
	default:
		return PaymentStatusPartial
	}
}

// invoiceConflict re-reads the invoice after a guarded update failed and
// reports the precise conflict.
func (s *Service) invoiceConflict(ctx context.Context, companyID, invoiceID int64) error {
	inv, err := s.repo.GetInvoice(ctx, companyID, invoiceID)
	if err != nil {
		return err
	}
	switch inv.Status {
	case DocStatusPosted:
		return ErrDocImmutable
	case DocStatusVoid:
		return ErrDocVoid
	default:
		return ErrNotPosted
	}
}

func (s *Service) recordAudit(ctx context.Context, companyID, actorID int64, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		CompanyID: companyID,
		ActorID:   actorID,
		Action:    action,
		Entity:    entity,
		EntityID:  fmt.Sprintf("%d", entityID),
		Meta:      meta,
		At:        time.Now(),
	})
}
