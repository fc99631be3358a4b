package billing

import (
	"time"

	"github.com/google/uuid"

	"github.com/balanca-pos/balanca/internal/shared"
)

// DocStatus enumerates document lifecycle values. Transitions are
// one-directional: DRAFT to POSTED to VOID, with VOID terminal.
type DocStatus string

const (
	DocStatusDraft  DocStatus = "DRAFT"
	DocStatusPosted DocStatus = "POSTED"
	DocStatusVoid   DocStatus = "VOID"
)

// PaymentStatus is derived from posted payment allocations, never set by hand.
type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "UNPAID"
	PaymentStatusPartial PaymentStatus = "PARTIAL"
	PaymentStatusPaid    PaymentStatus = "PAID"
)

// Journal doc types written by this module.
const (
	DocTypeInvoice = "SALES_INVOICE"
	DocTypePayment = "SALES_PAYMENT"
)

// InvoiceLine is one sellable row. Amount is computed from quantity, unit
// price, and discount at write time and stored with the line.
type InvoiceLine struct {
	ID          int64   `json:"id"`
	InvoiceID   int64   `json:"invoice_id"`
	Description string  `json:"description"`
	Qty         float64 `json:"qty"`
	UnitPrice   float64 `json:"unit_price"`
	DiscountPct float64 `json:"discount_pct"`
	Amount      float64 `json:"amount"`
}

// Invoice is a sales document. DocID doubles as the journal idempotency key,
// so one invoice can never yield two POSTED batches.
type Invoice struct {
	ID             int64         `json:"id"`
	CompanyID      int64         `json:"company_id"`
	OutletID       *int64        `json:"outlet_id,omitempty"`
	DocID          uuid.UUID     `json:"doc_id"`
	Number         string        `json:"number"`
	CustomerID     int64         `json:"customer_id"`
	IssueDate      time.Time     `json:"issue_date"`
	DueDate        time.Time     `json:"due_date"`
	Subtotal       float64       `json:"subtotal"`
	TaxAmount      float64       `json:"tax_amount"`
	GrandTotal     float64       `json:"grand_total"`
	Status         DocStatus     `json:"status"`
	PaymentStatus  PaymentStatus `json:"payment_status"`
	JournalBatchID int64         `json:"journal_batch_id,omitempty"`
	Memo           string        `json:"memo,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	Lines          []InvoiceLine `json:"lines,omitempty"`
}

// Outstanding is the unpaid remainder against the posted invoice.
func (inv Invoice) Outstanding(paid float64) float64 {
	return shared.Round(inv.GrandTotal-paid, 2)
}

// Payment settles part or all of one invoice.
type Payment struct {
	ID             int64     `json:"id"`
	CompanyID      int64     `json:"company_id"`
	InvoiceID      int64     `json:"invoice_id"`
	DocID          uuid.UUID `json:"doc_id"`
	Amount         float64   `json:"amount"`
	Method         string    `json:"method"`
	PaidAt         time.Time `json:"paid_at"`
	Status         DocStatus `json:"status"`
	JournalBatchID int64     `json:"journal_batch_id,omitempty"`
	Note           string    `json:"note,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// InvoiceLineInput is caller-supplied line data.
type InvoiceLineInput struct {
	Description string
	Qty         float64
	UnitPrice   float64
	DiscountPct float64
}

// Amount computes the rounded line amount.
func (l InvoiceLineInput) LineAmount() float64 {
	return shared.Round(l.Qty*l.UnitPrice*(1-l.DiscountPct/100), 2)
}

// CreateInvoiceInput groups fields for a new draft invoice.
type CreateInvoiceInput struct {
	CompanyID  int64
	OutletID   *int64
	Number     string
	CustomerID int64
	IssueDate  time.Time
	DueDate    time.Time
	TaxAmount  float64
	Memo       string
	Lines      []InvoiceLineInput
}

// UpdateInvoiceInput replaces a draft invoice's mutable fields and lines.
type UpdateInvoiceInput struct {
	CompanyID  int64
	InvoiceID  int64
	CustomerID int64
	IssueDate  time.Time
	DueDate    time.Time
	TaxAmount  float64
	Memo       string
	Lines      []InvoiceLineInput
}

// RegisterPaymentInput groups fields for a new draft payment.
type RegisterPaymentInput struct {
	CompanyID int64
	InvoiceID int64
	Amount    float64
	Method    string
	PaidAt    time.Time
	Note      string
}

var (
	// ErrInvoiceNotFound indicates a missing invoice.
	ErrInvoiceNotFound = shared.E(shared.ErrNotFound, "billing: invoice not found")
	// ErrPaymentNotFound indicates a missing payment.
	ErrPaymentNotFound = shared.E(shared.ErrNotFound, "billing: payment not found")
	// ErrDocImmutable indicates a write against a POSTED document.
	ErrDocImmutable = shared.E(shared.ErrConflict, "billing: posted document is immutable")
	// ErrDocVoid indicates an operation against a VOID document.
	ErrDocVoid = shared.E(shared.ErrConflict, "billing: document is void")
	// ErrAlreadyPosted indicates a repeated post of the same document.
	ErrAlreadyPosted = shared.E(shared.ErrConflict, "billing: document already posted")
	// ErrNotPosted indicates the operation requires a POSTED document.
	ErrNotPosted = shared.E(shared.ErrConflict, "billing: document is not posted")
	// ErrInvoiceSettled indicates a void attempt against an invoice with
	// posted payments.
	ErrInvoiceSettled = shared.E(shared.ErrConflict, "billing: invoice has posted payments")
	// ErrMappingNotFound indicates a missing module account mapping.
	ErrMappingNotFound = shared.E(shared.ErrValidation, "billing: account mapping not found")
	// ErrOverpayment indicates a payment exceeding the outstanding balance.
	ErrOverpayment = shared.E(shared.ErrValidation, "billing: payment exceeds outstanding balance")
	// ErrEmptyInvoice indicates an invoice without lines.
	ErrEmptyInvoice = shared.E(shared.ErrValidation, "billing: invoice requires at least one line")
)

func validateLines(lines []InvoiceLineInput) error {
	if len(lines) == 0 {
		return ErrEmptyInvoice
	}
	for _, l := range lines {
		if l.Qty <= 0 {
			return shared.E(shared.ErrValidation, "billing: line quantity must be positive")
		}
		if l.UnitPrice < 0 {
			return shared.E(shared.ErrValidation, "billing: line unit price must not be negative")
		}
		if l.DiscountPct < 0 || l.DiscountPct > 100 {
			return shared.E(shared.ErrValidation, "billing: line discount must be within 0-100")
		}
	}
	return nil
}

// computeTotals derives subtotal and grand total from the lines and tax.
func computeTotals(lines []InvoiceLineInput, tax float64) (subtotal, grand float64) {
	for _, l := range lines {
		subtotal += l.LineAmount()
	}
	subtotal = shared.Round(subtotal, 2)
	grand = shared.Round(subtotal+tax, 2)
	return subtotal, grand
}
