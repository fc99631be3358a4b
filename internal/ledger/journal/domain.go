package journal

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/balanca-pos/balanca/internal/shared"
)

// BatchStatus enumerates journal batch lifecycle values.
type BatchStatus string

const (
	BatchStatusPosted BatchStatus = "POSTED"
	BatchStatusVoid   BatchStatus = "VOID"
)

// Batch captures one atomic, balanced set of debit/credit lines. A batch is
// immutable once committed; corrections are compensating batches, never edits.
type Batch struct {
	ID        int64
	CompanyID int64
	OutletID  *int64
	DocType   string
	DocID     uuid.UUID
	Memo      string
	PostedBy  int64
	PostedAt  time.Time
	Status    BatchStatus
	CreatedAt time.Time
	UpdatedAt time.Time
	Lines     []Line
}

// Line stores a debit or credit amount for an account. Exactly one leg is
// nonzero per line.
type Line struct {
	ID          int64
	BatchID     int64
	LineNo      int
	AccountID   int64
	Debit       float64
	Credit      float64
	Description string
}

// PostingLineInput describes a journal line for a posting request.
type PostingLineInput struct {
	AccountID   int64
	Debit       float64
	Credit      float64
	Description string
}

// PostingInput groups fields required to create a journal batch.
type PostingInput struct {
	CompanyID int64
	OutletID  *int64
	DocType   string
	DocID     uuid.UUID
	Memo      string
	PostedBy  int64
	Lines     []PostingLineInput
}

// VoidInput wraps parameters for voiding.
type VoidInput struct {
	CompanyID int64
	BatchID   int64
	ActorID   int64
	Reason    string
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	CompanyID int64
	BatchID   int64
	ActorID   int64
	Memo      string
}

var (
	// ErrUnbalanced indicates debit != credit beyond tolerance.
	ErrUnbalanced = shared.E(shared.ErrValidation, "journal: lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = shared.E(shared.ErrValidation, "journal: batch requires at least two lines")
	// ErrAlreadyPosted indicates the document already has a posted batch.
	ErrAlreadyPosted = shared.E(shared.ErrConflict, "journal: document already posted")
	// ErrBatchNotFound indicates a missing batch.
	ErrBatchNotFound = shared.E(shared.ErrNotFound, "journal: batch not found")
	// ErrInvalidStatus indicates the transition cannot proceed.
	ErrInvalidStatus = shared.E(shared.ErrConflict, "journal: invalid status transition")
)

// Validate ensures posting input meets the balance invariants before any
// storage work begins. The same rules hold regardless of which document type
// generated the lines.
func (in PostingInput) Validate() error {
	if in.CompanyID == 0 {
		return shared.E(shared.ErrValidation, "journal: company required")
	}
	if in.DocType == "" {
		return shared.E(shared.ErrValidation, "journal: doc type required")
	}
	if in.DocID == uuid.Nil {
		return shared.E(shared.ErrValidation, "journal: doc id required")
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	var debit, credit float64
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("journal: line %d missing account: %w", idx, shared.ErrValidation)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return fmt.Errorf("journal: line %d negative amount: %w", idx, shared.ErrValidation)
		}
		if line.Debit > 0 && line.Credit > 0 {
			return fmt.Errorf("journal: line %d cannot be both debit and credit: %w", idx, shared.ErrValidation)
		}
		if line.Debit == 0 && line.Credit == 0 {
			return fmt.Errorf("journal: line %d has no amount: %w", idx, shared.ErrValidation)
		}
		debit += line.Debit
		credit += line.Credit
	}
	if !shared.Balanced(debit, credit) {
		return ErrUnbalanced
	}
	return nil
}
