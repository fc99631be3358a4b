package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/balanca-pos/balanca/internal/ledger/accounts"
	"github.com/balanca-pos/balanca/internal/shared"
)

// RepositoryPort abstracts transactional posting behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBatch(ctx context.Context, companyID, batchID int64) (Batch, error)
	FindByDoc(ctx context.Context, companyID int64, docType string, docID uuid.UUID) (Batch, error)
	List(ctx context.Context, companyID int64, page shared.Pagination) ([]Batch, error)
	Count(ctx context.Context, companyID int64) (int, error)
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheBuster invalidates cached reports after postings change balances.
type CacheBuster interface {
	Bust(ctx context.Context, companyID int64)
}

// Service coordinates posting, voiding, and reversing journal batches.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	cache CacheBuster
	now   func() time.Time
}

// NewService constructs the posting engine.
func NewService(repo RepositoryPort, audit AuditPort, cache CacheBuster) *Service {
	return &Service{repo: repo, audit: audit, cache: cache, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Post validates and atomically commits a balanced journal batch. Every line
// account is re-checked inside the transaction, and the unique
// (company, doc_type, doc_id) index turns a concurrent double submission into
// ErrAlreadyPosted instead of a second batch.
func (s *Service) Post(ctx context.Context, input PostingInput) (Batch, error) {
	if err := input.Validate(); err != nil {
		return Batch{}, err
	}
	var batch Batch
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		seen := make(map[int64]bool, len(input.Lines))
		for _, line := range input.Lines {
			if seen[line.AccountID] {
				continue
			}
			seen[line.AccountID] = true
			account, err := tx.GetAccountForPosting(ctx, input.CompanyID, line.AccountID)
			if err != nil {
				return err
			}
			if err := accounts.EnsurePostable(account); err != nil {
				return err
			}
		}
		inserted, err := tx.InsertBatch(ctx, input)
		if err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, inserted.ID, input.Lines); err != nil {
			return err
		}
		inserted.Lines = toLines(inserted.ID, input.Lines)
		batch = inserted
		return nil
	})
	if err != nil {
		return Batch{}, err
	}
	if s.cache != nil {
		s.cache.Bust(ctx, input.CompanyID)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			CompanyID: input.CompanyID,
			ActorID:   input.PostedBy,
			Action:    "journal.post",
			Entity:    "journal_batch",
			EntityID:  fmt.Sprintf("%d", batch.ID),
			Meta: map[string]any{
				"doc_type": input.DocType,
				"doc_id":   input.DocID.String(),
			},
			At: s.now(),
		})
	}
	return batch, nil
}

// Void marks a posted batch VOID. Lines stay in place for the audit trail;
// only reports exclude them.
func (s *Service) Void(ctx context.Context, input VoidInput) (Batch, error) {
	if input.BatchID == 0 {
		return Batch{}, shared.E(shared.ErrValidation, "journal: batch id required")
	}
	var batch Batch
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetBatchWithLines(ctx, input.CompanyID, input.BatchID)
		if err != nil {
			return err
		}
		if current.Status != BatchStatusPosted {
			return ErrInvalidStatus
		}
		if err := tx.UpdateBatchStatus(ctx, input.CompanyID, current.ID, BatchStatusVoid); err != nil {
			return err
		}
		batch = current
		batch.Status = BatchStatusVoid
		return nil
	})
	if err != nil {
		return Batch{}, err
	}
	if s.cache != nil {
		s.cache.Bust(ctx, input.CompanyID)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			CompanyID: input.CompanyID,
			ActorID:   input.ActorID,
			Action:    "journal.void",
			Entity:    "journal_batch",
			EntityID:  fmt.Sprintf("%d", batch.ID),
			Meta:      map[string]any{"reason": input.Reason},
			At:        s.now(),
		})
	}
	return batch, nil
}

// Reverse posts a compensating batch with swapped legs and voids the
// original in the same transaction.
func (s *Service) Reverse(ctx context.Context, input ReverseInput) (Batch, error) {
	if input.BatchID == 0 {
		return Batch{}, shared.E(shared.ErrValidation, "journal: batch id required")
	}
	var reversal Batch
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetBatchWithLines(ctx, input.CompanyID, input.BatchID)
		if err != nil {
			return err
		}
		if original.Status != BatchStatusPosted {
			return ErrInvalidStatus
		}
		posting := PostingInput{
			CompanyID: original.CompanyID,
			OutletID:  original.OutletID,
			DocType:   original.DocType + ":REVERSAL",
			DocID:     uuid.New(),
			Memo:      defaultReversalMemo(input.Memo, original.ID),
			PostedBy:  input.ActorID,
			Lines:     reverseLines(original.Lines),
		}
		inserted, err := tx.InsertBatch(ctx, posting)
		if err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, inserted.ID, posting.Lines); err != nil {
			return err
		}
		if err := tx.UpdateBatchStatus(ctx, input.CompanyID, original.ID, BatchStatusVoid); err != nil {
			return err
		}
		inserted.Lines = toLines(inserted.ID, posting.Lines)
		reversal = inserted
		return nil
	})
	if err != nil {
		return Batch{}, err
	}
	if s.cache != nil {
		s.cache.Bust(ctx, input.CompanyID)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			CompanyID: input.CompanyID,
			ActorID:   input.ActorID,
			Action:    "journal.reverse",
			Entity:    "journal_batch",
			EntityID:  fmt.Sprintf("%d", input.BatchID),
			Meta:      map[string]any{"reversal_id": reversal.ID},
			At:        s.now(),
		})
	}
	return reversal, nil
}

// GetBatch returns a batch with lines.
func (s *Service) GetBatch(ctx context.Context, companyID, batchID int64) (Batch, error) {
	return s.repo.GetBatch(ctx, companyID, batchID)
}

// FindByDoc returns the POSTED batch for a source document or
// ErrBatchNotFound.
func (s *Service) FindByDoc(ctx context.Context, companyID int64, docType string, docID uuid.UUID) (Batch, error) {
	return s.repo.FindByDoc(ctx, companyID, docType, docID)
}

// List returns a page of batches plus pagination metadata.
func (s *Service) List(ctx context.Context, companyID int64, page, perPage int) ([]Batch, shared.Pagination, error) {
	total, err := s.repo.Count(ctx, companyID)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	pagination := shared.NewPagination(page, perPage, total)
	batches, err := s.repo.List(ctx, companyID, pagination)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return batches, pagination, nil
}

func reverseLines(lines []Line) []PostingLineInput {
	out := make([]PostingLineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, PostingLineInput{
			AccountID:   line.AccountID,
			Debit:       line.Credit,
			Credit:      line.Debit,
			Description: line.Description,
		})
	}
	return out
}

func toLines(batchID int64, lines []PostingLineInput) []Line {
	out := make([]Line, 0, len(lines))
	for no, line := range lines {
		out = append(out, Line{
			BatchID:     batchID,
			LineNo:      no + 1,
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	return out
}

func defaultReversalMemo(memo string, batchID int64) string {
	if memo != "" {
		return memo
	}
	return fmt.Sprintf("Reversal of batch %d", batchID)
}
