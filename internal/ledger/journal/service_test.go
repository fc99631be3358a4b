package journal

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/balanca-pos/balanca/internal/ledger/accounts"
	"github.com/balanca-pos/balanca/internal/shared"
)

type memoryJournalRepo struct {
	accounts map[int64]accounts.Account
	batches  map[int64]*Batch
	docKeys  map[string]int64
	nextID   int64
}

func newMemoryJournalRepo() *memoryJournalRepo {
	return &memoryJournalRepo{
		accounts: make(map[int64]accounts.Account),
		batches:  make(map[int64]*Batch),
		docKeys:  make(map[string]int64),
	}
}

func (r *memoryJournalRepo) addAccount(a accounts.Account) {
	r.accounts[a.ID] = a
}

func (r *memoryJournalRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	stage := &memoryTx{repo: r, staged: make(map[int64]*Batch), voided: make(map[int64]bool)}
	if err := fn(ctx, stage); err != nil {
		return err
	}
	stage.commit()
	return nil
}

func (r *memoryJournalRepo) GetBatch(ctx context.Context, companyID, batchID int64) (Batch, error) {
	b, ok := r.batches[batchID]
	if !ok || b.CompanyID != companyID {
		return Batch{}, ErrBatchNotFound
	}
	return *b, nil
}

func (r *memoryJournalRepo) FindByDoc(ctx context.Context, companyID int64, docType string, docID uuid.UUID) (Batch, error) {
	id, ok := r.docKeys[docKey(companyID, docType, docID)]
	if !ok {
		return Batch{}, ErrBatchNotFound
	}
	return r.GetBatch(ctx, companyID, id)
}

func (r *memoryJournalRepo) List(ctx context.Context, companyID int64, page shared.Pagination) ([]Batch, error) {
	var out []Batch
	for _, b := range r.batches {
		if b.CompanyID == companyID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *memoryJournalRepo) Count(ctx context.Context, companyID int64) (int, error) {
	n := 0
	for _, b := range r.batches {
		if b.CompanyID == companyID {
			n++
		}
	}
	return n, nil
}

// memoryTx buffers writes so a failed posting leaves nothing behind, matching
// transactional rollback behaviour.
type memoryTx struct {
	repo   *memoryJournalRepo
	staged map[int64]*Batch
	voided map[int64]bool
}

func (t *memoryTx) commit() {
	for id, b := range t.staged {
		t.repo.batches[id] = b
		if b.Status == BatchStatusPosted {
			t.repo.docKeys[docKey(b.CompanyID, b.DocType, b.DocID)] = id
		}
	}
	for id := range t.voided {
		if b, ok := t.repo.batches[id]; ok {
			b.Status = BatchStatusVoid
			delete(t.repo.docKeys, docKey(b.CompanyID, b.DocType, b.DocID))
		}
	}
}

func docKey(companyID int64, docType string, docID uuid.UUID) string {
	return fmt.Sprintf("%d:%s:%s", companyID, docType, docID)
}

func (t *memoryTx) GetAccountForPosting(ctx context.Context, companyID, accountID int64) (accounts.Account, error) {
	a, ok := t.repo.accounts[accountID]
	if !ok || a.CompanyID != companyID {
		return accounts.Account{}, accounts.ErrAccountNotFound
	}
	return a, nil
}

func (t *memoryTx) InsertBatch(ctx context.Context, in PostingInput) (Batch, error) {
	if _, dup := t.repo.docKeys[docKey(in.CompanyID, in.DocType, in.DocID)]; dup {
		return Batch{}, ErrAlreadyPosted
	}
	t.repo.nextID++
	b := &Batch{
		ID:        t.repo.nextID,
		CompanyID: in.CompanyID,
		OutletID:  in.OutletID,
		DocType:   in.DocType,
		DocID:     in.DocID,
		Memo:      in.Memo,
		PostedBy:  in.PostedBy,
		PostedAt:  time.Now(),
		Status:    BatchStatusPosted,
	}
	t.staged[b.ID] = b
	return *b, nil
}

func (t *memoryTx) InsertLines(ctx context.Context, batchID int64, lines []PostingLineInput) error {
	b := t.staged[batchID]
	for i, l := range lines {
		b.Lines = append(b.Lines, Line{
			ID:          int64(i + 1),
			BatchID:     batchID,
			LineNo:      i + 1,
			AccountID:   l.AccountID,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Description: l.Description,
		})
	}
	return nil
}

func (t *memoryTx) GetBatchWithLines(ctx context.Context, companyID, batchID int64) (Batch, error) {
	return t.repo.GetBatch(ctx, companyID, batchID)
}

func (t *memoryTx) UpdateBatchStatus(ctx context.Context, companyID, batchID int64, status BatchStatus) error {
	if _, ok := t.repo.batches[batchID]; !ok {
		return ErrBatchNotFound
	}
	if status == BatchStatusVoid {
		t.voided[batchID] = true
	}
	return nil
}

type recordingCache struct {
	busted []int64
}

func (c *recordingCache) Bust(ctx context.Context, companyID int64) {
	c.busted = append(c.busted, companyID)
}

func seedAccounts(repo *memoryJournalRepo) {
	repo.addAccount(accounts.Account{ID: 10, CompanyID: 1, Code: "1000", Name: "Cash", NormalBalance: accounts.NormalDebit, ReportGroup: accounts.ReportGroupBalanceSheet, IsActive: true})
	repo.addAccount(accounts.Account{ID: 20, CompanyID: 1, Code: "4000", Name: "Sales", NormalBalance: accounts.NormalCredit, ReportGroup: accounts.ReportGroupProfitLoss, IsActive: true})
	repo.addAccount(accounts.Account{ID: 30, CompanyID: 1, Code: "1", Name: "Assets", IsGroup: true, NormalBalance: accounts.NormalDebit, ReportGroup: accounts.ReportGroupBalanceSheet, IsActive: true})
	repo.addAccount(accounts.Account{ID: 40, CompanyID: 1, Code: "1010", Name: "Old Bank", NormalBalance: accounts.NormalDebit, ReportGroup: accounts.ReportGroupBalanceSheet, IsActive: false})
}

func balancedInput(docID uuid.UUID) PostingInput {
	return PostingInput{
		CompanyID: 1,
		DocType:   "MANUAL_JOURNAL",
		DocID:     docID,
		Memo:      "Cash sale",
		PostedBy:  7,
		Lines: []PostingLineInput{
			{AccountID: 10, Debit: 150, Description: "cash"},
			{AccountID: 20, Credit: 150, Description: "revenue"},
		},
	}
}

func TestPostCommitsBalancedBatch(t *testing.T) {
	repo := newMemoryJournalRepo()
	seedAccounts(repo)
	cache := &recordingCache{}
	svc := NewService(repo, nil, cache)

	batch, err := svc.Post(context.Background(), balancedInput(uuid.New()))
	require.NoError(t, err)
	require.Equal(t, BatchStatusPosted, batch.Status)
	require.Len(t, batch.Lines, 2)
	require.Equal(t, 1, batch.Lines[0].LineNo)
	require.Equal(t, 2, batch.Lines[1].LineNo)

	stored, err := svc.GetBatch(context.Background(), 1, batch.ID)
	require.NoError(t, err)
	require.Equal(t, batch.ID, stored.ID)
	require.Equal(t, []int64{1}, cache.busted)
}

func TestPostRejectsUnbalancedLines(t *testing.T) {
	repo := newMemoryJournalRepo()
	seedAccounts(repo)
	svc := NewService(repo, nil, nil)

	input := balancedInput(uuid.New())
	input.Lines[1].Credit = 149.50
	_, err := svc.Post(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.batches)
}

func TestPostToleratesSubCentImbalance(t *testing.T) {
	repo := newMemoryJournalRepo()
	seedAccounts(repo)
	svc := NewService(repo, nil, nil)

	input := balancedInput(uuid.New())
	input.Lines[0].Debit = 100.001
	input.Lines[1].Credit = 100.00
	_, err := svc.Post(context.Background(), input)
	require.NoError(t, err)
}

func TestPostRejectsSingleLine(t *testing.T) {
	repo := newMemoryJournalRepo()
	seedAccounts(repo)
	svc := NewService(repo, nil, nil)

	input := balancedInput(uuid.New())
	input.Lines = input.Lines[:1]
	_, err := svc.Post(context.Background(), input)
	require.ErrorIs(t, err, ErrTooFewLines)
}

func TestPostRejectsBothLegsOnOneLine(t *testing.T) {
	repo := newMemoryJournalRepo()
	seedAccounts(repo)
	svc := NewService(repo, nil, nil)

	input := balancedInput(uuid.New())
	input.Lines[0].Credit = 150
	input.Lines[0].Debit = 150
	_, err := svc.Post(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPostRejectsGroupAndInactiveAccounts(t *testing.T) {
	repo := newMemoryJournalRepo()
	seedAccounts(repo)
	svc := NewService(repo, nil, nil)

	group := balancedInput(uuid.New())
	group.Lines[0].AccountID = 30
	_, err := svc.Post(context.Background(), group)
	require.ErrorIs(t, err, accounts.ErrGroupAccount)
	require.Empty(t, repo.batches, "failed posting must leave no batch behind")

	inactive := balancedInput(uuid.New())
	inactive.Lines[0].AccountID = 40
	_, err = svc.Post(context.Background(), inactive)
	require.ErrorIs(t, err, accounts.ErrAccountInactive)
	require.Empty(t, repo.batches)
}

func TestPostSameDocTwiceConflicts(t *testing.T) {
	repo := newMemoryJournalRepo()
	seedAccounts(repo)
	svc := NewService(repo, nil, nil)

	docID := uuid.New()
	_, err := svc.Post(context.Background(), balancedInput(docID))
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), balancedInput(docID))
	require.ErrorIs(t, err, ErrAlreadyPosted)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Len(t, repo.batches, 1)
}

func TestVoidPostedBatch(t *testing.T) {
	repo := newMemoryJournalRepo()
	seedAccounts(repo)
	svc := NewService(repo, nil, nil)

	batch, err := svc.Post(context.Background(), balancedInput(uuid.New()))
	require.NoError(t, err)

	voided, err := svc.Void(context.Background(), VoidInput{CompanyID: 1, BatchID: batch.ID, ActorID: 7, Reason: "entry error"})
	require.NoError(t, err)
	require.Equal(t, BatchStatusVoid, voided.Status)

	_, err = svc.Void(context.Background(), VoidInput{CompanyID: 1, BatchID: batch.ID, ActorID: 7})
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestReverseSwapsLegsAndVoidsOriginal(t *testing.T) {
	repo := newMemoryJournalRepo()
	seedAccounts(repo)
	svc := NewService(repo, nil, nil)

	original, err := svc.Post(context.Background(), balancedInput(uuid.New()))
	require.NoError(t, err)

	reversal, err := svc.Reverse(context.Background(), ReverseInput{CompanyID: 1, BatchID: original.ID, ActorID: 7})
	require.NoError(t, err)
	require.NotEqual(t, original.ID, reversal.ID)
	require.Equal(t, "MANUAL_JOURNAL:REVERSAL", reversal.DocType)
	require.Equal(t, original.Lines[0].Debit, reversal.Lines[0].Credit)
	require.Equal(t, original.Lines[1].Credit, reversal.Lines[1].Debit)

	stored, err := svc.GetBatch(context.Background(), 1, original.ID)
	require.NoError(t, err)
	require.Equal(t, BatchStatusVoid, stored.Status)

	_, err = svc.Reverse(context.Background(), ReverseInput{CompanyID: 1, BatchID: original.ID, ActorID: 7})
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestGetBatchScopedToCompany(t *testing.T) {
	repo := newMemoryJournalRepo()
	seedAccounts(repo)
	svc := NewService(repo, nil, nil)

	batch, err := svc.Post(context.Background(), balancedInput(uuid.New()))
	require.NoError(t, err)

	_, err = svc.GetBatch(context.Background(), 2, batch.ID)
	require.ErrorIs(t, err, ErrBatchNotFound)
}
