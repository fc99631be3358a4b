package accounts

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/balanca-pos/balanca/internal/shared"
)

type memoryAccountRepo struct {
	accounts map[int64]*Account
	inUse    map[int64]bool
	nextID   int64
}

func newMemoryAccountRepo() *memoryAccountRepo {
	return &memoryAccountRepo{accounts: make(map[int64]*Account), inUse: make(map[int64]bool)}
}

func (r *memoryAccountRepo) Get(ctx context.Context, companyID, accountID int64) (Account, error) {
	a, ok := r.accounts[accountID]
	if !ok || a.CompanyID != companyID {
		return Account{}, ErrAccountNotFound
	}
	return *a, nil
}

func (r *memoryAccountRepo) List(ctx context.Context, companyID int64) ([]Account, error) {
	var out []Account
	for _, a := range r.accounts {
		if a.CompanyID == companyID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *memoryAccountRepo) Create(ctx context.Context, in CreateAccountInput) (Account, error) {
	for _, a := range r.accounts {
		if a.CompanyID == in.CompanyID && a.Code == in.Code {
			return Account{}, ErrCodeTaken
		}
	}
	r.nextID++
	a := &Account{
		ID:            r.nextID,
		CompanyID:     in.CompanyID,
		Code:          in.Code,
		Name:          in.Name,
		ParentID:      in.ParentID,
		IsGroup:       in.IsGroup,
		Type:          in.Type,
		NormalBalance: in.NormalBalance,
		ReportGroup:   in.ReportGroup,
		IsPayable:     in.IsPayable,
		IsActive:      true,
	}
	r.accounts[a.ID] = a
	return *a, nil
}

func (r *memoryAccountRepo) Update(ctx context.Context, in UpdateAccountInput) (Account, error) {
	a, ok := r.accounts[in.AccountID]
	if !ok || a.CompanyID != in.CompanyID {
		return Account{}, ErrAccountNotFound
	}
	a.Name = in.Name
	a.Type = in.Type
	a.NormalBalance = in.NormalBalance
	a.ReportGroup = in.ReportGroup
	a.IsPayable = in.IsPayable
	return *a, nil
}

func (r *memoryAccountRepo) Deactivate(ctx context.Context, companyID, accountID int64) error {
	a, ok := r.accounts[accountID]
	if !ok || a.CompanyID != companyID {
		return ErrAccountNotFound
	}
	if r.inUse[accountID] {
		return ErrAccountInUse
	}
	for _, child := range r.accounts {
		if child.ParentID != nil && *child.ParentID == accountID && child.IsActive {
			return ErrAccountInUse
		}
	}
	a.IsActive = false
	return nil
}

func validCreateInput() CreateAccountInput {
	return CreateAccountInput{
		CompanyID:     1,
		Code:          "1000",
		Name:          "Cash",
		Type:          AccountTypeAsset,
		NormalBalance: NormalDebit,
		ReportGroup:   ReportGroupBalanceSheet,
	}
}

func TestCreateAccount(t *testing.T) {
	repo := newMemoryAccountRepo()
	svc := NewService(repo)

	account, err := svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)
	require.True(t, account.IsActive)
	require.Equal(t, "1000", account.Code)

	_, err = svc.Create(context.Background(), validCreateInput())
	require.ErrorIs(t, err, ErrCodeTaken)
}

func TestCreateAccountRequiresGroupParent(t *testing.T) {
	repo := newMemoryAccountRepo()
	svc := NewService(repo)

	leaf, err := svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)

	child := validCreateInput()
	child.Code = "1001"
	child.ParentID = &leaf.ID
	_, err = svc.Create(context.Background(), child)
	require.ErrorIs(t, err, shared.ErrValidation)

	group := validCreateInput()
	group.Code = "1"
	group.Name = "Assets"
	group.IsGroup = true
	parent, err := svc.Create(context.Background(), group)
	require.NoError(t, err)

	child.ParentID = &parent.ID
	created, err := svc.Create(context.Background(), child)
	require.NoError(t, err)
	require.Equal(t, parent.ID, *created.ParentID)
}

func TestCreateAccountRejectsUnknownEnums(t *testing.T) {
	svc := NewService(newMemoryAccountRepo())

	in := validCreateInput()
	in.Type = "GOODWILL"
	_, err := svc.Create(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = validCreateInput()
	in.NormalBalance = "SIDEWAYS"
	_, err = svc.Create(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = validCreateInput()
	in.Code = "  "
	_, err = svc.Create(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAssertPostable(t *testing.T) {
	repo := newMemoryAccountRepo()
	svc := NewService(repo)

	leaf, err := svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)
	require.NoError(t, svc.AssertPostable(context.Background(), 1, leaf.ID))

	group := validCreateInput()
	group.Code = "1"
	group.IsGroup = true
	g, err := svc.Create(context.Background(), group)
	require.NoError(t, err)
	require.ErrorIs(t, svc.AssertPostable(context.Background(), 1, g.ID), ErrGroupAccount)

	require.NoError(t, svc.Deactivate(context.Background(), 1, leaf.ID))
	require.ErrorIs(t, svc.AssertPostable(context.Background(), 1, leaf.ID), ErrAccountInactive)

	require.ErrorIs(t, svc.AssertPostable(context.Background(), 1, 999), ErrAccountNotFound)
	require.ErrorIs(t, svc.AssertPostable(context.Background(), 2, leaf.ID), ErrAccountNotFound)
}

func TestDeactivateRejectsReferencedAccount(t *testing.T) {
	repo := newMemoryAccountRepo()
	svc := NewService(repo)

	leaf, err := svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)
	repo.inUse[leaf.ID] = true

	require.ErrorIs(t, svc.Deactivate(context.Background(), 1, leaf.ID), ErrAccountInUse)
}

func TestDeactivateRejectsGroupWithActiveChildren(t *testing.T) {
	repo := newMemoryAccountRepo()
	svc := NewService(repo)

	group := validCreateInput()
	group.Code = "1"
	group.IsGroup = true
	parent, err := svc.Create(context.Background(), group)
	require.NoError(t, err)

	child := validCreateInput()
	child.ParentID = &parent.ID
	leaf, err := svc.Create(context.Background(), child)
	require.NoError(t, err)

	require.ErrorIs(t, svc.Deactivate(context.Background(), 1, parent.ID), ErrAccountInUse)

	require.NoError(t, svc.Deactivate(context.Background(), 1, leaf.ID))
	require.NoError(t, svc.Deactivate(context.Background(), 1, parent.ID))
}

func TestUpdateKeepsCode(t *testing.T) {
	repo := newMemoryAccountRepo()
	svc := NewService(repo)

	account, err := svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), UpdateAccountInput{
		CompanyID:     1,
		AccountID:     account.ID,
		Name:          "Petty Cash",
		Type:          AccountTypeAsset,
		NormalBalance: NormalDebit,
		ReportGroup:   ReportGroupBalanceSheet,
	})
	require.NoError(t, err)
	require.Equal(t, "Petty Cash", updated.Name)
	require.Equal(t, account.Code, updated.Code)
}

func TestUpdateRejectsCodeChange(t *testing.T) {
	repo := newMemoryAccountRepo()
	svc := NewService(repo)

	account, err := svc.Create(context.Background(), validCreateInput())
	require.NoError(t, err)

	in := UpdateAccountInput{
		CompanyID:     1,
		AccountID:     account.ID,
		Code:          account.Code + "X",
		Name:          "Petty Cash",
		Type:          AccountTypeAsset,
		NormalBalance: NormalDebit,
		ReportGroup:   ReportGroupBalanceSheet,
	}
	_, err = svc.Update(context.Background(), in)
	require.ErrorIs(t, err, ErrCodeImmutable)
	require.ErrorIs(t, err, shared.ErrValidation)

	// Resubmitting the current code is not a change.
	in.Code = account.Code
	updated, err := svc.Update(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, account.Code, updated.Code)
}

func TestSign(t *testing.T) {
	require.Equal(t, float64(1), Account{NormalBalance: NormalDebit}.Sign())
	require.Equal(t, float64(-1), Account{NormalBalance: NormalCredit}.Sign())
}
