package accounts

import (
	"context"
	"strings"

	"github.com/balanca-pos/balanca/internal/shared"
)

// RepositoryPort abstracts account persistence for the service.
type RepositoryPort interface {
	Get(ctx context.Context, companyID, accountID int64) (Account, error)
	List(ctx context.Context, companyID int64) ([]Account, error)
	Create(ctx context.Context, in CreateAccountInput) (Account, error)
	Update(ctx context.Context, in UpdateAccountInput) (Account, error)
	Deactivate(ctx context.Context, companyID, accountID int64) error
}

// CreateAccountInput groups fields for a new account.
type CreateAccountInput struct {
	CompanyID     int64
	Code          string
	Name          string
	ParentID      *int64
	IsGroup       bool
	Type          AccountType
	NormalBalance NormalBalance
	ReportGroup   ReportGroup
	IsPayable     bool
}

// UpdateAccountInput groups mutable fields for an existing account. Code is
// carried only so a change attempt can be rejected.
type UpdateAccountInput struct {
	CompanyID     int64
	AccountID     int64
	Code          string
	Name          string
	Type          AccountType
	NormalBalance NormalBalance
	ReportGroup   ReportGroup
	IsPayable     bool
}

// Service exposes the chart of accounts store.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the CoA service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Resolve returns the account or ErrAccountNotFound.
func (s *Service) Resolve(ctx context.Context, companyID, accountID int64) (Account, error) {
	return s.repo.Get(ctx, companyID, accountID)
}

// AssertPostable verifies the account may receive journal lines. This is the
// read-path pre-check; the posting engine repeats it inside its transaction.
func (s *Service) AssertPostable(ctx context.Context, companyID, accountID int64) error {
	account, err := s.repo.Get(ctx, companyID, accountID)
	if err != nil {
		return err
	}
	return EnsurePostable(account)
}

// List returns the company's chart of accounts in code order.
func (s *Service) List(ctx context.Context, companyID int64) ([]Account, error) {
	return s.repo.List(ctx, companyID)
}

// Create validates and inserts a new account.
func (s *Service) Create(ctx context.Context, in CreateAccountInput) (Account, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if in.CompanyID == 0 {
		return Account{}, shared.E(shared.ErrValidation, "accounts: company required")
	}
	if in.Code == "" {
		return Account{}, shared.E(shared.ErrValidation, "accounts: code required")
	}
	if in.Name == "" {
		return Account{}, shared.E(shared.ErrValidation, "accounts: name required")
	}
	if err := validEnums(in.Type, in.NormalBalance, in.ReportGroup); err != nil {
		return Account{}, err
	}
	if in.ParentID != nil {
		parent, err := s.repo.Get(ctx, in.CompanyID, *in.ParentID)
		if err != nil {
			return Account{}, err
		}
		if !parent.IsGroup {
			return Account{}, shared.E(shared.ErrValidation, "accounts: parent must be a group account")
		}
	}
	return s.repo.Create(ctx, in)
}

// Update modifies an account. Code is immutable after creation.
func (s *Service) Update(ctx context.Context, in UpdateAccountInput) (Account, error) {
	if in.Name = strings.TrimSpace(in.Name); in.Name == "" {
		return Account{}, shared.E(shared.ErrValidation, "accounts: name required")
	}
	if err := validEnums(in.Type, in.NormalBalance, in.ReportGroup); err != nil {
		return Account{}, err
	}
	current, err := s.repo.Get(ctx, in.CompanyID, in.AccountID)
	if err != nil {
		return Account{}, err
	}
	if code := strings.TrimSpace(in.Code); code != "" && code != current.Code {
		return Account{}, ErrCodeImmutable
	}
	return s.repo.Update(ctx, in)
}

// Deactivate soft-deletes an account unless it is still referenced.
func (s *Service) Deactivate(ctx context.Context, companyID, accountID int64) error {
	return s.repo.Deactivate(ctx, companyID, accountID)
}

func validEnums(t AccountType, nb NormalBalance, rg ReportGroup) error {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
	default:
		return shared.E(shared.ErrValidation, "accounts: unknown account type")
	}
	switch nb {
	case NormalDebit, NormalCredit:
	default:
		return shared.E(shared.ErrValidation, "accounts: unknown normal balance")
	}
	switch rg {
	case ReportGroupBalanceSheet, ReportGroupProfitLoss:
	default:
		return shared.E(shared.ErrValidation, "accounts: unknown report group")
	}
	return nil
}
