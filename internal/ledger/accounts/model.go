package accounts

import (
	"time"

	"github.com/balanca-pos/balanca/internal/shared"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// NormalBalance states whether an account grows on the debit or credit side.
type NormalBalance string

const (
	NormalDebit  NormalBalance = "DEBIT"
	NormalCredit NormalBalance = "CREDIT"
)

// ReportGroup routes an account to the balance sheet or profit & loss columns.
type ReportGroup string

const (
	ReportGroupBalanceSheet ReportGroup = "BALANCE_SHEET"
	ReportGroupProfitLoss   ReportGroup = "PROFIT_LOSS"
)

// Account models a chart of accounts node. Group accounts are structural
// headers and never receive postings.
type Account struct {
	ID            int64
	CompanyID     int64
	Code          string
	Name          string
	ParentID      *int64
	IsGroup       bool
	Type          AccountType
	NormalBalance NormalBalance
	ReportGroup   ReportGroup
	IsPayable     bool
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Sign returns +1 for debit-normal accounts and -1 for credit-normal ones.
func (a Account) Sign() float64 {
	if a.NormalBalance == NormalCredit {
		return -1
	}
	return 1
}

var (
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = shared.E(shared.ErrNotFound, "accounts: account not found")
	// ErrGroupAccount indicates a posting attempt against a group header.
	ErrGroupAccount = shared.E(shared.ErrValidation, "accounts: group account cannot receive postings")
	// ErrAccountInactive indicates a posting attempt against a deactivated account.
	ErrAccountInactive = shared.E(shared.ErrValidation, "accounts: account is inactive")
	// ErrAccountInUse indicates the account still has journal lines or active children.
	ErrAccountInUse = shared.E(shared.ErrConflict, "accounts: account is in use")
	// ErrCodeTaken indicates the code is already used within the company.
	ErrCodeTaken = shared.E(shared.ErrConflict, "accounts: code already exists")
	// ErrCodeImmutable rejects code changes after creation.
	ErrCodeImmutable = shared.E(shared.ErrValidation, "accounts: code cannot be changed")
)

// EnsurePostable validates a resolved account against the posting rules.
// The posting engine calls this again inside its own transaction so a
// concurrent deactivation cannot slip past the pre-check.
func EnsurePostable(a Account) error {
	if a.IsGroup {
		return ErrGroupAccount
	}
	if !a.IsActive {
		return ErrAccountInactive
	}
	return nil
}
