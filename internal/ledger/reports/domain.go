package reports

import (
	"time"

	"github.com/google/uuid"

	"github.com/balanca-pos/balanca/internal/shared"
)

// Query bounds a report to one company, an optional outlet set, and an
// inclusive date range. Round is the decimal precision applied at build time.
type Query struct {
	CompanyID int64
	OutletIDs []int64
	DateFrom  time.Time
	DateTo    time.Time
	Round     int32
}

// GLQuery extends Query with the account and line paging.
type GLQuery struct {
	Query
	AccountID  int64
	LineLimit  int
	LineOffset int
}

// GLLine is one general ledger row with its running balance.
type GLLine struct {
	BatchID     int64     `json:"batch_id"`
	LineNo      int       `json:"line_no"`
	PostedAt    time.Time `json:"posted_at"`
	DocType     string    `json:"doc_type"`
	DocID       uuid.UUID `json:"doc_id"`
	Memo        string    `json:"memo"`
	Description string    `json:"description"`
	Debit       float64   `json:"debit"`
	Credit      float64   `json:"credit"`
	Running     float64   `json:"running_balance"`
}

// GLReport is the per-account chronological ledger with balance summary.
type GLReport struct {
	AccountID      int64    `json:"account_id"`
	AccountCode    string   `json:"account_code"`
	AccountName    string   `json:"account_name"`
	NormalBalance  string   `json:"normal_balance"`
	OpeningDebit   float64  `json:"opening_debit"`
	OpeningCredit  float64  `json:"opening_credit"`
	PeriodDebit    float64  `json:"period_debit"`
	PeriodCredit   float64  `json:"period_credit"`
	OpeningBalance float64  `json:"opening_balance"`
	EndingBalance  float64  `json:"ending_balance"`
	Lines          []GLLine `json:"lines"`
}

// TBRow is one trial balance line.
type TBRow struct {
	AccountID   int64   `json:"account_id"`
	AccountCode string  `json:"account_code"`
	AccountName string  `json:"account_name"`
	TotalDebit  float64 `json:"total_debit"`
	TotalCredit float64 `json:"total_credit"`
	Balance     float64 `json:"balance"`
}

// TBTotals aggregates the trial balance grand totals. TotalDebit equals
// TotalCredit whenever every stored batch is balanced.
type TBTotals struct {
	TotalDebit  float64 `json:"total_debit"`
	TotalCredit float64 `json:"total_credit"`
	Balance     float64 `json:"balance"`
}

// TBReport is the trial balance payload.
type TBReport struct {
	Rows   []TBRow  `json:"rows"`
	Totals TBTotals `json:"totals"`
}

// WSRow is one worksheet line: ending balances routed into profit & loss or
// balance sheet columns depending on the account's report group.
type WSRow struct {
	AccountID     int64   `json:"account_id"`
	AccountCode   string  `json:"account_code"`
	AccountName   string  `json:"account_name"`
	ReportGroup   string  `json:"report_group"`
	OpeningDebit  float64 `json:"opening_debit"`
	OpeningCredit float64 `json:"opening_credit"`
	PeriodDebit   float64 `json:"period_debit"`
	PeriodCredit  float64 `json:"period_credit"`
	EndingDebit   float64 `json:"ending_debit"`
	EndingCredit  float64 `json:"ending_credit"`
	PLDebit       float64 `json:"pl_debit"`
	PLCredit      float64 `json:"pl_credit"`
	BSDebit       float64 `json:"bs_debit"`
	BSCredit      float64 `json:"bs_credit"`
}

// WSSummary closes the worksheet: the profit (or loss) computed on the P&L
// side balances the sheet on the BS side.
type WSSummary struct {
	PLDebit   float64 `json:"pl_debit"`
	PLCredit  float64 `json:"pl_credit"`
	BSDebit   float64 `json:"bs_debit"`
	BSCredit  float64 `json:"bs_credit"`
	NetProfit float64 `json:"net_profit"`
}

// WSReport is the worksheet payload.
type WSReport struct {
	Rows    []WSRow   `json:"rows"`
	Summary WSSummary `json:"summary"`
}

// AccountActivity is the raw per-account aggregation the SQL layer returns.
type AccountActivity struct {
	AccountID     int64
	Code          string
	Name          string
	Type          string
	NormalBalance string
	ReportGroup   string
	OpeningDebit  float64
	OpeningCredit float64
	PeriodDebit   float64
	PeriodCredit  float64
}

// ErrAccountRequired indicates a GL query without an account.
var ErrAccountRequired = shared.E(shared.ErrValidation, "reports: account id required")

// ErrBadDateRange indicates date_to earlier than date_from.
var ErrBadDateRange = shared.E(shared.ErrValidation, "reports: date range is inverted")

func (q Query) validate() error {
	if q.CompanyID == 0 {
		return shared.E(shared.ErrValidation, "reports: company required")
	}
	if q.DateTo.Before(q.DateFrom) {
		return ErrBadDateRange
	}
	return nil
}
