package depreciation

import (
	"time"

	"github.com/balanca-pos/balanca/internal/shared"
)

// Method enumerates supported depreciation methods.
type Method string

const (
	MethodStraightLine     Method = "STRAIGHT_LINE"
	MethodDecliningBalance Method = "DECLINING_BALANCE"
	MethodSumOfYears       Method = "SUM_OF_YEARS"
)

// PlanStatus enumerates plan lifecycle values.
type PlanStatus string

const (
	PlanStatusDraft  PlanStatus = "DRAFT"
	PlanStatusActive PlanStatus = "ACTIVE"
	PlanStatusVoid   PlanStatus = "VOID"
)

// RunStatus enumerates run lifecycle values.
type RunStatus string

const (
	RunStatusPosted RunStatus = "POSTED"
	RunStatusVoid   RunStatus = "VOID"
)

// Plan describes how one asset depreciates. PurchaseCost is a snapshot taken
// at plan creation; later asset edits do not alter a running schedule.
type Plan struct {
	ID                 int64
	CompanyID          int64
	AssetID            int64
	Method             Method
	StartDate          time.Time
	UsefulLifeMonths   int
	SalvageValue       float64
	PurchaseCost       float64
	ExpenseAccountID   int64
	AccumDeprAccountID int64
	Status             PlanStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Run records one posted period. At most one non-VOID run exists per
// (plan, year, month); that uniqueness is the engine's idempotency key.
type Run struct {
	ID             int64     `json:"id"`
	PlanID         int64     `json:"plan_id"`
	PeriodYear     int       `json:"period_year"`
	PeriodMonth    int       `json:"period_month"`
	Amount         float64   `json:"amount"`
	JournalBatchID int64     `json:"journal_batch_id"`
	Status         RunStatus `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// RunResult is the outcome of RunPeriod. Duplicate means the period was
// already posted; resubmission is an expected, non-exceptional case for
// offline clients, so it is a flag rather than an error.
type RunResult struct {
	Duplicate bool `json:"duplicate"`
	Run       Run  `json:"run"`
}

// RunPeriodInput identifies the plan period to post.
type RunPeriodInput struct {
	CompanyID   int64
	PlanID      int64
	PeriodYear  int
	PeriodMonth int
	ActorID     int64
}

var (
	// ErrPlanNotFound indicates a missing plan.
	ErrPlanNotFound = shared.E(shared.ErrNotFound, "depreciation: plan not found")
	// ErrPlanNotActive indicates runs were requested against a non-ACTIVE plan.
	ErrPlanNotActive = shared.E(shared.ErrConflict, "depreciation: plan is not active")
	// ErrPlanConflict indicates the asset already has an active plan.
	ErrPlanConflict = shared.E(shared.ErrConflict, "depreciation: asset already has an active plan")
	// ErrInvalidPeriod indicates a malformed or out-of-schedule period.
	ErrInvalidPeriod = shared.E(shared.ErrValidation, "depreciation: invalid period")
	// ErrInvalidTransition indicates a disallowed plan status change.
	ErrInvalidTransition = shared.E(shared.ErrConflict, "depreciation: invalid status transition")
	// ErrRunNotFound indicates a missing run.
	ErrRunNotFound = shared.E(shared.ErrNotFound, "depreciation: run not found")
)

// periodIndex returns the zero-based schedule position of (year, month), or
// -1 when the period is malformed or precedes the plan start.
func (p Plan) periodIndex(year, month int) int {
	if month < 1 || month > 12 {
		return -1
	}
	idx := (year-p.StartDate.Year())*12 + (month - int(p.StartDate.Month()))
	if idx < 0 {
		return -1
	}
	return idx
}
