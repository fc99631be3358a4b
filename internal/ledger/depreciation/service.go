package depreciation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/balanca-pos/balanca/internal/ledger/journal"
	"github.com/balanca-pos/balanca/internal/shared"
)

// DocTypeRun is the journal doc_type for depreciation batches.
const DocTypeRun = "DEPRECIATION_RUN"

// RepositoryPort abstracts plan and run persistence.
type RepositoryPort interface {
	GetPlan(ctx context.Context, companyID, planID int64) (Plan, error)
	ListPlans(ctx context.Context, companyID int64) ([]Plan, error)
	ListActivePlans(ctx context.Context) ([]Plan, error)
	CreatePlan(ctx context.Context, in CreatePlanInput) (Plan, error)
	UpdatePlanStatus(ctx context.Context, companyID, planID int64, from, to PlanStatus) (Plan, error)
	FindRun(ctx context.Context, planID int64, year, month int) (Run, error)
	GetRun(ctx context.Context, runID int64) (Run, error)
	ListRuns(ctx context.Context, planID int64) ([]Run, error)
	SumPriorRuns(ctx context.Context, planID int64) (float64, error)
	ClaimRun(ctx context.Context, planID int64, year, month int, amount float64) (Run, error)
	AttachRunBatch(ctx context.Context, runID, batchID int64) error
	DeleteRun(ctx context.Context, runID int64) error
	VoidRun(ctx context.Context, runID int64) error
}

// JournalPort is the slice of the posting engine the depreciation engine uses.
type JournalPort interface {
	Post(ctx context.Context, input journal.PostingInput) (journal.Batch, error)
	Reverse(ctx context.Context, input journal.ReverseInput) (journal.Batch, error)
}

// AccountsPort validates that mapped accounts can receive postings.
type AccountsPort interface {
	AssertPostable(ctx context.Context, companyID, accountID int64) error
}

// AuditPort records engine events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service runs depreciation schedules and posts their periods into the ledger.
type Service struct {
	repo     RepositoryPort
	journal  JournalPort
	accounts AccountsPort
	audit    AuditPort
}

// NewService constructs the depreciation engine.
func NewService(repo RepositoryPort, journalSvc JournalPort, accountsSvc AccountsPort, audit AuditPort) *Service {
	return &Service{repo: repo, journal: journalSvc, accounts: accountsSvc, audit: audit}
}

// CreatePlan validates the plan inputs and stores it as DRAFT.
func (s *Service) CreatePlan(ctx context.Context, in CreatePlanInput) (Plan, error) {
	switch in.Method {
	case MethodStraightLine, MethodDecliningBalance, MethodSumOfYears:
	default:
		return Plan{}, shared.E(shared.ErrValidation, "depreciation: unknown method")
	}
	if in.UsefulLifeMonths <= 0 {
		return Plan{}, shared.E(shared.ErrValidation, "depreciation: useful life must be positive")
	}
	if in.SalvageValue < 0 || in.PurchaseCost <= 0 || in.SalvageValue >= in.PurchaseCost {
		return Plan{}, shared.E(shared.ErrValidation, "depreciation: salvage must be below purchase cost")
	}
	if in.StartDate.IsZero() {
		return Plan{}, shared.E(shared.ErrValidation, "depreciation: start date required")
	}
	if err := s.accounts.AssertPostable(ctx, in.CompanyID, in.ExpenseAccountID); err != nil {
		return Plan{}, err
	}
	if err := s.accounts.AssertPostable(ctx, in.CompanyID, in.AccumDeprAccountID); err != nil {
		return Plan{}, err
	}
	return s.repo.CreatePlan(ctx, in)
}

// ActivatePlan moves a DRAFT plan to ACTIVE. Only one ACTIVE plan may exist
// per asset.
func (s *Service) ActivatePlan(ctx context.Context, companyID, planID, actorID int64) (Plan, error) {
	plan, err := s.repo.UpdatePlanStatus(ctx, companyID, planID, PlanStatusDraft, PlanStatusActive)
	if err != nil {
		return Plan{}, err
	}
	s.recordAudit(ctx, companyID, actorID, "depreciation.plan.activate", planID, nil)
	return plan, nil
}

// VoidPlan retires a DRAFT or ACTIVE plan. No further runs are accepted.
func (s *Service) VoidPlan(ctx context.Context, companyID, planID, actorID int64) (Plan, error) {
	current, err := s.repo.GetPlan(ctx, companyID, planID)
	if err != nil {
		return Plan{}, err
	}
	if current.Status == PlanStatusVoid {
		return Plan{}, ErrInvalidTransition
	}
	plan, err := s.repo.UpdatePlanStatus(ctx, companyID, planID, current.Status, PlanStatusVoid)
	if err != nil {
		return Plan{}, err
	}
	s.recordAudit(ctx, companyID, actorID, "depreciation.plan.void", planID, nil)
	return plan, nil
}

// GetPlan fetches one plan.
func (s *Service) GetPlan(ctx context.Context, companyID, planID int64) (Plan, error) {
	return s.repo.GetPlan(ctx, companyID, planID)
}

// ListPlans returns the company's plans.
func (s *Service) ListPlans(ctx context.Context, companyID int64) ([]Plan, error) {
	return s.repo.ListPlans(ctx, companyID)
}

// ListRuns returns the runs of one plan in period order.
func (s *Service) ListRuns(ctx context.Context, companyID, planID int64) ([]Run, error) {
	if _, err := s.repo.GetPlan(ctx, companyID, planID); err != nil {
		return nil, err
	}
	return s.repo.ListRuns(ctx, planID)
}

// SchedulePreview computes the full schedule without touching the ledger.
func (s *Service) SchedulePreview(ctx context.Context, companyID, planID int64) ([]PeriodAmount, error) {
	plan, err := s.repo.GetPlan(ctx, companyID, planID)
	if err != nil {
		return nil, err
	}
	return plan.Schedule(), nil
}

// RunPeriod posts one schedule period. The non-VOID uniqueness of
// (plan, year, month) is enforced by constraint: a concurrent or repeated
// submission surfaces as Duplicate=true with the winning run, never as a
// second posting.
func (s *Service) RunPeriod(ctx context.Context, input RunPeriodInput) (RunResult, error) {
	plan, err := s.repo.GetPlan(ctx, input.CompanyID, input.PlanID)
	if err != nil {
		return RunResult{}, err
	}
	if plan.Status != PlanStatusActive {
		return RunResult{}, ErrPlanNotActive
	}
	idx := plan.periodIndex(input.PeriodYear, input.PeriodMonth)
	if idx < 0 || idx >= plan.UsefulLifeMonths {
		return RunResult{}, ErrInvalidPeriod
	}

	if existing, err := s.repo.FindRun(ctx, input.PlanID, input.PeriodYear, input.PeriodMonth); err == nil {
		return RunResult{Duplicate: true, Run: existing}, nil
	} else if !errors.Is(err, ErrRunNotFound) {
		return RunResult{}, err
	}

	prior, err := s.repo.SumPriorRuns(ctx, input.PlanID)
	if err != nil {
		return RunResult{}, err
	}
	amount := plan.PeriodAmountAt(idx, prior)
	if amount <= 0 {
		return RunResult{}, shared.E(shared.ErrConflict, "depreciation: plan is fully depreciated")
	}

	run, err := s.repo.ClaimRun(ctx, input.PlanID, input.PeriodYear, input.PeriodMonth, amount)
	if err != nil {
		if errors.Is(err, ErrRunClaimed) {
			winner, ferr := s.repo.FindRun(ctx, input.PlanID, input.PeriodYear, input.PeriodMonth)
			if ferr != nil {
				return RunResult{}, ferr
			}
			return RunResult{Duplicate: true, Run: winner}, nil
		}
		return RunResult{}, err
	}

	batch, err := s.journal.Post(ctx, journal.PostingInput{
		CompanyID: input.CompanyID,
		DocType:   DocTypeRun,
		DocID:     uuid.New(),
		Memo:      runMemo(plan, input.PeriodYear, input.PeriodMonth),
		PostedBy:  input.ActorID,
		Lines: []journal.PostingLineInput{
			{AccountID: plan.ExpenseAccountID, Debit: amount, Description: "Depreciation expense"},
			{AccountID: plan.AccumDeprAccountID, Credit: amount, Description: "Accumulated depreciation"},
		},
	})
	// The claim must not outlive a failed post, and an attached batch must
	// not be lost to a dying request, so both cleanup paths run detached
	// from the caller's cancellation.
	detached := context.WithoutCancel(ctx)
	if err != nil {
		if delErr := s.repo.DeleteRun(detached, run.ID); delErr != nil {
			return RunResult{}, errors.Join(err, delErr)
		}
		return RunResult{}, err
	}
	if err := s.repo.AttachRunBatch(detached, run.ID, batch.ID); err != nil {
		return RunResult{}, err
	}
	run.JournalBatchID = batch.ID

	s.recordAudit(ctx, input.CompanyID, input.ActorID, "depreciation.run", input.PlanID, map[string]any{
		"period_year":  input.PeriodYear,
		"period_month": input.PeriodMonth,
		"amount":       amount,
		"batch_id":     batch.ID,
	})
	return RunResult{Run: run}, nil
}

// VoidRun reverses the run's journal batch and marks the run VOID, freeing
// the period for a corrected re-run.
func (s *Service) VoidRun(ctx context.Context, companyID, runID, actorID int64) (Run, error) {
	run, err := s.repo.GetRun(ctx, runID)
	if err != nil {
		return Run{}, err
	}
	if run.Status != RunStatusPosted {
		return Run{}, ErrInvalidTransition
	}
	// Tenancy check via the owning plan.
	if _, err := s.repo.GetPlan(ctx, companyID, run.PlanID); err != nil {
		return Run{}, err
	}
	if _, err := s.journal.Reverse(ctx, journal.ReverseInput{
		CompanyID: companyID,
		BatchID:   run.JournalBatchID,
		ActorID:   actorID,
		Memo:      fmt.Sprintf("Void depreciation run %d", run.ID),
	}); err != nil {
		return Run{}, err
	}
	if err := s.repo.VoidRun(ctx, runID); err != nil {
		return Run{}, err
	}
	run.Status = RunStatusVoid
	s.recordAudit(ctx, companyID, actorID, "depreciation.run.void", run.PlanID, map[string]any{"run_id": runID})
	return run, nil
}

// RunAllForPeriod posts the given period for every ACTIVE plan. Plans whose
// schedule does not cover the period are skipped; other failures are joined
// so one broken plan does not stop the rest.
func (s *Service) RunAllForPeriod(ctx context.Context, year, month int) (posted, duplicates int, err error) {
	plans, listErr := s.repo.ListActivePlans(ctx)
	if listErr != nil {
		return 0, 0, listErr
	}
	var errs []error
	for _, plan := range plans {
		res, runErr := s.RunPeriod(ctx, RunPeriodInput{
			CompanyID:   plan.CompanyID,
			PlanID:      plan.ID,
			PeriodYear:  year,
			PeriodMonth: month,
		})
		switch {
		case runErr == nil && res.Duplicate:
			duplicates++
		case runErr == nil:
			posted++
		case errors.Is(runErr, ErrInvalidPeriod):
			// Plan starts later or already ran its full schedule.
		default:
			errs = append(errs, fmt.Errorf("plan %d: %w", plan.ID, runErr))
		}
	}
	return posted, duplicates, errors.Join(errs...)
}

func runMemo(plan Plan, year, month int) string {
	return fmt.Sprintf("Depreciation %04d-%02d asset %d", year, month, plan.AssetID)
}

func (s *Service) recordAudit(ctx context.Context, companyID, actorID int64, action string, planID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		CompanyID: companyID,
		ActorID:   actorID,
		Action:    action,
		Entity:    "depreciation_plan",
		EntityID:  fmt.Sprintf("%d", planID),
		Meta:      meta,
		At:        time.Now(),
	})
}
