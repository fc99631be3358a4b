package depreciation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/balanca-pos/balanca/internal/ledger/journal"
	"github.com/balanca-pos/balanca/internal/shared"
)

type memoryDeprRepo struct {
	plans      map[int64]*Plan
	runs       map[int64]*Run
	nextPlanID int64
	nextRunID  int64
}

func newMemoryDeprRepo() *memoryDeprRepo {
	return &memoryDeprRepo{plans: make(map[int64]*Plan), runs: make(map[int64]*Run)}
}

func (r *memoryDeprRepo) GetPlan(ctx context.Context, companyID, planID int64) (Plan, error) {
	p, ok := r.plans[planID]
	if !ok || p.CompanyID != companyID {
		return Plan{}, ErrPlanNotFound
	}
	return *p, nil
}

func (r *memoryDeprRepo) ListPlans(ctx context.Context, companyID int64) ([]Plan, error) {
	var out []Plan
	for _, p := range r.plans {
		if p.CompanyID == companyID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memoryDeprRepo) ListActivePlans(ctx context.Context) ([]Plan, error) {
	var out []Plan
	for _, p := range r.plans {
		if p.Status == PlanStatusActive {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memoryDeprRepo) CreatePlan(ctx context.Context, in CreatePlanInput) (Plan, error) {
	r.nextPlanID++
	p := &Plan{
		ID:                 r.nextPlanID,
		CompanyID:          in.CompanyID,
		AssetID:            in.AssetID,
		Method:             in.Method,
		StartDate:          in.StartDate,
		UsefulLifeMonths:   in.UsefulLifeMonths,
		SalvageValue:       in.SalvageValue,
		PurchaseCost:       in.PurchaseCost,
		ExpenseAccountID:   in.ExpenseAccountID,
		AccumDeprAccountID: in.AccumDeprAccountID,
		Status:             PlanStatusDraft,
	}
	r.plans[p.ID] = p
	return *p, nil
}

func (r *memoryDeprRepo) UpdatePlanStatus(ctx context.Context, companyID, planID int64, from, to PlanStatus) (Plan, error) {
	p, ok := r.plans[planID]
	if !ok || p.CompanyID != companyID {
		return Plan{}, ErrPlanNotFound
	}
	if p.Status != from {
		return Plan{}, ErrInvalidTransition
	}
	if to == PlanStatusActive {
		for _, other := range r.plans {
			if other.ID != planID && other.AssetID == p.AssetID && other.Status == PlanStatusActive {
				return Plan{}, ErrPlanConflict
			}
		}
	}
	p.Status = to
	return *p, nil
}

func (r *memoryDeprRepo) FindRun(ctx context.Context, planID int64, year, month int) (Run, error) {
	for _, run := range r.runs {
		if run.PlanID == planID && run.PeriodYear == year && run.PeriodMonth == month && run.Status != RunStatusVoid {
			return *run, nil
		}
	}
	return Run{}, ErrRunNotFound
}

func (r *memoryDeprRepo) GetRun(ctx context.Context, runID int64) (Run, error) {
	run, ok := r.runs[runID]
	if !ok {
		return Run{}, ErrRunNotFound
	}
	return *run, nil
}

func (r *memoryDeprRepo) ListRuns(ctx context.Context, planID int64) ([]Run, error) {
	var out []Run
	for _, run := range r.runs {
		if run.PlanID == planID {
			out = append(out, *run)
		}
	}
	return out, nil
}

func (r *memoryDeprRepo) SumPriorRuns(ctx context.Context, planID int64) (float64, error) {
	var total float64
	for _, run := range r.runs {
		if run.PlanID == planID && run.Status != RunStatusVoid {
			total += run.Amount
		}
	}
	return total, nil
}

func (r *memoryDeprRepo) ClaimRun(ctx context.Context, planID int64, year, month int, amount float64) (Run, error) {
	if _, err := r.FindRun(ctx, planID, year, month); err == nil {
		return Run{}, ErrRunClaimed
	}
	r.nextRunID++
	run := &Run{ID: r.nextRunID, PlanID: planID, PeriodYear: year, PeriodMonth: month, Amount: amount, Status: RunStatusPosted, CreatedAt: time.Now()}
	r.runs[run.ID] = run
	return *run, nil
}

func (r *memoryDeprRepo) AttachRunBatch(ctx context.Context, runID, batchID int64) error {
	run, ok := r.runs[runID]
	if !ok {
		return ErrRunNotFound
	}
	run.JournalBatchID = batchID
	return nil
}

func (r *memoryDeprRepo) DeleteRun(ctx context.Context, runID int64) error {
	// Fails on a dead context the way a real pool call would.
	if err := ctx.Err(); err != nil {
		return err
	}
	delete(r.runs, runID)
	return nil
}

func (r *memoryDeprRepo) VoidRun(ctx context.Context, runID int64) error {
	run, ok := r.runs[runID]
	if !ok || run.Status != RunStatusPosted {
		return ErrRunNotFound
	}
	run.Status = RunStatusVoid
	return nil
}

type fakeJournal struct {
	postErr  error
	posted   []journal.PostingInput
	reversed []journal.ReverseInput
	nextID   int64
}

func (j *fakeJournal) Post(ctx context.Context, input journal.PostingInput) (journal.Batch, error) {
	if err := ctx.Err(); err != nil {
		return journal.Batch{}, err
	}
	if j.postErr != nil {
		return journal.Batch{}, j.postErr
	}
	j.nextID++
	j.posted = append(j.posted, input)
	return journal.Batch{ID: j.nextID, CompanyID: input.CompanyID, DocType: input.DocType, DocID: input.DocID, Status: journal.BatchStatusPosted}, nil
}

func (j *fakeJournal) Reverse(ctx context.Context, input journal.ReverseInput) (journal.Batch, error) {
	j.nextID++
	j.reversed = append(j.reversed, input)
	return journal.Batch{ID: j.nextID, CompanyID: input.CompanyID, Status: journal.BatchStatusPosted}, nil
}

type allowAllAccounts struct{}

func (allowAllAccounts) AssertPostable(ctx context.Context, companyID, accountID int64) error {
	return nil
}

func activePlanFixture(t *testing.T, repo *memoryDeprRepo, svc *Service) Plan {
	t.Helper()
	plan, err := svc.CreatePlan(context.Background(), CreatePlanInput{
		CompanyID:          1,
		AssetID:            9,
		Method:             MethodStraightLine,
		StartDate:          time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		UsefulLifeMonths:   12,
		SalvageValue:       0,
		PurchaseCost:       1200000,
		ExpenseAccountID:   50,
		AccumDeprAccountID: 60,
	})
	require.NoError(t, err)
	plan, err = svc.ActivatePlan(context.Background(), 1, plan.ID, 7)
	require.NoError(t, err)
	return plan
}

func newDeprService(repo *memoryDeprRepo, jrn *fakeJournal) *Service {
	return NewService(repo, jrn, allowAllAccounts{}, nil)
}

func TestRunPeriodPostsTwoLineBatch(t *testing.T) {
	repo := newMemoryDeprRepo()
	jrn := &fakeJournal{}
	svc := newDeprService(repo, jrn)
	plan := activePlanFixture(t, repo, svc)

	result, err := svc.RunPeriod(context.Background(), RunPeriodInput{CompanyID: 1, PlanID: plan.ID, PeriodYear: 2025, PeriodMonth: 1, ActorID: 7})
	require.NoError(t, err)
	require.False(t, result.Duplicate)
	require.InDelta(t, 100000, result.Run.Amount, 0.001)
	require.NotZero(t, result.Run.JournalBatchID)

	require.Len(t, jrn.posted, 1)
	posting := jrn.posted[0]
	require.Equal(t, DocTypeRun, posting.DocType)
	require.Len(t, posting.Lines, 2)
	require.Equal(t, int64(50), posting.Lines[0].AccountID)
	require.InDelta(t, 100000, posting.Lines[0].Debit, 0.001)
	require.Equal(t, int64(60), posting.Lines[1].AccountID)
	require.InDelta(t, 100000, posting.Lines[1].Credit, 0.001)
}

func TestRunPeriodDuplicateIsFlaggedNotFailed(t *testing.T) {
	repo := newMemoryDeprRepo()
	jrn := &fakeJournal{}
	svc := newDeprService(repo, jrn)
	plan := activePlanFixture(t, repo, svc)

	input := RunPeriodInput{CompanyID: 1, PlanID: plan.ID, PeriodYear: 2025, PeriodMonth: 3}
	first, err := svc.RunPeriod(context.Background(), input)
	require.NoError(t, err)
	require.False(t, first.Duplicate)

	second, err := svc.RunPeriod(context.Background(), input)
	require.NoError(t, err)
	require.True(t, second.Duplicate)
	require.Equal(t, first.Run.ID, second.Run.ID)
	require.Len(t, jrn.posted, 1, "duplicate submission must not post a second batch")
}

func TestRunPeriodRejectsInactivePlan(t *testing.T) {
	repo := newMemoryDeprRepo()
	jrn := &fakeJournal{}
	svc := newDeprService(repo, jrn)
	plan, err := svc.CreatePlan(context.Background(), CreatePlanInput{
		CompanyID: 1, AssetID: 9, Method: MethodStraightLine,
		StartDate: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		UsefulLifeMonths: 12, PurchaseCost: 1200000,
		ExpenseAccountID: 50, AccumDeprAccountID: 60,
	})
	require.NoError(t, err)

	_, err = svc.RunPeriod(context.Background(), RunPeriodInput{CompanyID: 1, PlanID: plan.ID, PeriodYear: 2025, PeriodMonth: 1})
	require.ErrorIs(t, err, ErrPlanNotActive)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestRunPeriodRejectsBadPeriods(t *testing.T) {
	repo := newMemoryDeprRepo()
	jrn := &fakeJournal{}
	svc := newDeprService(repo, jrn)
	plan := activePlanFixture(t, repo, svc)

	for _, tc := range []struct{ year, month int }{
		{2025, 0},
		{2025, 13},
		{2024, 12}, // before start
		{2026, 1},  // past schedule end
	} {
		_, err := svc.RunPeriod(context.Background(), RunPeriodInput{CompanyID: 1, PlanID: plan.ID, PeriodYear: tc.year, PeriodMonth: tc.month})
		require.ErrorIs(t, err, ErrInvalidPeriod, "year=%d month=%d", tc.year, tc.month)
	}
	require.Empty(t, jrn.posted)
}

func TestRunPeriodReleasesClaimWhenPostingFails(t *testing.T) {
	repo := newMemoryDeprRepo()
	jrn := &fakeJournal{postErr: shared.E(shared.ErrInternal, "journal down")}
	svc := newDeprService(repo, jrn)
	plan := activePlanFixture(t, repo, svc)

	input := RunPeriodInput{CompanyID: 1, PlanID: plan.ID, PeriodYear: 2025, PeriodMonth: 1}
	_, err := svc.RunPeriod(context.Background(), input)
	require.Error(t, err)
	require.Empty(t, repo.runs, "failed posting must release the period claim")

	jrn.postErr = nil
	result, err := svc.RunPeriod(context.Background(), input)
	require.NoError(t, err)
	require.False(t, result.Duplicate)
}

func TestRunPeriodReleasesClaimWhenRequestIsCancelled(t *testing.T) {
	repo := newMemoryDeprRepo()
	jrn := &fakeJournal{}
	svc := newDeprService(repo, jrn)
	plan := activePlanFixture(t, repo, svc)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	input := RunPeriodInput{CompanyID: 1, PlanID: plan.ID, PeriodYear: 2025, PeriodMonth: 1}
	_, err := svc.RunPeriod(cancelled, input)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, repo.runs, "a cancelled post must not leave a claimed run behind")

	result, err := svc.RunPeriod(context.Background(), input)
	require.NoError(t, err)
	require.False(t, result.Duplicate, "retry should post the period, not report a duplicate")
	require.NotZero(t, result.Run.JournalBatchID)
}

func TestVoidRunReversesBatchAndFreesPeriod(t *testing.T) {
	repo := newMemoryDeprRepo()
	jrn := &fakeJournal{}
	svc := newDeprService(repo, jrn)
	plan := activePlanFixture(t, repo, svc)

	input := RunPeriodInput{CompanyID: 1, PlanID: plan.ID, PeriodYear: 2025, PeriodMonth: 1, ActorID: 7}
	result, err := svc.RunPeriod(context.Background(), input)
	require.NoError(t, err)

	voided, err := svc.VoidRun(context.Background(), 1, result.Run.ID, 7)
	require.NoError(t, err)
	require.Equal(t, RunStatusVoid, voided.Status)
	require.Len(t, jrn.reversed, 1)
	require.Equal(t, result.Run.JournalBatchID, jrn.reversed[0].BatchID)

	rerun, err := svc.RunPeriod(context.Background(), input)
	require.NoError(t, err)
	require.False(t, rerun.Duplicate, "a voided period must accept a corrected re-run")
}

func TestActivatePlanEnforcesOneActivePerAsset(t *testing.T) {
	repo := newMemoryDeprRepo()
	svc := newDeprService(repo, &fakeJournal{})
	activePlanFixture(t, repo, svc)

	second, err := svc.CreatePlan(context.Background(), CreatePlanInput{
		CompanyID: 1, AssetID: 9, Method: MethodStraightLine,
		StartDate: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		UsefulLifeMonths: 24, PurchaseCost: 500000,
		ExpenseAccountID: 50, AccumDeprAccountID: 60,
	})
	require.NoError(t, err)

	_, err = svc.ActivatePlan(context.Background(), 1, second.ID, 7)
	require.ErrorIs(t, err, ErrPlanConflict)
}

func TestVoidPlanBlocksFurtherRuns(t *testing.T) {
	repo := newMemoryDeprRepo()
	svc := newDeprService(repo, &fakeJournal{})
	plan := activePlanFixture(t, repo, svc)

	_, err := svc.VoidPlan(context.Background(), 1, plan.ID, 7)
	require.NoError(t, err)

	_, err = svc.RunPeriod(context.Background(), RunPeriodInput{CompanyID: 1, PlanID: plan.ID, PeriodYear: 2025, PeriodMonth: 1})
	require.ErrorIs(t, err, ErrPlanNotActive)

	_, err = svc.VoidPlan(context.Background(), 1, plan.ID, 7)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCreatePlanValidation(t *testing.T) {
	svc := newDeprService(newMemoryDeprRepo(), &fakeJournal{})
	base := CreatePlanInput{
		CompanyID: 1, AssetID: 9, Method: MethodStraightLine,
		StartDate: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		UsefulLifeMonths: 12, PurchaseCost: 1000, SalvageValue: 100,
		ExpenseAccountID: 50, AccumDeprAccountID: 60,
	}

	bad := base
	bad.Method = "DOUBLE_SECRET"
	_, err := svc.CreatePlan(context.Background(), bad)
	require.ErrorIs(t, err, shared.ErrValidation)

	bad = base
	bad.UsefulLifeMonths = 0
	_, err = svc.CreatePlan(context.Background(), bad)
	require.ErrorIs(t, err, shared.ErrValidation)

	bad = base
	bad.SalvageValue = 1000
	_, err = svc.CreatePlan(context.Background(), bad)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRunAllForPeriodSkipsOutOfSchedulePlans(t *testing.T) {
	repo := newMemoryDeprRepo()
	jrn := &fakeJournal{}
	svc := newDeprService(repo, jrn)
	activePlanFixture(t, repo, svc)

	later, err := svc.CreatePlan(context.Background(), CreatePlanInput{
		CompanyID: 2, AssetID: 11, Method: MethodStraightLine,
		StartDate: time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC),
		UsefulLifeMonths: 12, PurchaseCost: 600000,
		ExpenseAccountID: 50, AccumDeprAccountID: 60,
	})
	require.NoError(t, err)
	_, err = svc.ActivatePlan(context.Background(), 2, later.ID, 7)
	require.NoError(t, err)

	posted, duplicates, err := svc.RunAllForPeriod(context.Background(), 2025, 2)
	require.NoError(t, err)
	require.Equal(t, 1, posted)
	require.Zero(t, duplicates)

	posted, duplicates, err = svc.RunAllForPeriod(context.Background(), 2025, 2)
	require.NoError(t, err)
	require.Zero(t, posted)
	require.Equal(t, 1, duplicates)
}
