package depreciation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/balanca-pos/balanca/internal/shared"
)

func testPlan(method Method) Plan {
	return Plan{
		ID:               1,
		CompanyID:        1,
		AssetID:          9,
		Method:           method,
		StartDate:        time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		UsefulLifeMonths: 12,
		SalvageValue:     200000,
		PurchaseCost:     1400000,
		Status:           PlanStatusActive,
	}
}

func scheduleTotal(schedule []PeriodAmount) float64 {
	var total float64
	for _, p := range schedule {
		total += p.Amount
	}
	return shared.Round(total, 2)
}

func TestStraightLineFlatAmounts(t *testing.T) {
	plan := testPlan(MethodStraightLine)
	schedule := plan.Schedule()
	require.Len(t, schedule, 12)
	for _, p := range schedule {
		require.InDelta(t, 100000, p.Amount, 0.001)
	}
	require.Equal(t, 2025, schedule[0].Year)
	require.Equal(t, 1, schedule[0].Month)
	require.Equal(t, 12, schedule[11].Month)
}

func TestLifetimeTotalEqualsDepreciableBase(t *testing.T) {
	for _, method := range []Method{MethodStraightLine, MethodDecliningBalance, MethodSumOfYears} {
		t.Run(string(method), func(t *testing.T) {
			plan := testPlan(method)
			require.InDelta(t, plan.PurchaseCost-plan.SalvageValue, scheduleTotal(plan.Schedule()), 0.005)
		})
	}
}

func TestDecliningBalanceFrontLoads(t *testing.T) {
	plan := testPlan(MethodDecliningBalance)
	schedule := plan.Schedule()
	require.Greater(t, schedule[0].Amount, schedule[5].Amount)
	// rate = 2/12 applied to full cost in the first month
	require.InDelta(t, 1400000*2.0/12.0, schedule[0].Amount, 0.01)
}

func TestSumOfYearsWeightsDecline(t *testing.T) {
	plan := testPlan(MethodSumOfYears)
	plan.UsefulLifeMonths = 36
	schedule := plan.Schedule()
	require.Len(t, schedule, 36)
	// annual weights 3/6, 2/6, 1/6 spread over their 12 months
	base := plan.PurchaseCost - plan.SalvageValue
	require.InDelta(t, base*3/6/12, schedule[0].Amount, 0.01)
	require.InDelta(t, base*2/6/12, schedule[12].Amount, 0.01)
	require.InDelta(t, base/6/12, schedule[24].Amount, 0.01)
	require.InDelta(t, base, scheduleTotal(schedule), 0.005)
}

func TestScheduleNeverDepreciatesBelowSalvage(t *testing.T) {
	plan := testPlan(MethodDecliningBalance)
	var accumulated float64
	for _, p := range plan.Schedule() {
		accumulated += p.Amount
		book := plan.PurchaseCost - accumulated
		require.GreaterOrEqual(t, shared.Round(book, 2), plan.SalvageValue-0.005)
	}
}

func TestPeriodAmountOutsideSchedule(t *testing.T) {
	plan := testPlan(MethodStraightLine)
	require.Zero(t, plan.PeriodAmountAt(-1, 0))
	require.Zero(t, plan.PeriodAmountAt(12, 0))
	require.Zero(t, plan.PeriodAmountAt(3, plan.PurchaseCost-plan.SalvageValue))
}

func TestFinalPeriodPostsExactRemainder(t *testing.T) {
	plan := testPlan(MethodStraightLine)
	plan.PurchaseCost = 1000
	plan.SalvageValue = 0
	plan.UsefulLifeMonths = 7 // 142.86 monthly with a rounding tail
	schedule := plan.Schedule()
	require.InDelta(t, 1000, scheduleTotal(schedule), 0.001)
	require.NotEqual(t, schedule[0].Amount, schedule[6].Amount)
}

func TestPeriodIndex(t *testing.T) {
	plan := testPlan(MethodStraightLine)
	require.Equal(t, 0, plan.periodIndex(2025, 1))
	require.Equal(t, 11, plan.periodIndex(2025, 12))
	require.Equal(t, 12, plan.periodIndex(2026, 1))
	require.Equal(t, -1, plan.periodIndex(2024, 12))
	require.Equal(t, -1, plan.periodIndex(2025, 0))
	require.Equal(t, -1, plan.periodIndex(2025, 13))
}
