package depreciation

import (
	"github.com/shopspring/decimal"
)

// Schedule math. All arithmetic runs in decimal so repeated monthly amounts
// never drift; the final period always posts the exact remainder, which makes
// the lifetime total equal cost minus salvage to the cent.

// PeriodAmount is one scheduled period.
type PeriodAmount struct {
	Year   int     `json:"year"`
	Month  int     `json:"month"`
	Amount float64 `json:"amount"`
}

func (p Plan) depreciable() decimal.Decimal {
	return decimal.NewFromFloat(p.PurchaseCost).Sub(decimal.NewFromFloat(p.SalvageValue))
}

// PeriodAmountAt computes the depreciation amount for the schedule position
// idx given the total already depreciated by prior non-VOID runs. It returns
// zero once the schedule is exhausted or the book value reaches salvage.
func (p Plan) PeriodAmountAt(idx int, priorTotal float64) float64 {
	if idx < 0 || idx >= p.UsefulLifeMonths || p.UsefulLifeMonths <= 0 {
		return 0
	}
	depreciable := p.depreciable()
	prior := decimal.NewFromFloat(priorTotal)
	remaining := depreciable.Sub(prior)
	if remaining.LessThanOrEqual(decimal.Zero) {
		return 0
	}
	// Last period posts the exact remainder regardless of method.
	if idx == p.UsefulLifeMonths-1 {
		f, _ := remaining.Round(2).Float64()
		return f
	}

	var amount decimal.Decimal
	switch p.Method {
	case MethodDecliningBalance:
		// Double-declining on a monthly basis: rate = 2 / life in months,
		// applied to the remaining book value above salvage.
		rate := decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(p.UsefulLifeMonths)))
		book := decimal.NewFromFloat(p.PurchaseCost).Sub(prior)
		amount = book.Mul(rate)
	case MethodSumOfYears:
		amount = p.sumOfYearsMonthly(idx)
	default: // MethodStraightLine
		amount = depreciable.Div(decimal.NewFromInt(int64(p.UsefulLifeMonths)))
	}

	amount = amount.Round(2)
	if amount.GreaterThan(remaining) {
		amount = remaining.Round(2)
	}
	if amount.IsNegative() {
		return 0
	}
	f, _ := amount.Float64()
	return f
}

// sumOfYearsMonthly derives the month idx amount from annual
// sum-of-the-years-digits weights, spreading each year's amount evenly over
// its months. A final partial year gets the remaining months.
func (p Plan) sumOfYearsMonthly(idx int) decimal.Decimal {
	years := (p.UsefulLifeMonths + 11) / 12
	syd := years * (years + 1) / 2
	yearIdx := idx / 12
	weight := decimal.NewFromInt(int64(years - yearIdx)).Div(decimal.NewFromInt(int64(syd)))
	annual := p.depreciable().Mul(weight)

	monthsInYear := 12
	if yearIdx == years-1 {
		if rem := p.UsefulLifeMonths - 12*(years-1); rem > 0 {
			monthsInYear = rem
		}
	}
	return annual.Div(decimal.NewFromInt(int64(monthsInYear)))
}

// Schedule materializes the full period-by-period schedule. It is a pure
// function used by the preview endpoint and by tests asserting the lifetime
// total.
func (p Plan) Schedule() []PeriodAmount {
	if p.UsefulLifeMonths <= 0 {
		return nil
	}
	out := make([]PeriodAmount, 0, p.UsefulLifeMonths)
	var accumulated float64
	year, month := p.StartDate.Year(), int(p.StartDate.Month())
	for idx := 0; idx < p.UsefulLifeMonths; idx++ {
		amount := p.PeriodAmountAt(idx, accumulated)
		out = append(out, PeriodAmount{Year: year, Month: month, Amount: amount})
		accumulated += amount
		month++
		if month > 12 {
			month = 1
			year++
		}
	}
	return out
}
