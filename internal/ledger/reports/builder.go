package reports

import (
	"sort"

	"github.com/balanca-pos/balanca/internal/shared"
)

// Pure report builders. These fold raw account activity into report payloads
// and own all rounding; SQL never rounds and stored values are never
// truncated.

// sign returns +1 for debit-normal accounts, -1 for credit-normal ones.
func sign(normalBalance string) float64 {
	if normalBalance == "CREDIT" {
		return -1
	}
	return 1
}

// BuildTrialBalance folds per-account activity into trial balance rows.
// Accounts without period activity are skipped; totals carry the balance
// identity: total debit equals total credit for balanced books.
func BuildTrialBalance(activity []AccountActivity, round int32) TBReport {
	rows := make([]TBRow, 0, len(activity))
	var totals TBTotals
	for _, act := range activity {
		debit := shared.Round(act.PeriodDebit, round)
		credit := shared.Round(act.PeriodCredit, round)
		if debit == 0 && credit == 0 {
			continue
		}
		row := TBRow{
			AccountID:   act.AccountID,
			AccountCode: act.Code,
			AccountName: act.Name,
			TotalDebit:  debit,
			TotalCredit: credit,
			Balance:     shared.Round(debit-credit, round),
		}
		rows = append(rows, row)
		totals.TotalDebit = shared.Round(totals.TotalDebit+debit, round)
		totals.TotalCredit = shared.Round(totals.TotalCredit+credit, round)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].AccountCode < rows[j].AccountCode })
	totals.Balance = shared.Round(totals.TotalDebit-totals.TotalCredit, round)
	return TBReport{Rows: rows, Totals: totals}
}

// BuildWorksheet routes ending balances into balance sheet and profit & loss
// column pairs. The net profit line closes the sheet: bs_debit - bs_credit
// equals -(pl_debit - pl_credit) when the books balance.
func BuildWorksheet(activity []AccountActivity, round int32) WSReport {
	rows := make([]WSRow, 0, len(activity))
	var summary WSSummary
	for _, act := range activity {
		openingNet := act.OpeningDebit - act.OpeningCredit
		endingNet := openingNet + act.PeriodDebit - act.PeriodCredit
		row := WSRow{
			AccountID:     act.AccountID,
			AccountCode:   act.Code,
			AccountName:   act.Name,
			ReportGroup:   act.ReportGroup,
			OpeningDebit:  shared.Round(act.OpeningDebit, round),
			OpeningCredit: shared.Round(act.OpeningCredit, round),
			PeriodDebit:   shared.Round(act.PeriodDebit, round),
			PeriodCredit:  shared.Round(act.PeriodCredit, round),
		}
		if endingNet >= 0 {
			row.EndingDebit = shared.Round(endingNet, round)
		} else {
			row.EndingCredit = shared.Round(-endingNet, round)
		}
		if row.EndingDebit == 0 && row.EndingCredit == 0 &&
			row.PeriodDebit == 0 && row.PeriodCredit == 0 &&
			row.OpeningDebit == 0 && row.OpeningCredit == 0 {
			continue
		}
		switch act.ReportGroup {
		case "PROFIT_LOSS":
			row.PLDebit = row.EndingDebit
			row.PLCredit = row.EndingCredit
			summary.PLDebit = shared.Round(summary.PLDebit+row.PLDebit, round)
			summary.PLCredit = shared.Round(summary.PLCredit+row.PLCredit, round)
		default:
			row.BSDebit = row.EndingDebit
			row.BSCredit = row.EndingCredit
			summary.BSDebit = shared.Round(summary.BSDebit+row.BSDebit, round)
			summary.BSCredit = shared.Round(summary.BSCredit+row.BSCredit, round)
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].AccountCode < rows[j].AccountCode })
	summary.NetProfit = shared.Round(summary.PLCredit-summary.PLDebit, round)
	return WSReport{Rows: rows, Summary: summary}
}

// BuildGeneralLedger assembles the GL summary and threads the running balance
// through the page of lines. priorDebit/priorCredit carry the net of period
// lines before the requested page so the running balance stays correct on
// every page. The running balance is signed by the account's normal balance
// so it reads naturally for both sides of the book.
func BuildGeneralLedger(act AccountActivity, lines []GLLine, priorDebit, priorCredit float64, round int32) GLReport {
	sgn := sign(act.NormalBalance)
	opening := shared.Round((act.OpeningDebit-act.OpeningCredit)*sgn, round)
	periodDebit := shared.Round(act.PeriodDebit, round)
	periodCredit := shared.Round(act.PeriodCredit, round)
	ending := shared.Round(opening+(periodDebit-periodCredit)*sgn, round)

	report := GLReport{
		AccountID:      act.AccountID,
		AccountCode:    act.Code,
		AccountName:    act.Name,
		NormalBalance:  act.NormalBalance,
		OpeningDebit:   shared.Round(act.OpeningDebit, round),
		OpeningCredit:  shared.Round(act.OpeningCredit, round),
		PeriodDebit:    periodDebit,
		PeriodCredit:   periodCredit,
		OpeningBalance: opening,
		EndingBalance:  ending,
		Lines:          make([]GLLine, 0, len(lines)),
	}
	running := shared.Round(opening+(priorDebit-priorCredit)*sgn, round)
	for _, line := range lines {
		running = shared.Round(running+(line.Debit-line.Credit)*sgn, round)
		line.Debit = shared.Round(line.Debit, round)
		line.Credit = shared.Round(line.Credit, round)
		line.Running = running
		report.Lines = append(report.Lines, line)
	}
	return report
}
