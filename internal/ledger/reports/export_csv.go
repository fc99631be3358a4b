package reports

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

var amountPrinter = message.NewPrinter(language.English)

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvStreamer{buf: buf, csv: writer, flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeComment(line string) error {
	if s == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if !strings.HasSuffix(line, "\r\n") {
		line = strings.TrimSuffix(line, "\n")
		line += "\r\n"
	}
	_, err := s.buf.WriteString(line)
	return err
}

func (s *csvStreamer) writeRow(row []string) error {
	if s == nil || s.csv == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.flush()
	}
	return nil
}

func (s *csvStreamer) flush() error {
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

func amount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// WriteTrialBalanceCSV streams the trial balance as CSV. Header comments
// carry locale-formatted grand totals for quick eyeballing.
func WriteTrialBalanceCSV(w io.Writer, report TBReport) error {
	st := newCSVStreamer(w)
	if err := st.writeComment(amountPrinter.Sprintf("# trial balance, total debit %.2f, total credit %.2f", report.Totals.TotalDebit, report.Totals.TotalCredit)); err != nil {
		return err
	}
	if err := st.writeRow([]string{"account_code", "account_name", "total_debit", "total_credit", "balance"}); err != nil {
		return err
	}
	for _, row := range report.Rows {
		if err := st.writeRow([]string{row.AccountCode, row.AccountName, amount(row.TotalDebit), amount(row.TotalCredit), amount(row.Balance)}); err != nil {
			return err
		}
	}
	if err := st.writeRow([]string{"TOTAL", "", amount(report.Totals.TotalDebit), amount(report.Totals.TotalCredit), amount(report.Totals.Balance)}); err != nil {
		return err
	}
	return st.flush()
}

// WriteWorksheetCSV streams the worksheet as CSV.
func WriteWorksheetCSV(w io.Writer, report WSReport) error {
	st := newCSVStreamer(w)
	if err := st.writeComment(amountPrinter.Sprintf("# worksheet, net profit %.2f", report.Summary.NetProfit)); err != nil {
		return err
	}
	if err := st.writeRow([]string{"account_code", "account_name", "report_group", "opening_debit", "opening_credit", "period_debit", "period_credit", "ending_debit", "ending_credit", "pl_debit", "pl_credit", "bs_debit", "bs_credit"}); err != nil {
		return err
	}
	for _, row := range report.Rows {
		if err := st.writeRow([]string{
			row.AccountCode, row.AccountName, row.ReportGroup,
			amount(row.OpeningDebit), amount(row.OpeningCredit),
			amount(row.PeriodDebit), amount(row.PeriodCredit),
			amount(row.EndingDebit), amount(row.EndingCredit),
			amount(row.PLDebit), amount(row.PLCredit),
			amount(row.BSDebit), amount(row.BSCredit),
		}); err != nil {
			return err
		}
	}
	return st.flush()
}

// WriteGeneralLedgerCSV streams one GL page as CSV.
func WriteGeneralLedgerCSV(w io.Writer, report GLReport) error {
	st := newCSVStreamer(w)
	if err := st.writeComment(amountPrinter.Sprintf("# general ledger %s %s, opening %.2f, ending %.2f", report.AccountCode, report.AccountName, report.OpeningBalance, report.EndingBalance)); err != nil {
		return err
	}
	if err := st.writeRow([]string{"posted_at", "batch_id", "line_no", "doc_type", "memo", "description", "debit", "credit", "running_balance"}); err != nil {
		return err
	}
	for _, line := range report.Lines {
		if err := st.writeRow([]string{
			line.PostedAt.Format("2006-01-02 15:04:05"),
			strconv.FormatInt(line.BatchID, 10),
			strconv.Itoa(line.LineNo),
			line.DocType,
			line.Memo,
			line.Description,
			amount(line.Debit), amount(line.Credit), amount(line.Running),
		}); err != nil {
			return err
		}
	}
	return st.flush()
}
