package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/ledgereye/internal/executor"
	"github.com/ledgereye/internal/models"
)

// Generator renders financial reports from the company's ledger. It
// implements executor.ReportRenderer.
type Generator struct {
	db  *gorm.DB
	loc *time.Location
}

func NewGenerator(db *gorm.DB, loc *time.Location) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{db: db, loc: loc}
}

type reportTable struct {
	Title       string
	GeneratedAt time.Time
	Header      []string
	Rows        [][]string
}

type accountTotal struct {
	account models.Account
	debit   float64
	credit  float64
}

func (g *Generator) Render(ctx context.Context, reportType models.ReportType, format models.ExportFormat, companyID string) (*executor.Document, error) {
	table, err := g.buildTable(ctx, reportType, companyID)
	if err != nil {
		return nil, err
	}

	switch format {
	case models.FormatCSV:
		return encodeCSV(table, "text/csv", ".csv", false)
	case models.FormatExcel:
		// Excel opens BOM-prefixed CSV with correct encoding.
		return encodeCSV(table, "application/vnd.ms-excel", ".xls", true)
	case models.FormatPDF:
		// TODO: produce real PDF bytes once a PDF library is chosen; until
		// then the export is the print-ready HTML document.
		return encodeHTML(table)
	default:
		return nil, fmt.Errorf("unknown export format: %s", format)
	}
}

func (g *Generator) buildTable(ctx context.Context, reportType models.ReportType, companyID string) (*reportTable, error) {
	totals, lines, entries, accounts, err := g.loadLedger(ctx, companyID)
	if err != nil {
		return nil, err
	}

	now := time.Now().In(g.loc)
	table := &reportTable{GeneratedAt: now}

	switch reportType {
	case models.ReportTypeProfitLoss:
		table.Title = "Profit & Loss"
		table.Header = []string{"Account", "Income", "Expense"}
		var totalIncome, totalExpense float64
		for _, t := range sortedTotals(totals) {
			switch t.account.Type {
			case models.AccountTypeIncome:
				income := t.credit - t.debit
				totalIncome += income
				table.Rows = append(table.Rows, []string{accountLabel(t.account), money(income), ""})
			case models.AccountTypeExpense:
				expense := t.debit - t.credit
				totalExpense += expense
				table.Rows = append(table.Rows, []string{accountLabel(t.account), "", money(expense)})
			}
		}
		table.Rows = append(table.Rows, []string{"Net Profit", money(totalIncome - totalExpense), ""})

	case models.ReportTypeBalanceSheet:
		table.Title = "Balance Sheet"
		table.Header = []string{"Account", "Type", "Balance"}
		for _, t := range sortedTotals(totals) {
			switch t.account.Type {
			case models.AccountTypeAsset:
				table.Rows = append(table.Rows, []string{accountLabel(t.account), "Asset", money(t.debit - t.credit)})
			case models.AccountTypeLiability:
				table.Rows = append(table.Rows, []string{accountLabel(t.account), "Liability", money(t.credit - t.debit)})
			case models.AccountTypeEquity:
				table.Rows = append(table.Rows, []string{accountLabel(t.account), "Equity", money(t.credit - t.debit)})
			}
		}

	case models.ReportTypeCashFlow:
		table.Title = "Cash Flow"
		table.Header = []string{"Month", "Inflow", "Outflow", "Net"}
		table.Rows = cashFlowRows(entries, lines, accounts)

	case models.ReportTypeTrialBalance:
		table.Title = "Trial Balance"
		table.Header = []string{"Account", "Debit", "Credit"}
		var totalDebit, totalCredit float64
		for _, t := range sortedTotals(totals) {
			totalDebit += t.debit
			totalCredit += t.credit
			table.Rows = append(table.Rows, []string{accountLabel(t.account), money(t.debit), money(t.credit)})
		}
		table.Rows = append(table.Rows, []string{"Total", money(totalDebit), money(totalCredit)})

	case models.ReportTypeGeneralLedger:
		table.Title = "General Ledger"
		table.Header = []string{"Date", "Account", "Memo", "Debit", "Credit"}
		table.Rows = ledgerRows(entries, lines, accounts)

	case models.ReportTypeDashboardSummary:
		table.Title = "Dashboard Summary"
		table.Header = []string{"Metric", "Value"}
		var totalDebit float64
		for _, t := range totals {
			totalDebit += t.debit
		}
		table.Rows = [][]string{
			{"Accounts", fmt.Sprintf("%d", len(accounts))},
			{"Journal entries", fmt.Sprintf("%d", len(entries))},
			{"Journal lines", fmt.Sprintf("%d", len(lines))},
			{"Total posted", money(totalDebit)},
		}

	default:
		return nil, fmt.Errorf("unknown report type: %s", reportType)
	}

	return table, nil
}

func (g *Generator) loadLedger(ctx context.Context, companyID string) (map[string]*accountTotal, []models.JournalLine, []models.JournalEntry, map[string]models.Account, error) {
	var accountRows []models.Account
	if err := g.db.WithContext(ctx).Where("company_id = ?", companyID).Find(&accountRows).Error; err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to load accounts: %v", err)
	}

	var entries []models.JournalEntry
	if err := g.db.WithContext(ctx).Where("company_id = ?", companyID).Order("entry_date").Find(&entries).Error; err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to load journal entries: %v", err)
	}

	entryIDs := make([]string, 0, len(entries))
	for _, e := range entries {
		entryIDs = append(entryIDs, e.ID)
	}

	var lines []models.JournalLine
	if len(entryIDs) > 0 {
		if err := g.db.WithContext(ctx).Where("entry_id IN ?", entryIDs).Find(&lines).Error; err != nil {
			return nil, nil, nil, nil, fmt.Errorf("failed to load journal lines: %v", err)
		}
	}

	accounts := make(map[string]models.Account, len(accountRows))
	for _, a := range accountRows {
		accounts[a.ID] = a
	}

	totals := make(map[string]*accountTotal)
	for _, line := range lines {
		account, ok := accounts[line.AccountID]
		if !ok {
			continue
		}
		t, ok := totals[line.AccountID]
		if !ok {
			t = &accountTotal{account: account}
			totals[line.AccountID] = t
		}
		t.debit += line.Debit
		t.credit += line.Credit
	}

	return totals, lines, entries, accounts, nil
}

func sortedTotals(totals map[string]*accountTotal) []*accountTotal {
	result := make([]*accountTotal, 0, len(totals))
	for _, t := range totals {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].account.Code < result[j].account.Code
	})
	return result
}

func cashFlowRows(entries []models.JournalEntry, lines []models.JournalLine, accounts map[string]models.Account) [][]string {
	entryMonth := make(map[string]string, len(entries))
	for _, e := range entries {
		entryMonth[e.ID] = e.EntryDate.Format("2006-01")
	}

	type flow struct{ in, out float64 }
	months := make(map[string]*flow)
	for _, line := range lines {
		account, ok := accounts[line.AccountID]
		if !ok || account.Type != models.AccountTypeAsset {
			continue
		}
		month, ok := entryMonth[line.EntryID]
		if !ok {
			continue
		}
		f, ok := months[month]
		if !ok {
			f = &flow{}
			months[month] = f
		}
		f.in += line.Debit
		f.out += line.Credit
	}

	keys := make([]string, 0, len(months))
	for m := range months {
		keys = append(keys, m)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, m := range keys {
		f := months[m]
		rows = append(rows, []string{m, money(f.in), money(f.out), money(f.in - f.out)})
	}
	return rows
}

func ledgerRows(entries []models.JournalEntry, lines []models.JournalLine, accounts map[string]models.Account) [][]string {
	entryByID := make(map[string]models.JournalEntry, len(entries))
	for _, e := range entries {
		entryByID[e.ID] = e
	}

	sorted := append([]models.JournalLine(nil), lines...)
	sort.Slice(sorted, func(i, j int) bool {
		ei, ej := entryByID[sorted[i].EntryID], entryByID[sorted[j].EntryID]
		if !ei.EntryDate.Equal(ej.EntryDate) {
			return ei.EntryDate.Before(ej.EntryDate)
		}
		return sorted[i].ID < sorted[j].ID
	})

	rows := make([][]string, 0, len(sorted))
	for _, line := range sorted {
		entry := entryByID[line.EntryID]
		rows = append(rows, []string{
			entry.EntryDate.Format("2006-01-02"),
			accountLabel(accounts[line.AccountID]),
			entry.Memo,
			money(line.Debit),
			money(line.Credit),
		})
	}
	return rows
}

func accountLabel(account models.Account) string {
	if account.Code == "" {
		return account.Name
	}
	return account.Code + " " + account.Name
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func encodeCSV(table *reportTable, contentType, extension string, bom bool) (*executor.Document, error) {
	var buf bytes.Buffer
	if bom {
		buf.WriteString("\ufeff")
	}

	w := csv.NewWriter(&buf)
	if err := w.Write(table.Header); err != nil {
		return nil, fmt.Errorf("failed to encode report: %v", err)
	}
	for _, row := range table.Rows {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to encode report: %v", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to encode report: %v", err)
	}

	return &executor.Document{
		Title:       table.Title,
		Filename:    filename(table, extension),
		ContentType: contentType,
		Data:        buf.Bytes(),
	}, nil
}

var htmlReport = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>Generated {{.GeneratedAt.Format "2006-01-02 15:04"}}</p>
<table border="1" cellspacing="0" cellpadding="4">
<tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr>
{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</table>
</body>
</html>
`))

func encodeHTML(table *reportTable) (*executor.Document, error) {
	var buf bytes.Buffer
	if err := htmlReport.Execute(&buf, table); err != nil {
		return nil, fmt.Errorf("failed to execute report template: %v", err)
	}
	return &executor.Document{
		Title:       table.Title,
		Filename:    filename(table, ".html"),
		ContentType: "text/html",
		Data:        buf.Bytes(),
	}, nil
}

func filename(table *reportTable, extension string) string {
	name := strings.ToLower(strings.ReplaceAll(table.Title, " ", "_"))
	name = strings.NewReplacer("&", "and", "__", "_").Replace(name)
	return fmt.Sprintf("%s_%s%s", name, table.GeneratedAt.Format("20060102"), extension)
}
