package models

import (
	"time"

	"github.com/ledgereye/internal/recurrence"
)

type ReportType string

const (
	ReportTypeProfitLoss       ReportType = "profit_loss"
	ReportTypeBalanceSheet     ReportType = "balance_sheet"
	ReportTypeCashFlow         ReportType = "cash_flow"
	ReportTypeTrialBalance     ReportType = "trial_balance"
	ReportTypeGeneralLedger    ReportType = "general_ledger"
	ReportTypeDashboardSummary ReportType = "dashboard_summary"
)

type ExportFormat string

const (
	FormatPDF   ExportFormat = "pdf"
	FormatExcel ExportFormat = "excel"
	FormatCSV   ExportFormat = "csv"
)

// ReportSchedule is one user-configured automated report. The recurrence
// fields are flattened for storage; internal/recurrence owns their semantics.
type ReportSchedule struct {
	ID            string       `json:"schedule_id" gorm:"primaryKey"`
	CompanyID     string       `json:"company_id" gorm:"index;not null"`
	Name          string       `json:"name" gorm:"not null"`
	ReportType    ReportType   `json:"report_type" gorm:"not null"`
	ExportFormat  ExportFormat `json:"export_format" gorm:"not null"`
	Frequency     string       `json:"frequency" gorm:"not null"`
	Hour          int          `json:"hour"`
	Minute        int          `json:"minute"`
	DayOfWeek     *int         `json:"day_of_week,omitempty"`
	DayOfMonth    *int         `json:"day_of_month,omitempty"`
	QuarterAnchor int          `json:"quarter_anchor,omitempty"` // month 1-12, set for quarterly
	Recipients    []string     `json:"recipients" gorm:"serializer:json;not null"`
	CCRecipients  []string     `json:"cc_recipients" gorm:"serializer:json"`
	Enabled       bool         `json:"enabled"`
	NextRun       time.Time    `json:"next_run" gorm:"index"`
	LastRun       *time.Time   `json:"last_run,omitempty"`
	TotalRuns     int64        `json:"total_runs" gorm:"default:0"`
	ClaimedUntil  *time.Time   `json:"-"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// ReportExecution is one attempt at running a schedule. It snapshots the
// schedule's config at execution time so later edits never rewrite history.
type ReportExecution struct {
	ID           string       `json:"history_id" gorm:"primaryKey"`
	ScheduleID   string       `json:"schedule_id" gorm:"index;not null"`
	ExecutedAt   time.Time    `json:"executed_at" gorm:"index;not null"`
	ReportType   ReportType   `json:"report_type" gorm:"not null"`
	ExportFormat ExportFormat `json:"export_format" gorm:"not null"`
	Recipients   []string     `json:"recipients" gorm:"serializer:json"`
	Success      bool         `json:"success"`
	ErrorMessage string       `json:"error_message,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Rule assembles the schedule's flattened recurrence columns into a
// recurrence.Rule. The result is validated, so a schedule that made it past
// the store always yields a usable rule.
func (s *ReportSchedule) Rule() (recurrence.Rule, error) {
	rule := recurrence.Rule{
		Frequency:   recurrence.Frequency(s.Frequency),
		Hour:        s.Hour,
		Minute:      s.Minute,
		DayOfMonth:  s.DayOfMonth,
		AnchorMonth: time.Month(s.QuarterAnchor),
	}
	if s.DayOfWeek != nil {
		weekday := time.Weekday(*s.DayOfWeek)
		rule.Weekday = &weekday
	}
	if err := rule.Validate(); err != nil {
		return recurrence.Rule{}, err
	}
	return rule, nil
}

// RecurrenceEquals reports whether two schedules describe the same firing
// pattern. Used to decide whether an update must recompute next_run.
func (s *ReportSchedule) RecurrenceEquals(other *ReportSchedule) bool {
	if s.Frequency != other.Frequency || s.Hour != other.Hour || s.Minute != other.Minute {
		return false
	}
	if !intPtrEqual(s.DayOfWeek, other.DayOfWeek) || !intPtrEqual(s.DayOfMonth, other.DayOfMonth) {
		return false
	}
	return s.QuarterAnchor == other.QuarterAnchor
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func ValidReportType(t ReportType) bool {
	switch t {
	case ReportTypeProfitLoss, ReportTypeBalanceSheet, ReportTypeCashFlow,
		ReportTypeTrialBalance, ReportTypeGeneralLedger, ReportTypeDashboardSummary:
		return true
	}
	return false
}

func ValidExportFormat(f ExportFormat) bool {
	switch f {
	case FormatPDF, FormatExcel, FormatCSV:
		return true
	}
	return false
}
