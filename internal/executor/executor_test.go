package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ledgereye/internal/models"
	"github.com/ledgereye/internal/store"
)

type fakeRenderer struct {
	err   error
	calls int
}

func (f *fakeRenderer) Render(ctx context.Context, reportType models.ReportType, format models.ExportFormat, companyID string) (*Document, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Document{
		Title:       "Test Report",
		Filename:    "test.csv",
		ContentType: "text/csv",
		Data:        []byte("a,b\n1,2\n"),
	}, nil
}

type fakeNotifier struct {
	err        error
	calls      int
	recipients []string
	cc         []string
}

func (f *fakeNotifier) Send(ctx context.Context, recipients, ccRecipients []string, doc *Document) error {
	f.calls++
	f.recipients = recipients
	f.cc = ccRecipients
	return f.err
}

type fakeAlerter struct {
	failed int
}

func (f *fakeAlerter) ExecutionFailed(schedule *models.ReportSchedule, record *models.ReportExecution) {
	f.failed++
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.ReportSchedule{}, &models.ReportExecution{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return store.NewStore(db, time.UTC)
}

func createSchedule(t *testing.T, st *store.Store) *models.ReportSchedule {
	t.Helper()

	schedule := &models.ReportSchedule{
		CompanyID:    "acme",
		Name:         "Daily Trial Balance",
		ReportType:   models.ReportTypeTrialBalance,
		ExportFormat: models.FormatCSV,
		Frequency:    "daily",
		Hour:         6,
		Minute:       30,
		Recipients:   []string{"cfo@acme.test"},
		CCRecipients: []string{"ops@acme.test"},
		Enabled:      true,
	}
	if err := st.Create(schedule); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	return schedule
}

func TestExecuteSuccess(t *testing.T) {
	st := newTestStore(t)
	schedule := createSchedule(t, st)
	renderer := &fakeRenderer{}
	notifier := &fakeNotifier{}
	exec := NewExecutor(st, renderer, notifier, time.Minute)

	record, err := exec.Execute(context.Background(), schedule)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !record.Success {
		t.Errorf("expected success, got error %q", record.ErrorMessage)
	}
	if renderer.calls != 1 || notifier.calls != 1 {
		t.Errorf("expected one render and one send, got %d/%d", renderer.calls, notifier.calls)
	}
	if len(notifier.recipients) != 1 || notifier.recipients[0] != "cfo@acme.test" {
		t.Errorf("unexpected recipients: %v", notifier.recipients)
	}
	if len(notifier.cc) != 1 || notifier.cc[0] != "ops@acme.test" {
		t.Errorf("unexpected cc recipients: %v", notifier.cc)
	}

	reloaded, err := st.Get(schedule.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if reloaded.TotalRuns != 1 {
		t.Errorf("expected total_runs 1, got %d", reloaded.TotalRuns)
	}
	if reloaded.LastRun == nil {
		t.Error("expected last_run set")
	}
	if !reloaded.NextRun.After(record.ExecutedAt) {
		t.Errorf("next_run %v must be after the attempt %v", reloaded.NextRun, record.ExecutedAt)
	}
	if reloaded.ClaimedUntil != nil {
		t.Error("commit must clear the claim")
	}
}

func TestRenderFailureStillAdvances(t *testing.T) {
	st := newTestStore(t)
	schedule := createSchedule(t, st)
	renderer := &fakeRenderer{err: errors.New("ledger query timed out")}
	notifier := &fakeNotifier{}
	exec := NewExecutor(st, renderer, notifier, time.Minute)

	record, err := exec.Execute(context.Background(), schedule)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if record.Success {
		t.Error("expected a failed attempt")
	}
	if !strings.HasPrefix(record.ErrorMessage, "render failed:") {
		t.Errorf("unexpected error message: %q", record.ErrorMessage)
	}
	if notifier.calls != 0 {
		t.Error("nothing must be delivered when rendering fails")
	}

	// A broken report must not wedge the schedule.
	reloaded, err := st.Get(schedule.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if reloaded.TotalRuns != 1 {
		t.Errorf("failed attempt must count, got total_runs %d", reloaded.TotalRuns)
	}
	if !reloaded.NextRun.After(record.ExecutedAt) {
		t.Error("failed attempt must still advance next_run")
	}

	records, total, err := st.History(schedule.ID, 1, 10)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if total != 1 || records[0].Success {
		t.Errorf("expected one failed record, got total=%d", total)
	}
}

func TestDeliveryFailureIsFailure(t *testing.T) {
	st := newTestStore(t)
	schedule := createSchedule(t, st)
	renderer := &fakeRenderer{}
	notifier := &fakeNotifier{err: errors.New("smtp connection refused")}
	exec := NewExecutor(st, renderer, notifier, time.Minute)
	alerter := &fakeAlerter{}
	exec.SetFailureAlerter(alerter)

	record, err := exec.Execute(context.Background(), schedule)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if record.Success {
		t.Error("rendering success does not imply overall success")
	}
	if !strings.HasPrefix(record.ErrorMessage, "delivery failed:") {
		t.Errorf("unexpected error message: %q", record.ErrorMessage)
	}
	if alerter.failed != 1 {
		t.Errorf("expected one failure alert, got %d", alerter.failed)
	}
}

func TestCancelledExecutionCommitsNothing(t *testing.T) {
	st := newTestStore(t)
	schedule := createSchedule(t, st)
	exec := NewExecutor(st, &fakeRenderer{}, &fakeNotifier{}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := exec.Execute(ctx, schedule); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	reloaded, err := st.Get(schedule.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if reloaded.TotalRuns != 0 || reloaded.LastRun != nil {
		t.Error("a cancelled execution must not commit run state")
	}
	if _, total, _ := st.History(schedule.ID, 1, 10); total != 0 {
		t.Errorf("a cancelled execution must not append history, got %d", total)
	}
}

func TestUnusableRecurrenceFailsCommit(t *testing.T) {
	st := newTestStore(t)
	schedule := createSchedule(t, st)
	exec := NewExecutor(st, &fakeRenderer{}, &fakeNotifier{}, time.Minute)

	// A recurrence the store would never accept must abort the attempt
	// instead of rescheduling on a cadence nobody configured.
	schedule.Frequency = "hourly"

	if _, err := exec.Execute(context.Background(), schedule); err == nil {
		t.Fatal("expected the commit to fail")
	}

	reloaded, err := st.Get(schedule.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if reloaded.TotalRuns != 0 || reloaded.LastRun != nil {
		t.Error("aborted attempt must not commit run state")
	}
	if _, total, _ := st.History(schedule.ID, 1, 10); total != 0 {
		t.Errorf("aborted attempt must not append history, got %d", total)
	}
}

func TestDeletedScheduleIsNotAnError(t *testing.T) {
	st := newTestStore(t)
	schedule := createSchedule(t, st)
	exec := NewExecutor(st, &fakeRenderer{}, &fakeNotifier{}, time.Minute)

	if err := st.Delete(schedule.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	// The schedule vanished between claim and commit; the attempt is dropped.
	record, err := exec.Execute(context.Background(), schedule)
	if err != nil {
		t.Fatalf("expected the attempt to be dropped quietly, got %v", err)
	}
	if record == nil {
		t.Fatal("expected the attempt's record back")
	}

	if _, err := st.Get(schedule.ID); err == nil {
		t.Error("schedule should stay deleted")
	}
}
