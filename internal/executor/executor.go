// Package executor runs one schedule attempt end to end: render the report,
// deliver it, then commit the advanced run state and the history record.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ledgereye/internal/models"
	"github.com/ledgereye/internal/store"
)

// Document is a rendered report ready for delivery.
type Document struct {
	Title       string
	Filename    string
	ContentType string
	Data        []byte
}

type ReportRenderer interface {
	Render(ctx context.Context, reportType models.ReportType, format models.ExportFormat, companyID string) (*Document, error)
}

type Notifier interface {
	Send(ctx context.Context, recipients, ccRecipients []string, doc *Document) error
}

// FailureAlerter is an optional side channel telling operators about failed
// attempts. Its own failures never affect engine state.
type FailureAlerter interface {
	ExecutionFailed(schedule *models.ReportSchedule, record *models.ReportExecution)
}

type Executor struct {
	store       *store.Store
	renderer    ReportRenderer
	notifier    Notifier
	alerter     FailureAlerter
	callTimeout time.Duration
}

func NewExecutor(st *store.Store, renderer ReportRenderer, notifier Notifier, callTimeout time.Duration) *Executor {
	if callTimeout <= 0 {
		callTimeout = 2 * time.Minute
	}
	return &Executor{
		store:       st,
		renderer:    renderer,
		notifier:    notifier,
		callTimeout: callTimeout,
	}
}

// SetFailureAlerter wires the operator alert channel. Optional.
func (e *Executor) SetFailureAlerter(alerter FailureAlerter) {
	e.alerter = alerter
}

// Execute performs one attempt against a claimed schedule. Render and
// delivery failures are recorded, not returned: the attempt still advances
// next_run and counts toward total_runs, so a broken report can never wedge
// its schedule. The returned error is reserved for aborted attempts
// (cancelled context) and commit problems.
func (e *Executor) Execute(ctx context.Context, schedule *models.ReportSchedule) (*models.ReportExecution, error) {
	startedAt := time.Now().In(e.store.Location())

	record := &models.ReportExecution{
		ScheduleID:   schedule.ID,
		ExecutedAt:   startedAt,
		ReportType:   schedule.ReportType,
		ExportFormat: schedule.ExportFormat,
		Recipients:   append([]string(nil), schedule.Recipients...),
		Success:      true,
	}

	doc, err := e.render(ctx, schedule)
	if err != nil {
		record.Success = false
		record.ErrorMessage = "render failed: " + err.Error()
	} else if err := e.send(ctx, schedule, doc); err != nil {
		record.Success = false
		record.ErrorMessage = "delivery failed: " + err.Error()
	}

	// A shut-down process must not commit: the lease expires on its own and
	// a later tick retries the schedule.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if err := e.commit(schedule, record, startedAt); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("Warning: schedule %s disappeared during execution, dropping attempt", schedule.ID)
			return record, nil
		}
		return nil, err
	}

	if !record.Success && e.alerter != nil {
		e.alerter.ExecutionFailed(schedule, record)
	}
	return record, nil
}

func (e *Executor) render(ctx context.Context, schedule *models.ReportSchedule) (*Document, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	return e.renderer.Render(callCtx, schedule.ReportType, schedule.ExportFormat, schedule.CompanyID)
}

func (e *Executor) send(ctx context.Context, schedule *models.ReportSchedule, doc *Document) error {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	return e.notifier.Send(callCtx, schedule.Recipients, schedule.CCRecipients, doc)
}

func (e *Executor) commit(schedule *models.ReportSchedule, record *models.ReportExecution, startedAt time.Time) error {
	// The store validates recurrence on every write, so this only trips on a
	// schedule that never went through it. Failing the commit leaves the
	// lease to expire, the same path as a crash.
	rule, err := schedule.Rule()
	if err != nil {
		return fmt.Errorf("failed to compute next run for schedule %s: %v", schedule.ID, err)
	}
	return e.store.CommitExecution(record, startedAt, rule.Next(startedAt, e.store.Location()))
}
