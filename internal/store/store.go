// Package store owns schedule persistence: CRUD over report schedules, the
// append-only execution history, and the conditional claim that keeps two
// scheduler passes from running the same schedule twice.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ledgereye/internal/models"
)

var (
	ErrNotFound       = errors.New("schedule not found")
	ErrAlreadyRunning = errors.New("schedule is already running")
)

// InvalidScheduleError rejects a malformed schedule before any state change.
type InvalidScheduleError struct {
	Reason string
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("invalid schedule: %s", e.Reason)
}

func invalidSchedule(format string, args ...interface{}) error {
	return &InvalidScheduleError{Reason: fmt.Sprintf(format, args...)}
}

type Store struct {
	db  *gorm.DB
	loc *time.Location
}

func NewStore(db *gorm.DB, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{db: db, loc: loc}
}

func (s *Store) Location() *time.Location {
	return s.loc
}

func (s *Store) validate(schedule *models.ReportSchedule) error {
	if schedule.Name == "" {
		return invalidSchedule("name is required")
	}
	if !models.ValidReportType(schedule.ReportType) {
		return invalidSchedule("unknown report type %q", schedule.ReportType)
	}
	if !models.ValidExportFormat(schedule.ExportFormat) {
		return invalidSchedule("unknown export format %q", schedule.ExportFormat)
	}
	if len(schedule.Recipients) == 0 {
		return invalidSchedule("at least one recipient is required")
	}
	if _, err := schedule.Rule(); err != nil {
		return invalidSchedule("%v", err)
	}
	return nil
}

// Create validates the schedule, assigns its identifier, anchors quarterly
// rules to the creation month and computes the first next_run.
func (s *Store) Create(schedule *models.ReportSchedule) error {
	now := time.Now().In(s.loc)

	if schedule.Frequency == "quarterly" && schedule.QuarterAnchor == 0 {
		schedule.QuarterAnchor = int(now.Month())
	}
	if err := s.validate(schedule); err != nil {
		return err
	}

	rule, err := schedule.Rule()
	if err != nil {
		return invalidSchedule("%v", err)
	}

	schedule.ID = uuid.NewString()
	schedule.NextRun = rule.Next(now, s.loc)
	schedule.LastRun = nil
	schedule.TotalRuns = 0
	schedule.ClaimedUntil = nil

	if err := s.db.Create(schedule).Error; err != nil {
		return fmt.Errorf("failed to create schedule: %v", err)
	}
	return nil
}

// Update replaces the schedule's definition fields. The identifier and the
// run state (last_run, total_runs, claim) are never touched; next_run is
// recomputed only when the recurrence itself changed.
func (s *Store) Update(schedule *models.ReportSchedule) (*models.ReportSchedule, error) {
	existing, err := s.Get(schedule.ID)
	if err != nil {
		return nil, err
	}

	if schedule.Frequency == "quarterly" && schedule.QuarterAnchor == 0 {
		if existing.Frequency == "quarterly" {
			schedule.QuarterAnchor = existing.QuarterAnchor
		} else {
			schedule.QuarterAnchor = int(time.Now().In(s.loc).Month())
		}
	}
	if err := s.validate(schedule); err != nil {
		return nil, err
	}

	existing.Name = schedule.Name
	existing.ReportType = schedule.ReportType
	existing.ExportFormat = schedule.ExportFormat
	existing.Recipients = schedule.Recipients
	existing.CCRecipients = schedule.CCRecipients

	if !existing.RecurrenceEquals(schedule) {
		existing.Frequency = schedule.Frequency
		existing.Hour = schedule.Hour
		existing.Minute = schedule.Minute
		existing.DayOfWeek = schedule.DayOfWeek
		existing.DayOfMonth = schedule.DayOfMonth
		existing.QuarterAnchor = schedule.QuarterAnchor

		rule, err := existing.Rule()
		if err != nil {
			return nil, invalidSchedule("%v", err)
		}
		existing.NextRun = rule.Next(time.Now().In(s.loc), s.loc)
	}

	if err := s.db.Save(existing).Error; err != nil {
		return nil, fmt.Errorf("failed to update schedule: %v", err)
	}
	return existing, nil
}

// Delete removes the schedule and its execution history in one transaction.
// An in-flight execution of the deleted schedule fails its commit with
// ErrNotFound and is dropped by the executor.
func (s *Store) Delete(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.ReportSchedule{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete schedule: %v", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Delete(&models.ReportExecution{}, "schedule_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete execution history: %v", err)
		}
		return nil
	})
}

func (s *Store) Get(id string) (*models.ReportSchedule, error) {
	var schedule models.ReportSchedule
	if err := s.db.First(&schedule, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load schedule: %v", err)
	}
	return &schedule, nil
}

func (s *Store) List(companyID string) ([]models.ReportSchedule, error) {
	var schedules []models.ReportSchedule
	query := s.db.Order("name")
	if companyID != "" {
		query = query.Where("company_id = ?", companyID)
	}
	if err := query.Find(&schedules).Error; err != nil {
		return nil, fmt.Errorf("failed to list schedules: %v", err)
	}
	return schedules, nil
}

// SetEnabled toggles the schedule. next_run is deliberately left alone: a
// re-enabled schedule whose due time passed while disabled is immediately
// due and fires once on the next tick, with no catch-up for missed cycles.
func (s *Store) SetEnabled(id string, enabled bool) error {
	res := s.db.Model(&models.ReportSchedule{}).Where("id = ?", id).Update("enabled", enabled)
	if res.Error != nil {
		return fmt.Errorf("failed to toggle schedule: %v", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Due returns enabled, unclaimed schedules whose next_run has passed.
// Claiming is a separate conditional write, so two loops may both see a
// schedule here but only one will win the claim.
func (s *Store) Due(now time.Time) ([]models.ReportSchedule, error) {
	var schedules []models.ReportSchedule
	err := s.db.
		Where("enabled = ? AND next_run <= ?", true, now).
		Where("claimed_until IS NULL OR claimed_until <= ?", now).
		Order("next_run").
		Find(&schedules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query due schedules: %v", err)
	}
	return schedules, nil
}

// ClaimDue atomically leases a due schedule. It is a single conditional
// UPDATE: the claim succeeds only if the schedule is still enabled, still
// due, and not already held. Returns false when another claimer won.
func (s *Store) ClaimDue(id string, now time.Time, lease time.Duration) (bool, error) {
	res := s.db.Model(&models.ReportSchedule{}).
		Where("id = ? AND enabled = ? AND next_run <= ?", id, true, now).
		Where("claimed_until IS NULL OR claimed_until <= ?", now).
		Update("claimed_until", now.Add(lease))
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim schedule: %v", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ClaimManual leases a schedule for an operator-triggered run. It skips the
// due-time and enabled checks but takes the same claim, so a manual trigger
// on a currently executing schedule fails with ErrAlreadyRunning.
func (s *Store) ClaimManual(id string, now time.Time, lease time.Duration) error {
	res := s.db.Model(&models.ReportSchedule{}).
		Where("id = ?", id).
		Where("claimed_until IS NULL OR claimed_until <= ?", now).
		Update("claimed_until", now.Add(lease))
	if res.Error != nil {
		return fmt.Errorf("failed to claim schedule: %v", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	if _, err := s.Get(id); err != nil {
		return err
	}
	return ErrAlreadyRunning
}

// CommitExecution finishes an attempt: it appends the execution record and,
// in the same transaction, advances next_run, stamps last_run, bumps
// total_runs and releases the claim. A schedule deleted mid-flight surfaces
// as ErrNotFound and nothing is written.
func (s *Store) CommitExecution(record *models.ReportExecution, lastRun, nextRun time.Time) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ReportSchedule{}).
			Where("id = ?", record.ScheduleID).
			Updates(map[string]interface{}{
				"last_run":      lastRun,
				"next_run":      nextRun,
				"total_runs":    gorm.Expr("total_runs + 1"),
				"claimed_until": nil,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to commit execution: %v", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("failed to append execution record: %v", err)
		}
		return nil
	})
}

// History returns one page of a schedule's execution records, newest first,
// along with the total count.
func (s *Store) History(scheduleID string, page, pageSize int) ([]models.ReportExecution, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	if _, err := s.Get(scheduleID); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.Model(&models.ReportExecution{}).
		Where("schedule_id = ?", scheduleID).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count execution history: %v", err)
	}

	var records []models.ReportExecution
	err := s.db.
		Where("schedule_id = ?", scheduleID).
		Order("executed_at desc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load execution history: %v", err)
	}
	return records, total, nil
}
