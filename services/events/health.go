package events

import (
	"context"
	"fmt"
	"time"
)

// HealthReport is the read-only diagnostic summary of the engine's state.
type HealthReport struct {
	Status            string   `json:"status"` // ok | warning | error
	Message           string   `json:"message,omitempty"`
	ActiveDefinitions int      `json:"active_definitions"`
	CompletedToday    int      `json:"completed_today"`
	FailedToday       int      `json:"failed_today"`
	StalePending      []string `json:"stale_pending,omitempty"`
	OverdueEffects    int      `json:"overdue_effects"`
	Warnings          []string `json:"warnings,omitempty"`
}

// HealthCheck inspects the engine's tables for stale pending occurrences,
// today's failure rate and overdue unexpired effects. It never mutates
// anything and never panics; any internal failure yields a status of error
// with the message attached.
func (s *Service) HealthCheck(ctx context.Context, now time.Time) (report *HealthReport) {
	report = &HealthReport{Status: "ok"}

	defer func() {
		if r := recover(); r != nil {
			report = &HealthReport{
				Status:  "error",
				Message: fmt.Sprintf("health check panicked: %v", r),
			}
		}
	}()

	fail := func(err error) *HealthReport {
		return &HealthReport{Status: "error", Message: err.Error()}
	}

	var activeDefs int64
	if err := s.db.WithContext(ctx).Model(&EventDefinition{}).
		Where("is_active = ?", true).
		Count(&activeDefs).Error; err != nil {
		return fail(err)
	}
	report.ActiveDefinitions = int(activeDefs)

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var completedToday int64
	if err := s.db.WithContext(ctx).Model(&EventOccurrence{}).
		Where("status = ? AND completed_at >= ?", StatusCompleted, dayStart).
		Count(&completedToday).Error; err != nil {
		return fail(err)
	}
	report.CompletedToday = int(completedToday)

	staleBefore := now.Add(-s.cfg.StalePendingAfter)
	var stale []string
	if err := s.db.WithContext(ctx).Model(&EventOccurrence{}).
		Where("status = ? AND scheduled_at <= ?", StatusPending, staleBefore).
		Pluck("id", &stale).Error; err != nil {
		return fail(err)
	}
	if len(stale) > 0 {
		report.StalePending = stale
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("%d pending occurrences older than %s", len(stale), s.cfg.StalePendingAfter))
	}

	var failedToday int64
	if err := s.db.WithContext(ctx).Model(&EventOccurrence{}).
		Where("status = ? AND created_at >= ?", StatusFailed, dayStart).
		Count(&failedToday).Error; err != nil {
		return fail(err)
	}
	report.FailedToday = int(failedToday)
	if report.FailedToday > s.cfg.FailedTodayMax {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("%d failed occurrences today (threshold %d)", report.FailedToday, s.cfg.FailedTodayMax))
	}

	overdueBefore := now.Add(-s.cfg.OverdueExpiryGrace)
	var overdue int64
	if err := s.db.WithContext(ctx).Model(&EventEffectExecution{}).
		Where("expires_at IS NOT NULL AND expires_at <= ? AND is_expired = ?", overdueBefore, false).
		Count(&overdue).Error; err != nil {
		return fail(err)
	}
	report.OverdueEffects = int(overdue)
	if report.OverdueEffects > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("%d overdue effects awaiting expiry processing", report.OverdueEffects))
	}

	if len(report.Warnings) > 0 {
		report.Status = "warning"
	}
	return report
}
