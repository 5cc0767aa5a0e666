package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
)

// SystemInitiator is recorded as processed_by for scheduled runs.
const SystemInitiator = "system:scheduler"

// PeriodProcessor is the slice of the payroll service the scheduler needs.
type PeriodProcessor interface {
	Process(ctx context.Context, req payroll.ProcessPayrollRequest) (payroll.ProcessSummary, error)
}

// PayrollJobs processes the previous month automatically on a fixed day of
// the month.
type PayrollJobs struct {
	processor PeriodProcessor
	day       int
	now       func() time.Time
}

// NewPayrollJobs returns nil when day is zero, which disables the job.
func NewPayrollJobs(processor PeriodProcessor, day int, now func() time.Time) *PayrollJobs {
	if day <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	return &PayrollJobs{processor: processor, day: day, now: now}
}

func (j *PayrollJobs) RegisterJobs(scheduler *Scheduler, timeout time.Duration) {
	scheduler.AddJob(Job{
		Name:     "auto_process_previous_month",
		Interval: time.Hour,
		Timeout:  timeout,
		Fn:       j.ProcessPreviousMonth,
	})
}

// ProcessPreviousMonth runs only on the configured day (UTC). An already
// processed period is not an error, so the hourly ticks on that day are no-ops
// after the first success.
func (j *PayrollJobs) ProcessPreviousMonth(ctx context.Context) error {
	now := j.now().UTC()
	if now.Day() != j.day {
		return nil
	}

	prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	req := payroll.ProcessPayrollRequest{
		PeriodMonth: int(prev.Month()),
		PeriodYear:  prev.Year(),
		InitiatorID: SystemInitiator,
	}

	summary, err := j.processor.Process(ctx, req)
	if errors.Is(err, payroll.ErrPeriodAlreadyProcessed) {
		slog.Debug("Cron: payroll period already processed", "period", req.Period().String())
		return nil
	}
	if err != nil {
		return fmt.Errorf("auto-process payroll %s: %w", req.Period().String(), err)
	}

	slog.Info("Cron: payroll period processed",
		"period", req.Period().String(), "processed", summary.ProcessedCount, "failed", summary.FailedCount)
	return nil
}
