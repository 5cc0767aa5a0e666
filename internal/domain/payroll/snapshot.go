package payroll

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/employee"
	"github.com/shopspring/decimal"
)

// MaxPeriodYear keeps period labels at four digits.
const MaxPeriodYear = 9999

// Period identifies one payroll cycle.
type Period struct {
	Month int
	Year  int
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 || p.Year < 1 || p.Year > MaxPeriodYear {
		return ErrInvalidPeriod
	}
	return nil
}

// Start is the first calendar day of the period (UTC).
func (p Period) Start() time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

// End is the last calendar day of the period (UTC).
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, -1)
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// WorkingDays counts Monday to Friday within the period.
func (p Period) WorkingDays() int {
	days := 0
	end := p.End()
	for d := p.Start(); !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days++
		}
	}
	return days
}

// Snapshot is the per-employee input of a processing run.
type Snapshot struct {
	Attendance     Attendance
	Earnings       Earnings
	Deductions     Deductions
	Reimbursements Reimbursements
}

// NewSnapshot copies the employee's current configuration into a record
// snapshot. Attendance is a placeholder until attendance integration exists:
// every working day present, no absence or leave. Variable earnings and
// non-configured deductions start at zero.
func NewSnapshot(emp employee.Employee, p Period) (Snapshot, error) {
	if err := emp.Salary.Validate(); err != nil {
		return Snapshot{}, err
	}
	if err := emp.Deductions.Validate(); err != nil {
		return Snapshot{}, err
	}

	workingDays := p.WorkingDays()

	return Snapshot{
		Attendance: Attendance{
			WorkingDays: workingDays,
			DaysPresent: workingDays,
		},
		Earnings: Earnings{
			BasicSalary:      emp.Salary.Basic,
			HousingAllowance: emp.Salary.HousingAllowance,
			Allowances:       emp.Salary.Allowances,
			Bonuses:          decimal.Zero,
			Incentives:       decimal.Zero,
			Overtime:         Overtime{Hours: decimal.Zero, Rate: decimal.Zero, Amount: decimal.Zero},
			Arrears:          decimal.Zero,
			Other:            decimal.Zero,
		},
		Deductions: Deductions{
			Tax:                    emp.Deductions.Tax,
			ProvidentFund:          emp.Deductions.ProvidentFund,
			EmployeeStateInsurance: decimal.Zero,
			ProfessionalTax:        decimal.Zero,
			Insurance:              emp.Deductions.Insurance,
			Loan:                   decimal.Zero,
			Advance:                decimal.Zero,
			LateDeduction:          decimal.Zero,
			Other:                  emp.Deductions.Other,
		},
		Reimbursements: Reimbursements{
			Travel:        decimal.Zero,
			Medical:       decimal.Zero,
			Food:          decimal.Zero,
			Communication: decimal.Zero,
			Other:         decimal.Zero,
		},
	}, nil
}

// NewRecord builds a pending record for one employee and period with totals applied.
func NewRecord(emp employee.Employee, p Period, initiatorID string, now time.Time) (PayrollRecord, error) {
	snap, err := NewSnapshot(emp, p)
	if err != nil {
		return PayrollRecord{}, err
	}

	record := PayrollRecord{
		EmployeeID:     emp.ID,
		PeriodMonth:    p.Month,
		PeriodYear:     p.Year,
		PeriodStart:    p.Start(),
		PeriodEnd:      p.End(),
		Attendance:     snap.Attendance,
		Earnings:       snap.Earnings,
		Deductions:     snap.Deductions,
		Reimbursements: snap.Reimbursements,
		PaymentStatus:  PaymentStatusPending,
		ApprovalStatus: ApprovalStatusPending,
		ProcessedBy:    initiatorID,
		ProcessedAt:    now,
		Version:        1,
	}
	record.ApplyTotals()

	return record, nil
}
