package employee

import (
	"time"

	"github.com/shopspring/decimal"
)

// Employee is the registry projection payroll reads from. Termination is a
// status flip, rows are never removed.
type Employee struct {
	ID           string
	EmployeeCode string
	FullName     string
	PositionName *string
	Status       EmploymentStatus
	Salary       SalaryConfig
	Deductions   DeductionConfig
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type EmploymentStatus string

const (
	EmploymentStatusActive     EmploymentStatus = "active"
	EmploymentStatusInactive   EmploymentStatus = "inactive"
	EmploymentStatusTerminated EmploymentStatus = "terminated"
	EmploymentStatusOnLeave    EmploymentStatus = "on_leave"
)

func (s EmploymentStatus) IsValid() bool {
	switch s {
	case EmploymentStatusActive, EmploymentStatusInactive, EmploymentStatusTerminated, EmploymentStatusOnLeave:
		return true
	}
	return false
}

// SalaryConfig - current fixed earnings configuration
type SalaryConfig struct {
	Basic            decimal.Decimal
	HousingAllowance decimal.Decimal
	Allowances       decimal.Decimal
}

// Validate reports a malformed configuration. Basic salary must be positive,
// everything else non-negative.
func (c SalaryConfig) Validate() error {
	if !c.Basic.IsPositive() {
		return ErrNoBaseSalary
	}
	if c.HousingAllowance.IsNegative() || c.Allowances.IsNegative() {
		return ErrInvalidSalaryConfig
	}
	return nil
}

// DeductionConfig - current recurring deductions
type DeductionConfig struct {
	Tax           decimal.Decimal
	ProvidentFund decimal.Decimal
	Insurance     decimal.Decimal
	Other         decimal.Decimal
}

func (c DeductionConfig) Validate() error {
	if c.Tax.IsNegative() || c.ProvidentFund.IsNegative() || c.Insurance.IsNegative() || c.Other.IsNegative() {
		return ErrInvalidDeductionConfig
	}
	return nil
}
