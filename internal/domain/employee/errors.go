package employee

import "errors"

var (
	ErrEmployeeNotFound       = errors.New("employee not found")
	ErrEmployeeCodeExists     = errors.New("employee code already exists")
	ErrInvalidStatus          = errors.New("invalid employment status")
	ErrNoBaseSalary           = errors.New("employee has no base salary configured")
	ErrInvalidSalaryConfig    = errors.New("salary configuration contains negative amounts")
	ErrInvalidDeductionConfig = errors.New("deduction configuration contains negative amounts")
)
