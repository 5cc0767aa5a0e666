package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus enum
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusOnHold     PaymentStatus = "on_hold"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusProcessing, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusOnHold:
		return true
	}
	return false
}

// ApprovalStatus enum
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalStatusPending, ApprovalStatusApproved, ApprovalStatusRejected:
		return true
	}
	return false
}

type LeaveBreakdown struct {
	Paid   int `json:"paid"`
	Unpaid int `json:"unpaid"`
	Sick   int `json:"sick"`
}

// Attendance is a snapshot taken at processing time.
type Attendance struct {
	WorkingDays int            `json:"working_days"`
	DaysPresent int            `json:"days_present"`
	DaysAbsent  int            `json:"days_absent"`
	Leave       LeaveBreakdown `json:"leave"`
}

type Overtime struct {
	Hours  decimal.Decimal `json:"hours"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

type Earnings struct {
	BasicSalary      decimal.Decimal `json:"basic_salary"`
	HousingAllowance decimal.Decimal `json:"housing_allowance"`
	Allowances       decimal.Decimal `json:"allowances"`
	Bonuses          decimal.Decimal `json:"bonuses"`
	Incentives       decimal.Decimal `json:"incentives"`
	Overtime         Overtime        `json:"overtime"`
	Arrears          decimal.Decimal `json:"arrears"`
	Other            decimal.Decimal `json:"other"`
}

type Deductions struct {
	Tax                    decimal.Decimal `json:"tax"`
	ProvidentFund          decimal.Decimal `json:"provident_fund"`
	EmployeeStateInsurance decimal.Decimal `json:"employee_state_insurance"`
	ProfessionalTax        decimal.Decimal `json:"professional_tax"`
	Insurance              decimal.Decimal `json:"insurance"`
	Loan                   decimal.Decimal `json:"loan"`
	Advance                decimal.Decimal `json:"advance"`
	LateDeduction          decimal.Decimal `json:"late_deduction"`
	Other                  decimal.Decimal `json:"other"`
}

type Reimbursements struct {
	Travel        decimal.Decimal `json:"travel"`
	Medical       decimal.Decimal `json:"medical"`
	Food          decimal.Decimal `json:"food"`
	Communication decimal.Decimal `json:"communication"`
	Other         decimal.Decimal `json:"other"`
}

// Totals - derived amounts, always produced by ComputeTotals
type Totals struct {
	GrossSalary         decimal.Decimal
	TotalEarnings       decimal.Decimal
	TotalDeductions     decimal.Decimal
	TotalReimbursements decimal.Decimal
	NetSalary           decimal.Decimal
}

// PayrollRecord - one ledger entry per employee per period
type PayrollRecord struct {
	ID             string
	EmployeeID     string
	PeriodMonth    int
	PeriodYear     int
	PeriodStart    time.Time
	PeriodEnd      time.Time
	Attendance     Attendance
	Earnings       Earnings
	Deductions     Deductions
	Reimbursements Reimbursements
	Totals
	PaymentStatus   PaymentStatus
	ApprovalStatus  ApprovalStatus
	PaymentMethod   *string
	PaymentDate     *time.Time
	TransactionID   *string
	ApprovedBy      *string
	ApprovedAt      *time.Time
	RejectionReason *string
	ProcessedBy     string
	ProcessedAt     time.Time
	Notes           *string
	Comments        *string
	Version         int
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Joined fields
	EmployeeName *string
	EmployeeCode *string
	PositionName *string
}

// ApplyTotals recomputes every derived amount from the breakdowns.
// Every write path calls it before handing the record to a store.
func (r *PayrollRecord) ApplyTotals() {
	r.Totals = ComputeTotals(r.Earnings, r.Deductions, r.Reimbursements)
}

// VerifyTotals returns ErrTotalsMismatch when the stored totals disagree with
// the breakdowns.
func (r PayrollRecord) VerifyTotals() error {
	want := ComputeTotals(r.Earnings, r.Deductions, r.Reimbursements)
	got := r.Totals
	if !want.GrossSalary.Equal(got.GrossSalary) ||
		!want.TotalEarnings.Equal(got.TotalEarnings) ||
		!want.TotalDeductions.Equal(got.TotalDeductions) ||
		!want.TotalReimbursements.Equal(got.TotalReimbursements) ||
		!want.NetSalary.Equal(got.NetSalary) {
		return ErrTotalsMismatch
	}
	return nil
}

// PeriodStats - aggregate over one period, failed payments excluded
type PeriodStats struct {
	PeriodMonth         int             `json:"period_month"`
	PeriodYear          int             `json:"period_year"`
	TotalGross          decimal.Decimal `json:"total_gross"`
	TotalEarnings       decimal.Decimal `json:"total_earnings"`
	TotalDeductions     decimal.Decimal `json:"total_deductions"`
	TotalReimbursements decimal.Decimal `json:"total_reimbursements"`
	TotalNet            decimal.Decimal `json:"total_net"`
	Count               int             `json:"count"`
	PaidCount           int             `json:"paid_count"`
	PendingCount        int             `json:"pending_count"`
}
