package payroll

import (
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ========== PROCESSING DTOs ==========

type ProcessPayrollRequest struct {
	PeriodMonth int    `json:"period_month"`
	PeriodYear  int    `json:"period_year"`
	InitiatorID string `json:"-"`
}

func (r *ProcessPayrollRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.PeriodMonth < 1 || r.PeriodMonth > 12 {
		errs = append(errs, validator.ValidationError{Field: "period_month", Message: "must be between 1 and 12"})
	}
	if r.PeriodYear < 1 || r.PeriodYear > MaxPeriodYear {
		errs = append(errs, validator.ValidationError{Field: "period_year", Message: "must be between 1 and 9999"})
	}
	if validator.IsEmpty(r.InitiatorID) {
		errs = append(errs, validator.ValidationError{Field: "initiator_id", Message: "is required"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (r *ProcessPayrollRequest) Period() Period {
	return Period{Month: r.PeriodMonth, Year: r.PeriodYear}
}

type ProcessError struct {
	EmployeeID string `json:"employee_id"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

type ProcessSummary struct {
	PeriodMonth    int            `json:"period_month"`
	PeriodYear     int            `json:"period_year"`
	ProcessedCount int            `json:"processed_count"`
	FailedCount    int            `json:"failed_count"`
	Errors         []ProcessError `json:"errors"`
}

// ========== UPDATE DTOs ==========

type EarningsPatch struct {
	BasicSalary      *decimal.Decimal `json:"basic_salary,omitempty"`
	HousingAllowance *decimal.Decimal `json:"housing_allowance,omitempty"`
	Allowances       *decimal.Decimal `json:"allowances,omitempty"`
	Bonuses          *decimal.Decimal `json:"bonuses,omitempty"`
	Incentives       *decimal.Decimal `json:"incentives,omitempty"`
	OvertimeHours    *decimal.Decimal `json:"overtime_hours,omitempty"`
	OvertimeRate     *decimal.Decimal `json:"overtime_rate,omitempty"`
	Arrears          *decimal.Decimal `json:"arrears,omitempty"`
	Other            *decimal.Decimal `json:"other,omitempty"`
}

type DeductionsPatch struct {
	Tax                    *decimal.Decimal `json:"tax,omitempty"`
	ProvidentFund          *decimal.Decimal `json:"provident_fund,omitempty"`
	EmployeeStateInsurance *decimal.Decimal `json:"employee_state_insurance,omitempty"`
	ProfessionalTax        *decimal.Decimal `json:"professional_tax,omitempty"`
	Insurance              *decimal.Decimal `json:"insurance,omitempty"`
	Loan                   *decimal.Decimal `json:"loan,omitempty"`
	Advance                *decimal.Decimal `json:"advance,omitempty"`
	LateDeduction          *decimal.Decimal `json:"late_deduction,omitempty"`
	Other                  *decimal.Decimal `json:"other,omitempty"`
}

type ReimbursementsPatch struct {
	Travel        *decimal.Decimal `json:"travel,omitempty"`
	Medical       *decimal.Decimal `json:"medical,omitempty"`
	Food          *decimal.Decimal `json:"food,omitempty"`
	Communication *decimal.Decimal `json:"communication,omitempty"`
	Other         *decimal.Decimal `json:"other,omitempty"`
}

type UpdatePayrollRecordRequest struct {
	ID              string               `json:"-"`
	ExpectedVersion *int                 `json:"version,omitempty"`
	Earnings        *EarningsPatch       `json:"earnings,omitempty"`
	Deductions      *DeductionsPatch     `json:"deductions,omitempty"`
	Reimbursements  *ReimbursementsPatch `json:"reimbursements,omitempty"`
	Notes           *string              `json:"notes,omitempty"`
	Comments        *string              `json:"comments,omitempty"`
}

func (r *UpdatePayrollRecordRequest) Validate() error {
	var errs validator.ValidationErrors

	nonNegative := func(field string, v *decimal.Decimal) {
		if v != nil && v.IsNegative() {
			errs = append(errs, validator.ValidationError{Field: field, Message: "must be non-negative"})
		}
	}

	if e := r.Earnings; e != nil {
		nonNegative("earnings.basic_salary", e.BasicSalary)
		nonNegative("earnings.housing_allowance", e.HousingAllowance)
		nonNegative("earnings.allowances", e.Allowances)
		nonNegative("earnings.bonuses", e.Bonuses)
		nonNegative("earnings.incentives", e.Incentives)
		nonNegative("earnings.overtime_hours", e.OvertimeHours)
		nonNegative("earnings.overtime_rate", e.OvertimeRate)
		nonNegative("earnings.arrears", e.Arrears)
		nonNegative("earnings.other", e.Other)
	}
	if d := r.Deductions; d != nil {
		nonNegative("deductions.tax", d.Tax)
		nonNegative("deductions.provident_fund", d.ProvidentFund)
		nonNegative("deductions.employee_state_insurance", d.EmployeeStateInsurance)
		nonNegative("deductions.professional_tax", d.ProfessionalTax)
		nonNegative("deductions.insurance", d.Insurance)
		nonNegative("deductions.loan", d.Loan)
		nonNegative("deductions.advance", d.Advance)
		nonNegative("deductions.late_deduction", d.LateDeduction)
		nonNegative("deductions.other", d.Other)
	}
	if rb := r.Reimbursements; rb != nil {
		nonNegative("reimbursements.travel", rb.Travel)
		nonNegative("reimbursements.medical", rb.Medical)
		nonNegative("reimbursements.food", rb.Food)
		nonNegative("reimbursements.communication", rb.Communication)
		nonNegative("reimbursements.other", rb.Other)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Apply copies the set fields onto record. Totals are not touched here.
func (r *UpdatePayrollRecordRequest) Apply(record *PayrollRecord) {
	set := func(dst *decimal.Decimal, v *decimal.Decimal) {
		if v != nil {
			*dst = *v
		}
	}

	if e := r.Earnings; e != nil {
		set(&record.Earnings.BasicSalary, e.BasicSalary)
		set(&record.Earnings.HousingAllowance, e.HousingAllowance)
		set(&record.Earnings.Allowances, e.Allowances)
		set(&record.Earnings.Bonuses, e.Bonuses)
		set(&record.Earnings.Incentives, e.Incentives)
		set(&record.Earnings.Arrears, e.Arrears)
		set(&record.Earnings.Other, e.Other)
		if e.OvertimeHours != nil || e.OvertimeRate != nil {
			set(&record.Earnings.Overtime.Hours, e.OvertimeHours)
			set(&record.Earnings.Overtime.Rate, e.OvertimeRate)
			record.Earnings.Overtime.Amount = record.Earnings.Overtime.Hours.Mul(record.Earnings.Overtime.Rate)
		}
	}
	if d := r.Deductions; d != nil {
		set(&record.Deductions.Tax, d.Tax)
		set(&record.Deductions.ProvidentFund, d.ProvidentFund)
		set(&record.Deductions.EmployeeStateInsurance, d.EmployeeStateInsurance)
		set(&record.Deductions.ProfessionalTax, d.ProfessionalTax)
		set(&record.Deductions.Insurance, d.Insurance)
		set(&record.Deductions.Loan, d.Loan)
		set(&record.Deductions.Advance, d.Advance)
		set(&record.Deductions.LateDeduction, d.LateDeduction)
		set(&record.Deductions.Other, d.Other)
	}
	if rb := r.Reimbursements; rb != nil {
		set(&record.Reimbursements.Travel, rb.Travel)
		set(&record.Reimbursements.Medical, rb.Medical)
		set(&record.Reimbursements.Food, rb.Food)
		set(&record.Reimbursements.Communication, rb.Communication)
		set(&record.Reimbursements.Other, rb.Other)
	}
	if r.Notes != nil {
		record.Notes = r.Notes
	}
	if r.Comments != nil {
		record.Comments = r.Comments
	}
}

// ========== LIFECYCLE DTOs ==========

type MarkPaidRequest struct {
	ID            string  `json:"-"`
	TransactionID string  `json:"transaction_id"`
	PaymentMethod *string `json:"payment_method,omitempty"`
}

func (r *MarkPaidRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.TransactionID) {
		errs = append(errs, validator.ValidationError{Field: "transaction_id", Message: "is required"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type ApprovalRequest struct {
	ID         string  `json:"-"`
	ApproverID string  `json:"-"`
	Reason     *string `json:"reason,omitempty"`
}

func (r *ApprovalRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.ApproverID) {
		errs = append(errs, validator.ValidationError{Field: "approver_id", Message: "is required"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ========== QUERY DTOs ==========

type PayrollFilter struct {
	PeriodMonth    *int    `json:"period_month,omitempty"`
	PeriodYear     *int    `json:"period_year,omitempty"`
	EmployeeID     *string `json:"employee_id,omitempty"`
	PaymentStatus  *string `json:"payment_status,omitempty"`
	ApprovalStatus *string `json:"approval_status,omitempty"`
	Page           int     `json:"page"`
	Limit          int     `json:"limit"`
	SortBy         string  `json:"sort_by"`
	SortOrder      string  `json:"sort_order"`
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

var sortableFields = []string{"", "created_at", "period", "employee_name", "net_salary"}

func (f *PayrollFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.PeriodMonth != nil && (*f.PeriodMonth < 1 || *f.PeriodMonth > 12) {
		errs = append(errs, validator.ValidationError{Field: "period_month", Message: "must be between 1 and 12"})
	}
	if f.PeriodYear != nil && (*f.PeriodYear < 1 || *f.PeriodYear > MaxPeriodYear) {
		errs = append(errs, validator.ValidationError{Field: "period_year", Message: "must be between 1 and 9999"})
	}
	if f.PaymentStatus != nil && !PaymentStatus(*f.PaymentStatus).IsValid() {
		errs = append(errs, validator.ValidationError{Field: "payment_status", Message: "is not a valid payment status"})
	}
	if f.ApprovalStatus != nil && !ApprovalStatus(*f.ApprovalStatus).IsValid() {
		errs = append(errs, validator.ValidationError{Field: "approval_status", Message: "is not a valid approval status"})
	}
	if !validator.IsInSlice(f.SortBy, sortableFields) {
		errs = append(errs, validator.ValidationError{Field: "sort_by", Message: "must be one of period, employee_name, net_salary, created_at"})
	}
	if f.SortOrder != "" && f.SortOrder != "asc" && f.SortOrder != "desc" {
		errs = append(errs, validator.ValidationError{Field: "sort_order", Message: "must be asc or desc"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Normalize fills paging defaults and caps the limit.
func (f *PayrollFilter) Normalize() {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	if f.SortOrder != "asc" {
		f.SortOrder = "desc"
	}
}

func (f PayrollFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// ========== RESPONSE DTOs ==========

type TotalsResponse struct {
	GrossSalary         decimal.Decimal `json:"gross_salary"`
	TotalEarnings       decimal.Decimal `json:"total_earnings"`
	TotalDeductions     decimal.Decimal `json:"total_deductions"`
	TotalReimbursements decimal.Decimal `json:"total_reimbursements"`
	NetSalary           decimal.Decimal `json:"net_salary"`
}

type PayrollRecordResponse struct {
	ID              string         `json:"id"`
	EmployeeID      string         `json:"employee_id"`
	EmployeeName    string         `json:"employee_name"`
	EmployeeCode    string         `json:"employee_code"`
	PositionName    *string        `json:"position_name,omitempty"`
	PeriodMonth     int            `json:"period_month"`
	PeriodYear      int            `json:"period_year"`
	PeriodStart     string         `json:"period_start"`
	PeriodEnd       string         `json:"period_end"`
	Attendance      Attendance     `json:"attendance"`
	Earnings        Earnings       `json:"earnings"`
	Deductions      Deductions     `json:"deductions"`
	Reimbursements  Reimbursements `json:"reimbursements"`
	Totals          TotalsResponse `json:"totals"`
	PaymentStatus   string         `json:"payment_status"`
	ApprovalStatus  string         `json:"approval_status"`
	PaymentMethod   *string        `json:"payment_method,omitempty"`
	PaymentDate     *string        `json:"payment_date,omitempty"`
	TransactionID   *string        `json:"transaction_id,omitempty"`
	ApprovedBy      *string        `json:"approved_by,omitempty"`
	ApprovedAt      *string        `json:"approved_at,omitempty"`
	RejectionReason *string        `json:"rejection_reason,omitempty"`
	ProcessedBy     string         `json:"processed_by"`
	ProcessedAt     string         `json:"processed_at"`
	Notes           *string        `json:"notes,omitempty"`
	Comments        *string        `json:"comments,omitempty"`
	Version         int            `json:"version"`
}

type ListPayrollRecordResponse struct {
	Data       []PayrollRecordResponse `json:"data"`
	TotalCount int64                   `json:"total_count"`
	Page       int                     `json:"page"`
	Limit      int                     `json:"limit"`
}

type SlipResponse struct {
	RecordID    string `json:"record_id"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"-"`
	URL         string `json:"url,omitempty"`
}

// ToResponse projects a record into its API shape.
func (r PayrollRecord) ToResponse() PayrollRecordResponse {
	resp := PayrollRecordResponse{
		ID:              r.ID,
		EmployeeID:      r.EmployeeID,
		PositionName:    r.PositionName,
		PeriodMonth:     r.PeriodMonth,
		PeriodYear:      r.PeriodYear,
		PeriodStart:     r.PeriodStart.Format("2006-01-02"),
		PeriodEnd:       r.PeriodEnd.Format("2006-01-02"),
		Attendance:      r.Attendance,
		Earnings:        r.Earnings,
		Deductions:      r.Deductions,
		Reimbursements:  r.Reimbursements,
		Totals:          TotalsResponse(r.Totals),
		PaymentStatus:   string(r.PaymentStatus),
		ApprovalStatus:  string(r.ApprovalStatus),
		PaymentMethod:   r.PaymentMethod,
		TransactionID:   r.TransactionID,
		ApprovedBy:      r.ApprovedBy,
		RejectionReason: r.RejectionReason,
		ProcessedBy:     r.ProcessedBy,
		ProcessedAt:     r.ProcessedAt.Format(time.RFC3339),
		Notes:           r.Notes,
		Comments:        r.Comments,
		Version:         r.Version,
	}
	if r.EmployeeName != nil {
		resp.EmployeeName = *r.EmployeeName
	}
	if r.EmployeeCode != nil {
		resp.EmployeeCode = *r.EmployeeCode
	}
	if r.PaymentDate != nil {
		s := r.PaymentDate.Format(time.RFC3339)
		resp.PaymentDate = &s
	}
	if r.ApprovedAt != nil {
		s := r.ApprovedAt.Format(time.RFC3339)
		resp.ApprovedAt = &s
	}
	return resp
}
