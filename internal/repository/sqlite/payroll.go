package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type payrollRepository struct {
	db *sql.DB
}

func NewPayrollRepository(db *sql.DB) payroll.PayrollRepository {
	return &payrollRepository{db: db}
}

const payrollRecordColumns = `pr.id, pr.employee_id, pr.period_month, pr.period_year, pr.period_start, pr.period_end,
	pr.attendance, pr.earnings, pr.deductions, pr.reimbursements,
	pr.gross_salary, pr.total_earnings, pr.total_deductions, pr.total_reimbursements, pr.net_salary,
	pr.payment_status, pr.approval_status, pr.payment_method, pr.payment_date, pr.transaction_id,
	pr.approved_by, pr.approved_at, pr.rejection_reason, pr.processed_by, pr.processed_at,
	pr.notes, pr.comments, pr.version, pr.created_at, pr.updated_at,
	e.full_name, e.employee_code, e.position_name`

const payrollRecordFrom = `
	FROM payroll_records pr
	JOIN employees e ON e.id = pr.employee_id`

func scanPayrollRecord(row rowScanner) (payroll.PayrollRecord, error) {
	var rec payroll.PayrollRecord
	var periodStart, periodEnd, processedAt, createdAt, updatedAt int64
	var paymentDate, approvedAt sql.NullInt64
	var attendanceJSON, earningsJSON, deductionsJSON, reimbursementsJSON string
	err := row.Scan(
		&rec.ID, &rec.EmployeeID, &rec.PeriodMonth, &rec.PeriodYear, &periodStart, &periodEnd,
		&attendanceJSON, &earningsJSON, &deductionsJSON, &reimbursementsJSON,
		&rec.GrossSalary, &rec.TotalEarnings, &rec.TotalDeductions, &rec.TotalReimbursements, &rec.NetSalary,
		&rec.PaymentStatus, &rec.ApprovalStatus, &rec.PaymentMethod, &paymentDate, &rec.TransactionID,
		&rec.ApprovedBy, &approvedAt, &rec.RejectionReason, &rec.ProcessedBy, &processedAt,
		&rec.Notes, &rec.Comments, &rec.Version, &createdAt, &updatedAt,
		&rec.EmployeeName, &rec.EmployeeCode, &rec.PositionName,
	)
	if err != nil {
		return payroll.PayrollRecord{}, err
	}

	if err := json.Unmarshal([]byte(attendanceJSON), &rec.Attendance); err != nil {
		return payroll.PayrollRecord{}, fmt.Errorf("decode attendance: %w", err)
	}
	if err := json.Unmarshal([]byte(earningsJSON), &rec.Earnings); err != nil {
		return payroll.PayrollRecord{}, fmt.Errorf("decode earnings: %w", err)
	}
	if err := json.Unmarshal([]byte(deductionsJSON), &rec.Deductions); err != nil {
		return payroll.PayrollRecord{}, fmt.Errorf("decode deductions: %w", err)
	}
	if err := json.Unmarshal([]byte(reimbursementsJSON), &rec.Reimbursements); err != nil {
		return payroll.PayrollRecord{}, fmt.Errorf("decode reimbursements: %w", err)
	}

	rec.PeriodStart = fromMillis(periodStart)
	rec.PeriodEnd = fromMillis(periodEnd)
	rec.ProcessedAt = fromMillis(processedAt)
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	rec.PaymentDate = timeFromNullable(paymentDate)
	rec.ApprovedAt = timeFromNullable(approvedAt)

	return rec, nil
}

type breakdownColumns struct {
	attendance, earnings, deductions, reimbursements string
}

func encodeBreakdowns(record payroll.PayrollRecord) (breakdownColumns, error) {
	var (
		cols breakdownColumns
		err  error
	)
	if cols.attendance, err = marshalJSON(record.Attendance); err != nil {
		return cols, fmt.Errorf("encode attendance: %w", err)
	}
	if cols.earnings, err = marshalJSON(record.Earnings); err != nil {
		return cols, fmt.Errorf("encode earnings: %w", err)
	}
	if cols.deductions, err = marshalJSON(record.Deductions); err != nil {
		return cols, fmt.Errorf("encode deductions: %w", err)
	}
	if cols.reimbursements, err = marshalJSON(record.Reimbursements); err != nil {
		return cols, fmt.Errorf("encode reimbursements: %w", err)
	}
	return cols, nil
}

func (r *payrollRepository) CreatePayrollRecord(ctx context.Context, record payroll.PayrollRecord) (payroll.PayrollRecord, error) {
	if err := record.VerifyTotals(); err != nil {
		return payroll.PayrollRecord{}, err
	}
	if record.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return payroll.PayrollRecord{}, fmt.Errorf("failed to generate payroll record id: %w", err)
		}
		record.ID = id.String()
	}
	if record.Version == 0 {
		record.Version = 1
	}

	cols, err := encodeBreakdowns(record)
	if err != nil {
		return payroll.PayrollRecord{}, fmt.Errorf("failed to create payroll record: %w", err)
	}
	now := toMillis(time.Now())

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO payroll_records (
			id, employee_id, period_month, period_year, period_start, period_end,
			attendance, earnings, deductions, reimbursements,
			gross_salary, total_earnings, total_deductions, total_reimbursements, net_salary,
			payment_status, approval_status, payment_method, payment_date, transaction_id,
			approved_by, approved_at, rejection_reason, processed_by, processed_at,
			notes, comments, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.EmployeeID, record.PeriodMonth, record.PeriodYear,
		toMillis(record.PeriodStart), toMillis(record.PeriodEnd),
		cols.attendance, cols.earnings, cols.deductions, cols.reimbursements,
		record.GrossSalary, record.TotalEarnings, record.TotalDeductions, record.TotalReimbursements, record.NetSalary,
		string(record.PaymentStatus), string(record.ApprovalStatus), nullString(record.PaymentMethod),
		nullableMillis(record.PaymentDate), nullString(record.TransactionID),
		nullString(record.ApprovedBy), nullableMillis(record.ApprovedAt), nullString(record.RejectionReason),
		record.ProcessedBy, toMillis(record.ProcessedAt),
		nullString(record.Notes), nullString(record.Comments), record.Version, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return payroll.PayrollRecord{}, payroll.ErrPayrollRecordAlreadyExists
		}
		return payroll.PayrollRecord{}, fmt.Errorf("failed to create payroll record: %w", err)
	}

	// The row is committed; read it back even if ctx ended meanwhile.
	return r.GetPayrollRecordByID(context.WithoutCancel(ctx), record.ID)
}

func (r *payrollRepository) GetPayrollRecordByID(ctx context.Context, id string) (payroll.PayrollRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+payrollRecordColumns+payrollRecordFrom+` WHERE pr.id = ?`, id)
	rec, err := scanPayrollRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return payroll.PayrollRecord{}, payroll.ErrPayrollRecordNotFound
		}
		return payroll.PayrollRecord{}, fmt.Errorf("failed to get payroll record: %w", err)
	}
	return rec, nil
}

func (r *payrollRepository) ExistsForPeriod(ctx context.Context, month, year int) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM payroll_records WHERE period_month = ? AND period_year = ?)`,
		month, year,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check payroll period: %w", err)
	}
	return exists, nil
}

func (r *payrollRepository) ListPayrollRecords(ctx context.Context, filter payroll.PayrollFilter) ([]payroll.PayrollRecord, int64, error) {
	filter.Normalize()

	where := ` WHERE 1 = 1`
	var args []any

	if filter.PeriodMonth != nil {
		where += ` AND pr.period_month = ?`
		args = append(args, *filter.PeriodMonth)
	}
	if filter.PeriodYear != nil {
		where += ` AND pr.period_year = ?`
		args = append(args, *filter.PeriodYear)
	}
	if filter.EmployeeID != nil {
		where += ` AND pr.employee_id = ?`
		args = append(args, *filter.EmployeeID)
	}
	if filter.PaymentStatus != nil {
		where += ` AND pr.payment_status = ?`
		args = append(args, *filter.PaymentStatus)
	}
	if filter.ApprovalStatus != nil {
		where += ` AND pr.approval_status = ?`
		args = append(args, *filter.ApprovalStatus)
	}

	var totalCount int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*)`+payrollRecordFrom+where, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count payroll records: %w", err)
	}

	sortOrder := "DESC"
	if filter.SortOrder == "asc" {
		sortOrder = "ASC"
	}
	orderBy := fmt.Sprintf("pr.created_at %s, pr.id %s", sortOrder, sortOrder)
	switch filter.SortBy {
	case "period":
		orderBy = fmt.Sprintf("pr.period_year %s, pr.period_month %s, e.employee_code", sortOrder, sortOrder)
	case "employee_name":
		orderBy = fmt.Sprintf("e.full_name %s", sortOrder)
	case "net_salary":
		orderBy = fmt.Sprintf("CAST(pr.net_salary AS REAL) %s", sortOrder)
	}

	query := `SELECT ` + payrollRecordColumns + payrollRecordFrom + where +
		` ORDER BY ` + orderBy + ` LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset())

	records, err := r.queryRecords(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payroll records: %w", err)
	}
	return records, totalCount, nil
}

func (r *payrollRepository) ListByEmployee(ctx context.Context, employeeID string, limit int) ([]payroll.PayrollRecord, error) {
	query := `SELECT ` + payrollRecordColumns + payrollRecordFrom + `
		WHERE pr.employee_id = ?
		ORDER BY pr.period_year DESC, pr.period_month DESC
		LIMIT ?`

	records, err := r.queryRecords(ctx, query, employeeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list employee payroll history: %w", err)
	}
	return records, nil
}

func (r *payrollRepository) queryRecords(ctx context.Context, query string, args ...any) ([]payroll.PayrollRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []payroll.PayrollRecord
	for rows.Next() {
		rec, err := scanPayrollRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *payrollRepository) UpdatePayrollRecord(ctx context.Context, record payroll.PayrollRecord, expectedVersion int) (payroll.PayrollRecord, error) {
	if err := record.VerifyTotals(); err != nil {
		return payroll.PayrollRecord{}, err
	}

	cols, err := encodeBreakdowns(record)
	if err != nil {
		return payroll.PayrollRecord{}, fmt.Errorf("failed to update payroll record: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE payroll_records SET
			attendance = ?, earnings = ?, deductions = ?, reimbursements = ?,
			gross_salary = ?, total_earnings = ?, total_deductions = ?, total_reimbursements = ?, net_salary = ?,
			payment_status = ?, approval_status = ?, payment_method = ?, payment_date = ?, transaction_id = ?,
			approved_by = ?, approved_at = ?, rejection_reason = ?,
			notes = ?, comments = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		cols.attendance, cols.earnings, cols.deductions, cols.reimbursements,
		record.GrossSalary, record.TotalEarnings, record.TotalDeductions, record.TotalReimbursements, record.NetSalary,
		string(record.PaymentStatus), string(record.ApprovalStatus), nullString(record.PaymentMethod),
		nullableMillis(record.PaymentDate), nullString(record.TransactionID),
		nullString(record.ApprovedBy), nullableMillis(record.ApprovedAt), nullString(record.RejectionReason),
		nullString(record.Notes), nullString(record.Comments),
		toMillis(time.Now()),
		record.ID, expectedVersion,
	)
	if err != nil {
		return payroll.PayrollRecord{}, fmt.Errorf("failed to update payroll record: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return payroll.PayrollRecord{}, fmt.Errorf("failed to update payroll record: %w", err)
	}
	if affected == 0 {
		// Either the record is gone or another writer bumped the version.
		if _, err := r.GetPayrollRecordByID(ctx, record.ID); err != nil {
			return payroll.PayrollRecord{}, err
		}
		return payroll.PayrollRecord{}, payroll.ErrConcurrentModification
	}

	// The new version is committed; read it back even if ctx ended meanwhile.
	return r.GetPayrollRecordByID(context.WithoutCancel(ctx), record.ID)
}

func (r *payrollRepository) GetPeriodStats(ctx context.Context, month, year int) (payroll.PeriodStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT gross_salary, total_earnings, total_deductions, total_reimbursements, net_salary, payment_status
		FROM payroll_records
		WHERE period_month = ? AND period_year = ? AND payment_status <> ?`,
		month, year, string(payroll.PaymentStatusFailed),
	)
	if err != nil {
		return payroll.PeriodStats{}, fmt.Errorf("failed to get payroll stats: %w", err)
	}
	defer rows.Close()

	// Amounts are stored as decimal text, so they are summed here rather
	// than with SQL SUM over floating point.
	stats := payroll.PeriodStats{
		PeriodMonth:         month,
		PeriodYear:          year,
		TotalGross:          decimal.Zero,
		TotalEarnings:       decimal.Zero,
		TotalDeductions:     decimal.Zero,
		TotalReimbursements: decimal.Zero,
		TotalNet:            decimal.Zero,
	}
	for rows.Next() {
		var (
			totals payroll.Totals
			status payroll.PaymentStatus
		)
		if err := rows.Scan(
			&totals.GrossSalary, &totals.TotalEarnings, &totals.TotalDeductions,
			&totals.TotalReimbursements, &totals.NetSalary, &status,
		); err != nil {
			return payroll.PeriodStats{}, fmt.Errorf("failed to scan payroll stats: %w", err)
		}
		stats.TotalGross = stats.TotalGross.Add(totals.GrossSalary)
		stats.TotalEarnings = stats.TotalEarnings.Add(totals.TotalEarnings)
		stats.TotalDeductions = stats.TotalDeductions.Add(totals.TotalDeductions)
		stats.TotalReimbursements = stats.TotalReimbursements.Add(totals.TotalReimbursements)
		stats.TotalNet = stats.TotalNet.Add(totals.NetSalary)
		stats.Count++
		switch status {
		case payroll.PaymentStatusPaid:
			stats.PaidCount++
		case payroll.PaymentStatusPending:
			stats.PendingCount++
		}
	}
	if err := rows.Err(); err != nil {
		return payroll.PeriodStats{}, fmt.Errorf("failed to get payroll stats: %w", err)
	}

	return stats, nil
}
