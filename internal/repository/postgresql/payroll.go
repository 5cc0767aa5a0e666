package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type payrollRepository struct {
	db *database.DB
}

func NewPayrollRepository(db *database.DB) payroll.PayrollRepository {
	return &payrollRepository{db: db}
}

const payrollRecordColumns = `
	pr.id, pr.employee_id, pr.period_month, pr.period_year, pr.period_start, pr.period_end,
	pr.attendance, pr.earnings, pr.deductions, pr.reimbursements,
	pr.gross_salary, pr.total_earnings, pr.total_deductions, pr.total_reimbursements, pr.net_salary,
	pr.payment_status, pr.approval_status, pr.payment_method, pr.payment_date, pr.transaction_id,
	pr.approved_by, pr.approved_at, pr.rejection_reason, pr.processed_by, pr.processed_at,
	pr.notes, pr.comments, pr.version, pr.created_at, pr.updated_at,
	e.full_name AS employee_name, e.employee_code, e.position_name`

const payrollRecordFrom = `
	FROM payroll_records pr
	JOIN employees e ON pr.employee_id = e.id`

func scanPayrollRecord(row pgx.Row) (payroll.PayrollRecord, error) {
	var rec payroll.PayrollRecord
	var attendanceBytes, earningsBytes, deductionsBytes, reimbursementsBytes []byte

	err := row.Scan(
		&rec.ID, &rec.EmployeeID, &rec.PeriodMonth, &rec.PeriodYear, &rec.PeriodStart, &rec.PeriodEnd,
		&attendanceBytes, &earningsBytes, &deductionsBytes, &reimbursementsBytes,
		&rec.GrossSalary, &rec.TotalEarnings, &rec.TotalDeductions, &rec.TotalReimbursements, &rec.NetSalary,
		&rec.PaymentStatus, &rec.ApprovalStatus, &rec.PaymentMethod, &rec.PaymentDate, &rec.TransactionID,
		&rec.ApprovedBy, &rec.ApprovedAt, &rec.RejectionReason, &rec.ProcessedBy, &rec.ProcessedAt,
		&rec.Notes, &rec.Comments, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt,
		&rec.EmployeeName, &rec.EmployeeCode, &rec.PositionName,
	)
	if err != nil {
		return payroll.PayrollRecord{}, err
	}

	if err := json.Unmarshal(attendanceBytes, &rec.Attendance); err != nil {
		return payroll.PayrollRecord{}, fmt.Errorf("decode attendance: %w", err)
	}
	if err := json.Unmarshal(earningsBytes, &rec.Earnings); err != nil {
		return payroll.PayrollRecord{}, fmt.Errorf("decode earnings: %w", err)
	}
	if err := json.Unmarshal(deductionsBytes, &rec.Deductions); err != nil {
		return payroll.PayrollRecord{}, fmt.Errorf("decode deductions: %w", err)
	}
	if err := json.Unmarshal(reimbursementsBytes, &rec.Reimbursements); err != nil {
		return payroll.PayrollRecord{}, fmt.Errorf("decode reimbursements: %w", err)
	}

	return rec, nil
}

type breakdownJSON struct {
	attendance, earnings, deductions, reimbursements []byte
}

func encodeBreakdowns(record payroll.PayrollRecord) (breakdownJSON, error) {
	var (
		b   breakdownJSON
		err error
	)
	if b.attendance, err = json.Marshal(record.Attendance); err != nil {
		return b, fmt.Errorf("encode attendance: %w", err)
	}
	if b.earnings, err = json.Marshal(record.Earnings); err != nil {
		return b, fmt.Errorf("encode earnings: %w", err)
	}
	if b.deductions, err = json.Marshal(record.Deductions); err != nil {
		return b, fmt.Errorf("encode deductions: %w", err)
	}
	if b.reimbursements, err = json.Marshal(record.Reimbursements); err != nil {
		return b, fmt.Errorf("encode reimbursements: %w", err)
	}
	return b, nil
}

func (r *payrollRepository) CreatePayrollRecord(ctx context.Context, record payroll.PayrollRecord) (payroll.PayrollRecord, error) {
	if err := record.VerifyTotals(); err != nil {
		return payroll.PayrollRecord{}, err
	}

	q := GetQuerier(ctx, r.db)

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

	b, err := encodeBreakdowns(record)
	if err != nil {
		return payroll.PayrollRecord{}, fmt.Errorf("failed to create payroll record: %w", err)
	}

	query := `
		INSERT INTO payroll_records (
			id, employee_id, period_month, period_year, period_start, period_end,
			attendance, earnings, deductions, reimbursements,
			gross_salary, total_earnings, total_deductions, total_reimbursements, net_salary,
			payment_status, approval_status, payment_method, payment_date, transaction_id,
			approved_by, approved_at, rejection_reason, processed_by, processed_at,
			notes, comments, version
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28
		)
	`

	_, err = q.Exec(ctx, query,
		record.ID, record.EmployeeID, record.PeriodMonth, record.PeriodYear, record.PeriodStart, record.PeriodEnd,
		b.attendance, b.earnings, b.deductions, b.reimbursements,
		record.GrossSalary, record.TotalEarnings, record.TotalDeductions, record.TotalReimbursements, record.NetSalary,
		record.PaymentStatus, record.ApprovalStatus, record.PaymentMethod, record.PaymentDate, record.TransactionID,
		record.ApprovedBy, record.ApprovedAt, record.RejectionReason, record.ProcessedBy, record.ProcessedAt,
		record.Notes, record.Comments, record.Version,
	)
	if err != nil {
		if isUniqueViolation(err, "uk_payroll_employee_period") {
			return payroll.PayrollRecord{}, payroll.ErrPayrollRecordAlreadyExists
		}
		return payroll.PayrollRecord{}, fmt.Errorf("failed to create payroll record: %w", err)
	}

	// The row is committed; read it back even if ctx ended meanwhile.
	return r.GetPayrollRecordByID(context.WithoutCancel(ctx), record.ID)
}

func (r *payrollRepository) GetPayrollRecordByID(ctx context.Context, id string) (payroll.PayrollRecord, error) {
	if !isUUID(id) {
		return payroll.PayrollRecord{}, payroll.ErrPayrollRecordNotFound
	}

	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + payrollRecordColumns + payrollRecordFrom + ` WHERE pr.id = $1`

	rec, err := scanPayrollRecord(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PayrollRecord{}, payroll.ErrPayrollRecordNotFound
		}
		return payroll.PayrollRecord{}, fmt.Errorf("failed to get payroll record: %w", err)
	}

	return rec, nil
}

func (r *payrollRepository) ExistsForPeriod(ctx context.Context, month, year int) (bool, error) {
	q := GetQuerier(ctx, r.db)

	var exists bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM payroll_records WHERE period_month = $1 AND period_year = $2)`,
		month, year,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check payroll period: %w", err)
	}

	return exists, nil
}

func (r *payrollRepository) ListPayrollRecords(ctx context.Context, filter payroll.PayrollFilter) ([]payroll.PayrollRecord, int64, error) {
	q := GetQuerier(ctx, r.db)
	filter.Normalize()

	baseQuery := payrollRecordFrom + ` WHERE 1 = 1`
	args := []interface{}{}
	argIdx := 1

	if filter.PeriodMonth != nil {
		baseQuery += fmt.Sprintf(" AND pr.period_month = $%d", argIdx)
		args = append(args, *filter.PeriodMonth)
		argIdx++
	}
	if filter.PeriodYear != nil {
		baseQuery += fmt.Sprintf(" AND pr.period_year = $%d", argIdx)
		args = append(args, *filter.PeriodYear)
		argIdx++
	}
	if filter.EmployeeID != nil {
		if !isUUID(*filter.EmployeeID) {
			return nil, 0, nil
		}
		baseQuery += fmt.Sprintf(" AND pr.employee_id = $%d", argIdx)
		args = append(args, *filter.EmployeeID)
		argIdx++
	}
	if filter.PaymentStatus != nil {
		baseQuery += fmt.Sprintf(" AND pr.payment_status = $%d", argIdx)
		args = append(args, *filter.PaymentStatus)
		argIdx++
	}
	if filter.ApprovalStatus != nil {
		baseQuery += fmt.Sprintf(" AND pr.approval_status = $%d", argIdx)
		args = append(args, *filter.ApprovalStatus)
		argIdx++
	}

	// Count query
	var totalCount int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count payroll records: %w", err)
	}

	// Sort
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
		orderBy = fmt.Sprintf("pr.net_salary %s", sortOrder)
	}

	selectQuery := fmt.Sprintf(`SELECT %s %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		payrollRecordColumns, baseQuery, orderBy, argIdx, argIdx+1)
	args = append(args, filter.Limit, filter.Offset())

	records, err := r.queryRecords(ctx, q, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payroll records: %w", err)
	}

	return records, totalCount, nil
}

func (r *payrollRepository) ListByEmployee(ctx context.Context, employeeID string, limit int) ([]payroll.PayrollRecord, error) {
	if !isUUID(employeeID) {
		return nil, nil
	}

	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + payrollRecordColumns + payrollRecordFrom + `
		WHERE pr.employee_id = $1
		ORDER BY pr.period_year DESC, pr.period_month DESC
		LIMIT $2`

	records, err := r.queryRecords(ctx, q, query, employeeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list employee payroll history: %w", err)
	}

	return records, nil
}

func (r *payrollRepository) queryRecords(ctx context.Context, q database.Querier, query string, args ...interface{}) ([]payroll.PayrollRecord, error) {
	rows, err := q.Query(ctx, query, args...)
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
	if !isUUID(record.ID) {
		return payroll.PayrollRecord{}, payroll.ErrPayrollRecordNotFound
	}

	q := GetQuerier(ctx, r.db)

	b, err := encodeBreakdowns(record)
	if err != nil {
		return payroll.PayrollRecord{}, fmt.Errorf("failed to update payroll record: %w", err)
	}

	query := `
		UPDATE payroll_records SET
			attendance = $1, earnings = $2, deductions = $3, reimbursements = $4,
			gross_salary = $5, total_earnings = $6, total_deductions = $7, total_reimbursements = $8, net_salary = $9,
			payment_status = $10, approval_status = $11, payment_method = $12, payment_date = $13, transaction_id = $14,
			approved_by = $15, approved_at = $16, rejection_reason = $17,
			notes = $18, comments = $19,
			version = version + 1, updated_at = NOW()
		WHERE id = $20 AND version = $21
	`

	tag, err := q.Exec(ctx, query,
		b.attendance, b.earnings, b.deductions, b.reimbursements,
		record.GrossSalary, record.TotalEarnings, record.TotalDeductions, record.TotalReimbursements, record.NetSalary,
		record.PaymentStatus, record.ApprovalStatus, record.PaymentMethod, record.PaymentDate, record.TransactionID,
		record.ApprovedBy, record.ApprovedAt, record.RejectionReason,
		record.Notes, record.Comments,
		record.ID, expectedVersion,
	)
	if err != nil {
		return payroll.PayrollRecord{}, fmt.Errorf("failed to update payroll record: %w", err)
	}

	if tag.RowsAffected() == 0 {
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
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT
			COUNT(*) AS record_count,
			COALESCE(SUM(gross_salary), 0) AS total_gross,
			COALESCE(SUM(total_earnings), 0) AS total_earnings,
			COALESCE(SUM(total_deductions), 0) AS total_deductions,
			COALESCE(SUM(total_reimbursements), 0) AS total_reimbursements,
			COALESCE(SUM(net_salary), 0) AS total_net,
			COUNT(*) FILTER (WHERE payment_status = 'paid') AS paid_count,
			COUNT(*) FILTER (WHERE payment_status = 'pending') AS pending_count
		FROM payroll_records
		WHERE period_month = $1 AND period_year = $2 AND payment_status <> 'failed'
	`

	var stats payroll.PeriodStats
	err := q.QueryRow(ctx, query, month, year).Scan(
		&stats.Count, &stats.TotalGross, &stats.TotalEarnings, &stats.TotalDeductions,
		&stats.TotalReimbursements, &stats.TotalNet, &stats.PaidCount, &stats.PendingCount,
	)
	if err != nil {
		return payroll.PeriodStats{}, fmt.Errorf("failed to get payroll stats: %w", err)
	}

	stats.PeriodMonth = month
	stats.PeriodYear = year

	return stats, nil
}
