package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/employee"
	"github.com/google/uuid"
)

type employeeRepository struct {
	db *sql.DB
}

func NewEmployeeRepository(db *sql.DB) employee.EmployeeRepository {
	return &employeeRepository{db: db}
}

const employeeColumns = `id, employee_code, full_name, position_name, employment_status,
	basic_salary, housing_allowance, allowances,
	tax_deduction, provident_fund_deduction, insurance_deduction, other_deduction,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (employee.Employee, error) {
	var (
		emp                  employee.Employee
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&emp.ID, &emp.EmployeeCode, &emp.FullName, &emp.PositionName, &emp.Status,
		&emp.Salary.Basic, &emp.Salary.HousingAllowance, &emp.Salary.Allowances,
		&emp.Deductions.Tax, &emp.Deductions.ProvidentFund, &emp.Deductions.Insurance, &emp.Deductions.Other,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return employee.Employee{}, err
	}
	emp.CreatedAt = fromMillis(createdAt)
	emp.UpdatedAt = fromMillis(updatedAt)
	return emp, nil
}

func (r *employeeRepository) GetByID(ctx context.Context, id string) (employee.Employee, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id)
	emp, err := scanEmployee(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return employee.Employee{}, employee.ErrEmployeeNotFound
		}
		return employee.Employee{}, fmt.Errorf("failed to get employee: %w", err)
	}
	return emp, nil
}

func (r *employeeRepository) ListByStatus(ctx context.Context, status employee.EmploymentStatus) ([]employee.Employee, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE employment_status = ? ORDER BY employee_code`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []employee.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate employees: %w", err)
	}

	return employees, nil
}

func (r *employeeRepository) Create(ctx context.Context, emp employee.Employee) (employee.Employee, error) {
	if emp.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return employee.Employee{}, fmt.Errorf("failed to generate employee id: %w", err)
		}
		emp.ID = id.String()
	}
	if emp.Status == "" {
		emp.Status = employee.EmploymentStatusActive
	}
	if !emp.Status.IsValid() {
		return employee.Employee{}, employee.ErrInvalidStatus
	}
	now := time.Now().UTC()
	emp.CreatedAt, emp.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO employees (`+employeeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		emp.ID, emp.EmployeeCode, emp.FullName, nullString(emp.PositionName), string(emp.Status),
		emp.Salary.Basic, emp.Salary.HousingAllowance, emp.Salary.Allowances,
		emp.Deductions.Tax, emp.Deductions.ProvidentFund, emp.Deductions.Insurance, emp.Deductions.Other,
		toMillis(now), toMillis(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return employee.Employee{}, employee.ErrEmployeeCodeExists
		}
		return employee.Employee{}, fmt.Errorf("failed to create employee: %w", err)
	}

	return emp, nil
}

func (r *employeeRepository) UpdateStatus(ctx context.Context, id string, status employee.EmploymentStatus) error {
	if !status.IsValid() {
		return employee.ErrInvalidStatus
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE employees SET employment_status = ?, updated_at = ? WHERE id = ?`,
		string(status), toMillis(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update employee status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update employee status: %w", err)
	}
	if affected == 0 {
		return employee.ErrEmployeeNotFound
	}
	return nil
}
