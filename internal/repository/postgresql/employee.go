package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type employeeRepositoryImpl struct {
	db *database.DB
}

func NewEmployeeRepository(db *database.DB) employee.EmployeeRepository {
	return &employeeRepositoryImpl{db: db}
}

const employeeColumns = `id, employee_code, full_name, position_name, employment_status,
	basic_salary, housing_allowance, allowances,
	tax_deduction, provident_fund_deduction, insurance_deduction, other_deduction,
	created_at, updated_at`

func scanEmployee(row pgx.Row) (employee.Employee, error) {
	var emp employee.Employee
	err := row.Scan(
		&emp.ID, &emp.EmployeeCode, &emp.FullName, &emp.PositionName, &emp.Status,
		&emp.Salary.Basic, &emp.Salary.HousingAllowance, &emp.Salary.Allowances,
		&emp.Deductions.Tax, &emp.Deductions.ProvidentFund, &emp.Deductions.Insurance, &emp.Deductions.Other,
		&emp.CreatedAt, &emp.UpdatedAt,
	)
	return emp, err
}

// GetByID implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) GetByID(ctx context.Context, id string) (employee.Employee, error) {
	if !isUUID(id) {
		return employee.Employee{}, employee.ErrEmployeeNotFound
	}

	q := GetQuerier(ctx, e.db)

	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = $1`

	emp, err := scanEmployee(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return employee.Employee{}, employee.ErrEmployeeNotFound
		}
		return employee.Employee{}, fmt.Errorf("failed to get employee with id %s: %w", id, err)
	}

	return emp, nil
}

// ListByStatus implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) ListByStatus(ctx context.Context, status employee.EmploymentStatus) ([]employee.Employee, error) {
	q := GetQuerier(ctx, e.db)

	query := `SELECT ` + employeeColumns + ` FROM employees WHERE employment_status = $1 ORDER BY employee_code`

	rows, err := q.Query(ctx, query, status)
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

// Create implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) Create(ctx context.Context, newEmployee employee.Employee) (employee.Employee, error) {
	q := GetQuerier(ctx, e.db)

	if newEmployee.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return employee.Employee{}, fmt.Errorf("failed to generate employee id: %w", err)
		}
		newEmployee.ID = id.String()
	}
	if newEmployee.Status == "" {
		newEmployee.Status = employee.EmploymentStatusActive
	}
	if !newEmployee.Status.IsValid() {
		return employee.Employee{}, employee.ErrInvalidStatus
	}

	query := `
		INSERT INTO employees (
			id, employee_code, full_name, position_name, employment_status,
			basic_salary, housing_allowance, allowances,
			tax_deduction, provident_fund_deduction, insurance_deduction, other_deduction
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + employeeColumns

	created, err := scanEmployee(q.QueryRow(ctx, query,
		newEmployee.ID, newEmployee.EmployeeCode, newEmployee.FullName, newEmployee.PositionName, newEmployee.Status,
		newEmployee.Salary.Basic, newEmployee.Salary.HousingAllowance, newEmployee.Salary.Allowances,
		newEmployee.Deductions.Tax, newEmployee.Deductions.ProvidentFund, newEmployee.Deductions.Insurance, newEmployee.Deductions.Other,
	))
	if err != nil {
		if isUniqueViolation(err, "uk_employee_code") {
			return employee.Employee{}, employee.ErrEmployeeCodeExists
		}
		return employee.Employee{}, fmt.Errorf("failed to create employee: %w", err)
	}

	return created, nil
}

// UpdateStatus implements employee.EmployeeRepository.
func (e *employeeRepositoryImpl) UpdateStatus(ctx context.Context, id string, status employee.EmploymentStatus) error {
	if !status.IsValid() {
		return employee.ErrInvalidStatus
	}
	if !isUUID(id) {
		return employee.ErrEmployeeNotFound
	}

	q := GetQuerier(ctx, e.db)

	query := `
		UPDATE employees
		SET employment_status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id
	`

	var updatedID string
	err := q.QueryRow(ctx, query, status, id).Scan(&updatedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return employee.ErrEmployeeNotFound
		}
		return fmt.Errorf("failed to update status for employee with id %s: %w", id, err)
	}

	return nil
}
