package postgresql_test

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-backend-go/internal/repository/postgresql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedEmployee(t *testing.T, repo employee.EmployeeRepository, code string) employee.Employee {
	t.Helper()

	emp, err := repo.Create(context.Background(), employee.Employee{
		EmployeeCode: code,
		FullName:     "Employee " + code,
		Salary: employee.SalaryConfig{
			Basic:            decimal.NewFromInt(3000),
			HousingAllowance: decimal.NewFromInt(500),
			Allowances:       decimal.NewFromInt(200),
		},
		Deductions: employee.DeductionConfig{
			Tax:           decimal.NewFromInt(300),
			ProvidentFund: decimal.NewFromInt(150),
			Insurance:     decimal.NewFromInt(50),
		},
	})
	require.NoError(t, err)
	return emp
}

func newRecord(t *testing.T, emp employee.Employee, month, year int) payroll.PayrollRecord {
	t.Helper()

	rec, err := payroll.NewRecord(emp, payroll.Period{Month: month, Year: year}, "admin-1", time.Now().UTC())
	require.NoError(t, err)
	return rec
}

func TestEmployeeRepository(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	repo := postgresql.NewEmployeeRepository(setup.DB)

	emp := seedEmployee(t, repo, "E001")

	got, err := repo.GetByID(ctx, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, "E001", got.EmployeeCode)
	assert.True(t, got.Salary.Basic.Equal(decimal.NewFromInt(3000)))

	_, err = repo.Create(ctx, employee.Employee{EmployeeCode: "E001", FullName: "Dup", Salary: employee.SalaryConfig{Basic: decimal.NewFromInt(1)}})
	assert.ErrorIs(t, err, employee.ErrEmployeeCodeExists)

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, employee.ErrEmployeeNotFound)

	require.NoError(t, repo.UpdateStatus(ctx, emp.ID, employee.EmploymentStatusTerminated))
	active, err := repo.ListByStatus(ctx, employee.EmploymentStatusActive)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestPayrollRepository_CreateGetUpdate(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	employees := postgresql.NewEmployeeRepository(setup.DB)
	repo := postgresql.NewPayrollRepository(setup.DB)

	emp := seedEmployee(t, employees, "E001")
	rec, err := repo.CreatePayrollRecord(ctx, newRecord(t, emp, 3, 2024))
	require.NoError(t, err)
	assert.True(t, rec.NetSalary.Equal(decimal.NewFromInt(3200)))
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), rec.PeriodStart.UTC())
	require.NotNil(t, rec.EmployeeCode)
	assert.Equal(t, "E001", *rec.EmployeeCode)

	_, err = repo.CreatePayrollRecord(ctx, newRecord(t, emp, 3, 2024))
	assert.ErrorIs(t, err, payroll.ErrPayrollRecordAlreadyExists)

	exists, err := repo.ExistsForPeriod(ctx, 3, 2024)
	require.NoError(t, err)
	assert.True(t, exists)

	rec.Reimbursements.Travel = decimal.NewFromInt(40)
	rec.ApplyTotals()
	updated, err := repo.UpdatePayrollRecord(ctx, rec, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.True(t, updated.NetSalary.Equal(decimal.NewFromInt(3240)))

	_, err = repo.UpdatePayrollRecord(ctx, rec, 1)
	assert.ErrorIs(t, err, payroll.ErrConcurrentModification)

	_, err = repo.GetPayrollRecordByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, payroll.ErrPayrollRecordNotFound)
}

func TestRepositories_MalformedIDsAreNotFound(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	employees := postgresql.NewEmployeeRepository(setup.DB)
	repo := postgresql.NewPayrollRepository(setup.DB)

	emp := seedEmployee(t, employees, "E001")
	rec, err := repo.CreatePayrollRecord(ctx, newRecord(t, emp, 3, 2024))
	require.NoError(t, err)

	_, err = repo.GetPayrollRecordByID(ctx, "abc")
	assert.ErrorIs(t, err, payroll.ErrPayrollRecordNotFound)

	rec.ID = "abc"
	_, err = repo.UpdatePayrollRecord(ctx, rec, 1)
	assert.ErrorIs(t, err, payroll.ErrPayrollRecordNotFound)

	history, err := repo.ListByEmployee(ctx, "abc", 12)
	require.NoError(t, err)
	assert.Empty(t, history)

	employeeID := "abc"
	records, total, err := repo.ListPayrollRecords(ctx, payroll.PayrollFilter{EmployeeID: &employeeID})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, total)

	_, err = employees.GetByID(ctx, "abc")
	assert.ErrorIs(t, err, employee.ErrEmployeeNotFound)
	assert.ErrorIs(t, employees.UpdateStatus(ctx, "abc", employee.EmploymentStatusTerminated), employee.ErrEmployeeNotFound)
}

func TestPayrollRepository_StatsAndHistory(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	employees := postgresql.NewEmployeeRepository(setup.DB)
	repo := postgresql.NewPayrollRepository(setup.DB)

	a := seedEmployee(t, employees, "E001")
	b := seedEmployee(t, employees, "E002")

	for _, month := range []int{1, 2, 3} {
		_, err := repo.CreatePayrollRecord(ctx, newRecord(t, a, month, 2024))
		require.NoError(t, err)
	}
	failed := newRecord(t, b, 3, 2024)
	failed.PaymentStatus = payroll.PaymentStatusFailed
	_, err := repo.CreatePayrollRecord(ctx, failed)
	require.NoError(t, err)

	stats, err := repo.GetPeriodStats(ctx, 3, 2024)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, 1, stats.PendingCount)
	assert.True(t, stats.TotalNet.Equal(decimal.NewFromInt(3200)))

	history, err := repo.ListByEmployee(ctx, a.ID, 12)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 3, history[0].PeriodMonth)
	assert.Equal(t, 1, history[2].PeriodMonth)

	records, total, err := repo.ListPayrollRecords(ctx, payroll.PayrollFilter{EmployeeID: &b.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, records, 1)
}

func TestWithTransaction_RollsBack(t *testing.T) {
	setup := NewTestDatabase(t)
	ctx := context.Background()
	repo := postgresql.NewEmployeeRepository(setup.DB)

	err := postgresql.WithTransaction(ctx, setup.DB, func(txCtx context.Context) error {
		seedEmployee(t, repo, "E900")
		_, err := repo.Create(txCtx, employee.Employee{
			EmployeeCode: "E901",
			FullName:     "Rolled back",
			Salary:       employee.SalaryConfig{Basic: decimal.NewFromInt(1)},
		})
		require.NoError(t, err)
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	active, err := repo.ListByStatus(ctx, employee.EmploymentStatusActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "E900", active[0].EmployeeCode)
}
