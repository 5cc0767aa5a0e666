package employee

import "context"

// EmployeeRepository is the registry contract payroll depends on.
type EmployeeRepository interface {
	GetByID(ctx context.Context, id string) (Employee, error)
	ListByStatus(ctx context.Context, status EmploymentStatus) ([]Employee, error)
	Create(ctx context.Context, newEmployee Employee) (Employee, error)
	// UpdateStatus is also how an employee is terminated.
	UpdateStatus(ctx context.Context, id string, status EmploymentStatus) error
}
