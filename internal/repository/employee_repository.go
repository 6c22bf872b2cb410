package repository

import (
	"context"

	"planora-backend/internal/db"
	"planora-backend/internal/domain"
)

type EmployeeRepository struct {
	DB *db.Postgres
}

const employeeColumns = `id, user_id, business_id, first_name, last_name, email, phone, position, status,
	approved_by, approved_at, rejection_reason, is_active, created_at, updated_at`

func (r EmployeeRepository) GetEmployee(ctx context.Context, id int64) (*domain.Employee, error) {
	row := r.DB.Q(ctx).QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id=$1`, id)
	e, err := scanEmployee(row)
	if err != nil {
		return nil, notFound(err, "employee")
	}
	return e, nil
}

func (r EmployeeRepository) FindEmployeeByUser(ctx context.Context, businessID, userID int64) (*domain.Employee, error) {
	row := r.DB.Q(ctx).QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE business_id=$1 AND user_id=$2`, businessID, userID)
	e, err := scanEmployee(row)
	if err != nil {
		return nil, notFound(err, "employee")
	}
	return e, nil
}

func (r EmployeeRepository) UpdateEmployee(ctx context.Context, e *domain.Employee) error {
	err := r.DB.Q(ctx).QueryRow(ctx, `
		UPDATE employees SET status=$2, approved_by=$3, approved_at=$4, rejection_reason=$5, is_active=$6,
			position=$7, phone=$8, updated_at=now()
		WHERE id=$1
		RETURNING updated_at
	`, e.ID, e.Status, e.ApprovedBy, e.ApprovedAt, e.RejectionReason, e.IsActive, e.Position, e.Phone).Scan(&e.UpdatedAt)
	return notFound(err, "employee")
}

func (r EmployeeRepository) ListEmployees(ctx context.Context, businessID int64, status *domain.EmployeeStatus) ([]domain.Employee, error) {
	rows, err := r.DB.Q(ctx).Query(ctx, `
		SELECT `+employeeColumns+`
		FROM employees
		WHERE business_id=$1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC, id DESC
	`, businessID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *e)
	}
	return items, rows.Err()
}

func scanEmployee(row scanner) (*domain.Employee, error) {
	var (
		e      domain.Employee
		status string
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.BusinessID, &e.FirstName, &e.LastName, &e.Email, &e.Phone, &e.Position,
		&status, &e.ApprovedBy, &e.ApprovedAt, &e.RejectionReason, &e.IsActive, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Status = domain.EmployeeStatus(status)
	return &e, nil
}
