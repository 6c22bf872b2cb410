package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"planora-backend/internal/domain"
	"planora-backend/internal/ports"
)

type EmployeeService struct {
	Employees ports.EmployeeStore
	Notifier  ports.Notifier
	Logger    *slog.Logger
	Now       func() time.Time
}

func (s EmployeeService) List(ctx context.Context, id *domain.Identity, status *domain.EmployeeStatus) ([]domain.Employee, error) {
	businessID, err := businessOf(id)
	if err != nil {
		return nil, err
	}
	return s.Employees.ListEmployees(ctx, businessID, status)
}

func (s EmployeeService) Approve(ctx context.Context, id *domain.Identity, employeeID int64) (*domain.Employee, error) {
	e, err := s.employeeInBusiness(ctx, id, employeeID)
	if err != nil {
		return nil, err
	}
	if e.Status == domain.EmployeeStatusApproved {
		return e, nil
	}
	if e.Status == domain.EmployeeStatusRejected {
		return nil, domain.BadRequestf("rejected employees cannot be approved")
	}
	e.Status = domain.EmployeeStatusApproved
	e.ApprovedBy = ptr(id.UserID)
	e.ApprovedAt = ptr(clock(s.Now).now())
	e.RejectionReason = ""
	e.IsActive = true
	if err := s.Employees.UpdateEmployee(ctx, e); err != nil {
		return nil, err
	}
	s.Notifier.Notify(ctx, domain.Email{
		To:      e.Email,
		Subject: "Your employee account has been approved",
		Body:    fmt.Sprintf("<p>Hi %s,</p><p>Your account has been approved. You can now sign in.</p>", e.FirstName),
	})
	s.Logger.Info("employee approved", "employee_id", e.ID, "by", id.UserID)
	return e, nil
}

func (s EmployeeService) Reject(ctx context.Context, id *domain.Identity, employeeID int64, reason string) (*domain.Employee, error) {
	e, err := s.employeeInBusiness(ctx, id, employeeID)
	if err != nil {
		return nil, err
	}
	if e.Status != domain.EmployeeStatusPending {
		return nil, domain.BadRequestf("only pending employees can be rejected")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "No reason provided"
	}
	e.Status = domain.EmployeeStatusRejected
	e.ApprovedBy = ptr(id.UserID)
	e.ApprovedAt = ptr(clock(s.Now).now())
	e.RejectionReason = reason
	if err := s.Employees.UpdateEmployee(ctx, e); err != nil {
		return nil, err
	}
	s.Notifier.Notify(ctx, domain.Email{
		To:      e.Email,
		Subject: "Your employee application",
		Body:    fmt.Sprintf("<p>Hi %s,</p><p>Your application was not approved.</p><p>Reason: %s</p>", e.FirstName, reason),
	})
	s.Logger.Info("employee rejected", "employee_id", e.ID, "by", id.UserID)
	return e, nil
}

func (s EmployeeService) Suspend(ctx context.Context, id *domain.Identity, employeeID int64) (*domain.Employee, error) {
	e, err := s.employeeInBusiness(ctx, id, employeeID)
	if err != nil {
		return nil, err
	}
	if e.Status != domain.EmployeeStatusApproved {
		return nil, domain.BadRequestf("only approved employees can be suspended")
	}
	e.Status = domain.EmployeeStatusSuspended
	if err := s.Employees.UpdateEmployee(ctx, e); err != nil {
		return nil, err
	}
	s.Logger.Info("employee suspended", "employee_id", e.ID, "by", id.UserID)
	return e, nil
}

func (s EmployeeService) employeeInBusiness(ctx context.Context, id *domain.Identity, employeeID int64) (*domain.Employee, error) {
	businessID, err := businessOf(id)
	if err != nil {
		return nil, err
	}
	e, err := s.Employees.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if e.BusinessID != businessID {
		return nil, domain.NotFoundf("employee not found")
	}
	return e, nil
}
