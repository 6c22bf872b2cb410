package domain

import "time"

type UserRole string

const (
	RoleSuperAdmin UserRole = "super-admin"
	RoleAdmin      UserRole = "admin"
	RoleEmployee   UserRole = "employee"
	RoleClient     UserRole = "client"
)

type ClientStatus string

const (
	ClientStatusPending   ClientStatus = "pending"
	ClientStatusApproved  ClientStatus = "approved"
	ClientStatusSuspended ClientStatus = "suspended"
)

type User struct {
	ID                int64
	Email             string
	FirstName         string
	LastName          string
	Phone             string
	Role              UserRole
	ClientStatus      ClientStatus
	BusinessID        *int64
	CurrentBusinessID *int64
	IsActive          bool
	PasswordHash      *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

type BusinessStatus string

const (
	BusinessStatusPending   BusinessStatus = "pending"
	BusinessStatusActive    BusinessStatus = "active"
	BusinessStatusSuspended BusinessStatus = "suspended"
)

type Business struct {
	ID           int64
	Name         string
	Email        string
	Phone        string
	BusinessType string
	Status       BusinessStatus
	StatusNotes  string
	IsActive     bool
	AdminUserID  *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BusinessRole is the role a user holds inside one business.
type BusinessRole string

const (
	BusinessRoleAdmin      BusinessRole = "admin"
	BusinessRoleInstructor BusinessRole = "instructor"
	BusinessRoleEmployee   BusinessRole = "employee"
	BusinessRoleClient     BusinessRole = "client"
)

func (r BusinessRole) Valid() bool {
	switch r {
	case BusinessRoleAdmin, BusinessRoleInstructor, BusinessRoleEmployee, BusinessRoleClient:
		return true
	}
	return false
}

type Permissions struct {
	CanManageClients     bool `json:"canManageClients"`
	CanManageInstructors bool `json:"canManageInstructors"`
	CanManageClasses     bool `json:"canManageClasses"`
	CanManageSessions    bool `json:"canManageSessions"`
	CanViewReports       bool `json:"canViewReports"`
}

// UserBusiness links a user to a business. IsActive doubles as the approval flag.
type UserBusiness struct {
	ID          int64
	UserID      int64
	BusinessID  int64
	Role        BusinessRole
	IsActive    bool
	Permissions Permissions
	JoinedAt    time.Time
	UpdatedAt   time.Time
	Business    *Business
}

type Relationship string

const (
	RelationshipSelf      Relationship = "self"
	RelationshipChild     Relationship = "child"
	RelationshipSpouse    Relationship = "spouse"
	RelationshipDependent Relationship = "dependent"
	RelationshipOther     Relationship = "other"
)

func (r Relationship) ValidMember() bool {
	switch r {
	case RelationshipChild, RelationshipSpouse, RelationshipDependent, RelationshipOther:
		return true
	}
	return false
}

// CatchUpStatus is empty until a decision is requested.
type CatchUpStatus string

const (
	CatchUpNone     CatchUpStatus = ""
	CatchUpPending  CatchUpStatus = "pending"
	CatchUpApproved CatchUpStatus = "approved"
	CatchUpRejected CatchUpStatus = "rejected"
)

type EmergencyContact struct {
	Name         string `json:"name,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Relationship string `json:"relationship,omitempty"`
}

type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
	Country string `json:"country,omitempty"`
}

type Client struct {
	ID                    int64
	UserID                int64
	BusinessID            int64
	FirstName             string
	LastName              string
	Phone                 string
	DateOfBirth           *time.Time
	EmergencyContact      EmergencyContact
	Address               Address
	Notes                 string
	IsPrimary             bool
	Relationship          Relationship
	AddedBy               *int64
	IsActive              bool
	CancellationCount     int
	HasCancelledBefore    bool
	CatchUpApprovalStatus CatchUpStatus
	CatchUpApprovedBy     *int64
	CatchUpApprovedAt     *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (c Client) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

type EmployeeStatus string

const (
	EmployeeStatusPending   EmployeeStatus = "pending"
	EmployeeStatusApproved  EmployeeStatus = "approved"
	EmployeeStatusRejected  EmployeeStatus = "rejected"
	EmployeeStatusSuspended EmployeeStatus = "suspended"
)

type Employee struct {
	ID              int64
	UserID          int64
	BusinessID      int64
	FirstName       string
	LastName        string
	Email           string
	Phone           string
	Position        string
	Status          EmployeeStatus
	ApprovedBy      *int64
	ApprovedAt      *time.Time
	RejectionReason string
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type ClassType string

const (
	ClassTypePrivate ClassType = "private"
	ClassTypeGroup   ClassType = "group"
)

type Class struct {
	ID           int64
	BusinessID   int64
	Title        string
	Description  string
	ClassType    ClassType
	MaxCapacity  int
	InstructorID *int64
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type NotificationType string

const (
	NotificationCancellation           NotificationType = "cancellation"
	NotificationBooking                NotificationType = "booking"
	NotificationRegistration           NotificationType = "registration"
	NotificationNote                   NotificationType = "note"
	NotificationCatchUpApprovalRequest NotificationType = "catch-up-approval-request"
)

// Notification rows are append-only; only the catch-up fields and IsRead change after insert.
type Notification struct {
	ID                    int64
	BusinessID            int64
	Type                  NotificationType
	Title                 string
	Message               string
	ClientID              *int64
	SessionID             *int64
	IsRead                bool
	CatchUpApprovalStatus CatchUpStatus
	CatchUpApprovedBy     *int64
	CatchUpApprovedAt     *time.Time
	ConsumedAt            *time.Time
	ConsumedBySessionID   *int64
	CreatedAt             time.Time
}

// IsCredit reports whether the notification is an approved, unused catch-up credit.
func (n Notification) IsCredit() bool {
	return n.Type == NotificationCancellation && n.CatchUpApprovalStatus == CatchUpApproved && n.ConsumedAt == nil
}

type SessionFilter struct {
	BusinessID   int64
	From         *time.Time
	To           *time.Time
	InstructorID *int64
	ClassID      *int64
	Status       *SessionStatus
}

type NotificationFilter struct {
	BusinessID int64
	Type       *NotificationType
	ClientID   *int64
	UnreadOnly bool
	Limit      int
}

// Email is a fire-and-forget outbound message.
type Email struct {
	To      string
	Subject string
	Body    string
}
