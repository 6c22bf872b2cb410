package handler

import (
	"net/http"
	"time"

	"planora-backend/internal/domain"
)

func requireBusiness(w http.ResponseWriter, id *domain.Identity) (int64, bool) {
	if id.BusinessID == nil {
		writeError(w, http.StatusForbidden, "no business selected")
		return 0, false
	}
	return *id.BusinessID, true
}

func userResponse(u domain.User) map[string]any {
	return map[string]any{
		"id":                u.ID,
		"email":             u.Email,
		"firstName":         u.FirstName,
		"lastName":          u.LastName,
		"phone":             u.Phone,
		"role":              u.Role,
		"clientStatus":      u.ClientStatus,
		"currentBusinessId": u.CurrentBusinessID,
		"isActive":          u.IsActive,
	}
}

func businessResponse(b *domain.Business) map[string]any {
	if b == nil {
		return nil
	}
	return map[string]any{
		"id":           b.ID,
		"name":         b.Name,
		"email":        b.Email,
		"phone":        b.Phone,
		"businessType": b.BusinessType,
		"status":       b.Status,
		"statusNotes":  b.StatusNotes,
		"isActive":     b.IsActive,
		"adminUserId":  b.AdminUserID,
		"createdAt":    b.CreatedAt.Format(time.RFC3339),
	}
}

func associationResponse(ub domain.UserBusiness) map[string]any {
	return map[string]any{
		"id":          ub.ID,
		"userId":      ub.UserID,
		"businessId":  ub.BusinessID,
		"role":        ub.Role,
		"isActive":    ub.IsActive,
		"permissions": ub.Permissions,
		"joinedAt":    ub.JoinedAt.Format(time.RFC3339),
		"business":    businessResponse(ub.Business),
	}
}

func associationsResponse(items []domain.UserBusiness) []map[string]any {
	resp := make([]map[string]any, 0, len(items))
	for _, ub := range items {
		resp = append(resp, associationResponse(ub))
	}
	return resp
}

func clientResponse(c domain.Client) map[string]any {
	return map[string]any{
		"id":                    c.ID,
		"userId":                c.UserID,
		"businessId":            c.BusinessID,
		"firstName":             c.FirstName,
		"lastName":              c.LastName,
		"phone":                 c.Phone,
		"dateOfBirth":           formatDate(c.DateOfBirth),
		"emergencyContact":      c.EmergencyContact,
		"address":               c.Address,
		"notes":                 c.Notes,
		"isPrimary":             c.IsPrimary,
		"relationship":          c.Relationship,
		"addedBy":               c.AddedBy,
		"isActive":              c.IsActive,
		"cancellationCount":     c.CancellationCount,
		"hasCancelledBefore":    c.HasCancelledBefore,
		"catchUpApprovalStatus": c.CatchUpApprovalStatus,
		"catchUpApprovedAt":     formatTime(c.CatchUpApprovedAt),
	}
}

func employeeResponse(e domain.Employee) map[string]any {
	return map[string]any{
		"id":              e.ID,
		"userId":          e.UserID,
		"businessId":      e.BusinessID,
		"firstName":       e.FirstName,
		"lastName":        e.LastName,
		"email":           e.Email,
		"phone":           e.Phone,
		"position":        e.Position,
		"status":          e.Status,
		"approvedBy":      e.ApprovedBy,
		"approvedAt":      formatTime(e.ApprovedAt),
		"rejectionReason": e.RejectionReason,
		"isActive":        e.IsActive,
	}
}

func classResponse(c domain.Class) map[string]any {
	return map[string]any{
		"id":           c.ID,
		"businessId":   c.BusinessID,
		"title":        c.Title,
		"description":  c.Description,
		"classType":    c.ClassType,
		"maxCapacity":  c.MaxCapacity,
		"instructorId": c.InstructorID,
		"isActive":     c.IsActive,
	}
}

func sessionResponse(s *domain.Session) map[string]any {
	var day any
	if s.DayOfWeek != nil {
		day = domain.WeekdayName(*s.DayOfWeek)
	}
	enrolled := s.EnrolledClients
	if enrolled == nil {
		enrolled = []domain.Enrollment{}
	}
	waitlist := s.Waitlist
	if waitlist == nil {
		waitlist = []domain.WaitlistEntry{}
	}
	return map[string]any{
		"id":                    s.ID,
		"businessId":            s.BusinessID,
		"classId":               s.ClassID,
		"instructorId":          s.InstructorID,
		"date":                  formatDate(s.Date),
		"startTime":             s.StartTime,
		"endTime":               s.EndTime,
		"dayOfWeek":             day,
		"isRecurring":           s.IsRecurring,
		"status":                s.Status,
		"enrolledClients":       enrolled,
		"waitlist":              waitlist,
		"isAvailableForCatchUp": s.IsAvailableForCatchUp,
		"notes":                 s.Notes,
		"version":               s.Version,
	}
}

func notificationResponse(n domain.Notification) map[string]any {
	return map[string]any{
		"id":                    n.ID,
		"businessId":            n.BusinessID,
		"type":                  n.Type,
		"title":                 n.Title,
		"message":               n.Message,
		"clientId":              n.ClientID,
		"sessionId":             n.SessionID,
		"isRead":                n.IsRead,
		"catchUpApprovalStatus": n.CatchUpApprovalStatus,
		"catchUpApprovedAt":     formatTime(n.CatchUpApprovedAt),
		"consumedAt":            formatTime(n.ConsumedAt),
		"consumedBySessionId":   n.ConsumedBySessionID,
		"timestamp":             n.CreatedAt.Format(time.RFC3339),
	}
}
