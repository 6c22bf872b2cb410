package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"planora-backend/internal/domain"
	"planora-backend/internal/ports"
)

// ClientService manages the primary/member hierarchy under one login.
type ClientService struct {
	Tx           ports.Transactor
	Clients      ports.ClientStore
	Associations ports.AssociationStore
	Sessions     ports.SessionStore
	Logger       *slog.Logger
	Now          func() time.Time
}

type ClientInput struct {
	UserID           int64
	FirstName        string
	LastName         string
	Phone            string
	DateOfBirth      *time.Time
	EmergencyContact domain.EmergencyContact
	Address          domain.Address
	Notes            string
	IsPrimary        *bool
	Relationship     domain.Relationship
}

// MemberPatch lists the fields a member update may change. Ownership fields
// (isPrimary, addedBy, userId, businessId) have no slot here.
type MemberPatch struct {
	FirstName        *string
	LastName         *string
	Phone            *string
	DateOfBirth      *time.Time
	Relationship     *domain.Relationship
	EmergencyContact *domain.EmergencyContact
	Address          *domain.Address
	Notes            *string
}

type Household struct {
	Primary *domain.Client
	Members []domain.Client
}

// CreateClient is the staff path. Without an explicit isPrimary the record
// becomes primary only when the account has none yet.
func (s ClientService) CreateClient(ctx context.Context, id *domain.Identity, in ClientInput) (*domain.Client, error) {
	businessID, err := businessOf(id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.FirstName) == "" {
		return nil, domain.BadRequestf("firstName is required")
	}
	if _, err := s.Associations.GetAssociation(ctx, in.UserID, businessID); err != nil {
		if isNotFound(err) {
			return nil, domain.NotFoundf("user is not associated with this business")
		}
		return nil, err
	}

	var out *domain.Client
	err = s.Tx.InTx(ctx, func(ctx context.Context) error {
		records, err := s.Clients.ListClientsForUser(ctx, in.UserID, businessID)
		if err != nil {
			return err
		}
		hasPrimary := findPrimary(records) != nil

		isPrimary := !hasPrimary
		if in.IsPrimary != nil {
			if *in.IsPrimary && hasPrimary {
				return domain.Conflictf("a primary client already exists for this account")
			}
			isPrimary = *in.IsPrimary
		}
		c := &domain.Client{
			UserID:           in.UserID,
			BusinessID:       businessID,
			FirstName:        strings.TrimSpace(in.FirstName),
			LastName:         strings.TrimSpace(in.LastName),
			Phone:            in.Phone,
			DateOfBirth:      in.DateOfBirth,
			EmergencyContact: in.EmergencyContact,
			Address:          in.Address,
			Notes:            in.Notes,
			IsPrimary:        isPrimary,
			IsActive:         true,
		}
		if isPrimary {
			c.Relationship = domain.RelationshipSelf
		} else {
			c.Relationship = memberRelationship(in.Relationship)
			c.AddedBy = ptr(id.UserID)
		}
		if err := s.Clients.CreateClient(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AddMember adds a dependent under the caller's primary record, healing a
// missing primary first.
func (s ClientService) AddMember(ctx context.Context, id *domain.Identity, in ClientInput) (*domain.Client, error) {
	businessID, err := businessOf(id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return nil, domain.BadRequestf("firstName and lastName are required")
	}
	if in.Relationship != "" && !in.Relationship.ValidMember() {
		return nil, domain.BadRequestf("invalid relationship %q", in.Relationship)
	}

	var out *domain.Client
	err = s.Tx.InTx(ctx, func(ctx context.Context) error {
		records, err := s.Clients.ListClientsForUser(ctx, id.UserID, businessID)
		if err != nil {
			return err
		}
		primary, err := s.healPrimary(ctx, records)
		if err != nil {
			return err
		}
		if primary == nil {
			return domain.Forbiddenf("only the primary account holder can add members")
		}

		m := &domain.Client{
			UserID:           id.UserID,
			BusinessID:       businessID,
			FirstName:        strings.TrimSpace(in.FirstName),
			LastName:         strings.TrimSpace(in.LastName),
			Phone:            in.Phone,
			DateOfBirth:      in.DateOfBirth,
			EmergencyContact: in.EmergencyContact,
			Address:          in.Address,
			Notes:            in.Notes,
			Relationship:     memberRelationship(in.Relationship),
			AddedBy:          ptr(id.UserID),
			IsActive:         true,
		}
		if m.Phone == "" {
			m.Phone = primary.Phone
		}
		if m.EmergencyContact == (domain.EmergencyContact{}) {
			m.EmergencyContact = primary.EmergencyContact
		}
		if m.Address == (domain.Address{}) {
			m.Address = primary.Address
		}
		if err := s.Clients.CreateClient(ctx, m); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("member added", "user_id", id.UserID, "business_id", businessID, "client_id", out.ID)
	return out, nil
}

// healPrimary returns the primary record, promoting the oldest active record
// (or reactivating the oldest inactive one) when none is flagged.
func (s ClientService) healPrimary(ctx context.Context, records []domain.Client) (*domain.Client, error) {
	if p := findPrimary(records); p != nil {
		return p, nil
	}
	if len(records) == 0 {
		return nil, nil
	}
	var candidate *domain.Client
	for i := range records {
		if records[i].IsActive {
			candidate = &records[i]
			break
		}
	}
	if candidate == nil {
		candidate = &records[0]
		candidate.IsActive = true
	}
	candidate.IsPrimary = true
	candidate.Relationship = domain.RelationshipSelf
	if err := s.Clients.UpdateClient(ctx, candidate); err != nil {
		return nil, err
	}
	s.Logger.Warn("primary client restored", "user_id", candidate.UserID, "business_id", candidate.BusinessID, "client_id", candidate.ID)
	return candidate, nil
}

func (s ClientService) ListMembers(ctx context.Context, id *domain.Identity) (*Household, error) {
	businessID, err := businessOf(id)
	if err != nil {
		return nil, err
	}
	records, err := s.Clients.ListClientsForUser(ctx, id.UserID, businessID)
	if err != nil {
		return nil, err
	}
	h := &Household{Members: []domain.Client{}}
	for i := range records {
		c := records[i]
		if !c.IsActive {
			continue
		}
		if c.IsPrimary {
			h.Primary = &c
			continue
		}
		h.Members = append(h.Members, c)
	}
	return h, nil
}

func (s ClientService) UpdateMember(ctx context.Context, id *domain.Identity, memberID int64, p MemberPatch) (*domain.Client, error) {
	c, err := s.ownedClient(ctx, id, memberID)
	if err != nil {
		return nil, err
	}
	if p.FirstName != nil {
		if strings.TrimSpace(*p.FirstName) == "" {
			return nil, domain.BadRequestf("firstName cannot be empty")
		}
		c.FirstName = strings.TrimSpace(*p.FirstName)
	}
	if p.LastName != nil {
		c.LastName = strings.TrimSpace(*p.LastName)
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	if p.DateOfBirth != nil {
		c.DateOfBirth = p.DateOfBirth
	}
	if p.Relationship != nil && !c.IsPrimary {
		if !p.Relationship.ValidMember() {
			return nil, domain.BadRequestf("invalid relationship %q", *p.Relationship)
		}
		c.Relationship = *p.Relationship
	}
	if p.EmergencyContact != nil {
		c.EmergencyContact = *p.EmergencyContact
	}
	if p.Address != nil {
		c.Address = *p.Address
	}
	if p.Notes != nil {
		c.Notes = *p.Notes
	}
	if err := s.Clients.UpdateClient(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// RemoveMember soft-deletes a non-primary member with no upcoming sessions.
func (s ClientService) RemoveMember(ctx context.Context, id *domain.Identity, memberID int64) error {
	businessID, err := businessOf(id)
	if err != nil {
		return err
	}
	c, err := s.Clients.GetClient(ctx, memberID)
	if err != nil {
		return err
	}
	if c.BusinessID != businessID || !c.IsActive {
		return domain.NotFoundf("member not found")
	}
	if c.IsPrimary {
		return domain.BadRequestf("the primary account holder cannot be removed")
	}
	if c.UserID != id.UserID {
		return domain.BadRequestf("you can only remove members of your own account")
	}

	today := clock(s.Now).now()
	sessions, err := s.Sessions.ListSessionsWithClient(ctx, businessID, c.ID)
	if err != nil {
		return err
	}
	for i := range sessions {
		if sessions[i].Status.Bookable() && sessions[i].IsUpcoming(today) {
			return domain.BadRequestf("member has upcoming sessions; cancel them first")
		}
	}

	c.IsActive = false
	if err := s.Clients.UpdateClient(ctx, c); err != nil {
		return err
	}
	s.Logger.Info("member removed", "user_id", id.UserID, "client_id", c.ID)
	return nil
}

func (s ClientService) ownedClient(ctx context.Context, id *domain.Identity, clientID int64) (*domain.Client, error) {
	businessID, err := businessOf(id)
	if err != nil {
		return nil, err
	}
	c, err := s.Clients.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if c.BusinessID != businessID || !c.IsActive {
		return nil, domain.NotFoundf("member not found")
	}
	if c.UserID != id.UserID {
		return nil, domain.Forbiddenf("you can only manage members of your own account")
	}
	return c, nil
}

func findPrimary(records []domain.Client) *domain.Client {
	for i := range records {
		if records[i].IsPrimary {
			return &records[i]
		}
	}
	return nil
}

func memberRelationship(r domain.Relationship) domain.Relationship {
	if r.ValidMember() {
		return r
	}
	return domain.RelationshipOther
}
