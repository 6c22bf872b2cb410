package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"planora-backend/internal/domain"
)

func (w *world) clients() ClientService {
	return ClientService{
		Tx:           w.store,
		Clients:      w.store,
		Associations: w.store,
		Sessions:     w.store,
		Logger:       discardLogger(),
		Now:          w.sessions.Now,
	}
}

func TestAddMember_InheritsContactDetails(t *testing.T) {
	w := newWorld(t, 4)
	ctx := context.Background()
	aliceID, alice := w.newClient(t, "alice@x.test")
	alice.Phone = "555-0100"
	alice.Address = domain.Address{Street: "1 Jetty Rd", City: "Fremantle"}
	if err := w.store.UpdateClient(ctx, alice); err != nil {
		t.Fatal(err)
	}

	m, err := w.clients().AddMember(ctx, aliceID, ClientInput{FirstName: "Tom", LastName: "Ray", Relationship: domain.RelationshipChild})
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if m.IsPrimary || m.Relationship != domain.RelationshipChild {
		t.Errorf("member = primary %v relationship %q", m.IsPrimary, m.Relationship)
	}
	if m.Phone != alice.Phone || m.Address != alice.Address {
		t.Errorf("member contact = %q %+v, want primary's", m.Phone, m.Address)
	}
	if m.AddedBy == nil || *m.AddedBy != aliceID.UserID {
		t.Errorf("addedBy = %v", m.AddedBy)
	}

	h, err := w.clients().ListMembers(ctx, aliceID)
	if err != nil {
		t.Fatal(err)
	}
	if h.Primary == nil || h.Primary.ID != alice.ID || len(h.Members) != 1 {
		t.Errorf("household = %+v", h)
	}
}

func TestAddMember_HealsMissingPrimary(t *testing.T) {
	w := newWorld(t, 4)
	ctx := context.Background()
	u := w.store.addUser(domain.User{Email: "orphan@x.test", Role: domain.RoleClient})
	w.store.associate(u.ID, w.biz.ID, domain.BusinessRoleClient, true)
	legacy := w.store.addClient(domain.Client{UserID: u.ID, BusinessID: w.biz.ID, FirstName: "Old", Relationship: domain.RelationshipOther})
	id := &domain.Identity{UserID: u.ID, Role: domain.RoleClient, BusinessID: ptr(w.biz.ID)}

	if _, err := w.clients().AddMember(ctx, id, ClientInput{FirstName: "New", LastName: "Kid"}); err != nil {
		t.Fatalf("add member: %v", err)
	}
	healed, _ := w.store.GetClient(ctx, legacy.ID)
	if !healed.IsPrimary || healed.Relationship != domain.RelationshipSelf {
		t.Errorf("legacy record = primary %v relationship %q, want promoted", healed.IsPrimary, healed.Relationship)
	}
	records, _ := w.store.ListClientsForUser(ctx, u.ID, w.biz.ID)
	primaries := 0
	for _, c := range records {
		if c.IsPrimary {
			primaries++
		}
	}
	if primaries != 1 {
		t.Errorf("primaries = %d, want 1", primaries)
	}
}

func TestAddMember_WithoutAnyRecordForbidden(t *testing.T) {
	w := newWorld(t, 4)
	u := w.store.addUser(domain.User{Email: "new@x.test", Role: domain.RoleClient})
	id := &domain.Identity{UserID: u.ID, Role: domain.RoleClient, BusinessID: ptr(w.biz.ID)}

	_, err := w.clients().AddMember(context.Background(), id, ClientInput{FirstName: "A", LastName: "B"})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}
}

func TestAddMember_Validation(t *testing.T) {
	w := newWorld(t, 4)
	aliceID, _ := w.newClient(t, "alice@x.test")
	tests := []struct {
		name string
		in   ClientInput
	}{
		{"missing last name", ClientInput{FirstName: "Tom"}},
		{"self relationship", ClientInput{FirstName: "Tom", LastName: "Ray", Relationship: domain.RelationshipSelf}},
		{"unknown relationship", ClientInput{FirstName: "Tom", LastName: "Ray", Relationship: "cousin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := w.clients().AddMember(context.Background(), aliceID, tt.in); !errors.Is(err, domain.ErrBadRequest) {
				t.Fatalf("err = %v, want bad request", err)
			}
		})
	}
}

func TestRemoveMember(t *testing.T) {
	w := newWorld(t, 4)
	ctx := context.Background()
	aliceID, alice := w.newClient(t, "alice@x.test")
	bobID, _ := w.newClient(t, "bob@x.test")
	svc := w.clients()

	kid, err := svc.AddMember(ctx, aliceID, ClientInput{FirstName: "Tom", LastName: "Ray"})
	if err != nil {
		t.Fatal(err)
	}
	upcoming := w.newSession(t, time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC))
	if _, err := w.sessions.EnrollClient(ctx, aliceID, upcoming.ID, kid.ID); err != nil {
		t.Fatal(err)
	}

	if err := svc.RemoveMember(ctx, aliceID, alice.ID); !errors.Is(err, domain.ErrBadRequest) {
		t.Errorf("remove primary err = %v, want bad request", err)
	}
	if err := svc.RemoveMember(ctx, bobID, kid.ID); !errors.Is(err, domain.ErrBadRequest) {
		t.Errorf("remove other's member err = %v, want bad request", err)
	}
	if err := svc.RemoveMember(ctx, aliceID, kid.ID); !errors.Is(err, domain.ErrBadRequest) {
		t.Errorf("remove with upcoming session err = %v, want bad request", err)
	}

	if _, err := w.sessions.CancelEnrollment(ctx, aliceID, upcoming.ID, kid.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.RemoveMember(ctx, aliceID, kid.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	got, _ := w.store.GetClient(ctx, kid.ID)
	if got.IsActive {
		t.Error("member should be soft-deleted")
	}
	if err := svc.RemoveMember(ctx, aliceID, kid.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second remove err = %v, want not found", err)
	}
}

func TestRemoveMember_PastSessionDoesNotBlock(t *testing.T) {
	w := newWorld(t, 4)
	ctx := context.Background()
	aliceID, _ := w.newClient(t, "alice@x.test")
	svc := w.clients()

	kid, err := svc.AddMember(ctx, aliceID, ClientInput{FirstName: "Tom", LastName: "Ray"})
	if err != nil {
		t.Fatal(err)
	}
	past := w.newSession(t, time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC))
	if _, err := w.sessions.EnrollClient(ctx, w.admin, past.ID, kid.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.RemoveMember(ctx, aliceID, kid.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
}

func TestUpdateMember(t *testing.T) {
	w := newWorld(t, 4)
	ctx := context.Background()
	aliceID, alice := w.newClient(t, "alice@x.test")
	bobID, _ := w.newClient(t, "bob@x.test")
	svc := w.clients()

	spouse := domain.RelationshipSpouse
	got, err := svc.UpdateMember(ctx, aliceID, alice.ID, MemberPatch{FirstName: ptr("Alicia"), Relationship: &spouse})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.FirstName != "Alicia" {
		t.Errorf("firstName = %q", got.FirstName)
	}
	if !got.IsPrimary || got.Relationship != domain.RelationshipSelf {
		t.Errorf("primary record changed: primary %v relationship %q", got.IsPrimary, got.Relationship)
	}

	if _, err := svc.UpdateMember(ctx, bobID, alice.ID, MemberPatch{FirstName: ptr("X")}); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("foreign update err = %v, want forbidden", err)
	}
	if _, err := svc.UpdateMember(ctx, aliceID, alice.ID, MemberPatch{FirstName: ptr("  ")}); !errors.Is(err, domain.ErrBadRequest) {
		t.Errorf("blank name err = %v, want bad request", err)
	}
}

func TestCreateClient_PrimaryDefaults(t *testing.T) {
	w := newWorld(t, 4)
	ctx := context.Background()
	u := w.store.addUser(domain.User{Email: "dana@x.test", Role: domain.RoleClient})
	w.store.associate(u.ID, w.biz.ID, domain.BusinessRoleClient, true)
	svc := w.clients()

	first, err := svc.CreateClient(ctx, w.admin, ClientInput{UserID: u.ID, FirstName: "Dana"})
	if err != nil {
		t.Fatal(err)
	}
	if !first.IsPrimary {
		t.Error("first record should become primary")
	}
	second, err := svc.CreateClient(ctx, w.admin, ClientInput{UserID: u.ID, FirstName: "Eli", Relationship: domain.RelationshipChild})
	if err != nil {
		t.Fatal(err)
	}
	if second.IsPrimary {
		t.Error("second record should not be primary")
	}
	if _, err := svc.CreateClient(ctx, w.admin, ClientInput{UserID: u.ID, FirstName: "Fay", IsPrimary: ptr(true)}); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("second primary err = %v, want conflict", err)
	}
	if _, err := svc.CreateClient(ctx, w.admin, ClientInput{UserID: 4040, FirstName: "Ghost"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unassociated user err = %v, want not found", err)
	}
}
