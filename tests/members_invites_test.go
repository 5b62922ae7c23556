package tests

import (
	"context"
	"regexp"
	"sync"
	"testing"

	"missionctl/core/apperr"
	"missionctl/core/rbac"
	"missionctl/core/store"
)

func TestHasAccessRespectsRoleRanks(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	w := env.mustWorkspace(t, "Acme", "acme")
	owner := env.mustUser(t, "owner", "owner@acme.test")
	member := env.mustUser(t, "member", "member@acme.test")
	outsider := env.mustUser(t, "outsider", "out@acme.test")
	env.mustMember(t, w.ID, owner, rbac.RoleOwner)
	env.mustMember(t, w.ID, member, rbac.RoleMember)

	cases := []struct {
		userID   int64
		required string
		want     bool
	}{
		{owner.ID, "", true},
		{owner.ID, rbac.RoleOwner, true},
		{member.ID, "", true},
		{member.ID, rbac.RoleMember, true},
		{member.ID, rbac.RoleAdmin, false},
		{outsider.ID, "", false},
		{outsider.ID, rbac.RoleMember, false},
	}
	for _, tc := range cases {
		got, err := env.membersSvc.HasAccess(ctx, w.ID, tc.userID, tc.required)
		if err != nil {
			t.Fatalf("hasAccess(%d, %q): %v", tc.userID, tc.required, err)
		}
		if got != tc.want {
			t.Fatalf("hasAccess(%d, %q) = %v, want %v", tc.userID, tc.required, got, tc.want)
		}
	}
}

func TestLastOwnerCannotBeDemotedOrRemoved(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	w := env.mustWorkspace(t, "Acme", "acme")
	owner := env.mustUser(t, "owner", "owner@acme.test")
	m := env.mustMember(t, w.ID, owner, rbac.RoleOwner)

	if _, err := env.membersSvc.ChangeRole(ctx, "t", m.ID, rbac.RoleAdmin); !apperr.IsCode(err, "conflict") {
		t.Fatalf("expected conflict demoting last owner, got %v", err)
	}
	if err := env.membersSvc.Remove(ctx, "t", m.ID); !apperr.IsCode(err, "conflict") {
		t.Fatalf("expected conflict removing last owner, got %v", err)
	}

	// With a second owner the first can be demoted.
	second := env.mustUser(t, "owner2", "owner2@acme.test")
	env.mustMember(t, w.ID, second, rbac.RoleOwner)
	if _, err := env.membersSvc.ChangeRole(ctx, "t", m.ID, rbac.RoleAdmin); err != nil {
		t.Fatalf("demote with two owners: %v", err)
	}
}

func TestBoardAccessResolution(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	w := env.mustWorkspace(t, "Acme", "acme")
	admin := env.mustUser(t, "admin1", "admin@acme.test")
	member := env.mustUser(t, "member1", "m@acme.test")
	env.mustMember(t, w.ID, admin, rbac.RoleAdmin)
	mm := env.mustMember(t, w.ID, member, rbac.RoleMember)

	// Admins bypass per-board grants.
	ok, err := env.membersSvc.CanAccessBoard(ctx, w.ID, admin.ID, "roadmap", true)
	if err != nil || !ok {
		t.Fatalf("admin should access any board: %v %v", ok, err)
	}
	// Members need an explicit grant.
	ok, _ = env.membersSvc.CanAccessBoard(ctx, w.ID, member.ID, "roadmap", false)
	if ok {
		t.Fatalf("member without grant should be denied")
	}
	if err := env.membersSvc.GrantBoard(ctx, "t", &store.BoardGrant{MemberID: mm.ID, BoardID: "roadmap", CanRead: true}); err != nil {
		t.Fatalf("grant: %v", err)
	}
	ok, _ = env.membersSvc.CanAccessBoard(ctx, w.ID, member.ID, "roadmap", false)
	if !ok {
		t.Fatalf("read grant ignored")
	}
	ok, _ = env.membersSvc.CanAccessBoard(ctx, w.ID, member.ID, "roadmap", true)
	if ok {
		t.Fatalf("write denied grant should not allow writes")
	}
}

var hexToken = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestInviteTokenShape(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	w := env.mustWorkspace(t, "Acme", "acme")
	owner := env.mustUser(t, "owner", "owner@acme.test")
	om := env.mustMember(t, w.ID, owner, rbac.RoleOwner)

	inv, err := env.invitesSvc.Create(ctx, om, "New.Person@Example.COM", rbac.RoleMember, nil)
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	if !hexToken.MatchString(inv.Token) {
		t.Fatalf("token %q is not 32 lowercase hex chars", inv.Token)
	}
	if inv.Email != "new.person@example.com" {
		t.Fatalf("email not normalized: %q", inv.Email)
	}
	if inv.ExpiresAt == nil {
		t.Fatalf("expiry not set")
	}
}

func TestInviteAcceptIsAtomicAndIdempotencyGuarded(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	w := env.mustWorkspace(t, "Acme", "acme")
	owner := env.mustUser(t, "owner", "owner@acme.test")
	om := env.mustMember(t, w.ID, owner, rbac.RoleOwner)
	invitee := env.mustUser(t, "invitee", "invitee@acme.test")

	boards := []store.InviteBoardGrant{{BoardID: "roadmap", CanRead: true, CanWrite: true}}
	inv, err := env.invitesSvc.Create(ctx, om, invitee.Email, rbac.RoleMember, boards)
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	m, err := env.invitesSvc.Accept(ctx, inv.Token, invitee)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if m.WorkspaceID != w.ID || m.Role != rbac.RoleMember {
		t.Fatalf("membership wrong: %+v", m)
	}
	// Board grants carried over.
	canRead, canWrite, err := env.members.BoardAccess(ctx, m.ID, "roadmap")
	if err != nil || !canRead || !canWrite {
		t.Fatalf("board grants not copied: %v %v %v", canRead, canWrite, err)
	}
	// A second accept of the same token must fail.
	if _, err := env.invitesSvc.Accept(ctx, inv.Token, invitee); !apperr.IsCode(err, "conflict") {
		t.Fatalf("expected conflict on re-accept, got %v", err)
	}
}

func TestInviteEmailMustMatch(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	w := env.mustWorkspace(t, "Acme", "acme")
	owner := env.mustUser(t, "owner", "owner@acme.test")
	om := env.mustMember(t, w.ID, owner, rbac.RoleOwner)
	stranger := env.mustUser(t, "stranger", "stranger@other.test")

	inv, err := env.invitesSvc.Create(ctx, om, "someone@acme.test", rbac.RoleMember, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.invitesSvc.Accept(ctx, inv.Token, stranger); !apperr.IsCode(err, "forbidden") {
		t.Fatalf("expected forbidden for wrong email, got %v", err)
	}
}

func TestConcurrentAcceptHasOneWinner(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	w := env.mustWorkspace(t, "Acme", "acme")
	owner := env.mustUser(t, "owner", "owner@acme.test")
	om := env.mustMember(t, w.ID, owner, rbac.RoleOwner)
	invitee := env.mustUser(t, "invitee", "invitee@acme.test")

	inv, err := env.invitesSvc.Create(ctx, om, invitee.Email, rbac.RoleMember, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	const attempts = 4
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.invitesSvc.Accept(ctx, inv.Token, invitee)
		}(i)
	}
	wg.Wait()
	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one successful accept, got %d (%v)", wins, errs)
	}
}

func TestRevokedInviteCannotBeAccepted(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	w := env.mustWorkspace(t, "Acme", "acme")
	owner := env.mustUser(t, "owner", "owner@acme.test")
	om := env.mustMember(t, w.ID, owner, rbac.RoleOwner)
	invitee := env.mustUser(t, "invitee", "invitee@acme.test")

	inv, err := env.invitesSvc.Create(ctx, om, invitee.Email, rbac.RoleMember, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := env.invitesSvc.Revoke(ctx, "t", inv.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := env.invitesSvc.Accept(ctx, inv.Token, invitee); !apperr.IsCode(err, "not_found") {
		t.Fatalf("expected not_found after revoke, got %v", err)
	}
}

func TestOnlyOwnerInvitesOwner(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	w := env.mustWorkspace(t, "Acme", "acme")
	adminUser := env.mustUser(t, "admin1", "admin@acme.test")
	am := env.mustMember(t, w.ID, adminUser, rbac.RoleAdmin)

	if _, err := env.invitesSvc.Create(ctx, am, "x@acme.test", rbac.RoleOwner, nil); !apperr.IsCode(err, "forbidden") {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
