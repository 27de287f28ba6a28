package group_test

import (
	"context"
	"net/mail"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/studysphere/backend/core"
	"github.com/studysphere/backend/core/group"
	"github.com/studysphere/backend/core/policy"
	"github.com/studysphere/backend/core/user"
	emailsvc "github.com/studysphere/backend/services/email"
	dummydb "github.com/studysphere/backend/storage/database/dummy"
	testutil "github.com/studysphere/backend/tests"
)

type groupEnv struct {
	svc      group.Service
	repo     group.Repository
	acctRepo user.Repository
}

func setup(t *testing.T) *groupEnv {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	emailsvc.ClearSentMessages()

	conf := &core.Config{
		AppName:          "StudySphere",
		TestMode:         true,
		WorkDir:          core.Getwd(),
		SecretKey:        []byte("secret"),
		DefaultFromEmail: mail.Address{Address: "noreply@test.studysphere.cd"},
	}
	logger := testutil.NewTestLogger()
	core.ParseEmailTemplates(conf, logger)

	acctRepo := dummydb.NewAccountRepository(db)
	repo := dummydb.NewGroupRepository(db)
	acctSvc := user.NewServiceMock(acctRepo, emailsvc.NewConsoleServiceMock(conf), conf)
	return &groupEnv{
		svc:      group.NewService(repo, acctSvc, emailsvc.NewConsoleServiceMock(conf), conf, logger),
		repo:     repo,
		acctRepo: acctRepo,
	}
}

func actorFor(acct user.Account) policy.Actor {
	return policy.Actor{ID: acct.ID, Authenticated: true, Staff: acct.IsStaff}
}

func Test_groupService_Create(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	hero := testutil.CreateAccount(t, env.acctRepo, "Hero", "hero", "hero@test.cd", "", 0, false, true)

	t.Run("anonymous denied", func(t *testing.T) {
		_, err := env.svc.Create(ctx, policy.Anonymous, group.NewGroup{Name: "Algo Club", Subject: "CS", Description: "lol"})
		if errors.Cause(err) != core.ErrPermissionDenied {
			t.Errorf("Create() error = %v, want %v", err, core.ErrPermissionDenied)
		}
	})

	t.Run("created pending with auto-enrollment", func(t *testing.T) {
		grp, err := env.svc.Create(ctx, actorFor(hero), group.NewGroup{Name: "Algo Club", Subject: "CS", Description: "lol"})
		if err != nil {
			t.Fatalf("Create() failed, %v", err)
		}
		if grp.Status != group.StatusPending {
			t.Errorf("Create() status = %s, want %s", grp.Status, group.StatusPending)
		}
		if grp.CreatorID != hero.ID {
			t.Errorf("Create() creator = %s, want %s", grp.CreatorID, hero.ID)
		}

		ok, err := env.svc.IsMember(ctx, hero.ID, grp.ID)
		if err != nil || !ok {
			t.Errorf("IsMember() = %v, %v; want member", ok, err)
		}

		refreshed, err := env.acctRepo.GetAccount(ctx, user.GetFilter{ID: hero.ID})
		if err != nil {
			t.Fatalf("GetAccount() failed, %v", err)
		}
		if refreshed.XP != user.AwardCreateGroup {
			t.Errorf("Create() xp = %d, want %d", refreshed.XP, user.AwardCreateGroup)
		}
	})
}

func Test_groupService_visibility(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	hero := testutil.CreateAccount(t, env.acctRepo, "Hero", "hero", "hero@test.cd", "", 0, false, true)
	staff := testutil.CreateAccount(t, env.acctRepo, "Boss", "boss", "boss@test.cd", "", 0, true, true)
	stranger := testutil.CreateAccount(t, env.acctRepo, "Stranger", "stranger", "stranger@test.cd", "", 0, false, true)

	approved := testutil.CreateGroup(t, env.repo, "Algo Club", "CS", hero.ID, group.StatusApproved)
	pending := testutil.CreateGroup(t, env.repo, "Calculus Crew", "Math", hero.ID, group.StatusPending)

	t.Run("anonymous sees approved only", func(t *testing.T) {
		grps, err := env.svc.Query(ctx, policy.Anonymous)
		if err != nil {
			t.Fatalf("Query() failed, %v", err)
		}
		if len(grps) != 1 || grps[0].ID != approved.ID {
			t.Errorf("Query() = %v, want [%s]", grps, approved.ID)
		}
	})

	t.Run("staff sees everything", func(t *testing.T) {
		grps, err := env.svc.Query(ctx, actorFor(staff))
		if err != nil {
			t.Fatalf("Query() failed, %v", err)
		}
		if len(grps) != 2 {
			t.Errorf("Query() returned %d groups, want 2", len(grps))
		}
	})

	t.Run("pending group hidden from strangers", func(t *testing.T) {
		if _, err := env.svc.GetByID(ctx, actorFor(stranger), pending.ID); errors.Cause(err) != group.ErrNotFound {
			t.Errorf("GetByID() error = %v, want %v", err, group.ErrNotFound)
		}
	})

	t.Run("pending group visible to its creator", func(t *testing.T) {
		if _, err := env.svc.GetByID(ctx, actorFor(hero), pending.ID); err != nil {
			t.Errorf("GetByID() failed, %v", err)
		}
	})

	t.Run("pending group visible to staff", func(t *testing.T) {
		if _, err := env.svc.GetByID(ctx, actorFor(staff), pending.ID); err != nil {
			t.Errorf("GetByID() failed, %v", err)
		}
	})
}

func Test_groupService_Update(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	hero := testutil.CreateAccount(t, env.acctRepo, "Hero", "hero", "hero@test.cd", "", 0, false, true)
	staff := testutil.CreateAccount(t, env.acctRepo, "Boss", "boss", "boss@test.cd", "", 0, true, true)
	grp := testutil.CreateGroup(t, env.repo, "Algo Club", "CS", hero.ID, group.StatusApproved)

	data := group.UpdateGroup{Name: "Algo Society", Subject: grp.Subject, Description: grp.Description}

	t.Run("staff without ownership denied", func(t *testing.T) {
		if _, err := env.svc.Update(ctx, actorFor(staff), grp.ID, data); errors.Cause(err) != core.ErrPermissionDenied {
			t.Errorf("Update() error = %v, want %v", err, core.ErrPermissionDenied)
		}
	})

	t.Run("updated by owner", func(t *testing.T) {
		updated, err := env.svc.Update(ctx, actorFor(hero), grp.ID, data)
		if err != nil {
			t.Fatalf("Update() failed, %v", err)
		}
		if updated.Name != "Algo Society" {
			t.Errorf("Update() name = %s, want Algo Society", updated.Name)
		}
	})
}

func Test_groupService_Join(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	hero := testutil.CreateAccount(t, env.acctRepo, "Hero", "hero", "hero@test.cd", "", 0, false, true)
	fan := testutil.CreateAccount(t, env.acctRepo, "Fan", "fan", "fan@test.cd", "", 0, false, true)

	approved := testutil.CreateGroup(t, env.repo, "Algo Club", "CS", hero.ID, group.StatusApproved)
	pending := testutil.CreateGroup(t, env.repo, "Calculus Crew", "Math", hero.ID, group.StatusPending)

	t.Run("pending group cannot be joined", func(t *testing.T) {
		if _, err := env.svc.Join(ctx, actorFor(fan), pending.ID); errors.Cause(err) != group.ErrNotApproved {
			t.Errorf("Join() error = %v, want %v", err, group.ErrNotApproved)
		}
	})

	t.Run("joined with award", func(t *testing.T) {
		m, err := env.svc.Join(ctx, actorFor(fan), approved.ID)
		if err != nil {
			t.Fatalf("Join() failed, %v", err)
		}
		if m.AccountID != fan.ID || m.GroupID != approved.ID {
			t.Errorf("Join() membership = %v", m)
		}

		refreshed, err := env.acctRepo.GetAccount(ctx, user.GetFilter{ID: fan.ID})
		if err != nil {
			t.Fatalf("GetAccount() failed, %v", err)
		}
		if refreshed.XP != user.AwardJoinGroup {
			t.Errorf("Join() xp = %d, want %d", refreshed.XP, user.AwardJoinGroup)
		}
	})

	t.Run("joining twice conflicts", func(t *testing.T) {
		if _, err := env.svc.Join(ctx, actorFor(fan), approved.ID); errors.Cause(err) != group.ErrAlreadyMember {
			t.Errorf("Join() error = %v, want %v", err, group.ErrAlreadyMember)
		}
	})

	t.Run("left without award reversal", func(t *testing.T) {
		if err := env.svc.Leave(ctx, actorFor(fan), approved.ID); err != nil {
			t.Fatalf("Leave() failed, %v", err)
		}

		refreshed, err := env.acctRepo.GetAccount(ctx, user.GetFilter{ID: fan.ID})
		if err != nil {
			t.Fatalf("GetAccount() failed, %v", err)
		}
		if refreshed.XP != user.AwardJoinGroup {
			t.Errorf("Leave() xp = %d, want %d", refreshed.XP, user.AwardJoinGroup)
		}
	})

	t.Run("leaving without membership conflicts", func(t *testing.T) {
		if err := env.svc.Leave(ctx, actorFor(fan), approved.ID); errors.Cause(err) != group.ErrNotMember {
			t.Errorf("Leave() error = %v, want %v", err, group.ErrNotMember)
		}
	})

	t.Run("racing join loses on the unique pair", func(t *testing.T) {
		// two racers both pass the membership pre-check; the storage
		// constraint turns the loser's insert into the conflict sentinel
		if _, err := env.repo.CreateMembership(ctx, group.Membership{
			AccountID: hero.ID,
			GroupID:   approved.ID,
			JoinedAt:  time.Now().UTC(),
		}); err != nil {
			t.Fatalf("CreateMembership() failed, %v", err)
		}
		_, err := env.repo.CreateMembership(ctx, group.Membership{
			AccountID: hero.ID,
			GroupID:   approved.ID,
			JoinedAt:  time.Now().UTC(),
		})
		if errors.Cause(err) != group.ErrAlreadyMember {
			t.Errorf("CreateMembership() error = %v, want %v", err, group.ErrAlreadyMember)
		}
	})

	t.Run("rejoining after leaving awards again", func(t *testing.T) {
		if _, err := env.svc.Join(ctx, actorFor(fan), approved.ID); err != nil {
			t.Fatalf("Join() failed, %v", err)
		}

		refreshed, err := env.acctRepo.GetAccount(ctx, user.GetFilter{ID: fan.ID})
		if err != nil {
			t.Fatalf("GetAccount() failed, %v", err)
		}
		if refreshed.XP != 2*user.AwardJoinGroup {
			t.Errorf("Join() xp = %d, want %d", refreshed.XP, 2*user.AwardJoinGroup)
		}
	})
}

func Test_groupService_moderation(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	hero := testutil.CreateAccount(t, env.acctRepo, "Hero", "hero", "hero@test.cd", "", 0, false, true)
	staff := testutil.CreateAccount(t, env.acctRepo, "Boss", "boss", "boss@test.cd", "", 0, true, true)

	grp := testutil.CreateGroup(t, env.repo, "Algo Club", "CS", hero.ID, group.StatusPending)

	t.Run("non-staff denied", func(t *testing.T) {
		if _, err := env.svc.Approve(ctx, actorFor(hero), grp.ID); errors.Cause(err) != core.ErrPermissionDenied {
			t.Errorf("Approve() error = %v, want %v", err, core.ErrPermissionDenied)
		}
	})

	t.Run("approved with creator notification", func(t *testing.T) {
		approved, err := env.svc.Approve(ctx, actorFor(staff), grp.ID)
		if err != nil {
			t.Fatalf("Approve() failed, %v", err)
		}
		if approved.Status != group.StatusApproved {
			t.Errorf("Approve() status = %s, want %s", approved.Status, group.StatusApproved)
		}

		if len(emailsvc.SentMessages) != 1 {
			t.Fatalf("sent emails = %d, want 1", len(emailsvc.SentMessages))
		}
		msg := emailsvc.SentMessages[0]
		if msg.TemplateName != "group_approved" {
			t.Errorf("template = %s, want group_approved", msg.TemplateName)
		}
		if len(msg.To) != 1 || msg.To[0].Address != hero.Email {
			t.Errorf("to = %v, want %s", msg.To, hero.Email)
		}
	})

	t.Run("re-approving is a silent no-op", func(t *testing.T) {
		if _, err := env.svc.Approve(ctx, actorFor(staff), grp.ID); err != nil {
			t.Fatalf("Approve() failed, %v", err)
		}
		if len(emailsvc.SentMessages) != 1 {
			t.Errorf("sent emails = %d, want 1", len(emailsvc.SentMessages))
		}
	})

	t.Run("rejecting after approval conflicts", func(t *testing.T) {
		if _, err := env.svc.Reject(ctx, actorFor(staff), grp.ID); errors.Cause(err) != group.ErrAlreadyModerated {
			t.Errorf("Reject() error = %v, want %v", err, group.ErrAlreadyModerated)
		}
	})
}

func Test_groupService_Delete(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	hero := testutil.CreateAccount(t, env.acctRepo, "Hero", "hero", "hero@test.cd", "", 0, false, true)
	fan := testutil.CreateAccount(t, env.acctRepo, "Fan", "fan", "fan@test.cd", "", 0, false, true)

	grp := testutil.CreateGroup(t, env.repo, "Algo Club", "CS", hero.ID, group.StatusApproved)
	testutil.JoinGroup(t, env.repo, hero.ID, grp.ID)
	testutil.JoinGroup(t, env.repo, fan.ID, grp.ID)

	t.Run("stranger denied", func(t *testing.T) {
		if err := env.svc.Delete(ctx, actorFor(fan), grp.ID); errors.Cause(err) != core.ErrPermissionDenied {
			t.Errorf("Delete() error = %v, want %v", err, core.ErrPermissionDenied)
		}
	})

	t.Run("deleted with memberships", func(t *testing.T) {
		if err := env.svc.Delete(ctx, actorFor(hero), grp.ID); err != nil {
			t.Fatalf("Delete() failed, %v", err)
		}
		if _, err := env.repo.GetGroupByID(ctx, grp.ID); errors.Cause(err) != group.ErrNotFound {
			t.Errorf("GetGroupByID() error = %v, want %v", err, group.ErrNotFound)
		}
		n, err := env.repo.CountMembershipsByAccount(ctx, fan.ID)
		if err != nil {
			t.Fatalf("CountMembershipsByAccount() failed, %v", err)
		}
		if n != 0 {
			t.Errorf("memberships = %d, want 0", n)
		}
	})
}

func Test_groupService_MemberAccounts(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	hero := testutil.CreateAccount(t, env.acctRepo, "Hero", "hero", "hero@test.cd", "", 0, false, true)
	grp := testutil.CreateGroup(t, env.repo, "Algo Club", "CS", hero.ID, group.StatusApproved)

	now := time.Now().UTC()
	for i, uname := range []string{"alpha", "bravo", "charlie", "delta"} {
		acct := testutil.CreateAccount(t, env.acctRepo, "Member", uname, uname+"@test.cd", "", 0, false, true)
		if _, err := env.repo.CreateMembership(ctx, group.Membership{
			AccountID: acct.ID,
			GroupID:   grp.ID,
			JoinedAt:  now.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("CreateMembership() failed, %v", err)
		}
	}

	accts, err := env.svc.MemberAccounts(ctx, grp.ID, 3)
	if err != nil {
		t.Fatalf("MemberAccounts() failed, %v", err)
	}
	if len(accts) != 3 {
		t.Fatalf("MemberAccounts() returned %d accounts, want 3", len(accts))
	}
	// earliest joiners first
	if accts[0].Username != "alpha" || accts[2].Username != "charlie" {
		t.Errorf("MemberAccounts() = [%s .. %s], want [alpha .. charlie]", accts[0].Username, accts[2].Username)
	}
}
