package main

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/studysphere/backend/core/badge"
	"github.com/studysphere/backend/core/group"
	"github.com/studysphere/backend/core/session"
	"github.com/studysphere/backend/core/user"
)

// seed loads a small sample dataset for local development. It is not
// idempotent; run it against a fresh database.
func (cli *commandLine) seed() error {
	ctx := context.Background()
	now := time.Now().UTC()

	newAccount := func(name, uname, email string, xp int, staff bool) (user.Account, error) {
		acct := user.Account{
			Name:      name,
			Username:  uname,
			Email:     email,
			XP:        xp,
			Level:     user.Level(xp),
			IsStaff:   staff,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := acct.SetPassword("LocalDev123!"); err != nil {
			return user.Account{}, err
		}
		return cli.acctRepo.CreateAccount(ctx, acct)
	}

	admin, err := newAccount("Site Admin", "admin", "admin@studysphere.local", 0, true)
	if err != nil {
		return err
	}
	alice, err := newAccount("Alice Mwamba", "alice", "alice@studysphere.local", 1250, false)
	if err != nil {
		return err
	}
	bob, err := newAccount("Bob Ilunga", "bob", "bob@studysphere.local", 560, false)
	if err != nil {
		return err
	}
	carla, err := newAccount("Carla Ngoy", "carla", "carla@studysphere.local", 80, false)
	if err != nil {
		return err
	}

	newGroup := func(name, subject, desc, creatorID string, status group.Status) (group.Group, error) {
		return cli.grpRepo.CreateGroup(ctx, group.Group{
			Name:        name,
			Subject:     subject,
			Description: desc,
			CreatorID:   creatorID,
			Status:      status,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	algo, err := newGroup("Algorithms Club", "Computer Science", "Weekly algorithm drills and mock interviews.", alice.ID, group.StatusApproved)
	if err != nil {
		return err
	}
	calc, err := newGroup("Calculus Crew", "Mathematics", "Working through multivariable calculus together.", bob.ID, group.StatusApproved)
	if err != nil {
		return err
	}
	if _, err = newGroup("Organic Chem Circle", "Chemistry", "Reaction mechanisms, one ring at a time.", carla.ID, group.StatusPending); err != nil {
		return err
	}

	for _, m := range []group.Membership{
		{AccountID: alice.ID, GroupID: algo.ID, JoinedAt: now},
		{AccountID: bob.ID, GroupID: algo.ID, JoinedAt: now},
		{AccountID: carla.ID, GroupID: algo.ID, JoinedAt: now},
		{AccountID: bob.ID, GroupID: calc.ID, JoinedAt: now},
		{AccountID: alice.ID, GroupID: calc.ID, JoinedAt: now},
	} {
		if _, err = cli.grpRepo.CreateMembership(ctx, m); err != nil {
			return err
		}
	}

	newSession := func(title, code, date, tm, loc, hostID string, groupID null.String) (session.Session, error) {
		return cli.sessRepo.CreateSession(ctx, session.Session{
			Title:       title,
			CourseCode:  code,
			Description: title + " study session.",
			Date:        date,
			Time:        tm,
			Location:    loc,
			HostID:      hostID,
			GroupID:     groupID,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	graphs, err := newSession("Graph Theory Deep Dive", "CS301", "2026-09-14", "16:00", "Library Room 4", alice.ID, null.StringFrom(algo.ID))
	if err != nil {
		return err
	}
	limits, err := newSession("Limits and Continuity Review", "MATH201", "2026-09-15", "10:00", "Science Hall 12", bob.ID, null.StringFrom(calc.ID))
	if err != nil {
		return err
	}
	if _, err = newSession("Open Study Hall", "GEN100", "2026-09-20", "18:30", "Student Center", carla.ID, null.String{}); err != nil {
		return err
	}

	for _, r := range []session.RSVP{
		{AccountID: bob.ID, SessionID: graphs.ID, CreatedAt: now},
		{AccountID: carla.ID, SessionID: graphs.ID, CreatedAt: now},
		{AccountID: alice.ID, SessionID: limits.ID, CreatedAt: now},
	} {
		if _, err = cli.sessRepo.CreateRSVP(ctx, r); err != nil {
			return err
		}
	}

	for _, b := range []badge.Badge{
		{Name: "Streak Keeper", Icon: "flame", Color: "#ea580c", BgColor: "#ffedd5", AccountID: alice.ID, EarnedAt: now.Add(-48 * time.Hour)},
		{Name: "Quiz Master", Icon: "trophy", Color: "#ca8a04", BgColor: "#fef9c3", AccountID: alice.ID, EarnedAt: now},
		{Name: badge.DefaultName, Icon: "star", Color: "#f59e0b", BgColor: "#fef3c7", AccountID: bob.ID, EarnedAt: now},
	} {
		if _, err = cli.badgeRepo.CreateBadge(ctx, b); err != nil {
			return err
		}
	}

	logger.Printf("seeded %d accounts (admin: %s), 3 groups, 3 sessions", 4, admin.Username)
	return nil
}
