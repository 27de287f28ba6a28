package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/studysphere/backend/core"
	"github.com/studysphere/backend/core/badge"
	"github.com/studysphere/backend/core/group"
	"github.com/studysphere/backend/core/session"
	"github.com/studysphere/backend/core/user"
)

func ctx(t *testing.T) context.Context {
	t.Helper()
	return context.Background()
}

// NewTestLogger returns a no-op core.Logger.
func NewTestLogger() core.Logger { return testLogger{} }

type testLogger struct{}

func (testLogger) Enable(bool)                  {}
func (testLogger) Debug(string, ...interface{}) {}
func (testLogger) Info(string, ...interface{})  {}
func (testLogger) Warn(string, ...interface{})  {}
func (testLogger) Error(string, ...interface{}) {}
func (testLogger) Fatal(string, ...interface{}) {}

func CreateAccount(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	xp int,
	isStaff, isActive bool,
	createdAt ...time.Time,
) user.Account {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	acct := user.Account{
		Name:      name,
		Username:  uname,
		Email:     email,
		XP:        xp,
		Level:     user.Level(xp),
		IsStaff:   isStaff,
		IsActive:  &isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := acct.SetPassword(pwd); err != nil {
			t.Fatalf("CreateAccount() failed: %v", err)
		}
	}
	acct, err := repo.CreateAccount(ctx(t), acct)
	if err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}
	return acct
}

func CreateGroup(
	t *testing.T,
	repo group.Repository,
	name, subject, creatorID string,
	status group.Status,
) group.Group {
	now := time.Now().UTC()
	grp, err := repo.CreateGroup(ctx(t), group.Group{
		Name:        name,
		Subject:     subject,
		Description: name + " description",
		CreatorID:   creatorID,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateGroup() failed: %v", err)
	}
	return grp
}

func JoinGroup(t *testing.T, repo group.Repository, accountID, groupID string) group.Membership {
	m, err := repo.CreateMembership(ctx(t), group.Membership{
		AccountID: accountID,
		GroupID:   groupID,
		JoinedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("JoinGroup() failed: %v", err)
	}
	return m
}

func CreateSession(
	t *testing.T,
	repo session.Repository,
	title, hostID string,
	groupID null.String,
) session.Session {
	now := time.Now().UTC()
	sess, err := repo.CreateSession(ctx(t), session.Session{
		Title:       title,
		CourseCode:  "CS101",
		Description: title + " description",
		Date:        "2026-09-12",
		Time:        "14:00",
		Location:    "Library Room 2",
		HostID:      hostID,
		GroupID:     groupID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	return sess
}

func RSVPSession(t *testing.T, repo session.Repository, accountID, sessionID string) session.RSVP {
	r, err := repo.CreateRSVP(ctx(t), session.RSVP{
		AccountID: accountID,
		SessionID: sessionID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("RSVPSession() failed: %v", err)
	}
	return r
}

func AwardBadge(t *testing.T, repo badge.Repository, accountID, name string, earnedAt ...time.Time) badge.Badge {
	tstamp := time.Now().UTC()
	if len(earnedAt) > 0 {
		tstamp = earnedAt[0].UTC()
	}
	b, err := repo.CreateBadge(ctx(t), badge.Badge{
		Name:      name,
		Icon:      "star",
		Color:     "#f59e0b",
		BgColor:   "#fef3c7",
		AccountID: accountID,
		EarnedAt:  tstamp,
	})
	if err != nil {
		t.Fatalf("AwardBadge() failed: %v", err)
	}
	return b
}
