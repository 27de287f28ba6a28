package session

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/studysphere/backend/core"
	"github.com/studysphere/backend/core/group"
	"github.com/studysphere/backend/core/policy"
	"github.com/studysphere/backend/core/user"
)

var (
	// errors
	ErrNotFound     = errors.New("session not found")
	ErrAlreadyRSVPd = errors.New("you have already RSVP'd to this session")
	ErrNotRSVPd     = errors.New("you have not RSVP'd to this session")
)

type (
	Repository interface {
		CreateSession(ctx context.Context, sess Session) (Session, error)
		QuerySessions(ctx context.Context, filter *QueryFilter) ([]Session, error)
		GetSessionByID(ctx context.Context, id string) (Session, error)
		UpdateSession(ctx context.Context, sess Session) (Session, error)
		DeleteSessionsByID(ctx context.Context, ids ...string) (int, error)

		CreateRSVP(ctx context.Context, r RSVP) (RSVP, error)
		GetRSVP(ctx context.Context, accountID, sessionID string) (RSVP, error)
		DeleteRSVP(ctx context.Context, accountID, sessionID string) error
		// CountAttendees maps each session ID to its RSVP count.
		CountAttendees(ctx context.Context, sessionIDs ...string) (map[string]int, error)
		QueryAttendeeAccounts(ctx context.Context, sessionID string) ([]user.Account, error)
		// QuerySessionsAttendedBy returns up to limit sessions the account RSVP'd to.
		QuerySessionsAttendedBy(ctx context.Context, accountID string, limit int) ([]Session, error)
		CountRSVPsByAccount(ctx context.Context, accountID string) (int, error)
		CountSessionsHostedBy(ctx context.Context, accountID string) (int, error)
		SessionStats(ctx context.Context) (Stats, error)
	}

	Service interface {
		Create(ctx context.Context, actor policy.Actor, ns NewSession) (Session, error)
		QueryAll(ctx context.Context) ([]Session, error)
		ByGroup(ctx context.Context, groupID string) ([]Session, error)
		GetByID(ctx context.Context, id string) (Session, error)
		Update(ctx context.Context, actor policy.Actor, id string, us UpdateSession) (Session, error)
		Delete(ctx context.Context, actor policy.Actor, id string) error

		RSVP(ctx context.Context, actor policy.Actor, id string) (RSVP, error)
		CancelRSVP(ctx context.Context, actor policy.Actor, id string) error
		IsAttending(ctx context.Context, accountID, sessionID string) (bool, error)
		AttendeesCount(ctx context.Context, sessionIDs ...string) (map[string]int, error)
		AttendeeAccounts(ctx context.Context, sessionID string) ([]user.Account, error)
		AttendedBy(ctx context.Context, accountID string, limit int) ([]Session, error)
		CountAttendedBy(ctx context.Context, accountID string) (int, error)
		CountHostedBy(ctx context.Context, accountID string) (int, error)
		Stats(ctx context.Context) (Stats, error)
	}

	service struct {
		repo    Repository
		grpSvc  group.Service
		acctSvc user.Service
		logger  core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, grpSvc group.Service, acctSvc user.Service, logger core.Logger) Service {
	return &service{
		repo:    repo,
		grpSvc:  grpSvc,
		acctSvc: acctSvc,
		logger:  logger,
	}
}

func (svc *service) Create(ctx context.Context, actor policy.Actor, ns NewSession) (Session, error) {
	if !policy.Can(actor, policy.ActionCreate, "") {
		return Session{}, core.ErrPermissionDenied
	}

	// an attached group must exist and be visible to the actor
	if ns.GroupID.Valid && ns.GroupID.String != "" {
		if _, err := svc.grpSvc.GetByID(ctx, actor, ns.GroupID.String); err != nil {
			if errors.Cause(err) == group.ErrNotFound {
				return Session{}, core.NewValidationError(err, core.FieldError{Field: "group", Error: group.ErrNotFound.Error()})
			}
			return Session{}, errors.Wrap(err, "checking group")
		}
	}

	now := time.Now().UTC()
	sess := Session{
		Title:       ns.Title,
		CourseCode:  ns.CourseCode,
		Description: ns.Description,
		Date:        ns.Date,
		Time:        ns.Time,
		Location:    ns.Location,
		HostID:      actor.ID,
		GroupID:     ns.GroupID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	sess, err := svc.repo.CreateSession(ctx, sess)
	if err != nil {
		return Session{}, errors.Wrap(err, "creating session")
	}

	svc.award(ctx, actor.ID, user.AwardCreateSession)
	return sess, nil
}

func (svc *service) QueryAll(ctx context.Context) ([]Session, error) {
	return svc.repo.QuerySessions(ctx, nil)
}

func (svc *service) ByGroup(ctx context.Context, groupID string) ([]Session, error) {
	return svc.repo.QuerySessions(ctx, &QueryFilter{GroupID: groupID})
}

func (svc *service) GetByID(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSessionByID(ctx, id)
}

func (svc *service) Update(ctx context.Context, actor policy.Actor, id string, us UpdateSession) (Session, error) {
	sess, err := svc.repo.GetSessionByID(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if !policy.Can(actor, policy.ActionUpdate, sess.HostID) {
		return Session{}, core.ErrPermissionDenied
	}

	sess.Title = us.Title
	sess.CourseCode = us.CourseCode
	sess.Description = us.Description
	sess.Date = us.Date
	sess.Time = us.Time
	sess.Location = us.Location
	sess.GroupID = us.GroupID
	sess.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSession(ctx, sess)
}

func (svc *service) Delete(ctx context.Context, actor policy.Actor, id string) error {
	sess, err := svc.repo.GetSessionByID(ctx, id)
	if err != nil {
		return err
	}
	if !policy.Can(actor, policy.ActionDelete, sess.HostID) {
		return core.ErrPermissionDenied
	}
	_, err = svc.repo.DeleteSessionsByID(ctx, id)
	return err
}

func (svc *service) RSVP(ctx context.Context, actor policy.Actor, id string) (RSVP, error) {
	if !policy.Can(actor, policy.ActionCreate, "") {
		return RSVP{}, core.ErrPermissionDenied
	}
	sess, err := svc.repo.GetSessionByID(ctx, id)
	if err != nil {
		return RSVP{}, err
	}
	if _, err = svc.repo.GetRSVP(ctx, actor.ID, sess.ID); err == nil {
		return RSVP{}, ErrAlreadyRSVPd
	} else if errors.Cause(err) != ErrNotRSVPd {
		return RSVP{}, errors.Wrap(err, "checking RSVP")
	}

	r, err := svc.repo.CreateRSVP(ctx, RSVP{
		AccountID: actor.ID,
		SessionID: sess.ID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return RSVP{}, errors.Wrap(err, "creating RSVP")
	}

	svc.award(ctx, actor.ID, user.AwardRSVPSession)
	return r, nil
}

func (svc *service) CancelRSVP(ctx context.Context, actor policy.Actor, id string) error {
	if !actor.Authenticated {
		return core.ErrPermissionDenied
	}
	sess, err := svc.repo.GetSessionByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err = svc.repo.GetRSVP(ctx, actor.ID, sess.ID); err != nil {
		return err
	}
	// no XP is deducted; awards are not reversed
	return svc.repo.DeleteRSVP(ctx, actor.ID, sess.ID)
}

func (svc *service) IsAttending(ctx context.Context, accountID, sessionID string) (bool, error) {
	if accountID == "" {
		return false, nil
	}
	if _, err := svc.repo.GetRSVP(ctx, accountID, sessionID); err != nil {
		if errors.Cause(err) == ErrNotRSVPd {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (svc *service) AttendeesCount(ctx context.Context, sessionIDs ...string) (map[string]int, error) {
	return svc.repo.CountAttendees(ctx, sessionIDs...)
}

func (svc *service) AttendeeAccounts(ctx context.Context, sessionID string) ([]user.Account, error) {
	return svc.repo.QueryAttendeeAccounts(ctx, sessionID)
}

func (svc *service) AttendedBy(ctx context.Context, accountID string, limit int) ([]Session, error) {
	return svc.repo.QuerySessionsAttendedBy(ctx, accountID, limit)
}

func (svc *service) CountAttendedBy(ctx context.Context, accountID string) (int, error) {
	return svc.repo.CountRSVPsByAccount(ctx, accountID)
}

func (svc *service) CountHostedBy(ctx context.Context, accountID string) (int, error) {
	return svc.repo.CountSessionsHostedBy(ctx, accountID)
}

func (svc *service) Stats(ctx context.Context) (Stats, error) {
	return svc.repo.SessionStats(ctx)
}

// award applies a progression side effect. The triggering action has already
// succeeded at this point, so a failed award is logged but not surfaced.
func (svc *service) award(ctx context.Context, accountID string, amount int) {
	if _, err := svc.acctSvc.AwardXP(ctx, accountID, amount); err != nil {
		svc.logger.Error("awarding XP", errors.Wrapf(err, "awarding %d XP to %s", amount, accountID))
	}
}
