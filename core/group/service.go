package group

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/studysphere/backend/core"
	"github.com/studysphere/backend/core/policy"
	"github.com/studysphere/backend/core/user"
)

var (
	// errors
	ErrNotFound         = errors.New("group not found")
	ErrNotApproved      = errors.New("this group is not yet approved")
	ErrAlreadyMember    = errors.New("you are already a member of this group")
	ErrNotMember        = errors.New("you are not a member of this group")
	ErrAlreadyModerated = errors.New("this group has already been moderated")
)

type (
	Repository interface {
		CreateGroup(ctx context.Context, grp Group) (Group, error)
		QueryGroups(ctx context.Context, filter *QueryFilter) ([]Group, error)
		GetGroupByID(ctx context.Context, id string) (Group, error)
		UpdateGroup(ctx context.Context, grp Group) (Group, error)
		DeleteGroupsByID(ctx context.Context, ids ...string) (int, error)
		SetGroupStatus(ctx context.Context, id string, status Status) (Group, error)

		CreateMembership(ctx context.Context, m Membership) (Membership, error)
		GetMembership(ctx context.Context, accountID, groupID string) (Membership, error)
		DeleteMembership(ctx context.Context, accountID, groupID string) error
		// CountMembers maps each group ID to its member count.
		CountMembers(ctx context.Context, groupIDs ...string) (map[string]int, error)
		// QueryMemberAccounts returns up to limit member accounts of a group.
		QueryMemberAccounts(ctx context.Context, groupID string, limit int) ([]user.Account, error)
		QueryGroupsJoinedBy(ctx context.Context, accountID string) ([]Group, error)
		CountMembershipsByAccount(ctx context.Context, accountID string) (int, error)
	}

	Service interface {
		Create(ctx context.Context, actor policy.Actor, ng NewGroup) (Group, error)
		// Query lists groups visible to the actor: staff see every status,
		// everyone else sees approved groups only.
		Query(ctx context.Context, actor policy.Actor) ([]Group, error)
		QueryByStatus(ctx context.Context, actor policy.Actor, status Status) ([]Group, error)
		GetByID(ctx context.Context, actor policy.Actor, id string) (Group, error)
		Update(ctx context.Context, actor policy.Actor, id string, ug UpdateGroup) (Group, error)
		Delete(ctx context.Context, actor policy.Actor, id string) error

		Join(ctx context.Context, actor policy.Actor, id string) (Membership, error)
		Leave(ctx context.Context, actor policy.Actor, id string) error
		IsMember(ctx context.Context, accountID, groupID string) (bool, error)
		MembersCount(ctx context.Context, groupIDs ...string) (map[string]int, error)
		MemberAccounts(ctx context.Context, groupID string, limit int) ([]user.Account, error)
		JoinedBy(ctx context.Context, accountID string) ([]Group, error)
		CountJoinedBy(ctx context.Context, accountID string) (int, error)

		Approve(ctx context.Context, actor policy.Actor, id string) (Group, error)
		Reject(ctx context.Context, actor policy.Actor, id string) (Group, error)
	}

	service struct {
		repo    Repository
		acctSvc user.Service
		mailSvc core.EmailService
		conf    *core.Config
		logger  core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, acctSvc user.Service, mailSvc core.EmailService, conf *core.Config, logger core.Logger) Service {
	return &service{
		repo:    repo,
		acctSvc: acctSvc,
		mailSvc: mailSvc,
		conf:    conf,
		logger:  logger,
	}
}

func (svc *service) Create(ctx context.Context, actor policy.Actor, ng NewGroup) (Group, error) {
	if !policy.Can(actor, policy.ActionCreate, "") {
		return Group{}, core.ErrPermissionDenied
	}

	now := time.Now().UTC()
	grp := Group{
		Name:        ng.Name,
		Subject:     ng.Subject,
		Description: ng.Description,
		CreatorID:   actor.ID,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	grp, err := svc.repo.CreateGroup(ctx, grp)
	if err != nil {
		return Group{}, errors.Wrap(err, "creating group")
	}

	// the creator is auto-enrolled as a member
	if _, err = svc.repo.CreateMembership(ctx, Membership{
		AccountID: actor.ID,
		GroupID:   grp.ID,
		JoinedAt:  now,
	}); err != nil {
		return Group{}, errors.Wrap(err, "enrolling creator")
	}

	svc.award(ctx, actor.ID, user.AwardCreateGroup)
	return grp, nil
}

func (svc *service) Query(ctx context.Context, actor policy.Actor) ([]Group, error) {
	if actor.Staff {
		return svc.repo.QueryGroups(ctx, nil)
	}
	return svc.repo.QueryGroups(ctx, &QueryFilter{Status: StatusApproved})
}

func (svc *service) QueryByStatus(ctx context.Context, actor policy.Actor, status Status) ([]Group, error) {
	if !policy.Can(actor, policy.ActionModerate, "") {
		return nil, core.ErrPermissionDenied
	}
	return svc.repo.QueryGroups(ctx, &QueryFilter{Status: status})
}

func (svc *service) GetByID(ctx context.Context, actor policy.Actor, id string) (Group, error) {
	grp, err := svc.repo.GetGroupByID(ctx, id)
	if err != nil {
		return Group{}, err
	}
	// a non-approved group only exists for staff and its creator
	if grp.Status != StatusApproved && !actor.Staff && actor.ID != grp.CreatorID {
		return Group{}, ErrNotFound
	}
	return grp, nil
}

func (svc *service) Update(ctx context.Context, actor policy.Actor, id string, ug UpdateGroup) (Group, error) {
	grp, err := svc.GetByID(ctx, actor, id)
	if err != nil {
		return Group{}, err
	}
	if !policy.Can(actor, policy.ActionUpdate, grp.CreatorID) {
		return Group{}, core.ErrPermissionDenied
	}

	grp.Name = ug.Name
	grp.Subject = ug.Subject
	grp.Description = ug.Description
	grp.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateGroup(ctx, grp)
}

func (svc *service) Delete(ctx context.Context, actor policy.Actor, id string) error {
	grp, err := svc.GetByID(ctx, actor, id)
	if err != nil {
		return err
	}
	if !policy.Can(actor, policy.ActionDelete, grp.CreatorID) {
		return core.ErrPermissionDenied
	}
	_, err = svc.repo.DeleteGroupsByID(ctx, id)
	return err
}

func (svc *service) Join(ctx context.Context, actor policy.Actor, id string) (Membership, error) {
	if !policy.Can(actor, policy.ActionCreate, "") {
		return Membership{}, core.ErrPermissionDenied
	}
	grp, err := svc.repo.GetGroupByID(ctx, id)
	if err != nil {
		return Membership{}, err
	}
	if grp.Status != StatusApproved {
		return Membership{}, ErrNotApproved
	}
	if _, err = svc.repo.GetMembership(ctx, actor.ID, grp.ID); err == nil {
		return Membership{}, ErrAlreadyMember
	} else if errors.Cause(err) != ErrNotMember {
		return Membership{}, errors.Wrap(err, "checking membership")
	}

	m, err := svc.repo.CreateMembership(ctx, Membership{
		AccountID: actor.ID,
		GroupID:   grp.ID,
		JoinedAt:  time.Now().UTC(),
	})
	if err != nil {
		return Membership{}, errors.Wrap(err, "creating membership")
	}

	svc.award(ctx, actor.ID, user.AwardJoinGroup)
	return m, nil
}

func (svc *service) Leave(ctx context.Context, actor policy.Actor, id string) error {
	if !actor.Authenticated {
		return core.ErrPermissionDenied
	}
	grp, err := svc.repo.GetGroupByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err = svc.repo.GetMembership(ctx, actor.ID, grp.ID); err != nil {
		return err
	}
	// no XP is deducted; awards are not reversed
	return svc.repo.DeleteMembership(ctx, actor.ID, grp.ID)
}

func (svc *service) IsMember(ctx context.Context, accountID, groupID string) (bool, error) {
	if accountID == "" {
		return false, nil
	}
	if _, err := svc.repo.GetMembership(ctx, accountID, groupID); err != nil {
		if errors.Cause(err) == ErrNotMember {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (svc *service) MembersCount(ctx context.Context, groupIDs ...string) (map[string]int, error) {
	return svc.repo.CountMembers(ctx, groupIDs...)
}

func (svc *service) MemberAccounts(ctx context.Context, groupID string, limit int) ([]user.Account, error) {
	return svc.repo.QueryMemberAccounts(ctx, groupID, limit)
}

func (svc *service) JoinedBy(ctx context.Context, accountID string) ([]Group, error) {
	return svc.repo.QueryGroupsJoinedBy(ctx, accountID)
}

func (svc *service) CountJoinedBy(ctx context.Context, accountID string) (int, error) {
	return svc.repo.CountMembershipsByAccount(ctx, accountID)
}

func (svc *service) Approve(ctx context.Context, actor policy.Actor, id string) (Group, error) {
	return svc.moderate(ctx, actor, id, StatusApproved)
}

func (svc *service) Reject(ctx context.Context, actor policy.Actor, id string) (Group, error) {
	return svc.moderate(ctx, actor, id, StatusRejected)
}

// moderate applies the pending -> approved|rejected state machine.
// Re-applying the current terminal status is an idempotent no-op; crossing
// from one terminal status to the other is a conflict.
func (svc *service) moderate(ctx context.Context, actor policy.Actor, id string, target Status) (Group, error) {
	if !policy.Can(actor, policy.ActionModerate, "") {
		return Group{}, core.ErrPermissionDenied
	}
	grp, err := svc.repo.GetGroupByID(ctx, id)
	if err != nil {
		return Group{}, err
	}

	switch grp.Status {
	case target:
		return grp, nil
	case StatusPending:
		grp, err = svc.repo.SetGroupStatus(ctx, id, target)
		if err != nil {
			return Group{}, errors.Wrap(err, "setting group status")
		}
		svc.notifyCreator(ctx, grp)
		return grp, nil
	default:
		return Group{}, ErrAlreadyModerated
	}
}

// award applies a progression side effect. The triggering action has already
// succeeded at this point, so a failed award is logged but not surfaced.
func (svc *service) award(ctx context.Context, accountID string, amount int) {
	if _, err := svc.acctSvc.AwardXP(ctx, accountID, amount); err != nil {
		svc.logger.Error("awarding XP", errors.Wrapf(err, "awarding %d XP to %s", amount, accountID))
	}
}

func (svc *service) notifyCreator(ctx context.Context, grp Group) {
	creator, err := svc.acctSvc.GetByID(ctx, grp.CreatorID)
	if err != nil {
		svc.logger.Error("notifying group creator", errors.Wrap(err, "finding creator"))
		return
	}

	tmpl := "group_approved"
	subject := "Your study group was approved"
	if grp.Status == StatusRejected {
		tmpl = "group_rejected"
		subject = "Your study group was rejected"
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: creator.Name, Address: creator.Email}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: struct{ Name, GroupName string }{creator.Name, grp.Name},
	})
}
