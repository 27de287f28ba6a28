package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/studysphere/backend/core/group"
	"github.com/studysphere/backend/core/user"
)

type groupRepository struct {
	db *DB
}

var _ group.Repository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(db *DB) group.Repository {
	return &groupRepository{db: db}
}

func (repo *groupRepository) query() []group.Group {
	grps := make([]group.Group, 0, len(repo.db.group.table))
	for _, g := range repo.db.group.table {
		grps = append(grps, *g)
	}
	// newest first, matching the SQL ordering
	sort.Slice(grps, func(i, j int) bool { return grps[i].CreatedAt.After(grps[j].CreatedAt) })
	return grps
}

func (repo *groupRepository) CreateGroup(ctx context.Context, grp group.Group) (group.Group, error) {
	repo.db.group.Lock()
	defer repo.db.group.Unlock()

	grp.ID = uuid.New().String()
	repo.db.group.table[grp.ID] = &grp
	return grp, nil
}

func (repo *groupRepository) QueryGroups(ctx context.Context, filter *group.QueryFilter) ([]group.Group, error) {
	repo.db.group.RLock()
	defer repo.db.group.RUnlock()

	grps := repo.query()
	if filter == nil {
		return grps, nil
	}

	if filter.Status != "" {
		var filtered []group.Group
		for _, g := range grps {
			if g.Status == filter.Status {
				filtered = append(filtered, g)
			}
		}
		grps = filtered
	}
	if grps != nil && filter.CreatorID != "" {
		var filtered []group.Group
		for _, g := range grps {
			if g.CreatorID == filter.CreatorID {
				filtered = append(filtered, g)
			}
		}
		grps = filtered
	}
	return grps, nil
}

func (repo *groupRepository) GetGroupByID(ctx context.Context, id string) (group.Group, error) {
	repo.db.group.RLock()
	defer repo.db.group.RUnlock()

	if grp, ok := repo.db.group.table[id]; ok {
		return *grp, nil
	}
	return group.Group{}, group.ErrNotFound
}

func (repo *groupRepository) UpdateGroup(ctx context.Context, grp group.Group) (group.Group, error) {
	repo.db.group.Lock()
	defer repo.db.group.Unlock()

	orig, ok := repo.db.group.table[grp.ID]
	if !ok {
		return group.Group{}, group.ErrNotFound
	}
	orig.Name = grp.Name
	orig.Subject = grp.Subject
	orig.Description = grp.Description
	orig.UpdatedAt = grp.UpdatedAt

	repo.db.group.table[orig.ID] = orig
	return *orig, nil
}

func (repo *groupRepository) DeleteGroupsByID(ctx context.Context, ids ...string) (int, error) {
	repo.db.group.Lock()
	defer repo.db.group.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.group.table[id]; !ok {
			continue
		}
		delete(repo.db.group.table, id)
		n++
		repo.db.cascadeGroupDelete(id)
	}
	return n, nil
}

func (repo *groupRepository) SetGroupStatus(ctx context.Context, id string, status group.Status) (group.Group, error) {
	repo.db.group.Lock()
	defer repo.db.group.Unlock()

	grp, ok := repo.db.group.table[id]
	if !ok {
		return group.Group{}, group.ErrNotFound
	}
	grp.Status = status
	return *grp, nil
}

func (repo *groupRepository) CreateMembership(ctx context.Context, m group.Membership) (group.Membership, error) {
	repo.db.membership.Lock()
	defer repo.db.membership.Unlock()

	// UNIQUE (account_id, group_id)
	for _, existing := range repo.db.membership.table {
		if existing.AccountID == m.AccountID && existing.GroupID == m.GroupID {
			return group.Membership{}, group.ErrAlreadyMember
		}
	}

	m.ID = uuid.New().String()
	repo.db.membership.table[m.ID] = &m
	return m, nil
}

func (repo *groupRepository) GetMembership(ctx context.Context, accountID, groupID string) (group.Membership, error) {
	repo.db.membership.RLock()
	defer repo.db.membership.RUnlock()

	for _, m := range repo.db.membership.table {
		if m.AccountID == accountID && m.GroupID == groupID {
			return *m, nil
		}
	}
	return group.Membership{}, group.ErrNotMember
}

func (repo *groupRepository) DeleteMembership(ctx context.Context, accountID, groupID string) error {
	repo.db.membership.Lock()
	defer repo.db.membership.Unlock()

	for id, m := range repo.db.membership.table {
		if m.AccountID == accountID && m.GroupID == groupID {
			delete(repo.db.membership.table, id)
			return nil
		}
	}
	return group.ErrNotMember
}

func (repo *groupRepository) CountMembers(ctx context.Context, groupIDs ...string) (map[string]int, error) {
	repo.db.membership.RLock()
	defer repo.db.membership.RUnlock()

	counts := make(map[string]int, len(groupIDs))
	wanted := make(map[string]bool, len(groupIDs))
	for _, id := range groupIDs {
		wanted[id] = true
	}
	for _, m := range repo.db.membership.table {
		if wanted[m.GroupID] {
			counts[m.GroupID]++
		}
	}
	return counts, nil
}

func (repo *groupRepository) QueryMemberAccounts(ctx context.Context, groupID string, limit int) ([]user.Account, error) {
	repo.db.membership.RLock()
	memberships := make([]group.Membership, 0)
	for _, m := range repo.db.membership.table {
		if m.GroupID == groupID {
			memberships = append(memberships, *m)
		}
	}
	repo.db.membership.RUnlock()

	// oldest members first
	sort.Slice(memberships, func(i, j int) bool { return memberships[i].JoinedAt.Before(memberships[j].JoinedAt) })
	if limit > 0 && len(memberships) > limit {
		memberships = memberships[:limit]
	}

	repo.db.account.RLock()
	defer repo.db.account.RUnlock()
	accts := make([]user.Account, 0, len(memberships))
	for _, m := range memberships {
		if acct, ok := repo.db.account.table[m.AccountID]; ok {
			accts = append(accts, *acct)
		}
	}
	return accts, nil
}

func (repo *groupRepository) QueryGroupsJoinedBy(ctx context.Context, accountID string) ([]group.Group, error) {
	repo.db.membership.RLock()
	groupIDs := make(map[string]bool)
	for _, m := range repo.db.membership.table {
		if m.AccountID == accountID {
			groupIDs[m.GroupID] = true
		}
	}
	repo.db.membership.RUnlock()

	repo.db.group.RLock()
	defer repo.db.group.RUnlock()
	var grps []group.Group
	for _, g := range repo.query() {
		if groupIDs[g.ID] {
			grps = append(grps, g)
		}
	}
	return grps, nil
}

func (repo *groupRepository) CountMembershipsByAccount(ctx context.Context, accountID string) (int, error) {
	repo.db.membership.RLock()
	defer repo.db.membership.RUnlock()

	var n int
	for _, m := range repo.db.membership.table {
		if m.AccountID == accountID {
			n++
		}
	}
	return n, nil
}

// cascadeGroupDelete removes the group's memberships and detaches its
// sessions, matching ON DELETE CASCADE and ON DELETE SET NULL respectively.
// Caller holds group lock.
func (db *DB) cascadeGroupDelete(groupID string) {
	db.membership.Lock()
	for id, m := range db.membership.table {
		if m.GroupID == groupID {
			delete(db.membership.table, id)
		}
	}
	db.membership.Unlock()

	db.session.Lock()
	for _, sess := range db.session.table {
		if sess.GroupID.Valid && sess.GroupID.String == groupID {
			sess.GroupID.Valid = false
			sess.GroupID.String = ""
		}
	}
	db.session.Unlock()
}
