package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/studysphere/backend/core"
	"github.com/studysphere/backend/core/user"
)

type accountRepository struct {
	db *DB
}

var _ user.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *DB) user.Repository {
	return &accountRepository{db: db}
}

func (repo *accountRepository) query() []user.Account {
	accts := make([]user.Account, 0, len(repo.db.account.table))
	for _, a := range repo.db.account.table {
		accts = append(accts, *a)
	}
	return accts
}

func (repo *accountRepository) CheckUniqueness(ctx context.Context, username, email string, excluded ...user.Account) error {
	repo.db.account.RLock()
	defer repo.db.account.RUnlock()

	exclLen := len(excluded)
	if exclLen > 1 {
		sort.Slice(excluded, func(i, j int) bool { return excluded[i].ID < excluded[j].ID })
	}

	for _, acct := range repo.query() {
		if acct.Username == username && !isExcluded(acct, excluded, exclLen) {
			return user.ErrUsernameExists
		}
		if acct.Email == email && !isExcluded(acct, excluded, exclLen) {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *accountRepository) CreateAccount(ctx context.Context, acct user.Account) (user.Account, error) {
	repo.db.account.Lock()
	defer repo.db.account.Unlock()

	acct.ID = uuid.New().String()
	repo.db.account.table[acct.ID] = &acct
	return acct, nil
}

func (repo *accountRepository) QueryAccounts(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.Account, error) {
	repo.db.account.RLock()
	defer repo.db.account.RUnlock()

	accts := repo.query()
	if filter == nil {
		return accts, nil
	}

	// accounts with search keyword matching any Name, Username or Email ?
	if filter.Search != "" {
		var filtered []user.Account
		search := strings.ToLower(filter.Search)
		for _, a := range accts {
			if strings.Contains(strings.ToLower(a.Username), search) ||
				strings.Contains(strings.ToLower(a.Email), search) ||
				strings.Contains(strings.ToLower(a.Name), search) {
				filtered = append(filtered, a)
			}
		}
		accts = filtered
	}
	if accts != nil && filter.IsStaff != nil {
		var filtered []user.Account
		for _, a := range accts {
			if a.IsStaff == *filter.IsStaff {
				filtered = append(filtered, a)
			}
		}
		accts = filtered
	}
	if accts != nil && filter.IsActive != nil {
		var filtered []user.Account
		for _, a := range accts {
			if a.IsActive != nil && *a.IsActive == *filter.IsActive {
				filtered = append(filtered, a)
			}
		}
		accts = filtered
	}
	if accts != nil && !filter.CreatedFrom.IsZero() {
		var filtered []user.Account
		timeUTC := filter.CreatedFrom.UTC()
		for _, a := range accts {
			if a.CreatedAt.Equal(timeUTC) || a.CreatedAt.After(timeUTC) {
				filtered = append(filtered, a)
			}
		}
		accts = filtered
	}
	if accts != nil && !filter.CreatedTo.IsZero() {
		var filtered []user.Account
		timeUTC := filter.CreatedTo.UTC()
		for _, a := range accts {
			if a.CreatedAt.Before(timeUTC) || a.CreatedAt.Equal(timeUTC) {
				filtered = append(filtered, a)
			}
		}
		accts = filtered
	}

	return accts, nil
}

func (repo *accountRepository) GetAccount(ctx context.Context, filter user.GetFilter) (user.Account, error) {
	repo.db.account.RLock()
	defer repo.db.account.RUnlock()

	if filter.ID != "" {
		if acct, ok := repo.db.account.table[filter.ID]; ok {
			return *acct, nil
		}
		return user.Account{}, user.ErrNotFound
	}
	for _, acct := range repo.query() {
		switch {
		case filter.Username != "" && acct.Username == filter.Username:
			return acct, nil
		case filter.Email != "" && acct.Email == filter.Email:
			return acct, nil
		case filter.UsernameOrEmail != "" && (acct.Username == filter.UsernameOrEmail || acct.Email == filter.UsernameOrEmail):
			return acct, nil
		}
	}
	return user.Account{}, user.ErrNotFound
}

func (repo *accountRepository) UpdateAccount(ctx context.Context, acct user.Account, isActive, isStaff *bool) (user.Account, error) {
	repo.db.account.Lock()
	defer repo.db.account.Unlock()

	// only save set fields
	orig, ok := repo.db.account.table[acct.ID]
	if !ok {
		return user.Account{}, user.ErrNotFound
	}
	if acct.Name != "" {
		orig.Name = acct.Name
	}
	if acct.Username != "" {
		orig.Username = acct.Username
	}
	if acct.Email != "" {
		orig.Email = acct.Email
	}
	if acct.Avatar.Valid {
		orig.Avatar = acct.Avatar
	}
	if acct.PasswordHash != nil {
		orig.PasswordHash = acct.PasswordHash
	}
	if !acct.LastLogin.IsZero() {
		orig.LastLogin = acct.LastLogin
	}
	if isActive != nil {
		orig.IsActive = isActive
	}
	if isStaff != nil {
		orig.IsStaff = *isStaff
	}
	orig.UpdatedAt = acct.UpdatedAt

	repo.db.account.table[orig.ID] = orig
	return *orig, nil
}

func (repo *accountRepository) DeleteAccountsByID(ctx context.Context, ids ...string) (int, error) {
	repo.db.account.Lock()
	defer repo.db.account.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.account.table[id]; !ok {
			continue
		}
		delete(repo.db.account.table, id)
		n++
		repo.db.cascadeAccountDelete(id)
	}
	return n, nil
}

func (repo *accountRepository) AwardXP(ctx context.Context, accountID string, amount int) (user.Account, error) {
	repo.db.account.Lock()
	defer repo.db.account.Unlock()

	acct, ok := repo.db.account.table[accountID]
	if !ok {
		return user.Account{}, user.ErrNotFound
	}
	acct.XP += amount
	acct.Level = user.Level(acct.XP)
	return *acct, nil
}

func (repo *accountRepository) TopAccountsByXP(ctx context.Context, limit int) ([]user.Account, error) {
	repo.db.account.RLock()
	defer repo.db.account.RUnlock()

	// active accounts only, matching the SQL WHERE clause
	accts := make([]user.Account, 0)
	for _, a := range repo.query() {
		if a.IsActive == nil || !*a.IsActive {
			continue
		}
		accts = append(accts, a)
	}
	sort.Slice(accts, func(i, j int) bool {
		if accts[i].XP != accts[j].XP {
			return accts[i].XP > accts[j].XP
		}
		return accts[i].CreatedAt.Before(accts[j].CreatedAt)
	})
	if len(accts) > limit {
		accts = accts[:limit]
	}
	return accts, nil
}

// cascadeAccountDelete removes everything owned by an account, matching the
// ON DELETE CASCADE constraints of the real schema. Caller holds account lock.
func (db *DB) cascadeAccountDelete(accountID string) {
	db.group.Lock()
	var groupIDs []string
	for id, grp := range db.group.table {
		if grp.CreatorID == accountID {
			groupIDs = append(groupIDs, id)
			delete(db.group.table, id)
		}
	}
	db.group.Unlock()
	for _, id := range groupIDs {
		db.cascadeGroupDelete(id)
	}

	db.session.Lock()
	var sessionIDs []string
	for id, sess := range db.session.table {
		if sess.HostID == accountID {
			sessionIDs = append(sessionIDs, id)
			delete(db.session.table, id)
		}
	}
	db.session.Unlock()
	for _, id := range sessionIDs {
		db.cascadeSessionDelete(id)
	}

	db.membership.Lock()
	for id, m := range db.membership.table {
		if m.AccountID == accountID {
			delete(db.membership.table, id)
		}
	}
	db.membership.Unlock()

	db.rsvp.Lock()
	for id, r := range db.rsvp.table {
		if r.AccountID == accountID {
			delete(db.rsvp.table, id)
		}
	}
	db.rsvp.Unlock()

	db.badge.Lock()
	for id, b := range db.badge.table {
		if b.AccountID == accountID {
			delete(db.badge.table, id)
		}
	}
	db.badge.Unlock()
}

func isExcluded(acct user.Account, excluded []user.Account, n int) bool {
	if n <= 0 {
		return false
	}
	idx := sort.Search(n, func(i int) bool { return excluded[i].ID >= acct.ID })
	return idx < n && excluded[idx].ID == acct.ID
}
