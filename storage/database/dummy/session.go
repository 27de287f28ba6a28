package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/studysphere/backend/core/session"
	"github.com/studysphere/backend/core/user"
)

type sessionRepository struct {
	db *DB
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) session.Repository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) query() []session.Session {
	sessions := make([]session.Session, 0, len(repo.db.session.table))
	for _, s := range repo.db.session.table {
		sessions = append(sessions, *s)
	}
	// newest first, matching the SQL ordering
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].CreatedAt.After(sessions[j].CreatedAt) })
	return sessions
}

func (repo *sessionRepository) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	repo.db.session.Lock()
	defer repo.db.session.Unlock()

	sess.ID = uuid.New().String()
	repo.db.session.table[sess.ID] = &sess
	return sess, nil
}

func (repo *sessionRepository) QuerySessions(ctx context.Context, filter *session.QueryFilter) ([]session.Session, error) {
	repo.db.session.RLock()
	sessions := repo.query()
	repo.db.session.RUnlock()

	if filter == nil {
		return sessions, nil
	}

	if filter.GroupID != "" {
		var filtered []session.Session
		for _, s := range sessions {
			if s.GroupID.Valid && s.GroupID.String == filter.GroupID {
				filtered = append(filtered, s)
			}
		}
		sessions = filtered
	}
	if sessions != nil && filter.HostID != "" {
		var filtered []session.Session
		for _, s := range sessions {
			if s.HostID == filter.HostID {
				filtered = append(filtered, s)
			}
		}
		sessions = filtered
	}
	if sessions != nil && filter.AttendeeID != "" {
		repo.db.rsvp.RLock()
		attending := make(map[string]bool)
		for _, r := range repo.db.rsvp.table {
			if r.AccountID == filter.AttendeeID {
				attending[r.SessionID] = true
			}
		}
		repo.db.rsvp.RUnlock()

		var filtered []session.Session
		for _, s := range sessions {
			if attending[s.ID] {
				filtered = append(filtered, s)
			}
		}
		sessions = filtered
	}
	return sessions, nil
}

func (repo *sessionRepository) GetSessionByID(ctx context.Context, id string) (session.Session, error) {
	repo.db.session.RLock()
	defer repo.db.session.RUnlock()

	if sess, ok := repo.db.session.table[id]; ok {
		return *sess, nil
	}
	return session.Session{}, session.ErrNotFound
}

func (repo *sessionRepository) UpdateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	repo.db.session.Lock()
	defer repo.db.session.Unlock()

	orig, ok := repo.db.session.table[sess.ID]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	orig.Title = sess.Title
	orig.CourseCode = sess.CourseCode
	orig.Description = sess.Description
	orig.Date = sess.Date
	orig.Time = sess.Time
	orig.Location = sess.Location
	orig.GroupID = sess.GroupID
	orig.UpdatedAt = sess.UpdatedAt

	repo.db.session.table[orig.ID] = orig
	return *orig, nil
}

func (repo *sessionRepository) DeleteSessionsByID(ctx context.Context, ids ...string) (int, error) {
	repo.db.session.Lock()
	defer repo.db.session.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.session.table[id]; !ok {
			continue
		}
		delete(repo.db.session.table, id)
		n++
		repo.db.cascadeSessionDelete(id)
	}
	return n, nil
}

func (repo *sessionRepository) CreateRSVP(ctx context.Context, r session.RSVP) (session.RSVP, error) {
	repo.db.rsvp.Lock()
	defer repo.db.rsvp.Unlock()

	// UNIQUE (account_id, session_id)
	for _, existing := range repo.db.rsvp.table {
		if existing.AccountID == r.AccountID && existing.SessionID == r.SessionID {
			return session.RSVP{}, session.ErrAlreadyRSVPd
		}
	}

	r.ID = uuid.New().String()
	repo.db.rsvp.table[r.ID] = &r
	return r, nil
}

func (repo *sessionRepository) GetRSVP(ctx context.Context, accountID, sessionID string) (session.RSVP, error) {
	repo.db.rsvp.RLock()
	defer repo.db.rsvp.RUnlock()

	for _, r := range repo.db.rsvp.table {
		if r.AccountID == accountID && r.SessionID == sessionID {
			return *r, nil
		}
	}
	return session.RSVP{}, session.ErrNotRSVPd
}

func (repo *sessionRepository) DeleteRSVP(ctx context.Context, accountID, sessionID string) error {
	repo.db.rsvp.Lock()
	defer repo.db.rsvp.Unlock()

	for id, r := range repo.db.rsvp.table {
		if r.AccountID == accountID && r.SessionID == sessionID {
			delete(repo.db.rsvp.table, id)
			return nil
		}
	}
	return session.ErrNotRSVPd
}

func (repo *sessionRepository) CountAttendees(ctx context.Context, sessionIDs ...string) (map[string]int, error) {
	repo.db.rsvp.RLock()
	defer repo.db.rsvp.RUnlock()

	counts := make(map[string]int, len(sessionIDs))
	wanted := make(map[string]bool, len(sessionIDs))
	for _, id := range sessionIDs {
		wanted[id] = true
	}
	for _, r := range repo.db.rsvp.table {
		if wanted[r.SessionID] {
			counts[r.SessionID]++
		}
	}
	return counts, nil
}

func (repo *sessionRepository) QueryAttendeeAccounts(ctx context.Context, sessionID string) ([]user.Account, error) {
	repo.db.rsvp.RLock()
	rsvps := make([]session.RSVP, 0)
	for _, r := range repo.db.rsvp.table {
		if r.SessionID == sessionID {
			rsvps = append(rsvps, *r)
		}
	}
	repo.db.rsvp.RUnlock()

	// earliest RSVPs first
	sort.Slice(rsvps, func(i, j int) bool { return rsvps[i].CreatedAt.Before(rsvps[j].CreatedAt) })

	repo.db.account.RLock()
	defer repo.db.account.RUnlock()
	accts := make([]user.Account, 0, len(rsvps))
	for _, r := range rsvps {
		if acct, ok := repo.db.account.table[r.AccountID]; ok {
			accts = append(accts, *acct)
		}
	}
	return accts, nil
}

func (repo *sessionRepository) QuerySessionsAttendedBy(ctx context.Context, accountID string, limit int) ([]session.Session, error) {
	sessions, err := repo.QuerySessions(ctx, &session.QueryFilter{AttendeeID: accountID})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

func (repo *sessionRepository) CountRSVPsByAccount(ctx context.Context, accountID string) (int, error) {
	repo.db.rsvp.RLock()
	defer repo.db.rsvp.RUnlock()

	var n int
	for _, r := range repo.db.rsvp.table {
		if r.AccountID == accountID {
			n++
		}
	}
	return n, nil
}

func (repo *sessionRepository) CountSessionsHostedBy(ctx context.Context, accountID string) (int, error) {
	repo.db.session.RLock()
	defer repo.db.session.RUnlock()

	var n int
	for _, s := range repo.db.session.table {
		if s.HostID == accountID {
			n++
		}
	}
	return n, nil
}

func (repo *sessionRepository) SessionStats(ctx context.Context) (session.Stats, error) {
	repo.db.session.RLock()
	total := len(repo.db.session.table)
	repo.db.session.RUnlock()

	repo.db.rsvp.RLock()
	attended := make(map[string]bool)
	for _, r := range repo.db.rsvp.table {
		attended[r.SessionID] = true
	}
	repo.db.rsvp.RUnlock()

	return session.Stats{Total: total, Active: len(attended)}, nil
}

// cascadeSessionDelete removes the session's RSVPs, matching ON DELETE CASCADE.
// Caller holds session lock.
func (db *DB) cascadeSessionDelete(sessionID string) {
	db.rsvp.Lock()
	for id, r := range db.rsvp.table {
		if r.SessionID == sessionID {
			delete(db.rsvp.table, id)
		}
	}
	db.rsvp.Unlock()
}
