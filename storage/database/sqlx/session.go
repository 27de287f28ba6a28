package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/studysphere/backend/core/session"
	"github.com/studysphere/backend/core/user"
)

type sessionRow struct {
	ID          string      `db:"id"`
	Title       string      `db:"title"`
	CourseCode  string      `db:"course_code"`
	Description string      `db:"description"`
	Date        string      `db:"date"`
	Time        string      `db:"time"`
	Location    string      `db:"location"`
	HostID      string      `db:"host_id"`
	GroupID     null.String `db:"group_id"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (r sessionRow) toSession() session.Session {
	return session.Session{
		ID:          r.ID,
		Title:       r.Title,
		CourseCode:  r.CourseCode,
		Description: r.Description,
		Date:        r.Date,
		Time:        r.Time,
		Location:    r.Location,
		HostID:      r.HostID,
		GroupID:     r.GroupID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type rsvpRow struct {
	ID        string    `db:"id"`
	AccountID string    `db:"account_id"`
	SessionID string    `db:"session_id"`
	CreatedAt time.Time `db:"created_at"`
}

func (r rsvpRow) toRSVP() session.RSVP {
	return session.RSVP{
		ID:        r.ID,
		AccountID: r.AccountID,
		SessionID: r.SessionID,
		CreatedAt: r.CreatedAt,
	}
}

const sessionCols = `id, title, course_code, description, date, "time", location, host_id, group_id, created_at, updated_at`

type sessionRepository struct {
	db *sqlx.DB
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *sqlx.DB) session.Repository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	const query = `
		INSERT INTO study_session (title, course_code, description, date, "time", location, host_id, group_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + sessionCols

	var row sessionRow
	err := repo.db.GetContext(ctx, &row, query,
		sess.Title, sess.CourseCode, sess.Description, sess.Date, sess.Time,
		sess.Location, sess.HostID, sess.GroupID, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return session.Session{}, errors.Wrap(err, "creating session")
	}
	return row.toSession(), nil
}

func (repo *sessionRepository) QuerySessions(ctx context.Context, filter *session.QueryFilter) ([]session.Session, error) {
	query := "SELECT " + sessionCols + " FROM study_session"
	var (
		clauses []string
		args    []interface{}
	)
	if filter != nil {
		if filter.GroupID != "" {
			args = append(args, filter.GroupID)
			clauses = append(clauses, fmt.Sprintf("group_id = $%d", len(args)))
		}
		if filter.HostID != "" {
			args = append(args, filter.HostID)
			clauses = append(clauses, fmt.Sprintf("host_id = $%d", len(args)))
		}
		if filter.AttendeeID != "" {
			args = append(args, filter.AttendeeID)
			clauses = append(clauses, fmt.Sprintf("id IN (SELECT session_id FROM session_rsvp WHERE account_id = $%d)", len(args)))
		}
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"

	var rows []sessionRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	sessions := make([]session.Session, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, r.toSession())
	}
	return sessions, nil
}

func (repo *sessionRepository) GetSessionByID(ctx context.Context, id string) (session.Session, error) {
	var row sessionRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+sessionCols+" FROM study_session WHERE id = $1", id)
	if err != nil {
		return session.Session{}, trapNoRowsErr(err, session.ErrNotFound, "getting session")
	}
	return row.toSession(), nil
}

func (repo *sessionRepository) UpdateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	const query = `
		UPDATE study_session
		SET title = $1, course_code = $2, description = $3, date = $4, "time" = $5, location = $6, group_id = $7, updated_at = $8
		WHERE id = $9
		RETURNING ` + sessionCols

	var row sessionRow
	err := repo.db.GetContext(ctx, &row, query,
		sess.Title, sess.CourseCode, sess.Description, sess.Date, sess.Time,
		sess.Location, sess.GroupID, sess.UpdatedAt, sess.ID,
	)
	if err != nil {
		return session.Session{}, trapNoRowsErr(err, session.ErrNotFound, "updating session")
	}
	return row.toSession(), nil
}

func (repo *sessionRepository) DeleteSessionsByID(ctx context.Context, ids ...string) (int, error) {
	query, args, err := sqlx.In("DELETE FROM study_session WHERE id IN (?)", ids)
	if err != nil {
		return 0, errors.Wrap(err, "deleting sessions")
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(query), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting sessions")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (repo *sessionRepository) CreateRSVP(ctx context.Context, r session.RSVP) (session.RSVP, error) {
	const query = `
		INSERT INTO session_rsvp (account_id, session_id, created_at)
		VALUES ($1, $2, $3)
		RETURNING id, account_id, session_id, created_at`

	var row rsvpRow
	if err := repo.db.GetContext(ctx, &row, query, r.AccountID, r.SessionID, r.CreatedAt); err != nil {
		return session.RSVP{}, trapUniqueErr(err, session.ErrAlreadyRSVPd, "creating RSVP")
	}
	return row.toRSVP(), nil
}

func (repo *sessionRepository) GetRSVP(ctx context.Context, accountID, sessionID string) (session.RSVP, error) {
	const query = "SELECT id, account_id, session_id, created_at FROM session_rsvp WHERE account_id = $1 AND session_id = $2"

	var row rsvpRow
	if err := repo.db.GetContext(ctx, &row, query, accountID, sessionID); err != nil {
		return session.RSVP{}, trapNoRowsErr(err, session.ErrNotRSVPd, "getting RSVP")
	}
	return row.toRSVP(), nil
}

func (repo *sessionRepository) DeleteRSVP(ctx context.Context, accountID, sessionID string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM session_rsvp WHERE account_id = $1 AND session_id = $2", accountID, sessionID)
	if err != nil {
		return errors.Wrap(err, "deleting RSVP")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return session.ErrNotRSVPd
	}
	return nil
}

func (repo *sessionRepository) CountAttendees(ctx context.Context, sessionIDs ...string) (map[string]int, error) {
	counts := make(map[string]int, len(sessionIDs))
	if len(sessionIDs) == 0 {
		return counts, nil
	}

	query, args, err := sqlx.In("SELECT session_id, COUNT(*) AS count FROM session_rsvp WHERE session_id IN (?) GROUP BY session_id", sessionIDs)
	if err != nil {
		return nil, errors.Wrap(err, "counting attendees")
	}
	var rows []struct {
		SessionID string `db:"session_id"`
		Count     int    `db:"count"`
	}
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "counting attendees")
	}
	for _, r := range rows {
		counts[r.SessionID] = r.Count
	}
	return counts, nil
}

func (repo *sessionRepository) QueryAttendeeAccounts(ctx context.Context, sessionID string) ([]user.Account, error) {
	const query = `
		SELECT a.id, a.name, a.username, a.email, a.avatar, a.xp, a.level, a.is_staff, a.is_active, a.password_hash, a.created_at, a.updated_at, a.last_login
		FROM account a
		JOIN session_rsvp r ON r.account_id = a.id
		WHERE r.session_id = $1
		ORDER BY r.created_at ASC`

	var rows []accountRow
	if err := repo.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, errors.Wrap(err, "querying attendee accounts")
	}
	accts := make([]user.Account, 0, len(rows))
	for _, r := range rows {
		accts = append(accts, r.toAccount())
	}
	return accts, nil
}

func (repo *sessionRepository) QuerySessionsAttendedBy(ctx context.Context, accountID string, limit int) ([]session.Session, error) {
	query := `
		SELECT s.id, s.title, s.course_code, s.description, s.date, s."time", s.location, s.host_id, s.group_id, s.created_at, s.updated_at
		FROM study_session s
		JOIN session_rsvp r ON r.session_id = s.id
		WHERE r.account_id = $1
		ORDER BY s.created_at DESC`
	args := []interface{}{accountID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	var rows []sessionRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying attended sessions")
	}
	sessions := make([]session.Session, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, r.toSession())
	}
	return sessions, nil
}

func (repo *sessionRepository) CountRSVPsByAccount(ctx context.Context, accountID string) (int, error) {
	var n int
	err := repo.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM session_rsvp WHERE account_id = $1", accountID)
	if err != nil {
		return 0, errors.Wrap(err, "counting RSVPs")
	}
	return n, nil
}

func (repo *sessionRepository) CountSessionsHostedBy(ctx context.Context, accountID string) (int, error) {
	var n int
	err := repo.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM study_session WHERE host_id = $1", accountID)
	if err != nil {
		return 0, errors.Wrap(err, "counting hosted sessions")
	}
	return n, nil
}

func (repo *sessionRepository) SessionStats(ctx context.Context) (session.Stats, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM study_session) AS total,
			(SELECT COUNT(DISTINCT session_id) FROM session_rsvp) AS active`

	var row struct {
		Total  int `db:"total"`
		Active int `db:"active"`
	}
	if err := repo.db.GetContext(ctx, &row, query); err != nil {
		return session.Stats{}, errors.Wrap(err, "querying session stats")
	}
	return session.Stats{Total: row.Total, Active: row.Active}, nil
}
