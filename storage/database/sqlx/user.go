package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/studysphere/backend/core"
	"github.com/studysphere/backend/core/user"
)

type accountRow struct {
	ID           string      `db:"id"`
	Name         string      `db:"name"`
	Username     string      `db:"username"`
	Email        string      `db:"email"`
	Avatar       null.String `db:"avatar"`
	XP           int         `db:"xp"`
	Level        int         `db:"level"`
	IsStaff      bool        `db:"is_staff"`
	IsActive     bool        `db:"is_active"`
	PasswordHash []byte      `db:"password_hash"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func (r accountRow) toAccount() user.Account {
	acct := user.Account{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username,
		Email:        r.Email,
		Avatar:       r.Avatar,
		XP:           r.XP,
		Level:        r.Level,
		IsStaff:      r.IsStaff,
		IsActive:     &r.IsActive,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.LastLogin.Valid {
		acct.LastLogin = r.LastLogin.Time
	}
	return acct
}

const accountCols = "id, name, username, email, avatar, xp, level, is_staff, is_active, password_hash, created_at, updated_at, last_login"

type accountRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *sqlx.DB) user.Repository {
	return &accountRepository{db: db}
}

func (repo *accountRepository) CheckUniqueness(ctx context.Context, username, email string, excluded ...user.Account) error {
	args := []interface{}{username, email}
	query := "SELECT username, email FROM account WHERE (username = $1 OR email = $2)"
	if len(excluded) > 0 {
		ids := make([]string, 0, len(excluded))
		ph := make([]string, 0, len(excluded))
		for i, acct := range excluded {
			ids = append(ids, acct.ID)
			ph = append(ph, fmt.Sprintf("$%d", i+3))
		}
		query += fmt.Sprintf(" AND id NOT IN (%s)", strings.Join(ph, ","))
		for _, id := range ids {
			args = append(args, id)
		}
	}

	var row struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	err := repo.db.GetContext(ctx, &row, query+" LIMIT 1", args...)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return nil
		}
		return errors.Wrap(err, "checking uniqueness")
	}
	if row.Username == username {
		return user.ErrUsernameExists
	}
	return user.ErrEmailExists
}

func (repo *accountRepository) CreateAccount(ctx context.Context, acct user.Account) (user.Account, error) {
	const query = `
		INSERT INTO account (name, username, email, avatar, xp, level, is_staff, is_active, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + accountCols

	isActive := true
	if acct.IsActive != nil {
		isActive = *acct.IsActive
	}
	var row accountRow
	err := repo.db.GetContext(ctx, &row, query,
		acct.Name, acct.Username, acct.Email, acct.Avatar, acct.XP, acct.Level,
		acct.IsStaff, isActive, acct.PasswordHash, acct.CreatedAt, acct.UpdatedAt,
	)
	if err != nil {
		return user.Account{}, errors.Wrap(err, "creating account")
	}
	return row.toAccount(), nil
}

func (repo *accountRepository) QueryAccounts(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.Account, error) {
	query := "SELECT " + accountCols + " FROM account"
	var (
		clauses []string
		args    []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.Search != "" {
			p := arg("%" + filter.Search + "%")
			clauses = append(clauses, fmt.Sprintf("(name ILIKE %[1]s OR username ILIKE %[1]s OR email ILIKE %[1]s)", p))
		}
		if filter.IsStaff != nil {
			clauses = append(clauses, "is_staff = "+arg(*filter.IsStaff))
		}
		if filter.IsActive != nil {
			clauses = append(clauses, "is_active = "+arg(*filter.IsActive))
		}
		if !filter.CreatedFrom.IsZero() {
			clauses = append(clauses, "created_at >= "+arg(filter.CreatedFrom.UTC()))
		}
		if !filter.CreatedTo.IsZero() {
			clauses = append(clauses, "created_at <= "+arg(filter.CreatedTo.UTC()))
		}
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	if len(ordering) > 0 {
		orders := make([]string, 0, len(ordering))
		for _, o := range ordering {
			orders = append(orders, o.String())
		}
		query += " ORDER BY " + strings.Join(orders, ", ")
	} else {
		query += " ORDER BY created_at DESC"
	}

	var rows []accountRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying accounts")
	}
	accts := make([]user.Account, 0, len(rows))
	for _, r := range rows {
		accts = append(accts, r.toAccount())
	}
	return accts, nil
}

func (repo *accountRepository) GetAccount(ctx context.Context, filter user.GetFilter) (user.Account, error) {
	query := "SELECT " + accountCols + " FROM account WHERE "
	var arg interface{}
	switch {
	case filter.ID != "":
		query += "id = $1"
		arg = filter.ID
	case filter.Username != "":
		query += "username = $1"
		arg = filter.Username
	case filter.Email != "":
		query += "email = $1"
		arg = filter.Email
	case filter.UsernameOrEmail != "":
		query += "(username = $1 OR email = $1)"
		arg = filter.UsernameOrEmail
	default:
		return user.Account{}, errors.New("empty account filter")
	}

	var row accountRow
	if err := repo.db.GetContext(ctx, &row, query, arg); err != nil {
		return user.Account{}, trapNoRowsErr(err, user.ErrNotFound, "getting account")
	}
	return row.toAccount(), nil
}

func (repo *accountRepository) UpdateAccount(ctx context.Context, acct user.Account, isActive, isStaff *bool) (user.Account, error) {
	// only save set fields
	var (
		sets []string
		args []interface{}
	)
	set := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if acct.Name != "" {
		set("name", acct.Name)
	}
	if acct.Username != "" {
		set("username", acct.Username)
	}
	if acct.Email != "" {
		set("email", acct.Email)
	}
	if acct.Avatar.Valid {
		set("avatar", acct.Avatar)
	}
	if acct.PasswordHash != nil {
		set("password_hash", acct.PasswordHash)
	}
	if !acct.LastLogin.IsZero() {
		set("last_login", acct.LastLogin)
	}
	if isActive != nil {
		set("is_active", *isActive)
	}
	if isStaff != nil {
		set("is_staff", *isStaff)
	}
	set("updated_at", acct.UpdatedAt)

	args = append(args, acct.ID)
	query := fmt.Sprintf(
		"UPDATE account SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), accountCols,
	)

	var row accountRow
	if err := repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return user.Account{}, trapNoRowsErr(err, user.ErrNotFound, "updating account")
	}
	return row.toAccount(), nil
}

func (repo *accountRepository) DeleteAccountsByID(ctx context.Context, ids ...string) (int, error) {
	query, args, err := sqlx.In("DELETE FROM account WHERE id IN (?)", ids)
	if err != nil {
		return 0, errors.Wrap(err, "deleting accounts")
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(query), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting accounts")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// AwardXP increments XP and re-derives the level inside a transaction so that
// concurrent awards never lose an increment.
func (repo *accountRepository) AwardXP(ctx context.Context, accountID string, amount int) (user.Account, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return user.Account{}, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var xp int
	if err = tx.GetContext(ctx, &xp, "SELECT xp FROM account WHERE id = $1 FOR UPDATE", accountID); err != nil {
		return user.Account{}, trapNoRowsErr(err, user.ErrNotFound, "locking account")
	}
	xp += amount

	var row accountRow
	const query = "UPDATE account SET xp = $1, level = $2, updated_at = NOW() WHERE id = $3 RETURNING " + accountCols
	if err = tx.GetContext(ctx, &row, query, xp, user.Level(xp), accountID); err != nil {
		return user.Account{}, errors.Wrap(err, "awarding XP")
	}

	if err = tx.Commit(); err != nil {
		return user.Account{}, errors.Wrap(err, "committing transaction")
	}
	return row.toAccount(), nil
}

func (repo *accountRepository) TopAccountsByXP(ctx context.Context, limit int) ([]user.Account, error) {
	const query = "SELECT " + accountCols + " FROM account WHERE is_active ORDER BY xp DESC, created_at ASC LIMIT $1"

	var rows []accountRow
	if err := repo.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, errors.Wrap(err, "querying leaderboard")
	}
	accts := make([]user.Account, 0, len(rows))
	for _, r := range rows {
		accts = append(accts, r.toAccount())
	}
	return accts, nil
}
