package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/studysphere/backend/core/group"
	"github.com/studysphere/backend/core/user"
)

type groupRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Subject     string    `db:"subject"`
	Description string    `db:"description"`
	CreatorID   string    `db:"creator_id"`
	Status      string    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r groupRow) toGroup() group.Group {
	return group.Group{
		ID:          r.ID,
		Name:        r.Name,
		Subject:     r.Subject,
		Description: r.Description,
		CreatorID:   r.CreatorID,
		Status:      group.Status(r.Status),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type membershipRow struct {
	ID        string    `db:"id"`
	AccountID string    `db:"account_id"`
	GroupID   string    `db:"group_id"`
	JoinedAt  time.Time `db:"joined_at"`
}

func (r membershipRow) toMembership() group.Membership {
	return group.Membership{
		ID:        r.ID,
		AccountID: r.AccountID,
		GroupID:   r.GroupID,
		JoinedAt:  r.JoinedAt,
	}
}

const groupCols = "id, name, subject, description, creator_id, status, created_at, updated_at"

type groupRepository struct {
	db *sqlx.DB
}

var _ group.Repository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(db *sqlx.DB) group.Repository {
	return &groupRepository{db: db}
}

func (repo *groupRepository) CreateGroup(ctx context.Context, grp group.Group) (group.Group, error) {
	const query = `
		INSERT INTO study_group (name, subject, description, creator_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + groupCols

	var row groupRow
	err := repo.db.GetContext(ctx, &row, query,
		grp.Name, grp.Subject, grp.Description, grp.CreatorID, grp.Status, grp.CreatedAt, grp.UpdatedAt,
	)
	if err != nil {
		return group.Group{}, errors.Wrap(err, "creating group")
	}
	return row.toGroup(), nil
}

func (repo *groupRepository) QueryGroups(ctx context.Context, filter *group.QueryFilter) ([]group.Group, error) {
	query := "SELECT " + groupCols + " FROM study_group"
	var (
		clauses []string
		args    []interface{}
	)
	if filter != nil {
		if filter.Status != "" {
			args = append(args, filter.Status)
			clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
		}
		if filter.CreatorID != "" {
			args = append(args, filter.CreatorID)
			clauses = append(clauses, fmt.Sprintf("creator_id = $%d", len(args)))
		}
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"

	var rows []groupRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying groups")
	}
	grps := make([]group.Group, 0, len(rows))
	for _, r := range rows {
		grps = append(grps, r.toGroup())
	}
	return grps, nil
}

func (repo *groupRepository) GetGroupByID(ctx context.Context, id string) (group.Group, error) {
	var row groupRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+groupCols+" FROM study_group WHERE id = $1", id)
	if err != nil {
		return group.Group{}, trapNoRowsErr(err, group.ErrNotFound, "getting group")
	}
	return row.toGroup(), nil
}

func (repo *groupRepository) UpdateGroup(ctx context.Context, grp group.Group) (group.Group, error) {
	const query = `
		UPDATE study_group SET name = $1, subject = $2, description = $3, updated_at = $4
		WHERE id = $5
		RETURNING ` + groupCols

	var row groupRow
	err := repo.db.GetContext(ctx, &row, query, grp.Name, grp.Subject, grp.Description, grp.UpdatedAt, grp.ID)
	if err != nil {
		return group.Group{}, trapNoRowsErr(err, group.ErrNotFound, "updating group")
	}
	return row.toGroup(), nil
}

func (repo *groupRepository) DeleteGroupsByID(ctx context.Context, ids ...string) (int, error) {
	query, args, err := sqlx.In("DELETE FROM study_group WHERE id IN (?)", ids)
	if err != nil {
		return 0, errors.Wrap(err, "deleting groups")
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(query), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting groups")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (repo *groupRepository) SetGroupStatus(ctx context.Context, id string, status group.Status) (group.Group, error) {
	const query = "UPDATE study_group SET status = $1, updated_at = NOW() WHERE id = $2 RETURNING " + groupCols

	var row groupRow
	if err := repo.db.GetContext(ctx, &row, query, status, id); err != nil {
		return group.Group{}, trapNoRowsErr(err, group.ErrNotFound, "setting group status")
	}
	return row.toGroup(), nil
}

func (repo *groupRepository) CreateMembership(ctx context.Context, m group.Membership) (group.Membership, error) {
	const query = `
		INSERT INTO group_membership (account_id, group_id, joined_at)
		VALUES ($1, $2, $3)
		RETURNING id, account_id, group_id, joined_at`

	var row membershipRow
	if err := repo.db.GetContext(ctx, &row, query, m.AccountID, m.GroupID, m.JoinedAt); err != nil {
		return group.Membership{}, trapUniqueErr(err, group.ErrAlreadyMember, "creating membership")
	}
	return row.toMembership(), nil
}

func (repo *groupRepository) GetMembership(ctx context.Context, accountID, groupID string) (group.Membership, error) {
	const query = "SELECT id, account_id, group_id, joined_at FROM group_membership WHERE account_id = $1 AND group_id = $2"

	var row membershipRow
	if err := repo.db.GetContext(ctx, &row, query, accountID, groupID); err != nil {
		return group.Membership{}, trapNoRowsErr(err, group.ErrNotMember, "getting membership")
	}
	return row.toMembership(), nil
}

func (repo *groupRepository) DeleteMembership(ctx context.Context, accountID, groupID string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM group_membership WHERE account_id = $1 AND group_id = $2", accountID, groupID)
	if err != nil {
		return errors.Wrap(err, "deleting membership")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return group.ErrNotMember
	}
	return nil
}

func (repo *groupRepository) CountMembers(ctx context.Context, groupIDs ...string) (map[string]int, error) {
	counts := make(map[string]int, len(groupIDs))
	if len(groupIDs) == 0 {
		return counts, nil
	}

	query, args, err := sqlx.In("SELECT group_id, COUNT(*) AS count FROM group_membership WHERE group_id IN (?) GROUP BY group_id", groupIDs)
	if err != nil {
		return nil, errors.Wrap(err, "counting members")
	}
	var rows []struct {
		GroupID string `db:"group_id"`
		Count   int    `db:"count"`
	}
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "counting members")
	}
	for _, r := range rows {
		counts[r.GroupID] = r.Count
	}
	return counts, nil
}

func (repo *groupRepository) QueryMemberAccounts(ctx context.Context, groupID string, limit int) ([]user.Account, error) {
	query := `
		SELECT a.id, a.name, a.username, a.email, a.avatar, a.xp, a.level, a.is_staff, a.is_active, a.password_hash, a.created_at, a.updated_at, a.last_login
		FROM account a
		JOIN group_membership m ON m.account_id = a.id
		WHERE m.group_id = $1
		ORDER BY m.joined_at ASC`
	args := []interface{}{groupID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	var rows []accountRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying member accounts")
	}
	accts := make([]user.Account, 0, len(rows))
	for _, r := range rows {
		accts = append(accts, r.toAccount())
	}
	return accts, nil
}

func (repo *groupRepository) QueryGroupsJoinedBy(ctx context.Context, accountID string) ([]group.Group, error) {
	const query = `
		SELECT g.id, g.name, g.subject, g.description, g.creator_id, g.status, g.created_at, g.updated_at
		FROM study_group g
		JOIN group_membership m ON m.group_id = g.id
		WHERE m.account_id = $1
		ORDER BY g.created_at DESC`

	var rows []groupRow
	if err := repo.db.SelectContext(ctx, &rows, query, accountID); err != nil {
		return nil, errors.Wrap(err, "querying joined groups")
	}
	grps := make([]group.Group, 0, len(rows))
	for _, r := range rows {
		grps = append(grps, r.toGroup())
	}
	return grps, nil
}

func (repo *groupRepository) CountMembershipsByAccount(ctx context.Context, accountID string) (int, error) {
	var n int
	err := repo.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM group_membership WHERE account_id = $1", accountID)
	if err != nil {
		return 0, errors.Wrap(err, "counting memberships")
	}
	return n, nil
}
