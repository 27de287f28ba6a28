package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/studysphere/backend/core/badge"
)

type badgeRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Icon      string    `db:"icon"`
	Color     string    `db:"color"`
	BgColor   string    `db:"bg_color"`
	AccountID string    `db:"account_id"`
	EarnedAt  time.Time `db:"earned_at"`
}

func (r badgeRow) toBadge() badge.Badge {
	return badge.Badge{
		ID:        r.ID,
		Name:      r.Name,
		Icon:      r.Icon,
		Color:     r.Color,
		BgColor:   r.BgColor,
		AccountID: r.AccountID,
		EarnedAt:  r.EarnedAt,
	}
}

const badgeCols = "id, name, icon, color, bg_color, account_id, earned_at"

type badgeRepository struct {
	db *sqlx.DB
}

var _ badge.Repository = (*badgeRepository)(nil) // interface compliance check

func NewBadgeRepository(db *sqlx.DB) badge.Repository {
	return &badgeRepository{db: db}
}

func (repo *badgeRepository) CreateBadge(ctx context.Context, b badge.Badge) (badge.Badge, error) {
	const query = `
		INSERT INTO badge (name, icon, color, bg_color, account_id, earned_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + badgeCols

	var row badgeRow
	err := repo.db.GetContext(ctx, &row, query, b.Name, b.Icon, b.Color, b.BgColor, b.AccountID, b.EarnedAt)
	if err != nil {
		return badge.Badge{}, errors.Wrap(err, "creating badge")
	}
	return row.toBadge(), nil
}

func (repo *badgeRepository) QueryBadgesByAccount(ctx context.Context, accountID string) ([]badge.Badge, error) {
	const query = "SELECT " + badgeCols + " FROM badge WHERE account_id = $1 ORDER BY earned_at DESC"

	var rows []badgeRow
	if err := repo.db.SelectContext(ctx, &rows, query, accountID); err != nil {
		return nil, errors.Wrap(err, "querying badges")
	}
	badges := make([]badge.Badge, 0, len(rows))
	for _, r := range rows {
		badges = append(badges, r.toBadge())
	}
	return badges, nil
}

func (repo *badgeRepository) LatestBadgeNames(ctx context.Context, accountIDs ...string) (map[string]string, error) {
	names := make(map[string]string, len(accountIDs))
	if len(accountIDs) == 0 {
		return names, nil
	}

	query, args, err := sqlx.In(`
		SELECT DISTINCT ON (account_id) account_id, name
		FROM badge
		WHERE account_id IN (?)
		ORDER BY account_id, earned_at DESC`, accountIDs)
	if err != nil {
		return nil, errors.Wrap(err, "querying latest badges")
	}
	var rows []struct {
		AccountID string `db:"account_id"`
		Name      string `db:"name"`
	}
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying latest badges")
	}
	for _, r := range rows {
		names[r.AccountID] = r.Name
	}
	return names, nil
}
