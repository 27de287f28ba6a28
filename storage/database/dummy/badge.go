package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/studysphere/backend/core/badge"
)

type badgeRepository struct {
	db *DB
}

var _ badge.Repository = (*badgeRepository)(nil) // interface compliance check

func NewBadgeRepository(db *DB) badge.Repository {
	return &badgeRepository{db: db}
}

func (repo *badgeRepository) CreateBadge(ctx context.Context, b badge.Badge) (badge.Badge, error) {
	repo.db.badge.Lock()
	defer repo.db.badge.Unlock()

	b.ID = uuid.New().String()
	repo.db.badge.table[b.ID] = &b
	return b, nil
}

func (repo *badgeRepository) QueryBadgesByAccount(ctx context.Context, accountID string) ([]badge.Badge, error) {
	repo.db.badge.RLock()
	defer repo.db.badge.RUnlock()

	badges := make([]badge.Badge, 0)
	for _, b := range repo.db.badge.table {
		if b.AccountID == accountID {
			badges = append(badges, *b)
		}
	}
	sort.Slice(badges, func(i, j int) bool { return badges[i].EarnedAt.After(badges[j].EarnedAt) })
	return badges, nil
}

func (repo *badgeRepository) LatestBadgeNames(ctx context.Context, accountIDs ...string) (map[string]string, error) {
	repo.db.badge.RLock()
	defer repo.db.badge.RUnlock()

	wanted := make(map[string]bool, len(accountIDs))
	for _, id := range accountIDs {
		wanted[id] = true
	}

	latest := make(map[string]badge.Badge)
	for _, b := range repo.db.badge.table {
		if !wanted[b.AccountID] {
			continue
		}
		if cur, ok := latest[b.AccountID]; !ok || b.EarnedAt.After(cur.EarnedAt) {
			latest[b.AccountID] = *b
		}
	}

	names := make(map[string]string, len(latest))
	for id, b := range latest {
		names[id] = b.Name
	}
	return names, nil
}
