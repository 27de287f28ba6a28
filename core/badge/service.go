package badge

import (
	"context"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("badge not found")

type (
	Repository interface {
		CreateBadge(ctx context.Context, b Badge) (Badge, error)
		// QueryBadgesByAccount returns the account's badges, most recent first.
		QueryBadgesByAccount(ctx context.Context, accountID string) ([]Badge, error)
		// LatestBadgeNames maps each account ID to the name of its most recently
		// earned badge; accounts without badges are absent from the map.
		LatestBadgeNames(ctx context.Context, accountIDs ...string) (map[string]string, error)
	}

	Service interface {
		Award(ctx context.Context, b Badge) (Badge, error)
		ByAccount(ctx context.Context, accountID string) ([]Badge, error)
		// LatestNameFor resolves the leaderboard decoration for an account,
		// falling back to DefaultName.
		LatestNames(ctx context.Context, accountIDs ...string) (map[string]string, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Award(ctx context.Context, b Badge) (Badge, error) {
	return svc.repo.CreateBadge(ctx, b)
}

func (svc *service) ByAccount(ctx context.Context, accountID string) ([]Badge, error) {
	return svc.repo.QueryBadgesByAccount(ctx, accountID)
}

func (svc *service) LatestNames(ctx context.Context, accountIDs ...string) (map[string]string, error) {
	names, err := svc.repo.LatestBadgeNames(ctx, accountIDs...)
	if err != nil {
		return nil, errors.Wrap(err, "querying latest badges")
	}
	for _, id := range accountIDs {
		if _, ok := names[id]; !ok {
			names[id] = DefaultName
		}
	}
	return names, nil
}
