package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/studysphere/backend/core/badge"
	"github.com/studysphere/backend/core/user"
)

type leaderboardApi struct {
	acctSvc  user.Service
	badgeSvc badge.Service
}

func registerLeaderboardAPI(g *echo.Group, deps ServerDeps) {
	api := leaderboardApi{
		acctSvc:  deps.AccountSvc,
		badgeSvc: deps.BadgeSvc,
	}
	g.GET("/leaderboard", api.query)
}

// Handlers

// query returns the top accounts by all-time XP. A weekly-activity window is
// not tracked; period=week is an alias for the all-time ranking.
func (api *leaderboardApi) query(ctx echo.Context) error {
	period := ctx.QueryParam("period")
	if period == "" {
		period = "all"
	}

	accts, err := api.acctSvc.Top(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying leaderboard")
	}

	ids := make([]string, 0, len(accts))
	for _, a := range accts {
		ids = append(ids, a.ID)
	}
	badgeNames, err := api.badgeSvc.LatestNames(ctx.Request().Context(), ids...)
	if err != nil {
		return errors.Wrap(err, "querying latest badges")
	}

	entries := make([]LeaderboardEntry, 0, len(accts))
	for i, a := range accts {
		entries = append(entries, LeaderboardEntry{
			Rank:     i + 1,
			ID:       a.ID,
			Name:     a.Name,
			Username: a.Username,
			Image:    a.AvatarURL(),
			XP:       a.XP,
			Level:    a.Level,
			Badge:    badgeNames[a.ID],
		})
	}
	return ctx.JSON(http.StatusOK, LeaderboardResponse{Period: period, Entries: entries})
}

// Serializers

type (
	LeaderboardEntry struct {
		Rank     int    `json:"rank"`
		ID       string `json:"id"`
		Name     string `json:"name"`
		Username string `json:"username"`
		Image    string `json:"image"`
		XP       int    `json:"xp"`
		Level    int    `json:"level"`
		Badge    string `json:"badge"`
	}

	LeaderboardResponse struct {
		Period  string             `json:"period"`
		Entries []LeaderboardEntry `json:"leaderboard"`
	}
)
