package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/studysphere/backend/core/group"
	"github.com/studysphere/backend/core/session"
	"github.com/studysphere/backend/core/user"
)

// upcomingSessionsLimit caps how many RSVP'd sessions show on the dashboard.
const upcomingSessionsLimit = 3

type dashboardApi struct {
	acctSvc user.Service
	grpSvc  group.Service
	sessSvc session.Service
}

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := dashboardApi{
		acctSvc: deps.AccountSvc,
		grpSvc:  deps.GroupSvc,
		sessSvc: deps.SessionSvc,
	}
	g.GET("/dashboard", api.retrieve, jwt)
}

// Handlers

func (api *dashboardApi) retrieve(ctx echo.Context) error {
	acct, err := getContextAccount(ctx, api.acctSvc)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}
	reqCtx := ctx.Request().Context()

	attended, err := api.sessSvc.CountAttendedBy(reqCtx, acct.ID)
	if err != nil {
		return errors.Wrap(err, "counting attended sessions")
	}
	joined, err := api.grpSvc.CountJoinedBy(reqCtx, acct.ID)
	if err != nil {
		return errors.Wrap(err, "counting joined groups")
	}
	hosted, err := api.sessSvc.CountHostedBy(reqCtx, acct.ID)
	if err != nil {
		return errors.Wrap(err, "counting hosted sessions")
	}
	upcoming, err := api.sessSvc.AttendedBy(reqCtx, acct.ID, upcomingSessionsLimit)
	if err != nil {
		return errors.Wrap(err, "querying upcoming sessions")
	}
	if upcoming == nil {
		upcoming = []session.Session{}
	}

	return ctx.JSON(http.StatusOK, DashboardResponse{
		SessionsAttended: attended,
		GroupsJoined:     joined,
		SessionsHosted:   hosted,
		XP:               acct.XP,
		Level:            acct.Level,
		UpcomingSessions: upcoming,
	})
}

// Serializers

type DashboardResponse struct {
	SessionsAttended int               `json:"sessions_attended"`
	GroupsJoined     int               `json:"groups_joined"`
	SessionsHosted   int               `json:"sessions_hosted"`
	XP               int               `json:"xp"`
	Level            int               `json:"level"`
	UpcomingSessions []session.Session `json:"upcoming_sessions"`
}
