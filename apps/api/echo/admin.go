package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/studysphere/backend/core/group"
	"github.com/studysphere/backend/core/session"
	"github.com/studysphere/backend/core/user"
)

type adminApi struct {
	grpSvc  group.Service
	sessSvc session.Service
	acctSvc user.Service
}

func registerAdminAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := adminApi{
		grpSvc:  deps.GroupSvc,
		sessSvc: deps.SessionSvc,
		acctSvc: deps.AccountSvc,
	}

	ag := g.Group("/admin", jwt, staffMiddleware())
	ag.GET("/groups", api.overview)
	ag.PATCH("/groups/:id/approve", api.approve)
	ag.PATCH("/groups/:id/reject", api.reject)
}

// Handlers

// overview buckets every group by moderation status and attaches site stats.
func (api *adminApi) overview(ctx echo.Context) error {
	actor := getContextActor(ctx)
	reqCtx := ctx.Request().Context()

	grps, err := api.grpSvc.Query(reqCtx, actor)
	if err != nil {
		return errors.Wrap(err, "querying groups")
	}

	buckets := AdminGroupBuckets{
		Pending:  []group.Group{},
		Approved: []group.Group{},
		Rejected: []group.Group{},
	}
	var approved, rejected int
	for _, grp := range grps {
		switch grp.Status {
		case group.StatusApproved:
			approved++
			buckets.Approved = append(buckets.Approved, grp)
		case group.StatusRejected:
			rejected++
			buckets.Rejected = append(buckets.Rejected, grp)
		default:
			buckets.Pending = append(buckets.Pending, grp)
		}
	}

	sessStats, err := api.sessSvc.Stats(reqCtx)
	if err != nil {
		return errors.Wrap(err, "querying session stats")
	}

	return ctx.JSON(http.StatusOK, AdminOverviewResponse{
		Groups: buckets,
		Stats: AdminStats{
			TotalGroups:    len(grps),
			ApprovedGroups: approved,
			RejectedGroups: rejected,
			TotalSessions:  sessStats.Total,
			ActiveSessions: sessStats.Active,
		},
	})
}

func (api *adminApi) approve(ctx echo.Context) error {
	grp, err := api.grpSvc.Approve(ctx.Request().Context(), getContextActor(ctx), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *adminApi) reject(ctx echo.Context) error {
	grp, err := api.grpSvc.Reject(ctx.Request().Context(), getContextActor(ctx), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, grp)
}

// Serializers

type (
	AdminGroupBuckets struct {
		Pending  []group.Group `json:"pending"`
		Approved []group.Group `json:"approved"`
		Rejected []group.Group `json:"rejected"`
	}

	AdminStats struct {
		TotalGroups    int `json:"total_groups"`
		ApprovedGroups int `json:"approved_groups"`
		RejectedGroups int `json:"rejected_groups"`
		TotalSessions  int `json:"total_sessions"`
		ActiveSessions int `json:"active_sessions"`
	}

	AdminOverviewResponse struct {
		Groups AdminGroupBuckets `json:"groups"`
		Stats  AdminStats        `json:"stats"`
	}
)
