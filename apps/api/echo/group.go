package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/studysphere/backend/core/group"
	"github.com/studysphere/backend/core/policy"
	"github.com/studysphere/backend/core/session"
	"github.com/studysphere/backend/core/user"
)

// memberImagesLimit caps how many member avatars decorate a group listing.
const memberImagesLimit = 3

type groupApi struct {
	svc      group.Service
	sessSvc  session.Service
	acctSvc  user.Service
	validate *validator.Validate
}

func registerGroupAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := groupApi{
		svc:      deps.GroupSvc,
		sessSvc:  deps.SessionSvc,
		acctSvc:  deps.AccountSvc,
		validate: deps.Validate,
	}

	gg := g.Group("/groups")

	// open endpoints, caller identity picked up when supplied
	opt := optionalAuth()
	gg.GET("", api.query, opt)
	gg.GET("/:id", api.retrieve, opt)
	gg.GET("/:id/sessions", api.querySessions, opt)

	// authed endpoints; jwt is attached per route because a sub-group would
	// register hidden Any("") routes that clobber the open GET above
	gg.POST("", api.create, jwt)
	gg.PUT("/:id", api.update, jwt)
	gg.DELETE("/:id", api.destroy, jwt)
	gg.POST("/:id/join", api.join, jwt)
	gg.DELETE("/:id/leave", api.leave, jwt)
}

// Handlers

func (api *groupApi) create(ctx echo.Context) error {
	var data group.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor := getContextActor(ctx)
	grp, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating group")
	}
	return ctx.JSON(http.StatusCreated, api.serialize(ctx.Request().Context(), grp, actor))
}

func (api *groupApi) query(ctx echo.Context) error {
	actor := getContextActor(ctx)
	grps, err := api.svc.Query(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "querying groups")
	}
	return ctx.JSON(http.StatusOK, api.serializeAll(ctx.Request().Context(), grps, actor))
}

func (api *groupApi) retrieve(ctx echo.Context) error {
	actor := getContextActor(ctx)
	grp, err := api.svc.GetByID(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.serialize(ctx.Request().Context(), grp, actor))
}

func (api *groupApi) querySessions(ctx echo.Context) error {
	actor := getContextActor(ctx)
	// the group must be visible to the actor
	if _, err := api.svc.GetByID(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return err
	}

	sessions, err := api.sessSvc.ByGroup(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying group sessions")
	}
	sessApi := sessionApi{svc: api.sessSvc, grpSvc: api.svc, acctSvc: api.acctSvc}
	return ctx.JSON(http.StatusOK, sessApi.serializeAll(ctx.Request().Context(), sessions, actor))
}

func (api *groupApi) update(ctx echo.Context) error {
	actor := getContextActor(ctx)
	grp, err := api.svc.GetByID(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return err
	}

	var data group.UpdateGroup
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGroup")
	}
	if err = data.Validate(grp, api.validate); err != nil {
		return err
	}

	grp, err = api.svc.Update(ctx.Request().Context(), actor, grp.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating group")
	}
	return ctx.JSON(http.StatusOK, api.serialize(ctx.Request().Context(), grp, actor))
}

func (api *groupApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), getContextActor(ctx), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *groupApi) join(ctx echo.Context) error {
	m, err := api.svc.Join(ctx.Request().Context(), getContextActor(ctx), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, MembershipResponse{Membership: m, XPEarned: user.AwardJoinGroup})
}

func (api *groupApi) leave(ctx echo.Context) error {
	if err := api.svc.Leave(ctx.Request().Context(), getContextActor(ctx), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "You have left the group."})
}

// Serializers

type (
	MembershipResponse struct {
		group.Membership
		XPEarned int `json:"xp_earned"`
	}

	GroupResponse struct {
		group.Group
		CreatorName  string   `json:"creator_name"`
		MembersCount int      `json:"members_count"`
		MemberImages []string `json:"member_images"`
		IsMember     bool     `json:"is_member"`
	}
)

func (api *groupApi) serialize(ctx context.Context, grp group.Group, actor policy.Actor) GroupResponse {
	res := GroupResponse{Group: grp, MemberImages: []string{}}

	if creator, err := api.acctSvc.GetByID(ctx, grp.CreatorID); err == nil {
		res.CreatorName = creator.Name
	}
	if counts, err := api.svc.MembersCount(ctx, grp.ID); err == nil {
		res.MembersCount = counts[grp.ID]
	}
	if members, err := api.svc.MemberAccounts(ctx, grp.ID, memberImagesLimit); err == nil {
		for _, m := range members {
			res.MemberImages = append(res.MemberImages, m.AvatarURL())
		}
	}
	if actor.Authenticated {
		if ok, err := api.svc.IsMember(ctx, actor.ID, grp.ID); err == nil {
			res.IsMember = ok
		}
	}
	return res
}

func (api *groupApi) serializeAll(ctx context.Context, grps []group.Group, actor policy.Actor) []GroupResponse {
	res := make([]GroupResponse, 0, len(grps))
	for _, grp := range grps {
		res = append(res, api.serialize(ctx, grp, actor))
	}
	return res
}
