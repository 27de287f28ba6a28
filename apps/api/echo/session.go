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

type sessionApi struct {
	svc      session.Service
	grpSvc   group.Service
	acctSvc  user.Service
	validate *validator.Validate
}

func registerSessionAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := sessionApi{
		svc:      deps.SessionSvc,
		grpSvc:   deps.GroupSvc,
		acctSvc:  deps.AccountSvc,
		validate: deps.Validate,
	}

	sg := g.Group("/sessions")

	// open endpoints, caller identity picked up when supplied
	opt := optionalAuth()
	sg.GET("", api.query, opt)
	sg.GET("/:id", api.retrieve, opt)

	// authed endpoints; jwt is attached per route because a sub-group would
	// register hidden Any("") routes that clobber the open GET above
	sg.POST("", api.create, jwt)
	sg.PUT("/:id", api.update, jwt)
	sg.DELETE("/:id", api.destroy, jwt)
	sg.POST("/:id/rsvp", api.rsvp, jwt)
	sg.DELETE("/:id/rsvp", api.cancelRSVP, jwt)
}

// Handlers

func (api *sessionApi) create(ctx echo.Context) error {
	var data session.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor := getContextActor(ctx)
	sess, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating session")
	}
	return ctx.JSON(http.StatusCreated, api.serialize(ctx.Request().Context(), sess, actor))
}

func (api *sessionApi) query(ctx echo.Context) error {
	sessions, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	return ctx.JSON(http.StatusOK, api.serializeAll(ctx.Request().Context(), sessions, getContextActor(ctx)))
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	sess, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, api.serialize(ctx.Request().Context(), sess, getContextActor(ctx)))
}

func (api *sessionApi) update(ctx echo.Context) error {
	sess, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}

	var data session.UpdateSession
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSession")
	}
	if err = data.Validate(sess, api.validate); err != nil {
		return err
	}

	actor := getContextActor(ctx)
	sess, err = api.svc.Update(ctx.Request().Context(), actor, sess.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating session")
	}
	return ctx.JSON(http.StatusOK, api.serialize(ctx.Request().Context(), sess, actor))
}

func (api *sessionApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), getContextActor(ctx), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *sessionApi) rsvp(ctx echo.Context) error {
	r, err := api.svc.RSVP(ctx.Request().Context(), getContextActor(ctx), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, RSVPResponse{RSVP: r, XPEarned: user.AwardRSVPSession})
}

func (api *sessionApi) cancelRSVP(ctx echo.Context) error {
	if err := api.svc.CancelRSVP(ctx.Request().Context(), getContextActor(ctx), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "RSVP cancelled."})
}

// Serializers

type (
	RSVPResponse struct {
		session.RSVP
		XPEarned int `json:"xp_earned"`
	}

	AttendeeResponse struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Image string `json:"image"`
	}

	SessionResponse struct {
		session.Session
		HostName      string             `json:"host_name"`
		HostImage     string             `json:"host_image"`
		GroupName     string             `json:"group_name,omitempty"`
		Attendees     int                `json:"attendees_count"`
		AttendeesList []AttendeeResponse `json:"attendees_list"`
		IsAttending   bool               `json:"is_attending"`
	}
)

func (api *sessionApi) serialize(ctx context.Context, sess session.Session, actor policy.Actor) SessionResponse {
	res := SessionResponse{Session: sess, AttendeesList: []AttendeeResponse{}}

	if host, err := api.acctSvc.GetByID(ctx, sess.HostID); err == nil {
		res.HostName = host.Name
		res.HostImage = host.AvatarURL()
	}
	if sess.GroupID.Valid {
		// serialized group name ignores moderation visibility
		if grp, err := api.grpSvc.GetByID(ctx, policy.Actor{Staff: true}, sess.GroupID.String); err == nil {
			res.GroupName = grp.Name
		}
	}
	if attendees, err := api.svc.AttendeeAccounts(ctx, sess.ID); err == nil {
		res.Attendees = len(attendees)
		for _, a := range attendees {
			res.AttendeesList = append(res.AttendeesList, AttendeeResponse{ID: a.ID, Name: a.Name, Image: a.AvatarURL()})
			if a.ID == actor.ID {
				res.IsAttending = true
			}
		}
	}
	return res
}

func (api *sessionApi) serializeAll(ctx context.Context, sessions []session.Session, actor policy.Actor) []SessionResponse {
	res := make([]SessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		res = append(res, api.serialize(ctx, sess, actor))
	}
	return res
}
