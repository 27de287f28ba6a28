package session

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/studysphere/backend/core"
)

// Session is a scheduled study meeting hosted by an account, optionally tied
// to a group. Date and Time are opaque display strings chosen by the host.
type Session struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	CourseCode  string      `json:"course_code"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
	Time        string      `json:"time"`
	Location    string      `json:"location"`
	HostID      string      `json:"host"`
	GroupID     null.String `json:"group"`
	CreatedAt   time.Time   `json:"created_at"` // UTC
	UpdatedAt   time.Time   `json:"updated_at"` // UTC
}

// RSVP pairs an account with a session; a given pair is unique.
type RSVP struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account"`
	SessionID string    `json:"session"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// NewSession contains information needed to create a new Session.
// The host is never client-supplied.
type NewSession struct {
	Title       string      `json:"title" validate:"required"`
	CourseCode  string      `json:"course_code" validate:"required"`
	Description string      `json:"description" validate:"required"`
	Date        string      `json:"date" validate:"required"`
	Time        string      `json:"time" validate:"required"`
	Location    string      `json:"location" validate:"required"`
	GroupID     null.String `json:"group"`
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.Title = core.CleanString(ns.Title)
	ns.CourseCode = core.CleanString(ns.CourseCode)
	ns.Description = core.CleanString(ns.Description)
	ns.Date = core.CleanString(ns.Date)
	ns.Time = core.CleanString(ns.Time)
	ns.Location = core.CleanString(ns.Location)
	return validate.Struct(ns)
}

// UpdateSession defines what information may be provided to modify an existing Session.
type UpdateSession struct {
	Title       string      `json:"title"`
	CourseCode  string      `json:"course_code"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
	Time        string      `json:"time"`
	Location    string      `json:"location"`
	GroupID     null.String `json:"group"`
}

func (us *UpdateSession) Validate(origSess Session, validate *validator.Validate) error {
	if title := core.CleanString(us.Title); title != "" {
		us.Title = title
	} else {
		us.Title = origSess.Title
	}
	if code := core.CleanString(us.CourseCode); code != "" {
		us.CourseCode = code
	} else {
		us.CourseCode = origSess.CourseCode
	}
	if desc := core.CleanString(us.Description); desc != "" {
		us.Description = desc
	} else {
		us.Description = origSess.Description
	}
	if date := core.CleanString(us.Date); date != "" {
		us.Date = date
	} else {
		us.Date = origSess.Date
	}
	if tm := core.CleanString(us.Time); tm != "" {
		us.Time = tm
	} else {
		us.Time = origSess.Time
	}
	if loc := core.CleanString(us.Location); loc != "" {
		us.Location = loc
	} else {
		us.Location = origSess.Location
	}
	if !us.GroupID.Valid {
		us.GroupID = origSess.GroupID
	}
	return validate.Struct(us)
}

// QueryFilter restricts session listings.
type QueryFilter struct {
	GroupID    string
	HostID     string
	AttendeeID string
}

// Stats summarizes sessions for the admin overview.
type Stats struct {
	Total  int `json:"total_sessions"`
	Active int `json:"active_sessions"` // sessions with at least one RSVP
}
