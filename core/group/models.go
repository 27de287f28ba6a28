package group

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/studysphere/backend/core"
)

// Status is the moderation state of a Group.
// Groups start pending; staff approve or reject them. Both outcomes are
// terminal: no transition between approved and rejected is exposed.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Group is a collaborative study group. CreatorID holds exclusive write
// authority; membership is tracked in Membership rows.
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	CreatorID   string    `json:"creator"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// Membership pairs an account with a group; a given pair is unique.
type Membership struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account"`
	GroupID   string    `json:"group"`
	JoinedAt  time.Time `json:"joined_at"` // UTC
}

// NewGroup contains information needed to create a new Group.
// Creator and status are never client-supplied.
type NewGroup struct {
	Name        string `json:"name" validate:"required"`
	Subject     string `json:"subject" validate:"required"`
	Description string `json:"description" validate:"required"`
}

func (ng *NewGroup) Validate(validate *validator.Validate) error {
	ng.Name = core.CleanString(ng.Name)
	ng.Subject = core.CleanString(ng.Subject)
	ng.Description = core.CleanString(ng.Description)
	return validate.Struct(ng)
}

// UpdateGroup defines what information may be provided to modify an existing Group.
type UpdateGroup struct {
	Name        string `json:"name"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

func (ug *UpdateGroup) Validate(origGrp Group, validate *validator.Validate) error {
	name := core.CleanString(ug.Name)
	if name != "" {
		ug.Name = name
	} else {
		ug.Name = origGrp.Name
	}

	subject := core.CleanString(ug.Subject)
	if subject != "" {
		ug.Subject = subject
	} else {
		ug.Subject = origGrp.Subject
	}

	description := core.CleanString(ug.Description)
	if description != "" {
		ug.Description = description
	} else {
		ug.Description = origGrp.Description
	}

	return validate.Struct(ug)
}

// QueryFilter restricts group listings.
type QueryFilter struct {
	Status    Status
	CreatorID string
}
