// Package policy decides whether an actor may perform an operation on a
// target entity. Reads are open to everyone, writes are restricted to the
// owning account, and moderation requires the staff privilege. The rules are
// kept in one table so every endpoint shares the exact same decisions.
package policy

// Action is an operation an actor attempts on an entity.
type Action int

const (
	ActionRead Action = iota
	ActionCreate
	ActionUpdate
	ActionDelete
	ActionModerate
)

// Actor is the resolved identity of a caller. A zero Actor is anonymous.
type Actor struct {
	ID            string
	Authenticated bool
	Staff         bool
}

// Anonymous is the actor used for unauthenticated requests.
var Anonymous = Actor{}

// Can reports whether the actor may perform the action on an entity owned by
// ownerID. Staff privilege grants moderation only; it does not bypass
// ownership on updates or deletes.
func Can(actor Actor, action Action, ownerID string) bool {
	switch action {
	case ActionRead:
		return true
	case ActionCreate:
		return actor.Authenticated
	case ActionUpdate, ActionDelete:
		return actor.Authenticated && actor.ID == ownerID
	case ActionModerate:
		return actor.Authenticated && actor.Staff
	}
	return false
}
