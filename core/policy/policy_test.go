package policy

import "testing"

func TestCan(t *testing.T) {
	const ownerID = "b3c4e7d0-0000-0000-0000-000000000001"

	anonymous := Anonymous
	owner := Actor{ID: ownerID, Authenticated: true}
	other := Actor{ID: "b3c4e7d0-0000-0000-0000-000000000002", Authenticated: true}
	staff := Actor{ID: "b3c4e7d0-0000-0000-0000-000000000003", Authenticated: true, Staff: true}
	staffOwner := Actor{ID: ownerID, Authenticated: true, Staff: true}

	tests := []struct {
		name   string
		actor  Actor
		action Action
		want   bool
	}{
		{"anonymous read", anonymous, ActionRead, true},
		{"owner read", owner, ActionRead, true},
		{"other read", other, ActionRead, true},
		{"staff read", staff, ActionRead, true},

		{"anonymous create", anonymous, ActionCreate, false},
		{"owner create", owner, ActionCreate, true},
		{"other create", other, ActionCreate, true},
		{"staff create", staff, ActionCreate, true},

		{"anonymous update", anonymous, ActionUpdate, false},
		{"owner update", owner, ActionUpdate, true},
		{"other update", other, ActionUpdate, false},
		{"staff update", staff, ActionUpdate, false},
		{"staff owner update", staffOwner, ActionUpdate, true},

		{"anonymous delete", anonymous, ActionDelete, false},
		{"owner delete", owner, ActionDelete, true},
		{"other delete", other, ActionDelete, false},
		{"staff delete", staff, ActionDelete, false},
		{"staff owner delete", staffOwner, ActionDelete, true},

		{"anonymous moderate", anonymous, ActionModerate, false},
		{"owner moderate", owner, ActionModerate, false},
		{"other moderate", other, ActionModerate, false},
		{"staff moderate", staff, ActionModerate, true},
		{"staff owner moderate", staffOwner, ActionModerate, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Can(tt.actor, tt.action, ownerID); got != tt.want {
				t.Errorf("Can() = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestCanUnknownAction(t *testing.T) {
	staff := Actor{ID: "x", Authenticated: true, Staff: true}
	if Can(staff, Action(99), "x") {
		t.Error("unknown action must be denied")
	}
}
