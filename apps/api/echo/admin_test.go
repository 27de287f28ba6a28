package echoapi_test

import (
	"net/http"
	"testing"

	echoapi "github.com/studysphere/backend/apps/api/echo"
	"github.com/studysphere/backend/core/group"
	emailsvc "github.com/studysphere/backend/services/email"
	testutil "github.com/studysphere/backend/tests"

	"github.com/volatiletech/null/v8"
)

func Test_adminApi_overview(t *testing.T) {
	env := setup(t)

	staff := testutil.CreateAccount(t, env.acctRepo, "Boss", "boss", "boss@test.cd", "", 0, true, true)
	hero := testutil.CreateAccount(t, env.acctRepo, "Hero", "hero", "hero@test.cd", "", 0, false, true)

	approved := testutil.CreateGroup(t, env.grpRepo, "Algo Club", "CS", hero.ID, group.StatusApproved)
	pending := testutil.CreateGroup(t, env.grpRepo, "Calculus Crew", "Math", hero.ID, group.StatusPending)
	rejected := testutil.CreateGroup(t, env.grpRepo, "Meme Society", "Memes", hero.ID, group.StatusRejected)

	sess := testutil.CreateSession(t, env.sessRepo, "Graph Dive", hero.ID, null.StringFrom(approved.ID))
	testutil.CreateSession(t, env.sessRepo, "Limits Review", hero.ID, null.String{})
	testutil.RSVPSession(t, env.sessRepo, hero.ID, sess.ID)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "staff only", token: getToken(t, hero), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "overview", token: getToken(t, staff), wantCode: http.StatusOK,
			wantData: marchallObj(t, echoapi.AdminOverviewResponse{
				Groups: echoapi.AdminGroupBuckets{
					Pending:  []group.Group{pending},
					Approved: []group.Group{approved},
					Rejected: []group.Group{rejected},
				},
				Stats: echoapi.AdminStats{
					TotalGroups:    3,
					ApprovedGroups: 1,
					RejectedGroups: 1,
					TotalSessions:  2,
					ActiveSessions: 1,
				},
			}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.path = "/v1/admin/groups"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_adminApi_moderate(t *testing.T) {
	env := setup(t)

	staff := testutil.CreateAccount(t, env.acctRepo, "Boss", "boss", "boss@test.cd", "", 0, true, true)
	hero := testutil.CreateAccount(t, env.acctRepo, "Hero", "hero", "hero@test.cd", "", 0, false, true)

	toApprove := testutil.CreateGroup(t, env.grpRepo, "Algo Club", "CS", hero.ID, group.StatusPending)
	toReject := testutil.CreateGroup(t, env.grpRepo, "Meme Society", "Memes", hero.ID, group.StatusPending)

	approvedGrp := toApprove
	approvedGrp.Status = group.StatusApproved
	rejectedGrp := toReject
	rejectedGrp.Status = group.StatusRejected

	staffToken := getToken(t, staff)
	tests := []httpTest{
		{
			name: "Auth required", path: "/v1/admin/groups/" + toApprove.ID + "/approve",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "staff only", path: "/v1/admin/groups/" + toApprove.ID + "/approve", token: getToken(t, hero),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "unknown group", path: "/v1/admin/groups/lol/approve", token: staffToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "group not found"}),
		},
		{
			name: "approved", path: "/v1/admin/groups/" + toApprove.ID + "/approve", token: staffToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, approvedGrp), extra: "group_approved",
		},
		{
			name: "re-approving is a no-op", path: "/v1/admin/groups/" + toApprove.ID + "/approve", token: staffToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, approvedGrp),
		},
		{
			name: "rejecting an approved group conflicts", path: "/v1/admin/groups/" + toApprove.ID + "/reject", token: staffToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "this group has already been moderated"}),
		},
		{
			name: "rejected", path: "/v1/admin/groups/" + toReject.ID + "/reject", token: staffToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, rejectedGrp), extra: "group_rejected",
		},
	}

	var sent int
	for _, tt := range tests {
		tt.method = http.MethodPatch

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tmpl, ok := tt.extra.(string); ok {
				sent++
				if len(emailsvc.SentMessages) != sent {
					t.Fatalf("failed! sent emails = %d; want %d", len(emailsvc.SentMessages), sent)
				}
				msg := emailsvc.SentMessages[sent-1]
				if msg.TemplateName != tmpl {
					t.Errorf("failed! template = %s; want %s", msg.TemplateName, tmpl)
				}
				if len(msg.To) != 1 || msg.To[0].Address != hero.Email {
					t.Errorf("failed! to = %v; want %s", msg.To, hero.Email)
				}
			} else if len(emailsvc.SentMessages) != sent {
				t.Errorf("failed! sent emails = %d; want %d", len(emailsvc.SentMessages), sent)
			}
		})
	}
}
