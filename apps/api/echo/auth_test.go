package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/mail"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"

	echoapi "github.com/studysphere/backend/apps/api/echo"
	"github.com/studysphere/backend/core/badge"
	"github.com/studysphere/backend/core/user"
	emailsvc "github.com/studysphere/backend/services/email"
	testutil "github.com/studysphere/backend/tests"
)

func Test_authApi_register(t *testing.T) {
	env := setup(t)

	testutil.CreateAccount(t, env.acctRepo, "Taken", "taken", "taken@test.cd", "", 0, false, true)

	reqMsg := "this field is required"
	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"name": reqMsg, "username": reqMsg, "email": reqMsg,
				"password": "password must contain at least 8 characters", "password_confirm": reqMsg,
			}),
		},
		{
			name: "invalid username", wantCode: http.StatusBadRequest,
			body: marchallObj(t, user.NewAccount{
				Name: "Lol", Username: "lo!l", Email: "lol@test.cd", Password: "LolC@t123", PasswordConfirm: "LolC@t123",
			}),
			wantData: marchallObj(t, map[string]string{"username": "only alphanumeric characters and underscores are allowed"}),
		},
		{
			name: "username taken", wantCode: http.StatusBadRequest,
			body: marchallObj(t, user.NewAccount{
				Name: "Lol", Username: "taken", Email: "lol@test.cd", Password: "LolC@t123", PasswordConfirm: "LolC@t123",
			}),
			wantData: marchallObj(t, map[string]string{"username": "an account with this username already exists"}),
		},
		{
			name: "email taken", wantCode: http.StatusBadRequest,
			body: marchallObj(t, user.NewAccount{
				Name: "Lol", Username: "lol", Email: "taken@test.cd", Password: "LolC@t123", PasswordConfirm: "LolC@t123",
			}),
			wantData: marchallObj(t, map[string]string{"email": "an account with this email already exists"}),
		},
		{
			name: "password too common", wantCode: http.StatusBadRequest,
			body: marchallObj(t, user.NewAccount{
				Name: "Lol", Username: "lol", Email: "lol@test.cd", Password: "P@$$w0rd", PasswordConfirm: "P@$$w0rd",
			}),
			wantData: marchallObj(t, map[string]string{"password": "password is too common"}),
		},
		{
			name: "registered", wantCode: http.StatusCreated,
			body: marchallObj(t, user.NewAccount{
				Name: "Lol", Username: "lol", Email: "lol@test.cd", Password: "LolC@t123", PasswordConfirm: "LolC@t123",
			}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/auth/register"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			env.app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData echoapi.AuthResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if respData.Token == "" {
					t.Error("failed! empty token")
				}
				if respData.Account.Username != "lol" {
					t.Errorf("failed! username = %s; want lol", respData.Account.Username)
				}
				if respData.Account.XP != 0 || respData.Account.Level != 1 {
					t.Errorf("failed! xp = %d, level = %d; want 0, 1", respData.Account.XP, respData.Account.Level)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_authApi_login(t *testing.T) {
	env := setup(t)

	acct := testutil.CreateAccount(t, env.acctRepo, "Hero", "hero", "hero@test.cd", "LolC@t123", 75, false, true)
	testutil.CreateAccount(t, env.acctRepo, "N Dog", "ndog", "ndog@test.cd", "LolC@t123", 0, false, false)

	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown account", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.LoginRequest{Username: "lol", Password: "lol"}),
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.LoginRequest{Username: acct.Username, Password: "lol"}),
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated account", wantCode: http.StatusForbidden,
			body:     marchallObj(t, echoapi.LoginRequest{Username: "ndog", Password: "LolC@t123"}),
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "login with username", wantCode: http.StatusOK, body: marchallObj(t, echoapi.LoginRequest{Username: acct.Username, Password: "LolC@t123"})},
		{name: "login with email", wantCode: http.StatusOK, body: marchallObj(t, echoapi.LoginRequest{Username: acct.Email, Password: "LolC@t123"})},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/auth/login"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			env.app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData echoapi.AuthResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if respData.Token == "" {
					t.Error("failed! empty token")
				}
				if respData.Account.ID != acct.ID {
					t.Errorf("failed! id = %s; want %s", respData.Account.ID, acct.ID)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_authApi_me(t *testing.T) {
	env := setup(t)

	acct := testutil.CreateAccount(t, env.acctRepo, "Hero", "hero", "hero@test.cd", "", 520, false, true)
	bare := testutil.CreateAccount(t, env.acctRepo, "Bare", "bare", "bare@test.cd", "", 0, false, true)
	b1 := testutil.AwardBadge(t, env.badgeRepo, acct.ID, "Quiz Master", time.Now().UTC().Add(-time.Hour))
	b2 := testutil.AwardBadge(t, env.badgeRepo, acct.ID, "Streak Keeper")

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "profile with badges", token: getToken(t, acct), wantCode: http.StatusOK,
			wantData: marchallObj(t, echoapi.ProfileResponse{
				AccountResponse: accountResponse(acct),
				Badges:          []badge.Badge{b2, b1}, // most recent first
			}),
		},
		{
			name: "profile without badges", token: getToken(t, bare), wantCode: http.StatusOK,
			wantData: marchallObj(t, echoapi.ProfileResponse{
				AccountResponse: accountResponse(bare),
				Badges:          []badge.Badge{},
			}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.path = "/v1/auth/me"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_authApi_updateMe(t *testing.T) {
	env := setup(t)

	acct := testutil.CreateAccount(t, env.acctRepo, "Hero", "hero", "hero@test.cd", "", 0, false, true)
	staff := testutil.CreateAccount(t, env.acctRepo, "Boss", "boss", "boss@test.cd", "", 0, true, true)
	bPtr := func(b bool) *bool { return &b }

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "is_staff is staff-only", token: getToken(t, acct), wantCode: http.StatusForbidden,
			body:     marchallObj(t, user.UpdateAccount{IsStaff: bPtr(true)}),
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "is_active is staff-only", token: getToken(t, acct), wantCode: http.StatusForbidden,
			body:     marchallObj(t, user.UpdateAccount{IsActive: bPtr(false)}),
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "name updated", token: getToken(t, acct), wantCode: http.StatusOK,
			body:  marchallObj(t, user.UpdateAccount{Name: "Big Hero"}),
			extra: "Big Hero",
		},
		{
			name: "staff may deactivate themselves", token: getToken(t, staff), wantCode: http.StatusOK,
			body: marchallObj(t, user.UpdateAccount{IsActive: bPtr(false)}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPut
		tt.path = "/v1/auth/me"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				if wantName, ok := tt.extra.(string); ok {
					var respData echoapi.AccountResponse
					if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
						t.Fatalf("json.Unmarshal() failed! err %v", err)
					}
					if respData.Name != wantName {
						t.Errorf("failed! name = %s; want %s", respData.Name, wantName)
					}
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_authApi_refreshToken(t *testing.T) {
	env := setup(t)

	naughty := testutil.CreateAccount(t, env.acctRepo, "N Dog", "ndog", "ndog@test.cd", "", 0, false, false)
	hero := testutil.CreateAccount(t, env.acctRepo, "Hero", "hero", "hero@test.cd", "", 0, false, true)

	now := time.Now()
	unrefreshableClaims := &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   hero.ID,
			Audience:  "StudySphere",
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: now.Add(-2 * conf.Server.JWTRefreshExpirationDelta).Unix(), // older than threshold
		Username:     hero.Username,
		Email:        hero.Email,
	}
	unrefreshableToken, err := echoapi.GenerateToken(unrefreshableClaims)
	if err != nil {
		t.Fatalf("GenerateToken(): %v", err)
	}

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Inactive account not allowed", token: getToken(t, naughty), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})},
		{name: "Token refreshed", token: getToken(t, hero), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/auth/refresh"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)

			// cannot guess new token.. just check that it's not empty
			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData echoapi.TokenResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Errorf("json.Unmarshal() failed! err %v", err)
				}
				if respData.Token == "" {
					t.Error("failed! empty token")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_authApi_resetPassword(t *testing.T) {
	env := setup(t)

	hero := testutil.CreateAccount(t, env.acctRepo, "Hero", "hero", "hero@test.cd", "", 0, false, true)
	successData := marchallObj(t, echoapi.SuccessResponse{Success: "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."})

	pathRegex, err := regexp.Compile("/password-reset/.+/.+")
	if err != nil {
		t.Fatalf("regexp.Compile(): %v", err)
	}

	type extraTest struct {
		emailSent bool
		to        mail.Address
	}
	tests := []httpTest{
		{name: "required fields", wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"email": "this field is required"})},
		{
			name: "invalid email", wantCode: http.StatusBadRequest, body: marchallObj(t, echoapi.PasswordResetRequest{Email: "lol"}),
			wantData: marchallObj(t, map[string]string{"email": "email must be a valid email address"}),
		},
		{
			name: "unknown email", wantCode: http.StatusOK, body: marchallObj(t, echoapi.PasswordResetRequest{Email: "lol@test.com"}),
			wantData: successData, extra: extraTest{emailSent: false},
		},
		{
			name: "known email", wantCode: http.StatusOK, body: marchallObj(t, echoapi.PasswordResetRequest{Email: hero.Email}),
			wantData: successData, extra: extraTest{emailSent: true, to: mail.Address{Name: hero.Name, Address: hero.Email}},
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/auth/password-reset"

		t.Run(tt.name, func(t *testing.T) {
			emailsvc.ClearSentMessages()

			req, rec := newRequest(tt.method, tt.path, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if extra, ok := tt.extra.(extraTest); ok {
				if extra.emailSent {
					if len(emailsvc.SentMessages) != 1 {
						t.Fatalf("failed! len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
					}
					msg := emailsvc.SentMessages[0]
					if msg.To[0] != extra.to {
						t.Errorf("failed! To = %v; want %v", msg.To[0], extra.to)
					}
					if !strings.Contains(msg.TextContent, extra.to.Name) {
						t.Errorf("failed! text content does not contain recipient's name \"%s\"", extra.to.Name)
					}
					if !pathRegex.MatchString(msg.TextContent) {
						t.Errorf("failed! text content does not match pathRegex %v", pathRegex)
					}
				} else {
					if len(emailsvc.SentMessages) > 0 {
						t.Errorf("failed! len(SentMessages) = %d; want 0", len(emailsvc.SentMessages))
					}
				}
			}
		})
	}
}

func Test_authApi_confirmPasswordReset(t *testing.T) {
	env := setup(t)

	hero := testutil.CreateAccount(t, env.acctRepo, "Hero", "hero", "hero@test.cd", "lol", 0, false, true)
	validUID := user.EncodeUID(hero)
	validToken, err := user.MakeToken(conf, hero)
	if err != nil {
		t.Fatalf("MakeToken(): %v", err)
	}

	// generate an expired token
	dayLate := conf.PasswordResetTimeoutDelta + (24 * time.Hour)
	user.NowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, err := user.MakeToken(conf, hero)
	if err != nil {
		t.Fatalf("MakeToken(): %v", err)
	}
	user.NowFunc = time.Now // reset

	reqMsg := "this field is required"
	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"token": reqMsg, "uid": reqMsg, "password": "password must contain at least 8 characters", "password_confirm": reqMsg}),
		},
		{
			name: "invalid pwd: complexity", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetAccountPassword{Token: "lol", UID: "lol", Password: "lol12345", PasswordConfirm: "lol12345"}),
			wantData: marchallObj(t, map[string]string{"password": "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"}),
		},
		{
			name: "PasswordConfirm must = Password", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetAccountPassword{Token: "lol", UID: "lol", Password: "LolC@t123", PasswordConfirm: "lol"}),
			wantData: marchallObj(t, map[string]string{"password_confirm": "password_confirm must be equal to Password"}),
		},
		{
			name: "invalid uid", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetAccountPassword{Token: "lol", UID: "bG9s!", Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marchallObj(t, httpErr{Error: "invalid token"}),
		},
		{
			name: "invalid token", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetAccountPassword{Token: "HE4TS-sigsig-sig", UID: validUID, Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marchallObj(t, httpErr{Error: "invalid token"}),
		},
		{
			name: "expired token", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetAccountPassword{Token: expiredToken, UID: validUID, Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marchallObj(t, httpErr{Error: "token expired"}),
		},
		{
			name: "valid token", wantCode: http.StatusOK,
			body:     marchallObj(t, user.ResetAccountPassword{Token: validToken, UID: validUID, Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Password has been reset with the new password."}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/auth/password-reset-confirm"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				refreshed, err := env.acctRepo.GetAccount(context.Background(), user.GetFilter{ID: hero.ID})
				if err != nil {
					t.Fatalf("GetAccount() failed, %v", err)
				}
				if bytes.Equal(refreshed.PasswordHash, hero.PasswordHash) {
					t.Fatalf("failed to update new password")
				}
			}
		})
	}
}

func accountResponse(acct user.Account) echoapi.AccountResponse {
	return echoapi.AccountResponse{
		ID:        acct.ID,
		Name:      acct.Name,
		Username:  acct.Username,
		Email:     acct.Email,
		Image:     acct.AvatarURL(),
		XP:        acct.XP,
		Level:     acct.Level,
		IsStaff:   acct.IsStaff,
		CreatedAt: acct.CreatedAt,
	}
}
