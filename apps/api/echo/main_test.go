package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	. "github.com/studysphere/backend/apps/api/echo"
	"github.com/studysphere/backend/core"
	"github.com/studysphere/backend/core/badge"
	"github.com/studysphere/backend/core/group"
	"github.com/studysphere/backend/core/session"
	"github.com/studysphere/backend/core/user"
	emailsvc "github.com/studysphere/backend/services/email"
	dummydb "github.com/studysphere/backend/storage/database/dummy"
	testutil "github.com/studysphere/backend/tests"
)

var (
	conf       *core.Config
	validate   *validator.Validate
	translator ut.Translator

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

func TestMain(m *testing.M) {
	conf = &core.Config{
		AppName:         "StudySphere",
		Env:             "TEST",
		TestMode:        true,
		Build:           "test",
		WorkDir:         core.Getwd(),
		SecretKey:       []byte("=5(honwa@pij+mb#ymu)6ii6&ei^b^3lx!%*s0t5e@+m&+8cdw"),
		FrontendBaseURL: "http://localhost:3000",

		DefaultFromEmail:          mail.Address{Address: "noreply@test.studysphere.cd"},
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,

		Server: core.ServerConfig{
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
	}

	logger := testutil.NewTestLogger()

	validate = validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)
	user.LoadCommonPasswords(conf, logger)

	os.Exit(m.Run())
}

// testEnv is a fresh app wired to an empty in-memory database.
type testEnv struct {
	app Server

	acctRepo  user.Repository
	grpRepo   group.Repository
	sessRepo  session.Repository
	badgeRepo badge.Repository

	acctSvc  user.Service
	grpSvc   group.Service
	sessSvc  session.Service
	badgeSvc badge.Service
}

func setup(t *testing.T) *testEnv {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	emailsvc.ClearSentMessages()

	env := &testEnv{
		acctRepo:  dummydb.NewAccountRepository(db),
		grpRepo:   dummydb.NewGroupRepository(db),
		sessRepo:  dummydb.NewSessionRepository(db),
		badgeRepo: dummydb.NewBadgeRepository(db),
	}

	logger := testutil.NewTestLogger()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	env.acctSvc = user.NewServiceMock(env.acctRepo, mailSvc, conf)
	env.grpSvc = group.NewService(env.grpRepo, env.acctSvc, mailSvc, conf, logger)
	env.sessSvc = session.NewService(env.sessRepo, env.grpSvc, env.acctSvc, logger)
	env.badgeSvc = badge.NewService(env.badgeRepo)

	env.app = NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		AccountSvc: env.acctSvc,
		GroupSvc:   env.grpSvc,
		SessionSvc: env.sessSvc,
		BadgeSvc:   env.badgeSvc,
		Validate:   validate,
		Translator: translator,
	})
	return env
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, acct user.Account) string {
	claims := GetAccountClaims(acct)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return false, nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
