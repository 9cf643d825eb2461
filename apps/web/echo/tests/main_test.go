package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/humanistchoir/members/apps/web/echo"
	"github.com/humanistchoir/members/core"
	"github.com/humanistchoir/members/core/event"
	"github.com/humanistchoir/members/core/invitation"
	"github.com/humanistchoir/members/core/music"
	"github.com/humanistchoir/members/core/page"
	"github.com/humanistchoir/members/core/user"
	"github.com/humanistchoir/members/services/email"
	"github.com/humanistchoir/members/services/filestore"
	"github.com/humanistchoir/members/services/logger"
	"github.com/humanistchoir/members/services/mailinglist"
	"github.com/humanistchoir/members/services/sheets"
	"github.com/humanistchoir/members/storage/database/sqlxrepos"
	"github.com/humanistchoir/members/tests"
)

type app struct {
	*Server
	conf     *core.Config
	usrRepo  user.Repository
	evtRepo  event.Repository
	usrSvc   *user.Service
	invSvc   *invitation.Service
	musicSvc *music.Service
	evtSvc   *event.Service
	pageSvc  *page.Service
	sheets   *bytes.Buffer

	member user.User
	admin  user.User
}

func setup(t *testing.T) *app {
	t.Helper()
	conf := core.NewTestConfig()
	db := testutil.PrepareDB(t)
	std := log.New(io.Discard, "", 0)

	usrRepo := sqlxrepos.NewUserRepository(db)
	evtRepo := sqlxrepos.NewEventRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	appLogger := logsvc.NewRollbarLogger(std, conf)
	var buf bytes.Buffer

	a := &app{
		conf:    conf,
		usrRepo: usrRepo,
		evtRepo: evtRepo,
		sheets:  &buf,
	}
	a.usrSvc = user.NewService(usrRepo, mailSvc, conf)
	a.invSvc = invitation.NewService(
		sqlxrepos.NewInvitationRepository(db), a.usrSvc, mailSvc, mailinglist.NewConsole(std), appLogger, conf,
	)
	a.musicSvc = music.NewService(sqlxrepos.NewSongRepository(db), filestore.NewConsoleStore("https://files.test", std), conf)
	a.evtSvc = event.NewService(evtRepo, a.usrSvc, sheets.NewConsole(&buf), conf)
	a.pageSvc = page.NewService(sqlxrepos.NewPageRepository(db))

	srv, err := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         appLogger,
		UserSvc:        a.usrSvc,
		InvitationSvc:  a.invSvc,
		MusicSvc:       a.musicSvc,
		EventSvc:       a.evtSvc,
		PageSvc:        a.pageSvc,
		DisableReqLogs: true,
	})
	require.NoError(t, err)
	a.Server = srv

	a.member = testutil.CreateUser(t, usrRepo, "Ann", "Alto", "ann@test.test", "Pa$$w0rd", []string{user.RoleMember}, true)
	a.admin = testutil.CreateUser(t, usrRepo, "Clara", "Chair", "chair@test.test", "Pa$$w0rd", []string{user.RoleAdmin}, true)
	return a
}

// do serves the request, signed in as the optional user.
func (a *app) do(t *testing.T, req *http.Request, as ...user.User) *httptest.ResponseRecorder {
	t.Helper()
	if len(as) > 0 {
		token, err := GenerateToken(GetUserClaims(as[0], a.conf), a.conf.SecretKey)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: a.conf.Server.CookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, req)
	return rec
}

func (a *app) get(t *testing.T, path string, as ...user.User) *httptest.ResponseRecorder {
	return a.do(t, httptest.NewRequest(http.MethodGet, path, nil), as...)
}

func (a *app) postForm(t *testing.T, path string, form url.Values, as ...user.User) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(t, req, as...)
}

func (a *app) sendJSON(t *testing.T, method, path string, body interface{}, as ...user.User) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return a.do(t, req, as...)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func sessionCookie(a *app, rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == a.conf.Server.CookieName {
			return c
		}
	}
	return nil
}
