package echoweb

import (
	"context"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/humanistchoir/members/core"
	"github.com/humanistchoir/members/core/event"
	"github.com/humanistchoir/members/core/invitation"
	"github.com/humanistchoir/members/core/music"
	"github.com/humanistchoir/members/core/page"
	"github.com/humanistchoir/members/core/user"
	appfs "github.com/humanistchoir/members/fs"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		UserSvc        *user.Service
		InvitationSvc  *invitation.Service
		MusicSvc       *music.Service
		EventSvc       *event.Service
		PageSvc        *page.Service
		DisableReqLogs bool
	}

	Server struct {
		ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) (*Server, error) {
	s := &Server{
		ServerDeps: deps,
		app:        echo.New(),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	if err := s.setup(); err != nil {
		return nil, err
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	return s, nil
}

func (s *Server) setup() error {
	conf := s.Conf

	r, err := newRenderer(appfs.FS)
	if err != nil {
		return errors.Wrap(err, "loading templates")
	}
	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.Renderer = r
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.Logger, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.Secure())
	s.app.Use(s.sessionMiddleware)
	if !conf.Server.DisableCSRF {
		s.app.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
			Skipper:        isAdminAPI,
			TokenLookup:    "form:" + csrfField,
			CookieName:     csrfCookie,
			CookiePath:     "/",
			CookieSecure:   conf.Server.CookieSecure,
			CookieHTTPOnly: true,
		}))
	}

	static, _ := fs.Sub(appfs.FS, "static")
	s.app.GET("/static/*", echo.WrapHandler(http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	s.registerAccounts()
	s.registerMusic()
	s.registerEvents()
	s.registerAttendance()
	s.registerInvitations()
	s.registerAdminAPI(s.app.Group(adminAPIPrefix))

	s.app.GET("/", s.home)
	s.app.GET("/*", s.flatPage)
	return nil
}

func (s *Server) Start() {
	if err := s.app.Start(s.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// Errors reports fatal listener errors.
func (s *Server) Errors() <-chan error { return s.errors }

// ShutdownSignal delivers SIGINT/SIGTERM, or a synthetic signal after a core.shutdown error.
func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}
