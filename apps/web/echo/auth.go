package echoweb

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/humanistchoir/members/core"
	"github.com/humanistchoir/members/core/user"
)

const (
	contextUserKey = "user"
	loginURL       = "/accounts/login/"
)

var signingMethod = jwt.SigningMethodHS256

// Claims represents the authorization claims transmitted via the session cookie.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64 `json:"oriat,omitempty"`
}

func GetUserClaims(usr user.User, conf *core.Config, origIat ...int64) *Claims {
	now := core.NowFunc()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   strconv.FormatInt(usr.ID, 10),
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(claims *Claims, secretKey string) (string, error) {
	token := jwt.NewWithClaims(signingMethod, claims)
	ss, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func parseToken(tokenStr, secretKey string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != signingMethod {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	if err != nil || !token.Valid {
		return nil, errUnauthorized
	}
	return claims, nil
}

func (s *Server) setSessionCookie(ctx echo.Context, claims *Claims) error {
	token, err := GenerateToken(claims, s.Conf.SecretKey)
	if err != nil {
		return err
	}
	ctx.SetCookie(&http.Cookie{
		Name:     s.Conf.Server.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Unix(claims.ExpiresAt, 0),
		HttpOnly: true,
		Secure:   s.Conf.Server.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *Server) clearSessionCookie(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     s.Conf.Server.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.Conf.Server.CookieSecure,
	})
}

// login starts a session for usr.
func (s *Server) login(ctx echo.Context, usr user.User) error {
	ctx.Set(contextUserKey, usr)
	return s.setSessionCookie(ctx, GetUserClaims(usr, s.Conf))
}

// sessionMiddleware loads the user behind a valid session cookie into the context.
// Sessions past half their lifetime are re-issued until the refresh limit is reached.
func (s *Server) sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		cookie, err := ctx.Cookie(s.Conf.Server.CookieName)
		if err != nil || cookie.Value == "" {
			return next(ctx)
		}
		claims, err := parseToken(cookie.Value, s.Conf.SecretKey)
		if err != nil {
			s.clearSessionCookie(ctx)
			return next(ctx)
		}
		id, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			s.clearSessionCookie(ctx)
			return next(ctx)
		}
		usr, err := s.UserSvc.GetByID(ctx.Request().Context(), id)
		if err != nil {
			if errors.Cause(err) != user.ErrNotFound {
				return errors.Wrap(err, "finding session user")
			}
			s.clearSessionCookie(ctx)
			return next(ctx)
		}
		if !usr.IsActive {
			s.clearSessionCookie(ctx)
			return next(ctx)
		}
		ctx.Set(contextUserKey, usr)

		now := core.NowFunc()
		halfLife := s.Conf.Server.JWTExpirationDelta / 2
		refreshLimit := time.Unix(claims.OrigIssuedAt, 0).Add(s.Conf.Server.JWTRefreshExpirationDelta)
		if now.After(time.Unix(claims.IssuedAt, 0).Add(halfLife)) && now.Before(refreshLimit) {
			if err := s.setSessionCookie(ctx, GetUserClaims(usr, s.Conf, claims.OrigIssuedAt)); err != nil {
				return errors.Wrap(err, "refreshing session")
			}
		}
		return next(ctx)
	}
}

func getContextUser(ctx echo.Context) (user.User, bool) {
	usr, ok := ctx.Get(contextUserKey).(user.User)
	return usr, ok
}

// loginRedirect sends anonymous users to the login page, remembering where they were going.
func loginRedirect(ctx echo.Context) error {
	next := ctx.Request().URL.RequestURI()
	return ctx.Redirect(http.StatusFound, loginURL+"?next="+url.QueryEscape(next))
}

func loginRequired(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if _, ok := getContextUser(ctx); !ok {
			return loginRedirect(ctx)
		}
		return next(ctx)
	}
}

// staffRequired guards the admin API.
func staffRequired(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, ok := getContextUser(ctx)
		if !ok {
			return errUnauthorized
		}
		if !usr.IsAdmin() {
			return errHttpForbidden
		}
		return next(ctx)
	}
}

// safeNext only allows local redirect targets.
func safeNext(next string) string {
	u, err := url.Parse(next)
	if next == "" || err != nil || u.IsAbs() || u.Host != "" || len(next) < 1 || next[0] != '/' ||
		(len(next) > 1 && (next[1] == '/' || next[1] == '\\')) {
		return "/"
	}
	return next
}
