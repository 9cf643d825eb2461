package echoweb

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/humanistchoir/members/core"
	"github.com/humanistchoir/members/core/event"
	"github.com/humanistchoir/members/core/invitation"
	"github.com/humanistchoir/members/core/music"
	"github.com/humanistchoir/members/core/page"
	"github.com/humanistchoir/members/core/user"
)

const adminAPIPrefix = "/admin/api"

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound  = echo.NewHTTPError(http.StatusNotFound, "not found")
)

func isAdminAPI(ctx echo.Context) bool {
	return strings.HasPrefix(ctx.Request().URL.Path, adminAPIPrefix)
}

// isNotFound reports the domain sentinels that map to a 404.
func isNotFound(err error) bool {
	switch errors.Cause(err) {
	case user.ErrNotFound, invitation.ErrNotFound, music.ErrNotFound, page.ErrNotFound,
		event.ErrNotFound, event.ErrTypeNotFound, event.ErrOccurrenceNotFound:
		return true
	}
	return false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// The admin API answers with JSON; everything else gets an HTML error page.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		if fields, ok := core.FieldErrors(err); ok {
			code = http.StatusBadRequest
			message = fields
		} else if isNotFound(err) {
			code = http.StatusNotFound
			message = http.StatusText(code)
		} else if herr, ok := errors.Cause(err).(*echo.HTTPError); ok {
			if herr.Internal != nil {
				if inner, ok := herr.Internal.(*echo.HTTPError); ok {
					herr = inner
				}
			}
			code = herr.Code
			message = herr.Message
		} else { // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(code)
			message = msg

			args := []interface{}{errors.Wrap(err, msg)}
			if usr, ok := getContextUser(ctx); ok {
				args = append(args, usr)
			}
			logger.Error(msg, args...)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else if isAdminAPI(ctx) {
			if ctx.Echo().Debug && code == http.StatusInternalServerError {
				message = err.Error()
			}
			if m, ok := message.(string); ok {
				message = echo.Map{"error": m}
			}
			err = ctx.JSON(code, message)
		} else {
			data := viewData{"Code": code, "Status": http.StatusText(code), "Message": message}
			if ctx.Echo().Debug && code == http.StatusInternalServerError {
				data["Debug"] = err.Error()
			}
			err = render(ctx, code, "error", data)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}
