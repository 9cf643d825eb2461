package echoweb

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/humanistchoir/members/core/page"
)

func (s *Server) home(ctx echo.Context) error {
	return render(ctx, http.StatusOK, "home", nil)
}

// flatPage serves any GET no route claimed from the flat pages table.
func (s *Server) flatPage(ctx echo.Context) error {
	p, err := s.PageSvc.GetByURL(ctx.Request().Context(), ctx.Request().URL.Path)
	if err != nil {
		if errors.Cause(err) == page.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding flat page")
	}
	if _, ok := getContextUser(ctx); p.RegistrationRequired && !ok {
		return loginRedirect(ctx)
	}
	return render(ctx, http.StatusOK, "flatpage", viewData{"Page": p})
}
