package echoweb

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/humanistchoir/members/core"
	"github.com/humanistchoir/members/core/user"
)

const passwordResetSentMsg = "If the email address supplied is associated with an active account on this system, " +
	"an email will arrive in your inbox shortly with instructions to reset your password."

type (
	LoginRequest struct {
		Email    string `form:"login" validate:"required,email"`
		Password string `form:"password" validate:"required"`
		Next     string `form:"next"`
	}

	PasswordResetRequest struct {
		Email string `form:"email" validate:"required,email"`
	}
)

func (lr *LoginRequest) Validate() error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return core.Validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate() error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return core.Validate.Struct(pr)
}

func (s *Server) registerAccounts() {
	g := s.app.Group("/accounts")
	g.GET("/login", s.loginForm)
	g.POST("/login", s.loginSubmit)
	g.POST("/logout", s.logout)
	g.GET("/password/change", s.passwordChangeForm, loginRequired)
	g.POST("/password/change", s.passwordChangeSubmit, loginRequired)
	g.GET("/password/reset", s.passwordResetForm)
	g.POST("/password/reset", s.passwordResetSubmit)
	g.GET("/password/reset/confirm", s.passwordResetConfirmForm)
	g.POST("/password/reset/confirm", s.passwordResetConfirmSubmit)
}

// formErrors turns validation failures into template data; other errors are returned as is.
func formErrors(err error) (map[string]string, error) {
	if fields, ok := core.FieldErrors(err); ok {
		return fields, nil
	}
	return nil, err
}

func (s *Server) loginForm(ctx echo.Context) error {
	if _, ok := getContextUser(ctx); ok {
		return ctx.Redirect(http.StatusFound, safeNext(ctx.QueryParam("next")))
	}
	return render(ctx, http.StatusOK, "login", viewData{"Next": ctx.QueryParam("next")})
}

func (s *Server) loginSubmit(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	fail := func(err error) error {
		fields, err := formErrors(err)
		if err != nil {
			return err
		}
		return render(ctx, http.StatusOK, "login", viewData{"Form": data, "Errors": fields, "Next": data.Next})
	}
	if err := data.Validate(); err != nil {
		return fail(err)
	}

	usr, err := s.UserSvc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		switch errors.Cause(err) {
		case user.ErrAuthenticationFailed, user.ErrAccountDeactivated:
			return fail(core.NewValidationError(err))
		}
		return errors.Wrap(err, "authenticating")
	}
	if err = s.login(ctx, usr); err != nil {
		return errors.Wrap(err, "logging in")
	}
	return ctx.Redirect(http.StatusFound, safeNext(data.Next))
}

func (s *Server) logout(ctx echo.Context) error {
	s.clearSessionCookie(ctx)
	return ctx.Redirect(http.StatusFound, loginURL)
}

func (s *Server) passwordChangeForm(ctx echo.Context) error {
	return render(ctx, http.StatusOK, "password_change", nil)
}

func (s *Server) passwordChangeSubmit(ctx echo.Context) error {
	usr, _ := getContextUser(ctx)
	var data user.ChangePassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangePassword")
	}
	usr, err := s.UserSvc.ChangePassword(ctx.Request().Context(), usr, data)
	if err != nil {
		fields, err := formErrors(err)
		if err != nil {
			return errors.Wrap(err, "changing password")
		}
		return render(ctx, http.StatusOK, "password_change", viewData{"Errors": fields})
	}
	if err = s.login(ctx, usr); err != nil {
		return errors.Wrap(err, "logging in")
	}
	return ctx.Redirect(http.StatusFound, "/")
}

func (s *Server) passwordResetForm(ctx echo.Context) error {
	return render(ctx, http.StatusOK, "password_reset", nil)
}

func (s *Server) passwordResetSubmit(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(); err != nil {
		fields, err := formErrors(err)
		if err != nil {
			return err
		}
		return render(ctx, http.StatusOK, "password_reset", viewData{"Form": data, "Errors": fields})
	}

	if err := s.UserSvc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		s.Logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return render(ctx, http.StatusOK, "password_reset", viewData{"Sent": passwordResetSentMsg})
}

func (s *Server) passwordResetConfirmForm(ctx echo.Context) error {
	return render(ctx, http.StatusOK, "password_reset_confirm", viewData{
		"UID":   ctx.QueryParam("uid"),
		"Token": ctx.QueryParam("token"),
	})
}

func (s *Server) passwordResetConfirmSubmit(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if _, err := s.UserSvc.ResetPassword(ctx.Request().Context(), data); err != nil {
		fields, err := formErrors(err)
		if err != nil {
			return errors.Wrap(err, "resetting password")
		}
		return render(ctx, http.StatusOK, "password_reset_confirm", viewData{
			"UID": data.UID, "Token": data.Token, "Errors": fields,
		})
	}
	return render(ctx, http.StatusOK, "password_reset_confirm", viewData{"Done": true})
}
