package echoweb

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/humanistchoir/members/core/invitation"
)

func (s *Server) registerInvitations() {
	s.app.GET("/invitations/accept-invite/:key", s.acceptInvite)
	s.app.POST("/accounts/signup", s.signup)
}

// inviteState names the page shown for an unusable invitation key.
func inviteState(err error) (string, bool) {
	switch errors.Cause(err) {
	case invitation.ErrInvalidKey:
		return "invalid", true
	case invitation.ErrAlreadyAccepted:
		return "accepted", true
	case invitation.ErrExpired:
		return "expired", true
	}
	return "", false
}

func (s *Server) acceptInvite(ctx echo.Context) error {
	inv, err := s.InvitationSvc.Check(ctx.Request().Context(), ctx.Param("key"))
	if err != nil {
		if state, ok := inviteState(err); ok {
			return render(ctx, http.StatusOK, "accept_invite", viewData{"State": state})
		}
		return errors.Wrap(err, "checking invitation")
	}
	return render(ctx, http.StatusOK, "accept_invite", viewData{
		"State":       "open",
		"Invitation":  inv,
		"Form":        invitation.Signup{Key: inv.Key},
		"GDPRMessage": invitation.GDPRMessage,
	})
}

func (s *Server) signup(ctx echo.Context) error {
	var data invitation.Signup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Signup")
	}

	usr, err := s.InvitationSvc.Accept(ctx.Request().Context(), data)
	if err != nil {
		// the key may have gone stale between rendering the form and posting it
		if _, chkErr := s.InvitationSvc.Check(ctx.Request().Context(), data.Key); chkErr != nil {
			if state, ok := inviteState(chkErr); ok {
				return render(ctx, http.StatusOK, "accept_invite", viewData{"State": state})
			}
		}
		fields, err := formErrors(err)
		if err != nil {
			return errors.Wrap(err, "accepting invitation")
		}
		inv, _ := s.InvitationSvc.Check(ctx.Request().Context(), data.Key)
		data.Password, data.PasswordConfirm = "", ""
		return render(ctx, http.StatusOK, "accept_invite", viewData{
			"State":       "open",
			"Invitation":  inv,
			"Form":        data,
			"Errors":      fields,
			"GDPRMessage": invitation.GDPRMessage,
		})
	}

	if err = s.login(ctx, usr); err != nil {
		return errors.Wrap(err, "logging in")
	}
	return ctx.Redirect(http.StatusFound, "/")
}
