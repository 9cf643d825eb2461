package echoweb

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/humanistchoir/members/core/event"
)

const attendanceURL = "/attendance/"

type AttendanceRequest struct {
	OccurrenceID int64 `form:"occurrence_id"`
}

func (s *Server) registerAttendance() {
	g := s.app.Group("/attendance", loginRequired)
	g.GET("", s.attendanceForm)
	g.POST("", s.attendanceSubmit)
	g.GET("/:id/success", s.attendanceSuccess)
}

func (s *Server) attendanceForm(ctx echo.Context) error {
	usr, _ := getContextUser(ctx)
	target, err := s.EventSvc.AttendanceTarget(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "finding rehearsal")
	}
	return render(ctx, http.StatusOK, "attendance", viewData{
		"Occurrence":      target.Occurrence,
		"AlreadyAttended": target.AlreadyAttended,
	})
}

func (s *Server) attendanceSubmit(ctx echo.Context) error {
	var data AttendanceRequest
	if err := ctx.Bind(&data); err != nil || data.OccurrenceID == 0 {
		return ctx.Redirect(http.StatusFound, attendanceURL)
	}
	usr, _ := getContextUser(ctx)
	if err := s.EventSvc.MarkAttendance(ctx.Request().Context(), data.OccurrenceID, usr); err != nil {
		if errors.Cause(err) == event.ErrOccurrenceNotFound {
			return ctx.Redirect(http.StatusFound, attendanceURL)
		}
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.Redirect(http.StatusFound, fmt.Sprintf("%s%d/success/", attendanceURL, data.OccurrenceID))
}

func (s *Server) attendanceSuccess(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	occ, err := s.EventSvc.GetOccurrence(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return render(ctx, http.StatusOK, "attendance_success", viewData{"Occurrence": occ})
}
