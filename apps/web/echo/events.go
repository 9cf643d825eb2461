package echoweb

import (
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/humanistchoir/members/core/event"
)

var (
	yearParam  = regexp.MustCompile(`^\d{4}$`)
	monthParam = regexp.MustCompile(`^\d{1,2}$`)
)

type SignUpRequest struct {
	OccurrenceID int64  `form:"occurrence_id"`
	Role         string `form:"role"`
	Action       string `form:"action"` // "withdraw" releases the slot
}

func (s *Server) registerEvents() {
	s.app.GET("/calendar/:year/:month", s.calendar, loginRequired)
	s.app.GET("/calendar/occurrence/:event/:occurrence", s.occurrenceDetail, loginRequired)
	s.app.GET("/events/:id/signup", s.signUpGrid, loginRequired)
	s.app.POST("/events/:id/signup", s.signUpSubmit, loginRequired)
	s.app.GET("/events/:id/schedule", s.schedule, loginRequired)
}

// paramID parses a numeric path parameter; malformed ids are a 404.
func paramID(ctx echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id < 1 {
		return 0, errHttpNotFound
	}
	return id, nil
}

func (s *Server) calendar(ctx echo.Context) error {
	if !yearParam.MatchString(ctx.Param("year")) || !monthParam.MatchString(ctx.Param("month")) {
		return errHttpNotFound
	}
	year, _ := strconv.Atoi(ctx.Param("year"))
	month, _ := strconv.Atoi(ctx.Param("month"))
	cal, err := s.EventSvc.Month(ctx.Request().Context(), year, time.Month(month))
	if err != nil {
		if errors.Cause(err) == event.ErrInvalidMonth {
			return errHttpNotFound
		}
		return errors.Wrap(err, "building month")
	}
	return render(ctx, http.StatusOK, "calendar", viewData{"Calendar": cal})
}

func (s *Server) occurrenceDetail(ctx echo.Context) error {
	eventID, err := paramID(ctx, "event")
	if err != nil {
		return err
	}
	occID, err := paramID(ctx, "occurrence")
	if err != nil {
		return err
	}
	occ, err := s.EventSvc.EventOccurrence(ctx.Request().Context(), eventID, occID)
	if err != nil {
		return err
	}
	return render(ctx, http.StatusOK, "occurrence", viewData{"Occurrence": occ})
}

func (s *Server) signUpGrid(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	e, occs, err := s.EventSvc.Upcoming(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return render(ctx, http.StatusOK, "signup_grid", viewData{
		"Event":       e,
		"Occurrences": occs,
		"Slots":       []string{event.SlotOpener, event.SlotCloser},
	})
}

func (s *Server) signUpSubmit(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data SignUpRequest
	if err = ctx.Bind(&data); err != nil {
		return ctx.Redirect(http.StatusFound, ctx.Request().URL.Path+"/")
	}
	usr, _ := getContextUser(ctx)
	if data.Action == "withdraw" {
		_, err = s.EventSvc.Withdraw(ctx.Request().Context(), id, data.OccurrenceID, data.Role, usr)
	} else {
		_, err = s.EventSvc.SignUp(ctx.Request().Context(), id, data.OccurrenceID, data.Role, usr)
	}
	if err != nil {
		return errors.Wrap(err, "updating sign-up")
	}
	return ctx.Redirect(http.StatusFound, ctx.Request().URL.Path+"/")
}

func (s *Server) schedule(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	e, entries, err := s.EventSvc.PrintableSchedule(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return render(ctx, http.StatusOK, "schedule", viewData{"Event": e, "Entries": entries})
}
