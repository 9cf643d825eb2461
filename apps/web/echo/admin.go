package echoweb

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/humanistchoir/members/core"
	"github.com/humanistchoir/members/core/event"
	"github.com/humanistchoir/members/core/invitation"
	"github.com/humanistchoir/members/core/music"
	"github.com/humanistchoir/members/core/page"
	"github.com/humanistchoir/members/core/user"
)

var errNoPermsToSetRoles = "not enough rights to set these roles"

type (
	DeletedResponse struct {
		Deleted int `json:"deleted"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	EventDetail struct {
		event.Event
		RecurringCollapsed bool `json:"recurring_collapsed"`
	}

	SongDetail struct {
		music.Song
		Links []music.FileLink `json:"links"`
	}

	InvitationItem struct {
		invitation.Invitation
		Status string `json:"status"`
	}

	IDsRequest struct {
		IDs []int64 `json:"ids"`
	}

	CurrentSongsRequest struct {
		Current map[int64]bool `json:"current"` // {"<song id>": current}
	}

	FileRequest struct {
		Path string `json:"path"`
	}

	ExportResponse struct {
		URL string `json:"url"`
	}
)

func (s *Server) registerAdminAPI(g *echo.Group) {
	g.Use(staffRequired)

	g.GET("/event-types", s.listEventTypes)
	g.POST("/event-types", s.createEventType)
	g.DELETE("/event-types", s.deleteEventTypes)

	g.GET("/events", s.listEvents)
	g.POST("/events", s.createEvent)
	g.GET("/events/:id", s.retrieveEvent)
	g.PUT("/events/:id", s.updateEvent)
	g.DELETE("/events/:id", s.deleteEvent)
	g.POST("/events/:id/export-attendance", s.exportAttendance)

	g.GET("/occurrences", s.listOccurrences)
	g.POST("/occurrences", s.createOccurrence)
	g.PUT("/occurrences/:id", s.updateOccurrence)
	g.DELETE("/occurrences", s.deleteOccurrences)

	g.GET("/songs", s.listSongs)
	g.POST("/songs", s.createSong)
	g.PUT("/songs/current", s.setCurrentSongs)
	g.GET("/songs/:id", s.retrieveSong)
	g.PUT("/songs/:id", s.updateSong)
	g.DELETE("/songs/:id", s.deleteSong)
	g.POST("/songs/:id/files", s.attachSongFile)
	g.DELETE("/songs/:id/files", s.detachSongFile)
	g.POST("/uploads", s.uploadURL)

	g.GET("/pages", s.listPages)
	g.POST("/pages", s.createPage)
	g.GET("/pages/:id", s.retrievePage)
	g.PUT("/pages/:id", s.updatePage)
	g.DELETE("/pages", s.deletePages)

	g.GET("/invitations", s.listInvitations)
	g.POST("/invitations", s.createInvitation)
	g.POST("/invitations/resend", s.resendInvitations)
	g.DELETE("/invitations", s.deleteInvitations)

	g.GET("/users", s.listUsers)
	g.GET("/users/roles", s.listRoles)
	g.GET("/users/:id", s.retrieveUser)
	g.PUT("/users/:id", s.updateUser)
	g.DELETE("/users", s.deleteUsers)
}

func deleted(ctx echo.Context, n int, err error) error {
	if err != nil {
		return errors.Wrap(err, "deleting")
	}
	return ctx.JSON(http.StatusOK, DeletedResponse{Deleted: n})
}

// Event types

func (s *Server) listEventTypes(ctx echo.Context) error {
	types, err := s.EventSvc.ListTypes(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing event types")
	}
	if types == nil {
		types = []event.EventType{}
	}
	return ctx.JSON(http.StatusOK, types)
}

func (s *Server) createEventType(ctx echo.Context) error {
	var data event.NewEventType
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEventType")
	}
	et, err := s.EventSvc.CreateType(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, et)
}

func (s *Server) deleteEventTypes(ctx echo.Context) error {
	n, err := s.EventSvc.DeleteTypes(ctx.Request().Context(), bindIDs(ctx)...)
	return deleted(ctx, n, err)
}

// Events

func (s *Server) listEvents(ctx echo.Context) error {
	filter := new(event.EventFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []event.Event{})
	}
	events, err := s.EventSvc.QueryEvents(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying events")
	}
	if events == nil {
		events = []event.Event{}
	}
	return ctx.JSON(http.StatusOK, events)
}

func (s *Server) eventDetail(ctx echo.Context, e event.Event, code int) error {
	collapsed, err := s.EventSvc.HasOccurrences(ctx.Request().Context(), e.ID)
	if err != nil {
		return errors.Wrap(err, "counting occurrences")
	}
	return ctx.JSON(code, EventDetail{Event: e, RecurringCollapsed: collapsed})
}

func (s *Server) createEvent(ctx echo.Context) error {
	var data event.NewEvent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvent")
	}
	e, _, err := s.EventSvc.CreateEvent(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return s.eventDetail(ctx, e, http.StatusCreated)
}

func (s *Server) getEvent(ctx echo.Context) (event.Event, error) {
	id, err := paramID(ctx, "id")
	if err != nil {
		return event.Event{}, err
	}
	return s.EventSvc.GetEvent(ctx.Request().Context(), id)
}

func (s *Server) retrieveEvent(ctx echo.Context) error {
	e, err := s.getEvent(ctx)
	if err != nil {
		return err
	}
	return s.eventDetail(ctx, e, http.StatusOK)
}

func (s *Server) updateEvent(ctx echo.Context) error {
	e, err := s.getEvent(ctx)
	if err != nil {
		return err
	}
	var data event.UpdateEvent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateEvent")
	}
	if e, _, err = s.EventSvc.UpdateEvent(ctx.Request().Context(), e, data); err != nil {
		return err
	}
	return s.eventDetail(ctx, e, http.StatusOK)
}

func (s *Server) deleteEvent(ctx echo.Context) error {
	e, err := s.getEvent(ctx)
	if err != nil {
		return err
	}
	n, err := s.EventSvc.DeleteEvents(ctx.Request().Context(), e.ID)
	return deleted(ctx, n, err)
}

func (s *Server) exportAttendance(ctx echo.Context) error {
	e, err := s.getEvent(ctx)
	if err != nil {
		return err
	}
	url, err := s.EventSvc.ExportAttendance(ctx.Request().Context(), e.ID)
	if err != nil {
		return errors.Wrap(err, "exporting attendance")
	}
	return ctx.JSON(http.StatusOK, ExportResponse{URL: url})
}

// Occurrences

func (s *Server) listOccurrences(ctx echo.Context) error {
	filter := new(event.OccurrenceFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []event.Occurrence{})
	}
	occs, err := s.EventSvc.QueryOccurrences(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying occurrences")
	}
	if occs == nil {
		occs = []event.Occurrence{}
	}
	return ctx.JSON(http.StatusOK, occs)
}

func (s *Server) createOccurrence(ctx echo.Context) error {
	var data event.NewOccurrence
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewOccurrence")
	}
	occ, err := s.EventSvc.CreateOccurrence(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, occ)
}

func (s *Server) updateOccurrence(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	occ, err := s.EventSvc.GetOccurrence(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	var data event.UpdateOccurrence
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateOccurrence")
	}
	if occ, err = s.EventSvc.UpdateOccurrence(ctx.Request().Context(), occ, data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, occ)
}

func (s *Server) deleteOccurrences(ctx echo.Context) error {
	n, err := s.EventSvc.DeleteOccurrences(ctx.Request().Context(), bindIDs(ctx)...)
	return deleted(ctx, n, err)
}

// Songs

func (s *Server) listSongs(ctx echo.Context) error {
	filter := new(music.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []music.Song{})
	}
	songs, err := s.MusicSvc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying songs")
	}
	if songs == nil {
		songs = []music.Song{}
	}
	return ctx.JSON(http.StatusOK, songs)
}

func (s *Server) getSong(ctx echo.Context) (music.Song, error) {
	id, err := paramID(ctx, "id")
	if err != nil {
		return music.Song{}, err
	}
	return s.MusicSvc.GetByID(ctx.Request().Context(), id)
}

func (s *Server) songJSON(ctx echo.Context, song music.Song, code int) error {
	links, err := s.MusicSvc.FileLinks(ctx.Request().Context(), song)
	if err != nil {
		return errors.Wrap(err, "signing file links")
	}
	return ctx.JSON(code, SongDetail{Song: song, Links: links})
}

func (s *Server) createSong(ctx echo.Context) error {
	var data music.NewSong
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSong")
	}
	if err := data.Validate(ctx.Request().Context(), s.MusicSvc); err != nil {
		return err
	}
	song, err := s.MusicSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating song")
	}
	return s.songJSON(ctx, song, http.StatusCreated)
}

func (s *Server) retrieveSong(ctx echo.Context) error {
	song, err := s.getSong(ctx)
	if err != nil {
		return err
	}
	return s.songJSON(ctx, song, http.StatusOK)
}

func (s *Server) updateSong(ctx echo.Context) error {
	song, err := s.getSong(ctx)
	if err != nil {
		return err
	}
	var data music.UpdateSong
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSong")
	}
	if err = data.Validate(ctx.Request().Context(), song, s.MusicSvc); err != nil {
		return err
	}
	if song, err = s.MusicSvc.Update(ctx.Request().Context(), song, data); err != nil {
		return errors.Wrap(err, "updating song")
	}
	return s.songJSON(ctx, song, http.StatusOK)
}

func (s *Server) deleteSong(ctx echo.Context) error {
	song, err := s.getSong(ctx)
	if err != nil {
		return err
	}
	n, err := s.MusicSvc.Delete(ctx.Request().Context(), song.ID)
	return deleted(ctx, n, err)
}

// setCurrentSongs is the list page's inline "current" checkboxes.
func (s *Server) setCurrentSongs(ctx echo.Context) error {
	var data CurrentSongsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CurrentSongsRequest")
	}
	if err := s.MusicSvc.SetCurrent(ctx.Request().Context(), data.Current); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *Server) attachSongFile(ctx echo.Context) error {
	song, err := s.getSong(ctx)
	if err != nil {
		return err
	}
	var data FileRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FileRequest")
	}
	if song, err = s.MusicSvc.AttachFile(ctx.Request().Context(), song, data.Path); err != nil {
		return err
	}
	return s.songJSON(ctx, song, http.StatusOK)
}

func (s *Server) detachSongFile(ctx echo.Context) error {
	song, err := s.getSong(ctx)
	if err != nil {
		return err
	}
	if song, err = s.MusicSvc.DetachFile(ctx.Request().Context(), song, ctx.QueryParam("path")); err != nil {
		return err
	}
	return s.songJSON(ctx, song, http.StatusOK)
}

func (s *Server) uploadURL(ctx echo.Context) error {
	var data music.UploadRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UploadRequest")
	}
	ticket, err := s.MusicSvc.UploadURL(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ticket)
}

// Flat pages

func (s *Server) listPages(ctx echo.Context) error {
	pages, err := s.PageSvc.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing pages")
	}
	if pages == nil {
		pages = []page.FlatPage{}
	}
	return ctx.JSON(http.StatusOK, pages)
}

func (s *Server) createPage(ctx echo.Context) error {
	var data page.NewFlatPage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFlatPage")
	}
	p, err := s.PageSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (s *Server) getPage(ctx echo.Context) (page.FlatPage, error) {
	id, err := paramID(ctx, "id")
	if err != nil {
		return page.FlatPage{}, err
	}
	return s.PageSvc.GetByID(ctx.Request().Context(), id)
}

func (s *Server) retrievePage(ctx echo.Context) error {
	p, err := s.getPage(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (s *Server) updatePage(ctx echo.Context) error {
	p, err := s.getPage(ctx)
	if err != nil {
		return err
	}
	var data page.UpdateFlatPage
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateFlatPage")
	}
	if p, err = s.PageSvc.Update(ctx.Request().Context(), p, data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (s *Server) deletePages(ctx echo.Context) error {
	n, err := s.PageSvc.Delete(ctx.Request().Context(), bindIDs(ctx)...)
	return deleted(ctx, n, err)
}

// Invitations

func (s *Server) listInvitations(ctx echo.Context) error {
	filter := new(invitation.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []InvitationItem{})
	}
	invs, err := s.InvitationSvc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying invitations")
	}
	now := core.NowFunc()
	items := make([]InvitationItem, 0, len(invs))
	for _, inv := range invs {
		items = append(items, InvitationItem{Invitation: inv, Status: inv.Status(s.InvitationSvc.Expiry(), now)})
	}
	return ctx.JSON(http.StatusOK, items)
}

func (s *Server) createInvitation(ctx echo.Context) error {
	var data invitation.NewInvitation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewInvitation")
	}
	inviter, _ := getContextUser(ctx)
	inv, err := s.InvitationSvc.Create(ctx.Request().Context(), data, inviter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, InvitationItem{Invitation: inv, Status: inv.Status(s.InvitationSvc.Expiry(), core.NowFunc())})
}

func (s *Server) resendInvitations(ctx echo.Context) error {
	var data IDsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to IDsRequest")
	}
	inviter, _ := getContextUser(ctx)
	n, err := s.InvitationSvc.Resend(ctx.Request().Context(), data.IDs, inviter)
	if err != nil {
		return errors.Wrap(err, "resending invitations")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: invitation.ResentMessage(n)})
}

func (s *Server) deleteInvitations(ctx echo.Context) error {
	n, err := s.InvitationSvc.Delete(ctx.Request().Context(), bindIDs(ctx)...)
	return deleted(ctx, n, err)
}

// Users

func (s *Server) listUsers(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := s.UserSvc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (s *Server) listRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (s *Server) getUser(ctx echo.Context) (user.User, error) {
	id, err := paramID(ctx, "id")
	if err != nil {
		return user.User{}, err
	}
	return s.UserSvc.GetByID(ctx.Request().Context(), id)
}

func (s *Server) retrieveUser(ctx echo.Context) error {
	usr, err := s.getUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (s *Server) updateUser(ctx echo.Context) error {
	usr, err := s.getUser(ctx)
	if err != nil {
		return err
	}
	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	if err = data.Validate(usr, s.UserSvc); err != nil {
		return err
	}

	// ctxUser cannot set a role > their own max role
	ctxUsr, _ := getContextUser(ctx)
	if user.MaxRolePriority(data.Roles) > user.MaxRolePriority(ctxUsr.Roles) {
		return core.NewValidationError(nil, core.FieldError{Field: "roles", Error: errNoPermsToSetRoles})
	}

	if usr, err = s.UserSvc.Update(ctx.Request().Context(), usr.ID, data); err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (s *Server) deleteUsers(ctx echo.Context) error {
	ids := bindIDs(ctx)

	// ctxUser cannot delete themselves
	ctxUsr, _ := getContextUser(ctx)
	for _, id := range ids {
		if id == ctxUsr.ID {
			return errHttpForbidden
		}
	}
	n, err := s.UserSvc.Delete(ctx.Request().Context(), ids...)
	return deleted(ctx, n, err)
}
