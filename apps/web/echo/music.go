package echoweb

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

func (s *Server) registerMusic() {
	s.app.GET("/songs", s.currentSongs, loginRequired)
	s.app.GET("/all-songs", s.allSongs, loginRequired)
	s.app.GET("/song/:slug", s.songDetail, loginRequired)
}

func (s *Server) currentSongs(ctx echo.Context) error {
	songs, err := s.MusicSvc.ListCurrent(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing current songs")
	}
	return render(ctx, http.StatusOK, "songs", viewData{"Songs": songs, "Title": "Current songs", "Current": true})
}

func (s *Server) allSongs(ctx echo.Context) error {
	songs, err := s.MusicSvc.ListAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing songs")
	}
	return render(ctx, http.StatusOK, "songs", viewData{"Songs": songs, "Title": "All songs"})
}

func (s *Server) songDetail(ctx echo.Context) error {
	song, err := s.MusicSvc.GetBySlug(ctx.Request().Context(), ctx.Param("slug"))
	if err != nil {
		return err
	}
	links, err := s.MusicSvc.FileLinks(ctx.Request().Context(), song)
	if err != nil {
		return errors.Wrap(err, "signing file links")
	}
	return render(ctx, http.StatusOK, "song", viewData{"Song": song, "Files": links})
}
