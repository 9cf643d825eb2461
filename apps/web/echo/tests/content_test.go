package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humanistchoir/members/core/music"
	"github.com/humanistchoir/members/core/page"
)

func createSong(t *testing.T, a *app, name string, current bool, files ...string) music.Song {
	t.Helper()
	ns := music.NewSong{Name: name, Current: &current, Files: files}
	require.NoError(t, ns.Validate(context.Background(), a.musicSvc))
	song, err := a.musicSvc.Create(context.Background(), ns)
	require.NoError(t, err)
	return song
}

func TestSongs(t *testing.T) {
	a := setup(t)
	createSong(t, a, "Bread and Roses", true, "songs/bread_and_roses_alto.mp3", "songs/bread_and_roses.pdf")
	createSong(t, a, "Jerusalem", false)

	rec := a.get(t, "/songs/", a.member)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Bread and Roses")
	assert.NotContains(t, rec.Body.String(), "Jerusalem")

	rec = a.get(t, "/all-songs/", a.member)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Bread and Roses")
	assert.Contains(t, rec.Body.String(), "Jerusalem")

	rec = a.get(t, "/song/bread-and-roses/", a.member)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "bread and roses alto.mp3")
	assert.Contains(t, body, "https://files.test/songs/bread_and_roses.pdf")

	rec = a.get(t, "/song/no-such-song/", a.member)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFlatPages(t *testing.T) {
	a := setup(t)
	ctx := context.Background()

	_, err := a.pageSvc.Create(ctx, page.NewFlatPage{URL: "/about/", Title: "About us", Content: "We *sing*."})
	require.NoError(t, err)
	_, err = a.pageSvc.Create(ctx, page.NewFlatPage{URL: "/rota/", Title: "Rota", Content: "Members only", RegistrationRequired: true})
	require.NoError(t, err)

	tests := []struct {
		name     string
		path     string
		member   bool
		wantCode int
		wantBody string
	}{
		{name: "public", path: "/about/", wantCode: http.StatusOK, wantBody: "<em>sing</em>"},
		{name: "public no slash", path: "/about", wantCode: http.StatusOK, wantBody: "About us"},
		{name: "registration required anonymous", path: "/rota/", wantCode: http.StatusFound},
		{name: "registration required member", path: "/rota/", member: true, wantCode: http.StatusOK, wantBody: "Members only"},
		{name: "missing", path: "/nope/", wantCode: http.StatusNotFound, wantBody: "404"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.get(t, tt.path)
			if tt.member {
				rec = a.get(t, tt.path, a.member)
			}
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestStatic(t *testing.T) {
	a := setup(t)

	rec := a.get(t, "/static/css/site.css")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".calendar")
}
