package music_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humanistchoir/members/core"
	"github.com/humanistchoir/members/core/music"
	"github.com/humanistchoir/members/services/filestore"
	"github.com/humanistchoir/members/storage/database/sqlxrepos"
	"github.com/humanistchoir/members/tests"
)

func setup(t *testing.T) *music.Service {
	conf := core.NewTestConfig()
	repo := sqlxrepos.NewSongRepository(testutil.PrepareDB(t))
	return music.NewService(repo, filestore.NewConsoleStore("https://files.test", nil), conf)
}

func create(t *testing.T, svc *music.Service, ns music.NewSong) music.Song {
	t.Helper()
	require.NoError(t, ns.Validate(context.Background(), svc))
	song, err := svc.Create(context.Background(), ns)
	require.NoError(t, err)
	return song
}

func TestCreateSong(t *testing.T) {
	svc := setup(t)
	song := create(t, svc, music.NewSong{Name: " Bread and Roses "})
	assert.Equal(t, "Bread and Roses", song.Name)
	assert.Equal(t, "bread-and-roses", song.Slug)
	assert.True(t, song.Current)
	assert.Empty(t, song.Files)

	tests := []struct {
		name  string
		ns    music.NewSong
		field string
	}{
		{"duplicate name", music.NewSong{Name: "Bread and Roses", Slug: "other"}, "name"},
		{"duplicate slug", music.NewSong{Name: "Bread & Roses"}, "slug"},
		{"bad slug", music.NewSong{Name: "Imagine", Slug: "not a slug"}, "slug"},
		{"blank name", music.NewSong{Name: "   "}, "name"},
		{"name without letters", music.NewSong{Name: "?!?"}, "name"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fields, ok := core.FieldErrors(tc.ns.Validate(context.Background(), svc))
			require.True(t, ok)
			assert.Contains(t, fields, tc.field)
		})
	}
}

func TestValidateUsesContext(t *testing.T) {
	svc := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ns := music.NewSong{Name: "Imagine"}
	err := ns.Validate(ctx, svc)
	require.Error(t, err)
	_, ok := core.FieldErrors(err)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)

	song := create(t, svc, music.NewSong{Name: "Jerusalem"})
	us := music.UpdateSong{Name: "Jerusalem (Parry)"}
	assert.ErrorIs(t, us.Validate(ctx, song, svc), context.Canceled)
	require.NoError(t, us.Validate(context.Background(), song, svc))
}

func TestListCurrent(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()
	old := false
	a := create(t, svc, music.NewSong{Name: "Zadok"})
	b := create(t, svc, music.NewSong{Name: "Abide", Current: &old})
	c := create(t, svc, music.NewSong{Name: "Bright"})

	songs, err := svc.ListCurrent(ctx)
	require.NoError(t, err)
	require.Len(t, songs, 2)
	assert.Equal(t, c.ID, songs[0].ID)
	assert.Equal(t, a.ID, songs[1].ID)

	require.NoError(t, svc.SetCurrent(ctx, map[int64]bool{a.ID: false, b.ID: true}))
	songs, err = svc.ListCurrent(ctx)
	require.NoError(t, err)
	require.Len(t, songs, 2)
	assert.Equal(t, b.ID, songs[0].ID)
	assert.Equal(t, c.ID, songs[1].ID)
}

func TestFiles(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()
	song := create(t, svc, music.NewSong{Name: "Jerusalem"})

	ticket, err := svc.UploadURL(ctx, music.UploadRequest{Filename: `C:\scores\jerusalem_alto.mp3`, ContentType: "audio/mpeg"})
	require.NoError(t, err)
	assert.Equal(t, "media/jerusalem_alto.mp3", ticket.Path)
	assert.Contains(t, ticket.URL, "https://files.test/media/jerusalem_alto.mp3?")

	song, err = svc.AttachFile(ctx, song, ticket.Path)
	require.NoError(t, err)
	song, err = svc.AttachFile(ctx, song, "/media/jerusalem.pdf")
	require.NoError(t, err)
	song, err = svc.AttachFile(ctx, song, "media/jerusalem.pdf")
	require.NoError(t, err)
	assert.Len(t, song.Files, 2)

	links, err := svc.FileLinks(ctx, song)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "jerusalem.pdf", links[0].Name)
	assert.Contains(t, links[0].URL, "attachment")
	assert.Contains(t, links[0].Preview, "inline")
	assert.Equal(t, "jerusalem_alto.mp3", links[1].Name)
	assert.Empty(t, links[1].Preview)

	song, err = svc.DetachFile(ctx, song, "media/jerusalem.pdf")
	require.NoError(t, err)
	assert.Equal(t, []string{"media/jerusalem_alto.mp3"}, song.Files)

	_, err = svc.UploadURL(ctx, music.UploadRequest{Filename: ".."})
	_, ok := core.FieldErrors(err)
	assert.True(t, ok)
}
