package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humanistchoir/members/core/invitation"
	"github.com/humanistchoir/members/core/music"
	"github.com/humanistchoir/members/core/page"
	"github.com/humanistchoir/members/tests"
)

func TestSongRepository(t *testing.T) {
	repo := NewSongRepository(testutil.PrepareDB(t))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	ode, err := repo.CreateSong(ctx, music.Song{Name: "Ode to Joy", Slug: "ode-to-joy", CreatedAt: now, Current: true,
		Files: []string{"media/ode_alto.mp3", "media/ode.pdf"}})
	require.NoError(t, err)
	imagine, err := repo.CreateSong(ctx, music.Song{Name: "Imagine", Slug: "imagine", CreatedAt: now})
	require.NoError(t, err)
	assert.Equal(t, []string{}, imagine.Files)
	assert.Equal(t, []string{"media/ode_alto.mp3", "media/ode.pdf"}, ode.Files)

	assert.Equal(t, music.ErrNameExists, repo.CheckSongUniqueness(ctx, "Ode to Joy", "other"))
	assert.Equal(t, music.ErrSlugExists, repo.CheckSongUniqueness(ctx, "Other", "imagine"))
	assert.NoError(t, repo.CheckSongUniqueness(ctx, "Ode to Joy", "ode-to-joy", ode.ID))

	all, err := repo.QuerySongs(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Imagine", all[0].Name)

	require.NoError(t, repo.SetSongsCurrent(ctx, map[int64]bool{ode.ID: false, imagine.ID: true}))
	current := true
	cur, err := repo.QuerySongs(ctx, &music.QueryFilter{Current: &current})
	require.NoError(t, err)
	require.Len(t, cur, 1)
	assert.Equal(t, imagine.ID, cur[0].ID)

	got, err := repo.GetSongBySlug(ctx, "ode-to-joy")
	require.NoError(t, err)
	assert.False(t, got.Current)

	_, err = repo.GetSongBySlug(ctx, "missing")
	assert.Equal(t, music.ErrNotFound, err)
}

func TestInvitationRepository(t *testing.T) {
	repo := NewInvitationRepository(testutil.PrepareDB(t))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	inv, err := repo.CreateInvitation(ctx, invitation.Invitation{Email: "new@test.test", Key: "k1", CreatedAt: now})
	require.NoError(t, err)
	assert.True(t, inv.SentAt.IsZero())
	assert.Zero(t, inv.InviterID)

	inv.SentAt = now
	inv, err = repo.UpdateInvitation(ctx, inv)
	require.NoError(t, err)
	assert.Equal(t, now, inv.SentAt)

	got, err := repo.GetInvitationByKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, inv, got)

	_, err = repo.GetInvitationByEmail(ctx, "other@test.test")
	assert.Equal(t, invitation.ErrNotFound, err)

	accepted := false
	pending, err := repo.QueryInvitations(ctx, &invitation.QueryFilter{Accepted: &accepted})
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	byID, err := repo.GetInvitationsByID(ctx, inv.ID, 999)
	require.NoError(t, err)
	assert.Len(t, byID, 1)
}

func TestPageRepository(t *testing.T) {
	repo := NewPageRepository(testutil.PrepareDB(t))
	ctx := context.Background()

	p, err := repo.CreatePage(ctx, page.FlatPage{URL: "/about/", Title: "About", Content: "# About us"})
	require.NoError(t, err)

	got, err := repo.GetPageByURL(ctx, "/about/")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	assert.Equal(t, page.ErrURLExists, repo.CheckPageUniqueness(ctx, "/about/"))
	assert.NoError(t, repo.CheckPageUniqueness(ctx, "/about/", p.ID))

	p.RegistrationRequired = true
	p, err = repo.UpdatePage(ctx, p)
	require.NoError(t, err)
	assert.True(t, p.RegistrationRequired)

	n, err := repo.DeletePagesByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = repo.GetPageByURL(ctx, "/about/")
	assert.Equal(t, page.ErrNotFound, err)
}
