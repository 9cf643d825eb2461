package page_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humanistchoir/members/core"
	"github.com/humanistchoir/members/core/page"
	"github.com/humanistchoir/members/storage/database/sqlxrepos"
	"github.com/humanistchoir/members/tests"
)

func TestPageService(t *testing.T) {
	svc := page.NewService(sqlxrepos.NewPageRepository(testutil.PrepareDB(t)))
	ctx := context.Background()

	p, err := svc.Create(ctx, page.NewFlatPage{URL: "about", Title: " About us ", Content: "# Hello"})
	require.NoError(t, err)
	assert.Equal(t, "/about/", p.URL)
	assert.Equal(t, "About us", p.Title)

	got, err := svc.GetByURL(ctx, "/about")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = svc.GetByURL(ctx, "/missing/")
	assert.Equal(t, page.ErrNotFound, err)

	tests := []struct {
		name  string
		np    page.NewFlatPage
		field string
	}{
		{"duplicate", page.NewFlatPage{URL: "/about/", Title: "Again"}, "url"},
		{"bad url", page.NewFlatPage{URL: "/a b/", Title: "Spaces"}, "url"},
		{"no title", page.NewFlatPage{URL: "/x/"}, "title"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.np)
			fields, ok := core.FieldErrors(err)
			require.True(t, ok)
			assert.Contains(t, fields, tc.field)
		})
	}

	t.Run("update", func(t *testing.T) {
		private := true
		p, err := svc.Update(ctx, p, page.UpdateFlatPage{URL: "/about-us/", RegistrationRequired: &private})
		require.NoError(t, err)
		assert.Equal(t, "/about-us/", p.URL)
		assert.Equal(t, "About us", p.Title)
		assert.True(t, p.RegistrationRequired)
		assert.Equal(t, "# Hello", p.Content)
	})
}
