package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humanistchoir/members/core/event"
	"github.com/humanistchoir/members/core/user"
	"github.com/humanistchoir/members/tests"
)

func TestEventRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewEventRepository(db)
	usrRepo := NewUserRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, usrRepo, "Alice", "Smith", "alice@test.test", "", []string{user.RoleMember}, true)
	bob := testutil.CreateUser(t, usrRepo, "Bob", "Jones", "bob@test.test", "", []string{user.RoleMember}, true)

	et, err := repo.CreateEventType(ctx, event.EventType{Label: "Rehearsal"})
	require.NoError(t, err)

	start := time.Date(2025, 10, 7, 18, 0, 0, 0, time.UTC)
	e, occs, err := repo.CreateEvent(ctx, event.Event{Title: "Tuesday rehearsals", EventTypeID: et.ID, Details: "Bring music"},
		[]event.Occurrence{
			{Start: start, End: start.Add(2 * time.Hour), Location: "Conway Hall"},
			{Start: start.AddDate(0, 0, 7), End: start.AddDate(0, 0, 7).Add(2 * time.Hour)},
			{Start: start.AddDate(0, 0, 14), IsBreak: true},
		})
	require.NoError(t, err)
	require.Len(t, occs, 3)
	assert.Equal(t, "Rehearsal", e.EventType.Label)

	t.Run("event types", func(t *testing.T) {
		got, err := repo.GetEventTypeByLabel(ctx, "Rehearsal")
		require.NoError(t, err)
		assert.Equal(t, et, got)
		_, err = repo.GetEventTypeByLabel(ctx, "Concert")
		assert.Equal(t, event.ErrTypeNotFound, err)
	})

	t.Run("occurrences", func(t *testing.T) {
		n, err := repo.CountOccurrences(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		got, err := repo.GetOccurrenceByID(ctx, occs[0].ID)
		require.NoError(t, err)
		assert.Equal(t, start, got.Start)
		assert.Equal(t, start.Add(2*time.Hour), got.End)
		assert.Equal(t, "Conway Hall", got.Location)
		assert.Equal(t, "Tuesday rehearsals", got.Event.Title)
		assert.Equal(t, "Rehearsal", got.EventType().Label)

		got, err = repo.GetOccurrenceByID(ctx, occs[2].ID)
		require.NoError(t, err)
		assert.True(t, got.End.IsZero())

		_, err = repo.GetOccurrenceByID(ctx, 999)
		assert.Equal(t, event.ErrOccurrenceNotFound, err)
	})

	t.Run("query occurrences", func(t *testing.T) {
		tests := []struct {
			name   string
			filter *event.OccurrenceFilter
			want   int
		}{
			{"all", nil, 3},
			{"from", &event.OccurrenceFilter{From: start.Add(time.Hour)}, 2},
			{"window", &event.OccurrenceFilter{From: start, To: start.AddDate(0, 0, 7)}, 1},
			{"no breaks", &event.OccurrenceFilter{ExcludeBreaks: true}, 2},
			{"type", &event.OccurrenceFilter{EventTypeLabel: "Concert"}, 0},
			{"limit", &event.OccurrenceFilter{EventTypeLabel: "Rehearsal", Limit: 1}, 1},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				got, err := repo.QueryOccurrences(ctx, tc.filter)
				require.NoError(t, err)
				assert.Len(t, got, tc.want)
			})
		}
	})

	t.Run("slots", func(t *testing.T) {
		ok, err := repo.ClaimSlot(ctx, e.ID, occs[0].ID, event.SlotOpener, alice.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		// taken
		ok, err = repo.ClaimSlot(ctx, e.ID, occs[0].ID, event.SlotOpener, bob.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		// wrong event
		ok, err = repo.ClaimSlot(ctx, e.ID+1, occs[0].ID, event.SlotCloser, bob.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.ClaimSlot(ctx, e.ID, occs[0].ID, event.SlotCloser, bob.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := repo.GetOccurrenceByID(ctx, occs[0].ID)
		require.NoError(t, err)
		require.NotNil(t, got.Opener)
		require.NotNil(t, got.Closer)
		assert.Equal(t, "Alice", got.Opener.FirstName)
		assert.Equal(t, "Bob", got.Closer.FirstName)
		assert.Contains(t, got.AllDetails(), "Open: Alice Smith  \nClose: Bob Jones")

		// only the holder can release
		ok, err = repo.ReleaseSlot(ctx, e.ID, occs[0].ID, event.SlotOpener, bob.ID)
		require.NoError(t, err)
		assert.False(t, ok)
		ok, err = repo.ReleaseSlot(ctx, e.ID, occs[0].ID, event.SlotOpener, alice.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("attendance", func(t *testing.T) {
		require.NoError(t, repo.AddAttendee(ctx, occs[0].ID, alice.ID))
		require.NoError(t, repo.AddAttendee(ctx, occs[0].ID, alice.ID))
		require.NoError(t, repo.AddAttendee(ctx, occs[1].ID, bob.ID))

		attended, err := repo.HasAttended(ctx, occs[0].ID, alice.ID)
		require.NoError(t, err)
		assert.True(t, attended)
		attended, err = repo.HasAttended(ctx, occs[0].ID, bob.ID)
		require.NoError(t, err)
		assert.False(t, attended)

		got, err := repo.QueryAttendance(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, map[int64][]int64{occs[0].ID: {alice.ID}, occs[1].ID: {bob.ID}}, got)

		occ, err := repo.GetOccurrenceByID(ctx, occs[0].ID)
		require.NoError(t, err)
		assert.Equal(t, 1, occ.Attending)
	})

	t.Run("update event appends occurrences", func(t *testing.T) {
		e.Title = "Rehearsals"
		next := start.AddDate(0, 0, 21)
		got, added, err := repo.UpdateEvent(ctx, e, []event.Occurrence{{Start: next, End: next.Add(time.Hour)}})
		require.NoError(t, err)
		assert.Equal(t, "Rehearsals", got.Title)
		require.Len(t, added, 1)

		n, err := repo.CountOccurrences(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})

	t.Run("delete cascades", func(t *testing.T) {
		n, err := repo.DeleteEventsByID(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		n, err = repo.CountOccurrences(ctx, e.ID)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
