package event_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humanistchoir/members/core"
	"github.com/humanistchoir/members/core/event"
	"github.com/humanistchoir/members/core/user"
	"github.com/humanistchoir/members/services/email"
	"github.com/humanistchoir/members/services/sheets"
	"github.com/humanistchoir/members/storage/database/sqlxrepos"
	"github.com/humanistchoir/members/tests"
)

type fixture struct {
	svc     *event.Service
	repo    event.Repository
	usrRepo user.Repository
	sheets  *bytes.Buffer
	member  user.User
}

func setup(t *testing.T, now time.Time) fixture {
	core.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { core.NowFunc = time.Now })

	conf := core.NewTestConfig()
	db := testutil.PrepareDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)
	repo := sqlxrepos.NewEventRepository(db)
	usrSvc := user.NewService(usrRepo, emailsvc.NewConsoleServiceMock(conf), conf)
	var buf bytes.Buffer

	return fixture{
		svc:     event.NewService(repo, usrSvc, sheets.NewConsole(&buf), conf),
		repo:    repo,
		usrRepo: usrRepo,
		sheets:  &buf,
		member:  testutil.CreateUser(t, usrRepo, "Ann", "Alto", "ann@test.test", "", []string{user.RoleMember}, true),
	}
}

func TestCreateEventWithRecurrence(t *testing.T) {
	f := setup(t, time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	et, err := f.svc.CreateType(ctx, event.NewEventType{Label: " Rehearsal "})
	require.NoError(t, err)
	assert.Equal(t, "Rehearsal", et.Label)

	_, err = f.svc.CreateType(ctx, event.NewEventType{Label: "Rehearsal"})
	fields, ok := core.FieldErrors(err)
	require.True(t, ok)
	assert.Contains(t, fields, "label")

	e, occs, err := f.svc.CreateEvent(ctx, event.NewEvent{
		Title:       "Autumn term",
		EventTypeID: et.ID,
		Recurring: event.RecurringForm{
			StartTime: "2025-09-01T10:00",
			EndTime:   "12:00",
			Days:      []int{1, 3, 5},
			Count:     5,
			Location:  "Conway Hall",
		},
	})
	require.NoError(t, err)
	assert.Len(t, occs, 5)

	collapsed, err := f.svc.HasOccurrences(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, collapsed)

	t.Run("without recurring data", func(t *testing.T) {
		e2, occs, err := f.svc.CreateEvent(ctx, event.NewEvent{Title: "Concert", EventTypeID: et.ID})
		require.NoError(t, err)
		assert.Empty(t, occs)
		collapsed, err := f.svc.HasOccurrences(ctx, e2.ID)
		require.NoError(t, err)
		assert.False(t, collapsed)
	})

	t.Run("invalid recurring data saves nothing", func(t *testing.T) {
		_, _, err := f.svc.CreateEvent(ctx, event.NewEvent{
			Title:       "Broken",
			EventTypeID: et.ID,
			Recurring:   event.RecurringForm{StartTime: "2025-09-01T10:00", EndTime: "12:00", Days: []int{1}},
		})
		require.Error(t, err)
		events, err := f.svc.QueryEvents(ctx, &event.EventFilter{Search: "Broken"})
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, _, err := f.svc.CreateEvent(ctx, event.NewEvent{Title: "Orphan", EventTypeID: 999})
		fields, ok := core.FieldErrors(err)
		require.True(t, ok)
		assert.Contains(t, fields, "event_type_id")
	})

	t.Run("update appends occurrences", func(t *testing.T) {
		_, added, err := f.svc.UpdateEvent(ctx, e, event.UpdateEvent{
			Recurring: event.RecurringForm{StartTime: "2025-10-06T10:00", EndTime: "12:00", Days: []int{1}, Until: "2025-10-13"},
		})
		require.NoError(t, err)
		assert.Len(t, added, 2)
		all, err := f.svc.QueryOccurrences(ctx, &event.OccurrenceFilter{EventID: e.ID})
		require.NoError(t, err)
		assert.Len(t, all, 7)
	})
}

func TestMonth(t *testing.T) {
	f := setup(t, time.Date(2025, 8, 20, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	e := testutil.CreateEvent(t, f.repo, "Rehearsals", "Rehearsal")
	at := func(m time.Month, d, h int) time.Time { return time.Date(2025, m, d, h, 0, 0, 0, time.UTC) }
	testutil.CreateOccurrence(t, f.repo, e, at(8, 5, 10))
	testutil.CreateOccurrence(t, f.repo, e, at(8, 15, 14))
	testutil.CreateOccurrence(t, f.repo, e, at(8, 15, 18))
	testutil.CreateOccurrence(t, f.repo, e, at(8, 26, 10), true) // break
	testutil.CreateOccurrence(t, f.repo, e, at(9, 1, 14))

	cal, err := f.svc.Month(ctx, 2025, time.August)
	require.NoError(t, err)
	assert.Len(t, cal.Occurrences, 3)
	assert.Equal(t, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), cal.ThisMonth)

	_, err = f.svc.Month(ctx, 2025, 13)
	assert.Equal(t, event.ErrInvalidMonth, err)
}

func TestSignUp(t *testing.T) {
	f := setup(t, time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()
	other := testutil.CreateUser(t, f.usrRepo, "Ben", "Bass", "ben@test.test", "", []string{user.RoleMember}, true)

	e := testutil.CreateEvent(t, f.repo, "Rehearsals", "Rehearsal")
	otherEvent := testutil.CreateEvent(t, f.repo, "Concerts", "Concert")
	past := testutil.CreateOccurrence(t, f.repo, e, time.Date(2025, 9, 30, 18, 0, 0, 0, time.UTC))
	occ := testutil.CreateOccurrence(t, f.repo, e, time.Date(2025, 10, 7, 18, 0, 0, 0, time.UTC))
	foreign := testutil.CreateOccurrence(t, f.repo, otherEvent, time.Date(2025, 10, 8, 18, 0, 0, 0, time.UTC))

	_, upcoming, err := f.svc.Upcoming(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, occ.ID, upcoming[0].ID)

	tests := []struct {
		name   string
		occID  int64
		slot   string
		usr    user.User
		wantOK bool
	}{
		{"opener", occ.ID, event.SlotOpener, f.member, true},
		{"opener taken", occ.ID, event.SlotOpener, other, false},
		{"closer", occ.ID, event.SlotCloser, other, true},
		{"bad role", occ.ID, "conductor", other, false},
		{"unknown occurrence", 999, event.SlotOpener, other, false},
		{"other event", foreign.ID, event.SlotOpener, other, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := f.svc.SignUp(ctx, e.ID, tc.occID, tc.slot, tc.usr)
			require.NoError(t, err)
			assert.Equal(t, tc.wantOK, ok)
		})
	}

	got, err := f.svc.EventOccurrence(ctx, e.ID, occ.ID)
	require.NoError(t, err)
	assert.Equal(t, f.member.ID, got.Opener.ID)
	assert.Equal(t, other.ID, got.Closer.ID)

	_, err = f.svc.EventOccurrence(ctx, e.ID, foreign.ID)
	assert.Equal(t, event.ErrOccurrenceNotFound, err)
	_, err = f.svc.EventOccurrence(ctx, e.ID, past.ID)
	assert.NoError(t, err)

	ok, err := f.svc.Withdraw(ctx, e.ID, occ.ID, event.SlotCloser, other)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPrintableSchedule(t *testing.T) {
	f := setup(t, time.Date(2025, 10, 1, 10, 0, 0, 0, time.UTC))
	e := testutil.CreateEvent(t, f.repo, "Rehearsals", "Rehearsal")
	testutil.CreateOccurrence(t, f.repo, e, time.Date(2025, 9, 23, 18, 0, 0, 0, time.UTC)) // past
	testutil.CreateOccurrence(t, f.repo, e, time.Date(2025, 10, 21, 18, 0, 0, 0, time.UTC))
	testutil.CreateOccurrence(t, f.repo, e, time.Date(2025, 11, 4, 18, 0, 0, 0, time.UTC))

	_, entries, err := f.svc.PrintableSchedule(context.Background(), e.ID)
	require.NoError(t, err)

	var types []string
	for _, en := range entries {
		types = append(types, en.Type)
	}
	assert.Equal(t, []string{event.EntryMonth, event.EntryOccurrence, event.EntryNoRehearsal, event.EntryMonth, event.EntryOccurrence}, types)
	assert.Equal(t, 28, entries[2].DisplayDate.Day())

	_, _, err = f.svc.PrintableSchedule(context.Background(), 999)
	assert.Equal(t, event.ErrNotFound, err)
}

func TestAttendance(t *testing.T) {
	now := time.Date(2025, 10, 7, 12, 0, 0, 0, time.UTC)
	f := setup(t, now)
	ctx := context.Background()

	t.Run("no rehearsal", func(t *testing.T) {
		target, err := f.svc.AttendanceTarget(ctx, f.member)
		require.NoError(t, err)
		assert.Nil(t, target.Occurrence)
	})

	rehearsals := testutil.CreateEvent(t, f.repo, "Tuesday rehearsals", "Rehearsal")
	concerts := testutil.CreateEvent(t, f.repo, "Concerts", "Concert")
	testutil.CreateOccurrence(t, f.repo, concerts, now.Add(time.Hour))
	next := testutil.CreateOccurrence(t, f.repo, rehearsals, now.AddDate(0, 0, 7))

	t.Run("next rehearsal", func(t *testing.T) {
		target, err := f.svc.AttendanceTarget(ctx, f.member)
		require.NoError(t, err)
		require.NotNil(t, target.Occurrence)
		assert.Equal(t, next.ID, target.Occurrence.ID)
	})

	// started this morning, before now
	today := testutil.CreateOccurrence(t, f.repo, rehearsals, now.Add(-2*time.Hour))

	t.Run("today's rehearsal", func(t *testing.T) {
		target, err := f.svc.AttendanceTarget(ctx, f.member)
		require.NoError(t, err)
		require.NotNil(t, target.Occurrence)
		assert.Equal(t, today.ID, target.Occurrence.ID)
		assert.False(t, target.AlreadyAttended)

		require.NoError(t, f.svc.MarkAttendance(ctx, today.ID, f.member))
		require.NoError(t, f.svc.MarkAttendance(ctx, today.ID, f.member))

		target, err = f.svc.AttendanceTarget(ctx, f.member)
		require.NoError(t, err)
		assert.True(t, target.AlreadyAttended)
	})

	t.Run("unknown occurrence", func(t *testing.T) {
		assert.Equal(t, event.ErrOccurrenceNotFound, f.svc.MarkAttendance(ctx, 999, f.member))
	})

	t.Run("export", func(t *testing.T) {
		testutil.CreateUser(t, f.usrRepo, "Gone", "Away", "gone@test.test", "", []string{user.RoleMember}, false)

		_, rows, err := f.svc.AttendanceRegister(ctx, rehearsals.ID)
		require.NoError(t, err)
		require.Len(t, rows, 2) // inactive members without attendance are left out
		assert.Equal(t, []string{"Member", "2025-10-07", "2025-10-14", "Total"}, rows[0])
		assert.Equal(t, []string{"Ann Alto", "✓", "", "1"}, rows[1])

		url, err := f.svc.ExportAttendance(ctx, rehearsals.ID)
		require.NoError(t, err)
		assert.Equal(t, "console://Tuesday_rehearsals", url)
		assert.Contains(t, f.sheets.String(), "Ann Alto")
	})
}
