package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"

	"github.com/humanistchoir/members/core"
)

func TestRecurringFormClean(t *testing.T) {
	tests := []struct {
		name      string
		form      RecurringForm
		wantOK    bool
		wantEnd   time.Time
		wantUntil time.Time
		wantAll   string
		wantField string
	}{
		{
			name:    "all required fields",
			form:    RecurringForm{StartTime: "2025-09-01T10:00:00", EndTime: "12:00", Days: []int{1, 3, 5}, Count: 5},
			wantOK:  true,
			wantEnd: time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			name:      "until date",
			form:      RecurringForm{StartTime: "2025-09-01 10:00", EndTime: "12:00", Days: []int{2, 4}, Until: "2025-12-31"},
			wantOK:    true,
			wantEnd:   time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC),
			wantUntil: time.Date(2025, 12, 31, 12, 0, 0, 0, time.UTC),
		},
		{
			name: "no recurring fields",
			form: RecurringForm{Location: "Conway Hall"},
		},
		{
			name:    "missing start time",
			form:    RecurringForm{EndTime: "12:00", Days: []int{1, 3, 5}, Count: 5},
			wantAll: "To create recurring events you must specify",
		},
		{
			name:    "missing end time",
			form:    RecurringForm{StartTime: "2025-09-01T10:00", Days: []int{1, 3, 5}, Count: 5},
			wantAll: "To create recurring events you must specify",
		},
		{
			name:    "missing days",
			form:    RecurringForm{StartTime: "2025-09-01T10:00", EndTime: "12:00", Count: 5},
			wantAll: "To create recurring events you must specify",
		},
		{
			name:    "missing count and until",
			form:    RecurringForm{StartTime: "2025-09-01T10:00", EndTime: "12:00", Days: []int{1, 3, 5}},
			wantAll: "To create recurring events you must specify",
		},
		{
			name:    "count and until",
			form:    RecurringForm{StartTime: "2025-09-01T10:00", EndTime: "12:00", Days: []int{1}, Count: 5, Until: "2025-12-31"},
			wantAll: "You can't specify both a count and an end date",
		},
		{
			name:      "bad weekday",
			form:      RecurringForm{StartTime: "2025-09-01T10:00", EndTime: "12:00", Days: []int{8}, Count: 5},
			wantField: "days",
		},
		{
			name:      "bad start",
			form:      RecurringForm{StartTime: "next monday", EndTime: "12:00", Days: []int{1}, Count: 5},
			wantField: "start_time",
		},
		{
			name:      "bad frequency",
			form:      RecurringForm{StartTime: "2025-09-01T10:00", EndTime: "12:00", Days: []int{1}, Count: 5, Frequency: "hourly"},
			wantField: "frequency",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, ok, err := tc.form.Clean(time.UTC)
			if tc.wantAll != "" || tc.wantField != "" {
				require.Error(t, err)
				fields, isValidation := core.FieldErrors(err)
				require.True(t, isValidation)
				if tc.wantAll != "" {
					assert.Contains(t, fields["__all__"], tc.wantAll)
				} else {
					assert.Contains(t, fields, tc.wantField)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantOK, ok)
			if !ok {
				return
			}
			assert.True(t, rec.End.Equal(tc.wantEnd), "end: %s", rec.End)
			assert.True(t, rec.Rule.Until.Equal(tc.wantUntil), "until: %s", rec.Rule.Until)
		})
	}
}

func TestRecurrenceExpandWeekdays(t *testing.T) {
	form := RecurringForm{StartTime: "2025-09-01T10:00", EndTime: "12:00", Days: []int{1, 3, 5}, Count: 5, Location: "Conway Hall"}
	rec, ok, err := form.Clean(time.UTC)
	require.NoError(t, err)
	require.True(t, ok)

	occs, err := rec.Expand()
	require.NoError(t, err)
	require.Len(t, occs, 5)

	wantDays := []int{1, 3, 5, 8, 10}
	for i, occ := range occs {
		assert.Equal(t, wantDays[i], occ.Start.Day())
		assert.Equal(t, 2*time.Hour, occ.End.Sub(occ.Start))
		assert.Equal(t, "Conway Hall", occ.Location)
	}
}

func TestExpand(t *testing.T) {
	start := time.Date(2025, 3, 10, 19, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	t.Run("single", func(t *testing.T) {
		occs, err := Expand(start, end, "Room 1", Rule{})
		require.NoError(t, err)
		require.Len(t, occs, 1)
		assert.Equal(t, start, occs[0].Start)
		assert.Equal(t, end, occs[0].End)
		assert.Equal(t, "Room 1", occs[0].Location)
	})

	t.Run("count", func(t *testing.T) {
		occs, err := Expand(start, end, "Hall", Rule{Freq: rrule.DAILY, Count: 3})
		require.NoError(t, err)
		require.Len(t, occs, 3)
		assert.Equal(t, 24*time.Hour, occs[1].Start.Sub(occs[0].Start))
		assert.Equal(t, 24*time.Hour, occs[2].Start.Sub(occs[1].Start))
	})

	t.Run("until is inclusive", func(t *testing.T) {
		occs, err := Expand(start, end, "Library", Rule{Freq: rrule.DAILY, Until: start.AddDate(0, 0, 2)})
		require.NoError(t, err)
		require.Len(t, occs, 3)
		for _, occ := range occs {
			assert.Equal(t, "Library", occ.Location)
			assert.Equal(t, time.Hour, occ.End.Sub(occ.Start))
		}
	})

	t.Run("too many", func(t *testing.T) {
		_, err := Expand(start, end, "", Rule{Freq: rrule.DAILY, Count: MaxOccurrences + 1})
		require.Error(t, err)
		_, isValidation := core.FieldErrors(err)
		assert.True(t, isValidation)
	})
}
