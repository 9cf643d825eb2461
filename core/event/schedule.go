package event

import "time"

// Schedule entry types
const (
	EntryMonth       = "month"
	EntryOccurrence  = "occurrence"
	EntryNoRehearsal = "no_rehearsal"
)

type ScheduleEntry struct {
	Type       string
	Month      time.Time   // EntryMonth: first of the month
	Occurrence *Occurrence // EntryOccurrence

	// EntryNoRehearsal
	WeekStart   time.Time // Monday
	WeekEnd     time.Time // Sunday
	DisplayDate time.Time // the usual rehearsal weekday within the week
}

func (e ScheduleEntry) date() time.Time {
	if e.Type == EntryOccurrence {
		return e.Occurrence.Start
	}
	return e.DisplayDate
}

// weekStart returns the Monday starting t's ISO week, at midnight in loc.
func weekStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
}

// BuildSchedule interleaves occs (sorted by start) with a no-rehearsal entry for every
// Monday-Sunday week that falls strictly between two consecutive occurrences,
// and a month header whenever the month changes.
func BuildSchedule(occs []Occurrence, loc *time.Location) []ScheduleEntry {
	items := make([]ScheduleEntry, 0, len(occs))
	for i := range occs {
		occ := &occs[i]
		if i > 0 {
			prev := occs[i-1].Start.In(loc)
			isoOffset := (int(prev.Weekday()) + 6) % 7
			curWeek := weekStart(occ.Start, loc)
			for w := weekStart(prev, loc).AddDate(0, 0, 7); w.Before(curWeek); w = w.AddDate(0, 0, 7) {
				items = append(items, ScheduleEntry{
					Type:        EntryNoRehearsal,
					WeekStart:   w,
					WeekEnd:     w.AddDate(0, 0, 6),
					DisplayDate: w.AddDate(0, 0, isoOffset),
				})
			}
		}
		items = append(items, ScheduleEntry{Type: EntryOccurrence, Occurrence: occ})
	}

	entries := make([]ScheduleEntry, 0, len(items)+12)
	var lastYear int
	var lastMonth time.Month
	for _, item := range items {
		d := item.date().In(loc)
		if d.Year() != lastYear || d.Month() != lastMonth {
			lastYear, lastMonth = d.Year(), d.Month()
			entries = append(entries, ScheduleEntry{
				Type:  EntryMonth,
				Month: time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, loc),
			})
		}
		entries = append(entries, item)
	}
	return entries
}
