package event

import "time"

type CalendarDay struct {
	Day         int          // 0 pads days outside the month
	Occurrences []Occurrence // starting that day
}

type MonthCalendar struct {
	Weeks       [][]CalendarDay // Monday first
	ThisMonth   time.Time
	NextMonth   time.Time
	LastMonth   time.Time
	Today       time.Time
	Occurrences []Occurrence
}

// monthBounds returns [first of month, first of next month) in loc.
func monthBounds(year int, month time.Month, loc *time.Location) (time.Time, time.Time) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return first, first.AddDate(0, 1, 0)
}

// BuildMonth lays out occs (already restricted to the month, breaks excluded) on a month grid.
func BuildMonth(year int, month time.Month, occs []Occurrence, now time.Time, loc *time.Location) MonthCalendar {
	first, _ := monthBounds(year, month, loc)
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()

	byDay := make(map[int][]Occurrence)
	for _, o := range occs {
		d := o.Start.In(loc).Day()
		byDay[d] = append(byDay[d], o)
	}

	offset := (int(first.Weekday()) + 6) % 7 // days before the 1st in its Monday-first week
	weeks := make([][]CalendarDay, 0, 6)
	week := make([]CalendarDay, offset, 7)
	for day := 1; day <= lastDay; day++ {
		week = append(week, CalendarDay{Day: day, Occurrences: byDay[day]})
		if len(week) == 7 {
			weeks = append(weeks, week)
			week = make([]CalendarDay, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, CalendarDay{})
		}
		weeks = append(weeks, week)
	}

	return MonthCalendar{
		Weeks:       weeks,
		ThisMonth:   first,
		NextMonth:   first.AddDate(0, 0, lastDay),
		LastMonth:   first.AddDate(0, 0, -1),
		Today:       now.In(loc),
		Occurrences: occs,
	}
}
