package event

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/teambition/rrule-go"

	"github.com/humanistchoir/members/core"
)

// MaxOccurrences bounds a single recurrence expansion.
const MaxOccurrences = 1000

var (
	errRecurringIncomplete = errors.New("To create recurring events you must specify a start time, " +
		"end time, days of the week, and either a count or an until date.")
	errCountAndUntil   = errors.New("You can't specify both a count and an end date")
	errTooMany         = errors.Errorf("a recurrence may create at most %d occurrences", MaxOccurrences)
	errInvalidDateTime = "enter a valid date/time"
	errInvalidTime     = "enter a valid time"
	errInvalidDate     = "enter a valid date"
	errInvalidDays     = "days must be ISO weekdays between 1 (Monday) and 7 (Sunday)"
	errInvalidCount    = "count must be a positive number"
	errInvalidFreq     = "frequency must be one of daily, weekly, monthly or yearly"

	isoWeekdays = map[int]rrule.Weekday{
		1: rrule.MO,
		2: rrule.TU,
		3: rrule.WE,
		4: rrule.TH,
		5: rrule.FR,
		6: rrule.SA,
		7: rrule.SU,
	}

	frequencies = map[string]rrule.Frequency{
		"":        rrule.DAILY,
		"daily":   rrule.DAILY,
		"weekly":  rrule.WEEKLY,
		"monthly": rrule.MONTHLY,
		"yearly":  rrule.YEARLY,
	}

	dateTimeLayouts = []string{"2006-01-02T15:04", "2006-01-02T15:04:05", "2006-01-02 15:04", "2006-01-02 15:04:05"}
	timeLayouts     = []string{"15:04", "15:04:05"}
)

// RecurringForm is the "add recurring occurrences" part of the event form.
// Times are wall-clock times in the configured zone.
type RecurringForm struct {
	StartTime string `json:"start_time" yaml:"start_time"` // date and time of the first occurrence
	EndTime   string `json:"end_time" yaml:"end_time"`     // time of day each occurrence ends
	Count     int    `json:"count" yaml:"count"`
	Until     string `json:"until" yaml:"until"` // last date, inclusive
	Days      []int  `json:"days" yaml:"days"`   // ISO weekdays
	Frequency string `json:"frequency" yaml:"frequency"`
	Location  string `json:"location" yaml:"location"`
}

// Rule mirrors the subset of RFC 5545 recurrence rules the admin can express.
type Rule struct {
	Freq     rrule.Frequency
	Count    int
	Until    time.Time
	Weekdays []rrule.Weekday
}

// Recurrence is a cleaned RecurringForm.
type Recurrence struct {
	Start    time.Time
	End      time.Time
	Location string
	Rule     Rule
}

func (f RecurringForm) isEmpty() bool {
	return strings.TrimSpace(f.StartTime) == "" && strings.TrimSpace(f.EndTime) == "" &&
		len(f.Days) == 0 && f.Count == 0 && strings.TrimSpace(f.Until) == ""
}

// Clean validates the form. ok is false when no recurring field was filled in,
// in which case saving the event creates no occurrences.
func (f RecurringForm) Clean(loc *time.Location) (rec Recurrence, ok bool, err error) {
	if f.isEmpty() {
		return Recurrence{}, false, nil
	}

	startStr, endStr, untilStr := core.CleanString(f.StartTime), core.CleanString(f.EndTime), core.CleanString(f.Until)
	if startStr == "" || endStr == "" || len(f.Days) == 0 || (f.Count == 0 && untilStr == "") {
		return Recurrence{}, false, core.NewValidationError(errRecurringIncomplete)
	}
	if f.Count != 0 && untilStr != "" {
		return Recurrence{}, false, core.NewValidationError(errCountAndUntil)
	}

	var fldErrs []core.FieldError
	start, perr := parseInLocation(startStr, dateTimeLayouts, loc)
	if perr != nil {
		fldErrs = append(fldErrs, core.FieldError{Field: "start_time", Error: errInvalidDateTime})
	}
	endClock, perr := parseInLocation(endStr, timeLayouts, time.UTC)
	if perr != nil {
		fldErrs = append(fldErrs, core.FieldError{Field: "end_time", Error: errInvalidTime})
	}
	var untilDate time.Time
	if untilStr != "" {
		if untilDate, perr = time.ParseInLocation("2006-01-02", untilStr, loc); perr != nil {
			fldErrs = append(fldErrs, core.FieldError{Field: "until", Error: errInvalidDate})
		}
	}
	if f.Count < 0 {
		fldErrs = append(fldErrs, core.FieldError{Field: "count", Error: errInvalidCount})
	}
	weekdays := make([]rrule.Weekday, 0, len(f.Days))
	for _, d := range f.Days {
		wd, known := isoWeekdays[d]
		if !known {
			fldErrs = append(fldErrs, core.FieldError{Field: "days", Error: errInvalidDays})
			break
		}
		weekdays = append(weekdays, wd)
	}
	freq, known := frequencies[strings.ToLower(core.CleanString(f.Frequency))]
	if !known {
		fldErrs = append(fldErrs, core.FieldError{Field: "frequency", Error: errInvalidFreq})
	}
	if len(fldErrs) > 0 {
		return Recurrence{}, false, core.NewValidationError(nil, fldErrs...)
	}

	rec = Recurrence{
		Start:    start,
		End:      combine(start, endClock, loc),
		Location: core.CleanString(f.Location),
		Rule: Rule{
			Freq:     freq,
			Count:    f.Count,
			Weekdays: weekdays,
		},
	}
	if !untilDate.IsZero() {
		rec.Rule.Until = combine(untilDate, endClock, loc)
	}
	return rec, true, nil
}

func parseInLocation(value string, layouts []string, loc *time.Location) (time.Time, error) {
	var err error
	for _, layout := range layouts {
		var t time.Time
		if t, err = time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	if t, rerr := time.Parse(time.RFC3339, value); rerr == nil {
		return t.In(loc), nil
	}
	return time.Time{}, err
}

// combine joins the calendar date of day with the clock time of clock, in loc.
func combine(day, clock time.Time, loc *time.Location) time.Time {
	day = day.In(loc)
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, loc)
}

// Expand lists the occurrences described by start/end and rule.
// Without a count or until date there is exactly one occurrence spanning start..end.
// Otherwise every rule instant from start gets an occurrence of the same length.
func Expand(start, end time.Time, location string, rule Rule) ([]Occurrence, error) {
	if rule.Count == 0 && rule.Until.IsZero() {
		return []Occurrence{{Start: start, End: end, Location: location}}, nil
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rule.Freq,
		Dtstart:   start,
		Count:     rule.Count,
		Until:     rule.Until,
		Byweekday: rule.Weekdays,
	})
	if err != nil {
		return nil, errors.Wrap(err, "building recurrence rule")
	}

	delta := end.Sub(start)
	occs := make([]Occurrence, 0)
	iter := r.Iterator()
	for ev, more := iter(); more; ev, more = iter() {
		if len(occs) == MaxOccurrences {
			return nil, core.NewValidationError(errTooMany)
		}
		occs = append(occs, Occurrence{Start: ev, End: ev.Add(delta), Location: location})
	}
	return occs, nil
}

// Expand lists the occurrences a cleaned recurrence would add to the event.
func (rec Recurrence) Expand() ([]Occurrence, error) {
	return Expand(rec.Start, rec.End, rec.Location, rec.Rule)
}
