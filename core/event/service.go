package event

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/humanistchoir/members/core"
	"github.com/humanistchoir/members/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("event not found")
	ErrTypeNotFound       = errors.New("event type not found")
	ErrOccurrenceNotFound = errors.New("occurrence not found")
	ErrLabelExists        = errors.New("event type with this label already exists")
	ErrInvalidMonth       = errors.New("invalid month")
)

type (
	Repository interface {
		CreateEventType(ctx context.Context, et EventType) (EventType, error)
		QueryEventTypes(ctx context.Context) ([]EventType, error)
		GetEventTypeByID(ctx context.Context, id int64) (EventType, error)
		GetEventTypeByLabel(ctx context.Context, label string) (EventType, error)
		DeleteEventTypesByID(ctx context.Context, ids ...int64) (int, error)

		// CreateEvent stores the event and its occurrences atomically.
		CreateEvent(ctx context.Context, e Event, occs []Occurrence) (Event, []Occurrence, error)
		QueryEvents(ctx context.Context, filter *EventFilter) ([]Event, error)
		GetEventByID(ctx context.Context, id int64) (Event, error)
		// UpdateEvent saves the event and appends occs atomically.
		UpdateEvent(ctx context.Context, e Event, occs []Occurrence) (Event, []Occurrence, error)
		DeleteEventsByID(ctx context.Context, ids ...int64) (int, error)

		CountOccurrences(ctx context.Context, eventID int64) (int, error)
		CreateOccurrence(ctx context.Context, occ Occurrence) (Occurrence, error)
		// QueryOccurrences returns occurrences ordered by start, with event, type, opener and closer loaded.
		QueryOccurrences(ctx context.Context, filter *OccurrenceFilter) ([]Occurrence, error)
		GetOccurrenceByID(ctx context.Context, id int64) (Occurrence, error)
		UpdateOccurrence(ctx context.Context, occ Occurrence) (Occurrence, error)
		DeleteOccurrencesByID(ctx context.Context, ids ...int64) (int, error)

		// ClaimSlot sets the slot to userID only if it is empty; it reports whether it did.
		ClaimSlot(ctx context.Context, eventID, occID int64, slot string, userID int64) (bool, error)
		// ReleaseSlot empties the slot only if userID holds it.
		ReleaseSlot(ctx context.Context, eventID, occID int64, slot string, userID int64) (bool, error)

		AddAttendee(ctx context.Context, occID, userID int64) error
		HasAttended(ctx context.Context, occID, userID int64) (bool, error)
		// QueryAttendance maps occurrence ids of the event to attendee user ids.
		QueryAttendance(ctx context.Context, eventID int64) (map[int64][]int64, error)
	}

	Service struct {
		repo   Repository
		usrSvc *user.Service
		sheets core.SheetWriter
		conf   *core.Config
	}
)

func NewService(repo Repository, usrSvc *user.Service, sheets core.SheetWriter, conf *core.Config) *Service {
	return &Service{repo: repo, usrSvc: usrSvc, sheets: sheets, conf: conf}
}

func (svc *Service) loc() *time.Location {
	if svc.conf.Location == nil {
		return time.UTC
	}
	return svc.conf.Location
}

func (svc *Service) localize(occs []Occurrence) []Occurrence {
	for i := range occs {
		occs[i].localize(svc.loc())
	}
	return occs
}

// Event types

func (svc *Service) ListTypes(ctx context.Context) ([]EventType, error) {
	return svc.repo.QueryEventTypes(ctx)
}

func (svc *Service) CreateType(ctx context.Context, net NewEventType) (EventType, error) {
	if err := net.Validate(); err != nil {
		return EventType{}, err
	}
	if _, err := svc.repo.GetEventTypeByLabel(ctx, net.Label); err == nil {
		return EventType{}, core.NewValidationError(nil, core.FieldError{Field: "label", Error: ErrLabelExists.Error()})
	} else if errors.Cause(err) != ErrTypeNotFound {
		return EventType{}, errors.Wrap(err, "finding event type")
	}
	et, err := svc.repo.CreateEventType(ctx, EventType{Label: net.Label})
	return et, errors.Wrap(err, "creating event type")
}

// EnsureType returns the event type with label, creating it if needed.
func (svc *Service) EnsureType(ctx context.Context, label string) (EventType, error) {
	label = core.CleanString(label)
	et, err := svc.repo.GetEventTypeByLabel(ctx, label)
	if errors.Cause(err) == ErrTypeNotFound {
		return svc.CreateType(ctx, NewEventType{Label: label})
	}
	return et, err
}

func (svc *Service) DeleteTypes(ctx context.Context, ids ...int64) (int, error) {
	return svc.repo.DeleteEventTypesByID(ctx, ids...)
}

// Events

func (svc *Service) QueryEvents(ctx context.Context, filter *EventFilter) ([]Event, error) {
	return svc.repo.QueryEvents(ctx, filter)
}

func (svc *Service) GetEvent(ctx context.Context, id int64) (Event, error) {
	return svc.repo.GetEventByID(ctx, id)
}

// HasOccurrences tells the admin form to collapse the recurring section.
func (svc *Service) HasOccurrences(ctx context.Context, eventID int64) (bool, error) {
	n, err := svc.repo.CountOccurrences(ctx, eventID)
	return n > 0, err
}

func (svc *Service) recurringOccurrences(form RecurringForm) ([]Occurrence, error) {
	rec, ok, err := form.Clean(svc.loc())
	if err != nil || !ok {
		return nil, err
	}
	return rec.Expand()
}

func (svc *Service) checkType(ctx context.Context, id int64) error {
	if _, err := svc.repo.GetEventTypeByID(ctx, id); err != nil {
		if errors.Cause(err) == ErrTypeNotFound {
			return core.NewValidationError(nil, core.FieldError{Field: "event_type_id", Error: ErrTypeNotFound.Error()})
		}
		return errors.Wrap(err, "finding event type")
	}
	return nil
}

// CreateEvent saves the event together with the occurrences its recurring form describes.
func (svc *Service) CreateEvent(ctx context.Context, ne NewEvent) (Event, []Occurrence, error) {
	if err := ne.Validate(); err != nil {
		return Event{}, nil, err
	}
	if err := svc.checkType(ctx, ne.EventTypeID); err != nil {
		return Event{}, nil, err
	}
	occs, err := svc.recurringOccurrences(ne.Recurring)
	if err != nil {
		return Event{}, nil, err
	}

	e, occs, err := svc.repo.CreateEvent(ctx, Event{
		Title:       ne.Title,
		Description: ne.Description,
		EventTypeID: ne.EventTypeID,
		Details:     ne.Details,
	}, occs)
	if err != nil {
		return Event{}, nil, errors.Wrap(err, "creating event")
	}
	return e, svc.localize(occs), nil
}

// UpdateEvent saves changes and appends any occurrences described by the recurring form.
func (svc *Service) UpdateEvent(ctx context.Context, orig Event, ue UpdateEvent) (Event, []Occurrence, error) {
	if err := ue.Validate(orig); err != nil {
		return Event{}, nil, err
	}
	if ue.EventTypeID != orig.EventTypeID {
		if err := svc.checkType(ctx, ue.EventTypeID); err != nil {
			return Event{}, nil, err
		}
	}
	occs, err := svc.recurringOccurrences(ue.Recurring)
	if err != nil {
		return Event{}, nil, err
	}

	e := orig
	e.Title = ue.Title
	e.EventTypeID = ue.EventTypeID
	if ue.Description != nil {
		e.Description = core.CleanString(*ue.Description)
	}
	if ue.Details != nil {
		e.Details = *ue.Details
	}
	e, occs, err = svc.repo.UpdateEvent(ctx, e, occs)
	if err != nil {
		return Event{}, nil, errors.Wrap(err, "updating event")
	}
	return e, svc.localize(occs), nil
}

func (svc *Service) DeleteEvents(ctx context.Context, ids ...int64) (int, error) {
	return svc.repo.DeleteEventsByID(ctx, ids...)
}

// Occurrences

func (svc *Service) QueryOccurrences(ctx context.Context, filter *OccurrenceFilter) ([]Occurrence, error) {
	occs, err := svc.repo.QueryOccurrences(ctx, filter)
	if err != nil {
		return nil, err
	}
	return svc.localize(occs), nil
}

func (svc *Service) GetOccurrence(ctx context.Context, id int64) (Occurrence, error) {
	occ, err := svc.repo.GetOccurrenceByID(ctx, id)
	if err != nil {
		return Occurrence{}, err
	}
	occ.localize(svc.loc())
	return occ, nil
}

func (svc *Service) CreateOccurrence(ctx context.Context, no NewOccurrence) (Occurrence, error) {
	if err := no.Validate(); err != nil {
		return Occurrence{}, err
	}
	if _, err := svc.repo.GetEventByID(ctx, no.EventID); err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Occurrence{}, core.NewValidationError(nil, core.FieldError{Field: "event_id", Error: ErrNotFound.Error()})
		}
		return Occurrence{}, errors.Wrap(err, "finding event")
	}
	occ, err := svc.repo.CreateOccurrence(ctx, Occurrence{
		EventID:  no.EventID,
		Location: no.Location,
		Start:    no.Start,
		End:      no.End,
		AllDay:   no.AllDay,
		IsBreak:  no.IsBreak,
		Details:  no.Details,
	})
	if err != nil {
		return Occurrence{}, errors.Wrap(err, "creating occurrence")
	}
	return svc.GetOccurrence(ctx, occ.ID)
}

func (svc *Service) UpdateOccurrence(ctx context.Context, orig Occurrence, uo UpdateOccurrence) (Occurrence, error) {
	if err := core.Validate.Struct(uo); err != nil {
		return Occurrence{}, err
	}
	occ := orig
	if uo.Location != nil {
		occ.Location = core.CleanString(*uo.Location)
	}
	if !uo.Start.IsZero() {
		occ.Start = uo.Start
	}
	if !uo.End.IsZero() {
		occ.End = uo.End
	}
	if uo.AllDay != nil {
		occ.AllDay = *uo.AllDay
	}
	if uo.IsBreak != nil {
		occ.IsBreak = *uo.IsBreak
	}
	if uo.Details != nil {
		occ.Details = *uo.Details
	}
	var err error
	if occ.Opener, err = svc.slotUser(ctx, "opener_id", uo.OpenerID, occ.Opener); err != nil {
		return Occurrence{}, err
	}
	if occ.Closer, err = svc.slotUser(ctx, "closer_id", uo.CloserID, occ.Closer); err != nil {
		return Occurrence{}, err
	}
	if err := validateTimes(occ.Start, occ.End); err != nil {
		return Occurrence{}, err
	}
	if _, err := svc.repo.UpdateOccurrence(ctx, occ); err != nil {
		return Occurrence{}, errors.Wrap(err, "updating occurrence")
	}
	return svc.GetOccurrence(ctx, occ.ID)
}

func (svc *Service) slotUser(ctx context.Context, field string, id *int64, curr *user.User) (*user.User, error) {
	if id == nil {
		return curr, nil
	}
	if *id == 0 {
		return nil, nil
	}
	usr, err := svc.usrSvc.GetByID(ctx, *id)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil, core.NewValidationError(nil, core.FieldError{Field: field, Error: user.ErrNotFound.Error()})
		}
		return nil, errors.Wrap(err, "finding user")
	}
	return &usr, nil
}

func (svc *Service) DeleteOccurrences(ctx context.Context, ids ...int64) (int, error) {
	return svc.repo.DeleteOccurrencesByID(ctx, ids...)
}

// Member views

// Month returns the calendar grid for a month; break occurrences are left out.
func (svc *Service) Month(ctx context.Context, year int, month time.Month) (MonthCalendar, error) {
	if month < time.January || month > time.December || year < 1 || year > 9999 {
		return MonthCalendar{}, ErrInvalidMonth
	}
	from, to := monthBounds(year, month, svc.loc())
	occs, err := svc.QueryOccurrences(ctx, &OccurrenceFilter{From: from, To: to, ExcludeBreaks: true})
	if err != nil {
		return MonthCalendar{}, errors.Wrap(err, "querying occurrences")
	}
	return BuildMonth(year, month, occs, core.NowFunc(), svc.loc()), nil
}

// EventOccurrence finds an occurrence only if it belongs to the event.
func (svc *Service) EventOccurrence(ctx context.Context, eventID, occID int64) (Occurrence, error) {
	occ, err := svc.GetOccurrence(ctx, occID)
	if err != nil {
		return Occurrence{}, err
	}
	if occ.EventID != eventID {
		return Occurrence{}, ErrOccurrenceNotFound
	}
	return occ, nil
}

// Upcoming returns the event and its occurrences starting from now on.
func (svc *Service) Upcoming(ctx context.Context, eventID int64) (Event, []Occurrence, error) {
	e, err := svc.repo.GetEventByID(ctx, eventID)
	if err != nil {
		return Event{}, nil, err
	}
	occs, err := svc.QueryOccurrences(ctx, &OccurrenceFilter{EventID: eventID, From: core.NowFunc()})
	if err != nil {
		return Event{}, nil, errors.Wrap(err, "querying occurrences")
	}
	return e, occs, nil
}

// SignUp gives usr an empty opener/closer slot. Unknown occurrences, occurrences of other
// events, unknown slots and taken slots are ignored.
func (svc *Service) SignUp(ctx context.Context, eventID, occID int64, slot string, usr user.User) (bool, error) {
	if slot != SlotOpener && slot != SlotCloser {
		return false, nil
	}
	ok, err := svc.repo.ClaimSlot(ctx, eventID, occID, slot, usr.ID)
	return ok, errors.Wrap(err, "claiming slot")
}

// Withdraw releases a slot held by usr.
func (svc *Service) Withdraw(ctx context.Context, eventID, occID int64, slot string, usr user.User) (bool, error) {
	if slot != SlotOpener && slot != SlotCloser {
		return false, nil
	}
	ok, err := svc.repo.ReleaseSlot(ctx, eventID, occID, slot, usr.ID)
	return ok, errors.Wrap(err, "releasing slot")
}

// PrintableSchedule lists upcoming occurrences grouped by month, flagging weeks without one.
func (svc *Service) PrintableSchedule(ctx context.Context, eventID int64) (Event, []ScheduleEntry, error) {
	e, occs, err := svc.Upcoming(ctx, eventID)
	if err != nil {
		return Event{}, nil, err
	}
	return e, BuildSchedule(occs, svc.loc()), nil
}

type AttendanceTarget struct {
	Occurrence      *Occurrence
	AlreadyAttended bool
}

// AttendanceTarget picks today's rehearsal, else the next one.
func (svc *Service) AttendanceTarget(ctx context.Context, usr user.User) (AttendanceTarget, error) {
	now := core.NowFunc()
	today := core.StartOfDay(now, svc.loc())
	label := svc.conf.RehearsalEventType

	occs, err := svc.QueryOccurrences(ctx, &OccurrenceFilter{
		EventTypeLabel: label, From: today, To: today.AddDate(0, 0, 1), Limit: 1,
	})
	if err != nil {
		return AttendanceTarget{}, errors.Wrap(err, "querying today's rehearsal")
	}
	if len(occs) == 0 {
		if occs, err = svc.QueryOccurrences(ctx, &OccurrenceFilter{EventTypeLabel: label, From: now, Limit: 1}); err != nil {
			return AttendanceTarget{}, errors.Wrap(err, "querying next rehearsal")
		}
	}
	if len(occs) == 0 {
		return AttendanceTarget{}, nil
	}

	target := AttendanceTarget{Occurrence: &occs[0]}
	if target.AlreadyAttended, err = svc.repo.HasAttended(ctx, occs[0].ID, usr.ID); err != nil {
		return AttendanceTarget{}, errors.Wrap(err, "checking attendance")
	}
	return target, nil
}

// MarkAttendance records usr at the occurrence; repeated marks are no-ops.
func (svc *Service) MarkAttendance(ctx context.Context, occID int64, usr user.User) error {
	if _, err := svc.repo.GetOccurrenceByID(ctx, occID); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.AddAttendee(ctx, occID, usr.ID), "adding attendee")
}

// AttendanceRegister builds a member x occurrence grid for the event.
func (svc *Service) AttendanceRegister(ctx context.Context, eventID int64) (Event, [][]string, error) {
	e, err := svc.repo.GetEventByID(ctx, eventID)
	if err != nil {
		return Event{}, nil, err
	}
	occs, err := svc.QueryOccurrences(ctx, &OccurrenceFilter{EventID: eventID, ExcludeBreaks: true})
	if err != nil {
		return Event{}, nil, errors.Wrap(err, "querying occurrences")
	}
	attendance, err := svc.repo.QueryAttendance(ctx, eventID)
	if err != nil {
		return Event{}, nil, errors.Wrap(err, "querying attendance")
	}
	members, err := svc.usrSvc.Query(ctx, nil, []core.DBOrdering{
		{Field: "last_name", Ascending: true}, {Field: "first_name", Ascending: true},
	})
	if err != nil {
		return Event{}, nil, errors.Wrap(err, "querying members")
	}

	attended := make(map[int64]map[int64]bool, len(attendance))
	for occID, userIDs := range attendance {
		attended[occID] = make(map[int64]bool, len(userIDs))
		for _, id := range userIDs {
			attended[occID][id] = true
		}
	}

	header := make([]string, 0, len(occs)+2)
	header = append(header, "Member")
	for _, o := range occs {
		header = append(header, o.Start.Format("2006-01-02"))
	}
	header = append(header, "Total")

	rows := [][]string{header}
	for _, m := range members {
		row := make([]string, 0, len(header))
		row = append(row, m.DisplayName())
		var total int
		for _, o := range occs {
			if attended[o.ID][m.ID] {
				row = append(row, "✓")
				total++
			} else {
				row = append(row, "")
			}
		}
		if total == 0 && !m.IsActive {
			continue
		}
		row = append(row, fmt.Sprint(total))
		rows = append(rows, row)
	}
	return e, rows, nil
}

// ExportAttendance writes the register to a sheet named after the event and returns its link.
func (svc *Service) ExportAttendance(ctx context.Context, eventID int64) (string, error) {
	e, rows, err := svc.AttendanceRegister(ctx, eventID)
	if err != nil {
		return "", err
	}
	url, err := svc.sheets.WriteSheet(ctx, e.Title, rows)
	return url, errors.Wrap(err, "writing sheet")
}
