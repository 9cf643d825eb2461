package event

import (
	"strings"
	"time"

	"github.com/humanistchoir/members/core"
	"github.com/humanistchoir/members/core/user"
)

// Sign-up slots
const (
	SlotOpener = "opener"
	SlotCloser = "closer"
)

type EventType struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

func (et EventType) String() string { return et.Label }

type Event struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	EventTypeID int64     `json:"event_type_id"`
	EventType   EventType `json:"event_type"`
	Details     string    `json:"details"` // markdown
}

func (e Event) String() string { return e.Title }

type Occurrence struct {
	ID        int64      `json:"id"`
	EventID   int64      `json:"event_id"`
	Event     Event      `json:"-"`
	Location  string     `json:"location"`
	Start     time.Time  `json:"start_time"`
	End       time.Time  `json:"end_time"` // zero when open-ended
	AllDay    bool       `json:"all_day"`
	IsBreak   bool       `json:"is_break"`
	Details   string     `json:"details"` // markdown
	Opener    *user.User `json:"opener"`
	Closer    *user.User `json:"closer"`
	Attending int        `json:"attending"`
}

func (o Occurrence) String() string {
	return o.Event.Title + " on " + o.Start.Format("2006-01-02 15:04")
}

func (o Occurrence) Title() string { return o.Event.Title }

func (o Occurrence) EventType() EventType { return o.Event.EventType }

// AllDetails merges event details, location, occurrence details and who opens/closes,
// separated by blank lines (markdown paragraphs).
func (o Occurrence) AllDetails() string {
	parts := []string{o.Event.Details, o.Location, o.Details}
	openClose := make([]string, 0, 2)
	if o.Opener != nil {
		openClose = append(openClose, "Open: "+o.Opener.FirstName+" "+o.Opener.LastName)
	}
	if o.Closer != nil {
		openClose = append(openClose, "Close: "+o.Closer.FirstName+" "+o.Closer.LastName)
	}
	if len(openClose) > 0 {
		parts = append(parts, strings.Join(openClose, "  \n"))
	}

	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}

// Slot returns who holds the given sign-up slot.
func (o Occurrence) Slot(role string) *user.User {
	switch role {
	case SlotOpener:
		return o.Opener
	case SlotCloser:
		return o.Closer
	}
	return nil
}

func (o *Occurrence) localize(loc *time.Location) {
	o.Start = o.Start.In(loc)
	if !o.End.IsZero() {
		o.End = o.End.In(loc)
	}
}

type NewEventType struct {
	Label string `json:"label" validate:"required,notblank,max=100"`
}

func (net *NewEventType) Validate() error {
	net.Label = core.CleanString(net.Label)
	return core.Validate.Struct(net)
}

type NewEvent struct {
	Title       string        `json:"title" yaml:"title" validate:"required,notblank,max=255"`
	Description string        `json:"description" yaml:"description" validate:"max=255"`
	EventTypeID int64         `json:"event_type_id" yaml:"-" validate:"required"`
	Details     string        `json:"details" yaml:"details"`
	Recurring   RecurringForm `json:"recurring" yaml:"recurring"`
}

func (ne *NewEvent) Validate() error {
	ne.Title = core.CleanString(ne.Title)
	ne.Description = core.CleanString(ne.Description)
	return core.Validate.Struct(ne)
}

type UpdateEvent struct {
	Title       string        `json:"title" validate:"omitempty,max=255"`
	Description *string       `json:"description" validate:"omitempty,max=255"`
	EventTypeID int64         `json:"event_type_id"`
	Details     *string       `json:"details"`
	Recurring   RecurringForm `json:"recurring"`
}

func (ue *UpdateEvent) Validate(orig Event) error {
	if title := core.CleanString(ue.Title); title != "" {
		ue.Title = title
	} else {
		ue.Title = orig.Title
	}
	if ue.EventTypeID == 0 {
		ue.EventTypeID = orig.EventTypeID
	}
	return core.Validate.Struct(ue)
}

type NewOccurrence struct {
	EventID  int64     `json:"event_id" validate:"required"`
	Location string    `json:"location" validate:"max=255"`
	Start    time.Time `json:"start_time" validate:"required"`
	End      time.Time `json:"end_time"`
	AllDay   bool      `json:"all_day"`
	IsBreak  bool      `json:"is_break"`
	Details  string    `json:"details"`
}

func (no *NewOccurrence) Validate() error {
	no.Location = core.CleanString(no.Location)
	if err := core.Validate.Struct(no); err != nil {
		return err
	}
	return validateTimes(no.Start, no.End)
}

type UpdateOccurrence struct {
	Location *string   `json:"location" validate:"omitempty,max=255"`
	Start    time.Time `json:"start_time"`
	End      time.Time `json:"end_time"`
	AllDay   *bool     `json:"all_day"`
	IsBreak  *bool     `json:"is_break"`
	Details  *string   `json:"details"`
	OpenerID *int64    `json:"opener_id"` // 0 clears the slot
	CloserID *int64    `json:"closer_id"`
}

func validateTimes(start, end time.Time) error {
	if !end.IsZero() && end.Before(start) {
		return core.NewValidationError(nil, core.FieldError{Field: "end_time", Error: "end time must not be before start time"})
	}
	return nil
}

type EventFilter struct {
	Search      string `query:"search"`
	EventTypeID int64  `query:"event_type"`
}

type OccurrenceFilter struct {
	EventID        int64     `query:"event"`
	From           time.Time `query:"from"` // start >= From
	To             time.Time `query:"to"`   // start < To
	ExcludeBreaks  bool      `query:"-"`
	EventTypeLabel string    `query:"-"`
	Limit          int       `query:"-"`
}
