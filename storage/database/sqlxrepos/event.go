package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/humanistchoir/members/core/event"
	"github.com/humanistchoir/members/core/user"
)

const (
	eventColumns = `e.id, e.title, e.description, e.event_type_id, e.details, et.label AS event_type_label`
	eventFrom    = ` FROM events e JOIN event_types et ON et.id = e.event_type_id`

	occurrenceSelect = `SELECT o.id, o.event_id, o.location, o.start_time, o.end_time, o.all_day, o.is_break,
	o.details, o.opener_id, o.closer_id,
	e.title AS event_title, e.description AS event_description, e.event_type_id, e.details AS event_details,
	et.label AS event_type_label,
	op.first_name AS opener_first_name, op.last_name AS opener_last_name, op.email AS opener_email,
	cl.first_name AS closer_first_name, cl.last_name AS closer_last_name, cl.email AS closer_email,
	(SELECT COUNT(*) FROM occurrence_attendees a WHERE a.occurrence_id = o.id) AS attending
	FROM occurrences o
	JOIN events e ON e.id = o.event_id
	JOIN event_types et ON et.id = e.event_type_id
	LEFT JOIN users op ON op.id = o.opener_id
	LEFT JOIN users cl ON cl.id = o.closer_id`
)

// slot columns
var slotColumns = map[string]string{
	event.SlotOpener: "opener_id",
	event.SlotCloser: "closer_id",
}

type eventRow struct {
	ID             int64  `db:"id"`
	Title          string `db:"title"`
	Description    string `db:"description"`
	EventTypeID    int64  `db:"event_type_id"`
	Details        string `db:"details"`
	EventTypeLabel string `db:"event_type_label"`
}

func (r eventRow) toEvent() event.Event {
	return event.Event{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		EventTypeID: r.EventTypeID,
		EventType:   event.EventType{ID: r.EventTypeID, Label: r.EventTypeLabel},
		Details:     r.Details,
	}
}

type occurrenceRow struct {
	ID               int64       `db:"id"`
	EventID          int64       `db:"event_id"`
	Location         string      `db:"location"`
	Start            time.Time   `db:"start_time"`
	End              null.Time   `db:"end_time"`
	AllDay           bool        `db:"all_day"`
	IsBreak          bool        `db:"is_break"`
	Details          string      `db:"details"`
	OpenerID         null.Int64  `db:"opener_id"`
	CloserID         null.Int64  `db:"closer_id"`
	EventTitle       string      `db:"event_title"`
	EventDescription string      `db:"event_description"`
	EventTypeID      int64       `db:"event_type_id"`
	EventDetails     string      `db:"event_details"`
	EventTypeLabel   string      `db:"event_type_label"`
	OpenerFirstName  null.String `db:"opener_first_name"`
	OpenerLastName   null.String `db:"opener_last_name"`
	OpenerEmail      null.String `db:"opener_email"`
	CloserFirstName  null.String `db:"closer_first_name"`
	CloserLastName   null.String `db:"closer_last_name"`
	CloserEmail      null.String `db:"closer_email"`
	Attending        int         `db:"attending"`
}

func slotUser(id null.Int64, first, last, email null.String) *user.User {
	if !id.Valid {
		return nil
	}
	return &user.User{ID: id.Int64, FirstName: first.String, LastName: last.String, Email: email.String}
}

func (r occurrenceRow) toOccurrence() event.Occurrence {
	occ := event.Occurrence{
		ID:      r.ID,
		EventID: r.EventID,
		Event: event.Event{
			ID:          r.EventID,
			Title:       r.EventTitle,
			Description: r.EventDescription,
			EventTypeID: r.EventTypeID,
			EventType:   event.EventType{ID: r.EventTypeID, Label: r.EventTypeLabel},
			Details:     r.EventDetails,
		},
		Location:  r.Location,
		Start:     r.Start.UTC(),
		AllDay:    r.AllDay,
		IsBreak:   r.IsBreak,
		Details:   r.Details,
		Opener:    slotUser(r.OpenerID, r.OpenerFirstName, r.OpenerLastName, r.OpenerEmail),
		Closer:    slotUser(r.CloserID, r.CloserFirstName, r.CloserLastName, r.CloserEmail),
		Attending: r.Attending,
	}
	if r.End.Valid {
		occ.End = r.End.Time.UTC()
	}
	return occ
}

func slotID(u *user.User) null.Int64 {
	if u == nil {
		return null.Int64{}
	}
	return nullID(u.ID)
}

type eventRepository struct {
	db *sqlx.DB
}

var _ event.Repository = (*eventRepository)(nil)

func NewEventRepository(db *sqlx.DB) *eventRepository {
	return &eventRepository{db: db}
}

// Event types

func (repo eventRepository) CreateEventType(ctx context.Context, et event.EventType) (event.EventType, error) {
	id, err := insert(ctx, repo.db, "INSERT INTO event_types (label) VALUES (?)", et.Label)
	if err != nil {
		return event.EventType{}, errors.Wrap(err, "inserting event type")
	}
	et.ID = id
	return et, nil
}

func (repo eventRepository) QueryEventTypes(ctx context.Context) ([]event.EventType, error) {
	var types []event.EventType
	if err := repo.db.SelectContext(ctx, &types, "SELECT id, label FROM event_types ORDER BY label"); err != nil {
		return nil, errors.Wrap(err, "querying event types")
	}
	return types, nil
}

func (repo eventRepository) getEventType(ctx context.Context, where string, arg interface{}) (event.EventType, error) {
	var et event.EventType
	if err := repo.db.GetContext(ctx, &et, repo.db.Rebind("SELECT id, label FROM event_types WHERE "+where), arg); err != nil {
		return event.EventType{}, trapNoRowsErr(err, event.ErrTypeNotFound, "finding event type")
	}
	return et, nil
}

func (repo eventRepository) GetEventTypeByID(ctx context.Context, id int64) (event.EventType, error) {
	return repo.getEventType(ctx, "id = ?", id)
}

func (repo eventRepository) GetEventTypeByLabel(ctx context.Context, label string) (event.EventType, error) {
	return repo.getEventType(ctx, "label = ?", label)
}

func (repo eventRepository) DeleteEventTypesByID(ctx context.Context, ids ...int64) (int, error) {
	return deleteByID(ctx, repo.db, "event_types", ids)
}

// Events

func insertOccurrence(ctx context.Context, q queryer, occ event.Occurrence) (int64, error) {
	id, err := insert(ctx, q, `INSERT INTO occurrences (event_id, location, start_time, end_time, all_day, is_break,
		details, opener_id, closer_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		occ.EventID, occ.Location, dbTime(occ.Start), nullTime(occ.End), occ.AllDay, occ.IsBreak,
		occ.Details, slotID(occ.Opener), slotID(occ.Closer))
	return id, errors.Wrap(err, "inserting occurrence")
}

func insertOccurrences(ctx context.Context, tx *sqlx.Tx, e event.Event, occs []event.Occurrence) ([]event.Occurrence, error) {
	saved := make([]event.Occurrence, 0, len(occs))
	for _, occ := range occs {
		occ.EventID = e.ID
		occ.Event = e
		id, err := insertOccurrence(ctx, tx, occ)
		if err != nil {
			return nil, err
		}
		occ.ID = id
		occ.Start = dbTime(occ.Start)
		if !occ.End.IsZero() {
			occ.End = dbTime(occ.End)
		}
		saved = append(saved, occ)
	}
	return saved, nil
}

func (repo eventRepository) CreateEvent(ctx context.Context, e event.Event, occs []event.Occurrence) (event.Event, []event.Occurrence, error) {
	var saved []event.Occurrence
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		id, err := insert(ctx, tx, "INSERT INTO events (title, description, event_type_id, details) VALUES (?, ?, ?, ?)",
			e.Title, e.Description, e.EventTypeID, e.Details)
		if err != nil {
			return errors.Wrap(err, "inserting event")
		}
		e.ID = id
		saved, err = insertOccurrences(ctx, tx, e, occs)
		return err
	})
	if err != nil {
		return event.Event{}, nil, err
	}
	e, err = repo.GetEventByID(ctx, e.ID)
	return e, saved, err
}

func (repo eventRepository) QueryEvents(ctx context.Context, filter *event.EventFilter) ([]event.Event, error) {
	conds := []string{"1 = 1"}
	var args []interface{}
	if filter != nil {
		if filter.Search != "" {
			conds = append(conds, "e.title "+likeOp(repo.db)+" ?")
			args = append(args, "%"+filter.Search+"%")
		}
		if filter.EventTypeID != 0 {
			conds = append(conds, "e.event_type_id = ?")
			args = append(args, filter.EventTypeID)
		}
	}
	query := "SELECT " + eventColumns + eventFrom + " WHERE " + strings.Join(conds, " AND ") + " ORDER BY e.title, e.id"

	var rows []eventRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying events")
	}
	events := make([]event.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, r.toEvent())
	}
	return events, nil
}

func (repo eventRepository) GetEventByID(ctx context.Context, id int64) (event.Event, error) {
	var row eventRow
	err := repo.db.GetContext(ctx, &row, repo.db.Rebind("SELECT "+eventColumns+eventFrom+" WHERE e.id = ?"), id)
	if err != nil {
		return event.Event{}, trapNoRowsErr(err, event.ErrNotFound, "finding event")
	}
	return row.toEvent(), nil
}

func (repo eventRepository) UpdateEvent(ctx context.Context, e event.Event, occs []event.Occurrence) (event.Event, []event.Occurrence, error) {
	var saved []event.Occurrence
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind("UPDATE events SET title = ?, description = ?, event_type_id = ?, details = ? WHERE id = ?"),
			e.Title, e.Description, e.EventTypeID, e.Details, e.ID)
		if err != nil {
			return errors.Wrap(err, "updating event")
		}
		saved, err = insertOccurrences(ctx, tx, e, occs)
		return err
	})
	if err != nil {
		return event.Event{}, nil, err
	}
	e, err = repo.GetEventByID(ctx, e.ID)
	return e, saved, err
}

func (repo eventRepository) DeleteEventsByID(ctx context.Context, ids ...int64) (int, error) {
	return deleteByID(ctx, repo.db, "events", ids)
}

// Occurrences

func (repo eventRepository) CountOccurrences(ctx context.Context, eventID int64) (int, error) {
	var n int
	err := repo.db.GetContext(ctx, &n, repo.db.Rebind("SELECT COUNT(*) FROM occurrences WHERE event_id = ?"), eventID)
	return n, errors.Wrap(err, "counting occurrences")
}

func (repo eventRepository) CreateOccurrence(ctx context.Context, occ event.Occurrence) (event.Occurrence, error) {
	id, err := insertOccurrence(ctx, repo.db, occ)
	if err != nil {
		return event.Occurrence{}, err
	}
	return repo.GetOccurrenceByID(ctx, id)
}

func (repo eventRepository) QueryOccurrences(ctx context.Context, filter *event.OccurrenceFilter) ([]event.Occurrence, error) {
	conds := []string{"1 = 1"}
	var args []interface{}
	var limit string
	if filter != nil {
		if filter.EventID != 0 {
			conds = append(conds, "o.event_id = ?")
			args = append(args, filter.EventID)
		}
		if !filter.From.IsZero() {
			conds = append(conds, "o.start_time >= ?")
			args = append(args, dbTime(filter.From))
		}
		if !filter.To.IsZero() {
			conds = append(conds, "o.start_time < ?")
			args = append(args, dbTime(filter.To))
		}
		if filter.ExcludeBreaks {
			conds = append(conds, "o.is_break = ?")
			args = append(args, false)
		}
		if filter.EventTypeLabel != "" {
			conds = append(conds, "et.label = ?")
			args = append(args, filter.EventTypeLabel)
		}
		if filter.Limit > 0 {
			limit = " LIMIT ?"
		}
	}
	query := occurrenceSelect + " WHERE " + strings.Join(conds, " AND ") + " ORDER BY o.start_time, o.id" + limit
	if limit != "" {
		args = append(args, filter.Limit)
	}

	var rows []occurrenceRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying occurrences")
	}
	occs := make([]event.Occurrence, 0, len(rows))
	for _, r := range rows {
		occs = append(occs, r.toOccurrence())
	}
	return occs, nil
}

func (repo eventRepository) GetOccurrenceByID(ctx context.Context, id int64) (event.Occurrence, error) {
	var row occurrenceRow
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind(occurrenceSelect+" WHERE o.id = ?"), id); err != nil {
		return event.Occurrence{}, trapNoRowsErr(err, event.ErrOccurrenceNotFound, "finding occurrence")
	}
	return row.toOccurrence(), nil
}

func (repo eventRepository) UpdateOccurrence(ctx context.Context, occ event.Occurrence) (event.Occurrence, error) {
	_, err := repo.db.ExecContext(ctx, repo.db.Rebind(`UPDATE occurrences SET location = ?, start_time = ?, end_time = ?,
		all_day = ?, is_break = ?, details = ?, opener_id = ?, closer_id = ? WHERE id = ?`),
		occ.Location, dbTime(occ.Start), nullTime(occ.End), occ.AllDay, occ.IsBreak, occ.Details,
		slotID(occ.Opener), slotID(occ.Closer), occ.ID)
	if err != nil {
		return event.Occurrence{}, errors.Wrap(err, "updating occurrence")
	}
	return repo.GetOccurrenceByID(ctx, occ.ID)
}

func (repo eventRepository) DeleteOccurrencesByID(ctx context.Context, ids ...int64) (int, error) {
	return deleteByID(ctx, repo.db, "occurrences", ids)
}

// Sign-up slots

func (repo eventRepository) updateSlot(ctx context.Context, query string, args ...interface{}) (bool, error) {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(query), args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (repo eventRepository) ClaimSlot(ctx context.Context, eventID, occID int64, slot string, userID int64) (bool, error) {
	col, ok := slotColumns[slot]
	if !ok {
		return false, nil
	}
	return repo.updateSlot(ctx, "UPDATE occurrences SET "+col+" = ? WHERE id = ? AND event_id = ? AND "+col+" IS NULL",
		userID, occID, eventID)
}

func (repo eventRepository) ReleaseSlot(ctx context.Context, eventID, occID int64, slot string, userID int64) (bool, error) {
	col, ok := slotColumns[slot]
	if !ok {
		return false, nil
	}
	return repo.updateSlot(ctx, "UPDATE occurrences SET "+col+" = NULL WHERE id = ? AND event_id = ? AND "+col+" = ?",
		occID, eventID, userID)
}

// Attendance

func (repo eventRepository) AddAttendee(ctx context.Context, occID, userID int64) error {
	_, err := repo.db.ExecContext(ctx,
		repo.db.Rebind("INSERT INTO occurrence_attendees (occurrence_id, user_id) VALUES (?, ?) ON CONFLICT DO NOTHING"),
		occID, userID)
	return errors.Wrap(err, "inserting attendee")
}

func (repo eventRepository) HasAttended(ctx context.Context, occID, userID int64) (bool, error) {
	found, err := exists(ctx, repo.db, "SELECT COUNT(*) FROM occurrence_attendees WHERE occurrence_id = ? AND user_id = ?", occID, userID)
	return found, errors.Wrap(err, "checking attendee")
}

func (repo eventRepository) QueryAttendance(ctx context.Context, eventID int64) (map[int64][]int64, error) {
	var rows []struct {
		OccurrenceID int64 `db:"occurrence_id"`
		UserID       int64 `db:"user_id"`
	}
	err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(`SELECT a.occurrence_id, a.user_id FROM occurrence_attendees a
		JOIN occurrences o ON o.id = a.occurrence_id WHERE o.event_id = ? ORDER BY a.occurrence_id, a.user_id`), eventID)
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}
	attendance := make(map[int64][]int64)
	for _, r := range rows {
		attendance[r.OccurrenceID] = append(attendance[r.OccurrenceID], r.UserID)
	}
	return attendance, nil
}
