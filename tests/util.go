package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/humanistchoir/members/core"
	"github.com/humanistchoir/members/core/event"
	"github.com/humanistchoir/members/core/user"
	"github.com/humanistchoir/members/storage/database"
)

// PrepareDB returns a migrated SQLite database living in a temporary directory.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conf := core.NewTestConfig()
	conf.Database.Path = filepath.Join(t.TempDir(), "test.sqlite3")

	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	first, last, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC().Truncate(time.Second)
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC().Truncate(time.Second)
	}
	usr := user.User{
		FirstName: first,
		LastName:  last,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateEvent stores an event of a (possibly new) type labelled typeLabel.
func CreateEvent(t *testing.T, repo event.Repository, title, typeLabel string) event.Event {
	t.Helper()
	ctx := context.Background()
	et, err := repo.GetEventTypeByLabel(ctx, typeLabel)
	if err != nil {
		if et, err = repo.CreateEventType(ctx, event.EventType{Label: typeLabel}); err != nil {
			t.Fatalf("CreateEvent() failed: %v", err)
		}
	}
	e, _, err := repo.CreateEvent(ctx, event.Event{Title: title, EventTypeID: et.ID}, nil)
	if err != nil {
		t.Fatalf("CreateEvent() failed: %v", err)
	}
	return e
}

// CreateOccurrence stores a two hour occurrence of e starting at start.
func CreateOccurrence(t *testing.T, repo event.Repository, e event.Event, start time.Time, isBreak ...bool) event.Occurrence {
	t.Helper()
	occ := event.Occurrence{EventID: e.ID, Start: start, End: start.Add(2 * time.Hour)}
	if len(isBreak) > 0 {
		occ.IsBreak = isBreak[0]
	}
	occ, err := repo.CreateOccurrence(context.Background(), occ)
	if err != nil {
		t.Fatalf("CreateOccurrence() failed: %v", err)
	}
	return occ
}
