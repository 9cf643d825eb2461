// Package shared wires the storage layer and domain services used by both binaries.
package shared

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/humanistchoir/members/core"
	"github.com/humanistchoir/members/core/event"
	"github.com/humanistchoir/members/core/invitation"
	"github.com/humanistchoir/members/core/music"
	"github.com/humanistchoir/members/core/page"
	"github.com/humanistchoir/members/core/user"
	emailsvc "github.com/humanistchoir/members/services/email"
	"github.com/humanistchoir/members/services/filestore"
	logsvc "github.com/humanistchoir/members/services/logger"
	"github.com/humanistchoir/members/services/mailinglist"
	"github.com/humanistchoir/members/services/sheets"
	"github.com/humanistchoir/members/storage/database"
	"github.com/humanistchoir/members/storage/database/sqlxrepos"
)

type Services struct {
	DB            *sqlx.DB
	UserRepo      user.Repository
	EventRepo     event.Repository
	UserSvc       *user.Service
	InvitationSvc *invitation.Service
	MusicSvc      *music.Service
	EventSvc      *event.Service
	PageSvc       *page.Service
}

// NewLogger returns a Rollbar-backed logger printing to stdout with prefix.
func NewLogger(prefix string, conf *core.Config) *logsvc.RollbarLogger {
	return logsvc.NewRollbarLogger(
		log.New(os.Stdout, prefix, log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
}

// SetUpDB creates (postgres only) and migrates the database before handing it out.
func SetUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewServices builds every domain service on top of db.
// Debug mode swaps the external integrations (email, storage, mailing list, sheets) for console stand-ins.
func NewServices(ctx context.Context, conf *core.Config, logger core.Logger, db *sqlx.DB) (*Services, error) {
	var (
		mailSvc core.EmailService
		store   core.FileStore
		list    core.MailingList
		writer  core.SheetWriter
		err     error
	)
	std := log.New(os.Stdout, "SVC : ", log.LstdFlags)

	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
		store = filestore.NewConsoleStore(conf.FrontendBaseURL+"/media", std)
		list = mailinglist.NewConsole(std)
		writer = sheets.NewConsole(os.Stdout)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
		if store, err = filestore.NewGCSStore(ctx, conf); err != nil {
			return nil, errors.Wrap(err, "setting up file storage")
		}
		list = mailinglist.NewMailchimp(conf)
		if writer, err = sheets.NewGoogleSheets(ctx, conf); err != nil {
			logger.Warn(fmt.Sprintf("attendance export falls back to stdout: %v", err))
			writer = sheets.NewConsole(os.Stdout)
		}
	}

	s := &Services{
		DB:        db,
		UserRepo:  sqlxrepos.NewUserRepository(db),
		EventRepo: sqlxrepos.NewEventRepository(db),
	}
	s.UserSvc = user.NewService(s.UserRepo, mailSvc, conf)
	s.InvitationSvc = invitation.NewService(sqlxrepos.NewInvitationRepository(db), s.UserSvc, mailSvc, list, logger, conf)
	s.MusicSvc = music.NewService(sqlxrepos.NewSongRepository(db), store, conf)
	s.EventSvc = event.NewService(s.EventRepo, s.UserSvc, writer, conf)
	s.PageSvc = page.NewService(sqlxrepos.NewPageRepository(db))
	return s, nil
}
