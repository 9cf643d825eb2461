package core

import (
	"context"
	"time"
)

type (
	// FileStore hands out time-limited URLs to objects in the shared file bucket.
	FileStore interface {
		// SignedURL returns a GET URL; disposition is "attachment" or "inline".
		SignedURL(ctx context.Context, path, disposition string, expiry time.Duration) (string, error)
		// UploadURL returns a PUT URL the browser can upload straight to.
		UploadURL(ctx context.Context, path, contentType string, expiry time.Duration) (string, error)
	}

	Subscriber struct {
		Email     string
		FirstName string
		LastName  string
	}

	// MailingList subscribes members to the choir's mailing list provider.
	MailingList interface {
		Subscribe(ctx context.Context, sub Subscriber) error
	}

	// SheetWriter replaces the contents of a named sheet (tab) and returns a link to it.
	SheetWriter interface {
		WriteSheet(ctx context.Context, title string, rows [][]string) (string, error)
	}
)
