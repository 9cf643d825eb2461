package appfs

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmbeddedFiles(t *testing.T) {
	tests := []string{
		"templates/web/_base.gohtml",
		"templates/web/home.gohtml",
		"templates/email/_base.gohtml",
		"templates/email/_base.txt",
		"templates/email/invitation.txt",
		"migrations/sqlite/00001_init.sql",
		"migrations/postgres/00001_init.sql",
		"static/css/site.css",
		"assets/common-passwords.txt",
	}
	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := fs.Stat(FS, name)
			assert.NoError(t, err)
		})
	}
}
