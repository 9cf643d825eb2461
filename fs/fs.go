// Package appfs embeds the migrations, templates and static assets shipped with the binaries.
package appfs

import "embed"

//go:embed assets migrations all:templates static
var FS embed.FS
