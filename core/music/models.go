package music

import (
	"context"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/humanistchoir/members/core"
)

type Song struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	Current   bool      `json:"current"` // show in list of current songs
	Files     []string  `json:"files"`   // object paths in the file bucket
	Embed     string    `json:"embed"`   // optional player/video HTML
}

// FileLink is a signed, time-limited link to one of a song's files.
type FileLink struct {
	URL     string `json:"url"`
	Path    string `json:"path"`
	Name    string `json:"name"`
	Preview string `json:"preview,omitempty"` // inline view, PDFs only
}

func isPDF(p string) bool {
	return strings.EqualFold(path.Ext(p), ".pdf")
}

// SortFiles orders paths PDFs first, then by file name.
func SortFiles(files []string) []string {
	sorted := append([]string(nil), files...)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := isPDF(sorted[i]), isPDF(sorted[j])
		if pi != pj {
			return pi
		}
		return path.Base(sorted[i]) < path.Base(sorted[j])
	})
	return sorted
}

// ReadableName turns a stored file name into a label.
func ReadableName(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}

type NewSong struct {
	Name      string    `json:"name" validate:"required,notblank,max=255"`
	Slug      string    `json:"slug" validate:"omitempty,max=255,slug"`
	CreatedAt time.Time `json:"created_at"`
	Current   *bool     `json:"current"`
	Files     []string  `json:"files"`
	Embed     string    `json:"embed"`
}

func (ns *NewSong) Validate(ctx context.Context, svc *Service) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Slug = core.CleanString(ns.Slug, true /* lower */)
	if ns.Slug == "" {
		ns.Slug = slug.Make(ns.Name)
	}
	if err := core.Validate.Struct(ns); err != nil {
		return err
	}
	if ns.Slug == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "name", Error: ErrNoSlug.Error()})
	}
	return svc.checkUniqueness(ctx, ns.Name, ns.Slug)
}

type UpdateSong struct {
	Name    string    `json:"name" validate:"omitempty,max=255"`
	Slug    string    `json:"slug" validate:"omitempty,max=255,slug"`
	Current *bool     `json:"current"`
	Files   *[]string `json:"files"`
	Embed   *string   `json:"embed"`
}

func (us *UpdateSong) Validate(ctx context.Context, orig Song, svc *Service) error {
	if name := core.CleanString(us.Name); name != "" {
		us.Name = name
	} else {
		us.Name = orig.Name
	}
	if s := core.CleanString(us.Slug, true /* lower */); s != "" {
		us.Slug = s
	} else {
		us.Slug = orig.Slug
	}
	if err := core.Validate.Struct(us); err != nil {
		return err
	}
	return svc.checkUniqueness(ctx, us.Name, us.Slug, orig.ID)
}

// UploadRequest asks for a direct-to-bucket upload URL.
type UploadRequest struct {
	Filename    string `json:"filename" validate:"required,notblank,max=200"`
	ContentType string `json:"content_type"`
}

type UploadTicket struct {
	URL  string `json:"url"`
	Path string `json:"path"`
}

type QueryFilter struct {
	Search  string `query:"search"`
	Current *bool  `query:"current"`
}
