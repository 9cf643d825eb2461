package music

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/humanistchoir/members/core"
)

var (
	// errors
	ErrNotFound    = errors.New("song not found")
	ErrNameExists  = errors.New("song with this name already exists")
	ErrSlugExists  = errors.New("song with this slug already exists")
	ErrNoSlug      = errors.New("name must contain at least one letter or digit")
	errBadFilename = errors.New("invalid file name")
)

type (
	Repository interface {
		CheckSongUniqueness(ctx context.Context, name, slug string, excludedIDs ...int64) error
		CreateSong(ctx context.Context, song Song) (Song, error)
		QuerySongs(ctx context.Context, filter *QueryFilter) ([]Song, error)
		GetSongByID(ctx context.Context, id int64) (Song, error)
		GetSongBySlug(ctx context.Context, slug string) (Song, error)
		UpdateSong(ctx context.Context, song Song) (Song, error)
		SetSongsCurrent(ctx context.Context, current map[int64]bool) error
		DeleteSongsByID(ctx context.Context, ids ...int64) (int, error)
	}

	Service struct {
		repo  Repository
		store core.FileStore
		conf  *core.Config
	}
)

func NewService(repo Repository, store core.FileStore, conf *core.Config) *Service {
	return &Service{repo: repo, store: store, conf: conf}
}

func (svc *Service) checkUniqueness(ctx context.Context, name, slug string, exclIDs ...int64) error {
	err := svc.repo.CheckSongUniqueness(ctx, name, slug, exclIDs...)
	switch errors.Cause(err) {
	case nil:
		return nil
	case ErrNameExists:
		return core.NewValidationError(nil, core.FieldError{Field: "name", Error: ErrNameExists.Error()})
	case ErrSlugExists:
		return core.NewValidationError(nil, core.FieldError{Field: "slug", Error: ErrSlugExists.Error()})
	default:
		return errors.Wrap(err, "checking song uniqueness")
	}
}

// ListCurrent returns songs flagged current, by name.
func (svc *Service) ListCurrent(ctx context.Context) ([]Song, error) {
	current := true
	return svc.repo.QuerySongs(ctx, &QueryFilter{Current: &current})
}

// ListAll returns every song, by name.
func (svc *Service) ListAll(ctx context.Context) ([]Song, error) {
	return svc.repo.QuerySongs(ctx, nil)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Song, error) {
	return svc.repo.QuerySongs(ctx, filter)
}

func (svc *Service) GetBySlug(ctx context.Context, slug string) (Song, error) {
	return svc.repo.GetSongBySlug(ctx, slug)
}

func (svc *Service) GetByID(ctx context.Context, id int64) (Song, error) {
	return svc.repo.GetSongByID(ctx, id)
}

// FileLinks signs a download link for each file; PDFs also get an inline preview link.
func (svc *Service) FileLinks(ctx context.Context, song Song) ([]FileLink, error) {
	expiry := svc.conf.Storage.SignedURLExpiry
	links := make([]FileLink, 0, len(song.Files))
	for _, p := range SortFiles(song.Files) {
		url, err := svc.store.SignedURL(ctx, p, "attachment", expiry)
		if err != nil {
			return nil, errors.Wrapf(err, "signing %s", p)
		}
		link := FileLink{URL: url, Path: p, Name: path.Base(p)}
		if isPDF(p) {
			if link.Preview, err = svc.store.SignedURL(ctx, p, "inline", expiry); err != nil {
				return nil, errors.Wrapf(err, "signing preview of %s", p)
			}
		}
		links = append(links, link)
	}
	return links, nil
}

// Create stores a validated NewSong.
func (svc *Service) Create(ctx context.Context, ns NewSong) (Song, error) {
	song := Song{
		Name:      ns.Name,
		Slug:      ns.Slug,
		CreatedAt: ns.CreatedAt,
		Current:   true,
		Files:     ns.Files,
		Embed:     ns.Embed,
	}
	if song.CreatedAt.IsZero() {
		song.CreatedAt = core.NowFunc()
	}
	song.CreatedAt = song.CreatedAt.UTC().Truncate(time.Second)
	if ns.Current != nil {
		song.Current = *ns.Current
	}
	if song.Files == nil {
		song.Files = []string{}
	}
	song, err := svc.repo.CreateSong(ctx, song)
	return song, errors.Wrap(err, "creating song")
}

// Update applies a validated UpdateSong.
func (svc *Service) Update(ctx context.Context, orig Song, us UpdateSong) (Song, error) {
	song := orig
	song.Name = us.Name
	song.Slug = us.Slug
	if us.Current != nil {
		song.Current = *us.Current
	}
	if us.Files != nil {
		song.Files = *us.Files
	}
	if us.Embed != nil {
		song.Embed = *us.Embed
	}
	song, err := svc.repo.UpdateSong(ctx, song)
	return song, errors.Wrap(err, "updating song")
}

// SetCurrent bulk-edits the current flag, keyed by song id.
func (svc *Service) SetCurrent(ctx context.Context, current map[int64]bool) error {
	return errors.Wrap(svc.repo.SetSongsCurrent(ctx, current), "setting current songs")
}

func (svc *Service) Delete(ctx context.Context, ids ...int64) (int, error) {
	return svc.repo.DeleteSongsByID(ctx, ids...)
}

// UploadURL signs a direct upload of filename into the media prefix.
func (svc *Service) UploadURL(ctx context.Context, req UploadRequest) (UploadTicket, error) {
	if err := core.Validate.Struct(req); err != nil {
		return UploadTicket{}, err
	}
	name := path.Base(strings.ReplaceAll(core.CleanString(req.Filename), "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return UploadTicket{}, core.NewValidationError(nil, core.FieldError{Field: "filename", Error: errBadFilename.Error()})
	}
	p := svc.conf.Storage.PathPrefix + name
	url, err := svc.store.UploadURL(ctx, p, req.ContentType, time.Hour)
	if err != nil {
		return UploadTicket{}, errors.Wrap(err, "signing upload")
	}
	return UploadTicket{URL: url, Path: p}, nil
}

// AttachFile adds an uploaded object path to the song, once.
func (svc *Service) AttachFile(ctx context.Context, song Song, p string) (Song, error) {
	p = strings.TrimPrefix(core.CleanString(p), "/")
	if p == "" {
		return Song{}, core.NewValidationError(nil, core.FieldError{Field: "path", Error: errBadFilename.Error()})
	}
	for _, f := range song.Files {
		if f == p {
			return song, nil
		}
	}
	song.Files = append(song.Files, p)
	song, err := svc.repo.UpdateSong(ctx, song)
	return song, errors.Wrap(err, "attaching file")
}

// DetachFile removes a path from the song; the object itself is left in the bucket.
func (svc *Service) DetachFile(ctx context.Context, song Song, p string) (Song, error) {
	files := make([]string, 0, len(song.Files))
	for _, f := range song.Files {
		if f != p {
			files = append(files, f)
		}
	}
	song.Files = files
	song, err := svc.repo.UpdateSong(ctx, song)
	return song, errors.Wrap(err, "detaching file")
}
