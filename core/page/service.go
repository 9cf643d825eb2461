package page

import (
	"bytes"
	"context"
	"html/template"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/humanistchoir/members/core"
)

var (
	// errors
	ErrNotFound  = errors.New("flat page not found")
	ErrURLExists = errors.New("flat page with this url already exists")

	md = goldmark.New(goldmark.WithExtensions(extension.GFM, extension.Typographer))
)

type (
	Repository interface {
		CheckPageUniqueness(ctx context.Context, url string, excludedIDs ...int64) error
		CreatePage(ctx context.Context, p FlatPage) (FlatPage, error)
		QueryPages(ctx context.Context) ([]FlatPage, error)
		GetPageByID(ctx context.Context, id int64) (FlatPage, error)
		GetPageByURL(ctx context.Context, url string) (FlatPage, error)
		UpdatePage(ctx context.Context, p FlatPage) (FlatPage, error)
		DeletePagesByID(ctx context.Context, ids ...int64) (int, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Markdown renders src to HTML. Raw HTML in src is omitted.
func Markdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", errors.Wrap(err, "rendering markdown")
	}
	return template.HTML(buf.String()), nil
}

func (svc *Service) checkUniqueness(url string, exclIDs ...int64) error {
	err := svc.repo.CheckPageUniqueness(context.Background(), url, exclIDs...)
	switch errors.Cause(err) {
	case nil:
		return nil
	case ErrURLExists:
		return core.NewValidationError(nil, core.FieldError{Field: "url", Error: ErrURLExists.Error()})
	default:
		return errors.Wrap(err, "checking page uniqueness")
	}
}

// GetByURL looks up a page by its path, adding missing slashes first.
func (svc *Service) GetByURL(ctx context.Context, url string) (FlatPage, error) {
	return svc.repo.GetPageByURL(ctx, NormalizeURL(url))
}

func (svc *Service) GetByID(ctx context.Context, id int64) (FlatPage, error) {
	return svc.repo.GetPageByID(ctx, id)
}

func (svc *Service) List(ctx context.Context) ([]FlatPage, error) {
	return svc.repo.QueryPages(ctx)
}

func (svc *Service) Create(ctx context.Context, np NewFlatPage) (FlatPage, error) {
	if err := np.Validate(svc); err != nil {
		return FlatPage{}, err
	}
	p, err := svc.repo.CreatePage(ctx, FlatPage{
		URL:                  np.URL,
		Title:                np.Title,
		Content:              np.Content,
		RegistrationRequired: np.RegistrationRequired,
	})
	return p, errors.Wrap(err, "creating page")
}

func (svc *Service) Update(ctx context.Context, orig FlatPage, up UpdateFlatPage) (FlatPage, error) {
	if err := up.Validate(orig, svc); err != nil {
		return FlatPage{}, err
	}
	p := orig
	p.URL = up.URL
	p.Title = up.Title
	if up.Content != nil {
		p.Content = *up.Content
	}
	if up.RegistrationRequired != nil {
		p.RegistrationRequired = *up.RegistrationRequired
	}
	p, err := svc.repo.UpdatePage(ctx, p)
	return p, errors.Wrap(err, "updating page")
}

func (svc *Service) Delete(ctx context.Context, ids ...int64) (int, error) {
	return svc.repo.DeletePagesByID(ctx, ids...)
}
