package page

import (
	"strings"

	"github.com/humanistchoir/members/core"
)

type FlatPage struct {
	ID                   int64  `json:"id"`
	URL                  string `json:"url"`
	Title                string `json:"title"`
	Content              string `json:"content"` // markdown
	RegistrationRequired bool   `json:"registration_required"`
}

// NormalizeURL gives url a leading and trailing slash.
func NormalizeURL(url string) string {
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, "/") {
		url = "/" + url
	}
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	return url
}

type NewFlatPage struct {
	URL                  string `json:"url" validate:"required,max=100,pageurl"`
	Title                string `json:"title" validate:"required,notblank,max=200"`
	Content              string `json:"content"`
	RegistrationRequired bool   `json:"registration_required"`
}

func (np *NewFlatPage) Validate(svc *Service) error {
	np.URL = NormalizeURL(np.URL)
	np.Title = core.CleanString(np.Title)
	if err := core.Validate.Struct(np); err != nil {
		return err
	}
	return svc.checkUniqueness(np.URL)
}

type UpdateFlatPage struct {
	URL                  string  `json:"url" validate:"required,max=100,pageurl"`
	Title                string  `json:"title" validate:"required,notblank,max=200"`
	Content              *string `json:"content"`
	RegistrationRequired *bool   `json:"registration_required"`
}

func (up *UpdateFlatPage) Validate(orig FlatPage, svc *Service) error {
	if up.URL == "" {
		up.URL = orig.URL
	}
	up.URL = NormalizeURL(up.URL)
	if up.Title = core.CleanString(up.Title); up.Title == "" {
		up.Title = orig.Title
	}
	if err := core.Validate.Struct(up); err != nil {
		return err
	}
	if up.URL == orig.URL {
		return nil
	}
	return svc.checkUniqueness(up.URL, orig.ID)
}
