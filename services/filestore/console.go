package filestore

import (
	"context"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/humanistchoir/members/core"
)

// ConsoleStore builds unsigned URLs under baseURL and logs what it would sign.
type ConsoleStore struct {
	baseURL string
	logger  *log.Logger
}

var _ core.FileStore = (*ConsoleStore)(nil)

func NewConsoleStore(baseURL string, logger *log.Logger) *ConsoleStore {
	return &ConsoleStore{baseURL: strings.TrimSuffix(baseURL, "/"), logger: logger}
}

func (s *ConsoleStore) url(p string, q url.Values, expiry time.Duration) string {
	q.Set("expires", strconv.FormatInt(core.NowFunc().Add(expiry).Unix(), 10))
	return s.baseURL + "/" + strings.TrimPrefix(p, "/") + "?" + q.Encode()
}

func (s *ConsoleStore) SignedURL(_ context.Context, p, disposition string, expiry time.Duration) (string, error) {
	q := contentDisposition(p, disposition)
	if q == nil {
		q = url.Values{}
	}
	u := s.url(p, q, expiry)
	if s.logger != nil {
		s.logger.Printf("signed GET %s", u)
	}
	return u, nil
}

func (s *ConsoleStore) UploadURL(_ context.Context, p, contentType string, expiry time.Duration) (string, error) {
	u := s.url(p, url.Values{"content-type": {contentType}}, expiry)
	if s.logger != nil {
		s.logger.Printf("signed PUT %s", u)
	}
	return u, nil
}
