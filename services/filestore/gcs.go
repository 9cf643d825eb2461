package filestore

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/humanistchoir/members/core"
)

// GCSStore signs URLs for objects in a Google Cloud Storage bucket.
type GCSStore struct {
	client   *storage.Client
	bucket   *storage.BucketHandle
	accessID string
	key      []byte
}

var _ core.FileStore = (*GCSStore)(nil)

// NewGCSStore authenticates with the service account in conf (inline JSON first, then file).
func NewGCSStore(ctx context.Context, conf *core.Config) (*GCSStore, error) {
	creds := []byte(conf.Storage.AccountJSON)
	if len(creds) == 0 && conf.Storage.AccountFile != "" {
		var err error
		if creds, err = os.ReadFile(conf.Storage.AccountFile); err != nil {
			return nil, errors.Wrap(err, "reading service account file")
		}
	}
	if len(creds) == 0 {
		return nil, errors.New("no service account configured")
	}

	jwtConf, err := google.JWTConfigFromJSON(creds, storage.ScopeReadWrite)
	if err != nil {
		return nil, errors.Wrap(err, "parsing service account")
	}
	client, err := storage.NewClient(ctx, option.WithCredentialsJSON(creds))
	if err != nil {
		return nil, errors.Wrap(err, "creating storage client")
	}
	return &GCSStore{
		client:   client,
		bucket:   client.Bucket(conf.Storage.Bucket),
		accessID: jwtConf.Email,
		key:      jwtConf.PrivateKey,
	}, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) sign(method, object string, opts *storage.SignedURLOptions, expiry time.Duration) (string, error) {
	opts.GoogleAccessID = s.accessID
	opts.PrivateKey = s.key
	opts.Method = method
	opts.Scheme = storage.SigningSchemeV4
	opts.Expires = core.NowFunc().Add(expiry)
	u, err := s.bucket.SignedURL(object, opts)
	return u, errors.Wrap(err, "signing url")
}

func (s *GCSStore) SignedURL(_ context.Context, p, disposition string, expiry time.Duration) (string, error) {
	return s.sign(http.MethodGet, p, &storage.SignedURLOptions{
		QueryParameters: contentDisposition(p, disposition),
	}, expiry)
}

func (s *GCSStore) UploadURL(_ context.Context, p, contentType string, expiry time.Duration) (string, error) {
	return s.sign(http.MethodPut, p, &storage.SignedURLOptions{ContentType: contentType}, expiry)
}

func contentDisposition(p, disposition string) url.Values {
	if disposition == "" {
		return nil
	}
	return url.Values{
		"response-content-disposition": {disposition + `; filename="` + path.Base(p) + `"`},
	}
}
