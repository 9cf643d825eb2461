package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/humanistchoir/members/core/page"
)

const pageColumns = "id, url, title, content, registration_required"

type pageRow struct {
	ID                   int64  `db:"id"`
	URL                  string `db:"url"`
	Title                string `db:"title"`
	Content              string `db:"content"`
	RegistrationRequired bool   `db:"registration_required"`
}

func (r pageRow) toPage() page.FlatPage {
	return page.FlatPage(r)
}

type pageRepository struct {
	db *sqlx.DB
}

var _ page.Repository = (*pageRepository)(nil)

func NewPageRepository(db *sqlx.DB) *pageRepository {
	return &pageRepository{db: db}
}

func (repo pageRepository) CheckPageUniqueness(ctx context.Context, url string, excludedIDs ...int64) error {
	query, args, err := excludeIDs("SELECT COUNT(*) FROM flat_pages WHERE url = ?", []interface{}{url}, excludedIDs)
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}
	found, err := exists(ctx, repo.db, query, args...)
	if err != nil {
		return errors.Wrap(err, "checking page uniqueness")
	}
	if found {
		return page.ErrURLExists
	}
	return nil
}

func (repo pageRepository) CreatePage(ctx context.Context, p page.FlatPage) (page.FlatPage, error) {
	id, err := insert(ctx, repo.db, "INSERT INTO flat_pages (url, title, content, registration_required) VALUES (?, ?, ?, ?)",
		p.URL, p.Title, p.Content, p.RegistrationRequired)
	if err != nil {
		return page.FlatPage{}, errors.Wrap(err, "inserting page")
	}
	return repo.GetPageByID(ctx, id)
}

func (repo pageRepository) QueryPages(ctx context.Context) ([]page.FlatPage, error) {
	var rows []pageRow
	if err := repo.db.SelectContext(ctx, &rows, "SELECT "+pageColumns+" FROM flat_pages ORDER BY url"); err != nil {
		return nil, errors.Wrap(err, "querying pages")
	}
	pages := make([]page.FlatPage, 0, len(rows))
	for _, r := range rows {
		pages = append(pages, r.toPage())
	}
	return pages, nil
}

func (repo pageRepository) get(ctx context.Context, where string, arg interface{}) (page.FlatPage, error) {
	var row pageRow
	err := repo.db.GetContext(ctx, &row, repo.db.Rebind("SELECT "+pageColumns+" FROM flat_pages WHERE "+where), arg)
	if err != nil {
		return page.FlatPage{}, trapNoRowsErr(err, page.ErrNotFound, "finding page")
	}
	return row.toPage(), nil
}

func (repo pageRepository) GetPageByID(ctx context.Context, id int64) (page.FlatPage, error) {
	return repo.get(ctx, "id = ?", id)
}

func (repo pageRepository) GetPageByURL(ctx context.Context, url string) (page.FlatPage, error) {
	return repo.get(ctx, "url = ?", url)
}

func (repo pageRepository) UpdatePage(ctx context.Context, p page.FlatPage) (page.FlatPage, error) {
	_, err := repo.db.ExecContext(ctx, repo.db.Rebind("UPDATE flat_pages SET url = ?, title = ?, content = ?, registration_required = ? WHERE id = ?"),
		p.URL, p.Title, p.Content, p.RegistrationRequired, p.ID)
	if err != nil {
		return page.FlatPage{}, errors.Wrap(err, "updating page")
	}
	return repo.GetPageByID(ctx, p.ID)
}

func (repo pageRepository) DeletePagesByID(ctx context.Context, ids ...int64) (int, error) {
	return deleteByID(ctx, repo.db, "flat_pages", ids)
}
