package sqlxrepos

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/humanistchoir/members/core/music"
)

const songColumns = "id, name, slug, created_at, current, files, embed"

type songRow struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Slug      string    `db:"slug"`
	CreatedAt time.Time `db:"created_at"`
	Current   bool      `db:"current"`
	Files     string    `db:"files"` // JSON array of object paths
	Embed     string    `db:"embed"`
}

func (r songRow) toSong() (music.Song, error) {
	files := make([]string, 0)
	if r.Files != "" {
		if err := json.Unmarshal([]byte(r.Files), &files); err != nil {
			return music.Song{}, errors.Wrapf(err, "decoding files of song %d", r.ID)
		}
	}
	return music.Song{
		ID:        r.ID,
		Name:      r.Name,
		Slug:      r.Slug,
		CreatedAt: r.CreatedAt.UTC(),
		Current:   r.Current,
		Files:     files,
		Embed:     r.Embed,
	}, nil
}

func encodeFiles(files []string) (string, error) {
	if files == nil {
		files = []string{}
	}
	b, err := json.Marshal(files)
	return string(b), errors.Wrap(err, "encoding files")
}

type songRepository struct {
	db *sqlx.DB
}

var _ music.Repository = (*songRepository)(nil)

func NewSongRepository(db *sqlx.DB) *songRepository {
	return &songRepository{db: db}
}

func (repo songRepository) CheckSongUniqueness(ctx context.Context, name, slug string, excludedIDs ...int64) error {
	checks := []struct {
		col, val string
		err      error
	}{
		{"name", name, music.ErrNameExists},
		{"slug", slug, music.ErrSlugExists},
	}
	for _, c := range checks {
		query, args, err := excludeIDs("SELECT COUNT(*) FROM songs WHERE "+c.col+" = ?", []interface{}{c.val}, excludedIDs)
		if err != nil {
			return errors.Wrap(err, "building uniqueness query")
		}
		found, err := exists(ctx, repo.db, query, args...)
		if err != nil {
			return errors.Wrap(err, "checking song uniqueness")
		}
		if found {
			return c.err
		}
	}
	return nil
}

func (repo songRepository) CreateSong(ctx context.Context, song music.Song) (music.Song, error) {
	files, err := encodeFiles(song.Files)
	if err != nil {
		return music.Song{}, err
	}
	id, err := insert(ctx, repo.db, "INSERT INTO songs (name, slug, created_at, current, files, embed) VALUES (?, ?, ?, ?, ?, ?)",
		song.Name, song.Slug, dbTime(song.CreatedAt), song.Current, files, song.Embed)
	if err != nil {
		return music.Song{}, errors.Wrap(err, "inserting song")
	}
	return repo.GetSongByID(ctx, id)
}

func (repo songRepository) QuerySongs(ctx context.Context, filter *music.QueryFilter) ([]music.Song, error) {
	conds := []string{"1 = 1"}
	var args []interface{}
	if filter != nil {
		if filter.Search != "" {
			conds = append(conds, "name "+likeOp(repo.db)+" ?")
			args = append(args, "%"+filter.Search+"%")
		}
		if filter.Current != nil {
			conds = append(conds, "current = ?")
			args = append(args, *filter.Current)
		}
	}
	query := "SELECT " + songColumns + " FROM songs WHERE " + strings.Join(conds, " AND ") + " ORDER BY name"

	var rows []songRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying songs")
	}
	songs := make([]music.Song, 0, len(rows))
	for _, r := range rows {
		song, err := r.toSong()
		if err != nil {
			return nil, err
		}
		songs = append(songs, song)
	}
	return songs, nil
}

func (repo songRepository) get(ctx context.Context, where string, arg interface{}) (music.Song, error) {
	var row songRow
	err := repo.db.GetContext(ctx, &row, repo.db.Rebind("SELECT "+songColumns+" FROM songs WHERE "+where), arg)
	if err != nil {
		return music.Song{}, trapNoRowsErr(err, music.ErrNotFound, "finding song")
	}
	return row.toSong()
}

func (repo songRepository) GetSongByID(ctx context.Context, id int64) (music.Song, error) {
	return repo.get(ctx, "id = ?", id)
}

func (repo songRepository) GetSongBySlug(ctx context.Context, slug string) (music.Song, error) {
	return repo.get(ctx, "slug = ?", slug)
}

func (repo songRepository) UpdateSong(ctx context.Context, song music.Song) (music.Song, error) {
	files, err := encodeFiles(song.Files)
	if err != nil {
		return music.Song{}, err
	}
	_, err = repo.db.ExecContext(ctx, repo.db.Rebind("UPDATE songs SET name = ?, slug = ?, current = ?, files = ?, embed = ? WHERE id = ?"),
		song.Name, song.Slug, song.Current, files, song.Embed, song.ID)
	if err != nil {
		return music.Song{}, errors.Wrap(err, "updating song")
	}
	return repo.GetSongByID(ctx, song.ID)
}

func (repo songRepository) SetSongsCurrent(ctx context.Context, current map[int64]bool) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		query := tx.Rebind("UPDATE songs SET current = ? WHERE id = ?")
		for id, cur := range current {
			if _, err := tx.ExecContext(ctx, query, cur, id); err != nil {
				return errors.Wrap(err, "updating song")
			}
		}
		return nil
	})
}

func (repo songRepository) DeleteSongsByID(ctx context.Context, ids ...int64) (int, error) {
	return deleteByID(ctx, repo.db, "songs", ids)
}
