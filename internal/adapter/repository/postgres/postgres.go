// Package postgres implements the link store on PostgreSQL. Uniqueness of
// short codes and original URLs is enforced by table constraints, and every
// mutation is a single statement.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/shortlinks/internal/entity"
)

const (
	uniqueViolationErrCode = "23505"

	originalURLConstraint = "links_original_url_key"
)

const linkColumns = `id, short_code, original_url, clicks, created_at`

// uniqueViolation reports the violated constraint name, if err is a unique violation.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationErrCode {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// storeError classifies a driver error. The driver error is kept in the
// message only, so callers can match the sentinel but never the driver type.
func storeError(op, action string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return fmt.Errorf("%s: %s: %w: %v", op, action, entity.ErrTimeout, err)
	}
	return fmt.Errorf("%s: %s: %w: %v", op, action, entity.ErrStoreUnavailable, err)
}

type linkDB struct {
	ID          uuid.UUID `db:"id"`
	ShortCode   string    `db:"short_code"`
	OriginalURL string    `db:"original_url"`
	Clicks      int64     `db:"clicks"`
	CreatedAt   time.Time `db:"created_at"`
}

func (l *linkDB) toEntity() *entity.Link {
	return &entity.Link{
		ID:          l.ID,
		ShortCode:   l.ShortCode,
		OriginalURL: l.OriginalURL,
		Clicks:      l.Clicks,
		CreatedAt:   l.CreatedAt,
	}
}

type LinkRepository struct {
	db *sqlx.DB
}

func NewLinkRepository(db *sqlx.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

func (r *LinkRepository) Save(ctx context.Context, id uuid.UUID, shortCode, originalURL string) (*entity.Link, error) {
	const op = "adapter.repository.postgres.LinkRepository.Save"
	const query = `INSERT INTO links(id, short_code, original_url) VALUES ($1, $2, $3) RETURNING ` + linkColumns

	var link linkDB

	if err := r.db.GetContext(ctx, &link, query, id, shortCode, originalURL); err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if constraint == originalURLConstraint {
				return nil, fmt.Errorf("%s: %w", op, entity.ErrOriginalURLExists)
			}
			// Short code or, in theory, id: both are fresh on the next attempt.
			return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
		}

		return nil, storeError(op, "failed to insert into links table", err)
	}

	return link.toEntity(), nil
}

func (r *LinkRepository) FindByOriginalURL(ctx context.Context, originalURL string) (*entity.Link, error) {
	const op = "adapter.repository.postgres.LinkRepository.FindByOriginalURL"
	const query = `SELECT ` + linkColumns + ` FROM links WHERE digest(original_url, 'sha256') = digest($1::text, 'sha256') AND original_url = $1`

	var link linkDB

	if err := r.db.GetContext(ctx, &link, query, originalURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
		}

		return nil, storeError(op, "failed to get row from links table", err)
	}

	return link.toEntity(), nil
}

func (r *LinkRepository) FindByShortCode(ctx context.Context, shortCode string) (*entity.Link, error) {
	const op = "adapter.repository.postgres.LinkRepository.FindByShortCode"
	const query = `SELECT ` + linkColumns + ` FROM links WHERE short_code = $1`

	var link linkDB

	if err := r.db.GetContext(ctx, &link, query, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
		}

		return nil, storeError(op, "failed to get row from links table", err)
	}

	return link.toEntity(), nil
}

func (r *LinkRepository) IncrementClicks(ctx context.Context, shortCode string) (*entity.Link, error) {
	const op = "adapter.repository.postgres.LinkRepository.IncrementClicks"
	const query = `UPDATE links SET clicks = clicks + 1 WHERE short_code = $1 RETURNING ` + linkColumns

	var link linkDB

	if err := r.db.GetContext(ctx, &link, query, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
		}

		return nil, storeError(op, "failed to update links table row", err)
	}

	return link.toEntity(), nil
}

func (r *LinkRepository) List(ctx context.Context) ([]*entity.Link, error) {
	const op = "adapter.repository.postgres.LinkRepository.List"
	const query = `SELECT ` + linkColumns + ` FROM links ORDER BY created_at DESC, short_code DESC`

	var rows []linkDB

	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, storeError(op, "failed to select from links table", err)
	}

	links := make([]*entity.Link, 0, len(rows))
	for i := range rows {
		links = append(links, rows[i].toEntity())
	}

	return links, nil
}

func (r *LinkRepository) Remove(ctx context.Context, id uuid.UUID) (bool, error) {
	const op = "adapter.repository.postgres.LinkRepository.Remove"
	const query = `DELETE FROM links WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, storeError(op, "failed to delete from links table", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, storeError(op, "failed to get number of affected rows", err)
	}

	return rowsAffected == 1, nil
}
