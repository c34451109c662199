package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"medvault/internal/model"
	"medvault/internal/repository"
)

// pgUniqueViolation is the SQLSTATE raised when a UNIQUE constraint rejects a row.
const pgUniqueViolation = "23505"

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(rs rowScanner) (*model.Document, error) {
	var d model.Document
	if err := rs.Scan(
		&d.ID,
		&d.Filename,
		&d.Filepath,
		&d.Filesize,
		&d.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}

// Create inserts a new document row and returns the stored record.
// id and created_at come from the column defaults.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		INSERT INTO documents (filename, filepath, filesize)
		VALUES ($1, $2, $3)
		RETURNING id, filename, filepath, filesize, created_at
	`
	row := r.db.QueryRowContext(ctx, q,
		doc.Filename,
		doc.Filepath,
		doc.Filesize,
	)
	out, err := scanDocument(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, fmt.Errorf("%w: %s", repository.ErrUniqueViolation, doc.Filepath)
		}
		return nil, err
	}
	return out, nil
}

// FindByID fetches a single document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id int64) (*model.Document, error) {
	const q = `
		SELECT id, filename, filepath, filesize, created_at
		FROM documents
		WHERE id = $1
	`
	d, err := scanDocument(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// FindByFilepath fetches the document that owns the given storage key.
func (r *DocumentPostgres) FindByFilepath(ctx context.Context, filepath string) (*model.Document, error) {
	const q = `
		SELECT id, filename, filepath, filesize, created_at
		FROM documents
		WHERE filepath = $1
	`
	d, err := scanDocument(r.db.QueryRowContext(ctx, q, filepath))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// List returns all documents ordered by creation time, newest first.
func (r *DocumentPostgres) List(ctx context.Context) ([]model.Document, error) {
	const q = `
		SELECT id, filename, filepath, filesize, created_at
		FROM documents
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Delete removes a document by ID. It does not return an error if the row does not exist.
func (r *DocumentPostgres) Delete(ctx context.Context, id int64) (repository.DeleteResult, error) {
	const q = `DELETE FROM documents WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return repository.DeleteResult{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return repository.DeleteResult{}, err
	}
	return repository.DeleteResult{Removed: n > 0, Affected: n}, nil
}

// Count returns the total number of rows.
func (r *DocumentPostgres) Count(ctx context.Context) (int, error) {
	const q = `SELECT COUNT(*) FROM documents`
	var total int
	if err := r.db.QueryRowContext(ctx, q).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// Stats returns count, summed size and the newest created_at in one round trip.
func (r *DocumentPostgres) Stats(ctx context.Context) (repository.Stats, error) {
	const q = `SELECT COUNT(*), COALESCE(SUM(filesize), 0), MAX(created_at) FROM documents`
	var (
		st     repository.Stats
		latest sql.NullTime
	)
	if err := r.db.QueryRowContext(ctx, q).Scan(&st.Count, &st.TotalBytes, &latest); err != nil {
		return repository.Stats{}, err
	}
	if latest.Valid {
		t := latest.Time.UTC()
		st.LatestUpload = &t
	}
	return st, nil
}
