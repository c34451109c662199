package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"medvault/internal/model"
	"medvault/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var documentColumns = []string{"id", "filename", "filepath", "filesize", "created_at"}

func TestDocumentPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		now := time.Now().UTC()
		doc := &model.Document{
			Filename: "a.pdf",
			Filepath: "uploads/file-1700000000000-123456789.pdf",
			Filesize: 10,
		}

		rows := sqlmock.NewRows(documentColumns).
			AddRow(int64(1), doc.Filename, doc.Filepath, doc.Filesize, now)

		mock.ExpectQuery("INSERT INTO documents").
			WithArgs(doc.Filename, doc.Filepath, doc.Filesize).
			WillReturnRows(rows)

		result, err := repo.Create(ctx, doc)

		assert.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, int64(1), result.ID)
		assert.Equal(t, now, result.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO documents").
			WithArgs("a.pdf", "uploads/dup.pdf", int64(10)).
			WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

		result, err := repo.Create(ctx, &model.Document{Filename: "a.pdf", Filepath: "uploads/dup.pdf", Filesize: 10})

		assert.ErrorIs(t, err, repository.ErrUniqueViolation)
		assert.Nil(t, result)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other error", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO documents").
			WillReturnError(errors.New("connection reset"))

		_, err := repo.Create(ctx, &model.Document{Filename: "a.pdf", Filepath: "uploads/x.pdf", Filesize: 1})

		assert.EqualError(t, err, "connection reset")
		assert.False(t, errors.Is(err, repository.ErrUniqueViolation))
	})
}

func TestDocumentPostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		rows := sqlmock.NewRows(documentColumns).
			AddRow(int64(7), "file.pdf", "uploads/file-1-2.pdf", int64(100), time.Now())

		mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = ?").
			WithArgs(int64(7)).
			WillReturnRows(rows)

		doc, err := repo.FindByID(ctx, 7)

		assert.NoError(t, err)
		require.NotNil(t, doc)
		assert.Equal(t, int64(7), doc.ID)
		assert.Equal(t, "uploads/file-1-2.pdf", doc.Filepath)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = ?").
			WithArgs(int64(404)).
			WillReturnRows(sqlmock.NewRows(documentColumns))

		doc, err := repo.FindByID(ctx, 404)

		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.Nil(t, doc)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_FindByFilepath(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE filepath = ?").
		WithArgs("uploads/file-1-2.pdf").
		WillReturnRows(sqlmock.NewRows(documentColumns).
			AddRow(int64(3), "scan.pdf", "uploads/file-1-2.pdf", int64(42), time.Now()))

	doc, err := repo.FindByFilepath(ctx, "uploads/file-1-2.pdf")
	assert.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, int64(3), doc.ID)

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE filepath = ?").
		WithArgs("uploads/missing.pdf").
		WillReturnRows(sqlmock.NewRows(documentColumns))

	_, err = repo.FindByFilepath(ctx, "uploads/missing.pdf")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		newer := time.Now().UTC()
		older := newer.Add(-time.Minute)
		rows := sqlmock.NewRows(documentColumns).
			AddRow(int64(2), "b.pdf", "uploads/b.pdf", int64(2), newer).
			AddRow(int64(1), "a.pdf", "uploads/a.pdf", int64(1), older)

		mock.ExpectQuery("SELECT (.+) FROM documents ORDER BY created_at DESC, id DESC").
			WillReturnRows(rows)

		items, err := repo.List(ctx)

		assert.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, int64(2), items[0].ID)
		assert.Equal(t, int64(1), items[1].ID)
	})

	t.Run("empty table yields empty slice", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM documents ORDER BY").
			WillReturnRows(sqlmock.NewRows(documentColumns))

		items, err := repo.List(ctx)

		assert.NoError(t, err)
		assert.NotNil(t, items)
		assert.Empty(t, items)
	})

	t.Run("query error", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM documents ORDER BY").
			WillReturnError(errors.New("db down"))

		items, err := repo.List(ctx)

		assert.Error(t, err)
		assert.Nil(t, items)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	mock.ExpectExec("DELETE FROM documents WHERE id = ?").
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM documents WHERE id = ?").
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	first, err := repo.Delete(ctx, 9)
	assert.NoError(t, err)
	assert.Equal(t, repository.DeleteResult{Removed: true, Affected: 1}, first)

	second, err := repo.Delete(ctx, 9)
	assert.NoError(t, err)
	assert.Equal(t, repository.DeleteResult{Removed: false, Affected: 0}, second)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_CountAndStats(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM documents").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.Count(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 3, n)

	latest := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\), COALESCE\\(SUM\\(filesize\\), 0\\), MAX\\(created_at\\) FROM documents").
		WillReturnRows(sqlmock.NewRows([]string{"count", "sum", "max"}).AddRow(3, int64(300), latest))

	st, err := repo.Stats(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 3, st.Count)
	assert.Equal(t, int64(300), st.TotalBytes)
	require.NotNil(t, st.LatestUpload)
	assert.True(t, latest.Equal(*st.LatestUpload))

	mock.ExpectQuery("SELECT COUNT\\(\\*\\), COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"count", "sum", "max"}).AddRow(0, int64(0), nil))

	st, err = repo.Stats(ctx)
	assert.NoError(t, err)
	assert.Zero(t, st.Count)
	assert.Nil(t, st.LatestUpload)

	assert.NoError(t, mock.ExpectationsWereMet())
}
