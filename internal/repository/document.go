package repository

import (
	"context"
	"errors"
	"time"

	"medvault/internal/model"
)

var (
	// ErrNotFound is returned by lookups when no row matches.
	ErrNotFound = errors.New("repository: document not found")
	// ErrUniqueViolation is returned by Create when the filepath is already taken.
	ErrUniqueViolation = errors.New("repository: filepath already exists")
)

// DocumentRepository defines data access for documents using SQL queries only.
// No business logic here, strictly persistence operations.
type DocumentRepository interface {
	// Create inserts a new document record. Filename, Filepath and Filesize are taken from doc;
	// ID and CreatedAt are assigned by the database and returned in the stored copy.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a document by its ID or ErrNotFound.
	FindByID(ctx context.Context, id int64) (*model.Document, error)

	// FindByFilepath returns the document stored under filepath or ErrNotFound.
	FindByFilepath(ctx context.Context, filepath string) (*model.Document, error)

	// List returns every document, newest first.
	List(ctx context.Context) ([]model.Document, error)

	// Delete removes a document by ID. A missing row is not an error; Affected reports it.
	Delete(ctx context.Context, id int64) (DeleteResult, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Stats returns aggregate figures over all documents.
	Stats(ctx context.Context) (Stats, error)
}

// DeleteResult reports whether a delete actually removed a row.
type DeleteResult struct {
	Removed  bool  `json:"removed"`
	Affected int64 `json:"affected_count"`
}

// Stats aggregates the documents table. LatestUpload is nil when the table is empty.
type Stats struct {
	Count        int        `json:"count"`
	TotalBytes   int64      `json:"total_bytes"`
	LatestUpload *time.Time `json:"latest_upload"`
}
