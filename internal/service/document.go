package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"medvault/internal/logging"
	"medvault/internal/model"
	"medvault/internal/repository"
	"medvault/internal/storage"
)

// uploadField is the multipart field name and the prefix of every generated object name.
const uploadField = "file"

// maxKeyAttempts bounds how often Upload regenerates a key that is already taken.
const maxKeyAttempts = 3

var (
	ErrInvalidID  = errors.New("invalid document id")
	ErrNotFound   = errors.New("document not found")
	ErrReaderNil  = errors.New("reader is nil")
	ErrValidation = errors.New("validation failed")
	// ErrFileMissing means the record exists but its bytes are gone from storage.
	ErrFileMissing     = errors.New("document file missing from storage")
	ErrUnsupportedType = fmt.Errorf("%w: unsupported file type", ErrValidation)
	ErrFileTooLarge    = fmt.Errorf("%w: file too large", ErrValidation)
)

// DocumentListResult is the service-level DTO for the document listing.
type DocumentListResult struct {
	Items []model.Document `json:"data"`
	Total int              `json:"total"`
}

// DocumentService defines the use cases for handling documents.
type DocumentService interface {
	// Upload admits, stores and records one document. If the record cannot be written the stored
	// bytes are deleted again, so a failed upload never leaves a file without a record.
	// The recorded filesize is the number of bytes actually stored.
	Upload(ctx context.Context, r io.Reader, originalFilename string, contentType string, size int64) (*model.Document, error)

	// List returns every document, newest first, and the total.
	List(ctx context.Context) (*DocumentListResult, error)

	// Get returns a single document by its ID.
	Get(ctx context.Context, id int64) (*model.Document, error)

	// Open returns a document together with a reader over its bytes. The caller closes the reader.
	Open(ctx context.Context, id int64) (*model.Document, io.ReadCloser, ObjectMeta, error)

	// Delete removes a document record and, best effort, its file. It returns the removed record.
	Delete(ctx context.Context, id int64) (*model.Document, error)

	// Count returns the number of documents.
	Count(ctx context.Context) (int, error)

	// Stats returns aggregate figures over all documents.
	Stats(ctx context.Context) (repository.Stats, error)
}

// ObjectMeta describes the stored bytes behind a document.
type ObjectMeta struct {
	Size        int64
	ContentType string
}

// Option configures a documentService.
type Option func(*documentService)

// WithLogger sets the structured logger used for pipeline events.
func WithLogger(l *slog.Logger) Option {
	return func(s *documentService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPolicy replaces the default admission policy.
func WithPolicy(p AdmissionPolicy) Option {
	return func(s *documentService) { s.policy = p }
}

// WithMetrics enables pipeline counters.
func WithMetrics(m *Metrics) Option {
	return func(s *documentService) { s.metrics = m }
}

// WithClock overrides the time source used for key generation.
func WithClock(now func() time.Time) Option {
	return func(s *documentService) { s.now = now }
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store   storage.Storage
	repo    repository.DocumentRepository
	policy  AdmissionPolicy
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(store storage.Storage, repo repository.DocumentRepository, opts ...Option) DocumentService {
	s := &documentService{
		store:  store,
		repo:   repo,
		policy: NewAdmissionPolicy(0, nil),
		logger: logging.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// displayName reduces a client-supplied filename to its last path element.
func displayName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	name = path.Base(name)
	if name == "." || name == "/" || name == "" {
		return "document"
	}
	return name
}

func (s *documentService) Upload(ctx context.Context, r io.Reader, originalFilename string, contentType string, size int64) (*model.Document, error) {
	if r == nil {
		return nil, ErrReaderNil
	}
	if err := s.policy.Validate(contentType, size); err != nil {
		s.metrics.upload("rejected")
		s.logger.InfoContext(ctx, "upload_rejected", "filename", originalFilename, "content_type", contentType, "size", size, "error", err.Error())
		return nil, err
	}
	filename := displayName(originalFilename)
	ext := s.policy.Extension(contentType, filename)

	// Read at most one byte past the limit so an undeclared oversize body is detected
	// without buffering it.
	body := io.LimitReader(r, s.policy.MaxBytes+1)

	var (
		key  string
		info storage.ObjectInfo
		err  error
	)
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		key = storage.GenerateKeyWithExt(uploadField, ext, s.now())
		info, err = s.store.Put(ctx, key, body, storage.PutObjectOptions{
			Size:        size,
			ContentType: contentType,
			Metadata: map[string]string{
				"original-filename": filename,
			},
		})
		if !errors.Is(err, storage.ErrObjectExists) {
			break
		}
		s.logger.WarnContext(ctx, "upload_key_collision", "key", key, "attempt", attempt+1)
	}
	if err != nil {
		s.metrics.upload("failed")
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	if info.Size > s.policy.MaxBytes {
		s.compensate(ctx, key, "size_exceeded")
		s.metrics.upload("rejected")
		return nil, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, s.policy.MaxBytes)
	}

	stored, err := s.repo.Create(ctx, &model.Document{
		Filename: filename,
		Filepath: info.Key,
		Filesize: info.Size,
	})
	if err != nil {
		s.compensate(ctx, key, "metadata_insert_failed")
		s.metrics.upload("failed")
		return nil, fmt.Errorf("store document metadata: %w", err)
	}

	s.metrics.upload("committed")
	s.logger.InfoContext(ctx, "upload_committed", "id", stored.ID, "filepath", stored.Filepath, "filesize", stored.Filesize)
	return stored, nil
}

// compensate removes bytes written by a failed upload. It runs detached from ctx so a client
// that went away does not prevent the cleanup. Failures are logged for the reconciliation sweep.
func (s *documentService) compensate(ctx context.Context, key, reason string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := s.store.Delete(cctx, key); err != nil {
		s.metrics.compensation("failed")
		s.logger.ErrorContext(ctx, "upload_compensation_failed", "key", key, "reason", reason, "error", err.Error())
		return
	}
	s.metrics.compensation("succeeded")
	s.logger.WarnContext(ctx, "upload_compensated", "key", key, "reason", reason)
}

func (s *documentService) List(ctx context.Context) (*DocumentListResult, error) {
	docs, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []model.Document{}
	}
	return &DocumentListResult{Items: docs, Total: len(docs)}, nil
}

func (s *documentService) Get(ctx context.Context, id int64) (*model.Document, error) {
	if id <= 0 {
		return nil, ErrInvalidID
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (s *documentService) Open(ctx context.Context, id int64) (*model.Document, io.ReadCloser, ObjectMeta, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, ObjectMeta{}, err
	}
	rc, info, err := s.store.Get(ctx, doc.Filepath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			s.logger.WarnContext(ctx, "document_file_missing", "id", doc.ID, "filepath", doc.Filepath)
			return doc, nil, ObjectMeta{}, ErrFileMissing
		}
		return doc, nil, ObjectMeta{}, fmt.Errorf("open storage: %w", err)
	}
	return doc, rc, ObjectMeta{Size: info.Size, ContentType: info.ContentType}, nil
}

// Delete removes the file first and the record second, so a crash in between can leave an
// unreferenced file but never a record pointing at nothing. File errors are logged only.
func (s *documentService) Delete(ctx context.Context, id int64) (*model.Document, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.metrics.delete("not_found")
		}
		return nil, err
	}

	if err := s.store.Delete(ctx, doc.Filepath); err != nil {
		s.logger.WarnContext(ctx, "document_file_delete_failed", "id", doc.ID, "filepath", doc.Filepath, "error", err.Error())
	}

	res, err := s.repo.Delete(ctx, id)
	if err != nil {
		s.metrics.delete("failed")
		return nil, fmt.Errorf("delete record: %w", err)
	}
	if !res.Removed {
		// A concurrent delete of the same id got there first.
		s.metrics.delete("not_found")
		return nil, ErrNotFound
	}

	s.metrics.delete("deleted")
	s.logger.InfoContext(ctx, "document_deleted", "id", doc.ID, "filepath", doc.Filepath)
	return doc, nil
}

func (s *documentService) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func (s *documentService) Stats(ctx context.Context) (repository.Stats, error) {
	return s.repo.Stats(ctx)
}
