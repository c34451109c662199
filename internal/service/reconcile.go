package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"medvault/internal/logging"
	"medvault/internal/repository"
	"medvault/internal/storage"
)

// ErrReconcileInProgress is returned by RunOnce when another sweep is still running.
var ErrReconcileInProgress = errors.New("reconciliation already in progress")

// Issue types reported by a sweep.
const (
	IssueOrphanedFile = "orphaned_file"
	IssueMissingFile  = "missing_file"
	IssueSizeMismatch = "size_mismatch"
)

// ReconcileIssue is one inconsistency between storage and the documents table.
type ReconcileIssue struct {
	Type       string `json:"type"`
	Key        string `json:"key"`
	DocumentID int64  `json:"document_id,omitempty"`
	Removed    bool   `json:"removed,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// ReconcileReport summarises one sweep.
type ReconcileReport struct {
	StartedAt      time.Time        `json:"started_at"`
	CompletedAt    time.Time        `json:"completed_at"`
	DryRun         bool             `json:"dry_run"`
	ObjectsScanned int              `json:"objects_scanned"`
	RecordsScanned int              `json:"records_scanned"`
	SkippedRecent  int              `json:"skipped_recent"`
	Issues         []ReconcileIssue `json:"issues"`
}

// Count returns how many issues of the given type the sweep found.
func (r *ReconcileReport) Count(issueType string) int {
	n := 0
	for _, is := range r.Issues {
		if is.Type == issueType {
			n++
		}
	}
	return n
}

// ReconcileService finds files without records (left behind by a crash between the storage write
// and the insert, or by a failed compensation) and records whose file is gone.
// Orphaned files older than the grace period are removed; missing files are only reported.
type ReconcileService struct {
	store   storage.Storage
	repo    repository.DocumentRepository
	grace   time.Duration
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time

	mu      sync.Mutex
	running bool
}

// NewReconcileService creates a sweep over store and repo. Files younger than grace are never
// treated as orphans because their upload may still be inserting its record.
func NewReconcileService(store storage.Storage, repo repository.DocumentRepository, grace time.Duration, logger *slog.Logger, metrics *Metrics) *ReconcileService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ReconcileService{
		store:   store,
		repo:    repo,
		grace:   grace,
		logger:  logger.With(slog.String("component", "reconcile")),
		metrics: metrics,
		now:     time.Now,
	}
}

// Start runs RunOnce every interval until ctx is cancelled. It returns immediately.
func (rs *ReconcileService) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := rs.RunOnce(ctx, false); err != nil && !errors.Is(err, ErrReconcileInProgress) {
					rs.logger.Error("reconcile_failed", "error", err.Error())
				}
			}
		}
	}()
	rs.logger.Info("reconcile_started", "interval", interval.String(), "grace", rs.grace.String())
}

// RunOnce performs a single sweep. With dryRun set nothing is deleted.
func (rs *ReconcileService) RunOnce(ctx context.Context, dryRun bool) (*ReconcileReport, error) {
	rs.mu.Lock()
	if rs.running {
		rs.mu.Unlock()
		return nil, ErrReconcileInProgress
	}
	rs.running = true
	rs.mu.Unlock()
	defer func() {
		rs.mu.Lock()
		rs.running = false
		rs.mu.Unlock()
	}()

	report := &ReconcileReport{StartedAt: rs.now().UTC(), DryRun: dryRun, Issues: []ReconcileIssue{}}

	// Storage is listed before the table: a file written after this point cannot be
	// reported as an orphan, and records created after it are not checked for their file.
	objects, err := rs.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list storage: %w", err)
	}
	docs, err := rs.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	report.ObjectsScanned = len(objects)
	report.RecordsScanned = len(docs)

	byName := make(map[string]storage.ObjectInfo, len(objects))
	for _, o := range objects {
		byName[path.Base(o.Key)] = o
	}
	referenced := make(map[string]struct{}, len(docs))

	for _, d := range docs {
		name := path.Base(d.Filepath)
		referenced[name] = struct{}{}
		if d.CreatedAt.After(report.StartedAt) {
			continue
		}
		obj, ok := byName[name]
		if !ok {
			report.Issues = append(report.Issues, ReconcileIssue{Type: IssueMissingFile, Key: d.Filepath, DocumentID: d.ID})
			continue
		}
		if obj.Size != d.Filesize {
			report.Issues = append(report.Issues, ReconcileIssue{
				Type:       IssueSizeMismatch,
				Key:        d.Filepath,
				DocumentID: d.ID,
				Detail:     fmt.Sprintf("recorded %d bytes, stored %d", d.Filesize, obj.Size),
			})
		}
	}

	for name, obj := range byName {
		if _, ok := referenced[name]; ok {
			continue
		}
		if report.StartedAt.Sub(obj.LastModified) < rs.grace {
			report.SkippedRecent++
			continue
		}
		issue := ReconcileIssue{Type: IssueOrphanedFile, Key: obj.Key}
		if !dryRun {
			// Re-check: an upload with an old mtime may have inserted its record meanwhile.
			if _, err := rs.repo.FindByFilepath(ctx, obj.Key); err == nil {
				continue
			} else if !errors.Is(err, repository.ErrNotFound) {
				issue.Detail = err.Error()
				report.Issues = append(report.Issues, issue)
				continue
			}
			if err := rs.store.Delete(ctx, obj.Key); err != nil {
				issue.Detail = err.Error()
			} else {
				issue.Removed = true
			}
		}
		report.Issues = append(report.Issues, issue)
	}

	report.CompletedAt = rs.now().UTC()
	rs.metrics.reconcile(report)
	rs.logger.Info("reconcile_completed",
		"dry_run", dryRun,
		"objects_scanned", report.ObjectsScanned,
		"records_scanned", report.RecordsScanned,
		"orphaned_files", report.Count(IssueOrphanedFile),
		"missing_files", report.Count(IssueMissingFile),
		"size_mismatches", report.Count(IssueSizeMismatch),
		"skipped_recent", report.SkippedRecent,
		"duration_ms", report.CompletedAt.Sub(report.StartedAt).Milliseconds(),
	)
	return report, nil
}
