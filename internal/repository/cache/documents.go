// Package cache wraps a DocumentRepository with an in-memory LRU for FindByID.
// Document rows are never updated in place, so the only invalidation needed is on Delete.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"medvault/internal/model"
	"medvault/internal/repository"
)

// Documents is a read-through cache in front of another DocumentRepository.
type Documents struct {
	next  repository.DocumentRepository
	cache *expirable.LRU[int64, model.Document]
}

// NewDocuments wraps next. A size of zero or less disables caching and returns next unchanged.
func NewDocuments(next repository.DocumentRepository, size int, ttl time.Duration) repository.DocumentRepository {
	if size <= 0 {
		return next
	}
	return &Documents{
		next:  next,
		cache: expirable.NewLRU[int64, model.Document](size, nil, ttl),
	}
}

func (d *Documents) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	stored, err := d.next.Create(ctx, doc)
	if err != nil {
		return nil, err
	}
	d.cache.Add(stored.ID, *stored)
	return stored, nil
}

func (d *Documents) FindByID(ctx context.Context, id int64) (*model.Document, error) {
	if doc, ok := d.cache.Get(id); ok {
		return &doc, nil
	}
	doc, err := d.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d.cache.Add(id, *doc)
	return doc, nil
}

func (d *Documents) FindByFilepath(ctx context.Context, filepath string) (*model.Document, error) {
	return d.next.FindByFilepath(ctx, filepath)
}

func (d *Documents) List(ctx context.Context) ([]model.Document, error) {
	return d.next.List(ctx)
}

// Delete evicts before and after the underlying delete so a concurrent FindByID
// cannot leave a stale entry behind.
func (d *Documents) Delete(ctx context.Context, id int64) (repository.DeleteResult, error) {
	d.cache.Remove(id)
	res, err := d.next.Delete(ctx, id)
	d.cache.Remove(id)
	return res, err
}

func (d *Documents) Count(ctx context.Context) (int, error) {
	return d.next.Count(ctx)
}

func (d *Documents) Stats(ctx context.Context) (repository.Stats, error) {
	return d.next.Stats(ctx)
}

// Len reports the number of cached entries.
func (d *Documents) Len() int {
	return d.cache.Len()
}
