// Package storage maps generated keys to raw document bytes. Two backends exist: Local writes
// under a single uploads root on disk, MinIO talks to an S3-compatible bucket.
// Keys are resolved by base name only, so a key can never address anything outside the root.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrObjectNotFound is returned by Get when no object exists under the key.
	ErrObjectNotFound = errors.New("storage: object not found")
	// ErrObjectExists is returned by Put when the key is already taken.
	ErrObjectExists = errors.New("storage: object already exists")
	// ErrInvalidKey is returned when a key has no usable base name.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// PutObjectOptions define optional parameters for uploading objects.
// Size is only a hint; -1 means unknown and the implementation streams until EOF.
// ContentType and Metadata are optional.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in storage.
// Size is always the number of bytes actually stored, never a client-declared value.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is the byte store behind the upload and download pipelines.
type Storage interface {
	// Put writes r under key and reports the observed size. It fails with ErrObjectExists
	// rather than overwrite.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get retrieves an object's content as a streaming reader alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object by key. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
	// List returns every stored object. Used by the reconciliation sweep.
	List(ctx context.Context) ([]ObjectInfo, error)
}
