package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// localStorage implements Storage on a single directory of the local filesystem.
// It is safe for concurrent use: new files are created with O_EXCL so two writers can never
// share a name, and deletes are idempotent.
type localStorage struct {
	root string
}

// NewLocal creates a filesystem-backed Storage rooted at dir, creating the directory if needed.
func NewLocal(dir string) (Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &localStorage{root: abs}, nil
}

func (l *localStorage) resolve(key string) (string, error) {
	name, err := BaseName(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.root, name), nil
}

// Put streams r into a freshly created file. On any write error the partial file is removed.
func (l *localStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	target, err := l.resolve(key)
	if err != nil {
		return ObjectInfo{}, err
	}

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ObjectInfo{}, fmt.Errorf("%w: %s", ErrObjectExists, key)
		}
		return ObjectInfo{}, fmt.Errorf("create file: %w", err)
	}

	n, err := io.Copy(f, contextReader{ctx: ctx, r: r})
	if err != nil {
		f.Close()
		os.Remove(target)
		return ObjectInfo{}, fmt.Errorf("write file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(target)
		return ObjectInfo{}, fmt.Errorf("sync file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(target)
		return ObjectInfo{}, fmt.Errorf("close file: %w", err)
	}

	st, err := os.Stat(target)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat file: %w", err)
	}
	return ObjectInfo{
		Key:          key,
		Size:         n,
		ContentType:  opt.ContentType,
		LastModified: st.ModTime(),
		Metadata:     opt.Metadata,
	}, nil
}

// Get opens the file behind key for reading. The caller must close the reader.
func (l *localStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, err
	}
	target, err := l.resolve(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}

	f, err := os.Open(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ObjectInfo{}, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, ObjectInfo{}, fmt.Errorf("open file: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, fmt.Errorf("stat file: %w", err)
	}
	if st.IsDir() {
		f.Close()
		return nil, ObjectInfo{}, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return f, ObjectInfo{
		Key:          key,
		Size:         st.Size(),
		ContentType:  mime.TypeByExtension(filepath.Ext(target)),
		LastModified: st.ModTime(),
	}, nil
}

// Delete removes the file behind key; a file that is already gone is not an error.
func (l *localStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// List returns every regular, non-hidden file in the root as KeyPrefix/<name>.
func (l *localStorage) List(ctx context.Context) ([]ObjectInfo, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("read upload directory: %w", err)
	}
	out := make([]ObjectInfo, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		out = append(out, ObjectInfo{
			Key:          path.Join(KeyPrefix, e.Name()),
			Size:         info.Size(),
			ContentType:  mime.TypeByExtension(filepath.Ext(e.Name())),
			LastModified: info.ModTime(),
		})
	}
	return out, nil
}

// contextReader stops a copy as soon as ctx is cancelled, e.g. when the client goes away.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
