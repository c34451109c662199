package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"medvault/internal/model"
	"medvault/internal/repository"
	"medvault/internal/service"
	"medvault/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo is an in-memory DocumentRepository used to drive the full stack without PostgreSQL.
type memRepo struct {
	mu         sync.Mutex
	nextID     int64
	rows       map[int64]model.Document
	failCreate error
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[int64]model.Document)}
}

func (r *memRepo) Create(_ context.Context, doc *model.Document) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return nil, r.failCreate
	}
	for _, d := range r.rows {
		if d.Filepath == doc.Filepath {
			return nil, repository.ErrUniqueViolation
		}
	}
	r.nextID++
	stored := *doc
	stored.ID = r.nextID
	stored.CreatedAt = time.Now().Add(time.Duration(r.nextID) * time.Millisecond)
	r.rows[stored.ID] = stored
	return &stored, nil
}

func (r *memRepo) FindByID(_ context.Context, id int64) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

func (r *memRepo) FindByFilepath(_ context.Context, fp string) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.rows {
		if d.Filepath == fp {
			return &d, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memRepo) List(_ context.Context) ([]model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Document, 0, len(r.rows))
	for _, d := range r.rows {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memRepo) Delete(_ context.Context, id int64) (repository.DeleteResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return repository.DeleteResult{}, nil
	}
	delete(r.rows, id)
	return repository.DeleteResult{Removed: true, Affected: 1}, nil
}

func (r *memRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows), nil
}

func (r *memRepo) Stats(_ context.Context) (repository.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var st repository.Stats
	for _, d := range r.rows {
		st.Count++
		st.TotalBytes += d.Filesize
		if st.LatestUpload == nil || d.CreatedAt.After(*st.LatestUpload) {
			t := d.CreatedAt
			st.LatestUpload = &t
		}
	}
	return st, nil
}

func newTestApp(t *testing.T) (*fiber.App, *memRepo, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocal(dir)
	require.NoError(t, err)
	repo := newMemRepo()
	svc := service.NewDocumentService(store, repo)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	RegisterRoutes(app, nil, svc, RouteOptions{UploadDir: dir})
	return app, repo, dir
}

func upload(t *testing.T, app *fiber.App, filename, contentType string, content []byte) (*http.Response, map[string]any) {
	t.Helper()
	body, ct := multipartFile(t, "file", filename, contentType, content)
	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", body)
	req.Header.Set("Content-Type", ct)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp, decodeEnvelope(t, resp.Body)
}

func filesIn(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestEndToEnd(t *testing.T) {
	app, _, dir := newTestApp(t)

	// 1. Upload a 10-byte PDF.
	resp, body := upload(t, app, "a.pdf", "application/pdf", []byte("%PDF-1.4\n%"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, "a.pdf", data["filename"])
	assert.Equal(t, float64(10), data["filesize"])
	id := int64(data["id"].(float64))
	assert.Positive(t, id)
	filePath := data["filepath"].(string)
	assert.Regexp(t, `^uploads/file-\d+-\d{9}\.pdf$`, filePath)

	// A second, later upload.
	resp, _ = upload(t, app, "b.png", "image/png", []byte("png"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// 2. List: newest first, total counts both.
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Success bool             `json:"success"`
		Data    []model.Document `json:"data"`
		Total   int              `json:"total"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Equal(t, 2, list.Total)
	assert.Equal(t, "b.png", list.Data[0].Filename)
	assert.Equal(t, id, list.Data[1].ID)

	// 3. Download returns exactly the stored bytes under the original name.
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/documents/"+strconv.FormatInt(id, 10)+"?download=true", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b, _ := io.ReadAll(resp.Body)
	assert.Len(t, b, 10)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="a.pdf"`)

	// The filepath also resolves through the static route.
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/"+filePath, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// 4. Disallowed type: 400, nothing written, nothing recorded.
	before := filesIn(t, dir)
	resp, body = upload(t, app, "notes.txt", "text/plain", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "UNSUPPORTED_TYPE", body["code"])
	assert.Equal(t, before, filesIn(t, dir))

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/api/documents/count", nil))
	countBody := decodeEnvelope(t, resp.Body)
	assert.Equal(t, map[string]any{"count": float64(2)}, countBody["data"])

	// 5. Delete, then the id is gone and a second delete is a 404.
	idPath := "/api/documents/" + strconv.FormatInt(id, 10)
	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, idPath, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_, err = os.Stat(filepath.Join(dir, filepath.Base(filePath)))
	assert.True(t, os.IsNotExist(err))

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, idPath, nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = app.Test(httptest.NewRequest(http.MethodDelete, idPath, nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEndToEnd_InsertFailureRemovesBytes(t *testing.T) {
	app, repo, dir := newTestApp(t)
	repo.failCreate = repository.ErrUniqueViolation

	resp, body := upload(t, app, "a.pdf", "application/pdf", []byte("0123456789"))

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Empty(t, filesIn(t, dir), "compensating delete must remove the written file")
}

func TestEndToEnd_OrphanedRecord(t *testing.T) {
	app, _, dir := newTestApp(t)

	resp, body := upload(t, app, "scan.jpg", "image/jpeg", []byte("jpeg"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := body["data"].(map[string]any)
	id := strconv.FormatInt(int64(data["id"].(float64)), 10)

	require.NoError(t, os.Remove(filepath.Join(dir, filepath.Base(data["filepath"].(string)))))

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/api/documents/"+id, nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/api/documents/"+id+"?download=true", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "FILE_MISSING", decodeEnvelope(t, resp.Body)["code"])

	// Deleting an orphaned record still succeeds.
	resp, _ = app.Test(httptest.NewRequest(http.MethodDelete, "/api/documents/"+id, nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEndToEnd_UploadsNeverServedAsMarkup(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp, body := upload(t, app, "evil.html", "application/pdf", []byte("<script>alert(1)</script>"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, "evil.html", data["filename"])
	filePath := data["filepath"].(string)
	assert.Regexp(t, `^uploads/file-\d+-\d{9}\.pdf$`, filePath, "stored extension follows the admitted type")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/"+filePath, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Disposition"), "attachment"),
		"static uploads must be sent as attachments, got %q", resp.Header.Get("Content-Disposition"))
}
