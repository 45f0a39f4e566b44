package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/asad/bluectl/internal/logging"
)

// setupTestService creates a blob service on a temporary store, mounted under /blob.
func setupTestService(t *testing.T) (http.Handler, BlobStore) {
	t.Helper()

	store, err := NewFileBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}

	service := NewBlobService(store, logging.NewNop())
	router := chi.NewRouter()
	router.Route("/"+service.Name(), service.RegisterRoutes)

	return router, store
}

func serve(router http.Handler, method, target string, body []byte, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestBlobService_CreateContainer(t *testing.T) {
	router, store := setupTestService(t)

	w := serve(router, http.MethodPut, "/blob/testaccount/testcontainer", nil, nil)
	if w.Code != http.StatusCreated {
		t.Errorf("expected status %d, got %d", http.StatusCreated, w.Code)
	}

	exists, err := store.ContainerExists(context.Background(), "testaccount", "testcontainer")
	if err != nil {
		t.Fatalf("failed to check container existence: %v", err)
	}
	if !exists {
		t.Error("container should exist after creation")
	}

	w = serve(router, http.MethodPut, "/blob/testaccount/testcontainer", nil, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("expected status %d for duplicate container, got %d", http.StatusConflict, w.Code)
	}
	if code := errorCode(t, w); code != "ContainerAlreadyExists" {
		t.Errorf("expected ContainerAlreadyExists, got %q", code)
	}
}

func TestBlobService_ContainerExistsAndList(t *testing.T) {
	router, store := setupTestService(t)
	ctx := context.Background()

	for _, name := range []string{"logs", "logs-archive", "photos"} {
		if err := store.CreateContainer(ctx, "acct", name); err != nil {
			t.Fatalf("failed to create container: %v", err)
		}
	}

	if w := serve(router, http.MethodHead, "/blob/acct/logs", nil, nil); w.Code != http.StatusOK {
		t.Errorf("expected existing container to return 200, got %d", w.Code)
	}
	if w := serve(router, http.MethodHead, "/blob/acct/missing", nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("expected missing container to return 404, got %d", w.Code)
	}

	w := serve(router, http.MethodGet, "/blob/acct?prefix=logs", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var result ContainerListResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(result.Containers) != 2 {
		t.Errorf("expected 2 containers with prefix, got %d", len(result.Containers))
	}
}

func TestBlobService_PutGetBlob(t *testing.T) {
	router, store := setupTestService(t)

	if err := store.CreateContainer(context.Background(), "testaccount", "testcontainer"); err != nil {
		t.Fatalf("failed to create container: %v", err)
	}

	blobContent := []byte("test blob content")
	header := http.Header{}
	header.Set("Content-Type", "text/plain")
	header.Set("x-ms-meta-Owner", "alice")
	w := serve(router, http.MethodPut, "/blob/testaccount/testcontainer/dir/testblob.txt", blobContent, header)
	if w.Code != http.StatusCreated {
		t.Errorf("expected status %d, got %d", http.StatusCreated, w.Code)
	}

	w = serve(router, http.MethodGet, "/blob/testaccount/testcontainer/dir/testblob.txt", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if !bytes.Equal(w.Body.Bytes(), blobContent) {
		t.Errorf("expected content %q, got %q", string(blobContent), w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/plain" {
		t.Errorf("expected content type to round-trip, got %q", ct)
	}
	if owner := w.Header().Get("x-ms-meta-owner"); owner != "alice" {
		t.Errorf("expected metadata to round-trip, got %q", owner)
	}

	w = serve(router, http.MethodHead, "/blob/testaccount/testcontainer/dir/testblob.txt", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected HEAD status 200, got %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("HEAD should not return a body")
	}
}

func TestBlobService_PutBlobMissingContainer(t *testing.T) {
	router, _ := setupTestService(t)

	w := serve(router, http.MethodPut, "/blob/testaccount/nope/file.txt", []byte("x"), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
	if code := errorCode(t, w); code != "ContainerNotFound" {
		t.Errorf("expected ContainerNotFound, got %q", code)
	}
}

func TestBlobService_DeleteBlob(t *testing.T) {
	router, store := setupTestService(t)
	ctx := context.Background()

	if err := store.CreateContainer(ctx, "testaccount", "testcontainer"); err != nil {
		t.Fatalf("failed to create container: %v", err)
	}
	if err := store.PutBlob(ctx, "testaccount", "testcontainer", "testblob.txt", []byte("content"), "text/plain", nil); err != nil {
		t.Fatalf("failed to put blob: %v", err)
	}

	w := serve(router, http.MethodDelete, "/blob/testaccount/testcontainer/testblob.txt", nil, nil)
	if w.Code != http.StatusAccepted {
		t.Errorf("expected status %d, got %d", http.StatusAccepted, w.Code)
	}

	_, err := store.GetBlob(ctx, "testaccount", "testcontainer", "testblob.txt")
	if !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("expected ErrBlobNotFound after deletion, got %v", err)
	}

	w = serve(router, http.MethodDelete, "/blob/testaccount/testcontainer/testblob.txt", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d for second delete, got %d", http.StatusNotFound, w.Code)
	}
}

func TestBlobService_ListBlobs(t *testing.T) {
	router, store := setupTestService(t)
	ctx := context.Background()

	if err := store.CreateContainer(ctx, "testaccount", "testcontainer"); err != nil {
		t.Fatalf("failed to create container: %v", err)
	}
	for _, name := range []string{"b.txt", "a.txt", "other/c.txt"} {
		if err := store.PutBlob(ctx, "testaccount", "testcontainer", name, []byte(name), "text/plain", nil); err != nil {
			t.Fatalf("failed to put blob: %v", err)
		}
	}

	w := serve(router, http.MethodGet, "/blob/testaccount/testcontainer", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var result BlobListResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(result.Blobs) != 3 {
		t.Fatalf("expected 3 blobs, got %d", len(result.Blobs))
	}
	if result.Blobs[0].Name != "a.txt" || result.Blobs[2].Name != "other/c.txt" {
		t.Errorf("expected blobs sorted by name, got %+v", result.Blobs)
	}

	w = serve(router, http.MethodGet, "/blob/testaccount/testcontainer?prefix=other/&maxresults=5", nil, nil)
	result = BlobListResult{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(result.Blobs) != 1 || result.Blobs[0].Name != "other/c.txt" {
		t.Errorf("expected only other/c.txt, got %+v", result.Blobs)
	}

	w = serve(router, http.MethodGet, "/blob/testaccount/testcontainer?maxresults=2", nil, nil)
	result = BlobListResult{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(result.Blobs) != 2 {
		t.Errorf("expected maxresults to cap the listing at 2, got %d", len(result.Blobs))
	}
}

func TestBlobService_DeleteContainer(t *testing.T) {
	router, store := setupTestService(t)
	ctx := context.Background()

	if err := store.CreateContainer(ctx, "testaccount", "testcontainer"); err != nil {
		t.Fatalf("failed to create container: %v", err)
	}

	w := serve(router, http.MethodDelete, "/blob/testaccount/testcontainer", nil, nil)
	if w.Code != http.StatusAccepted {
		t.Errorf("expected status %d, got %d", http.StatusAccepted, w.Code)
	}

	w = serve(router, http.MethodGet, "/blob/testaccount/testcontainer", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d listing a deleted container, got %d", http.StatusNotFound, w.Code)
	}
}

func TestFileBlobStore_RejectsTraversal(t *testing.T) {
	store, err := NewFileBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}
	ctx := context.Background()
	if err := store.CreateContainer(ctx, "acct", "c"); err != nil {
		t.Fatalf("failed to create container: %v", err)
	}

	if err := store.PutBlob(ctx, "acct", "c", "../escape.txt", []byte("x"), "", nil); !errors.Is(err, ErrInvalidName) {
		t.Errorf("expected ErrInvalidName for traversal, got %v", err)
	}
	if err := store.CreateContainer(ctx, "acct", ".."); !errors.Is(err, ErrInvalidName) {
		t.Errorf("expected ErrInvalidName for container name, got %v", err)
	}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body.Error.Code
}
