package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/mintmatch/mintmatch/internal/domain"
)

// fakeBlobStore is an in-memory ArchiveReader + ArchivePruner.
type fakeBlobStore struct {
	objects map[string][]byte
	deletes []string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (s *fakeBlobStore) Get(_ context.Context, path string) (io.ReadCloser, error) {
	data, ok := s.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func (s *fakeBlobStore) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	var infos []domain.BlobInfo
	for path, data := range s.objects {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		infos = append(infos, domain.BlobInfo{
			Path:         path,
			Size:         int64(len(data)),
			LastModified: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

func (s *fakeBlobStore) Exists(_ context.Context, path string) (bool, error) {
	_, ok := s.objects[path]
	return ok, nil
}

func (s *fakeBlobStore) Delete(_ context.Context, path string) error {
	delete(s.objects, path)
	s.deletes = append(s.deletes, path)
	return nil
}

func archiveMux(h *ArchiveHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/archive", h.ListArchives)
	mux.HandleFunc("GET /api/archive/{kind}/{month}", h.GetArchive)
	mux.HandleFunc("DELETE /api/archive/{kind}/{month}", h.DeleteArchive)
	return mux
}

func TestListArchivesFiltersByKind(t *testing.T) {
	store := newFakeBlobStore()
	store.objects["archive/bets/2026-06.jsonl"] = []byte("{}\n")
	store.objects["archive/bets/2026-07.jsonl"] = []byte("{}\n{}\n")
	store.objects["archive/events/2026-07.jsonl"] = []byte("{}\n")
	mux := archiveMux(NewArchiveHandler(store, store, slog.Default()))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/archive?kind=bets", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Archives []archiveView `json:"archives"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Archives) != 2 {
		t.Fatalf("archives = %d, want 2", len(resp.Archives))
	}
	for _, a := range resp.Archives {
		if !strings.HasPrefix(a.Path, "archive/bets/") {
			t.Errorf("unexpected path %s", a.Path)
		}
	}

	// Without a kind filter every export is listed.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/archive", nil))
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Archives) != 3 {
		t.Errorf("archives = %d, want 3", len(resp.Archives))
	}
}

func TestListArchivesRejectsUnknownKind(t *testing.T) {
	store := newFakeBlobStore()
	mux := archiveMux(NewArchiveHandler(store, store, slog.Default()))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/archive?kind=trades", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetArchiveStreamsExport(t *testing.T) {
	store := newFakeBlobStore()
	body := `{"id":1}` + "\n" + `{"id":2}` + "\n"
	store.objects["archive/events/2026-07.jsonl"] = []byte(body)
	mux := archiveMux(NewArchiveHandler(store, store, slog.Default()))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/archive/events/2026-07", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("content type = %s", ct)
	}
	if rec.Body.String() != body {
		t.Errorf("body = %q, want %q", rec.Body.String(), body)
	}
}

func TestGetArchiveNotFound(t *testing.T) {
	store := newFakeBlobStore()
	mux := archiveMux(NewArchiveHandler(store, store, slog.Default()))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/archive/bets/2026-01", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetArchiveRejectsBadPath(t *testing.T) {
	store := newFakeBlobStore()
	mux := archiveMux(NewArchiveHandler(store, store, slog.Default()))

	cases := []struct {
		name string
		url  string
	}{
		{"unknown kind", "/api/archive/trades/2026-07"},
		{"bad month", "/api/archive/bets/july-2026"},
		{"month with day", "/api/archive/bets/2026-07-01"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.url, nil))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestDeleteArchive(t *testing.T) {
	store := newFakeBlobStore()
	store.objects["archive/bets/2026-06.jsonl"] = []byte("{}\n")
	mux := archiveMux(NewArchiveHandler(store, store, slog.Default()))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/archive/bets/2026-06", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(store.deletes) != 1 || store.deletes[0] != "archive/bets/2026-06.jsonl" {
		t.Errorf("deletes = %v", store.deletes)
	}

	// Deleting it again reports not found rather than succeeding silently.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/archive/bets/2026-06", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if len(store.deletes) != 1 {
		t.Errorf("delete called on missing export")
	}
}
