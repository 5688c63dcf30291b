package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mintmatch/mintmatch/internal/domain"
)

// ArchiveReader lists and retrieves monthly archive exports from blob
// storage.
type ArchiveReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]domain.BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// ArchivePruner removes archive exports that are no longer needed.
type ArchivePruner interface {
	Delete(ctx context.Context, path string) error
}

// ArchiveHandler serves browse, download, and prune endpoints over the
// archive exports. It never touches the primary store.
type ArchiveHandler struct {
	reader ArchiveReader
	pruner ArchivePruner
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler.
func NewArchiveHandler(reader ArchiveReader, pruner ArchivePruner, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		reader: reader,
		pruner: pruner,
		logger: logger,
	}
}

type archiveView struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// ListArchives enumerates stored exports, optionally narrowed to one kind.
// GET /api/archive?kind=bets|events
func (h *ArchiveHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	prefix := "archive/"
	if kind := r.URL.Query().Get("kind"); kind != "" {
		if kind != "bets" && kind != "events" {
			writeError(w, http.StatusBadRequest, `kind must be "bets" or "events"`)
			return
		}
		prefix += kind + "/"
	}

	infos, err := h.reader.List(r.Context(), prefix)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list archives failed",
			slog.String("prefix", prefix),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list archives")
		return
	}

	views := make([]archiveView, 0, len(infos))
	for _, info := range infos {
		views = append(views, archiveView{
			Path:         info.Path,
			Size:         info.Size,
			LastModified: info.LastModified,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"archives": views})
}

// GetArchive streams one monthly export back as line-delimited JSON.
// GET /api/archive/{kind}/{month}
func (h *ArchiveHandler) GetArchive(w http.ResponseWriter, r *http.Request) {
	path, err := parseArchivePath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	body, err := h.reader.Get(r.Context(), path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "archive not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: archive read failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read archive")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "handler: archive stream interrupted",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

// DeleteArchive prunes one monthly export. The primary store keeps its rows;
// only the blob copy goes away.
// DELETE /api/archive/{kind}/{month}
func (h *ArchiveHandler) DeleteArchive(w http.ResponseWriter, r *http.Request) {
	path, err := parseArchivePath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	exists, err := h.reader.Exists(r.Context(), path)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: archive check failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to check archive")
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, "archive not found")
		return
	}

	if err := h.pruner.Delete(r.Context(), path); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: archive delete failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete archive")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseArchivePath validates the {kind}/{month} pair and returns the blob
// path of the export.
func parseArchivePath(r *http.Request) (string, error) {
	kind := r.PathValue("kind")
	if kind != "bets" && kind != "events" {
		return "", fmt.Errorf(`kind must be "bets" or "events"`)
	}
	month := r.PathValue("month")
	if _, err := time.Parse("2006-01", month); err != nil {
		return "", fmt.Errorf("month must be formatted YYYY-MM")
	}
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, month), nil
}
