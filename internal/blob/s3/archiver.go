package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mintmatch/mintmatch/internal/domain"
)

// ---------------------------------------------------------------------------
// Narrow store interfaces required by the archiver.
//
// The archiver only needs the list queries it actually calls, not the full
// store interfaces. The Postgres and in-memory stores satisfy these
// implicitly through their List methods.
// ---------------------------------------------------------------------------

// BetArchiveStore provides read access to bets for archival purposes.
type BetArchiveStore interface {
	List(ctx context.Context, opts domain.ListOpts) ([]domain.Bet, error)
}

// EventArchiveStore provides read access to the audit log for archival
// purposes, plus Log so the archival runs themselves leave a record.
type EventArchiveStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts domain.ListOpts) ([]domain.Event, error)
}

// ---------------------------------------------------------------------------
// ArchiveImpl
// ---------------------------------------------------------------------------

// ArchiveImpl implements domain.Archiver by querying the stores for aged
// records, serializing them to JSONL, and uploading the result to S3.
//
// Deletion of the archived records from the primary store is intentionally
// NOT performed here -- that is a separate, explicit step to be executed
// after the archive has been verified.
type ArchiveImpl struct {
	writer domain.BlobWriter
	bets   BetArchiveStore
	events EventArchiveStore
	logger *slog.Logger
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, bets BetArchiveStore, events EventArchiveStore, logger *slog.Logger) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		bets:   bets,
		events: events,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveBets queries all bets created before the cutoff, keeps the closed
// ones (open bets stay hot until they settle or cancel), serializes them to
// JSONL, and uploads the file to S3 at archive/bets/YYYY-MM.jsonl. The
// archival run is recorded in the audit log and the count of archived
// records is returned.
func (a *ArchiveImpl) ArchiveBets(ctx context.Context, before time.Time) (int64, error) {
	all, err := a.bets.List(ctx, domain.ListOpts{Until: &before})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive bets query: %w", err)
	}

	closed := all[:0]
	for _, b := range all {
		if b.Status.Closed() {
			closed = append(closed, b)
		}
	}
	if len(closed) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(closed)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive bets marshal: %w", err)
	}

	path := archivePath("bets", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive bets upload: %w", err)
	}

	count := int64(len(closed))

	if err := a.events.Log(ctx, "archive.bets", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive bets audit log: %w", err)
	}

	return count, nil
}

// ArchiveEvents queries all audit log entries recorded before the cutoff,
// serializes them to JSONL, and uploads the file to S3 at
// archive/events/YYYY-MM.jsonl. The archival run is recorded in the audit
// log and the count of archived records is returned.
func (a *ArchiveImpl) ArchiveEvents(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.events.List(ctx, domain.ListOpts{Until: &before})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events marshal: %w", err)
	}

	path := archivePath("events", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive events upload: %w", err)
	}

	count := int64(len(entries))

	if err := a.events.Log(ctx, "archive.events", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive events audit log: %w", err)
	}

	return count, nil
}

// Run executes archival on a fixed interval until the context is cancelled.
// Each pass archives everything older than the retention window. A failed
// pass is logged and retried on the next tick.
func (a *ArchiveImpl) Run(ctx context.Context, interval, retention time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-retention)

			bets, err := a.ArchiveBets(ctx, cutoff)
			if err != nil {
				a.logger.ErrorContext(ctx, "bet archival failed",
					slog.String("error", err.Error()),
				)
			}
			events, err := a.ArchiveEvents(ctx, cutoff)
			if err != nil {
				a.logger.ErrorContext(ctx, "event archival failed",
					slog.String("error", err.Error()),
				)
			}

			a.logger.InfoContext(ctx, "archival pass complete",
				slog.Int64("bets", bets),
				slog.Int64("events", events),
				slog.Time("cutoff", cutoff),
			)
		}
	}
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/bets/2026-08.jsonl
//	archive/events/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*ArchiveImpl)(nil)
