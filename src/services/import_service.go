// backend/src/services/import_service.go
package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/foliotracker/backend/src/logger"
	"github.com/username/foliotracker/backend/src/models"
	"github.com/username/foliotracker/backend/src/parsers"
	"github.com/username/foliotracker/backend/src/processors"
	"github.com/username/foliotracker/backend/src/security/validation"
)

const (
	// Sessions left unconfirmed are discarded after this long; an evicted
	// session is equivalent to a cancel, with no portfolio side effects.
	SessionTTL             = 30 * time.Minute
	sessionCleanupInterval = 10 * time.Minute
)

type importServiceImpl struct {
	mapper     *processors.ColumnMapper
	normalizer *processors.RowNormalizer
	store      *PortfolioStore
	merger     MergeService
	sessions   *cache.Cache
}

// NewImportService wires the extraction pipeline: adapter -> column mapper ->
// row normalizer -> review session. Confirmed sessions are handed to the
// merge service.
func NewImportService(
	mapper *processors.ColumnMapper,
	normalizer *processors.RowNormalizer,
	store *PortfolioStore,
	merger MergeService,
) ImportService {
	return &importServiceImpl{
		mapper:     mapper,
		normalizer: normalizer,
		store:      store,
		merger:     merger,
		sessions:   cache.New(SessionTTL, sessionCleanupInterval),
	}
}

func (s *importServiceImpl) StartImport(ctx context.Context, source string, file io.Reader) (*ImportResult, error) {
	startTime := time.Now()
	logger.L.Info("StartImport", "source", source)

	adapter, err := parsers.GetAdapter(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	grid, err := adapter.Parse(ctx, file)
	if err != nil {
		// Cancellation before completion discards partial work.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	sanitizeGrid(&grid)

	mapping, err := s.mapper.MapColumns(grid)
	if err != nil {
		return nil, err
	}

	records := s.normalizer.Normalize(grid, mapping, s.store.MappingsView())
	session := newReviewSession(records)
	s.sessions.Set(session.ID, session, cache.DefaultExpiration)

	columns := make(map[int]ColumnReport, len(mapping.Columns))
	for col, match := range mapping.Columns {
		columns[col] = ColumnReport{Field: match.Field.String(), Confidence: match.Confidence}
	}

	logger.L.Info("Import session created",
		"sessionID", session.ID,
		"records", len(records),
		"mappedColumns", len(columns),
		"durationMs", time.Since(startTime).Milliseconds())

	return &ImportResult{
		SessionID: session.ID,
		Records:   session.RecordsView(),
		Columns:   columns,
	}, nil
}

func (s *importServiceImpl) Session(id string) (*ReviewSession, error) {
	cached, found := s.sessions.Get(id)
	if !found {
		return nil, ErrSessionNotFound
	}
	return cached.(*ReviewSession), nil
}

func (s *importServiceImpl) EditField(id string, recordIdx int, field models.CanonicalField, raw string) (*models.DraftRecord, error) {
	session, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.state != sessionOpen {
		return nil, ErrSessionClosed
	}
	if recordIdx < 0 || recordIdx >= len(session.records) {
		return nil, fmt.Errorf("%w: index %d", ErrRecordNotFound, recordIdx)
	}

	raw = validation.StripUnprintable(validation.SanitizeText(raw))
	s.normalizer.ReparseField(&session.records[recordIdx], field, raw)

	edited := cloneRecords(session.records[recordIdx : recordIdx+1])
	return &edited[0], nil
}

func (s *importServiceImpl) RemoveRecord(id string, recordIdx int) error {
	session, err := s.Session(id)
	if err != nil {
		return err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.state != sessionOpen {
		return ErrSessionClosed
	}
	if recordIdx < 0 || recordIdx >= len(session.records) {
		return fmt.Errorf("%w: index %d", ErrRecordNotFound, recordIdx)
	}
	session.records = append(session.records[:recordIdx], session.records[recordIdx+1:]...)
	return nil
}

func (s *importServiceImpl) Confirm(id string) (*MergeSummary, error) {
	session, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.state != sessionOpen {
		return nil, ErrSessionClosed
	}
	if rows := session.blockingRows(); len(rows) > 0 {
		return nil, &BlockingFieldsError{Rows: rows}
	}

	summary, err := s.merger.MergeBatch(cloneRecords(session.records))
	if err != nil {
		// The batch was rejected wholesale; the session stays open so the
		// user can fix the offending records or cancel.
		return nil, err
	}

	session.state = sessionConfirmed
	s.sessions.Delete(session.ID)
	logger.L.Info("Import session confirmed", "sessionID", session.ID,
		"inserted", summary.Inserted, "updated", summary.Updated)
	return summary, nil
}

func (s *importServiceImpl) Cancel(id string) error {
	session, err := s.Session(id)
	if err != nil {
		return err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.state != sessionOpen {
		return ErrSessionClosed
	}
	session.state = sessionCancelled
	s.sessions.Delete(session.ID)
	logger.L.Info("Import session cancelled", "sessionID", session.ID)
	return nil
}

// sanitizeGrid strips HTML and unprintable characters from every extracted
// cell before any of it reaches the review UI or the database.
func sanitizeGrid(grid *models.RawGrid) {
	for i := range grid.Rows {
		for j := range grid.Rows[i] {
			cell := &grid.Rows[i][j]
			cell.Text = validation.StripUnprintable(validation.SanitizeText(cell.Text))
		}
	}
}
