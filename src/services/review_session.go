// backend/src/services/review_session.go
package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/username/foliotracker/backend/src/models"
)

type sessionState int

const (
	sessionOpen sessionState = iota
	sessionConfirmed
	sessionCancelled
)

// ReviewSession is the staging area for one import: an ordered batch of draft
// records the user edits before confirming or cancelling. The session is a
// state machine, Draft -> (edited)* -> Confirmed | Cancelled, with no side
// effects on the portfolio until Confirm succeeds. Review is defined as
// single-owner; the mutex only serializes overlapping HTTP calls on the same
// session.
type ReviewSession struct {
	ID        string
	CreatedAt time.Time

	mu      sync.Mutex
	records []models.DraftRecord
	state   sessionState
}

func newReviewSession(records []models.DraftRecord) *ReviewSession {
	return &ReviewSession{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		records:   records,
	}
}

// RecordsView returns a deep copy of the current draft records.
func (s *ReviewSession) RecordsView() []models.DraftRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRecords(s.records)
}

// BlockingRows lists the source row indexes of records that still block
// confirmation.
func (s *ReviewSession) BlockingRows() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blockingRows()
}

// blockingRows is the lock-free variant. Caller holds s.mu.
func (s *ReviewSession) blockingRows() []int {
	var rows []int
	for _, r := range s.records {
		if r.Blocking {
			rows = append(rows, r.Row)
		}
	}
	return rows
}

func cloneRecords(records []models.DraftRecord) []models.DraftRecord {
	out := make([]models.DraftRecord, len(records))
	for i, r := range records {
		out[i] = r
		out[i].Fields = make(map[models.CanonicalField]models.FieldValue, len(r.Fields))
		for f, v := range r.Fields {
			out[i].Fields[f] = v
		}
		if r.TargetPercent != nil {
			t := *r.TargetPercent
			out[i].TargetPercent = &t
		}
	}
	return out
}
