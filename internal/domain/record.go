package domain

import (
	"fmt"
	"time"
)

// SchemaVersion is the current persisted-session document version. The storage
// collaborator migrates older versions forward before handing a record back.
const SchemaVersion = 1

// SessionRecord is the versioned document handed to the storage collaborator.
type SessionRecord struct {
	SchemaVersion int     `json:"schemaVersion"`
	Session       Session `json:"session"`
}

// CompletionRecord is emitted once to the candidate registry when a session
// completes.
type CompletionRecord struct {
	CandidateID string    `json:"candidateId"`
	FinalScore  int       `json:"finalScore"`
	Summary     string    `json:"summary"`
	Answers     []Answer  `json:"answers"`
	CompletedAt time.Time `json:"completedAt"`
}

// Validate checks a rehydrated record against the session invariants. A record
// that fails here must never be handed to an engine; resuming from it would run
// with a partially-initialized invariant set.
func (r SessionRecord) Validate() error {
	if r.SchemaVersion != SchemaVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrSchemaVersion, r.SchemaVersion, SchemaVersion)
	}
	s := r.Session
	if s.ID == "" {
		return fmt.Errorf("%w: empty session id", ErrCorruptSnapshot)
	}
	switch s.Status {
	case StatusIdle, StatusReady, StatusInProgress, StatusPaused, StatusCompleted:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrCorruptSnapshot, s.Status)
	}
	if len(s.Answers) > QuestionCount {
		return fmt.Errorf("%w: %d answers", ErrCorruptSnapshot, len(s.Answers))
	}
	for i, a := range s.Answers {
		if a.Index != i {
			return fmt.Errorf("%w: answer %d carries index %d", ErrCorruptSnapshot, i, a.Index)
		}
		if a.Score < 0 || a.Score > 100 {
			return fmt.Errorf("%w: answer %d score %d", ErrCorruptSnapshot, i, a.Score)
		}
	}
	if (s.Status == StatusCompleted) != (len(s.Answers) == QuestionCount) {
		return fmt.Errorf("%w: status %s with %d answers", ErrCorruptSnapshot, s.Status, len(s.Answers))
	}
	if s.Status != StatusIdle && s.Status != StatusReady {
		// A question must be active (or have been active) past the entry states.
		if s.CurrentIndex < 0 || s.CurrentIndex >= QuestionCount {
			return fmt.Errorf("%w: current index %d", ErrCorruptSnapshot, s.CurrentIndex)
		}
		if len(s.Questions) <= s.CurrentIndex {
			return fmt.Errorf("%w: missing questions", ErrCorruptSnapshot)
		}
	}
	if s.Timer.RemainingSeconds < 0 || s.Timer.RemainingSeconds > s.Timer.TotalSeconds {
		return fmt.Errorf("%w: timer remaining %d of %d", ErrCorruptSnapshot, s.Timer.RemainingSeconds, s.Timer.TotalSeconds)
	}
	return nil
}
