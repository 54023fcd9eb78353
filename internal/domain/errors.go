package domain

import "errors"

var (
	// ErrCandidateMissing is returned when a session is initialized without
	// candidate data.
	ErrCandidateMissing = errors.New("candidate data missing")
	// ErrSessionNotReady is returned when start is called outside the ready state.
	ErrSessionNotReady = errors.New("session not ready")
	// ErrSessionNotInProgress is returned for submissions or pauses outside an
	// active session.
	ErrSessionNotInProgress = errors.New("session not in progress")
	// ErrSessionNotPaused is returned when resume is called on a session that is
	// not paused.
	ErrSessionNotPaused = errors.New("session not paused")
	// ErrSessionCompleted is returned for any mutation of a completed session.
	ErrSessionCompleted = errors.New("session already completed")
	// ErrQuestionUnavailable indicates no question source could serve a prompt.
	ErrQuestionUnavailable = errors.New("question unavailable")
	// ErrSnapshotNotFound indicates no persisted snapshot exists for a session ID.
	ErrSnapshotNotFound = errors.New("session snapshot not found")
	// ErrCorruptSnapshot indicates a persisted snapshot failed validation and
	// must not be rehydrated.
	ErrCorruptSnapshot = errors.New("session snapshot corrupt")
	// ErrSchemaVersion indicates a persisted snapshot carries a schema version
	// this build cannot migrate.
	ErrSchemaVersion = errors.New("unsupported snapshot schema version")
)
