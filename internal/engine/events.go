package engine

import "interview-engine-service/internal/domain"

// EventType discriminates engine events on the subscription channel.
type EventType string

const (
	// EventSession signals a lifecycle transition and carries the new status.
	EventSession EventType = "session"
	// EventQuestion signals a newly activated question.
	EventQuestion EventType = "question"
	// EventTimer carries the remaining time for the active question.
	EventTimer EventType = "timer"
	// EventAnswer carries a resolved answer once its score has attached.
	EventAnswer EventType = "answerResult"
	// EventAdvisory carries the tier-boundary progression note.
	EventAdvisory EventType = "advisory"
	// EventCompleted signals finalization and carries score and summary.
	EventCompleted EventType = "completed"
)

// Event is one update on the engine's subscription channel.
type Event struct {
	Type             EventType          `json:"type"`
	Status           domain.Status      `json:"status,omitempty"`
	Question         *domain.Question   `json:"question,omitempty"`
	RemainingSeconds int                `json:"remainingSeconds,omitempty"`
	Answer           *domain.Answer     `json:"answer,omitempty"`
	Evaluation       *domain.Evaluation `json:"evaluation,omitempty"`
	Advisory         *domain.Advisory   `json:"advisory,omitempty"`
	FinalScore       int                `json:"finalScore,omitempty"`
	Summary          string             `json:"summary,omitempty"`
}
