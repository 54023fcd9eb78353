package domain

import "time"

// Difficulty is the tier of a question in the fixed interview ladder.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Status is the lifecycle state of an interview session.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusReady      Status = "ready"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
)

// QuestionCount is the fixed number of questions in a session.
const QuestionCount = 6

// TimeExpiredSentinel is the answer text recorded when the countdown wins the
// submission race.
const TimeExpiredSentinel = "[time expired]"

// Question is a single interview prompt. Immutable once created.
type Question struct {
	ID               string     `json:"id"`
	Index            int        `json:"index"`
	Difficulty       Difficulty `json:"difficulty"`
	TimeLimitSeconds int        `json:"timeLimitSeconds"`
	Category         string     `json:"category"`
	Prompt           string     `json:"prompt"`
}

// Answer records one resolved question. Created exactly once per index;
// Score and Feedback are attached when the evaluation result arrives.
type Answer struct {
	QuestionID       string    `json:"questionId"`
	Index            int       `json:"index"`
	Text             string    `json:"text"`
	SubmittedAt      time.Time `json:"submittedAt"`
	AutoSubmitted    bool      `json:"autoSubmitted"`
	Score            int       `json:"score"`
	Feedback         string    `json:"feedback"`
	TimeSpentSeconds int       `json:"timeSpentSeconds"`
}

// Evaluation is the scoring verdict for a submitted answer.
type Evaluation struct {
	Score        int      `json:"score"`
	Feedback     string   `json:"feedback"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// TimerState is a snapshot of the per-question countdown.
type TimerState struct {
	RemainingSeconds int       `json:"remainingSeconds"`
	TotalSeconds     int       `json:"totalSeconds"`
	Running          bool      `json:"running"`
	ReferenceStart   time.Time `json:"referenceStart"`
}

// Advisory annotates a difficulty-tier boundary. Progression is never blocked;
// the note is carried for downstream reporting.
type Advisory struct {
	AfterIndex int        `json:"afterIndex"`
	Tier       Difficulty `json:"tier"`
	NextTier   Difficulty `json:"nextTier"`
	MeanScore  int        `json:"meanScore"`
	Threshold  int        `json:"threshold"`
	Met        bool       `json:"met"`
}

// Session is the full state of one interview. One engine instance owns one
// session at a time.
type Session struct {
	ID           string      `json:"id"`
	CandidateID  string      `json:"candidateId"`
	Status       Status      `json:"status"`
	CurrentIndex int         `json:"currentIndex"`
	Questions    []Question  `json:"questions"`
	Answers      []Answer    `json:"answers"`
	Timer        TimerState  `json:"timer"`
	FinalScore   *int        `json:"finalScore,omitempty"`
	Summary      string      `json:"summary,omitempty"`
	Advisories   []Advisory  `json:"advisories,omitempty"`
	StartedAt    *time.Time  `json:"startedAt,omitempty"`
	CompletedAt  *time.Time  `json:"completedAt,omitempty"`
}
