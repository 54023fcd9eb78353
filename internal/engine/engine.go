package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"interview-engine-service/internal/domain"
)

// QuestionSource serves the prompt for a question index. Implementations are
// expected to handle their own fallbacks; an error here means no question
// could be produced at all.
type QuestionSource interface {
	Question(ctx context.Context, index int, difficulty domain.Difficulty) (domain.Question, error)
}

// SnapshotStore persists versioned session records. The engine treats write
// failures as warnings and keeps operating in memory.
type SnapshotStore interface {
	Save(ctx context.Context, record domain.SessionRecord) error
	Load(ctx context.Context, sessionID string) (domain.SessionRecord, error)
}

// CompletionSink receives the hand-off record once a session completes.
type CompletionSink interface {
	RecordCompletion(ctx context.Context, record domain.CompletionRecord) error
}

// Config wires an Engine. Questions and Evaluator are required; everything
// else has a sensible default or is optional.
type Config struct {
	CandidateID string
	Questions   QuestionSource
	Evaluator   Evaluator
	Store       SnapshotStore  // optional
	Registry    CompletionSink // optional
	Scheduler   *Scheduler     // defaults to DefaultSchedulerConfig
	Clock       func() time.Time
	// PersistIntervalSeconds throttles timer-driven snapshot writes.
	PersistIntervalSeconds int
	Logger                 zerolog.Logger
}

// Engine is the session state machine: it owns one session, drives question
// activation, wires timer expiry into submission, and arbitrates the
// manual-vs-timeout race through the SubmissionGuard. One engine serves one
// session; there is no cross-session state.
type Engine struct {
	mu        sync.Mutex
	now       func() time.Time
	session   *domain.Session
	timer     *CountdownTimer
	guard     *SubmissionGuard
	sched     *Scheduler
	evaluator Evaluator
	questions QuestionSource
	store     SnapshotStore
	registry  CompletionSink
	log       zerolog.Logger

	subscribers map[chan Event]struct{}

	// evalMu keeps at most one evaluation request in flight.
	evalMu       sync.Mutex
	wg           sync.WaitGroup
	pendingEvals int
	settled      map[int]bool
	advisoryDone map[int]bool

	// timerEpoch stamps each armed countdown so an expiry captured just
	// before a submission re-arms the timer cannot fire against the next
	// question.
	timerEpoch int
}

// New builds an engine with a fresh idle session.
func New(cfg Config) *Engine {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	sched := cfg.Scheduler
	if sched == nil {
		sched = NewScheduler(DefaultSchedulerConfig())
	}
	persistEvery := cfg.PersistIntervalSeconds
	if persistEvery == 0 {
		persistEvery = 5
	}

	session := &domain.Session{
		ID:           uuid.NewString(),
		CandidateID:  cfg.CandidateID,
		Status:       domain.StatusIdle,
		CurrentIndex: -1,
	}

	e := &Engine{
		now:          now,
		session:      session,
		timer:        NewCountdownTimer(now),
		guard:        NewSubmissionGuard(),
		sched:        sched,
		evaluator:    cfg.Evaluator,
		questions:    cfg.Questions,
		store:        cfg.Store,
		registry:     cfg.Registry,
		log:          cfg.Logger.With().Str("component", "engine").Str("session_id", session.ID).Logger(),
		subscribers:  make(map[chan Event]struct{}),
		settled:      make(map[int]bool),
		advisoryDone: make(map[int]bool),
	}
	e.timer.OnPersist(persistEvery, e.handlePersistTick)
	return e
}

// SessionID returns the session identifier.
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.ID
}

// Initialize moves idle to ready once candidate data exists. The session stays
// idle (and an error is returned) without it. Idempotent when already ready.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.session.Status {
	case domain.StatusCompleted:
		return domain.ErrSessionCompleted
	case domain.StatusIdle:
		if e.session.CandidateID == "" {
			return domain.ErrCandidateMissing
		}
		e.session.Status = domain.StatusReady
		e.log.Debug().Msg("session ready")
		e.broadcastLocked(Event{Type: EventSession, Status: domain.StatusReady})
	}
	return nil
}

// Start moves ready to in-progress and activates question 0.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.Status == domain.StatusCompleted {
		return domain.ErrSessionCompleted
	}
	if e.session.Status != domain.StatusReady {
		return domain.ErrSessionNotReady
	}
	started := e.now()
	e.session.Status = domain.StatusInProgress
	e.session.StartedAt = &started
	e.log.Info().Str("candidate_id", e.session.CandidateID).Msg("interview started")
	e.broadcastLocked(Event{Type: EventSession, Status: domain.StatusInProgress})
	return e.activateQuestionLocked(ctx, 0)
}

// Submit records a manual answer for the active question. It returns false
// without error when the submission loses the race against timer expiry; the
// loser is dropped silently.
func (e *Engine) Submit(ctx context.Context, text string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.Status == domain.StatusCompleted {
		return false, domain.ErrSessionCompleted
	}
	if e.session.Status != domain.StatusInProgress {
		return false, domain.ErrSessionNotInProgress
	}
	index := e.session.CurrentIndex
	if !e.guard.TrySubmit(index) {
		return false, nil
	}
	e.resolveLocked(ctx, index, text, false)
	return true, nil
}

// Pause suspends the countdown without losing elapsed time. Idempotent.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.session.Status {
	case domain.StatusCompleted:
		return domain.ErrSessionCompleted
	case domain.StatusPaused:
		return nil
	case domain.StatusInProgress:
		e.timer.Pause()
		e.session.Status = domain.StatusPaused
		e.syncTimerLocked()
		e.log.Debug().Msg("session paused")
		e.broadcastLocked(Event{Type: EventSession, Status: domain.StatusPaused})
		e.saveSnapshotLocked(context.Background())
		return nil
	default:
		return domain.ErrSessionNotInProgress
	}
}

// Resume continues a paused session.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.session.Status {
	case domain.StatusCompleted:
		return domain.ErrSessionCompleted
	case domain.StatusInProgress:
		return nil
	case domain.StatusPaused:
		e.timer.Resume()
		e.session.Status = domain.StatusInProgress
		e.syncTimerLocked()
		e.log.Debug().Msg("session resumed")
		e.broadcastLocked(Event{Type: EventSession, Status: domain.StatusInProgress})
		return nil
	default:
		return domain.ErrSessionNotPaused
	}
}

// Tick drives the countdown one step. Production calls it through Run; tests
// call it directly with an injected clock.
func (e *Engine) Tick() {
	e.mu.Lock()
	active := e.session.Status == domain.StatusInProgress
	e.mu.Unlock()
	if !active {
		return
	}

	remaining := e.timer.Tick()

	e.mu.Lock()
	if e.session.Status == domain.StatusInProgress {
		e.syncTimerLocked()
		e.broadcastLocked(Event{Type: EventTimer, RemainingSeconds: remaining})
	}
	e.mu.Unlock()
}

// Run ticks the engine at one-second granularity until ctx is canceled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

// Subscribe returns a channel of engine events. The caller must invoke the
// returned cancel function to avoid leaks.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	e.mu.Lock()
	e.subscribers[ch] = struct{}{}
	initial := Event{Type: EventSession, Status: e.session.Status}
	e.mu.Unlock()

	ch <- initial

	cancel := func() {
		e.mu.Lock()
		if _, ok := e.subscribers[ch]; ok {
			delete(e.subscribers, ch)
			close(ch)
		}
		e.mu.Unlock()
	}
	return ch, cancel
}

// Snapshot returns a copy of the session state.
func (e *Engine) Snapshot() domain.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncTimerLocked()
	return copySession(*e.session)
}

// Record returns the versioned document handed to the storage collaborator.
func (e *Engine) Record() domain.SessionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recordLocked()
}

// Rehydrate installs a persisted session into a fresh engine. A record that
// fails validation is refused and the engine keeps its fresh idle session; a
// session persisted mid-question resumes paused with the persisted remaining
// budget re-armed.
func (e *Engine) Rehydrate(record domain.SessionRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("rehydrate: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.Status != domain.StatusIdle || len(e.session.Answers) > 0 {
		return domain.ErrSessionNotReady
	}

	s := copySession(record.Session)
	if s.Status == domain.StatusInProgress {
		s.Status = domain.StatusPaused
	}
	e.session = &s
	e.log = e.log.With().Str("session_id", s.ID).Logger()

	for i := range s.Answers {
		e.guard.MarkResolved(i)
		e.settled[i] = true
	}
	for _, boundary := range []int{1, 3} {
		if len(s.Answers) > boundary {
			e.advisoryDone[boundary] = true
		}
	}

	if s.Status == domain.StatusPaused && s.CurrentIndex >= 0 && s.CurrentIndex < len(s.Questions) &&
		len(s.Answers) <= s.CurrentIndex {
		// Coarse persistence means up to a few seconds of budget come back;
		// an accepted answer never goes missing.
		e.armTimerLocked(s.Timer.RemainingSeconds)
		e.timer.Pause()
	}

	e.log.Info().Str("status", string(s.Status)).Int("answers", len(s.Answers)).Msg("session rehydrated")
	e.broadcastLocked(Event{Type: EventSession, Status: s.Status})
	return nil
}

// Close waits for in-flight evaluations and releases subscribers.
func (e *Engine) Close() {
	e.wg.Wait()
	e.mu.Lock()
	defer e.mu.Unlock()
	for ch := range e.subscribers {
		delete(e.subscribers, ch)
		close(ch)
	}
}

// armTimerLocked starts a fresh countdown whose expiry is bound to the
// current question.
func (e *Engine) armTimerLocked(totalSeconds int) {
	e.timerEpoch++
	epoch := e.timerEpoch
	e.timer.OnExpire(func() { e.handleExpiry(epoch) })
	e.timer.Start(totalSeconds)
}

// handleExpiry is the timer's expiry callback: the timeout side of the
// submission race.
func (e *Engine) handleExpiry(epoch int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if epoch != e.timerEpoch {
		// A submission won the race and re-armed the countdown for the next
		// question before this expiry was delivered.
		return
	}
	if e.session.Status != domain.StatusInProgress {
		return
	}
	index := e.session.CurrentIndex
	if !e.guard.TrySubmit(index) {
		return
	}
	e.log.Info().Int("question_index", index).Msg("time expired, auto-submitting")
	e.resolveLocked(context.Background(), index, domain.TimeExpiredSentinel, true)
}

// handlePersistTick is the timer's coarse persistence hook.
func (e *Engine) handlePersistTick(int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncTimerLocked()
	e.saveSnapshotLocked(context.Background())
}

// resolveLocked creates the single answer record for index and moves the
// session forward. The record exists before the next question activates;
// manual answers get their score attached asynchronously.
func (e *Engine) resolveLocked(ctx context.Context, index int, text string, auto bool) {
	question := e.session.Questions[index]
	spent := int(e.timer.Elapsed() / time.Second)
	if spent > question.TimeLimitSeconds {
		spent = question.TimeLimitSeconds
	}
	e.timer.Stop()

	answer := domain.Answer{
		QuestionID:       question.ID,
		Index:            index,
		Text:             text,
		SubmittedAt:      e.now(),
		AutoSubmitted:    auto,
		TimeSpentSeconds: spent,
	}
	e.session.Answers = append(e.session.Answers, answer)

	if auto {
		e.session.Answers[index].Feedback = "No answer was submitted before the time limit."
		e.scoreSettledLocked(ctx, index, nil)
	} else {
		e.pendingEvals++
		e.wg.Add(1)
		go e.evaluate(question, text, index)
	}

	if len(e.session.Answers) < domain.QuestionCount {
		if err := e.activateQuestionLocked(ctx, index+1); err != nil {
			e.log.Error().Err(err).Int("question_index", index+1).Msg("failed to activate next question")
		}
	} else {
		e.maybeFinalizeLocked(ctx)
	}
	e.saveSnapshotLocked(ctx)
}

// evaluate runs off the submit path so evaluation never blocks interaction.
// evalMu keeps at most one request in flight.
func (e *Engine) evaluate(question domain.Question, text string, index int) {
	defer e.wg.Done()

	e.evalMu.Lock()
	result, err := e.evaluator.Evaluate(context.Background(), question, text)
	e.evalMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		// The fallback evaluator never errors; a custom one might. The answer
		// stands with a neutral verdict rather than halting the session.
		e.log.Error().Err(err).Int("question_index", index).Msg("evaluation failed")
		result = domain.Evaluation{Score: 0, Feedback: "The answer could not be evaluated."}
	}
	e.session.Answers[index].Score = clampScore(result.Score)
	e.session.Answers[index].Feedback = result.Feedback
	e.pendingEvals--
	e.scoreSettledLocked(context.Background(), index, &result)
	e.saveSnapshotLocked(context.Background())
}

// scoreSettledLocked runs once an answer's score is final: it publishes the
// result, emits tier advisories, and finalizes the session when the last
// score has attached.
func (e *Engine) scoreSettledLocked(ctx context.Context, index int, eval *domain.Evaluation) {
	e.settled[index] = true

	answer := e.session.Answers[index]
	e.broadcastLocked(Event{Type: EventAnswer, Answer: &answer, Evaluation: eval})

	for _, boundary := range []int{1, 3} {
		if e.advisoryDone[boundary] || !e.settled[boundary] || !e.settled[boundary-1] {
			continue
		}
		e.advisoryDone[boundary] = true
		scores := []int{e.session.Answers[boundary-1].Score, e.session.Answers[boundary].Score}
		met, mean, threshold := e.sched.CanAdvance(boundary, scores)
		advisory := domain.Advisory{
			AfterIndex: boundary,
			Tier:       e.sched.DifficultyFor(boundary),
			NextTier:   e.sched.DifficultyFor(boundary + 1),
			MeanScore:  mean,
			Threshold:  threshold,
			Met:        met,
		}
		e.session.Advisories = append(e.session.Advisories, advisory)
		e.log.Info().Int("mean", mean).Int("threshold", threshold).Bool("met", met).
			Str("next_tier", string(advisory.NextTier)).Msg("tier boundary advisory")
		e.broadcastLocked(Event{Type: EventAdvisory, Advisory: &advisory})
	}

	e.maybeFinalizeLocked(ctx)
}

func (e *Engine) maybeFinalizeLocked(ctx context.Context) {
	if e.session.Status == domain.StatusCompleted ||
		len(e.session.Answers) != domain.QuestionCount || e.pendingEvals != 0 {
		return
	}

	final, summary := Finalize(e.session.Answers)
	completed := e.now()
	e.session.FinalScore = &final
	e.session.Summary = summary
	e.session.Status = domain.StatusCompleted
	e.session.CompletedAt = &completed
	e.timer.Stop()
	e.syncTimerLocked()

	e.log.Info().Int("final_score", final).Msg("interview completed")
	e.broadcastLocked(Event{Type: EventSession, Status: domain.StatusCompleted})
	e.broadcastLocked(Event{Type: EventCompleted, FinalScore: final, Summary: summary})
	e.saveSnapshotLocked(ctx)

	if e.registry != nil {
		record := domain.CompletionRecord{
			CandidateID: e.session.CandidateID,
			FinalScore:  final,
			Summary:     summary,
			Answers:     append([]domain.Answer(nil), e.session.Answers...),
			CompletedAt: completed,
		}
		if err := e.registry.RecordCompletion(ctx, record); err != nil {
			e.log.Warn().Err(err).Msg("completion hand-off failed")
		}
	}
}

func (e *Engine) activateQuestionLocked(ctx context.Context, index int) error {
	difficulty := e.sched.DifficultyFor(index)
	question, err := e.questions.Question(ctx, index, difficulty)
	if err != nil {
		return fmt.Errorf("activate question %d: %w", index, err)
	}
	question.Index = index
	question.Difficulty = difficulty
	question.TimeLimitSeconds = e.sched.TimeLimitFor(index)
	if question.ID == "" {
		question.ID = fmt.Sprintf("q-%d", index+1)
	}

	e.session.CurrentIndex = index
	e.session.Questions = append(e.session.Questions, question)
	e.armTimerLocked(question.TimeLimitSeconds)
	e.syncTimerLocked()

	e.log.Debug().Int("question_index", index).Str("difficulty", string(difficulty)).
		Str("stage", e.sched.StageLabel(index)).Msg("question activated")
	e.broadcastLocked(Event{Type: EventQuestion, Question: &question})
	e.broadcastLocked(Event{Type: EventTimer, RemainingSeconds: question.TimeLimitSeconds})
	return nil
}

func (e *Engine) syncTimerLocked() {
	e.session.Timer = e.timer.State()
}

// broadcastLocked fans an event out to every subscriber. A slow consumer loses
// its oldest buffered event rather than blocking the engine.
func (e *Engine) broadcastLocked(event Event) {
	for ch := range e.subscribers {
		select {
		case ch <- event:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}

func (e *Engine) saveSnapshotLocked(ctx context.Context) {
	if e.store == nil {
		return
	}
	// Between the sixth accepted answer and finalization the session is in a
	// transient shape no reload should ever see; finalization writes the
	// completed record moments later.
	if len(e.session.Answers) == domain.QuestionCount && e.session.Status != domain.StatusCompleted {
		return
	}
	if err := e.store.Save(ctx, e.recordLocked()); err != nil {
		// Losing a snapshot is a warning, not a session abort.
		e.log.Warn().Err(err).Msg("snapshot write failed")
	}
}

func (e *Engine) recordLocked() domain.SessionRecord {
	e.syncTimerLocked()
	return domain.SessionRecord{
		SchemaVersion: domain.SchemaVersion,
		Session:       copySession(*e.session),
	}
}

func copySession(s domain.Session) domain.Session {
	s.Questions = append([]domain.Question(nil), s.Questions...)
	s.Answers = append([]domain.Answer(nil), s.Answers...)
	s.Advisories = append([]domain.Advisory(nil), s.Advisories...)
	if s.FinalScore != nil {
		final := *s.FinalScore
		s.FinalScore = &final
	}
	return s
}
