package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"interview-engine-service/internal/domain"
)

type stubSource struct{}

func (stubSource) Question(_ context.Context, index int, difficulty domain.Difficulty) (domain.Question, error) {
	return domain.Question{
		ID:       fmt.Sprintf("stub-%d", index),
		Category: "concurrency",
		Prompt:   fmt.Sprintf("Stub %s question %d", difficulty, index),
	}, nil
}

// scriptedEvaluator returns a fixed score per question index.
type scriptedEvaluator struct{ scores []int }

func (s *scriptedEvaluator) Evaluate(_ context.Context, q domain.Question, _ string) (domain.Evaluation, error) {
	return domain.Evaluation{Score: s.scores[q.Index], Feedback: "scripted"}, nil
}

type captureRegistry struct {
	mu      sync.Mutex
	records []domain.CompletionRecord
}

func (r *captureRegistry) RecordCompletion(_ context.Context, record domain.CompletionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

type failingStore struct{ saves int }

func (s *failingStore) Save(context.Context, domain.SessionRecord) error {
	s.saves++
	return errors.New("disk full")
}

func (s *failingStore) Load(context.Context, string) (domain.SessionRecord, error) {
	return domain.SessionRecord{}, domain.ErrSnapshotNotFound
}

func newTestEngine(clock *fakeClock, evaluator Evaluator, extra func(*Config)) *Engine {
	cfg := Config{
		CandidateID: "cand-1",
		Questions:   stubSource{},
		Evaluator:   evaluator,
		Clock:       clock.Now,
		Logger:      zerolog.Nop(),
	}
	if extra != nil {
		extra(&cfg)
	}
	return New(cfg)
}

func waitEvent(t *testing.T, ch <-chan Event, typ EventType) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed while waiting for %s", typ)
			}
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func checkInvariants(t *testing.T, s domain.Session) {
	t.Helper()
	if len(s.Answers) > domain.QuestionCount {
		t.Fatalf("too many answers: %d", len(s.Answers))
	}
	for i, a := range s.Answers {
		if a.Index != i {
			t.Fatalf("answer %d carries index %d", i, a.Index)
		}
		if a.Score < 0 || a.Score > 100 {
			t.Fatalf("answer %d score out of range: %d", i, a.Score)
		}
	}
	if s.Timer.RemainingSeconds < 0 || s.Timer.RemainingSeconds > s.Timer.TotalSeconds {
		t.Fatalf("timer out of bounds: %+v", s.Timer)
	}
	if (s.Status == domain.StatusCompleted) != (len(s.Answers) == domain.QuestionCount) {
		t.Fatalf("status %s with %d answers", s.Status, len(s.Answers))
	}
}

func TestFullInterviewFlow(t *testing.T) {
	clock := newFakeClock()
	registry := &captureRegistry{}
	scores := []int{80, 60, 90, 50, 70, 40}
	eng := newTestEngine(clock, &scriptedEvaluator{scores: scores}, func(c *Config) {
		c.Registry = registry
	})
	defer eng.Close()

	events, cancel := eng.Subscribe()
	defer cancel()
	if ev := <-events; ev.Status != domain.StatusIdle {
		t.Fatalf("expected initial idle, got %s", ev.Status)
	}

	if err := eng.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	q := waitEvent(t, events, EventQuestion)
	if q.Question.Index != 0 || q.Question.Difficulty != domain.DifficultyEasy || q.Question.TimeLimitSeconds != 20 {
		t.Fatalf("unexpected first question %+v", q.Question)
	}

	for i := 0; i < domain.QuestionCount; i++ {
		clock.Advance(3 * time.Second)
		accepted, err := eng.Submit(context.Background(), fmt.Sprintf("answer %d", i))
		if err != nil || !accepted {
			t.Fatalf("submit %d: accepted=%v err=%v", i, accepted, err)
		}
		ev := waitEvent(t, events, EventAnswer)
		if ev.Answer.Index != i || ev.Answer.Score != scores[i] {
			t.Fatalf("answer %d: got %+v", i, ev.Answer)
		}
		checkInvariants(t, eng.Snapshot())
	}

	done := waitEvent(t, events, EventCompleted)
	if done.FinalScore != 65 {
		t.Fatalf("expected final score 65, got %d", done.FinalScore)
	}

	s := eng.Snapshot()
	checkInvariants(t, s)
	if s.Status != domain.StatusCompleted || s.FinalScore == nil || *s.FinalScore != 65 {
		t.Fatalf("unexpected final session: status=%s finalScore=%v", s.Status, s.FinalScore)
	}
	if len(s.Advisories) != 2 {
		t.Fatalf("expected 2 tier advisories, got %d", len(s.Advisories))
	}
	// easy mean 70 meets 60; medium mean 70 meets 65
	if !s.Advisories[0].Met || s.Advisories[0].Threshold != 60 || s.Advisories[0].MeanScore != 70 {
		t.Fatalf("unexpected easy advisory %+v", s.Advisories[0])
	}
	if !s.Advisories[1].Met || s.Advisories[1].Threshold != 65 {
		t.Fatalf("unexpected medium advisory %+v", s.Advisories[1])
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if len(registry.records) != 1 {
		t.Fatalf("expected one completion hand-off, got %d", len(registry.records))
	}
	rec := registry.records[0]
	if rec.CandidateID != "cand-1" || rec.FinalScore != 65 || len(rec.Answers) != domain.QuestionCount {
		t.Fatalf("unexpected completion record %+v", rec)
	}
}

func TestInitializeRequiresCandidate(t *testing.T) {
	clock := newFakeClock()
	eng := newTestEngine(clock, &scriptedEvaluator{scores: make([]int, 6)}, func(c *Config) {
		c.CandidateID = ""
	})
	defer eng.Close()

	if err := eng.Initialize(); !errors.Is(err, domain.ErrCandidateMissing) {
		t.Fatalf("expected candidate error, got %v", err)
	}
	if s := eng.Snapshot(); s.Status != domain.StatusIdle {
		t.Fatalf("session must stay idle, got %s", s.Status)
	}
	if err := eng.Start(context.Background()); !errors.Is(err, domain.ErrSessionNotReady) {
		t.Fatalf("expected not-ready error, got %v", err)
	}
}

func TestAutoSubmitOnExpiry(t *testing.T) {
	clock := newFakeClock()
	eng := newTestEngine(clock, &scriptedEvaluator{scores: []int{80, 80, 80, 80, 80, 80}}, nil)
	defer eng.Close()

	events, cancel := eng.Subscribe()
	defer cancel()

	if err := eng.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Answer the two easy questions, then let the first medium one expire.
	for i := 0; i < 2; i++ {
		if _, err := eng.Submit(context.Background(), "answer"); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		waitEvent(t, events, EventAnswer)
	}

	clock.Advance(60 * time.Second)
	eng.Tick()

	ev := waitEvent(t, events, EventAnswer)
	if ev.Answer.Index != 2 || !ev.Answer.AutoSubmitted {
		t.Fatalf("expected auto-submitted answer for index 2, got %+v", ev.Answer)
	}
	if ev.Answer.Text != domain.TimeExpiredSentinel || ev.Answer.Score != 0 {
		t.Fatalf("expected sentinel text and zero score, got %+v", ev.Answer)
	}

	s := eng.Snapshot()
	checkInvariants(t, s)
	if s.CurrentIndex != 3 {
		t.Fatalf("engine must advance past the expired question, currentIndex=%d", s.CurrentIndex)
	}
}

func TestExactlyOnceUnderRace(t *testing.T) {
	clock := newFakeClock()
	eng := newTestEngine(clock, &scriptedEvaluator{scores: []int{80, 80, 80, 80, 80, 80}}, nil)
	defer eng.Close()

	if err := eng.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Expiry and manual submission arrive at the same instant.
	clock.Advance(20 * time.Second)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		eng.Tick()
	}()
	go func() {
		defer wg.Done()
		_, _ = eng.Submit(context.Background(), "last-moment answer")
	}()
	wg.Wait()

	s := eng.Snapshot()
	checkInvariants(t, s)
	count := 0
	for _, a := range s.Answers {
		if a.Index == 0 {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one answer for index 0, got %d", count)
	}
}

func TestManualSubmissionWinsWhenFirst(t *testing.T) {
	clock := newFakeClock()
	eng := newTestEngine(clock, &scriptedEvaluator{scores: []int{80, 80, 80, 80, 80, 80}}, nil)
	defer eng.Close()

	if err := eng.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	clock.Advance(20 * time.Second)
	accepted, err := eng.Submit(context.Background(), "made it")
	if err != nil || !accepted {
		t.Fatalf("submit: accepted=%v err=%v", accepted, err)
	}
	eng.Tick() // the expiry loses the race and is dropped silently

	s := eng.Snapshot()
	if s.Answers[0].AutoSubmitted || s.Answers[0].Text != "made it" {
		t.Fatalf("manual submission must win: %+v", s.Answers[0])
	}
}

func TestPauseConservesRemainingTime(t *testing.T) {
	clock := newFakeClock()
	eng := newTestEngine(clock, &scriptedEvaluator{scores: []int{80, 80, 80, 80, 80, 80}}, nil)
	defer eng.Close()

	if err := eng.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	clock.Advance(10 * time.Second)
	eng.Tick()
	if err := eng.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := eng.Pause(); err != nil {
		t.Fatalf("pause must be idempotent: %v", err)
	}

	clock.Advance(time.Hour)
	eng.Tick() // ignored while paused
	s := eng.Snapshot()
	if s.Status != domain.StatusPaused || s.Timer.RemainingSeconds != 10 {
		t.Fatalf("expected paused with 10s left, got status=%s remaining=%d", s.Status, s.Timer.RemainingSeconds)
	}
	if _, err := eng.Submit(context.Background(), "x"); !errors.Is(err, domain.ErrSessionNotInProgress) {
		t.Fatalf("paused session must reject submissions, got %v", err)
	}

	if err := eng.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	clock.Advance(9 * time.Second)
	eng.Tick()
	if s := eng.Snapshot(); len(s.Answers) != 0 {
		t.Fatalf("timer expired early after resume")
	}

	clock.Advance(time.Second)
	eng.Tick()
	if s := eng.Snapshot(); len(s.Answers) != 1 || !s.Answers[0].AutoSubmitted {
		t.Fatalf("expected auto-submit at the conserved deadline, got %+v", s.Answers)
	}
}

func TestCompletedSessionIsImmutable(t *testing.T) {
	clock := newFakeClock()
	eng := newTestEngine(clock, &scriptedEvaluator{scores: []int{80, 60, 90, 50, 70, 40}}, nil)
	defer eng.Close()

	events, cancel := eng.Subscribe()
	defer cancel()

	if err := eng.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < domain.QuestionCount; i++ {
		if _, err := eng.Submit(context.Background(), "answer"); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		waitEvent(t, events, EventAnswer)
	}
	waitEvent(t, events, EventCompleted)

	if _, err := eng.Submit(context.Background(), "late"); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Fatalf("expected completed error on submit, got %v", err)
	}
	if err := eng.Pause(); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Fatalf("expected completed error on pause, got %v", err)
	}
	if err := eng.Start(context.Background()); !errors.Is(err, domain.ErrSessionCompleted) {
		t.Fatalf("expected completed error on start, got %v", err)
	}
	if s := eng.Snapshot(); len(s.Answers) != domain.QuestionCount {
		t.Fatalf("answers mutated after completion: %d", len(s.Answers))
	}
}

func TestSnapshotWriteFailureIsNotFatal(t *testing.T) {
	clock := newFakeClock()
	store := &failingStore{}
	eng := newTestEngine(clock, &scriptedEvaluator{scores: []int{80, 60, 90, 50, 70, 40}}, func(c *Config) {
		c.Store = store
	})
	defer eng.Close()

	events, cancel := eng.Subscribe()
	defer cancel()

	if err := eng.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < domain.QuestionCount; i++ {
		if _, err := eng.Submit(context.Background(), "answer"); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		waitEvent(t, events, EventAnswer)
	}
	waitEvent(t, events, EventCompleted)

	if store.saves == 0 {
		t.Fatalf("expected snapshot attempts")
	}
	if s := eng.Snapshot(); s.Status != domain.StatusCompleted {
		t.Fatalf("persistence failure must not abort the session, got %s", s.Status)
	}
}

func TestRehydrateRefusesCorruptSnapshot(t *testing.T) {
	clock := newFakeClock()
	eng := newTestEngine(clock, &scriptedEvaluator{scores: make([]int, 6)}, nil)
	defer eng.Close()

	corrupt := domain.SessionRecord{
		SchemaVersion: domain.SchemaVersion,
		Session: domain.Session{
			ID:           "sess-1",
			CandidateID:  "cand-1",
			Status:       domain.StatusInProgress,
			CurrentIndex: 2,
			// Questions missing: a partially-initialized invariant set.
		},
	}
	if err := eng.Rehydrate(corrupt); !errors.Is(err, domain.ErrCorruptSnapshot) {
		t.Fatalf("expected corrupt snapshot error, got %v", err)
	}

	stale := domain.SessionRecord{SchemaVersion: domain.SchemaVersion + 7, Session: domain.Session{ID: "sess-2"}}
	if err := eng.Rehydrate(stale); !errors.Is(err, domain.ErrSchemaVersion) {
		t.Fatalf("expected schema version error, got %v", err)
	}

	// The engine still offers a fresh idle session.
	if s := eng.Snapshot(); s.Status != domain.StatusIdle || len(s.Answers) != 0 {
		t.Fatalf("engine must stay fresh after refusing a snapshot, got %+v", s)
	}
}

func TestRehydrateResumesMidSession(t *testing.T) {
	clock := newFakeClock()
	scores := []int{80, 60, 90, 50, 70, 40}

	first := newTestEngine(clock, &scriptedEvaluator{scores: scores}, nil)
	events, cancel := first.Subscribe()
	if err := first.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := first.Submit(context.Background(), "answer"); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		waitEvent(t, events, EventAnswer)
	}
	clock.Advance(12 * time.Second)
	engTickAndPause(t, first)
	record := first.Record()
	cancel()
	first.Close()

	second := newTestEngine(clock, &scriptedEvaluator{scores: scores}, nil)
	defer second.Close()
	if err := second.Rehydrate(record); err != nil {
		t.Fatalf("rehydrate: %v", err)
	}

	s := second.Snapshot()
	checkInvariants(t, s)
	if s.Status != domain.StatusPaused || len(s.Answers) != 2 || s.CurrentIndex != 2 {
		t.Fatalf("unexpected rehydrated session: status=%s answers=%d index=%d", s.Status, len(s.Answers), s.CurrentIndex)
	}
	if s.Timer.RemainingSeconds != 48 {
		t.Fatalf("expected 48s budget back, got %d", s.Timer.RemainingSeconds)
	}

	events2, cancel2 := second.Subscribe()
	defer cancel2()
	if err := second.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	for i := 2; i < domain.QuestionCount; i++ {
		if _, err := second.Submit(context.Background(), "answer"); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		waitEvent(t, events2, EventAnswer)
	}
	done := waitEvent(t, events2, EventCompleted)
	if done.FinalScore != 65 {
		t.Fatalf("expected final score 65 after resume, got %d", done.FinalScore)
	}
}

func engTickAndPause(t *testing.T, eng *Engine) {
	t.Helper()
	eng.Tick()
	if err := eng.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
}
