package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"interview-engine-service/internal/domain"
)

func mediumQuestion() domain.Question {
	return domain.Question{
		ID:         "q-3",
		Index:      2,
		Difficulty: domain.DifficultyMedium,
		Category:   "concurrency",
		Prompt:     "Explain how you would coordinate concurrent workers.",
	}
}

const structuredAnswer = `A mutex protects shared state while a channel transfers ownership of data between goroutines.
For example, a worker pool reads jobs from a channel and each worker owns the job it received, so no lock is needed.

When shared counters are unavoidable, atomic operations or a mutex prevent a race.
In practice I start with channels and fall back to locks when the data is genuinely shared. Deadlock risk grows with lock count, so keeping one lock per structure is safer.`

func TestHeuristicScoresWithinRange(t *testing.T) {
	eval := NewHeuristicEvaluator(DefaultHeuristicConfig())

	for _, text := range []string{"", "yes", structuredAnswer} {
		result, err := eval.Evaluate(context.Background(), mediumQuestion(), text)
		if err != nil {
			t.Fatalf("heuristic must not fail: %v", err)
		}
		if result.Score < 0 || result.Score > 100 {
			t.Fatalf("score out of range: %d for %q", result.Score, text)
		}
		if result.Feedback == "" {
			t.Fatalf("expected feedback for %q", text)
		}
	}
}

func TestHeuristicRewardsSubstance(t *testing.T) {
	eval := NewHeuristicEvaluator(DefaultHeuristicConfig())

	weak, _ := eval.Evaluate(context.Background(), mediumQuestion(), "use locks")
	strong, _ := eval.Evaluate(context.Background(), mediumQuestion(), structuredAnswer)

	if strong.Score <= weak.Score {
		t.Fatalf("structured answer (%d) must outscore a two-word answer (%d)", strong.Score, weak.Score)
	}
	if len(strong.Strengths) == 0 {
		t.Fatalf("expected strengths for the structured answer")
	}
	if len(weak.Improvements) == 0 {
		t.Fatalf("expected improvement hints for the weak answer")
	}
}

func TestHeuristicPenalizesVeryShortAnswers(t *testing.T) {
	eval := NewHeuristicEvaluator(DefaultHeuristicConfig())

	short, _ := eval.Evaluate(context.Background(), mediumQuestion(),
		"mutex channel goroutine race")
	if short.Score > 45 {
		t.Fatalf("very short answer escaped the penalty: %d", short.Score)
	}
}

func TestHeuristicDifficultyMultiplier(t *testing.T) {
	eval := NewHeuristicEvaluator(DefaultHeuristicConfig())
	text := "A mutex protects shared state. Channels transfer ownership between goroutines. Atomic operations avoid a race for simple counters."

	easyQ := mediumQuestion()
	easyQ.Difficulty = domain.DifficultyEasy
	hardQ := mediumQuestion()
	hardQ.Difficulty = domain.DifficultyHard

	easy, _ := eval.Evaluate(context.Background(), easyQ, text)
	hard, _ := eval.Evaluate(context.Background(), hardQ, text)

	if easy.Score <= hard.Score {
		t.Fatalf("easy tier multiplier must lift the score: easy=%d hard=%d", easy.Score, hard.Score)
	}
}

type failingEvaluator struct{ err error }

func (f *failingEvaluator) Evaluate(context.Context, domain.Question, string) (domain.Evaluation, error) {
	return domain.Evaluation{}, f.err
}

type hangingEvaluator struct{}

func (h *hangingEvaluator) Evaluate(ctx context.Context, _ domain.Question, _ string) (domain.Evaluation, error) {
	<-ctx.Done()
	return domain.Evaluation{}, ctx.Err()
}

func TestFallbackOnTransportFailure(t *testing.T) {
	fallback := NewFallbackEvaluator(
		&failingEvaluator{err: errors.New("connection refused")},
		NewHeuristicEvaluator(DefaultHeuristicConfig()),
		time.Second, zerolog.Nop())

	result, err := fallback.Evaluate(context.Background(), mediumQuestion(), structuredAnswer)
	if err != nil {
		t.Fatalf("fallback must absorb transport failures: %v", err)
	}
	if result.Score < 0 || result.Score > 100 {
		t.Fatalf("score out of range: %d", result.Score)
	}
}

func TestFallbackBoundsSlowEvaluator(t *testing.T) {
	fallback := NewFallbackEvaluator(&hangingEvaluator{},
		NewHeuristicEvaluator(DefaultHeuristicConfig()),
		50*time.Millisecond, zerolog.Nop())

	start := time.Now()
	result, err := fallback.Evaluate(context.Background(), mediumQuestion(), structuredAnswer)
	if err != nil {
		t.Fatalf("fallback must absorb timeouts: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("evaluation not bounded: took %v", elapsed)
	}
	if result.Score < 0 || result.Score > 100 {
		t.Fatalf("score out of range: %d", result.Score)
	}
}

type cannedEvaluator struct{ score int }

func (c *cannedEvaluator) Evaluate(context.Context, domain.Question, string) (domain.Evaluation, error) {
	return domain.Evaluation{Score: c.score, Feedback: "ok"}, nil
}

func TestFallbackClampsPrimaryScore(t *testing.T) {
	fallback := NewFallbackEvaluator(&cannedEvaluator{score: 180},
		NewHeuristicEvaluator(DefaultHeuristicConfig()),
		time.Second, zerolog.Nop())

	result, err := fallback.Evaluate(context.Background(), mediumQuestion(), "answer")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.Score != 100 {
		t.Fatalf("expected clamp to 100, got %d", result.Score)
	}
}
