package engine

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"interview-engine-service/internal/domain"
)

// Evaluator scores a submitted answer in [0,100].
type Evaluator interface {
	Evaluate(ctx context.Context, question domain.Question, answerText string) (domain.Evaluation, error)
}

// HeuristicConfig holds the criterion weights and signal tuning for the local
// evaluator. Weights should sum to 1.
type HeuristicConfig struct {
	AccuracyWeight     float64
	CompletenessWeight float64
	ClarityWeight      float64
	ExamplesWeight     float64
	DepthWeight        float64

	// ExpectedWords is the answer length a full-credit completeness score
	// assumes, per difficulty tier.
	ExpectedWords map[domain.Difficulty]int
}

// DefaultHeuristicConfig returns production defaults.
func DefaultHeuristicConfig() HeuristicConfig {
	return HeuristicConfig{
		AccuracyWeight:     0.35,
		CompletenessWeight: 0.25,
		ClarityWeight:      0.15,
		ExamplesWeight:     0.15,
		DepthWeight:        0.10,
		ExpectedWords: map[domain.Difficulty]int{
			domain.DifficultyEasy:   40,
			domain.DifficultyMedium: 80,
			domain.DifficultyHard:   140,
		},
	}
}

var difficultyMultiplier = map[domain.Difficulty]float64{
	domain.DifficultyEasy:   1.1,
	domain.DifficultyMedium: 1.0,
	domain.DifficultyHard:   0.9,
}

var codeTokens = []string{
	"{", "}", ":=", "()", "=>", "```", "func ", "return ", "class ", "def ",
	"select ", "SELECT ", "nil", "null", "import ",
}

var examplePhrases = []string{
	"for example", "for instance", "e.g.", "such as", "in practice",
	"in my experience", "consider the case",
}

// categoryKeywords feeds the accuracy signal: domain terms a reasonable answer
// in each category is expected to touch.
var categoryKeywords = map[string][]string{
	"fundamentals": {
		"type", "memory", "pointer", "interface", "value", "compile", "runtime", "stack", "heap",
	},
	"data structures": {
		"array", "list", "tree", "hash", "map", "queue", "stack", "complexity", "o(", "node",
	},
	"concurrency": {
		"goroutine", "thread", "lock", "mutex", "channel", "race", "atomic", "deadlock", "synchron",
	},
	"databases": {
		"index", "transaction", "query", "join", "normal", "acid", "isolation", "replica", "shard",
	},
	"system design": {
		"scale", "cache", "latency", "throughput", "load", "queue", "partition", "availability", "consistency",
	},
}

// HeuristicEvaluator is the local fallback scorer: five weighted criteria fed
// by shallow text signals, adjusted per difficulty and clamped to [0,100]. It
// never fails and never calls out.
type HeuristicEvaluator struct {
	config HeuristicConfig
}

func NewHeuristicEvaluator(config HeuristicConfig) *HeuristicEvaluator {
	return &HeuristicEvaluator{config: config}
}

func (h *HeuristicEvaluator) Evaluate(_ context.Context, question domain.Question, answerText string) (domain.Evaluation, error) {
	text := strings.TrimSpace(answerText)
	lower := strings.ToLower(text)

	words := len(strings.Fields(text))
	sentences := countSentences(text)
	paragraphs := countParagraphs(text)
	code := countMatches(text, codeTokens)
	hasExample := countMatches(lower, examplePhrases) > 0
	keywords := countMatches(lower, keywordsFor(question.Category))

	expected := h.config.ExpectedWords[question.Difficulty]
	if expected == 0 {
		expected = 80
	}
	lengthRatio := float64(words) / float64(expected)
	if lengthRatio > 1 {
		lengthRatio = 1
	}

	accuracy := clampScore(35 + 13*keywords)
	completeness := int(math.Round(100 * lengthRatio))
	clarity := structureScore(sentences)
	examples := exampleScore(hasExample, code > 0)
	depth := clampScore(20 + 12*minInt(code, 4) + 8*minInt(keywords, 4))

	weighted := h.config.AccuracyWeight*float64(accuracy) +
		h.config.CompletenessWeight*float64(completeness) +
		h.config.ClarityWeight*float64(clarity) +
		h.config.ExamplesWeight*float64(examples) +
		h.config.DepthWeight*float64(depth)

	weighted *= difficultyMultiplier[question.Difficulty]

	wellStructured := sentences >= 4 && paragraphs >= 2
	switch {
	case words < 10:
		weighted *= 0.6
	case wellStructured:
		weighted *= 1.1
	}

	score := clampScore(int(math.Round(weighted)))

	return domain.Evaluation{
		Score:        score,
		Feedback:     heuristicFeedback(question, score),
		Strengths:    heuristicStrengths(keywords, hasExample, code, wellStructured),
		Improvements: heuristicImprovements(words, expected, keywords, hasExample, sentences),
	}, nil
}

func heuristicFeedback(question domain.Question, score int) string {
	switch {
	case score >= 80:
		return fmt.Sprintf("A thorough answer for this %s %s question.", question.Difficulty, question.Category)
	case score >= 60:
		return fmt.Sprintf("A reasonable answer for this %s %s question, with room to go deeper.", question.Difficulty, question.Category)
	default:
		return fmt.Sprintf("The answer only partially addresses this %s %s question.", question.Difficulty, question.Category)
	}
}

func heuristicStrengths(keywords int, hasExample bool, code int, wellStructured bool) []string {
	var out []string
	if keywords >= 3 {
		out = append(out, "covers the relevant domain terminology")
	}
	if hasExample {
		out = append(out, "supports the explanation with examples")
	}
	if code > 0 {
		out = append(out, "includes concrete code")
	}
	if wellStructured {
		out = append(out, "well structured answer")
	}
	return out
}

func heuristicImprovements(words, expected, keywords int, hasExample bool, sentences int) []string {
	var out []string
	if words < expected/2 {
		out = append(out, "expand the answer; it is shorter than expected for this difficulty")
	}
	if keywords < 2 {
		out = append(out, "address the core concepts of the topic directly")
	}
	if !hasExample {
		out = append(out, "add a concrete example")
	}
	if sentences < 3 {
		out = append(out, "structure the answer into an introduction, explanation, and conclusion")
	}
	return out
}

func structureScore(sentences int) int {
	if sentences == 0 {
		return 20
	}
	return clampScore(40 + 15*minInt(sentences, 4))
}

func exampleScore(hasExample, hasCode bool) int {
	score := 20
	if hasExample {
		score += 40
	}
	if hasCode {
		score += 40
	}
	return score
}

func keywordsFor(category string) []string {
	if kws, ok := categoryKeywords[strings.ToLower(category)]; ok {
		return kws
	}
	// Unknown categories still get credit for generic technical vocabulary.
	return []string{"design", "performance", "test", "error", "data", "system"}
}

func countMatches(text string, needles []string) int {
	count := 0
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			count++
		}
	}
	return count
}

func countSentences(text string) int {
	count := 0
	for _, part := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		if strings.TrimSpace(part) != "" {
			count++
		}
	}
	return count
}

func countParagraphs(text string) int {
	count := 0
	for _, part := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(part) != "" {
			count++
		}
	}
	return count
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// FallbackEvaluator delegates to a remote scorer within a bounded timeout and
// degrades to the local heuristic on transport failure, timeout, or a
// malformed response. It never returns an error, so evaluation can never
// block session progression.
type FallbackEvaluator struct {
	primary   Evaluator
	heuristic *HeuristicEvaluator
	timeout   time.Duration
	log       zerolog.Logger
}

func NewFallbackEvaluator(primary Evaluator, heuristic *HeuristicEvaluator, timeout time.Duration, log zerolog.Logger) *FallbackEvaluator {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &FallbackEvaluator{
		primary:   primary,
		heuristic: heuristic,
		timeout:   timeout,
		log:       log.With().Str("component", "evaluator").Logger(),
	}
}

func (f *FallbackEvaluator) Evaluate(ctx context.Context, question domain.Question, answerText string) (domain.Evaluation, error) {
	if f.primary != nil {
		evalCtx, cancel := context.WithTimeout(ctx, f.timeout)
		result, err := f.primary.Evaluate(evalCtx, question, answerText)
		cancel()
		if err == nil {
			result.Score = clampScore(result.Score)
			return result, nil
		}
		f.log.Warn().Err(err).Int("question_index", question.Index).
			Msg("remote evaluation failed, using heuristic")
	}
	return f.heuristic.Evaluate(ctx, question, answerText)
}
