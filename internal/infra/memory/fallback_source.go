package memory

import (
	"context"

	"github.com/rs/zerolog"

	"interview-engine-service/internal/domain"
	"interview-engine-service/internal/engine"
)

// FallbackQuestionSource tries the primary source and degrades to a fallback
// (usually the static pool) so a question-source outage never interrupts a
// session.
type FallbackQuestionSource struct {
	primary  engine.QuestionSource
	fallback engine.QuestionSource
	log      zerolog.Logger
}

func NewFallbackQuestionSource(primary, fallback engine.QuestionSource, log zerolog.Logger) *FallbackQuestionSource {
	return &FallbackQuestionSource{
		primary:  primary,
		fallback: fallback,
		log:      log.With().Str("component", "question_source").Logger(),
	}
}

func (s *FallbackQuestionSource) Question(ctx context.Context, index int, difficulty domain.Difficulty) (domain.Question, error) {
	if s.primary != nil {
		question, err := s.primary.Question(ctx, index, difficulty)
		if err == nil {
			return question, nil
		}
		s.log.Warn().Err(err).Int("index", index).Str("difficulty", string(difficulty)).
			Msg("primary question source failed, using fallback pool")
	}
	return s.fallback.Question(ctx, index, difficulty)
}
