package memory

import (
	"context"

	"interview-engine-service/internal/domain"
)

// BankLoader fetches the question bank for a difficulty tier from a backing
// store (e.g., Postgres).
type BankLoader interface {
	LoadBank(ctx context.Context, difficulty domain.Difficulty) ([]domain.Question, error)
}

// StaticQuestionPool serves built-in questions keyed by difficulty. It backs
// the engine when no external question source is configured and is the last
// fallback when one fails.
type StaticQuestionPool struct {
	banks map[domain.Difficulty][]domain.Question
}

func NewStaticQuestionPool(banks map[domain.Difficulty][]domain.Question) *StaticQuestionPool {
	return &StaticQuestionPool{banks: banks}
}

// Question picks a prompt for the given index from the tier's bank.
func (p *StaticQuestionPool) Question(_ context.Context, index int, difficulty domain.Difficulty) (domain.Question, error) {
	bank := p.banks[difficulty]
	if len(bank) == 0 {
		return domain.Question{}, domain.ErrQuestionUnavailable
	}
	return bank[index%len(bank)], nil
}

// LoadBank exposes the pool as a BankLoader for the caching layers.
func (p *StaticQuestionPool) LoadBank(_ context.Context, difficulty domain.Difficulty) ([]domain.Question, error) {
	bank := p.banks[difficulty]
	if len(bank) == 0 {
		return nil, domain.ErrQuestionUnavailable
	}
	return bank, nil
}

// DefaultQuestionBanks returns the built-in interview question set.
func DefaultQuestionBanks() map[domain.Difficulty][]domain.Question {
	return map[domain.Difficulty][]domain.Question{
		domain.DifficultyEasy: {
			{ID: "easy-1", Difficulty: domain.DifficultyEasy, Category: "fundamentals",
				Prompt: "What is the difference between a value and a reference, and when does the distinction matter?"},
			{ID: "easy-2", Difficulty: domain.DifficultyEasy, Category: "data structures",
				Prompt: "Explain when you would choose a hash map over an array for lookups."},
			{ID: "easy-3", Difficulty: domain.DifficultyEasy, Category: "fundamentals",
				Prompt: "What happens when two variables point at the same underlying data and one of them is mutated?"},
		},
		domain.DifficultyMedium: {
			{ID: "medium-1", Difficulty: domain.DifficultyMedium, Category: "concurrency",
				Prompt: "Describe a race condition you have encountered and how you fixed it."},
			{ID: "medium-2", Difficulty: domain.DifficultyMedium, Category: "databases",
				Prompt: "Walk through how a database index speeds up a query and what it costs on writes."},
			{ID: "medium-3", Difficulty: domain.DifficultyMedium, Category: "concurrency",
				Prompt: "How would you coordinate a pool of workers consuming from a shared queue?"},
		},
		domain.DifficultyHard: {
			{ID: "hard-1", Difficulty: domain.DifficultyHard, Category: "system design",
				Prompt: "Design a rate limiter for a distributed API gateway. Cover storage, consistency, and failure modes."},
			{ID: "hard-2", Difficulty: domain.DifficultyHard, Category: "system design",
				Prompt: "How would you evolve a single-node service into one that survives the loss of a data center?"},
			{ID: "hard-3", Difficulty: domain.DifficultyHard, Category: "databases",
				Prompt: "Explain the trade-offs between strict serializability and weaker isolation levels under high contention."},
		},
	}
}
