package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"interview-engine-service/internal/domain"
)

// QuestionBank caches per-difficulty banks with TTL to avoid repeated hits on
// the backing loader.
type QuestionBank struct {
	loader BankLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[domain.Difficulty]cachedBank
}

type cachedBank struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionBank(loader BankLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[domain.Difficulty]cachedBank),
	}
}

// Question serves the prompt for index from the cached tier bank.
func (b *QuestionBank) Question(ctx context.Context, index int, difficulty domain.Difficulty) (domain.Question, error) {
	bank, err := b.bank(ctx, difficulty)
	if err != nil {
		return domain.Question{}, err
	}
	if len(bank) == 0 {
		return domain.Question{}, domain.ErrQuestionUnavailable
	}
	return bank[index%len(bank)], nil
}

func (b *QuestionBank) bank(ctx context.Context, difficulty domain.Difficulty) ([]domain.Question, error) {
	now := b.clock()

	b.mu.RLock()
	if entry, ok := b.cache[difficulty]; ok && entry.expiresAt.After(now) {
		b.mu.RUnlock()
		return entry.questions, nil
	}
	b.mu.RUnlock()

	result, err, _ := b.sf.Do(string(difficulty), func() (interface{}, error) {
		now := b.clock()
		b.mu.RLock()
		if entry, ok := b.cache[difficulty]; ok && entry.expiresAt.After(now) {
			b.mu.RUnlock()
			return entry.questions, nil
		}
		b.mu.RUnlock()

		questions, err := b.loader.LoadBank(ctx, difficulty)
		if err != nil {
			return nil, err
		}

		b.mu.Lock()
		b.cache[difficulty] = cachedBank{
			questions: questions,
			expiresAt: now.Add(b.ttlWithJitter()),
		}
		b.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}
