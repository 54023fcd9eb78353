package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"interview-engine-service/internal/domain"
)

// BankLoader fetches the question bank for a difficulty tier from a backing
// store (e.g., Postgres).
type BankLoader interface {
	LoadBank(ctx context.Context, difficulty domain.Difficulty) ([]domain.Question, error)
}

// QuestionCache caches question banks in Redis (hash per difficulty tier) and
// falls back to a loader on cache miss.
// Banks are stored as: HSET interview:bank:{difficulty} {position} {question JSON}
type QuestionCache struct {
	client *redis.Client
	loader BankLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader BankLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Question serves the prompt for index from the tier's cached bank.
func (c *QuestionCache) Question(ctx context.Context, index int, difficulty domain.Difficulty) (domain.Question, error) {
	bank, err := c.bank(ctx, difficulty)
	if err != nil {
		return domain.Question{}, err
	}
	if len(bank) == 0 {
		return domain.Question{}, domain.ErrQuestionUnavailable
	}
	return bank[index%len(bank)], nil
}

func (c *QuestionCache) bank(ctx context.Context, difficulty domain.Difficulty) ([]domain.Question, error) {
	key := c.bankKey(difficulty)

	fields, err := c.client.HGetAll(ctx, key).Result()
	if err == nil && len(fields) > 0 {
		return buildBankFromCache(fields), nil
	}

	result, err, _ := c.sf.Do(string(difficulty), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		fields, err := c.client.HGetAll(ctx, key).Result()
		if err == nil && len(fields) > 0 {
			return buildBankFromCache(fields), nil
		}

		bank, err := c.loader.LoadBank(ctx, difficulty)
		if err != nil {
			return nil, err
		}

		ttl := c.ttlWithJitter()
		pipe := c.client.Pipeline()
		for i, question := range bank {
			payload, err := json.Marshal(question)
			if err != nil {
				continue
			}
			pipe.HSet(ctx, key, strconv.Itoa(i), payload)
		}
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return bank, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *QuestionCache) bankKey(difficulty domain.Difficulty) string {
	return "interview:bank:" + string(difficulty)
}

func buildBankFromCache(fields map[string]string) []domain.Question {
	bank := make([]domain.Question, 0, len(fields))
	for i := 0; i < len(fields); i++ {
		payload, ok := fields[strconv.Itoa(i)]
		if !ok {
			break
		}
		var question domain.Question
		if err := json.Unmarshal([]byte(payload), &question); err != nil {
			continue
		}
		bank = append(bank, question)
	}
	return bank
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
