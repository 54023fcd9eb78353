package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"interview-engine-service/internal/domain"
)

// Registry writes completion hand-off records to the interview_results table.
type Registry struct {
	pool *pgxpool.Pool
}

func NewRegistry(pool *pgxpool.Pool) *Registry {
	return &Registry{pool: pool}
}

func (r *Registry) RecordCompletion(ctx context.Context, record domain.CompletionRecord) error {
	answers, err := json.Marshal(record.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO interview_results (candidate_id, final_score, summary, answers, completed_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		record.CandidateID, record.FinalScore, record.Summary, answers, record.CompletedAt)
	if err != nil {
		return fmt.Errorf("record completion: %w", err)
	}
	return nil
}
