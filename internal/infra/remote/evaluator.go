package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"interview-engine-service/internal/domain"
)

// EvaluatorClient delegates answer evaluation to a remote scoring service.
type EvaluatorClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type evaluateRequest struct {
	QuestionText string `json:"questionText"`
	AnswerText   string `json:"answerText"`
	Difficulty   string `json:"difficulty"`
	Category     string `json:"category"`
}

type evaluateResponse struct {
	Score        int      `json:"score"`
	Feedback     string   `json:"feedback"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	Error        string   `json:"error,omitempty"`
}

func NewEvaluatorClient(baseURL, apiKey string, timeout time.Duration) *EvaluatorClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &EvaluatorClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *EvaluatorClient) Evaluate(ctx context.Context, question domain.Question, answerText string) (domain.Evaluation, error) {
	reqBody := evaluateRequest{
		QuestionText: question.Prompt,
		AnswerText:   answerText,
		Difficulty:   string(question.Difficulty),
		Category:     question.Category,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("marshal evaluate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/evaluate", bytes.NewBuffer(jsonBody))
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("create evaluate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("evaluate request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("read evaluate response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Evaluation{}, fmt.Errorf("evaluator error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var parsed evaluateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return domain.Evaluation{}, fmt.Errorf("unmarshal evaluate response: %w", err)
	}
	if parsed.Error != "" {
		return domain.Evaluation{}, fmt.Errorf("evaluator error: %s", parsed.Error)
	}
	if parsed.Score < 0 || parsed.Score > 100 {
		return domain.Evaluation{}, fmt.Errorf("evaluator returned score %d outside 0-100", parsed.Score)
	}

	return domain.Evaluation{
		Score:        parsed.Score,
		Feedback:     parsed.Feedback,
		Strengths:    parsed.Strengths,
		Improvements: parsed.Improvements,
	}, nil
}
