package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"interview-engine-service/internal/domain"
)

// QuestionClient fetches interview questions from a remote question service.
type QuestionClient struct {
	baseURL string
	client  *http.Client
}

type questionResponse struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Difficulty string `json:"difficulty"`
	Category   string `json:"category"`
	Error      string `json:"error,omitempty"`
}

func NewQuestionClient(baseURL string, timeout time.Duration) *QuestionClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &QuestionClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *QuestionClient) Question(ctx context.Context, index int, difficulty domain.Difficulty) (domain.Question, error) {
	params := url.Values{}
	params.Set("index", strconv.Itoa(index))
	params.Set("difficulty", string(difficulty))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/questions?"+params.Encode(), nil)
	if err != nil {
		return domain.Question{}, fmt.Errorf("create question request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Question{}, fmt.Errorf("question request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Question{}, fmt.Errorf("read question response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Question{}, fmt.Errorf("question service error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var parsed questionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal question response: %w", err)
	}
	if parsed.Error != "" {
		return domain.Question{}, fmt.Errorf("question service error: %s", parsed.Error)
	}
	if parsed.Text == "" {
		return domain.Question{}, fmt.Errorf("question service returned empty prompt")
	}

	return domain.Question{
		ID:         parsed.ID,
		Difficulty: domain.Difficulty(parsed.Difficulty),
		Category:   parsed.Category,
		Prompt:     parsed.Text,
	}, nil
}
