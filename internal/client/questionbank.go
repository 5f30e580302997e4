// Package client implements HTTP clients for the external collaborators of
// the assessment orchestrator: the question bank, the answer analysis
// service and the document analyzer. The wire contracts are versionless
// best-effort JSON.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bizbothq/bizbot/backend/internal/model/question"
)

const defaultTimeout = 30 * time.Second

// QuestionBank fetches the ordered assessment question list.
type QuestionBank struct {
	baseURL    string
	httpClient *http.Client
}

// NewQuestionBank creates a question bank client for the given base URL.
func NewQuestionBank(baseURL string, timeout time.Duration) *QuestionBank {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &QuestionBank{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchQuestions retrieves the question sequence in presentation order.
func (c *QuestionBank) FetchQuestions(ctx context.Context) ([]question.Question, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/questions", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build questions request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("question bank request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("question bank returned status %d", resp.StatusCode)
	}

	var payload struct {
		Questions []question.Question `json:"questions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode questions response: %w", err)
	}
	return payload.Questions, nil
}
