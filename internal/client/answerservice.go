package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// AnswerService submits one answer to the external follow-up/analysis
// service and reports the optional follow-up question.
type AnswerService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAnswerService creates an analysis service client for the given base URL.
func NewAnswerService(baseURL string, timeout time.Duration) *AnswerService {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &AnswerService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Evaluate posts the question/answer pair. A non-empty return is the
// follow-up to ask before advancing; empty means advance.
func (c *AnswerService) Evaluate(ctx context.Context, questionText, answer string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"question": questionText,
		"answer":   answer,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode answer payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/answer", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build answer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("answer service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("answer service returned status %d", resp.StatusCode)
	}

	var payload struct {
		FollowUpQuestion string `json:"follow_up_question"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode answer response: %w", err)
	}
	return strings.TrimSpace(payload.FollowUpQuestion), nil
}
