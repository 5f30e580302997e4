package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/bizbothq/bizbot/backend/internal/model/assessment"
)

// DocumentAnalyzer uploads a document to the external analyzer. The
// acknowledge variant calls the parse endpoint and yields a summary; the
// analyze variant calls the vulnerability endpoint and yields a report.
type DocumentAnalyzer struct {
	baseURL    string
	behavior   assessment.UploadBehavior
	httpClient *http.Client
}

// NewDocumentAnalyzer creates an analyzer client for the given base URL and
// product variant.
func NewDocumentAnalyzer(baseURL string, behavior assessment.UploadBehavior, timeout time.Duration) *DocumentAnalyzer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if behavior == "" {
		behavior = assessment.UploadAcknowledge
	}
	return &DocumentAnalyzer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		behavior:   behavior,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Analyze uploads the document as multipart form data and decodes the
// variant-specific artifact.
func (c *DocumentAnalyzer) Analyze(ctx context.Context, fileName string, content io.Reader) (assessment.Artifact, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return assessment.Artifact{}, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return assessment.Artifact{}, fmt.Errorf("failed to copy document: %w", err)
	}
	if err := writer.Close(); err != nil {
		return assessment.Artifact{}, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	endpoint := c.baseURL + "/upload"
	if c.behavior == assessment.UploadAnalyze {
		endpoint = c.baseURL + "/vulnerabilities"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return assessment.Artifact{}, fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return assessment.Artifact{}, fmt.Errorf("document analyzer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return assessment.Artifact{}, fmt.Errorf("document analyzer returned status %d", resp.StatusCode)
	}

	var payload struct {
		Summary         string                     `json:"summary"`
		Vulnerabilities []assessment.Vulnerability `json:"vulnerabilities"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return assessment.Artifact{}, fmt.Errorf("failed to decode analyzer response: %w", err)
	}

	artifact := assessment.Artifact{FileName: fileName}
	if summary := splitSummary(payload.Summary); len(summary) > 0 {
		artifact.Summary = summary
	}
	if len(payload.Vulnerabilities) > 0 {
		artifact.Vulnerabilities = payload.Vulnerabilities
	}
	return artifact, nil
}

// splitSummary breaks the analyzer's free-text summary into display lines.
func splitSummary(summary string) []string {
	lines := make([]string, 0, 8)
	for _, line := range strings.Split(summary, "\n") {
		trimmed := strings.TrimSpace(strings.TrimLeft(line, "-• \t"))
		if trimmed == "" {
			continue
		}
		lines = append(lines, trimmed)
	}
	return lines
}
