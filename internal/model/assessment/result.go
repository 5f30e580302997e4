package assessment

import "time"

// Vulnerability is one weakness called out by the analysis step.
type Vulnerability struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Artifact is the output of analyzing an uploaded document. It is attached
// to the session once and gates the downloadable report.
type Artifact struct {
	FileName        string          `json:"fileName"`
	Summary         []string        `json:"summary,omitempty"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// AssessmentResult is packaged exactly once, when the last question has been
// answered. Immutable after creation; ownership passes to the result sink.
type AssessmentResult struct {
	DocumentSummary     []string        `json:"documentSummary"`
	VulnerabilityReport []Vulnerability `json:"vulnerabilityReport"`
	RiskScore           int             `json:"riskScore"`
}
