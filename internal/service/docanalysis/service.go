package docanalysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/bizbothq/bizbot/backend/internal/model/assessment"
)

// ErrEmptyDocument is returned when the uploaded file has no readable text.
var ErrEmptyDocument = errors.New("document contains no readable text")

// maxDocumentBytes caps how much of an upload is read for analysis.
const maxDocumentBytes = 1 << 20

// Config 控制文档分析服务的行为。
type Config struct {
	Enabled  bool
	Behavior assessment.UploadBehavior
}

// Service analyzes an uploaded infrastructure document. The acknowledge
// variant produces a parsed-content summary; the analyze variant produces a
// vulnerability report. Wording comes from the LLM chain when configured,
// otherwise from keyword heuristics.
type Service struct {
	enabled  bool
	behavior assessment.UploadBehavior
	chain    compose.Runnable[map[string]any, *schema.Message]
}

// NewService 创建文档分析服务。chatModel 可复用现有的大模型实例。
func NewService(ctx context.Context, chatModel model.ChatModel, cfg Config) (*Service, error) {
	behavior := cfg.Behavior
	if behavior == "" {
		behavior = assessment.UploadAcknowledge
	}

	svc := &Service{
		enabled:  cfg.Enabled && chatModel != nil,
		behavior: behavior,
	}
	if !svc.enabled {
		return svc, nil
	}

	systemPrompt := summarizeSystemPrompt
	if behavior == assessment.UploadAnalyze {
		systemPrompt = vulnerabilitySystemPrompt
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(analyzeUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile document analysis chain: %w", err)
	}

	svc.chain = runnable
	return svc, nil
}

// Enabled 返回是否启用了大模型分析。
func (s *Service) Enabled() bool {
	return s != nil && s.enabled && s.chain != nil
}

// Analyze reads the document and produces the artifact for the configured
// variant.
func (s *Service) Analyze(ctx context.Context, fileName string, content io.Reader) (assessment.Artifact, error) {
	raw, err := io.ReadAll(io.LimitReader(content, maxDocumentBytes))
	if err != nil {
		return assessment.Artifact{}, fmt.Errorf("failed to read document: %w", err)
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return assessment.Artifact{}, ErrEmptyDocument
	}

	artifact := assessment.Artifact{FileName: fileName}
	if s.Enabled() {
		if done := s.analyzeWithChain(ctx, text, &artifact); done {
			return artifact, nil
		}
	}

	if s.behavior == assessment.UploadAnalyze {
		artifact.Vulnerabilities = scanForGaps(text)
	} else {
		artifact.Summary = heuristicSummary(text)
	}
	return artifact, nil
}

// analyzeWithChain fills the artifact from the LLM chain. A false return
// means the heuristic path should run instead.
func (s *Service) analyzeWithChain(ctx context.Context, text string, artifact *assessment.Artifact) bool {
	msg, err := s.chain.Invoke(ctx, map[string]any{"document": text})
	if err != nil {
		log.Printf("[docanalysis] chain invoke failed, use heuristics: %v", err)
		return false
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return false
	}

	payload, err := parseChainOutput(msg.Content)
	if err != nil {
		log.Printf("[docanalysis] chain output parse failed, use heuristics: %v", err)
		return false
	}

	if s.behavior == assessment.UploadAnalyze {
		if len(payload.Vulnerabilities) == 0 {
			return false
		}
		artifact.Vulnerabilities = payload.Vulnerabilities
		return true
	}

	if len(payload.Summary) == 0 {
		return false
	}
	artifact.Summary = payload.Summary
	return true
}

// heuristicSummary takes the leading sentences of the document as the
// parsed-content summary.
func heuristicSummary(text string) []string {
	const maxLines = 4

	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '\n' || r == ';'
	})

	summary := make([]string, 0, maxLines)
	for _, field := range fields {
		line := strings.TrimSpace(field)
		if line == "" {
			continue
		}
		summary = append(summary, line)
		if len(summary) == maxLines {
			break
		}
	}
	return summary
}

// securityTerms is the corpus of safeguards an infrastructure document is
// expected to mention.
var securityTerms = []struct {
	term        string
	title       string
	description string
}{
	{"firewall", "No Firewall Coverage Described", "The document never mentions firewalls; perimeter filtering may be absent or undocumented."},
	{"encryption", "Encryption Not Addressed", "The document never mentions encryption; data in transit and at rest may be unprotected."},
	{"intrusion", "No Intrusion Detection", "The document never mentions intrusion detection or prevention; attacks may go unnoticed."},
	{"malware", "Malware Defenses Unclear", "The document never mentions malware protection; endpoints may lack anti-malware controls."},
	{"phishing", "Phishing Exposure", "The document never mentions phishing defenses; user-targeted attacks are unaccounted for."},
	{"ddos", "No DDoS Mitigation", "The document never mentions DDoS mitigation; availability under attack is unaddressed."},
	{"backup", "Backups Not Described", "The document never mentions backups; recovery from data loss is unaccounted for."},
}

// scanForGaps reports safeguards the document never mentions.
func scanForGaps(text string) []assessment.Vulnerability {
	normalized := strings.ToLower(text)

	gaps := make([]assessment.Vulnerability, 0, len(securityTerms))
	for _, entry := range securityTerms {
		if strings.Contains(normalized, entry.term) {
			continue
		}
		gaps = append(gaps, assessment.Vulnerability{Title: entry.title, Description: entry.description})
	}

	if len(gaps) == 0 {
		gaps = append(gaps, assessment.Vulnerability{
			Title:       "No Obvious Gaps Detected",
			Description: "The document references every safeguard in the scan corpus; review depth of each control manually.",
		})
	}
	return gaps
}

// parseChainOutput 解析大模型返回的 JSON。
func parseChainOutput(content string) (*chainPayload, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("missing json object")
	}

	payload := &chainPayload{}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), payload); err != nil {
		return nil, err
	}
	return payload, nil
}

type chainPayload struct {
	Summary         []string                   `json:"summary"`
	Vulnerabilities []assessment.Vulnerability `json:"vulnerabilities"`
}

const summarizeSystemPrompt = "You are an infrastructure document summarizer. Read the provided document and produce a short bullet summary of the infrastructure it describes.\nOutput requirements: return only a JSON object with a single field summary holding an array of strings (at most 6 bullets). No additional text."

const vulnerabilitySystemPrompt = "You are a cybersecurity analyst. Read the provided infrastructure document and list the most relevant vulnerabilities it implies.\nOutput requirements: return only a JSON object with a single field vulnerabilities holding an array of objects with title and description fields (at most 6 entries). No additional text."

const analyzeUserPrompt = "Document contents:\n{document}\n\nReturn the JSON."
