package followup

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/bizbothq/bizbot/backend/internal/analysis/risk"
)

// Config 控制追问生成服务的行为。
type Config struct {
	Enabled bool
}

// Service decides whether an answer needs a clarifying follow-up and, when
// it does, generates the wording. Negative answers trigger the follow-up;
// wording comes from the LLM chain when configured, otherwise from a
// template. The service itself never fails an exchange.
type Service struct {
	enabled   bool
	generator compose.Runnable[map[string]any, *schema.Message]
}

// NewService 创建追问生成服务。chatModel 可复用现有的大模型实例。
func NewService(ctx context.Context, chatModel model.ChatModel, cfg Config) (*Service, error) {
	svc := &Service{enabled: cfg.Enabled && chatModel != nil}
	if !svc.enabled {
		return svc, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(followUpSystemPrompt),
		schema.UserMessage(followUpUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile follow-up chain: %w", err)
	}

	svc.generator = runnable
	return svc, nil
}

// Enabled 返回是否启用了大模型追问生成。
func (s *Service) Enabled() bool {
	return s != nil && s.enabled && s.generator != nil
}

// Evaluate implements the answer-evaluation contract: a non-empty return is
// the follow-up to ask before advancing; empty means advance.
func (s *Service) Evaluate(ctx context.Context, questionText, answer string) (string, error) {
	if !risk.NegativeAnswer(answer) {
		return "", nil
	}

	if !s.Enabled() {
		return fallbackFollowUp(questionText), nil
	}

	input := map[string]any{
		"question": strings.TrimSpace(questionText),
		"answer":   strings.TrimSpace(answer),
	}

	msg, err := s.generator.Invoke(ctx, input)
	if err != nil {
		log.Printf("[followup] chain invoke failed, use fallback: %v", err)
		return fallbackFollowUp(questionText), nil
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return fallbackFollowUp(questionText), nil
	}

	followUp, err := parseGeneratorOutput(msg.Content)
	if err != nil {
		log.Printf("[followup] chain output parse failed, use fallback: %v", err)
		return fallbackFollowUp(questionText), nil
	}
	if followUp == "" {
		return fallbackFollowUp(questionText), nil
	}
	return followUp, nil
}

func fallbackFollowUp(questionText string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(questionText), "?")
	if trimmed == "" {
		return "Could you describe what currently stands in the way of addressing this, and any compensating controls you rely on?"
	}
	return fmt.Sprintf("You indicated this is not in place. Regarding %q: what has prevented it so far, and are any compensating controls in use?", trimmed)
}

// parseGeneratorOutput 解析大模型返回的 JSON。
func parseGeneratorOutput(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("missing json object")
	}

	payload := &generatorPayload{}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), payload); err != nil {
		return "", err
	}
	return strings.TrimSpace(payload.FollowUpQuestion), nil
}

type generatorPayload struct {
	FollowUpQuestion string `json:"follow_up_question"`
}

const followUpSystemPrompt = "You are a cybersecurity assessment interviewer. The respondent gave a negative answer to an assessment question. Generate exactly one concise follow-up question probing why the control is absent and what compensates for it.\nOutput requirements: return only a JSON object with a single field follow_up_question. No additional text."

const followUpUserPrompt = "Assessment question:\n{question}\n\nRespondent's answer:\n{answer}\n\nReturn the JSON."
