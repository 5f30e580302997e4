package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/bizbothq/bizbot/backend/internal/model/assessment"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server     ServerConfig
	AI         AIConfig
	Services   ServicesConfig
	Assessment AssessmentConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	services, err := loadServicesConfig()
	if err != nil {
		return nil, err
	}

	assessmentCfg, err := loadAssessmentConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Services: services, Assessment: assessmentCfg}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8000"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8000" 或 "127.0.0.1:8000"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("Model")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// ServicesConfig 描述外部协作服务的地址。地址为空表示使用内置实现。
type ServicesConfig struct {
	QuestionBankURL     string
	AnswerServiceURL    string
	DocumentAnalyzerURL string
	Timeout             time.Duration
}

func loadServicesConfig() (ServicesConfig, error) {
	timeout, err := parseOptionalIntEnv("SERVICE_TIMEOUT")
	if err != nil {
		return ServicesConfig{}, err
	}
	timeoutSeconds := 30
	if timeout != nil {
		if *timeout < 1 {
			return ServicesConfig{}, fmt.Errorf("invalid SERVICE_TIMEOUT value: %d", *timeout)
		}
		timeoutSeconds = *timeout
	}

	return ServicesConfig{
		QuestionBankURL:     strings.TrimSpace(os.Getenv("QUESTION_BANK_URL")),
		AnswerServiceURL:    strings.TrimSpace(os.Getenv("ANSWER_SERVICE_URL")),
		DocumentAnalyzerURL: strings.TrimSpace(os.Getenv("DOCUMENT_ANALYZER_URL")),
		Timeout:             time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// AssessmentConfig 描述评估会话的行为配置。
type AssessmentConfig struct {
	UploadBehavior assessment.UploadBehavior
	FollowUpLLM    bool
	AnalysisLLM    bool
}

func loadAssessmentConfig() (AssessmentConfig, error) {
	behaviorRaw := strings.ToLower(getEnvOrDefault("UPLOAD_BEHAVIOR", string(assessment.UploadAcknowledge)))
	var behavior assessment.UploadBehavior
	switch behaviorRaw {
	case string(assessment.UploadAcknowledge):
		behavior = assessment.UploadAcknowledge
	case string(assessment.UploadAnalyze):
		behavior = assessment.UploadAnalyze
	default:
		return AssessmentConfig{}, fmt.Errorf("invalid UPLOAD_BEHAVIOR value: %q", behaviorRaw)
	}

	followUpLLM, err := parseBoolEnv("FOLLOWUP_LLM_ENABLED", true)
	if err != nil {
		return AssessmentConfig{}, err
	}

	analysisLLM, err := parseBoolEnv("ANALYSIS_LLM_ENABLED", true)
	if err != nil {
		return AssessmentConfig{}, err
	}

	return AssessmentConfig{
		UploadBehavior: behavior,
		FollowUpLLM:    followUpLLM,
		AnalysisLLM:    analysisLLM,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
