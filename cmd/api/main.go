package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"

	"github.com/bizbothq/bizbot/backend/internal/client"
	"github.com/bizbothq/bizbot/backend/internal/config"
	"github.com/bizbothq/bizbot/backend/internal/handler"
	"github.com/bizbothq/bizbot/backend/internal/model/assessment"
	"github.com/bizbothq/bizbot/backend/internal/model/question"
	assessmentService "github.com/bizbothq/bizbot/backend/internal/service/assessment"
	"github.com/bizbothq/bizbot/backend/internal/service/docanalysis"
	"github.com/bizbothq/bizbot/backend/internal/service/followup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Seeded bank backs the catalog endpoint even when an external
	// question bank serves the sessions.
	questionStore := question.NewMemoryStore(question.Seed())

	var chatModel einomodel.ChatModel
	if cfg.AI.Enabled() {
		chatModel, err = cfg.AI.NewChatModel(ctx)
		if err != nil {
			log.Printf("warning: failed to initialize chat model: %v", err)
			log.Println("continuing with heuristic evaluation - 请检查 Ark 模型相关环境变量")
			chatModel = nil
		} else {
			log.Println("Chat model initialized successfully")
		}
	} else {
		log.Println("Ark 凭证未配置，评估将使用内置启发式规则")
	}

	var bank assessmentService.QuestionSource = questionStore
	if cfg.Services.QuestionBankURL != "" {
		bank = client.NewQuestionBank(cfg.Services.QuestionBankURL, cfg.Services.Timeout)
		log.Printf("Using external question bank at %s", cfg.Services.QuestionBankURL)
	}

	var evaluator assessmentService.AnswerEvaluator
	if cfg.Services.AnswerServiceURL != "" {
		evaluator = client.NewAnswerService(cfg.Services.AnswerServiceURL, cfg.Services.Timeout)
		log.Printf("Using external answer service at %s", cfg.Services.AnswerServiceURL)
	} else {
		followUpSvc, err := followup.NewService(ctx, chatModel, followup.Config{Enabled: cfg.Assessment.FollowUpLLM})
		if err != nil {
			log.Fatalf("failed to initialize follow-up service: %v", err)
		}
		if followUpSvc.Enabled() {
			log.Println("Follow-up generator enabled with chat model")
		} else {
			log.Println("Follow-up generator using built-in wording")
		}
		evaluator = followUpSvc
	}

	var analyzer assessmentService.DocumentAnalyzer
	if cfg.Services.DocumentAnalyzerURL != "" {
		analyzer = client.NewDocumentAnalyzer(cfg.Services.DocumentAnalyzerURL, cfg.Assessment.UploadBehavior, cfg.Services.Timeout)
		log.Printf("Using external document analyzer at %s", cfg.Services.DocumentAnalyzerURL)
	} else {
		analysisSvc, err := docanalysis.NewService(ctx, chatModel, docanalysis.Config{
			Enabled:  cfg.Assessment.AnalysisLLM,
			Behavior: cfg.Assessment.UploadBehavior,
		})
		if err != nil {
			log.Fatalf("failed to initialize document analysis service: %v", err)
		}
		analyzer = analysisSvc
	}

	assessSvc := assessmentService.NewService(assessmentService.Config{
		UploadBehavior: cfg.Assessment.UploadBehavior,
	}, bank, evaluator, analyzer)
	assessSvc.SetResultSink(assessmentService.ResultSinkFunc(func(sessionID string, result assessment.AssessmentResult) {
		log.Printf("[assessment] session=%s packaged result, risk score %d", sessionID, result.RiskScore)
	}))

	router := handler.NewRouter(assessSvc, questionStore)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("BizBot backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
