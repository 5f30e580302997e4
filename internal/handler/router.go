package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	assessmentHandler "github.com/bizbothq/bizbot/backend/internal/handler/assessment"
	"github.com/bizbothq/bizbot/backend/internal/handler/live"
	questionHandler "github.com/bizbothq/bizbot/backend/internal/handler/question"
	"github.com/bizbothq/bizbot/backend/internal/handler/stream"
	middlewarePkg "github.com/bizbothq/bizbot/backend/internal/middleware"
	questionModel "github.com/bizbothq/bizbot/backend/internal/model/question"
	assessmentService "github.com/bizbothq/bizbot/backend/internal/service/assessment"
	"github.com/bizbothq/bizbot/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(assessSvc *assessmentService.Service, questions questionModel.Store) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	// Create handlers
	questionsHandler := questionHandler.New(questions)
	assessHandler := assessmentHandler.New(assessSvc)
	streamHandler := stream.New(assessSvc)
	wsHandler := live.NewWebSocketHandler(assessSvc)

	r.Route("/api", func(api chi.Router) {
		questionsHandler.RegisterRoutes(api)
		assessHandler.RegisterRoutes(api)

		// Live conversation feed over SSE
		api.Get("/assessments/{sessionID}/events", func(w http.ResponseWriter, r *http.Request) {
			sessionID := chi.URLParam(r, "sessionID")
			if err := streamHandler.HandleEvents(r.Context(), w, sessionID); err != nil {
				log.Printf("[sse] error handling stream request: %v", err)
				utils.RespondError(w, http.StatusInternalServerError, "streaming failed")
			}
		})

		wsHandler.RegisterWebSocketRoutes(api)
	})

	return r
}
