package question

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bizbothq/bizbot/backend/internal/model/question"
	"github.com/bizbothq/bizbot/backend/pkg/utils"
)

// Handler 问题库的HTTP处理器
type Handler struct {
	questions question.Store
}

// New 创建问题库处理器
func New(questions question.Store) *Handler {
	return &Handler{questions: questions}
}

// RegisterRoutes 注册问题库相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/questions", h.handleListQuestions)
}

// handleListQuestions 按展示顺序列出问题
func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{"questions": h.questions.List()})
}
