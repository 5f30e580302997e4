package assessment

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bizbothq/bizbot/backend/internal/model/assessment"
	assessmentService "github.com/bizbothq/bizbot/backend/internal/service/assessment"
	"github.com/bizbothq/bizbot/backend/pkg/utils"
)

// maxUploadBytes caps multipart memory buffering for document uploads.
const maxUploadBytes = 32 << 20

// Handler 评估会话的HTTP处理器
type Handler struct {
	svc *assessmentService.Service
}

// New 创建评估处理器
func New(svc *assessmentService.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册评估相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/assessments", h.handleStart)
	r.Get("/assessments/{sessionID}", h.handleGet)
	r.Post("/assessments/{sessionID}/answers", h.handleSubmitAnswer)
	r.Post("/assessments/{sessionID}/document", h.handleUploadDocument)
	r.Get("/assessments/{sessionID}/transcript", h.handleTranscript)
	r.Get("/assessments/{sessionID}/result", h.handleResult)
	r.Get("/assessments/{sessionID}/report", h.handleReport)
}

// sessionView trims the aggregate for API consumers.
type sessionView struct {
	ID           string                       `json:"id"`
	Phase        assessment.Phase             `json:"phase"`
	UserName     string                       `json:"userName,omitempty"`
	CurrentIndex int                          `json:"currentIndex"`
	Questions    int                          `json:"questionCount"`
	Progress     float64                      `json:"progress"`
	Busy         bool                         `json:"busy"`
	HasArtifact  bool                         `json:"hasArtifact"`
	Conversation []assessment.Message         `json:"conversation"`
	Result       *assessment.AssessmentResult `json:"result,omitempty"`
}

func viewOf(sess assessment.Session) sessionView {
	return sessionView{
		ID:           sess.ID,
		Phase:        sess.Phase,
		UserName:     sess.UserName,
		CurrentIndex: sess.CurrentIndex,
		Questions:    len(sess.Questions),
		Progress:     sess.Progress(),
		Busy:         sess.Busy,
		HasArtifact:  sess.Artifact != nil,
		Conversation: sess.Conversation,
		Result:       sess.Result,
	}
}

// handleStart 创建评估会话
func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.StartAssessment(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to start assessment")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, viewOf(sess))
}

// handleGet 查询会话快照
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, viewOf(sess))
}

// handleSubmitAnswer 提交一条回答
func (h *Handler) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.svc.SubmitAnswer(r.Context(), chi.URLParam(r, "sessionID"), payload.Answer)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, viewOf(sess))
}

// handleUploadDocument 上传文档
func (h *Handler) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "file part is required")
		return
	}
	defer file.Close()

	sess, err := h.svc.UploadDocument(r.Context(), chi.URLParam(r, "sessionID"), header.Filename, file)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, viewOf(sess))
}

// handleTranscript 获取完整对话记录
func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	messages, err := h.svc.Transcript(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// handleResult 获取打包后的评估结果
func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Result(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, result)
}

// handleReport 下载漏洞报告
func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	artifact, err := h.svc.Report(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="vulnerability-report.json"`)
	utils.RespondJSON(w, http.StatusOK, artifact)
}

// respondServiceError 将服务层错误映射为HTTP状态码
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, assessmentService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, assessmentService.ErrResultNotReady),
		errors.Is(err, assessmentService.ErrReportNotReady):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, assessmentService.ErrSessionBusy),
		errors.Is(err, assessmentService.ErrDocumentAlreadyUploaded),
		errors.Is(err, assessmentService.ErrSessionNotReady),
		errors.Is(err, assessmentService.ErrAssessmentCompleted):
		utils.RespondError(w, http.StatusConflict, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
