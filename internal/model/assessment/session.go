package assessment

import (
	"time"

	"github.com/bizbothq/bizbot/backend/internal/model/question"
)

// Phase tracks where a session is in the guided assessment. Transitions are
// strictly forward; there is no way back to an earlier phase.
type Phase string

const (
	// PhaseUninitialized means the question fetch has not succeeded; the
	// session only serves the static failure notice.
	PhaseUninitialized Phase = "uninitialized"
	// PhaseAwaitingName expects the first user input, captured as the name.
	PhaseAwaitingName Phase = "awaiting_name"
	// PhaseAwaitingAnswer expects an answer to the question at CurrentIndex.
	PhaseAwaitingAnswer Phase = "awaiting_answer"
	// PhaseCompleted means every question has been answered and the result
	// has been packaged.
	PhaseCompleted Phase = "completed"
)

// UploadBehavior selects what a successful document upload produces.
type UploadBehavior string

const (
	// UploadAcknowledge confirms the parse and resumes the assessment.
	UploadAcknowledge UploadBehavior = "acknowledge"
	// UploadAnalyze additionally produces a downloadable vulnerability report.
	UploadAnalyze UploadBehavior = "analyze"
)

// Session is the single mutable aggregate for one assessment run. It lives
// in memory for the duration of the run and is never persisted.
type Session struct {
	ID           string              `json:"id"`
	UserName     string              `json:"userName,omitempty"`
	Phase        Phase               `json:"phase"`
	CurrentIndex int                 `json:"currentIndex"`
	Questions    []question.Question `json:"questions"`
	Conversation []Message           `json:"conversation"`
	Busy         bool                `json:"busy"`
	Artifact     *Artifact           `json:"artifact,omitempty"`
	Result       *AssessmentResult   `json:"result,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
}

// Progress reports how far through the question list the session is, in the
// 0..1 range. An uninitialized or empty question list reports zero.
func (s Session) Progress() float64 {
	if len(s.Questions) == 0 {
		return 0
	}
	return float64(s.CurrentIndex) / float64(len(s.Questions))
}

// Completed reports whether every question has been answered.
func (s Session) Completed() bool {
	return s.Phase == PhaseCompleted
}
