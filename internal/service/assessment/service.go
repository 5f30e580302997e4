package assessment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bizbothq/bizbot/backend/internal/analysis/risk"
	"github.com/bizbothq/bizbot/backend/internal/model/assessment"
	"github.com/bizbothq/bizbot/backend/internal/model/question"
)

var (
	ErrSessionNotFound         = errors.New("assessment session not found")
	ErrSessionBusy             = errors.New("another exchange is still in progress")
	ErrSessionNotReady         = errors.New("assessment questions are unavailable")
	ErrAssessmentCompleted     = errors.New("assessment already completed")
	ErrDocumentAlreadyUploaded = errors.New("a document has already been uploaded")
	ErrResultNotReady          = errors.New("assessment result not ready")
	ErrReportNotReady          = errors.New("vulnerability report not ready")
)

// QuestionSource fetches the ordered question list at session start.
type QuestionSource interface {
	FetchQuestions(ctx context.Context) ([]question.Question, error)
}

// AnswerEvaluator evaluates one answer against the active question. A
// non-empty follow-up keeps the same question active; an empty follow-up
// advances the sequencer.
type AnswerEvaluator interface {
	Evaluate(ctx context.Context, questionText, answer string) (followUp string, err error)
}

// DocumentAnalyzer turns an uploaded document into an analysis artifact.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, fileName string, content io.Reader) (assessment.Artifact, error)
}

// ResultSink receives the packaged result exactly once per session. The
// orchestrator's obligation ends at handoff.
type ResultSink interface {
	ConsumeResult(sessionID string, result assessment.AssessmentResult)
}

// ResultSinkFunc adapts a function to the ResultSink interface.
type ResultSinkFunc func(sessionID string, result assessment.AssessmentResult)

// ConsumeResult calls f.
func (f ResultSinkFunc) ConsumeResult(sessionID string, result assessment.AssessmentResult) {
	f(sessionID, result)
}

// Config controls per-session behavior chosen at construction time.
type Config struct {
	UploadBehavior assessment.UploadBehavior
}

// Conversation lines. The welcome sequence ends with the name prompt; the
// first user input is captured as the name.
const (
	noticeFetchFailed   = "Sorry, I encountered an error while fetching questions. Please try again later."
	noticeAnswerFailed  = "I apologize, but there was an error processing your answer. Could you please try again?"
	noticeUploadFailed  = "I apologize, but there was an error uploading the file. Could you please try again?"
	noticeAllAnswered   = "Great! We've completed all the questions. I'll now generate your assessment results."
	uploadAckTemplate   = "Great! I've successfully uploaded and parsed the file %q. Let's continue with our assessment."
	uploadScanTemplate  = "I've analyzed %q. Your vulnerability report is ready to download whenever you like."
	greetingTemplate    = "Nice to meet you, %s! Let's start our assessment. %s"
	greetingNoQuestions = "Nice to meet you, %s! Let's start our assessment."
)

var welcomeLines = []string{
	"Welcome to BizBot!",
	"I am BizBot 😎",
	"May I know your name?",
}

// Fallback result content used when no uploaded artifact and no risk
// findings are available at packaging time.
var defaultDocumentSummary = []string{
	"Infrastructure consists of 3 web servers and 2 database servers",
	"Web servers are running Apache 2.4 on Ubuntu 20.04",
	"Database servers are using MySQL 8.0",
	"Firewall is configured but some ports are open for development purposes",
}

var defaultVulnerabilities = []assessment.Vulnerability{
	{Title: "Outdated Apache Version", Description: "Apache 2.4 has known vulnerabilities. Upgrade to the latest version."},
	{Title: "Open Ports", Description: "Several unnecessary ports are open, increasing attack surface."},
	{Title: "Weak Password Policy", Description: "Current password policy does not meet industry standards."},
}

// Service drives the question/answer dialogue for every live session: it
// owns the sequencer position, the conversation log, the busy flag and the
// one-shot result packaging.
type Service struct {
	mu       sync.Mutex
	sessions map[string]*assessment.Session
	signals  map[string][]risk.Signal
	watchers map[string]map[int]chan assessment.Message
	nextSub  int

	bank      QuestionSource
	evaluator AnswerEvaluator
	analyzer  DocumentAnalyzer
	sink      ResultSink
	behavior  assessment.UploadBehavior
}

// NewService wires the orchestrator to its collaborators.
func NewService(cfg Config, bank QuestionSource, evaluator AnswerEvaluator, analyzer DocumentAnalyzer) *Service {
	behavior := cfg.UploadBehavior
	if behavior == "" {
		behavior = assessment.UploadAcknowledge
	}

	return &Service{
		sessions: make(map[string]*assessment.Session),
		signals:  make(map[string][]risk.Signal),
		watchers: make(map[string]map[int]chan assessment.Message),

		bank:      bank,
		evaluator: evaluator,
		analyzer:  analyzer,
		behavior:  behavior,
	}
}

// SetResultSink registers the collaborator that consumes packaged results.
func (s *Service) SetResultSink(sink ResultSink) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

// StartAssessment provisions a session and fetches the question list once.
// A fetch failure degrades the session to a static notice; no automatic
// retry is attempted.
func (s *Service) StartAssessment(ctx context.Context) (assessment.Session, error) {
	sess := &assessment.Session{
		ID:           uuid.NewString(),
		Phase:        assessment.PhaseUninitialized,
		Conversation: make([]assessment.Message, 0, 16),
		CreatedAt:    time.Now().UTC(),
	}

	questions, err := s.bank.FetchQuestions(ctx)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	if err != nil {
		log.Printf("[assessment] question fetch failed for session=%s: %v", sess.ID, err)
		s.appendLocked(sess, assessment.RoleAssistant, noticeFetchFailed)
	} else {
		sess.Questions = questions
		sess.Phase = assessment.PhaseAwaitingName
		for _, line := range welcomeLines {
			s.appendLocked(sess, assessment.RoleAssistant, line)
		}
	}
	snap := snapshot(sess)
	s.mu.Unlock()

	return snap, nil
}

// SubmitAnswer runs one answer exchange: name capture on the first input,
// otherwise dispatch against the active question followed by a sequencer
// decision. Blank input is dropped before any state mutation.
func (s *Service) SubmitAnswer(ctx context.Context, sessionID, answer string) (assessment.Session, error) {
	trimmed := strings.TrimSpace(answer)

	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return assessment.Session{}, ErrSessionNotFound
	}
	if trimmed == "" {
		snap := snapshot(sess)
		s.mu.Unlock()
		return snap, nil
	}
	if sess.Busy {
		s.mu.Unlock()
		return assessment.Session{}, ErrSessionBusy
	}

	switch sess.Phase {
	case assessment.PhaseUninitialized:
		s.mu.Unlock()
		return assessment.Session{}, ErrSessionNotReady
	case assessment.PhaseCompleted:
		s.mu.Unlock()
		return assessment.Session{}, ErrAssessmentCompleted
	case assessment.PhaseAwaitingName:
		sess.UserName = trimmed
		sess.Phase = assessment.PhaseAwaitingAnswer
		s.appendLocked(sess, assessment.RoleUser, trimmed)
		if len(sess.Questions) > 0 {
			s.appendLocked(sess, assessment.RoleAssistant,
				fmt.Sprintf(greetingTemplate, trimmed, sess.Questions[0].Text))
		} else {
			s.appendLocked(sess, assessment.RoleAssistant,
				fmt.Sprintf(greetingNoQuestions, trimmed))
		}
		snap := snapshot(sess)
		s.mu.Unlock()
		return snap, nil
	}

	// Empty bank: the first post-name answer completes the run without a
	// network exchange, as there is no question to dispatch against.
	if sess.CurrentIndex >= len(sess.Questions) {
		s.appendLocked(sess, assessment.RoleUser, trimmed)
		emit := s.completeLocked(sess)
		snap := snapshot(sess)
		s.mu.Unlock()
		emit()
		return snap, nil
	}

	active := sess.Questions[sess.CurrentIndex]
	sess.Busy = true
	s.appendLocked(sess, assessment.RoleUser, trimmed)
	s.mu.Unlock()

	followUp, err := s.evaluator.Evaluate(ctx, active.Text, trimmed)

	s.mu.Lock()
	sess.Busy = false
	emit := func() {}
	switch {
	case err != nil:
		log.Printf("[assessment] answer exchange failed for session=%s index=%d: %v",
			sess.ID, sess.CurrentIndex, err)
		s.appendLocked(sess, assessment.RoleAssistant, noticeAnswerFailed)
	case followUp != "":
		s.appendLocked(sess, assessment.RoleAssistant, followUp)
	default:
		s.signals[sess.ID] = append(s.signals[sess.ID],
			risk.Assess(active.Topic, question.TopicWeight(active.Topic), trimmed))
		sess.CurrentIndex++
		if sess.CurrentIndex < len(sess.Questions) {
			s.appendLocked(sess, assessment.RoleAssistant, sess.Questions[sess.CurrentIndex].Text)
		} else {
			emit = s.completeLocked(sess)
		}
	}
	snap := snapshot(sess)
	s.mu.Unlock()

	emit()
	return snap, nil
}

// UploadDocument submits one document to the analyzer and merges the
// artifact into the session. Only one artifact is accepted per session; a
// failed upload stores nothing, so a retry stays possible.
func (s *Service) UploadDocument(ctx context.Context, sessionID, fileName string, content io.Reader) (assessment.Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return assessment.Session{}, ErrSessionNotFound
	}
	if sess.Busy {
		s.mu.Unlock()
		return assessment.Session{}, ErrSessionBusy
	}
	if sess.Phase == assessment.PhaseUninitialized {
		s.mu.Unlock()
		return assessment.Session{}, ErrSessionNotReady
	}
	if sess.Artifact != nil {
		s.mu.Unlock()
		return assessment.Session{}, ErrDocumentAlreadyUploaded
	}
	sess.Busy = true
	s.mu.Unlock()

	artifact, err := s.analyzer.Analyze(ctx, fileName, content)

	s.mu.Lock()
	sess.Busy = false
	if err != nil {
		log.Printf("[upload] document analysis failed for session=%s file=%q: %v", sess.ID, fileName, err)
		s.appendLocked(sess, assessment.RoleAssistant, noticeUploadFailed)
	} else {
		artifact.FileName = fileName
		if artifact.CreatedAt.IsZero() {
			artifact.CreatedAt = time.Now().UTC()
		}
		sess.Artifact = &artifact
		template := uploadAckTemplate
		if s.behavior == assessment.UploadAnalyze {
			template = uploadScanTemplate
		}
		s.appendLocked(sess, assessment.RoleAssistant, fmt.Sprintf(template, fileName))
	}
	snap := snapshot(sess)
	s.mu.Unlock()

	return snap, nil
}

// GetSession returns a point-in-time copy of the session aggregate.
func (s *Service) GetSession(_ context.Context, sessionID string) (assessment.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return assessment.Session{}, ErrSessionNotFound
	}
	return snapshot(sess), nil
}

// Transcript returns the ordered conversation log.
func (s *Service) Transcript(_ context.Context, sessionID string) ([]assessment.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	copied := make([]assessment.Message, len(sess.Conversation))
	copy(copied, sess.Conversation)
	return copied, nil
}

// Result returns the packaged result once the sequencer has completed.
func (s *Service) Result(_ context.Context, sessionID string) (assessment.AssessmentResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return assessment.AssessmentResult{}, ErrSessionNotFound
	}
	if sess.Result == nil {
		return assessment.AssessmentResult{}, ErrResultNotReady
	}
	return *sess.Result, nil
}

// Report returns the uploaded document's artifact. Availability is gated on
// a document having been analyzed.
func (s *Service) Report(_ context.Context, sessionID string) (assessment.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return assessment.Artifact{}, ErrSessionNotFound
	}
	if sess.Artifact == nil {
		return assessment.Artifact{}, ErrReportNotReady
	}
	return *sess.Artifact, nil
}

// Watch subscribes to conversation appends for a session. The returned
// cancel func must be called to release the subscription.
func (s *Service) Watch(sessionID string) (<-chan assessment.Message, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, nil, ErrSessionNotFound
	}

	id := s.nextSub
	s.nextSub++
	ch := make(chan assessment.Message, 32)
	if s.watchers[sessionID] == nil {
		s.watchers[sessionID] = make(map[int]chan assessment.Message)
	}
	s.watchers[sessionID][id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if subs, ok := s.watchers[sessionID]; ok {
			if sub, ok := subs[id]; ok {
				delete(subs, id)
				close(sub)
			}
		}
	}
	return ch, cancel, nil
}

// appendLocked appends to the conversation log and fans the entry out to
// watchers. Callers must hold s.mu.
func (s *Service) appendLocked(sess *assessment.Session, role, content string) {
	msg := assessment.Message{
		ID:        uuid.NewString(),
		SessionID: sess.ID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	sess.Conversation = append(sess.Conversation, msg)

	for _, sub := range s.watchers[sess.ID] {
		select {
		case sub <- msg:
		default:
			log.Printf("[assessment] dropping message for slow watcher session=%s", sess.ID)
		}
	}
}

// completeLocked moves the session to Completed and packages the result.
// The returned func delivers the result to the sink and must be invoked
// after s.mu is released. Packaging happens at most once per session.
func (s *Service) completeLocked(sess *assessment.Session) func() {
	sess.Phase = assessment.PhaseCompleted
	s.appendLocked(sess, assessment.RoleAssistant, noticeAllAnswered)

	if sess.Result != nil {
		return func() {}
	}

	result := s.packageResultLocked(sess)
	sess.Result = &result

	sink := s.sink
	sessionID := sess.ID
	return func() {
		if sink != nil {
			sink.ConsumeResult(sessionID, result)
		}
	}
}

// packageResultLocked aggregates whatever the session has accumulated. No
// network calls happen here; uploaded artifacts win over heuristics, which
// win over the canned defaults.
func (s *Service) packageResultLocked(sess *assessment.Session) assessment.AssessmentResult {
	summary := risk.Summarize(s.signals[sess.ID])

	result := assessment.AssessmentResult{RiskScore: summary.Score}

	if sess.Artifact != nil && len(sess.Artifact.Summary) > 0 {
		result.DocumentSummary = append([]string(nil), sess.Artifact.Summary...)
	} else {
		result.DocumentSummary = append([]string(nil), defaultDocumentSummary...)
	}

	switch {
	case sess.Artifact != nil && len(sess.Artifact.Vulnerabilities) > 0:
		result.VulnerabilityReport = append([]assessment.Vulnerability(nil), sess.Artifact.Vulnerabilities...)
	case len(summary.Findings) > 0:
		for _, finding := range summary.Findings {
			result.VulnerabilityReport = append(result.VulnerabilityReport, assessment.Vulnerability{
				Title:       finding.Title,
				Description: finding.Description,
			})
		}
	default:
		result.VulnerabilityReport = append([]assessment.Vulnerability(nil), defaultVulnerabilities...)
	}

	return result
}

// snapshot copies the aggregate so callers never observe later mutation.
func snapshot(sess *assessment.Session) assessment.Session {
	snap := *sess
	snap.Questions = append([]question.Question(nil), sess.Questions...)
	snap.Conversation = append([]assessment.Message(nil), sess.Conversation...)
	if sess.Artifact != nil {
		artifact := *sess.Artifact
		snap.Artifact = &artifact
	}
	if sess.Result != nil {
		result := *sess.Result
		snap.Result = &result
	}
	return snap
}
