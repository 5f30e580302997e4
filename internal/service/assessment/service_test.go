package assessment_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	model "github.com/bizbothq/bizbot/backend/internal/model/assessment"
	"github.com/bizbothq/bizbot/backend/internal/model/question"
	assessment "github.com/bizbothq/bizbot/backend/internal/service/assessment"
)

type fakeBank struct {
	questions []question.Question
	err       error
}

func (f *fakeBank) FetchQuestions(_ context.Context) ([]question.Question, error) {
	return f.questions, f.err
}

type fakeEvaluator struct {
	followUps map[string]string
	err       error
	calls     int
}

func (f *fakeEvaluator) Evaluate(_ context.Context, questionText, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.followUps[questionText], nil
}

// blockingEvaluator parks inside Evaluate until released, holding the
// session's busy flag across the exchange.
type blockingEvaluator struct {
	entered chan struct{}
	release chan struct{}
}

func newBlockingEvaluator() *blockingEvaluator {
	return &blockingEvaluator{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (b *blockingEvaluator) Evaluate(_ context.Context, _, _ string) (string, error) {
	close(b.entered)
	<-b.release
	return "", nil
}

type fakeAnalyzer struct {
	artifact model.Artifact
	err      error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ string, _ io.Reader) (model.Artifact, error) {
	return f.artifact, f.err
}

func twoQuestions() []question.Question {
	return []question.Question{
		{Topic: "Network Security", Text: "Q1"},
		{Topic: "Compliance", Text: "Q2"},
	}
}

func newService(bank *fakeBank, eval *fakeEvaluator, analyzer *fakeAnalyzer) *assessment.Service {
	if bank == nil {
		bank = &fakeBank{questions: twoQuestions()}
	}
	if eval == nil {
		eval = &fakeEvaluator{}
	}
	if analyzer == nil {
		analyzer = &fakeAnalyzer{}
	}
	return assessment.NewService(assessment.Config{}, bank, eval, analyzer)
}

func startSession(t *testing.T, svc *assessment.Service) model.Session {
	t.Helper()
	sess, err := svc.StartAssessment(context.Background())
	if err != nil {
		t.Fatalf("StartAssessment err: %v", err)
	}
	return sess
}

func lastMessage(t *testing.T, sess model.Session) model.Message {
	t.Helper()
	if len(sess.Conversation) == 0 {
		t.Fatal("conversation is empty")
	}
	return sess.Conversation[len(sess.Conversation)-1]
}

func TestStartAssessmentSeedsWelcomeSequence(t *testing.T) {
	svc := newService(nil, nil, nil)
	sess := startSession(t, svc)

	if sess.Phase != model.PhaseAwaitingName {
		t.Fatalf("expected awaiting_name, got %s", sess.Phase)
	}
	if len(sess.Conversation) != 3 {
		t.Fatalf("expected 3 welcome lines, got %d", len(sess.Conversation))
	}
	if got := lastMessage(t, sess).Content; got != "May I know your name?" {
		t.Fatalf("unexpected name prompt %q", got)
	}
	if len(sess.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(sess.Questions))
	}
}

func TestStartAssessmentFetchFailureDegradesToNotice(t *testing.T) {
	svc := newService(&fakeBank{err: errors.New("bank down")}, nil, nil)
	sess := startSession(t, svc)

	if sess.Phase != model.PhaseUninitialized {
		t.Fatalf("expected uninitialized, got %s", sess.Phase)
	}
	if len(sess.Conversation) != 1 {
		t.Fatalf("expected single notice, got %d messages", len(sess.Conversation))
	}

	if _, err := svc.SubmitAnswer(context.Background(), sess.ID, "hello"); !errors.Is(err, assessment.ErrSessionNotReady) {
		t.Fatalf("expected ErrSessionNotReady, got %v", err)
	}
}

func TestNameCaptureGreetsWithFirstQuestion(t *testing.T) {
	svc := newService(nil, nil, nil)
	sess := startSession(t, svc)

	got, err := svc.SubmitAnswer(context.Background(), sess.ID, "Alice")
	if err != nil {
		t.Fatalf("SubmitAnswer err: %v", err)
	}

	if got.UserName != "Alice" {
		t.Fatalf("expected captured name Alice, got %q", got.UserName)
	}
	if got.Phase != model.PhaseAwaitingAnswer {
		t.Fatalf("expected awaiting_answer, got %s", got.Phase)
	}
	if got.CurrentIndex != 0 {
		t.Fatalf("name capture must not advance the sequencer, index=%d", got.CurrentIndex)
	}
	greeting := lastMessage(t, got)
	if greeting.Role != model.RoleAssistant || !strings.Contains(greeting.Content, "Q1") {
		t.Fatalf("expected greeting referencing Q1, got %q", greeting.Content)
	}
	user := got.Conversation[len(got.Conversation)-2]
	if user.Role != model.RoleUser || user.Content != "Alice" {
		t.Fatalf("expected user name entry, got %+v", user)
	}
}

func TestFullRunAdvancesOncePerAnswerAndPackages(t *testing.T) {
	var delivered []model.AssessmentResult
	svc := newService(nil, nil, nil)
	svc.SetResultSink(assessment.ResultSinkFunc(func(_ string, result model.AssessmentResult) {
		delivered = append(delivered, result)
	}))

	ctx := context.Background()
	sess := startSession(t, svc)

	if _, err := svc.SubmitAnswer(ctx, sess.ID, "Alice"); err != nil {
		t.Fatalf("name err: %v", err)
	}

	got, err := svc.SubmitAnswer(ctx, sess.ID, "A1")
	if err != nil {
		t.Fatalf("first answer err: %v", err)
	}
	if got.CurrentIndex != 1 {
		t.Fatalf("expected index 1 after first answer, got %d", got.CurrentIndex)
	}
	if msg := lastMessage(t, got); msg.Content != "Q2" {
		t.Fatalf("expected Q2 to be asked, got %q", msg.Content)
	}

	got, err = svc.SubmitAnswer(ctx, sess.ID, "A2")
	if err != nil {
		t.Fatalf("second answer err: %v", err)
	}
	if got.CurrentIndex != 2 {
		t.Fatalf("expected index 2 after final answer, got %d", got.CurrentIndex)
	}
	if got.Phase != model.PhaseCompleted {
		t.Fatalf("expected completed phase, got %s", got.Phase)
	}
	if got.Result == nil {
		t.Fatal("expected packaged result on session")
	}

	if len(delivered) != 1 {
		t.Fatalf("expected exactly one sink delivery, got %d", len(delivered))
	}
	result := delivered[0]
	if result.RiskScore < 0 || result.RiskScore > 100 {
		t.Fatalf("risk score out of range: %d", result.RiskScore)
	}
	if len(result.DocumentSummary) == 0 || len(result.VulnerabilityReport) == 0 {
		t.Fatal("expected populated summary and vulnerability report")
	}

	if _, err := svc.SubmitAnswer(ctx, sess.ID, "extra"); !errors.Is(err, assessment.ErrAssessmentCompleted) {
		t.Fatalf("expected ErrAssessmentCompleted, got %v", err)
	}
	if len(delivered) != 1 {
		t.Fatalf("sink must not re-fire, got %d deliveries", len(delivered))
	}
}

func TestFollowUpHoldsSequencerPosition(t *testing.T) {
	eval := &fakeEvaluator{followUps: map[string]string{"Q1": "Clarify?"}}
	svc := newService(nil, eval, nil)
	ctx := context.Background()
	sess := startSession(t, svc)

	if _, err := svc.SubmitAnswer(ctx, sess.ID, "Alice"); err != nil {
		t.Fatalf("name err: %v", err)
	}

	got, err := svc.SubmitAnswer(ctx, sess.ID, "no")
	if err != nil {
		t.Fatalf("answer err: %v", err)
	}
	if got.CurrentIndex != 0 {
		t.Fatalf("follow-up must not advance, index=%d", got.CurrentIndex)
	}
	if msg := lastMessage(t, got); msg.Content != "Clarify?" {
		t.Fatalf("expected follow-up appended, got %q", msg.Content)
	}

	// The next answer is evaluated against the same question text.
	eval.followUps = nil
	got, err = svc.SubmitAnswer(ctx, sess.ID, "we rely on a managed firewall")
	if err != nil {
		t.Fatalf("retry err: %v", err)
	}
	if got.CurrentIndex != 1 {
		t.Fatalf("expected advance after clarification, index=%d", got.CurrentIndex)
	}
	if eval.calls != 2 {
		t.Fatalf("expected 2 evaluator calls, got %d", eval.calls)
	}
}

func TestOutstandingExchangeRejectsConcurrentRequests(t *testing.T) {
	eval := newBlockingEvaluator()
	svc := assessment.NewService(assessment.Config{}, &fakeBank{questions: twoQuestions()}, eval, &fakeAnalyzer{})
	ctx := context.Background()
	sess := startSession(t, svc)

	if _, err := svc.SubmitAnswer(ctx, sess.ID, "Alice"); err != nil {
		t.Fatalf("name err: %v", err)
	}
	before, err := svc.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}

	type outcome struct {
		sess model.Session
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		got, err := svc.SubmitAnswer(ctx, sess.ID, "A1")
		done <- outcome{sess: got, err: err}
	}()

	<-eval.entered

	if _, err := svc.SubmitAnswer(ctx, sess.ID, "interleaved"); !errors.Is(err, assessment.ErrSessionBusy) {
		t.Fatalf("expected ErrSessionBusy for answer mid-exchange, got %v", err)
	}
	if _, err := svc.UploadDocument(ctx, sess.ID, "infra.pdf", strings.NewReader("doc")); !errors.Is(err, assessment.ErrSessionBusy) {
		t.Fatalf("expected ErrSessionBusy for upload mid-exchange, got %v", err)
	}

	// Rejected requests leave no trace beyond the in-flight user line.
	mid, err := svc.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}
	if !mid.Busy {
		t.Fatal("expected busy while the exchange is outstanding")
	}
	if mid.CurrentIndex != 0 {
		t.Fatalf("rejected requests must not advance, index=%d", mid.CurrentIndex)
	}
	if len(mid.Conversation) != len(before.Conversation)+1 {
		t.Fatalf("expected only the in-flight user line appended, got %d messages (was %d)",
			len(mid.Conversation), len(before.Conversation))
	}

	close(eval.release)
	result := <-done
	if result.err != nil {
		t.Fatalf("in-flight answer err: %v", result.err)
	}
	if result.sess.Busy {
		t.Fatal("busy must be released once the exchange finishes")
	}
	if result.sess.CurrentIndex != 1 {
		t.Fatalf("expected advance after release, index=%d", result.sess.CurrentIndex)
	}
}

func TestBlankAnswerIsDroppedSilently(t *testing.T) {
	eval := &fakeEvaluator{}
	svc := newService(nil, eval, nil)
	ctx := context.Background()
	sess := startSession(t, svc)

	for _, blank := range []string{"", "   ", "\n\t"} {
		got, err := svc.SubmitAnswer(ctx, sess.ID, blank)
		if err != nil {
			t.Fatalf("blank submit err: %v", err)
		}
		if len(got.Conversation) != 3 {
			t.Fatalf("blank input must not append, got %d messages", len(got.Conversation))
		}
		if got.Busy {
			t.Fatal("blank input must not set busy")
		}
	}
	if eval.calls != 0 {
		t.Fatalf("blank input must not reach the evaluator, calls=%d", eval.calls)
	}
}

func TestAnswerFailureLeavesStateRecoverable(t *testing.T) {
	eval := &fakeEvaluator{err: errors.New("service down")}
	svc := newService(nil, eval, nil)
	ctx := context.Background()
	sess := startSession(t, svc)

	if _, err := svc.SubmitAnswer(ctx, sess.ID, "Alice"); err != nil {
		t.Fatalf("name err: %v", err)
	}

	got, err := svc.SubmitAnswer(ctx, sess.ID, "A1")
	if err != nil {
		t.Fatalf("answer err: %v", err)
	}
	if got.CurrentIndex != 0 {
		t.Fatalf("failure must not advance, index=%d", got.CurrentIndex)
	}
	if got.Busy {
		t.Fatal("busy must be released on failure")
	}
	apology := lastMessage(t, got)
	if apology.Role != model.RoleAssistant || !strings.Contains(apology.Content, "error processing your answer") {
		t.Fatalf("expected apology, got %q", apology.Content)
	}

	// Same question remains active; a retry succeeds.
	eval.err = nil
	got, err = svc.SubmitAnswer(ctx, sess.ID, "A1 again")
	if err != nil {
		t.Fatalf("retry err: %v", err)
	}
	if got.CurrentIndex != 1 {
		t.Fatalf("expected advance on retry, index=%d", got.CurrentIndex)
	}
}

func TestEmptyQuestionListCompletesOnFirstAnswer(t *testing.T) {
	fired := 0
	svc := newService(&fakeBank{questions: nil}, nil, nil)
	svc.SetResultSink(assessment.ResultSinkFunc(func(string, model.AssessmentResult) { fired++ }))
	ctx := context.Background()
	sess := startSession(t, svc)

	if _, err := svc.SubmitAnswer(ctx, sess.ID, "Alice"); err != nil {
		t.Fatalf("name err: %v", err)
	}

	got, err := svc.SubmitAnswer(ctx, sess.ID, "anything")
	if err != nil {
		t.Fatalf("answer err: %v", err)
	}
	if got.Phase != model.PhaseCompleted {
		t.Fatalf("expected completion, got %s", got.Phase)
	}
	if fired != 1 {
		t.Fatalf("expected one packaging, got %d", fired)
	}
}

func TestUploadStoresArtifactAndConfirms(t *testing.T) {
	analyzer := &fakeAnalyzer{artifact: model.Artifact{Summary: []string{"uses Apache 2.4"}}}
	svc := newService(nil, nil, analyzer)
	ctx := context.Background()
	sess := startSession(t, svc)
	if _, err := svc.SubmitAnswer(ctx, sess.ID, "Alice"); err != nil {
		t.Fatalf("name err: %v", err)
	}

	got, err := svc.UploadDocument(ctx, sess.ID, "infra.pdf", strings.NewReader("doc"))
	if err != nil {
		t.Fatalf("upload err: %v", err)
	}
	if got.Artifact == nil || got.Artifact.FileName != "infra.pdf" {
		t.Fatalf("expected stored artifact, got %+v", got.Artifact)
	}
	confirmation := lastMessage(t, got)
	if !strings.Contains(confirmation.Content, `"infra.pdf"`) {
		t.Fatalf("expected confirmation naming the file, got %q", confirmation.Content)
	}

	if _, err := svc.UploadDocument(ctx, sess.ID, "second.pdf", strings.NewReader("doc")); !errors.Is(err, assessment.ErrDocumentAlreadyUploaded) {
		t.Fatalf("expected ErrDocumentAlreadyUploaded, got %v", err)
	}
}

func TestUploadFailureKeepsArtifactUnset(t *testing.T) {
	analyzer := &fakeAnalyzer{err: errors.New("parser crashed")}
	svc := newService(nil, nil, analyzer)
	ctx := context.Background()
	sess := startSession(t, svc)
	if _, err := svc.SubmitAnswer(ctx, sess.ID, "Alice"); err != nil {
		t.Fatalf("name err: %v", err)
	}

	got, err := svc.UploadDocument(ctx, sess.ID, "infra.pdf", strings.NewReader("doc"))
	if err != nil {
		t.Fatalf("upload err: %v", err)
	}
	if got.Artifact != nil {
		t.Fatal("failed upload must not store an artifact")
	}
	if got.Busy {
		t.Fatal("busy must be released after failed upload")
	}
	if !strings.Contains(lastMessage(t, got).Content, "error uploading the file") {
		t.Fatalf("expected upload apology, got %q", lastMessage(t, got).Content)
	}

	// Retry is possible as long as nothing was stored.
	analyzer.err = nil
	analyzer.artifact = model.Artifact{Summary: []string{"parsed"}}
	got, err = svc.UploadDocument(ctx, sess.ID, "infra.pdf", strings.NewReader("doc"))
	if err != nil {
		t.Fatalf("retry err: %v", err)
	}
	if got.Artifact == nil {
		t.Fatal("expected artifact after retry")
	}
}

func TestUploadedVulnerabilitiesWinOverDefaults(t *testing.T) {
	analyzer := &fakeAnalyzer{artifact: model.Artifact{
		Summary:         []string{"summary line"},
		Vulnerabilities: []model.Vulnerability{{Title: "Exposed Admin Panel", Description: "Reachable from the internet."}},
	}}
	svc := newService(nil, nil, analyzer)
	ctx := context.Background()
	sess := startSession(t, svc)

	if _, err := svc.SubmitAnswer(ctx, sess.ID, "Alice"); err != nil {
		t.Fatalf("name err: %v", err)
	}
	if _, err := svc.UploadDocument(ctx, sess.ID, "infra.pdf", strings.NewReader("doc")); err != nil {
		t.Fatalf("upload err: %v", err)
	}
	if _, err := svc.SubmitAnswer(ctx, sess.ID, "yes"); err != nil {
		t.Fatalf("answer err: %v", err)
	}
	if _, err := svc.SubmitAnswer(ctx, sess.ID, "yes"); err != nil {
		t.Fatalf("answer err: %v", err)
	}

	result, err := svc.Result(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Result err: %v", err)
	}
	if result.DocumentSummary[0] != "summary line" {
		t.Fatalf("expected artifact summary, got %v", result.DocumentSummary)
	}
	if result.VulnerabilityReport[0].Title != "Exposed Admin Panel" {
		t.Fatalf("expected artifact vulnerabilities, got %v", result.VulnerabilityReport)
	}
}

func TestResultUnavailableBeforeCompletion(t *testing.T) {
	svc := newService(nil, nil, nil)
	sess := startSession(t, svc)

	if _, err := svc.Result(context.Background(), sess.ID); !errors.Is(err, assessment.ErrResultNotReady) {
		t.Fatalf("expected ErrResultNotReady, got %v", err)
	}
	if _, err := svc.Report(context.Background(), sess.ID); !errors.Is(err, assessment.ErrReportNotReady) {
		t.Fatalf("expected ErrReportNotReady, got %v", err)
	}
}

func TestNegativeAnswersLowerRiskScore(t *testing.T) {
	svc := newService(nil, nil, nil)
	ctx := context.Background()
	sess := startSession(t, svc)

	if _, err := svc.SubmitAnswer(ctx, sess.ID, "Alice"); err != nil {
		t.Fatalf("name err: %v", err)
	}
	if _, err := svc.SubmitAnswer(ctx, sess.ID, "no"); err != nil {
		t.Fatalf("answer err: %v", err)
	}
	if _, err := svc.SubmitAnswer(ctx, sess.ID, "no"); err != nil {
		t.Fatalf("answer err: %v", err)
	}

	result, err := svc.Result(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Result err: %v", err)
	}
	if result.RiskScore >= 100 {
		t.Fatalf("expected lowered score, got %d", result.RiskScore)
	}
	if len(result.VulnerabilityReport) == 0 {
		t.Fatal("expected findings for negative answers")
	}
}

func TestWatchReceivesAppendsInOrder(t *testing.T) {
	svc := newService(nil, nil, nil)
	ctx := context.Background()
	sess := startSession(t, svc)

	ch, cancel, err := svc.Watch(sess.ID)
	if err != nil {
		t.Fatalf("Watch err: %v", err)
	}
	defer cancel()

	if _, err := svc.SubmitAnswer(ctx, sess.ID, "Alice"); err != nil {
		t.Fatalf("name err: %v", err)
	}

	first := <-ch
	second := <-ch
	if first.Role != model.RoleUser || first.Content != "Alice" {
		t.Fatalf("expected user message first, got %+v", first)
	}
	if second.Role != model.RoleAssistant {
		t.Fatalf("expected assistant greeting second, got %+v", second)
	}
}

func TestGetSessionUnknownID(t *testing.T) {
	svc := newService(nil, nil, nil)
	if _, err := svc.GetSession(context.Background(), "missing"); !errors.Is(err, assessment.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
