package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bizbothq/bizbot/backend/internal/model/assessment"
)

func TestQuestionBankFetchQuestions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/questions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"questions": []map[string]string{
				{"topic": "Network Security", "question": "Q1"},
				{"topic": "Compliance", "question": "Q2"},
			},
		})
	}))
	defer server.Close()

	bank := NewQuestionBank(server.URL, time.Second)
	questions, err := bank.FetchQuestions(context.Background())
	if err != nil {
		t.Fatalf("FetchQuestions err: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	if questions[0].Text != "Q1" || questions[0].Topic != "Network Security" {
		t.Fatalf("unexpected first question %+v", questions[0])
	}
}

func TestQuestionBankNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	bank := NewQuestionBank(server.URL, time.Second)
	if _, err := bank.FetchQuestions(context.Background()); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestAnswerServiceFollowUp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/answer" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if payload["question"] != "Q1" || payload["answer"] != "no" {
			t.Errorf("unexpected payload %v", payload)
		}
		json.NewEncoder(w).Encode(map[string]string{"follow_up_question": "Why not?"})
	}))
	defer server.Close()

	svc := NewAnswerService(server.URL, time.Second)
	followUp, err := svc.Evaluate(context.Background(), "Q1", "no")
	if err != nil {
		t.Fatalf("Evaluate err: %v", err)
	}
	if followUp != "Why not?" {
		t.Fatalf("unexpected follow-up %q", followUp)
	}
}

func TestAnswerServiceNoFollowUp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"message": "Positive response received"})
	}))
	defer server.Close()

	svc := NewAnswerService(server.URL, time.Second)
	followUp, err := svc.Evaluate(context.Background(), "Q1", "yes")
	if err != nil {
		t.Fatalf("Evaluate err: %v", err)
	}
	if followUp != "" {
		t.Fatalf("expected empty follow-up, got %q", followUp)
	}
}

func TestDocumentAnalyzerAcknowledgeVariant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upload" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		if header.Filename != "infra.pdf" {
			t.Errorf("unexpected filename %q", header.Filename)
		}
		json.NewEncoder(w).Encode(map[string]string{"summary": "- three web servers\n- mysql databases"})
	}))
	defer server.Close()

	analyzer := NewDocumentAnalyzer(server.URL, assessment.UploadAcknowledge, time.Second)
	artifact, err := analyzer.Analyze(context.Background(), "infra.pdf", strings.NewReader("doc body"))
	if err != nil {
		t.Fatalf("Analyze err: %v", err)
	}
	if len(artifact.Summary) != 2 {
		t.Fatalf("expected 2 summary lines, got %v", artifact.Summary)
	}
	if artifact.Summary[0] != "three web servers" {
		t.Fatalf("expected bullet prefix stripped, got %q", artifact.Summary[0])
	}
}

func TestDocumentAnalyzerAnalyzeVariant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vulnerabilities" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"vulnerabilities": []map[string]string{
				{"title": "Open Ports", "description": "Unnecessary ports are open."},
			},
		})
	}))
	defer server.Close()

	analyzer := NewDocumentAnalyzer(server.URL, assessment.UploadAnalyze, time.Second)
	artifact, err := analyzer.Analyze(context.Background(), "infra.pdf", strings.NewReader("doc body"))
	if err != nil {
		t.Fatalf("Analyze err: %v", err)
	}
	if len(artifact.Vulnerabilities) != 1 || artifact.Vulnerabilities[0].Title != "Open Ports" {
		t.Fatalf("unexpected vulnerabilities %v", artifact.Vulnerabilities)
	}
}

func TestDocumentAnalyzerTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	analyzer := NewDocumentAnalyzer(server.URL, assessment.UploadAcknowledge, time.Second)
	if _, err := analyzer.Analyze(context.Background(), "infra.pdf", strings.NewReader("doc")); err == nil {
		t.Fatal("expected error for 502 response")
	}
}
