package risk

import "testing"

func TestNegativeAnswer(t *testing.T) {
	cases := map[string]bool{
		"no":                   true,
		"No.":                  true,
		"  NEVER ":             true,
		"nope!":                true,
		"yes":                  false,
		"we have a policy":     false,
		"not really sure, no?": false,
	}

	for answer, want := range cases {
		if got := NegativeAnswer(answer); got != want {
			t.Errorf("NegativeAnswer(%q) = %v, want %v", answer, got, want)
		}
	}
}

func TestAssessMarksHedgedAnswers(t *testing.T) {
	signal := Assess("Compliance", 0.3, "audits are planned for next quarter")
	if signal.Negative {
		t.Fatal("hedged answer must not be negative")
	}
	if !signal.Hedged {
		t.Fatal("expected hedged signal")
	}
}

func TestAssessDefaultsUnknownWeight(t *testing.T) {
	signal := Assess("Physical Security", 0, "no")
	if signal.Weight != 0.4 {
		t.Fatalf("unexpected default weight %v", signal.Weight)
	}
	if !signal.Negative {
		t.Fatal("expected negative signal")
	}
}

func TestSummarizeAllPositive(t *testing.T) {
	signals := []Signal{
		{Topic: "Network Security", Weight: 0.7},
		{Topic: "Compliance", Weight: 0.3},
	}

	summary := Summarize(signals)
	if summary.Score != 100 {
		t.Fatalf("expected perfect score, got %d", summary.Score)
	}
	if len(summary.Findings) != 0 {
		t.Fatalf("expected no findings, got %d", len(summary.Findings))
	}
}

func TestSummarizePenalizesNegatives(t *testing.T) {
	signals := []Signal{
		{Topic: "Network Security", Weight: 0.7, Negative: true},
		{Topic: "Network Security", Weight: 0.7, Negative: true},
		{Topic: "Incident Response", Weight: 0.2, Negative: true},
	}

	summary := Summarize(signals)
	if summary.Score >= 100 {
		t.Fatalf("expected penalty, got score %d", summary.Score)
	}
	if len(summary.Findings) != 2 {
		t.Fatalf("expected one finding per affected topic, got %d", len(summary.Findings))
	}
	if summary.Findings[0].Title != "Network security controls missing" {
		t.Fatalf("unexpected first finding %q", summary.Findings[0].Title)
	}
}

func TestSummarizeScoreNeverNegative(t *testing.T) {
	signals := make([]Signal, 0, 16)
	for i := 0; i < 16; i++ {
		signals = append(signals, Signal{Topic: "Network Security", Weight: 0.7, Negative: true})
	}

	if score := Summarize(signals).Score; score != 0 {
		t.Fatalf("expected floor of 0, got %d", score)
	}
}
