package risk

import (
	"fmt"
	"math"
	"strings"
)

// Signal captures the risk contribution of one answered question.
type Signal struct {
	Topic    string
	Weight   float64
	Negative bool
	Hedged   bool
}

// Finding is a weakness derived from the answer pattern of a topic.
type Finding struct {
	Title       string
	Description string
}

// Summary aggregates every collected signal into a posture score and the
// findings behind it. Score 100 means no weaknesses were reported; lower
// scores mean higher risk.
type Summary struct {
	Score    int
	Findings []Finding
}

var negativeResponses = map[string]struct{}{
	"no": {}, "not": {}, "none": {}, "never": {}, "nope": {}, "negative": {},
}

var hedgeKeywords = []string{
	"partially", "partly", "sometimes", "somewhat", "occasionally",
	"planned", "in progress", "not yet", "ad hoc", "informal", "working on",
}

var topicFindings = map[string]Finding{
	"Network Security": {
		Title:       "Network security controls missing",
		Description: "One or more network security safeguards (policy, firewalls, IDPS or transport encryption) were reported as absent.",
	},
	"Data Protection": {
		Title:       "Data protection gaps",
		Description: "Data protection measures such as regulatory coverage, classification or CIA safeguards were reported as absent.",
	},
	"Incident Response": {
		Title:       "Incident response not established",
		Description: "The incident response process lacks documented phases, containment steps or forensics support.",
	},
	"Compliance": {
		Title:       "Compliance posture incomplete",
		Description: "Compliance with cybersecurity frameworks, industry regulations or audit cadence was reported as absent.",
	},
}

// NegativeAnswer reports whether a free-text answer amounts to "no".
func NegativeAnswer(answer string) bool {
	normalized := strings.ToLower(strings.TrimSpace(answer))
	normalized = strings.TrimRight(normalized, ".!?,")
	_, ok := negativeResponses[normalized]
	return ok
}

// Assess scores a single answer against the topic it belongs to.
func Assess(topic string, weight float64, answer string) Signal {
	if weight <= 0 {
		weight = 0.4
	}

	signal := Signal{Topic: topic, Weight: weight}
	if NegativeAnswer(answer) {
		signal.Negative = true
		return signal
	}

	normalized := strings.ToLower(answer)
	for _, word := range hedgeKeywords {
		if strings.Contains(normalized, word) {
			signal.Hedged = true
			break
		}
	}
	return signal
}

// Summarize folds the collected signals into a score and findings list.
func Summarize(signals []Signal) Summary {
	penalty := 0.0
	negativeTopics := map[string]int{}
	order := make([]string, 0, 4)

	for _, signal := range signals {
		switch {
		case signal.Negative:
			penalty += 20 * signal.Weight
			if negativeTopics[signal.Topic] == 0 {
				order = append(order, signal.Topic)
			}
			negativeTopics[signal.Topic]++
		case signal.Hedged:
			penalty += 8 * signal.Weight
		}
	}

	score := 100 - int(math.Round(penalty))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	findings := make([]Finding, 0, len(order))
	for _, topic := range order {
		finding, ok := topicFindings[topic]
		if !ok {
			finding = Finding{
				Title:       fmt.Sprintf("Gaps in %s", topic),
				Description: fmt.Sprintf("Negative responses were recorded for %s controls.", topic),
			}
		}
		findings = append(findings, finding)
	}

	return Summary{Score: score, Findings: findings}
}
