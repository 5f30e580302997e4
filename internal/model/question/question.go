package question

import "sort"

// Question is one assessment prompt. Identity is positional within the
// fetched sequence; there is no stable id.
type Question struct {
	Topic string `json:"topic"`
	Text  string `json:"question"`
}

// topicDensities weights each topic by how much of a typical infrastructure
// document it covers. Higher density topics are asked first.
var topicDensities = map[string]float64{
	"Network Security":  0.7,
	"Data Protection":   0.3,
	"Incident Response": 0.2,
	"Compliance":        0.3,
}

// TopicWeight returns the density weight for a topic, or a conservative
// default for unknown topics.
func TopicWeight(topic string) float64 {
	if w, ok := topicDensities[topic]; ok {
		return w
	}
	return 0.4
}

// Seed provides the default assessment question bank, ordered by topic
// density (descending, stable within a topic).
func Seed() []Question {
	items := []Question{
		{Topic: "Network Security", Text: "Is there a documented network security policy for the organization?"},
		{Topic: "Network Security", Text: "Does the network security policy address the use of firewalls?"},
		{Topic: "Network Security", Text: "Is the use of intrusion detection and prevention systems (IDPS) mandated by the network security policy?"},
		{Topic: "Network Security", Text: "Does the network security policy require the use of encryption for data transmitted over networks?"},
		{Topic: "Data Protection", Text: "Is there a documented data protection policy for the organization?"},
		{Topic: "Data Protection", Text: "Does the data protection policy address compliance with relevant regulations (e.g., GDPR, CCPA)?"},
		{Topic: "Data Protection", Text: "Does the data protection policy require measures to ensure data confidentiality, integrity, and availability?"},
		{Topic: "Data Protection", Text: "Does the data protection policy require data classification?"},
		{Topic: "Incident Response", Text: "Is there a documented incident response plan for the organization?"},
		{Topic: "Incident Response", Text: "Does the incident response plan define the key phases of the incident response process?"},
		{Topic: "Incident Response", Text: "Does the incident response plan address the identification and containment of security incidents?"},
		{Topic: "Incident Response", Text: "Does the incident response plan require the use of digital forensics?"},
		{Topic: "Compliance", Text: "Is there a documented compliance policy for the organization?"},
		{Topic: "Compliance", Text: "Does the compliance policy address compliance with relevant cybersecurity frameworks (e.g., NIST, ISO 27001)?"},
		{Topic: "Compliance", Text: "Does the compliance policy address compliance with industry-specific regulations (e.g., HIPAA, PCI DSS)?"},
		{Topic: "Compliance", Text: "Does the compliance policy require regular compliance audits?"},
	}

	sort.SliceStable(items, func(i, j int) bool {
		return TopicWeight(items[i].Topic) > TopicWeight(items[j].Topic)
	})
	return items
}
