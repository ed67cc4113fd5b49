package feed

import "strings"

// securityVocabulary must contribute at least two distinct hits for an entry to be kept.
var securityVocabulary = []string{
	"security", "cyber", "threat", "attack", "breach", "vulnerability", "malware", "ransomware",
	"phishing", "hack", "exploit", "cve", "zero-day", "data leak", "incident", "compromise",
	"ioc", "indicator", "apt", "botnet", "trojan", "backdoor", "ddos", "sql injection",
	"xss", "firewall", "encryption", "cert", "advisory", "alert", "patch", "update",
	"critical", "severity", "cisa", "msrc", "mitre", "tactics", "techniques", "framework",
}

// exclusionVocabulary rejects consumer tech, shopping and marketing content outright.
var exclusionVocabulary = []string{
	"phone", "smartphone", "galaxy", "iphone", "android", "oneplus", "samsung", "review",
	"camera", "battery", "display", "specs", "unboxing", "comparison", "flagship",
	"holiday", "shopping", "deal", "sale", "price", "discount", "tested", "verdict",
	"trip", "travel", "photo", "photos", "six flags", "holiday season", "spend money",
	"hard-earned", "dirty", "webinar", "event", "online event", "explore", "join us",
	"tablet", "amazon", "bang-for-buck", "popular tablets", "readers bought", "older model",
	"windows sucks", "how to fix", "marketing tool", "agentic os", "task manager",
}

const minSecurityMatches = 2

// Decision is the outcome of the relevance filter for one entry.
type Decision struct {
	Accepted bool
	// Reason is "accepted", "excluded" or "insufficient".
	Reason string
	// Term is the exclusion term that rejected the entry, if any.
	Term string
	// Matches are the distinct security terms found.
	Matches []string
}

// Decide applies the two-list relevance filter to a normalized title and description.
func Decide(title, description string) Decision {
	text := strings.ToLower(title + " " + description)

	for _, term := range exclusionVocabulary {
		if strings.Contains(text, term) {
			return Decision{Reason: "excluded", Term: term}
		}
	}

	var matches []string
	for _, term := range securityVocabulary {
		if strings.Contains(text, term) {
			matches = append(matches, term)
		}
	}
	if len(matches) < minSecurityMatches {
		return Decision{Reason: "insufficient", Matches: matches}
	}
	return Decision{Accepted: true, Reason: "accepted", Matches: matches}
}

// IsRelevant reports whether an entry passes the relevance filter.
func IsRelevant(title, description string) bool {
	return Decide(title, description).Accepted
}
