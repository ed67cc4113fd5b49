package risk

import (
	"fmt"
	"sort"
	"strings"

	"ctifeed/internal/ioc"
)

const (
	defaultScore = 5
	cveFloor     = 65
	trustedFloor = 60
	maxReasons   = 4
	maxTags      = 6

	SentimentThreat = "threat"
	SentimentWatch  = "watch"
)

// Keyword lists per tier, most severe first.
var tierKeywords = []struct {
	level    Severity
	keywords []string
}{
	{Critical, []string{
		"zero-day", "0-day", "actively exploited", "remote code execution", "wormable",
		"critical vulnerability", "emergency patch", "supply chain attack",
	}},
	{High, []string{
		"ransomware", "data breach", "backdoor", "exploit", "botnet", "malware",
		"privilege escalation", "credential theft", "apt group", "nation-state",
	}},
	{Medium, []string{
		"phishing", "vulnerability", "ddos", "trojan", "spyware", "data leak", "scam", "patch",
	}},
	{Low, []string{
		"advisory", "guidance", "awareness", "best practice", "security update",
	}},
}

// Advisory agencies whose publications are never rated below Medium.
var trustedSources = []string{
	"cisa", "us-cert", "cert", "ncsc", "msrc", "enisa", "nist", "jpcert",
}

// Input is the text a classification is derived from.
type Input struct {
	Title       string
	Description string
	Summary     string
	SourceName  string
}

// Assessment is the classifier output attached to an article.
type Assessment struct {
	Level     Severity `json:"level"`
	Score     int      `json:"score"`
	Reasons   []string `json:"reasons"`
	Tags      []string `json:"tags"`
	Sentiment string   `json:"sentiment"`
}

// Classify rates an article. Every matched keyword contributes a reason and a tag, severity
// merges to the most severe tier seen, and the score is the highest floor reached.
func Classify(in Input) Assessment {
	text := strings.ToLower(strings.Join([]string{in.Title, in.Description, in.Summary}, " "))

	level := Low
	score := defaultScore
	reasons := []string{}
	tagSet := map[string]struct{}{}

	for _, tier := range tierKeywords {
		for _, kw := range tier.keywords {
			if !strings.Contains(text, kw) {
				continue
			}
			reasons = append(reasons, fmt.Sprintf("Mentions %q (%s)", kw, tier.level))
			tagSet[normalizeTag(kw)] = struct{}{}
			level = Max(level, tier.level)
			if f := tier.level.floor(); f > score {
				score = f
			}
		}
	}

	if ioc.ContainsCVE(text) {
		reasons = append(reasons, "References a CVE identifier")
		tagSet["cve"] = struct{}{}
		level = Max(level, Medium)
		if cveFloor > score {
			score = cveFloor
		}
	}

	if isTrustedSource(in.SourceName) {
		reasons = append(reasons, fmt.Sprintf("Published by advisory source %s", in.SourceName))
		level = Max(level, Medium)
		if trustedFloor > score {
			score = trustedFloor
		}
	}

	tags := make([]string, 0, len(tagSet))
	for tag := range tagSet {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	if len(reasons) > maxReasons {
		reasons = reasons[:maxReasons]
	}

	sentiment := SentimentWatch
	if level >= High {
		sentiment = SentimentThreat
	}

	return Assessment{
		Level:     level,
		Score:     score,
		Reasons:   reasons,
		Tags:      tags,
		Sentiment: sentiment,
	}
}

func normalizeTag(keyword string) string {
	return strings.ReplaceAll(strings.TrimSpace(keyword), " ", "-")
}

func isTrustedSource(name string) bool {
	name = strings.ToLower(name)
	if name == "" {
		return false
	}
	for _, s := range trustedSources {
		if strings.Contains(name, s) {
			return true
		}
	}
	return false
}
