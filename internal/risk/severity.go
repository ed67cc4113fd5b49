package risk

import "fmt"

// Severity is a risk tier. Higher values are more severe.
type Severity int

const (
	Low Severity = iota
	Medium
	High
	Critical
)

var severityNames = map[Severity]string{
	Low:      "Low",
	Medium:   "Medium",
	High:     "High",
	Critical: "Critical",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(b []byte) error {
	for sev, name := range severityNames {
		if name == string(b) {
			*s = sev
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", string(b))
}

// Max returns the more severe of a and b.
func Max(a, b Severity) Severity {
	if b > a {
		return b
	}
	return a
}

// floor is the minimum score implied by reaching a tier.
func (s Severity) floor() int {
	switch s {
	case Critical:
		return 90
	case High:
		return 70
	case Medium:
		return 50
	default:
		return 0
	}
}
