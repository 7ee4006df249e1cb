package models

import (
	"fmt"
	"strings"
)

// Finding is one scanner output record: free text carrying a severity
// keyword. Findings are immutable once written to a raw scan artifact.
type Finding struct {
	Raw      string   `json:"raw"`
	Severity Severity `json:"severity"`
}

// ParseFinding classifies one raw scanner line by case-insensitive substring
// match on the severity keywords, checking the most severe keyword first.
// Lines without any keyword default to info.
func ParseFinding(raw string) Finding {
	lower := strings.ToLower(raw)
	for _, s := range SeveritiesByPriority {
		if strings.Contains(lower, string(s)) {
			return Finding{Raw: raw, Severity: s}
		}
	}
	return Finding{Raw: raw, Severity: SeverityInfo}
}

func (f *Finding) Validate() error {
	if f.Raw == "" {
		return fmt.Errorf("finding text is required")
	}
	if !f.Severity.Valid() {
		return fmt.Errorf("invalid severity: %s", f.Severity)
	}
	return nil
}
