package models

import "fmt"

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// SeveritiesByPriority lists all severities from most to least severe. The
// order matters: classification picks the first keyword that matches, and the
// priority labels p1..p5 are assigned in this order.
var SeveritiesByPriority = []Severity{
	SeverityCritical,
	SeverityHigh,
	SeverityMedium,
	SeverityLow,
	SeverityInfo,
}

var priorityLabels = map[Severity]string{
	SeverityCritical: "p1",
	SeverityHigh:     "p2",
	SeverityMedium:   "p3",
	SeverityLow:      "p4",
	SeverityInfo:     "p5",
}

func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// PriorityLabel returns the downstream priority tag for a severity
// (critical=p1 through info=p5).
func (s Severity) PriorityLabel() string {
	if label, ok := priorityLabels[s]; ok {
		return label
	}
	return "p5"
}

// BucketCounts holds the per-severity finding counts of one classified scan.
type BucketCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
}

func (b BucketCounts) Total() int {
	return b.Critical + b.High + b.Medium + b.Low + b.Info
}

func (b BucketCounts) Get(s Severity) int {
	switch s {
	case SeverityCritical:
		return b.Critical
	case SeverityHigh:
		return b.High
	case SeverityMedium:
		return b.Medium
	case SeverityLow:
		return b.Low
	case SeverityInfo:
		return b.Info
	}
	return 0
}

func (b *BucketCounts) Add(s Severity, n int) {
	switch s {
	case SeverityCritical:
		b.Critical += n
	case SeverityHigh:
		b.High += n
	case SeverityMedium:
		b.Medium += n
	case SeverityLow:
		b.Low += n
	case SeverityInfo:
		b.Info += n
	}
}

// String renders the counts in priority order, e.g. "p1:1 p2:3 p3:0 p4:1 p5:2".
func (b BucketCounts) String() string {
	out := ""
	for i, s := range SeveritiesByPriority {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s:%d", s.PriorityLabel(), b.Get(s))
	}
	return out
}
