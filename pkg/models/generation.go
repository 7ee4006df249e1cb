package models

import (
	"fmt"
	"time"
)

// Generation is one numbered batch of subdomains newly observed for a domain.
// Generation 0 is the initial full enumeration; every later generation is the
// non-empty set difference of one polling cycle. Generations are immutable
// once committed and are never merged or renumbered.
type Generation struct {
	Domain      string    `json:"domain" yaml:"domain"`
	Number      int       `json:"number" yaml:"number"`
	Subdomains  []string  `json:"subdomains" yaml:"-"`
	Count       int       `json:"count" yaml:"count"`
	Fingerprint string    `json:"fingerprint" yaml:"fingerprint"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

func (g *Generation) Validate() error {
	if g.Domain == "" {
		return fmt.Errorf("generation domain is required")
	}
	if g.Number < 0 {
		return fmt.Errorf("invalid generation number: %d", g.Number)
	}
	if len(g.Subdomains) == 0 {
		return fmt.Errorf("generation %d for %s has no subdomains", g.Number, g.Domain)
	}
	return nil
}

// Initial reports whether this is the full generation-0 enumeration rather
// than an incremental diff.
func (g *Generation) Initial() bool {
	return g.Number == 0
}

type ScanJobStatus string

const (
	ScanJobCreated   ScanJobStatus = "created"
	ScanJobRunning   ScanJobStatus = "running"
	ScanJobCompleted ScanJobStatus = "completed"
	ScanJobFailed    ScanJobStatus = "failed"
)

// ScanJob is one invocation of the scan engine against exactly the subdomains
// of one generation. A failed job is never retried automatically; the gap is
// logged and left for the operator.
type ScanJob struct {
	Domain     string        `json:"domain"`
	Generation int           `json:"generation"`
	Status     ScanJobStatus `json:"status"`
	ListPath   string        `json:"list_path"`
	RawPath    string        `json:"raw_path"`
	ExitCode   int           `json:"exit_code"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    time.Time     `json:"end_time"`
	Error      string        `json:"error,omitempty"`
}

func (j *ScanJob) Duration() time.Duration {
	if j.EndTime.IsZero() {
		return 0
	}
	return j.EndTime.Sub(j.StartTime)
}
