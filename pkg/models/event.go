package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type EventKind string

const (
	EventMonitoringStarted   EventKind = "monitoring_started"
	EventEnumerationComplete EventKind = "enumeration_complete"
	EventNewSubdomains       EventKind = "new_subdomains"
	EventScanStarted         EventKind = "scan_started"
	EventScanResults         EventKind = "scan_results"
	EventToolError           EventKind = "tool_error"
)

// NotificationEvent describes one lifecycle milestone of the monitor loop.
// Events are immutable and delivery is fire-and-forget: a failed delivery is
// logged locally and never rolls back or blocks the pipeline.
type NotificationEvent struct {
	Kind       EventKind    `json:"kind"`
	Domain     string       `json:"domain"`
	Generation int          `json:"generation"`
	Count      int          `json:"count"`
	Counts     BucketCounts `json:"counts"`
	Artifacts  []string     `json:"artifacts,omitempty"`
	Detail     string       `json:"detail,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
}

// Message renders the deterministic notification payload. The format depends
// only on the event fields so delivery content is testable.
func (e NotificationEvent) Message() string {
	switch e.Kind {
	case EventMonitoringStarted:
		return fmt.Sprintf("[subsentry] monitoring started for %s", e.Domain)
	case EventEnumerationComplete:
		if e.Generation == 0 {
			return fmt.Sprintf("[subsentry] %s: initial enumeration complete, %d subdomains", e.Domain, e.Count)
		}
		return fmt.Sprintf("[subsentry] %s: enumeration complete, %d subdomains known", e.Domain, e.Count)
	case EventNewSubdomains:
		return fmt.Sprintf("[subsentry] %s: %d new subdomains found (generation %d)", e.Domain, e.Count, e.Generation)
	case EventScanStarted:
		return fmt.Sprintf("[subsentry] %s: scan started for generation %d (%d targets)", e.Domain, e.Generation, e.Count)
	case EventScanResults:
		msg := fmt.Sprintf("[subsentry] %s: scan results for generation %d: %s", e.Domain, e.Generation, e.Counts.String())
		if len(e.Artifacts) > 0 {
			paths := append([]string(nil), e.Artifacts...)
			sort.Strings(paths)
			msg += " artifacts: " + strings.Join(paths, ", ")
		}
		return msg
	case EventToolError:
		return fmt.Sprintf("[subsentry] %s: tool error: %s", e.Domain, e.Detail)
	}
	return fmt.Sprintf("[subsentry] %s: %s", e.Domain, e.Kind)
}
