// Package interview manages interview scheduling between employers and
// seekers.
//
// Valid status graph:
//
//	SCHEDULED ──► CONFIRMED ──► COMPLETED
//	    │     ╲        │
//	    │      ► RESCHEDULED ──► CONFIRMED
//	    │              │
//	    └──────────────┴──► CANCELLED
//
// COMPLETED and CANCELLED are terminal states.
package interview

import "fmt"

// Status values mirror the interview_status enum in PostgreSQL.
type Status string

const (
	StatusScheduled   Status = "SCHEDULED"
	StatusConfirmed   Status = "CONFIRMED"
	StatusRescheduled Status = "RESCHEDULED"
	StatusCompleted   Status = "COMPLETED"
	StatusCancelled   Status = "CANCELLED"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[Status][]Status{
	StatusScheduled:   {StatusConfirmed, StatusRescheduled, StatusCancelled},
	StatusConfirmed:   {StatusCompleted, StatusRescheduled, StatusCancelled},
	StatusRescheduled: {StatusConfirmed, StatusCancelled},
	// COMPLETED and CANCELLED are terminal — no outgoing transitions
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusScheduled, StatusConfirmed, StatusRescheduled, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown interview status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted by
// the state machine.
func IsTransitionAllowed(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false // terminal state — no outgoing transitions
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}
