package models

import "time"

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Rank — порядок важности, чтобы фильтровать по минимальному уровню.
func (s Severity) Rank() int {
	switch s {
	case SeverityWarning:
		return 2
	case SeverityError:
		return 3
	case SeveritySuccess:
		return 1
	default:
		return 0
	}
}

type LogEntry struct {
	Time     time.Time `json:"timestamp"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
}
