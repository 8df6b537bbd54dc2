package pipeline

import (
	"time"

	"github.com/hakim/scandash/internal/models"
)

// EventType names a lifecycle transition visible to the presentation layer.
type EventType string

const (
	EventStatusChanged EventType = "StatusChanged"
	EventCompleted     EventType = "Completed"
	EventFailed        EventType = "Failed"
)

// Event is a snapshot of the live scan taken at a transition.
type Event struct {
	Type EventType   `json:"type"`
	Scan models.Scan `json:"scan"`
	At   time.Time   `json:"at"`

	// Err is set on EventFailed and wraps ErrPollTransport or ErrScanFailed.
	Err error `json:"-"`
}

// Terminal reports whether the event ends the scan's lifecycle.
func (e Event) Terminal() bool {
	return e.Type == EventCompleted || e.Type == EventFailed
}
