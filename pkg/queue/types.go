package queue

import (
	"encoding/json"
	"slices"
	"time"
)

// MessageType names the kind of work a message carries and selects its handler.
type MessageType string

// State is the lifecycle state of a message.
type State string

const (
	StatePending    State = "PENDING"
	StateProcessing State = "PROCESSING"
	StateCompleted  State = "COMPLETED"
	StateFailed     State = "FAILED"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateProcessing, StateCompleted, StateFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible from s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Priority orders due messages; higher runs first.
type Priority int

const (
	PriorityMin     Priority = 0
	PriorityLow     Priority = 25
	PriorityMedium  Priority = 50
	PriorityHigh    Priority = 75
	PriorityMax     Priority = 100
	PriorityDefault Priority = PriorityMedium
)

// Valid checks if the priority is within valid range
func (p Priority) Valid() bool {
	return p >= PriorityMin && p <= PriorityMax
}

// Message is a persisted unit of deferred work.
type Message struct {
	ID                    string      `json:"id"`
	DedupeKey             string      `json:"dedupeKey,omitempty"`
	Type                  MessageType `json:"type"`
	Payload               string      `json:"message"`
	Priority              Priority    `json:"priority"`
	State                 State       `json:"state"`
	RunAt                 time.Time   `json:"runAt"`
	IsProcessing          bool        `json:"isProcessing"`
	ProcessingAttempts    int         `json:"processingAttempts"`
	ProcessingStartedAt   *time.Time  `json:"processingStartedAt,omitempty"`
	ProcessingCompletedAt *time.Time  `json:"processingCompletedAt,omitempty"`
	Log                   []string    `json:"log"`
	CreatedAt             time.Time   `json:"createdAt"`
	UpdatedAt             time.Time   `json:"updatedAt"`

	// lines appended by the current handler invocation, not yet persisted
	pending []string
}

// AppendLog adds a line to the message log. Lines appended while a handler
// runs are persisted together with the outcome of the attempt.
func (m *Message) AppendLog(line string) {
	m.Log = append(m.Log, line)
	m.pending = append(m.pending, line)
}

// Decode unmarshals the JSON payload into v.
func (m *Message) Decode(v any) error {
	return json.Unmarshal([]byte(m.Payload), v)
}

// IsDue reports whether the message is eligible for processing at now:
// PENDING with runAt reached, or PROCESSING since before staleBefore. A zero
// staleBefore never reclaims.
func (m *Message) IsDue(now, staleBefore time.Time) bool {
	switch m.State {
	case StatePending:
		return !m.RunAt.After(now)
	case StateProcessing:
		return !staleBefore.IsZero() && m.ProcessingStartedAt != nil && m.ProcessingStartedAt.Before(staleBefore)
	}
	return false
}

// Clone returns a deep copy of the message without pending log lines.
func (m *Message) Clone() *Message {
	c := *m
	c.Log = slices.Clone(m.Log)
	c.pending = nil
	if m.ProcessingStartedAt != nil {
		t := *m.ProcessingStartedAt
		c.ProcessingStartedAt = &t
	}
	if m.ProcessingCompletedAt != nil {
		t := *m.ProcessingCompletedAt
		c.ProcessingCompletedAt = &t
	}
	return &c
}

func (m *Message) takePending() []string {
	lines := m.pending
	m.pending = nil
	return lines
}
