// Package notify buffers the transient user-facing notices (toasts) that
// mutations produce: exactly one per failure, optionally one per success.
// The UI drains the buffer; the hub never blocks a mutation on a slow reader.
package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Level is the display severity of a notice.
type Level string

const (
	// LevelSuccess marks a completed mutation.
	LevelSuccess Level = "success"

	// LevelError marks a failed mutation; the message is shown verbatim so
	// the user can correct and resubmit.
	LevelError Level = "error"
)

// DefaultCapacity bounds the buffer when no capacity is configured.
const DefaultCapacity = 100

// Notice is one user-visible notification.
type Notice struct {
	Level     Level     `json:"level"`
	Resource  string    `json:"resource"`
	Operation string    `json:"operation"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

// Hub is a bounded notice buffer. Safe for concurrent use.
type Hub struct {
	mu      sync.Mutex
	notices []Notice
	cap     int
	now     func() time.Time
}

// NewHub creates a hub holding at most capacity notices; the oldest are
// dropped when the buffer is full.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Hub{cap: capacity, now: time.Now}
}

// Error records a failure notice.
func (h *Hub) Error(resource, operation, message string) {
	slog.Warn("Mutation failed", "resource", resource, "operation", operation, "message", message)
	h.push(Notice{Level: LevelError, Resource: resource, Operation: operation, Message: message})
}

// Success records a success notice.
func (h *Hub) Success(resource, operation, message string) {
	h.push(Notice{Level: LevelSuccess, Resource: resource, Operation: operation, Message: message})
}

// Drain returns all buffered notices in arrival order and empties the buffer.
func (h *Hub) Drain() []Notice {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := h.notices
	h.notices = nil
	return out
}

// Len returns the number of buffered notices.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.notices)
}

func (h *Hub) push(n Notice) {
	n.At = h.now()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.notices = append(h.notices, n)
	if len(h.notices) > h.cap {
		h.notices = h.notices[len(h.notices)-h.cap:]
	}
}
