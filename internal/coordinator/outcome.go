package coordinator

import (
	"encoding/json"

	"github.com/tendera/backoffice-gateway/internal/remote"
)

// Status is the terminal state of one mutation execution.
type Status string

const (
	// StatusSucceeded means the remote accepted the write and the cache was
	// invalidated.
	StatusSucceeded Status = "Succeeded"

	// StatusFailed means the remote rejected the write or the call failed;
	// the cache was left untouched.
	StatusFailed Status = "Failed"

	// StatusDiscarded means the caller went away before the call resolved;
	// the response was dropped without touching cache or handlers.
	StatusDiscarded Status = "Discarded"
)

// Outcome is the result of one mutation execution. Failures are carried
// here, never raised: the coordinator does not throw past its boundary.
type Outcome struct {
	Status Status

	// Data is the remote response body on success.
	Data json.RawMessage

	// Err holds the failure on StatusFailed.
	Err error

	// ErrorKind classifies the failure for display routing.
	ErrorKind remote.Kind

	// Message is the user-visible message on failure.
	Message string

	// Invalidated lists the resources marked stale, in sorted order.
	Invalidated []string
}

// Succeeded reports whether the mutation completed and invalidated the cache.
func (o Outcome) Succeeded() bool { return o.Status == StatusSucceeded }

// Failed reports whether the mutation failed.
func (o Outcome) Failed() bool { return o.Status == StatusFailed }

// Discarded reports whether the mutation's response was dropped.
func (o Outcome) Discarded() bool { return o.Status == StatusDiscarded }

func successOutcome(data json.RawMessage, invalidated []string) Outcome {
	return Outcome{
		Status:      StatusSucceeded,
		Data:        data,
		Invalidated: invalidated,
	}
}

func failureOutcome(err error) Outcome {
	return Outcome{
		Status:    StatusFailed,
		Err:       err,
		ErrorKind: remote.KindOf(err),
		Message:   remote.UserMessageOf(err),
	}
}

func discardedOutcome() Outcome {
	return Outcome{Status: StatusDiscarded}
}
