package coordinator

import (
	"fmt"
	"strconv"
)

// OpKind categorizes a mutation for side-effect handling. The remote
// operation name stays free-form; the kind only decides coordinator
// behavior (selection pruning for deletes).
type OpKind string

const (
	// OpCreate adds a new entity to a collection.
	OpCreate OpKind = "create"

	// OpUpdate modifies an existing entity.
	OpUpdate OpKind = "update"

	// OpDelete removes an entity.
	OpDelete OpKind = "delete"

	// OpStatusTransition moves an entity through its workflow
	// (approve, reject, close, submit).
	OpStatusTransition OpKind = "statusTransition"
)

// KindOfOperation derives the kind from a remote operation name. Unknown
// names are treated as status transitions, the catch-all for workflow verbs.
func KindOfOperation(operation string) OpKind {
	switch operation {
	case "create":
		return OpCreate
	case "update":
		return OpUpdate
	case "delete":
		return OpDelete
	default:
		return OpStatusTransition
	}
}

// Request is one write attempt against a remote collection resource.
type Request struct {
	// Resource is the target collection key; must be known to the graph.
	Resource string

	// Operation is the remote operation name (create, update, delete,
	// approve, ...).
	Operation string

	// Kind overrides the kind derived from Operation when set.
	Kind OpKind

	// Payload is the opaque write payload forwarded to the remote.
	Payload map[string]any

	// EntityID identifies the affected entity for selection pruning.
	// When empty, the payload's "id" field is used.
	EntityID string

	// IdempotencyKey is attached to the remote call; generated when empty.
	IdempotencyKey string
}

func (r *Request) kind() OpKind {
	if r.Kind != "" {
		return r.Kind
	}
	return KindOfOperation(r.Operation)
}

// entityID returns the ID of the entity this request targets, normalizing
// JSON-ish payload values (string or number) to a string.
func (r *Request) entityID() string {
	if r.EntityID != "" {
		return r.EntityID
	}

	v, ok := r.Payload["id"]
	if !ok {
		return ""
	}
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	default:
		return fmt.Sprintf("%v", id)
	}
}
