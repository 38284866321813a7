package notify_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendera/backoffice-gateway/internal/notify"
)

func TestHub_PushAndDrain(t *testing.T) {
	t.Parallel()

	hub := notify.NewHub(10)

	hub.Error("expenses", "create", "amount is required")
	hub.Success("expenses", "create", "Expense created")

	notices := hub.Drain()
	require.Len(t, notices, 2)

	assert.Equal(t, notify.LevelError, notices[0].Level)
	assert.Equal(t, "expenses", notices[0].Resource)
	assert.Equal(t, "amount is required", notices[0].Message)
	assert.False(t, notices[0].At.IsZero())

	assert.Equal(t, notify.LevelSuccess, notices[1].Level)

	assert.Empty(t, hub.Drain(), "drain empties the buffer")
}

func TestHub_BoundedCapacity(t *testing.T) {
	t.Parallel()

	hub := notify.NewHub(3)

	for i := range 5 {
		hub.Error("expenses", "create", fmt.Sprintf("failure %d", i))
	}

	notices := hub.Drain()
	require.Len(t, notices, 3)
	assert.Equal(t, "failure 2", notices[0].Message, "oldest notices are dropped first")
	assert.Equal(t, "failure 4", notices[2].Message)
}

func TestHub_DefaultCapacity(t *testing.T) {
	t.Parallel()

	hub := notify.NewHub(0)

	for range notify.DefaultCapacity + 10 {
		hub.Success("tenders", "update", "ok")
	}

	assert.Equal(t, notify.DefaultCapacity, hub.Len())
}
