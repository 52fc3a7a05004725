package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionID(t *testing.T) {
	id := NewSessionID()
	assert.False(t, id.IsEmpty())

	parsed, err := ParseSessionID(" " + id.String() + " ")
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseSessionID("not-a-session")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestViewName(t *testing.T) {
	v, err := NewViewName(" Students ")
	require.NoError(t, err)
	assert.Equal(t, ViewName("students"), v)

	_, err = NewViewName("9lives")
	assert.True(t, IsValidation(err))
}

func TestParseBulkAction(t *testing.T) {
	a, err := ParseBulkAction("Notify-Advisor")
	require.NoError(t, err)
	assert.Equal(t, BulkActionNotifyAdvisor, a)

	_, err = ParseBulkAction("delete")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestEvents_Payload(t *testing.T) {
	e := NewBulkActionRunEvent("s-1", "students", "export", []string{"1", "2"})
	assert.Equal(t, EventBulkActionRun, e.EventType())
	assert.Equal(t, "s-1", e.AggregateID())
	assert.Equal(t, 2, e.Payload()["affected"])
	assert.False(t, e.OccurredAt().IsZero())

	f := NewLoadFailedEvent("s-1", "students", 3, "boom")
	assert.Equal(t, uint64(3), f.Payload()["generation"])
}
