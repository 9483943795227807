package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userProfile struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestPropertyAccessorMissingValue(t *testing.T) {
	scope := NewConversationState(newRecordingStorage())
	accessor := NewPropertyAccessor[userProfile](scope, "profile")
	tc := newStateTurnContext()

	value, ok, err := accessor.Get(tc)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, value)
}

func TestPropertyAccessorSetGetRoundTrip(t *testing.T) {
	storage := newRecordingStorage()
	scope := NewConversationState(storage)
	accessor := NewPropertyAccessor[userProfile](scope, "profile")
	tc := newStateTurnContext()

	require.NoError(t, accessor.Set(tc, userProfile{Name: "Ada", Count: 3}))
	value, ok, err := accessor.Get(tc)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, userProfile{Name: "Ada", Count: 3}, value)

	require.NoError(t, scope.Save(tc, false))
	assert.Equal(t, 1, storage.writes)

	// A fresh turn sees the persisted value.
	tc2 := newStateTurnContext()
	value, ok, err = accessor.Get(tc2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Ada", value.Name)
}

func TestPropertyAccessorDefaultIsPersisted(t *testing.T) {
	storage := newRecordingStorage()
	scope := NewConversationState(storage)
	accessor := NewPropertyAccessor[[]string](scope, "tags")
	tc := newStateTurnContext()

	def := []string{"new"}
	value, err := accessor.GetWithDefault(tc, def)
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, value)

	// The returned slice is a copy; mutating it does not touch state.
	value[0] = "mutated"
	again, ok, err := accessor.Get(tc)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"new"}, again)

	// The default landed in the scope, so save has something to write.
	require.NoError(t, scope.Save(tc, false))
	assert.Equal(t, 1, storage.writes)
}

func TestPropertyAccessorDefaultNotReappliedWhenPresent(t *testing.T) {
	scope := NewConversationState(newRecordingStorage())
	accessor := NewPropertyAccessor[int](scope, "count")
	tc := newStateTurnContext()

	require.NoError(t, accessor.Set(tc, 7))
	value, err := accessor.GetWithDefault(tc, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, value)
}

func TestPropertyAccessorDelete(t *testing.T) {
	scope := NewConversationState(newRecordingStorage())
	accessor := NewPropertyAccessor[string](scope, "topic")
	tc := newStateTurnContext()

	require.NoError(t, accessor.Set(tc, "weather"))
	require.NoError(t, accessor.Delete(tc))

	_, ok, err := accessor.Get(tc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPropertyAccessorsShareScopeObject(t *testing.T) {
	scope := NewConversationState(newRecordingStorage())
	name := NewPropertyAccessor[string](scope, "name")
	count := NewPropertyAccessor[int](scope, "count")
	tc := newStateTurnContext()

	require.NoError(t, name.Set(tc, "Ada"))
	require.NoError(t, count.Set(tc, 2))

	item := scope.Get(tc)
	assert.Equal(t, "Ada", item["name"])
	assert.Equal(t, float64(2), item["count"])
}
