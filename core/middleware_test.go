package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext() *TurnContext {
	activity := &Activity{
		Type:         ActivityTypeMessage,
		ID:           "act-1",
		ChannelID:    "test",
		ServiceURL:   "https://service.example",
		Conversation: ConversationAccount{ID: "conv-1"},
		From:         ChannelAccount{ID: "user-1"},
		Recipient:    ChannelAccount{ID: "bot-1"},
	}
	return NewTurnContext(context.Background(), &fakeAdapter{}, activity)
}

func logStep(log *[]string, step string) { *log = append(*log, step) }

func TestMiddlewareSetOrdering(t *testing.T) {
	var log []string
	set := &MiddlewareSet{}
	for _, name := range []string{"a", "b", "c"} {
		name := name
		set.Use(MiddlewareFunc(func(tc *TurnContext, next NextFunc) error {
			logStep(&log, name+":in")
			err := next()
			logStep(&log, name+":out")
			return err
		}))
	}

	err := set.Run(newTestContext(), func(tc *TurnContext) error {
		logStep(&log, "logic")
		return nil
	})
	require.NoError(t, err)

	// Registration order inbound, LIFO unwind outbound.
	assert.Equal(t, []string{"a:in", "b:in", "c:in", "logic", "c:out", "b:out", "a:out"}, log)
}

func TestMiddlewareSetShortCircuit(t *testing.T) {
	var log []string
	set := &MiddlewareSet{}
	set.Use(MiddlewareFunc(func(tc *TurnContext, next NextFunc) error {
		logStep(&log, "outer")
		return next()
	}))
	set.Use(MiddlewareFunc(func(tc *TurnContext, next NextFunc) error {
		logStep(&log, "gate")
		return nil // never calls next
	}))
	set.Use(MiddlewareFunc(func(tc *TurnContext, next NextFunc) error {
		logStep(&log, "unreached")
		return next()
	}))

	logicRan := false
	err := set.Run(newTestContext(), func(tc *TurnContext) error {
		logicRan = true
		return nil
	})

	// Short-circuiting is not an error condition.
	require.NoError(t, err)
	assert.False(t, logicRan)
	assert.Equal(t, []string{"outer", "gate"}, log)
}

func TestMiddlewareSetErrorPropagation(t *testing.T) {
	boom := errors.New("boom")
	var observed error
	set := &MiddlewareSet{}
	set.Use(MiddlewareFunc(func(tc *TurnContext, next NextFunc) error {
		observed = next()
		return observed
	}))

	err := set.Run(newTestContext(), func(tc *TurnContext) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.ErrorIs(t, observed, boom)
}

func TestMiddlewareSetNilLogic(t *testing.T) {
	set := &MiddlewareSet{}
	set.Use(MiddlewareFunc(func(tc *TurnContext, next NextFunc) error { return next() }))
	assert.NoError(t, set.Run(newTestContext(), nil))
}
