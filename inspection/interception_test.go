package inspection

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/botmesh/core"
)

// recordingInterceptor mirrors everything and keeps the traces it saw.
type recordingInterceptor struct {
	decision Decision
	inbound  []*core.Activity
	outbound []*core.Activity
	states   int
}

func (r *recordingInterceptor) Inbound(tc *core.TurnContext, trace *core.Activity) (Decision, error) {
	r.inbound = append(r.inbound, trace)
	return r.decision, nil
}

func (r *recordingInterceptor) Outbound(tc *core.TurnContext, traces []*core.Activity) error {
	r.outbound = append(r.outbound, traces...)
	return nil
}

func (r *recordingInterceptor) TraceState(tc *core.TurnContext) error {
	r.states++
	return nil
}

func (r *recordingInterceptor) outboundNames() []string {
	names := make([]string, 0, len(r.outbound))
	for _, trace := range r.outbound {
		names = append(names, trace.Name)
	}
	return names
}

func TestInterceptionMirrorsSendUpdateAndDelete(t *testing.T) {
	interceptor := &recordingInterceptor{decision: Decision{Forward: true, Intercept: true}}
	m := NewInterceptionMiddleware(interceptor, nil)

	adapter := &replyAdapter{}
	tc := newInspectionTurn(adapter, "app-conv", "hello")

	var set core.MiddlewareSet
	set.Use(m)
	require.NoError(t, set.Run(tc, func(tc *core.TurnContext) error {
		if _, err := tc.SendTextActivity("hi"); err != nil {
			return err
		}
		if err := tc.UpdateActivity(&core.Activity{Type: core.ActivityTypeMessage, ID: "act-9", Text: "edited"}); err != nil {
			return err
		}
		return tc.DeleteActivity("act-9")
	}))

	require.Len(t, interceptor.inbound, 1)
	assert.Equal(t, "ReceivedActivity", interceptor.inbound[0].Name)
	assert.Equal(t, []string{"SentActivity", "MessageUpdate", "Deleted Message"}, interceptor.outboundNames())
	assert.Equal(t, 1, interceptor.states)

	// The delete trace carries the reference of the removed activity.
	deleted := interceptor.outbound[2]
	assert.Equal(t, core.ActivityTypeTrace, deleted.Type)
	assert.Equal(t, ReferenceValueType, deleted.ValueType)
	var reference core.ConversationReference
	require.NoError(t, json.Unmarshal(deleted.Value, &reference))
	assert.Equal(t, "act-9", reference.ActivityID)
	assert.Equal(t, "app-conv", reference.Conversation.ID)
}

func TestInterceptionSkipsMirroringWhenNotIntercepting(t *testing.T) {
	interceptor := &recordingInterceptor{decision: Decision{Forward: true, Intercept: false}}
	m := NewInterceptionMiddleware(interceptor, nil)

	tc := newInspectionTurn(&replyAdapter{}, "app-conv", "hello")
	var set core.MiddlewareSet
	set.Use(m)
	require.NoError(t, set.Run(tc, func(tc *core.TurnContext) error {
		if _, err := tc.SendTextActivity("hi"); err != nil {
			return err
		}
		return tc.DeleteActivity("act-9")
	}))

	assert.Empty(t, interceptor.outbound)
	assert.Zero(t, interceptor.states)
}
