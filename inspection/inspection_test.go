package inspection

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/botmesh/core"
	"github.com/hupe1980/botmesh/storage"
)

// replyAdapter records what the bot sends back into its own conversation.
type replyAdapter struct {
	sent []*core.Activity
}

func (r *replyAdapter) SendActivities(tc *core.TurnContext, activities []*core.Activity) ([]core.ResourceResponse, error) {
	r.sent = append(r.sent, activities...)
	return make([]core.ResourceResponse, len(activities)), nil
}

func (r *replyAdapter) UpdateActivity(*core.TurnContext, *core.Activity) error { return nil }

func (r *replyAdapter) DeleteActivity(*core.TurnContext, *core.ConversationReference) error {
	return nil
}

func (r *replyAdapter) ContinueConversation(context.Context, *core.ConversationReference, core.TurnLogic) error {
	return nil
}

// relayRecorder records traces relayed to the inspection conversation.
type relayRecorder struct {
	mu       sync.Mutex
	baseURL  string
	relayed  []sentTrace
	failNext bool
}

type sentTrace struct {
	ConversationID string
	Activity       *core.Activity
}

func (r *relayRecorder) BaseURL() string { return r.baseURL }

func (r *relayRecorder) SendToConversation(_ context.Context, conversationID string, activity *core.Activity) (*core.ResourceResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext {
		return nil, errors.New("relay target gone")
	}
	r.relayed = append(r.relayed, sentTrace{ConversationID: conversationID, Activity: activity})
	return &core.ResourceResponse{ID: "relayed"}, nil
}

func (r *relayRecorder) ReplyToActivity(context.Context, string, string, *core.Activity) (*core.ResourceResponse, error) {
	return &core.ResourceResponse{}, nil
}

func (r *relayRecorder) UpdateActivity(context.Context, string, string, *core.Activity) (*core.ResourceResponse, error) {
	return &core.ResourceResponse{}, nil
}

func (r *relayRecorder) DeleteActivity(context.Context, string, string) error { return nil }

func (r *relayRecorder) CreateConversation(context.Context, *core.ConversationParameters) (*core.ConversationResourceResponse, error) {
	return &core.ConversationResourceResponse{}, nil
}

func (r *relayRecorder) GetConversationMembers(context.Context, string) ([]core.ChannelAccount, error) {
	return nil, nil
}

func (r *relayRecorder) GetActivityMembers(context.Context, string, string) ([]core.ChannelAccount, error) {
	return nil, nil
}

func (r *relayRecorder) DeleteConversationMember(context.Context, string, string) error { return nil }

func (r *relayRecorder) GetConversations(context.Context, string) (*core.ConversationsResult, error) {
	return &core.ConversationsResult{}, nil
}

func (r *relayRecorder) traces() []sentTrace {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentTrace(nil), r.relayed...)
}

func newInspectionTurn(adapter core.Adapter, conversationID, text string) *core.TurnContext {
	activity := &core.Activity{
		Type:         core.ActivityTypeMessage,
		ID:           "act-" + conversationID,
		ChannelID:    core.ChannelEmulator,
		ServiceURL:   "https://emulator.example",
		Conversation: core.ConversationAccount{ID: conversationID},
		From:         core.ChannelAccount{ID: "user-1"},
		Recipient:    core.ChannelAccount{ID: "bot-1"},
		Text:         text,
	}
	return core.NewTurnContext(context.Background(), adapter, activity)
}

func runTurn(t *testing.T, m *InspectionMiddleware, tc *core.TurnContext, logic core.TurnLogic) {
	t.Helper()
	var set core.MiddlewareSet
	set.Use(m)
	require.NoError(t, set.Run(tc, logic))
}

// openAndAttach drives the full session handshake and returns the
// middleware plus the recorder receiving relayed traces.
func openAndAttach(t *testing.T, store core.Storage) (*InspectionMiddleware, *relayRecorder) {
	t.Helper()
	recorder := &relayRecorder{}
	m := NewInspectionMiddleware(store, core.ConnectorFactoryFunc(func(serviceURL string, _ *core.ClaimsIdentity) (core.ConnectorClient, error) {
		recorder.baseURL = serviceURL
		return recorder, nil
	}))

	inspector := &replyAdapter{}
	runTurn(t, m, newInspectionTurn(inspector, "inspector-conv", "/INSPECT open"), nil)
	require.Len(t, inspector.sent, 1)
	attachCommand := inspector.sent[0].Text
	require.True(t, strings.HasPrefix(attachCommand, "/INSPECT attach "))

	app := &replyAdapter{}
	runTurn(t, m, newInspectionTurn(app, "app-conv", attachCommand), nil)
	require.Len(t, app.sent, 1)
	assert.Contains(t, app.sent[0].Text, "Attached to session")
	return m, recorder
}

func TestInspectionCommandsDoNotReachTheApplication(t *testing.T) {
	m := NewInspectionMiddleware(storage.NewMemoryStorage(), core.ConnectorFactoryFunc(func(string, *core.ClaimsIdentity) (core.ConnectorClient, error) {
		return &relayRecorder{}, nil
	}))

	logicRan := false
	runTurn(t, m, newInspectionTurn(&replyAdapter{}, "inspector-conv", "/INSPECT open"), func(tc *core.TurnContext) error {
		logicRan = true
		return nil
	})
	assert.False(t, logicRan)
}

func TestInspectionReplicatesAttachedConversationTraffic(t *testing.T) {
	m, recorder := openAndAttach(t, storage.NewMemoryStorage())

	app := &replyAdapter{}
	runTurn(t, m, newInspectionTurn(app, "app-conv", "hello bot"), func(tc *core.TurnContext) error {
		_, err := tc.SendTextActivity("hello user")
		return err
	})

	// The app conversation still got its reply.
	require.Len(t, app.sent, 1)
	assert.Equal(t, "hello user", app.sent[0].Text)

	traces := recorder.traces()
	require.GreaterOrEqual(t, len(traces), 3)
	names := make([]string, 0, len(traces))
	for _, trace := range traces {
		assert.Equal(t, "inspector-conv", trace.ConversationID)
		assert.Equal(t, core.ActivityTypeTrace, trace.Activity.Type)
		names = append(names, trace.Activity.Name)
	}
	assert.Contains(t, names, "ReceivedActivity")
	assert.Contains(t, names, "SentActivity")
	assert.Contains(t, names, "BotState")
}

func TestInspectionIgnoresUnattachedConversations(t *testing.T) {
	m, recorder := openAndAttach(t, storage.NewMemoryStorage())

	runTurn(t, m, newInspectionTurn(&replyAdapter{}, "other-conv", "hello"), func(tc *core.TurnContext) error {
		return nil
	})
	for _, trace := range recorder.traces() {
		assert.NotEqual(t, "other-conv", trace.Activity.ReplyToID)
	}
	// Only the other conversation ran; nothing new was relayed.
	assert.Empty(t, recorder.traces())
}

func TestInspectionRelayFailureTearsDownSession(t *testing.T) {
	store := storage.NewMemoryStorage()
	m, recorder := openAndAttach(t, store)

	recorder.failNext = true
	logicRan := false
	runTurn(t, m, newInspectionTurn(&replyAdapter{}, "app-conv", "hello"), func(tc *core.TurnContext) error {
		logicRan = true
		return nil
	})
	// The application is unaffected by the dead debugging surface.
	assert.True(t, logicRan)

	// The session is gone; later turns relay nothing even though the
	// recorder works again.
	recorder.failNext = false
	runTurn(t, m, newInspectionTurn(&replyAdapter{}, "app-conv", "hello again"), nil)
	assert.Empty(t, recorder.traces())
}

func TestInspectionAttachUnknownSession(t *testing.T) {
	m := NewInspectionMiddleware(storage.NewMemoryStorage(), core.ConnectorFactoryFunc(func(string, *core.ClaimsIdentity) (core.ConnectorClient, error) {
		return &relayRecorder{}, nil
	}))

	app := &replyAdapter{}
	runTurn(t, m, newInspectionTurn(app, "app-conv", "/INSPECT attach nope"), nil)
	require.Len(t, app.sent, 1)
	assert.Contains(t, app.sent[0].Text, "does not exist")
}
