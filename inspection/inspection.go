package inspection

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/botmesh/core"
	"github.com/hupe1980/botmesh/internal/util"
	"github.com/hupe1980/botmesh/logging"
	"github.com/hupe1980/botmesh/state"
)

const commandPrefix = "/INSPECT"

// sessionMap is the durable session bookkeeping: sessions opened from a
// debugging surface waiting for an attach, and sessions attached to a
// conversation whose traffic is being replicated.
type sessionMap struct {
	OpenedSessions   map[string]*core.ConversationReference `json:"openedSessions"`
	AttachedSessions map[string]*core.ConversationReference `json:"attachedSessions"`
}

// NewInspectionState returns the scope inspection session bookkeeping
// lives in. It is keyed by a constant, not by the turn, because sessions
// span conversations.
func NewInspectionState(storage core.Storage) *state.Scope {
	return state.NewScope(storage, "InspectionState", func(*core.TurnContext) (string, error) {
		return "InspectionState", nil
	})
}

// Options holds optional collaborators for the inspection middleware.
type Options struct {
	// UserState, when set, is included in the state trace sent at the end
	// of each intercepted turn.
	UserState *state.Scope
	// ConversationState, when set, is included in the state trace.
	ConversationState *state.Scope
	// Logging services.
	Logger logging.Logger
}

// InspectionMiddleware replicates a conversation's traffic to a debugging
// surface. A session is opened with "/INSPECT open" from the surface,
// which answers with an attach command; issuing that command in any
// conversation attaches it and mirrors its inbound, outbound and state
// traffic as trace activities until a relay fails.
type InspectionMiddleware struct {
	*InterceptionMiddleware

	inspectionState   *state.Scope
	sessions          *state.PropertyAccessor[sessionMap]
	connectorFactory  core.ConnectorFactory
	userState         *state.Scope
	conversationState *state.Scope
	logger            logging.Logger
}

// NewInspectionMiddleware builds the middleware over the given storage and
// connector factory.
func NewInspectionMiddleware(storage core.Storage, connectorFactory core.ConnectorFactory, optFns ...func(o *Options)) *InspectionMiddleware {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	scope := NewInspectionState(storage)
	m := &InspectionMiddleware{
		inspectionState:   scope,
		sessions:          state.NewPropertyAccessor[sessionMap](scope, "InspectionSessionsByStatus"),
		connectorFactory:  connectorFactory,
		userState:         opts.UserState,
		conversationState: opts.ConversationState,
		logger:            opts.Logger,
	}
	m.InterceptionMiddleware = NewInterceptionMiddleware(m, opts.Logger)
	return m
}

// WithUserState includes a user state scope in end-of-turn state traces.
func WithUserState(scope *state.Scope) func(o *Options) {
	return func(o *Options) { o.UserState = scope }
}

// WithConversationState includes a conversation state scope in state traces.
func WithConversationState(scope *state.Scope) func(o *Options) {
	return func(o *Options) { o.ConversationState = scope }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = logger }
}

// Inbound implements Interceptor. Commands are consumed without reaching
// the application; everything else forwards, intercepted when the
// conversation has an attached session.
func (m *InspectionMiddleware) Inbound(tc *core.TurnContext, trace *core.Activity) (Decision, error) {
	activity := tc.Activity()
	if activity.Type == core.ActivityTypeMessage && strings.HasPrefix(strings.TrimSpace(activity.Text), commandPrefix) {
		if err := m.processCommand(tc); err != nil {
			return Decision{}, err
		}
		return Decision{Forward: false, Intercept: false}, nil
	}

	reference, attachID, err := m.findSession(tc)
	if err != nil {
		return Decision{}, err
	}
	if reference == nil {
		return Decision{Forward: true, Intercept: false}, nil
	}
	if !m.relay(tc, reference, attachID, trace) {
		return Decision{Forward: true, Intercept: false}, nil
	}
	return Decision{Forward: true, Intercept: true}, nil
}

// Outbound implements Interceptor.
func (m *InspectionMiddleware) Outbound(tc *core.TurnContext, traces []*core.Activity) error {
	reference, attachID, err := m.findSession(tc)
	if err != nil || reference == nil {
		return err
	}
	for _, trace := range traces {
		if !m.relay(tc, reference, attachID, trace) {
			return nil
		}
	}
	return nil
}

// TraceState implements Interceptor. It reports the configured state
// scopes as one bot state snapshot.
func (m *InspectionMiddleware) TraceState(tc *core.TurnContext) error {
	reference, attachID, err := m.findSession(tc)
	if err != nil || reference == nil {
		return err
	}

	botState := map[string]any{}
	if m.userState != nil {
		item, err := m.userState.Load(tc, false)
		if err != nil {
			return err
		}
		botState["userState"] = item
	}
	if m.conversationState != nil {
		item, err := m.conversationState.Load(tc, false)
		if err != nil {
			return err
		}
		botState["conversationState"] = item
	}
	m.relay(tc, reference, attachID, TraceFromState(botState))
	return nil
}

func (m *InspectionMiddleware) processCommand(tc *core.TurnContext) error {
	parts := strings.Fields(core.RemoveRecipientMention(tc.Activity()))
	if len(parts) < 2 || parts[0] != commandPrefix {
		return nil
	}

	switch parts[1] {
	case "open":
		return m.openSession(tc)
	case "attach":
		if len(parts) < 3 {
			_, err := tc.SendTextActivity("Attach command requires a session id.")
			return err
		}
		return m.attachSession(tc, parts[2])
	default:
		_, err := tc.SendTextActivity(fmt.Sprintf("Unknown inspection command %q.", parts[1]))
		return err
	}
}

func (m *InspectionMiddleware) openSession(tc *core.TurnContext) error {
	sessions, err := m.loadSessions(tc)
	if err != nil {
		return err
	}
	sessionID := util.NewID()
	sessions.OpenedSessions[sessionID] = core.GetConversationReference(tc.Activity())
	if err := m.saveSessions(tc, sessions); err != nil {
		return err
	}
	m.logger.Info("inspection session opened session_id=%s", sessionID)
	_, err = tc.SendTextActivity(fmt.Sprintf("%s attach %s", commandPrefix, sessionID))
	return err
}

func (m *InspectionMiddleware) attachSession(tc *core.TurnContext, sessionID string) error {
	sessions, err := m.loadSessions(tc)
	if err != nil {
		return err
	}
	reference, ok := sessions.OpenedSessions[sessionID]
	if !ok {
		_, err := tc.SendTextActivity(fmt.Sprintf("Open session with id %s does not exist.", sessionID))
		return err
	}
	delete(sessions.OpenedSessions, sessionID)
	sessions.AttachedSessions[attachID(tc.Activity())] = reference
	if err := m.saveSessions(tc, sessions); err != nil {
		return err
	}
	m.logger.Info("inspection session attached session_id=%s", sessionID)
	_, err = tc.SendTextActivity("Attached to session, all traffic is being replicated for inspection.")
	return err
}

func (m *InspectionMiddleware) findSession(tc *core.TurnContext) (*core.ConversationReference, string, error) {
	sessions, err := m.loadSessions(tc)
	if err != nil {
		return nil, "", err
	}
	id := attachID(tc.Activity())
	return sessions.AttachedSessions[id], id, nil
}

// relay delivers one trace to the attached session's conversation. A
// failed delivery tears the session down so a dead debugging surface does
// not keep degrading every turn.
func (m *InspectionMiddleware) relay(tc *core.TurnContext, reference *core.ConversationReference, attachID string, trace *core.Activity) bool {
	client, err := m.connectorFactory.CreateConnectorClient(reference.ServiceURL, nil)
	if err != nil {
		m.logger.Warn("inspection relay client failed error=%v", err)
		m.teardownSession(tc, attachID)
		return false
	}
	prepared := *trace
	core.ApplyConversationReference(&prepared, reference, false)
	if _, err := client.SendToConversation(tc.Context, reference.Conversation.ID, &prepared); err != nil {
		m.logger.Warn("inspection relay failed, detaching session error=%v", err)
		m.teardownSession(tc, attachID)
		return false
	}
	return true
}

func (m *InspectionMiddleware) teardownSession(tc *core.TurnContext, id string) {
	sessions, err := m.loadSessions(tc)
	if err != nil {
		return
	}
	delete(sessions.AttachedSessions, id)
	if err := m.saveSessions(tc, sessions); err != nil {
		m.logger.Warn("inspection session teardown not persisted error=%v", err)
	}
}

func (m *InspectionMiddleware) loadSessions(tc *core.TurnContext) (sessionMap, error) {
	sessions, err := m.sessions.GetWithDefault(tc, sessionMap{
		OpenedSessions:   map[string]*core.ConversationReference{},
		AttachedSessions: map[string]*core.ConversationReference{},
	})
	if err != nil {
		return sessionMap{}, err
	}
	if sessions.OpenedSessions == nil {
		sessions.OpenedSessions = map[string]*core.ConversationReference{}
	}
	if sessions.AttachedSessions == nil {
		sessions.AttachedSessions = map[string]*core.ConversationReference{}
	}
	return sessions, nil
}

func (m *InspectionMiddleware) saveSessions(tc *core.TurnContext, sessions sessionMap) error {
	if err := m.sessions.Set(tc, sessions); err != nil {
		return err
	}
	// Sessions must be visible to other conversations immediately, so the
	// save is forced instead of waiting for the turn's state save.
	return m.inspectionState.Save(tc, true)
}

// attachID is the key a conversation attaches under. Teams channel
// conversations use the team id so every channel in the team shares the
// session; everything else uses the conversation id.
func attachID(activity *core.Activity) string {
	if activity.ChannelID == core.ChannelMSTeams && len(activity.ChannelData) > 0 {
		if teamID := gjson.GetBytes(activity.ChannelData, "team.id"); teamID.Exists() {
			return teamID.String()
		}
	}
	return activity.Conversation.ID
}
