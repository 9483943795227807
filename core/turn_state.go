package core

// TurnStateKey is an opaque token identifying one logical slot in a turn's
// scoped cache. Keys compare by identity, not by name, so independently
// authored middleware can never collide even when they pick the same label.
// Mint one per logical key at package init and share the pointer.
type TurnStateKey struct {
	name string
}

// NewTurnStateKey mints a new turn state key. The name is diagnostic only.
func NewTurnStateKey(name string) *TurnStateKey {
	return &TurnStateKey{name: name}
}

func (k *TurnStateKey) String() string { return k.name }

// Keys reserved by the adapter. Application middleware must mint its own
// keys rather than reusing these slots.
var (
	// IdentityKey holds the authenticated claims identity for the turn.
	IdentityKey = NewTurnStateKey("botIdentity")

	// ConnectorClientKey holds the connector client created for the turn.
	ConnectorClientKey = NewTurnStateKey("connectorClient")

	// CallbackHandlerKey holds the application logic callback so components
	// outside the pipeline (e.g. the token poller) can re-enter it.
	CallbackHandlerKey = NewTurnStateKey("botCallbackHandler")

	// InvokeResponseKey caches the invoke response produced during the turn.
	// The adapter reads it back out when building the response envelope.
	InvokeResponseKey = NewTurnStateKey("invokeResponse")

	// TokenPollingSettingsKey optionally overrides the sign-in polling
	// timeout for the turn.
	TokenPollingSettingsKey = NewTurnStateKey("tokenPollingSettings")
)

// TurnState is the per-turn key/value cache used to pass objects between
// pipeline stages without global state. It is not safe for concurrent use;
// a turn runs as a single logical sequence.
type TurnState struct {
	values map[*TurnStateKey]any
}

// NewTurnState returns an empty turn state cache.
func NewTurnState() *TurnState {
	return &TurnState{values: make(map[*TurnStateKey]any)}
}

// Get returns the value stored under key, or nil.
func (s *TurnState) Get(key *TurnStateKey) any {
	return s.values[key]
}

// Has reports whether a value is stored under key.
func (s *TurnState) Has(key *TurnStateKey) bool {
	_, ok := s.values[key]
	return ok
}

// Set stores value under key, replacing any previous value.
func (s *TurnState) Set(key *TurnStateKey, value any) {
	s.values[key] = value
}

// Delete removes the value stored under key.
func (s *TurnState) Delete(key *TurnStateKey) {
	delete(s.values, key)
}

// clear discards all entries. Called when the turn ends.
func (s *TurnState) clear() {
	s.values = make(map[*TurnStateKey]any)
}
