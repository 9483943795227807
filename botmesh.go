// Package botmesh provides a high-level façade over the channel adapter
// and the state services, enabling rapid construction of conversational
// bots. Most applications interact with this package by:
//  1. Creating a Bot via New() (optionally overriding default in-memory services)
//  2. Registering middleware and a turn handler
//  3. Feeding inbound requests into ProcessActivity from their transport layer
//
// The façade delegates turn processing to adapter.Adapter while keeping
// setup and usage ergonomics concise. All defaults are safe for local
// development against the emulator; production deployments typically
// supply durable storage, a real authenticator and a structured logger.
package botmesh

import (
	"context"

	"github.com/hupe1980/botmesh/adapter"
	"github.com/hupe1980/botmesh/connector"
	"github.com/hupe1980/botmesh/core"
	"github.com/hupe1980/botmesh/logging"
	"github.com/hupe1980/botmesh/state"
	"github.com/hupe1980/botmesh/storage"
)

// Options configures the Bot instance.
type Options struct {
	// Storage backs the conversation and user state scopes. Defaults to
	// the in-memory implementation.
	Storage core.Storage

	// ConnectorFactory builds channel transport clients. Defaults to the
	// REST factory sharing the bot's trust store, with anonymous requests.
	ConnectorFactory core.ConnectorFactory

	// Authenticator validates inbound requests. Defaults to the anonymous
	// authenticator, which is only safe against the emulator.
	Authenticator core.Authenticator

	// TokenProvider backs the sign-in surface. Optional.
	TokenProvider core.TokenProvider

	// TrustStore gates outbound credential attachment.
	TrustStore *core.TrustStore

	// AutoSaveState saves conversation and user state at the end of every
	// successful turn.
	AutoSaveState bool

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Bot is the high-level façade aggregating the adapter and the state
// scopes.
type Bot struct {
	opts              Options
	adapter           *adapter.Adapter
	conversationState *state.Scope
	userState         *state.Scope
}

// New creates a new Bot instance with optional overrides. Any unset
// service is initialized with a local default.
func New(optFns ...func(o *Options)) *Bot {
	opts := Options{
		Storage:       storage.NewMemoryStorage(),
		Authenticator: core.AnonymousAuthenticator{},
		TrustStore:    core.NewTrustStore(),
		AutoSaveState: true,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.ConnectorFactory == nil {
		opts.ConnectorFactory = connector.NewFactory(func(o *connector.Options) {
			o.TrustStore = opts.TrustStore
			o.Logger = opts.Logger
		})
	}

	a := adapter.New(func(o *adapter.Options) {
		o.ConnectorFactory = opts.ConnectorFactory
		o.Authenticator = opts.Authenticator
		o.TokenProvider = opts.TokenProvider
		o.TrustStore = opts.TrustStore
		o.Logger = opts.Logger
	})

	bot := &Bot{
		opts:              opts,
		adapter:           a,
		conversationState: state.NewConversationState(opts.Storage),
		userState:         state.NewUserState(opts.Storage),
	}
	if opts.AutoSaveState {
		a.Use(state.NewAutoSaveMiddleware(bot.conversationState, bot.userState))
	}
	return bot
}

// Adapter returns the underlying channel adapter.
func (b *Bot) Adapter() *adapter.Adapter { return b.adapter }

// ConversationState returns the per-conversation state scope.
func (b *Bot) ConversationState() *state.Scope { return b.conversationState }

// UserState returns the per-user state scope.
func (b *Bot) UserState() *state.Scope { return b.userState }

// Storage returns the storage backing the state scopes.
func (b *Bot) Storage() core.Storage { return b.opts.Storage }

// Use appends middleware to the adapter's pipeline.
func (b *Bot) Use(mw ...core.Middleware) *Bot {
	b.adapter.Use(mw...)
	return b
}

// ProcessActivity runs one turn for a raw inbound request body and returns
// the response envelope the transport should write.
func (b *Bot) ProcessActivity(ctx context.Context, body []byte, authHeader string, logic core.TurnLogic) (*adapter.Response, error) {
	return b.adapter.ProcessActivity(ctx, body, authHeader, logic)
}

// ContinueConversation resumes a conversation proactively from a saved
// reference.
func (b *Bot) ContinueConversation(ctx context.Context, reference *core.ConversationReference, logic core.TurnLogic) error {
	return b.adapter.ContinueConversation(ctx, reference, logic)
}
