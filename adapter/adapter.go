package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/botmesh/core"
	"github.com/hupe1980/botmesh/logging"
)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// ConnectorFactory builds channel transport clients per service URL.
	ConnectorFactory core.ConnectorFactory
	// Authenticator validates inbound requests before the turn starts.
	Authenticator core.Authenticator
	// TokenProvider backs the user token surface and the sign-in poller.
	TokenProvider core.TokenProvider
	// TrustStore collects service URLs credentials may be attached to.
	TrustStore *core.TrustStore
	// DefaultDelayMS is the pause for delay activities without a value.
	DefaultDelayMS int
	// Logging services.
	Logger logging.Logger
}

// Adapter drives one turn per inbound activity: parse, authenticate, run
// the middleware pipeline into the application logic, then translate
// whatever the turn produced into a protocol response envelope. It also
// implements the outbound core.Adapter contract the TurnContext delegates
// to. Public methods are safe for concurrent use; each turn runs on its
// caller's goroutine.
type Adapter struct {
	middleware core.MiddlewareSet

	connectorFactory core.ConnectorFactory
	authenticator    core.Authenticator
	tokenProvider    core.TokenProvider
	trustStore       *core.TrustStore
	defaultDelay     time.Duration
	logger           logging.Logger
}

// New constructs an Adapter with optional overrides. The tenant id
// relocation middleware is always installed first.
func New(optFns ...func(o *Options)) *Adapter {
	opts := Options{
		Authenticator:  core.AnonymousAuthenticator{},
		TrustStore:     core.NewTrustStore(),
		DefaultDelayMS: 1000,
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	a := &Adapter{
		connectorFactory: opts.ConnectorFactory,
		authenticator:    opts.Authenticator,
		tokenProvider:    opts.TokenProvider,
		trustStore:       opts.TrustStore,
		defaultDelay:     time.Duration(opts.DefaultDelayMS) * time.Millisecond,
		logger:           opts.Logger,
	}
	a.middleware.Use(tenantIDRelocation())
	return a
}

// WithConnectorFactory sets the connector factory.
func WithConnectorFactory(factory core.ConnectorFactory) func(o *Options) {
	return func(o *Options) { o.ConnectorFactory = factory }
}

// WithAuthenticator sets the inbound request authenticator.
func WithAuthenticator(authenticator core.Authenticator) func(o *Options) {
	return func(o *Options) { o.Authenticator = authenticator }
}

// WithTokenProvider sets the user token provider.
func WithTokenProvider(provider core.TokenProvider) func(o *Options) {
	return func(o *Options) { o.TokenProvider = provider }
}

// WithTrustStore sets the trust store consulted for outbound credentials.
func WithTrustStore(store *core.TrustStore) func(o *Options) {
	return func(o *Options) { o.TrustStore = store }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = logger }
}

// Use appends middleware to the adapter's pipeline. Registration order is
// execution order for every turn the adapter processes.
func (a *Adapter) Use(mw ...core.Middleware) *Adapter {
	a.middleware.Use(mw...)
	return a
}

// TrustStore returns the adapter's trust store.
func (a *Adapter) TrustStore() *core.TrustStore { return a.trustStore }

// tenantIDRelocation copies channelData.tenant.id into conversation.tenantId
// for Teams requests that carry the tenant only in channel data.
func tenantIDRelocation() core.Middleware {
	return core.MiddlewareFunc(func(tc *core.TurnContext, next core.NextFunc) error {
		activity := tc.Activity()
		if activity.ChannelID == core.ChannelMSTeams && activity.Conversation.TenantID == "" && len(activity.ChannelData) > 0 {
			if tenantID := gjson.GetBytes(activity.ChannelData, "tenant.id"); tenantID.Exists() {
				activity.Conversation.TenantID = tenantID.String()
			}
		}
		return next()
	})
}

// getOrCreateConnectorClient reuses the turn's cached connector client when
// its base URL matches, otherwise builds a fresh one bound to serviceURL.
func (a *Adapter) getOrCreateConnectorClient(tc *core.TurnContext, serviceURL string) (core.ConnectorClient, error) {
	if client, ok := tc.TurnState().Get(core.ConnectorClientKey).(core.ConnectorClient); ok && client.BaseURL() == serviceURL {
		return client, nil
	}
	if a.connectorFactory == nil {
		return nil, fmt.Errorf("adapter: no connector factory configured")
	}
	identity, _ := tc.TurnState().Get(core.IdentityKey).(*core.ClaimsIdentity)
	client, err := a.connectorFactory.CreateConnectorClient(serviceURL, identity)
	if err != nil {
		return nil, fmt.Errorf("create connector client: %w", err)
	}
	tc.TurnState().Set(core.ConnectorClientKey, client)
	return client, nil
}

// GetConversationMembers lists the members of the turn's conversation.
func (a *Adapter) GetConversationMembers(tc *core.TurnContext) ([]core.ChannelAccount, error) {
	activity := tc.Activity()
	if activity.ServiceURL == "" || activity.Conversation.ID == "" {
		return nil, &core.ValidationError{Op: "adapter.GetConversationMembers", Reason: "missing serviceUrl or conversation.id"}
	}
	client, err := a.getOrCreateConnectorClient(tc, activity.ServiceURL)
	if err != nil {
		return nil, err
	}
	return client.GetConversationMembers(tc.Context, activity.Conversation.ID)
}

// GetActivityMembers lists the members addressed by a single activity.
// An empty activityID defaults to the turn's inbound activity.
func (a *Adapter) GetActivityMembers(tc *core.TurnContext, activityID string) ([]core.ChannelAccount, error) {
	activity := tc.Activity()
	if activityID == "" {
		activityID = activity.ID
	}
	if activity.ServiceURL == "" || activity.Conversation.ID == "" || activityID == "" {
		return nil, &core.ValidationError{Op: "adapter.GetActivityMembers", Reason: "missing serviceUrl, conversation.id or activity id"}
	}
	client, err := a.getOrCreateConnectorClient(tc, activity.ServiceURL)
	if err != nil {
		return nil, err
	}
	return client.GetActivityMembers(tc.Context, activity.Conversation.ID, activityID)
}

// DeleteConversationMember removes a member from the turn's conversation.
func (a *Adapter) DeleteConversationMember(tc *core.TurnContext, memberID string) error {
	activity := tc.Activity()
	if activity.ServiceURL == "" || activity.Conversation.ID == "" {
		return &core.ValidationError{Op: "adapter.DeleteConversationMember", Reason: "missing serviceUrl or conversation.id"}
	}
	client, err := a.getOrCreateConnectorClient(tc, activity.ServiceURL)
	if err != nil {
		return err
	}
	return client.DeleteConversationMember(tc.Context, activity.Conversation.ID, memberID)
}

// GetConversations pages through the conversations the bot participates in
// on serviceURL. Pass the previous result's continuation token to advance.
func (a *Adapter) GetConversations(ctx context.Context, serviceURL, continuationToken string) (*core.ConversationsResult, error) {
	if serviceURL == "" {
		return nil, &core.ValidationError{Op: "adapter.GetConversations", Reason: "missing serviceUrl"}
	}
	if a.connectorFactory == nil {
		return nil, fmt.Errorf("adapter: no connector factory configured")
	}
	client, err := a.connectorFactory.CreateConnectorClient(serviceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create connector client: %w", err)
	}
	return client.GetConversations(ctx, continuationToken)
}

// GetUserToken fetches the user's token for a named connection. The magic
// code is the out-of-band verification code, empty while polling.
func (a *Adapter) GetUserToken(tc *core.TurnContext, connectionName, magicCode string) (*core.TokenResponse, error) {
	if a.tokenProvider == nil {
		return nil, fmt.Errorf("adapter: no token provider configured")
	}
	activity := tc.Activity()
	if activity.From.ID == "" {
		return nil, &core.ValidationError{Op: "adapter.GetUserToken", Reason: "missing activity.from.id"}
	}
	if connectionName == "" {
		return nil, &core.ValidationError{Op: "adapter.GetUserToken", Reason: "missing connection name"}
	}
	return a.tokenProvider.GetUserToken(tc.Context, activity.From.ID, connectionName, activity.ChannelID, magicCode)
}

// SignOutUser revokes the user's token for a named connection. An empty
// connection name signs the user out of every connection.
func (a *Adapter) SignOutUser(tc *core.TurnContext, connectionName string) error {
	if a.tokenProvider == nil {
		return fmt.Errorf("adapter: no token provider configured")
	}
	activity := tc.Activity()
	if activity.From.ID == "" {
		return &core.ValidationError{Op: "adapter.SignOutUser", Reason: "missing activity.from.id"}
	}
	return a.tokenProvider.SignOutUser(tc.Context, activity.From.ID, connectionName, activity.ChannelID)
}

// GetTokenStatus reports the token state of each connection for the user.
func (a *Adapter) GetTokenStatus(tc *core.TurnContext, includeFilter string) ([]core.TokenStatus, error) {
	if a.tokenProvider == nil {
		return nil, fmt.Errorf("adapter: no token provider configured")
	}
	activity := tc.Activity()
	if activity.From.ID == "" {
		return nil, &core.ValidationError{Op: "adapter.GetTokenStatus", Reason: "missing activity.from.id"}
	}
	return a.tokenProvider.GetTokenStatus(tc.Context, activity.From.ID, activity.ChannelID, includeFilter)
}
