package core

import "context"

// ConversationParameters describes a conversation to create on the
// channel. Most channels only support direct (non-group) conversations.
type ConversationParameters struct {
	Bot         ChannelAccount   `json:"bot"`
	Members     []ChannelAccount `json:"members"`
	IsGroup     bool             `json:"isGroup"`
	TenantID    string           `json:"tenantId,omitempty"`
	ChannelData any              `json:"channelData,omitempty"`
}

// ConversationResourceResponse is the channel's answer to a conversation
// create request.
type ConversationResourceResponse struct {
	ID         string `json:"id"`
	ServiceURL string `json:"serviceUrl,omitempty"`
	ActivityID string `json:"activityId,omitempty"`
}

// ConversationMembers pairs a conversation id with its member accounts.
type ConversationMembers struct {
	ID      string           `json:"id"`
	Members []ChannelAccount `json:"members,omitempty"`
}

// ConversationsResult is one page of the conversations listing. A
// non-empty continuation token means more pages follow.
type ConversationsResult struct {
	Conversations     []ConversationMembers `json:"conversations"`
	ContinuationToken string                `json:"continuationToken,omitempty"`
}

// ConnectorClient is the transport contract for talking to a channel
// service. The core calls it as an opaque collaborator; wire framing,
// retries and credential refresh live behind it.
type ConnectorClient interface {
	// BaseURL reports the service URL the client is bound to. The adapter
	// reuses a turn's cached client only when the URLs match.
	BaseURL() string

	SendToConversation(ctx context.Context, conversationID string, activity *Activity) (*ResourceResponse, error)
	ReplyToActivity(ctx context.Context, conversationID, activityID string, activity *Activity) (*ResourceResponse, error)
	UpdateActivity(ctx context.Context, conversationID, activityID string, activity *Activity) (*ResourceResponse, error)
	DeleteActivity(ctx context.Context, conversationID, activityID string) error

	CreateConversation(ctx context.Context, params *ConversationParameters) (*ConversationResourceResponse, error)
	GetConversationMembers(ctx context.Context, conversationID string) ([]ChannelAccount, error)
	GetActivityMembers(ctx context.Context, conversationID, activityID string) ([]ChannelAccount, error)
	DeleteConversationMember(ctx context.Context, conversationID, memberID string) error
	GetConversations(ctx context.Context, continuationToken string) (*ConversationsResult, error)
}

// ConnectorFactory builds connector clients bound to a service URL. The
// identity is the authenticated claims of the inbound request when there
// is one; proactive paths pass nil.
type ConnectorFactory interface {
	CreateConnectorClient(serviceURL string, identity *ClaimsIdentity) (ConnectorClient, error)
}

// ConnectorFactoryFunc adapts a function to the ConnectorFactory interface.
type ConnectorFactoryFunc func(serviceURL string, identity *ClaimsIdentity) (ConnectorClient, error)

// CreateConnectorClient calls the wrapped function.
func (f ConnectorFactoryFunc) CreateConnectorClient(serviceURL string, identity *ClaimsIdentity) (ConnectorClient, error) {
	return f(serviceURL, identity)
}
