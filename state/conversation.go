package state

import (
	"fmt"

	"github.com/hupe1980/botmesh/core"
)

// NewConversationState returns the scope persisting per-conversation data
// under "{channelId}/conversations/{conversationId}". Turns missing either
// routing field fail loudly rather than silently sharing a key.
func NewConversationState(storage core.Storage) *Scope {
	return NewScope(storage, "ConversationState", func(tc *core.TurnContext) (string, error) {
		activity := tc.Activity()
		if activity == nil || activity.ChannelID == "" {
			return "", &core.ValidationError{Op: "ConversationState", Reason: "missing activity.channelId"}
		}
		if activity.Conversation.ID == "" {
			return "", &core.ValidationError{Op: "ConversationState", Reason: "missing activity.conversation.id"}
		}
		return fmt.Sprintf("%s/conversations/%s", activity.ChannelID, activity.Conversation.ID), nil
	})
}
