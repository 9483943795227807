package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationReferenceRoundTrip(t *testing.T) {
	inbound := &Activity{
		Type:         ActivityTypeMessage,
		ID:           "act-42",
		ChannelID:    "msteams",
		ServiceURL:   "https://smba.example",
		Conversation: ConversationAccount{ID: "conv-7", TenantID: "tenant-1"},
		From:         ChannelAccount{ID: "user-1", Name: "User"},
		Recipient:    ChannelAccount{ID: "bot-1", Name: "Bot"},
	}
	ref := GetConversationReference(inbound)

	outgoing := ApplyConversationReference(&Activity{Type: ActivityTypeMessage, Text: "hello"}, ref, false)
	assert.Equal(t, "conv-7", outgoing.Conversation.ID)
	assert.Equal(t, "https://smba.example", outgoing.ServiceURL)
	assert.Equal(t, "bot-1", outgoing.From.ID)
	assert.Equal(t, "user-1", outgoing.Recipient.ID)
	assert.Equal(t, "act-42", outgoing.ReplyToID)

	incoming := ApplyConversationReference(&Activity{Type: ActivityTypeEvent, Name: "continueConversation"}, ref, true)
	assert.Equal(t, "user-1", incoming.From.ID)
	assert.Equal(t, "bot-1", incoming.Recipient.ID)
	assert.Equal(t, "act-42", incoming.ID)
}

func TestRemoveRecipientMention(t *testing.T) {
	activity := &Activity{
		Type:      ActivityTypeMessage,
		Text:      "<at>echoBot</at> Hi Bot",
		Recipient: ChannelAccount{ID: "bot-1"},
		Entities: []Entity{
			{Type: "mention", Mentioned: &ChannelAccount{ID: "bot-1"}, Text: "<at>echoBot</at>"},
		},
	}
	assert.Equal(t, "Hi Bot", RemoveRecipientMention(activity))
	assert.Equal(t, "Hi Bot", activity.Text)
}

func TestRemoveMentionTextIgnoresOtherAccounts(t *testing.T) {
	activity := &Activity{
		Type:      ActivityTypeMessage,
		Text:      "@alice hello",
		Recipient: ChannelAccount{ID: "bot-1"},
		Entities: []Entity{
			{Type: "mention", Mentioned: &ChannelAccount{ID: "user-alice"}, Text: "@alice"},
		},
	}
	assert.Equal(t, "@alice hello", RemoveRecipientMention(activity))
}

func TestParseActivity(t *testing.T) {
	activity, err := ParseActivity([]byte(`{"type":"message","text":"hi","conversation":{"id":"c1"}}`))
	require.NoError(t, err)
	assert.Equal(t, ActivityTypeMessage, activity.Type)
	assert.Equal(t, "c1", activity.Conversation.ID)

	_, err = ParseActivity([]byte(`{"text":"no type"}`))
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	_, err = ParseActivity([]byte(`{not json`))
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestCalculateChangeHash(t *testing.T) {
	item := StoreItem{"topic": "greeting", "count": 1}
	hash := CalculateChangeHash(item)
	require.NotEmpty(t, hash)

	// Deterministic across map iteration order and eTag stamping.
	assert.Equal(t, hash, CalculateChangeHash(StoreItem{"count": 1, "topic": "greeting"}))
	assert.Equal(t, hash, CalculateChangeHash(StoreItem{"count": 1, "topic": "greeting", ETagKey: "5"}))

	item["count"] = 2
	assert.NotEqual(t, hash, CalculateChangeHash(item))

	assert.Equal(t, CalculateChangeHash(StoreItem{}), CalculateChangeHash(StoreItem{ETagKey: "*"}))
	assert.Empty(t, CalculateChangeHash(nil))
}
