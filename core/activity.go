package core

import (
	"encoding/json"
	"strings"
	"time"
)

// Activity type discriminators as they appear on the wire.
const (
	ActivityTypeMessage            = "message"
	ActivityTypeEvent              = "event"
	ActivityTypeInvoke             = "invoke"
	ActivityTypeInvokeResponse     = "invokeResponse"
	ActivityTypeConversationUpdate = "conversationUpdate"
	ActivityTypeMessageUpdate      = "messageUpdate"
	ActivityTypeMessageDelete      = "messageDelete"
	ActivityTypeTrace              = "trace"
	ActivityTypeTyping             = "typing"
	ActivityTypeDelay              = "delay"
	ActivityTypeCommand            = "command"
	ActivityTypeEndOfConversation  = "endOfConversation"
	ActivityTypeHandoff            = "handoff"
)

// Channel identifiers the core special-cases. Trace activities are only
// delivered on the emulator channel; everywhere else they are dropped.
const (
	ChannelEmulator = "emulator"
	ChannelMSTeams  = "msteams"
)

// ChannelAccount identifies a user or bot on a channel.
type ChannelAccount struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Role        string `json:"role,omitempty"`
	AADObjectID string `json:"aadObjectId,omitempty"`
}

// ConversationAccount identifies the conversation an activity belongs to.
type ConversationAccount struct {
	ID               string `json:"id"`
	Name             string `json:"name,omitempty"`
	IsGroup          bool   `json:"isGroup,omitempty"`
	ConversationType string `json:"conversationType,omitempty"`
	TenantID         string `json:"tenantId,omitempty"`
}

// Entity is a flat metadata record attached to an activity. Mention
// entities carry the mentioned account and the literal mention text as it
// appears in the activity text.
type Entity struct {
	Type      string          `json:"type"`
	Mentioned *ChannelAccount `json:"mentioned,omitempty"`
	Text      string          `json:"text,omitempty"`
}

// Attachment is an opaque rich content payload. The core only inspects
// attachments when resolving OAuth cards for token polling; everything else
// passes through untouched.
type Attachment struct {
	ContentType string          `json:"contentType"`
	ContentURL  string          `json:"contentUrl,omitempty"`
	Name        string          `json:"name,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
}

// Activity is a single inbound or outbound conversational event. The core
// treats it as an immutable contract apart from explicit normalization
// (mention stripping, tenant id relocation). Value and ChannelData stay raw
// JSON so channel payloads survive round-trips byte for byte.
type Activity struct {
	Type           string                 `json:"type"`
	ID             string                 `json:"id,omitempty"`
	Timestamp      *time.Time             `json:"timestamp,omitempty"`
	ChannelID      string                 `json:"channelId,omitempty"`
	ServiceURL     string                 `json:"serviceUrl,omitempty"`
	From           ChannelAccount         `json:"from,omitempty"`
	Recipient      ChannelAccount         `json:"recipient,omitempty"`
	Conversation   ConversationAccount    `json:"conversation,omitempty"`
	ReplyToID      string                 `json:"replyToId,omitempty"`
	Name           string                 `json:"name,omitempty"`
	Text           string                 `json:"text,omitempty"`
	Label          string                 `json:"label,omitempty"`
	ValueType      string                 `json:"valueType,omitempty"`
	Value          json.RawMessage        `json:"value,omitempty"`
	ChannelData    json.RawMessage        `json:"channelData,omitempty"`
	MembersAdded   []ChannelAccount       `json:"membersAdded,omitempty"`
	MembersRemoved []ChannelAccount       `json:"membersRemoved,omitempty"`
	Attachments    []Attachment           `json:"attachments,omitempty"`
	Entities       []Entity               `json:"entities,omitempty"`
	RelatesTo      *ConversationReference `json:"relatesTo,omitempty"`
}

// ConversationReference is the durable subset of an activity's routing
// fields. A saved reference is sufficient to resume the conversation later
// without the original request.
type ConversationReference struct {
	ActivityID   string              `json:"activityId,omitempty"`
	User         ChannelAccount      `json:"user,omitempty"`
	Bot          ChannelAccount      `json:"bot,omitempty"`
	Conversation ConversationAccount `json:"conversation"`
	ChannelID    string              `json:"channelId"`
	ServiceURL   string              `json:"serviceUrl"`
}

// ResourceResponse carries the identifier a channel assigned to a delivered
// activity. Delay and invokeResponse activities yield empty placeholders.
type ResourceResponse struct {
	ID string `json:"id,omitempty"`
}

// InvokeResponse is the structured reply an invoke activity demands. It is
// cached in turn state during the turn and read back out by the adapter to
// build the protocol-level response envelope.
type InvokeResponse struct {
	Status int `json:"status"`
	Body   any `json:"body,omitempty"`
}

// GetConversationReference copies the routing coordinates out of an
// activity so the conversation can be resumed proactively later.
func GetConversationReference(a *Activity) *ConversationReference {
	return &ConversationReference{
		ActivityID:   a.ID,
		User:         a.From,
		Bot:          a.Recipient,
		Conversation: a.Conversation,
		ChannelID:    a.ChannelID,
		ServiceURL:   a.ServiceURL,
	}
}

// ApplyConversationReference merges a reference's routing fields into an
// activity. With isIncoming the activity is shaped like a request arriving
// from the user (from=user, recipient=bot); otherwise like a reply heading
// back out (from=bot, recipient=user, replyToId pointing at the referenced
// activity). Returns the activity for chaining.
func ApplyConversationReference(a *Activity, ref *ConversationReference, isIncoming bool) *Activity {
	a.ChannelID = ref.ChannelID
	a.ServiceURL = ref.ServiceURL
	a.Conversation = ref.Conversation
	if isIncoming {
		a.From = ref.User
		a.Recipient = ref.Bot
		if ref.ActivityID != "" {
			a.ID = ref.ActivityID
		}
	} else {
		a.From = ref.Bot
		a.Recipient = ref.User
		if ref.ActivityID != "" {
			a.ReplyToID = ref.ActivityID
		}
	}
	return a
}

// GetMentions returns all mention entities on the activity in order.
func GetMentions(a *Activity) []Entity {
	var mentions []Entity
	for _, e := range a.Entities {
		if e.Type == "mention" {
			mentions = append(mentions, e)
		}
	}
	return mentions
}

// RemoveMentionText strips every mention of the given account id from the
// activity text and returns the updated text. The activity is mutated.
func RemoveMentionText(a *Activity, id string) string {
	for _, mention := range GetMentions(a) {
		if mention.Mentioned == nil || mention.Mentioned.ID != id || mention.Text == "" {
			continue
		}
		a.Text = strings.TrimSpace(strings.ReplaceAll(a.Text, mention.Text, ""))
	}
	return a.Text
}

// RemoveRecipientMention strips mentions of the activity's recipient from
// the text. Channels such as Teams prefix messages with an at-mention of
// the bot; handlers call this before command parsing.
func RemoveRecipientMention(a *Activity) string {
	return RemoveMentionText(a, a.Recipient.ID)
}

// ParseActivity decodes an inbound request body. A body that does not
// decode, or decodes without a type discriminator, is a validation error.
func ParseActivity(body []byte) (*Activity, error) {
	var a Activity
	if err := json.Unmarshal(body, &a); err != nil {
		return nil, &ValidationError{Op: "ParseActivity", Reason: "malformed activity: " + err.Error()}
	}
	if a.Type == "" {
		return nil, &ValidationError{Op: "ParseActivity", Reason: "missing activity type"}
	}
	return &a, nil
}
