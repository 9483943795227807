package core

import "context"

// Adapter is the outbound half of the turn machinery as seen from a
// TurnContext: it delivers, replaces and deletes activities against the
// channel and can resume a conversation from a saved reference. The
// concrete channel adapter in package adapter implements it; tests supply
// lightweight fakes.
type Adapter interface {
	// SendActivities delivers activities strictly in input order and
	// returns one response per activity, in the same order.
	SendActivities(tc *TurnContext, activities []*Activity) ([]ResourceResponse, error)

	// UpdateActivity replaces a previously sent activity in place. The
	// activity must carry serviceUrl, conversation.id and its own id.
	UpdateActivity(tc *TurnContext, activity *Activity) error

	// DeleteActivity removes a previously sent activity. The reference must
	// carry serviceUrl, conversation.id and activityId.
	DeleteActivity(tc *TurnContext, reference *ConversationReference) error

	// ContinueConversation resumes a conversation proactively from a saved
	// reference, running the full middleware pipeline against a synthetic
	// event activity.
	ContinueConversation(ctx context.Context, reference *ConversationReference, logic TurnLogic) error
}
