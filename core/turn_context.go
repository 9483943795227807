package core

import (
	"context"
	"fmt"
)

// SendHandler participates in send activity events for the turn. Handlers
// run in registration order; each must call next to keep the send moving.
// A handler that skips next suppresses the send from its position onward.
type SendHandler func(tc *TurnContext, activities []*Activity, next func() ([]ResourceResponse, error)) ([]ResourceResponse, error)

// UpdateHandler participates in update activity events for the turn.
type UpdateHandler func(tc *TurnContext, activity *Activity, next func() error) error

// DeleteHandler participates in delete activity events for the turn.
type DeleteHandler func(tc *TurnContext, reference *ConversationReference, next func() error) error

// TurnContext is the per-turn value object created once per inbound
// activity. It carries the triggering activity, the response handler
// chains, and the scoped turn state cache, and is passed by reference
// through the whole pipeline into the application logic.
//
// Contract:
//   - Created by the adapter at turn start, revoked at turn end; any use
//     after revocation fails with ErrContextExpired.
//   - Responded flips to true once any non-trace activity has been sent.
//   - Not safe for concurrent use; a turn is a single logical sequence.
type TurnContext struct {
	// Context is the ambient cancellation context for the turn. Every
	// network call made on behalf of the turn threads it through.
	Context context.Context

	adapter   Adapter
	activity  *Activity
	turnState *TurnState
	responded bool
	revoked   bool

	onSendActivities []SendHandler
	onUpdateActivity []UpdateHandler
	onDeleteActivity []DeleteHandler
}

// NewTurnContext creates a context for one turn. The adapter owns the
// lifecycle; application code receives the context, it never creates one.
func NewTurnContext(ctx context.Context, adapter Adapter, activity *Activity) *TurnContext {
	return &TurnContext{
		Context:   ctx,
		adapter:   adapter,
		activity:  activity,
		turnState: NewTurnState(),
	}
}

// Activity returns the inbound activity that started the turn.
func (tc *TurnContext) Activity() *Activity { return tc.activity }

// Adapter returns the adapter that created the context.
func (tc *TurnContext) Adapter() Adapter { return tc.adapter }

// TurnState returns the turn's scoped key/value cache.
func (tc *TurnContext) TurnState() *TurnState { return tc.turnState }

// Responded reports whether any non-trace activity has been sent this turn.
func (tc *TurnContext) Responded() bool { return tc.responded }

// Revoke invalidates the context. Called by the adapter when the pipeline
// completes, whether by success or error; afterwards every operation fails
// with ErrContextExpired and the handler chains and turn state are gone.
func (tc *TurnContext) Revoke() {
	tc.revoked = true
	tc.onSendActivities = nil
	tc.onUpdateActivity = nil
	tc.onDeleteActivity = nil
	tc.turnState.clear()
}

// Revoked reports whether the turn has ended.
func (tc *TurnContext) Revoked() bool { return tc.revoked }

func (tc *TurnContext) checkLive(op string) error {
	if tc.revoked {
		return fmt.Errorf("TurnContext.%s: %w", op, ErrContextExpired)
	}
	return nil
}

// OnSendActivities registers a handler for send events. Returns the
// context for chaining.
func (tc *TurnContext) OnSendActivities(handler SendHandler) *TurnContext {
	tc.onSendActivities = append(tc.onSendActivities, handler)
	return tc
}

// OnUpdateActivity registers a handler for update events.
func (tc *TurnContext) OnUpdateActivity(handler UpdateHandler) *TurnContext {
	tc.onUpdateActivity = append(tc.onUpdateActivity, handler)
	return tc
}

// OnDeleteActivity registers a handler for delete events.
func (tc *TurnContext) OnDeleteActivity(handler DeleteHandler) *TurnContext {
	tc.onDeleteActivity = append(tc.onDeleteActivity, handler)
	return tc
}

// SendActivity sends a single message text or a prepared activity.
func (tc *TurnContext) SendActivity(activity *Activity) (*ResourceResponse, error) {
	responses, err := tc.SendActivities(activity)
	if err != nil {
		return nil, err
	}
	if len(responses) == 0 {
		return nil, nil
	}
	return &responses[0], nil
}

// SendTextActivity is a convenience wrapper sending a plain message.
func (tc *TurnContext) SendTextActivity(text string) (*ResourceResponse, error) {
	return tc.SendActivity(&Activity{Type: ActivityTypeMessage, Text: text})
}

// SendActivities stamps reply routing onto each activity from the inbound
// one, runs the registered send handlers in order, and finally delegates
// to the adapter. The response slice is in input order; delay and
// invokeResponse entries are empty placeholders.
func (tc *TurnContext) SendActivities(activities ...*Activity) ([]ResourceResponse, error) {
	if err := tc.checkLive("SendActivities"); err != nil {
		return nil, err
	}
	ref := GetConversationReference(tc.activity)
	out := make([]*Activity, len(activities))
	for i, a := range activities {
		prepared := *a
		ApplyConversationReference(&prepared, ref, false)
		if prepared.Type == "" {
			prepared.Type = ActivityTypeMessage
		}
		if prepared.Type == ActivityTypeTrace && prepared.ReplyToID == "" {
			prepared.ReplyToID = tc.activity.ID
		}
		out[i] = &prepared
	}

	emit := func() ([]ResourceResponse, error) {
		responses, err := tc.adapter.SendActivities(tc, out)
		if err != nil {
			return nil, err
		}
		for _, a := range out {
			if a.Type != ActivityTypeTrace {
				tc.responded = true
				break
			}
		}
		return responses, nil
	}
	return tc.emitSend(0, out, emit)
}

func (tc *TurnContext) emitSend(i int, activities []*Activity, emit func() ([]ResourceResponse, error)) ([]ResourceResponse, error) {
	if i == len(tc.onSendActivities) {
		return emit()
	}
	return tc.onSendActivities[i](tc, activities, func() ([]ResourceResponse, error) {
		return tc.emitSend(i+1, activities, emit)
	})
}

// UpdateActivity replaces an existing activity, running the registered
// update handlers first. The activity id names the activity to replace.
func (tc *TurnContext) UpdateActivity(activity *Activity) error {
	if err := tc.checkLive("UpdateActivity"); err != nil {
		return err
	}
	ref := GetConversationReference(tc.activity)
	prepared := *activity
	prepared.ChannelID = ref.ChannelID
	prepared.ServiceURL = ref.ServiceURL
	prepared.Conversation = ref.Conversation
	return tc.emitUpdate(0, &prepared, func() error {
		return tc.adapter.UpdateActivity(tc, &prepared)
	})
}

func (tc *TurnContext) emitUpdate(i int, activity *Activity, emit func() error) error {
	if i == len(tc.onUpdateActivity) {
		return emit()
	}
	return tc.onUpdateActivity[i](tc, activity, func() error {
		return tc.emitUpdate(i+1, activity, emit)
	})
}

// DeleteActivity removes an activity by id or by full reference, running
// the registered delete handlers first.
func (tc *TurnContext) DeleteActivity(idOrReference any) error {
	if err := tc.checkLive("DeleteActivity"); err != nil {
		return err
	}
	var reference *ConversationReference
	switch v := idOrReference.(type) {
	case string:
		reference = GetConversationReference(tc.activity)
		reference.ActivityID = v
	case *ConversationReference:
		reference = v
	default:
		return &ValidationError{Op: "TurnContext.DeleteActivity", Reason: fmt.Sprintf("unsupported reference type %T", idOrReference)}
	}
	return tc.emitDelete(0, reference, func() error {
		return tc.adapter.DeleteActivity(tc, reference)
	})
}

func (tc *TurnContext) emitDelete(i int, reference *ConversationReference, emit func() error) error {
	if i == len(tc.onDeleteActivity) {
		return emit()
	}
	return tc.onDeleteActivity[i](tc, reference, func() error {
		return tc.emitDelete(i+1, reference, emit)
	})
}
