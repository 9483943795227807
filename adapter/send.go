package adapter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/botmesh/core"
)

// SendActivities delivers activities strictly in input order. Three types
// never reach the transport: delay pauses the sequence for its value in
// milliseconds, invokeResponse is cached in turn state for the response
// envelope, and trace is dropped on every channel except the emulator.
// Each handled activity contributes one response slot, empty for the
// non-transport types, so indices line up with the input.
func (a *Adapter) SendActivities(tc *core.TurnContext, activities []*core.Activity) ([]core.ResourceResponse, error) {
	responses := make([]core.ResourceResponse, len(activities))
	for i, activity := range activities {
		switch activity.Type {
		case core.ActivityTypeDelay:
			if err := a.sleep(tc, delayDuration(activity, a.defaultDelay)); err != nil {
				return nil, err
			}

		case core.ActivityTypeInvokeResponse:
			invokeResponse, err := decodeInvokeResponse(activity)
			if err != nil {
				return nil, err
			}
			tc.TurnState().Set(core.InvokeResponseKey, invokeResponse)

		case core.ActivityTypeTrace:
			if activity.ChannelID != core.ChannelEmulator {
				continue
			}
			response, err := a.deliver(tc, activity)
			if err != nil {
				return nil, err
			}
			responses[i] = response

		default:
			response, err := a.deliver(tc, activity)
			if err != nil {
				return nil, err
			}
			responses[i] = response
			a.checkForOAuthCards(tc, activity)
		}
	}
	return responses, nil
}

// deliver pushes one activity to the channel service, replying in thread
// when the activity references one.
func (a *Adapter) deliver(tc *core.TurnContext, activity *core.Activity) (core.ResourceResponse, error) {
	start := time.Now()
	if activity.ServiceURL == "" {
		return core.ResourceResponse{}, &core.ValidationError{Op: "adapter.SendActivities", Reason: "missing activity serviceUrl"}
	}
	if activity.Conversation.ID == "" {
		return core.ResourceResponse{}, &core.ValidationError{Op: "adapter.SendActivities", Reason: "missing activity conversation.id"}
	}
	client, err := a.getOrCreateConnectorClient(tc, activity.ServiceURL)
	if err != nil {
		return core.ResourceResponse{}, err
	}

	var response *core.ResourceResponse
	if activity.ReplyToID != "" {
		response, err = client.ReplyToActivity(tc.Context, activity.Conversation.ID, activity.ReplyToID, activity)
	} else {
		response, err = client.SendToConversation(tc.Context, activity.Conversation.ID, activity)
	}
	if err != nil {
		a.logger.Error("delivery failed activity_type=%s conversation_id=%s error=%v", activity.Type, activity.Conversation.ID, err)
		return core.ResourceResponse{}, fmt.Errorf("send activity: %w", err)
	}
	a.logger.Debug("delivery completed activity_type=%s conversation_id=%s duration=%s", activity.Type, activity.Conversation.ID, time.Since(start))
	if response == nil {
		return core.ResourceResponse{}, nil
	}
	return *response, nil
}

// UpdateActivity replaces a previously sent activity in place.
func (a *Adapter) UpdateActivity(tc *core.TurnContext, activity *core.Activity) error {
	if activity.ServiceURL == "" {
		return &core.ValidationError{Op: "adapter.UpdateActivity", Reason: "missing activity serviceUrl"}
	}
	if activity.Conversation.ID == "" {
		return &core.ValidationError{Op: "adapter.UpdateActivity", Reason: "missing activity conversation.id"}
	}
	if activity.ID == "" {
		return &core.ValidationError{Op: "adapter.UpdateActivity", Reason: "missing activity id"}
	}
	client, err := a.getOrCreateConnectorClient(tc, activity.ServiceURL)
	if err != nil {
		return err
	}
	if _, err := client.UpdateActivity(tc.Context, activity.Conversation.ID, activity.ID, activity); err != nil {
		return fmt.Errorf("update activity: %w", err)
	}
	return nil
}

// DeleteActivity removes a previously sent activity.
func (a *Adapter) DeleteActivity(tc *core.TurnContext, reference *core.ConversationReference) error {
	if reference == nil || reference.ServiceURL == "" {
		return &core.ValidationError{Op: "adapter.DeleteActivity", Reason: "missing reference serviceUrl"}
	}
	if reference.Conversation.ID == "" {
		return &core.ValidationError{Op: "adapter.DeleteActivity", Reason: "missing reference conversation.id"}
	}
	if reference.ActivityID == "" {
		return &core.ValidationError{Op: "adapter.DeleteActivity", Reason: "missing reference activityId"}
	}
	client, err := a.getOrCreateConnectorClient(tc, reference.ServiceURL)
	if err != nil {
		return err
	}
	if err := client.DeleteActivity(tc.Context, reference.Conversation.ID, reference.ActivityID); err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	return nil
}

// sleep pauses the send sequence, aborting early when the turn's context
// is cancelled.
func (a *Adapter) sleep(tc *core.TurnContext, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-tc.Context.Done():
		return tc.Context.Err()
	}
}

// delayDuration reads the pause length from a delay activity's value,
// falling back to the adapter default when absent or non-numeric.
func delayDuration(activity *core.Activity, fallback time.Duration) time.Duration {
	if len(activity.Value) == 0 {
		return fallback
	}
	value := gjson.ParseBytes(activity.Value)
	if value.Type != gjson.Number {
		return fallback
	}
	return time.Duration(value.Int()) * time.Millisecond
}

func decodeInvokeResponse(activity *core.Activity) (*core.InvokeResponse, error) {
	var invokeResponse core.InvokeResponse
	if len(activity.Value) == 0 {
		return nil, &core.ValidationError{Op: "adapter.SendActivities", Reason: "invokeResponse activity without value"}
	}
	if err := json.Unmarshal(activity.Value, &invokeResponse); err != nil {
		return nil, &core.ValidationError{Op: "adapter.SendActivities", Reason: "malformed invokeResponse value: " + err.Error()}
	}
	return &invokeResponse, nil
}
