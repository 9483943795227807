package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hupe1980/botmesh/core"
)

// ActivityHandler routes a turn to a hook based on the inbound activity
// type. Hooks are plain function fields; a nil hook is a no-op so an
// application only fills in what it cares about. Use it as the TurnLogic
// via Run:
//
//	h := &handler.ActivityHandler{
//		OnMessage: func(tc *core.TurnContext) error { ... },
//	}
//	adapter.ProcessActivity(ctx, body, auth, h.Run)
type ActivityHandler struct {
	OnMessage       func(tc *core.TurnContext) error
	OnMessageUpdate func(tc *core.TurnContext) error
	OnMessageDelete func(tc *core.TurnContext) error

	// OnMembersAdded receives the added members excluding the bot itself.
	OnMembersAdded func(tc *core.TurnContext, members []core.ChannelAccount) error
	// OnMembersRemoved receives the removed members excluding the bot.
	OnMembersRemoved func(tc *core.TurnContext, members []core.ChannelAccount) error
	// OnConversationUpdate runs after the member hooks for every
	// conversationUpdate activity.
	OnConversationUpdate func(tc *core.TurnContext) error

	// OnTokenResponse handles the tokens/response event emitted when a
	// sign-in completes.
	OnTokenResponse func(tc *core.TurnContext) error
	// OnEvent is the generic bucket for events without a named hook.
	OnEvent func(tc *core.TurnContext) error

	// OnInvoke produces the envelope answer for an invoke activity.
	// Returning core.ErrNotImplemented yields 501, core.ErrBadRequest
	// yields 400; any other error fails the turn.
	OnInvoke func(tc *core.TurnContext) (*core.InvokeResponse, error)

	OnTyping            func(tc *core.TurnContext) error
	OnEndOfConversation func(tc *core.TurnContext) error
	OnHandoff           func(tc *core.TurnContext) error

	// OnUnrecognizedActivityType catches types without a routing rule.
	OnUnrecognizedActivityType func(tc *core.TurnContext) error
}

// Run dispatches the turn. It is the TurnLogic an application hands to the
// adapter.
func (h *ActivityHandler) Run(tc *core.TurnContext) error {
	activity := tc.Activity()
	switch activity.Type {
	case core.ActivityTypeMessage:
		return call(h.OnMessage, tc)
	case core.ActivityTypeMessageUpdate:
		return call(h.OnMessageUpdate, tc)
	case core.ActivityTypeMessageDelete:
		return call(h.OnMessageDelete, tc)
	case core.ActivityTypeConversationUpdate:
		return h.dispatchConversationUpdate(tc)
	case core.ActivityTypeEvent:
		return h.dispatchEvent(tc)
	case core.ActivityTypeInvoke:
		return h.dispatchInvoke(tc)
	case core.ActivityTypeTyping:
		return call(h.OnTyping, tc)
	case core.ActivityTypeEndOfConversation:
		return call(h.OnEndOfConversation, tc)
	case core.ActivityTypeHandoff:
		return call(h.OnHandoff, tc)
	default:
		return call(h.OnUnrecognizedActivityType, tc)
	}
}

func (h *ActivityHandler) dispatchConversationUpdate(tc *core.TurnContext) error {
	activity := tc.Activity()
	if added := withoutAccount(activity.MembersAdded, activity.Recipient.ID); len(added) > 0 && h.OnMembersAdded != nil {
		if err := h.OnMembersAdded(tc, added); err != nil {
			return err
		}
	}
	if removed := withoutAccount(activity.MembersRemoved, activity.Recipient.ID); len(removed) > 0 && h.OnMembersRemoved != nil {
		if err := h.OnMembersRemoved(tc, removed); err != nil {
			return err
		}
	}
	return call(h.OnConversationUpdate, tc)
}

func (h *ActivityHandler) dispatchEvent(tc *core.TurnContext) error {
	if tc.Activity().Name == "tokens/response" && h.OnTokenResponse != nil {
		return h.OnTokenResponse(tc)
	}
	return call(h.OnEvent, tc)
}

func (h *ActivityHandler) dispatchInvoke(tc *core.TurnContext) error {
	if h.OnInvoke == nil {
		return h.sendInvokeResponse(tc, &core.InvokeResponse{Status: http.StatusNotImplemented})
	}
	response, err := h.OnInvoke(tc)
	switch {
	case errors.Is(err, core.ErrNotImplemented):
		return h.sendInvokeResponse(tc, &core.InvokeResponse{Status: http.StatusNotImplemented})
	case errors.Is(err, core.ErrBadRequest):
		return h.sendInvokeResponse(tc, &core.InvokeResponse{Status: http.StatusBadRequest})
	case err != nil:
		return err
	}
	if response == nil {
		response = &core.InvokeResponse{Status: http.StatusOK}
	}
	return h.sendInvokeResponse(tc, response)
}

// sendInvokeResponse ships the envelope answer through the send pipeline.
// A response already cached this turn wins; the handler never overwrites it.
func (h *ActivityHandler) sendInvokeResponse(tc *core.TurnContext, response *core.InvokeResponse) error {
	if tc.TurnState().Has(core.InvokeResponseKey) {
		return nil
	}
	value, err := json.Marshal(response)
	if err != nil {
		return err
	}
	_, err = tc.SendActivity(&core.Activity{Type: core.ActivityTypeInvokeResponse, Value: value})
	return err
}

func call(hook func(tc *core.TurnContext) error, tc *core.TurnContext) error {
	if hook == nil {
		return nil
	}
	return hook(tc)
}

func withoutAccount(members []core.ChannelAccount, id string) []core.ChannelAccount {
	var filtered []core.ChannelAccount
	for _, member := range members {
		if member.ID != id {
			filtered = append(filtered, member)
		}
	}
	return filtered
}
