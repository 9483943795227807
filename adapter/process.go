package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hupe1980/botmesh/core"
	"github.com/hupe1980/botmesh/internal/util"
)

// Response is the protocol-level answer to one processed request. The
// transport layer writes Status as the HTTP status code and Body, when
// non-nil, as the JSON response body.
type Response struct {
	Status int
	Body   any
}

// ProcessActivity runs one full turn for a raw inbound request body.
//
// Contract:
//   - A body that does not parse yields 400 without running anything.
//   - An authentication failure yields 401 without running anything.
//   - A pipeline error yields 500 (or the invoke response cached before
//     the failure); the error is also returned.
//   - An invoke turn answers with the invoke response cached during the
//     turn, or 501 when the logic produced none.
//   - Every other activity type answers 200 with no body.
//
// The turn context is revoked before ProcessActivity returns, so callbacks
// that captured it cannot act on a finished turn.
func (a *Adapter) ProcessActivity(ctx context.Context, body []byte, authHeader string, logic core.TurnLogic) (*Response, error) {
	start := time.Now()

	activity, err := core.ParseActivity(body)
	if err != nil {
		a.logger.Warn("inbound activity rejected reason=%v", err)
		return &Response{Status: http.StatusBadRequest}, err
	}

	identity, err := a.authenticator.Authenticate(ctx, activity, authHeader)
	if err != nil {
		a.logger.Warn("inbound request not authorized channel_id=%s", activity.ChannelID)
		return &Response{Status: http.StatusUnauthorized}, fmt.Errorf("%w: %s", core.ErrNotAuthorized, err.Error())
	}

	if activity.ServiceURL != "" {
		a.trustStore.AddServiceURL(activity.ServiceURL)
	}

	response, err := a.runTurn(ctx, activity, identity, logic)
	a.logger.Info("turn processed activity_type=%s channel_id=%s status=%d duration=%s",
		activity.Type, activity.ChannelID, response.Status, time.Since(start))
	return response, err
}

// ProcessActivityDirect runs the pipeline for an already parsed activity
// without authentication. Internal re-entry paths (the token poller,
// proactive messaging) use it; transport handlers never should.
func (a *Adapter) ProcessActivityDirect(ctx context.Context, activity *core.Activity, logic core.TurnLogic) error {
	_, err := a.runTurn(ctx, activity, nil, logic)
	return err
}

// runTurn executes the pipeline and translates the turn's outcome into a
// response envelope. The envelope is computed from turn state before the
// context is revoked.
func (a *Adapter) runTurn(ctx context.Context, activity *core.Activity, identity *core.ClaimsIdentity, logic core.TurnLogic) (*Response, error) {
	tc := core.NewTurnContext(ctx, a, activity)
	defer tc.Revoke()

	if identity != nil {
		tc.TurnState().Set(core.IdentityKey, identity)
	}
	if logic != nil {
		tc.TurnState().Set(core.CallbackHandlerKey, logic)
	}

	if err := a.middleware.Run(tc, logic); err != nil {
		// A failed turn still answers with whatever partial envelope the
		// logic managed to cache before the error.
		if cached, ok := tc.TurnState().Get(core.InvokeResponseKey).(*core.InvokeResponse); ok && activity.Type == core.ActivityTypeInvoke {
			return &Response{Status: cached.Status, Body: cached.Body}, err
		}
		return &Response{Status: http.StatusInternalServerError}, err
	}

	if activity.Type == core.ActivityTypeInvoke {
		if cached, ok := tc.TurnState().Get(core.InvokeResponseKey).(*core.InvokeResponse); ok {
			return &Response{Status: cached.Status, Body: cached.Body}, nil
		}
		return &Response{Status: http.StatusNotImplemented}, nil
	}
	return &Response{Status: http.StatusOK}, nil
}

// ContinueConversation resumes a conversation proactively from a saved
// reference. The pipeline runs against a synthetic event activity shaped
// like an inbound request from the referenced user.
func (a *Adapter) ContinueConversation(ctx context.Context, reference *core.ConversationReference, logic core.TurnLogic) error {
	if reference == nil || reference.ServiceURL == "" {
		return &core.ValidationError{Op: "adapter.ContinueConversation", Reason: "missing conversation reference serviceUrl"}
	}
	activity := &core.Activity{
		Type: core.ActivityTypeEvent,
		Name: "continueConversation",
	}
	core.ApplyConversationReference(activity, reference, true)
	return a.ProcessActivityDirect(ctx, activity, logic)
}

// CreateConversation starts a new conversation on the channel and runs the
// pipeline against a synthetic createConversation event bound to it. Used
// to open a direct conversation with a member seen in a group.
func (a *Adapter) CreateConversation(ctx context.Context, reference *core.ConversationReference, logic core.TurnLogic) error {
	if reference == nil || reference.ServiceURL == "" {
		return &core.ValidationError{Op: "adapter.CreateConversation", Reason: "missing conversation reference serviceUrl"}
	}
	if a.connectorFactory == nil {
		return fmt.Errorf("adapter: no connector factory configured")
	}
	client, err := a.connectorFactory.CreateConnectorClient(reference.ServiceURL, nil)
	if err != nil {
		return fmt.Errorf("create connector client: %w", err)
	}

	params := &core.ConversationParameters{
		Bot:      reference.Bot,
		Members:  []core.ChannelAccount{reference.User},
		TenantID: reference.Conversation.TenantID,
	}
	if reference.Conversation.TenantID != "" {
		params.ChannelData = map[string]any{"tenant": map[string]any{"id": reference.Conversation.TenantID}}
	}
	created, err := client.CreateConversation(ctx, params)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}

	activity := &core.Activity{
		Type: core.ActivityTypeEvent,
		Name: "createConversation",
	}
	core.ApplyConversationReference(activity, reference, true)
	activity.ID = util.NewID()
	activity.Conversation = core.ConversationAccount{ID: created.ID, TenantID: reference.Conversation.TenantID}
	if created.ServiceURL != "" {
		activity.ServiceURL = created.ServiceURL
	}
	return a.ProcessActivityDirect(ctx, activity, logic)
}

// marshalValue encodes v into the raw JSON shape activity values carry.
func marshalValue(v any) (json.RawMessage, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal activity value: %w", err)
	}
	return encoded, nil
}
