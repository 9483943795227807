package adapter

import (
	"context"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/botmesh/core"
	"github.com/hupe1980/botmesh/internal/util"
)

// OAuthCardContentType marks an attachment as a sign-in card. Sending one
// arms the background token poller for the card's connection.
const OAuthCardContentType = "application/vnd.microsoft.card.oauth"

const (
	defaultPollingTimeout  = 900 * time.Second
	defaultPollingInterval = time.Second
)

// pollState is the poller's loop state between two probe attempts.
type pollState struct {
	interval time.Duration
	deadline time.Time
}

// pollAction is the poller's next move after one probe.
type pollAction int

const (
	// pollWait sleeps for the current interval and probes again.
	pollWait pollAction = iota
	// pollEmit delivers the obtained token and stops.
	pollEmit
	// pollStop gives up without a token.
	pollStop
)

// pollTransition is the poller's pure step function: given the loop state
// and the latest probe result it decides the next action and the updated
// state. Keeping it side-effect free makes the termination rules testable
// without timers.
func pollTransition(state pollState, response *core.TokenResponse, now time.Time) (pollState, pollAction) {
	if !now.Before(state.deadline) {
		return state, pollStop
	}
	if response == nil {
		return state, pollWait
	}
	if response.Token != "" {
		return state, pollEmit
	}
	if settings := response.PollingSettings; settings != nil {
		if settings.Timeout <= 0 {
			return state, pollStop
		}
		if settings.Interval > 0 {
			state.interval = time.Duration(settings.Interval) * time.Millisecond
		}
	}
	return state, pollWait
}

// checkForOAuthCards arms the token poller for every OAuth card on an
// outbound activity. The poller runs detached from the turn: it captures
// only the conversation reference and the logic callback, never the turn
// context itself.
func (a *Adapter) checkForOAuthCards(tc *core.TurnContext, activity *core.Activity) {
	if a.tokenProvider == nil || len(activity.Attachments) == 0 {
		return
	}
	logic, ok := tc.TurnState().Get(core.CallbackHandlerKey).(core.TurnLogic)
	if !ok {
		return
	}
	inbound := tc.Activity()
	if inbound.From.ID == "" {
		return
	}

	timeout := defaultPollingTimeout
	if settings, ok := tc.TurnState().Get(core.TokenPollingSettingsKey).(*core.TokenPollingSettings); ok && settings.Timeout > 0 {
		timeout = time.Duration(settings.Timeout) * time.Millisecond
	}

	for _, attachment := range activity.Attachments {
		if attachment.ContentType != OAuthCardContentType {
			continue
		}
		connectionName := gjson.GetBytes(attachment.Content, "connectionName").String()
		if connectionName == "" {
			a.logger.Warn("oauth card without connection name, not polling")
			continue
		}
		go a.pollForToken(
			core.GetConversationReference(inbound),
			inbound.From.ID,
			inbound.ChannelID,
			connectionName,
			timeout,
			logic,
		)
	}
}

// pollForToken probes the token provider until a token appears, the
// service tells it to stop, or the deadline passes. A token is delivered
// back into the bot as a synthetic tokens/response event through the full
// pipeline.
func (a *Adapter) pollForToken(reference *core.ConversationReference, userID, channelID, connectionName string, timeout time.Duration, logic core.TurnLogic) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(timeout))
	defer cancel()

	state := pollState{interval: defaultPollingInterval, deadline: time.Now().Add(timeout)}
	for {
		response, err := a.tokenProvider.GetUserToken(ctx, userID, connectionName, channelID, "")
		if err != nil {
			a.logger.Warn("token poll failed connection_name=%s error=%v", connectionName, err)
			response = nil
		}

		var action pollAction
		state, action = pollTransition(state, response, time.Now())
		switch action {
		case pollEmit:
			a.emitTokenResponse(ctx, reference, response, logic)
			return
		case pollStop:
			a.logger.Debug("token polling ended without token connection_name=%s", connectionName)
			return
		}

		timer := time.NewTimer(state.interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
		timer.Stop()
	}
}

func (a *Adapter) emitTokenResponse(ctx context.Context, reference *core.ConversationReference, response *core.TokenResponse, logic core.TurnLogic) {
	value, err := marshalValue(response)
	if err != nil {
		a.logger.Error("token response not deliverable error=%v", err)
		return
	}
	activity := &core.Activity{
		Type:  core.ActivityTypeEvent,
		Name:  "tokens/response",
		Value: value,
	}
	core.ApplyConversationReference(activity, reference, true)
	activity.ID = util.NewID()
	if err := a.ProcessActivityDirect(ctx, activity, logic); err != nil {
		a.logger.Error("token response turn failed error=%v", err)
	}
}
