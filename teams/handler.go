package teams

import (
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/botmesh/core"
	"github.com/hupe1980/botmesh/handler"
)

// Handler routes Teams-specific invokes and conversation events on top of
// the base activity handler. Every invoke hook is optional; a missing hook
// answers 501 and a structurally broken payload answers 400, both as
// proper envelopes rather than turn failures.
//
// Hooks receive the invoke value as parsed JSON (gjson.Result) so channel
// payload shapes stay out of the public type surface.
type Handler struct {
	*handler.ActivityHandler

	roster RosterClient

	OnSigninVerifyState              func(tc *core.TurnContext, value gjson.Result) error
	OnFileConsentAccept              func(tc *core.TurnContext, value gjson.Result) error
	OnFileConsentDecline             func(tc *core.TurnContext, value gjson.Result) error
	OnActionableMessageExecuteAction func(tc *core.TurnContext, value gjson.Result) error

	OnComposeExtensionQuery             func(tc *core.TurnContext, value gjson.Result) (any, error)
	OnComposeExtensionQueryLink         func(tc *core.TurnContext, value gjson.Result) (any, error)
	OnComposeExtensionSelectItem        func(tc *core.TurnContext, value gjson.Result) (any, error)
	OnComposeExtensionSubmitAction      func(tc *core.TurnContext, value gjson.Result) (any, error)
	OnComposeExtensionEditPreview       func(tc *core.TurnContext, value gjson.Result) (any, error)
	OnComposeExtensionSendPreview       func(tc *core.TurnContext, value gjson.Result) (any, error)
	OnComposeExtensionFetchTask         func(tc *core.TurnContext, value gjson.Result) (any, error)
	OnComposeExtensionQuerySettingURL   func(tc *core.TurnContext, value gjson.Result) (any, error)
	OnComposeExtensionSetting           func(tc *core.TurnContext, value gjson.Result) error
	OnComposeExtensionCardButtonClicked func(tc *core.TurnContext, value gjson.Result) error

	OnTaskModuleFetch  func(tc *core.TurnContext, value gjson.Result) (any, error)
	OnTaskModuleSubmit func(tc *core.TurnContext, value gjson.Result) (any, error)

	OnTeamsMembersAdded   func(tc *core.TurnContext, members []TeamsChannelAccount) error
	OnTeamsMembersRemoved func(tc *core.TurnContext, members []TeamsChannelAccount) error
	OnChannelCreated      func(tc *core.TurnContext, channel gjson.Result) error
	OnChannelDeleted      func(tc *core.TurnContext, channel gjson.Result) error
	OnChannelRenamed      func(tc *core.TurnContext, channel gjson.Result) error
	OnTeamRenamed         func(tc *core.TurnContext, team gjson.Result) error
}

// NewHandler wires a Teams handler over a fresh base handler. The roster
// client may be nil, in which case member hooks see unenriched accounts.
func NewHandler(roster RosterClient) *Handler {
	h := &Handler{
		ActivityHandler: &handler.ActivityHandler{},
		roster:          roster,
	}
	h.ActivityHandler.OnInvoke = h.dispatchInvoke
	h.ActivityHandler.OnMembersAdded = h.dispatchMembersAdded
	h.ActivityHandler.OnMembersRemoved = h.dispatchMembersRemoved
	h.ActivityHandler.OnConversationUpdate = h.dispatchTeamsConversationUpdate
	return h
}

// dispatchInvoke maps an invoke name to its hook. Unknown names and
// missing hooks yield ErrNotImplemented, which the base translates into a
// 501 envelope.
func (h *Handler) dispatchInvoke(tc *core.TurnContext) (*core.InvokeResponse, error) {
	activity := tc.Activity()
	value := gjson.ParseBytes(activity.Value)

	switch activity.Name {
	case "signin/verifyState":
		return emptyResponse(h.OnSigninVerifyState, tc, value)

	case "fileConsent/invoke":
		switch value.Get("action").String() {
		case "accept":
			return emptyResponse(h.OnFileConsentAccept, tc, value)
		case "decline":
			return emptyResponse(h.OnFileConsentDecline, tc, value)
		default:
			return nil, core.ErrBadRequest
		}

	case "actionableMessage/executeAction":
		return emptyResponse(h.OnActionableMessageExecuteAction, tc, value)

	case "composeExtension/query":
		return bodyResponse(h.OnComposeExtensionQuery, tc, value)
	case "composeExtension/queryLink":
		return bodyResponse(h.OnComposeExtensionQueryLink, tc, value)
	case "composeExtension/selectItem":
		return bodyResponse(h.OnComposeExtensionSelectItem, tc, value)

	case "composeExtension/submitAction":
		switch value.Get("botMessagePreviewAction").String() {
		case "":
			return bodyResponse(h.OnComposeExtensionSubmitAction, tc, value)
		case "edit":
			return bodyResponse(h.OnComposeExtensionEditPreview, tc, value)
		case "send":
			return bodyResponse(h.OnComposeExtensionSendPreview, tc, value)
		default:
			return nil, core.ErrBadRequest
		}

	case "composeExtension/fetchTask":
		return bodyResponse(h.OnComposeExtensionFetchTask, tc, value)
	case "composeExtension/querySettingUrl":
		return bodyResponse(h.OnComposeExtensionQuerySettingURL, tc, value)
	case "composeExtension/setting":
		return emptyResponse(h.OnComposeExtensionSetting, tc, value)
	case "composeExtension/onCardButtonClicked":
		return emptyResponse(h.OnComposeExtensionCardButtonClicked, tc, value)

	case "task/fetch":
		return bodyResponse(h.OnTaskModuleFetch, tc, value)
	case "task/submit":
		return bodyResponse(h.OnTaskModuleSubmit, tc, value)

	default:
		return nil, core.ErrNotImplemented
	}
}

func (h *Handler) dispatchMembersAdded(tc *core.TurnContext, members []core.ChannelAccount) error {
	if h.OnTeamsMembersAdded == nil {
		return nil
	}
	upgraded, err := upgradeAccounts(tc, h.roster, members)
	if err != nil {
		return err
	}
	return h.OnTeamsMembersAdded(tc, upgraded)
}

func (h *Handler) dispatchMembersRemoved(tc *core.TurnContext, members []core.ChannelAccount) error {
	if h.OnTeamsMembersRemoved == nil {
		return nil
	}
	upgraded, err := upgradeAccounts(tc, h.roster, members)
	if err != nil {
		return err
	}
	return h.OnTeamsMembersRemoved(tc, upgraded)
}

// dispatchTeamsConversationUpdate routes Teams channel lifecycle events by
// the channelData event discriminator. Events without a hook fall through
// silently, matching the base handler's nil-hook behavior.
func (h *Handler) dispatchTeamsConversationUpdate(tc *core.TurnContext) error {
	activity := tc.Activity()
	channel := gjson.GetBytes(activity.ChannelData, "channel")
	team := gjson.GetBytes(activity.ChannelData, "team")

	switch eventType(activity) {
	case "channelCreated":
		return callEvent(h.OnChannelCreated, tc, channel)
	case "channelDeleted":
		return callEvent(h.OnChannelDeleted, tc, channel)
	case "channelRenamed":
		return callEvent(h.OnChannelRenamed, tc, channel)
	case "teamRenamed":
		return callEvent(h.OnTeamRenamed, tc, team)
	default:
		return nil
	}
}

func emptyResponse(hook func(tc *core.TurnContext, value gjson.Result) error, tc *core.TurnContext, value gjson.Result) (*core.InvokeResponse, error) {
	if hook == nil {
		return nil, core.ErrNotImplemented
	}
	if err := hook(tc, value); err != nil {
		return nil, err
	}
	return &core.InvokeResponse{Status: http.StatusOK}, nil
}

func bodyResponse(hook func(tc *core.TurnContext, value gjson.Result) (any, error), tc *core.TurnContext, value gjson.Result) (*core.InvokeResponse, error) {
	if hook == nil {
		return nil, core.ErrNotImplemented
	}
	body, err := hook(tc, value)
	if err != nil {
		return nil, err
	}
	return &core.InvokeResponse{Status: http.StatusOK, Body: body}, nil
}

func callEvent(hook func(tc *core.TurnContext, value gjson.Result) error, tc *core.TurnContext, value gjson.Result) error {
	if hook == nil {
		return nil
	}
	return hook(tc, value)
}
