package teams

import (
	"context"

	"github.com/hupe1980/botmesh/core"
)

// TeamsProfile is the directory detail Teams exposes beyond the basic
// channel account.
type TeamsProfile struct {
	GivenName         string `json:"givenName,omitempty"`
	Surname           string `json:"surname,omitempty"`
	Email             string `json:"email,omitempty"`
	UserPrincipalName string `json:"userPrincipalName,omitempty"`
	TenantID          string `json:"tenantId,omitempty"`
}

// TeamsChannelAccount is a channel account that may carry a Teams profile.
// Enriched states explicitly whether the roster upgrade happened; callers
// must check it instead of probing profile fields for emptiness.
type TeamsChannelAccount struct {
	core.ChannelAccount
	Enriched bool
	Profile  TeamsProfile
}

// RosterClient looks up the Teams roster for a conversation. The handler
// uses it to upgrade plain channel accounts from conversationUpdate
// payloads, which Teams sends with ids only.
type RosterClient interface {
	GetConversationRoster(ctx context.Context, conversationID string) ([]TeamsChannelAccount, error)
}

// rosterCacheKey holds the roster fetched during the turn, so several
// member hooks in one turn cost a single lookup.
var rosterCacheKey = core.NewTurnStateKey("teamsRosterCache")

// upgradeAccounts resolves members against the conversation roster. A
// member missing from the roster is passed through unenriched rather than
// dropped.
func upgradeAccounts(tc *core.TurnContext, roster RosterClient, members []core.ChannelAccount) ([]TeamsChannelAccount, error) {
	byID, ok := tc.TurnState().Get(rosterCacheKey).(map[string]TeamsChannelAccount)
	if !ok {
		byID = map[string]TeamsChannelAccount{}
		if roster != nil {
			accounts, err := roster.GetConversationRoster(tc.Context, tc.Activity().Conversation.ID)
			if err != nil {
				return nil, err
			}
			for _, account := range accounts {
				byID[account.ID] = account
			}
		}
		tc.TurnState().Set(rosterCacheKey, byID)
	}

	upgraded := make([]TeamsChannelAccount, len(members))
	for i, member := range members {
		if account, ok := byID[member.ID]; ok {
			upgraded[i] = account
			upgraded[i].Enriched = true
			continue
		}
		upgraded[i] = TeamsChannelAccount{ChannelAccount: member}
	}
	return upgraded, nil
}
