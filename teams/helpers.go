package teams

import (
	"github.com/tidwall/gjson"

	"github.com/hupe1980/botmesh/core"
)

// GetTeamID returns the team id from an activity's channel data, or the
// empty string outside a team context.
func GetTeamID(activity *core.Activity) string {
	if len(activity.ChannelData) == 0 {
		return ""
	}
	return gjson.GetBytes(activity.ChannelData, "team.id").String()
}

// GetTeamsChannelID returns the Teams channel id from an activity's
// channel data. Empty in personal and group chats.
func GetTeamsChannelID(activity *core.Activity) string {
	if len(activity.ChannelData) == 0 {
		return ""
	}
	return gjson.GetBytes(activity.ChannelData, "channel.id").String()
}

// eventType returns the Teams conversationUpdate event discriminator.
func eventType(activity *core.Activity) string {
	if len(activity.ChannelData) == 0 {
		return ""
	}
	return gjson.GetBytes(activity.ChannelData, "eventType").String()
}
