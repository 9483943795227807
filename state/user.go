package state

import (
	"fmt"

	"github.com/hupe1980/botmesh/core"
)

// NewUserState returns the scope persisting per-user data under
// "{channelId}/users/{userId}". The user id comes from the inbound
// activity's from field.
func NewUserState(storage core.Storage) *Scope {
	return NewScope(storage, "UserState", func(tc *core.TurnContext) (string, error) {
		activity := tc.Activity()
		if activity == nil || activity.ChannelID == "" {
			return "", &core.ValidationError{Op: "UserState", Reason: "missing activity.channelId"}
		}
		if activity.From.ID == "" {
			return "", &core.ValidationError{Op: "UserState", Reason: "missing activity.from.id"}
		}
		return fmt.Sprintf("%s/users/%s", activity.ChannelID, activity.From.ID), nil
	})
}
