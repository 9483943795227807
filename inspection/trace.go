package inspection

import (
	"encoding/json"

	"github.com/hupe1980/botmesh/core"
)

// Trace value types understood by debugging surfaces such as the emulator.
const (
	ActivityValueType  = "https://www.botframework.com/schemas/activity"
	BotStateValueType  = "https://www.botframework.com/schemas/botState"
	ErrorValueType     = "https://www.botframework.com/schemas/error"
	ReferenceValueType = "https://www.botframework.com/schemas/conversationReference"
)

// TraceFromActivity wraps an activity in a trace carrying it as the value.
func TraceFromActivity(activity *core.Activity, name, label string) *core.Activity {
	value, _ := json.Marshal(activity)
	return &core.Activity{
		Type:      core.ActivityTypeTrace,
		Name:      name,
		Label:     label,
		ValueType: ActivityValueType,
		Value:     value,
	}
}

// TraceFromReference wraps the reference of a deleted activity in a
// trace. Only the reference survives a delete, so that is what the
// debugging surface gets.
func TraceFromReference(reference *core.ConversationReference) *core.Activity {
	value, _ := json.Marshal(reference)
	return &core.Activity{
		Type:      core.ActivityTypeTrace,
		Name:      "Deleted Message",
		Label:     "MessageDelete",
		ValueType: ReferenceValueType,
		Value:     value,
	}
}

// TraceFromState wraps a snapshot of the bot's durable state in a trace.
func TraceFromState(botState map[string]any) *core.Activity {
	value, _ := json.Marshal(botState)
	return &core.Activity{
		Type:      core.ActivityTypeTrace,
		Name:      "BotState",
		Label:     "Bot State",
		ValueType: BotStateValueType,
		Value:     value,
	}
}

// TraceFromError wraps a turn error message in a trace.
func TraceFromError(message string) *core.Activity {
	value, _ := json.Marshal(message)
	return &core.Activity{
		Type:      core.ActivityTypeTrace,
		Name:      "Turn Error",
		Label:     "Turn Error",
		ValueType: ErrorValueType,
		Value:     value,
	}
}
