package engine

import (
	"fmt"
	"log/slog"

	"mercator-hq/rulesengine/pkg/rules"
)

// ActionExecutor turns actions into effects. It never mutates the context
// and never performs the effect itself.
type ActionExecutor struct {
	logger *slog.Logger
}

// NewActionExecutor creates a new action executor.
func NewActionExecutor(logger *slog.Logger) *ActionExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActionExecutor{logger: logger}
}

// Execute returns the effect of an action.
// An unknown action type returns a *rules.ConfigurationError.
func (e *ActionExecutor) Execute(action rules.Action, input rules.Context) (*rules.Effect, error) {
	e.logger.Debug("executing action", "type", action.ActionType)

	switch action.ActionType {
	case rules.ActionSetValue:
		return e.executeSetValue(action), nil

	case rules.ActionEscalate:
		return e.executeEscalate(action), nil

	case rules.ActionNotify:
		return e.executeNotify(action), nil

	case rules.ActionBlock:
		return e.executeBlock(action), nil

	case rules.ActionLogEvent:
		return e.executeLogEvent(action), nil

	default:
		return nil, &rules.ConfigurationError{
			Field:   "action_type",
			Message: fmt.Sprintf("unknown action type %q", action.ActionType),
		}
	}
}

// executeSetValue proposes a value for the target field.
func (e *ActionExecutor) executeSetValue(action rules.Action) *rules.Effect {
	return &rules.Effect{
		ActionType: action.ActionType,
		Changes: map[string]interface{}{
			action.TargetField: rules.CopyValue(action.Value),
		},
	}
}

// executeEscalate passes parameters through with level and reason always present.
func (e *ActionExecutor) executeEscalate(action rules.Action) *rules.Effect {
	escalation := passthrough(action.Parameters)
	setDefault(escalation, "level", nil)
	setDefault(escalation, "reason", nil)

	return &rules.Effect{
		ActionType: action.ActionType,
		Escalation: escalation,
	}
}

// executeNotify passes parameters through with recipients and message always present.
func (e *ActionExecutor) executeNotify(action rules.Action) *rules.Effect {
	notification := passthrough(action.Parameters)
	setDefault(notification, "recipients", []interface{}{})
	setDefault(notification, "message", "")

	return &rules.Effect{
		ActionType:   action.ActionType,
		Notification: notification,
	}
}

// executeBlock blocks with the reason parameter.
func (e *ActionExecutor) executeBlock(action rules.Action) *rules.Effect {
	reason := ""
	if v, ok := action.Parameters["reason"]; ok && v != nil {
		reason = fmt.Sprint(v)
	}

	return &rules.Effect{
		ActionType:  action.ActionType,
		Blocked:     true,
		BlockReason: reason,
	}
}

// executeLogEvent records the parameters as a generic log entry.
func (e *ActionExecutor) executeLogEvent(action rules.Action) *rules.Effect {
	return &rules.Effect{
		ActionType: action.ActionType,
		Logged:     passthrough(action.Parameters),
	}
}

// passthrough copies action parameters into a fresh map.
func passthrough(params map[string]interface{}) map[string]interface{} {
	out := rules.CopyMap(params)
	if out == nil {
		out = make(map[string]interface{})
	}
	return out
}

func setDefault(m map[string]interface{}, key string, value interface{}) {
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}
