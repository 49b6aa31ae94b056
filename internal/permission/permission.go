// Package permission holds the role policy consulted by every mutating room
// operation.
package permission

type Role string

const (
	RoleHost        Role = "host"
	RoleParticipant Role = "participant"
	RoleObserver    Role = "observer"
)

type Action string

const (
	ActionDraw     Action = "draw"
	ActionDelta    Action = "delta"
	ActionBatch    Action = "batch"
	ActionUndo     Action = "undo"
	ActionRedo     Action = "redo"
	ActionSave     Action = "save"
	ActionClear    Action = "clear"
	ActionSettings Action = "settings"
	ActionKick     Action = "kick"
	ActionChat     Action = "chat"
	ActionTyping   Action = "typing"
	ActionReaction Action = "reaction"
	ActionCursor   Action = "cursor"
	ActionScreen   Action = "screen-share"
)

// Settings is the subset of the room aggregate the policy depends on.
type Settings struct {
	IsActive       bool
	IsLocked       bool
	DrawingEnabled bool
}

// Allowed reports whether role may perform action under settings.
// Unknown roles and actions are denied.
func Allowed(role Role, action Action, settings Settings) bool {
	switch action {
	case ActionDraw, ActionDelta, ActionBatch, ActionUndo, ActionRedo, ActionSave:
		switch role {
		case RoleHost:
			return true
		case RoleParticipant:
			return settings.DrawingEnabled
		}
		return false
	case ActionClear, ActionSettings, ActionKick:
		return role == RoleHost
	case ActionChat, ActionTyping, ActionReaction, ActionCursor, ActionScreen:
		return role == RoleHost || role == RoleParticipant || role == RoleObserver
	}
	return false
}

// IsDrawClass reports whether denials of action are dropped without telling
// the requester.
func IsDrawClass(action Action) bool {
	switch action {
	case ActionDraw, ActionDelta, ActionBatch, ActionUndo, ActionRedo, ActionSave:
		return true
	}
	return false
}
