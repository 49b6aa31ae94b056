package coordinator

import (
	"context"
	"encoding/json"
	"errors"

	"collabboard/internal/permission"
	"collabboard/internal/recorder"
	"collabboard/internal/services/message"
)

// SendMessage stores a chat message and then delivers it, with its server
// id and timestamp, to the whole room including the author.
func (c *Coordinator) SendMessage(ctx context.Context, connID, roomID, text string) (*message.Message, error) {
	var a actor
	err := c.do(ctx, connID, roomID, permission.ActionChat, false, func(got actor, _ *member) error {
		a = got
		return nil
	})
	if err != nil {
		return nil, err
	}

	msg, err := c.messages.Create(ctx, message.NewMessage{
		RoomID:   a.roomID,
		UserID:   a.userID,
		UserName: a.userName,
		Text:     text,
		Type:     message.TypeText,
	})
	if errors.Is(err, message.ErrInvalidMessage) {
		return nil, err
	}
	if err != nil {
		return nil, &PersistenceError{Op: "send message", Err: err}
	}

	a.room(func(rs *roomState) {
		rs.broadcast(ChatMessage{
			ID:        msg.ID,
			RoomID:    msg.RoomID,
			Text:      msg.Text,
			UserName:  msg.UserName,
			UserID:    msg.UserID,
			CreatedAt: msg.CreatedAt,
		}, "")
		c.rec.Append(a.roomID, recorder.KindChat, recorder.ChatEntry{Text: msg.Text, UserName: msg.UserName}, msg.UserID)
	})
	return msg, nil
}

// SetTyping is shown to the other members only and never stored.
func (c *Coordinator) SetTyping(ctx context.Context, connID, roomID string, isTyping bool) error {
	return c.do(ctx, connID, roomID, permission.ActionTyping, false, func(a actor, m *member) error {
		a.rs.broadcast(Typing{UserID: m.userID, UserName: m.userName, IsTyping: isTyping}, a.connID)
		return nil
	})
}

// React is delivered to the whole room. Reactions are neither stored nor
// recorded.
func (c *Coordinator) React(ctx context.Context, connID, roomID, messageID, emoji string) error {
	return c.do(ctx, connID, roomID, permission.ActionReaction, false, func(a actor, m *member) error {
		a.rs.broadcast(Reaction{MessageID: messageID, Emoji: emoji, UserID: m.userID, UserName: m.userName}, "")
		return nil
	})
}

// ShareFile announces an uploaded file to the other members. The file
// descriptor is passed through untouched.
func (c *Coordinator) ShareFile(ctx context.Context, connID, roomID string, file json.RawMessage) error {
	return c.do(ctx, connID, roomID, permission.ActionChat, false, func(a actor, m *member) error {
		a.rs.broadcast(FileShared{File: file, UserName: m.userName}, a.connID)
		return nil
	})
}
