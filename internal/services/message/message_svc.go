package message

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	TypeText   = "text"
	TypeSystem = "system"
	TypeFile   = "file"
)

type Message struct {
	ID        string    `json:"_id"`
	RoomID    string    `json:"roomId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Text      string    `json:"text"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

type NewMessage struct {
	RoomID   string `validate:"required"`
	UserID   string `validate:"required"`
	UserName string `validate:"required"`
	Text     string `validate:"required,max=2000"`
	Type     string `validate:"omitempty,oneof=text system file"`
}

var ErrInvalidMessage = errors.New("invalid message")

type IMessageService interface {
	Create(ctx context.Context, m NewMessage) (*Message, error)
	Recent(ctx context.Context, roomID string, limit int) ([]Message, error)
}

type messageService struct {
	db       *sql.DB
	validate *validator.Validate
	now      func() time.Time
}

func NewMessageService(db *sql.DB) IMessageService {
	return &messageService{
		db:       db,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (svc *messageService) Create(ctx context.Context, in NewMessage) (*Message, error) {
	if err := svc.validate.Struct(in); err != nil {
		return nil, errors.Join(ErrInvalidMessage, err)
	}
	if in.Type == "" {
		in.Type = TypeText
	}
	msg := &Message{
		ID:        uuid.NewString(),
		RoomID:    in.RoomID,
		UserID:    in.UserID,
		UserName:  in.UserName,
		Text:      in.Text,
		Type:      in.Type,
		CreatedAt: svc.now(),
	}
	const ins = `INSERT INTO messages (id, room_id, user_id, user_name, text, type, created_at)
	             VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := svc.db.ExecContext(ctx, ins,
		msg.ID, msg.RoomID, msg.UserID, msg.UserName, msg.Text, msg.Type, msg.CreatedAt); err != nil {
		return nil, err
	}
	return msg, nil
}

// Recent returns the newest limit messages of a room, oldest first.
func (svc *messageService) Recent(ctx context.Context, roomID string, limit int) ([]Message, error) {
	if limit <= 0 {
		return []Message{}, nil
	}
	const q = `SELECT id, room_id, user_id, user_name, text, type, created_at
	             FROM messages WHERE room_id = $1
	            ORDER BY created_at DESC LIMIT $2`
	rows, err := svc.db.QueryContext(ctx, q, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]Message, 0, limit)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.UserID, &m.UserName, &m.Text, &m.Type, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return list, nil
}
