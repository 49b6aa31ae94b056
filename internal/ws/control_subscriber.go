package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RoomControlPattern matches the per-room control channels
// "room:<roomID>:control" the room-management layer publishes on.
const RoomControlPattern = "room:*:control"

const ActionDelete = "delete"

// ControlMessage is the payload of a room control channel.
type ControlMessage struct {
	Action string `json:"action"`
}

// RoomDeleter is the coordinator side of a hard delete.
type RoomDeleter interface {
	ForceDelete(roomID string) int
}

// ControlChannel returns the control channel of roomID.
func ControlChannel(roomID string) string { return "room:" + roomID + ":control" }

// PublishRoomDelete asks every subscribed coordinator to evict the room.
func PublishRoomDelete(ctx context.Context, rdb *redis.Client, roomID string) error {
	payload, err := json.Marshal(ControlMessage{Action: ActionDelete})
	if err != nil {
		return err
	}
	return rdb.Publish(ctx, ControlChannel(roomID), payload).Err()
}

// SubscribeRoomControl applies control messages published by the
// room-management layer until ctx is done.
func SubscribeRoomControl(ctx context.Context, rdb *redis.Client, rooms RoomDeleter) {
	pubsub := rdb.PSubscribe(ctx, RoomControlPattern)
	defer pubsub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			if err := applyControl(rooms, m.Channel, m.Payload); err != nil {
				zap.L().Warn("ws.control", zap.String("channel", m.Channel), zap.Error(err))
			}
		}
	}
}

func applyControl(rooms RoomDeleter, channel, payload string) error {
	// channel format: "room:<roomID>:control"
	parts := strings.Split(channel, ":")
	if len(parts) != 3 || parts[1] == "" {
		return fmt.Errorf("unexpected channel %q", channel)
	}
	var msg ControlMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return err
	}
	switch msg.Action {
	case ActionDelete:
		n := rooms.ForceDelete(parts[1])
		zap.L().Info("ws.control.deleted", zap.String("room_id", parts[1]), zap.Int("evicted", n))
		return nil
	}
	return fmt.Errorf("unknown action %q", msg.Action)
}
