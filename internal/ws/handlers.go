package ws

import (
	"context"
	"fmt"

	"collabboard/internal/canvas"
	"collabboard/internal/coordinator"
	"collabboard/internal/services/room"
)

func (s *WsServer) registerHandlers() {
	r := s.router

	// 🔹 presence --------------------------------------------------------------
	Register(r, "join-room", func(ctx context.Context, cc *ConnContext, req JoinRoomRequest) error {
		_, _, err := s.coord.Join(ctx, cc.ConnID, req.RoomID)
		return err
	})
	Register(r, "leave-room", func(ctx context.Context, cc *ConnContext, req RoomRequest) error {
		_, err := s.coord.Leave(cc.ConnID, req.RoomID)
		return err
	})
	Register(r, "cursor-move", func(ctx context.Context, cc *ConnContext, req CursorMoveRequest) error {
		return s.coord.MoveCursor(ctx, cc.ConnID, req.RoomID, req.X, req.Y)
	})

	// 🔹 canvas ----------------------------------------------------------------
	Register(r, "draw", func(ctx context.Context, cc *ConnContext, req DrawRequest) error {
		return s.coord.Draw(ctx, cc.ConnID, req.RoomID, req.Stroke)
	})
	Register(r, "draw-delta", func(ctx context.Context, cc *ConnContext, req DrawDeltaRequest) error {
		meta := canvas.Stroke{Tool: req.Tool, Color: req.Color, Size: req.Size}
		return s.coord.DrawDelta(ctx, cc.ConnID, req.RoomID, req.StrokeID, req.Point, meta)
	})
	Register(r, "draw-batch", func(ctx context.Context, cc *ConnContext, req DrawBatchRequest) error {
		return s.coord.DrawBatch(ctx, cc.ConnID, req.RoomID, req.Strokes)
	})
	Register(r, "undo", func(ctx context.Context, cc *ConnContext, req StrokeRefRequest) error {
		return s.coord.Undo(ctx, cc.ConnID, req.RoomID, req.StrokeID)
	})
	Register(r, "redo", func(ctx context.Context, cc *ConnContext, req StrokeRefRequest) error {
		return s.coord.Redo(ctx, cc.ConnID, req.RoomID, req.StrokeID)
	})
	Register(r, "clear-board", func(ctx context.Context, cc *ConnContext, req RoomRequest) error {
		return s.coord.Clear(ctx, cc.ConnID, req.RoomID)
	})
	Register(r, "save-canvas", func(ctx context.Context, cc *ConnContext, req SaveCanvasRequest) error {
		snap, err := canvas.Parse(req.CanvasData)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return s.coord.SaveCanvas(ctx, cc.ConnID, req.RoomID, snap)
	})

	// 🔹 chat ------------------------------------------------------------------
	Register(r, "chat-message", func(ctx context.Context, cc *ConnContext, req ChatMessageRequest) error {
		_, err := s.coord.SendMessage(ctx, cc.ConnID, req.RoomID, req.Text)
		return err
	})
	Register(r, "typing", func(ctx context.Context, cc *ConnContext, req TypingRequest) error {
		return s.coord.SetTyping(ctx, cc.ConnID, req.RoomID, req.IsTyping)
	})
	Register(r, "reaction", func(ctx context.Context, cc *ConnContext, req ReactionRequest) error {
		return s.coord.React(ctx, cc.ConnID, req.RoomID, req.MessageID, req.Emoji)
	})
	Register(r, "file-shared", func(ctx context.Context, cc *ConnContext, req FileSharedRequest) error {
		return s.coord.ShareFile(ctx, cc.ConnID, req.RoomID, req.File)
	})

	// 🔹 signaling -------------------------------------------------------------
	Register(r, "screen-offer", func(ctx context.Context, cc *ConnContext, req ScreenOfferRequest) error {
		return s.coord.Relay(cc.ConnID, req.RoomID, coordinator.SignalOffer, req.To, req.Offer)
	})
	Register(r, "screen-answer", func(ctx context.Context, cc *ConnContext, req ScreenAnswerRequest) error {
		return s.coord.Relay(cc.ConnID, req.RoomID, coordinator.SignalAnswer, req.To, req.Answer)
	})
	Register(r, "ice-candidate", func(ctx context.Context, cc *ConnContext, req IceCandidateRequest) error {
		return s.coord.Relay(cc.ConnID, req.RoomID, coordinator.SignalCandidate, req.To, req.Candidate)
	})
	Register(r, "screen-share-started", func(ctx context.Context, cc *ConnContext, req RoomRequest) error {
		return s.coord.ScreenShare(ctx, cc.ConnID, req.RoomID, true)
	})
	Register(r, "screen-share-stopped", func(ctx context.Context, cc *ConnContext, req RoomRequest) error {
		return s.coord.ScreenShare(ctx, cc.ConnID, req.RoomID, false)
	})

	// 🔹 recording & host controls --------------------------------------------
	Register(r, "get-recording", func(ctx context.Context, cc *ConnContext, req RoomRequest) error {
		return s.coord.Recording(cc.ConnID, req.RoomID)
	})
	Register(r, "room-update", func(ctx context.Context, cc *ConnContext, req RoomUpdateRequest) error {
		_, err := s.coord.UpdateRoom(ctx, cc.ConnID, req.RoomID, room.SettingsUpdate{
			IsLocked:       req.IsLocked,
			DrawingEnabled: req.DrawingEnabled,
		})
		return err
	})
	Register(r, "kick-user", func(ctx context.Context, cc *ConnContext, req KickUserRequest) error {
		_, err := s.coord.Kick(ctx, cc.ConnID, req.RoomID, req.UserID)
		return err
	})
}
