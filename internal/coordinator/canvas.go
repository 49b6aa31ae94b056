package coordinator

import (
	"context"

	"collabboard/internal/canvas"
	"collabboard/internal/permission"
	"collabboard/internal/recorder"
)

// Draw forwards a full stroke to the other members and records it,
// replacing an earlier record with the same stroke id.
func (c *Coordinator) Draw(ctx context.Context, connID, roomID string, stroke canvas.Stroke) error {
	return c.do(ctx, connID, roomID, permission.ActionDraw, true, func(a actor, m *member) error {
		stroke.UserID = m.userID
		a.rs.broadcast(Draw{Stroke: stroke, UserID: m.userID, UserName: m.userName}, a.connID)
		c.rec.UpsertStroke(a.roomID, stroke, m.userID)
		return nil
	})
}

// DrawDelta forwards one point of an open stroke. The recorded stroke gets
// the point appended; meta seeds the record when the stroke is new.
func (c *Coordinator) DrawDelta(ctx context.Context, connID, roomID, strokeID string, p canvas.Point, meta canvas.Stroke) error {
	return c.do(ctx, connID, roomID, permission.ActionDelta, true, func(a actor, m *member) error {
		a.rs.broadcast(DrawDelta{
			StrokeID: strokeID,
			Point:    p,
			Tool:     meta.Tool,
			Color:    meta.Color,
			Size:     meta.Size,
			UserID:   m.userID,
		}, a.connID)
		meta.UserID = m.userID
		c.rec.AppendPoint(a.roomID, strokeID, p, meta, m.userID)
		return nil
	})
}

// DrawBatch forwards a set of strokes. Batches are not recorded.
func (c *Coordinator) DrawBatch(ctx context.Context, connID, roomID string, strokes []canvas.Stroke) error {
	return c.do(ctx, connID, roomID, permission.ActionBatch, true, func(a actor, m *member) error {
		a.rs.broadcast(DrawBatch{Strokes: strokes, UserID: m.userID}, a.connID)
		return nil
	})
}

func (c *Coordinator) Undo(ctx context.Context, connID, roomID, strokeID string) error {
	return c.do(ctx, connID, roomID, permission.ActionUndo, true, func(a actor, m *member) error {
		a.rs.broadcast(Undo{StrokeID: strokeID, UserID: m.userID}, a.connID)
		c.rec.Append(a.roomID, recorder.KindUndo, recorder.StrokeRef{StrokeID: strokeID}, m.userID)
		return nil
	})
}

func (c *Coordinator) Redo(ctx context.Context, connID, roomID, strokeID string) error {
	return c.do(ctx, connID, roomID, permission.ActionRedo, true, func(a actor, m *member) error {
		a.rs.broadcast(Redo{StrokeID: strokeID, UserID: m.userID}, a.connID)
		c.rec.Append(a.roomID, recorder.KindRedo, recorder.StrokeRef{StrokeID: strokeID}, m.userID)
		return nil
	})
}

// Clear wipes the board for the whole room, the requester included, and
// resets the stored canvas. Only the host may clear.
func (c *Coordinator) Clear(ctx context.Context, connID, roomID string) error {
	var target string
	err := c.do(ctx, connID, roomID, permission.ActionClear, true, func(a actor, m *member) error {
		target = a.roomID
		a.rs.broadcast(ClearBoard{UserID: m.userID}, "")
		c.rec.Append(a.roomID, recorder.KindClear, nil, m.userID)
		return nil
	})
	if err != nil {
		return err
	}
	c.persist("clear canvas", target, func(ctx context.Context) error {
		return c.rooms.ClearCanvas(ctx, target)
	})
	return nil
}

// SaveCanvas stores the snapshot in the background. Concurrent saves are
// last-write-wins.
func (c *Coordinator) SaveCanvas(ctx context.Context, connID, roomID string, snap canvas.Snapshot) error {
	var target string
	err := c.do(ctx, connID, roomID, permission.ActionSave, true, func(a actor, _ *member) error {
		target = a.roomID
		return nil
	})
	if err != nil {
		return err
	}
	c.persist("save canvas", target, func(ctx context.Context) error {
		return c.rooms.SaveCanvas(ctx, target, snap)
	})
	return nil
}
