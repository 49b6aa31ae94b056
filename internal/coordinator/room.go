package coordinator

import (
	"sort"
	"sync"

	"collabboard/internal/canvas"
	"collabboard/internal/metrics"
	"collabboard/internal/permission"
)

type member struct {
	conn     Conn
	userID   string
	userName string
	avatar   string
	role     permission.Role
	cursor   *canvas.Point
	seq      uint64
}

// roomState is the live presence of one room. A roomState leaves the
// registry only while both the coordinator and room mutex are held, and is
// marked closed at that moment.
type roomState struct {
	id string

	mu       sync.Mutex
	members  map[string]*member // connection id -> member
	seq      uint64
	settings permission.Settings
	closed   bool
}

func newRoomState(id string) *roomState {
	return &roomState{id: id, members: make(map[string]*member)}
}

// roster returns the members in join order.
func (rs *roomState) roster() []Member {
	ms := make([]*member, 0, len(rs.members))
	for _, m := range rs.members {
		ms = append(ms, m)
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i].seq < ms[j].seq })

	out := make([]Member, len(ms))
	for i, m := range ms {
		out[i] = Member{
			SocketID: m.conn.ID(),
			UserID:   m.userID,
			UserName: m.userName,
			Avatar:   m.avatar,
			Role:     m.role,
		}
		if m.cursor != nil {
			p := *m.cursor
			out[i].Cursor = &p
		}
	}
	return out
}

// broadcast sends evt to every member except the connection except.
// Delivery is at-most-once.
func (rs *roomState) broadcast(evt Event, except string) {
	for id, m := range rs.members {
		if id == except {
			continue
		}
		send(m.conn, evt)
	}
}

func send(c Conn, evt Event) {
	if !c.Send(evt) {
		metrics.FramesDropped.Inc()
	}
}
