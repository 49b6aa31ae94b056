// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collab_connections_active",
		Help: "Number of admitted websocket connections",
	})

	ConnectionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collab_connections_rejected_total",
		Help: "Websocket handshakes refused by the authentication gate",
	}, []string{"reason"})

	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collab_rooms_active",
		Help: "Rooms currently held in the in-memory registry",
	})

	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collab_events_received_total",
		Help: "Inbound websocket events by name",
	}, []string{"event"})

	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collab_frames_dropped_total",
		Help: "Outbound frames dropped because the send queue was full",
	})

	PermissionDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collab_permission_denied_total",
		Help: "Mutations refused by the permission policy",
	}, []string{"action"})

	PersistenceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collab_persistence_failures_total",
		Help: "Durable writes that failed after the event was accepted",
	}, []string{"op"})

	RecordingsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collab_recordings_expired_total",
		Help: "Room registry entries reaped by the retention timer",
	})

	CanvasFlushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collab_canvas_flushed_total",
		Help: "Buffered canvases copied from Redis to Postgres",
	})
)
