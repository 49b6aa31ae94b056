package roomhandler

import (
	"context"
	"crypto/subtle"
	"net/http"

	"collabboard/internal/auth"
	"collabboard/internal/coordinator"
	"collabboard/internal/recorder"
	"collabboard/internal/services/identity"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ControlTokenHeader carries the shared secret of the room-management layer.
const ControlTokenHeader = "X-Control-Token"

const identityKey = "identity"

// Rooms is the read and evict surface of the coordinator.
type Rooms interface {
	RecordingOf(roomID string) ([]recorder.Record, bool)
	Participants(roomID string) []coordinator.Member
	ForceDelete(roomID string) int
}

type Admitter interface {
	Admit(ctx context.Context, c auth.Credential) (*identity.Identity, error)
}

type Handler struct {
	rooms        Rooms
	gate         Admitter
	cookieName   string
	controlToken string
}

func New(rooms Rooms, gate Admitter, cookieName, controlToken string) *Handler {
	return &Handler{rooms: rooms, gate: gate, cookieName: cookieName, controlToken: controlToken}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/rooms/:id/recording", h.authenticated, h.recording)
	r.GET("/rooms/:id/participants", h.authenticated, h.participants)
	r.POST("/internal/rooms/:id/force-delete", h.force)
}

func (h *Handler) authenticated(ginCtx *gin.Context) {
	who, err := h.gate.Admit(ginCtx.Request.Context(), auth.CredentialFromRequest(ginCtx.Request, h.cookieName))
	if err != nil {
		ginCtx.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
		return
	}
	ginCtx.Set(identityKey, who)
	ginCtx.Next()
}

// recording exports the session log of a room.
func (h *Handler) recording(ginCtx *gin.Context) {
	var uri RoomURI
	if err := ginCtx.ShouldBindUri(&uri); err != nil {
		ginCtx.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	id := coordinator.NormalizeRoomID(uri.ID)
	log, ok := h.rooms.RecordingOf(id)
	if !ok {
		ginCtx.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}
	who := ginCtx.MustGet(identityKey).(*identity.Identity)
	zap.L().Debug("http.recording", zap.String("room_id", id), zap.String("user_id", who.ID), zap.Int("records", len(log)))
	ginCtx.JSON(http.StatusOK, RecordingResponse{RoomID: id, Recording: log})
}

// participants lists the live connections of a room.
func (h *Handler) participants(ginCtx *gin.Context) {
	var uri RoomURI
	if err := ginCtx.ShouldBindUri(&uri); err != nil {
		ginCtx.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	id := coordinator.NormalizeRoomID(uri.ID)
	ginCtx.JSON(http.StatusOK, ParticipantsResponse{RoomID: id, Participants: h.rooms.Participants(id)})
}

// force is called by the room-management layer after it hard-deleted a
// room. Repeated calls answer 200 with zero evictions.
func (h *Handler) force(ginCtx *gin.Context) {
	token := ginCtx.GetHeader(ControlTokenHeader)
	if h.controlToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.controlToken)) != 1 {
		ginCtx.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
		return
	}
	var uri RoomURI
	if err := ginCtx.ShouldBindUri(&uri); err != nil {
		ginCtx.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	id := coordinator.NormalizeRoomID(uri.ID)
	n := h.rooms.ForceDelete(id)
	zap.L().Info("http.force_delete", zap.String("room_id", id), zap.Int("evicted", n))
	ginCtx.JSON(http.StatusOK, ForceDeleteResponse{RoomID: id, Evicted: n})
}
