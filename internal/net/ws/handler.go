// Package ws carries websocket sessions: upgrade, the join handshake,
// and per-kind dispatch of inbound messages into the room.
package ws

import (
	"encoding/json"
	"errors"
	nethttp "net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Xyzrr/virtual-office-server/internal/net/proto"
	"github.com/Xyzrr/virtual-office-server/internal/room"
)

const writeWait = 10 * time.Second

// Handler terminates websocket connections and routes their messages.
type Handler struct {
	manager  *room.Manager
	logger   *zap.SugaredLogger
	upgrader websocket.Upgrader
}

// NewHandler constructs a handler backed by the given room manager.
func NewHandler(manager *room.Manager, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		manager: manager,
		logger:  logger.Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *nethttp.Request) bool {
				return true
			},
		},
	}
}

// Handle upgrades the connection and runs the session until the socket
// closes. Query params: room (required), key and label (opaque room
// tags used only when the room is first created).
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		nethttp.Error(w, "missing room", nethttp.StatusBadRequest)
		return
	}
	roomKey := r.URL.Query().Get("key")
	if roomKey == "" {
		roomKey = "default"
	}
	roomLabel := r.URL.Query().Get("label")
	if roomLabel == "" {
		roomLabel = roomID
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("upgrade failed", "room", roomID, "error", err)
		return
	}

	sessionID := uuid.NewString()
	h.serve(conn, sessionID, roomID, roomKey, roomLabel)
}

func (h *Handler) serve(conn *websocket.Conn, sessionID, roomID, roomKey, roomLabel string) {
	var rm *room.Room
	joined := false

	defer func() {
		if joined {
			rm.HandleDisconnect(sessionID)
		} else {
			conn.Close()
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg proto.ClientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Debugw("discarding malformed message", "session", sessionID, "error", err)
			continue
		}

		if !joined {
			if msg.Type != proto.MsgJoin {
				h.writeError(conn, "join required")
				continue
			}

			// Refuse a blank identity before GetOrCreate so a bad join
			// never creates a room it will leave empty.
			if msg.Identity == "" {
				h.refuseJoin(conn, sessionID, room.ErrInvalidIdentity)
				return
			}

			rm = h.manager.GetOrCreate(roomID, roomKey, roomLabel)
			_, err := rm.Join(sessionID, msg.Identity, room.JoinAttributes{
				Name:          msg.Name,
				AudioInputOn:  msg.AudioInputOn,
				VideoInputOn:  msg.VideoInputOn,
				ScreenShareOn: msg.ScreenShareOn,
			})
			if err != nil {
				h.refuseJoin(conn, sessionID, err)
				return
			}
			joined = true

			// Attach registers the subscriber and writes the welcome;
			// from here every frame to this connection goes through
			// the subscriber's write lock.
			if err := rm.Attach(sessionID, conn); err != nil {
				return
			}
			continue
		}

		if proto.BroadcastOnly(msg.Type) {
			if err := rm.Relay(sessionID, msg.Type, msg.Data); err != nil {
				h.logger.Debugw("relay dropped", "session", sessionID, "kind", msg.Type, "error", err)
			}
			continue
		}

		switch msg.Type {
		case proto.MsgLeave:
			joined = false
			if err := rm.Leave(sessionID); err != nil {
				h.logger.Debugw("leave for unknown session", "session", sessionID, "error", err)
			}
			conn.Close()
			return
		case proto.MsgSetPosition:
			x, y, err := msg.Position()
			if err != nil {
				h.logger.Debugw("rejected payload", "session", sessionID, "kind", msg.Type, "error", err)
				continue
			}
			h.apply(sessionID, msg.Type, rm.SetPosition(sessionID, x, y))
		case proto.MsgSetDirection:
			dir, err := msg.Direction()
			if err != nil {
				h.logger.Debugw("rejected payload", "session", sessionID, "kind", msg.Type, "error", err)
				continue
			}
			h.apply(sessionID, msg.Type, rm.SetDirection(sessionID, dir))
		case proto.MsgSetSpeed:
			speed, err := msg.SpeedValue()
			if err != nil {
				h.logger.Debugw("rejected payload", "session", sessionID, "kind", msg.Type, "error", err)
				continue
			}
			h.apply(sessionID, msg.Type, rm.SetSpeed(sessionID, speed))
		case proto.MsgUpdatePlayer:
			attrs, err := msg.ParseAttributes()
			if err != nil {
				h.logger.Debugw("rejected payload", "session", sessionID, "kind", msg.Type, "error", err)
				continue
			}
			h.apply(sessionID, msg.Type, rm.MergeAttributes(sessionID, attrs))
		case proto.MsgSetCursor:
			cursor, err := msg.ParseCursor()
			if err != nil {
				h.logger.Debugw("rejected payload", "session", sessionID, "kind", msg.Type, "error", err)
				continue
			}
			h.apply(sessionID, msg.Type, rm.SetCursor(sessionID, cursor))
		case proto.MsgSetSharedApp:
			app, err := msg.ParseSharedApp()
			if err != nil {
				h.logger.Debugw("rejected payload", "session", sessionID, "kind", msg.Type, "error", err)
				continue
			}
			h.apply(sessionID, msg.Type, rm.SetSharedApp(sessionID, app))
		case proto.MsgJoin:
			h.sendError(rm, sessionID, "already joined")
		default:
			h.logger.Debugw("unknown message type", "session", sessionID, "kind", msg.Type)
		}
	}
}

// apply logs a failed mutation; the room itself is unaffected by the
// rejected call.
func (h *Handler) apply(sessionID, kind string, err error) {
	if err != nil {
		h.logger.Debugw("mutation rejected", "session", sessionID, "kind", kind, "error", err)
	}
}

func (h *Handler) refuseJoin(conn *websocket.Conn, sessionID string, err error) {
	reason := "join failed"
	switch {
	case errors.Is(err, room.ErrDuplicateIdentity):
		reason = "identity already connected"
	case errors.Is(err, room.ErrInvalidIdentity):
		reason = "invalid identity"
	case errors.Is(err, room.ErrRoomClosed):
		reason = "room closed, retry"
	}
	h.logger.Infow("join refused", "session", sessionID, "reason", reason, "error", err)
	message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage, message)
	conn.Close()
}

// writeError replies on a connection that has no subscriber yet; after
// a join the reader goroutine is no longer the only writer, so post-join
// errors go through sendError instead.
func (h *Handler) writeError(conn *websocket.Conn, reason string) {
	data := marshalError(reason)
	if data == nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.TextMessage, data)
}

// sendError replies to a joined session through its room subscriber so
// the frame cannot interleave with a concurrent broadcast.
func (h *Handler) sendError(rm *room.Room, sessionID, reason string) {
	data := marshalError(reason)
	if data == nil {
		return
	}
	if err := rm.Send(sessionID, data); err != nil {
		h.logger.Debugw("error reply dropped", "session", sessionID, "error", err)
	}
}

func marshalError(reason string) []byte {
	msg := proto.ErrorMessage{Ver: room.ProtocolVersion, Type: "error", Reason: reason}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil
	}
	return data
}
