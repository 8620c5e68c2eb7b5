package controller

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/voiceroom/server/internal/service/room"
)

// serveRoom is the realtime entry point: identify the user, upgrade,
// hand the connection to the room service (which sends the snapshot and
// announces the join), then pump commands until the socket dies.
func (c controller) serveRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room-id")
	if roomID == "" {
		c.logger.DebugContext(r.Context(), "empty room id")
		http.Error(w, "room id is required", http.StatusBadRequest)
		return
	}

	userID, err := c.getUserID(r)
	if err != nil {
		c.logger.DebugContext(r.Context(), "failed to get user id", "error", err)
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	if _, err := c.roomService.JoinRoom(r.Context(), &room.JoinRoomParams{
		Conn:   conn,
		UserID: userID,
		RoomID: roomID,
	}); err != nil {
		c.logger.DebugContext(r.Context(), "failed to join room", "error", err)
		c.writeWSError(r.Context(), conn, err)
		conn.Close()
		return
	}

	ctx := context.WithValue(r.Context(), roomIDCtxKey, roomID)
	ctx = context.WithValue(ctx, userIDCtxKey, userID)

	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		c.logger.DebugContext(r.Context(), "conn closed", "user_id", userID, "error", err)
	}

	if err := c.roomService.Disconnect(context.WithoutCancel(ctx), conn); err != nil {
		c.logger.WarnContext(r.Context(), "failed to disconnect", "user_id", userID, "error", err)
	}
}
