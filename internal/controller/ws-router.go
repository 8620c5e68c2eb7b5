package controller

import (
	"context"

	"github.com/gorilla/websocket"

	"github.com/voiceroom/server/internal/domain/fault"
	"github.com/voiceroom/server/internal/service/broadcast"
	"github.com/voiceroom/server/pkg/wsrouter"
)

func (c *controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()

	mux.Use(c.wsLoggingMw)
	mux.OnError(c.writeWSError)

	wsrouter.Handle(mux, "ALIVE", c.handleAlive)

	// seats and queue
	wsrouter.Handle(mux, "JOIN_SEAT", c.handleJoinSeat)
	wsrouter.Handle(mux, "LEAVE_SEAT", c.handleLeaveSeat)
	wsrouter.Handle(mux, "REQUEST_MIC", c.handleRequestMic)
	wsrouter.Handle(mux, "CANCEL_MIC_REQUEST", c.handleCancelMicRequest)
	wsrouter.Handle(mux, "SET_SEAT_MUTED", c.handleSetSeatMuted)
	wsrouter.Handle(mux, "SET_SEAT_LOCKED", c.handleSetSeatLocked)
	wsrouter.Handle(mux, "CHANGE_MIC_COUNT", c.handleChangeMicCount)

	// moderation
	wsrouter.Handle(mux, "BAN_MEMBER", c.handleBanMember)
	wsrouter.Handle(mux, "UNBAN_MEMBER", c.handleUnbanMember)
	wsrouter.Handle(mux, "KICK_MEMBER", c.handleKickMember)
	wsrouter.Handle(mux, "PROMOTE_MEMBER", c.handlePromoteMember)
	wsrouter.Handle(mux, "DEMOTE_MEMBER", c.handleDemoteMember)

	// chat
	wsrouter.Handle(mux, "SEND_MESSAGE", c.handleSendMessage)

	// media
	wsrouter.Handle(mux, "ADD_YOUTUBE", c.handleAddYouTube)
	wsrouter.Handle(mux, "ADD_AUDIO", c.handleAddAudio)
	wsrouter.Handle(mux, "ADD_PLAYLIST", c.handleAddPlaylist)
	wsrouter.Handle(mux, "REMOVE_MEDIA", c.handleRemoveMedia)
	wsrouter.Handle(mux, "PLAY_MEDIA", c.handlePlayMedia)
	wsrouter.Handle(mux, "PAUSE_MEDIA", c.handlePauseMedia)
	wsrouter.Handle(mux, "STOP_MEDIA", c.handleStopMedia)
	wsrouter.Handle(mux, "SEEK_MEDIA", c.handleSeekMedia)
	wsrouter.Handle(mux, "SET_VOLUME", c.handleSetVolume)
	wsrouter.Handle(mux, "REPORT_MEDIA_ERROR", c.handleReportMediaError)
	wsrouter.Handle(mux, "RESET_MEDIA", c.handleResetMedia)
	wsrouter.Handle(mux, "RATE_MEDIA", c.handleRateMedia)
	wsrouter.Handle(mux, "GRANT_CONTROL", c.handleGrantControl)

	return mux
}

func (c controller) wsLoggingMw(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
	return func(ctx context.Context, conn *websocket.Conn, payload any) error {
		c.logger.DebugContext(ctx, "ws message",
			"type", wsrouter.GetMessageTypeFromCtx(ctx),
			"user_id", c.getUserIDFromCtx(ctx),
			"room_id", c.getRoomIDFromCtx(ctx),
		)

		return next(ctx, conn, payload)
	}
}

type errorPayload struct {
	Kind    fault.Kind `json:"kind"`
	Message string     `json:"message"`
	Command string     `json:"command,omitempty"`
}

// writeWSError reports a rejected command back to its sender only; the
// rest of the room never sees it.
func (c controller) writeWSError(ctx context.Context, conn *websocket.Conn, err error) {
	kind := fault.KindOf(err)
	if kind == fault.KindInvariant {
		c.logger.ErrorContext(ctx, "command failed", "error", err)
	}

	message := err.Error()
	if kind == fault.KindInvariant {
		message = "internal error"
	}

	if werr := c.gateway.SendToConn(ctx, conn, broadcast.NewEvent("error", errorPayload{
		Kind:    kind,
		Message: message,
		Command: wsrouter.GetMessageTypeFromCtx(ctx),
	})); werr != nil {
		c.logger.DebugContext(ctx, "failed to write error to conn", "error", werr)
	}
}
