package controller

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/voiceroom/server/internal/domain/fault"
	"github.com/voiceroom/server/internal/domain/media"
	"github.com/voiceroom/server/internal/service/room"
	"github.com/voiceroom/server/pkg/rest"
)

func httpStatus(err error) int {
	switch fault.KindOf(err) {
	case fault.KindValidation:
		return http.StatusBadRequest
	case fault.KindPermissionDenied:
		return http.StatusForbidden
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindConflict:
		return http.StatusConflict
	}

	return http.StatusInternalServerError
}

func (c controller) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatus(err)
	if status == http.StatusInternalServerError {
		c.logger.ErrorContext(r.Context(), "request failed", "error", err)
		rest.WriteJSON(w, status, rest.Envelope{"error": "internal error"})
		return
	}

	rest.WriteJSON(w, status, rest.Envelope{
		"error": err.Error(),
		"kind":  fault.KindOf(err),
	})
}

type createRoomRequest struct {
	Title     string `json:"title" validate:"required,max=64"`
	TotalMics int    `json:"total_mics" validate:"required,oneof=2 6 12 16 20"`
	IsPrivate bool   `json:"is_private"`
}

type createRoomResponse struct {
	RoomID string `json:"room_id"`
}

func (c controller) createRoom(w http.ResponseWriter, r *http.Request) {
	userID, err := c.getUserID(r)
	if err != nil {
		rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": err.Error()})
		return
	}

	var req createRoomRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	createRoomResp, err := c.roomService.CreateRoom(r.Context(), &room.CreateRoomParams{
		OwnerID:   userID,
		Title:     req.Title,
		TotalMics: req.TotalMics,
		IsPrivate: req.IsPrivate,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": createRoomResponse{
		RoomID: createRoomResp.RoomID,
	}})
}

func (c controller) roomState(w http.ResponseWriter, r *http.Request) {
	userID, err := c.getUserID(r)
	if err != nil {
		rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": err.Error()})
		return
	}

	state, err := c.roomService.RoomState(r.Context(), chi.URLParam(r, "room-id"), userID)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": state})
}

func (c controller) micStats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.roomService.MicStats(r.Context(), chi.URLParam(r, "room-id"))
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": stats})
}

func (c controller) contentList(w http.ResponseWriter, r *http.Request) {
	list, err := c.mediaService.ContentList(r.Context(), chi.URLParam(r, "room-id"))
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": list})
}

func (c controller) activeContent(w http.ResponseWriter, r *http.Request) {
	content, err := c.mediaService.ActiveContent(r.Context(), chi.URLParam(r, "room-id"))
	if err != nil {
		if errors.Is(err, media.ErrContentNotFound) {
			rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": nil})
			return
		}
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": content})
}

func (c controller) endRoom(w http.ResponseWriter, r *http.Request) {
	userID, err := c.getUserID(r)
	if err != nil {
		rest.WriteJSON(w, http.StatusUnauthorized, rest.Envelope{"error": err.Error()})
		return
	}

	if err := c.roomService.EndRoom(r.Context(), &room.EndRoomParams{
		UserID: userID,
		RoomID: chi.URLParam(r, "room-id"),
	}); err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": "room ended"})
}
