// Package controller exposes the room engine over HTTP: REST endpoints
// for lifecycle and read views, and a websocket endpoint that carries
// the realtime command stream.
package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/voiceroom/server/internal/domain/media"
	domain "github.com/voiceroom/server/internal/domain/room"
	"github.com/voiceroom/server/internal/service/broadcast"
	mediaservice "github.com/voiceroom/server/internal/service/media"
	"github.com/voiceroom/server/internal/service/room"
	"github.com/voiceroom/server/pkg/validator"
	"github.com/voiceroom/server/pkg/wsrouter"
)

type iRoomService interface {
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	LeaveRoom(context.Context, *room.LeaveRoomParams) error
	Disconnect(ctx context.Context, conn *websocket.Conn) error
	EndRoom(context.Context, *room.EndRoomParams) error
	JoinSeat(context.Context, *room.JoinSeatParams) error
	LeaveSeat(context.Context, *room.LeaveSeatParams) error
	RequestMic(context.Context, *room.RequestMicParams) error
	CancelMicRequest(context.Context, *room.CancelMicRequestParams) error
	SetSeatMuted(context.Context, *room.SetSeatMutedParams) error
	SetSeatLocked(context.Context, *room.SetSeatLockedParams) error
	ChangeMicCount(context.Context, *room.ChangeMicCountParams) (room.ChangeMicCountResponse, error)
	BanMember(context.Context, *room.BanMemberParams) error
	UnbanMember(context.Context, *room.UnbanMemberParams) error
	KickMember(context.Context, *room.KickMemberParams) error
	PromoteMember(context.Context, *room.PromoteMemberParams) error
	DemoteMember(context.Context, *room.DemoteMemberParams) error
	SendMessage(context.Context, *room.SendMessageParams) error
	RoomState(ctx context.Context, roomID, userID string) (room.Snapshot, error)
	MicStats(ctx context.Context, roomID string) (domain.MicStats, error)
	RoomExists(ctx context.Context, roomID string) (bool, error)
}

type iMediaService interface {
	AddYouTubeContent(context.Context, *mediaservice.AddYouTubeContentParams) (mediaservice.AddContentResponse, error)
	AddAudioContent(context.Context, *mediaservice.AddAudioContentParams) (mediaservice.AddContentResponse, error)
	AddPlaylist(context.Context, *mediaservice.AddPlaylistParams) (mediaservice.AddContentResponse, error)
	DeleteContent(context.Context, *mediaservice.DeleteContentParams) error
	Start(context.Context, *mediaservice.StartParams) error
	Pause(context.Context, *mediaservice.PauseParams) error
	Stop(context.Context, *mediaservice.StopParams) error
	Seek(context.Context, *mediaservice.SeekParams) error
	SetVolume(context.Context, *mediaservice.SetVolumeParams) error
	MarkError(context.Context, *mediaservice.MarkErrorParams) error
	Reset(context.Context, *mediaservice.ResetParams) error
	Rate(context.Context, *mediaservice.RateParams) (mediaservice.RateResponse, error)
	GrantControl(context.Context, *mediaservice.GrantControlParams) error
	ContentList(ctx context.Context, roomID string) ([]*media.Content, error)
	ActiveContent(ctx context.Context, roomID string) (*media.Content, error)
}

type iGateway interface {
	SendToConn(ctx context.Context, conn *websocket.Conn, event broadcast.Event) error
}

type controller struct {
	roomService  iRoomService
	mediaService iMediaService
	gateway      iGateway
	upgrader     websocket.Upgrader
	validate     *validator.Validator
	wsmux        *wsrouter.WSRouter
	logger       *slog.Logger
}

func NewController(roomService iRoomService, mediaService iMediaService, gateway iGateway, logger *slog.Logger) *controller {
	c := &controller{
		roomService:  roomService,
		mediaService: mediaService,
		gateway:      gateway,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		validate: validator.NewValidator(),
		logger:   logger,
	}
	c.wsmux = c.getWSRouter()

	return c
}
