package controller

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	mediadomain "github.com/voiceroom/server/internal/domain/media"
	mediaservice "github.com/voiceroom/server/internal/service/media"
	"github.com/voiceroom/server/internal/service/room"
)

type EmptyStruct struct{}

func (es *EmptyStruct) UnmarshalJSON([]byte) error {
	return nil
}

func (c controller) handleAlive(ctx context.Context, conn *websocket.Conn, input EmptyStruct) error {
	return nil
}

type JoinSeatInput struct {
	SeatNumber int `json:"seat_number"`
}

func (c controller) handleJoinSeat(ctx context.Context, conn *websocket.Conn, input JoinSeatInput) error {
	return c.roomService.JoinSeat(ctx, &room.JoinSeatParams{
		UserID:     c.getUserIDFromCtx(ctx),
		RoomID:     c.getRoomIDFromCtx(ctx),
		SeatNumber: input.SeatNumber,
	})
}

func (c controller) handleLeaveSeat(ctx context.Context, conn *websocket.Conn, input EmptyStruct) error {
	return c.roomService.LeaveSeat(ctx, &room.LeaveSeatParams{
		UserID: c.getUserIDFromCtx(ctx),
		RoomID: c.getRoomIDFromCtx(ctx),
	})
}

type RequestMicInput struct {
	Priority int `json:"priority"`
}

func (c controller) handleRequestMic(ctx context.Context, conn *websocket.Conn, input RequestMicInput) error {
	return c.roomService.RequestMic(ctx, &room.RequestMicParams{
		UserID:   c.getUserIDFromCtx(ctx),
		RoomID:   c.getRoomIDFromCtx(ctx),
		Priority: input.Priority,
	})
}

func (c controller) handleCancelMicRequest(ctx context.Context, conn *websocket.Conn, input EmptyStruct) error {
	return c.roomService.CancelMicRequest(ctx, &room.CancelMicRequestParams{
		UserID: c.getUserIDFromCtx(ctx),
		RoomID: c.getRoomIDFromCtx(ctx),
	})
}

type SetSeatMutedInput struct {
	SeatNumber int  `json:"seat_number"`
	IsMuted    bool `json:"is_muted"`
}

func (c controller) handleSetSeatMuted(ctx context.Context, conn *websocket.Conn, input SetSeatMutedInput) error {
	return c.roomService.SetSeatMuted(ctx, &room.SetSeatMutedParams{
		UserID:     c.getUserIDFromCtx(ctx),
		RoomID:     c.getRoomIDFromCtx(ctx),
		SeatNumber: input.SeatNumber,
		IsMuted:    input.IsMuted,
	})
}

type SetSeatLockedInput struct {
	SeatNumber int  `json:"seat_number"`
	IsLocked   bool `json:"is_locked"`
}

func (c controller) handleSetSeatLocked(ctx context.Context, conn *websocket.Conn, input SetSeatLockedInput) error {
	return c.roomService.SetSeatLocked(ctx, &room.SetSeatLockedParams{
		UserID:     c.getUserIDFromCtx(ctx),
		RoomID:     c.getRoomIDFromCtx(ctx),
		SeatNumber: input.SeatNumber,
		IsLocked:   input.IsLocked,
	})
}

type ChangeMicCountInput struct {
	TotalMics int `json:"total_mics"`
}

func (c controller) handleChangeMicCount(ctx context.Context, conn *websocket.Conn, input ChangeMicCountInput) error {
	_, err := c.roomService.ChangeMicCount(ctx, &room.ChangeMicCountParams{
		UserID:    c.getUserIDFromCtx(ctx),
		RoomID:    c.getRoomIDFromCtx(ctx),
		TotalMics: input.TotalMics,
	})

	return err
}

type BanMemberInput struct {
	UserID          string `json:"user_id"`
	Reason          string `json:"reason"`
	DurationSeconds int    `json:"duration_seconds"`
}

func (c controller) handleBanMember(ctx context.Context, conn *websocket.Conn, input BanMemberInput) error {
	return c.roomService.BanMember(ctx, &room.BanMemberParams{
		UserID:   c.getUserIDFromCtx(ctx),
		RoomID:   c.getRoomIDFromCtx(ctx),
		TargetID: input.UserID,
		Reason:   input.Reason,
		Duration: time.Duration(input.DurationSeconds) * time.Second,
	})
}

type TargetMemberInput struct {
	UserID string `json:"user_id"`
}

func (c controller) handleUnbanMember(ctx context.Context, conn *websocket.Conn, input TargetMemberInput) error {
	return c.roomService.UnbanMember(ctx, &room.UnbanMemberParams{
		UserID:   c.getUserIDFromCtx(ctx),
		RoomID:   c.getRoomIDFromCtx(ctx),
		TargetID: input.UserID,
	})
}

func (c controller) handleKickMember(ctx context.Context, conn *websocket.Conn, input TargetMemberInput) error {
	return c.roomService.KickMember(ctx, &room.KickMemberParams{
		UserID:   c.getUserIDFromCtx(ctx),
		RoomID:   c.getRoomIDFromCtx(ctx),
		TargetID: input.UserID,
	})
}

func (c controller) handlePromoteMember(ctx context.Context, conn *websocket.Conn, input TargetMemberInput) error {
	return c.roomService.PromoteMember(ctx, &room.PromoteMemberParams{
		UserID:   c.getUserIDFromCtx(ctx),
		RoomID:   c.getRoomIDFromCtx(ctx),
		TargetID: input.UserID,
	})
}

func (c controller) handleDemoteMember(ctx context.Context, conn *websocket.Conn, input TargetMemberInput) error {
	return c.roomService.DemoteMember(ctx, &room.DemoteMemberParams{
		UserID:   c.getUserIDFromCtx(ctx),
		RoomID:   c.getRoomIDFromCtx(ctx),
		TargetID: input.UserID,
	})
}

type SendMessageInput struct {
	Text string `json:"text"`
}

func (c controller) handleSendMessage(ctx context.Context, conn *websocket.Conn, input SendMessageInput) error {
	return c.roomService.SendMessage(ctx, &room.SendMessageParams{
		UserID: c.getUserIDFromCtx(ctx),
		RoomID: c.getRoomIDFromCtx(ctx),
		Text:   input.Text,
	})
}

type AddYouTubeInput struct {
	Title       string `json:"title"`
	VideoID     string `json:"video_id"`
	ChannelName string `json:"channel_name"`
	Duration    int    `json:"duration"`
}

func (c controller) handleAddYouTube(ctx context.Context, conn *websocket.Conn, input AddYouTubeInput) error {
	_, err := c.mediaService.AddYouTubeContent(ctx, &mediaservice.AddYouTubeContentParams{
		UserID:      c.getUserIDFromCtx(ctx),
		RoomID:      c.getRoomIDFromCtx(ctx),
		Title:       input.Title,
		VideoID:     input.VideoID,
		ChannelName: input.ChannelName,
		Duration:    input.Duration,
	})

	return err
}

type AddAudioInput struct {
	Title    string  `json:"title"`
	FileName string  `json:"file_name"`
	Duration float64 `json:"duration"`
	Bitrate  int     `json:"bitrate"`
	Format   string  `json:"format"`
}

func (c controller) handleAddAudio(ctx context.Context, conn *websocket.Conn, input AddAudioInput) error {
	_, err := c.mediaService.AddAudioContent(ctx, &mediaservice.AddAudioContentParams{
		UserID:   c.getUserIDFromCtx(ctx),
		RoomID:   c.getRoomIDFromCtx(ctx),
		Title:    input.Title,
		FileName: input.FileName,
		Duration: input.Duration,
		Bitrate:  input.Bitrate,
		Format:   input.Format,
	})

	return err
}

type AddPlaylistInput struct {
	Title      string   `json:"title"`
	RepeatMode string   `json:"repeat_mode"`
	ContentIDs []string `json:"content_ids"`
}

func (c controller) handleAddPlaylist(ctx context.Context, conn *websocket.Conn, input AddPlaylistInput) error {
	_, err := c.mediaService.AddPlaylist(ctx, &mediaservice.AddPlaylistParams{
		UserID:     c.getUserIDFromCtx(ctx),
		RoomID:     c.getRoomIDFromCtx(ctx),
		Title:      input.Title,
		RepeatMode: input.RepeatMode,
		ContentIDs: input.ContentIDs,
	})

	return err
}

type ContentInput struct {
	ContentID string `json:"content_id"`
}

func (c controller) handleRemoveMedia(ctx context.Context, conn *websocket.Conn, input ContentInput) error {
	return c.mediaService.DeleteContent(ctx, &mediaservice.DeleteContentParams{
		UserID:    c.getUserIDFromCtx(ctx),
		RoomID:    c.getRoomIDFromCtx(ctx),
		ContentID: input.ContentID,
	})
}

type PlayMediaInput struct {
	ContentID string  `json:"content_id"`
	Position  float64 `json:"position"`
}

func (c controller) handlePlayMedia(ctx context.Context, conn *websocket.Conn, input PlayMediaInput) error {
	return c.mediaService.Start(ctx, &mediaservice.StartParams{
		UserID:    c.getUserIDFromCtx(ctx),
		RoomID:    c.getRoomIDFromCtx(ctx),
		ContentID: input.ContentID,
		Position:  input.Position,
	})
}

func (c controller) handlePauseMedia(ctx context.Context, conn *websocket.Conn, input ContentInput) error {
	return c.mediaService.Pause(ctx, &mediaservice.PauseParams{
		UserID:    c.getUserIDFromCtx(ctx),
		RoomID:    c.getRoomIDFromCtx(ctx),
		ContentID: input.ContentID,
	})
}

func (c controller) handleStopMedia(ctx context.Context, conn *websocket.Conn, input ContentInput) error {
	return c.mediaService.Stop(ctx, &mediaservice.StopParams{
		UserID:    c.getUserIDFromCtx(ctx),
		RoomID:    c.getRoomIDFromCtx(ctx),
		ContentID: input.ContentID,
	})
}

type SeekMediaInput struct {
	ContentID string  `json:"content_id"`
	Position  float64 `json:"position"`
}

func (c controller) handleSeekMedia(ctx context.Context, conn *websocket.Conn, input SeekMediaInput) error {
	return c.mediaService.Seek(ctx, &mediaservice.SeekParams{
		UserID:    c.getUserIDFromCtx(ctx),
		RoomID:    c.getRoomIDFromCtx(ctx),
		ContentID: input.ContentID,
		Position:  input.Position,
	})
}

type SetVolumeInput struct {
	ContentID string `json:"content_id"`
	Volume    int    `json:"volume"`
}

func (c controller) handleSetVolume(ctx context.Context, conn *websocket.Conn, input SetVolumeInput) error {
	return c.mediaService.SetVolume(ctx, &mediaservice.SetVolumeParams{
		UserID:    c.getUserIDFromCtx(ctx),
		RoomID:    c.getRoomIDFromCtx(ctx),
		ContentID: input.ContentID,
		Volume:    input.Volume,
	})
}

type ReportMediaErrorInput struct {
	ContentID string `json:"content_id"`
	Reason    string `json:"reason"`
}

func (c controller) handleReportMediaError(ctx context.Context, conn *websocket.Conn, input ReportMediaErrorInput) error {
	return c.mediaService.MarkError(ctx, &mediaservice.MarkErrorParams{
		RoomID:    c.getRoomIDFromCtx(ctx),
		ContentID: input.ContentID,
		Reason:    input.Reason,
	})
}

func (c controller) handleResetMedia(ctx context.Context, conn *websocket.Conn, input ContentInput) error {
	return c.mediaService.Reset(ctx, &mediaservice.ResetParams{
		UserID:    c.getUserIDFromCtx(ctx),
		RoomID:    c.getRoomIDFromCtx(ctx),
		ContentID: input.ContentID,
	})
}

type RateMediaInput struct {
	ContentID string `json:"content_id"`
	Rating    int    `json:"rating"`
}

func (c controller) handleRateMedia(ctx context.Context, conn *websocket.Conn, input RateMediaInput) error {
	_, err := c.mediaService.Rate(ctx, &mediaservice.RateParams{
		UserID:    c.getUserIDFromCtx(ctx),
		RoomID:    c.getRoomIDFromCtx(ctx),
		ContentID: input.ContentID,
		Rating:    input.Rating,
	})

	return err
}

type GrantControlInput struct {
	ContentID string   `json:"content_id"`
	UserID    string   `json:"user_id"`
	Actions   []string `json:"actions"`
}

func (c controller) handleGrantControl(ctx context.Context, conn *websocket.Conn, input GrantControlInput) error {
	actions := make([]mediadomain.ControlAction, 0, len(input.Actions))
	for _, a := range input.Actions {
		actions = append(actions, mediadomain.ControlAction(a))
	}

	return c.mediaService.GrantControl(ctx, &mediaservice.GrantControlParams{
		UserID:    c.getUserIDFromCtx(ctx),
		RoomID:    c.getRoomIDFromCtx(ctx),
		ContentID: input.ContentID,
		TargetID:  input.UserID,
		Actions:   actions,
	})
}
