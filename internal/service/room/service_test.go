package room

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voiceroom/server/internal/domain/fault"
	domain "github.com/voiceroom/server/internal/domain/room"
	roomRedis "github.com/voiceroom/server/internal/repository/room/redis"
	"github.com/voiceroom/server/internal/service/broadcast"
	"github.com/voiceroom/server/pkg/keylock"
	"github.com/voiceroom/server/pkg/profanity"
)

type fakeGateway struct {
	mu       sync.Mutex
	byConn   map[*websocket.Conn]string
	userRoom map[string]string
	events   []broadcast.Event
	direct   []broadcast.Event
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		byConn:   make(map[*websocket.Conn]string),
		userRoom: make(map[string]string),
	}
}

func (g *fakeGateway) Subscribe(conn *websocket.Conn, userID, roomID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.byConn[conn] = userID
	g.userRoom[userID] = roomID
	return nil
}

func (g *fakeGateway) Unsubscribe(conn *websocket.Conn) (string, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	userID := g.byConn[conn]
	roomID := g.userRoom[userID]
	delete(g.byConn, conn)
	delete(g.userRoom, userID)
	return userID, roomID, nil
}

func (g *fakeGateway) Presence(roomID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var ids []string
	for userID, id := range g.userRoom {
		if id == roomID {
			ids = append(ids, userID)
		}
	}
	return ids
}

func (g *fakeGateway) SendToConn(_ context.Context, _ *websocket.Conn, event broadcast.Event) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.direct = append(g.direct, event)
	return nil
}

func (g *fakeGateway) Broadcast(_ context.Context, _ string, event broadcast.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = append(g.events, event)
}

func (g *fakeGateway) BroadcastExcept(_ context.Context, _ string, _ string, event broadcast.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = append(g.events, event)
}

func (g *fakeGateway) lastEvent(eventType string) (broadcast.Event, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.events) - 1; i >= 0; i-- {
		if g.events[i].Type == eventType {
			return g.events[i], true
		}
	}
	return broadcast.Event{}, false
}

func newTestService(t *testing.T) (*service, *fakeGateway) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	roomRepo := roomRedis.NewRepo(rc, time.Hour)
	gateway := newFakeGateway()
	filter := profanity.NewFilter([]string{"bleep"})

	return NewService(roomRepo, gateway, keylock.New(), filter, 25, slog.Default()), gateway
}

func TestCreateAndJoinRoom(t *testing.T) {
	s, gateway := newTestService(t)
	ctx := context.Background()

	createResp, err := s.CreateRoom(ctx, &CreateRoomParams{
		OwnerID:   "owner",
		Title:     "late night",
		TotalMics: 12,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, createResp.RoomID, "room id is empty")
	assert.Equal(t, 2, createResp.Room.VIPMics, "12 mics must have 2 vip seats")

	joinResp, err := s.JoinRoom(ctx, &JoinRoomParams{
		Conn:   &websocket.Conn{},
		UserID: "u1",
		RoomID: createResp.RoomID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleListener, joinResp.Snapshot.You.Role, "joiner must be a listener")
	assert.Len(t, joinResp.Snapshot.Seats, 12)
	assert.Contains(t, joinResp.Snapshot.Presence, "u1", "presence must contain the joiner")
	assert.Len(t, gateway.direct, 1, "joiner must get exactly one snapshot")
	assert.Equal(t, EventRoomJoined, gateway.direct[0].Type)

	_, ok := gateway.lastEvent(EventUserJoined)
	assert.True(t, ok, "others must get a user_joined delta")
}

func TestJoinSeatAndMute(t *testing.T) {
	s, gateway := newTestService(t)
	ctx := context.Background()

	createResp, err := s.CreateRoom(ctx, &CreateRoomParams{OwnerID: "owner", Title: "r", TotalMics: 6})
	require.NoError(t, err)
	roomID := createResp.RoomID

	_, err = s.JoinRoom(ctx, &JoinRoomParams{Conn: &websocket.Conn{}, UserID: "u1", RoomID: roomID})
	require.NoError(t, err)

	// seat 1 is the vip seat in a 6-mic room
	err = s.JoinSeat(ctx, &JoinSeatParams{UserID: "u1", RoomID: roomID, SeatNumber: 1})
	assert.ErrorIs(t, err, domain.ErrVIPSeatForbidden, "listener must not take a vip seat")

	err = s.JoinSeat(ctx, &JoinSeatParams{UserID: "u1", RoomID: roomID, SeatNumber: 2})
	require.NoError(t, err)

	ev, ok := gateway.lastEvent(EventMicUpdate)
	require.True(t, ok)
	payload := ev.Payload.(MicUpdatePayload)
	assert.Equal(t, "u1", payload.Seats[1].UserID)
	assert.Equal(t, 1, payload.MicStats.Occupied)

	// another listener cannot mute u1, u1 can mute himself
	_, err = s.JoinRoom(ctx, &JoinRoomParams{Conn: &websocket.Conn{}, UserID: "u2", RoomID: roomID})
	require.NoError(t, err)
	err = s.SetSeatMuted(ctx, &SetSeatMutedParams{UserID: "u2", RoomID: roomID, SeatNumber: 2, IsMuted: true})
	assert.True(t, fault.IsKind(err, fault.KindPermissionDenied))

	err = s.SetSeatMuted(ctx, &SetSeatMutedParams{UserID: "u1", RoomID: roomID, SeatNumber: 2, IsMuted: true})
	require.NoError(t, err)

	state, err := s.RoomState(ctx, roomID, "u1")
	require.NoError(t, err)
	assert.True(t, state.Seats[1].IsMuted)
}

func TestMicRequestQueueOrdering(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	createResp, err := s.CreateRoom(ctx, &CreateRoomParams{OwnerID: "owner", Title: "r", TotalMics: 6})
	require.NoError(t, err)
	roomID := createResp.RoomID

	for _, userID := range []string{"a", "b", "c"} {
		_, err = s.JoinRoom(ctx, &JoinRoomParams{Conn: &websocket.Conn{}, UserID: userID, RoomID: roomID})
		require.NoError(t, err)
	}

	require.NoError(t, s.RequestMic(ctx, &RequestMicParams{UserID: "a", RoomID: roomID, Priority: 0}))
	require.NoError(t, s.RequestMic(ctx, &RequestMicParams{UserID: "b", RoomID: roomID, Priority: 5}))
	require.NoError(t, s.RequestMic(ctx, &RequestMicParams{UserID: "c", RoomID: roomID, Priority: 5}))

	state, err := s.RoomState(ctx, roomID, "a")
	require.NoError(t, err)
	require.Len(t, state.WaitingQueue, 3)
	assert.Equal(t, "b", state.WaitingQueue[0].UserID, "higher priority first, earlier request breaks the tie")
	assert.Equal(t, "c", state.WaitingQueue[1].UserID)
	assert.Equal(t, "a", state.WaitingQueue[2].UserID)

	require.NoError(t, s.CancelMicRequest(ctx, &CancelMicRequestParams{UserID: "b", RoomID: roomID}))
	state, err = s.RoomState(ctx, roomID, "a")
	require.NoError(t, err)
	assert.Len(t, state.WaitingQueue, 2)

	err = s.CancelMicRequest(ctx, &CancelMicRequestParams{UserID: "b", RoomID: roomID})
	assert.True(t, fault.IsKind(err, fault.KindNotFound))
}

func TestLeaveSeatPromotesQueueHead(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	createResp, err := s.CreateRoom(ctx, &CreateRoomParams{OwnerID: "owner", Title: "r", TotalMics: 2})
	require.NoError(t, err)
	roomID := createResp.RoomID

	for _, userID := range []string{"u1", "u2", "u3"} {
		_, err = s.JoinRoom(ctx, &JoinRoomParams{Conn: &websocket.Conn{}, UserID: userID, RoomID: roomID})
		require.NoError(t, err)
	}

	require.NoError(t, s.JoinSeat(ctx, &JoinSeatParams{UserID: "u1", RoomID: roomID, SeatNumber: 1}))
	require.NoError(t, s.JoinSeat(ctx, &JoinSeatParams{UserID: "u2", RoomID: roomID, SeatNumber: 2}))
	require.NoError(t, s.RequestMic(ctx, &RequestMicParams{UserID: "u3", RoomID: roomID}))

	require.NoError(t, s.LeaveSeat(ctx, &LeaveSeatParams{UserID: "u1", RoomID: roomID}))

	state, err := s.RoomState(ctx, roomID, "u3")
	require.NoError(t, err)
	assert.Equal(t, "u3", state.Seats[0].UserID, "queue head must inherit the freed seat")
	assert.Empty(t, state.WaitingQueue)
	assert.Equal(t, domain.RoleSpeaker, state.You.Role)
}

func TestChangeMicCount(t *testing.T) {
	s, gateway := newTestService(t)
	ctx := context.Background()

	createResp, err := s.CreateRoom(ctx, &CreateRoomParams{OwnerID: "owner", Title: "r", TotalMics: 6})
	require.NoError(t, err)
	roomID := createResp.RoomID

	for _, userID := range []string{"u1", "u2", "u3"} {
		_, err = s.JoinRoom(ctx, &JoinRoomParams{Conn: &websocket.Conn{}, UserID: userID, RoomID: roomID})
		require.NoError(t, err)
	}
	require.NoError(t, s.JoinSeat(ctx, &JoinSeatParams{UserID: "u1", RoomID: roomID, SeatNumber: 2}))
	require.NoError(t, s.JoinSeat(ctx, &JoinSeatParams{UserID: "u2", RoomID: roomID, SeatNumber: 3}))
	require.NoError(t, s.JoinSeat(ctx, &JoinSeatParams{UserID: "u3", RoomID: roomID, SeatNumber: 4}))

	_, err = s.ChangeMicCount(ctx, &ChangeMicCountParams{UserID: "u1", RoomID: roomID, TotalMics: 2})
	assert.ErrorIs(t, err, domain.ErrNotOwner, "only the owner changes the mic count")

	resp, err := s.ChangeMicCount(ctx, &ChangeMicCountParams{UserID: "owner", RoomID: roomID, TotalMics: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Overflow, 1, "one occupant must overflow into the queue")

	ev, ok := gateway.lastEvent(EventMicCountChanged)
	require.True(t, ok)
	payload := ev.Payload.(MicCountChangedPayload)
	assert.Equal(t, 2, payload.TotalMics)
	assert.Len(t, payload.PrevSeats, 6)
	assert.Len(t, payload.Seats, 2)
	assert.Len(t, payload.WaitingQueue, 1)
	assert.Equal(t, resp.Overflow[0], payload.WaitingQueue[0].UserID)
}

func TestBanCascadesAndBlocksRejoin(t *testing.T) {
	s, gateway := newTestService(t)
	ctx := context.Background()

	createResp, err := s.CreateRoom(ctx, &CreateRoomParams{OwnerID: "owner", Title: "r", TotalMics: 6})
	require.NoError(t, err)
	roomID := createResp.RoomID

	_, err = s.JoinRoom(ctx, &JoinRoomParams{Conn: &websocket.Conn{}, UserID: "u1", RoomID: roomID})
	require.NoError(t, err)
	require.NoError(t, s.JoinSeat(ctx, &JoinSeatParams{UserID: "u1", RoomID: roomID, SeatNumber: 2}))

	err = s.BanMember(ctx, &BanMemberParams{UserID: "u1", RoomID: roomID, TargetID: "owner"})
	assert.True(t, fault.IsKind(err, fault.KindPermissionDenied), "listener cannot ban")

	require.NoError(t, s.BanMember(ctx, &BanMemberParams{UserID: "owner", RoomID: roomID, TargetID: "u1", Reason: "spam"}))

	state, err := s.RoomState(ctx, roomID, "owner")
	require.NoError(t, err)
	assert.Empty(t, state.Seats[1].UserID, "ban must vacate the seat")

	err = s.JoinSeat(ctx, &JoinSeatParams{UserID: "u1", RoomID: roomID, SeatNumber: 2})
	assert.ErrorIs(t, err, domain.ErrBanned)

	_, ok := gateway.lastEvent(EventUserBanned)
	assert.True(t, ok)

	require.NoError(t, s.UnbanMember(ctx, &UnbanMemberParams{UserID: "owner", RoomID: roomID, TargetID: "u1"}))
	require.NoError(t, s.JoinSeat(ctx, &JoinSeatParams{UserID: "u1", RoomID: roomID, SeatNumber: 2}))
}

func TestPromoteDemote(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	createResp, err := s.CreateRoom(ctx, &CreateRoomParams{OwnerID: "owner", Title: "r", TotalMics: 12})
	require.NoError(t, err)
	roomID := createResp.RoomID

	_, err = s.JoinRoom(ctx, &JoinRoomParams{Conn: &websocket.Conn{}, UserID: "u1", RoomID: roomID})
	require.NoError(t, err)

	err = s.PromoteMember(ctx, &PromoteMemberParams{UserID: "u1", RoomID: roomID, TargetID: "u1"})
	assert.ErrorIs(t, err, domain.ErrNotOwner)

	require.NoError(t, s.PromoteMember(ctx, &PromoteMemberParams{UserID: "owner", RoomID: roomID, TargetID: "u1"}))

	// admins may take vip seats
	require.NoError(t, s.JoinSeat(ctx, &JoinSeatParams{UserID: "u1", RoomID: roomID, SeatNumber: 1}))

	require.NoError(t, s.DemoteMember(ctx, &DemoteMemberParams{UserID: "owner", RoomID: roomID, TargetID: "u1"}))
	state, err := s.RoomState(ctx, roomID, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSpeaker, state.You.Role, "demoted admin keeps the seat as a speaker")
}

func TestSendMessageFiltersProfanity(t *testing.T) {
	s, gateway := newTestService(t)
	ctx := context.Background()

	createResp, err := s.CreateRoom(ctx, &CreateRoomParams{OwnerID: "owner", Title: "r", TotalMics: 6})
	require.NoError(t, err)
	roomID := createResp.RoomID

	err = s.SendMessage(ctx, &SendMessageParams{UserID: "stranger", RoomID: roomID, Text: "hi"})
	assert.True(t, fault.IsKind(err, fault.KindPermissionDenied), "guests cannot chat")

	_, err = s.JoinRoom(ctx, &JoinRoomParams{Conn: &websocket.Conn{}, UserID: "u1", RoomID: roomID})
	require.NoError(t, err)

	require.NoError(t, s.SendMessage(ctx, &SendMessageParams{UserID: "u1", RoomID: roomID, Text: "well bleep that"}))

	ev, ok := gateway.lastEvent(EventChatMessage)
	require.True(t, ok)
	payload := ev.Payload.(ChatMessagePayload)
	assert.Equal(t, "well ***** that", payload.Text)

	err = s.SendMessage(ctx, &SendMessageParams{UserID: "u1", RoomID: roomID, Text: "   "})
	assert.True(t, fault.IsKind(err, fault.KindValidation), "blank messages are rejected")
}

func TestLeaveRoomAndNotFound(t *testing.T) {
	s, gateway := newTestService(t)
	ctx := context.Background()

	createResp, err := s.CreateRoom(ctx, &CreateRoomParams{OwnerID: "owner", Title: "r", TotalMics: 6})
	require.NoError(t, err)
	roomID := createResp.RoomID

	_, err = s.JoinRoom(ctx, &JoinRoomParams{Conn: &websocket.Conn{}, UserID: "u1", RoomID: roomID})
	require.NoError(t, err)

	require.NoError(t, s.LeaveRoom(ctx, &LeaveRoomParams{UserID: "u1", RoomID: roomID}))
	_, ok := gateway.lastEvent(EventUserLeft)
	assert.True(t, ok)

	_, err = s.JoinRoom(ctx, &JoinRoomParams{Conn: &websocket.Conn{}, UserID: "u1", RoomID: "missing"})
	assert.True(t, fault.IsKind(err, fault.KindNotFound))
}
