package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voiceroom/server/internal/controller"
	connInmemory "github.com/voiceroom/server/internal/repository/connection/inmemory"
	mediaRedis "github.com/voiceroom/server/internal/repository/media/redis"
	roomRedis "github.com/voiceroom/server/internal/repository/room/redis"
	"github.com/voiceroom/server/internal/service/broadcast"
	"github.com/voiceroom/server/internal/service/media"
	"github.com/voiceroom/server/internal/service/room"
	"github.com/voiceroom/server/pkg/keylock"
	"github.com/voiceroom/server/pkg/profanity"
)

type wsEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := slog.Default()

	roomRepo := roomRedis.NewRepo(rc, time.Hour)
	mediaRepo := mediaRedis.NewRepo(rc, time.Hour)
	connRepo := connInmemory.NewRepo()

	gateway := broadcast.NewGateway(connRepo, logger)
	locker := keylock.New()
	filter := profanity.NewFilter([]string{"bleep"})

	roomService := room.NewService(roomRepo, gateway, locker, filter, 25, logger)
	mediaService := media.NewService(mediaRepo, roomRepo, gateway, locker, 50*time.Millisecond, logger)
	t.Cleanup(mediaService.Shutdown)

	ctrl := controller.NewController(roomService, mediaService, gateway, logger)
	srv := httptest.NewServer(ctrl.Mux())
	t.Cleanup(srv.Close)

	return srv
}

func createRoom(t *testing.T, srv *httptest.Server, ownerID string, totalMics int) string {
	t.Helper()

	body, err := json.Marshal(map[string]any{
		"title":      "test room",
		"total_mics": totalMics,
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/rooms", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Vr-User-Id", ownerID)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var envelope struct {
		Data struct {
			RoomID string `json:"room_id"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.NotEmpty(t, envelope.Data.RoomID)

	return envelope.Data.RoomID
}

func dialRoom(t *testing.T, srv *httptest.Server, roomID, userID string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/rooms/" + roomID
	header := http.Header{}
	header.Set("Vr-User-Id", userID)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	return conn
}

// readEvent reads until an event of the wanted type arrives, skipping
// unrelated broadcasts.
func readEvent(t *testing.T, conn *websocket.Conn, wantType string) wsEvent {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var ev wsEvent
		require.NoError(t, conn.ReadJSON(&ev), "waiting for %s", wantType)
		if ev.Type == wantType {
			return ev
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": msgType, "payload": payload}))
}

func TestRoomOverWebsocket(t *testing.T) {
	srv := newTestServer(t)
	roomID := createRoom(t, srv, "owner", 6)

	ownerConn := dialRoom(t, srv, roomID, "owner")
	joined := readEvent(t, ownerConn, "room_joined")

	var snapshot struct {
		RoomID string `json:"room_id"`
		Seats  []struct {
			SeatNumber int  `json:"seat_number"`
			IsVIP      bool `json:"is_vip"`
		} `json:"seats"`
		You struct {
			Role string `json:"role"`
		} `json:"you"`
	}
	require.NoError(t, json.Unmarshal(joined.Payload, &snapshot))
	assert.Equal(t, roomID, snapshot.RoomID)
	assert.Equal(t, "owner", snapshot.You.Role)
	require.Len(t, snapshot.Seats, 6)
	assert.True(t, snapshot.Seats[0].IsVIP, "seat 1 of a 6-mic room is vip")

	userConn := dialRoom(t, srv, roomID, "u1")
	readEvent(t, userConn, "room_joined")
	readEvent(t, ownerConn, "user_joined")

	// u1 takes a guest seat, both sides see the delta
	send(t, userConn, "JOIN_SEAT", map[string]any{"seat_number": 2})
	for _, conn := range []*websocket.Conn{ownerConn, userConn} {
		ev := readEvent(t, conn, "mic_update")
		var update struct {
			Seats []struct {
				UserID string `json:"user_id"`
			} `json:"seats"`
			MicStats struct {
				Occupied int `json:"occupied"`
			} `json:"mic_stats"`
		}
		require.NoError(t, json.Unmarshal(ev.Payload, &update))
		assert.Equal(t, "u1", update.Seats[1].UserID)
		assert.Equal(t, 1, update.MicStats.Occupied)
	}

	// vip seat is rejected for a plain speaker, sender only gets the error
	send(t, userConn, "JOIN_SEAT", map[string]any{"seat_number": 1})
	ev := readEvent(t, userConn, "error")
	var wsErr struct {
		Kind    string `json:"kind"`
		Command string `json:"command"`
	}
	require.NoError(t, json.Unmarshal(ev.Payload, &wsErr))
	assert.Equal(t, "permission_denied", wsErr.Kind)
	assert.Equal(t, "JOIN_SEAT", wsErr.Command)

	// chat goes through the profanity filter
	send(t, userConn, "SEND_MESSAGE", map[string]any{"text": "oh bleep"})
	chat := readEvent(t, ownerConn, "chat_message")
	var msg struct {
		UserID string `json:"user_id"`
		Text   string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(chat.Payload, &msg))
	assert.Equal(t, "u1", msg.UserID)
	assert.Equal(t, "oh *****", msg.Text)

	// rest read view agrees with the broadcasts
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/api/rooms/%s/mics", srv.URL, roomID), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats struct {
		Data struct {
			Occupied    int `json:"occupied"`
			QueueLength int `json:"queue_length"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.Data.Occupied)
}

func TestDisconnectAnnouncesLeave(t *testing.T) {
	srv := newTestServer(t)
	roomID := createRoom(t, srv, "owner", 6)

	ownerConn := dialRoom(t, srv, roomID, "owner")
	readEvent(t, ownerConn, "room_joined")

	userConn := dialRoom(t, srv, roomID, "u1")
	readEvent(t, userConn, "room_joined")
	readEvent(t, ownerConn, "user_joined")

	userConn.Close()

	ev := readEvent(t, ownerConn, "user_left")
	var left struct {
		UserID string `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(ev.Payload, &left))
	assert.Equal(t, "u1", left.UserID)
}

func TestMediaSyncOverWebsocket(t *testing.T) {
	srv := newTestServer(t)
	roomID := createRoom(t, srv, "owner", 6)

	ownerConn := dialRoom(t, srv, roomID, "owner")
	readEvent(t, ownerConn, "room_joined")

	send(t, ownerConn, "ADD_YOUTUBE", map[string]any{
		"title":    "test video",
		"video_id": "abc",
		"duration": 120,
	})
	added := readEvent(t, ownerConn, "media_added")
	var content struct {
		ContentID string `json:"content_id"`
	}
	require.NoError(t, json.Unmarshal(added.Payload, &content))
	require.NotEmpty(t, content.ContentID)

	send(t, ownerConn, "PLAY_MEDIA", map[string]any{"content_id": content.ContentID, "position": 10})
	readEvent(t, ownerConn, "media_started")

	sync := readEvent(t, ownerConn, "media_sync")
	var state struct {
		ContentID string  `json:"content_id"`
		IsPlaying bool    `json:"is_playing"`
		Position  float64 `json:"position"`
	}
	require.NoError(t, json.Unmarshal(sync.Payload, &state))
	assert.Equal(t, content.ContentID, state.ContentID)
	assert.True(t, state.IsPlaying)
	assert.GreaterOrEqual(t, state.Position, 10.0)

	send(t, ownerConn, "PAUSE_MEDIA", map[string]any{"content_id": content.ContentID})
	paused := readEvent(t, ownerConn, "media_paused")
	require.NoError(t, json.Unmarshal(paused.Payload, &state))
	assert.False(t, state.IsPlaying)
}
