// Package broadcast is the realtime gateway: it maps live connections
// to rooms and fans room-scoped events out to every subscriber. It
// never mutates room state itself; disconnect handling is delegated to
// the room service so the aggregate's invariants stay in one place.
package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event is the envelope every room-scoped broadcast uses.
type Event struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEvent(eventType string, payload any) Event {
	return Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

type iConnRepo interface {
	Add(conn *websocket.Conn, userID, roomID string) error
	RemoveByConn(conn *websocket.Conn) (string, error)
	RemoveByUserID(userID string) error
	GetConn(userID string) (*websocket.Conn, error)
	GetUserID(conn *websocket.Conn) (string, error)
	GetRoomID(userID string) (string, error)
	GetRoomUserIDs(roomID string) []string
	Conns() []*websocket.Conn
}

type Gateway struct {
	connRepo iConnRepo
	logger   *slog.Logger

	// gorilla conns do not allow concurrent writers
	writeMu sync.Mutex
	writers map[*websocket.Conn]*sync.Mutex
}

func NewGateway(connRepo iConnRepo, logger *slog.Logger) *Gateway {
	return &Gateway{
		connRepo: connRepo,
		logger:   logger,
		writers:  make(map[*websocket.Conn]*sync.Mutex),
	}
}

// Subscribe registers the connection as the user's live subscription to
// the room.
func (g *Gateway) Subscribe(conn *websocket.Conn, userID, roomID string) error {
	if err := g.connRepo.Add(conn, userID, roomID); err != nil {
		return err
	}

	g.writeMu.Lock()
	g.writers[conn] = &sync.Mutex{}
	g.writeMu.Unlock()

	return nil
}

// Unsubscribe drops the connection's subscription and closes it.
// Returns the user the connection belonged to and the room they were
// subscribed to.
func (g *Gateway) Unsubscribe(conn *websocket.Conn) (userID, roomID string, err error) {
	userID, err = g.connRepo.GetUserID(conn)
	if err != nil {
		return "", "", err
	}
	// the room mapping dies with the subscription, capture it first
	roomID, _ = g.connRepo.GetRoomID(userID)

	if _, err := g.connRepo.RemoveByConn(conn); err != nil {
		return "", "", err
	}

	g.dropWriter(conn)
	conn.Close()

	return userID, roomID, nil
}

func (g *Gateway) dropWriter(conn *websocket.Conn) {
	g.writeMu.Lock()
	delete(g.writers, conn)
	g.writeMu.Unlock()
}

func (g *Gateway) writerFor(conn *websocket.Conn) *sync.Mutex {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	mu, ok := g.writers[conn]
	if !ok {
		mu = &sync.Mutex{}
		g.writers[conn] = mu
	}

	return mu
}

// RoomOf returns the room the user is currently subscribed to.
func (g *Gateway) RoomOf(userID string) (string, error) {
	return g.connRepo.GetRoomID(userID)
}

// Presence returns the ids of users with a live subscription to the
// room. This is the authoritative presence set; it is maintained by
// the connect/disconnect hooks, not inferred from activity logs.
func (g *Gateway) Presence(roomID string) []string {
	return g.connRepo.GetRoomUserIDs(roomID)
}

// SendTo writes an event to a single user's connection.
func (g *Gateway) SendTo(ctx context.Context, userID string, event Event) error {
	conn, err := g.connRepo.GetConn(userID)
	if err != nil {
		return err
	}

	return g.write(ctx, conn, event)
}

// SendToConn writes an event to a connection that may not be
// subscribed yet (the join snapshot goes out before subscription
// completes on some paths).
func (g *Gateway) SendToConn(ctx context.Context, conn *websocket.Conn, event Event) error {
	return g.write(ctx, conn, event)
}

// Broadcast fans the event out to every subscriber of the room. A
// failed write drops that subscriber only; delivery to the rest
// continues.
func (g *Gateway) Broadcast(ctx context.Context, roomID string, event Event) {
	g.broadcast(ctx, roomID, "", event)
}

// BroadcastExcept fans the event out to every subscriber except one,
// for deltas the acting user does not need echoed back.
func (g *Gateway) BroadcastExcept(ctx context.Context, roomID, exceptUserID string, event Event) {
	g.broadcast(ctx, roomID, exceptUserID, event)
}

func (g *Gateway) broadcast(ctx context.Context, roomID, exceptUserID string, event Event) {
	for _, userID := range g.connRepo.GetRoomUserIDs(roomID) {
		if userID == exceptUserID {
			continue
		}

		conn, err := g.connRepo.GetConn(userID)
		if err != nil {
			continue
		}

		if err := g.write(ctx, conn, event); err != nil {
			g.logger.WarnContext(ctx, "failed to write to subscriber, dropping it",
				"user_id", userID,
				"room_id", roomID,
				"event_type", event.Type,
				"error", err,
			)
			g.connRepo.RemoveByConn(conn)
			g.dropWriter(conn)
			conn.Close()
		}
	}
}

func (g *Gateway) write(_ context.Context, conn *websocket.Conn, event Event) error {
	mu := g.writerFor(conn)
	mu.Lock()
	defer mu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

	return conn.WriteJSON(event)
}

// Shutdown closes every live connection.
func (g *Gateway) Shutdown() {
	for _, conn := range g.connRepo.Conns() {
		g.connRepo.RemoveByConn(conn)
		g.dropWriter(conn)
		conn.Close()
	}
}
