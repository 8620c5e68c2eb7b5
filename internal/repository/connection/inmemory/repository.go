// Package inmemory tracks live websocket connections: which user owns
// which connection and which room each user is subscribed to. This is
// the gateway's explicit presence set; it is never persisted.
package inmemory

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/voiceroom/server/internal/repository/connection"
)

type repo struct {
	mu       sync.RWMutex
	byConn   map[*websocket.Conn]string
	byUser   map[string]*websocket.Conn
	userRoom map[string]string
	roomSet  map[string]map[string]struct{}
}

func NewRepo() *repo {
	return &repo{
		byConn:   make(map[*websocket.Conn]string),
		byUser:   make(map[string]*websocket.Conn),
		userRoom: make(map[string]string),
		roomSet:  make(map[string]map[string]struct{}),
	}
}

func (r *repo) Add(conn *websocket.Conn, userID, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byConn[conn]; ok {
		return connection.ErrAlreadyExists
	}
	if _, ok := r.byUser[userID]; ok {
		return connection.ErrAlreadyExists
	}

	r.byConn[conn] = userID
	r.byUser[userID] = conn
	r.userRoom[userID] = roomID
	if r.roomSet[roomID] == nil {
		r.roomSet[roomID] = make(map[string]struct{})
	}
	r.roomSet[roomID][userID] = struct{}{}

	return nil
}

func (r *repo) RemoveByConn(conn *websocket.Conn) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[conn]
	if !ok {
		return "", connection.ErrNotFound
	}

	r.remove(conn, userID)

	return userID, nil
}

func (r *repo) RemoveByUserID(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.byUser[userID]
	if !ok {
		return connection.ErrNotFound
	}

	r.remove(conn, userID)

	return nil
}

// remove assumes r.mu is held.
func (r *repo) remove(conn *websocket.Conn, userID string) {
	roomID := r.userRoom[userID]
	delete(r.byConn, conn)
	delete(r.byUser, userID)
	delete(r.userRoom, userID)
	if set, ok := r.roomSet[roomID]; ok {
		delete(set, userID)
		if len(set) == 0 {
			delete(r.roomSet, roomID)
		}
	}
}

func (r *repo) GetConn(userID string) (*websocket.Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.byUser[userID]
	if !ok {
		return nil, connection.ErrNotFound
	}

	return conn, nil
}

func (r *repo) GetUserID(conn *websocket.Conn) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.byConn[conn]
	if !ok {
		return "", connection.ErrNotFound
	}

	return userID, nil
}

func (r *repo) GetRoomID(userID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roomID, ok := r.userRoom[userID]
	if !ok {
		return "", connection.ErrNotFound
	}

	return roomID, nil
}

// GetRoomUserIDs returns the ids of every user currently connected to
// the room.
func (r *repo) GetRoomUserIDs(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.roomSet[roomID]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}

	return ids
}

// Conns returns every registered connection.
func (r *repo) Conns() []*websocket.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*websocket.Conn, 0, len(r.byConn))
	for conn := range r.byConn {
		conns = append(conns, conn)
	}

	return conns
}
