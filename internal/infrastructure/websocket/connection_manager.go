package websocket

import (
	"sync"

	"github.com/Mariaiaiaia/auction-sub000/pkg/logger"

	"github.com/gorilla/websocket"
)

type connKey struct {
	auctionID int64
	userID    int64
}

// ConnectionManager tracks live-feed watchers per auction. Broadcasts are
// best-effort: a dead connection is dropped, never retried.
type ConnectionManager struct {
	connections map[int64]map[connKey]*websocket.Conn // auctionID -> key -> conn
	mutex       sync.RWMutex
	log         logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[int64]map[connKey]*websocket.Conn),
		log:         log,
	}
}

func (cm *ConnectionManager) Register(auctionID, userID int64, conn *websocket.Conn) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	key := connKey{auctionID: auctionID, userID: userID}
	if cm.connections[auctionID] == nil {
		cm.connections[auctionID] = make(map[connKey]*websocket.Conn)
	}
	if old, exists := cm.connections[auctionID][key]; exists {
		old.Close()
	}
	cm.connections[auctionID][key] = conn

	cm.log.Info("Feed connection registered", "user_id", userID, "auction_id", auctionID)
}

func (cm *ConnectionManager) Unregister(auctionID, userID int64) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	key := connKey{auctionID: auctionID, userID: userID}
	if conns, exists := cm.connections[auctionID]; exists {
		delete(conns, key)
		if len(conns) == 0 {
			delete(cm.connections, auctionID)
		}
	}
}

func (cm *ConnectionManager) BroadcastToAuction(auctionID int64, message interface{}) {
	cm.mutex.RLock()
	conns := make([]*websocket.Conn, 0, len(cm.connections[auctionID]))
	for _, conn := range cm.connections[auctionID] {
		conns = append(conns, conn)
	}
	cm.mutex.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteJSON(message); err != nil {
			cm.log.Warn("Failed to write feed message", "auction_id", auctionID, "error", err)
		}
	}
}

// CloseAuction drops every watcher of an auction, used after finalize.
func (cm *ConnectionManager) CloseAuction(auctionID int64) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	for _, conn := range cm.connections[auctionID] {
		conn.Close()
	}
	delete(cm.connections, auctionID)
}
