package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/trialclock/go/internal/events"
	"github.com/rs/zerolog/log"
)

// ConnectionManager manages WebSocket connections watching runs
type ConnectionManager struct {
	// Connection pools organized by run ID
	runConnections map[uuid.UUID]map[*Connection]bool
	mu             sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan BroadcastMessage
}

// Connection is one WebSocket client of a run.
type Connection struct {
	ID      string
	RunID   uuid.UUID
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	BroadcastBuffer int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage is queued for delivery to every connection of a run.
// CloseAfter disconnects the run's clients once the event is sent.
type BroadcastMessage struct {
	RunID      uuid.UUID
	Event      *events.TimerEvent
	CloseAfter bool
	// Join registers a new connection; Event is sent to it alone.
	Join *Connection
}

var ErrBroadcastFull = errors.New("broadcast channel full")

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		SendBuffer:      64,
		BroadcastBuffer: 1000,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	defaults := DefaultConnectionConfig()
	if config.SendBuffer < 1 {
		config.SendBuffer = defaults.SendBuffer
	}
	if config.BroadcastBuffer < 1 {
		config.BroadcastBuffer = defaults.BroadcastBuffer
	}
	if config.PingInterval <= 0 {
		config.PingInterval = defaults.PingInterval
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	return &ConnectionManager{
		runConnections: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, config.BroadcastBuffer),
	}
}

// Start processes broadcast messages until ctx is done.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			cm.rejectPending()
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket. The connection
// receives nothing until it is handed to Join.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, runID uuid.UUID) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	return &Connection{
		ID:          uuid.New().String(),
		RunID:       runID,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBuffer),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}, nil
}

// Join queues conn for registration with initial as its first frame. It goes
// through the broadcast queue, so every event enqueued after Join returns
// reaches the client after initial. Join never blocks.
func (cm *ConnectionManager) Join(conn *Connection, initial *events.TimerEvent) error {
	return cm.enqueue(BroadcastMessage{RunID: conn.RunID, Event: initial, Join: conn})
}

// Reject closes a connection that never joined.
func (cm *ConnectionManager) Reject(conn *Connection, reason string) {
	deadline := time.Now().Add(cm.config.WriteTimeout)
	conn.Conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, reason), deadline)
	conn.Conn.Close()
}

func (cm *ConnectionManager) join(conn *Connection, initial *events.TimerEvent) {
	if initial != nil {
		data, err := json.Marshal(initial)
		if err != nil {
			log.Error().Err(err).Str("connection_id", conn.ID).Msg("failed to marshal initial state")
			cm.Reject(conn, "failed to build state")
			return
		}
		conn.Send <- data
	}

	cm.registerConnection(conn)

	go conn.writePump()
	go conn.readPump()

	log.Info().
		Str("connection_id", conn.ID).
		Str("run_id", conn.RunID.String()).
		Msg("WebSocket connection established")
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.runConnections[conn.RunID] == nil {
		cm.runConnections[conn.RunID] = make(map[*Connection]bool)
	}
	cm.runConnections[conn.RunID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("run_id", conn.RunID.String()).
		Int("total_connections", len(cm.runConnections[conn.RunID])).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.unregisterLocked(conn)
}

func (cm *ConnectionManager) unregisterLocked(conn *Connection) {
	connections, exists := cm.runConnections[conn.RunID]
	if !exists {
		return
	}
	if _, exists := connections[conn]; !exists {
		return
	}
	delete(connections, conn)
	close(conn.Send)

	if len(connections) == 0 {
		delete(cm.runConnections, conn.RunID)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("run_id", conn.RunID.String()).
		Msg("connection unregistered")
}

// Broadcast queues an event for every connection of a run. It never blocks;
// when the queue is full the event is dropped.
func (cm *ConnectionManager) Broadcast(runID uuid.UUID, event *events.TimerEvent) {
	_ = cm.enqueue(BroadcastMessage{RunID: runID, Event: event})
}

// CloseRun sends a final event and then disconnects the run's clients. It
// waits up to WriteTimeout for queue space; past that the clients are
// disconnected without the final event.
func (cm *ConnectionManager) CloseRun(runID uuid.UUID, final *events.TimerEvent) {
	message := BroadcastMessage{RunID: runID, Event: final, CloseAfter: true}
	wait := time.NewTimer(cm.config.WriteTimeout)
	defer wait.Stop()

	select {
	case cm.broadcastCh <- message:
		return
	case <-wait.C:
	}

	log.Warn().Str("run_id", runID.String()).Msg("broadcast channel full, closing run connections directly")
	cm.disconnectRun(runID)
}

func (cm *ConnectionManager) enqueue(message BroadcastMessage) error {
	select {
	case cm.broadcastCh <- message:
		return nil
	default:
		log.Warn().Str("run_id", message.RunID.String()).Msg("broadcast channel full, dropping message")
		return ErrBroadcastFull
	}
}

func (cm *ConnectionManager) disconnectRun(runID uuid.UUID) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for conn := range cm.runConnections[runID] {
		cm.unregisterLocked(conn)
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	if message.Join != nil {
		cm.join(message.Join, message.Event)
		return
	}

	cm.mu.RLock()
	connections := cm.runConnections[message.RunID]
	targets := make([]*Connection, 0, len(connections))
	for conn := range connections {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	if message.Event != nil && len(targets) > 0 {
		data, err := json.Marshal(message.Event)
		if err != nil {
			log.Error().Err(err).Msg("failed to marshal event for broadcast")
			return
		}

		cm.mu.Lock()
		for _, conn := range targets {
			if !cm.runConnections[message.RunID][conn] {
				continue
			}
			select {
			case conn.Send <- data:
			default:
				log.Warn().
					Str("connection_id", conn.ID).
					Msg("connection send buffer full, closing connection")
				cm.unregisterLocked(conn)
			}
		}
		cm.mu.Unlock()

		log.Debug().
			Str("event_type", string(message.Event.Type)).
			Str("run_id", message.RunID.String()).
			Int("connections", len(targets)).
			Msg("event broadcasted")
	}

	if message.CloseAfter {
		cm.disconnectRun(message.RunID)
	}
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for _, connections := range cm.runConnections {
		for conn := range connections {
			cm.unregisterLocked(conn)
		}
	}
}

// rejectPending closes connections still waiting in the queue at shutdown.
func (cm *ConnectionManager) rejectPending() {
	for {
		select {
		case message := <-cm.broadcastCh:
			if message.Join != nil {
				cm.Reject(message.Join, "server shutting down")
			}
		default:
			return
		}
	}
}

// ConnectionStats summarizes active connections.
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveRuns       int            `json:"active_runs"`
	RunConnections   map[string]int `json:"run_connections"`
}

// Stats returns statistics about active connections
func (cm *ConnectionManager) Stats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		ActiveRuns:     len(cm.runConnections),
		RunConnections: make(map[string]int, len(cm.runConnections)),
	}
	for runID, connections := range cm.runConnections {
		stats.TotalConnections += len(connections)
		stats.RunConnections[runID.String()] = len(connections)
	}
	return stats
}

// writePump handles sending messages to the WebSocket connection. A closed
// Send channel means the manager dropped the connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				c.Manager.unregisterConnection(c)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				c.Manager.unregisterConnection(c)
				return
			}
		}
	}
}

// readPump drains client frames so pongs and close frames are processed.
// Clients never send commands over the socket; the REST API carries them.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}

		log.Debug().
			Str("connection_id", c.ID).
			Int("bytes", len(message)).
			Msg("ignoring client message")
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
