package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"deathfun-backend/internal/models"
	"deathfun-backend/internal/services"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Message struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Data      any    `json:"data,omitempty"`
}

type directMessage struct {
	client *Client
	msg    *Message
}

type countRequest struct {
	sessionID string
	reply     chan int
}

type Client struct {
	SessionID string
	conn      *websocket.Conn
	send      chan *Message
}

// WebSocketHub fans committed session updates out to the clients watching each session.
// It implements services.Broadcaster.
type WebSocketHub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	direct     chan directMessage
	count      chan countRequest
	done       chan struct{}
	stopOnce   sync.Once
	log        zerolog.Logger
}

func NewWebSocketHub(logger zerolog.Logger) *WebSocketHub {
	hub := &WebSocketHub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 100),
		direct:     make(chan directMessage),
		count:      make(chan countRequest),
		done:       make(chan struct{}),
		log:        logger.With().Str("component", "websocket_hub").Logger(),
	}

	go hub.run()

	return hub
}

func (hub *WebSocketHub) Stop() {
	hub.stopOnce.Do(func() { close(hub.done) })
}

func (hub *WebSocketHub) BroadcastSessionUpdate(state *models.PublicSession) {
	msg := &Message{
		Type:      "SESSION_UPDATE",
		SessionID: state.SessionID,
		Data:      state,
	}

	select {
	case hub.broadcast <- msg:
	case <-hub.done:
	default:
		hub.log.Warn().Str("session_id", state.SessionID).Msg("broadcast queue full, dropping update")
	}
}

func (hub *WebSocketHub) run() {
	for {
		select {
		case client := <-hub.register:
			watchers, ok := hub.clients[client.SessionID]
			if !ok {
				watchers = make(map[*Client]struct{})
				hub.clients[client.SessionID] = watchers
			}
			watchers[client] = struct{}{}
			hub.log.Debug().Str("session_id", client.SessionID).Int("watchers", len(watchers)).Msg("client registered")

		case client := <-hub.unregister:
			hub.remove(client)

		case message := <-hub.broadcast:
			for client := range hub.clients[message.SessionID] {
				hub.deliver(client, message)
			}

		case d := <-hub.direct:
			if _, ok := hub.clients[d.client.SessionID][d.client]; ok {
				hub.deliver(d.client, d.msg)
			}

		case req := <-hub.count:
			req.reply <- len(hub.clients[req.sessionID])

		case <-hub.done:
			for _, watchers := range hub.clients {
				for client := range watchers {
					close(client.send)
				}
			}
			hub.clients = map[string]map[*Client]struct{}{}
			return
		}
	}
}

// deliver drops a client whose buffer is full rather than block the hub.
func (hub *WebSocketHub) deliver(client *Client, msg *Message) {
	select {
	case client.send <- msg:
	default:
		hub.remove(client)
	}
}

func (hub *WebSocketHub) remove(client *Client) {
	watchers, ok := hub.clients[client.SessionID]
	if !ok {
		return
	}
	if _, ok := watchers[client]; !ok {
		return
	}

	delete(watchers, client)
	close(client.send)
	if len(watchers) == 0 {
		delete(hub.clients, client.SessionID)
	}
	hub.log.Debug().Str("session_id", client.SessionID).Msg("client unregistered")
}

// Watchers reports how many clients follow a session.
func (hub *WebSocketHub) Watchers(sessionID string) int {
	req := countRequest{sessionID: sessionID, reply: make(chan int, 1)}
	select {
	case hub.count <- req:
		return <-req.reply
	case <-hub.done:
		return 0
	}
}

// sendDirect queues a reply for one client if it is still registered.
func (hub *WebSocketHub) sendDirect(client *Client, msg *Message) {
	select {
	case hub.direct <- directMessage{client: client, msg: msg}:
	case <-hub.done:
	}
}

type WebSocketHandler struct {
	gameEngine *services.GameEngine
	hub        *WebSocketHub
	log        zerolog.Logger

	// afterRegister runs between hub registration and the snapshot read. Tests only.
	afterRegister func(sessionID string)
}

func NewWebSocketHandler(gameEngine *services.GameEngine, hub *WebSocketHub, logger zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		gameEngine: gameEngine,
		hub:        hub,
		log:        logger.With().Str("component", "websocket_handler").Logger(),
	}
}

// HandleWebSocket streams public state updates for one session. The client is registered
// before the snapshot is read, so no committed transition falls between the two. Updates
// and the snapshot may arrive in either order; updated_at orders them.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("id")

	if _, err := h.gameEngine.GetPublicState(ctx, sessionID); err != nil {
		respondError(c, h.log, "Failed to subscribe", err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to upgrade to websocket")
		return
	}

	client := &Client{
		SessionID: sessionID,
		conn:      conn,
		send:      make(chan *Message, sendBuffer),
	}

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}

	if h.afterRegister != nil {
		h.afterRegister(sessionID)
	}

	state, err := h.gameEngine.GetPublicState(ctx, sessionID)
	if err != nil {
		h.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to read session snapshot")
		select {
		case h.hub.unregister <- client:
		case <-h.hub.done:
		}
		conn.Close()
		return
	}
	h.hub.sendDirect(client, &Message{Type: "SESSION_STATE", SessionID: sessionID, Data: state})

	go h.writePump(client)
	h.readPump(client)
}

func (h *WebSocketHandler) readPump(client *Client) {
	defer func() {
		select {
		case h.hub.unregister <- client:
		case <-h.hub.done:
		}
		client.conn.Close()
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := client.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn().Err(err).Str("session_id", client.SessionID).Msg("websocket read failed")
			}
			return
		}

		if msg.Type == "PING" {
			h.hub.sendDirect(client, &Message{
				Type: "PONG",
				Data: gin.H{"timestamp": time.Now().Unix()},
			})
		}
	}
}

func (h *WebSocketHandler) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
