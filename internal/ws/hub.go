package ws

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub fans the progress messages of one deployment out to every connected
// client. Messages are kept so late subscribers get the full history.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	stopOnce   sync.Once
	done       chan struct{}

	history    [][]byte
	maxHistory int
	log        *zap.Logger
}

func NewHub(maxHistory int, log *zap.Logger) *Hub {
	if maxHistory < 0 {
		maxHistory = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		maxHistory: maxHistory,
		log:        log,
	}
}

func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			for _, msg := range h.history {
				client.send <- msg
			}
			h.clients[client] = true

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}

		case message := <-h.broadcast:
			h.deliver(message)

		case <-h.stop:
			h.drain()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return
		}
	}
}

// drain delivers everything broadcast before Stop.
func (h *Hub) drain() {
	for {
		select {
		case message := <-h.broadcast:
			h.deliver(message)
		default:
			return
		}
	}
}

func (h *Hub) deliver(message []byte) {
	msg := append([]byte(nil), message...)
	if h.maxHistory > 0 {
		h.history = append(h.history, msg)
		if len(h.history) > h.maxHistory {
			h.history = h.history[1:]
		}
	}

	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			h.log.Warn("dropping slow progress client")
			delete(h.clients, client)
			close(client.send)
		}
	}
}

// Broadcast queues message for every client. It is a no-op once the hub stopped.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

// Stop flushes pending messages and closes every client connection.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// History returns the retained messages. Only safe after the hub stopped.
func (h *Hub) History() [][]byte {
	<-h.done
	out := make([][]byte, len(h.history))
	copy(out, h.history)
	return out
}

func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, h.maxHistory+256)}

	go client.writePump()

	select {
	case h.register <- client:
		go client.readPump()
	case <-h.done:
		// Finished deployment: replay and hang up.
		for _, msg := range h.History() {
			client.send <- msg
		}
		close(client.send)
	}
}
