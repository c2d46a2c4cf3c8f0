package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/welldanyogia/webrana-mail-digest/internal/models"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeRunStarted  MessageType = "run_started"
	MessageTypeRunFinished MessageType = "run_finished"
	// MessageTypeLastRun asks for, and answers with, the most recent finished run
	MessageTypeLastRun MessageType = "last_run"
	MessageTypeError   MessageType = "error"
)

// WSMessage represents a WebSocket message. Event names the event type a client
// subscribes to; a client with no subscriptions receives every event.
type WSMessage struct {
	Type  MessageType `json:"type"`
	Event MessageType `json:"event,omitempty"`
	Run   *RunPayload `json:"run,omitempty"`
	Error string      `json:"error,omitempty"`
}

// RunPayload is the run summary pushed to clients
type RunPayload struct {
	ID            string     `json:"id"`
	Trigger       string     `json:"trigger"`
	Status        string     `json:"status"`
	FetchedCount  int        `json:"fetched_count"`
	DigestCount   int        `json:"digest_count"`
	FallbackCount int        `json:"fallback_count"`
	FetchFailed   bool       `json:"fetch_failed"`
	Message       string     `json:"message,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

func newRunPayload(run *models.ReportRun) *RunPayload {
	return &RunPayload{
		ID:            run.ID,
		Trigger:       run.Trigger,
		Status:        run.Status,
		FetchedCount:  run.FetchedCount,
		DigestCount:   run.DigestCount,
		FallbackCount: run.FallbackCount,
		FetchFailed:   run.FetchFailed,
		Message:       run.Message,
		StartedAt:     run.StartedAt,
		FinishedAt:    run.FinishedAt,
	}
}

// Hub maintains the set of active clients and broadcasts run events
type Hub struct {
	// Registered clients and their event filters
	clients map[*Client]map[MessageType]bool

	register    chan *Client
	unregister  chan *Client
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest
	broadcast   chan *broadcastMessage
	done        chan struct{}

	mu     sync.RWMutex
	last   *RunPayload
	logger *slog.Logger
}

type subscriptionRequest struct {
	client *Client
	event  MessageType
}

type broadcastMessage struct {
	event   MessageType
	message []byte
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:     make(map[*Client]map[MessageType]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan *subscriptionRequest),
		unsubscribe: make(chan *subscriptionRequest),
		broadcast:   make(chan *broadcastMessage, 256),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Run starts the hub's main loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// send channels stay open: a client's read loop may still reply.
			// Each write loop sees done and closes its own connection.
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = make(map[MessageType]bool)
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client registered")
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client unregistered")
			}

		case req := <-h.subscribe:
			h.mu.Lock()
			if filters, ok := h.clients[req.client]; ok {
				filters[req.event] = true
			}
			h.mu.Unlock()

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if filters, ok := h.clients[req.client]; ok {
				delete(filters, req.event)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client, filters := range h.clients {
				if len(filters) > 0 && !filters[msg.event] {
					continue
				}
				select {
				case client.send <- msg.message:
				default:
					// Client buffer full, skip
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Subscribe narrows a client to the given event type
func (h *Hub) Subscribe(client *Client, event MessageType) {
	select {
	case h.subscribe <- &subscriptionRequest{client: client, event: event}:
	case <-h.done:
	}
}

// Unsubscribe removes an event filter from a client
func (h *Hub) Unsubscribe(client *Client, event MessageType) {
	select {
	case h.unsubscribe <- &subscriptionRequest{client: client, event: event}:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RunStarted broadcasts a run_started event
func (h *Hub) RunStarted(run *models.ReportRun) {
	h.broadcastRun(MessageTypeRunStarted, run)
}

// RunFinished broadcasts a run_finished event
func (h *Hub) RunFinished(run *models.ReportRun) {
	h.broadcastRun(MessageTypeRunFinished, run)
}

// LastRun returns the most recently finished run, or nil before the first one
func (h *Hub) LastRun() *RunPayload {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last
}

func (h *Hub) broadcastRun(event MessageType, run *models.ReportRun) {
	payload := newRunPayload(run)
	if event == MessageTypeRunFinished {
		h.mu.Lock()
		h.last = payload
		h.mu.Unlock()
	}

	data, err := json.Marshal(WSMessage{Type: event, Run: payload})
	if err != nil {
		if h.logger != nil {
			h.logger.Error("failed to marshal broadcast message", slog.Any("error", err))
		}
		return
	}

	select {
	case h.broadcast <- &broadcastMessage{event: event, message: data}:
	default:
		if h.logger != nil {
			h.logger.Warn("websocket broadcast queue full, dropping event", slog.String("event", string(event)))
		}
	}
}
