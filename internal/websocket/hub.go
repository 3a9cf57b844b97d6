package websocket

import (
	"context"
	"encoding/json"

	"github.com/smbt-dev/inspectgo/internal/models"
	"go.uber.org/zap"
)

// Message types of the status feed protocol
const (
	TypeSubscribe     = "SUBSCRIBE"
	TypeUnsubscribe   = "UNSUBSCRIBE"
	TypeAck           = "ACK"
	TypeRequestStatus = "REQUEST_STATUS"
)

// StatusEvent is pushed to every client subscribed to a request when its
// status or inspector changes.
type StatusEvent struct {
	Type           string               `json:"type"`
	RequestID      uint                 `json:"requestId"`
	Status         models.RequestStatus `json:"status"`
	ExterminatorID *uint                `json:"exterminatorId,omitempty"`
}

// NewStatusEvent builds the event describing the current state of req
func NewStatusEvent(req *models.Request) StatusEvent {
	return StatusEvent{
		Type:           TypeRequestStatus,
		RequestID:      req.ID,
		Status:         req.Status,
		ExterminatorID: req.ExterminatorID,
	}
}

type subscription struct {
	client    *Client
	requestID uint
	remove    bool
}

// Hub tracks connected clients and the requests they follow. All maps are
// owned by the Run goroutine.
type Hub struct {
	// Registered clients map: ClientID -> Client
	clients map[string]*Client

	// Subscribers per request id
	subs map[uint]map[string]*Client

	register   chan *Client
	unregister chan *Client
	subscribe  chan subscription
	publish    chan StatusEvent

	// Closed when Run returns
	done chan struct{}

	log *zap.Logger
}

// NewHub creates a new Hub instance
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		subs:       make(map[uint]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		subscribe:  make(chan subscription),
		publish:    make(chan StatusEvent, 64),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves the hub until ctx is cancelled, then disconnects every client
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer func() {
		for id, c := range h.clients {
			close(c.send)
			delete(h.clients, id)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client.ID] = client
			h.log.Debug("ws client connected", zap.String("client", client.ID))

		case client := <-h.unregister:
			h.drop(client)

		case sub := <-h.subscribe:
			if _, ok := h.clients[sub.client.ID]; !ok {
				continue
			}
			if sub.remove {
				delete(sub.client.requestIDs, sub.requestID)
				delete(h.subs[sub.requestID], sub.client.ID)
				if len(h.subs[sub.requestID]) == 0 {
					delete(h.subs, sub.requestID)
				}
			} else {
				if h.subs[sub.requestID] == nil {
					h.subs[sub.requestID] = make(map[string]*Client)
				}
				h.subs[sub.requestID][sub.client.ID] = sub.client
				sub.client.requestIDs[sub.requestID] = true
			}
			h.deliver(sub.client, ack{Type: TypeAck, RequestID: sub.requestID})

		case ev := <-h.publish:
			for _, client := range h.subs[ev.RequestID] {
				h.deliver(client, ev)
			}
		}
	}
}

type ack struct {
	Type      string `json:"type"`
	RequestID uint   `json:"requestId"`
}

// deliver queues v for client, dropping the client if its buffer is full
func (h *Hub) deliver(client *Client, v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		h.log.Error("failed to marshal ws message", zap.Error(err))
		return
	}
	select {
	case client.send <- msg:
	default:
		h.log.Warn("ws client too slow, disconnecting", zap.String("client", client.ID))
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	for id := range client.requestIDs {
		delete(h.subs[id], client.ID)
		if len(h.subs[id]) == 0 {
			delete(h.subs, id)
		}
	}
	close(client.send)
	h.log.Debug("ws client disconnected", zap.String("client", client.ID))
}

// Publish queues ev for the subscribers of its request. It never blocks;
// events published while the queue is full are dropped.
func (h *Hub) Publish(ev StatusEvent) {
	if ev.Type == "" {
		ev.Type = TypeRequestStatus
	}
	select {
	case h.publish <- ev:
	default:
		h.log.Warn("ws publish queue full, dropping event", zap.Uint("request_id", ev.RequestID))
	}
}

// send hands a control message to the Run goroutine unless it has stopped
func send[T any](h *Hub, ch chan T, v T) bool {
	select {
	case ch <- v:
		return true
	case <-h.done:
		return false
	}
}
