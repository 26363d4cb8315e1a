package realtime

import (
	"encoding/json"
	"sync"

	"gridwatch/internal/model"

	"go.uber.org/zap"
)

// windowSize caps the per-device sliding window of recent readings used to
// seed new subscribers. The window is a convenience cache, never a source of
// truth; consumers needing guaranteed history query the durable store.
const windowSize = 200

// Event is one frame pushed to subscribers.
type Event struct {
	Event    string          `json:"event"` // "seed", "reading", "alert"
	DeviceID string          `json:"device_id"`
	Reading  *model.Reading  `json:"reading,omitempty"`
	Alert    *model.Alert    `json:"alert,omitempty"`
	Readings []model.Reading `json:"readings,omitempty"` // seed only
}

// room holds the subscriber set and sliding window for one device. Each room
// has its own lock so unrelated devices never contend.
type room struct {
	mu      sync.Mutex
	clients map[*Client]bool
	window  []model.Reading
}

type Hub struct {
	mu sync.RWMutex

	// room mapping: device id -> room
	rooms map[string]*room

	// reverse mapping: client -> subscribed device ids
	clientSubs map[*Client]map[string]bool
	logger     *zap.SugaredLogger
}

func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{
		rooms:      make(map[string]*room),
		clientSubs: make(map[*Client]map[string]bool),
		logger:     logger,
	}
}

// getRoom returns the room for deviceID, creating it when create is set.
func (h *Hub) getRoom(deviceID string, create bool) *room {
	h.mu.RLock()
	rm := h.rooms[deviceID]
	h.mu.RUnlock()
	if rm != nil || !create {
		return rm
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if rm = h.rooms[deviceID]; rm == nil {
		rm = &room{clients: make(map[*Client]bool)}
		h.rooms[deviceID] = rm
	}
	return rm
}

// Subscribe adds the client to the device room and seeds it with the current
// sliding window.
func (h *Hub) Subscribe(deviceID string, c *Client) {
	rm := h.getRoom(deviceID, true)

	h.mu.Lock()
	if h.clientSubs[c] == nil {
		h.clientSubs[c] = make(map[string]bool)
	}
	h.clientSubs[c][deviceID] = true
	h.mu.Unlock()

	rm.mu.Lock()
	rm.clients[c] = true
	seed := make([]model.Reading, len(rm.window))
	copy(seed, rm.window)
	rm.mu.Unlock()

	h.send(c, Event{Event: "seed", DeviceID: deviceID, Readings: seed})
}

// Unsubscribe removes the client from every room it joined.
func (h *Hub) Unsubscribe(c *Client) {
	h.mu.Lock()
	subs := h.clientSubs[c]
	delete(h.clientSubs, c)
	rooms := make([]*room, 0, len(subs))
	for deviceID := range subs {
		if rm := h.rooms[deviceID]; rm != nil {
			rooms = append(rooms, rm)
		}
	}
	h.mu.Unlock()

	for _, rm := range rooms {
		rm.mu.Lock()
		delete(rm.clients, c)
		rm.mu.Unlock()
	}
}

// PublishReading appends the reading to the device window and broadcasts it
// to all subscribers of that device. Best-effort: slow or gone subscribers
// are skipped, never block ingestion.
func (h *Hub) PublishReading(r model.Reading) {
	rm := h.getRoom(r.DeviceID, true)

	rm.mu.Lock()
	rm.window = append(rm.window, r)
	if len(rm.window) > windowSize {
		rm.window = rm.window[len(rm.window)-windowSize:]
	}
	clients := make([]*Client, 0, len(rm.clients))
	for c := range rm.clients {
		clients = append(clients, c)
	}
	rm.mu.Unlock()

	h.broadcast(clients, Event{Event: "reading", DeviceID: r.DeviceID, Reading: &r})
}

// PublishAlert broadcasts a classified alert to all subscribers of the device.
func (h *Hub) PublishAlert(a model.Alert) {
	rm := h.getRoom(a.DeviceID, false)
	if rm == nil {
		return
	}

	rm.mu.Lock()
	clients := make([]*Client, 0, len(rm.clients))
	for c := range rm.clients {
		clients = append(clients, c)
	}
	rm.mu.Unlock()

	h.broadcast(clients, Event{Event: "alert", DeviceID: a.DeviceID, Alert: &a})
}

// Window returns a copy of the current sliding window for a device.
func (h *Hub) Window(deviceID string) []model.Reading {
	rm := h.getRoom(deviceID, false)
	if rm == nil {
		return nil
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	out := make([]model.Reading, len(rm.window))
	copy(out, rm.window)
	return out
}

func (h *Hub) broadcast(clients []*Client, ev Event) {
	if len(clients) == 0 {
		return
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Errorw("failed to marshal event", "error", err, "event", ev.Event)
		return
	}
	for _, c := range clients {
		select {
		case c.send <- msg:
			// delivered
		default:
			// slow client -> skip
		}
	}
}

func (h *Hub) send(c *Client, ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Errorw("failed to marshal event", "error", err, "event", ev.Event)
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}
