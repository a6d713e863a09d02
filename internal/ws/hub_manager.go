package ws

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultHistorySize = 64
	DefaultRetention   = 2 * time.Minute
)

// HubManager keeps one Hub per deployment request id. Finished hubs stay
// around for a retention period so a client connecting late still gets the
// replay. A hub nothing is published to within the retention period is
// dropped.
type HubManager struct {
	hubs        map[string]*Hub
	published   map[string]bool
	mu          sync.Mutex
	historySize int
	retention   time.Duration
	log         *zap.Logger
}

func NewHubManager(historySize int, retention time.Duration, log *zap.Logger) *HubManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &HubManager{
		hubs:        make(map[string]*Hub),
		published:   make(map[string]bool),
		historySize: historySize,
		retention:   retention,
		log:         log,
	}
}

func (m *HubManager) GetHub(requestID string) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[requestID]; ok {
		return hub
	}

	hub := NewHub(m.historySize, m.log.With(zap.String("request_id", requestID)))
	go hub.Run()
	m.hubs[requestID] = hub
	time.AfterFunc(m.retention, func() {
		m.dropIdle(requestID, hub)
	})
	return hub
}

func (m *HubManager) dropIdle(requestID string, hub *Hub) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hubs[requestID] != hub || m.published[requestID] {
		return
	}
	m.log.Debug("dropping idle progress hub", zap.String("request_id", requestID))
	hub.Stop()
	delete(m.hubs, requestID)
}

// Publish encodes v as JSON and broadcasts it on the request's hub.
func (m *HubManager) Publish(requestID string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		m.log.Error("could not encode progress event", zap.Error(err))
		return
	}
	hub := m.GetHub(requestID)
	m.mu.Lock()
	m.published[requestID] = true
	m.mu.Unlock()
	hub.Broadcast(data)
}

// Finish stops the request's hub and forgets it after the retention period.
func (m *HubManager) Finish(requestID string) {
	m.mu.Lock()
	hub, ok := m.hubs[requestID]
	if !ok {
		m.mu.Unlock()
		return
	}

	m.published[requestID] = true
	m.mu.Unlock()

	hub.Stop()
	time.AfterFunc(m.retention, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.hubs[requestID] == hub {
			delete(m.hubs, requestID)
			delete(m.published, requestID)
		}
	})
}

func (m *HubManager) RemoveHub(requestID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[requestID]; ok {
		hub.Stop()
		delete(m.hubs, requestID)
	}
	delete(m.published, requestID)
}

func (m *HubManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.hubs)
}
