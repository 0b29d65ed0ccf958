package gossip

import "sync"

// Metrics tracks gossip activity for the status surface.
type Metrics struct {
	MessagesReceived  int64
	MessagesPublished int64
	PublishFailures   int64
	DecodeFailures    int64
	PeersDialed       int64
	FailedDials       int64
	mu                sync.RWMutex
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncrementMessagesReceived() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesReceived++
}

func (m *Metrics) IncrementMessagesPublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesPublished++
}

func (m *Metrics) IncrementPublishFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishFailures++
}

func (m *Metrics) IncrementDecodeFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DecodeFailures++
}

func (m *Metrics) IncrementPeersDialed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PeersDialed++
}

func (m *Metrics) IncrementFailedDials() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailedDials++
}

// GetSnapshot returns a point-in-time copy of the counters.
func (m *Metrics) GetSnapshot() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]int64{
		"messages_received":  m.MessagesReceived,
		"messages_published": m.MessagesPublished,
		"publish_failures":   m.PublishFailures,
		"decode_failures":    m.DecodeFailures,
		"peers_dialed":       m.PeersDialed,
		"failed_dials":       m.FailedDials,
	}
}
