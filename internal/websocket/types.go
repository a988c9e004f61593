package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raaihank/mention-sentinel/internal/mention"
	"github.com/raaihank/mention-sentinel/internal/simulation"
	"github.com/raaihank/mention-sentinel/internal/stats"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeQuarantine is sent for every item held back by the compliance gate
	EventTypeQuarantine EventType = "quarantine"
	// EventTypeRunComplete is sent with the statistics of a finished run
	EventTypeRunComplete EventType = "run_complete"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping
	EventTypePong EventType = "pong"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type       EventType   `json:"type"`
	Timestamp  time.Time   `json:"timestamp"`
	EntityName string      `json:"entity_name,omitempty"`
	RunID      string      `json:"run_id,omitempty"`
	Data       interface{} `json:"data"`
}

// QuarantineEvent describes one quarantined item
type QuarantineEvent struct {
	RecordID    string                `json:"record_id"`
	Adapter     string                `json:"adapter"`
	Platform    string                `json:"platform"`
	URL         string                `json:"url,omitempty"`
	FailedStage mention.Stage         `json:"failed_stage"`
	Kind        simulation.ReasonKind `json:"kind"`
	Reason      string                `json:"reason"`
}

// RunCompleteEvent carries the end-of-run statistics
type RunCompleteEvent struct {
	Summary    string               `json:"summary"`
	Consistent bool                 `json:"consistent"`
	Stats      stats.ScanStatistics `json:"stats"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action   string `json:"action"` // "connected", "disconnected"
	ClientID string `json:"client_id"`
	ClientIP string `json:"client_ip"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type         string               `json:"type"`
	Subscription *SubscriptionRequest `json:"subscription,omitempty"`
}

// SubscriptionRequest narrows the events a client receives. Empty fields match everything.
type SubscriptionRequest struct {
	Events     []EventType `json:"events,omitempty"`
	EntityName string      `json:"entity_name,omitempty"`
}

func (s *SubscriptionRequest) wants(event Event) bool {
	if s == nil {
		return true
	}
	if s.EntityName != "" && event.EntityName != "" && s.EntityName != event.EntityName {
		return false
	}
	if len(s.Events) == 0 {
		return true
	}
	for _, t := range s.Events {
		if t == event.Type {
			return true
		}
	}
	return false
}

// Client represents a WebSocket client connection
type Client struct {
	ID          string
	IP          string
	ConnectedAt time.Time

	conn *websocket.Conn
	send chan Event

	mu           sync.RWMutex
	subscription *SubscriptionRequest
}

func (c *Client) setSubscription(s *SubscriptionRequest) {
	c.mu.Lock()
	c.subscription = s
	c.mu.Unlock()
}

func (c *Client) wants(event Event) bool {
	if event.Type == EventTypePong {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscription.wants(event)
}
