// Package events is the in-process fan-out for game happenings: kills,
// zone updates, proximity alerts, pauses. WebSocket delivery sits on top
// of Subscribe in the HTTP layer.
package events

import (
	"sync"
	"time"
)

// Event types published by the engines.
const (
	TypeProximityAlert = "PROXIMITY_ALERT"
	TypeKillProposed   = "KILL_PROPOSED"
	TypeKillVerified   = "KILL_VERIFIED"
	TypeKillRejected   = "KILL_REJECTED"
	TypeTargetAssigned = "TARGET_ASSIGNED"
	TypeZoneUpdate     = "ZONE_UPDATE"
	TypeZoneDamage     = "ZONE_DAMAGE"
	TypeGameStarted    = "GAME_STARTED"
	TypeGameCompleted  = "GAME_COMPLETED"
	TypeGamePaused     = "GAME_PAUSED"
	TypeGameResumed    = "GAME_RESUMED"
)

// Event is one notification scoped to a game. PlayerID, when set, names
// the player the event is about; subscribers filter client-side.
type Event struct {
	Type     string    `json:"type"`
	GameID   string    `json:"gameId"`
	PlayerID string    `json:"playerId,omitempty"`
	Payload  any       `json:"payload,omitempty"`
	At       time.Time `json:"at"`
}

// subscriberBuffer bounds a slow consumer; overflow drops the event for
// that subscriber rather than blocking the publisher.
const subscriberBuffer = 64

// Hub routes events to per-game subscribers. Safe for concurrent use.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

// Publish delivers ev to every subscriber of its game. Never blocks.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[ev.GameID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a listener for one game's events. The returned
// cancel func must be called to release the subscription.
func (h *Hub) Subscribe(gameID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.subs[gameID] == nil {
		h.subs[gameID] = make(map[chan Event]struct{})
	}
	h.subs[gameID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[gameID], ch)
			if len(h.subs[gameID]) == 0 {
				delete(h.subs, gameID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// SubscriberCount reports how many listeners a game has.
func (h *Hub) SubscriberCount(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[gameID])
}
