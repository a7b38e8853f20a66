package hub

import (
	"log/slog"
	"sync"

	"roadsense/go-hub-server/internal/model"
)

// Listener receives records published for the user it subscribed under.
// Deliver returns an error when the listener could not take the record;
// the hub logs and isolates such failures.
type Listener interface {
	Deliver(record model.ProcessedRecord) error
}

// userSubs holds the listener set for one user. Its mutex serializes
// deliveries with subscription changes, so publishes for a single user
// reach each listener in publish order and a listener is never
// delivered-to after Unsubscribe has returned. removed marks an entry
// that has been pruned from the hub map and must not be reused.
type userSubs struct {
	mu        sync.Mutex
	listeners map[Listener]struct{}
	removed   bool
}

// Hub maintains, per user id, the set of currently connected listeners
// and fans newly stored records out to them. It owns only the mapping
// lifecycle; listeners are owned by their connections.
type Hub struct {
	logger *slog.Logger

	mu    sync.RWMutex
	users map[int64]*userSubs
}

// New constructs an empty hub.
func New(logger *slog.Logger) *Hub {
	return &Hub{logger: logger, users: make(map[int64]*userSubs)}
}

// Subscribe registers a listener under a user id.
//
// h.mu is never held while waiting on a per-user mutex, so a slow
// delivery for one user cannot stall lifecycle calls for the others.
func (h *Hub) Subscribe(userID int64, l Listener) {
	for {
		h.mu.Lock()
		subs, ok := h.users[userID]
		if !ok {
			subs = &userSubs{listeners: make(map[Listener]struct{})}
			h.users[userID] = subs
		}
		h.mu.Unlock()

		subs.mu.Lock()
		if subs.removed {
			// Lost a race with the last Unsubscribe pruning this
			// entry; fetch or create a fresh one.
			subs.mu.Unlock()
			continue
		}
		subs.listeners[l] = struct{}{}
		subs.mu.Unlock()
		return
	}
}

// Unsubscribe removes a listener. Removing an absent listener is a no-op.
// Once Unsubscribe returns, the listener receives no further records.
func (h *Hub) Unsubscribe(userID int64, l Listener) {
	h.mu.RLock()
	subs, ok := h.users[userID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	subs.mu.Lock()
	delete(subs.listeners, l)
	empty := len(subs.listeners) == 0
	if empty {
		subs.removed = true
	}
	subs.mu.Unlock()

	if empty {
		h.mu.Lock()
		if h.users[userID] == subs {
			delete(h.users, userID)
		}
		h.mu.Unlock()
	}
}

// Publish delivers the record to every listener currently registered for
// the user. Delivery is best effort per listener; a failing listener does
// not block delivery to the rest and never fails the publish. A user with
// no listeners simply drops the record.
func (h *Hub) Publish(userID int64, record model.ProcessedRecord) {
	h.mu.RLock()
	subs, ok := h.users[userID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	subs.mu.Lock()
	defer subs.mu.Unlock()

	for l := range subs.listeners {
		if err := l.Deliver(record); err != nil {
			h.logger.Warn("delivery to listener failed", "user_id", userID, "record_id", record.ID, "error", err)
		}
	}
}

// Subscribers reports how many listeners are registered for a user.
func (h *Hub) Subscribers(userID int64) int {
	h.mu.RLock()
	subs, ok := h.users[userID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}

	subs.mu.Lock()
	defer subs.mu.Unlock()
	return len(subs.listeners)
}
