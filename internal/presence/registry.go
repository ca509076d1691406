package presence

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/hakanuyysal/aiku-backend-sub000/internal/models"
	"github.com/hakanuyysal/aiku-backend-sub000/internal/observability"
)

// Broadcaster is the fan-out surface the registry publishes transitions to.
type Broadcaster interface {
	PublishToUser(userID, eventType string, payload any)
	PublishToSessionExcept(sessionID, eventType string, payload any, exceptUserID string)
	PublishPresence(eventType string, payload any)
}

// Store persists the presence cache. A write failure is logged and never
// rolls back the in-memory state: the registry stays authoritative.
type Store interface {
	SetOnline(ctx context.Context, userID string, at time.Time) error
	SetOffline(ctx context.Context, userID string, at time.Time) error
}

// Registry is the authoritative in-memory record of which users currently
// hold at least one live connection. It owns both the forward map and the
// reverse index behind a single mutex; neither is ever exposed.
type Registry struct {
	mu        sync.Mutex
	userConns map[string]map[string]struct{}
	connOwner map[string]string

	// transitions counts online/offline flips per user. A persist job
	// captures the count under mu and yields if it moved before the job
	// won the per-user lock, so a reconnect racing a disconnect can never
	// leave the cache behind the registry.
	transitions map[string]uint64

	// persistLocks serializes cache writes per user so online/offline
	// transitions reach storage in the order they occurred.
	persistLocks sync.Map

	store Store
	hub   Broadcaster
	now   func() time.Time
}

// NewRegistry constructs an empty registry.
func NewRegistry(store Store, hub Broadcaster) *Registry {
	return &Registry{
		userConns:   make(map[string]map[string]struct{}),
		connOwner:   make(map[string]string),
		transitions: make(map[string]uint64),
		store:       store,
		hub:         hub,
		now:         time.Now,
	}
}

func (r *Registry) userLock(userID string) *sync.Mutex {
	lock, _ := r.persistLocks.LoadOrStore(userID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func (r *Registry) overtaken(userID string, transition uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transitions[userID] != transition
}

// AddConnection registers a connection for a user. Idempotent for duplicate
// registration of the same handle. The user's first connection transitions
// them online: the cache is refreshed and an online event is published.
func (r *Registry) AddConnection(ctx context.Context, userID, connID string) {
	r.mu.Lock()
	if owner, ok := r.connOwner[connID]; ok && owner == userID {
		r.mu.Unlock()
		return
	}
	conns, ok := r.userConns[userID]
	if !ok {
		conns = make(map[string]struct{})
		r.userConns[userID] = conns
	}
	conns[connID] = struct{}{}
	r.connOwner[connID] = userID
	first := len(conns) == 1
	var transition uint64
	if first {
		r.transitions[userID]++
		transition = r.transitions[userID]
	}
	online := len(r.userConns)
	r.mu.Unlock()

	observability.SetOnlineUsers(online)
	if !first {
		return
	}

	lock := r.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	if r.overtaken(userID, transition) {
		return
	}

	now := r.now().UTC()
	if err := r.store.SetOnline(ctx, userID, now); err != nil {
		log.Printf("presence cache write failed for %s: %v", userID, err)
	}
	payload := models.PresencePayload{UserID: userID, IsOnline: true, LastSeen: now}
	r.hub.PublishToUser(userID, models.EventUserOnline, payload)
	r.hub.PublishPresence(models.EventUserOnline, payload)
}

// RemoveConnection removes a connection by handle, looked up through the
// reverse index. No-op for unknown handles. The user's last connection going
// away transitions them offline.
func (r *Registry) RemoveConnection(ctx context.Context, connID string) {
	r.mu.Lock()
	userID, ok := r.connOwner[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.connOwner, connID)
	conns := r.userConns[userID]
	delete(conns, connID)
	last := len(conns) == 0
	var transition uint64
	if last {
		delete(r.userConns, userID)
		r.transitions[userID]++
		transition = r.transitions[userID]
	}
	online := len(r.userConns)
	r.mu.Unlock()

	observability.SetOnlineUsers(online)
	if !last {
		return
	}

	lock := r.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	if r.overtaken(userID, transition) {
		return
	}

	now := r.now().UTC()
	if err := r.store.SetOffline(ctx, userID, now); err != nil {
		log.Printf("presence cache write failed for %s: %v", userID, err)
	}
	payload := models.PresencePayload{UserID: userID, IsOnline: false, LastSeen: now}
	r.hub.PublishToUser(userID, models.EventUserOffline, payload)
	r.hub.PublishPresence(models.EventUserOffline, payload)
}

// IsOnline reports whether the user has at least one live connection.
// Purely in-memory; never queries storage.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.userConns[userID]) > 0
}

// OnlineUsers returns a snapshot of all currently-online user ids.
func (r *Registry) OnlineUsers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]string, 0, len(r.userConns))
	for userID := range r.userConns {
		users = append(users, userID)
	}
	return users
}

// OnlineCount returns the number of currently-online users.
func (r *Registry) OnlineCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.userConns)
}

// SendTyping publishes a typing indicator to the session channel, excluding
// the sender's own connections.
func (r *Registry) SendTyping(userID, sessionID string, isTyping bool) {
	r.hub.PublishToSessionExcept(sessionID, models.EventTyping, models.TypingPayload{
		SessionID: sessionID,
		UserID:    userID,
		IsTyping:  isTyping,
	}, userID)
}
