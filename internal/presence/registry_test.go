package presence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakanuyysal/aiku-backend-sub000/internal/models"
)

type fakeStore struct {
	mu       sync.Mutex
	online   []string
	offline  []string
	ordered  []string
	stale    []models.PresenceStatus
	failNext bool
}

func (s *fakeStore) SetOnline(ctx context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return errors.New("write failed")
	}
	s.online = append(s.online, userID)
	s.ordered = append(s.ordered, "online:"+userID)
	return nil
}

func (s *fakeStore) SetOffline(ctx context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return errors.New("write failed")
	}
	s.offline = append(s.offline, userID)
	s.ordered = append(s.ordered, "offline:"+userID)
	return nil
}

func (s *fakeStore) FindStaleOnline(ctx context.Context, olderThan time.Time) ([]models.PresenceStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale, nil
}

func (s *fakeStore) onlineWrites() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.online...)
}

func (s *fakeStore) offlineWrites() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.offline...)
}

func (s *fakeStore) allWrites() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ordered...)
}

type publishedEvent struct {
	channel   string
	eventType string
	payload   any
	except    string
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (b *fakeBroadcaster) PublishToUser(userID, eventType string, payload any) {
	b.record(publishedEvent{channel: "user:" + userID, eventType: eventType, payload: payload})
}

func (b *fakeBroadcaster) PublishToSessionExcept(sessionID, eventType string, payload any, exceptUserID string) {
	b.record(publishedEvent{channel: "session:" + sessionID, eventType: eventType, payload: payload, except: exceptUserID})
}

func (b *fakeBroadcaster) PublishPresence(eventType string, payload any) {
	b.record(publishedEvent{channel: "presence", eventType: eventType, payload: payload})
}

func (b *fakeBroadcaster) record(event publishedEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *fakeBroadcaster) byType(eventType string) []publishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []publishedEvent
	for _, event := range b.events {
		if event.eventType == eventType {
			out = append(out, event)
		}
	}
	return out
}

func TestRegistryMultipleConnections(t *testing.T) {
	store := &fakeStore{}
	registry := NewRegistry(store, &fakeBroadcaster{})
	ctx := context.Background()

	registry.AddConnection(ctx, "u1", "c1")
	registry.AddConnection(ctx, "u1", "c2")
	require.True(t, registry.IsOnline("u1"))

	registry.RemoveConnection(ctx, "c1")
	assert.True(t, registry.IsOnline("u1"), "still online with one connection left")

	registry.RemoveConnection(ctx, "c2")
	assert.False(t, registry.IsOnline("u1"))

	assert.Equal(t, []string{"u1"}, store.onlineWrites(), "one online transition persisted")
	assert.Equal(t, []string{"u1"}, store.offlineWrites(), "one offline transition persisted")
}

func TestRegistryDuplicateAddIsIdempotent(t *testing.T) {
	store := &fakeStore{}
	registry := NewRegistry(store, &fakeBroadcaster{})
	ctx := context.Background()

	registry.AddConnection(ctx, "u1", "c1")
	registry.AddConnection(ctx, "u1", "c1")

	registry.RemoveConnection(ctx, "c1")
	assert.False(t, registry.IsOnline("u1"))
	assert.Equal(t, []string{"u1"}, store.onlineWrites())
}

func TestRegistryRemoveUnknownConnectionIsNoop(t *testing.T) {
	store := &fakeStore{}
	registry := NewRegistry(store, &fakeBroadcaster{})

	registry.RemoveConnection(context.Background(), "missing")
	assert.Empty(t, store.offlineWrites())
}

func TestRegistryPublishesTransitions(t *testing.T) {
	hub := &fakeBroadcaster{}
	registry := NewRegistry(&fakeStore{}, hub)
	ctx := context.Background()

	registry.AddConnection(ctx, "u1", "c1")
	online := hub.byType(models.EventUserOnline)
	require.Len(t, online, 2, "user channel and presence channel")
	assert.Equal(t, "user:u1", online[0].channel)
	assert.Equal(t, "presence", online[1].channel)

	registry.RemoveConnection(ctx, "c1")
	offline := hub.byType(models.EventUserOffline)
	require.Len(t, offline, 2)
}

func TestRegistryStoreFailureDoesNotRollBack(t *testing.T) {
	store := &fakeStore{failNext: true}
	registry := NewRegistry(store, &fakeBroadcaster{})

	registry.AddConnection(context.Background(), "u1", "c1")
	assert.True(t, registry.IsOnline("u1"), "registry stays authoritative on cache-write failure")
}

func TestRegistryOnlineUsersSnapshot(t *testing.T) {
	registry := NewRegistry(&fakeStore{}, &fakeBroadcaster{})
	ctx := context.Background()

	registry.AddConnection(ctx, "u1", "c1")
	registry.AddConnection(ctx, "u2", "c2")
	registry.AddConnection(ctx, "u2", "c3")

	assert.ElementsMatch(t, []string{"u1", "u2"}, registry.OnlineUsers())
	assert.Equal(t, 2, registry.OnlineCount())
}

func TestRegistryConcurrentAddRemove(t *testing.T) {
	store := &fakeStore{}
	registry := NewRegistry(store, &fakeBroadcaster{})
	ctx := context.Background()

	const workers = 32
	var wg sync.WaitGroup
	connIDs := make([]string, workers)
	for i := range connIDs {
		connIDs[i] = "conn-" + string(rune('a'+i%26)) + string(rune('0'+i/26))
	}

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(connID string) {
			defer wg.Done()
			registry.AddConnection(ctx, "u1", connID)
		}(connIDs[i])
	}
	wg.Wait()
	require.True(t, registry.IsOnline("u1"))

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(connID string) {
			defer wg.Done()
			registry.RemoveConnection(ctx, connID)
		}(connIDs[i])
	}
	wg.Wait()
	assert.False(t, registry.IsOnline("u1"))
	assert.Equal(t, []string{"u1"}, store.onlineWrites(), "exactly one online transition")
	assert.Equal(t, []string{"u1"}, store.offlineWrites(), "exactly one offline transition")
}

func TestRegistryReconnectRaceSettlesOnline(t *testing.T) {
	store := &fakeStore{}
	registry := NewRegistry(store, &fakeBroadcaster{})
	ctx := context.Background()

	registry.AddConnection(ctx, "u1", "conn-0")

	// Drop the old connection and register the new one concurrently, the
	// way a flaky client reconnects. However the persist jobs interleave,
	// the cache must settle on the registry's state.
	const rounds = 200
	for i := 1; i <= rounds; i++ {
		oldConn := fmt.Sprintf("conn-%d", i-1)
		newConn := fmt.Sprintf("conn-%d", i)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			registry.RemoveConnection(ctx, oldConn)
		}()
		go func() {
			defer wg.Done()
			registry.AddConnection(ctx, "u1", newConn)
		}()
		wg.Wait()
	}

	require.True(t, registry.IsOnline("u1"))
	writes := store.allWrites()
	require.NotEmpty(t, writes)
	assert.Equal(t, "online:u1", writes[len(writes)-1], "last persisted state matches the registry")
}

func TestRegistrySendTypingExcludesSender(t *testing.T) {
	hub := &fakeBroadcaster{}
	registry := NewRegistry(&fakeStore{}, hub)

	registry.SendTyping("u1", "s1", true)

	typing := hub.byType(models.EventTyping)
	require.Len(t, typing, 1)
	assert.Equal(t, "session:s1", typing[0].channel)
	assert.Equal(t, "u1", typing[0].except)

	payload, ok := typing[0].payload.(models.TypingPayload)
	require.True(t, ok)
	assert.True(t, payload.IsTyping)
}
