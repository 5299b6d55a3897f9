package ws

import (
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/4xmen/peyvand/internal/metrics"
	"github.com/4xmen/peyvand/internal/models"
	"github.com/4xmen/peyvand/internal/service"
)

// Registry tracks the live connection and presence entry of every connected
// user. A second connection for the same user replaces the first for
// outbound delivery; the older transport is left open.
type Registry struct {
	mu       sync.RWMutex
	conns    map[string]Transport
	presence map[string]models.Presence
	logger   *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		conns:    make(map[string]Transport),
		presence: make(map[string]models.Presence),
		logger:   logger,
	}
}

// Connect registers t for userID and broadcasts the new roster to everyone,
// including the new connection.
func (r *Registry) Connect(t Transport, userID, username string) {
	r.mu.Lock()
	if old, ok := r.conns[userID]; ok && old != t {
		r.logger.Info("replacing connection", zap.String("user_id", userID))
	}
	r.conns[userID] = t
	r.presence[userID] = models.Presence{
		ID:          userID,
		Username:    username,
		ConnectedAt: time.Now().UTC().Format(service.TimeLayout),
	}
	n := len(r.conns)
	r.mu.Unlock()

	metrics.OnlineUsers.Set(float64(n))
	r.logger.Info("user connected", zap.String("user_id", userID), zap.String("username", username), zap.Int("online", n))
	r.BroadcastPresence()
}

// Disconnect removes userID. Removing an absent user is a no-op.
func (r *Registry) Disconnect(userID string) {
	r.mu.Lock()
	_, ok := r.conns[userID]
	r.remove(userID)
	r.mu.Unlock()
	if ok {
		r.logger.Info("user disconnected", zap.String("user_id", userID))
	}
}

// Release removes userID only while t is still its registered transport, so
// a superseded connection cannot evict its replacement.
func (r *Registry) Release(userID string, t Transport) bool {
	r.mu.Lock()
	current, ok := r.conns[userID]
	if !ok || current != t {
		r.mu.Unlock()
		return false
	}
	r.remove(userID)
	r.mu.Unlock()
	r.logger.Info("user disconnected", zap.String("user_id", userID))
	return true
}

// remove must be called with mu held.
func (r *Registry) remove(userID string) {
	delete(r.conns, userID)
	delete(r.presence, userID)
	metrics.OnlineUsers.Set(float64(len(r.conns)))
}

// SendPersonal writes v to userID's connection. It reports whether the
// envelope was written; an absent user is not an error.
func (r *Registry) SendPersonal(userID string, v any) bool {
	r.mu.RLock()
	t, ok := r.conns[userID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	data, err := json.Marshal(v)
	if err != nil {
		r.logger.Error("failed to encode envelope", zap.Error(err))
		return false
	}
	if err := t.Send(data); err != nil {
		r.logger.Warn("send failed", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	return true
}

// Broadcast writes v to every live connection. A failed write is logged
// and does not stop delivery to the others.
func (r *Registry) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		r.logger.Error("failed to encode envelope", zap.Error(err))
		return
	}

	type target struct {
		userID string
		t      Transport
	}
	r.mu.RLock()
	targets := make([]target, 0, len(r.conns))
	for id, t := range r.conns {
		targets = append(targets, target{id, t})
	}
	r.mu.RUnlock()

	for _, tg := range targets {
		if err := tg.t.Send(data); err != nil {
			r.logger.Warn("broadcast failed", zap.String("user_id", tg.userID), zap.Error(err))
		}
	}
}

// BroadcastPresence sends the current roster to everyone.
func (r *Registry) BroadcastPresence() {
	r.Broadcast(usersUpdate{Type: "users-update", Users: r.Presence()})
}

// Presence returns connected users ordered by connection time.
func (r *Registry) Presence() []models.Presence {
	r.mu.RLock()
	out := make([]models.Presence, 0, len(r.presence))
	for _, p := range r.presence {
		out = append(out, p)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b models.Presence) int {
		if c := strings.Compare(a.ConnectedAt, b.ConnectedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[userID]
	return ok
}

// LookupUsername finds a connected user by name. When several are
// connected under the same name, the earliest wins.
func (r *Registry) LookupUsername(username string) (string, bool) {
	for _, p := range r.Presence() {
		if p.Username == username {
			return p.ID, true
		}
	}
	return "", false
}
