// Package service implements the user, message and friend operations on top
// of the document store. It is shared by the websocket relay and the HTTP
// handlers.
package service

import (
	"context"
	"time"

	"github.com/4xmen/peyvand/internal/store"
)

// Presence answers questions about currently connected users.
type Presence interface {
	IsOnline(userID string) bool
	// LookupUsername returns the id of a connected user with the given name.
	LookupUsername(username string) (string, bool)
}

type Service struct {
	Users    *Users
	Messages *Messages
	Friends  *Friends
	Clock    *Clock
}

// New wires the services around one store. Every store call is bounded by
// timeout so an exhausted pool surfaces as an error instead of a hang.
func New(s store.Store, presence Presence, timeout time.Duration) *Service {
	b := base{store: s, clock: NewClock(), timeout: timeout}
	users := &Users{base: b}
	return &Service{
		Users:    users,
		Messages: &Messages{base: b},
		Friends:  &Friends{base: b, users: users, presence: presence},
		Clock:    b.clock,
	}
}

type base struct {
	store   store.Store
	clock   *Clock
	timeout time.Duration
}

func (b base) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

func (b base) coll(name string) store.Collection {
	return b.store.Collection(name)
}
