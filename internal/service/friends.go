package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/4xmen/peyvand/internal/errs"
	"github.com/4xmen/peyvand/internal/models"
	"github.com/4xmen/peyvand/internal/store"
)

type Friends struct {
	base
	users    *Users
	presence Presence
}

// SendRequest records a pending relation from fromID to the user named
// toUsername. The name is looked up among stored users first and then among
// connected users. Only the ordered pair is checked for an existing
// relation, so two opposite pending requests can coexist.
func (f *Friends) SendRequest(ctx context.Context, fromID, fromUsername, toUsername string) (*models.Friend, error) {
	toID, err := f.resolve(ctx, toUsername)
	if err != nil {
		return nil, err
	}
	if toID == fromID {
		return nil, errs.Invalid("cannot send a friend request to yourself")
	}

	ctx, cancel := f.bound(ctx)
	defer cancel()

	_, err = f.coll(store.Friends).FindOne(ctx, store.Where(
		store.Eq("user_id", fromID),
		store.Eq("friend_id", toID),
	))
	switch {
	case err == nil:
		return nil, errs.ErrConflict
	case !errors.Is(err, errs.ErrNotFound):
		return nil, err
	}

	rel := &models.Friend{
		ID:             uuid.NewString(),
		UserID:         fromID,
		Username:       fromUsername,
		FriendID:       toID,
		FriendUsername: toUsername,
		Status:         models.FriendPending,
		CreatedAt:      f.clock.Now(),
	}
	err = f.coll(store.Friends).InsertOne(ctx, store.Document{
		"id":              rel.ID,
		"user_id":         rel.UserID,
		"username":        rel.Username,
		"friend_id":       rel.FriendID,
		"friend_username": rel.FriendUsername,
		"status":          rel.Status,
		"created_at":      rel.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	return rel, nil
}

func (f *Friends) resolve(ctx context.Context, username string) (string, error) {
	user, err := f.users.ByUsername(ctx, username)
	if err == nil {
		return user.ID, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return "", err
	}
	if f.presence != nil {
		if id, ok := f.presence.LookupUsername(username); ok {
			return id, nil
		}
	}
	return "", errs.ErrNotFound
}

// Accept marks the pending request from fromID to toID as accepted.
func (f *Friends) Accept(ctx context.Context, fromID, toID string) error {
	ctx, cancel := f.bound(ctx)
	defer cancel()

	n, err := f.coll(store.Friends).UpdateOne(ctx, store.Where(
		store.Eq("user_id", fromID),
		store.Eq("friend_id", toID),
		store.Eq("status", models.FriendPending),
	), store.Set{"status": models.FriendAccepted})
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// List returns the users with an accepted relation to userID in either
// direction, once each, with their live presence.
func (f *Friends) List(ctx context.Context, userID string) ([]models.FriendView, error) {
	rels, err := f.find(ctx, store.AnyOf{
		store.Where(store.Eq("user_id", userID), store.Eq("status", models.FriendAccepted)),
		store.Where(store.Eq("friend_id", userID), store.Eq("status", models.FriendAccepted)),
	})
	if err != nil {
		return nil, err
	}

	out := []models.FriendView{}
	seen := make(map[string]bool, len(rels))
	for _, r := range rels {
		view := models.FriendView{FriendID: r.FriendID, FriendUsername: r.FriendUsername}
		if r.FriendID == userID {
			view = models.FriendView{FriendID: r.UserID, FriendUsername: r.Username}
		}
		if seen[view.FriendID] {
			continue
		}
		seen[view.FriendID] = true
		if f.presence != nil {
			view.IsOnline = f.presence.IsOnline(view.FriendID)
		}
		out = append(out, view)
	}
	return out, nil
}

// Pending returns requests awaiting userID's answer.
func (f *Friends) Pending(ctx context.Context, userID string) ([]models.Friend, error) {
	return f.find(ctx, store.Where(
		store.Eq("friend_id", userID),
		store.Eq("status", models.FriendPending),
	))
}

func (f *Friends) find(ctx context.Context, filter store.Filter) ([]models.Friend, error) {
	ctx, cancel := f.bound(ctx)
	defer cancel()

	docs, err := f.coll(store.Friends).Find(ctx, filter).
		Sort("created_at", store.Ascending).
		ToList(ctx, HistoryLimit)
	if err != nil {
		return nil, err
	}
	out := make([]models.Friend, len(docs))
	for i, d := range docs {
		out[i] = models.Friend{
			ID:             d.String("id"),
			UserID:         d.String("user_id"),
			Username:       d.String("username"),
			FriendID:       d.String("friend_id"),
			FriendUsername: d.String("friend_username"),
			Status:         d.String("status"),
			CreatedAt:      d.String("created_at"),
		}
	}
	return out, nil
}

// Count returns the number of stored friend relations.
func (f *Friends) Count(ctx context.Context) (int, error) {
	return count(ctx, f.base, store.Friends)
}
