package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/4xmen/peyvand/internal/errs"
	"github.com/4xmen/peyvand/internal/models"
	"github.com/4xmen/peyvand/internal/store"
)

type Users struct {
	base
}

// Create stores a new user. The username must not be taken.
func (u *Users) Create(ctx context.Context, username, hashedPassword string) (*models.User, error) {
	ctx, cancel := u.bound(ctx)
	defer cancel()

	_, err := u.coll(store.Users).FindOne(ctx, store.Where(store.Eq("username", username)))
	switch {
	case err == nil:
		return nil, errs.ErrConflict
	case !errors.Is(err, errs.ErrNotFound):
		return nil, err
	}

	user := &models.User{
		ID:             uuid.NewString(),
		Username:       username,
		HashedPassword: hashedPassword,
		CreatedAt:      u.clock.Now(),
	}
	err = u.coll(store.Users).InsertOne(ctx, store.Document{
		"id":              user.ID,
		"username":        user.Username,
		"hashed_password": user.HashedPassword,
		"created_at":      user.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (u *Users) ByUsername(ctx context.Context, username string) (*models.User, error) {
	return u.findOne(ctx, store.Where(store.Eq("username", username)))
}

func (u *Users) ByID(ctx context.Context, id string) (*models.User, error) {
	return u.findOne(ctx, store.Where(store.Eq("id", id)))
}

func (u *Users) findOne(ctx context.Context, m store.Match) (*models.User, error) {
	ctx, cancel := u.bound(ctx)
	defer cancel()

	doc, err := u.coll(store.Users).FindOne(ctx, m)
	if err != nil {
		return nil, err
	}
	return &models.User{
		ID:             doc.String("id"),
		Username:       doc.String("username"),
		HashedPassword: doc.String("hashed_password"),
		CreatedAt:      doc.String("created_at"),
	}, nil
}

// Count returns the number of stored users.
func (u *Users) Count(ctx context.Context) (int, error) {
	return count(ctx, u.base, store.Users)
}

func count(ctx context.Context, b base, coll string) (int, error) {
	ctx, cancel := b.bound(ctx)
	defer cancel()

	cur := b.coll(coll).Find(ctx, store.Match{})
	defer cur.Close(ctx)
	n := 0
	for cur.Next(ctx) {
		n++
	}
	return n, cur.Err()
}
