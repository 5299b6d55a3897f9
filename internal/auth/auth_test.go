package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4xmen/peyvand/internal/errs"
	"github.com/4xmen/peyvand/internal/service"
	"github.com/4xmen/peyvand/internal/store/memory"
)

func newService(t *testing.T) *Service {
	t.Helper()
	svc := service.New(memory.New(), nil, time.Second)
	return New(svc.Users, "test-jwt-secret")
}

func TestRegisterValidation(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		password string
		wantErr  string
	}{
		{"short username", "ab", "password123", "username must be between 3 and 32 characters"},
		{"long username", "abcdefghijklmnopqrstuvwxyz1234567", "password123", "username must be between 3 and 32 characters"},
		{"invalid characters", "test@user", "password123", "username can only contain letters, numbers, and underscores"},
		{"short password", "newuser", "12345", "password must be at least 6 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Register(ctx, tt.username, tt.password)
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestRegisterAndLogin(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	user, err := s.Register(ctx, "  alice ", "password123")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEqual(t, "password123", user.HashedPassword)

	_, err = s.Register(ctx, "alice", "another-password")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	token, got, err := s.Login(ctx, "alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)

	_, _, err = s.Login(ctx, "alice", "wrongpassword")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = s.Login(ctx, "nobody", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	ok, err := s.UserExists(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.UserExists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidateToken(t *testing.T) {
	s := newService(t)

	_, err := s.ValidateToken("not-a-token")
	assert.Error(t, err)

	other := New(s.users, "other-secret")
	token, err := other.GenerateToken("U1", "alice")
	require.NoError(t, err)
	_, err = s.ValidateToken(token)
	assert.Error(t, err, "token signed with another secret")

	expired := NewWithTokenTTL(s.users, "test-jwt-secret", time.Nanosecond)
	token, err = expired.GenerateToken("U1", "alice")
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = s.ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "U1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.ValidateToken(unsigned)
	assert.Error(t, err)
}

func TestValidationErrorsAreInvalidArgument(t *testing.T) {
	s := newService(t)
	_, err := s.Register(context.Background(), "ab", "password123")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = s.Register(context.Background(), "alice", "password123")
	require.NoError(t, err)
	_, err = s.Register(context.Background(), "alice", "password123")
	assert.NotErrorIs(t, err, errs.ErrInvalidArgument)
}
