package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
)

func TestCreateUser_RoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	u := seedUser(t, s, "alice@example.com")

	got, err := s.GetUser(context.Background(), u.ID)
	require.NoError(t, err)

	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, u.PasswordHash, got.PasswordHash)
	assert.Equal(t, "user", got.Role)
	assert.Zero(t, got.CreditBalance)
	assert.True(t, got.IsActive)
	assert.Equal(t, testEpoch, got.CreatedAt)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s, _ := newTestStore(t)
	seedUser(t, s, "alice@example.com")

	dup := &domain.User{
		ID:           uuid.NewString(),
		Email:        "alice@example.com",
		PasswordHash: "other",
		Role:         "user",
	}
	err := s.CreateUser(context.Background(), dup)
	require.Error(t, err)
	assert.ErrorIs(t, err, sserrors.ErrUserExists)
}

func TestGetUser_NotFound(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.GetUser(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, sserrors.ErrUserNotFound)

	_, err = s.GetUserByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, sserrors.ErrUserNotFound)
}

func TestGetUserByEmail(t *testing.T) {
	s, _ := newTestStore(t)
	u := seedUser(t, s, "bob@example.com")

	got, err := s.GetUserByEmail(context.Background(), "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestSetUserActive(t *testing.T) {
	s, _ := newTestStore(t)
	u := seedUser(t, s, "carol@example.com")

	require.NoError(t, s.SetUserActive(context.Background(), u.ID, false))

	got, err := s.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	require.NoError(t, s.SetUserActive(context.Background(), u.ID, true))
	got, err = s.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestSetUserActive_NotFound(t *testing.T) {
	s, _ := newTestStore(t)

	err := s.SetUserActive(context.Background(), uuid.NewString(), false)
	assert.ErrorIs(t, err, sserrors.ErrUserNotFound)
}
