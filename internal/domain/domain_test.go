package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	u, err := NewUser("u1", "Alice")
	require.NoError(t, err)
	assert.Equal(t, UserID("u1"), u.ID)
	assert.Equal(t, "Alice", u.Username)
}

func TestNewUser_EmptyNameAllowed(t *testing.T) {
	u, err := NewUser("u1", "")
	require.NoError(t, err)
	assert.Empty(t, u.Username)
}

func TestNewUser_Rejects(t *testing.T) {
	_, err := NewUser("", "Alice")
	assert.ErrorIs(t, err, ErrUserIDEmpty)

	_, err = NewUser(strings.Repeat("x", MaxUserIDLen+1), "Alice")
	assert.ErrorIs(t, err, ErrUserIDTooLong)

	_, err = NewUser("u1", strings.Repeat("n", MaxUsernameLen+1))
	assert.ErrorIs(t, err, ErrUsernameTooLong)
}

func TestParseRoomID(t *testing.T) {
	id, err := ParseRoomID("abc")
	require.NoError(t, err)
	assert.Equal(t, RoomID("abc"), id)

	_, err = ParseRoomID("")
	assert.ErrorIs(t, err, ErrRoomIDEmpty)

	_, err = ParseRoomID(strings.Repeat("r", MaxRoomIDLen+1))
	assert.ErrorIs(t, err, ErrRoomIDTooLong)
}
