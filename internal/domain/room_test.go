package domain_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dylan0165/EUsuite-Platform-sub002/internal/domain"
)

func TestParseRoomID(t *testing.T) {
	id, err := domain.ParseRoomID("standup")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomID("standup"), id)
}

func TestParseRoomIDEmpty(t *testing.T) {
	_, err := domain.ParseRoomID("")
	assert.ErrorIs(t, err, domain.ErrRoomIDEmpty)
}

func TestParseRoomIDTooLong(t *testing.T) {
	_, err := domain.ParseRoomID(strings.Repeat("x", domain.MaxRoomIDLen+1))
	assert.ErrorIs(t, err, domain.ErrRoomIDTooLong)

	_, err = domain.ParseRoomID(strings.Repeat("x", domain.MaxRoomIDLen))
	assert.NoError(t, err)
}
