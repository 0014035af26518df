package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdminSessions(t *testing.T) {
	sessions := NewAdminSessions()

	assert.False(t, sessions.IsAdmin("conn-1"))
	assert.Zero(t, sessions.Count())

	sessions.Grant("conn-1")
	assert.True(t, sessions.IsAdmin("conn-1"))
	assert.False(t, sessions.IsAdmin("conn-2"))
	assert.Equal(t, 1, sessions.Count())

	sessions.Revoke("conn-1")
	assert.False(t, sessions.IsAdmin("conn-1"))
	assert.Zero(t, sessions.Count())

	// Revoking an unknown connection is harmless.
	sessions.Revoke("conn-404")
}
