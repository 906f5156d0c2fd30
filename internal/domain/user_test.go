package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("ROOT").Valid())
	assert.False(t, Role("user").Valid())
}

func TestUserJSONOmitsPassword(t *testing.T) {
	b, err := json.Marshal(User{ID: "u-1", Email: "a@example.com", PasswordHash: "secret-hash", Role: RoleUser})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.NotContains(t, m, "password")
	assert.NotContains(t, m, "passwordHash")
	assert.NotContains(t, string(b), "secret-hash")
	assert.Contains(t, m, "firstName")
	assert.Nil(t, m["firstName"])
}

func TestMsgError(t *testing.T) {
	err := fmt.Errorf("service: %w", WithMsg(ErrUserNotFound, "User with ID x not found"))
	assert.True(t, errors.Is(err, ErrUserNotFound))
	assert.Equal(t, "User with ID x not found", Message(err))
	assert.Equal(t, "email already in use", Message(ErrEmailTaken))
}
