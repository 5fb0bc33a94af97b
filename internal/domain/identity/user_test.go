package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUser_IsVerified(t *testing.T) {
	var nilUser *User
	assert.False(t, nilUser.IsVerified())
	assert.False(t, (&User{Email: "a@b.co"}).IsVerified())

	now := time.Now()
	assert.True(t, (&User{EmailConfirmedAt: &now}).IsVerified())
}
