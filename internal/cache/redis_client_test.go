package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Keys(t *testing.T) {
	assert.Equal(t, "dm:deliver:u1", DeliverChannel("u1"))
	assert.Equal(t, "dm:presence:devices:u1", DevicePresenceKey("u1"))
	assert.Equal(t, "dm:presence:online", OnlineUsersKey())

	t.Run("relation key is directional", func(t *testing.T) {
		assert.Equal(t, "dm:rel:a:b", RelationKey("a", "b"))
		assert.NotEqual(t, RelationKey("a", "b"), RelationKey("b", "a"))
	})
}
