package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIdBuilder(t *testing.T) {
	idb := IdBuilder{Host: "press.example.com"}
	assert.Equal(t, "https://press.example.com", idb.SiteUrl())
	assert.Equal(t, "https://press.example.com/inbox", idb.SharedInbox())
	assert.Equal(t, "https://press.example.com/u/alice", idb.UserUrl("alice"))
	assert.Equal(t, "https://press.example.com/u/alice#main-key", idb.UserKeyId("alice"))
	assert.Equal(t, "https://press.example.com/u/alice/inbox", idb.UserInbox("alice"))
	assert.Equal(t, "https://press.example.com/u/application", idb.AppActorUrl())
}

func TestActivityId(t *testing.T) {
	idb := IdBuilder{Host: "press.example.com"}
	at := time.Unix(1700000000, 0)
	id := idb.ActivityId("https://press.example.com/2024/01/hello-world", "Create", at)
	assert.Equal(t, "https://press.example.com/2024/01/hello-world#activity-create-1700000000", id)
	id = idb.ActivityId("https://press.example.com/u/alice", "Accept", at)
	assert.Equal(t, "https://press.example.com/u/alice#activity-accept-1700000000", id)
}
