package shared

import (
	"fmt"
	"strings"
	"time"
)

const ActivityPublic = "https://www.w3.org/ns/activitystreams#Public"

// AppActorHandle is the reserved handle of the instance-wide application actor.
const AppActorHandle = "application"

type IdBuilder struct {
	Host string
}

func (idb *IdBuilder) SiteUrl() string {
	return fmt.Sprintf("https://%s", idb.Host)
}

func (idb *IdBuilder) SharedInbox() string {
	return fmt.Sprintf("https://%s/inbox", idb.Host)
}

func (idb *IdBuilder) AppActorUrl() string {
	return fmt.Sprintf("https://%s/u/%s", idb.Host, AppActorHandle)
}

func (idb *IdBuilder) UserUrl(user string) string {
	return fmt.Sprintf("https://%s/u/%s", idb.Host, user)
}

func (idb *IdBuilder) UserProfile(user string) string {
	return fmt.Sprintf("https://%s/web/authors/%s", idb.Host, user)
}

func (idb *IdBuilder) UserKeyId(user string) string {
	return fmt.Sprintf("https://%s/u/%s#main-key", idb.Host, user)
}

func (idb *IdBuilder) UserInbox(user string) string {
	return fmt.Sprintf("https://%s/u/%s/inbox", idb.Host, user)
}

func (idb *IdBuilder) UserOutbox(user string) string {
	return fmt.Sprintf("https://%s/u/%s/outbox", idb.Host, user)
}

func (idb *IdBuilder) UserFollowing(user string) string {
	return fmt.Sprintf("https://%s/u/%s/following", idb.Host, user)
}

func (idb *IdBuilder) UserFollowers(user string) string {
	return fmt.Sprintf("https://%s/u/%s/followers", idb.Host, user)
}

// ActivityId derives a local activity id from the URI of the thing the
// activity is about. Unique per base+verb+instant.
func (idb *IdBuilder) ActivityId(baseUri, verb string, t time.Time) string {
	return fmt.Sprintf("%s#activity-%s-%d", baseUri, strings.ToLower(verb), t.Unix())
}
