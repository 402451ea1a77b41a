package dal

import (
	"time"
)

// Actor is a local identity capable of federating.
type Actor struct {
	Id        int
	CreatedAt time.Time
	ActorType string // user | blog | application
	UserUrl   string // https://press.example.com/u/alice
	Handle    string // alice
	Name      string // Alice Harper
	Summary   string
	Enabled   bool
	PubKey    string
}

// FollowerInfo is a remote actor subscribed to one of our local actors.
type FollowerInfo struct {
	Id          int
	LocalHandle string // filled by the batch queries that span accounts
	AddedAt     time.Time
	RequestId   string // id of the Follow activity; needed for the Accept reply
	UserUrl     string // https://genart.social/users/twilliability
	Handle      string // twilliability
	Host        string // genart.social
	Name        string
	UserInbox   string // https://genart.social/users/twilliability/inbox
	SharedInbox string // https://genart.social/inbox
	ErrorCount  int
	LastChecked time.Time
}

// Interaction is a remote reaction to local content: a comment, like or
// announce, stored after inbox processing.
type Interaction struct {
	Id          int
	CreatedAt   time.Time
	Kind        string // comment | like | announce
	ActivityId  string // id of the activity that carried it
	ObjectUrl   string // id of the remote object (note id for comments)
	SourceUrl   string
	ContentHash int64
	AuthorUrl   string
	AuthorName  string
	ContentUrl  string // the local content item this attaches to
	Content     string
}

// FederatedContent records that a local content item has been dispatched
// at least once; Delete activities are only sent for recorded items.
type FederatedContent struct {
	ContentId   string
	ContentUrl  string
	ActivityId  string
	FederatedAt time.Time
}

// Job is one pending entry of the persistent job queue.
type Job struct {
	Id        string
	Name      string
	Payload   string
	NotBefore time.Time
	CreatedAt time.Time
}
