package dto

import "time"

// ContentEventIn is what the CMS posts to /api/content-events when a
// content item changes state.
type ContentEventIn struct {
	ContentId          string    `json:"content_id"`
	ContentUrl         string    `json:"content_url"`
	AuthorHandle       string    `json:"author_handle"`
	Title              string    `json:"title"`
	Content            string    `json:"content"`
	OldStatus          string    `json:"old_status"`
	NewStatus          string    `json:"new_status"`
	PasswordProtected  bool      `json:"password_protected"`
	FederationDisabled bool      `json:"federation_disabled"`
	Published          time.Time `json:"published"`
}

// FollowerImportIn is one record of a migration import batch.
type FollowerImportIn struct {
	LocalActor       string `json:"local_actor"`
	RemoteIdentifier string `json:"remote_identifier"`
}
