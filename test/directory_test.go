package test

import (
	"fedipress/dal"
	"fedipress/logic"
	"fedipress/shared"
	"fedipress/test/mocks"
	"fedipress/texts"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setupDirectory(t *testing.T, ctrl *gomock.Controller) (logic.IActorDirectory, dal.IRepo, *shared.Config) {
	cfg := makeTestConfig(t)
	logger := newTestLogger(t)
	repo := makeTestRepo(t, cfg, logger)
	keyStore := logic.NewKeyStore(cfg, logger, repo)
	sender := mocks.NewMockIActivitySender(ctrl)
	resolver := mocks.NewMockIActorResolver(ctrl)
	followers := logic.NewFollowers(cfg, logger, repo, resolver, newNopMetrics())
	directory := logic.NewActorDirectory(cfg, logger, repo, keyStore, sender, followers, texts.NewTexts())
	return directory, repo, cfg
}

func TestWebfinger(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	directory, _, _ := setupDirectory(t, ctrl)

	resp, err := directory.GetWebfinger("acct:blog@press.example.com")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "acct:blog@press.example.com", resp.Subject)
	selfFound := false
	for _, link := range resp.Links {
		if link.Rel == "self" {
			selfFound = true
			assert.Equal(t, "application/activity+json", link.Type)
			assert.Equal(t, "https://press.example.com/u/blog", link.Href)
		}
	}
	assert.True(t, selfFound)

	// Wrong host, unknown user, junk: all misses
	for _, resource := range []string{
		"acct:blog@elsewhere.example.com",
		"acct:nobody@press.example.com",
		"https://press.example.com/u/blog",
		"blog",
	} {
		resp, err = directory.GetWebfinger(resource)
		assert.NoError(t, err)
		assert.Nil(t, resp, "expected no result for %s", resource)
	}
}

func TestActorDoc(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	directory, _, _ := setupDirectory(t, ctrl)

	doc, err := directory.GetActorDoc("blog")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "https://press.example.com/u/blog", doc.Id)
	assert.Equal(t, "Group", doc.Type)
	assert.Equal(t, "blog", doc.PreferredUserName)
	assert.Equal(t, "https://press.example.com/u/blog/inbox", doc.Inbox)
	assert.Equal(t, "https://press.example.com/inbox", doc.Endpoints.SharedInbox)
	assert.Equal(t, "https://press.example.com/u/blog#main-key", doc.PublicKey.Id)
	// Keys are generated on first serve
	assert.NotEmpty(t, doc.PublicKey.PublicKeyPem)

	// The application actor is always there
	doc, err = directory.GetActorDoc(shared.AppActorHandle)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "Application", doc.Type)

	doc, err = directory.GetActorDoc("nobody")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestFollowersSummary(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	directory, repo, _ := setupDirectory(t, ctrl)

	summary, err := directory.GetFollowersSummary("blog")
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, "OrderedCollection", summary.Type)
	assert.Equal(t, uint(0), summary.TotalItems)

	require.NoError(t, repo.AddFollower("blog", makeFollower("https://genart.social/users/twilliability", "r1")))
	summary, err = directory.GetFollowersSummary("blog")
	require.NoError(t, err)
	assert.Equal(t, uint(1), summary.TotalItems)
}

func TestOutboxSummary(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	directory, repo, _ := setupDirectory(t, ctrl)

	summary, err := directory.GetOutboxSummary("blog")
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, "OrderedCollection", summary.Type)
	assert.Equal(t, "https://press.example.com/u/blog/outbox", summary.Id)
	assert.Equal(t, uint(0), summary.TotalItems)

	isNew, err := repo.AddFederatedContentIfNew(&dal.FederatedContent{
		ContentId:  "41",
		ContentUrl: "https://press.example.com/2024/01/hello-world",
		ActivityId: "https://press.example.com/2024/01/hello-world#activity-create-1700000000",
	})
	require.NoError(t, err)
	require.True(t, isNew)
	summary, err = directory.GetOutboxSummary("blog")
	require.NoError(t, err)
	assert.Equal(t, uint(1), summary.TotalItems)

	summary, err = directory.GetOutboxSummary("nobody")
	require.NoError(t, err)
	assert.Nil(t, summary)
}
