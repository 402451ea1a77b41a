package test

import (
	"fedipress/dal"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func makeFollower(userUrl, requestId string) *dal.FollowerInfo {
	now := time.Now().UTC()
	return &dal.FollowerInfo{
		AddedAt:     now,
		RequestId:   requestId,
		UserUrl:     userUrl,
		Handle:      "twilliability",
		Host:        "genart.social",
		Name:        "Gena Ziggle",
		UserInbox:   userUrl + "/inbox",
		SharedInbox: "https://genart.social/inbox",
		LastChecked: now,
	}
}

func TestAddFollower_Idempotent(t *testing.T) {
	cfg := makeTestConfig(t)
	logger := newTestLogger(t)
	repo := makeTestRepo(t, cfg, logger)

	userUrl := "https://genart.social/users/twilliability"
	flwr := makeFollower(userUrl, "https://genart.social/request/1")
	assert.NoError(t, repo.AddFollower("blog", flwr))

	// Same follower again, with fresher details
	flwr2 := makeFollower(userUrl, "https://genart.social/request/2")
	flwr2.Name = "Gena Z."
	flwr2.AddedAt = flwr.AddedAt.Add(time.Hour)
	assert.NoError(t, repo.AddFollower("blog", flwr2))

	flwrs, err := repo.GetFollowers("blog")
	assert.NoError(t, err)
	assert.Equal(t, 1, len(flwrs))
	// Details updated, original added_at kept
	assert.Equal(t, "Gena Z.", flwrs[0].Name)
	assert.Equal(t, "https://genart.social/request/2", flwrs[0].RequestId)
	assert.Equal(t, flwr.AddedAt.Unix(), flwrs[0].AddedAt.Unix())

	count, err := repo.GetFollowerCount("blog")
	assert.NoError(t, err)
	assert.Equal(t, uint(1), count)
}

func TestMarkActivityHandled(t *testing.T) {
	cfg := makeTestConfig(t)
	logger := newTestLogger(t)
	repo := makeTestRepo(t, cfg, logger)

	id := "https://genart.social/activities/123"
	already, err := repo.MarkActivityHandled(id, time.Now().UTC())
	assert.NoError(t, err)
	assert.False(t, already)

	already, err = repo.MarkActivityHandled(id, time.Now().UTC())
	assert.NoError(t, err)
	assert.True(t, already)
}

func TestBatchLock(t *testing.T) {
	cfg := makeTestConfig(t)
	logger := newTestLogger(t)
	repo := makeTestRepo(t, cfg, logger)

	now := time.Now().UTC()
	expiry := time.Minute * 15

	locked, err := repo.AcquireBatchLock(now, expiry)
	assert.NoError(t, err)
	assert.True(t, locked)

	// Second taker is refused while the lock is fresh
	locked, err = repo.AcquireBatchLock(now.Add(time.Minute), expiry)
	assert.NoError(t, err)
	assert.False(t, locked)

	// An expired lock can be taken over
	locked, err = repo.AcquireBatchLock(now.Add(time.Minute*20), expiry)
	assert.NoError(t, err)
	assert.True(t, locked)

	assert.NoError(t, repo.ReleaseBatchLock())
	locked, err = repo.AcquireBatchLock(now.Add(time.Minute*21), expiry)
	assert.NoError(t, err)
	assert.True(t, locked)
}

func TestFollowerErrorLifecycle(t *testing.T) {
	cfg := makeTestConfig(t)
	logger := newTestLogger(t)
	repo := makeTestRepo(t, cfg, logger)

	userUrl := "https://genart.social/users/twilliability"
	assert.NoError(t, repo.AddFollower("blog", makeFollower(userUrl, "https://genart.social/request/1")))
	flwrs, err := repo.GetFollowers("blog")
	assert.NoError(t, err)
	assert.Equal(t, 1, len(flwrs))
	id := flwrs[0].Id

	for i := 0; i < 5; i += 1 {
		assert.NoError(t, repo.BumpFollowerError(id, time.Now().UTC()))
	}
	faulty, err := repo.GetFaultyFollowers(5)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(faulty))
	assert.Equal(t, "blog", faulty[0].LocalHandle)
	assert.Equal(t, 5, faulty[0].ErrorCount)

	// A successful check clears the error count
	assert.NoError(t, repo.UpdateFollowerChecked(id, userUrl+"/inbox", "", "Gena", time.Now().UTC()))
	faulty, err = repo.GetFaultyFollowers(5)
	assert.NoError(t, err)
	assert.Equal(t, 0, len(faulty))
}

func TestGetOutdatedFollowers(t *testing.T) {
	cfg := makeTestConfig(t)
	logger := newTestLogger(t)
	repo := makeTestRepo(t, cfg, logger)

	userUrl := "https://genart.social/users/twilliability"
	flwr := makeFollower(userUrl, "https://genart.social/request/1")
	flwr.LastChecked = time.Now().UTC().Add(-time.Hour * 200)
	assert.NoError(t, repo.AddFollower("blog", flwr))

	cutoff := time.Now().UTC().Add(-time.Hour * 168)
	outdated, err := repo.GetOutdatedFollowers(cutoff)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(outdated))
	assert.Equal(t, userUrl, outdated[0].UserUrl)

	// Freshly checked followers don't come back
	assert.NoError(t, repo.UpdateFollowerChecked(outdated[0].Id, userUrl+"/inbox", "", "Gena", time.Now().UTC()))
	outdated, err = repo.GetOutdatedFollowers(cutoff)
	assert.NoError(t, err)
	assert.Equal(t, 0, len(outdated))
}

func TestFederatedContent(t *testing.T) {
	cfg := makeTestConfig(t)
	logger := newTestLogger(t)
	repo := makeTestRepo(t, cfg, logger)

	fc := &dal.FederatedContent{
		ContentId:   "42",
		ContentUrl:  "https://press.example.com/2024/01/hello-world",
		ActivityId:  "https://press.example.com/2024/01/hello-world#activity-create-1700000000",
		FederatedAt: time.Now().UTC(),
	}
	isNew, err := repo.AddFederatedContentIfNew(fc)
	assert.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = repo.AddFederatedContentIfNew(fc)
	assert.NoError(t, err)
	assert.False(t, isNew)

	got, err := repo.GetFederatedContentByUrl(fc.ContentUrl)
	assert.NoError(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, "42", got.ContentId)

	assert.NoError(t, repo.DeleteFederatedContent("42"))
	got, err = repo.GetFederatedContent("42")
	assert.NoError(t, err)
	assert.Nil(t, got)
}
