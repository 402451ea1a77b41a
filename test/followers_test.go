package test

import (
	"fedipress/dal"
	"fedipress/dto"
	"fedipress/logic"
	"fedipress/shared"
	"fedipress/test/mocks"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type followersHarness struct {
	cfg       *shared.Config
	repo      dal.IRepo
	resolver  *mocks.MockIActorResolver
	followers logic.IFollowers
}

func setupFollowersHarness(t *testing.T, ctrl *gomock.Controller) *followersHarness {
	cfg := makeTestConfig(t)
	logger := newTestLogger(t)
	repo := makeTestRepo(t, cfg, logger)
	resolver := mocks.NewMockIActorResolver(ctrl)
	followers := logic.NewFollowers(cfg, logger, repo, resolver, newNopMetrics())
	return &followersHarness{
		cfg:       cfg,
		repo:      repo,
		resolver:  resolver,
		followers: followers,
	}
}

func (h *followersHarness) addFaultyFollower(t *testing.T, userUrl string, errCount int) {
	now := time.Now().UTC()
	require.NoError(t, h.repo.AddFollower("blog", &dal.FollowerInfo{
		AddedAt:     now,
		RequestId:   userUrl + "/follow-request",
		UserUrl:     userUrl,
		UserInbox:   userUrl + "/inbox",
		LastChecked: now,
	}))
	flwrs, err := h.repo.GetFollowers("blog")
	require.NoError(t, err)
	for _, flwr := range flwrs {
		if flwr.UserUrl != userUrl {
			continue
		}
		for i := 0; i < errCount; i += 1 {
			require.NoError(t, h.repo.BumpFollowerError(flwr.Id, now))
		}
	}
}

func TestPrune_TombstonedFollowerRemoved(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h := setupFollowersHarness(t, ctrl)

	goneUrl := "https://genart.social/users/goner"
	h.addFaultyFollower(t, goneUrl, 5)
	h.resolver.EXPECT().IsTombstone(goneUrl).Return(true, nil)

	assert.NoError(t, h.followers.PruneFaulty())

	count, err := h.repo.GetFollowerCount("blog")
	assert.NoError(t, err)
	assert.Equal(t, uint(0), count)
}

func TestPrune_UnreachableFollowerKept(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h := setupFollowersHarness(t, ctrl)

	deadHostUrl := "https://dead.example.org/users/lost"
	h.addFaultyFollower(t, deadHostUrl, 5)
	h.resolver.EXPECT().IsTombstone(deadHostUrl).Return(false, logic.ErrRemoteUnreachable)

	assert.NoError(t, h.followers.PruneFaulty())

	// Cannot verify it's gone: stays, errors intact
	count, err := h.repo.GetFollowerCount("blog")
	assert.NoError(t, err)
	assert.Equal(t, uint(1), count)
	faulty, err := h.repo.GetFaultyFollowers(5)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(faulty))
}

func TestPrune_RecoveredFollowerReset(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h := setupFollowersHarness(t, ctrl)

	aliveUrl := "https://genart.social/users/phoenix"
	h.addFaultyFollower(t, aliveUrl, 5)
	h.resolver.EXPECT().IsTombstone(aliveUrl).Return(false, nil)

	assert.NoError(t, h.followers.PruneFaulty())

	count, err := h.repo.GetFollowerCount("blog")
	assert.NoError(t, err)
	assert.Equal(t, uint(1), count)
	faulty, err := h.repo.GetFaultyFollowers(5)
	assert.NoError(t, err)
	assert.Equal(t, 0, len(faulty))
}

func TestCheckOutdated_RefreshesAndBumps(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h := setupFollowersHarness(t, ctrl)

	staleOk := "https://genart.social/users/sleeper"
	staleBad := "https://flaky.example.org/users/ghost"
	now := time.Now().UTC()
	for _, userUrl := range []string{staleOk, staleBad} {
		require.NoError(t, h.repo.AddFollower("blog", &dal.FollowerInfo{
			AddedAt:     now.Add(-time.Hour * 400),
			RequestId:   userUrl + "/follow-request",
			UserUrl:     userUrl,
			UserInbox:   userUrl + "/inbox",
			LastChecked: now.Add(-time.Hour * 400),
		}))
	}

	h.resolver.EXPECT().Resolve(staleOk).Return(&dto.ActorInfo{
		Id:        staleOk,
		Name:      "Sleeper",
		Inbox:     staleOk + "/inbox-v2",
		Endpoints: dto.ActorEndpoints{SharedInbox: "https://genart.social/inbox"},
	}, nil)
	h.resolver.EXPECT().Resolve(staleBad).Return(nil, logic.ErrRemoteUnreachable)

	assert.NoError(t, h.followers.CheckOutdated())

	flwrs, err := h.repo.GetFollowers("blog")
	require.NoError(t, err)
	byUrl := map[string]*dal.FollowerInfo{}
	for _, flwr := range flwrs {
		byUrl[flwr.UserUrl] = flwr
	}
	assert.Equal(t, staleOk+"/inbox-v2", byUrl[staleOk].UserInbox)
	assert.Equal(t, 0, byUrl[staleOk].ErrorCount)
	assert.Equal(t, 1, byUrl[staleBad].ErrorCount)

	// Both were just checked, nothing is outdated anymore
	outdated, err := h.repo.GetOutdatedFollowers(now.Add(-time.Hour * 168))
	assert.NoError(t, err)
	assert.Equal(t, 0, len(outdated))
}
