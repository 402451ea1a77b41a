package test

import (
	"fedipress/dto"
	"fedipress/logic"
	"fedipress/shared"
	"fedipress/test/mocks"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type checkOutcome struct {
	actorId    string
	sigProblem string
	err        error
}

// What one side signs, the other must verify: sender and checker are
// exercised against each other over a real HTTP round trip.
func TestHttpSig_SignAndVerify(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cfg := makeTestConfig(t)
	logger := newTestLogger(t)
	repo := makeTestRepo(t, cfg, logger)
	keyStore := logic.NewKeyStore(cfg, logger, repo)
	userAgent := shared.NewUserAgent(cfg)
	sender := logic.NewActivitySender(cfg, logger, userAgent, newNopMetrics())

	pubKey, err := keyStore.EnsureKeyPair("blog")
	require.NoError(t, err)
	privKey, err := keyStore.GetPrivKey("blog")
	require.NoError(t, err)

	actorUrl := "https://press.example.com/u/blog"
	resolver := mocks.NewMockIActorResolver(ctrl)
	resolver.EXPECT().Resolve(actorUrl).Return(&dto.ActorInfo{
		Id:   actorUrl,
		Type: "Group",
		PublicKey: dto.PublicKey{
			Id:           actorUrl + "#main-key",
			Owner:        actorUrl,
			PublicKeyPem: pubKey,
		},
	}, nil).AnyTimes()
	checker := logic.NewHttpSigChecker(logger, resolver)

	outcomes := make(chan checkOutcome, 2)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/inbox-tampered" {
			// A mutated request must not verify
			r.Header.Set("Date", time.Now().UTC().Add(time.Hour).Format(http.TimeFormat))
		}
		actor, sigProblem, err := checker.Check(r)
		outcome := checkOutcome{sigProblem: sigProblem, err: err}
		if actor != nil {
			outcome.actorId = actor.Id
		}
		outcomes <- outcome
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	to := []string{"https://genart.social/users/twilliability"}
	activity := &dto.ActivityOut{
		Context: "https://www.w3.org/ns/activitystreams",
		Id:      "https://press.example.com/2024/01/hello-world#activity-create-1700000000",
		Type:    "Create",
		Actor:   actorUrl,
		To:      &to,
		Object:  "https://press.example.com/2024/01/hello-world",
	}

	require.NoError(t, sender.Send(privKey, "blog", ts.URL+"/inbox", activity))
	outcome := <-outcomes
	assert.NoError(t, outcome.err)
	assert.Empty(t, outcome.sigProblem)
	assert.Equal(t, actorUrl, outcome.actorId)

	require.NoError(t, sender.Send(privKey, "blog", ts.URL+"/inbox-tampered", activity))
	outcome = <-outcomes
	assert.NoError(t, outcome.err)
	assert.NotEmpty(t, outcome.sigProblem)
}

func TestHttpSig_MissingSignatureRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	logger := newTestLogger(t)
	resolver := mocks.NewMockIActorResolver(ctrl)
	checker := logic.NewHttpSigChecker(logger, resolver)

	r := httptest.NewRequest("POST", "https://press.example.com/inbox", nil)
	actor, sigProblem, err := checker.Check(r)
	assert.NoError(t, err)
	assert.Nil(t, actor)
	assert.NotEmpty(t, sigProblem)
}
