package test

import (
	"fedipress/logic"
	"fedipress/server"
	"fedipress/test/mocks"
	"fedipress/texts"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setupApubServer(t *testing.T, ctrl *gomock.Controller, verifyMode string) *httptest.Server {
	cfg := makeTestConfig(t)
	cfg.InboxVerifyMode = verifyMode
	logger := newNopLogger()
	metrics := newNopMetrics()
	repo := makeTestRepo(t, cfg, logger)
	resolver := mocks.NewMockIActorResolver(ctrl)
	sender := mocks.NewMockIActivitySender(ctrl)
	keyStore := logic.NewKeyStore(cfg, logger, repo)
	followers := logic.NewFollowers(cfg, logger, repo, resolver, metrics)
	directory := logic.NewActorDirectory(cfg, logger, repo, keyStore, sender, followers, texts.NewTexts())
	inbox := logic.NewInbox(cfg, logger, repo, followers, directory, metrics)
	sigChecker := logic.NewHttpSigChecker(logger, resolver)
	group := server.NewApubHandlerGroup(cfg, logger, metrics, sigChecker, directory, inbox)
	router := server.NewMux([]server.IHandlerGroup{group}, logger)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func postActivity(t *testing.T, srv *httptest.Server, path, body string) *http.Response {
	resp, err := http.Post(srv.URL+path, "application/activity+json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// A Follow with no object: malformed, and unsigned on top of that.
func malformedFollowJson() string {
	return fmt.Sprintf(`{
		"id": "https://genart.social/act/f1",
		"type": "Follow",
		"actor": "%s"
	}`, remoteActorUrl)
}

func TestPostInbox_StrictModeVerifiesBeforeShape(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	srv := setupApubServer(t, ctrl, "strict")

	// The missing signature must be the verdict, not the missing field
	resp := postActivity(t, srv, "/u/blog/inbox", malformedFollowJson())
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPostInbox_DeferredModeChecksShapeFirst(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	srv := setupApubServer(t, ctrl, "deferred")

	resp := postActivity(t, srv, "/u/blog/inbox", malformedFollowJson())
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "object")
}
