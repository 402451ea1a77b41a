package test

import (
	"fedipress/logic"
	"fedipress/shared"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func setupResolver(t *testing.T) logic.IActorResolver {
	cfg := makeTestConfig(t)
	logger := newNopLogger()
	return logic.NewActorResolver(cfg, logger, shared.NewUserAgent(cfg), newNopMetrics())
}

func TestIsTombstone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gone-404":
			w.WriteHeader(http.StatusNotFound)
		case "/gone-410":
			w.WriteHeader(http.StatusGone)
		case "/tombstone":
			w.Header().Set("Content-Type", "application/activity+json")
			_, _ = w.Write([]byte(`{"id": "https://x.example.com/u/1", "type": "Tombstone", "formerType": "Person"}`))
		case "/alive":
			w.Header().Set("Content-Type", "application/activity+json")
			_, _ = w.Write([]byte(`{"id": "https://x.example.com/u/1", "type": "Person"}`))
		case "/empty":
			w.WriteHeader(http.StatusOK)
		case "/garbage":
			_, _ = w.Write([]byte("certainly not json"))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()
	resolver := setupResolver(t)

	for _, path := range []string{"/gone-404", "/gone-410", "/tombstone"} {
		gone, err := resolver.IsTombstone(srv.URL + path)
		assert.NoError(t, err, path)
		assert.True(t, gone, path)
	}

	// Any other 200 means the object is alive, even when the body is empty
	// or unreadable
	for _, path := range []string{"/alive", "/empty", "/garbage"} {
		gone, err := resolver.IsTombstone(srv.URL + path)
		assert.NoError(t, err, path)
		assert.False(t, gone, path)
	}

	gone, err := resolver.IsTombstone(srv.URL + "/boom")
	assert.ErrorIs(t, err, logic.ErrRemoteUnreachable)
	assert.False(t, gone)
}
