package logic

import (
	"encoding/json"
	"fedipress/dto"
	"fedipress/shared"
	"fmt"
	"github.com/go-resty/resty/v2"
	"strings"
	"sync"
	"time"
)

const resolveTimeoutSec = 10
const defaultCacheMinutes = 60

//go:generate mockgen --build_flags=--mod=mod -destination ../test/mocks/mock_actor_resolver.go -package mocks fedipress/logic IActorResolver

type IActorResolver interface {
	// Resolve retrieves an actor document by URI or by user@host handle.
	// Results are cached; a cached document may be up to the configured
	// TTL out of date.
	Resolve(identifier string) (*dto.ActorInfo, error)
	// IsTombstone reports whether the remote object is definitively gone:
	// 404, 410, or still served with type Tombstone. A transport failure is
	// not "gone" and comes back as ErrRemoteUnreachable.
	IsTombstone(uri string) (bool, error)
	// FetchType retrieves just the 'type' of a remote object.
	FetchType(uri string) (string, error)
}

type cachedActor struct {
	actor   *dto.ActorInfo
	expires time.Time
}

type actorResolver struct {
	cfg      *shared.Config
	logger   shared.ILogger
	metrics  IMetrics
	client   *resty.Client
	cacheTtl time.Duration
	muCache  sync.Mutex
	cache    map[string]*cachedActor
}

func NewActorResolver(
	cfg *shared.Config,
	logger shared.ILogger,
	userAgent shared.IUserAgent,
	metrics IMetrics,
) IActorResolver {

	cacheMinutes := cfg.ResolverCacheMinutes
	if cacheMinutes == 0 {
		cacheMinutes = defaultCacheMinutes
	}
	client := resty.New().
		SetTimeout(time.Second * resolveTimeoutSec).
		SetHeader("User-Agent", userAgent.Value())
	return &actorResolver{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		client:   client,
		cacheTtl: time.Minute * time.Duration(cacheMinutes),
		cache:    make(map[string]*cachedActor),
	}
}

func (ar *actorResolver) getCached(key string) *dto.ActorInfo {
	ar.muCache.Lock()
	defer ar.muCache.Unlock()
	if entry, ok := ar.cache[key]; ok {
		if time.Now().Before(entry.expires) {
			return entry.actor
		}
		delete(ar.cache, key)
	}
	return nil
}

func (ar *actorResolver) putCached(actor *dto.ActorInfo, keys ...string) {
	ar.muCache.Lock()
	defer ar.muCache.Unlock()
	entry := &cachedActor{actor: actor, expires: time.Now().Add(ar.cacheTtl)}
	for _, key := range keys {
		ar.cache[key] = entry
	}
}

func (ar *actorResolver) Resolve(identifier string) (*dto.ActorInfo, error) {

	if actor := ar.getCached(identifier); actor != nil {
		return actor, nil
	}

	actorUrl := identifier
	var err error
	if !strings.HasPrefix(identifier, "https://") && !strings.HasPrefix(identifier, "http://") {
		if actorUrl, err = ar.webfinger(identifier); err != nil {
			return nil, err
		}
	}

	obs := ar.metrics.StartApubRequestOut("get_actor")
	resp, err := ar.client.R().
		SetHeader("Accept", "application/activity+json").
		Get(actorUrl)
	obs.Finish()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRemoteUnreachable, actorUrl, err)
	}
	if err = checkRemoteStatus(resp.StatusCode(), actorUrl); err != nil {
		return nil, err
	}

	var actor dto.ActorInfo
	if err = json.Unmarshal(resp.Body(), &actor); err != nil {
		return nil, fmt.Errorf("failed to parse actor document from %s: %v", actorUrl, err)
	}
	if actor.Id == "" {
		return nil, fmt.Errorf("actor document from %s has no id", actorUrl)
	}

	// Cache under both the identifier we were asked about and the
	// canonical actor id.
	ar.putCached(&actor, identifier, actor.Id)
	return &actor, nil
}

func (ar *actorResolver) webfinger(identifier string) (string, error) {

	moniker := strings.TrimPrefix(identifier, "acct:")
	moniker = strings.TrimPrefix(moniker, "@")
	parts := strings.Split(moniker, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("not a valid user@host identifier: '%s'", identifier)
	}
	host := parts[1]

	wfUrl := fmt.Sprintf("https://%s/.well-known/webfinger?resource=acct:%s", host, moniker)
	obs := ar.metrics.StartApubRequestOut("webfinger")
	resp, err := ar.client.R().
		SetHeader("Accept", "application/jrd+json").
		Get(wfUrl)
	obs.Finish()
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrRemoteUnreachable, host, err)
	}
	if err = checkRemoteStatus(resp.StatusCode(), wfUrl); err != nil {
		return "", err
	}

	var wf dto.WebfingerResp
	if err = json.Unmarshal(resp.Body(), &wf); err != nil {
		return "", fmt.Errorf("failed to parse webfinger response from %s: %v", host, err)
	}
	for _, link := range wf.Links {
		if link.Rel == "self" && strings.Contains(link.Type, "activity+json") && link.Href != "" {
			return link.Href, nil
		}
	}
	return "", fmt.Errorf("%w: webfinger at %s has no self link for '%s'", ErrNotFound, host, moniker)
}

func (ar *actorResolver) IsTombstone(uri string) (bool, error) {

	obs := ar.metrics.StartApubRequestOut("check_tombstone")
	resp, err := ar.client.R().
		SetHeader("Accept", "application/activity+json").
		Get(uri)
	obs.Finish()
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrRemoteUnreachable, uri, err)
	}

	status := resp.StatusCode()
	if status == 404 || status == 410 {
		return true, nil
	}
	if status >= 500 {
		return false, fmt.Errorf("%w: %s returned status %d", ErrRemoteUnreachable, uri, status)
	}
	if status < 200 || status > 299 {
		return false, fmt.Errorf("unexpected status %d from %s", status, uri)
	}

	var obj struct {
		Type string `json:"type"`
	}
	if err = json.Unmarshal(resp.Body(), &obj); err != nil {
		// Still a 2xx: whatever the server put in the body, the object is
		// not gone
		return false, nil
	}
	return obj.Type == "Tombstone", nil
}

func (ar *actorResolver) FetchType(uri string) (string, error) {

	obs := ar.metrics.StartApubRequestOut("fetch_type")
	resp, err := ar.client.R().
		SetHeader("Accept", "application/activity+json").
		Get(uri)
	obs.Finish()
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrRemoteUnreachable, uri, err)
	}
	if err = checkRemoteStatus(resp.StatusCode(), uri); err != nil {
		return "", err
	}

	var obj struct {
		Type string `json:"type"`
	}
	if err = json.Unmarshal(resp.Body(), &obj); err != nil {
		return "", fmt.Errorf("failed to parse object from %s: %v", uri, err)
	}
	return obj.Type, nil
}

func checkRemoteStatus(status int, uri string) error {
	if status == 404 {
		return fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	if status == 410 {
		return fmt.Errorf("%w: %s", ErrTombstoned, uri)
	}
	if status >= 500 {
		return fmt.Errorf("%w: %s returned status %d", ErrRemoteUnreachable, uri, status)
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("unexpected status %d from %s", status, uri)
	}
	return nil
}
