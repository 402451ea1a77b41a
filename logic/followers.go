package logic

import (
	"fedipress/dal"
	"fedipress/shared"
	"fmt"
	"sync"
	"time"
)

// A follower gets pruned after this many consecutive failed health checks.
const followerErrorThreshold = 5

const defaultStaleHours = 168

//go:generate mockgen --build_flags=--mod=mod -destination ../test/mocks/mock_followers.go -package mocks fedipress/logic IFollowers

// DeliveryTarget is one remote inbox to deliver to, with the actor the
// delivery is addressed to.
type DeliveryTarget struct {
	InboxUrl string
	ActorUrl string
}

type IFollowers interface {
	// AddFollower resolves the remote actor and records it as a follower of
	// the local actor. Re-following updates the stored record in place.
	AddFollower(localHandle, remoteIdent, requestId string) (*dal.FollowerInfo, error)
	RemoveFollower(localHandle, followerUserUrl string) error
	GetFollowers(localHandle string) ([]*dal.FollowerInfo, error)
	GetFollowerCount(localHandle string) (uint, error)
	// GetInboxes returns the deduplicated delivery targets for the local
	// actor's followers, preferring shared inboxes. Cached; invalidated on
	// any follower change.
	GetInboxes(localHandle string) ([]*DeliveryTarget, error)
	// CheckOutdated re-resolves followers not checked recently, refreshing
	// their inbox data or bumping their error count.
	CheckOutdated() error
	// PruneFaulty removes followers over the error threshold whose actor is
	// definitively gone. Unreachable ones are kept and only logged.
	PruneFaulty() error
}

type followers struct {
	cfg      *shared.Config
	logger   shared.ILogger
	repo     dal.IRepo
	resolver IActorResolver
	metrics  IMetrics
	muCache  sync.Mutex
	inboxes  map[string][]*DeliveryTarget
}

func NewFollowers(
	cfg *shared.Config,
	logger shared.ILogger,
	repo dal.IRepo,
	resolver IActorResolver,
	metrics IMetrics,
) IFollowers {
	return &followers{
		cfg:      cfg,
		logger:   logger,
		repo:     repo,
		resolver: resolver,
		metrics:  metrics,
		inboxes:  make(map[string][]*DeliveryTarget),
	}
}

func (f *followers) invalidateCache() {
	f.muCache.Lock()
	f.inboxes = make(map[string][]*DeliveryTarget)
	f.muCache.Unlock()
}

func (f *followers) updateFollowerGauge() {
	if count, err := f.repo.GetTotalFollowerCount(); err == nil {
		f.metrics.TotalFollowers(count)
	}
}

func (f *followers) AddFollower(localHandle, remoteIdent, requestId string) (*dal.FollowerInfo, error) {

	actor, err := f.resolver.Resolve(remoteIdent)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve follower '%s': %w", remoteIdent, err)
	}
	host, err := shared.GetHostName(actor.Id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	flwr := &dal.FollowerInfo{
		AddedAt:     now,
		RequestId:   requestId,
		UserUrl:     actor.Id,
		Handle:      actor.PreferredUserName,
		Host:        host,
		Name:        actor.Name,
		UserInbox:   actor.Inbox,
		SharedInbox: actor.Endpoints.SharedInbox,
		LastChecked: now,
	}
	if err = f.repo.AddFollower(localHandle, flwr); err != nil {
		return nil, err
	}

	f.logger.Infof("Follower added: %s -> %s",
		shared.MakeFullMoniker(host, actor.PreferredUserName), localHandle)
	f.invalidateCache()
	f.updateFollowerGauge()
	return flwr, nil
}

func (f *followers) RemoveFollower(localHandle, followerUserUrl string) error {

	if err := f.repo.RemoveFollower(localHandle, followerUserUrl); err != nil {
		return err
	}
	f.logger.Infof("Follower removed: %s -> %s", followerUserUrl, localHandle)
	f.invalidateCache()
	f.updateFollowerGauge()
	return nil
}

func (f *followers) GetFollowers(localHandle string) ([]*dal.FollowerInfo, error) {
	return f.repo.GetFollowers(localHandle)
}

func (f *followers) GetFollowerCount(localHandle string) (uint, error) {
	return f.repo.GetFollowerCount(localHandle)
}

func (f *followers) GetInboxes(localHandle string) ([]*DeliveryTarget, error) {

	f.muCache.Lock()
	if targets, ok := f.inboxes[localHandle]; ok {
		f.muCache.Unlock()
		return targets, nil
	}
	f.muCache.Unlock()

	flwrs, err := f.repo.GetFollowers(localHandle)
	if err != nil {
		return nil, err
	}

	// Prefer the shared inbox; first follower behind an inbox wins
	targets := make([]*DeliveryTarget, 0, len(flwrs))
	seen := make(map[string]bool)
	for _, flwr := range flwrs {
		inbox := flwr.SharedInbox
		if inbox == "" {
			inbox = flwr.UserInbox
		}
		if inbox == "" || seen[inbox] {
			continue
		}
		seen[inbox] = true
		targets = append(targets, &DeliveryTarget{InboxUrl: inbox, ActorUrl: flwr.UserUrl})
	}

	f.muCache.Lock()
	f.inboxes[localHandle] = targets
	f.muCache.Unlock()
	return targets, nil
}

func (f *followers) CheckOutdated() error {

	staleHours := f.cfg.FollowerStaleHours
	if staleHours == 0 {
		staleHours = defaultStaleHours
	}
	cutoff := time.Now().UTC().Add(-time.Hour * time.Duration(staleHours))
	flwrs, err := f.repo.GetOutdatedFollowers(cutoff)
	if err != nil {
		return err
	}
	if len(flwrs) == 0 {
		return nil
	}
	f.logger.Infof("Health check: %d follower(s) to re-resolve", len(flwrs))

	changed := false
	for _, flwr := range flwrs {
		now := time.Now().UTC()
		actor, resErr := f.resolver.Resolve(flwr.UserUrl)
		if resErr != nil {
			f.logger.Infof("Health check failed for %s: %v", flwr.UserUrl, resErr)
			if err = f.repo.BumpFollowerError(flwr.Id, now); err != nil {
				return err
			}
			continue
		}
		err = f.repo.UpdateFollowerChecked(flwr.Id, actor.Inbox, actor.Endpoints.SharedInbox,
			actor.Name, now)
		if err != nil {
			return err
		}
		changed = true
	}
	if changed {
		f.invalidateCache()
	}
	return nil
}

func (f *followers) PruneFaulty() error {

	flwrs, err := f.repo.GetFaultyFollowers(followerErrorThreshold)
	if err != nil {
		return err
	}
	if len(flwrs) == 0 {
		return nil
	}
	f.logger.Infof("Prune: %d follower(s) over the error threshold", len(flwrs))

	changed := false
	for _, flwr := range flwrs {
		gone, tsErr := f.resolver.IsTombstone(flwr.UserUrl)
		if tsErr != nil {
			// Cannot tell if the actor is gone or the server is down. We
			// never delete on this path, so a permanently dead server's
			// followers linger; hence the log line.
			f.logger.Warnf("Prune: cannot verify %s, keeping: %v", flwr.UserUrl, tsErr)
			continue
		}
		if !gone {
			f.logger.Infof("Prune: %s is alive again, resetting errors", flwr.UserUrl)
			if err = f.repo.ResetFollowerError(flwr.Id, time.Now().UTC()); err != nil {
				return err
			}
			continue
		}
		f.logger.Infof("Prune: removing tombstoned follower %s of %s", flwr.UserUrl, flwr.LocalHandle)
		if err = f.repo.DeleteFollowerById(flwr.Id); err != nil {
			return err
		}
		changed = true
	}
	if changed {
		f.invalidateCache()
		f.updateFollowerGauge()
	}
	return nil
}
