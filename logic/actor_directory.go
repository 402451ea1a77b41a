package logic

import (
	"fedipress/dal"
	"fedipress/dto"
	"fedipress/shared"
	"fedipress/texts"
	"fmt"
	"strings"
	"time"
)

var apubContext = []string{
	"https://www.w3.org/ns/activitystreams",
	"https://w3id.org/security/v1",
}

//go:generate mockgen --build_flags=--mod=mod -destination ../test/mocks/mock_actor_directory.go -package mocks fedipress/logic IActorDirectory

type IActorDirectory interface {
	// GetWebfinger answers a webfinger query for a local actor; nil if the
	// resource is not one of ours.
	GetWebfinger(resource string) (*dto.WebfingerResp, error)
	// GetActorDoc serves the actor document of a local actor; nil if no
	// such actor.
	GetActorDoc(handle string) (*dto.ActorInfo, error)
	GetFollowersSummary(handle string) (*dto.OrderedListSummary, error)
	GetOutboxSummary(handle string) (*dto.OrderedListSummary, error)
	// AcceptFollower sends an Accept for the given Follow request.
	AcceptFollower(localHandle, followRequestId, followerUserUrl, followerInbox string) error
}

type actorDirectory struct {
	cfg       *shared.Config
	logger    shared.ILogger
	repo      dal.IRepo
	keyStore  IKeyStore
	sender    IActivitySender
	followers IFollowers
	txt       texts.ITexts
	idb       shared.IdBuilder
}

func NewActorDirectory(
	cfg *shared.Config,
	logger shared.ILogger,
	repo dal.IRepo,
	keyStore IKeyStore,
	sender IActivitySender,
	followers IFollowers,
	txt texts.ITexts,
) IActorDirectory {
	return &actorDirectory{
		cfg:       cfg,
		logger:    logger,
		repo:      repo,
		keyStore:  keyStore,
		sender:    sender,
		followers: followers,
		txt:       txt,
		idb:       shared.IdBuilder{Host: cfg.Host},
	}
}

func (ad *actorDirectory) GetWebfinger(resource string) (*dto.WebfingerResp, error) {

	handle, ok := parseWebfingerResource(resource, ad.cfg.Host)
	if !ok {
		return nil, nil
	}
	actor, err := ad.repo.GetActor(handle)
	if err != nil {
		return nil, err
	}
	if actor == nil || !actor.Enabled {
		return nil, nil
	}

	userUrl := ad.idb.UserUrl(handle)
	resp := dto.WebfingerResp{
		Subject: fmt.Sprintf("acct:%s@%s", handle, ad.cfg.Host),
		Aliases: []string{userUrl},
		Links: []dto.WebfingerLink{
			{
				Rel:  "self",
				Type: "application/activity+json",
				Href: userUrl,
			},
			{
				Rel:  "http://webfinger.net/rel/profile-page",
				Type: "text/html",
				Href: ad.idb.UserProfile(handle),
			},
		},
	}
	return &resp, nil
}

func parseWebfingerResource(resource, host string) (handle string, ok bool) {
	moniker, found := strings.CutPrefix(resource, "acct:")
	if !found {
		return "", false
	}
	user, resHost, found := strings.Cut(moniker, "@")
	if !found || user == "" || resHost != host {
		return "", false
	}
	return user, true
}

func (ad *actorDirectory) GetActorDoc(handle string) (*dto.ActorInfo, error) {

	actor, err := ad.repo.GetActor(handle)
	if err != nil {
		return nil, err
	}
	if actor == nil || !actor.Enabled {
		return nil, nil
	}

	pubKey := actor.PubKey
	if pubKey == "" {
		if pubKey, err = ad.keyStore.EnsureKeyPair(handle); err != nil {
			return nil, err
		}
	}

	var actorType, bioSnippet string
	switch actor.ActorType {
	case "blog":
		actorType = "Group"
		bioSnippet = "blog_bio"
	case "application":
		actorType = "Application"
		bioSnippet = "app_bio"
	default:
		actorType = "Person"
		bioSnippet = "user_bio"
	}

	summary := actor.Summary
	if summary == "" {
		summary = ad.txt.WithVals(bioSnippet, map[string]string{
			"name":     actor.Name,
			"host":     ad.cfg.Host,
			"site_url": ad.idb.SiteUrl(),
		})
	}

	userUrl := ad.idb.UserUrl(handle)
	resp := dto.ActorInfo{
		Context:           apubContext,
		Id:                userUrl,
		Type:              actorType,
		PreferredUserName: handle,
		Name:              actor.Name,
		Summary:           summary,
		ManuallyApproves:  false,
		Published:         actor.CreatedAt.Format(time.RFC3339),
		Inbox:             ad.idb.UserInbox(handle),
		Outbox:            ad.idb.UserOutbox(handle),
		Followers:         ad.idb.UserFollowers(handle),
		Following:         ad.idb.UserFollowing(handle),
		Endpoints:         dto.ActorEndpoints{SharedInbox: ad.idb.SharedInbox()},
		PublicKey: dto.PublicKey{
			Id:           ad.idb.UserKeyId(handle),
			Owner:        userUrl,
			PublicKeyPem: pubKey,
		},
		Attachments: []dto.Attachment{
			{
				Type:  "PropertyValue",
				Name:  "Website",
				Value: fmt.Sprintf("<a href='%s'>%s</a>", ad.idb.SiteUrl(), ad.cfg.Host),
			},
		},
	}
	return &resp, nil
}

func (ad *actorDirectory) GetFollowersSummary(handle string) (*dto.OrderedListSummary, error) {

	actor, err := ad.repo.GetActor(handle)
	if err != nil {
		return nil, err
	}
	if actor == nil || !actor.Enabled {
		return nil, nil
	}
	count, err := ad.followers.GetFollowerCount(handle)
	if err != nil {
		return nil, err
	}
	resp := dto.OrderedListSummary{
		Context:    "https://www.w3.org/ns/activitystreams",
		Id:         ad.idb.UserFollowers(handle),
		Type:       "OrderedCollection",
		TotalItems: count,
	}
	return &resp, nil
}

func (ad *actorDirectory) GetOutboxSummary(handle string) (*dto.OrderedListSummary, error) {

	actor, err := ad.repo.GetActor(handle)
	if err != nil {
		return nil, err
	}
	if actor == nil || !actor.Enabled {
		return nil, nil
	}
	count, err := ad.repo.GetFederatedContentCount()
	if err != nil {
		return nil, err
	}
	resp := dto.OrderedListSummary{
		Context:    "https://www.w3.org/ns/activitystreams",
		Id:         ad.idb.UserOutbox(handle),
		Type:       "OrderedCollection",
		TotalItems: count,
	}
	return &resp, nil
}

func (ad *actorDirectory) AcceptFollower(localHandle, followRequestId, followerUserUrl, followerInbox string) error {

	// The local actor may never have served its document yet and so may
	// still be keyless
	if _, err := ad.keyStore.EnsureKeyPair(localHandle); err != nil {
		return err
	}
	privKey, err := ad.keyStore.GetPrivKey(localHandle)
	if err != nil {
		return err
	}

	userUrl := ad.idb.UserUrl(localHandle)
	now := time.Now().UTC()
	to := []string{followerUserUrl}
	actOut := dto.ActivityOut{
		Context: "https://www.w3.org/ns/activitystreams",
		Id:      ad.idb.ActivityId(userUrl, "Accept", now),
		Type:    "Accept",
		Actor:   userUrl,
		To:      &to,
		Object: map[string]any{
			"id":     followRequestId,
			"type":   "Follow",
			"actor":  followerUserUrl,
			"object": userUrl,
		},
	}
	if err = ad.sender.Send(privKey, localHandle, followerInbox, &actOut); err != nil {
		return fmt.Errorf("failed to send Accept to %s: %v", followerInbox, err)
	}
	ad.logger.Infof("Accepted follow request %s for %s", followRequestId, localHandle)
	return nil
}
