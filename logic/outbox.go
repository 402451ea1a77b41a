package logic

import (
	"fedipress/dal"
	"fedipress/dto"
	"fedipress/shared"
	"github.com/microcosm-cc/bluemonday"
	"time"
)

const statusPublished = "published"

//go:generate mockgen --build_flags=--mod=mod -destination ../test/mocks/mock_outbox.go -package mocks fedipress/logic IOutbox

type IOutbox interface {
	// HandleContentEvent turns a content state change into federated
	// activities and delivers them. A reqProblem means the event itself is
	// bad; delivery failures to individual inboxes are logged, not returned.
	HandleContentEvent(ev *dto.ContentEventIn) (reqProblem string, err error)
}

type outbox struct {
	cfg       *shared.Config
	logger    shared.ILogger
	repo      dal.IRepo
	keyStore  IKeyStore
	sender    IActivitySender
	followers IFollowers
	mentions  IMentionExtractor
	idb       shared.IdBuilder
	sanitizer *bluemonday.Policy
}

func NewOutbox(
	cfg *shared.Config,
	logger shared.ILogger,
	repo dal.IRepo,
	keyStore IKeyStore,
	sender IActivitySender,
	followers IFollowers,
	mentions IMentionExtractor,
) IOutbox {
	return &outbox{
		cfg:       cfg,
		logger:    logger,
		repo:      repo,
		keyStore:  keyStore,
		sender:    sender,
		followers: followers,
		mentions:  mentions,
		idb:       shared.IdBuilder{Host: cfg.Host},
		sanitizer: bluemonday.UGCPolicy(),
	}
}

func (ob *outbox) HandleContentEvent(ev *dto.ContentEventIn) (string, error) {

	if ev.ContentId == "" || ev.ContentUrl == "" {
		return "Event must have content_id and content_url", nil
	}
	if ev.PasswordProtected || ev.FederationDisabled {
		ob.logger.Debugf("Not federating %s: protected or disabled", ev.ContentId)
		return "", nil
	}

	verb, skipReason, err := ob.decideVerb(ev)
	if err != nil {
		return "", err
	}
	if verb == "" {
		ob.logger.Debugf("Not federating %s: %s", ev.ContentId, skipReason)
		return "", nil
	}

	actorHandle, err := ob.pickActor(ev.AuthorHandle)
	if err != nil {
		return "", err
	}
	if actorHandle == "" {
		ob.logger.Infof("Not federating %s: no enabled actor to attribute it to", ev.ContentId)
		return "", nil
	}

	if _, err = ob.keyStore.EnsureKeyPair(actorHandle); err != nil {
		return "", err
	}
	privKey, err := ob.keyStore.GetPrivKey(actorHandle)
	if err != nil {
		return "", err
	}

	targets, tags, err := ob.collectTargets(actorHandle, ev, verb)
	if err != nil {
		return "", err
	}
	if len(targets) == 0 {
		ob.logger.Infof("Not federating %s: no followers or mentions to deliver to", ev.ContentId)
	}

	actorUrl := ob.idb.UserUrl(actorHandle)
	now := time.Now().UTC()
	activityId := ob.idb.ActivityId(ev.ContentUrl, verb, now)

	// One activity per recipient, addressed to that recipient alone
	sent := 0
	for _, target := range targets {
		to := []string{target.ActorUrl}
		actOut := dto.ActivityOut{
			Context:   "https://www.w3.org/ns/activitystreams",
			Id:        activityId,
			Type:      verb,
			Actor:     actorUrl,
			Published: now.Format(time.RFC3339),
			To:        &to,
		}
		if verb == "Delete" {
			actOut.Object = dto.Tombstone{
				Id:         ev.ContentUrl,
				Type:       "Tombstone",
				FormerType: "Note",
			}
		} else {
			actOut.Object = ob.makeNote(ev, actorUrl, to, tags)
		}
		if sendErr := ob.sender.Send(privKey, actorHandle, target.InboxUrl, &actOut); sendErr != nil {
			ob.logger.Warnf("Failed to deliver %s for %s to %s: %v",
				verb, ev.ContentId, target.InboxUrl, sendErr)
			continue
		}
		sent += 1
	}
	ob.logger.Infof("Federated %s for %s: delivered to %d of %d inboxes",
		verb, ev.ContentId, sent, len(targets))

	switch verb {
	case "Create":
		_, err = ob.repo.AddFederatedContentIfNew(&dal.FederatedContent{
			ContentId:   ev.ContentId,
			ContentUrl:  ev.ContentUrl,
			ActivityId:  activityId,
			FederatedAt: now,
		})
	case "Delete":
		err = ob.repo.DeleteFederatedContent(ev.ContentId)
	}
	if err != nil {
		return "", err
	}
	return "", nil
}

// decideVerb maps the status transition to an activity type; empty verb
// means nothing to federate.
func (ob *outbox) decideVerb(ev *dto.ContentEventIn) (verb, skipReason string, err error) {

	wasPublished := ev.OldStatus == statusPublished
	isPublished := ev.NewStatus == statusPublished

	if isPublished && !wasPublished {
		return "Create", "", nil
	}
	if isPublished && wasPublished {
		return "Update", "", nil
	}
	// Leaving the published state only matters if the item went out before
	fc, err := ob.repo.GetFederatedContent(ev.ContentId)
	if err != nil {
		return "", "", err
	}
	if wasPublished && fc != nil {
		return "Delete", "", nil
	}
	return "", "status transition is not federation-relevant", nil
}

// pickActor decides who the activity is attributed to: the author if user
// actors are on and the author can federate, else the blog-wide actor.
func (ob *outbox) pickActor(authorHandle string) (string, error) {

	if ob.cfg.UserActorsEnabled && authorHandle != "" {
		actor, err := ob.repo.GetActor(authorHandle)
		if err != nil {
			return "", err
		}
		if actor != nil && actor.Enabled && actor.ActorType == "user" {
			return authorHandle, nil
		}
	}
	if ob.cfg.BlogActorEnabled && ob.cfg.Blog != nil {
		return ob.cfg.Blog.User, nil
	}
	return "", nil
}

func (ob *outbox) collectTargets(
	actorHandle string,
	ev *dto.ContentEventIn,
	verb string,
) ([]*DeliveryTarget, []dto.Tag, error) {

	targets, err := ob.followers.GetInboxes(actorHandle)
	if err != nil {
		return nil, nil, err
	}

	res := make([]*DeliveryTarget, 0, len(targets))
	seen := make(map[string]bool)
	for _, target := range targets {
		seen[target.InboxUrl] = true
		res = append(res, target)
	}

	// Mentioned actors get the activity too, even if they don't follow
	var tags []dto.Tag
	if verb != "Delete" {
		for moniker, actor := range ob.mentions.Extract(ev.Content) {
			tags = append(tags, dto.Tag{
				Type: "Mention",
				Href: actor.Id,
				Name: moniker,
			})
			inbox := actor.Endpoints.SharedInbox
			if inbox == "" {
				inbox = actor.Inbox
			}
			if inbox == "" || seen[inbox] {
				continue
			}
			seen[inbox] = true
			res = append(res, &DeliveryTarget{InboxUrl: inbox, ActorUrl: actor.Id})
		}
	}
	return res, tags, nil
}

func (ob *outbox) makeNote(ev *dto.ContentEventIn, actorUrl string, to []string, tags []dto.Tag) *dto.Note {

	published := ev.Published
	if published.IsZero() {
		published = time.Now().UTC()
	}
	note := dto.Note{
		Id:           ev.ContentUrl,
		Type:         "Note",
		Published:    published.Format(time.RFC3339),
		AttributedTo: actorUrl,
		Url:          ev.ContentUrl,
		To:           to,
		Content:      ob.sanitizer.Sanitize(ev.Content),
	}
	if ev.Title != "" {
		summary := ev.Title
		note.Summary = &summary
	}
	if len(tags) != 0 {
		note.Tag = &tags
	}
	return &note
}
