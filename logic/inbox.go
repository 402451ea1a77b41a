package logic

import (
	"encoding/json"
	"fedipress/dal"
	"fedipress/dto"
	"fedipress/shared"
	"fmt"
	"github.com/microcosm-cc/bluemonday"
	"github.com/spaolacci/murmur3"
	"time"
)

//go:generate mockgen --build_flags=--mod=mod -destination ../test/mocks/mock_inbox.go -package mocks fedipress/logic IInbox

// InboxHandler processes one incoming activity of a verb it is registered
// for. A reqProblem means the activity is malformed or not acceptable; err
// is a failure on our side.
type InboxHandler func(
	receivingHandle string,
	sender *dto.ActorInfo,
	actBase *dto.ActivityInBase,
	body []byte,
) (reqProblem string, err error)

type IInbox interface {
	// Process runs an already-verified incoming activity through the
	// handlers registered for its type. Re-delivered activities are
	// swallowed silently; unknown types are ignored.
	Process(
		receivingHandle string,
		sender *dto.ActorInfo,
		actBase *dto.ActivityInBase,
		body []byte,
	) (reqProblem string, err error)
}

type inbox struct {
	cfg       *shared.Config
	logger    shared.ILogger
	repo      dal.IRepo
	followers IFollowers
	directory IActorDirectory
	metrics   IMetrics
	idb       shared.IdBuilder
	sanitizer *bluemonday.Policy
	handlers  map[string][]InboxHandler
}

func NewInbox(
	cfg *shared.Config,
	logger shared.ILogger,
	repo dal.IRepo,
	followers IFollowers,
	directory IActorDirectory,
	metrics IMetrics,
) IInbox {
	ib := &inbox{
		cfg:       cfg,
		logger:    logger,
		repo:      repo,
		followers: followers,
		directory: directory,
		metrics:   metrics,
		idb:       shared.IdBuilder{Host: cfg.Host},
		sanitizer: bluemonday.UGCPolicy(),
	}
	// The registry is built once; handlers for the same verb run in the
	// order listed here.
	ib.handlers = map[string][]InboxHandler{
		"Follow":   {ib.handleFollow},
		"Undo":     {ib.handleUndo},
		"Create":   {ib.handleCreate},
		"Update":   {ib.handleUpdate},
		"Like":     {ib.handleLike},
		"Announce": {ib.handleAnnounce},
		"Delete":   {ib.handleDelete},
	}
	return ib
}

func (ib *inbox) Process(
	receivingHandle string,
	sender *dto.ActorInfo,
	actBase *dto.ActivityInBase,
	body []byte,
) (string, error) {

	ib.metrics.InboxActivity(actBase.Type)

	// Remote servers retry; an activity id we've seen is done, whatever
	// happened to it the first time.
	alreadyHandled, err := ib.repo.MarkActivityHandled(actBase.Id, time.Now().UTC())
	if err != nil {
		return "", err
	}
	if alreadyHandled {
		ib.logger.Infof("Activity already handled: %s", actBase.Id)
		return "", nil
	}

	handlers, ok := ib.handlers[actBase.Type]
	if !ok {
		ib.logger.Debugf("Ignoring activity of type %s: %s", actBase.Type, actBase.Id)
		return "", nil
	}
	for _, handler := range handlers {
		reqProblem, err := handler(receivingHandle, sender, actBase, body)
		if reqProblem != "" || err != nil {
			return reqProblem, err
		}
	}
	return "", nil
}

func (ib *inbox) handleFollow(
	receivingHandle string,
	sender *dto.ActorInfo,
	actBase *dto.ActivityInBase,
	_ []byte,
) (string, error) {

	objectRef := actBase.ObjectRef()
	if objectRef != ib.idb.UserUrl(receivingHandle) {
		return fmt.Sprintf("Follow object %s does not match the receiving actor", objectRef), nil
	}
	actor, err := ib.repo.GetActor(receivingHandle)
	if err != nil {
		return "", err
	}
	if actor == nil || !actor.Enabled {
		return fmt.Sprintf("No such actor: %s", receivingHandle), nil
	}

	flwr, err := ib.followers.AddFollower(receivingHandle, sender.Id, actBase.Id)
	if err != nil {
		return "", err
	}

	// Always accepted; sent in the background so the 200 goes out first
	go func() {
		err := ib.directory.AcceptFollower(receivingHandle, actBase.Id, flwr.UserUrl, flwr.UserInbox)
		if err != nil {
			ib.logger.Errorf("Failed to accept follower %s: %v", flwr.UserUrl, err)
		}
	}()
	return "", nil
}

func (ib *inbox) handleUndo(
	receivingHandle string,
	sender *dto.ActorInfo,
	actBase *dto.ActivityInBase,
	_ []byte,
) (string, error) {

	innerType := actBase.ObjectType()
	innerRef := actBase.ObjectRef()

	switch innerType {
	case "Follow":
		// Only the follower themselves can undo their follow
		if err := ib.followers.RemoveFollower(receivingHandle, sender.Id); err != nil {
			return "", err
		}
	case "Like", "Announce", "Create":
		if !ib.cfg.InteractionsEnabled {
			return "", nil
		}
		if innerRef == "" {
			return "Undo has an embedded object without an id", nil
		}
		if err := ib.repo.DeleteInteractionByRef(innerRef); err != nil {
			return "", err
		}
	default:
		ib.logger.Debugf("Ignoring Undo of %s: %s", innerType, actBase.Id)
	}
	return "", nil
}

func (ib *inbox) checkAddressing(
	receivingHandle string,
	actTo, actCc, objTo, objCc []string,
) string {

	userUrl := ib.idb.UserUrl(receivingHandle)
	for _, slice := range [][]string{actTo, actCc, objTo, objCc} {
		for _, addr := range slice {
			if addr == shared.ActivityPublic || addr == userUrl {
				return ""
			}
		}
	}
	return "Activity is neither public nor addressed to the receiving actor"
}

func interactionHash(kind, source, content string) int64 {
	return int64(murmur3.Sum64([]byte(kind + "\n" + source + "\n" + content)))
}

func (ib *inbox) handleCreate(
	receivingHandle string,
	sender *dto.ActorInfo,
	actBase *dto.ActivityInBase,
	body []byte,
) (string, error) {

	var act dto.ActivityIn[*dto.Note]
	if err := json.Unmarshal(body, &act); err != nil {
		return fmt.Sprintf("Invalid Create activity: %v", err), nil
	}
	if act.Object == nil || act.Object.Id == "" {
		return "Create must carry an embedded object with an id", nil
	}
	note := act.Object

	if problem := ib.checkAddressing(receivingHandle, act.To, act.Cc, note.To, note.Cc); problem != "" {
		return problem, nil
	}
	if !ib.cfg.InteractionsEnabled {
		return "", nil
	}
	if note.InReplyTo == nil || *note.InReplyTo == "" {
		// Not a reply: nothing of ours it can attach to
		return "", nil
	}

	fc, err := ib.repo.GetFederatedContentByUrl(*note.InReplyTo)
	if err != nil {
		return "", err
	}
	if fc == nil {
		return fmt.Sprintf("Object replies to unknown content: %s", *note.InReplyTo), nil
	}

	content := ib.sanitizer.Sanitize(note.Content)
	isNew, err := ib.repo.AddInteractionIfNew(&dal.Interaction{
		CreatedAt:   time.Now().UTC(),
		Kind:        "comment",
		ActivityId:  actBase.Id,
		ObjectUrl:   note.Id,
		SourceUrl:   note.Id,
		ContentHash: interactionHash("comment", note.Id, content),
		AuthorUrl:   sender.Id,
		AuthorName:  sender.Name,
		ContentUrl:  fc.ContentUrl,
		Content:     content,
	})
	if err != nil {
		return "", err
	}
	if !isNew {
		ib.logger.Infof("Comment already stored: %s", note.Id)
	}
	return "", nil
}

func (ib *inbox) handleUpdate(
	receivingHandle string,
	sender *dto.ActorInfo,
	actBase *dto.ActivityInBase,
	body []byte,
) (string, error) {

	var act dto.ActivityIn[*dto.Note]
	if err := json.Unmarshal(body, &act); err != nil {
		return fmt.Sprintf("Invalid Update activity: %v", err), nil
	}
	if act.Object == nil || act.Object.Id == "" {
		return "Update must carry an embedded object with an id", nil
	}
	note := act.Object

	if problem := ib.checkAddressing(receivingHandle, act.To, act.Cc, note.To, note.Cc); problem != "" {
		return problem, nil
	}
	if !ib.cfg.InteractionsEnabled {
		return "", nil
	}

	existing, err := ib.repo.GetInteractionByRef(note.Id)
	if err != nil {
		return "", err
	}
	if existing == nil {
		// Updates to objects we never saw go through the Create path
		return ib.handleCreate(receivingHandle, sender, actBase, body)
	}
	if existing.AuthorUrl != sender.Id {
		return "Update actor does not match the stored interaction's author", nil
	}

	content := ib.sanitizer.Sanitize(note.Content)
	err = ib.repo.UpdateInteractionContent(note.Id, content,
		interactionHash(existing.Kind, note.Id, content))
	if err != nil {
		return "", err
	}
	return "", nil
}

func (ib *inbox) handleLike(
	receivingHandle string,
	sender *dto.ActorInfo,
	actBase *dto.ActivityInBase,
	_ []byte,
) (string, error) {
	return ib.storeReaction("like", sender, actBase)
}

func (ib *inbox) handleAnnounce(
	receivingHandle string,
	sender *dto.ActorInfo,
	actBase *dto.ActivityInBase,
	_ []byte,
) (string, error) {
	return ib.storeReaction("announce", sender, actBase)
}

func (ib *inbox) storeReaction(kind string, sender *dto.ActorInfo, actBase *dto.ActivityInBase) (string, error) {

	if !ib.cfg.InteractionsEnabled {
		return "", nil
	}
	objectRef := actBase.ObjectRef()
	if objectRef == "" {
		return "Activity has no object reference", nil
	}
	fc, err := ib.repo.GetFederatedContentByUrl(objectRef)
	if err != nil {
		return "", err
	}
	if fc == nil {
		return fmt.Sprintf("Activity refers to unknown content: %s", objectRef), nil
	}

	isNew, err := ib.repo.AddInteractionIfNew(&dal.Interaction{
		CreatedAt:   time.Now().UTC(),
		Kind:        kind,
		ActivityId:  actBase.Id,
		ObjectUrl:   "",
		SourceUrl:   sender.Id,
		ContentHash: interactionHash(kind, sender.Id, fc.ContentUrl),
		AuthorUrl:   sender.Id,
		AuthorName:  sender.Name,
		ContentUrl:  fc.ContentUrl,
	})
	if err != nil {
		return "", err
	}
	if !isNew {
		ib.logger.Infof("Reaction already stored: %s", actBase.Id)
	}
	return "", nil
}

func (ib *inbox) handleDelete(
	receivingHandle string,
	sender *dto.ActorInfo,
	actBase *dto.ActivityInBase,
	_ []byte,
) (string, error) {

	ref := actBase.ObjectRef()
	if ref == "" {
		return "Delete has no object reference", nil
	}

	if err := ib.repo.DeleteInteractionByRef(ref); err != nil {
		return "", err
	}

	// An actor deleting itself takes its follower records with it
	if ref == actBase.Actor {
		if err := ib.repo.RemoveFollowerByUrl(ref); err != nil {
			return "", err
		}
		ib.logger.Infof("Actor deleted itself, follower records removed: %s", ref)
	}
	return "", nil
}
