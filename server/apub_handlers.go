package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fedipress/dto"
	"fedipress/logic"
	"fedipress/shared"
	"fmt"
	"github.com/gorilla/mux"
	"io"
	"net/http"
	"regexp"
	"strings"
)

type apubHandlerGroup struct {
	cfg        *shared.Config
	logger     shared.ILogger
	metrics    logic.IMetrics
	sigChecker logic.IHttpSigChecker
	directory  logic.IActorDirectory
	inbox      logic.IInbox
	idb        shared.IdBuilder
	reUserUrl  *regexp.Regexp
}

func NewApubHandlerGroup(
	cfg *shared.Config,
	logger shared.ILogger,
	metrics logic.IMetrics,
	sigChecker logic.IHttpSigChecker,
	directory logic.IActorDirectory,
	inbox logic.IInbox,
) IHandlerGroup {
	return &apubHandlerGroup{
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
		sigChecker: sigChecker,
		directory:  directory,
		inbox:      inbox,
		idb:        shared.IdBuilder{Host: cfg.Host},
		reUserUrl:  regexp.MustCompile(`^https://` + regexp.QuoteMeta(cfg.Host) + `/u/([^/#?]+)$`),
	}
}

func (hg *apubHandlerGroup) Prefix() string {
	return "/"
}

func (hg *apubHandlerGroup) AuthMW() func(next http.Handler) http.Handler {
	return emptyAuthMW()
}

func (hg *apubHandlerGroup) GroupDefs() []HandlerDef {
	return []HandlerDef{
		{"GET", "/.well-known/webfinger", func(w http.ResponseWriter, r *http.Request) { hg.getWebfinger(w, r) }},
		{"GET", "/actor", func(w http.ResponseWriter, r *http.Request) { hg.getAppActor(w, r) }},
		{"GET", "/u/{user}", func(w http.ResponseWriter, r *http.Request) { hg.getUser(w, r) }},
		{"GET", "/u/{user}/followers", func(w http.ResponseWriter, r *http.Request) { hg.getFollowers(w, r) }},
		{"GET", "/u/{user}/following", func(w http.ResponseWriter, r *http.Request) { hg.getFollowing(w, r) }},
		{"GET", "/u/{user}/outbox", func(w http.ResponseWriter, r *http.Request) { hg.getOutbox(w, r) }},
		{"POST", "/u/{user}/inbox", func(w http.ResponseWriter, r *http.Request) { hg.postInbox(w, r) }},
		{"POST", "/inbox", func(w http.ResponseWriter, r *http.Request) { hg.postInbox(w, r) }},
	}
}

func (hg *apubHandlerGroup) getWebfinger(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApubRequestIn("webfinger")
	defer obs.Finish()

	resource := r.URL.Query().Get("resource")
	hg.logger.Infof("Webfinger: %s", resource)
	resp, err := hg.directory.GetWebfinger(resource)
	if err != nil {
		hg.logger.Errorf("Webfinger failed for %s: %v", resource, err)
		writeErrorResponse(w, "", http.StatusInternalServerError)
		return
	}
	if resp == nil {
		writeErrorResponse(w, "No such resource", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/jrd+json; charset=utf-8")
	if err = json.NewEncoder(w).Encode(resp); err != nil {
		hg.logger.Errorf("Failed to serialize webfinger response: %v", err)
	}
}

func (hg *apubHandlerGroup) getAppActor(w http.ResponseWriter, r *http.Request) {
	hg.serveActor(w, r, shared.AppActorHandle)
}

func (hg *apubHandlerGroup) getUser(w http.ResponseWriter, r *http.Request) {

	userName := mux.Vars(r)["user"]

	// Browsers get the human-readable profile
	accept := r.Header.Get("Accept")
	if !strings.Contains(accept, "json") {
		http.Redirect(w, r, hg.idb.UserProfile(userName), http.StatusFound)
		return
	}
	hg.serveActor(w, r, userName)
}

func (hg *apubHandlerGroup) serveActor(w http.ResponseWriter, _ *http.Request, userName string) {

	obs := hg.metrics.StartApubRequestIn("get_actor")
	defer obs.Finish()

	hg.logger.Infof("Serving actor: %s", userName)
	resp, err := hg.directory.GetActorDoc(userName)
	if err != nil {
		hg.logger.Errorf("Failed to build actor doc for %s: %v", userName, err)
		writeErrorResponse(w, "", http.StatusInternalServerError)
		return
	}
	if resp == nil {
		writeErrorResponse(w, "No such user", http.StatusNotFound)
		return
	}
	writeActivityJsonResponse(hg.logger, w, resp)
}

func (hg *apubHandlerGroup) getFollowers(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApubRequestIn("get_followers")
	defer obs.Finish()

	userName := mux.Vars(r)["user"]
	resp, err := hg.directory.GetFollowersSummary(userName)
	if err != nil {
		hg.logger.Errorf("Failed to get followers of %s: %v", userName, err)
		writeErrorResponse(w, "", http.StatusInternalServerError)
		return
	}
	if resp == nil {
		writeErrorResponse(w, "No such user", http.StatusNotFound)
		return
	}
	writeActivityJsonResponse(hg.logger, w, resp)
}

func (hg *apubHandlerGroup) getFollowing(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApubRequestIn("get_following")
	defer obs.Finish()

	// Local actors follow no one
	userName := mux.Vars(r)["user"]
	resp := dto.OrderedListSummary{
		Context:    "https://www.w3.org/ns/activitystreams",
		Id:         hg.idb.UserFollowing(userName),
		Type:       "OrderedCollection",
		TotalItems: 0,
	}
	writeActivityJsonResponse(hg.logger, w, &resp)
}

func (hg *apubHandlerGroup) getOutbox(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApubRequestIn("get_outbox")
	defer obs.Finish()

	userName := mux.Vars(r)["user"]
	resp, err := hg.directory.GetOutboxSummary(userName)
	if err != nil {
		hg.logger.Errorf("Failed to get outbox of %s: %v", userName, err)
		writeErrorResponse(w, "", http.StatusInternalServerError)
		return
	}
	if resp == nil {
		writeErrorResponse(w, "No such user", http.StatusNotFound)
		return
	}
	writeActivityJsonResponse(hg.logger, w, resp)
}

func (hg *apubHandlerGroup) postInbox(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApubRequestIn("post_inbox")
	defer obs.Finish()

	body := readBody(hg.logger, w, r)
	if body == nil {
		return
	}

	var actBase dto.ActivityInBase
	if err := json.Unmarshal(body, &actBase); err != nil {
		hg.logger.Infof("Invalid activity in inbox POST: %v", err)
		writeErrorResponse(w, fmt.Sprintf("Invalid activity: %v", err), http.StatusBadRequest)
		return
	}
	deferred := hg.cfg.InboxVerifyMode == "deferred"
	if !deferred {
		// Strict mode: the signature must hold up before we look at anything
		// else, including the activity's shape
		if problem, ok := hg.verifySignature(r, &actBase); !ok {
			writeErrorResponse(w, problem, http.StatusUnauthorized)
			return
		}
	}

	if problem := requiredFieldProblem(&actBase); problem != "" {
		writeErrorResponse(w, problem, http.StatusBadRequest)
		return
	}

	receivingUser, ok := hg.resolveReceivingUser(r, &actBase)
	if !ok {
		writeErrorResponse(w, "Activity has no local addressee", http.StatusBadRequest)
		return
	}

	hg.logger.Infof("Inbox POST for %s: %s %s from %s",
		receivingUser, actBase.Type, actBase.Id, actBase.Actor)

	if deferred {
		// Respond first, verify and process in the background. The request
		// is cloned because it is not ours once the handler returns.
		r2 := r.Clone(context.Background())
		r2.Body = io.NopCloser(bytes.NewReader(body))
		w.WriteHeader(http.StatusAccepted)
		go func() {
			if problem, ok := hg.verifySignature(r2, &actBase); !ok {
				hg.logger.Infof("Deferred verification rejected %s: %s", actBase.Id, problem)
				return
			}
			hg.processVerified(receivingUser, r2, &actBase, body, nil)
		}()
		return
	}

	hg.processVerified(receivingUser, r, &actBase, body, w)
}

func requiredFieldProblem(actBase *dto.ActivityInBase) string {
	for field, val := range map[string]string{"id": actBase.Id, "type": actBase.Type, "actor": actBase.Actor} {
		if val == "" {
			return fmt.Sprintf("Activity is missing required field '%s'", field)
		}
	}
	if actBase.Object == nil {
		return "Activity is missing required field 'object'"
	}
	return ""
}

// verifySignature checks the HTTP signature and that the signer is the
// activity's actor.
func (hg *apubHandlerGroup) verifySignature(r *http.Request, actBase *dto.ActivityInBase) (string, bool) {

	senderInfo, sigProblem, err := hg.sigChecker.Check(r)
	if err != nil {
		hg.logger.Errorf("Signature check failed: %v", err)
		return "Failed to verify signature", false
	}
	if sigProblem != "" {
		return sigProblem, false
	}
	if senderInfo.Id != actBase.Actor {
		return "Activity signed by a different actor", false
	}
	hg.stashSender(r, senderInfo)
	return "", true
}

// The verified sender travels with the request, not in a singleton.
type ctxKeySender struct{}

func (hg *apubHandlerGroup) stashSender(r *http.Request, sender *dto.ActorInfo) {
	*r = *r.WithContext(context.WithValue(r.Context(), ctxKeySender{}, sender))
}

func (hg *apubHandlerGroup) processVerified(
	receivingUser string,
	r *http.Request,
	actBase *dto.ActivityInBase,
	body []byte,
	w http.ResponseWriter,
) {
	senderInfo, _ := r.Context().Value(ctxKeySender{}).(*dto.ActorInfo)
	reqProblem, err := hg.inbox.Process(receivingUser, senderInfo, actBase, body)
	if err != nil {
		hg.logger.Errorf("Failed to process %s activity %s: %v", actBase.Type, actBase.Id, err)
		if w != nil {
			writeErrorResponse(w, "", http.StatusInternalServerError)
		}
		return
	}
	if reqProblem != "" {
		hg.logger.Infof("Rejected %s activity %s: %s", actBase.Type, actBase.Id, reqProblem)
		if w != nil {
			writeErrorResponse(w, reqProblem, http.StatusBadRequest)
		}
		return
	}
	if w != nil {
		w.WriteHeader(http.StatusOK)
	}
}

// resolveReceivingUser finds the local actor the activity is for: the path
// variable on per-user inboxes, or a local user URL in the addressing on
// the shared inbox.
func (hg *apubHandlerGroup) resolveReceivingUser(r *http.Request, actBase *dto.ActivityInBase) (string, bool) {

	if userName := mux.Vars(r)["user"]; userName != "" {
		return userName, true
	}
	candidates := make([]string, 0, len(actBase.To)+len(actBase.Cc)+1)
	candidates = append(candidates, actBase.To...)
	candidates = append(candidates, actBase.Cc...)
	if ref := actBase.ObjectRef(); ref != "" {
		candidates = append(candidates, ref)
	}
	for _, cand := range candidates {
		if groups := hg.reUserUrl.FindStringSubmatch(cand); groups != nil {
			return groups[1], true
		}
	}
	return "", false
}
