package server

import (
	"fedipress/logic"
	"fedipress/shared"
	"net/http"
	"strings"
)

// Object types whose URI means "someone to follow" rather than "something
// to reply to".
var actorTypes = map[string]bool{
	"Person":       true,
	"Group":        true,
	"Organization": true,
	"Service":      true,
	"Application":  true,
}

type interactionHandlerGroup struct {
	cfg      *shared.Config
	logger   shared.ILogger
	metrics  logic.IMetrics
	resolver logic.IActorResolver
}

func NewInteractionHandlerGroup(
	cfg *shared.Config,
	logger shared.ILogger,
	metrics logic.IMetrics,
	resolver logic.IActorResolver,
) IHandlerGroup {
	return &interactionHandlerGroup{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		resolver: resolver,
	}
}

func (hg *interactionHandlerGroup) Prefix() string {
	return "/interaction"
}

func (hg *interactionHandlerGroup) AuthMW() func(next http.Handler) http.Handler {
	return emptyAuthMW()
}

func (hg *interactionHandlerGroup) GroupDefs() []HandlerDef {
	return []HandlerDef{
		{"GET", "", func(w http.ResponseWriter, r *http.Request) { hg.getInteraction(w, r) }},
	}
}

// getInteraction is the target of remote "interact with this" buttons: it
// looks at what the URI points to and redirects the visitor to the right
// local page.
func (hg *interactionHandlerGroup) getInteraction(w http.ResponseWriter, r *http.Request) {

	obs := hg.metrics.StartApubRequestIn("interaction")
	defer obs.Finish()

	if !hg.cfg.InteractionsEnabled {
		writeErrorResponse(w, "", http.StatusNotFound)
		return
	}
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		writeErrorResponse(w, "Missing 'uri' parameter", http.StatusBadRequest)
		return
	}

	objType, err := hg.resolver.FetchType(uri)
	if err != nil || objType == "" {
		hg.logger.Infof("Cannot determine type of %s: %v", uri, err)
		writeErrorResponse(w, "Cannot retrieve the object behind 'uri'", http.StatusBadRequest)
		return
	}

	target := hg.cfg.Interactions.ReplyUrl
	if actorTypes[objType] {
		target = hg.cfg.Interactions.FollowUrl
	}
	target = strings.ReplaceAll(target, "{uri}", uri)
	http.Redirect(w, r, target, http.StatusFound)
}
