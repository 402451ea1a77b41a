package server

import (
	"encoding/json"
	"fedipress/dal"
	"fedipress/dto"
	"fedipress/logic"
	"fedipress/shared"
	"net/http"
	"time"
)

const importLockExpiry = time.Minute * 15
const contentEventRetryDelay = time.Minute * 5

// JobContentEvent names the queued retry job for failed content events.
const JobContentEvent = "content_event"

type apiHandlerGroup struct {
	cfg       *shared.Config
	logger    shared.ILogger
	outbox    logic.IOutbox
	followers logic.IFollowers
	scheduler logic.IScheduler
	repo      dal.IRepo
}

func NewApiHandlerGroup(
	cfg *shared.Config,
	logger shared.ILogger,
	outbox logic.IOutbox,
	followers logic.IFollowers,
	scheduler logic.IScheduler,
	repo dal.IRepo,
) IHandlerGroup {
	return &apiHandlerGroup{
		cfg:       cfg,
		logger:    logger,
		outbox:    outbox,
		followers: followers,
		scheduler: scheduler,
		repo:      repo,
	}
}

func (hg *apiHandlerGroup) Prefix() string {
	return "/api"
}

func (hg *apiHandlerGroup) GroupDefs() []HandlerDef {
	return []HandlerDef{
		{"POST", "/content-events", func(w http.ResponseWriter, r *http.Request) { hg.postContentEvent(w, r) }},
		{"GET", "/followers", func(w http.ResponseWriter, r *http.Request) { hg.getFollowers(w, r) }},
		{"POST", "/followers/import", func(w http.ResponseWriter, r *http.Request) { hg.postFollowersImport(w, r) }},
	}
}

func (hg *apiHandlerGroup) AuthMW() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-KEY")
			keyOk := false
			for _, key := range hg.cfg.Secrets.ApiKeys {
				if key == apiKey {
					keyOk = true
				}
			}
			if !keyOk {
				writeErrorResponse(w, "", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (hg *apiHandlerGroup) postContentEvent(w http.ResponseWriter, r *http.Request) {

	body := readBody(hg.logger, w, r)
	if body == nil {
		return
	}
	var ev dto.ContentEventIn
	if err := json.Unmarshal(body, &ev); err != nil {
		writeErrorResponse(w, "Invalid content event", http.StatusBadRequest)
		return
	}

	reqProblem, err := hg.outbox.HandleContentEvent(&ev)
	if err != nil {
		// Server-side trouble: park the event in the job queue and retry later
		hg.logger.Errorf("Failed to handle content event for %s, queuing retry: %v", ev.ContentId, err)
		notBefore := time.Now().UTC().Add(contentEventRetryDelay)
		if err = hg.scheduler.Schedule(JobContentEvent, string(body), notBefore); err != nil {
			hg.logger.Errorf("Failed to queue content event for %s: %v", ev.ContentId, err)
			writeErrorResponse(w, "", http.StatusInternalServerError)
			return
		}
		writeJsonResponse(hg.logger, w, map[string]string{"status": "queued"})
		return
	}
	if reqProblem != "" {
		writeErrorResponse(w, reqProblem, http.StatusBadRequest)
		return
	}
	writeJsonResponse(hg.logger, w, map[string]string{"status": "accepted"})
}

func (hg *apiHandlerGroup) getFollowers(w http.ResponseWriter, r *http.Request) {

	localActor := r.URL.Query().Get("actor")
	if localActor == "" {
		writeErrorResponse(w, "Missing 'actor' parameter", http.StatusBadRequest)
		return
	}
	flwrs, err := hg.followers.GetFollowers(localActor)
	if err != nil {
		hg.logger.Errorf("Failed to list followers of %s: %v", localActor, err)
		writeErrorResponse(w, "", http.StatusInternalServerError)
		return
	}
	writeJsonResponse(hg.logger, w, flwrs)
}

type importResult struct {
	Imported int      `json:"imported"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

func (hg *apiHandlerGroup) postFollowersImport(w http.ResponseWriter, r *http.Request) {

	body := readBody(hg.logger, w, r)
	if body == nil {
		return
	}
	var items []dto.FollowerImportIn
	if err := json.Unmarshal(body, &items); err != nil {
		writeErrorResponse(w, "Invalid import batch", http.StatusBadRequest)
		return
	}

	// Only one import batch may run at a time
	locked, err := hg.repo.AcquireBatchLock(time.Now().UTC(), importLockExpiry)
	if err != nil {
		hg.logger.Errorf("Failed to acquire batch lock: %v", err)
		writeErrorResponse(w, "", http.StatusInternalServerError)
		return
	}
	if !locked {
		http.Error(w, "409 Conflict: another import is in progress", http.StatusConflict)
		return
	}
	defer func() {
		if err := hg.repo.ReleaseBatchLock(); err != nil {
			hg.logger.Errorf("Failed to release batch lock: %v", err)
		}
	}()

	res := importResult{}
	for _, item := range items {
		_, err := hg.followers.AddFollower(item.LocalActor, item.RemoteIdentifier, "")
		if err != nil {
			hg.logger.Infof("Import: failed to add %s -> %s: %v",
				item.RemoteIdentifier, item.LocalActor, err)
			res.Failed += 1
			res.Errors = append(res.Errors, item.RemoteIdentifier)
			continue
		}
		res.Imported += 1
	}
	hg.logger.Infof("Import done: %d imported, %d failed", res.Imported, res.Failed)
	writeJsonResponse(hg.logger, w, &res)
}
