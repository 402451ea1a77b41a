package server

import (
	"encoding/json"
	"fedipress/shared"
	"io"
	"net/http"
)

type HandlerDef struct {
	Method  string
	Pattern string
	Handler func(w http.ResponseWriter, r *http.Request)
}

type IHandlerGroup interface {
	Prefix() string
	GroupDefs() []HandlerDef
	// AuthMW returns the middleware that protects the entire group.
	AuthMW() func(next http.Handler) http.Handler
}

func emptyAuthMW() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
		})
	}
}

func writeJsonResponse(logger shared.ILogger, w http.ResponseWriter, resp any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Errorf("Failed to serialize response: %v", err)
		http.Error(w, internalErrorStr, http.StatusInternalServerError)
	}
}

func writeActivityJsonResponse(logger shared.ILogger, w http.ResponseWriter, resp any) {
	w.Header().Set("Content-Type", "application/activity+json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Errorf("Failed to serialize response: %v", err)
		http.Error(w, internalErrorStr, http.StatusInternalServerError)
	}
}

const internalErrorStr = "500 Internal Server Error"
const badRequestStr = "400 Bad Request"
const notFoundStr = "404 Not Found"
const unauthorizedStr = "401 Unauthorized"

func writeErrorResponse(w http.ResponseWriter, msg string, status int) {
	statusStr := internalErrorStr
	switch status {
	case http.StatusBadRequest:
		statusStr = badRequestStr
	case http.StatusNotFound:
		statusStr = notFoundStr
	case http.StatusUnauthorized:
		statusStr = unauthorizedStr
	}
	if msg != "" {
		statusStr += ": " + msg
	}
	http.Error(w, statusStr, status)
}

func readBody(logger shared.ILogger, w http.ResponseWriter, r *http.Request) []byte {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Warnf("Failed to read request body: %v", err)
		writeErrorResponse(w, "Failed to read request body", http.StatusBadRequest)
		return nil
	}
	return body
}
