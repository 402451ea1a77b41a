package server

import (
	"fedipress/shared"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

type metricsHandlerGroup struct {
	cfg     *shared.Config
	handler http.Handler
}

func NewMetricsHandlerGroup(cfg *shared.Config) IHandlerGroup {
	return &metricsHandlerGroup{
		cfg:     cfg,
		handler: promhttp.Handler(),
	}
}

func (hg *metricsHandlerGroup) Prefix() string {
	return "/metrics"
}

func (hg *metricsHandlerGroup) GroupDefs() []HandlerDef {
	return []HandlerDef{
		{"GET", "", func(w http.ResponseWriter, r *http.Request) { hg.handler.ServeHTTP(w, r) }},
	}
}

func (hg *metricsHandlerGroup) AuthMW() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+hg.cfg.Secrets.MetricsAuth {
				writeErrorResponse(w, "", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
