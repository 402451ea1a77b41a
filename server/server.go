package server

import (
	"context"
	"fedipress/shared"
	"fmt"
	"github.com/gorilla/mux"
	"go.uber.org/fx"
	"net"
	"net/http"
)

func NewHTTPServer(
	lc fx.Lifecycle,
	cfg *shared.Config,
	logger shared.ILogger,
	router *mux.Router,
) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.ServicePort)
	srv := &http.Server{Addr: addr, Handler: router}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			logger.Infof("Starting HTTP server at %v", srv.Addr)
			go func() {
				_ = srv.Serve(ln)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server")
			return srv.Shutdown(ctx)
		},
	})
	return srv
}

func NewMux(groups []IHandlerGroup, logger shared.ILogger) *mux.Router {

	router := mux.NewRouter()
	for _, group := range groups {
		sub := router.PathPrefix(group.Prefix()).Subrouter()
		sub.Use(group.AuthMW())
		for _, def := range group.GroupDefs() {
			sub.HandleFunc(def.Pattern, def.Handler).Methods(def.Method)
		}
	}
	router.Use(noCacheMW)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Infof("No handler for %s %s", r.Method, r.URL.Path)
		writeErrorResponse(w, "", http.StatusNotFound)
	})
	return router
}

func noCacheMW(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
