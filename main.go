package main

import (
	"encoding/json"
	"fedipress/dal"
	"fedipress/dto"
	"fedipress/logic"
	"fedipress/server"
	"fedipress/shared"
	"fedipress/texts"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/fx"
)

const jobHealthCheck = "followers_health_check"
const jobPrune = "followers_prune"

func main() {

	cfg := shared.LoadConfig()

	app := fx.New(
		fx.NopLogger,
		fx.Provide(func() *shared.Config { return cfg }),
		fx.Provide(
			shared.NewLogger,
			shared.NewUserAgent,
			texts.NewTexts,
			dal.NewRepo,
			logic.NewMetrics,
			logic.NewKeyStore,
			logic.NewActivitySender,
			logic.NewActorResolver,
			logic.NewHttpSigChecker,
			logic.NewMentionExtractor,
			logic.NewFollowers,
			logic.NewActorDirectory,
			logic.NewOutbox,
			logic.NewInbox,
			logic.NewScheduler,
			logic.NewProfiler,
			asHandlerGroup(server.NewApubHandlerGroup),
			asHandlerGroup(server.NewInteractionHandlerGroup),
			asHandlerGroup(server.NewApiHandlerGroup),
			asHandlerGroup(server.NewMetricsHandlerGroup),
			fx.Annotate(server.NewMux, fx.ParamTags(`group:"handler_groups"`)),
			server.NewHTTPServer,
		),
		fx.Invoke(initDb),
		fx.Invoke(registerJobs),
		fx.Invoke(func(logic.IProfiler) {}),
		fx.Invoke(func(*http.Server) {}),
		fx.Invoke(announceStartup),
	)
	app.Run()
}

func asHandlerGroup(f any) any {
	return fx.Annotate(f, fx.ResultTags(`group:"handler_groups"`))
}

func initDb(repo dal.IRepo) {
	repo.InitUpdateDb()
}

func registerJobs(cfg *shared.Config, logger shared.ILogger, sch logic.IScheduler,
	flw logic.IFollowers, outbox logic.IOutbox) error {

	sch.RegisterHandler(jobHealthCheck, func(string) error {
		return flw.CheckOutdated()
	})
	sch.RegisterHandler(jobPrune, func(string) error {
		return flw.PruneFaulty()
	})
	sch.RegisterHandler(server.JobContentEvent, func(payload string) error {
		var ev dto.ContentEventIn
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			logger.Errorf("Queued content event has bad payload; dropping it: %v", err)
			return nil
		}
		reqProblem, err := outbox.HandleContentEvent(&ev)
		if reqProblem != "" {
			logger.Warnf("Queued content event for %s rejected: %s", ev.ContentId, reqProblem)
			return nil
		}
		return err
	})

	healthCheckHours := cfg.Schedule.HealthCheckHours
	if healthCheckHours == 0 {
		healthCheckHours = 24
	}
	pruneHours := cfg.Schedule.PruneHours
	if pruneHours == 0 {
		pruneHours = 24
	}
	if err := sch.EnsureRecurring(jobHealthCheck, time.Hour*time.Duration(healthCheckHours)); err != nil {
		return fmt.Errorf("failed to schedule %s: %v", jobHealthCheck, err)
	}
	if err := sch.EnsureRecurring(jobPrune, time.Hour*time.Duration(pruneHours)); err != nil {
		return fmt.Errorf("failed to schedule %s: %v", jobPrune, err)
	}
	logger.Infof("Recurring jobs scheduled: health check every %dh, prune every %dh",
		healthCheckHours, pruneHours)
	return nil
}

func announceStartup(cfg *shared.Config, logger shared.ILogger, metrics logic.IMetrics) {
	metrics.ServiceStarted()
	logger.Infof("Federation service up for host %s", cfg.Host)
}
