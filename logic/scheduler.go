package logic

import (
	"fedipress/dal"
	"fedipress/shared"
	"github.com/google/uuid"
	"sync"
	"time"
)

const schedulerWakeSec = 60
const maxJobsPerWake = 10

//go:generate mockgen --build_flags=--mod=mod -destination ../test/mocks/mock_scheduler.go -package mocks fedipress/logic IScheduler

// JobHandler runs one due job. Jobs are executed at least once; a handler
// that is not idempotent is a bug.
type JobHandler func(payload string) error

type IScheduler interface {
	// Schedule enqueues a one-shot job; it survives restarts.
	Schedule(name, payload string, notBefore time.Time) error
	RegisterHandler(name string, handler JobHandler)
	// EnsureRecurring makes sure a job by this name stays in the queue,
	// re-enqueued with the given interval after each run.
	EnsureRecurring(name string, interval time.Duration) error
	// RunDueJobs executes everything whose time has come. Called by the
	// internal wake loop; exposed for driving the queue directly.
	RunDueJobs()
	Shutdown()
}

type scheduler struct {
	logger    shared.ILogger
	repo      dal.IRepo
	metrics   IMetrics
	mu        sync.Mutex
	handlers  map[string]JobHandler
	recurring map[string]time.Duration
	chDone    chan struct{}
}

func NewScheduler(logger shared.ILogger, repo dal.IRepo, metrics IMetrics) IScheduler {
	sch := &scheduler{
		logger:    logger,
		repo:      repo,
		metrics:   metrics,
		handlers:  make(map[string]JobHandler),
		recurring: make(map[string]time.Duration),
		chDone:    make(chan struct{}),
	}
	go sch.loop()
	return sch
}

func (sch *scheduler) loop() {
	ticker := time.NewTicker(time.Second * schedulerWakeSec)
	defer ticker.Stop()
	for {
		select {
		case <-sch.chDone:
			return
		case <-ticker.C:
			sch.RunDueJobs()
		}
	}
}

func (sch *scheduler) Shutdown() {
	close(sch.chDone)
}

func (sch *scheduler) Schedule(name, payload string, notBefore time.Time) error {
	return sch.repo.AddJob(&dal.Job{
		Id:        uuid.NewString(),
		Name:      name,
		Payload:   payload,
		NotBefore: notBefore,
		CreatedAt: time.Now().UTC(),
	})
}

func (sch *scheduler) RegisterHandler(name string, handler JobHandler) {
	sch.mu.Lock()
	sch.handlers[name] = handler
	sch.mu.Unlock()
}

func (sch *scheduler) EnsureRecurring(name string, interval time.Duration) error {

	sch.mu.Lock()
	sch.recurring[name] = interval
	sch.mu.Unlock()

	pending, err := sch.repo.HasPendingJob(name)
	if err != nil {
		return err
	}
	if pending {
		return nil
	}
	return sch.Schedule(name, "", time.Now().UTC())
}

func (sch *scheduler) RunDueJobs() {

	jobs, err := sch.repo.GetDueJobs(time.Now().UTC(), maxJobsPerWake)
	if err != nil {
		sch.logger.Errorf("Failed to fetch due jobs: %v", err)
		return
	}
	for _, job := range jobs {
		sch.mu.Lock()
		handler := sch.handlers[job.Name]
		interval, isRecurring := sch.recurring[job.Name]
		sch.mu.Unlock()

		if handler == nil {
			sch.logger.Warnf("No handler for job '%s'; dropping it", job.Name)
		} else {
			sch.metrics.JobRun(job.Name)
			if err = handler(job.Payload); err != nil {
				sch.logger.Errorf("Job '%s' failed: %v", job.Name, err)
			}
		}
		if err = sch.repo.DeleteJob(job.Id); err != nil {
			sch.logger.Errorf("Failed to delete job '%s': %v", job.Id, err)
			continue
		}
		if isRecurring {
			if err = sch.Schedule(job.Name, "", time.Now().UTC().Add(interval)); err != nil {
				sch.logger.Errorf("Failed to re-enqueue recurring job '%s': %v", job.Name, err)
			}
		}
	}
}
