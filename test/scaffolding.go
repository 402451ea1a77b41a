package test

import (
	"fedipress/dal"
	"fedipress/logic"
	"fedipress/shared"
	"path/filepath"
	"testing"
	"time"
)

const testHost = "press.example.com"

func makeTestConfig(t *testing.T) *shared.Config {
	return &shared.Config{
		Secrets: shared.Secrets{
			PrivKeyPass: "test-passphrase",
			ApiKeys:     []string{"test-api-key"},
		},
		LogLevel:            "debug",
		Host:                testHost,
		DbFile:              filepath.Join(t.TempDir(), "test.db"),
		InboxVerifyMode:     "strict",
		UserActorsEnabled:   true,
		BlogActorEnabled:    true,
		InteractionsEnabled: true,
		Blog: &shared.BlogInfo{
			User:      "blog",
			Name:      "Test Blog",
			Summary:   "A blog for testing",
			Published: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func makeTestRepo(t *testing.T, cfg *shared.Config, logger shared.ILogger) dal.IRepo {
	repo := dal.NewRepo(cfg, logger)
	repo.InitUpdateDb()
	return repo
}

// testLogger routes log output to the test log.
type testLogger struct {
	t *testing.T
}

func newTestLogger(t *testing.T) shared.ILogger {
	return &testLogger{t: t}
}

func (l *testLogger) Debug(msg interface{}, keyvals ...interface{}) { l.t.Log(msg, keyvals) }
func (l *testLogger) Debugf(format string, args ...interface{})     { l.t.Logf(format, args...) }
func (l *testLogger) Info(msg interface{}, keyvals ...interface{})  { l.t.Log(msg, keyvals) }
func (l *testLogger) Infof(format string, args ...interface{})      { l.t.Logf(format, args...) }
func (l *testLogger) Warn(msg interface{}, keyvals ...interface{})  { l.t.Log(msg, keyvals) }
func (l *testLogger) Warnf(format string, args ...interface{})      { l.t.Logf(format, args...) }
func (l *testLogger) Error(msg interface{}, keyvals ...interface{}) { l.t.Log(msg, keyvals) }
func (l *testLogger) Errorf(format string, args ...interface{})     { l.t.Logf(format, args...) }
func (l *testLogger) Printf(format string, args ...interface{})     { l.t.Logf(format, args...) }

var _ shared.ILogger = (*testLogger)(nil)

// nopLogger discards everything; for components that keep logging from
// background goroutines after the test body returns.
type nopLogger struct{}

func newNopLogger() shared.ILogger {
	return &nopLogger{}
}

func (l *nopLogger) Debug(msg interface{}, keyvals ...interface{}) {}
func (l *nopLogger) Debugf(format string, args ...interface{})     {}
func (l *nopLogger) Info(msg interface{}, keyvals ...interface{})  {}
func (l *nopLogger) Infof(format string, args ...interface{})      {}
func (l *nopLogger) Warn(msg interface{}, keyvals ...interface{})  {}
func (l *nopLogger) Warnf(format string, args ...interface{})      {}
func (l *nopLogger) Error(msg interface{}, keyvals ...interface{}) {}
func (l *nopLogger) Errorf(format string, args ...interface{})     {}
func (l *nopLogger) Printf(format string, args ...interface{})     {}

// nopMetrics swallows all instrumentation.
type nopMetrics struct{}

type nopObserver struct{}

func newNopMetrics() logic.IMetrics {
	return &nopMetrics{}
}

func (o *nopObserver) Finish() {}

func (m *nopMetrics) ServiceStarted()      {}
func (m *nopMetrics) ActivityDelivered()   {}
func (m *nopMetrics) DeliveryFailed()      {}
func (m *nopMetrics) InboxActivity(string) {}
func (m *nopMetrics) TotalFollowers(int)   {}
func (m *nopMetrics) JobRun(string)        {}

func (m *nopMetrics) StartApubRequestIn(string) logic.IRequestObserver {
	return &nopObserver{}
}

func (m *nopMetrics) StartApubRequestOut(string) logic.IRequestObserver {
	return &nopObserver{}
}
