package logic

import (
	"fedipress/shared"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"
)

const profileIntervalMinutes = 60

type IProfiler interface {
	Shutdown()
}

// profiler periodically writes heap profiles, and purges old ones. Does
// nothing if no profile dir is configured.
type profiler struct {
	cfg    *shared.Config
	logger shared.ILogger
	chDone chan struct{}
}

func NewProfiler(cfg *shared.Config, logger shared.ILogger) IProfiler {
	p := &profiler{
		cfg:    cfg,
		logger: logger,
		chDone: make(chan struct{}),
	}
	if cfg.ProfileDir != "" {
		go p.loop()
	}
	return p
}

func (p *profiler) Shutdown() {
	close(p.chDone)
}

func (p *profiler) loop() {
	ticker := time.NewTicker(time.Minute * profileIntervalMinutes)
	defer ticker.Stop()
	for {
		select {
		case <-p.chDone:
			return
		case <-ticker.C:
			p.saveHeapProfile()
			p.purgeOldProfiles()
		}
	}
}

func (p *profiler) saveHeapProfile() {
	fname := fmt.Sprintf("heap-%s.pprof", time.Now().UTC().Format("2006-01-02-15-04"))
	f, err := os.Create(filepath.Join(p.cfg.ProfileDir, fname))
	if err != nil {
		p.logger.Errorf("Failed to create heap profile file: %v", err)
		return
	}
	defer f.Close()
	runtime.GC()
	if err = pprof.WriteHeapProfile(f); err != nil {
		p.logger.Errorf("Failed to write heap profile: %v", err)
	}
}

func (p *profiler) purgeOldProfiles() {
	keepDays := p.cfg.ProfileKeepDays
	if keepDays == 0 {
		keepDays = 7
	}
	cutoff := time.Now().Add(-time.Hour * 24 * time.Duration(keepDays))
	entries, err := os.ReadDir(p.cfg.ProfileDir)
	if err != nil {
		p.logger.Errorf("Failed to list profile dir: %v", err)
		return
	}
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".pprof") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		_ = os.Remove(filepath.Join(p.cfg.ProfileDir, entry.Name()))
	}
}
