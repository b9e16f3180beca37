package project

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// Scheduler reloads a project on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	project *Context
	spec    string
}

// NewScheduler validates spec (standard five-field cron syntax or
// descriptors such as "@every 5m") and prepares a scheduler for c.
func NewScheduler(c *Context, spec string) (*Scheduler, error) {
	s := &Scheduler{cron: cron.New(), project: c, spec: spec}
	if _, err := s.cron.AddFunc(spec, s.refresh); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins running scheduled reloads in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.project.logger.Info("refresh scheduler started", "schedule", s.spec)
}

// Stop halts the scheduler and waits for a running reload to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.project.logger.Info("refresh scheduler stopped")
}

func (s *Scheduler) refresh() {
	changed, err := s.project.Reload()
	if err != nil {
		s.project.logger.Warn("scheduled refresh failed", "schedule", s.spec, "error", err)
		return
	}
	s.project.logger.Debug("scheduled refresh", "changed", changed)
}
