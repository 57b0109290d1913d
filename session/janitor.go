package session

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/slighter12/appservice-mcp-go/logger"
)

// Janitor periodically removes idle sessions on a cron schedule.
type Janitor struct {
	manager *Manager
	idle    time.Duration
	cron    *cron.Cron
}

// NewJanitor validates schedule (standard cron or descriptors such as
// "@every 5m") and prepares a janitor; call Start to run it.
func NewJanitor(manager *Manager, schedule string, idle time.Duration) (*Janitor, error) {
	j := &Janitor{
		manager: manager,
		idle:    idle,
		cron:    cron.New(),
	}
	if _, err := j.cron.AddFunc(schedule, j.Sweep); err != nil {
		return nil, fmt.Errorf("invalid session cleanup schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Sweep removes idle sessions once.
func (j *Janitor) Sweep() {
	if removed := j.manager.Cleanup(j.idle); removed > 0 {
		logger.Info("Expired idle sessions", "removed", removed, "remaining", j.manager.Len())
	}
}

// Start runs the schedule in the background.
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}
