package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/nvoronin/ledger-service/internal/repository"
)

const janitorSchedule = "@every 1m"

// Janitor periodically releases idempotency reservations left pending by
// crashed executions, so retries of those keys are not stuck forever.
type Janitor struct {
	store repository.Store
	log   *logrus.Logger
	ttl   time.Duration
	cron  *cron.Cron
}

// NewJanitor initializes a new janitor
func NewJanitor(store repository.Store, log *logrus.Logger, ttl time.Duration) *Janitor {
	return &Janitor{store: store, log: log, ttl: ttl, cron: cron.New()}
}

// Start schedules the sweep and begins running it.
func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc(janitorSchedule, j.sweep); err != nil {
		return err
	}
	j.cron.Start()
	j.log.Infof("Idempotency janitor started, reservation TTL %s", j.ttl)
	return nil
}

// Stop halts the schedule. A sweep already in flight finishes.
func (j *Janitor) Stop() {
	j.cron.Stop()
}

func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	released, err := j.store.ReleaseStaleReservations(ctx, j.ttl)
	if err != nil {
		j.log.Errorf("Failed to release stale idempotency reservations: %v", err)
		return
	}
	if released > 0 {
		j.log.Warnf("Released %d stale idempotency reservations", released)
	}
}
