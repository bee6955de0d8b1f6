package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Mariaiaiaia/auction-sub000/pkg/logger"

	"github.com/robfig/cron/v3"
)

// LeaderChecker gates the sweeps so only one instance scans at a time.
type LeaderChecker interface {
	IsLeader(ctx context.Context, instanceID string) (bool, error)
}

// Sweeper runs the two periodic maintenance jobs: the pre-warm sweep and the
// finalize sweep. Each tick checks leadership first; followers skip the tick
// without touching the store.
type Sweeper struct {
	cron             *cron.Cron
	cacheManager     *CacheManager
	leader           LeaderChecker
	instanceID       string
	prewarmInterval  time.Duration
	finalizeInterval time.Duration
	log              logger.Logger
}

func NewSweeper(
	cacheManager *CacheManager,
	leader LeaderChecker,
	instanceID string,
	prewarmInterval, finalizeInterval time.Duration,
	log logger.Logger,
) *Sweeper {
	return &Sweeper{
		cron:             cron.New(),
		cacheManager:     cacheManager,
		leader:           leader,
		instanceID:       instanceID,
		prewarmInterval:  prewarmInterval,
		finalizeInterval: finalizeInterval,
		log:              log,
	}
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.log.Info("Starting auction sweeper",
		"prewarm_interval", s.prewarmInterval.String(),
		"finalize_interval", s.finalizeInterval.String())

	_, err := s.cron.AddFunc(everySpec(s.prewarmInterval), func() {
		s.runAsLeader(ctx, "prewarm", s.cacheManager.PrewarmSweep)
	})
	if err != nil {
		return err
	}

	_, err = s.cron.AddFunc(everySpec(s.finalizeInterval), func() {
		s.runAsLeader(ctx, "finalize", s.cacheManager.FinalizeSweep)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to return.
func (s *Sweeper) Stop() error {
	s.log.Info("Stopping auction sweeper")
	<-s.cron.Stop().Done()
	return nil
}

func (s *Sweeper) runAsLeader(ctx context.Context, name string, sweep func(context.Context) error) {
	isLeader, err := s.leader.IsLeader(ctx, s.instanceID)
	if err != nil {
		s.log.Error("Failed to check sweep leadership", "sweep", name, "error", err)
		return
	}
	if !isLeader {
		return
	}

	if err := sweep(ctx); err != nil {
		s.log.Error("Sweep failed", "sweep", name, "error", err)
	}
}

func everySpec(interval time.Duration) string {
	return fmt.Sprintf("@every %s", interval)
}
