package services

import (
	"context"
	"time"

	"tempvox/internal/core/domain"
	"tempvox/internal/core/ports"
	"tempvox/pkg/utils"

	"go.uber.org/zap"
)

// Sweeper is the periodic reclamation pass. It finalizes deletions the
// orchestrator scheduled but that no live event re-triggered, and reaps
// records whose underlying channel disappeared behind our back. Deletion
// scheduling is level-triggered: the deadline lives on the record and the
// sweeper checks it each pass, so cancellation is just the orchestrator
// clearing the field.
type Sweeper struct {
	policyRepo   ports.PolicyRepository
	instanceRepo ports.InstanceRepository
	gateway      ports.ChannelGateway
	orchestrator ports.Orchestrator
	metrics      ports.MetricsRecorder
	logger       *zap.SugaredLogger

	interval            time.Duration
	inactivityThreshold time.Duration
	stopChan            chan struct{}
}

type SweeperConfig struct {
	Interval            time.Duration
	InactivityThreshold time.Duration
}

func NewSweeper(
	policyRepo ports.PolicyRepository,
	instanceRepo ports.InstanceRepository,
	gateway ports.ChannelGateway,
	orchestrator ports.Orchestrator,
	metrics ports.MetricsRecorder,
	cfg SweeperConfig,
	logger *zap.SugaredLogger,
) *Sweeper {
	return &Sweeper{
		policyRepo:          policyRepo,
		instanceRepo:        instanceRepo,
		gateway:             gateway,
		orchestrator:        orchestrator,
		metrics:             metrics,
		logger:              logger,
		interval:            cfg.Interval,
		inactivityThreshold: cfg.InactivityThreshold,
		stopChan:            make(chan struct{}),
	}
}

// Start runs the sweep loop until the context is cancelled or Stop is
// called. Blocks; run it in its own goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the sweep loop.
func (s *Sweeper) Stop() {
	close(s.stopChan)
}

// Sweep scans every enabled community once. Exported so tests and an
// operator endpoint can trigger a pass directly.
func (s *Sweeper) Sweep(ctx context.Context) {
	start := utils.Now()
	reaped := 0

	policies, err := s.policyRepo.ListEnabled(ctx)
	if err != nil {
		s.logger.Errorw("sweep aborted, policy listing failed", "error", err)
		return
	}

	for _, policy := range policies {
		instances, err := s.instanceRepo.ListByCommunity(ctx, policy.CommunityID)
		if err != nil {
			s.logger.Errorw("sweep skipped community, instance listing failed",
				"community_id", policy.CommunityID,
				"error", err,
			)
			continue
		}

		s.metrics.SetLiveInstances(policy.CommunityID, len(instances))

		for _, instance := range instances {
			if s.sweepInstance(ctx, instance) {
				reaped++
			}
			if ctx.Err() != nil {
				return
			}
		}
	}

	s.metrics.ObserveSweep(utils.Now().Sub(start), reaped)
	if reaped > 0 {
		s.logger.Infow("sweep complete", "reaped", reaped, "duration", utils.Now().Sub(start))
	}
}

// sweepInstance decides one candidate, reporting whether it was reaped.
// The actual deletion re-reads the record under the channel lock, so a
// member racing in between scan and action wins.
func (s *Sweeper) sweepInstance(ctx context.Context, instance *domain.ChannelInstance) bool {
	if instance.CurrentMemberCount > 0 {
		return false
	}
	if utils.Now().Sub(instance.LastActiveAt) < s.inactivityThreshold {
		return false
	}

	exists, err := s.gateway.ChannelExists(ctx, instance.ChannelID)
	if err != nil {
		s.logger.Warnw("existence probe failed",
			"channel_id", instance.ChannelID,
			"error", err,
		)
		return false
	}
	if !exists {
		// Orphan left by missed events; reap regardless of deadline.
		if err := s.orchestrator.Delete(ctx, instance.ChannelID); err != nil {
			s.logger.Errorw("orphan reap failed", "channel_id", instance.ChannelID, "error", err)
			return false
		}
		return true
	}

	if instance.DeleteAfter == nil || utils.Now().Before(*instance.DeleteAfter) {
		return false
	}

	if err := s.orchestrator.FinalizeExpired(ctx, instance.ChannelID); err != nil {
		s.logger.Errorw("deadline finalization failed", "channel_id", instance.ChannelID, "error", err)
		return false
	}
	return true
}
