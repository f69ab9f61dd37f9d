package cron

import (
	"context"
	"fmt"

	"github.com/terravest/terravest-backend/internal/commission"
	"github.com/terravest/terravest-backend/pkg/logger"
)

type matchingEngine interface {
	RunMatchingCycle(ctx context.Context) (*commission.CycleResult, error)
}

// MatchingCycleJobParams configure the binary matching cycle job.
type MatchingCycleJobParams struct {
	Logger *logger.Logger
	Engine matchingEngine
}

// NewMatchingCycleJob builds the job that settles binary commission
// across the member base.
func NewMatchingCycleJob(params MatchingCycleJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("commission engine required")
	}
	return &matchingCycleJob{logg: params.Logger, engine: params.Engine}, nil
}

type matchingCycleJob struct {
	logg   *logger.Logger
	engine matchingEngine
}

func (j *matchingCycleJob) Name() string { return "binary-matching-cycle" }

func (j *matchingCycleJob) Run(ctx context.Context) error {
	result, err := j.engine.RunMatchingCycle(ctx)
	if result != nil {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"cycle_id":       result.CycleID,
			"members":        result.Members,
			"settled":        result.Settled,
			"total_matched":  result.TotalMatched.String(),
			"total_paid":     result.TotalPaid.String(),
			"total_dropped":  result.TotalDropped.String(),
			"failed_members": result.FailedMembers,
		})
		j.logg.Info(logCtx, "matching cycle complete")
	}
	if err != nil {
		return fmt.Errorf("matching cycle: %w", err)
	}
	return nil
}
