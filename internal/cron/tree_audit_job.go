package cron

import (
	"context"
	"fmt"

	"github.com/terravest/terravest-backend/pkg/logger"
)

type treeAuditor interface {
	VerifyIntegrity(ctx context.Context) ([]string, error)
}

// TreeAuditJobParams configure the placement tree audit job.
type TreeAuditJobParams struct {
	Logger  *logger.Logger
	Auditor treeAuditor
}

// NewTreeAuditJob builds the job that checks the placement tree for
// structural drift. It only reports; it never repairs.
func NewTreeAuditJob(params TreeAuditJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Auditor == nil {
		return nil, fmt.Errorf("network service required")
	}
	return &treeAuditJob{logg: params.Logger, auditor: params.Auditor}, nil
}

type treeAuditJob struct {
	logg    *logger.Logger
	auditor treeAuditor
}

func (j *treeAuditJob) Name() string { return "tree-integrity-audit" }

func (j *treeAuditJob) Run(ctx context.Context) error {
	issues, err := j.auditor.VerifyIntegrity(ctx)
	if err != nil {
		return fmt.Errorf("tree audit: %w", err)
	}
	for _, issue := range issues {
		j.logg.Warn(j.logg.WithField(ctx, "issue", issue), "tree integrity violation")
	}
	logCtx := j.logg.WithField(ctx, "issues", len(issues))
	j.logg.Info(logCtx, "tree integrity audit complete")
	return nil
}
