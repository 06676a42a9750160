package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/tableside-backend/internal/settlement"
	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	"github.com/angelmondragon/tableside-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableside-backend/pkg/errors"
	"github.com/angelmondragon/tableside-backend/pkg/logger"
)

const (
	defaultReconcileGrace = 5 * time.Minute
	reconcileBatchSize    = 100
)

type staleSettlementSource interface {
	ListStale(ctx context.Context, states []enums.SettlementState, before time.Time, limit int) ([]models.Settlement, error)
}

type settlementResumer interface {
	Resume(ctx context.Context, settlementID uuid.UUID) (*settlement.SettleResult, error)
}

type SettlementReconcileJobParams struct {
	Logger     *logger.Logger
	Repository staleSettlementSource
	Settlement settlementResumer
	Grace      time.Duration
	BatchSize  int
}

// NewSettlementReconcileJob finishes settlement attempts that stopped after a
// crash or timeout: before the table was cleared, before stock was deducted,
// or while a deduction claim was held.
func NewSettlementReconcileJob(params SettlementReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if params.Settlement == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = defaultReconcileGrace
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = reconcileBatchSize
	}
	return &settlementReconcileJob{
		logg:      params.Logger,
		repo:      params.Repository,
		svc:       params.Settlement,
		grace:     grace,
		batchSize: batch,
		now:       time.Now,
	}, nil
}

type settlementReconcileJob struct {
	logg      *logger.Logger
	repo      staleSettlementSource
	svc       settlementResumer
	grace     time.Duration
	batchSize int
	now       func() time.Time
}

func (j *settlementReconcileJob) Name() string { return "settlement-reconcile" }

func (j *settlementReconcileJob) Run(ctx context.Context) error {
	before := j.now().UTC().Add(-j.grace)
	stale, err := j.repo.ListStale(ctx, []enums.SettlementState{
		enums.SettlementStateSettling,
		enums.SettlementStateClosed,
		enums.SettlementStateDeducting,
	}, before, j.batchSize)
	if err != nil {
		return fmt.Errorf("list stale settlements: %w", err)
	}

	var (
		resumed   int
		abandoned int
		errs      error
	)
	for _, row := range stale {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		rowCtx := j.logg.WithFields(ctx, map[string]any{
			"settlement_id": row.ID.String(),
			"branch_code":   row.BranchCode,
			"table_id":      row.TableID.String(),
			"state":         row.State,
		})
		_, err := j.svc.Resume(rowCtx, row.ID)
		switch {
		case err == nil:
			resumed++
		case pkgerrors.IsStateConflict(err):
			abandoned++
			j.logg.Warn(rowCtx, "stale settlement abandoned")
		case pkgerrors.IsCode(err, pkgerrors.CodeConflict):
			// A live request holds the table lock; retry next cycle.
			j.logg.Info(rowCtx, "stale settlement locked by another request")
		default:
			errs = multierr.Append(errs, fmt.Errorf("resume %s: %w", row.ID, err))
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"stale":     len(stale),
		"resumed":   resumed,
		"abandoned": abandoned,
		"failed":    len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "settlement reconcile complete")
	return errs
}
