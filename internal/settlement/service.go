package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableside-backend/internal/inventory"
	"github.com/angelmondragon/tableside-backend/internal/pricing"
	dbpkg "github.com/angelmondragon/tableside-backend/pkg/db"
	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	"github.com/angelmondragon/tableside-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableside-backend/pkg/errors"
	"github.com/angelmondragon/tableside-backend/pkg/logger"
	"github.com/angelmondragon/tableside-backend/pkg/metrics"
	"github.com/angelmondragon/tableside-backend/pkg/outbox"
	"github.com/angelmondragon/tableside-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/tableside-backend/pkg/types"
)

const (
	defaultLockTTL        = 30 * time.Second
	defaultDeductionLease = 5 * time.Minute

	statusSettledText   = "Payment Successfully Settled"
	statusDueTextFormat = "Payment Due Successfully by %s"

	warningAbandoned = "abandoned: table had no running orders when the attempt resumed"
)

// OrderStatusText is the message left on a table after it is closed.
func OrderStatusText(status enums.PaymentStatus, responsible string) string {
	if status == enums.PaymentStatusDue {
		return fmt.Sprintf(statusDueTextFormat, responsible)
	}
	return statusSettledText
}

// ServiceParams groups dependencies for the settlement service. Locker and
// Metrics are optional. DeductionLease is how long a claimed deduction may
// run before another caller can take it over.
type ServiceParams struct {
	DB             txRunner
	Repository     Repository
	Outbox         outboxPublisher
	Ledger         deductor
	Locker         tableLocker
	Logger         *logger.Logger
	Metrics        *metrics.SettlementMetrics
	LockTTL        time.Duration
	DeductionLease time.Duration
}

// Service closes tables and drives interrupted settlements to completion.
type Service interface {
	Settle(ctx context.Context, input SettleInput) (*SettleResult, error)
	Resume(ctx context.Context, settlementID uuid.UUID) (*SettleResult, error)
	Preview(ctx context.Context, input PreviewInput) (*pricing.Bill, error)
}

type service struct {
	db      txRunner
	repo    Repository
	outbox  outboxPublisher
	ledger  deductor
	locker  tableLocker
	logg    *logger.Logger
	metrics *metrics.SettlementMetrics
	lockTTL time.Duration
	lease   time.Duration
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "db runner is required")
	}
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settlement repository is required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "outbox publisher is required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory ledger is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	ttl := params.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	lease := params.DeductionLease
	if lease <= 0 {
		lease = defaultDeductionLease
	}
	return &service{
		db:      params.DB,
		repo:    params.Repository,
		outbox:  params.Outbox,
		ledger:  params.Ledger,
		locker:  params.Locker,
		logg:    params.Logger,
		metrics: params.Metrics,
		lockTTL: ttl,
		lease:   lease,
	}, nil
}

// Settle validates the request, appends the history entry and clears the table
// in one transaction, then deducts ingredients from stock. Deduction problems
// are reported as warnings and never fail the call.
func (s *service) Settle(ctx context.Context, input SettleInput) (*SettleResult, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveDuration(time.Since(started)) }()

	responsible, err := validateSettleInput(input)
	if err != nil {
		s.metrics.IncSettlement("rejected")
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"branch_code": input.BranchCode,
		"table_id":    input.TableID.String(),
	})

	if input.AttemptID != nil {
		existing, err := s.repo.FindByID(ctx, *input.AttemptID)
		switch {
		case err == nil:
			if existing.BranchCode != input.BranchCode || existing.TableID != input.TableID {
				return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "attempt id was used for a different table")
			}
			return s.continueSettlement(ctx, existing, input.Actor)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settlement attempt")
		}
	}

	release, err := s.lockTable(ctx, input.BranchCode, input.TableID)
	if err != nil {
		return nil, err
	}
	defer release()

	table, err := s.repo.FindTable(ctx, input.BranchCode, input.TableID)
	if err != nil {
		s.metrics.IncSettlement("rejected")
		return nil, lookupError(err, "table")
	}
	if len(table.Orders) == 0 {
		s.metrics.IncSettlement("rejected")
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "table has no running orders to settle")
	}
	if err := pricing.ValidateBounds(table.Orders, input.DiscountPercentage); err != nil {
		s.metrics.IncSettlement("rejected")
		return nil, err
	}

	settlement := &models.Settlement{
		TableID:            input.TableID,
		BranchCode:         input.BranchCode,
		State:              enums.SettlementStateSettling,
		DiscountPercentage: input.DiscountPercentage,
		Status:             input.Status,
		Method:             input.Method,
		Responsible:        responsible,
	}
	if input.AttemptID != nil {
		settlement.ID = *input.AttemptID
	}
	if err := s.repo.Create(ctx, settlement); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "settlement attempt already in progress")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record settlement attempt")
	}

	return s.closeAndComplete(ctx, settlement, input.Actor)
}

// Resume drives a persisted attempt forward from whatever state it stopped in.
func (s *service) Resume(ctx context.Context, settlementID uuid.UUID) (*SettleResult, error) {
	settlement, err := s.repo.FindByID(ctx, settlementID)
	if err != nil {
		return nil, lookupError(err, "settlement")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"branch_code":   settlement.BranchCode,
		"table_id":      settlement.TableID.String(),
		"settlement_id": settlement.ID.String(),
	})
	return s.continueSettlement(ctx, settlement, nil)
}

func (s *service) continueSettlement(ctx context.Context, settlement *models.Settlement, actor *outbox.ActorRef) (*SettleResult, error) {
	switch settlement.State {
	case enums.SettlementStateCompleted:
		result, err := s.loadResult(ctx, settlement)
		if err != nil {
			return nil, err
		}
		result.Replayed = true
		return result, nil
	case enums.SettlementStateClosed, enums.SettlementStateDeducting:
		entry, err := s.historyFor(ctx, settlement)
		if err != nil {
			return nil, err
		}
		claimed, err := s.claimDeduction(ctx, settlement)
		if err != nil {
			return nil, err
		}
		var report *inventory.DeductionReport
		if claimed {
			completed := s.complete(ctx, settlement, entry.Orders)
			report = &completed
		}
		result, err := s.loadResult(ctx, settlement)
		if err != nil {
			return nil, err
		}
		result.Deduction = report
		result.Replayed = true
		return result, nil
	case enums.SettlementStateSettling:
		release, err := s.lockTable(ctx, settlement.BranchCode, settlement.TableID)
		if err != nil {
			return nil, err
		}
		defer release()
		result, err := s.closeAndComplete(ctx, settlement, actor)
		if err != nil {
			return nil, err
		}
		result.Replayed = true
		return result, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "unknown settlement state")
	}
}

// closeAndComplete runs the core writes for a settling row and then the deduction.
func (s *service) closeAndComplete(ctx context.Context, settlement *models.Settlement, actor *outbox.ActorRef) (*SettleResult, error) {
	ctx = s.logg.WithField(ctx, "settlement_id", settlement.ID.String())

	entry, table, err := s.close(ctx, settlement, actor)
	if err != nil {
		if pkgerrors.IsStateConflict(err) {
			s.abandon(ctx, settlement)
		}
		s.metrics.IncSettlement("failed")
		return nil, err
	}
	s.metrics.IncSettlement(string(settlement.Status))

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"history_entry_id": entry.ID.String(),
		"payment_status":   settlement.Status,
		"discounted_total": entry.Payment.DiscountedTotal.String(),
	})
	s.logg.Info(logCtx, "table settled")

	result := &SettleResult{
		Settlement:   *settlement,
		HistoryEntry: *entry,
		Table:        *table,
	}
	claimed, err := s.claimDeduction(ctx, settlement)
	if err != nil {
		s.logg.Error(ctx, "failed to claim ingredient deduction", err)
		return result, nil
	}
	if claimed {
		report := s.complete(ctx, settlement, entry.Orders)
		result.Settlement = *settlement
		result.Deduction = &report
	}
	return result, nil
}

// claimDeduction moves the attempt into deducting so exactly one caller runs
// the ledger. A deducting row is taken over only once its lease has expired.
// It returns false when another caller holds the claim.
func (s *service) claimDeduction(ctx context.Context, settlement *models.Settlement) (bool, error) {
	var err error
	switch settlement.State {
	case enums.SettlementStateClosed:
		err = s.repo.Transition(ctx, settlement.ID, enums.SettlementStateClosed, map[string]any{
			"state": enums.SettlementStateDeducting,
		})
	case enums.SettlementStateDeducting:
		err = s.repo.Reclaim(ctx, settlement.ID, time.Now().Add(-s.lease))
	default:
		return false, nil
	}
	if errors.Is(err, ErrStateChanged) {
		s.logg.Info(ctx, "ingredient deduction claimed by another caller")
		return false, nil
	}
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim ingredient deduction")
	}
	settlement.State = enums.SettlementStateDeducting
	return true, nil
}

// close appends the history entry, clears the table, moves the attempt to
// closed and queues the outbox event in a single transaction.
func (s *service) close(ctx context.Context, settlement *models.Settlement, actor *outbox.ActorRef) (*models.HistoryEntry, *models.Table, error) {
	var (
		entry *models.HistoryEntry
		table *models.Table
	)
	now := time.Now().UTC()
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.LockTable(ctx, settlement.BranchCode, settlement.TableID)
		if err != nil {
			return lookupError(err, "table")
		}
		if len(current.Orders) == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "table has no running orders to settle")
		}

		snapshot := current.Orders.Clone()
		quote := pricing.NewQuote(snapshot, settlement.DiscountPercentage)
		settlementID := settlement.ID
		entry = &models.HistoryEntry{
			TableID:      current.ID,
			BranchCode:   current.BranchCode,
			TableNumber:  current.TableNumber,
			SettlementID: &settlementID,
			Orders:       snapshot,
			Payment: models.Payment{
				Total:              quote.Subtotal,
				DiscountPercentage: quote.DiscountPercentage,
				DiscountedTotal:    quote.DiscountedTotal,
				Status:             settlement.Status,
				Method:             settlement.Method,
				Responsible:        settlement.Responsible,
				Timestamp:          now,
			},
		}
		if err := repo.CreateHistoryEntry(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append history entry")
		}

		responsible := ""
		if settlement.Responsible != nil {
			responsible = *settlement.Responsible
		}
		statusText := OrderStatusText(settlement.Status, responsible)
		if err := repo.ClearTable(ctx, current.BranchCode, current.ID, statusText); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear table orders")
		}

		err = repo.Transition(ctx, settlement.ID, enums.SettlementStateSettling, map[string]any{
			"state":            enums.SettlementStateClosed,
			"history_entry_id": entry.ID,
			"closed_at":        now,
		})
		if err != nil {
			if errors.Is(err, ErrStateChanged) {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "settlement attempt already closed")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close settlement")
		}

		if err := s.outbox.Emit(ctx, tx, settledEvent(settlement, entry, actor)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue settlement event")
		}

		current.Orders = types.OrderLines{}
		current.OrderStatus = statusText
		table = current
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commit settlement")
		}
		return nil, nil, err
	}

	settlement.State = enums.SettlementStateClosed
	settlement.HistoryEntryID = &entry.ID
	settlement.ClosedAt = &now
	return entry, table, nil
}

// complete runs the best-effort deduction for a claimed attempt and records
// its warnings. A failed completion write is left for the reconcile job.
func (s *service) complete(ctx context.Context, settlement *models.Settlement, orders types.OrderLines) inventory.DeductionReport {
	report := s.ledger.Deduct(ctx, settlement.BranchCode, &settlement.ID, orders)
	warnings := types.StringList(report.Warnings())
	completedAt := time.Now().UTC()

	updates := map[string]any{
		"state":        enums.SettlementStateCompleted,
		"warnings":     warnings,
		"completed_at": completedAt,
	}
	if err := report.Err(); err != nil {
		msg := err.Error()
		updates["last_error"] = msg
		settlement.LastError = &msg
	}
	if err := s.repo.Transition(ctx, settlement.ID, enums.SettlementStateDeducting, updates); err != nil {
		s.logg.Error(ctx, "failed to mark settlement completed", err)
		return report
	}
	settlement.State = enums.SettlementStateCompleted
	settlement.Warnings = warnings
	settlement.CompletedAt = &completedAt
	return report
}

func (s *service) abandon(ctx context.Context, settlement *models.Settlement) {
	now := time.Now().UTC()
	err := s.repo.Transition(ctx, settlement.ID, enums.SettlementStateSettling, map[string]any{
		"state":        enums.SettlementStateCompleted,
		"warnings":     types.StringList{warningAbandoned},
		"completed_at": now,
	})
	if err != nil {
		s.logg.Error(ctx, "failed to abandon settlement attempt", err)
		return
	}
	settlement.State = enums.SettlementStateCompleted
	settlement.Warnings = types.StringList{warningAbandoned}
	settlement.CompletedAt = &now
	s.logg.Warn(ctx, "settlement attempt abandoned")
}

func (s *service) loadResult(ctx context.Context, settlement *models.Settlement) (*SettleResult, error) {
	fresh, err := s.repo.FindByID(ctx, settlement.ID)
	if err != nil {
		return nil, lookupError(err, "settlement")
	}
	if fresh.HistoryEntryID == nil {
		// Abandoned attempts never produced an entry.
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "settlement attempt was abandoned").
			WithDetails(map[string]any{"warnings": fresh.Warnings})
	}
	entry, err := s.historyFor(ctx, fresh)
	if err != nil {
		return nil, err
	}
	table, err := s.repo.FindTable(ctx, fresh.BranchCode, fresh.TableID)
	if err != nil {
		return nil, lookupError(err, "table")
	}
	return &SettleResult{Settlement: *fresh, HistoryEntry: *entry, Table: *table}, nil
}

func (s *service) historyFor(ctx context.Context, settlement *models.Settlement) (*models.HistoryEntry, error) {
	if settlement.HistoryEntryID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "closed settlement has no history entry")
	}
	entry, err := s.repo.FindHistoryEntry(ctx, *settlement.HistoryEntryID)
	if err != nil {
		return nil, lookupError(err, "history entry")
	}
	return entry, nil
}

// Preview prices the running order without touching it.
func (s *service) Preview(ctx context.Context, input PreviewInput) (*pricing.Bill, error) {
	if input.Status == "" {
		input.Status = enums.PaymentStatusSettled
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}
	if input.Method != nil && !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	table, err := s.repo.FindTable(ctx, input.BranchCode, input.TableID)
	if err != nil {
		return nil, lookupError(err, "table")
	}
	if err := pricing.ValidateBounds(table.Orders, input.DiscountPercentage); err != nil {
		return nil, err
	}
	quote := pricing.NewQuote(table.Orders, input.DiscountPercentage)
	bill := pricing.BuildBill(table.TableNumber, table.Orders, quote, input.Method, input.Status, input.Responsible)
	return &bill, nil
}

func (s *service) lockTable(ctx context.Context, branchCode string, tableID uuid.UUID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	key := s.locker.TableLockKey(branchCode, tableID.String())
	owner, ok, err := s.locker.AcquireLock(ctx, key, s.lockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire table lock")
	}
	if !ok {
		s.metrics.IncSettlement("conflict")
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "table is being settled by another request")
	}
	return func() {
		if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), key, owner); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "lock_key", key), "failed to release table lock")
		}
	}, nil
}

func validateSettleInput(input SettleInput) (*string, error) {
	if strings.TrimSpace(input.BranchCode) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch code is required")
	}
	if input.TableID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "table id is required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}
	if input.Method == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method is required")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if err := pricing.ValidateBounds(nil, input.DiscountPercentage); err != nil {
		return nil, err
	}
	if input.Status != enums.PaymentStatusDue {
		return nil, nil
	}
	responsible := strings.TrimSpace(input.Responsible)
	if responsible == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "responsible is required for due payments")
	}
	return &responsible, nil
}

func settledEvent(settlement *models.Settlement, entry *models.HistoryEntry, actor *outbox.ActorRef) outbox.DomainEvent {
	eventType := enums.EventTableSettled
	if settlement.Status == enums.PaymentStatusDue {
		eventType = enums.EventTableDue
	}
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateHistoryEntry,
		AggregateID:   entry.ID,
		Actor:         actor,
		Data: payloads.TableSettledEvent{
			SettlementID:       settlement.ID,
			HistoryEntryID:     entry.ID,
			TableID:            entry.TableID,
			TableNumber:        entry.TableNumber,
			BranchCode:         entry.BranchCode,
			Total:              entry.Payment.Total,
			DiscountPercentage: entry.Payment.DiscountPercentage,
			DiscountedTotal:    entry.Payment.DiscountedTotal,
			Status:             entry.Payment.Status,
			Method:             entry.Payment.Method,
			Responsible:        entry.Payment.Responsible,
			LineCount:          len(entry.Orders),
			SettledAt:          entry.Payment.Timestamp,
		},
		OccurredAt: entry.Payment.Timestamp,
	}
}

func lookupError(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, what+" not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+what)
}
