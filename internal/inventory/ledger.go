package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/tableside-backend/pkg/db"
	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	"github.com/angelmondragon/tableside-backend/pkg/enums"
	"github.com/angelmondragon/tableside-backend/pkg/logger"
	"github.com/angelmondragon/tableside-backend/pkg/metrics"
	"github.com/angelmondragon/tableside-backend/pkg/types"
)

const (
	defaultDeductionConcurrency = 4

	uniqueSettlementDeduction = "uq_inventory_history_settlement_deduct"
)

// DeductionStatus is the outcome for one ingredient.
type DeductionStatus string

const (
	DeductionApplied DeductionStatus = "applied"
	DeductionSkipped DeductionStatus = "skipped"
	DeductionFailed  DeductionStatus = "failed"
)

// DeductionResult reports what happened to one aggregated ingredient.
type DeductionResult struct {
	Key              string           `json:"key"`
	IngredientName   string           `json:"ingredientName"`
	InventoryItemID  *uuid.UUID       `json:"inventoryItemId,omitempty"`
	TotalUsed        decimal.Decimal  `json:"totalUsed"`
	PreviousQuantity *decimal.Decimal `json:"previousQuantity,omitempty"`
	UpdatedQuantity  *decimal.Decimal `json:"updatedQuantity,omitempty"`
	Status           DeductionStatus  `json:"status"`
	Reason           string           `json:"reason,omitempty"`

	err error
}

// DeductionReport collects per-ingredient results of a batch deduction.
type DeductionReport struct {
	Results []DeductionResult `json:"results"`
}

// Warnings lists a line per skipped or failed ingredient.
func (r DeductionReport) Warnings() []string {
	warnings := []string{}
	for _, res := range r.Results {
		if res.Status == DeductionApplied {
			continue
		}
		warnings = append(warnings, fmt.Sprintf("%s %s: %s", res.label(), res.Status, res.Reason))
	}
	return warnings
}

// Err combines the failures. Skipped ingredients are not errors.
func (r DeductionReport) Err() error {
	var combined error
	for _, res := range r.Results {
		if res.Status == DeductionFailed {
			combined = multierr.Append(combined, fmt.Errorf("%s: %w", res.label(), res.err))
		}
	}
	return combined
}

// Applied counts the ingredients whose stock was written.
func (r DeductionReport) Applied() int {
	n := 0
	for _, res := range r.Results {
		if res.Status == DeductionApplied {
			n++
		}
	}
	return n
}

func (r DeductionResult) label() string {
	if r.IngredientName != "" {
		return r.IngredientName
	}
	if r.InventoryItemID != nil {
		return r.InventoryItemID.String()
	}
	return r.Key
}

// LedgerParams groups the ledger dependencies. Metrics is optional.
type LedgerParams struct {
	DB          txRunner
	Repository  Repository
	Logger      *logger.Logger
	Metrics     *metrics.SettlementMetrics
	Concurrency int
}

// Ledger applies ingredient consumption to branch stock.
type Ledger struct {
	db          txRunner
	repo        Repository
	logg        *logger.Logger
	metrics     *metrics.SettlementMetrics
	concurrency int
}

func NewLedger(params LedgerParams) (*Ledger, error) {
	if params.DB == nil {
		return nil, errors.New("db runner required")
	}
	if params.Repository == nil {
		return nil, errors.New("inventory repository required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	concurrency := params.Concurrency
	if concurrency <= 0 {
		concurrency = defaultDeductionConcurrency
	}
	return &Ledger{
		db:          params.DB,
		repo:        params.Repository,
		logg:        params.Logger,
		metrics:     params.Metrics,
		concurrency: concurrency,
	}, nil
}

// Deduct subtracts the aggregated consumption of lines from the branch stock.
// Every ingredient is its own transaction; one failing never stops the rest.
// Stock may go negative. With a settlement id the call is re-entrant: items
// already deducted for that settlement are skipped.
func (l *Ledger) Deduct(ctx context.Context, branchCode string, settlementID *uuid.UUID, lines types.OrderLines) DeductionReport {
	consumption := []Consumption{}
	for _, c := range AggregateConsumption(lines) {
		if c.TotalUsed.IsPositive() {
			consumption = append(consumption, c)
		}
	}

	pending := mergeByItem(l.resolveAll(ctx, branchCode, consumption))
	results := make([]DeductionResult, len(pending))
	var g errgroup.Group
	g.SetLimit(l.concurrency)
	for i, p := range pending {
		g.Go(func() error {
			results[i] = p.result
			if p.item != nil {
				results[i] = l.apply(ctx, branchCode, settlementID, p)
			}
			l.metrics.IncDeduction(string(results[i].Status))
			return nil
		})
	}
	_ = g.Wait()

	report := DeductionReport{Results: results}
	if len(report.Warnings()) > 0 {
		logCtx := l.logg.WithFields(ctx, map[string]any{
			"branch_code": branchCode,
			"applied":     report.Applied(),
			"warnings":    report.Warnings(),
		})
		l.logg.Warn(logCtx, "ingredient deduction finished with warnings")
	}
	return report
}

type pendingDeduction struct {
	result DeductionResult
	item   *models.InventoryItem
}

func (l *Ledger) resolveAll(ctx context.Context, branchCode string, consumption []Consumption) []pendingDeduction {
	pending := make([]pendingDeduction, len(consumption))
	var g errgroup.Group
	g.SetLimit(l.concurrency)
	for i, c := range consumption {
		g.Go(func() error {
			pending[i] = l.resolveOne(ctx, branchCode, c)
			return nil
		})
	}
	_ = g.Wait()
	return pending
}

func (l *Ledger) resolveOne(ctx context.Context, branchCode string, c Consumption) pendingDeduction {
	result := DeductionResult{
		Key:            c.Key,
		IngredientName: c.IngredientName,
		TotalUsed:      c.TotalUsed,
	}

	item, reason, err := l.resolve(ctx, branchCode, c)
	switch {
	case err != nil:
		result.Status = DeductionFailed
		result.Reason = "lookup failed"
		result.err = err
		return pendingDeduction{result: result}
	case item == nil:
		result.Status = DeductionSkipped
		result.Reason = reason
		return pendingDeduction{result: result}
	}
	id := item.ID
	result.InventoryItemID = &id
	if result.IngredientName == "" {
		result.IngredientName = item.IngredientName
	}
	return pendingDeduction{result: result, item: item}
}

// mergeByItem folds consumptions that resolved to the same item, such as an id
// reference and a name reference, so each item is written once.
func mergeByItem(pending []pendingDeduction) []pendingDeduction {
	merged := make([]pendingDeduction, 0, len(pending))
	seen := map[uuid.UUID]int{}
	for _, p := range pending {
		if p.item == nil {
			merged = append(merged, p)
			continue
		}
		if idx, ok := seen[p.item.ID]; ok {
			merged[idx].result.TotalUsed = merged[idx].result.TotalUsed.Add(p.result.TotalUsed)
			continue
		}
		seen[p.item.ID] = len(merged)
		merged = append(merged, p)
	}
	return merged
}

var errAlreadyDeducted = errors.New("already deducted for this settlement")

func (l *Ledger) apply(ctx context.Context, branchCode string, settlementID *uuid.UUID, p pendingDeduction) DeductionResult {
	result := p.result
	item := p.item
	used := result.TotalUsed

	var updated decimal.Decimal
	err := l.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := l.repo.WithTx(tx)
		if settlementID != nil {
			done, err := repo.HasSettlementDeduction(ctx, *settlementID, item.ID)
			if err != nil {
				return err
			}
			if done {
				return errAlreadyDeducted
			}
		}
		qty, err := repo.AdjustQuantity(ctx, branchCode, item.ID, used.Neg())
		if err != nil {
			return err
		}
		updated = qty
		return repo.InsertHistory(ctx, &models.InventoryHistory{
			InventoryItemID: item.ID,
			BranchCode:      branchCode,
			Action:          enums.InventoryActionDeduct,
			QuantityUsed:    &used,
			UpdatedQuantity: qty,
			SettlementID:    settlementID,
		})
	})
	if errors.Is(err, errAlreadyDeducted) || dbpkg.IsUniqueViolation(err, uniqueSettlementDeduction) {
		result.Status = DeductionSkipped
		result.Reason = errAlreadyDeducted.Error()
		return result
	}
	if err != nil {
		result.Status = DeductionFailed
		result.Reason = "stock update failed"
		result.err = err
		logCtx := l.logg.WithFields(ctx, map[string]any{
			"branch_code":       branchCode,
			"inventory_item_id": item.ID.String(),
		})
		l.logg.Error(logCtx, "ingredient deduction failed", err)
		return result
	}

	previous := updated.Add(used)
	result.PreviousQuantity = &previous
	result.UpdatedQuantity = &updated
	result.Status = DeductionApplied

	if updated.IsNegative() {
		l.metrics.IncNegativeStock()
		logCtx := l.logg.WithFields(ctx, map[string]any{
			"branch_code":       branchCode,
			"inventory_item_id": item.ID.String(),
			"ingredient":        item.IngredientName,
			"quantity":          updated.String(),
		})
		l.logg.Warn(logCtx, "inventory item went negative")
	}
	return result
}

// resolve finds the item for c. A nil item with a reason means skip.
func (l *Ledger) resolve(ctx context.Context, branchCode string, c Consumption) (*models.InventoryItem, string, error) {
	if c.InventoryItemID != nil {
		item, err := l.repo.FindByID(ctx, branchCode, *c.InventoryItemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Sprintf("inventory item %s not found in branch", c.InventoryItemID), nil
			}
			return nil, "", err
		}
		return item, "", nil
	}

	items, err := l.repo.FindByName(ctx, branchCode, c.IngredientName)
	if err != nil {
		return nil, "", err
	}
	switch len(items) {
	case 0:
		return nil, "no inventory item with this name", nil
	case 1:
		return &items[0], "", nil
	default:
		return nil, "ingredient name matches more than one inventory item", nil
	}
}
