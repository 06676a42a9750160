package tables

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableside-backend/internal/pricing"
	dbpkg "github.com/angelmondragon/tableside-backend/pkg/db"
	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tableside-backend/pkg/errors"
	"github.com/angelmondragon/tableside-backend/pkg/logger"
	"github.com/angelmondragon/tableside-backend/pkg/types"
)

// RunningOrderStatus is set while a table has unsettled orders.
const RunningOrderStatus = "Running Order"

// Summary is a table in the floor listing.
type Summary struct {
	models.Table
	RunningTotal decimal.Decimal `json:"runningTotal"`
	LineCount    int             `json:"lineCount"`
}

type ServiceParams struct {
	DB         txRunner
	Repository Repository
	// Catalog resolves lines that name a menu product. Optional.
	Catalog productCatalog
	Logger  *logger.Logger
}

// Service manages tables and their running orders.
type Service interface {
	Create(ctx context.Context, branchCode, tableNumber string) (*models.Table, error)
	List(ctx context.Context, branchCode string) ([]Summary, error)
	Get(ctx context.Context, branchCode string, id uuid.UUID) (*models.Table, error)
	AddOrderLines(ctx context.Context, branchCode string, id uuid.UUID, lines types.OrderLines) (*models.Table, error)
}

type service struct {
	db      txRunner
	repo    Repository
	catalog productCatalog
	logg    *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "db runner is required")
	}
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tables repository is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	return &service{db: params.DB, repo: params.Repository, catalog: params.Catalog, logg: params.Logger}, nil
}

func (s *service) Create(ctx context.Context, branchCode, tableNumber string) (*models.Table, error) {
	branchCode = strings.TrimSpace(branchCode)
	tableNumber = strings.TrimSpace(tableNumber)
	if branchCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch code is required")
	}
	if tableNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "table number is required")
	}
	table := &models.Table{
		BranchCode:  branchCode,
		TableNumber: tableNumber,
		Orders:      types.OrderLines{},
	}
	if err := s.repo.Create(ctx, table); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "table number already exists in this branch")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create table")
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"branch_code":  branchCode,
		"table_id":     table.ID.String(),
		"table_number": tableNumber,
	})
	s.logg.Info(logCtx, "table created")
	return table, nil
}

func (s *service) List(ctx context.Context, branchCode string) ([]Summary, error) {
	rows, err := s.repo.List(ctx, branchCode)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tables")
	}
	out := make([]Summary, 0, len(rows))
	for _, row := range rows {
		out = append(out, Summary{
			Table:        row,
			RunningTotal: pricing.ComputeSubtotal(row.Orders),
			LineCount:    len(row.Orders),
		})
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, branchCode string, id uuid.UUID) (*models.Table, error) {
	table, err := s.repo.FindWithHistory(ctx, branchCode, id)
	if err != nil {
		return nil, lookupError(err)
	}
	return table, nil
}

// AddOrderLines appends validated lines to the running order. A line with a
// product id takes its name, price and recipe from the branch menu.
func (s *service) AddOrderLines(ctx context.Context, branchCode string, id uuid.UUID, lines types.OrderLines) (*models.Table, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one order line is required")
	}
	lines, err := s.fromCatalog(ctx, branchCode, lines)
	if err != nil {
		return nil, err
	}
	if err := pricing.ValidateBounds(lines, decimal.Zero); err != nil {
		return nil, err
	}

	var updated *models.Table
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		table, err := repo.FindByID(ctx, branchCode, id)
		if err != nil {
			return lookupError(err)
		}
		orders := append(table.Orders.Clone(), lines.Clone()...)
		if err := repo.UpdateOrders(ctx, branchCode, id, orders, RunningOrderStatus); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update running orders")
		}
		table.Orders = orders
		table.OrderStatus = RunningOrderStatus
		updated = table
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) fromCatalog(ctx context.Context, branchCode string, lines types.OrderLines) (types.OrderLines, error) {
	out := lines.Clone()
	for i, line := range out {
		if line.ProductID == nil {
			continue
		}
		if s.catalog == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "menu products are not available")
		}
		product, err := s.catalog.Get(ctx, branchCode, *line.ProductID)
		if err != nil {
			if pkgerrors.IsNotFound(err) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("orders[%d].productId is not on this branch menu", i))
			}
			return nil, err
		}
		out[i].ItemName = product.Name
		out[i].UnitPrice = product.Price
		out[i].Ingredients = product.Ingredients.Clone()
	}
	return out, nil
}

func lookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "table not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load table")
}
