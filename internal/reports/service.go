package reports

import (
	"context"
	"io"

	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tableside-backend/pkg/errors"
	"github.com/angelmondragon/tableside-backend/pkg/types"
)

type tableSource interface {
	ListWithHistory(ctx context.Context, branchCode string) ([]models.Table, error)
}

// Service builds reports from a branch snapshot.
type Service struct {
	tables tableSource
}

func NewService(tables tableSource) (*Service, error) {
	if tables == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "table source is required")
	}
	return &Service{tables: tables}, nil
}

func (s *Service) OrdersReport(ctx context.Context, branchCode string, filter Filter) (*OrdersReport, error) {
	tables, err := s.snapshot(ctx, branchCode, filter)
	if err != nil {
		return nil, err
	}
	running := make([]types.OrderLines, 0, len(tables))
	history := []models.HistoryEntry{}
	for _, table := range tables {
		running = append(running, table.Orders)
		history = append(history, table.OrderHistory...)
	}
	report := BuildOrdersReport(running, history)
	return &report, nil
}

func (s *Service) ExportOrders(ctx context.Context, branchCode string, filter Filter, w io.Writer) error {
	tables, err := s.snapshot(ctx, branchCode, filter)
	if err != nil {
		return err
	}
	return ExportOrdersCSV(w, tables)
}

func (s *Service) snapshot(ctx context.Context, branchCode string, filter Filter) ([]models.Table, error) {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from must not be after to")
	}
	tables, err := s.tables.ListWithHistory(ctx, branchCode)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders snapshot")
	}
	return filter.Apply(tables), nil
}
