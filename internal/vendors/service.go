package vendors

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableside-backend/internal/pricing"
	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tableside-backend/pkg/errors"
	"github.com/angelmondragon/tableside-backend/pkg/logger"
	"github.com/angelmondragon/tableside-backend/pkg/types"
)

const invoiceDateLayout = "2006-01-02"

// VendorInput creates a vendor or, with nil fields skipped, updates one.
type VendorInput struct {
	Name          *string
	ContactNo     *string
	Address       *string
	Categories    []string
	SuppliedItems []string
}

// StockInput records one invoiced delivery.
type StockInput struct {
	IngredientName string
	QuantityAdded  decimal.Decimal
	Price          decimal.Decimal
	InvoiceDate    time.Time
}

// VendorDetail is a vendor with its deliveries and their total price.
type VendorDetail struct {
	models.Vendor
	TotalPayment decimal.Decimal `json:"totalPayment"`
}

// Service manages the branch vendor directory.
type Service struct {
	repo Repository
	logg *logger.Logger
}

func NewService(repo Repository, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendors repository is required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	return &Service{repo: repo, logg: logg}, nil
}

func (s *Service) Create(ctx context.Context, branchCode string, input VendorInput) (*models.Vendor, error) {
	if input.Name == nil || strings.TrimSpace(*input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor name is required")
	}
	vendor := &models.Vendor{
		BranchCode:    branchCode,
		Name:          strings.TrimSpace(*input.Name),
		ContactNo:     deref(input.ContactNo),
		Address:       deref(input.Address),
		Categories:    cleanList(input.Categories),
		SuppliedItems: cleanList(input.SuppliedItems),
	}
	if err := s.repo.Create(ctx, vendor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create vendor")
	}
	s.logg.Info(s.logg.WithField(ctx, "vendor_id", vendor.ID.String()), "vendor created")
	return vendor, nil
}

func (s *Service) List(ctx context.Context, branchCode string) ([]models.Vendor, error) {
	vendors, err := s.repo.List(ctx, branchCode)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vendors")
	}
	return vendors, nil
}

// Get returns the vendor with its deliveries. A non-nil invoiceDate narrows
// the total to that day.
func (s *Service) Get(ctx context.Context, branchCode string, id uuid.UUID, invoiceDate *time.Time) (*VendorDetail, error) {
	vendor, err := s.repo.FindWithStock(ctx, branchCode, id)
	if err != nil {
		return nil, lookupError(err)
	}
	return &VendorDetail{Vendor: *vendor, TotalPayment: TotalPayment(vendor.Stock, invoiceDate)}, nil
}

func (s *Service) Update(ctx context.Context, branchCode string, id uuid.UUID, input VendorInput) (*models.Vendor, error) {
	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor name must not be empty")
		}
		updates["name"] = name
	}
	if input.ContactNo != nil {
		updates["contact_no"] = strings.TrimSpace(*input.ContactNo)
	}
	if input.Address != nil {
		updates["address"] = strings.TrimSpace(*input.Address)
	}
	if input.Categories != nil {
		updates["categories"] = cleanList(input.Categories)
	}
	if input.SuppliedItems != nil {
		updates["supplied_items"] = cleanList(input.SuppliedItems)
	}
	if len(updates) > 0 {
		if err := s.repo.Update(ctx, branchCode, id, updates); err != nil {
			return nil, lookupError(err)
		}
	}
	vendor, err := s.repo.FindByID(ctx, branchCode, id)
	if err != nil {
		return nil, lookupError(err)
	}
	return vendor, nil
}

func (s *Service) AddStock(ctx context.Context, branchCode string, vendorID uuid.UUID, input StockInput) (*models.VendorStock, error) {
	name := strings.TrimSpace(input.IngredientName)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ingredient name is required")
	}
	if !input.QuantityAdded.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	if input.InvoiceDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice date is required")
	}
	if _, err := s.repo.FindByID(ctx, branchCode, vendorID); err != nil {
		return nil, lookupError(err)
	}
	stock := &models.VendorStock{
		VendorID:       vendorID,
		BranchCode:     branchCode,
		IngredientName: name,
		QuantityAdded:  input.QuantityAdded,
		Price:          input.Price,
		InvoiceDate:    truncateDay(input.InvoiceDate),
	}
	if err := s.repo.AddStock(ctx, stock); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record vendor stock")
	}
	return stock, nil
}

// TotalPayment sums stock prices, keeping only rows invoiced on invoiceDate
// when it is given.
func TotalPayment(stock []models.VendorStock, invoiceDate *time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, row := range stock {
		if invoiceDate != nil && !sameDay(row.InvoiceDate, *invoiceDate) {
			continue
		}
		total = total.Add(row.Price)
	}
	return total
}

var stockExportHeader = []string{"ingredient_name", "quantity_added", "price", "invoice_date"}

// ExportStockCSV writes the vendor's deliveries as CSV.
func ExportStockCSV(w io.Writer, stock []models.VendorStock) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(stockExportHeader); err != nil {
		return err
	}
	for _, row := range stock {
		record := []string{
			row.IngredientName,
			row.QuantityAdded.String(),
			pricing.Display(row.Price),
			row.InvoiceDate.UTC().Format(invoiceDateLayout),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func sameDay(a, b time.Time) bool {
	return truncateDay(a).Equal(truncateDay(b))
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func cleanList(values []string) types.StringList {
	out := types.StringList{}
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func lookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "vendor not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor")
}
