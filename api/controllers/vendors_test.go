package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tableside-backend/internal/reports"
	"github.com/angelmondragon/tableside-backend/internal/vendors"
	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tableside-backend/pkg/errors"
)

type stubVendorService struct {
	vendor *models.Vendor
	detail *vendors.VendorDetail
	err    error

	gotInput       vendors.VendorInput
	gotStock       vendors.StockInput
	gotInvoiceDate *time.Time
}

func (s *stubVendorService) Create(ctx context.Context, branchCode string, input vendors.VendorInput) (*models.Vendor, error) {
	s.gotInput = input
	return s.vendor, s.err
}

func (s *stubVendorService) List(ctx context.Context, branchCode string) ([]models.Vendor, error) {
	if s.vendor == nil {
		return nil, s.err
	}
	return []models.Vendor{*s.vendor}, s.err
}

func (s *stubVendorService) Get(ctx context.Context, branchCode string, id uuid.UUID, invoiceDate *time.Time) (*vendors.VendorDetail, error) {
	s.gotInvoiceDate = invoiceDate
	return s.detail, s.err
}

func (s *stubVendorService) Update(ctx context.Context, branchCode string, id uuid.UUID, input vendors.VendorInput) (*models.Vendor, error) {
	s.gotInput = input
	return s.vendor, s.err
}

func (s *stubVendorService) AddStock(ctx context.Context, branchCode string, vendorID uuid.UUID, input vendors.StockInput) (*models.VendorStock, error) {
	s.gotStock = input
	if s.err != nil {
		return nil, s.err
	}
	return &models.VendorStock{ID: uuid.New(), VendorID: vendorID, IngredientName: input.IngredientName}, nil
}

func TestVendorCreateSuccess(t *testing.T) {
	svc := &stubVendorService{vendor: &models.Vendor{ID: uuid.New(), Name: "Fresh Farms"}}
	handler := VendorCreate(svc, nil)

	req := branchRequest(http.MethodPost, "/api/v1/vendors", `{"name":"Fresh Farms","categories":["Dairy"]}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.gotInput.Name == nil || *svc.gotInput.Name != "Fresh Farms" {
		t.Fatalf("unexpected input %+v", svc.gotInput)
	}
}

func TestVendorCreateRejectsUnknownField(t *testing.T) {
	handler := VendorCreate(&stubVendorService{}, nil)

	req := branchRequest(http.MethodPost, "/api/v1/vendors", `{"name":"X","rating":5}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestVendorDetailInvoiceDateFilter(t *testing.T) {
	vendorID := uuid.New()
	svc := &stubVendorService{detail: &vendors.VendorDetail{Vendor: models.Vendor{ID: vendorID}}}
	handler := VendorDetail(svc, nil)

	req := branchRequest(http.MethodGet, "/api/v1/vendors/"+vendorID.String()+"?invoiceDate=2026-03-04", "")
	req = withURLParam(req, "vendorId", vendorID.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.gotInvoiceDate == nil || svc.gotInvoiceDate.Format("2006-01-02") != "2026-03-04" {
		t.Fatalf("unexpected invoice date %v", svc.gotInvoiceDate)
	}
}

func TestVendorDetailNotFound(t *testing.T) {
	vendorID := uuid.New()
	handler := VendorDetail(&stubVendorService{err: pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")}, nil)

	req := withURLParam(branchRequest(http.MethodGet, "/api/v1/vendors/x", ""), "vendorId", vendorID.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestVendorAddStockParsesInvoiceDate(t *testing.T) {
	vendorID := uuid.New()
	svc := &stubVendorService{}
	handler := VendorAddStock(svc, nil)

	body := `{"ingredientName":"Milk","quantityAdded":"20","price":"900","invoiceDate":"2026-03-04"}`
	req := withURLParam(branchRequest(http.MethodPost, "/api/v1/vendors/x/stock", body), "vendorId", vendorID.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	want := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	if !svc.gotStock.InvoiceDate.Equal(want) {
		t.Fatalf("expected invoice date %v got %v", want, svc.gotStock.InvoiceDate)
	}
	if !svc.gotStock.QuantityAdded.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("unexpected quantity %s", svc.gotStock.QuantityAdded)
	}
}

func TestVendorAddStockBadDate(t *testing.T) {
	handler := VendorAddStock(&stubVendorService{}, nil)

	body := `{"ingredientName":"Milk","quantityAdded":"20","price":"900","invoiceDate":"04-03-2026"}`
	req := withURLParam(branchRequest(http.MethodPost, "/api/v1/vendors/x/stock", body), "vendorId", uuid.NewString())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestVendorStockExport(t *testing.T) {
	vendorID := uuid.New()
	svc := &stubVendorService{detail: &vendors.VendorDetail{Vendor: models.Vendor{
		ID: vendorID,
		Stock: []models.VendorStock{{
			IngredientName: "Milk",
			QuantityAdded:  decimal.NewFromInt(20),
			Price:          decimal.NewFromInt(900),
			InvoiceDate:    time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
		}},
	}}}
	handler := VendorStockExport(svc, nil)

	req := withURLParam(branchRequest(http.MethodGet, "/api/v1/vendors/x/stock/export", ""), "vendorId", vendorID.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "ingredient_name,quantity_added,price,invoice_date") || !strings.Contains(body, "Milk") {
		t.Fatalf("unexpected csv %q", body)
	}
}

type stubReportService struct {
	report *reports.OrdersReport
	err    error

	gotFilter reports.Filter
}

func (s *stubReportService) OrdersReport(ctx context.Context, branchCode string, filter reports.Filter) (*reports.OrdersReport, error) {
	s.gotFilter = filter
	return s.report, s.err
}

func (s *stubReportService) ExportOrders(ctx context.Context, branchCode string, filter reports.Filter, w io.Writer) error {
	s.gotFilter = filter
	if s.err != nil {
		return s.err
	}
	_, err := io.WriteString(w, "table_number,order_date,quantity,item_name,unit_price,line_total\n")
	return err
}

func TestOrdersReportSuccess(t *testing.T) {
	handler := OrdersReport(&stubReportService{report: &reports.OrdersReport{TotalOrders: 3}}, nil)

	req := branchRequest(http.MethodGet, "/api/v1/reports/orders", "")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"totalOrders":3`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestOrdersExportFailureIsJSON(t *testing.T) {
	handler := OrdersExport(&stubReportService{err: errors.New("db down")}, nil)

	req := branchRequest(http.MethodGet, "/api/v1/reports/orders/export", "")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected json error, got %q", ct)
	}
}

func TestOrdersReportParsesFilters(t *testing.T) {
	svc := &stubReportService{report: &reports.OrdersReport{}}
	handler := OrdersReport(svc, nil)

	req := branchRequest(http.MethodGet, "/api/v1/reports/orders?from=2026-03-01&to=2026-03-03&search=%20Chai%20", "")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	f := svc.gotFilter
	if f.From == nil || f.From.Format("2006-01-02") != "2026-03-01" || f.To == nil || f.To.Format("2006-01-02") != "2026-03-03" {
		t.Fatalf("unexpected date bounds %+v", f)
	}
	if f.Search != "Chai" {
		t.Fatalf("expected sanitized search, got %q", f.Search)
	}
}

func TestOrdersExportRejectsBadDate(t *testing.T) {
	svc := &stubReportService{}
	handler := OrdersExport(svc, nil)

	req := branchRequest(http.MethodGet, "/api/v1/reports/orders/export?from=03/01/2026", "")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}
