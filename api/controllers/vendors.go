package controllers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tableside-backend/api/responses"
	"github.com/angelmondragon/tableside-backend/api/validators"
	"github.com/angelmondragon/tableside-backend/internal/vendors"
	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tableside-backend/pkg/errors"
	"github.com/angelmondragon/tableside-backend/pkg/logger"
)

// VendorService is the vendor directory surface used by the handlers.
type VendorService interface {
	Create(ctx context.Context, branchCode string, input vendors.VendorInput) (*models.Vendor, error)
	List(ctx context.Context, branchCode string) ([]models.Vendor, error)
	Get(ctx context.Context, branchCode string, id uuid.UUID, invoiceDate *time.Time) (*vendors.VendorDetail, error)
	Update(ctx context.Context, branchCode string, id uuid.UUID, input vendors.VendorInput) (*models.Vendor, error)
	AddStock(ctx context.Context, branchCode string, vendorID uuid.UUID, input vendors.StockInput) (*models.VendorStock, error)
}

type vendorRequest struct {
	Name          *string  `json:"name,omitempty" validate:"omitempty,min=1,max=128"`
	ContactNo     *string  `json:"contactNo,omitempty" validate:"omitempty,max=32"`
	Address       *string  `json:"address,omitempty" validate:"omitempty,max=256"`
	Categories    []string `json:"categories,omitempty"`
	SuppliedItems []string `json:"suppliedItems,omitempty"`
}

func (p vendorRequest) toInput() vendors.VendorInput {
	return vendors.VendorInput{
		Name:          p.Name,
		ContactNo:     p.ContactNo,
		Address:       p.Address,
		Categories:    p.Categories,
		SuppliedItems: p.SuppliedItems,
	}
}

type stockRequest struct {
	IngredientName string          `json:"ingredientName" validate:"required,max=128"`
	QuantityAdded  decimal.Decimal `json:"quantityAdded" validate:"gt=0"`
	Price          decimal.Decimal `json:"price" validate:"gte=0"`
	InvoiceDate    string          `json:"invoiceDate" validate:"required,datetime=2006-01-02"`
}

func VendorCreate(svc VendorService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vendor service unavailable"))
			return
		}
		branch, err := currentBranch(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload vendorRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vendor, err := svc.Create(r.Context(), branch, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, vendor)
	}
}

func VendorList(svc VendorService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vendor service unavailable"))
			return
		}
		branch, err := currentBranch(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.List(r.Context(), branch)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// VendorDetail returns the vendor with deliveries; ?invoiceDate=YYYY-MM-DD
// narrows the payment total to one day.
func VendorDetail(svc VendorService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vendor service unavailable"))
			return
		}
		branch, err := currentBranch(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vendorID, err := validators.ParseUUIDParam(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoiceDate, err := validators.ParseQueryDate(r, "invoiceDate")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.Get(r.Context(), branch, vendorID, invoiceDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

func VendorUpdate(svc VendorService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vendor service unavailable"))
			return
		}
		branch, err := currentBranch(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vendorID, err := validators.ParseUUIDParam(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload vendorRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vendor, err := svc.Update(r.Context(), branch, vendorID, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, vendor)
	}
}

// VendorAddStock records an invoiced delivery from the vendor.
func VendorAddStock(svc VendorService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vendor service unavailable"))
			return
		}
		branch, err := currentBranch(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vendorID, err := validators.ParseUUIDParam(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload stockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoiceDate, err := time.ParseInLocation("2006-01-02", payload.InvoiceDate, time.UTC)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invoiceDate must be YYYY-MM-DD"))
			return
		}
		stock, err := svc.AddStock(r.Context(), branch, vendorID, vendors.StockInput{
			IngredientName: validators.SanitizeString(payload.IngredientName, 128),
			QuantityAdded:  payload.QuantityAdded,
			Price:          payload.Price,
			InvoiceDate:    invoiceDate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, stock)
	}
}

func VendorStockExport(svc VendorService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vendor service unavailable"))
			return
		}
		branch, err := currentBranch(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vendorID, err := validators.ParseUUIDParam(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.Get(r.Context(), branch, vendorID, nil)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filename := fmt.Sprintf("vendor-%s-stock.csv", vendorID)
		responses.WriteCSV(r.Context(), logg, w, filename, func(buf *bytes.Buffer) error {
			return vendors.ExportStockCSV(buf, detail.Stock)
		})
	}
}
