package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tableside-backend/api/responses"
	"github.com/angelmondragon/tableside-backend/api/validators"
	"github.com/angelmondragon/tableside-backend/internal/tables"
	pkgerrors "github.com/angelmondragon/tableside-backend/pkg/errors"
	"github.com/angelmondragon/tableside-backend/pkg/logger"
	"github.com/angelmondragon/tableside-backend/pkg/types"
)

type createTableRequest struct {
	TableNumber string `json:"tableNumber" validate:"required,max=32"`
}

// TableCreate opens a new table in the current branch.
func TableCreate(svc tables.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tables service unavailable"))
			return
		}
		branch, err := currentBranch(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createTableRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		table, err := svc.Create(r.Context(), branch, validators.SanitizeString(payload.TableNumber, 32))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, table)
	}
}

// TableList returns the floor with each table's running total.
func TableList(svc tables.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tables service unavailable"))
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

func TableDetail(svc tables.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tables service unavailable"))
			return
		}
		branch, err := currentBranch(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tableID, err := validators.ParseUUIDParam(r, "tableId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		table, err := svc.Get(r.Context(), branch, tableID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, table)
	}
}

type ingredientRequest struct {
	InventoryItemID     *string         `json:"inventoryItemId,omitempty" validate:"omitempty,uuid"`
	IngredientName      string          `json:"ingredientName" validate:"required"`
	QuantityUsedPerUnit decimal.Decimal `json:"quantityUsedPerUnit" validate:"gte=0"`
}

type orderLineRequest struct {
	ProductID   *string             `json:"productId,omitempty" validate:"omitempty,uuid"`
	ItemName    string              `json:"itemName" validate:"required_without=ProductID,max=128"`
	UnitPrice   decimal.Decimal     `json:"unitPrice" validate:"gte=0"`
	Quantity    int                 `json:"quantity" validate:"gt=0"`
	Ingredients []ingredientRequest `json:"ingredients" validate:"dive"`
}

type addOrdersRequest struct {
	Lines []orderLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (r addOrdersRequest) toLines() types.OrderLines {
	lines := make(types.OrderLines, 0, len(r.Lines))
	for _, l := range r.Lines {
		line := types.OrderLine{
			ItemName:    validators.SanitizeString(l.ItemName, 128),
			UnitPrice:   l.UnitPrice,
			Quantity:    l.Quantity,
			Ingredients: make([]types.IngredientUse, 0, len(l.Ingredients)),
		}
		if l.ProductID != nil {
			if id, err := parseOptionalUUID(*l.ProductID); err == nil {
				line.ProductID = id
			}
		}
		for _, ing := range l.Ingredients {
			use := types.IngredientUse{
				IngredientName:      validators.SanitizeString(ing.IngredientName, 128),
				QuantityUsedPerUnit: ing.QuantityUsedPerUnit,
			}
			if ing.InventoryItemID != nil {
				if id, err := parseOptionalUUID(*ing.InventoryItemID); err == nil {
					use.InventoryItemID = id
				}
			}
			line.Ingredients = append(line.Ingredients, use)
		}
		lines = append(lines, line)
	}
	return lines
}

// TableAddOrders appends lines to a table's running order.
func TableAddOrders(svc tables.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tables service unavailable"))
			return
		}
		branch, err := currentBranch(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tableID, err := validators.ParseUUIDParam(r, "tableId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addOrdersRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		table, err := svc.AddOrderLines(r.Context(), branch, tableID, payload.toLines())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, table)
	}
}
