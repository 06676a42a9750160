package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tableside-backend/api/responses"
	"github.com/angelmondragon/tableside-backend/api/validators"
	"github.com/angelmondragon/tableside-backend/internal/products"
	pkgerrors "github.com/angelmondragon/tableside-backend/pkg/errors"
	"github.com/angelmondragon/tableside-backend/pkg/logger"
	"github.com/angelmondragon/tableside-backend/pkg/types"
)

type productIngredientRequest struct {
	InventoryItemID     *string         `json:"inventoryItemId,omitempty" validate:"omitempty,uuid"`
	IngredientName      string          `json:"ingredientName" validate:"required_without=InventoryItemID,max=128"`
	QuantityUsedPerUnit decimal.Decimal `json:"quantityUsedPerUnit"`
}

type createProductRequest struct {
	Name        string                     `json:"name" validate:"required,max=128"`
	Price       decimal.Decimal            `json:"price"`
	Subcategory string                     `json:"subcategory" validate:"max=64"`
	Ingredients []productIngredientRequest `json:"ingredients" validate:"dive"`
}

func (p createProductRequest) toInput() products.ProductInput {
	input := products.ProductInput{
		Name:        validators.SanitizeString(p.Name, 128),
		Price:       p.Price,
		Subcategory: validators.SanitizeString(p.Subcategory, 64),
		Ingredients: make([]types.IngredientUse, 0, len(p.Ingredients)),
	}
	for _, ing := range p.Ingredients {
		use := types.IngredientUse{
			IngredientName:      validators.SanitizeString(ing.IngredientName, 128),
			QuantityUsedPerUnit: ing.QuantityUsedPerUnit,
		}
		if ing.InventoryItemID != nil {
			if id, err := parseOptionalUUID(*ing.InventoryItemID); err == nil {
				use.InventoryItemID = id
			}
		}
		input.Ingredients = append(input.Ingredients, use)
	}
	return input
}

// ProductCreate adds an item to the branch menu.
func ProductCreate(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "products service unavailable"))
			return
		}
		branch, err := currentBranch(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Create(r.Context(), branch, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

// ProductList returns the branch menu, optionally narrowed by subcategory or a
// name search.
func ProductList(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "products service unavailable"))
			return
		}
		branch, err := currentBranch(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query := r.URL.Query()
		list, err := svc.List(r.Context(), branch, products.ListFilter{
			Subcategory: validators.SanitizeString(query.Get("subcategory"), 64),
			Search:      validators.SanitizeString(query.Get("search"), 128),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
