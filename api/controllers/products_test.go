package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tableside-backend/internal/products"
	"github.com/angelmondragon/tableside-backend/pkg/db/models"
)

type stubProductsService struct {
	product *models.Product
	list    []models.Product
	err     error

	gotBranch string
	gotInput  products.ProductInput
	gotFilter products.ListFilter
}

func (s *stubProductsService) Create(ctx context.Context, branchCode string, input products.ProductInput) (*models.Product, error) {
	s.gotBranch = branchCode
	s.gotInput = input
	return s.product, s.err
}

func (s *stubProductsService) List(ctx context.Context, branchCode string, filter products.ListFilter) ([]models.Product, error) {
	s.gotBranch = branchCode
	s.gotFilter = filter
	return s.list, s.err
}

func (s *stubProductsService) Get(ctx context.Context, branchCode string, id uuid.UUID) (*models.Product, error) {
	return s.product, s.err
}

func TestProductCreateMapsRecipe(t *testing.T) {
	itemID := uuid.New()
	svc := &stubProductsService{product: &models.Product{ID: uuid.New(), Name: "Masala Chai"}}
	handler := ProductCreate(svc, nil)

	body := `{"name":" Masala  Chai ","price":"40","subcategory":"Tea","ingredients":[{"inventoryItemId":"` + itemID.String() + `","quantityUsedPerUnit":"80"},{"ingredientName":"Sugar","quantityUsedPerUnit":"10"}]}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, branchRequest(http.MethodPost, "/api/v1/products", body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.gotBranch != testBranch || svc.gotInput.Name != "Masala Chai" {
		t.Fatalf("unexpected input %+v", svc.gotInput)
	}
	if !svc.gotInput.Price.Equal(decimal.NewFromInt(40)) || len(svc.gotInput.Ingredients) != 2 {
		t.Fatalf("unexpected price or recipe %+v", svc.gotInput)
	}
	first := svc.gotInput.Ingredients[0]
	if first.InventoryItemID == nil || *first.InventoryItemID != itemID {
		t.Fatalf("expected ingredient linked to %s, got %+v", itemID, first)
	}
}

func TestProductCreateRequiresName(t *testing.T) {
	svc := &stubProductsService{}
	handler := ProductCreate(svc, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, branchRequest(http.MethodPost, "/api/v1/products", `{"price":"10"}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if svc.gotBranch != "" {
		t.Fatal("service should not be called on invalid input")
	}
}

func TestProductListPassesFilters(t *testing.T) {
	svc := &stubProductsService{list: []models.Product{{ID: uuid.New(), Name: "Masala Chai", Price: decimal.NewFromInt(40)}}}
	handler := ProductList(svc, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, branchRequest(http.MethodGet, "/api/v1/products?subcategory=Tea&search=chai", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.gotFilter.Subcategory != "Tea" || svc.gotFilter.Search != "chai" {
		t.Fatalf("unexpected filter %+v", svc.gotFilter)
	}
	var body struct {
		Data []models.Product `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) != 1 || body.Data[0].Name != "Masala Chai" {
		t.Fatalf("unexpected products %+v", body.Data)
	}
}
