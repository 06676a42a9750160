package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IngredientUse is the per-unit consumption of one ingredient by an order line.
// InventoryItemID is the stable reference; IngredientName is kept for display
// and as the lookup fallback for lines placed without an id.
type IngredientUse struct {
	InventoryItemID     *uuid.UUID      `json:"inventoryItemId,omitempty"`
	IngredientName      string          `json:"ingredientName"`
	QuantityUsedPerUnit decimal.Decimal `json:"quantityUsedPerUnit"`
}

// OrderLine is one item on a table's running order.
// ProductID is set when the line was rung up from the branch menu.
type OrderLine struct {
	ProductID   *uuid.UUID      `json:"productId,omitempty"`
	ItemName    string          `json:"itemName"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
	Ingredients []IngredientUse `json:"ingredients"`
}

// LineTotal is unitPrice × quantity.
func (l OrderLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// OrderLines is stored as a JSON document column.
type OrderLines []OrderLine

// Clone returns a deep copy so snapshots never share slices with the source.
func (o OrderLines) Clone() OrderLines {
	if o == nil {
		return OrderLines{}
	}
	out := make(OrderLines, len(o))
	for i, line := range o {
		out[i] = line
		if line.ProductID != nil {
			id := *line.ProductID
			out[i].ProductID = &id
		}
		if line.Ingredients != nil {
			out[i].Ingredients = IngredientUses(line.Ingredients).Clone()
		}
	}
	return out
}

// IngredientUses is a product recipe stored as a JSON document column.
type IngredientUses []IngredientUse

// Clone returns a deep copy.
func (u IngredientUses) Clone() []IngredientUse {
	out := make([]IngredientUse, len(u))
	for i, ing := range u {
		out[i] = ing
		if ing.InventoryItemID != nil {
			id := *ing.InventoryItemID
			out[i].InventoryItemID = &id
		}
	}
	return out
}

// Value implements driver.Valuer.
func (u IngredientUses) Value() (driver.Value, error) {
	if u == nil {
		u = IngredientUses{}
	}
	b, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("ingredient uses: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (u *IngredientUses) Scan(value interface{}) error {
	raw, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("ingredient uses: %w", err)
	}
	uses := IngredientUses{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &uses); err != nil {
			return fmt.Errorf("ingredient uses: %w", err)
		}
	}
	if uses == nil {
		uses = IngredientUses{}
	}
	*u = uses
	return nil
}

// Value implements driver.Valuer.
func (o OrderLines) Value() (driver.Value, error) {
	if o == nil {
		o = OrderLines{}
	}
	b, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("order lines: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (o *OrderLines) Scan(value interface{}) error {
	raw, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("order lines: %w", err)
	}
	if len(raw) == 0 {
		*o = OrderLines{}
		return nil
	}
	var lines OrderLines
	if err := json.Unmarshal(raw, &lines); err != nil {
		return fmt.Errorf("order lines: %w", err)
	}
	if lines == nil {
		lines = OrderLines{}
	}
	*o = lines
	return nil
}

func jsonBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported scan type %T", value)
	}
}
