package inventory

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tableside-backend/pkg/types"
)

// Consumption is the total use of one ingredient across a set of order lines.
type Consumption struct {
	Key             string          `json:"key"`
	InventoryItemID *uuid.UUID      `json:"inventoryItemId,omitempty"`
	IngredientName  string          `json:"ingredientName"`
	TotalUsed       decimal.Decimal `json:"totalUsed"`
}

// AggregateConsumption sums quantityUsedPerUnit × quantity per distinct
// ingredient, keyed by inventory item id when the line has one and by exact
// name otherwise. Results keep first-seen order.
func AggregateConsumption(lines types.OrderLines) []Consumption {
	out := []Consumption{}
	index := map[string]int{}
	for _, line := range lines {
		qty := decimal.NewFromInt(int64(line.Quantity))
		for _, ing := range line.Ingredients {
			key := consumptionKey(ing)
			used := ing.QuantityUsedPerUnit.Mul(qty)
			if pos, ok := index[key]; ok {
				out[pos].TotalUsed = out[pos].TotalUsed.Add(used)
				continue
			}
			c := Consumption{
				Key:            key,
				IngredientName: ing.IngredientName,
				TotalUsed:      used,
			}
			if ing.InventoryItemID != nil && *ing.InventoryItemID != uuid.Nil {
				id := *ing.InventoryItemID
				c.InventoryItemID = &id
			}
			index[key] = len(out)
			out = append(out, c)
		}
	}
	return out
}

func consumptionKey(ing types.IngredientUse) string {
	if ing.InventoryItemID != nil && *ing.InventoryItemID != uuid.Nil {
		return "id:" + ing.InventoryItemID.String()
	}
	return "name:" + ing.IngredientName
}
