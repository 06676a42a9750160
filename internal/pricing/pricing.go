// Package pricing holds the pure bill arithmetic shared by settlement, the bill
// preview and order entry.
package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/tableside-backend/pkg/errors"
	"github.com/angelmondragon/tableside-backend/pkg/types"
)

var hundred = decimal.NewFromInt(100)

// Quote is the priced view of a set of order lines.
type Quote struct {
	Subtotal           decimal.Decimal `json:"subtotal"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	DiscountedTotal    decimal.Decimal `json:"discountedTotal"`
}

// ComputeSubtotal sums unitPrice × quantity over lines. Values are not validated.
func ComputeSubtotal(lines types.OrderLines) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.LineTotal())
	}
	return total
}

// ApplyDiscount returns subtotal − subtotal × pct/100. pct is not clamped.
func ApplyDiscount(subtotal, pct decimal.Decimal) decimal.Decimal {
	return subtotal.Sub(subtotal.Mul(pct).Div(hundred))
}

func NewQuote(lines types.OrderLines, pct decimal.Decimal) Quote {
	subtotal := ComputeSubtotal(lines)
	return Quote{
		Subtotal:           subtotal,
		DiscountPercentage: pct,
		DiscountedTotal:    ApplyDiscount(subtotal, pct),
	}
}

// Display renders an amount with two decimal places.
func Display(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ValidateBounds rejects order lines and discounts that would produce a
// meaningless bill. It reports every violation at once.
func ValidateBounds(lines types.OrderLines, pct decimal.Decimal) error {
	problems := []string{}
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		problems = append(problems, fmt.Sprintf("discountPercentage %s must be between 0 and 100", pct.String()))
	}
	for i, line := range lines {
		if strings.TrimSpace(line.ItemName) == "" {
			problems = append(problems, fmt.Sprintf("orders[%d].itemName is required", i))
		}
		if line.UnitPrice.IsNegative() {
			problems = append(problems, fmt.Sprintf("orders[%d].unitPrice must not be negative", i))
		}
		if line.Quantity < 1 {
			problems = append(problems, fmt.Sprintf("orders[%d].quantity must be at least 1", i))
		}
		for j, ing := range line.Ingredients {
			if ing.QuantityUsedPerUnit.IsNegative() {
				problems = append(problems, fmt.Sprintf("orders[%d].ingredients[%d].quantityUsedPerUnit must not be negative", i, j))
			}
			if ing.InventoryItemID == nil && strings.TrimSpace(ing.IngredientName) == "" {
				problems = append(problems, fmt.Sprintf("orders[%d].ingredients[%d] needs inventoryItemId or ingredientName", i, j))
			}
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid order lines").WithDetails(problems)
}
