package pricing

import (
	"strings"

	"github.com/angelmondragon/tableside-backend/pkg/enums"
	"github.com/angelmondragon/tableside-backend/pkg/types"
)

// BillLine is one printed row of a bill.
type BillLine struct {
	Quantity  int    `json:"quantity"`
	Name      string `json:"name"`
	UnitPrice string `json:"unitPrice"`
	LineTotal string `json:"lineTotal"`
}

// Bill is the display-rounded preview handed to the receipt printer.
type Bill struct {
	TableNumber        string               `json:"tableNumber"`
	Lines              []BillLine           `json:"lines"`
	Total              string               `json:"total"`
	DiscountPercentage string               `json:"discountPercentage"`
	FinalPrice         string               `json:"finalPrice"`
	Method             *enums.PaymentMethod `json:"method,omitempty"`
	Status             enums.PaymentStatus  `json:"status"`
	Responsible        *string              `json:"responsible,omitempty"`
}

// BuildBill lays out lines and quote for printing. Responsible is only carried
// for Due bills.
func BuildBill(tableNumber string, lines types.OrderLines, quote Quote, method *enums.PaymentMethod, status enums.PaymentStatus, responsible string) Bill {
	bill := Bill{
		TableNumber:        tableNumber,
		Lines:              make([]BillLine, 0, len(lines)),
		Total:              Display(quote.Subtotal),
		DiscountPercentage: Display(quote.DiscountPercentage),
		FinalPrice:         Display(quote.DiscountedTotal),
		Method:             method,
		Status:             status,
	}
	for _, line := range lines {
		bill.Lines = append(bill.Lines, BillLine{
			Quantity:  line.Quantity,
			Name:      line.ItemName,
			UnitPrice: Display(line.UnitPrice),
			LineTotal: Display(line.LineTotal()),
		})
	}
	if status == enums.PaymentStatusDue {
		if trimmed := strings.TrimSpace(responsible); trimmed != "" {
			bill.Responsible = &trimmed
		}
	}
	return bill
}
