// Package reports aggregates sold items across running orders and settled history.
package reports

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tableside-backend/internal/dues"
	"github.com/angelmondragon/tableside-backend/internal/pricing"
	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	"github.com/angelmondragon/tableside-backend/pkg/types"
)

const topItemsLimit = 5

// ItemCount is the quantity sold of one menu item.
type ItemCount struct {
	ItemName string `json:"itemName"`
	Quantity int    `json:"quantity"`
}

// OrdersReport summarises every order line of a branch.
type OrdersReport struct {
	TotalOrders int             `json:"totalOrders"`
	GrandTotal  decimal.Decimal `json:"grandTotal"`
	TopItems    []ItemCount     `json:"topItems"`
}

// Filter narrows a report. From and To bound settled history on its UTC
// calendar date, both inclusive. Running orders carry no date and are only
// narrowed by Search, which matches item names without regard to case.
type Filter struct {
	From   *time.Time
	To     *time.Time
	Search string
}

// Apply returns copies of tables holding only the lines the filter keeps.
// Tables are kept even when every line is dropped.
func (f Filter) Apply(tables []models.Table) []models.Table {
	needle := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]models.Table, 0, len(tables))
	for _, table := range tables {
		kept := table
		kept.Orders = matchLines(table.Orders, needle)
		kept.OrderHistory = make([]models.HistoryEntry, 0, len(table.OrderHistory))
		for _, entry := range table.OrderHistory {
			if !dues.InDateRange(entry.Payment.Timestamp, f.From, f.To) {
				continue
			}
			entry.Orders = matchLines(entry.Orders, needle)
			kept.OrderHistory = append(kept.OrderHistory, entry)
		}
		out = append(out, kept)
	}
	return out
}

func matchLines(lines types.OrderLines, needle string) types.OrderLines {
	if needle == "" {
		return lines
	}
	out := types.OrderLines{}
	for _, line := range lines {
		if strings.Contains(strings.ToLower(line.ItemName), needle) {
			out = append(out, line)
		}
	}
	return out
}

// BuildOrdersReport counts each order line once, sums line totals and ranks
// items by quantity. Ties are broken by name.
func BuildOrdersReport(running []types.OrderLines, history []models.HistoryEntry) OrdersReport {
	report := OrdersReport{GrandTotal: decimal.Zero, TopItems: []ItemCount{}}
	counts := map[string]int{}
	add := func(lines types.OrderLines) {
		for _, line := range lines {
			report.TotalOrders++
			report.GrandTotal = report.GrandTotal.Add(line.LineTotal())
			counts[line.ItemName] += line.Quantity
		}
	}
	for _, lines := range running {
		add(lines)
	}
	for _, entry := range history {
		add(entry.Orders)
	}

	for name, qty := range counts {
		report.TopItems = append(report.TopItems, ItemCount{ItemName: name, Quantity: qty})
	}
	sort.Slice(report.TopItems, func(i, j int) bool {
		if report.TopItems[i].Quantity != report.TopItems[j].Quantity {
			return report.TopItems[i].Quantity > report.TopItems[j].Quantity
		}
		return report.TopItems[i].ItemName < report.TopItems[j].ItemName
	})
	if len(report.TopItems) > topItemsLimit {
		report.TopItems = report.TopItems[:topItemsLimit]
	}
	return report
}

var ordersExportHeader = []string{"table_number", "order_date", "quantity", "item_name", "unit_price", "line_total"}

// ExportOrdersCSV writes one row per order line. Running orders have no date.
func ExportOrdersCSV(w io.Writer, tables []models.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ordersExportHeader); err != nil {
		return err
	}
	write := func(tableNumber, date string, lines types.OrderLines) error {
		for _, line := range lines {
			record := []string{
				tableNumber,
				date,
				strconv.Itoa(line.Quantity),
				line.ItemName,
				pricing.Display(line.UnitPrice),
				pricing.Display(line.LineTotal()),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		return nil
	}
	for _, table := range tables {
		if err := write(table.TableNumber, "-", table.Orders); err != nil {
			return err
		}
		for _, entry := range table.OrderHistory {
			if err := write(table.TableNumber, entry.Payment.Timestamp.UTC().Format(time.RFC3339), entry.Orders); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
