package dues

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/angelmondragon/tableside-backend/internal/pricing"
)

var exportHeader = []string{
	"entry_id",
	"table_number",
	"timestamp",
	"status",
	"method",
	"responsible",
	"total",
	"discount_percentage",
	"discounted_total",
}

// ExportHistoryCSV writes entries as CSV rows with amounts at two decimals.
func ExportHistoryCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, entry := range entries {
		method := ""
		if entry.Method != nil {
			method = string(*entry.Method)
		}
		responsible := ""
		if entry.Responsible != nil {
			responsible = *entry.Responsible
		}
		record := []string{
			entry.EntryID.String(),
			entry.TableNumber,
			entry.Timestamp.UTC().Format(time.RFC3339),
			string(entry.Status),
			method,
			responsible,
			pricing.Display(entry.Total),
			pricing.Display(entry.DiscountPercentage),
			pricing.Display(entry.EffectiveTotal()),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
