package dues

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tableside-backend/pkg/db/models"
	"github.com/angelmondragon/tableside-backend/pkg/enums"
)

const unknownResponsible = "Unknown"

// Entry is the flat view of one history entry used by the dues and history reports.
type Entry struct {
	EntryID            uuid.UUID            `json:"entryId"`
	TableID            uuid.UUID            `json:"tableId"`
	TableNumber        string               `json:"tableNumber"`
	Responsible        *string              `json:"responsible"`
	Total              decimal.Decimal      `json:"total"`
	DiscountPercentage decimal.Decimal      `json:"discountPercentage"`
	DiscountedTotal    decimal.Decimal      `json:"discountedTotal"`
	Status             enums.PaymentStatus  `json:"status"`
	Method             *enums.PaymentMethod `json:"method"`
	Timestamp          time.Time            `json:"timestamp"`
}

// EffectiveTotal is discountedTotal, falling back to total when unset.
func (e Entry) EffectiveTotal() decimal.Decimal {
	return models.Payment{
		Total:              e.Total,
		DiscountPercentage: e.DiscountPercentage,
		DiscountedTotal:    e.DiscountedTotal,
	}.EffectiveTotal()
}

// FromHistory flattens a persisted history entry.
func FromHistory(h models.HistoryEntry) Entry {
	return Entry{
		EntryID:            h.ID,
		TableID:            h.TableID,
		TableNumber:        h.TableNumber,
		Responsible:        h.Payment.Responsible,
		Total:              h.Payment.Total,
		DiscountPercentage: h.Payment.DiscountPercentage,
		DiscountedTotal:    h.Payment.DiscountedTotal,
		Status:             h.Payment.Status,
		Method:             h.Payment.Method,
		Timestamp:          h.Payment.Timestamp,
	}
}

func fromHistoryList(rows []models.HistoryEntry) []Entry {
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromHistory(row))
	}
	return out
}

// DueGroup totals the outstanding entries of one responsible party.
type DueGroup struct {
	Responsible     string          `json:"responsible"`
	Total           decimal.Decimal `json:"total"`
	DiscountedTotal decimal.Decimal `json:"discountedTotal"`
	Count           int             `json:"count"`
	Entries         []Entry         `json:"entries"`
}

// GroupByResponsible buckets entries by trimmed responsible name, sorted by
// name. Entries without one are grouped under "Unknown".
func GroupByResponsible(entries []Entry) []DueGroup {
	index := map[string]int{}
	groups := []DueGroup{}
	for _, entry := range entries {
		name := unknownResponsible
		if entry.Responsible != nil {
			if trimmed := strings.TrimSpace(*entry.Responsible); trimmed != "" {
				name = trimmed
			}
		}
		pos, ok := index[name]
		if !ok {
			pos = len(groups)
			index[name] = pos
			groups = append(groups, DueGroup{
				Responsible:     name,
				Total:           decimal.Zero,
				DiscountedTotal: decimal.Zero,
				Entries:         []Entry{},
			})
		}
		g := &groups[pos]
		g.Total = g.Total.Add(entry.Total)
		g.DiscountedTotal = g.DiscountedTotal.Add(entry.EffectiveTotal())
		g.Count++
		g.Entries = append(g.Entries, entry)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Responsible < groups[j].Responsible
	})
	return groups
}

// FilterByDateRange keeps entries whose date falls within [from, to], both
// inclusive and compared on the UTC calendar date. A nil bound is open.
func FilterByDateRange(entries []Entry, from, to *time.Time) []Entry {
	out := []Entry{}
	for _, entry := range entries {
		if InDateRange(entry.Timestamp, from, to) {
			out = append(out, entry)
		}
	}
	return out
}

// InDateRange reports whether ts falls within [from, to] by UTC calendar date.
func InDateRange(ts time.Time, from, to *time.Time) bool {
	day := dateOf(ts)
	if from != nil && day.Before(dateOf(*from)) {
		return false
	}
	if to != nil && day.After(dateOf(*to)) {
		return false
	}
	return true
}

// MethodTotals maps each reported payment method to its summed amount.
type MethodTotals map[enums.PaymentMethod]decimal.Decimal

// AggregateTotalsByMethod sums the effective total per reported method.
// Entries with no method or a method outside the report buckets are dropped.
func AggregateTotalsByMethod(entries []Entry) MethodTotals {
	totals := MethodTotals{}
	for _, m := range enums.ReportedPaymentMethods {
		totals[m] = decimal.Zero
	}
	for _, entry := range entries {
		if entry.Method == nil {
			continue
		}
		current, ok := totals[*entry.Method]
		if !ok {
			continue
		}
		totals[*entry.Method] = current.Add(entry.EffectiveTotal())
	}
	return totals
}

// FilterBySearch matches term case-insensitively against table number,
// method, status and responsible. An empty term keeps everything.
func FilterBySearch(entries []Entry, term string) []Entry {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return entries
	}
	out := []Entry{}
	for _, entry := range entries {
		fields := []string{entry.TableNumber, string(entry.Status)}
		if entry.Method != nil {
			fields = append(fields, string(*entry.Method))
		}
		if entry.Responsible != nil {
			fields = append(fields, *entry.Responsible)
		}
		for _, field := range fields {
			if strings.Contains(strings.ToLower(field), needle) {
				out = append(out, entry)
				break
			}
		}
	}
	return out
}

// SortNewestFirst orders entries by timestamp descending, then id descending.
func SortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		}
		return entries[i].EntryID.String() > entries[j].EntryID.String()
	})
}

func dateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
