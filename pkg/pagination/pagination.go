package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Cursor is the position of the last row a client has seen. Rows are
// ordered newest first, ties broken by descending id.
type Cursor struct {
	At time.Time `json:"at"`
	ID uuid.UUID `json:"id"`
}

// NormalizeLimit clamps limit into [1, MaxLimit], defaulting to DefaultLimit.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// Before reports whether c sorts ahead of other in newest-first order.
func (c Cursor) Before(other Cursor) bool {
	if !c.At.Equal(other.At) {
		return c.At.After(other.At)
	}
	return c.ID.String() > other.ID.String()
}

// Window slices one page out of newest-first items. Items at or ahead of
// raw are skipped; the returned cursor is empty on the last page.
func Window[T any](items []T, raw string, limit int, cursorOf func(T) Cursor) ([]T, string, error) {
	after, err := Decode(raw)
	if err != nil {
		return nil, "", err
	}
	if after != nil {
		start := len(items)
		for i, item := range items {
			if after.Before(cursorOf(item)) {
				start = i
				break
			}
		}
		items = items[start:]
	}

	limit = NormalizeLimit(limit)
	if len(items) <= limit {
		return items, "", nil
	}
	items = items[:limit]
	return items, Encode(cursorOf(items[limit-1])), nil
}

// Encode renders the cursor as opaque URL-safe text.
func Encode(c Cursor) string {
	c.At = c.At.UTC()
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// Decode parses a cursor produced by Encode. Blank input means the first page.
func Decode(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	if c.At.IsZero() || c.ID == uuid.Nil {
		return nil, fmt.Errorf("invalid cursor: missing position")
	}
	return &c, nil
}
