package validators

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/tableside-backend/pkg/errors"
)

const dateLayout = "2006-01-02"

func query(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

func invalidParam(field, message string, extra ...any) error {
	details := map[string]any{"field": field}
	for i := 0; i+1 < len(extra); i += 2 {
		if k, ok := extra[i].(string); ok {
			details[k] = extra[i+1]
		}
	}
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(details)
}

// ParseQueryInt reads an optional integer bounded to [lo, hi]; absent means
// fallback.
func ParseQueryInt(r *http.Request, key string, fallback, lo, hi int) (int, error) {
	raw := query(r, key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	switch {
	case err != nil:
		return 0, invalidParam(key, "query parameter must be numeric")
	case n < lo || n > hi:
		return 0, invalidParam(key, "query parameter out of range", "min", lo, "max", hi)
	}
	return n, nil
}

// ParseQueryDate reads an optional YYYY-MM-DD parameter as a UTC date.
func ParseQueryDate(r *http.Request, key string) (*time.Time, error) {
	raw := query(r, key)
	if raw == "" {
		return nil, nil
	}
	day, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return nil, invalidParam(key, "date must be YYYY-MM-DD")
	}
	return &day, nil
}

// ParseUUIDParam reads a chi URL parameter as a UUID.
func ParseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, name)))
	if err != nil {
		return uuid.Nil, invalidParam(name, "invalid identifier")
	}
	return id, nil
}
