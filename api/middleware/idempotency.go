package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/angelmondragon/tableside-backend/api/responses"
	pkgerrors "github.com/angelmondragon/tableside-backend/pkg/errors"
	"github.com/angelmondragon/tableside-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/tableside-backend/pkg/redis"
)

const (
	// IdempotencyHeader carries the client-chosen key. Settle handlers also
	// derive the settlement attempt id from it.
	IdempotencyHeader = "Idempotency-Key"
	// ReplayedHeader marks a response served from a stored record.
	ReplayedHeader = "Idempotent-Replayed"

	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	pendingIdempotencyTTL  = 2 * time.Minute
)

// idempotentRoute pairs a POST route with how long its response is kept.
// Segments written as "*" match any single path segment.
type idempotentRoute struct {
	segments []string
	ttl      time.Duration
}

var idempotentRoutes = []idempotentRoute{
	{segments: []string{"api", "v1", "inventory"}, ttl: defaultIdempotencyTTL},
	{segments: []string{"api", "v1", "vendors", "*", "stock"}, ttl: defaultIdempotencyTTL},
	{segments: []string{"api", "v1", "tables", "*", "settle"}, ttl: criticalIdempotencyTTL},
	{segments: []string{"api", "v1", "dues", "*", "settle"}, ttl: criticalIdempotencyTTL},
}

type idempotencyRecord struct {
	Pending     bool   `json:"pending,omitempty"`
	Status      int    `json:"status,omitempty"`
	Body        string `json:"body,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	RequestHash string `json:"request_hash"`
}

// Idempotency replays the stored response for a repeated key on money-moving
// routes. The key is reserved while the first request runs and released when
// it ends in a server error, so the client can retry.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := idempotencyTTL(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyHeader+" header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := hashBody(body)
			key := store.IdempotencyKey(requestScope(r), clientKey)
			reserved, err := reserve(ctx, store, key, hash)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if !reserved {
				replay(w, r, store, key, hash, logg)
				return
			}

			var captured bytes.Buffer
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&captured)
			next.ServeHTTP(ww, r)

			commit(context.WithoutCancel(ctx), store, logg, key, ttl, idempotencyRecord{
				Status:      statusOrOK(ww.Status()),
				Body:        base64.StdEncoding.EncodeToString(captured.Bytes()),
				ContentType: ww.Header().Get("Content-Type"),
				RequestHash: hash,
			})
		})
	}
}

func reserve(ctx context.Context, store pkgredis.IdempotencyStore, key, hash string) (bool, error) {
	pending, err := json.Marshal(idempotencyRecord{Pending: true, RequestHash: hash})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode idempotency record")
	}
	ok, err := store.SetNX(ctx, key, string(pending), pendingIdempotencyTTL)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key")
	}
	return ok, nil
}

// commit stores a finished response, or drops the reservation after a 5xx.
func commit(ctx context.Context, store pkgredis.IdempotencyStore, logg *logger.Logger, key string, ttl time.Duration, record idempotencyRecord) {
	if record.Status >= http.StatusInternalServerError {
		if err := store.Del(ctx, key); err != nil {
			logError(ctx, logg, "release idempotency key", err)
		}
		return
	}
	payload, err := json.Marshal(record)
	if err != nil {
		logError(ctx, logg, "encode idempotency record", err)
		return
	}
	if err := store.Set(ctx, key, string(payload), ttl); err != nil {
		logError(ctx, logg, "persist idempotency record", err)
	}
}

func replay(w http.ResponseWriter, r *http.Request, store pkgredis.IdempotencyStore, key, hash string, logg *logger.Logger) {
	ctx := r.Context()
	stored, found, err := store.Load(ctx, key)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	}
	if !found {
		// The reservation expired or was released between SETNX and GET.
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is being retried; try again"))
		return
	}
	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case record.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case record.Pending:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is still in progress"))
	default:
		body, err := base64.StdEncoding.DecodeString(record.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode stored response"))
			return
		}
		if record.ContentType != "" {
			w.Header().Set("Content-Type", record.ContentType)
		}
		w.Header().Set(ReplayedHeader, "true")
		w.WriteHeader(record.Status)
		_, _ = w.Write(body)
	}
}

// requestScope keys records per branch so two devices retrying the same
// settle share one record.
func requestScope(r *http.Request) string {
	return strings.Join([]string{BranchCodeFromContext(r.Context()), r.Method, r.URL.Path}, "|")
}

// idempotencyTTL checks the chi route pattern first and falls back to the
// raw path, since middleware mounted on a parent router only sees a wildcard.
func idempotencyTTL(r *http.Request) (time.Duration, bool) {
	if r.Method != http.MethodPost {
		return 0, false
	}
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if ttl, ok := routeTTL(r.Method, rc.RoutePattern()); ok {
			return ttl, true
		}
	}
	return routeTTL(r.Method, r.URL.Path)
}

func routeTTL(method, path string) (time.Duration, bool) {
	if method != http.MethodPost || path == "" {
		return 0, false
	}
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for _, route := range idempotentRoutes {
		if route.matches(segments) {
			return route.ttl, true
		}
	}
	return 0, false
}

func (r idempotentRoute) matches(segments []string) bool {
	if len(segments) != len(r.segments) {
		return false
	}
	for i, want := range r.segments {
		if want != "*" && want != segments[i] {
			return false
		}
	}
	return true
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func statusOrOK(status int) int {
	if status == 0 {
		return http.StatusOK
	}
	return status
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
