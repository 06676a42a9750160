package controllers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/tableside-backend/api/responses"
	"github.com/angelmondragon/tableside-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/tableside-backend/pkg/errors"
	"github.com/angelmondragon/tableside-backend/pkg/logger"
)

const (
	readyTimeout = 2 * time.Second
	envHeader    = "X-Tableside-Env"
)

type pinger interface {
	Ping(context.Context) error
}

// HealthLive answers as long as the process serves HTTP.
func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings postgres and redis in parallel and reports 503 with a
// per-dependency breakdown when either fails.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP pinger) http.HandlerFunc {
	deps := map[string]pinger{"db": dbP, "redis": redisP}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		var mu sync.Mutex
		checks := make(map[string]string, len(deps))
		var g errgroup.Group
		for name, p := range deps {
			g.Go(func() error {
				state := "ok"
				switch err := ping(ctx, p); {
				case p == nil:
					state = "missing"
				case err != nil:
					state = "unavailable"
					if logg != nil {
						logg.Warn(logg.WithFields(ctx, map[string]any{"dependency": name, "error": err.Error()}), "readiness ping failed")
					}
				}
				mu.Lock()
				checks[name] = state
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		for _, state := range checks {
			if state != "ok" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies not ready").
					WithDetails(map[string]any{"checks": checks}))
				return
			}
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}

func ping(ctx context.Context, p pinger) error {
	if p == nil {
		return nil
	}
	return p.Ping(ctx)
}
