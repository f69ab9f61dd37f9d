package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/terravest/terravest-backend/api/responses"
	"github.com/terravest/terravest-backend/pkg/config"
	pkgerrors "github.com/terravest/terravest-backend/pkg/errors"
	"github.com/terravest/terravest-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{
			"status": "live",
			"env":    cfg.App.Env,
		})
	}
}

// HealthReady verifies the datastore and cache before reporting ready.
func HealthReady(cfg *config.Config, logg *logger.Logger, database Pinger, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		healthy := true
		probe := func(name string, p Pinger) {
			if p == nil {
				checks[name] = "skipped"
				return
			}
			if err := p.Ping(ctx); err != nil {
				healthy = false
				checks[name] = "unreachable"
				if logg != nil {
					logg.Error(ctx, "readiness probe failed", err)
				}
				return
			}
			checks[name] = "ok"
		}

		probe("database", database)
		probe("redis", cache)

		if !healthy {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").
					WithDetails(map[string]any{"checks": checks}))
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"status": "ready",
			"env":    cfg.App.Env,
			"checks": checks,
		})
	}
}
